package main

import (
	"os"

	"github.com/shopspring/decimal"
)

func main() {
	decimal.MarshalJSONWithoutQuotes = true
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
