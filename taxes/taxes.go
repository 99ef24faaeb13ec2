package taxes

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/wilsonwei2/CICD-From-RICKY-sub000/common"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/model"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/money"
)

type RawTax struct {
	Index int
	Price decimal.Decimal
	Rate  decimal.Decimal
	Title string
}

type Result struct {
	Lines []model.TaxLine
	// UnitTotal is the tax carried by a single unit.
	UnitTotal decimal.Decimal
}

func priceKey(i int) string { return fmt.Sprintf("Tax %d Price", i) }
func rateKey(i int) string  { return fmt.Sprintf("Tax %d Rate", i) }
func titleKey(i int) string { return fmt.Sprintf("Tax %d Title", i) }

// At reads the tax with the given 1-based index. The second result is false
// once the numbered fields run out.
func At(fields map[string]string, i int) (RawTax, bool, error) {
	rawPrice, found := fields[priceKey(i)]
	if !found {
		return RawTax{}, false, nil
	}
	price, err := money.ParseDecimal(priceKey(i), rawPrice)
	if err != nil {
		return RawTax{}, true, err
	}
	rate, err := money.ParseDecimalOr(rateKey(i), fields[rateKey(i)], decimal.Zero)
	if err != nil {
		return RawTax{}, true, err
	}
	return RawTax{Index: i, Price: price, Rate: rate, Title: fields[titleKey(i)]}, true, nil
}

// Numbered collects "Tax 1 …", "Tax 2 …" until the first missing price.
func Numbered(fields map[string]string) ([]RawTax, error) {
	var taxes []RawTax
	for i := 1; ; i++ {
		tax, found, err := At(fields, i)
		if err != nil {
			return nil, err
		}
		if !found {
			return taxes, nil
		}
		taxes = append(taxes, tax)
	}
}

// PerUnit converts line-level taxes into the tax lines of a single unit.
func PerUnit(raw []RawTax, quantity int, countryCode string) (Result, error) {
	if quantity <= 0 {
		return Result{}, fmt.Errorf("tax lines for quantity %d: %w", quantity, common.ErrDivisionByZero)
	}
	result := Result{Lines: make([]model.TaxLine, 0, len(raw)), UnitTotal: decimal.Zero}
	q := decimal.NewFromInt(int64(quantity))
	for _, tax := range raw {
		amount, err := money.Div(tax.Price, q)
		if err != nil {
			return Result{}, err
		}
		result.Lines = append(result.Lines, model.TaxLine{
			Amount:      amount,
			Rate:        tax.Rate,
			Name:        tax.Title,
			CountryCode: countryCode,
		})
		result.UnitTotal = result.UnitTotal.Add(amount)
	}
	return result, nil
}

func Extract(fields map[string]string, quantity int, countryCode string) (Result, error) {
	raw, err := Numbered(fields)
	if err != nil {
		return Result{}, err
	}
	return PerUnit(raw, quantity, countryCode)
}
