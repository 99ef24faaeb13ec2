package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wilsonwei2/CICD-From-RICKY-sub000/config"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/csvimport"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/helpers"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/historicalorders"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/model"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/money"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/refunds"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/returns"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/shopify/adminapi/types"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/shopifyorders"
)

const (
	configFlag  = "config"
	verboseFlag = "verbose"
)

// fileSource serves configuration documents from local files.
type fileSource struct{}

func (fileSource) Parameter(_ context.Context, name string) (string, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString(configFlag)
	env := config.Env(func(key string) (string, bool) {
		if key == "CONFIG_PARAMETER" && path != "" {
			return path, true
		}
		return "", false
	})
	return config.Load(cmd.Context(), env, fileSource{})
}

func logger(cmd *cobra.Command) *zap.Logger {
	if verbose, _ := cmd.Flags().GetBool(verboseFlag); verbose {
		l, err := zap.NewDevelopment()
		if err == nil {
			return l
		}
	}
	return zap.NewNop()
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("error decoding %s:\n>>> %w", path, err)
	}
	return nil
}

// output prints v and still reports err, so reportable results stay visible.
func output(cmd *cobra.Command, v any, err error) error {
	if v != nil {
		if writeErr := helpers.WriteJSON(cmd.OutOrStdout(), v); writeErr != nil {
			return writeErr
		}
	}
	return err
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "nsctl",
		Short:         "Run order, return and refund transformations against local files",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringP(configFlag, "c", "", "JSON configuration overlay")
	root.PersistentFlags().BoolP(verboseFlag, "v", false, "log to stderr")

	order := &cobra.Command{Use: "order", Short: "Transform orders"}
	order.AddCommand(historicalCmd(), shopifyCmd())
	root.AddCommand(order, returnCmd(), refundCmd(), splitCmd())
	return root
}

func historicalCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "historical FILE",
		Short:   "Transform historical orders from an export CSV or a raw order JSON",
		Example: "nsctl order historical orders.csv",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			var raws []historicalorders.RawOrder
			if strings.EqualFold(filepath.Ext(args[0]), ".csv") {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				raws, err = csvimport.NewImporter(nil, "", nil).GroupOrders(f)
				if err != nil {
					return err
				}
			} else {
				var raw historicalorders.RawOrder
				if err := readJSON(args[0], &raw); err != nil {
					return err
				}
				raws = append(raws, raw)
			}

			transformer := historicalorders.NewTransformer(cfg, logger(cmd))
			var firstErr error
			orders := make([]*model.Order, 0, len(raws))
			for _, raw := range raws {
				result, err := transformer.Transform(raw)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", raw.Name(), err)
					if firstErr == nil {
						firstErr = err
					}
				}
				if result != nil {
					orders = append(orders, result.Order)
				}
			}
			return output(cmd, orders, firstErr)
		},
	}
}

func shopifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shopify FILE",
		Short: "Transform a Shopify Admin API order JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			var order types.Order
			if err := readJSON(args[0], &order); err != nil {
				return err
			}
			result, err := shopifyorders.NewTransformer(cfg, logger(cmd)).Transform(&order)
			if result == nil {
				return err
			}
			return output(cmd, result.Order, err)
		},
	}
}

// staticOrders answers order lookups with one fixed id.
type staticOrders string

func (s staticOrders) OrderID(_ context.Context, externalID string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("no --order-id given for %s", externalID)
	}
	return string(s), nil
}

func returnCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "return FILE",
		Short: "Transform a historical return JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			var raw returns.RawReturn
			if err := readJSON(args[0], &raw); err != nil {
				return err
			}
			orderID, _ := cmd.Flags().GetString("order-id")
			ret, err := returns.NewTransformer(cfg, staticOrders(orderID), logger(cmd)).Transform(cmd.Context(), raw)
			if err != nil {
				return err
			}
			return output(cmd, ret, nil)
		},
	}
	cmd.Flags().String("order-id", "", "NewStore order id of the returned order")
	return cmd
}

func refundCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refund FILE",
		Short: "Match refund transactions of a return event and instruments JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			var request model.RefundRequest
			if err := readJSON(args[0], &request); err != nil {
				return err
			}
			ignore, _ := cmd.Flags().GetBool("ignore-mismatch")
			matcher := refunds.NewMatcher(cfg, logger(cmd), refunds.IgnoreMismatch(ignore || cfg.IgnoreRefundMismatch))
			refund, err := matcher.Build(&request.Return, request.Instruments)
			if refund == nil {
				return err
			}
			return output(cmd, refund, err)
		},
	}
	cmd.Flags().Bool("ignore-mismatch", false, "record amount mismatches instead of failing")
	return cmd
}

func splitCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "split AMOUNT COUNT",
		Short:   "Split an amount into COUNT parts differing by at most one cent",
		Example: "nsctl split 10.00 3",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(args[0])
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[0], err)
			}
			count, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid count %q: %w", args[1], err)
			}
			parts, err := money.SplitAmount(amount, count)
			if err != nil {
				return err
			}
			return output(cmd, parts, nil)
		},
	}
}
