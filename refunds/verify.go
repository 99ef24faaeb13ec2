package refunds

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/wilsonwei2/CICD-From-RICKY-sub000/common"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/model"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/money"
)

// DefaultTolerance is the relative tolerance between refunded and declared totals.
var DefaultTolerance = decimal.New(1, -2)

// IsClose compares a and b with a relative tolerance:
// |a-b| <= tolerance * max(|a|, |b|).
func IsClose(a, b, tolerance decimal.Decimal) bool {
	largest := decimal.Max(a.Abs(), b.Abs())
	return a.Sub(b).Abs().LessThanOrEqual(tolerance.Mul(largest))
}

func verify(refunded, declared, tolerance decimal.Decimal) error {
	refunded = money.Round2(refunded)
	declared = money.Round2(declared)
	if IsClose(refunded, declared, tolerance) {
		return nil
	}
	return fmt.Errorf("%w: refund total %s, refunded total %s", common.ErrRefundAmountMismatch, declared.StringFixed(2), refunded.StringFixed(2))
}

// VerifyTransactions checks the absolute amounts of the selected transactions against the declared total.
func VerifyTransactions(txs []model.RefundTransaction, declared, tolerance decimal.Decimal) error {
	total := decimal.Zero
	for _, tx := range txs {
		total = total.Add(Amount(tx).Abs())
	}
	return verify(total, declared, tolerance)
}

func VerifyPayments(items []model.PaymentItem, declared, tolerance decimal.Decimal) error {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Amount.Abs())
	}
	return verify(total, declared, tolerance)
}
