package reconcile

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/wilsonwei2/CICD-From-RICKY-sub000/common"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/model"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/money"
)

const RoundingRef = "ROUNDING"

type Target string

const (
	TargetNone          Target = ""
	TargetTaxIncrease   Target = "tax_increase"
	TargetItemDiscount  Target = "item_discount"
	TargetOrderDiscount Target = "order_discount"
	TargetTaxDecrease   Target = "tax_decrease"
)

// Totals accumulates the gross total of an order while it is being built.
type Totals struct {
	Gross decimal.Decimal
}

func (t *Totals) Add(amounts ...decimal.Decimal) {
	t.Gross = t.Gross.Add(money.Sum(amounts...))
}

func (t *Totals) Sub(amounts ...decimal.Decimal) {
	t.Gross = t.Gross.Sub(money.Sum(amounts...))
}

// Result describes what the reconciler did with the gap between the payment
// and the gross total.
type Result struct {
	Gap    decimal.Decimal
	Target Target
}

func (r Result) Applied() bool {
	return r.Target != TargetNone
}

type Reconciler struct {
	// TaxIncluded orders carry tax inside item prices, so tax lines cannot
	// absorb a gap.
	TaxIncluded bool
}

func FixTaxCentCalculation(items []*model.Item, grossTotal, paymentTotal decimal.Decimal) (Result, error) {
	return Reconciler{}.Fix(items, grossTotal, paymentTotal)
}

// Fix closes a gap of at most one minor unit between paymentTotal and
// grossTotal by adjusting the first item. Larger gaps are left in place and
// reported with ErrReconciliationGapTooLarge.
func (r Reconciler) Fix(items []*model.Item, grossTotal, paymentTotal decimal.Decimal) (Result, error) {
	gap := paymentTotal.Sub(grossTotal)
	result := Result{Gap: gap}
	if gap.IsZero() || len(items) == 0 {
		return result, nil
	}
	if gap.Abs().GreaterThan(money.MinorUnit) {
		return result, fmt.Errorf("payment %s against gross total %s: %w", paymentTotal.StringFixed(2), grossTotal.StringFixed(2), common.ErrReconciliationGapTooLarge)
	}

	first := items[0]
	taxLine, hasTax := first.FirstTaxLine()
	hasTax = hasTax && !r.TaxIncluded

	if gap.IsPositive() {
		if hasTax && taxLine.Amount.GreaterThanOrEqual(gap) {
			taxLine.Amount = taxLine.Amount.Add(gap)
			result.Target = TargetTaxIncrease
		}
		return result, nil
	}

	adjustment := gap.Abs()
	switch {
	case len(first.Price.ItemDiscountInfo) == 0:
		first.Price.ItemDiscountInfo = append(first.Price.ItemDiscountInfo, roundingDiscount(adjustment))
		result.Target = TargetItemDiscount
	case len(first.Price.ItemOrderDiscountInfo) == 0:
		first.Price.ItemOrderDiscountInfo = append(first.Price.ItemOrderDiscountInfo, roundingDiscount(adjustment))
		result.Target = TargetOrderDiscount
	case hasTax && taxLine.Amount.GreaterThanOrEqual(adjustment):
		taxLine.Amount = taxLine.Amount.Sub(adjustment)
		result.Target = TargetTaxDecrease
	}
	return result, nil
}

func roundingDiscount(amount decimal.Decimal) model.DiscountInfo {
	return model.DiscountInfo{
		DiscountRef:     RoundingRef,
		Description:     RoundingRef,
		Type:            model.DiscountTypeFixed,
		OriginalValue:   amount,
		PriceAdjustment: amount,
	}
}

// Apply mirrors a reconciliation into the running totals.
func (t *Totals) Apply(result Result) {
	if result.Applied() {
		t.Gross = t.Gross.Add(result.Gap)
	}
}
