package discounts

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/wilsonwei2/CICD-From-RICKY-sub000/common"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/model"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/money"
)

type Scope string

const (
	ScopeItem  Scope = "item"
	ScopeOrder Scope = "order"

	ItemDiscountRef = "DISCOUNT"
)

// Descriptor is a discount before it is collapsed into the single record
// allowed per unit and scope. Amount is the absolute adjustment.
type Descriptor struct {
	Type          string
	OriginalValue decimal.Decimal
	Scope         Scope
	CouponCode    string
	Description   string
	Ref           string
	Amount        decimal.Decimal
}

func (d Descriptor) Info() model.DiscountInfo {
	discountType := d.Type
	if discountType == "" {
		discountType = model.DiscountTypeFixed
	}
	return model.DiscountInfo{
		DiscountRef:     d.Ref,
		Description:     d.Description,
		CouponCode:      d.CouponCode,
		Type:            discountType,
		OriginalValue:   d.OriginalValue,
		PriceAdjustment: d.Amount,
	}
}

// Merge folds added into master. The result is always fixed, since a sum of a
// percentage and anything else has no percentage equivalent.
func Merge(master *model.DiscountInfo, added model.DiscountInfo) {
	master.Type = model.DiscountTypeFixed
	master.PriceAdjustment = master.PriceAdjustment.Add(added.PriceAdjustment)
	refs := make([]string, 0, 2)
	for _, ref := range []string{master.DiscountRef, added.DiscountRef} {
		if ref != "" {
			refs = append(refs, ref)
		}
	}
	master.DiscountRef = strings.Join(refs, ";")
	master.OriginalValue = master.PriceAdjustment
}

// Collapse groups descriptors by scope into at most one DiscountInfo each.
func Collapse(descriptors []Descriptor) (item, order []model.DiscountInfo) {
	for _, d := range descriptors {
		target := &order
		if d.Scope == ScopeItem {
			target = &item
		}
		if len(*target) == 0 {
			*target = append(*target, d.Info())
			continue
		}
		Merge(&(*target)[0], d.Info())
	}
	return item, order
}

// ItemDiscount returns the per-unit discount implied by a sale price below the
// original price, or nil when there is none.
func ItemDiscount(originalPrice, salePrice decimal.Decimal, quantity int) (*model.DiscountInfo, error) {
	if !originalPrice.GreaterThan(salePrice) {
		return nil, nil
	}
	perUnit, err := money.Div(originalPrice.Sub(salePrice), decimal.NewFromInt(int64(quantity)))
	if err != nil {
		return nil, fmt.Errorf("item discount for quantity %d: %w", quantity, err)
	}
	return &model.DiscountInfo{
		DiscountRef:     ItemDiscountRef,
		Description:     ItemDiscountRef,
		CouponCode:      ItemDiscountRef,
		Type:            model.DiscountTypeFixed,
		OriginalValue:   perUnit,
		PriceAdjustment: perUnit,
	}, nil
}

// OrderShare is the part of the order discount carried by a unit, proportional
// to its adjusted price within the net order total.
func OrderShare(adjustedPrice, orderNet, orderDiscount decimal.Decimal) (decimal.Decimal, error) {
	if orderNet.IsZero() {
		return decimal.Zero, fmt.Errorf("order discount share over an empty order: %w", common.ErrDivisionByZero)
	}
	return money.Round2(adjustedPrice.Div(orderNet).Mul(orderDiscount)), nil
}

// FixOrderDrift corrects the rounding residual of the per-unit order discount
// shares on the last unit carrying one, so the shares add up to the rounded
// order discount. It returns the correction applied.
func FixOrderDrift(items []*model.Item, orderDiscount decimal.Decimal) decimal.Decimal {
	assigned := decimal.Zero
	last := -1
	for i, item := range items {
		for _, d := range item.Price.ItemOrderDiscountInfo {
			assigned = assigned.Add(d.PriceAdjustment)
		}
		if len(item.Price.ItemOrderDiscountInfo) > 0 {
			last = i
		}
	}
	delta := money.Round2(orderDiscount).Sub(assigned)
	if delta.IsZero() || last < 0 {
		return decimal.Zero
	}
	info := &items[last].Price.ItemOrderDiscountInfo[len(items[last].Price.ItemOrderDiscountInfo)-1]
	info.PriceAdjustment = info.PriceAdjustment.Add(delta)
	return delta
}
