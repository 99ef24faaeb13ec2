package shopifyorders

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wilsonwei2/CICD-From-RICKY-sub000/common"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/config"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/helpers"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/model"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/reconcile"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/shopify/adminapi/types"
)

func moneyBag(amount string) types.MoneyBag {
	return types.MoneyBag{ShopMoney: types.Money{AmountString: amount, CurrencyCode: "CAD"}}
}

func allocation(amount, selection, code string) types.DiscountAllocation {
	return types.DiscountAllocation{
		AllocatedAmount: moneyBag(amount),
		DiscountApplication: types.DiscountApplication{
			TargetSelection: selection,
			Value:           types.PricingValue{Amount: amount, CurrencyCode: "CAD"},
			Code:            code,
		},
	}
}

func sale(id, amount, gateway string) types.OrderTransaction {
	return types.OrderTransaction{
		Id:        helpers.Ptr(id),
		Kind:      types.TransactionKindSale,
		Status:    types.TransactionStatusSuccess,
		Gateway:   gateway,
		CreatedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		AmountSet: moneyBag(amount),
	}
}

func lines(ls ...types.OrderLine) types.Edges[types.OrderLine] {
	edges := types.Edges[types.OrderLine]{}
	for _, l := range ls {
		edges.Edges = append(edges.Edges, types.Edge[types.OrderLine]{Node: l})
	}
	return edges
}

func shippingLines(ls ...types.OrderShippingLine) types.Edges[types.OrderShippingLine] {
	edges := types.Edges[types.OrderShippingLine]{}
	for _, l := range ls {
		edges.Edges = append(edges.Edges, types.Edge[types.OrderShippingLine]{Node: l})
	}
	return edges
}

// baseOrder has one line of 3 units at 10.00 with 1.50 GST, a 3.00 line
// discount, a 5.00 order discount and 5.00 shipping with 0.25 tax: 28.75.
func baseOrder() *types.Order {
	return &types.Order{
		Id:           helpers.Ptr("gid://shopify/Order/42"),
		Name:         "#1001",
		Email:        "jane@example.com",
		CurrencyCode: "CAD",
		ProcessedAt:  time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		Customer:     &types.Customer{Id: helpers.Ptr("gid://shopify/Customer/7"), FirstName: "Jane", LastName: "Doe"},
		BillingAddress: &types.Address{
			FirstName: "Jane", LastName: "Doe", Address1: "1 Main St", City: "Montreal", ProvinceCode: "QC", CountryCode: "CA", Zip: "H2X 1Y4",
		},
		ShippingAddress: &types.Address{
			FirstName: "Jane", LastName: "Doe", Address1: "1 Main St", City: "Montreal", ProvinceCode: "QC", CountryCode: "CA", Zip: "H2X 1Y4",
		},
		Lines: lines(types.OrderLine{
			Id:               helpers.Ptr("gid://shopify/LineItem/1"),
			Sku:              "SKU-1",
			Quantity:         3,
			RequiresShipping: true,
			Variant:          &types.ProductVariant{Id: helpers.Ptr("gid://shopify/ProductVariant/9")},
			UnitPrice:        moneyBag("10.00"),
			TaxLines:         []types.TaxLine{{Price: moneyBag("1.50"), Rate: decimal.RequireFromString("0.05"), Title: "GST"}},
			DiscountAllocations: []types.DiscountAllocation{
				allocation("3.00", types.TargetSelectionEntitled, "LINE3"),
				allocation("5.00", types.TargetSelectionAll, "SAVE5"),
			},
		}),
		ShippingLines: shippingLines(types.OrderShippingLine{
			Title:    "Express",
			Code:     "express",
			Price:    moneyBag("5.00"),
			TaxLines: []types.TaxLine{{Price: moneyBag("0.25"), Rate: decimal.RequireFromString("0.05"), Title: "GST"}},
		}),
		Transactions: []types.OrderTransaction{sale("gid://shopify/OrderTransaction/1", "28.75", "shopify_payments")},
	}
}

func newTransformer() *Transformer {
	cfg := config.Default()
	cfg.GiftCard.Physical = "GC-PHYSICAL"
	cfg.GiftCard.Electronic = "GC-ELECTRONIC"
	cfg.ShippingServiceLevels = map[string]string{"express": "EXPRESS", "default": "GROUND"}
	return NewTransformer(&cfg, zap.NewNop())
}

func amounts[T any](xs []T, get func(T) decimal.Decimal) []string {
	out := make([]string, len(xs))
	for i, x := range xs {
		out[i] = get(x).StringFixed(2)
	}
	return out
}

func TestTransform_SplitsTaxesAndDiscounts(t *testing.T) {
	res, err := newTransformer().Transform(baseOrder())
	require.NoError(t, err)

	order := res.Order
	assert.Equal(t, "1001", order.ExternalID)
	assert.Equal(t, "Jane Doe", order.CustomerName)
	assert.Equal(t, model.PriceMethodTaxExcluded, order.PriceMethod)
	assert.Equal(t, "28.75", res.GrossTotal.StringFixed(2))
	assert.False(t, res.Reconciliation.Applied())

	items := order.Shipments[0].Items
	require.Len(t, items, 3)
	assert.Equal(t, []string{"0.50", "0.50", "0.50"}, amounts(items, func(i model.Item) decimal.Decimal { return i.Price.ItemTaxLines[0].Amount }))
	assert.Equal(t, []string{"1.00", "1.00", "1.00"}, amounts(items, func(i model.Item) decimal.Decimal { return i.Price.ItemDiscountInfo[0].PriceAdjustment }))
	assert.Equal(t, []string{"1.66", "1.67", "1.67"}, amounts(items, func(i model.Item) decimal.Decimal { return i.Price.ItemOrderDiscountInfo[0].PriceAdjustment }))
	assert.Equal(t, "SKU-1", items[0].ProductID)
	assert.Equal(t, "gid://shopify/ProductVariant/9", items[0].ExternalItemID)
	assert.Equal(t, "LINE3", items[0].Price.ItemDiscountInfo[0].DiscountRef)
	assert.Equal(t, "SAVE5", items[0].Price.ItemOrderDiscountInfo[0].CouponCode)
	assert.Contains(t, items[0].ExtendedAttributes, model.ExtendedAttribute{Name: "external_item_id", Value: "gid://shopify/LineItem/1"})

	option := order.Shipments[0].ShippingOption
	require.NotNil(t, option)
	assert.Equal(t, "EXPRESS", option.ServiceLevelIdentifier)
	assert.Equal(t, "0.25", option.Tax.StringFixed(2))

	require.Len(t, order.Payments, 1)
	assert.Equal(t, model.MethodCreditCard, order.Payments[0].Method)
	assert.Equal(t, "shopify", order.Payments[0].Processor)
	assert.Equal(t, "1001", order.Payments[0].Metadata["external_order_id"])
	assert.Equal(t, []string{"shipment_dispatched", "order_cancelled", "refund_note_created"}, order.NotificationBlacklist)
}

func TestTransform_MergesDiscountsPerScope(t *testing.T) {
	shopifyOrder := baseOrder()
	line := shopifyOrder.Lines.Get(0)
	line.Quantity = 1
	line.TaxLines = nil
	percentage := decimal.RequireFromString("10")
	line.DiscountAllocations = []types.DiscountAllocation{
		allocation("2.00", types.TargetSelectionAll, "A"),
		{
			AllocatedAmount:     moneyBag("1.00"),
			DiscountApplication: types.DiscountApplication{TargetSelection: types.TargetSelectionAll, Title: "B", Value: types.PricingValue{Percentage: &percentage}},
		},
	}
	shopifyOrder.ShippingLines = shippingLines()
	shopifyOrder.Transactions = []types.OrderTransaction{sale("T1", "7.00", "shopify_payments")}

	res, err := newTransformer().Transform(shopifyOrder)
	require.NoError(t, err)
	items := res.Order.Shipments[0].Items
	require.Len(t, items, 1)
	require.Len(t, items[0].Price.ItemOrderDiscountInfo, 1)
	merged := items[0].Price.ItemOrderDiscountInfo[0]
	assert.Equal(t, model.DiscountTypeFixed, merged.Type)
	assert.Equal(t, "A;B", merged.DiscountRef)
	assert.Equal(t, "3.00", merged.PriceAdjustment.StringFixed(2))
	assert.Equal(t, "3.00", merged.OriginalValue.StringFixed(2))
	assert.Empty(t, items[0].Price.ItemDiscountInfo)
	assert.Equal(t, "GROUND", res.Order.Shipments[0].ShippingOption.ServiceLevelIdentifier)
}

func TestDescriptors(t *testing.T) {
	percentage := decimal.RequireFromString("15")
	descriptors := Descriptors([]types.DiscountAllocation{
		{AllocatedAmount: moneyBag("4.50"), DiscountApplication: types.DiscountApplication{TargetSelection: types.TargetSelectionExplicit, Value: types.PricingValue{Percentage: &percentage}}},
	}, "1001")
	require.Len(t, descriptors, 1)
	assert.Equal(t, "1001", descriptors[0].Ref)
	assert.Equal(t, model.DiscountTypePercentage, descriptors[0].Type)
	assert.Equal(t, "15", descriptors[0].OriginalValue.String())
	assert.Equal(t, "4.50", descriptors[0].Amount.StringFixed(2))
}

func TestTransform_GiftCards(t *testing.T) {
	shopifyOrder := baseOrder()
	shopifyOrder.ShippingAddress = nil
	shopifyOrder.ShippingLines = shippingLines()
	shopifyOrder.Lines = lines(types.OrderLine{
		Id: helpers.Ptr("L1"), Sku: "EGC", Quantity: 1, IsGiftCard: true, UnitPrice: moneyBag("25.00"),
	})
	shopifyOrder.Transactions = []types.OrderTransaction{sale("T1", "25.00", "shopify_payments")}

	res, err := newTransformer().Transform(shopifyOrder)
	require.NoError(t, err)
	assert.Equal(t, "GC-ELECTRONIC", res.Order.Shipments[0].Items[0].ProductID)
	assert.Equal(t, res.Order.BillingAddress, res.Order.ShippingAddress)

	shopifyOrder.Lines = lines(types.OrderLine{
		Id: helpers.Ptr("L2"), Sku: "5500000123", Quantity: 1, RequiresShipping: true, UnitPrice: moneyBag("25.00"),
	})
	res, err = newTransformer().Transform(shopifyOrder)
	require.NoError(t, err)
	assert.Equal(t, "GC-PHYSICAL", res.Order.Shipments[0].Items[0].ProductID)
	assert.Nil(t, res.Order.ShippingAddress)
}

func TestTransform_Payments(t *testing.T) {
	shopifyOrder := baseOrder()
	giftCard := sale("T2", "8.75", "gift_card")
	giftCard.ReceiptJson = `{"gift_card_id": 1, "gift_card_last_characters": "x4a9"}`
	refunded := sale("T3", "3.00", "shopify_payments")
	failed := sale("T4", "3.00", "shopify_payments")
	failed.Status = "FAILURE"
	refund := types.OrderTransaction{
		Id: helpers.Ptr("T5"), Kind: types.TransactionKindRefund, Status: types.TransactionStatusSuccess,
		ParentTransaction: &types.Identifiable{Id: helpers.Ptr("T3")}, AmountSet: moneyBag("3.00"),
	}
	cod := sale("T6", "0.00", "Cash on Delivery (COD)")
	shopifyOrder.Transactions = []types.OrderTransaction{sale("T1", "20.00", "shopify_payments"), giftCard, refunded, failed, refund, cod}

	res, err := newTransformer().Transform(shopifyOrder)
	require.NoError(t, err)
	payments := res.Order.Payments
	require.Len(t, payments, 3)
	assert.Equal(t, "T1", payments[0].CorrelationRef)
	assert.Equal(t, model.MethodGiftCard, payments[1].Method)
	assert.Equal(t, "x4a9", payments[1].Metadata["number"])
	assert.Equal(t, model.MethodCash, payments[2].Method)
	assert.Equal(t, "28.75", res.Order.PaymentTotal().StringFixed(2))
}

func TestTransform_Reconciliation(t *testing.T) {
	shopifyOrder := baseOrder()
	shopifyOrder.Transactions = []types.OrderTransaction{sale("T1", "28.76", "shopify_payments")}
	res, err := newTransformer().Transform(shopifyOrder)
	require.NoError(t, err)
	assert.Equal(t, reconcile.TargetTaxIncrease, res.Reconciliation.Target)
	assert.Equal(t, "0.51", res.Order.Shipments[0].Items[0].Price.ItemTaxLines[0].Amount.StringFixed(2))
	assert.Equal(t, "28.76", res.GrossTotal.StringFixed(2))

	shopifyOrder.Transactions = []types.OrderTransaction{sale("T1", "28.80", "shopify_payments")}
	res, err = newTransformer().Transform(shopifyOrder)
	require.ErrorIs(t, err, common.ErrReconciliationGapTooLarge)
	require.NotNil(t, res)
	assert.False(t, common.IsFatal(err))
}

func TestTransform_PickupBlacklist(t *testing.T) {
	shopifyOrder := baseOrder()
	shopifyOrder.ShippingLines.Get(0).Code = "Store-Pickup"
	res, err := newTransformer().Transform(shopifyOrder)
	require.NoError(t, err)
	assert.Equal(t, []string{"shipment_dispatched", "refund_note_created"}, res.Order.NotificationBlacklist)
}

func TestTransform_Errors(t *testing.T) {
	tests := []struct {
		Title  string
		Modify func(o *types.Order)
	}{
		{Title: "no name", Modify: func(o *types.Order) { o.Name = "" }},
		{Title: "no currency", Modify: func(o *types.Order) { o.CurrencyCode = "" }},
		{Title: "no lines", Modify: func(o *types.Order) { o.Lines = lines() }},
	}
	for _, tt := range tests {
		t.Run(tt.Title, func(t *testing.T) {
			shopifyOrder := baseOrder()
			tt.Modify(shopifyOrder)
			_, err := newTransformer().Transform(shopifyOrder)
			if !assert.ErrorIs(t, err, common.ErrDataCompleteness) {
				t.Fatalf("unexpected error %v", err)
			}
		})
	}
}
