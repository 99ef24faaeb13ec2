package historicalorders

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/wilsonwei2/CICD-From-RICKY-sub000/common"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/config"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/discounts"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/model"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/money"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/reconcile"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/taxes"
)

const (
	DefaultOrderDiscountCode = "ORDER DISCOUNT"

	serviceLevelInStore = "IN_STORE_HANDOVER"
	shippingTypeInStore = "in_store_handover"
)

type Transformer struct {
	cfg    *config.Config
	logger *zap.Logger
}

func NewTransformer(cfg *config.Config, logger *zap.Logger) *Transformer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transformer{cfg: cfg, logger: logger}
}

type Result struct {
	Order          *model.Order
	GrossTotal     decimal.Decimal
	OrderDiscount  decimal.Decimal
	Reconciliation reconcile.Result
}

// unit is an exploded item before the order discount is spread over it.
type unit struct {
	item     model.Item
	adjusted decimal.Decimal
}

// Transform maps a raw historical order to a NewStore order. When the order
// total cannot be reconciled with the payment the result is still returned
// together with an error wrapping common.ErrReconciliationGapTooLarge.
func (t *Transformer) Transform(raw RawOrder) (*Result, error) {
	t.logger.Info("Start transforming order", zap.String("order", raw.Name()))
	if err := raw.Validate(); err != nil {
		return nil, err
	}
	details := raw.Details
	taxIncluded := !strings.EqualFold(details.Get("Taxes Included"), "false")
	countryCode := details.Get("Billing Country Code")

	payment, err := money.ParseDecimal("Transaction Amount", raw.Payment.Get("Transaction Amount"))
	if err != nil {
		return nil, err
	}

	totals := reconcile.Totals{}
	units, err := t.explode(raw, countryCode, taxIncluded, &totals)
	if err != nil {
		return nil, err
	}

	shipping, err := t.shippingOption(raw)
	if err != nil {
		return nil, err
	}
	totals.Add(shipping.Price)
	if !taxIncluded {
		totals.Add(shipping.Tax)
	}

	orderDiscount, err := OrderDiscount(details, totals.Gross, payment)
	if err != nil {
		return nil, err
	}

	items := make([]*model.Item, len(units))
	for i := range units {
		items[i] = &units[i].item
	}
	if orderDiscount.IsPositive() {
		if err := t.spreadOrderDiscount(details, units, orderDiscount, &totals); err != nil {
			return nil, err
		}
		totals.Sub(discounts.FixOrderDrift(items, orderDiscount))
	}

	reconciler := reconcile.Reconciler{TaxIncluded: taxIncluded}
	reconciliation, reconcileErr := reconciler.Fix(items, totals.Gross, payment)
	totals.Apply(reconciliation)

	order, err := t.order(raw, units, shipping, payment, taxIncluded)
	if err != nil {
		return nil, err
	}
	result := &Result{
		Order:          order,
		GrossTotal:     totals.Gross,
		OrderDiscount:  orderDiscount,
		Reconciliation: reconciliation,
	}
	if reconcileErr != nil {
		t.logger.Warn("Order total does not match payment",
			zap.String("order", raw.Name()),
			zap.String("gross_total", totals.Gross.StringFixed(2)),
			zap.String("payment", payment.StringFixed(2)),
		)
		return result, fmt.Errorf("order %s: %w", raw.Name(), reconcileErr)
	}
	return result, nil
}

func (t *Transformer) explode(raw RawOrder, countryCode string, taxIncluded bool, totals *reconcile.Totals) ([]unit, error) {
	var units []unit
	for _, line := range raw.Items {
		quantity, err := money.ParseQuantity("Lineitem quantity", line.Get("Lineitem quantity"))
		if err != nil {
			return nil, err
		}
		if quantity == 0 {
			return nil, fmt.Errorf("order %s sku %s has no quantity: %w", raw.Name(), line.Get("Lineitem sku"), common.ErrDivisionByZero)
		}
		price, err := money.ParseDecimal("Lineitem price", line.Get("Lineitem price"))
		if err != nil {
			return nil, err
		}
		compareAt, err := money.ParseDecimalOr("Lineitem compare at price", line.Get("Lineitem compare at price"), decimal.Zero)
		if err != nil {
			return nil, err
		}

		q := decimal.NewFromInt(int64(quantity))
		unitPrice, err := money.Div(decimal.Max(compareAt, price), q)
		if err != nil {
			return nil, err
		}
		itemDiscount, err := discounts.ItemDiscount(compareAt, price, quantity)
		if err != nil {
			return nil, err
		}
		taxResult, err := taxes.Extract(line, quantity, countryCode)
		if err != nil {
			return nil, err
		}

		adjusted := unitPrice
		if itemDiscount != nil {
			adjusted = unitPrice.Sub(itemDiscount.PriceAdjustment)
		}
		sku := line.Get("Lineitem sku")
		for range quantity {
			item := model.Item{
				ExternalItemID: sku,
				ProductID:      sku,
				Price: model.ItemPrice{
					ItemPrice:     unitPrice,
					ItemListPrice: unitPrice,
					ItemTaxLines:  append([]model.TaxLine{}, taxResult.Lines...),
				},
			}
			if itemDiscount != nil {
				item.Price.ItemDiscountInfo = []model.DiscountInfo{*itemDiscount}
			}
			units = append(units, unit{item: item, adjusted: adjusted})
			totals.Add(adjusted)
			if !taxIncluded {
				totals.Add(taxResult.UnitTotal)
			}
		}
	}
	if len(units) == 0 {
		return nil, fmt.Errorf("order %s: %w", raw.Name(), common.MissingField("items with quantity"))
	}
	return units, nil
}

func (t *Transformer) spreadOrderDiscount(details Fields, units []unit, orderDiscount decimal.Decimal, totals *reconcile.Totals) error {
	code := details.Get("Discount Code")
	if code == "" {
		code = DefaultOrderDiscountCode
	}
	net := decimal.Zero
	for _, u := range units {
		net = net.Add(u.adjusted)
	}
	for i := range units {
		share, err := discounts.OrderShare(units[i].adjusted, net, orderDiscount)
		if err != nil {
			return err
		}
		units[i].item.Price.ItemOrderDiscountInfo = []model.DiscountInfo{{
			DiscountRef:     code,
			Description:     code,
			CouponCode:      code,
			Type:            model.DiscountTypeFixed,
			OriginalValue:   orderDiscount,
			PriceAdjustment: share,
		}}
		totals.Sub(share)
	}
	return nil
}

// OrderDiscount returns the absolute order-level discount. A declared fixed
// amount wins; otherwise the discount is whatever the customer did not pay of
// the pre-discount total.
func OrderDiscount(details Fields, preDiscountTotal, payment decimal.Decimal) (decimal.Decimal, error) {
	declared, err := money.ParseDecimalOr("Discount Amount", details.Get("Discount Amount"), decimal.Zero)
	if err != nil {
		return decimal.Zero, err
	}
	declared = declared.Abs()
	isPercentage := strings.EqualFold(details.Get("Discount Type"), model.DiscountTypePercentage)
	if declared.IsPositive() && !isPercentage {
		return money.Round2(declared), nil
	}
	derived := money.Round2(preDiscountTotal.Sub(payment))
	if !derived.IsPositive() {
		return decimal.Zero, nil
	}
	return derived, nil
}

func (t *Transformer) storeID(details Fields) string {
	return details.Get("Billing Company")
}

func (t *Transformer) shippingOption(raw RawOrder) (*model.ShippingOption, error) {
	price, err := money.ParseDecimalOr("Shipping Line Price", raw.Shipping.Get("Shipping Line Price"), decimal.Zero)
	if err != nil {
		return nil, err
	}
	tax, err := money.ParseDecimalOr("Shipping Tax 1 Price", raw.Shipping.Get("Shipping Tax 1 Price"), decimal.Zero)
	if err != nil {
		return nil, err
	}
	option := &model.ShippingOption{
		Price:       price,
		Tax:         tax,
		ZipCode:     raw.Details.Get("Shipping Zip"),
		CountryCode: raw.Details.Get("Shipping Country Code"),
	}
	if store := t.storeID(raw.Details); store != "" {
		option.ServiceLevelIdentifier = serviceLevelInStore
		option.ShippingType = shippingTypeInStore
		option.DisplayName = "In Store"
		option.FulfillmentNodeID = store
		option.StoreID = store
		option.ShippingCarrierName = t.cfg.HistoricalCarrier
		return option, nil
	}
	option.ServiceLevelIdentifier = t.cfg.DefaultServiceLevel
	option.ShippingType = "traditional_carrier"
	option.DisplayName = "Standard delivery"
	option.FulfillmentNodeID = t.cfg.DefaultFulfillmentNode
	option.ShippingCarrierName = "traditional_carrier"
	option.RoutingStrategy = &model.RoutingStrategy{Strategy: "default"}
	return option, nil
}

func address(details Fields, prefix string) *model.Address {
	return &model.Address{
		FirstName:   details.Get(prefix + " First Name"),
		LastName:    details.Get(prefix + " Last Name"),
		AddressLine: details.Get(prefix + " Address1"),
		City:        details.Get(prefix + " City"),
		State:       details.Get(prefix + " Province Code"),
		ZipCode:     details.Get(prefix + " Zip"),
		Country:     details.Get(prefix + " Country Code"),
	}
}

func (t *Transformer) order(raw RawOrder, units []unit, shipping *model.ShippingOption, payment decimal.Decimal, taxIncluded bool) (*model.Order, error) {
	details := raw.Details
	placedAt, err := parseDate("Processed At", details.Get("Processed At"))
	if err != nil {
		return nil, err
	}
	ns := model.Payment{
		Processor:      t.cfg.HistoricalProcessor,
		CorrelationRef: "correlation_ref",
		Type:           "captured",
		Amount:         payment,
		Method:         t.cfg.HistoricalPaymentMethod,
	}
	if processed := raw.Payment.Get("Transaction Processed At"); processed != "" {
		processedAt, err := parseDate("Transaction Processed At", processed)
		if err != nil {
			return nil, err
		}
		ns.ProcessedAt = &processedAt
	}

	items := make([]model.Item, len(units))
	for i, u := range units {
		items[i] = u.item
	}

	priceMethod := model.PriceMethodTaxExcluded
	if taxIncluded {
		priceMethod = model.PriceMethodTaxIncluded
	}
	order := &model.Order{
		ExternalID:            details.Get("Name"),
		ShopID:                t.cfg.Shop,
		ChannelType:           "web",
		ChannelName:           t.cfg.ChannelName,
		PlacedAt:              placedAt,
		Currency:              details.Get("Currency"),
		ShopLocale:            t.cfg.ShopLocale,
		CustomerLanguage:      t.cfg.CustomerLanguage,
		CustomerName:          details.Get("Shipping Name"),
		CustomerEmail:         details.Get("Email"),
		ExternalCustomerID:    details.Get("Mage Customer Id"),
		PriceMethod:           priceMethod,
		IsHistorical:          true,
		IsFulfilled:           true,
		NotificationBlacklist: t.cfg.NotificationBlacklist,
		ShippingAddress:       address(details, "Shipping"),
		BillingAddress:        address(details, "Billing"),
		Payments:              []model.Payment{ns},
		Shipments: []model.Shipment{{
			Items:                    items,
			HistoricalShippingOption: shipping,
		}},
	}
	if store := t.storeID(details); store != "" {
		order.StoreID = store
		order.ChannelType = "store"
	}
	return order, nil
}
