package shopifyorders

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/wilsonwei2/CICD-From-RICKY-sub000/common"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/config"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/discounts"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/helpers"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/model"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/money"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/reconcile"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/shopify/adminapi/types"
)

const (
	channelTypeWeb      = "web"
	paymentAuthorized   = "authorized"
	shippingDiscountRef = "Shipping Discount"
	cityLimit           = 49

	gatewayShopifyPayments = "shopify_payments"
	gatewayCashOnDelivery  = "Cash on Delivery (COD)"
)

var (
	pickupCodes           = []string{"pickup in store", "store-pickup"}
	pickupBlacklist       = []string{"shipment_dispatched", "refund_note_created"}
	defaultOrderBlacklist = []string{"shipment_dispatched", "order_cancelled", "refund_note_created"}
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
	Reconciliation reconcile.Result
}

// ExternalID is the order name without the leading "#".
func ExternalID(order *types.Order) string {
	return strings.ReplaceAll(order.Name, "#", "")
}

// Transform maps an Admin API order to a NewStore order. Like the historical
// import, a gap the reconciler cannot close is returned with the order.
func (t *Transformer) Transform(order *types.Order) (*Result, error) {
	externalID := ExternalID(order)
	logger := t.logger.With(zap.String("order", externalID))
	logger.Info("Start transforming Shopify order")

	if externalID == "" {
		return nil, common.MissingField("name")
	}
	if order.CurrencyCode == "" {
		return nil, fmt.Errorf("order %s: %w", externalID, common.MissingField("currencyCode"))
	}
	if order.Lines.Length() == 0 {
		return nil, fmt.Errorf("order %s: %w", externalID, common.MissingField("lineItems"))
	}

	totals := reconcile.Totals{}
	lines, err := t.items(order, &totals)
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", externalID, err)
	}

	option := t.shippingOption(order)
	totals.Add(option.Price)
	totals.Sub(discountTotal(option.DiscountInfo))
	if !order.TaxesIncluded {
		totals.Add(option.Tax)
	}

	ns := &model.Order{
		ExternalID:            externalID,
		ShopID:                t.cfg.Shop,
		ChannelType:           channelTypeWeb,
		ChannelName:           t.cfg.ShopifyChannel,
		PlacedAt:              order.ProcessedAt,
		Currency:              order.CurrencyCode,
		ShopLocale:            t.cfg.ShopLocale,
		CustomerLanguage:      t.cfg.CustomerLanguage,
		CustomerEmail:         order.Email,
		PriceMethod:           priceMethod(order),
		NotificationBlacklist: blacklist(order),
		BillingAddress:        address(order.BillingAddress),
		ShippingAddress:       address(order.ShippingAddress),
		Shipments:             []model.Shipment{{Items: lines.items, ShippingOption: option}},
		Payments:              t.payments(order, externalID),
		ExtendedAttributes:    t.extendedAttributes(order, externalID),
	}
	if order.Customer != nil {
		ns.CustomerName = strings.TrimSpace(order.Customer.FirstName + " " + order.Customer.LastName)
		if order.Customer.Id != nil {
			ns.ExternalCustomerID = *order.Customer.Id
		}
	}
	if ns.ShippingAddress == nil && !lines.hasShipping {
		ns.ShippingAddress = ns.BillingAddress
	}

	payment := ns.PaymentTotal()
	reconciler := reconcile.Reconciler{TaxIncluded: order.TaxesIncluded}
	reconciliation, reconcileErr := reconciler.Fix(ns.Items(), totals.Gross, payment)
	totals.Apply(reconciliation)

	result := &Result{Order: ns, GrossTotal: totals.Gross, Reconciliation: reconciliation}
	if reconcileErr != nil {
		logger.Warn("Order total does not match payment",
			zap.String("gross_total", totals.Gross.StringFixed(2)),
			zap.String("payment", payment.StringFixed(2)),
		)
		return result, fmt.Errorf("order %s: %w", externalID, reconcileErr)
	}
	logger.Info("Shopify order transformed", zap.Int("items", len(lines.items)), zap.String("reconciliation", string(reconciliation.Target)))
	return result, nil
}

type exploded struct {
	items       []model.Item
	hasShipping bool
}

func (t *Transformer) items(order *types.Order, totals *reconcile.Totals) (exploded, error) {
	var out exploded
	finalSale := order.HasTag("final sale")
	for _, line := range order.Lines.Iter {
		if line.Quantity <= 0 {
			t.logger.Warn("Skipping line without quantity", zap.String("sku", line.Sku))
			continue
		}
		productID, isGiftCard := t.productID(line)
		if line.RequiresShipping || !isGiftCard {
			out.hasShipping = true
		}

		itemDiscount, orderDiscount := discounts.Collapse(Descriptors(line.DiscountAllocations, ExternalID(order)))
		units, err := Explode(line, itemDiscount, orderDiscount)
		if err != nil {
			return out, fmt.Errorf("line %s: %w", line.Sku, err)
		}

		lineID := ""
		if line.Id != nil {
			lineID = *line.Id
		}
		externalItemID := lineID
		if line.Variant != nil && line.Variant.Id != nil {
			externalItemID = *line.Variant.Id
		}
		for i := range units {
			units[i].ExternalItemID = externalItemID
			units[i].ProductID = productID
			units[i].ExtendedAttributes = []model.ExtendedAttribute{
				{Name: "is_gift_card", Value: strconv.FormatBool(isGiftCard)},
				{Name: "requires_shipping", Value: strconv.FormatBool(line.RequiresShipping)},
				{Name: "external_item_id", Value: lineID},
				{Name: "final_sale", Value: strconv.FormatBool(finalSale)},
			}
			totals.Add(units[i].Price.ItemPrice)
			totals.Sub(units[i].DiscountTotal())
			if !order.TaxesIncluded {
				totals.Add(units[i].TaxTotal())
			}
		}
		out.items = append(out.items, units...)
	}
	return out, nil
}

// productID maps gift cards to the configured physical or electronic product.
func (t *Transformer) productID(line *types.OrderLine) (string, bool) {
	prefix := t.cfg.GiftCard.SkuPrefix
	isGiftCard := line.IsGiftCard || (prefix != "" && strings.HasPrefix(strings.ToLower(line.Sku), prefix))
	switch {
	case isGiftCard && line.RequiresShipping:
		return t.cfg.GiftCard.Physical, true
	case isGiftCard:
		return t.cfg.GiftCard.Electronic, true
	}
	return line.Sku, false
}

// Descriptors turns discount allocations into descriptors scoped by target
// selection. Applications without code, title or description use fallbackRef.
func Descriptors(allocations []types.DiscountAllocation, fallbackRef string) []discounts.Descriptor {
	descriptors := make([]discounts.Descriptor, 0, len(allocations))
	for _, allocation := range allocations {
		application := allocation.DiscountApplication
		amount := allocation.AllocatedAmount.Amount()
		d := discounts.Descriptor{
			Type:          model.DiscountTypeFixed,
			OriginalValue: amount,
			Scope:         discounts.ScopeOrder,
			CouponCode:    application.Code,
			Description:   application.Description,
			Ref:           application.Ref(),
			Amount:        amount,
		}
		if d.Ref == "" {
			d.Ref = fallbackRef
		}
		if application.Value.IsPercentage() {
			d.Type = model.DiscountTypePercentage
			d.OriginalValue = *application.Value.Percentage
		}
		if application.IsItemLevel() {
			d.Scope = discounts.ScopeItem
		}
		descriptors = append(descriptors, d)
	}
	return descriptors
}

// Explode turns a line into one item per unit. Every tax line and discount
// adjustment is split in cents so the units add up to the line exactly.
func Explode(line *types.OrderLine, itemDiscount, orderDiscount []model.DiscountInfo) ([]model.Item, error) {
	taxSplits := make([]money.Split, len(line.TaxLines))
	for i, tax := range line.TaxLines {
		split, err := money.EvenSplit(money.ToMinor(tax.Price.Amount()), line.Quantity)
		if err != nil {
			return nil, err
		}
		taxSplits[i] = split
	}
	itemSplits, err := discountSplits(itemDiscount, line.Quantity)
	if err != nil {
		return nil, err
	}
	orderSplits, err := discountSplits(orderDiscount, line.Quantity)
	if err != nil {
		return nil, err
	}

	price := line.UnitPrice.Amount()
	units := make([]model.Item, line.Quantity)
	for q := range units {
		taxLines := make([]model.TaxLine, len(line.TaxLines))
		for i, tax := range line.TaxLines {
			taxLines[i] = model.TaxLine{
				Amount: money.FromMinor(taxSplits[i].At(q)),
				Rate:   tax.Rate,
				Name:   tax.Title,
			}
		}
		units[q].Price = model.ItemPrice{
			ItemPrice:             price,
			ItemListPrice:         price,
			ItemTaxLines:          taxLines,
			ItemDiscountInfo:      unitDiscounts(itemDiscount, itemSplits, q),
			ItemOrderDiscountInfo: unitDiscounts(orderDiscount, orderSplits, q),
		}
	}
	return units, nil
}

func discountSplits(infos []model.DiscountInfo, quantity int) ([]money.Split, error) {
	splits := make([]money.Split, len(infos))
	for i, info := range infos {
		split, err := money.EvenSplit(money.ToMinor(info.PriceAdjustment), quantity)
		if err != nil {
			return nil, err
		}
		splits[i] = split
	}
	return splits, nil
}

func unitDiscounts(infos []model.DiscountInfo, splits []money.Split, q int) []model.DiscountInfo {
	if len(infos) == 0 {
		return nil
	}
	out := make([]model.DiscountInfo, len(infos))
	for i, info := range infos {
		out[i] = info
		out[i].PriceAdjustment = money.FromMinor(splits[i].At(q))
	}
	return out
}

func discountTotal(infos []model.DiscountInfo) decimal.Decimal {
	total := decimal.Zero
	for _, info := range infos {
		total = total.Add(info.PriceAdjustment)
	}
	return total
}

func (t *Transformer) shippingOption(order *types.Order) *model.ShippingOption {
	if order.ShippingLines.Length() == 0 {
		t.logger.Warn("Order has no shipping lines, using default shipping")
		return &model.ShippingOption{
			ServiceLevelIdentifier: t.cfg.ServiceLevel("default", "default"),
			Price:                  decimal.Zero,
			Tax:                    decimal.Zero,
		}
	}
	line := order.ShippingLines.Get(0)
	option := &model.ShippingOption{
		ServiceLevelIdentifier: t.cfg.ServiceLevel(line.Code, line.Title),
		DisplayName:            line.Title,
		ShippingCarrierName:    line.CarrierIdentifier,
		Price:                  line.Price.Amount(),
		Tax:                    decimal.Zero,
	}
	if order.ShippingAddress != nil {
		option.CountryCode = order.ShippingAddress.CountryCode
		option.ZipCode = order.ShippingAddress.Zip
	}
	for _, tax := range line.TaxLines {
		option.Tax = option.Tax.Add(tax.Price.Amount())
	}
	option.Tax = money.Round2(option.Tax)

	if len(line.DiscountAllocations) > 0 {
		allocation := line.DiscountAllocations[0]
		option.DiscountInfo = []model.DiscountInfo{{
			DiscountRef:     shippingDiscountRef,
			CouponCode:      allocation.DiscountApplication.Code,
			Type:            model.DiscountTypeFixed,
			OriginalValue:   option.Price,
			PriceAdjustment: allocation.AllocatedAmount.Amount(),
		}}
	}
	return option
}

// PaymentMethod maps a Shopify gateway to a NewStore payment method.
func PaymentMethod(gateway string) string {
	switch gateway {
	case gatewayShopifyPayments:
		return model.MethodCreditCard
	case gatewayCashOnDelivery:
		return model.MethodCash
	}
	return gateway
}

// payments keeps successful sales and authorizations that were not refunded.
func (t *Transformer) payments(order *types.Order, externalID string) []model.Payment {
	refunded := order.RefundedTransactionIds()
	orderID := ""
	if order.Id != nil {
		orderID = *order.Id
	}
	payments := []model.Payment{}
	for i := range order.Transactions {
		tx := &order.Transactions[i]
		if tx.Kind != types.TransactionKindSale && tx.Kind != types.TransactionKindAuthorization {
			continue
		}
		if !tx.IsSuccessful() || tx.Id == nil || refunded[*tx.Id] {
			continue
		}
		method := PaymentMethod(tx.Gateway)
		metadata := map[string]any{
			"external_order_id": externalID,
			"shopify_order_id":  orderID,
			"channel":           t.cfg.ShopifyChannel,
			"transaction_id":    *tx.Id,
		}
		if tx.PaymentDetails != nil {
			metadata["company"] = tx.PaymentDetails.Company
			metadata["number"] = tx.PaymentDetails.Number
		}
		if method == model.MethodGiftCard {
			metadata["number"] = tx.GiftCardLastCharacters()
		}
		processedAt := tx.CreatedAt
		payments = append(payments, model.Payment{
			Processor:      t.cfg.ShopifyProcessor,
			CorrelationRef: *tx.Id,
			Type:           paymentAuthorized,
			Amount:         tx.AmountSet.Amount(),
			Method:         method,
			ProcessedAt:    &processedAt,
			Metadata:       metadata,
		})
	}
	return payments
}

func (t *Transformer) extendedAttributes(order *types.Order, externalID string) []model.ExtendedAttribute {
	orderID := ""
	if order.Id != nil {
		orderID = *order.Id
	}
	return []model.ExtendedAttribute{
		{Name: "external_order_id", Value: externalID},
		{Name: "external_shop", Value: t.cfg.Shop},
		{Name: "order_id", Value: orderID},
		{Name: "ext_channel_name", Value: t.cfg.ShopifyChannel},
		{Name: "is_historical", Value: "False"},
		{Name: "order_memo", Value: order.CustomAttribute("order_memo")},
	}
}

func priceMethod(order *types.Order) string {
	if order.TaxesIncluded {
		return model.PriceMethodTaxIncluded
	}
	return model.PriceMethodTaxExcluded
}

func blacklist(order *types.Order) []string {
	if order.ShippingLines.Length() > 0 {
		if pickup, _ := helpers.StringInSlice(order.ShippingLines.Get(0).Code, pickupCodes); pickup {
			return pickupBlacklist
		}
	}
	return defaultOrderBlacklist
}

func address(a *types.Address) *model.Address {
	if a == nil {
		return nil
	}
	city := a.City
	if runes := []rune(city); len(runes) > cityLimit {
		city = string(runes[:cityLimit])
	}
	return &model.Address{
		FirstName:   a.FirstName,
		LastName:    a.LastName,
		Phone:       a.Phone,
		Country:     a.CountryCode,
		ZipCode:     a.Zip,
		City:        city,
		State:       a.ProvinceCode,
		AddressLine: a.Address1,
		AddressExt:  a.Address2,
	}
}
