package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	DiscountTypeFixed      = "fixed"
	DiscountTypePercentage = "percentage"

	PriceMethodTaxIncluded = "tax_included"
	PriceMethodTaxExcluded = "tax_excluded"
)

type TaxLine struct {
	Amount      decimal.Decimal `json:"amount"`
	Rate        decimal.Decimal `json:"rate"`
	Name        string          `json:"name"`
	CountryCode string          `json:"country_code,omitempty"`
}

type DiscountInfo struct {
	DiscountRef     string          `json:"discount_ref"`
	Description     string          `json:"description,omitempty"`
	CouponCode      string          `json:"coupon_code,omitempty"`
	Type            string          `json:"type"`
	OriginalValue   decimal.Decimal `json:"original_value"`
	PriceAdjustment decimal.Decimal `json:"price_adjustment"`
}

type ItemPrice struct {
	ItemPrice             decimal.Decimal `json:"item_price"`
	ItemListPrice         decimal.Decimal `json:"item_list_price"`
	ItemTaxLines          []TaxLine       `json:"item_tax_lines"`
	ItemDiscountInfo      []DiscountInfo  `json:"item_discount_info,omitempty"`
	ItemOrderDiscountInfo []DiscountInfo  `json:"item_order_discount_info,omitempty"`
}

type ExtendedAttribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Item is one unit of an order line.
type Item struct {
	ExternalItemID     string              `json:"external_item_id"`
	ProductID          string              `json:"product_id"`
	Price              ItemPrice           `json:"price"`
	ExtendedAttributes []ExtendedAttribute `json:"extended_attributes,omitempty"`
}

// FirstTaxLine returns the first tax line of the item, if any.
func (i *Item) FirstTaxLine() (*TaxLine, bool) {
	if len(i.Price.ItemTaxLines) == 0 {
		return nil, false
	}
	return &i.Price.ItemTaxLines[0], true
}

func (i *Item) TaxTotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range i.Price.ItemTaxLines {
		total = total.Add(line.Amount)
	}
	return total
}

func (i *Item) DiscountTotal() decimal.Decimal {
	total := decimal.Zero
	for _, d := range i.Price.ItemDiscountInfo {
		total = total.Add(d.PriceAdjustment)
	}
	for _, d := range i.Price.ItemOrderDiscountInfo {
		total = total.Add(d.PriceAdjustment)
	}
	return total
}

type RoutingStrategy struct {
	Strategy string `json:"strategy"`
}

type ShippingOption struct {
	ServiceLevelIdentifier string           `json:"service_level_identifier"`
	ShippingType           string           `json:"shipping_type"`
	DisplayName            string           `json:"display_name"`
	ShippingCarrierName    string           `json:"shipping_carrier_name,omitempty"`
	FulfillmentNodeID      string           `json:"fulfillment_node_id,omitempty"`
	StoreID                string           `json:"store_id,omitempty"`
	RoutingStrategy        *RoutingStrategy `json:"routing_strategy,omitempty"`
	Price                  decimal.Decimal  `json:"price"`
	Tax                    decimal.Decimal  `json:"tax"`
	ZipCode                string           `json:"zip_code,omitempty"`
	CountryCode            string           `json:"country_code,omitempty"`
	DiscountInfo           []DiscountInfo   `json:"discount_info,omitempty"`
}

// Shipment carries a live shipping option, or a historical one for orders
// imported after the fact.
type Shipment struct {
	Items                    []Item          `json:"items"`
	ShippingOption           *ShippingOption `json:"shipping_option,omitempty"`
	HistoricalShippingOption *ShippingOption `json:"historical_shipping_option,omitempty"`
}

func (s *Shipment) Option() *ShippingOption {
	if s.ShippingOption != nil {
		return s.ShippingOption
	}
	return s.HistoricalShippingOption
}

type Address struct {
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Country     string `json:"country"`
	ZipCode     string `json:"zip_code,omitempty"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	AddressLine string `json:"address_line_1,omitempty"`
	AddressExt  string `json:"address_line_2,omitempty"`
}

type Payment struct {
	Processor      string          `json:"processor"`
	CorrelationRef string          `json:"correlation_ref"`
	Type           string          `json:"type"`
	Amount         decimal.Decimal `json:"amount"`
	Method         string          `json:"method"`
	Provider       string          `json:"provider,omitempty"`
	ProcessedAt    *time.Time      `json:"processed_at,omitempty"`
	Metadata       map[string]any  `json:"metadata,omitempty"`
}

type Order struct {
	ExternalID            string              `json:"external_id"`
	ShopID                string              `json:"shop"`
	StoreID               string              `json:"store_id,omitempty"`
	ChannelType           string              `json:"channel_type"`
	ChannelName           string              `json:"channel_name"`
	PlacedAt              time.Time           `json:"placed_at"`
	Currency              string              `json:"currency"`
	ShopLocale            string              `json:"shop_locale,omitempty"`
	CustomerLanguage      string              `json:"customer_language,omitempty"`
	CustomerEmail         string              `json:"customer_email,omitempty"`
	CustomerName          string              `json:"customer_name,omitempty"`
	ExternalCustomerID    string              `json:"external_customer_id,omitempty"`
	PriceMethod           string              `json:"price_method"`
	IsHistorical          bool                `json:"is_historical,omitempty"`
	IsFulfilled           bool                `json:"is_fulfilled,omitempty"`
	NotificationBlacklist []string            `json:"notification_blacklist,omitempty"`
	BillingAddress        *Address            `json:"billing_address,omitempty"`
	ShippingAddress       *Address            `json:"shipping_address,omitempty"`
	Shipments             []Shipment          `json:"shipments"`
	Payments              []Payment           `json:"payments"`
	ExtendedAttributes    []ExtendedAttribute `json:"extended_attributes,omitempty"`
}

// Items returns pointers to every unit across shipments, in shipment order.
func (o *Order) Items() []*Item {
	var items []*Item
	for s := range o.Shipments {
		for i := range o.Shipments[s].Items {
			items = append(items, &o.Shipments[s].Items[i])
		}
	}
	return items
}

func (o *Order) PaymentTotal() decimal.Decimal {
	total := decimal.Zero
	for _, p := range o.Payments {
		total = total.Add(p.Amount)
	}
	return total
}
