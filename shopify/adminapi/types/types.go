package types

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Edges[T any] struct {
	Edges []Edge[T] `json:"edges"`
}

func (e *Edges[T]) Length() int {
	return len(e.Edges)
}
func (e *Edges[T]) Get(i int) *T {
	return &e.Edges[i].Node
}
func (e *Edges[T]) GetCursor(i int) *string {
	return e.Edges[i].Cursor
}
func (e *Edges[T]) Iter(yield func(int, *T) bool) {
	for i := range e.Edges {
		if !yield(i, &e.Edges[i].Node) {
			return
		}
	}
}

type Edge[T any] struct {
	Cursor *string `json:"cursor"`
	Node   T       `json:"node"`
}

type Identifiable struct {
	Id *string `json:"id"`
}

type KeyVal struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type Money struct {
	AmountString string `json:"amount"`
	CurrencyCode string `json:"currencyCode"`
}

func (m *Money) Amount() decimal.Decimal {
	if m.AmountString != "" {
		amount, err := decimal.NewFromString(m.AmountString)
		if err == nil {
			return amount
		}
	}
	return decimal.Zero
}

type MoneyBag struct {
	ShopMoney        Money `json:"shopMoney"`
	PresentmentMoney Money `json:"presentmentMoney"`
}

func (m *MoneyBag) Amount() decimal.Decimal {
	return m.ShopMoney.Amount()
}

type Address struct {
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Phone        string `json:"phone"`
	Address1     string `json:"address1"`
	Address2     string `json:"address2"`
	City         string `json:"city"`
	ProvinceCode string `json:"provinceCode"`
	CountryCode  string `json:"countryCodeV2"`
	Zip          string `json:"zip"`
}

type Customer struct {
	Id        *string `json:"id"`
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
}

type TaxLine struct {
	Price MoneyBag        `json:"priceSet"`
	Rate  decimal.Decimal `json:"rate"`
	Title string          `json:"title"`
}

// PricingValue is the union of MoneyV2 and PricingPercentageValue.
type PricingValue struct {
	Amount       string           `json:"amount,omitempty"`
	CurrencyCode string           `json:"currencyCode,omitempty"`
	Percentage   *decimal.Decimal `json:"percentage,omitempty"`
}

func (v *PricingValue) IsPercentage() bool {
	return v.Percentage != nil
}

const (
	TargetSelectionAll      = "ALL"
	TargetSelectionEntitled = "ENTITLED"
	TargetSelectionExplicit = "EXPLICIT"
)

type DiscountApplication struct {
	Index            int          `json:"index"`
	TargetSelection  string       `json:"targetSelection"`
	TargetType       string       `json:"targetType"`
	AllocationMethod string       `json:"allocationMethod"`
	Value            PricingValue `json:"value"`

	// Set depending on the application kind
	Code        string `json:"code,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// IsItemLevel tells whether the discount targets specific lines rather than
// the whole order.
func (d *DiscountApplication) IsItemLevel() bool {
	return d.TargetSelection == TargetSelectionEntitled || d.TargetSelection == TargetSelectionExplicit
}

// Ref is the first non-empty of code, title and description.
func (d *DiscountApplication) Ref() string {
	for _, ref := range []string{d.Code, d.Title, d.Description} {
		if ref != "" {
			return ref
		}
	}
	return ""
}

type DiscountAllocation struct {
	AllocatedAmount     MoneyBag            `json:"allocatedAmountSet"`
	DiscountApplication DiscountApplication `json:"discountApplication"`
}

type ProductVariant struct {
	Id *string `json:"id"`
}

type OrderLine struct {
	Id                  *string              `json:"id"`
	Name                string               `json:"name"`
	Sku                 string               `json:"sku"`
	Quantity            int                  `json:"quantity"`
	RequiresShipping    bool                 `json:"requiresShipping"`
	IsGiftCard          bool                 `json:"isGiftCard"`
	Variant             *ProductVariant      `json:"variant"`
	UnitPrice           MoneyBag             `json:"originalUnitPriceSet"`
	TaxLines            []TaxLine            `json:"taxLines"`
	DiscountAllocations []DiscountAllocation `json:"discountAllocations"`
}

type OrderShippingLine struct {
	Id                  *string              `json:"id"`
	Title               string               `json:"title"`
	Code                string               `json:"code"`
	Source              string               `json:"source"`
	CarrierIdentifier   string               `json:"carrierIdentifier"`
	Price               MoneyBag             `json:"originalPriceSet"`
	TaxLines            []TaxLine            `json:"taxLines"`
	DiscountAllocations []DiscountAllocation `json:"discountAllocations"`
}

const (
	TransactionKindAuthorization = "AUTHORIZATION"
	TransactionKindCapture       = "CAPTURE"
	TransactionKindSale          = "SALE"
	TransactionKindRefund        = "REFUND"
	TransactionKindVoid          = "VOID"

	TransactionStatusSuccess = "SUCCESS"
)

type PaymentDetails struct {
	Company string `json:"company,omitempty"`
	Number  string `json:"number,omitempty"`
}

type OrderTransaction struct {
	Id                *string         `json:"id"`
	Kind              string          `json:"kind"`
	Status            string          `json:"status"`
	Gateway           string          `json:"gateway"`
	CreatedAt         time.Time       `json:"createdAt"`
	ReceiptJson       string          `json:"receiptJson"`
	AmountSet         MoneyBag        `json:"amountSet"`
	ParentTransaction *Identifiable   `json:"parentTransaction"`
	PaymentDetails    *PaymentDetails `json:"paymentDetails"`
}

func (t *OrderTransaction) IsSuccessful() bool {
	return strings.EqualFold(t.Status, TransactionStatusSuccess)
}

// GiftCardLastCharacters reads the masked gift card code from the receipt.
func (t *OrderTransaction) GiftCardLastCharacters() string {
	if t.ReceiptJson == "" {
		return ""
	}
	var receipt struct {
		GiftCardLastCharacters string `json:"gift_card_last_characters"`
	}
	if err := json.Unmarshal([]byte(t.ReceiptJson), &receipt); err != nil {
		return ""
	}
	return receipt.GiftCardLastCharacters
}

type Order struct {
	Id               *string                  `json:"id"`
	Name             string                   `json:"name"`
	Email            string                   `json:"email"`
	CreatedAt        time.Time                `json:"createdAt"`
	ProcessedAt      time.Time                `json:"processedAt"`
	CurrencyCode     string                   `json:"currencyCode"`
	TaxesIncluded    bool                     `json:"taxesIncluded"`
	Tags             []string                 `json:"tags"`
	Customer         *Customer                `json:"customer"`
	CustomAttributes []KeyVal                 `json:"customAttributes"`
	BillingAddress   *Address                 `json:"billingAddress"`
	ShippingAddress  *Address                 `json:"shippingAddress"`
	Lines            Edges[OrderLine]         `json:"lineItems"`
	ShippingLines    Edges[OrderShippingLine] `json:"shippingLines"`
	Transactions     []OrderTransaction       `json:"transactions"`
}

func (o *Order) CustomAttribute(key string) string {
	for _, attr := range o.CustomAttributes {
		if attr.Key == key {
			return attr.Value
		}
	}
	return ""
}

func (o *Order) HasTag(tag string) bool {
	for _, t := range o.Tags {
		if strings.EqualFold(strings.TrimSpace(t), tag) {
			return true
		}
	}
	return false
}

// RefundedTransactionIds lists the transactions a successful refund points to.
func (o *Order) RefundedTransactionIds() map[string]bool {
	refunded := map[string]bool{}
	for _, t := range o.Transactions {
		if t.Kind == TransactionKindRefund && t.IsSuccessful() && t.ParentTransaction != nil && t.ParentTransaction.Id != nil {
			refunded[*t.ParentTransaction.Id] = true
		}
	}
	return refunded
}
