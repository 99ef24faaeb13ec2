package model

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	ReasonRefund  = "refund"
	ReasonIssue   = "issue"
	ReasonCapture = "capture"

	MethodCreditCard  = "credit_card"
	MethodGiftCard    = "gift_card"
	MethodStoreCredit = "store_credit"
	MethodCash        = "cash"
)

type RefundTransaction struct {
	TransactionID   string          `json:"transaction_id"`
	Reason          string          `json:"reason"`
	PaymentMethod   string          `json:"payment_method"`
	PaymentProvider string          `json:"payment_provider"`
	CaptureAmount   decimal.Decimal `json:"capture_amount"`
	RefundAmount    decimal.Decimal `json:"refund_amount"`
	Currency        string          `json:"currency"`
	CorrelationID   string          `json:"correlation_id"`
	CreatedAt       *time.Time      `json:"created_at"`
	Metadata        map[string]any  `json:"metadata,omitempty"`
}

// UnmarshalJSON keeps numeric metadata as json.Number so long gift card
// numbers survive decoding.
func (t *RefundTransaction) UnmarshalJSON(data []byte) error {
	type plain RefundTransaction
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode((*plain)(t))
}

type PaymentInstrument struct {
	ID                   string              `json:"id"`
	Currency             string              `json:"currency"`
	PaymentMethod        string              `json:"payment_method"`
	PaymentProvider      string              `json:"payment_provider"`
	OriginalTransactions []RefundTransaction `json:"original_transactions"`
}

type ReturnEvent struct {
	ID                string          `json:"id" validate:"required"`
	OrderID           string          `json:"order_id"`
	RequestedAt       *time.Time      `json:"requested_at"`
	ReturnedAt        *time.Time      `json:"returned_at"`
	TotalRefundAmount decimal.Decimal `json:"total_refund_amount"`
	Currency          string          `json:"currency" validate:"required"`
	ReturnLocationID  string          `json:"return_location_id"`
	Appeasement       bool            `json:"appeasement,omitempty"`
}

// ReferenceTime is the moment refunds are matched against: the return
// completion, or the request time while the return is still open.
func (r *ReturnEvent) ReferenceTime() *time.Time {
	if r.ReturnedAt != nil {
		return r.ReturnedAt
	}
	return r.RequestedAt
}

// PaymentItem is one payment line of the ERP refund document.
type PaymentItem struct {
	ItemID        string          `json:"item_id"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
	Provider      string          `json:"provider,omitempty"`
	GiftCardCode  string          `json:"gift_card_code,omitempty"`
	TransactionID string          `json:"transaction_id"`
}

type Refund struct {
	ReturnID     string              `json:"return_id"`
	OrderID      string              `json:"order_id,omitempty"`
	Currency     string              `json:"currency"`
	Total        decimal.Decimal     `json:"total"`
	Transactions []RefundTransaction `json:"transactions"`
	PaymentItems []PaymentItem       `json:"payment_items"`
	Mismatch     string              `json:"mismatch,omitempty"`
}

type ReturnItem struct {
	ProductID    string `json:"product_id"`
	ReturnReason string `json:"return_reason"`
	ReturnCode   int    `json:"return_code"`
}

type ReturnRequest struct {
	IsHistorical bool         `json:"is_historical"`
	ReturnedAt   string       `json:"returned_at"`
	ReturnedFrom string       `json:"returned_from"`
	Items        []ReturnItem `json:"items"`
}

// Return is a historical return ready for injection, one item per returned unit.
type Return struct {
	RmaID   string        `json:"rma_id"`
	OrderID string        `json:"order_id"`
	Return  ReturnRequest `json:"return"`
}

// RefundRequest carries a return event with the payment instruments of its order.
type RefundRequest struct {
	Return      ReturnEvent         `json:"return"`
	Instruments []PaymentInstrument `json:"instruments"`
}
