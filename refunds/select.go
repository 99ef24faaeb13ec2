package refunds

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/wilsonwei2/CICD-From-RICKY-sub000/model"
)

const (
	// IssueWindow is how close an issued store credit or gift card must be to the return.
	IssueWindow = 5 * time.Second
	// missingCreatedAt stands in for transactions without a creation time,
	// which keeps them outside IssueWindow.
	missingCreatedAt = 1000 * time.Second
)

func offset(tx model.RefundTransaction, reference *time.Time) time.Duration {
	if tx.CreatedAt == nil || reference == nil {
		return missingCreatedAt
	}
	return tx.CreatedAt.Sub(*reference)
}

func abs(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// Matches reports whether tx belongs to the return ev.
func Matches(tx model.RefundTransaction, ev *model.ReturnEvent) bool {
	if (tx.Reason == model.ReasonRefund || tx.Reason == model.ReasonIssue) && tx.CorrelationID == ev.ID {
		return true
	}
	if tx.Reason != model.ReasonIssue {
		return false
	}
	if tx.PaymentMethod != model.MethodStoreCredit && tx.PaymentMethod != model.MethodGiftCard {
		return false
	}
	return abs(offset(tx, ev.ReferenceTime())) <= IssueWindow
}

// Select walks every original transaction of every instrument in order and
// keeps the ones that belong to ev. Transactions without a currency take
// the currency of their instrument.
func Select(instruments []model.PaymentInstrument, ev *model.ReturnEvent) []model.RefundTransaction {
	var selected []model.RefundTransaction
	for _, instrument := range instruments {
		for _, tx := range instrument.OriginalTransactions {
			if !Matches(tx, ev) {
				continue
			}
			if tx.Currency == "" {
				tx.Currency = instrument.Currency
			}
			selected = append(selected, tx)
		}
	}
	return selected
}

// Amount is the refund amount for refunds and for transactions that never
// captured anything, the captured amount otherwise.
func Amount(tx model.RefundTransaction) decimal.Decimal {
	if tx.Reason == model.ReasonRefund || tx.CaptureAmount.IsZero() {
		return tx.RefundAmount
	}
	return tx.CaptureAmount
}
