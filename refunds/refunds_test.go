package refunds

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wilsonwei2/CICD-From-RICKY-sub000/common"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/config"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/model"
)

const paymentItemsJSON = `{
	"credit_card": {"adyen": {"usd": 101}, "usd": 100},
	"gift_card": {"usd": 201},
	"store_credit": 301
}`

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func at(s string) *time.Time {
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &ts
}

func newMatcher(t *testing.T, opts ...Option) *Matcher {
	t.Helper()
	cfg := config.Default()
	require.NoError(t, json.Unmarshal([]byte(paymentItemsJSON), &cfg.PaymentItems))
	return NewMatcher(&cfg, zap.NewNop(), opts...)
}

func TestSelect_CorrelationScenario(t *testing.T) {
	ev := &model.ReturnEvent{ID: "R1", Currency: "USD", TotalRefundAmount: d("40.00")}
	instruments := []model.PaymentInstrument{{
		ID:       "P1",
		Currency: "USD",
		OriginalTransactions: []model.RefundTransaction{
			{TransactionID: "T1", Reason: model.ReasonCapture, CaptureAmount: d("100"), PaymentMethod: model.MethodCreditCard},
			{TransactionID: "T2", Reason: model.ReasonRefund, CorrelationID: "R1", RefundAmount: d("-40"), PaymentMethod: model.MethodCreditCard},
		},
	}}

	selected := Select(instruments, ev)
	require.Len(t, selected, 1)
	assert.Equal(t, "T2", selected[0].TransactionID)
	assert.Equal(t, "USD", selected[0].Currency)
	assert.NoError(t, VerifyTransactions(selected, ev.TotalRefundAmount, DefaultTolerance))
}

func TestMatches(t *testing.T) {
	returned := at("2024-05-01T12:00:00Z")
	tests := []struct {
		Title    string
		Tx       model.RefundTransaction
		Event    model.ReturnEvent
		Expected bool
	}{
		{
			Title:    "refund with correlation id",
			Tx:       model.RefundTransaction{Reason: model.ReasonRefund, CorrelationID: "R1"},
			Event:    model.ReturnEvent{ID: "R1"},
			Expected: true,
		},
		{
			Title:    "issue with correlation id",
			Tx:       model.RefundTransaction{Reason: model.ReasonIssue, CorrelationID: "R1", PaymentMethod: model.MethodCreditCard},
			Event:    model.ReturnEvent{ID: "R1"},
			Expected: true,
		},
		{
			Title: "refund of another return",
			Tx:    model.RefundTransaction{Reason: model.ReasonRefund, CorrelationID: "R2"},
			Event: model.ReturnEvent{ID: "R1"},
		},
		{
			Title: "capture with correlation id",
			Tx:    model.RefundTransaction{Reason: model.ReasonCapture, CorrelationID: "R1"},
			Event: model.ReturnEvent{ID: "R1"},
		},
		{
			Title:    "store credit issued five seconds after return",
			Tx:       model.RefundTransaction{Reason: model.ReasonIssue, PaymentMethod: model.MethodStoreCredit, CreatedAt: at("2024-05-01T12:00:05Z")},
			Event:    model.ReturnEvent{ID: "R1", ReturnedAt: returned},
			Expected: true,
		},
		{
			Title:    "gift card issued before return",
			Tx:       model.RefundTransaction{Reason: model.ReasonIssue, PaymentMethod: model.MethodGiftCard, CreatedAt: at("2024-05-01T11:59:57Z")},
			Event:    model.ReturnEvent{ID: "R1", ReturnedAt: returned},
			Expected: true,
		},
		{
			Title: "store credit six seconds away",
			Tx:    model.RefundTransaction{Reason: model.ReasonIssue, PaymentMethod: model.MethodStoreCredit, CreatedAt: at("2024-05-01T12:00:06Z")},
			Event: model.ReturnEvent{ID: "R1", ReturnedAt: returned},
		},
		{
			Title:    "falls back to requested at",
			Tx:       model.RefundTransaction{Reason: model.ReasonIssue, PaymentMethod: model.MethodStoreCredit, CreatedAt: at("2024-05-01T10:00:01Z")},
			Event:    model.ReturnEvent{ID: "R1", RequestedAt: at("2024-05-01T10:00:00Z")},
			Expected: true,
		},
		{
			Title: "missing created at is never close",
			Tx:    model.RefundTransaction{Reason: model.ReasonIssue, PaymentMethod: model.MethodStoreCredit},
			Event: model.ReturnEvent{ID: "R1", ReturnedAt: returned},
		},
		{
			Title: "credit card issue by time only",
			Tx:    model.RefundTransaction{Reason: model.ReasonIssue, PaymentMethod: model.MethodCreditCard, CreatedAt: returned},
			Event: model.ReturnEvent{ID: "R1", ReturnedAt: returned},
		},
	}
	for _, tt := range tests {
		t.Run(tt.Title, func(t *testing.T) {
			if got := Matches(tt.Tx, &tt.Event); got != tt.Expected {
				t.Fatalf("expected %v, got %v", tt.Expected, got)
			}
		})
	}
}

func TestAmount(t *testing.T) {
	assert.Equal(t, "-40", Amount(model.RefundTransaction{Reason: model.ReasonRefund, RefundAmount: d("-40"), CaptureAmount: d("100")}).String())
	assert.Equal(t, "25", Amount(model.RefundTransaction{Reason: model.ReasonIssue, RefundAmount: d("25")}).String())
	assert.Equal(t, "30", Amount(model.RefundTransaction{Reason: model.ReasonIssue, RefundAmount: d("25"), CaptureAmount: d("30")}).String())
}

func TestIsClose(t *testing.T) {
	tests := []struct {
		Title    string
		A, B     string
		Expected bool
	}{
		{Title: "equal", A: "40.00", B: "40.00", Expected: true},
		{Title: "within one percent", A: "99.00", B: "100.00", Expected: true},
		{Title: "just outside", A: "98.99", B: "100.00", Expected: false},
		{Title: "symmetric", A: "100.00", B: "99.00", Expected: true},
		{Title: "zero against zero", A: "0", B: "0", Expected: true},
		{Title: "zero against amount", A: "0", B: "0.01", Expected: false},
	}
	for _, tt := range tests {
		t.Run(tt.Title, func(t *testing.T) {
			if got := IsClose(d(tt.A), d(tt.B), DefaultTolerance); got != tt.Expected {
				t.Fatalf("expected %v, got %v", tt.Expected, got)
			}
		})
	}
}

func TestIsClose_Symmetric(t *testing.T) {
	properties := gopter.NewProperties(nil)
	properties.Property("IsClose(a, b) == IsClose(b, a)", prop.ForAll(
		func(a, b int64) bool {
			x, y := decimal.New(a, -2), decimal.New(b, -2)
			return IsClose(x, y, DefaultTolerance) == IsClose(y, x, DefaultTolerance)
		},
		gen.Int64Range(-1_000_000, 1_000_000),
		gen.Int64Range(-1_000_000, 1_000_000),
	))
	properties.TestingRun(t)
}

func TestGiftCardCode(t *testing.T) {
	assert.Equal(t, "4321", GiftCardCode(model.RefundTransaction{Metadata: map[string]any{"number": "XXXX-9876-4321"}}))
	assert.Equal(t, "5678", GiftCardCode(model.RefundTransaction{Metadata: map[string]any{"gift_card_number": float64(12345678)}}))
	assert.Equal(t, "123", GiftCardCode(model.RefundTransaction{Metadata: map[string]any{"number": "123"}}))
	assert.Equal(t, "", GiftCardCode(model.RefundTransaction{}))
}

func TestGiftCardCode_LongNumber(t *testing.T) {
	var tx model.RefundTransaction
	require.NoError(t, json.Unmarshal([]byte(`{"transaction_id":"T1","metadata":{"number":6006491234567890123}}`), &tx))
	assert.Equal(t, "0123", GiftCardCode(tx))

	var instrument model.PaymentInstrument
	require.NoError(t, json.Unmarshal([]byte(`{"original_transactions":[{"metadata":{"gift_card_number":6006491234567899876}}]}`), &instrument))
	assert.Equal(t, "9876", GiftCardCode(instrument.OriginalTransactions[0]))
}

func TestPaymentItems(t *testing.T) {
	var table config.PaymentItemTable
	require.NoError(t, json.Unmarshal([]byte(paymentItemsJSON), &table))

	items, err := PaymentItems(table, []model.RefundTransaction{
		{TransactionID: "T1", Reason: model.ReasonRefund, PaymentMethod: model.MethodCreditCard, PaymentProvider: "adyen", Currency: "USD", RefundAmount: d("-10")},
		{TransactionID: "T2", Reason: model.ReasonRefund, PaymentMethod: model.MethodCreditCard, PaymentProvider: "stripe", Currency: "USD", RefundAmount: d("-5")},
		{TransactionID: "T3", Reason: model.ReasonIssue, PaymentMethod: model.MethodGiftCard, Currency: "USD", RefundAmount: d("20"), Metadata: map[string]any{"number": "GC00001234"}},
	})
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "101", items[0].ItemID)
	assert.Equal(t, "100", items[1].ItemID)
	assert.Equal(t, "201", items[2].ItemID)
	assert.Equal(t, "1234", items[2].GiftCardCode)
	assert.Empty(t, items[0].GiftCardCode)

	_, err = PaymentItems(table, []model.RefundTransaction{
		{TransactionID: "T4", Reason: model.ReasonRefund, PaymentMethod: "paypal", Currency: "USD", RefundAmount: d("-5")},
	})
	assert.ErrorIs(t, err, common.ErrUnmappedPaymentMethod)
	assert.ErrorIs(t, err, common.ErrUnmappedConfiguration)
	assert.True(t, common.IsFatal(err))
}

func TestBuild(t *testing.T) {
	instruments := []model.PaymentInstrument{{
		ID:              "P1",
		Currency:        "USD",
		PaymentMethod:   model.MethodCreditCard,
		PaymentProvider: "adyen",
		OriginalTransactions: []model.RefundTransaction{
			{TransactionID: "T1", Reason: model.ReasonCapture, PaymentMethod: model.MethodCreditCard, PaymentProvider: "adyen", CaptureAmount: d("100")},
			{TransactionID: "T2", Reason: model.ReasonRefund, PaymentMethod: model.MethodCreditCard, PaymentProvider: "adyen", CorrelationID: "R1", RefundAmount: d("-40")},
		},
	}}

	t.Run("matching totals", func(t *testing.T) {
		refund, err := newMatcher(t).Build(&model.ReturnEvent{ID: "R1", Currency: "USD", TotalRefundAmount: d("40.00")}, instruments)
		require.NoError(t, err)
		require.Len(t, refund.PaymentItems, 1)
		assert.Equal(t, "101", refund.PaymentItems[0].ItemID)
		assert.Equal(t, "T2", refund.PaymentItems[0].TransactionID)
		assert.Empty(t, refund.Mismatch)
	})

	t.Run("mismatch is reported", func(t *testing.T) {
		refund, err := newMatcher(t).Build(&model.ReturnEvent{ID: "R1", Currency: "USD", TotalRefundAmount: d("50.00")}, instruments)
		require.ErrorIs(t, err, common.ErrRefundAmountMismatch)
		assert.False(t, common.IsFatal(err))
		require.NotNil(t, refund)
		assert.Len(t, refund.PaymentItems, 1)
	})

	t.Run("mismatch ignored", func(t *testing.T) {
		refund, err := newMatcher(t, IgnoreMismatch(true)).Build(&model.ReturnEvent{ID: "R1", Currency: "USD", TotalRefundAmount: d("50.00")}, instruments)
		require.NoError(t, err)
		assert.Contains(t, refund.Mismatch, "refund total 50.00, refunded total 40.00")
	})

	t.Run("appeasement without transactions", func(t *testing.T) {
		refund, err := newMatcher(t).Build(&model.ReturnEvent{ID: "A1", Currency: "USD", TotalRefundAmount: d("15.00"), Appeasement: true}, instruments)
		require.NoError(t, err)
		assert.Empty(t, refund.Transactions)
		assert.Empty(t, refund.PaymentItems)
	})

	t.Run("no transactions for a return", func(t *testing.T) {
		_, err := newMatcher(t).Build(&model.ReturnEvent{ID: "R9", Currency: "USD", TotalRefundAmount: d("15.00")}, instruments)
		assert.ErrorIs(t, err, common.ErrRefundAmountMismatch)
	})

	t.Run("unmapped method is fatal", func(t *testing.T) {
		cash := []model.PaymentInstrument{{
			Currency: "USD",
			OriginalTransactions: []model.RefundTransaction{
				{TransactionID: "T5", Reason: model.ReasonRefund, PaymentMethod: model.MethodCash, CorrelationID: "R1", RefundAmount: d("-40")},
			},
		}}
		refund, err := newMatcher(t).Build(&model.ReturnEvent{ID: "R1", Currency: "USD", TotalRefundAmount: d("40.00")}, cash)
		assert.Nil(t, refund)
		assert.ErrorIs(t, err, common.ErrUnmappedPaymentMethod)
	})

	t.Run("invalid event", func(t *testing.T) {
		_, err := newMatcher(t).Build(&model.ReturnEvent{TotalRefundAmount: d("40.00")}, instruments)
		require.ErrorIs(t, err, common.ErrDataCompleteness)
		assert.Contains(t, err.Error(), "id")
		assert.Contains(t, err.Error(), "currency")
	})
}

func TestVerifyPayments(t *testing.T) {
	items := []model.PaymentItem{{Amount: d("-20.004")}, {Amount: d("20")}}
	assert.NoError(t, VerifyPayments(items, d("40"), DefaultTolerance))
	err := VerifyPayments(items, d("45"), DefaultTolerance)
	assert.True(t, errors.Is(err, common.ErrRefundAmountMismatch))
}
