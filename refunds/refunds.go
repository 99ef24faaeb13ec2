package refunds

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/wilsonwei2/CICD-From-RICKY-sub000/common"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/config"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/model"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		return name
	})
	return v
}

func ValidateEvent(ev *model.ReturnEvent) error {
	err := validate.Struct(ev)
	if err == nil {
		return nil
	}
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return fmt.Errorf("invalid return event: %w", err)
	}
	fields := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		fields = append(fields, fe.Field())
	}
	return fmt.Errorf("invalid return event: %w", common.MissingField(strings.Join(fields, ", ")))
}

type Matcher struct {
	table          config.PaymentItemTable
	tolerance      decimal.Decimal
	ignoreMismatch bool
	logger         *zap.Logger
}

type Option func(*Matcher)

// IgnoreMismatch keeps a refund whose totals disagree, recording the mismatch on it.
func IgnoreMismatch(ignore bool) Option {
	return func(m *Matcher) {
		m.ignoreMismatch = ignore
	}
}

func Tolerance(tolerance decimal.Decimal) Option {
	return func(m *Matcher) {
		m.tolerance = tolerance
	}
}

func NewMatcher(cfg *config.Config, logger *zap.Logger, opts ...Option) *Matcher {
	m := &Matcher{
		table:          cfg.PaymentItems,
		tolerance:      cfg.RefundTolerance,
		ignoreMismatch: cfg.IgnoreRefundMismatch,
		logger:         logger,
	}
	if m.tolerance.IsZero() {
		m.tolerance = DefaultTolerance
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Build selects the transactions of ev, maps them to payment items and checks
// both against the declared refund total.
//
// Unmapped payment methods and invalid events fail without a refund. A total
// mismatch returns the refund together with an ErrRefundAmountMismatch error,
// unless mismatches are ignored. Appeasements without linked transactions are
// returned empty.
func (m *Matcher) Build(ev *model.ReturnEvent, instruments []model.PaymentInstrument) (*model.Refund, error) {
	if err := ValidateEvent(ev); err != nil {
		return nil, err
	}
	logger := m.logger.With(zap.String("return_id", ev.ID), zap.String("order_id", ev.OrderID))

	txs := Select(instruments, ev)
	logger.Info("Selected refund transactions", zap.Int("count", len(txs)))

	refund := &model.Refund{
		ReturnID:     ev.ID,
		OrderID:      ev.OrderID,
		Currency:     ev.Currency,
		Total:        ev.TotalRefundAmount,
		Transactions: txs,
		PaymentItems: []model.PaymentItem{},
	}
	if len(txs) == 0 && ev.Appeasement {
		logger.Info("Appeasement without linked transactions")
		return refund, nil
	}

	items, err := PaymentItems(m.table, txs)
	if err != nil {
		return nil, err
	}
	refund.PaymentItems = items

	err = errors.Join(
		VerifyTransactions(txs, ev.TotalRefundAmount, m.tolerance),
		VerifyPayments(items, ev.TotalRefundAmount, m.tolerance),
	)
	if err == nil {
		return refund, nil
	}
	if m.ignoreMismatch {
		refund.Mismatch = err.Error()
		logger.Warn("Ignoring refund amount mismatch", zap.Error(err))
		return refund, nil
	}
	logger.Error("Refund amount mismatch", zap.Error(err))
	return refund, err
}
