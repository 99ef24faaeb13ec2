package common

import (
	"errors"
	"fmt"
)

var (
	ErrDataCompleteness          = errors.New("required field missing or unparseable")
	ErrUnmappedConfiguration     = errors.New("no configured mapping")
	ErrUnmappedPaymentMethod     = fmt.Errorf("payment method: %w", ErrUnmappedConfiguration)
	ErrReconciliationGapTooLarge = errors.New("order total gap larger than one minor unit")
	ErrRefundAmountMismatch      = errors.New("refunded amount does not match return total")
	ErrDivisionByZero            = errors.New("division by zero")
)

// MissingField reports a required field that was absent or empty.
func MissingField(field string) error {
	return fmt.Errorf("%w: %s", ErrDataCompleteness, field)
}

// InvalidField reports a field whose value could not be parsed.
func InvalidField(field, value string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s=%q", ErrDataCompleteness, field, value)
	}
	return fmt.Errorf("%w: %s=%q\nERROR=%v", ErrDataCompleteness, field, value, err)
}

// IsFatal tells whether err must abort processing of the record instead of
// being reported alongside the produced output.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrReconciliationGapTooLarge) && !errors.Is(err, ErrRefundAmountMismatch)
}
