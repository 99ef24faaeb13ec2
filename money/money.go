package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/wilsonwei2/CICD-From-RICKY-sub000/common"
)

var (
	MinorUnit = decimal.New(1, -2)
	hundred   = decimal.NewFromInt(100)
)

// Split is the result of distributing an amount of minor units over count
// parts: LowCount parts get Low and HighCount parts get High = Low+1.
type Split struct {
	Low       int64
	High      int64
	LowCount  int
	HighCount int
}

// At returns the amount assigned to part i. The low parts come first.
func (s Split) At(i int) int64 {
	if i < s.LowCount {
		return s.Low
	}
	return s.High
}

func (s Split) Total() int64 {
	return s.Low*int64(s.LowCount) + s.High*int64(s.HighCount)
}

func EvenSplit(amount int64, count int) (Split, error) {
	if count <= 0 {
		return Split{}, fmt.Errorf("cannot split %d over %d parts: %w", amount, count, common.ErrDivisionByZero)
	}
	n := int64(count)
	low, highs := amount/n, amount%n
	if highs < 0 {
		highs += n
		low--
	}
	return Split{
		Low:       low,
		High:      low + 1,
		LowCount:  count - int(highs),
		HighCount: int(highs),
	}, nil
}

// SplitAmount distributes a currency amount over count parts exactly, cent by
// cent, in the same order as Split.At.
func SplitAmount(amount decimal.Decimal, count int) ([]decimal.Decimal, error) {
	split, err := EvenSplit(ToMinor(amount), count)
	if err != nil {
		return nil, err
	}
	parts := make([]decimal.Decimal, count)
	for i := range parts {
		parts[i] = FromMinor(split.At(i))
	}
	return parts, nil
}

// Round2 rounds half away from zero to two decimal places.
func Round2(x decimal.Decimal) decimal.Decimal {
	return x.Round(2)
}

func ToMinor(x decimal.Decimal) int64 {
	return x.Mul(hundred).Round(0).IntPart()
}

func FromMinor(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

// Div divides and rounds to two places, failing instead of panicking on a
// zero divisor.
func Div(x, y decimal.Decimal) (decimal.Decimal, error) {
	if y.IsZero() {
		return decimal.Zero, fmt.Errorf("cannot divide %s by zero: %w", x, common.ErrDivisionByZero)
	}
	return Round2(x.Div(y)), nil
}

func Sum(xs ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, x := range xs {
		total = total.Add(x)
	}
	return total
}

func ParseDecimal(field, s string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return decimal.Zero, common.MissingField(field)
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, common.InvalidField(field, s, err)
	}
	return d, nil
}

// ParseDecimalOr behaves like ParseDecimal but returns fallback for an empty value.
func ParseDecimalOr(field, s string, fallback decimal.Decimal) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return fallback, nil
	}
	return ParseDecimal(field, s)
}

// ParseQuantity accepts integral quantities written as decimals ("2.0"),
// truncating any fraction.
func ParseQuantity(field, s string) (int, error) {
	d, err := ParseDecimal(field, s)
	if err != nil {
		return 0, err
	}
	if d.IsNegative() {
		return 0, common.InvalidField(field, s, nil)
	}
	return int(d.IntPart()), nil
}
