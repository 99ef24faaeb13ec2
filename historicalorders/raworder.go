package historicalorders

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/wilsonwei2/CICD-From-RICKY-sub000/common"
)

// Fields is one CSV row keyed by column header.
type Fields map[string]string

func (f Fields) Get(key string) string {
	return strings.TrimSpace(f[key])
}

func (f Fields) Has(key string) bool {
	return f.Get(key) != ""
}

// RawOrder is a historical order as grouped from the export CSV: the header
// row, one row per line item, and the shipping and payment rows.
type RawOrder struct {
	Details  Fields   `json:"details"`
	Items    []Fields `json:"items"`
	Shipping Fields   `json:"shipping"`
	Payment  Fields   `json:"payment"`
}

func (o *RawOrder) Name() string {
	return o.Details.Get("Name")
}

type orderHeader struct {
	Name            string `field:"Name" validate:"required"`
	Currency        string `field:"Currency" validate:"required,len=3"`
	ProcessedAt     string `field:"Processed At" validate:"required"`
	BillingCountry  string `field:"Billing Country Code" validate:"required"`
	ShippingCountry string `field:"Shipping Country Code" validate:"required"`
	PaymentAmount   string `field:"Transaction Amount" validate:"required,numeric"`
	ItemCount       int    `field:"items" validate:"min=1"`
}

type lineHeader struct {
	Sku      string `field:"Lineitem sku" validate:"required"`
	Price    string `field:"Lineitem price" validate:"required,numeric"`
	Quantity string `field:"Lineitem quantity" validate:"required,numeric"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		return field.Tag.Get("field")
	})
	return v
}

// validationError turns validator output into data completeness errors
// naming the CSV columns at fault.
func validationError(scope string, err error) error {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return fmt.Errorf("%s: %w", scope, err)
	}
	columns := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		columns = append(columns, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%s: %w", scope, common.MissingField(strings.Join(columns, ", ")))
}

func (o *RawOrder) Validate() error {
	header := orderHeader{
		Name:            o.Details.Get("Name"),
		Currency:        o.Details.Get("Currency"),
		ProcessedAt:     o.Details.Get("Processed At"),
		BillingCountry:  o.Details.Get("Billing Country Code"),
		ShippingCountry: o.Details.Get("Shipping Country Code"),
		PaymentAmount:   o.Payment.Get("Transaction Amount"),
		ItemCount:       len(o.Items),
	}
	if err := validate.Struct(header); err != nil {
		return validationError(fmt.Sprintf("order %q", header.Name), err)
	}
	for i, item := range o.Items {
		line := lineHeader{
			Sku:      item.Get("Lineitem sku"),
			Price:    item.Get("Lineitem price"),
			Quantity: item.Get("Lineitem quantity"),
		}
		if err := validate.Struct(line); err != nil {
			return validationError(fmt.Sprintf("order %q line %d", header.Name, i+1), err)
		}
	}
	return nil
}

var dateLayouts = []string{
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05 -07:00",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

func parseDate(field, value string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, common.InvalidField(field, value, nil)
}
