package returns

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/wilsonwei2/CICD-From-RICKY-sub000/common"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/config"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/model"
)

const (
	dateLayout   = "2006-01-02 15:04:05"
	returnLayout = "2006-01-02T15:04:05.000Z"
)

// Code accepts return codes exported either as JSON numbers or strings.
type Code string

func (c *Code) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Code(strings.TrimSpace(s))
		return nil
	}
	*c = Code(data)
	return nil
}

type RawItem struct {
	Sku           string `json:"sku" validate:"required"`
	ReasonComment string `json:"reason_comment"`
	ReturnCode    Code   `json:"return_code"`
	QtyReturning  int    `json:"qtyReturning" validate:"min=0"`
}

// RawReturn is one row of the returns export, with its items already decoded.
type RawReturn struct {
	RmaID            string          `json:"rma_id" validate:"required"`
	OrderIncrementID string          `json:"order_increment_id" validate:"required"`
	DateRequested    string          `json:"date_requested" validate:"required"`
	Items            []RawItem       `json:"items" validate:"required,min=1,dive"`
	ReturnedFrom     json.RawMessage `json:"returned_from,omitempty"`
}

// Location returns the fulfillment node named by returned_from, given either
// as a bare string or as an object with an id, or fallback when it names none.
func (r *RawReturn) Location(fallback string) string {
	if len(r.ReturnedFrom) == 0 {
		return fallback
	}
	var id string
	if err := json.Unmarshal(r.ReturnedFrom, &id); err == nil && strings.TrimSpace(id) != "" {
		return strings.TrimSpace(id)
	}
	var node struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(r.ReturnedFrom, &node); err == nil && strings.TrimSpace(node.ID) != "" {
		return strings.TrimSpace(node.ID)
	}
	return fallback
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		return name
	})
	return v
}

func (r *RawReturn) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return fmt.Errorf("return %s: %w", r.RmaID, err)
	}
	fields := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		fields = append(fields, fe.Namespace())
	}
	return fmt.Errorf("return %s: %w", r.RmaID, common.MissingField(strings.Join(fields, ", ")))
}

// OrderLookup resolves the NewStore order id of an external order id.
type OrderLookup interface {
	OrderID(ctx context.Context, externalID string) (string, error)
}

type Transformer struct {
	cfg    *config.Config
	orders OrderLookup
	logger *zap.Logger
}

func NewTransformer(cfg *config.Config, orders OrderLookup, logger *zap.Logger) *Transformer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transformer{cfg: cfg, orders: orders, logger: logger}
}

func (t *Transformer) Transform(ctx context.Context, raw RawReturn) (*model.Return, error) {
	if err := raw.Validate(); err != nil {
		return nil, err
	}
	returnedAt, err := FormatDate(raw.DateRequested)
	if err != nil {
		return nil, fmt.Errorf("return %s: %w", raw.RmaID, err)
	}
	orderID, err := t.orders.OrderID(ctx, raw.OrderIncrementID)
	if err != nil {
		return nil, fmt.Errorf("error looking up order %s for return %s:\n>>> %w", raw.OrderIncrementID, raw.RmaID, err)
	}

	ret := &model.Return{
		RmaID:   raw.RmaID,
		OrderID: orderID,
		Return: model.ReturnRequest{
			IsHistorical: true,
			ReturnedAt:   returnedAt,
			ReturnedFrom: raw.Location(t.cfg.DefaultFulfillmentNode),
			Items:        t.Items(raw.Items),
		},
	}
	t.logger.Info("Return transformed",
		zap.String("rma_id", raw.RmaID),
		zap.String("order_id", orderID),
		zap.Int("items", len(ret.Return.Items)),
	)
	return ret, nil
}

// Items repeats each returned product once per unit.
func (t *Transformer) Items(raw []RawItem) []model.ReturnItem {
	var items []model.ReturnItem
	for _, item := range raw {
		returned := model.ReturnItem{
			ProductID:    item.Sku,
			ReturnReason: item.ReasonComment,
			ReturnCode:   t.ReturnCode(item.ReturnCode),
		}
		if returned.ReturnReason == "" {
			returned.ReturnReason = t.cfg.ReturnReason
		}
		for range item.QtyReturning {
			items = append(items, returned)
		}
	}
	return items
}

// ReturnCode keeps configured codes and maps everything else to the default.
func (t *Transformer) ReturnCode(code Code) int {
	value, err := strconv.Atoi(string(code))
	if err != nil || !t.cfg.IsValidReturnCode(value) {
		return t.cfg.DefaultReturnCode
	}
	return value
}

// FormatDate turns "2006-01-02 15:04:05" into "2006-01-02T15:04:05.000Z".
func FormatDate(value string) (string, error) {
	parsed, err := time.Parse(dateLayout, strings.TrimSpace(value))
	if err != nil {
		return "", common.InvalidField("date_requested", value, err)
	}
	return parsed.Format(returnLayout), nil
}
