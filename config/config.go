package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
	"github.com/shopspring/decimal"
)

type GiftCardProducts struct {
	Physical   string `json:"physical"`
	Electronic string `json:"electronic"`
	// SkuPrefix marks gift card lines sold as regular products.
	SkuPrefix string `json:"sku_prefix"`
}

type Queue struct {
	Backend        string `json:"backend" validate:"oneof=sqs rabbitmq"`
	URL            string `json:"url"`
	Exchange       string `json:"exchange"`
	RoutingKey     string `json:"routing_key"`
	MessageGroupID string `json:"message_group_id"`
}

type Tables struct {
	Orders  string `json:"orders"`
	Returns string `json:"returns"`
}

type NewStore struct {
	URL   string `json:"url"`
	Token string `json:"-"`
}

type Redis struct {
	Addr     string        `json:"addr"`
	Password string        `json:"password"`
	DB       int           `json:"db"`
	TTL      time.Duration `json:"ttl"`
}

// Config is built once per process and handed to every component that needs it.
type Config struct {
	Shop                    string   `json:"shop" validate:"required"`
	ChannelName             string   `json:"channel_name" validate:"required"`
	StoreChannelName        string   `json:"store_channel_name"`
	DefaultFulfillmentNode  string   `json:"default_fulfillment_node" validate:"required"`
	DefaultServiceLevel     string   `json:"default_service_level" validate:"required"`
	HistoricalProcessor     string   `json:"historical_processor"`
	HistoricalPaymentMethod string   `json:"historical_payment_method"`
	HistoricalCarrier       string   `json:"historical_carrier"`
	ShopifyProcessor        string   `json:"shopify_processor"`
	ShopifyChannel          string   `json:"shopify_channel"`
	ShopLocale              string   `json:"shop_locale"`
	CustomerLanguage        string   `json:"customer_language"`
	NotificationBlacklist   []string `json:"notification_blacklist"`

	PaymentItems          PaymentItemTable  `json:"payment_items"`
	GiftCard              GiftCardProducts  `json:"gift_card"`
	ShippingServiceLevels map[string]string `json:"shipping_service_levels"`

	ValidReturnCodes  []int  `json:"valid_return_codes"`
	DefaultReturnCode int    `json:"default_return_code"`
	ReturnReason      string `json:"return_reason"`

	RefundTolerance      decimal.Decimal `json:"refund_tolerance"`
	IgnoreRefundMismatch bool            `json:"ignore_refund_mismatch"`

	Queue    Queue    `json:"queue"`
	Tables   Tables   `json:"tables"`
	Redis    Redis    `json:"redis"`
	NewStore NewStore `json:"newstore"`
}

func Default() Config {
	return Config{
		Shop:                    "storefront-catalog-en",
		ChannelName:             "magento",
		StoreChannelName:        "store",
		DefaultFulfillmentNode:  "MTLDC1",
		DefaultServiceLevel:     "traditional_carrier",
		HistoricalProcessor:     "adyen_historical",
		HistoricalPaymentMethod: "historical_payment",
		HistoricalCarrier:       "historical_carrier",
		ShopifyProcessor:        "shopify",
		ShopifyChannel:          "shopify",
		ShopLocale:              "en-US",
		CustomerLanguage:        "en",
		NotificationBlacklist: []string{
			"invoice_created",
			"refund_note_created",
			"order_pending",
			"shipment_cancelled",
			"shipment_dispatched",
			"shipment_delayed",
			"order_cancelled",
			"in_store.ready_for_pick_up",
		},
		PaymentItems:          PaymentItemTable{},
		ShippingServiceLevels: map[string]string{},
		GiftCard:              GiftCardProducts{SkuPrefix: "5500000"},
		ValidReturnCodes:      []int{2864, 392, 395, 398, 401, 404},
		DefaultReturnCode:     99,
		ReturnReason:          "historical return",
		RefundTolerance:       decimal.New(1, -2),
		Queue:                 Queue{Backend: "sqs", MessageGroupID: "historical"},
		Redis:                 Redis{TTL: 24 * time.Hour},
	}
}

// Env looks a variable up the way os.LookupEnv does.
type Env func(key string) (string, bool)

var OSEnv Env = os.LookupEnv

// ParameterSource serves JSON documents by name, e.g. from a parameter store.
type ParameterSource interface {
	Parameter(ctx context.Context, name string) (string, error)
}

func (e Env) get(key string) string {
	value, _ := e(key)
	return strings.TrimSpace(value)
}

// Load starts from Default, overlays the JSON documents named by CONFIG_PARAMETER
// and PAYMENT_ITEMS_PARAMETER, then applies single-value env overrides.
func Load(ctx context.Context, env Env, source ParameterSource) (*Config, error) {
	cfg := Default()

	if name := env.get("CONFIG_PARAMETER"); name != "" {
		if err := overlay(ctx, source, name, &cfg); err != nil {
			return nil, err
		}
	}
	if name := env.get("PAYMENT_ITEMS_PARAMETER"); name != "" {
		if err := overlay(ctx, source, name, &cfg.PaymentItems); err != nil {
			return nil, err
		}
	}

	var errs *multierror.Error
	setString := func(key string, target *string) {
		if value := env.get(key); value != "" {
			*target = value
		}
	}
	setString("SHOP", &cfg.Shop)
	setString("CHANNEL_NAME", &cfg.ChannelName)
	setString("DEFAULT_FULFILLMENT_NODE", &cfg.DefaultFulfillmentNode)
	setString("QUEUE_BACKEND", &cfg.Queue.Backend)
	setString("QUEUE_URL", &cfg.Queue.URL)
	setString("RABBITMQ_EXCHANGE", &cfg.Queue.Exchange)
	setString("RABBITMQ_ROUTING_KEY", &cfg.Queue.RoutingKey)
	setString("ORDERS_TABLE", &cfg.Tables.Orders)
	setString("RETURNS_TABLE", &cfg.Tables.Returns)
	setString("REDIS_ADDR", &cfg.Redis.Addr)
	setString("REDIS_PASSWORD", &cfg.Redis.Password)
	setString("NEWSTORE_URL", &cfg.NewStore.URL)
	setString("NEWSTORE_TOKEN", &cfg.NewStore.Token)

	if value := env.get("IGNORE_REFUND_MISMATCH"); value != "" {
		ignore, err := strconv.ParseBool(value)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("IGNORE_REFUND_MISMATCH=%q: %w", value, err))
		}
		cfg.IgnoreRefundMismatch = ignore
	}
	if value := env.get("REFUND_TOLERANCE"); value != "" {
		tolerance, err := decimal.NewFromString(value)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("REFUND_TOLERANCE=%q: %w", value, err))
		}
		cfg.RefundTolerance = tolerance
	}
	if value := env.get("REDIS_DB"); value != "" {
		db, err := strconv.Atoi(value)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("REDIS_DB=%q: %w", value, err))
		}
		cfg.Redis.DB = db
	}

	if err := cfg.Validate(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n>>> %w", err)
	}
	return &cfg, nil
}

func overlay(ctx context.Context, source ParameterSource, name string, target any) error {
	if source == nil {
		return fmt.Errorf("parameter %s requested but no parameter source configured", name)
	}
	raw, err := source.Parameter(ctx, name)
	if err != nil {
		return fmt.Errorf("error reading parameter %s\nERROR=%w", name, err)
	}
	if err := json.Unmarshal([]byte(raw), target); err != nil {
		return fmt.Errorf("error decoding parameter %s\nERROR=%w", name, err)
	}
	return nil
}

var validate = validator.New()

func (c *Config) Validate() error {
	var errs *multierror.Error
	if err := validate.Struct(c); err != nil {
		errs = multierror.Append(errs, err)
	}
	if c.RefundTolerance.IsNegative() {
		errs = multierror.Append(errs, fmt.Errorf("refund tolerance must not be negative, got %s", c.RefundTolerance))
	}
	if c.Queue.Backend == "rabbitmq" && c.Queue.Exchange == "" {
		errs = multierror.Append(errs, fmt.Errorf("rabbitmq queue backend needs an exchange"))
	}
	return errs.ErrorOrNil()
}

// ServiceLevel maps a shipping line to a configured service level. Keys
// match the start of the code or the title, longest key first; the "default"
// key and then DefaultServiceLevel apply when nothing matches.
func (c *Config) ServiceLevel(code, title string) string {
	code, title = strings.ToLower(code), strings.ToLower(title)
	keys := make([]string, 0, len(c.ShippingServiceLevels))
	for key := range c.ShippingServiceLevels {
		if key != "default" {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	for _, key := range keys {
		prefix := strings.ToLower(key)
		if (code != "" && strings.HasPrefix(code, prefix)) || (title != "" && strings.HasPrefix(title, prefix)) {
			return c.ShippingServiceLevels[key]
		}
	}
	if level, found := c.ShippingServiceLevels["default"]; found {
		return level
	}
	return c.DefaultServiceLevel
}

func (c *Config) IsValidReturnCode(code int) bool {
	for _, valid := range c.ValidReturnCodes {
		if valid == code {
			return true
		}
	}
	return false
}
