package config

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wilsonwei2/CICD-From-RICKY-sub000/common"
)

func mapEnv(vars map[string]string) Env {
	return func(key string) (string, bool) {
		value, found := vars[key]
		return value, found
	}
}

type fakeSource map[string]string

func (f fakeSource) Parameter(_ context.Context, name string) (string, error) {
	value, found := f[name]
	if !found {
		return "", errors.New("parameter not found")
	}
	return value, nil
}

const paymentItemsJSON = `{
	"credit_card": {"adyen": {"usd": 101, "cad": 102}, "shopify": 103},
	"gift_card": {"usd": "201", "cad": 202},
	"store_credit": 301,
	"paypal": {"usd": 401}
}`

func TestPaymentItemTable_Lookup(t *testing.T) {
	var table PaymentItemTable
	require.NoError(t, json.Unmarshal([]byte(paymentItemsJSON), &table))

	tests := []struct {
		Title    string
		Method   string
		Provider string
		Currency string
		Expected string
	}{
		{Title: "credit card by provider and currency", Method: "credit_card", Provider: "adyen", Currency: "USD", Expected: "101"},
		{Title: "credit card by provider id", Method: "credit_card", Provider: "shopify", Currency: "CAD", Expected: "103"},
		{Title: "provider key ignores case", Method: "credit_card", Provider: "Adyen", Currency: "cad", Expected: "102"},
		{Title: "gift card by currency", Method: "gift_card", Currency: "USD", Expected: "201"},
		{Title: "plain id", Method: "store_credit", Currency: "USD", Expected: "301"},
		{Title: "method currency map", Method: "paypal", Currency: "usd", Expected: "401"},
	}
	for _, tt := range tests {
		t.Run(tt.Title, func(t *testing.T) {
			id, err := table.Lookup(tt.Method, tt.Provider, tt.Currency)
			require.NoError(t, err)
			assert.Equal(t, tt.Expected, id)
		})
	}
}

func TestPaymentItemTable_Unmapped(t *testing.T) {
	var table PaymentItemTable
	require.NoError(t, json.Unmarshal([]byte(paymentItemsJSON), &table))

	for _, args := range [][3]string{
		{"credit_card", "stripe", "USD"},
		{"gift_card", "", "EUR"},
		{"paypal", "", "CAD"},
		{"bitcoin", "", "USD"},
	} {
		_, err := table.Lookup(args[0], args[1], args[2])
		assert.ErrorIs(t, err, common.ErrUnmappedPaymentMethod, "%v", args)
		assert.ErrorIs(t, err, common.ErrUnmappedConfiguration)
	}
}

func TestPaymentItemTable_CreditCardFallsBackToMethod(t *testing.T) {
	var table PaymentItemTable
	require.NoError(t, json.Unmarshal([]byte(`{"credit_card": {"usd": 11}}`), &table))
	id, err := table.Lookup("credit_card", "sezzle", "USD")
	require.NoError(t, err)
	assert.Equal(t, "11", id)
}

func TestPaymentItemTable_CollidingKeys(t *testing.T) {
	var table PaymentItemTable
	require.NoError(t, json.Unmarshal([]byte(`{"credit_card": {"Adyen": 12, "ADYEN": 13, "adyén": 14}}`), &table))
	for range 50 {
		id, err := table.Lookup("credit_card", "adyen", "USD")
		require.NoError(t, err)
		assert.Equal(t, "13", id)
	}
	id, err := table.Lookup("credit_card", "Adyen", "USD")
	require.NoError(t, err)
	assert.Equal(t, "12", id)
}

func TestLoad(t *testing.T) {
	source := fakeSource{
		"/integrations/config":        `{"shop": "storefront-catalog-fr", "valid_return_codes": [1, 2], "queue": {"backend": "rabbitmq", "exchange": "newstore"}}`,
		"/integrations/payment_items": paymentItemsJSON,
	}
	cfg, err := Load(context.Background(), mapEnv(map[string]string{
		"CONFIG_PARAMETER":        "/integrations/config",
		"PAYMENT_ITEMS_PARAMETER": "/integrations/payment_items",
		"ORDERS_TABLE":            "historical-orders",
		"IGNORE_REFUND_MISMATCH":  "true",
		"REFUND_TOLERANCE":        "0.02",
	}), source)
	require.NoError(t, err)
	assert.Equal(t, "storefront-catalog-fr", cfg.Shop)
	assert.Equal(t, "magento", cfg.ChannelName)
	assert.Equal(t, "historical-orders", cfg.Tables.Orders)
	assert.Equal(t, "rabbitmq", cfg.Queue.Backend)
	assert.True(t, cfg.IgnoreRefundMismatch)
	assert.Equal(t, "0.02", cfg.RefundTolerance.String())
	assert.True(t, cfg.IsValidReturnCode(2))
	assert.False(t, cfg.IsValidReturnCode(392))

	id, err := cfg.PaymentItems.Lookup("store_credit", "", "USD")
	require.NoError(t, err)
	assert.Equal(t, "301", id)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(context.Background(), mapEnv(nil), nil)
	require.NoError(t, err)
	assert.Equal(t, "storefront-catalog-en", cfg.Shop)
	assert.Equal(t, "MTLDC1", cfg.DefaultFulfillmentNode)
	assert.Equal(t, 99, cfg.DefaultReturnCode)
	assert.True(t, cfg.IsValidReturnCode(2864))
	assert.Equal(t, "0.01", cfg.RefundTolerance.String())
	assert.Equal(t, "traditional_carrier", cfg.ServiceLevel("UPS_GROUND", ""))
}

func TestServiceLevel(t *testing.T) {
	cfg := Default()
	cfg.ShippingServiceLevels = map[string]string{
		"express":           "EXPRESS",
		"express overnight": "OVERNIGHT",
		"Pickup":            "IN_STORE_PICKUP",
		"default":           "GROUND",
	}
	tests := []struct {
		Title    string
		Code     string
		ShipName string
		Expected string
	}{
		{Title: "code prefix", Code: "express-2day", Expected: "EXPRESS"},
		{Title: "longest prefix wins", Code: "Express Overnight (1 day)", Expected: "OVERNIGHT"},
		{Title: "title prefix ignoring case", ShipName: "pickup in store", Expected: "IN_STORE_PICKUP"},
		{Title: "default key", Code: "standard", ShipName: "Standard", Expected: "GROUND"},
	}
	for _, tt := range tests {
		t.Run(tt.Title, func(t *testing.T) {
			assert.Equal(t, tt.Expected, cfg.ServiceLevel(tt.Code, tt.ShipName))
		})
	}

	cfg.ShippingServiceLevels = nil
	assert.Equal(t, "traditional_carrier", cfg.ServiceLevel("express", ""))
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		Title         string
		Env           map[string]string
		Source        ParameterSource
		ExpectedError string
	}{
		{
			Title:         "missing parameter source",
			Env:           map[string]string{"CONFIG_PARAMETER": "/x"},
			ExpectedError: "no parameter source configured",
		},
		{
			Title:         "missing parameter",
			Env:           map[string]string{"CONFIG_PARAMETER": "/x"},
			Source:        fakeSource{},
			ExpectedError: "error reading parameter /x",
		},
		{
			Title:         "invalid parameter json",
			Env:           map[string]string{"PAYMENT_ITEMS_PARAMETER": "/x"},
			Source:        fakeSource{"/x": `{"credit_card": [1]}`},
			ExpectedError: "error decoding parameter /x",
		},
		{
			Title:         "invalid overrides are all reported",
			Env:           map[string]string{"IGNORE_REFUND_MISMATCH": "maybe", "REDIS_DB": "zero"},
			ExpectedError: "REDIS_DB",
		},
		{
			Title:         "unknown queue backend",
			Env:           map[string]string{"QUEUE_BACKEND": "kafka"},
			ExpectedError: "oneof",
		},
		{
			Title:         "rabbitmq without exchange",
			Env:           map[string]string{"QUEUE_BACKEND": "rabbitmq"},
			ExpectedError: "needs an exchange",
		},
		{
			Title:         "negative tolerance",
			Env:           map[string]string{"REFUND_TOLERANCE": "-0.01"},
			ExpectedError: "must not be negative",
		},
	}
	for _, tt := range tests {
		t.Run(tt.Title, func(t *testing.T) {
			_, err := Load(context.Background(), mapEnv(tt.Env), tt.Source)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.ExpectedError)
		})
	}
}

type fakeSSM struct {
	value *string
	err   error
	input *ssm.GetParameterInput
}

func (f *fakeSSM) GetParameter(_ context.Context, params *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{Value: f.value}}, nil
}

func TestSSMSource(t *testing.T) {
	client := &fakeSSM{value: aws.String(`{"shop": "x"}`)}
	value, err := SSMSource{Client: client}.Parameter(context.Background(), "/config")
	require.NoError(t, err)
	assert.Equal(t, `{"shop": "x"}`, value)
	assert.Equal(t, "/config", aws.ToString(client.input.Name))
	assert.True(t, aws.ToBool(client.input.WithDecryption))

	_, err = SSMSource{Client: &fakeSSM{}}.Parameter(context.Background(), "/config")
	assert.ErrorContains(t, err, "has no value")

	_, err = SSMSource{Client: &fakeSSM{err: errors.New("access denied")}}.Parameter(context.Background(), "/config")
	assert.ErrorContains(t, err, "access denied")
}
