package main

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wilsonwei2/CICD-From-RICKY-sub000/helpers"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/queue"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/shopify"
)

type memPublisher struct {
	sent []queue.Message
	err  error
}

func (m *memPublisher) Publish(_ context.Context, msg queue.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func TestHandler(t *testing.T) {
	defer helpers.TempEnvVars(map[string]string{"SHOPIFY_DOMAIN": "qf.myshopify.com", "SHOPIFY_SECRET": "secret"})()
	body := `{"id": 42}`
	request := events.APIGatewayProxyRequest{
		Headers: map[string]string{
			"x-shopify-shop-domain": "qf.myshopify.com",
			"x-shopify-topic":       "orders/paid",
			"x-shopify-hmac-sha256": shopify.Sign("secret", body),
		},
		Body: body,
	}

	publisher := &memPublisher{}
	response, err := handler(publisher)(context.Background(), request)
	require.NoError(t, err)
	assert.Equal(t, 200, response.StatusCode)
	require.Len(t, publisher.sent, 1)
	assert.Equal(t, "orders.paid", publisher.sent[0].Headers["X-Shopify-Topic"])
	assert.Equal(t, body, string(publisher.sent[0].Body))

	response, _ = handler(&memPublisher{err: errors.New("down")})(context.Background(), request)
	assert.Equal(t, 500, response.StatusCode)

	request.Body = `{"id": 43}`
	response, _ = handler(publisher)(context.Background(), request)
	assert.Equal(t, 400, response.StatusCode)
}
