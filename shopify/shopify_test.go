package shopify

import (
	"strings"
	"testing"

	"github.com/aws/aws-lambda-go/events"
)

func TestValidateWebhook(t *testing.T) {
	body := `{"id":820982911946154508}`
	tests := []struct {
		Title         string
		Domain        string
		Secret        string
		Headers       map[string]string
		Body          string
		ExpectedError string
	}{
		{
			Title:  "Missing headers",
			Domain: "qf.myshopify.com", Secret: "s",
			Headers:       map[string]string{"x-shopify-topic": "orders/create"},
			Body:          body,
			ExpectedError: "incomplete Shopify headers",
		},
		{
			Title: "Missing env",
			Headers: map[string]string{
				"x-shopify-shop-domain": "qf.myshopify.com",
				"x-shopify-hmac-sha256": Sign("s", body),
				"x-shopify-topic":       "orders/create",
			},
			Body:          body,
			ExpectedError: "incomplete Shopify environment variables",
		},
		{
			Title:  "Other shop",
			Domain: "qf.myshopify.com", Secret: "s",
			Headers: map[string]string{
				"x-shopify-shop-domain": "other.myshopify.com",
				"x-shopify-hmac-sha256": Sign("s", body),
				"x-shopify-topic":       "orders/create",
			},
			Body:          body,
			ExpectedError: "unexpected shop",
		},
		{
			Title:  "Bad signature",
			Domain: "qf.myshopify.com", Secret: "s",
			Headers: map[string]string{
				"x-shopify-shop-domain": "qf.myshopify.com",
				"x-shopify-hmac-sha256": Sign("other", body),
				"x-shopify-topic":       "orders/create",
			},
			Body:          body,
			ExpectedError: "not valid",
		},
		{
			Title:  "Valid with canonical header case",
			Domain: "qf.myshopify.com", Secret: "s",
			Headers: map[string]string{
				"X-Shopify-Shop-Domain": "qf.myshopify.com",
				"X-Shopify-Hmac-Sha256": Sign("s", body),
				"X-Shopify-Topic":       "orders/create",
			},
			Body: body,
		},
	}
	for _, tt := range tests {
		t.Run(tt.Title, func(t *testing.T) {
			t.Setenv("SHOPIFY_DOMAIN", tt.Domain)
			t.Setenv("SHOPIFY_SECRET", tt.Secret)
			webhook, err := ValidateWebhook(events.APIGatewayProxyRequest{Headers: tt.Headers, Body: tt.Body})
			if tt.ExpectedError != "" {
				if err == nil || !strings.Contains(err.Error(), tt.ExpectedError) {
					t.Fatalf("expected '%s' in error, got %v", tt.ExpectedError, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if webhook.Topic != "orders/create" {
				t.Fatalf("unexpected topic %s", webhook.Topic)
			}
		})
	}
}
