package shopify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

type Webhook struct {
	Domain string
	Topic  string
}

func header(headers map[string]string, name string) string {
	for key, value := range headers {
		if strings.EqualFold(key, name) {
			return value
		}
	}
	return ""
}

// ValidateWebhook checks the HMAC signature of a webhook sent by the configured shop.
func ValidateWebhook(request events.APIGatewayProxyRequest) (*Webhook, error) {
	shopDomain := header(request.Headers, "x-shopify-shop-domain")
	hmacHeader := header(request.Headers, "x-shopify-hmac-sha256")
	shopifyTopic := header(request.Headers, "x-shopify-topic")
	if shopDomain == "" || hmacHeader == "" || shopifyTopic == "" {
		return nil, fmt.Errorf("invalid or incomplete Shopify headers")
	}

	domain := os.Getenv("SHOPIFY_DOMAIN")
	secret := os.Getenv("SHOPIFY_SECRET")
	if domain == "" || secret == "" {
		return nil, fmt.Errorf("invalid or incomplete Shopify environment variables")
	}
	if !strings.EqualFold(domain, shopDomain) {
		return nil, fmt.Errorf("webhook from unexpected shop %s", shopDomain)
	}

	if len(request.Body) == 0 {
		return nil, fmt.Errorf("empty request")
	}

	if !hmac.Equal([]byte(Sign(secret, request.Body)), []byte(hmacHeader)) {
		return nil, fmt.Errorf("the Shopify webhook is not valid")
	}

	return &Webhook{Domain: shopDomain, Topic: shopifyTopic}, nil
}

func Sign(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
