package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/wilsonwei2/CICD-From-RICKY-sub000/app"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/common"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/config"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/logging"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/queue"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/shopify"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/shopify/adminapi"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/shopify/adminapi/types"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/shopifyorders"
)

type orderImport struct {
	fetch       func(ctx context.Context, id string) (*types.Order, error)
	transformer *shopifyorders.Transformer
	publisher   queue.Publisher
}

func (o *orderImport) handler(ctx context.Context, request events.APIGatewayProxyRequest) (*events.APIGatewayProxyResponse, error) {
	webhook, err := shopify.ValidateWebhook(request)
	if err != nil {
		return app.LogAndResponse(http.StatusBadRequest, "Error! Invalid Shopify webhook", err)
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(request.Body), &data); err != nil {
		return app.LogAndResponse(http.StatusBadRequest, "Invalid JSON in request body", err)
	}
	orderId, ok := data["admin_graphql_api_id"].(string)
	if !ok || orderId == "" {
		return app.LogAndResponse(http.StatusBadRequest, "Order Admin API ID not in request body", nil)
	}

	order, err := o.fetch(ctx, orderId)
	if err != nil {
		return app.LogAndResponse(http.StatusInternalServerError, "Error fetching order", err)
	}
	result, err := o.transformer.Transform(order)
	if err != nil {
		status := http.StatusInternalServerError
		if common.IsFatal(err) || errors.Is(err, common.ErrReconciliationGapTooLarge) {
			status = http.StatusUnprocessableEntity
		}
		return app.LogAndResponse(status, "Error transforming order", err)
	}

	msg, err := queue.NewMessage(result.Order.ExternalID, result.Order)
	if err != nil {
		return app.LogAndResponse(http.StatusInternalServerError, "Error encoding order", err)
	}
	msg.Headers = map[string]string{"X-Shopify-Topic": webhook.Topic}
	if err := o.publisher.Publish(ctx, msg); err != nil {
		return app.LogAndResponse(http.StatusInternalServerError, "Error! Could not publish order", err)
	}

	return app.LogAndJsonResponse(http.StatusOK, map[string]any{
		"id":          orderId,
		"external_id": result.Order.ExternalID,
		"adjusted":    result.Reconciliation.Applied(),
	}, nil)
}

func main() {
	decimal.MarshalJSONWithoutQuotes = true
	logger := logging.New("shopify-import-order")
	ctx := context.Background()

	cfg, awsCfg, err := config.LoadFromAWS(ctx)
	if err != nil {
		logger.Fatal("Error loading configuration", zap.Error(err))
	}
	publisher, err := queue.New(cfg.Queue, sqs.NewFromConfig(awsCfg), config.OSEnv)
	if err != nil {
		logger.Fatal("Error creating publisher", zap.Error(err))
	}
	o := &orderImport{
		fetch:       adminapi.OrderWithTransactionsById,
		transformer: shopifyorders.NewTransformer(cfg, logger),
		publisher:   publisher,
	}

	lambda.Start(app.ProfilingMiddleware(
		app.TimeoutMiddleware(app.CacheMiddleware(app.CheckEnvMiddleware(o.handler))),
		"shopify-import-order",
	))
}
