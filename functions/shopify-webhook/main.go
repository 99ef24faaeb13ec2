package main

import (
	"context"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/zap"

	"github.com/wilsonwei2/CICD-From-RICKY-sub000/app"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/config"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/logging"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/queue"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/shopify"
)

// handler forwards validated Shopify webhooks untouched, tagged with their topic.
func handler(publisher queue.Publisher) app.APIFunction {
	return func(ctx context.Context, request events.APIGatewayProxyRequest) (*events.APIGatewayProxyResponse, error) {
		webhook, err := shopify.ValidateWebhook(request)
		if err != nil {
			return app.LogAndResponse(http.StatusBadRequest, "Error! Invalid Shopify webhook", err)
		}

		topic := strings.ReplaceAll(webhook.Topic, "/", ".")
		err = publisher.Publish(ctx, queue.Message{
			ID:      topic,
			Body:    []byte(request.Body),
			Headers: map[string]string{"X-Shopify-Topic": topic},
		})
		if err != nil {
			return app.LogAndResponse(http.StatusInternalServerError, "Error! Could not publish webhook", err)
		}

		return app.Response(http.StatusOK, "OK")
	}
}

func main() {
	logger := logging.New("shopify-webhook")
	ctx := context.Background()

	cfg, awsCfg, err := config.LoadFromAWS(ctx)
	if err != nil {
		logger.Fatal("Error loading configuration", zap.Error(err))
	}
	publisher, err := queue.New(cfg.Queue, sqs.NewFromConfig(awsCfg), config.OSEnv)
	if err != nil {
		logger.Fatal("Error creating publisher", zap.Error(err))
	}

	lambda.Start(app.ProfilingMiddleware(
		app.TimeoutMiddleware(app.CacheMiddleware(app.CheckEnvMiddleware(handler(publisher)))),
		"shopify-webhook",
	))
}
