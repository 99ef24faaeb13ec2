package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/wilsonwei2/CICD-From-RICKY-sub000/app"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/common"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/config"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/logging"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/model"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/refunds"
)

type previewResponse struct {
	Refund *model.Refund `json:"refund,omitempty"`
	Error  string        `json:"error,omitempty"`
}

func handler(matcher *refunds.Matcher) app.APIFunction {
	return func(ctx context.Context, request events.APIGatewayProxyRequest) (*events.APIGatewayProxyResponse, error) {
		if request.HTTPMethod != "" && request.HTTPMethod != http.MethodPost {
			return app.Response(http.StatusMethodNotAllowed, "Method not allowed")
		}
		var body model.RefundRequest
		if err := json.Unmarshal([]byte(request.Body), &body); err != nil {
			return app.LogAndResponse(http.StatusBadRequest, "Invalid JSON in request body", err)
		}

		refund, err := matcher.Build(&body.Return, body.Instruments)
		switch {
		case err == nil:
			return app.JsonResponse(http.StatusOK, previewResponse{Refund: refund})
		case errors.Is(err, common.ErrDataCompleteness):
			return app.LogAndJsonResponse(http.StatusBadRequest, previewResponse{Error: err.Error()}, err)
		case errors.Is(err, common.ErrUnmappedConfiguration), errors.Is(err, common.ErrRefundAmountMismatch):
			return app.LogAndJsonResponse(http.StatusUnprocessableEntity, previewResponse{Refund: refund, Error: err.Error()}, err)
		default:
			return app.LogAndJsonResponse(http.StatusInternalServerError, previewResponse{Error: err.Error()}, err)
		}
	}
}

func main() {
	decimal.MarshalJSONWithoutQuotes = true
	logger := logging.New("refund-preview")

	cfg, _, err := config.LoadFromAWS(context.Background())
	if err != nil {
		logger.Fatal("Error loading configuration", zap.Error(err))
	}

	lambda.Start(app.ProfilingMiddleware(
		app.TimeoutMiddleware(app.CacheMiddleware(app.CheckEnvMiddleware(app.AuthMiddleware(handler(refunds.NewMatcher(cfg, logger)))))),
		"refund-preview",
	))
}
