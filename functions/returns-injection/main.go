package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/hashicorp/go-multierror"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/wilsonwei2/CICD-From-RICKY-sub000/app"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/common"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/config"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/idempotency"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/logging"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/model"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/queue"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/refunds"
)

type guard interface {
	Acquire(ctx context.Context, id string) (bool, error)
	Complete(ctx context.Context, id string) error
	Release(ctx context.Context, id string) error
}

type injector struct {
	matcher   *refunds.Matcher
	guard     guard
	publisher queue.Publisher
	logger    *zap.Logger
}

var errDuplicate = errors.New("duplicate return event")

// process builds and publishes the refund of one message. Events already
// done are acknowledged without publishing.
func (i *injector) process(ctx context.Context, message events.SQSMessage) error {
	var request model.RefundRequest
	if err := json.Unmarshal([]byte(message.Body), &request); err != nil {
		return fmt.Errorf("error decoding message %s: %w", message.MessageId, common.InvalidField("body", message.Body, err))
	}
	id := request.Return.ID
	if id == "" {
		return fmt.Errorf("message %s: %w", message.MessageId, common.MissingField("return.id"))
	}
	acquired, err := i.guard.Acquire(ctx, id)
	if err != nil {
		return err
	}
	if !acquired {
		return errDuplicate
	}

	refund, err := i.matcher.Build(&request.Return, request.Instruments)
	if err == nil {
		var msg queue.Message
		msg, err = queue.NewMessage(id, refund)
		if err == nil {
			err = i.publisher.Publish(ctx, msg)
		}
	}
	if err != nil {
		if releaseErr := i.guard.Release(ctx, id); releaseErr != nil {
			err = multierror.Append(err, releaseErr)
		}
		return err
	}
	return i.guard.Complete(ctx, id)
}

func (i *injector) handle(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	response := events.SQSEventResponse{BatchItemFailures: []events.SQSBatchItemFailure{}}
	var errs *multierror.Error
	for _, message := range event.Records {
		logger := i.logger.With(zap.String("message_id", message.MessageId))
		err := i.process(ctx, message)
		switch {
		case err == nil:
			logger.Info("Refund injected")
		case errors.Is(err, errDuplicate):
			logger.Info("Skipping duplicate return event")
		case errors.Is(err, idempotency.ErrInFlight):
			logger.Warn("Return event still claimed, retrying later", zap.Error(err))
			response.BatchItemFailures = append(response.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: message.MessageId})
		default:
			logger.Error("Error injecting refund", zap.Error(err), zap.Bool("fatal", common.IsFatal(err)))
			errs = multierror.Append(errs, err)
			response.BatchItemFailures = append(response.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: message.MessageId})
		}
	}
	if errs != nil {
		i.logger.Warn("Batch finished with failures", zap.Int("failed", errs.Len()), zap.Error(errs))
	}
	return response, nil
}

func main() {
	decimal.MarshalJSONWithoutQuotes = true
	logger := logging.New("returns-injection")
	ctx := context.Background()

	cfg, awsCfg, err := config.LoadFromAWS(ctx)
	if err != nil {
		logger.Fatal("Error loading configuration", zap.Error(err))
	}
	publisher, err := queue.New(cfg.Queue, sqs.NewFromConfig(awsCfg), config.OSEnv)
	if err != nil {
		logger.Fatal("Error creating publisher", zap.Error(err))
	}

	i := &injector{
		matcher:   refunds.NewMatcher(cfg, logger),
		guard:     idempotency.NewGuard(idempotency.NewClient(cfg.Redis), "returns-injection", cfg.Redis.TTL),
		publisher: publisher,
		logger:    logger,
	}
	lambda.Start(app.WithCache(i.handle))
}
