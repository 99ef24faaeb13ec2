package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/hashicorp/go-multierror"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/wilsonwei2/CICD-From-RICKY-sub000/app"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/config"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/historicalorders"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/logging"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/newstore"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/queue"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/returns"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/storage"
)

type table interface {
	ScanNew(ctx context.Context) ([]storage.Record, error)
	UpdateStatus(ctx context.Context, id string, status storage.Status) error
}

// transformFunc turns one stored record into the message published for it.
type transformFunc func(ctx context.Context, record storage.Record) (queue.Message, error)

type summary struct {
	Total     int `json:"total"`
	Extracted int `json:"extracted"`
	Failed    int `json:"failed"`
}

type extractor struct {
	table     table
	transform transformFunc
	publisher queue.Publisher
	logger    *zap.Logger
}

func orderTransform(t *historicalorders.Transformer) transformFunc {
	return func(_ context.Context, record storage.Record) (queue.Message, error) {
		var raw historicalorders.RawOrder
		if err := record.Decode(&raw); err != nil {
			return queue.Message{}, err
		}
		result, err := t.Transform(raw)
		if err != nil {
			return queue.Message{}, err
		}
		return queue.NewMessage(record.ID, result.Order)
	}
}

func returnTransform(t *returns.Transformer) transformFunc {
	return func(ctx context.Context, record storage.Record) (queue.Message, error) {
		var raw returns.RawReturn
		if err := record.Decode(&raw); err != nil {
			return queue.Message{}, err
		}
		ret, err := t.Transform(ctx, raw)
		if err != nil {
			return queue.Message{}, err
		}
		return queue.NewMessage(record.ID, ret)
	}
}

// handle transforms every new record. Records that cannot be transformed are
// marked extraction_failed; records that could not be published stay new for
// the next run.
func (e *extractor) handle(ctx context.Context, _ events.CloudWatchEvent) (summary, error) {
	records, err := e.table.ScanNew(ctx)
	if err != nil {
		return summary{}, err
	}
	e.logger.Info("Extracting records", zap.Int("count", len(records)))

	var errs *multierror.Error
	result := summary{Total: len(records)}
	for _, record := range records {
		logger := e.logger.With(zap.String("id", record.ID))
		msg, err := e.transform(ctx, record)
		if err != nil {
			logger.Error("Failed to transform record", zap.Error(err))
			errs = multierror.Append(errs, err)
			result.Failed++
			if err := e.table.UpdateStatus(ctx, record.ID, storage.StatusExtractionFailed); err != nil {
				errs = multierror.Append(errs, err)
			}
			continue
		}
		if err := e.publisher.Publish(ctx, msg); err != nil {
			logger.Error("Failed to publish record", zap.Error(err))
			errs = multierror.Append(errs, err)
			continue
		}
		if err := e.table.UpdateStatus(ctx, record.ID, storage.StatusExtracted); err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		result.Extracted++
	}
	e.logger.Info("Extraction done", zap.Int("extracted", result.Extracted), zap.Int("failed", result.Failed), zap.Int("total", result.Total))
	if err := errs.ErrorOrNil(); err != nil {
		return result, fmt.Errorf("extraction finished with errors:\n>>> %w", err)
	}
	return result, nil
}

func main() {
	decimal.MarshalJSONWithoutQuotes = true
	logger := logging.New("historical-orders-extract")
	ctx := context.Background()

	cfg, awsCfg, err := config.LoadFromAWS(ctx)
	if err != nil {
		logger.Fatal("Error loading configuration", zap.Error(err))
	}
	publisher, err := queue.New(cfg.Queue, sqs.NewFromConfig(awsCfg), config.OSEnv)
	if err != nil {
		logger.Fatal("Error creating publisher", zap.Error(err))
	}
	client := dynamodb.NewFromConfig(awsCfg)

	e := &extractor{publisher: publisher, logger: logger}
	switch kind := os.Getenv("TYPE"); kind {
	case "order":
		e.table = storage.NewTable(client, cfg.Tables.Orders, storage.OrdersKey)
		e.transform = orderTransform(historicalorders.NewTransformer(cfg, logger))
	case "return":
		e.table = storage.NewTable(client, cfg.Tables.Returns, storage.ReturnsKey)
		e.transform = returnTransform(returns.NewTransformer(cfg, newstore.NewClient(cfg.NewStore), logger))
	default:
		logger.Fatal("Unknown TYPE", zap.String("type", kind))
	}

	lambda.Start(app.WithCache(e.handle))
}
