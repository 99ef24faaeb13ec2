package main

import (
	"context"
	"fmt"
	"net/url"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/wilsonwei2/CICD-From-RICKY-sub000/app"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/config"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/csvimport"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/logging"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/storage"
)

type importFunc func(ctx context.Context, bucket, key string, store csvimport.Store) (int, error)

type importer struct {
	run    importFunc
	store  csvimport.Store
	logger *zap.Logger
}

func (i *importer) handle(ctx context.Context, event events.S3Event) (int, error) {
	var errs *multierror.Error
	total := 0
	for _, record := range event.Records {
		bucket := record.S3.Bucket.Name
		key, err := url.QueryUnescape(record.S3.Object.Key)
		if err != nil {
			key = record.S3.Object.Key
		}
		i.logger.Info("Importing file", zap.String("bucket", bucket), zap.String("key", key))
		n, err := i.run(ctx, bucket, key, i.store)
		total += n
		if err != nil {
			i.logger.Error("Error importing file", zap.String("key", key), zap.Error(err))
			errs = multierror.Append(errs, err)
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		return total, fmt.Errorf("import finished with errors:\n>>> %w", err)
	}
	return total, nil
}

func main() {
	logger := logging.New("historical-orders-import")
	ctx := context.Background()

	cfg, awsCfg, err := config.LoadFromAWS(ctx)
	if err != nil {
		logger.Fatal("Error loading configuration", zap.Error(err))
	}
	csv := csvimport.NewImporter(s3.NewFromConfig(awsCfg), os.Getenv("CSV_DELIMITER"), logger)
	client := dynamodb.NewFromConfig(awsCfg)

	i := &importer{logger: logger}
	switch kind := os.Getenv("TYPE"); kind {
	case "order":
		i.run = csv.ImportOrders
		i.store = storage.NewTable(client, cfg.Tables.Orders, storage.OrdersKey)
	case "return":
		i.run = csv.ImportReturns
		i.store = storage.NewTable(client, cfg.Tables.Returns, storage.ReturnsKey)
	default:
		logger.Fatal("Unknown TYPE", zap.String("type", kind))
	}

	lambda.Start(app.WithCache(i.handle))
}
