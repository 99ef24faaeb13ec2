// Package csvimport reads historical order and return exports dropped into S3
// and stores them as new records in the bookkeeping tables.
package csvimport

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/wilsonwei2/CICD-From-RICKY-sub000/historicalorders"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/returns"
)

const (
	ArchivePrefix = "archive/"

	orderNameColumn = "Name"
)

type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Store receives one payload per order or return. storage.Table satisfies it.
type Store interface {
	PutNew(ctx context.Context, id string, payload any) error
}

type Importer struct {
	client    S3API
	delimiter rune
	logger    *zap.Logger
}

func NewImporter(client S3API, delimiter string, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := ','
	if delimiter != "" {
		d = []rune(delimiter)[0]
	}
	return &Importer{client: client, delimiter: d, logger: logger}
}

func (i *Importer) reader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	reader.Comma = i.delimiter
	reader.FieldsPerRecord = -1
	return reader
}

// rows decodes the CSV into header-keyed rows with blank values dropped.
func (i *Importer) rows(r io.Reader) ([]historicalorders.Fields, error) {
	reader := i.reader(r)
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading CSV header:\n>>> %w", err)
	}
	for n := range header {
		header[n] = strings.TrimPrefix(strings.TrimSpace(header[n]), "\ufeff")
	}

	var rows []historicalorders.Fields
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV line %d:\n>>> %w", len(rows)+2, err)
		}
		row := historicalorders.Fields{}
		for n, value := range record {
			if n < len(header) && strings.TrimSpace(value) != "" {
				row[header[n]] = value
			}
		}
		rows = append(rows, row)
	}
}

// GroupOrders folds consecutive rows sharing a Name into raw orders. The role
// of each row is told by which columns it carries.
func (i *Importer) GroupOrders(r io.Reader) ([]historicalorders.RawOrder, error) {
	rows, err := i.rows(r)
	if err != nil {
		return nil, err
	}
	var orders []historicalorders.RawOrder
	current := ""
	for _, row := range rows {
		name := row[orderNameColumn]
		if len(orders) == 0 || name != current {
			orders = append(orders, newRawOrder())
			current = name
		}
		order := &orders[len(orders)-1]
		switch {
		case row.Has("Processed At"):
			order.Details = row
		case row.Has("Lineitem name"):
			order.Items = append(order.Items, row)
		case row.Get("Transaction Kind") == "capture":
			order.Payment = row
		case row.Has("Shipping Line Price"):
			order.Shipping = row
		}
	}
	return orders, nil
}

func newRawOrder() historicalorders.RawOrder {
	return historicalorders.RawOrder{
		Details:  historicalorders.Fields{},
		Items:    []historicalorders.Fields{},
		Shipping: historicalorders.Fields{},
		Payment:  historicalorders.Fields{},
	}
}

// ParseReturns decodes the returns export, whose items and returned_from
// columns hold JSON documents.
func (i *Importer) ParseReturns(r io.Reader) ([]returns.RawReturn, error) {
	rows, err := i.rows(r)
	if err != nil {
		return nil, err
	}
	raws := make([]returns.RawReturn, 0, len(rows))
	for n, row := range rows {
		raw := returns.RawReturn{
			RmaID:            row.Get("rma_id"),
			OrderIncrementID: row.Get("order_increment_id"),
			DateRequested:    row.Get("date_requested"),
		}
		if items := row.Get("items"); items != "" {
			if err := json.Unmarshal([]byte(items), &raw.Items); err != nil {
				return nil, fmt.Errorf("error decoding items of return %q on line %d:\n>>> %w", raw.RmaID, n+2, err)
			}
		}
		if from := row.Get("returned_from"); from != "" {
			if !json.Valid([]byte(from)) {
				return nil, fmt.Errorf("invalid returned_from of return %q on line %d", raw.RmaID, n+2)
			}
			raw.ReturnedFrom = json.RawMessage(from)
		}
		raws = append(raws, raw)
	}
	return raws, nil
}

func (i *Importer) open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	out, err := i.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("error getting s3://%s/%s:\n>>> %w", bucket, key, err)
	}
	return out.Body, nil
}

// ImportOrders stores every order of the file and archives the file once all
// of them are stored.
func (i *Importer) ImportOrders(ctx context.Context, bucket, key string, store Store) (int, error) {
	body, err := i.open(ctx, bucket, key)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	orders, err := i.GroupOrders(body)
	if err != nil {
		return 0, fmt.Errorf("error parsing s3://%s/%s:\n>>> %w", bucket, key, err)
	}
	var result *multierror.Error
	stored := 0
	for _, order := range orders {
		if err := store.PutNew(ctx, order.Name(), order); err != nil {
			i.logger.Error("Failed to store order", zap.String("order", order.Name()), zap.Error(err))
			result = multierror.Append(result, err)
			continue
		}
		stored++
	}
	if result != nil {
		return stored, result.ErrorOrNil()
	}
	i.logger.Info("Stored orders", zap.String("key", key), zap.Int("count", stored))
	return stored, i.Archive(ctx, bucket, key)
}

func (i *Importer) ImportReturns(ctx context.Context, bucket, key string, store Store) (int, error) {
	body, err := i.open(ctx, bucket, key)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	raws, err := i.ParseReturns(body)
	if err != nil {
		return 0, fmt.Errorf("error parsing s3://%s/%s:\n>>> %w", bucket, key, err)
	}
	var result *multierror.Error
	stored := 0
	for _, raw := range raws {
		if err := store.PutNew(ctx, raw.RmaID, raw); err != nil {
			i.logger.Error("Failed to store return", zap.String("rma_id", raw.RmaID), zap.Error(err))
			result = multierror.Append(result, err)
			continue
		}
		stored++
	}
	if result != nil {
		return stored, result.ErrorOrNil()
	}
	i.logger.Info("Stored returns", zap.String("key", key), zap.Int("count", stored))
	return stored, i.Archive(ctx, bucket, key)
}

// Archive moves the object under ArchivePrefix in the same bucket.
func (i *Importer) Archive(ctx context.Context, bucket, key string) error {
	_, err := i.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(bucket),
		Key:        aws.String(ArchivePrefix + key),
		CopySource: aws.String(bucket + "/" + key),
	})
	if err != nil {
		return fmt.Errorf("error archiving s3://%s/%s:\n>>> %w", bucket, key, err)
	}
	_, err = i.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("error deleting s3://%s/%s:\n>>> %w", bucket, key, err)
	}
	return nil
}
