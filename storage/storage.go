package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type Status string

const (
	StatusNew              Status = "new"
	StatusExtracted        Status = "extracted"
	StatusExtractionFailed Status = "extraction_failed"

	// OrdersKey and ReturnsKey are the partition keys of the two bookkeeping tables.
	OrdersKey  = "order_id"
	ReturnsKey = "rma_id"

	// DefaultScanLimit caps how many records one extraction run picks up.
	DefaultScanLimit = 500
)

// API is the subset of the DynamoDB client the tables use.
type API interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// Record is one row of a bookkeeping table: the raw payload as JSON and its
// extraction status.
type Record struct {
	ID      string `dynamodbav:"-"`
	Payload string `dynamodbav:"payload"`
	Status  Status `dynamodbav:"status"`
}

type Table struct {
	client    API
	name      string
	key       string
	ScanLimit int
}

func NewTable(client API, name, key string) *Table {
	return &Table{client: client, name: name, key: key, ScanLimit: DefaultScanLimit}
}

func (t *Table) Name() string {
	return t.name
}

// PutNew stores payload under id with status new, replacing any earlier record.
func (t *Table) PutNew(ctx context.Context, id string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error encoding payload of %s:\n>>> %w", id, err)
	}
	item, err := attributevalue.MarshalMap(Record{Payload: string(body), Status: StatusNew})
	if err != nil {
		return fmt.Errorf("error marshalling record %s:\n>>> %w", id, err)
	}
	item[t.key] = &types.AttributeValueMemberS{Value: id}
	_, err = t.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(t.name),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("error putting record %s into %s:\n>>> %w", id, t.name, err)
	}
	return nil
}

// ScanNew pages through the table collecting records with status new, up to ScanLimit.
func (t *Table) ScanNew(ctx context.Context) ([]Record, error) {
	var records []Record
	var startKey map[string]types.AttributeValue
	for {
		out, err := t.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:                aws.String(t.name),
			FilterExpression:         aws.String("#status = :status"),
			ExpressionAttributeNames: map[string]string{"#status": "status"},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":status": &types.AttributeValueMemberS{Value: string(StatusNew)},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return records, fmt.Errorf("error scanning %s:\n>>> %w", t.name, err)
		}
		for _, item := range out.Items {
			var record Record
			if err := attributevalue.UnmarshalMap(item, &record); err != nil {
				return records, fmt.Errorf("error unmarshalling record from %s:\n>>> %w", t.name, err)
			}
			if err := attributevalue.Unmarshal(item[t.key], &record.ID); err != nil {
				return records, fmt.Errorf("error reading %s from %s:\n>>> %w", t.key, t.name, err)
			}
			records = append(records, record)
		}
		startKey = out.LastEvaluatedKey
		if len(startKey) == 0 || (t.ScanLimit > 0 && len(records) >= t.ScanLimit) {
			return records, nil
		}
	}
}

func (t *Table) UpdateStatus(ctx context.Context, id string, status Status) error {
	_, err := t.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(t.name),
		Key:                      map[string]types.AttributeValue{t.key: &types.AttributeValueMemberS{Value: id}},
		UpdateExpression:         aws.String("SET #status = :status"),
		ExpressionAttributeNames: map[string]string{"#status": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(status)},
		},
	})
	if err != nil {
		return fmt.Errorf("error updating %s in %s to %s:\n>>> %w", id, t.name, status, err)
	}
	return nil
}

// Decode unmarshals the stored payload into v.
func (r Record) Decode(v any) error {
	if err := json.Unmarshal([]byte(r.Payload), v); err != nil {
		return fmt.Errorf("error decoding payload of %s:\n>>> %w", r.ID, err)
	}
	return nil
}
