package queue

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"
)

type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSPublisher sends to a FIFO queue. Messages share one group so NewStore
// receives them in import order.
type SQSPublisher struct {
	client  SQSAPI
	url     string
	groupID string
}

func NewSQSPublisher(client SQSAPI, url, groupID string) *SQSPublisher {
	if groupID == "" {
		groupID = url
	}
	return &SQSPublisher{client: client, url: url, groupID: groupID}
}

func (p *SQSPublisher) Publish(ctx context.Context, msg Message) error {
	input := &sqs.SendMessageInput{
		QueueUrl:               aws.String(p.url),
		MessageBody:            aws.String(string(msg.Body)),
		MessageGroupId:         aws.String(p.groupID),
		MessageDeduplicationId: aws.String(msg.DeduplicationID()),
	}
	if len(msg.Headers) > 0 {
		input.MessageAttributes = map[string]types.MessageAttributeValue{}
		for key, value := range msg.Headers {
			input.MessageAttributes[key] = types.MessageAttributeValue{
				DataType:    aws.String("String"),
				StringValue: aws.String(value),
			}
		}
	}
	out, err := p.client.SendMessage(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send %s to SQS:\n>>> %w", msg.ID, err)
	}
	zap.L().Info("Sent message to SQS", zap.String("id", msg.ID), zap.String("message_id", aws.ToString(out.MessageId)))
	return nil
}
