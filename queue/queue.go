package queue

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/wilsonwei2/CICD-From-RICKY-sub000/config"
)

type Message struct {
	// ID identifies the business record, e.g. an order name or RMA id.
	ID      string
	Body    []byte
	Headers map[string]string
}

// NewMessage encodes payload as the JSON body of a message.
func NewMessage(id string, payload any) (Message, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("error encoding message %s:\n>>> %w", id, err)
	}
	return Message{ID: id, Body: body}, nil
}

// DeduplicationID is the content hash used for FIFO deduplication.
func (m Message) DeduplicationID() string {
	sum := sha256.Sum256(m.Body)
	return hex.EncodeToString(sum[:])
}

type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// New picks the publisher configured by cfg.Backend.
func New(cfg config.Queue, sqsClient SQSAPI, env config.Env) (Publisher, error) {
	switch cfg.Backend {
	case "", "sqs":
		if cfg.URL == "" {
			return nil, fmt.Errorf("queue url is not configured")
		}
		return NewSQSPublisher(sqsClient, cfg.URL, cfg.MessageGroupID), nil
	case "rabbitmq":
		conn, err := RabbitConnectionFromEnv(env)
		if err != nil {
			return nil, err
		}
		return NewRabbitPublisher(conn, cfg.Exchange, cfg.RoutingKey), nil
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.Backend)
	}
}
