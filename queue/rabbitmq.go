package queue

import (
	"context"
	"fmt"
	"net"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/wilsonwei2/CICD-From-RICKY-sub000/config"
)

// Channel is the part of *amqp.Channel the publisher uses.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Dialer opens a channel for a single publish.
type Dialer func(ctx context.Context) (Channel, func() error, error)

// RabbitConnectionFromEnv reads RABBITMQ_HOST, RABBITMQ_USER and RABBITMQ_PASSWORD.
func RabbitConnectionFromEnv(env config.Env) (Dialer, error) {
	lookup := func(key string) string {
		value, _ := env(key)
		return value
	}
	rHost := lookup("RABBITMQ_HOST")
	rUser := lookup("RABBITMQ_USER")
	rPass := lookup("RABBITMQ_PASSWORD")
	if rHost == "" || rUser == "" || rPass == "" {
		return nil, fmt.Errorf("invalid or incomplete RabbitMQ environment variables")
	}
	rUrl := fmt.Sprintf("amqp://%s:%s@%s", rUser, rPass, rHost)

	return func(ctx context.Context) (Channel, func() error, error) {
		conn, err := amqp.DialConfig(rUrl, amqp.Config{
			Dial: func(network, addr string) (net.Conn, error) {
				return (&net.Dialer{}).DialContext(ctx, network, addr)
			},
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to RabbitMQ:\n>>> %w", err)
		}
		ch, err := conn.Channel()
		if err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("failed to open a channel to RabbitMQ:\n>>> %w", err)
		}
		return ch, conn.Close, nil
	}, nil
}

type RabbitPublisher struct {
	dial       Dialer
	exchange   string
	routingKey string
}

func NewRabbitPublisher(dial Dialer, exchange, routingKey string) *RabbitPublisher {
	return &RabbitPublisher{dial: dial, exchange: exchange, routingKey: routingKey}
}

func (p *RabbitPublisher) Publish(ctx context.Context, msg Message) error {
	ch, closeConn, err := p.dial(ctx)
	if err != nil {
		return err
	}
	defer closeConn()
	defer ch.Close()

	headers := amqp.Table{"record_id": msg.ID}
	for key, value := range msg.Headers {
		headers[key] = value
	}

	err = ch.PublishWithContext(ctx, p.exchange, p.routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    uuid.NewString(),
		Body:         msg.Body,
		DeliveryMode: amqp.Persistent,
		Headers:      headers,
	})
	if err != nil {
		return fmt.Errorf("failed to publish a message to RabbitMQ:\n>>> %w", err)
	}

	zap.L().Info("Published message to RabbitMQ",
		zap.String("exchange", p.exchange),
		zap.String("key", p.routingKey),
		zap.String("id", msg.ID),
	)
	return nil
}
