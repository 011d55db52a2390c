package broker

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"corebank/internal/outbox"
)

// channel is the slice of *amqp.Channel the publisher needs.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher sends outbox events to a topic exchange, routed by event type.
type Publisher struct {
	ch       channel
	exchange string
}

func NewPublisher(rabbitMq *RabbitMQ, exchange string) *Publisher {
	return &Publisher{ch: rabbitMq.Channel, exchange: exchange}
}

func (p *Publisher) Publish(ctx context.Context, event *outbox.Event) error {
	err := p.ch.PublishWithContext(
		ctx,
		p.exchange,
		event.Type,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			MessageId:    event.ID,
			Type:         event.Type,
			Headers:      amqp.Table{"aggregate_id": event.AggregateID},
			Body:         event.Payload,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s (%s): %w", event.Type, event.ID, err)
	}
	return nil
}
