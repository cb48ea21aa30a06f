package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/proctorhub/assessment-backend/internal/model"
	amqp "github.com/rabbitmq/amqp091-go"
)

const amqpPublishTimeout = 3 * time.Second

// AMQPChannel is the subset of *amqp.Channel the publisher needs.
type AMQPChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPPublisher emits attempt events to a RabbitMQ topic exchange. The
// routing key is the event type, e.g. "attempt.terminated".
type AMQPPublisher struct {
	ch       AMQPChannel
	exchange string
}

// NewAMQPPublisher creates a new AMQPPublisher.
func NewAMQPPublisher(ch AMQPChannel, exchange string) *AMQPPublisher {
	return &AMQPPublisher{ch: ch, exchange: exchange}
}

func (p *AMQPPublisher) Publish(ctx context.Context, ev model.AttemptEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, amqpPublishTimeout)
	defer cancel()

	err = p.ch.PublishWithContext(ctx,
		p.exchange,      // exchange
		string(ev.Type), // routing key
		false,           // mandatory
		false,           // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    ev.AttemptID.String() + ":" + string(ev.Type) + ":" + fmt.Sprint(ev.At.UnixNano()),
			Timestamp:    ev.At,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("amqp publish %s: %w", ev.Type, err)
	}
	return nil
}
