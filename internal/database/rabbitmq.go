package database

import (
	"fmt"

	"github.com/proctorhub/assessment-backend/internal/config"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// NewRabbitMQChannel dials RabbitMQ, opens a channel and declares the durable
// topic exchange attempt events are published to.
func NewRabbitMQChannel(cfg *config.Config, log zerolog.Logger) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		return nil, nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		cfg.AMQPExchange, // name
		"topic",          // type
		true,             // durable
		false,            // auto-deleted
		false,            // internal
		false,            // no-wait
		nil,              // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("declare exchange: %w", err)
	}

	log.Info().
		Str("exchange", cfg.AMQPExchange).
		Msg("RabbitMQ connected")

	return conn, ch, nil
}
