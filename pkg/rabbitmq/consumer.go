package rabbitmq

import (
	"fmt"

	"github.com/Eursukkul/booking-microservice/carpool-service/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
)

type Consumer struct {
	queue   string
	conn    *amqp.Connection
	channel *amqp.Channel
	log     logger.ILogger
}

// NewConsumer declares a durable queue bound to exchange with bindingKey.
func NewConsumer(url, exchange, queue, bindingKey string, log logger.ILogger) (*Consumer, error) {
	conn, ch, err := dial(url, exchange)
	if err != nil {
		return nil, err
	}

	q, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("rabbitmq queue declare: %w", err)
	}

	if err := ch.QueueBind(q.Name, bindingKey, exchange, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("rabbitmq queue bind: %w", err)
	}

	return &Consumer{queue: q.Name, conn: conn, channel: ch, log: log}, nil
}

func (c *Consumer) Consume() (<-chan amqp.Delivery, error) {
	msgs, err := c.channel.Consume(
		c.queue,
		"",    // consumer tag
		false, // auto-ack = false, we ack manually after processing
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq consume: %w", err)
	}

	c.log.Info("rabbitmq consuming", logger.String("queue", c.queue))
	return msgs, nil
}

func (c *Consumer) Close() {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}
