package rabbitmq

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Eursukkul/booking-microservice/carpool-service/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
)

type Publisher struct {
	exchange string
	conn     *amqp.Connection
	channel  *amqp.Channel
	log      logger.ILogger

	mu sync.Mutex
}

func NewPublisher(url, exchange string, log logger.ILogger) (*Publisher, error) {
	conn, ch, err := dial(url, exchange)
	if err != nil {
		return nil, err
	}
	return &Publisher{exchange: exchange, conn: conn, channel: ch, log: log}, nil
}

// Publish sends payload as a persistent JSON message. It is safe for
// concurrent use.
func (p *Publisher) Publish(routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.channel.Publish(
		p.exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	p.log.Debug("rabbitmq published",
		logger.String("exchange", p.exchange),
		logger.String("routing_key", routingKey),
	)
	return nil
}

func (p *Publisher) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
