package consumer

import (
	"context"
	"encoding/json"

	"github.com/Eursukkul/booking-microservice/carpool-service/internal/audit"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/models"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/repository"
	"github.com/Eursukkul/booking-microservice/carpool-service/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
)

// AuditConsumer persists audit events published by the services.
type AuditConsumer struct {
	repo repository.AuditRepository
	log  logger.ILogger
}

func NewAuditConsumer(repo repository.AuditRepository, log logger.ILogger) *AuditConsumer {
	return &AuditConsumer{repo: repo, log: log}
}

// Start processes deliveries until the channel closes or ctx is done.
func (c *AuditConsumer) Start(ctx context.Context, msgs <-chan amqp.Delivery) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					c.log.Warning("audit delivery channel closed, stopping consumer")
					return
				}
				c.handleMessage(ctx, msg)
			}
		}
	}()
}

func (c *AuditConsumer) handleMessage(ctx context.Context, msg amqp.Delivery) {
	var e audit.Event
	if err := json.Unmarshal(msg.Body, &e); err != nil {
		c.log.Error("audit message is not valid json", logger.Error(err))
		msg.Nack(false, false)
		return
	}

	row := &models.AuditEvent{
		Action:     e.Action,
		UserID:     e.UserID,
		Result:     e.Result,
		IPAddress:  e.IPAddress,
		UserAgent:  e.UserAgent,
		Metadata:   "{}",
		OccurredAt: e.OccurredAt,
	}
	if len(e.Metadata) > 0 {
		if raw, err := json.Marshal(e.Metadata); err == nil {
			row.Metadata = string(raw)
		}
	}

	if err := c.repo.Create(ctx, row); err != nil {
		c.log.Error("audit event not stored", logger.String("action", e.Action), logger.Error(err))
		msg.Nack(false, true) // requeue
		return
	}
	msg.Ack(false)
}
