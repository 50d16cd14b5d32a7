// Package notify hands email notifications to the delivery service.
package notify

import (
	"context"

	"github.com/Eursukkul/booking-microservice/carpool-service/pkg/logger"
)

const routingKey = "notification.email"

// Templates known to the delivery service.
const (
	TemplateBookingConfirmed = "booking_confirmed"
	TemplateBookingCancelled = "booking_cancelled"
	TemplateRouteCancelled   = "route_cancelled"
	TemplatePayoutPaid       = "payout_paid"
)

type Message struct {
	Template string         `json:"template"`
	To       string         `json:"to"`
	Data     map[string]any `json:"data,omitempty"`
}

type Notifier interface {
	Send(ctx context.Context, m Message)
}

type Publisher interface {
	Publish(routingKey string, payload any) error
}

type publisherNotifier struct {
	pub Publisher
	log logger.ILogger
}

func NewPublisherNotifier(pub Publisher, log logger.ILogger) Notifier {
	return &publisherNotifier{pub: pub, log: log}
}

func (n *publisherNotifier) Send(ctx context.Context, m Message) {
	if m.To == "" {
		n.log.Warning("notification skipped, no recipient", logger.String("template", m.Template))
		return
	}
	if err := n.pub.Publish(routingKey, m); err != nil {
		n.log.Error("notification publish failed", logger.String("template", m.Template), logger.Error(err))
	}
}

type logNotifier struct {
	log logger.ILogger
}

func NewLogNotifier(log logger.ILogger) Notifier {
	return &logNotifier{log: log}
}

func (n *logNotifier) Send(ctx context.Context, m Message) {
	n.log.Info("notification", logger.String("template", m.Template), logger.String("to", m.To))
}
