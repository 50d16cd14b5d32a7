package notify

import (
	"context"
	"testing"

	"github.com/Eursukkul/booking-microservice/carpool-service/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	keys []string
	msgs []any
}

func (p *recordingPublisher) Publish(routingKey string, payload any) error {
	p.keys = append(p.keys, routingKey)
	p.msgs = append(p.msgs, payload)
	return nil
}

func TestPublisherNotifier_Send(t *testing.T) {
	pub := &recordingPublisher{}
	n := NewPublisherNotifier(pub, logger.NewNop())

	n.Send(context.Background(), Message{
		Template: TemplateBookingConfirmed,
		To:       "rider@campus.edu",
		Data:     map[string]any{"otp": "123456"},
	})

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "notification.email", pub.keys[0])
	assert.Equal(t, "rider@campus.edu", pub.msgs[0].(Message).To)
}

func TestPublisherNotifier_SkipsMissingRecipient(t *testing.T) {
	pub := &recordingPublisher{}
	n := NewPublisherNotifier(pub, logger.NewNop())

	n.Send(context.Background(), Message{Template: TemplatePayoutPaid})

	assert.Empty(t, pub.msgs)
}
