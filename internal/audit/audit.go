// Package audit emits structured events for every state-changing operation.
// Delivery is fire-and-forget: failures are logged and never reach the caller.
package audit

import (
	"context"
	"time"

	"github.com/Eursukkul/booking-microservice/carpool-service/pkg/logger"
)

const (
	ResultSuccess = "SUCCESS"
	ResultFailure = "FAILURE"
)

// Actions.
const (
	RouteCreate       = "ROUTE_CREATE"
	RouteStopInsert   = "ROUTE_STOP_INSERT"
	RouteCancel       = "ROUTE_CANCEL"
	RouteFinalize     = "ROUTE_FINALIZE"
	RouteAutoFinalize = "ROUTE_AUTO_FINALIZE"
	BookingCreate     = "BOOKING_CREATE"
	BookingCancel     = "BOOKING_CANCEL"
	BookingComplete   = "BOOKING_COMPLETE"
	BookingNoShow     = "BOOKING_NO_SHOW"
	BookingDebtClear  = "BOOKING_DEBT_CLEAR"
	OTPVerify         = "OTP_VERIFY"
	OTPReuse          = "OTP_REUSE"
	OTPMismatch       = "OTP_MISMATCH"
	PaymentCreate     = "PAYMENT_CREATE"
	PaymentOrder      = "PAYMENT_GATEWAY_ORDER"
	PaymentCapture    = "PAYMENT_CAPTURE"
	PaymentReverse    = "PAYMENT_REVERSE"
	PaymentVoid       = "PAYMENT_VOID"
	PayoutGenerate    = "PAYOUT_GENERATE"
	PayoutExecute     = "PAYOUT_EXECUTE"
	PayoutFail        = "PAYOUT_FAIL"
)

type Event struct {
	Action     string         `json:"action"`
	UserID     uint           `json:"user_id"`
	Result     string         `json:"result"`
	IPAddress  string         `json:"ip_address"`
	UserAgent  string         `json:"user_agent"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

type Logger interface {
	LogEvent(ctx context.Context, e Event)
}

type requestInfoKey struct{}

type requestInfo struct {
	ip string
	ua string
}

// WithRequestInfo attaches the caller's network details for later events.
func WithRequestInfo(ctx context.Context, ip, userAgent string) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, requestInfo{ip: ip, ua: userAgent})
}

func fill(ctx context.Context, e Event) Event {
	if info, ok := ctx.Value(requestInfoKey{}).(requestInfo); ok {
		if e.IPAddress == "" {
			e.IPAddress = info.ip
		}
		if e.UserAgent == "" {
			e.UserAgent = info.ua
		}
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	if e.Result == "" {
		e.Result = ResultSuccess
	}
	return e
}

// Publisher is satisfied by *rabbitmq.Publisher.
type Publisher interface {
	Publish(routingKey string, payload any) error
}

type publisherLogger struct {
	pub Publisher
	log logger.ILogger
}

func NewPublisherLogger(pub Publisher, log logger.ILogger) Logger {
	return &publisherLogger{pub: pub, log: log}
}

func (l *publisherLogger) LogEvent(ctx context.Context, e Event) {
	e = fill(ctx, e)
	if err := l.pub.Publish("audit."+e.Action, e); err != nil {
		l.log.Error("audit publish failed",
			logger.String("action", e.Action),
			logger.Uint("user_id", e.UserID),
			logger.Error(err),
		)
	}
}

type logOnly struct {
	log logger.ILogger
}

// NewLogOnly writes audit events to the application log only.
func NewLogOnly(log logger.ILogger) Logger {
	return &logOnly{log: log}
}

func (l *logOnly) LogEvent(ctx context.Context, e Event) {
	e = fill(ctx, e)
	l.log.Info("audit",
		logger.String("action", e.Action),
		logger.Uint("user_id", e.UserID),
		logger.String("result", e.Result),
		logger.String("ip", e.IPAddress),
		logger.Any("metadata", e.Metadata),
	)
}
