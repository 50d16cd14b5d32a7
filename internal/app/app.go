// Package app assembles the settlement engine from configuration.
package app

import (
	"time"

	"github.com/Eursukkul/booking-microservice/carpool-service/config"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/audit"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/gateway"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/idempotency"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/notify"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/publicid"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/repository"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/service"
	"github.com/Eursukkul/booking-microservice/carpool-service/pkg/logger"
	"github.com/Eursukkul/booking-microservice/carpool-service/pkg/rabbitmq"
	"gorm.io/gorm"
)

type Engine struct {
	Routes   service.RouteService
	Bookings service.BookingService
	Payments service.PaymentService
	Payouts  service.PayoutService

	Idempotency *idempotency.GormStore

	closers []func()
}

// Build wires the services over db. With RabbitMQ disabled, audit events
// and notifications only go to the log.
func Build(cfg config.Config, db *gorm.DB, log logger.ILogger) (*Engine, error) {
	eng := &Engine{}

	auditLog := audit.NewLogOnly(log)
	notifier := notify.NewLogNotifier(log)
	if cfg.RabbitEnabled {
		auditPub, err := rabbitmq.NewPublisher(cfg.RabbitURL, rabbitmq.AuditExchange, log)
		if err != nil {
			return nil, err
		}
		eng.closers = append(eng.closers, auditPub.Close)

		notifyPub, err := rabbitmq.NewPublisher(cfg.RabbitURL, rabbitmq.NotificationExchange, log)
		if err != nil {
			eng.Close()
			return nil, err
		}
		eng.closers = append(eng.closers, notifyPub.Close)

		auditLog = audit.NewPublisherLogger(auditPub, log)
		notifier = notify.NewPublisherNotifier(notifyPub, log)
	}

	store := repository.NewStore(db)
	eng.Idempotency = idempotency.NewGormStore(db)
	guard := idempotency.NewGuard(eng.Idempotency, cfg.Policy.IdempotencyTTL, log)
	gw := gateway.NewPayPalClient(cfg.PayPal, log)
	ids := publicid.NewAllocator()
	now := service.Clock(time.Now)

	eng.Payments = service.NewPaymentService(store, gw, guard, ids, auditLog, cfg.Policy, log, now)
	eng.Routes = service.NewRouteService(store, eng.Payments, ids, auditLog, notifier, cfg.Policy, log, now)
	eng.Bookings = service.NewBookingService(store, eng.Routes, eng.Payments, ids, auditLog, notifier, cfg.Policy, log, now)
	eng.Payouts = service.NewPayoutService(store, gw, guard, ids, auditLog, notifier, cfg.Policy, log, now)

	return eng, nil
}

// Close releases the broker connections opened by Build.
func (e *Engine) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}
