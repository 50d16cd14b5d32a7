package service

import (
	"context"
	"errors"
	"strings"

	"github.com/Eursukkul/booking-microservice/carpool-service/config"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/apperr"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/audit"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/auth"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/idempotency"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/models"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/publicid"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/repository"
	"github.com/Eursukkul/booking-microservice/carpool-service/pkg/logger"
	"gorm.io/gorm"
)

type GatewayOrder struct {
	Payment     *models.Payment `json:"payment"`
	OrderID     string          `json:"order_id"`
	ApprovalURL string          `json:"approval_url"`
}

type PaymentService interface {
	CreatePayment(ctx context.Context, p auth.Principal, bookingID string, method models.PaymentMethod, idempotencyKey string) (*models.Payment, error)
	GetPayment(ctx context.Context, p auth.Principal, paymentID string) (*models.Payment, error)
	CreateGatewayOrder(ctx context.Context, p auth.Principal, paymentID string) (*GatewayOrder, error)
	CaptureGatewayOrder(ctx context.Context, p auth.Principal, paymentID, gatewayOrderID string) (*models.Payment, error)
	ReversePayment(ctx context.Context, p auth.Principal, paymentID, idempotencyKey string) (*models.Payment, error)

	// ReversePaymentByID refunds a PAID payment. On a gateway failure the
	// payment is left FAILED and the error is returned with it.
	ReversePaymentByID(ctx context.Context, actor auth.Principal, id uint) (*models.Payment, error)
	// VoidPendingPayment marks a PENDING payment FAILED; other statuses are untouched.
	// A failed cash payment on a booking that is not cancelled raises its debt marker.
	VoidPendingPayment(ctx context.Context, actor auth.Principal, id uint, reason string) (*models.Payment, error)
}

type paymentService struct {
	uow     repository.UnitOfWork
	gateway PaymentGateway
	guard   *idempotency.Guard
	ids     publicid.Allocator
	audit   audit.Logger
	policy  config.Policy
	log     logger.ILogger
	now     Clock
}

func NewPaymentService(
	uow repository.UnitOfWork,
	gw PaymentGateway,
	guard *idempotency.Guard,
	ids publicid.Allocator,
	auditLog audit.Logger,
	policy config.Policy,
	log logger.ILogger,
	now Clock,
) PaymentService {
	return &paymentService{
		uow:     uow,
		gateway: gw,
		guard:   guard,
		ids:     ids,
		audit:   auditLog,
		policy:  policy,
		log:     log,
		now:     now,
	}
}

func (s *paymentService) CreatePayment(ctx context.Context, p auth.Principal, bookingID string, method models.PaymentMethod, idempotencyKey string) (*models.Payment, error) {
	return idempotency.Run(ctx, s.guard, idempotency.ScopePaymentCreate, p.ID, idempotencyKey,
		func(ctx context.Context) (*models.Payment, error) {
			payment, err := s.createPayment(ctx, p, bookingID, method)
			meta := map[string]any{"booking_id": bookingID, "method": string(method)}
			if payment != nil {
				meta["payment_id"] = payment.ExternalID
			}
			record(ctx, s.audit, audit.PaymentCreate, p, err, meta)
			return payment, err
		})
}

func (s *paymentService) createPayment(ctx context.Context, p auth.Principal, bookingID string, method models.PaymentMethod) (*models.Payment, error) {
	if err := p.Require(auth.RolePassenger); err != nil {
		return nil, err
	}
	if !method.Valid() {
		return nil, ErrInvalidMethod
	}

	booking, err := s.uow.Bookings().FindByExternalID(ctx, bookingID)
	if err != nil {
		return nil, notFound(err, ErrBookingNotFound)
	}
	if booking.PassengerID != p.ID {
		return nil, ErrNotBookingOwner
	}

	var payment *models.Payment
	err = s.uow.Transaction(ctx, func(tx repository.Repositories) error {
		b, err := tx.Bookings().FindByIDForUpdate(ctx, booking.ID)
		if err != nil {
			return notFound(err, ErrBookingNotFound)
		}
		if b.State != models.BookingConfirmed {
			return ErrBookingNotConfirmed
		}
		if b.PaymentMethod != method {
			return ErrMethodMismatch
		}
		route, err := tx.Routes().FindByID(ctx, b.RouteID)
		if err != nil {
			return notFound(err, ErrRouteNotFound)
		}
		if route.PricePerSeat <= 0 {
			return ErrRouteUnpriced
		}
		_, err = tx.Payments().FindByBookingID(ctx, b.ID)
		switch {
		case err == nil:
			return ErrPaymentExists
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		id, err := allocate(ctx, s.ids, publicid.Payment, tx.Payments().ExternalIDExists)
		if err != nil {
			return err
		}
		payment = &models.Payment{
			ExternalID: id,
			BookingID:  b.ID,
			Amount:     route.PricePerSeat,
			Currency:   s.policy.Currency,
			Method:     method,
			Status:     models.PaymentPending,
		}
		if err := duplicate(tx.Payments().Create(ctx, payment), ErrPaymentExists); err != nil {
			return err
		}
		b.Route = route
		payment.Booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// ownedPayment loads a payment and checks it belongs to the calling passenger.
func (s *paymentService) ownedPayment(ctx context.Context, p auth.Principal, paymentID string) (*models.Payment, error) {
	payment, err := s.uow.Payments().FindByExternalID(ctx, paymentID)
	if err != nil {
		return nil, notFound(err, ErrPaymentNotFound)
	}
	if p.Operator() {
		return payment, nil
	}
	if payment.Booking == nil || payment.Booking.PassengerID != p.ID {
		return nil, ErrNotBookingOwner
	}
	return payment, nil
}

func (s *paymentService) GetPayment(ctx context.Context, p auth.Principal, paymentID string) (*models.Payment, error) {
	return s.ownedPayment(ctx, p, paymentID)
}

func (s *paymentService) CreateGatewayOrder(ctx context.Context, p auth.Principal, paymentID string) (*GatewayOrder, error) {
	out, err := s.createGatewayOrder(ctx, p, paymentID)
	meta := map[string]any{"payment_id": paymentID}
	if out != nil {
		meta["order_id"] = out.OrderID
	}
	record(ctx, s.audit, audit.PaymentOrder, p, err, meta)
	return out, err
}

func (s *paymentService) createGatewayOrder(ctx context.Context, p auth.Principal, paymentID string) (*GatewayOrder, error) {
	if err := p.Require(auth.RolePassenger); err != nil {
		return nil, err
	}
	payment, err := s.ownedPayment(ctx, p, paymentID)
	if err != nil {
		return nil, err
	}
	if !payment.Method.Digital() {
		return nil, ErrNotDigital
	}
	if payment.Status != models.PaymentPending {
		return nil, ErrPaymentNotPending
	}

	order, err := s.gateway.CreateOrder(ctx, payment.ExternalID, payment.Amount, payment.Currency)
	if err != nil {
		return nil, err
	}

	err = s.uow.Transaction(ctx, func(tx repository.Repositories) error {
		locked, err := tx.Payments().FindByIDForUpdate(ctx, payment.ID)
		if err != nil {
			return notFound(err, ErrPaymentNotFound)
		}
		if locked.Status != models.PaymentPending {
			return ErrPaymentNotPending
		}
		locked.GatewayOrderID = ptr(order.ID)
		locked.Booking = payment.Booking
		payment = locked
		return tx.Payments().Update(ctx, locked)
	})
	if err != nil {
		return nil, err
	}
	return &GatewayOrder{Payment: payment, OrderID: order.ID, ApprovalURL: order.ApprovalURL}, nil
}

func (s *paymentService) CaptureGatewayOrder(ctx context.Context, p auth.Principal, paymentID, gatewayOrderID string) (*models.Payment, error) {
	payment, err := s.captureGatewayOrder(ctx, p, paymentID, strings.TrimSpace(gatewayOrderID))
	record(ctx, s.audit, audit.PaymentCapture, p, err, map[string]any{"payment_id": paymentID, "order_id": gatewayOrderID})
	return payment, err
}

func (s *paymentService) captureGatewayOrder(ctx context.Context, p auth.Principal, paymentID, gatewayOrderID string) (*models.Payment, error) {
	if err := p.Require(auth.RolePassenger); err != nil {
		return nil, err
	}
	if gatewayOrderID == "" {
		return nil, apperr.Validation("order_id", "is required")
	}
	payment, err := s.ownedPayment(ctx, p, paymentID)
	if err != nil {
		return nil, err
	}
	if !payment.Method.Digital() {
		return nil, ErrNotDigital
	}

	err = s.uow.Transaction(ctx, func(tx repository.Repositories) error {
		locked, err := tx.Payments().FindByIDForUpdate(ctx, payment.ID)
		if err != nil {
			return notFound(err, ErrPaymentNotFound)
		}
		if locked.Status != models.PaymentPending {
			return ErrPaymentNotPending
		}
		if locked.GatewayOrderID == nil {
			return ErrNoGatewayOrder
		}
		if *locked.GatewayOrderID != gatewayOrderID {
			return ErrOrderMismatch
		}

		capture, err := s.gateway.CaptureOrder(ctx, gatewayOrderID)
		if err != nil {
			return err
		}
		if !capture.Completed() {
			s.log.Warning("capture not completed by provider",
				logger.String("payment_id", locked.ExternalID),
				logger.String("order_status", capture.OrderStatus),
				logger.String("capture_status", capture.CaptureStatus),
			)
			return ErrCaptureIncomplete
		}

		now := s.now()
		locked.Status = models.PaymentPaid
		locked.PaidAt = &now
		locked.GatewayCaptureID = ptr(capture.CaptureID)
		locked.Booking = payment.Booking
		payment = locked
		return tx.Payments().Update(ctx, locked)
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

func (s *paymentService) ReversePayment(ctx context.Context, p auth.Principal, paymentID, idempotencyKey string) (*models.Payment, error) {
	return idempotency.Run(ctx, s.guard, idempotency.ScopePaymentReverse, p.ID, idempotencyKey,
		func(ctx context.Context) (*models.Payment, error) {
			if !p.Operator() {
				err := apperr.Forbidden("only operators may reverse payments")
				record(ctx, s.audit, audit.PaymentReverse, p, err, map[string]any{"payment_id": paymentID})
				return nil, err
			}
			payment, err := s.uow.Payments().FindByExternalID(ctx, paymentID)
			if err != nil {
				err = notFound(err, ErrPaymentNotFound)
				record(ctx, s.audit, audit.PaymentReverse, p, err, map[string]any{"payment_id": paymentID})
				return nil, err
			}
			reversed, err := s.ReversePaymentByID(ctx, p, payment.ID)
			if reversed != nil {
				reversed.Booking = payment.Booking
			}
			return reversed, err
		})
}

func (s *paymentService) ReversePaymentByID(ctx context.Context, actor auth.Principal, id uint) (*models.Payment, error) {
	var (
		payment    *models.Payment
		gatewayErr error
	)
	err := s.uow.Transaction(ctx, func(tx repository.Repositories) error {
		locked, err := tx.Payments().FindByIDForUpdate(ctx, id)
		if err != nil {
			return notFound(err, ErrPaymentNotFound)
		}
		if locked.Status != models.PaymentPaid {
			return ErrPaymentNotPaid
		}

		if locked.Method.Digital() {
			gatewayErr = s.refund(ctx, locked)
		}

		now := s.now()
		if gatewayErr != nil {
			locked.Status = models.PaymentFailed
			locked.FailureReason = ptr(failureReason(gatewayErr))
		} else {
			locked.Status = models.PaymentReversed
			locked.ReversedAt = &now
		}
		payment = locked
		return tx.Payments().Update(ctx, locked)
	})
	if err == nil {
		err = gatewayErr
	}

	meta := map[string]any{}
	if payment != nil {
		meta["payment_id"] = payment.ExternalID
		meta["status"] = string(payment.Status)
	}
	record(ctx, s.audit, audit.PaymentReverse, actor, err, meta)
	return payment, err
}

func (s *paymentService) refund(ctx context.Context, payment *models.Payment) error {
	if payment.GatewayCaptureID == nil || *payment.GatewayCaptureID == "" {
		return &apperr.GatewayError{Op: "refund capture", Status: "missing capture id"}
	}
	_, err := s.gateway.RefundCapture(ctx, *payment.GatewayCaptureID, payment.Amount, payment.Currency)
	return err
}

func (s *paymentService) VoidPendingPayment(ctx context.Context, actor auth.Principal, id uint, reason string) (*models.Payment, error) {
	var payment *models.Payment
	var voided bool
	err := s.uow.Transaction(ctx, func(tx repository.Repositories) error {
		current, err := tx.Payments().FindByID(ctx, id)
		if err != nil {
			return notFound(err, ErrPaymentNotFound)
		}
		// booking before payment, the order cancelBooking takes them in
		booking, err := tx.Bookings().FindByIDForUpdate(ctx, current.BookingID)
		if err != nil {
			return notFound(err, ErrBookingNotFound)
		}
		locked, err := tx.Payments().FindByIDForUpdate(ctx, id)
		if err != nil {
			return notFound(err, ErrPaymentNotFound)
		}
		payment = locked
		voided, err = voidPending(ctx, tx, locked, reason)
		if err != nil || !voided {
			return err
		}
		return markCashDebt(ctx, tx, booking, locked)
	})
	if voided || err != nil {
		meta := map[string]any{"reason": reason}
		if payment != nil {
			meta["payment_id"] = payment.ExternalID
		}
		record(ctx, s.audit, audit.PaymentVoid, actor, err, meta)
	}
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// markCashDebt flags a live cash booking whose payment has failed. The
// passenger cannot book again until an operator clears it.
func markCashDebt(ctx context.Context, tx repository.Repositories, b *models.Booking, payment *models.Payment) error {
	if payment.Method != models.MethodCash || b.State == models.BookingCancelled || b.DebtOutstanding {
		return nil
	}
	b.DebtOutstanding = true
	return tx.Bookings().Update(ctx, b)
}

// voidPending marks a PENDING payment FAILED inside tx.
func voidPending(ctx context.Context, tx repository.Repositories, payment *models.Payment, reason string) (bool, error) {
	if payment.Status != models.PaymentPending {
		return false, nil
	}
	payment.Status = models.PaymentFailed
	payment.FailureReason = ptr(reason)
	return true, tx.Payments().Update(ctx, payment)
}
