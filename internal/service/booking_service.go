package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"

	"github.com/Eursukkul/booking-microservice/carpool-service/config"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/apperr"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/audit"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/auth"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/models"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/notify"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/publicid"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/repository"
	"github.com/Eursukkul/booking-microservice/carpool-service/pkg/logger"
	"gorm.io/gorm"
)

// RefundOutcome describes what happened to the payment of a cancelled booking.
type RefundOutcome string

const (
	RefundNone     RefundOutcome = "NONE"
	RefundNoRefund RefundOutcome = "NO_REFUND"
	RefundReversed RefundOutcome = "REFUNDED"
	RefundFailed   RefundOutcome = "REFUND_FAILED"
	RefundVoided   RefundOutcome = "PAYMENT_VOIDED"
)

type CreateBookingInput struct {
	Method models.PaymentMethod
	Pickup StopInput
}

type CreateBookingResult struct {
	Booking *models.Booking
	OTP     string
}

type CancelBookingResult struct {
	Booking *models.Booking
	Refund  RefundOutcome
}

type BookingService interface {
	CreateBooking(ctx context.Context, p auth.Principal, routeID string, in CreateBookingInput) (*CreateBookingResult, error)
	GetBooking(ctx context.Context, p auth.Principal, bookingID string) (*models.Booking, error)
	ListRouteBookings(ctx context.Context, p auth.Principal, routeID string) ([]models.Booking, error)
	VerifyOTP(ctx context.Context, p auth.Principal, bookingID, code string) (*models.Booking, error)
	CompleteBooking(ctx context.Context, p auth.Principal, bookingID string) (*models.Booking, error)
	CancelBooking(ctx context.Context, p auth.Principal, bookingID string) (*CancelBookingResult, error)
	MarkNoShow(ctx context.Context, p auth.Principal, bookingID string) (*models.Booking, error)
	ClearPassengerDebt(ctx context.Context, p auth.Principal, bookingID string) (*models.Booking, error)
}

type bookingService struct {
	uow      repository.UnitOfWork
	routes   RouteService
	payments PaymentService
	ids      publicid.Allocator
	audit    audit.Logger
	notifier notify.Notifier
	policy   config.Policy
	log      logger.ILogger
	now      Clock
	otp      func() (string, error)
}

func NewBookingService(
	uow repository.UnitOfWork,
	routes RouteService,
	payments PaymentService,
	ids publicid.Allocator,
	auditLog audit.Logger,
	notifier notify.Notifier,
	policy config.Policy,
	log logger.ILogger,
	now Clock,
) BookingService {
	return &bookingService{
		uow:      uow,
		routes:   routes,
		payments: payments,
		ids:      ids,
		audit:    auditLog,
		notifier: notifier,
		policy:   policy,
		log:      log,
		now:      now,
		otp:      generateOTP,
	}
}

// generateOTP returns a uniformly random six digit code.
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func (s *bookingService) CreateBooking(ctx context.Context, p auth.Principal, routeID string, in CreateBookingInput) (*CreateBookingResult, error) {
	res, err := s.createBooking(ctx, p, routeID, in)
	meta := map[string]any{"route_id": routeID, "method": string(in.Method)}
	if res != nil {
		meta["booking_id"] = res.Booking.ExternalID
	}
	record(ctx, s.audit, audit.BookingCreate, p, err, meta)
	return res, err
}

func (s *bookingService) createBooking(ctx context.Context, p auth.Principal, routeID string, in CreateBookingInput) (*CreateBookingResult, error) {
	if err := p.Require(auth.RolePassenger); err != nil {
		return nil, err
	}
	if !in.Method.Valid() {
		return nil, ErrInvalidMethod
	}

	var pickup *models.Stop
	if !in.Pickup.Empty() {
		st, err := in.Pickup.toStop()
		if err != nil {
			return nil, err
		}
		pickup = &st
	}

	passenger, err := s.uow.Profiles().FindPassenger(ctx, p.ID)
	if err != nil {
		return nil, notFound(err, ErrPassengerNotFound)
	}
	if passenger.RatingBlocked(s.policy.MinPassengerRating) {
		return nil, ErrPassengerBlocked
	}
	debt, err := s.uow.Bookings().HasCashDebt(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if debt {
		return nil, ErrCashDebt
	}

	route, err := s.uow.Routes().FindByExternalID(ctx, routeID)
	if err != nil {
		return nil, notFound(err, ErrRouteNotFound)
	}

	var booking *models.Booking
	var otp string
	err = s.uow.Transaction(ctx, func(tx repository.Repositories) error {
		// Lock the route row; concurrent bookings on it serialize here.
		locked, err := tx.Routes().FindByIDForUpdate(ctx, route.ID)
		if err != nil {
			return notFound(err, ErrRouteNotFound)
		}
		if locked.State != models.RouteActive {
			return ErrRouteNotActive
		}
		if !s.now().Before(locked.DepartureAt) {
			return ErrRouteDeparted
		}
		if locked.SeatsAvailable <= 0 {
			return ErrRouteFull
		}
		if locked.PricePerSeat <= 0 {
			return ErrRouteUnpriced
		}

		_, err = tx.Bookings().FindByRouteAndPassenger(ctx, locked.ID, p.ID)
		if err == nil {
			return ErrAlreadyBooked
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := s.routes.ReserveSeat(ctx, tx, locked.ID); err != nil {
			return err
		}

		b := &models.Booking{
			RouteID:       locked.ID,
			PassengerID:   p.ID,
			State:         models.BookingConfirmed,
			PaymentMethod: in.Method,
		}
		if pickup != nil {
			stop, err := s.routes.InsertStopTx(ctx, tx, locked.ID, *pickup)
			if err != nil {
				return err
			}
			b.PickupStopID = &stop.ID
		}

		if otp, err = s.otp(); err != nil {
			return err
		}
		b.OTP = otp

		if b.ExternalID, err = allocate(ctx, s.ids, publicid.Booking, tx.Bookings().ExternalIDExists); err != nil {
			return err
		}
		if err := tx.Bookings().Create(ctx, b); err != nil {
			return duplicate(err, ErrAlreadyBooked)
		}
		b.Route = locked
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Send(ctx, notify.Message{
		Template: notify.TemplateBookingConfirmed,
		To:       passenger.Email,
		Data: map[string]any{
			"booking_id":   booking.ExternalID,
			"route_id":     route.ExternalID,
			"departure_at": route.DepartureAt,
			"otp":          otp,
		},
	})
	return &CreateBookingResult{Booking: booking, OTP: otp}, nil
}

func (s *bookingService) GetBooking(ctx context.Context, p auth.Principal, bookingID string) (*models.Booking, error) {
	booking, err := s.uow.Bookings().FindByExternalID(ctx, bookingID)
	if err != nil {
		return nil, notFound(err, ErrBookingNotFound)
	}
	switch {
	case p.Operator():
	case p.Is(auth.RolePassenger) && booking.PassengerID == p.ID:
	case p.Is(auth.RoleDriver) && booking.Route != nil && booking.Route.OwnedBy(p.ID):
	default:
		return nil, apperr.Forbidden("booking is not visible to the caller")
	}
	return booking, nil
}

func (s *bookingService) ListRouteBookings(ctx context.Context, p auth.Principal, routeID string) ([]models.Booking, error) {
	route, err := s.uow.Routes().FindByExternalID(ctx, routeID)
	if err != nil {
		return nil, notFound(err, ErrRouteNotFound)
	}
	if !p.Operator() && !(p.Is(auth.RoleDriver) && route.OwnedBy(p.ID)) {
		return nil, ErrNotRouteOwner
	}
	return s.uow.Bookings().ListByRoute(ctx, route.ID)
}

// driverBooking checks the caller is an approved driver owning the booking's
// route and returns the booking. Used before locking.
func (s *bookingService) driverBooking(ctx context.Context, p auth.Principal, bookingID string) (*models.Booking, error) {
	if err := p.Require(auth.RoleDriver); err != nil {
		return nil, err
	}
	driver, err := s.uow.Profiles().FindDriver(ctx, p.ID)
	if err != nil {
		return nil, notFound(err, ErrDriverNotApproved)
	}
	if driver.Status != models.DriverApproved {
		return nil, ErrDriverNotApproved
	}
	booking, err := s.uow.Bookings().FindByExternalID(ctx, bookingID)
	if err != nil {
		return nil, notFound(err, ErrBookingNotFound)
	}
	if booking.Route == nil || !booking.Route.OwnedBy(p.ID) {
		return nil, ErrNotRouteOwner
	}
	return booking, nil
}

// lockBooking locks b's route and then b. Every transaction that locks both
// a route and one of its bookings takes them in this order, as cancelRoute does.
func lockBooking(ctx context.Context, tx repository.Repositories, b *models.Booking) (*models.Route, *models.Booking, error) {
	route, err := tx.Routes().FindByIDForUpdate(ctx, b.RouteID)
	if err != nil {
		return nil, nil, notFound(err, ErrRouteNotFound)
	}
	locked, err := tx.Bookings().FindByIDForUpdate(ctx, b.ID)
	if err != nil {
		return nil, nil, notFound(err, ErrBookingNotFound)
	}
	return route, locked, nil
}

func (s *bookingService) VerifyOTP(ctx context.Context, p auth.Principal, bookingID, code string) (*models.Booking, error) {
	var security string
	booking, err := s.driverBooking(ctx, p, bookingID)
	if err == nil {
		err = s.uow.Transaction(ctx, func(tx repository.Repositories) error {
			locked, err := tx.Bookings().FindByIDForUpdate(ctx, booking.ID)
			if err != nil {
				return notFound(err, ErrBookingNotFound)
			}
			if locked.State != models.BookingConfirmed {
				return ErrBookingNotConfirmed
			}
			if locked.OTPUsed {
				security = audit.OTPReuse
				return ErrOTPAlreadyUsed
			}
			if subtle.ConstantTimeCompare([]byte(locked.OTP), []byte(code)) != 1 {
				security = audit.OTPMismatch
				return ErrOTPMismatch
			}
			locked.OTPUsed = true
			booking = locked
			return tx.Bookings().Update(ctx, locked)
		})
	}

	meta := map[string]any{"booking_id": bookingID}
	if security != "" {
		s.log.Warning("otp rejected",
			logger.String("event", security),
			logger.String("booking_id", bookingID),
			logger.Uint("driver_id", p.ID),
		)
		record(ctx, s.audit, security, p, err, meta)
	} else {
		record(ctx, s.audit, audit.OTPVerify, p, err, meta)
	}
	if err != nil {
		return nil, err
	}
	return booking, nil
}

func (s *bookingService) CompleteBooking(ctx context.Context, p auth.Principal, bookingID string) (*models.Booking, error) {
	var finalized bool
	booking, err := s.driverBooking(ctx, p, bookingID)
	if err == nil {
		err = s.uow.Transaction(ctx, func(tx repository.Repositories) error {
			_, locked, err := lockBooking(ctx, tx, booking)
			if err != nil {
				return err
			}
			if locked.State != models.BookingConfirmed {
				return ErrBookingNotConfirmed
			}
			if !locked.OTPUsed {
				return ErrOTPNotVerified
			}
			now := s.now()
			locked.State = models.BookingCompleted
			locked.CompletedAt = &now
			if err := tx.Bookings().Update(ctx, locked); err != nil {
				return err
			}
			booking = locked
			finalized, err = s.routes.FinalizeIfSettled(ctx, tx, locked.RouteID)
			return err
		})
	}
	record(ctx, s.audit, audit.BookingComplete, p, err, map[string]any{"booking_id": bookingID, "route_finalized": finalized})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

func (s *bookingService) CancelBooking(ctx context.Context, p auth.Principal, bookingID string) (*CancelBookingResult, error) {
	res, err := s.cancelBooking(ctx, p, bookingID)
	meta := map[string]any{"booking_id": bookingID}
	if res != nil {
		meta["refund"] = string(res.Refund)
	}
	record(ctx, s.audit, audit.BookingCancel, p, err, meta)
	return res, err
}

func (s *bookingService) cancelBooking(ctx context.Context, p auth.Principal, bookingID string) (*CancelBookingResult, error) {
	if err := p.Require(auth.RolePassenger); err != nil {
		return nil, err
	}
	booking, err := s.uow.Bookings().FindByExternalID(ctx, bookingID)
	if err != nil {
		return nil, notFound(err, ErrBookingNotFound)
	}
	if booking.PassengerID != p.ID {
		return nil, ErrNotBookingOwner
	}

	res := &CancelBookingResult{Refund: RefundNone}
	var paidPaymentID uint
	err = s.uow.Transaction(ctx, func(tx repository.Repositories) error {
		route, locked, err := lockBooking(ctx, tx, booking)
		if err != nil {
			return err
		}
		if locked.State != models.BookingConfirmed {
			return ErrBookingNotConfirmed
		}
		now := s.now()
		untilDeparture := route.DepartureAt.Sub(now)
		if untilDeparture <= 0 {
			return ErrRouteDeparted
		}

		if err := s.routes.ReleaseSeat(ctx, tx, route.ID); err != nil {
			return err
		}
		locked.State = models.BookingCancelled
		locked.CancelledAt = &now
		if err := tx.Bookings().Update(ctx, locked); err != nil {
			return err
		}
		locked.Route = route
		res.Booking = locked

		if untilDeparture < s.policy.NoRefundWindow {
			// Late cancellation: the payment is left exactly as it is.
			res.Refund = RefundNoRefund
			return nil
		}

		payment, err := tx.Payments().FindByBookingID(ctx, locked.ID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		switch payment.Status {
		case models.PaymentPending:
			if _, err := voidPending(ctx, tx, payment, "Booking cancelled"); err != nil {
				return err
			}
			res.Refund = RefundVoided
		case models.PaymentPaid:
			paidPaymentID = payment.ID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if paidPaymentID != 0 {
		// The cancellation is committed; a failed reversal leaves the
		// payment FAILED and is reported in the outcome only.
		if _, err := s.payments.ReversePaymentByID(ctx, p, paidPaymentID); err != nil {
			s.log.Error("booking cancel: reversal failed", logger.String("booking_id", bookingID), logger.Error(err))
			res.Refund = RefundFailed
		} else {
			res.Refund = RefundReversed
		}
	}

	if passenger, err := s.uow.Profiles().FindPassenger(ctx, p.ID); err == nil {
		s.notifier.Send(ctx, notify.Message{
			Template: notify.TemplateBookingCancelled,
			To:       passenger.Email,
			Data:     map[string]any{"booking_id": bookingID, "refund": string(res.Refund)},
		})
	}
	return res, nil
}

func (s *bookingService) MarkNoShow(ctx context.Context, p auth.Principal, bookingID string) (*models.Booking, error) {
	booking, err := s.driverBooking(ctx, p, bookingID)
	if err == nil {
		err = s.uow.Transaction(ctx, func(tx repository.Repositories) error {
			route, locked, err := lockBooking(ctx, tx, booking)
			if err != nil {
				return err
			}
			if locked.State != models.BookingConfirmed {
				return ErrBookingNotConfirmed
			}
			now := s.now()
			if now.Before(route.DepartureAt.Add(s.policy.NoShowGrace)) {
				return ErrNoShowTooEarly
			}
			if locked.OTPUsed {
				return ErrTripStarted
			}

			locked.State = models.BookingNoShow
			locked.NoShowAt = &now
			locked.DebtOutstanding = locked.PaymentMethod == models.MethodCash
			if err := tx.Bookings().Update(ctx, locked); err != nil {
				return err
			}
			booking = locked
			_, err = s.routes.FinalizeIfSettled(ctx, tx, locked.RouteID)
			return err
		})
	}
	record(ctx, s.audit, audit.BookingNoShow, p, err, map[string]any{"booking_id": bookingID})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

func (s *bookingService) ClearPassengerDebt(ctx context.Context, p auth.Principal, bookingID string) (*models.Booking, error) {
	var booking *models.Booking
	err := p.Require(auth.RoleAdmin)
	if err == nil {
		booking, err = s.uow.Bookings().FindByExternalID(ctx, bookingID)
		err = notFound(err, ErrBookingNotFound)
	}
	if err == nil {
		err = s.uow.Transaction(ctx, func(tx repository.Repositories) error {
			locked, err := tx.Bookings().FindByIDForUpdate(ctx, booking.ID)
			if err != nil {
				return notFound(err, ErrBookingNotFound)
			}
			if !locked.DebtOutstanding {
				return ErrNoDebt
			}
			locked.DebtOutstanding = false
			booking = locked
			return tx.Bookings().Update(ctx, locked)
		})
	}
	record(ctx, s.audit, audit.BookingDebtClear, p, err, map[string]any{"booking_id": bookingID})
	if err != nil {
		return nil, err
	}
	return booking, nil
}
