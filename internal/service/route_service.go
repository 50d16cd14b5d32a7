package service

import (
	"context"
	"errors"
	"strings"
	"time"

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

// StopInput is a point supplied by a client. A zero StopInput means
// "no stop"; a partially filled one is invalid.
type StopInput struct {
	Lat     *float64
	Lng     *float64
	Address string
}

func (in StopInput) Empty() bool {
	return in.Lat == nil && in.Lng == nil && strings.TrimSpace(in.Address) == ""
}

func (in StopInput) toStop() (models.Stop, error) {
	if in.Lat == nil || in.Lng == nil || strings.TrimSpace(in.Address) == "" {
		return models.Stop{}, ErrIncompletePickup
	}
	if *in.Lat < -90 || *in.Lat > 90 || *in.Lng < -180 || *in.Lng > 180 {
		return models.Stop{}, ErrInvalidCoordinates
	}
	return models.Stop{Lat: *in.Lat, Lng: *in.Lng, Address: strings.TrimSpace(in.Address)}, nil
}

type CreateRouteInput struct {
	OriginCampus string
	Destination  string
	DepartureAt  time.Time
	SeatsTotal   int
	PricePerSeat float64
	Stops        []StopInput
}

// CancelRouteResult summarizes the payment sweep that follows a cancellation.
type CancelRouteResult struct {
	Route             *models.Route
	BookingsCancelled int
	Refunded          int
	RefundFailed      int
	Voided            int
}

type RouteService interface {
	CreateRoute(ctx context.Context, p auth.Principal, in CreateRouteInput) (*models.Route, error)
	GetRoute(ctx context.Context, externalID string) (*models.Route, error)
	ListDriverRoutes(ctx context.Context, p auth.Principal) ([]models.Route, error)
	InsertStop(ctx context.Context, p auth.Principal, routeID string, in StopInput) (*models.Route, error)
	CancelRoute(ctx context.Context, p auth.Principal, routeID string) (*CancelRouteResult, error)
	FinalizeRoute(ctx context.Context, p auth.Principal, routeID string) (*models.Route, error)
	AutoFinalizeElapsed(ctx context.Context) (int, error)

	// Transaction-scoped inventory operations used by the booking flow.
	ReserveSeat(ctx context.Context, tx repository.Repositories, routeID uint) error
	ReleaseSeat(ctx context.Context, tx repository.Repositories, routeID uint) error
	InsertStopTx(ctx context.Context, tx repository.Repositories, routeID uint, stop models.Stop) (*models.Stop, error)
	FinalizeIfSettled(ctx context.Context, tx repository.Repositories, routeID uint) (bool, error)
}

type routeService struct {
	uow      repository.UnitOfWork
	payments PaymentService
	ids      publicid.Allocator
	audit    audit.Logger
	notifier notify.Notifier
	policy   config.Policy
	log      logger.ILogger
	now      Clock
}

func NewRouteService(
	uow repository.UnitOfWork,
	payments PaymentService,
	ids publicid.Allocator,
	auditLog audit.Logger,
	notifier notify.Notifier,
	policy config.Policy,
	log logger.ILogger,
	now Clock,
) RouteService {
	return &routeService{
		uow:      uow,
		payments: payments,
		ids:      ids,
		audit:    auditLog,
		notifier: notifier,
		policy:   policy,
		log:      log,
		now:      now,
	}
}

func (s *routeService) CreateRoute(ctx context.Context, p auth.Principal, in CreateRouteInput) (*models.Route, error) {
	route, err := s.createRoute(ctx, p, in)
	meta := map[string]any{"seats_total": in.SeatsTotal}
	if route != nil {
		meta["route_id"] = route.ExternalID
	}
	record(ctx, s.audit, audit.RouteCreate, p, err, meta)
	return route, err
}

func (s *routeService) createRoute(ctx context.Context, p auth.Principal, in CreateRouteInput) (*models.Route, error) {
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
	if driver.Rating < s.policy.MinDriverRating {
		return nil, ErrDriverRatingTooLow
	}

	vehicle, err := s.uow.Profiles().FindActiveVehicle(ctx, p.ID)
	if err != nil {
		return nil, notFound(err, ErrVehicleNotFound)
	}
	if in.SeatsTotal <= 0 {
		return nil, ErrInvalidSeats
	}
	if vehicle.Seats < in.SeatsTotal {
		return nil, ErrInsufficientCapacity
	}
	if in.PricePerSeat <= 0 {
		return nil, ErrInvalidPrice
	}
	if strings.TrimSpace(in.OriginCampus) == "" {
		return nil, apperr.Validation("origin_campus", "is required")
	}
	if strings.TrimSpace(in.Destination) == "" {
		return nil, apperr.Validation("destination", "is required")
	}
	if in.DepartureAt.IsZero() {
		return nil, apperr.Validation("departure_at", "is required")
	}

	stops := make([]models.Stop, 0, len(in.Stops))
	for i, si := range in.Stops {
		st, err := si.toStop()
		if err != nil {
			return nil, &apperr.ValidationError{Field: "stops", Msg: err.Error(), Err: err}
		}
		st.Order = i + 1
		stops = append(stops, st)
	}

	driverID := p.ID
	route := &models.Route{
		DriverID:       &driverID,
		OriginCampus:   strings.TrimSpace(in.OriginCampus),
		Destination:    strings.TrimSpace(in.Destination),
		DepartureAt:    in.DepartureAt,
		SeatsTotal:     in.SeatsTotal,
		SeatsAvailable: in.SeatsTotal,
		PricePerSeat:   round2(in.PricePerSeat),
		State:          models.RouteActive,
		Stops:          stops,
	}

	err = s.uow.Transaction(ctx, func(tx repository.Repositories) error {
		id, err := allocate(ctx, s.ids, publicid.Route, tx.Routes().ExternalIDExists)
		if err != nil {
			return err
		}
		route.ExternalID = id
		return tx.Routes().Create(ctx, route)
	})
	if err != nil {
		return nil, err
	}
	return route, nil
}

func (s *routeService) GetRoute(ctx context.Context, externalID string) (*models.Route, error) {
	route, err := s.uow.Routes().FindByExternalID(ctx, externalID)
	if err != nil {
		return nil, notFound(err, ErrRouteNotFound)
	}
	return route, nil
}

func (s *routeService) ListDriverRoutes(ctx context.Context, p auth.Principal) ([]models.Route, error) {
	if err := p.Require(auth.RoleDriver); err != nil {
		return nil, err
	}
	return s.uow.Routes().ListByDriver(ctx, p.ID)
}

// ownedRoute loads the route and checks the caller may manage it.
func (s *routeService) ownedRoute(ctx context.Context, p auth.Principal, externalID string) (*models.Route, error) {
	if !p.Is(auth.RoleDriver) && !p.Operator() {
		return nil, apperr.Forbidden("role not permitted for this operation")
	}
	route, err := s.uow.Routes().FindByExternalID(ctx, externalID)
	if err != nil {
		return nil, notFound(err, ErrRouteNotFound)
	}
	if !p.Operator() && !route.OwnedBy(p.ID) {
		return nil, ErrNotRouteOwner
	}
	return route, nil
}

func (s *routeService) InsertStop(ctx context.Context, p auth.Principal, routeID string, in StopInput) (*models.Route, error) {
	stop, err := in.toStop()
	if err != nil {
		record(ctx, s.audit, audit.RouteStopInsert, p, err, map[string]any{"route_id": routeID})
		return nil, err
	}

	route, err := s.ownedRoute(ctx, p, routeID)
	if err == nil {
		err = s.uow.Transaction(ctx, func(tx repository.Repositories) error {
			locked, err := tx.Routes().FindByIDForUpdate(ctx, route.ID)
			if err != nil {
				return notFound(err, ErrRouteNotFound)
			}
			if locked.State != models.RouteActive {
				return ErrRouteNotActive
			}
			_, err = s.InsertStopTx(ctx, tx, route.ID, stop)
			return err
		})
	}
	record(ctx, s.audit, audit.RouteStopInsert, p, err, map[string]any{"route_id": routeID})
	if err != nil {
		return nil, err
	}
	return s.GetRoute(ctx, routeID)
}

func (s *routeService) ReserveSeat(ctx context.Context, tx repository.Repositories, routeID uint) error {
	err := tx.Routes().DecrementSeat(ctx, routeID)
	if errors.Is(err, repository.ErrNoRowsAffected) {
		return ErrRouteFull
	}
	return err
}

func (s *routeService) ReleaseSeat(ctx context.Context, tx repository.Repositories, routeID uint) error {
	err := tx.Routes().IncrementSeat(ctx, routeID)
	if errors.Is(err, repository.ErrNoRowsAffected) {
		// seats are already back at the total; nothing to release
		s.log.Warning("release seat on a route with no reserved seats", logger.Uint("route_id", routeID))
		return nil
	}
	return err
}

// InsertStopTx places stop at the cheapest detour position and shifts the
// stops after it.
func (s *routeService) InsertStopTx(ctx context.Context, tx repository.Repositories, routeID uint, stop models.Stop) (*models.Stop, error) {
	stops, err := tx.Routes().ListStops(ctx, routeID)
	if err != nil {
		return nil, err
	}

	order := insertionOrder(stops, stop)
	if order <= len(stops) {
		if err := tx.Routes().ShiftStops(ctx, routeID, order); err != nil {
			return nil, err
		}
	}

	stop.ID = 0
	stop.RouteID = routeID
	stop.Order = order
	if err := tx.Routes().CreateStop(ctx, &stop); err != nil {
		return nil, err
	}
	return &stop, nil
}

func (s *routeService) CancelRoute(ctx context.Context, p auth.Principal, routeID string) (*CancelRouteResult, error) {
	res, err := s.cancelRoute(ctx, p, routeID)
	meta := map[string]any{"route_id": routeID}
	if res != nil {
		meta["bookings_cancelled"] = res.BookingsCancelled
		meta["refunded"] = res.Refunded
		meta["refund_failed"] = res.RefundFailed
		meta["voided"] = res.Voided
	}
	record(ctx, s.audit, audit.RouteCancel, p, err, meta)
	return res, err
}

func (s *routeService) cancelRoute(ctx context.Context, p auth.Principal, routeID string) (*CancelRouteResult, error) {
	route, err := s.ownedRoute(ctx, p, routeID)
	if err != nil {
		return nil, err
	}

	var cancelled []models.Booking
	err = s.uow.Transaction(ctx, func(tx repository.Repositories) error {
		locked, err := tx.Routes().FindByIDForUpdate(ctx, route.ID)
		if err != nil {
			return notFound(err, ErrRouteNotFound)
		}
		if locked.State != models.RouteActive {
			return ErrRouteNotActive
		}

		bookings, err := tx.Bookings().ListByRoute(ctx, locked.ID, models.BookingConfirmed)
		if err != nil {
			return err
		}
		now := s.now()
		for i := range bookings {
			b := &bookings[i]
			b.State = models.BookingCancelled
			b.CancelledAt = &now
			if err := tx.Bookings().Update(ctx, b); err != nil {
				return err
			}
		}

		locked.State = models.RouteCancelled
		locked.CancelledAt = &now
		locked.SeatsAvailable = locked.SeatsTotal
		if err := tx.Routes().Update(ctx, locked); err != nil {
			return err
		}
		route = locked
		cancelled = bookings
		return nil
	})
	if err != nil {
		return nil, err
	}

	res := &CancelRouteResult{Route: route, BookingsCancelled: len(cancelled)}
	for _, b := range cancelled {
		s.settleCancelledBooking(ctx, p, b, res)
		s.notifyPassenger(ctx, b, notify.TemplateRouteCancelled)
	}
	return res, nil
}

// settleCancelledBooking resolves one booking's payment. Each outcome is
// independent of the others and never undoes the route cancellation.
func (s *routeService) settleCancelledBooking(ctx context.Context, actor auth.Principal, b models.Booking, res *CancelRouteResult) {
	payment, err := s.uow.Payments().FindByBookingID(ctx, b.ID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Error("route cancel: load payment", logger.Uint("booking_id", b.ID), logger.Error(err))
		}
		return
	}

	switch payment.Status {
	case models.PaymentPaid:
		if _, err := s.payments.ReversePaymentByID(ctx, actor, payment.ID); err != nil {
			res.RefundFailed++
			s.log.Error("route cancel: reversal failed",
				logger.String("payment_id", payment.ExternalID),
				logger.Error(err),
			)
			return
		}
		res.Refunded++
	case models.PaymentPending:
		if _, err := s.payments.VoidPendingPayment(ctx, actor, payment.ID, "Route cancelled"); err != nil {
			s.log.Error("route cancel: void pending payment",
				logger.String("payment_id", payment.ExternalID),
				logger.Error(err),
			)
			return
		}
		res.Voided++
	}
}

func (s *routeService) notifyPassenger(ctx context.Context, b models.Booking, template string) {
	passenger, err := s.uow.Profiles().FindPassenger(ctx, b.PassengerID)
	if err != nil {
		s.log.Warning("notification skipped, passenger profile missing", logger.Uint("passenger_id", b.PassengerID))
		return
	}
	s.notifier.Send(ctx, notify.Message{
		Template: template,
		To:       passenger.Email,
		Data:     map[string]any{"booking_id": b.ExternalID},
	})
}

func (s *routeService) FinalizeRoute(ctx context.Context, p auth.Principal, routeID string) (*models.Route, error) {
	route, err := s.ownedRoute(ctx, p, routeID)
	if err == nil {
		err = s.uow.Transaction(ctx, func(tx repository.Repositories) error {
			locked, err := tx.Routes().FindByIDForUpdate(ctx, route.ID)
			if err != nil {
				return notFound(err, ErrRouteNotFound)
			}
			if locked.State != models.RouteActive {
				return ErrRouteNotActive
			}
			pending, err := tx.Bookings().CountOutstanding(ctx, locked.ID)
			if err != nil {
				return err
			}
			if pending > 0 {
				return ErrRouteHasPending
			}
			now := s.now()
			locked.State = models.RouteFinalized
			locked.FinalizedAt = &now
			route = locked
			return tx.Routes().Update(ctx, locked)
		})
	}
	record(ctx, s.audit, audit.RouteFinalize, p, err, map[string]any{"route_id": routeID})
	if err != nil {
		return nil, err
	}
	return route, nil
}

// FinalizeIfSettled finalizes an ACTIVE route once nothing on it is outstanding.
func (s *routeService) FinalizeIfSettled(ctx context.Context, tx repository.Repositories, routeID uint) (bool, error) {
	route, err := tx.Routes().FindByIDForUpdate(ctx, routeID)
	if err != nil {
		return false, notFound(err, ErrRouteNotFound)
	}
	if route.State != models.RouteActive {
		return false, nil
	}
	pending, err := tx.Bookings().CountOutstanding(ctx, routeID)
	if err != nil {
		return false, err
	}
	if pending > 0 {
		return false, nil
	}
	now := s.now()
	route.State = models.RouteFinalized
	route.FinalizedAt = &now
	if err := tx.Routes().Update(ctx, route); err != nil {
		return false, err
	}
	return true, nil
}

// AutoFinalizeElapsed finalizes every active route whose departure is older
// than the configured window and which has nothing outstanding.
func (s *routeService) AutoFinalizeElapsed(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.policy.RouteFinalizeAfter)
	routes, err := s.uow.Routes().ListActiveDepartedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	finalized := 0
	for _, r := range routes {
		var done bool
		err := s.uow.Transaction(ctx, func(tx repository.Repositories) error {
			var err error
			done, err = s.FinalizeIfSettled(ctx, tx, r.ID)
			return err
		})
		if err != nil {
			s.log.Error("auto finalize failed", logger.String("route_id", r.ExternalID), logger.Error(err))
			continue
		}
		if done {
			finalized++
			record(ctx, s.audit, audit.RouteAutoFinalize, auth.System, nil, map[string]any{"route_id": r.ExternalID})
		}
	}
	return finalized, nil
}
