package handler

import (
	"context"

	"github.com/Eursukkul/booking-microservice/carpool-service/internal/auth"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/middleware"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/models"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/service"
	"github.com/labstack/echo/v4"
)

// --- Mock RouteService ---
// Unset methods panic through the nil embedded interface.

type mockRouteService struct {
	service.RouteService
	createRouteFn func(ctx context.Context, p auth.Principal, in service.CreateRouteInput) (*models.Route, error)
	getRouteFn    func(ctx context.Context, id string) (*models.Route, error)
	listMineFn    func(ctx context.Context, p auth.Principal) ([]models.Route, error)
	insertStopFn  func(ctx context.Context, p auth.Principal, id string, in service.StopInput) (*models.Route, error)
	cancelFn      func(ctx context.Context, p auth.Principal, id string) (*service.CancelRouteResult, error)
}

func (m *mockRouteService) CreateRoute(ctx context.Context, p auth.Principal, in service.CreateRouteInput) (*models.Route, error) {
	return m.createRouteFn(ctx, p, in)
}

func (m *mockRouteService) GetRoute(ctx context.Context, id string) (*models.Route, error) {
	return m.getRouteFn(ctx, id)
}

func (m *mockRouteService) ListDriverRoutes(ctx context.Context, p auth.Principal) ([]models.Route, error) {
	return m.listMineFn(ctx, p)
}

func (m *mockRouteService) InsertStop(ctx context.Context, p auth.Principal, id string, in service.StopInput) (*models.Route, error) {
	return m.insertStopFn(ctx, p, id, in)
}

func (m *mockRouteService) CancelRoute(ctx context.Context, p auth.Principal, id string) (*service.CancelRouteResult, error) {
	return m.cancelFn(ctx, p, id)
}

// --- Mock BookingService ---

type mockBookingService struct {
	service.BookingService
	createFn   func(ctx context.Context, p auth.Principal, routeID string, in service.CreateBookingInput) (*service.CreateBookingResult, error)
	cancelFn   func(ctx context.Context, p auth.Principal, id string) (*service.CancelBookingResult, error)
	verifyFn   func(ctx context.Context, p auth.Principal, id, code string) (*models.Booking, error)
	completeFn func(ctx context.Context, p auth.Principal, id string) (*models.Booking, error)
}

func (m *mockBookingService) CreateBooking(ctx context.Context, p auth.Principal, routeID string, in service.CreateBookingInput) (*service.CreateBookingResult, error) {
	return m.createFn(ctx, p, routeID, in)
}

func (m *mockBookingService) CancelBooking(ctx context.Context, p auth.Principal, id string) (*service.CancelBookingResult, error) {
	return m.cancelFn(ctx, p, id)
}

func (m *mockBookingService) VerifyOTP(ctx context.Context, p auth.Principal, id, code string) (*models.Booking, error) {
	return m.verifyFn(ctx, p, id, code)
}

func (m *mockBookingService) CompleteBooking(ctx context.Context, p auth.Principal, id string) (*models.Booking, error) {
	return m.completeFn(ctx, p, id)
}

// --- Mock PaymentService ---

type mockPaymentService struct {
	service.PaymentService
	createFn  func(ctx context.Context, p auth.Principal, bookingID string, method models.PaymentMethod, key string) (*models.Payment, error)
	orderFn   func(ctx context.Context, p auth.Principal, id string) (*service.GatewayOrder, error)
	captureFn func(ctx context.Context, p auth.Principal, id, orderID string) (*models.Payment, error)
	reverseFn func(ctx context.Context, p auth.Principal, id, key string) (*models.Payment, error)
}

func (m *mockPaymentService) CreatePayment(ctx context.Context, p auth.Principal, bookingID string, method models.PaymentMethod, key string) (*models.Payment, error) {
	return m.createFn(ctx, p, bookingID, method, key)
}

func (m *mockPaymentService) CreateGatewayOrder(ctx context.Context, p auth.Principal, id string) (*service.GatewayOrder, error) {
	return m.orderFn(ctx, p, id)
}

func (m *mockPaymentService) CaptureGatewayOrder(ctx context.Context, p auth.Principal, id, orderID string) (*models.Payment, error) {
	return m.captureFn(ctx, p, id, orderID)
}

func (m *mockPaymentService) ReversePayment(ctx context.Context, p auth.Principal, id, key string) (*models.Payment, error) {
	return m.reverseFn(ctx, p, id, key)
}

// --- Mock PayoutService ---

type mockPayoutService struct {
	service.PayoutService
	generateFn func(ctx context.Context, p auth.Principal, period, key string) ([]models.Payout, error)
	executeFn  func(ctx context.Context, p auth.Principal, id, key string) (*models.Payout, error)
	failFn     func(ctx context.Context, p auth.Principal, id, reason, key string) (*models.Payout, error)
	listFn     func(ctx context.Context, p auth.Principal, period string) ([]models.Payout, error)
	mineFn     func(ctx context.Context, p auth.Principal) ([]models.Payout, error)
}

func (m *mockPayoutService) GeneratePayouts(ctx context.Context, p auth.Principal, period, key string) ([]models.Payout, error) {
	return m.generateFn(ctx, p, period, key)
}

func (m *mockPayoutService) ExecutePaypalPayout(ctx context.Context, p auth.Principal, id, key string) (*models.Payout, error) {
	return m.executeFn(ctx, p, id, key)
}

func (m *mockPayoutService) FailPayout(ctx context.Context, p auth.Principal, id, reason, key string) (*models.Payout, error) {
	return m.failFn(ctx, p, id, reason, key)
}

func (m *mockPayoutService) ListPayouts(ctx context.Context, p auth.Principal, period string) ([]models.Payout, error) {
	return m.listFn(ctx, p, period)
}

func (m *mockPayoutService) ListDriverPayouts(ctx context.Context, p auth.Principal) ([]models.Payout, error) {
	return m.mineFn(ctx, p)
}

var (
	driver    = auth.Principal{ID: 100, Role: auth.RoleDriver, IsVerified: true}
	passenger = auth.Principal{ID: 200, Role: auth.RolePassenger, IsVerified: true}
	admin     = auth.Principal{ID: 1, Role: auth.RoleAdmin, IsVerified: true}
)

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = middleware.NewValidator()
	return e
}
