package handler

import (
	"context"
	"net/http"

	"github.com/Eursukkul/booking-microservice/carpool-service/internal/auth"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/dto"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/models"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/service"
	"github.com/labstack/echo/v4"
)

type BookingHandler struct {
	svc service.BookingService
}

func NewBookingHandler(svc service.BookingService) *BookingHandler {
	return &BookingHandler{svc: svc}
}

func (h *BookingHandler) RegisterRoutes(api *echo.Group) {
	passenger := auth.RequireRole(auth.RolePassenger)
	driver := auth.RequireRole(auth.RoleDriver)

	api.POST("/routes/:id/bookings", h.CreateBooking, passenger)
	api.GET("/routes/:id/bookings", h.ListRouteBookings, auth.RequireRole(auth.RoleDriver, auth.RoleAdmin))

	bookings := api.Group("/bookings")
	bookings.GET("/:id", h.GetBooking)
	bookings.POST("/:id/cancel", h.CancelBooking, passenger)
	bookings.POST("/:id/verify-otp", h.VerifyOTP, driver)
	bookings.POST("/:id/complete", h.CompleteBooking, driver)
	bookings.POST("/:id/no-show", h.MarkNoShow, driver)

	api.POST("/admin/bookings/:id/clear-debt", h.ClearDebt, auth.RequireRole(auth.RoleAdmin))
}

func (h *BookingHandler) CreateBooking(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	routeID, err := pathID(c, "route")
	if err != nil {
		return err
	}
	var req dto.CreateBookingRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	in := service.CreateBookingInput{Method: models.PaymentMethod(req.PaymentMethod)}
	if req.Pickup != nil {
		in.Pickup = req.Pickup.Input()
	}

	res, err := h.svc.CreateBooking(c.Request().Context(), p, routeID, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, dto.CreateBookingResponse{
		Booking: dto.ToBookingResponse(res.Booking),
		OTP:     res.OTP,
	})
}

func (h *BookingHandler) ListRouteBookings(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	routeID, err := pathID(c, "route")
	if err != nil {
		return err
	}
	bookings, err := h.svc.ListRouteBookings(c.Request().Context(), p, routeID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dto.ToBookingResponses(bookings))
}

func (h *BookingHandler) GetBooking(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "booking")
	if err != nil {
		return err
	}
	booking, err := h.svc.GetBooking(c.Request().Context(), p, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dto.ToBookingResponse(booking))
}

func (h *BookingHandler) CancelBooking(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "booking")
	if err != nil {
		return err
	}
	res, err := h.svc.CancelBooking(c.Request().Context(), p, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dto.CancelBookingResponse{
		Booking: dto.ToBookingResponse(res.Booking),
		Refund:  string(res.Refund),
	})
}

func (h *BookingHandler) VerifyOTP(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "booking")
	if err != nil {
		return err
	}
	var req dto.VerifyOTPRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	booking, err := h.svc.VerifyOTP(c.Request().Context(), p, id, req.Code)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dto.ToBookingResponse(booking))
}

func (h *BookingHandler) CompleteBooking(c echo.Context) error {
	return h.transition(c, h.svc.CompleteBooking)
}

func (h *BookingHandler) MarkNoShow(c echo.Context) error {
	return h.transition(c, h.svc.MarkNoShow)
}

func (h *BookingHandler) ClearDebt(c echo.Context) error {
	return h.transition(c, h.svc.ClearPassengerDebt)
}

type bookingTransition func(ctx context.Context, p auth.Principal, bookingID string) (*models.Booking, error)

func (h *BookingHandler) transition(c echo.Context, fn bookingTransition) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "booking")
	if err != nil {
		return err
	}
	booking, err := fn(c.Request().Context(), p, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dto.ToBookingResponse(booking))
}
