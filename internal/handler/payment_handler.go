package handler

import (
	"net/http"

	"github.com/Eursukkul/booking-microservice/carpool-service/internal/auth"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/dto"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/models"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/publicid"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/service"
	"github.com/labstack/echo/v4"
)

type PaymentHandler struct {
	svc service.PaymentService
}

func NewPaymentHandler(svc service.PaymentService) *PaymentHandler {
	return &PaymentHandler{svc: svc}
}

func (h *PaymentHandler) RegisterRoutes(api *echo.Group) {
	passenger := auth.RequireRole(auth.RolePassenger)

	payments := api.Group("/payments")
	payments.POST("", h.CreatePayment, passenger)
	payments.GET("/:id", h.GetPayment)
	payments.POST("/:id/paypal/order", h.CreateOrder, passenger)
	payments.POST("/:id/paypal/capture", h.CaptureOrder, passenger)

	api.POST("/admin/payments/:id/reverse", h.ReversePayment, auth.RequireRole(auth.RoleAdmin))
}

func (h *PaymentHandler) CreatePayment(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.CreatePaymentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if !publicid.Valid(req.BookingID) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid booking id")
	}

	payment, err := h.svc.CreatePayment(c.Request().Context(), p, req.BookingID, models.PaymentMethod(req.Method), idempotencyKey(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, dto.ToPaymentResponse(payment))
}

func (h *PaymentHandler) GetPayment(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "payment")
	if err != nil {
		return err
	}
	payment, err := h.svc.GetPayment(c.Request().Context(), p, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dto.ToPaymentResponse(payment))
}

func (h *PaymentHandler) CreateOrder(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "payment")
	if err != nil {
		return err
	}
	order, err := h.svc.CreateGatewayOrder(c.Request().Context(), p, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, dto.GatewayOrderResponse{
		Payment:     dto.ToPaymentResponse(order.Payment),
		OrderID:     order.OrderID,
		ApprovalURL: order.ApprovalURL,
	})
}

func (h *PaymentHandler) CaptureOrder(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "payment")
	if err != nil {
		return err
	}
	var req dto.CaptureOrderRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	payment, err := h.svc.CaptureGatewayOrder(c.Request().Context(), p, id, req.OrderID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dto.ToPaymentResponse(payment))
}

func (h *PaymentHandler) ReversePayment(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "payment")
	if err != nil {
		return err
	}
	payment, err := h.svc.ReversePayment(c.Request().Context(), p, id, idempotencyKey(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dto.ToPaymentResponse(payment))
}
