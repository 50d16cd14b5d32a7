package handler

import (
	"net/http"

	"github.com/Eursukkul/booking-microservice/carpool-service/internal/auth"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/dto"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/service"
	"github.com/labstack/echo/v4"
)

type PayoutHandler struct {
	svc service.PayoutService
}

func NewPayoutHandler(svc service.PayoutService) *PayoutHandler {
	return &PayoutHandler{svc: svc}
}

func (h *PayoutHandler) RegisterRoutes(api *echo.Group) {
	api.GET("/payouts/mine", h.ListMine, auth.RequireRole(auth.RoleDriver))

	admin := api.Group("/admin/payouts", auth.RequireRole(auth.RoleAdmin))
	admin.POST("/generate", h.Generate)
	admin.GET("", h.List)
	admin.GET("/:id", h.GetPayout)
	admin.POST("/:id/execute", h.Execute)
	admin.POST("/:id/fail", h.Fail)
}

func (h *PayoutHandler) Generate(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.GeneratePayoutsRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	payouts, err := h.svc.GeneratePayouts(c.Request().Context(), p, req.Period, idempotencyKey(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, dto.ToPayoutResponses(payouts))
}

// List filters by the optional period query parameter.
func (h *PayoutHandler) List(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	payouts, err := h.svc.ListPayouts(c.Request().Context(), p, c.QueryParam("period"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dto.ToPayoutResponses(payouts))
}

func (h *PayoutHandler) ListMine(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	payouts, err := h.svc.ListDriverPayouts(c.Request().Context(), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dto.ToPayoutResponses(payouts))
}

func (h *PayoutHandler) GetPayout(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "payout")
	if err != nil {
		return err
	}
	payout, err := h.svc.GetPayout(c.Request().Context(), p, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dto.ToPayoutResponse(payout))
}

func (h *PayoutHandler) Execute(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "payout")
	if err != nil {
		return err
	}
	payout, err := h.svc.ExecutePaypalPayout(c.Request().Context(), p, id, idempotencyKey(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dto.ToPayoutResponse(payout))
}

func (h *PayoutHandler) Fail(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "payout")
	if err != nil {
		return err
	}
	var req dto.FailPayoutRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	payout, err := h.svc.FailPayout(c.Request().Context(), p, id, req.Reason, idempotencyKey(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dto.ToPayoutResponse(payout))
}
