package handler

import (
	"net/http"

	"github.com/Eursukkul/booking-microservice/carpool-service/internal/auth"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/dto"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/service"
	"github.com/labstack/echo/v4"
)

type RouteHandler struct {
	svc service.RouteService
}

func NewRouteHandler(svc service.RouteService) *RouteHandler {
	return &RouteHandler{svc: svc}
}

func (h *RouteHandler) RegisterRoutes(api *echo.Group) {
	routes := api.Group("/routes")
	driver := auth.RequireRole(auth.RoleDriver, auth.RoleAdmin)

	routes.POST("", h.CreateRoute, auth.RequireRole(auth.RoleDriver))
	routes.GET("/mine", h.ListMine, auth.RequireRole(auth.RoleDriver))
	routes.GET("/:id", h.GetRoute)
	routes.POST("/:id/stops", h.InsertStop, driver)
	routes.POST("/:id/cancel", h.CancelRoute, driver)
	routes.POST("/:id/finalize", h.FinalizeRoute, driver)
}

func (h *RouteHandler) CreateRoute(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.CreateRouteRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	in := service.CreateRouteInput{
		OriginCampus: req.OriginCampus,
		Destination:  req.Destination,
		DepartureAt:  req.DepartureAt,
		SeatsTotal:   req.SeatsTotal,
		PricePerSeat: req.PricePerSeat,
	}
	for _, st := range req.Stops {
		in.Stops = append(in.Stops, st.Input())
	}

	route, err := h.svc.CreateRoute(c.Request().Context(), p, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, dto.ToRouteResponse(route))
}

func (h *RouteHandler) GetRoute(c echo.Context) error {
	id, err := pathID(c, "route")
	if err != nil {
		return err
	}
	route, err := h.svc.GetRoute(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dto.ToRouteResponse(route))
}

func (h *RouteHandler) ListMine(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	routes, err := h.svc.ListDriverRoutes(c.Request().Context(), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dto.ToRouteResponses(routes))
}

func (h *RouteHandler) InsertStop(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "route")
	if err != nil {
		return err
	}
	var req dto.StopRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	route, err := h.svc.InsertStop(c.Request().Context(), p, id, req.Input())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dto.ToRouteResponse(route))
}

func (h *RouteHandler) CancelRoute(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "route")
	if err != nil {
		return err
	}
	res, err := h.svc.CancelRoute(c.Request().Context(), p, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dto.ToCancelRouteResponse(res))
}

func (h *RouteHandler) FinalizeRoute(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "route")
	if err != nil {
		return err
	}
	route, err := h.svc.FinalizeRoute(c.Request().Context(), p, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dto.ToRouteResponse(route))
}
