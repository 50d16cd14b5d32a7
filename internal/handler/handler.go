// Package handler exposes the settlement engine over echo.
package handler

import (
	"net/http"

	"github.com/Eursukkul/booking-microservice/carpool-service/internal/auth"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/idempotency"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/publicid"
	"github.com/labstack/echo/v4"
)

func principal(c echo.Context) (auth.Principal, error) {
	p, ok := auth.FromContext(c)
	if !ok {
		return auth.Principal{}, echo.NewHTTPError(http.StatusUnauthorized, "unauthenticated")
	}
	return p, nil
}

// pathID returns the public id in the :id path parameter.
func pathID(c echo.Context, resource string) (string, error) {
	id := c.Param("id")
	if !publicid.Valid(id) {
		return "", echo.NewHTTPError(http.StatusBadRequest, "invalid "+resource+" id")
	}
	return id, nil
}

func bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return c.Validate(req)
}

func idempotencyKey(c echo.Context) string {
	return c.Request().Header.Get(idempotency.HeaderKey)
}
