package middleware

import (
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/audit"
	"github.com/labstack/echo/v4"
)

// RequestMeta puts the caller's address and user agent on the request
// context for audit events.
func RequestMeta() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := audit.WithRequestInfo(req.Context(), c.RealIP(), req.UserAgent())
			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}
