package middleware

import (
	"errors"
	"net/http"

	"github.com/Eursukkul/booking-microservice/carpool-service/internal/apperr"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/dto"
	"github.com/Eursukkul/booking-microservice/carpool-service/pkg/logger"
	"github.com/labstack/echo/v4"
)

// ErrorHandler renders every error as {"message": ...} with the status of
// its apperr category.
func ErrorHandler(log logger.ILogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := StatusFor(err)
		if gw, ok := apperr.AsGateway(err); ok {
			log.Error("payment provider failure",
				logger.String("path", c.Path()),
				logger.String("detail", gw.Detail()),
			)
		} else if code == http.StatusInternalServerError {
			log.Error("unhandled error", logger.String("path", c.Path()), logger.Error(err))
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, dto.ErrorResponse{Message: msg})
	}
}

// StatusFor maps err to an HTTP status and the message safe to show.
func StatusFor(err error) (int, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if m, ok := he.Message.(string); ok {
			return he.Code, m
		}
		return he.Code, http.StatusText(he.Code)
	}

	var (
		ve *apperr.ValidationError
		ne *apperr.NotFoundError
		ce *apperr.ConflictError
		fe *apperr.ForbiddenError
	)
	// Only the typed error's own text reaches the client, never the wrapping context.
	switch {
	case apperr.IsGateway(err):
		return http.StatusBadGateway, apperr.GatewayMessage
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Error()
	case errors.As(err, &ne):
		return http.StatusNotFound, ne.Error()
	case errors.As(err, &ce):
		return http.StatusConflict, ce.Error()
	case errors.As(err, &fe):
		return http.StatusForbidden, fe.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
