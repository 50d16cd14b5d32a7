// Package service holds the trip lifecycle and settlement engine: route
// inventory, bookings, payments and payouts.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"time"

	"github.com/Eursukkul/booking-microservice/carpool-service/internal/apperr"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/audit"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/auth"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/gateway"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/publicid"
	"gorm.io/gorm"
)

// PaymentGateway is the subset of the PayPal client the engine uses.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, referenceID string, amount float64, currency string) (*gateway.Order, error)
	CaptureOrder(ctx context.Context, orderID string) (*gateway.Capture, error)
	RefundCapture(ctx context.Context, captureID string, amount float64, currency string) (*gateway.Refund, error)
	CreatePayout(ctx context.Context, item gateway.PayoutItem) (*gateway.PayoutBatch, error)
}

// Clock returns the current time; tests replace it.
type Clock func() time.Time

func notFound(err error, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}

func duplicate(err error, sentinel error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return sentinel
	}
	return err
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func allocate(ctx context.Context, ids publicid.Allocator, prefix publicid.Prefix, exists publicid.ExistsFunc) (string, error) {
	id, err := ids.Allocate(ctx, prefix, exists)
	if err != nil {
		return "", fmt.Errorf("allocate %s id: %w", prefix, err)
	}
	return id, nil
}

func record(ctx context.Context, l audit.Logger, action string, p auth.Principal, err error, meta map[string]any) {
	e := audit.Event{Action: action, UserID: p.ID, Result: audit.ResultSuccess, Metadata: meta}
	if err != nil {
		e.Result = audit.ResultFailure
		if e.Metadata == nil {
			e.Metadata = map[string]any{}
		}
		e.Metadata["error"] = err.Error()
		if gw, ok := apperr.AsGateway(err); ok {
			e.Metadata["gateway_detail"] = gw.Detail()
		}
	}
	l.LogEvent(ctx, e)
}

// failureReason is what gets persisted on a FAILED payment or payout. Provider
// response bodies stay in the logs.
func failureReason(err error) string {
	if gw, ok := apperr.AsGateway(err); ok {
		switch {
		case gw.StatusCode != 0:
			return fmt.Sprintf("%s: %s returned http %d", apperr.GatewayMessage, gw.Op, gw.StatusCode)
		case gw.Status != "":
			return fmt.Sprintf("%s: %s returned status %s", apperr.GatewayMessage, gw.Op, gw.Status)
		default:
			return fmt.Sprintf("%s: %s", apperr.GatewayMessage, gw.Op)
		}
	}
	return err.Error()
}

var periodPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// periodBounds returns the half-open UTC window [from, to) of a YYYY-MM period.
func periodBounds(period string) (time.Time, time.Time, error) {
	if !periodPattern.MatchString(period) {
		return time.Time{}, time.Time{}, ErrInvalidPeriod
	}
	from, err := time.Parse("2006-01", period)
	if err != nil {
		return time.Time{}, time.Time{}, ErrInvalidPeriod
	}
	return from, from.AddDate(0, 1, 0), nil
}

func ptr[T any](v T) *T { return &v }
