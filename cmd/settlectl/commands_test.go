package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/Eursukkul/booking-microservice/carpool-service/internal/app"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/auth"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/dto"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/models"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPayouts struct {
	service.PayoutService
	generateFn func(ctx context.Context, p auth.Principal, period, key string) ([]models.Payout, error)
	failFn     func(ctx context.Context, p auth.Principal, id, reason, key string) (*models.Payout, error)
}

func (s *stubPayouts) GeneratePayouts(ctx context.Context, p auth.Principal, period, key string) ([]models.Payout, error) {
	return s.generateFn(ctx, p, period, key)
}

func (s *stubPayouts) FailPayout(ctx context.Context, p auth.Principal, id, reason, key string) (*models.Payout, error) {
	return s.failFn(ctx, p, id, reason, key)
}

type stubRoutes struct {
	service.RouteService
	finalized int
}

func (s *stubRoutes) AutoFinalizeElapsed(ctx context.Context) (int, error) {
	return s.finalized, nil
}

func run(t *testing.T, eng *app.Engine, args ...string) (string, error) {
	t.Helper()
	opened := false
	root := newRootCmd(func() (*app.Engine, func(), error) {
		opened = true
		return eng, func() {}, nil
	})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	if err == nil {
		assert.True(t, opened)
	}
	return out.String(), err
}

func TestPayoutsGenerate_RunsAsSystem(t *testing.T) {
	payouts := &stubPayouts{
		generateFn: func(ctx context.Context, p auth.Principal, period, key string) ([]models.Payout, error) {
			assert.Equal(t, auth.System, p)
			assert.Equal(t, "2025-01", period)
			assert.Equal(t, "nightly-2025-01", key)
			return []models.Payout{{ExternalID: "PYO_QRST7899", Period: period, Amount: 22}}, nil
		},
	}

	out, err := run(t, &app.Engine{Payouts: payouts},
		"payouts", "generate", "--period", "2025-01", "--idempotency-key", "nightly-2025-01")
	require.NoError(t, err)

	var resp []dto.PayoutResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "PYO_QRST7899", resp[0].ID)
}

func TestPayoutsGenerate_PeriodRequired(t *testing.T) {
	_, err := run(t, &app.Engine{}, "payouts", "generate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "period")
}

func TestPayoutsFail(t *testing.T) {
	payouts := &stubPayouts{
		failFn: func(ctx context.Context, p auth.Principal, id, reason, key string) (*models.Payout, error) {
			assert.Equal(t, "PYO_QRST7899", id)
			assert.Equal(t, "payee account closed", reason)
			return &models.Payout{ExternalID: id, Status: models.PayoutFailed, LastError: &reason}, nil
		},
	}

	out, err := run(t, &app.Engine{Payouts: payouts},
		"payouts", "fail", "PYO_QRST7899", "--reason", "payee account closed")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "FAILED"`)
}

func TestPayoutsExecute_NeedsID(t *testing.T) {
	_, err := run(t, &app.Engine{}, "payouts", "execute")
	assert.Error(t, err)
}

func TestRoutesSweep(t *testing.T) {
	out, err := run(t, &app.Engine{Routes: &stubRoutes{finalized: 2}}, "routes", "sweep")
	require.NoError(t, err)
	assert.Equal(t, "finalized 2 routes\n", out)
}
