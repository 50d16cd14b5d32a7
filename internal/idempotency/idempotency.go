// Package idempotency deduplicates retried side-effecting requests.
//
// A client-supplied key is combined with a scope and the calling actor to
// form the lookup key. A hit returns the stored response without running the
// operation again; a successful miss stores the response for the configured
// TTL.
package idempotency

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/Eursukkul/booking-microservice/carpool-service/internal/apperr"
	"github.com/Eursukkul/booking-microservice/carpool-service/pkg/logger"
)

const HeaderKey = "Idempotency-Key"

// Scopes of the operations guarded by a key.
const (
	ScopePaymentCreate  = "payment.create"
	ScopePaymentReverse = "payment.reverse"
	ScopePayoutGenerate = "payout.generate"
	ScopePayoutExecute  = "payout.execute"
	ScopePayoutFail     = "payout.fail"
)

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9]{8,64}$`)

var ErrInvalidKey = &apperr.ValidationError{Field: HeaderKey, Msg: "must be 8-64 alphanumeric characters"}

type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, response []byte, ttl time.Duration) error
	Purge(ctx context.Context, before time.Time) (int64, error)
}

// ValidateKey accepts the empty key, which disables deduplication.
func ValidateKey(key string) error {
	if key == "" || keyPattern.MatchString(key) {
		return nil
	}
	return ErrInvalidKey
}

func LookupKey(scope string, actorID uint, key string) string {
	return fmt.Sprintf("%s:%d:%s", scope, actorID, key)
}

type Guard struct {
	store Store
	ttl   time.Duration
	log   logger.ILogger
}

func NewGuard(store Store, ttl time.Duration, log logger.ILogger) *Guard {
	return &Guard{store: store, ttl: ttl, log: log}
}

// Run executes fn at most once per (scope, actor, key) within the TTL.
// Failed executions are not stored, so the client may retry them.
func Run[T any](ctx context.Context, g *Guard, scope string, actorID uint, key string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := ValidateKey(key); err != nil {
		return zero, err
	}
	if key == "" || g == nil {
		return fn(ctx)
	}

	lookup := LookupKey(scope, actorID, key)
	cached, ok, err := g.store.Get(ctx, lookup)
	if err != nil {
		return zero, fmt.Errorf("idempotency lookup: %w", err)
	}
	if ok {
		var out T
		if err := json.Unmarshal(cached, &out); err != nil {
			return zero, fmt.Errorf("idempotency decode: %w", err)
		}
		g.log.Info("idempotent replay", logger.String("scope", scope), logger.Uint("actor_id", actorID))
		return out, nil
	}

	out, err := fn(ctx)
	if err != nil {
		return zero, err
	}

	body, err := json.Marshal(out)
	if err != nil {
		g.log.Error("idempotency encode failed", logger.String("scope", scope), logger.Error(err))
		return out, nil
	}
	if err := g.store.Put(ctx, lookup, body, g.ttl); err != nil {
		// the side effect already happened; report it as done
		g.log.Error("idempotency store failed", logger.String("scope", scope), logger.Error(err))
	}
	return out, nil
}
