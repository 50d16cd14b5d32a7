package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// ErrNoRowsAffected is returned by guarded updates whose WHERE clause no
// longer matched the row.
var ErrNoRowsAffected = errors.New("no rows affected")

// Repositories is the set of handles bound to one database session.
type Repositories interface {
	Routes() RouteRepository
	Bookings() BookingRepository
	Payments() PaymentRepository
	Payouts() PayoutRepository
	Profiles() ProfileRepository
}

// UnitOfWork runs fn inside one transaction. fn receives handles bound to
// that transaction; returning an error rolls everything back.
type UnitOfWork interface {
	Repositories
	Transaction(ctx context.Context, fn func(tx Repositories) error) error
}

var _ UnitOfWork = (*Store)(nil)

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Transaction(ctx context.Context, fn func(tx Repositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func (s *Store) Routes() RouteRepository     { return NewRouteRepository(s.db) }
func (s *Store) Bookings() BookingRepository { return NewBookingRepository(s.db) }
func (s *Store) Payments() PaymentRepository { return NewPaymentRepository(s.db) }
func (s *Store) Payouts() PayoutRepository   { return NewPayoutRepository(s.db) }
func (s *Store) Profiles() ProfileRepository { return NewProfileRepository(s.db) }

// DB exposes the underlying session for infrastructure that needs it
// directly, such as the idempotency store and the audit sink.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func exists(ctx context.Context, db *gorm.DB, model any, column, value string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Model(model).Where(column+" = ?", value).Count(&count).Error
	return count > 0, err
}

func affected(res *gorm.DB) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNoRowsAffected
	}
	return nil
}
