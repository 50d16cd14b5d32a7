package repository

import (
	"context"

	"github.com/Eursukkul/booking-microservice/carpool-service/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BookingRepository interface {
	Create(ctx context.Context, booking *models.Booking) error
	FindByID(ctx context.Context, id uint) (*models.Booking, error)
	FindByExternalID(ctx context.Context, externalID string) (*models.Booking, error)
	FindByIDForUpdate(ctx context.Context, id uint) (*models.Booking, error)
	FindByRouteAndPassenger(ctx context.Context, routeID, passengerID uint) (*models.Booking, error)
	ListByRoute(ctx context.Context, routeID uint, states ...models.BookingState) ([]models.Booking, error)
	CountOutstanding(ctx context.Context, routeID uint) (int64, error)
	HasCashDebt(ctx context.Context, passengerID uint) (bool, error)
	Update(ctx context.Context, booking *models.Booking) error
	ExternalIDExists(ctx context.Context, externalID string) (bool, error)
}

type bookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) BookingRepository {
	return &bookingRepository{db: db}
}

func (r *bookingRepository) Create(ctx context.Context, booking *models.Booking) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(booking).Error
}

func (r *bookingRepository) FindByID(ctx context.Context, id uint) (*models.Booking, error) {
	var booking models.Booking
	if err := r.db.WithContext(ctx).Preload("Route").First(&booking, id).Error; err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *bookingRepository) FindByExternalID(ctx context.Context, externalID string) (*models.Booking, error) {
	var booking models.Booking
	if err := r.db.WithContext(ctx).
		Preload("Route").
		Where("external_id = ?", externalID).
		First(&booking).Error; err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *bookingRepository) FindByIDForUpdate(ctx context.Context, id uint) (*models.Booking, error) {
	var booking models.Booking
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&booking, id).Error; err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *bookingRepository) FindByRouteAndPassenger(ctx context.Context, routeID, passengerID uint) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.WithContext(ctx).
		Where("route_id = ? AND passenger_id = ?", routeID, passengerID).
		First(&booking).Error
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *bookingRepository) ListByRoute(ctx context.Context, routeID uint, states ...models.BookingState) ([]models.Booking, error) {
	var bookings []models.Booking
	q := r.db.WithContext(ctx).Where("route_id = ?", routeID)
	if len(states) > 0 {
		q = q.Where("state IN ?", states)
	}
	if err := q.Order("id ASC").Find(&bookings).Error; err != nil {
		return nil, err
	}
	return bookings, nil
}

// CountOutstanding counts bookings that still block finalization: CONFIRMED
// ones and CANCELLED ones whose cancellation has not been processed.
func (r *bookingRepository) CountOutstanding(ctx context.Context, routeID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("route_id = ? AND (state = ? OR (state = ? AND cancelled_at IS NULL))",
			routeID, models.BookingConfirmed, models.BookingCancelled).
		Count(&count).Error
	return count, err
}

// HasCashDebt reports an unresolved cash no-show or failed cash payment left by the passenger.
func (r *bookingRepository) HasCashDebt(ctx context.Context, passengerID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("passenger_id = ? AND payment_method = ? AND debt_outstanding = ?",
			passengerID, models.MethodCash, true).
		Count(&count).Error
	return count > 0, err
}

func (r *bookingRepository) Update(ctx context.Context, booking *models.Booking) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(booking).Error
}

func (r *bookingRepository) ExternalIDExists(ctx context.Context, externalID string) (bool, error) {
	return exists(ctx, r.db, &models.Booking{}, "external_id", externalID)
}
