package repository

import (
	"context"
	"time"

	"github.com/Eursukkul/booking-microservice/carpool-service/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, id uint) (*models.Payment, error)
	FindByExternalID(ctx context.Context, externalID string) (*models.Payment, error)
	FindByIDForUpdate(ctx context.Context, id uint) (*models.Payment, error)
	FindByBookingID(ctx context.Context, bookingID uint) (*models.Payment, error)
	Update(ctx context.Context, payment *models.Payment) error
	ListUnclaimedDriverIDs(ctx context.Context, from, to time.Time) ([]uint, error)
	LockUnclaimedForDriver(ctx context.Context, driverID uint, from, to time.Time) ([]models.Payment, error)
	Claim(ctx context.Context, paymentIDs []uint, payoutID uint) error
	ExternalIDExists(ctx context.Context, externalID string) (bool, error)
}

type paymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(payment).Error
}

func (r *paymentRepository) FindByID(ctx context.Context, id uint) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Preload("Booking.Route").First(&payment, id).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) FindByExternalID(ctx context.Context, externalID string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).
		Preload("Booking.Route").
		Where("external_id = ?", externalID).
		First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) FindByIDForUpdate(ctx context.Context, id uint) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&payment, id).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) FindByBookingID(ctx context.Context, bookingID uint) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("booking_id = ?", bookingID).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) Update(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(payment).Error
}

func unclaimed(db *gorm.DB, from, to time.Time) *gorm.DB {
	return db.
		Joins("JOIN bookings ON bookings.id = payments.booking_id").
		Joins("JOIN routes ON routes.id = bookings.route_id").
		Where("payments.status = ? AND payments.payout_id IS NULL", models.PaymentPaid).
		Where("payments.paid_at >= ? AND payments.paid_at < ?", from, to)
}

// ListUnclaimedDriverIDs returns the drivers owning at least one settled,
// unclaimed payment paid within [from, to). Payments whose route has no
// driver are never returned.
func (r *paymentRepository) ListUnclaimedDriverIDs(ctx context.Context, from, to time.Time) ([]uint, error) {
	var ids []uint
	err := unclaimed(r.db.WithContext(ctx).Model(&models.Payment{}), from, to).
		Where("routes.driver_id IS NOT NULL").
		Distinct().
		Order("routes.driver_id ASC").
		Pluck("routes.driver_id", &ids).Error
	return ids, err
}

// LockUnclaimedForDriver locks the driver's unclaimed payments for the
// window. A concurrent claimer blocks here and then sees payout_id set.
func (r *paymentRepository) LockUnclaimedForDriver(ctx context.Context, driverID uint, from, to time.Time) ([]models.Payment, error) {
	var payments []models.Payment
	err := unclaimed(r.db.WithContext(ctx).Select("payments.*"), from, to).
		Where("routes.driver_id = ?", driverID).
		Clauses(clause.Locking{Strength: "UPDATE", Table: clause.Table{Name: "payments"}}).
		Order("payments.id ASC").
		Find(&payments).Error
	return payments, err
}

// Claim stamps payoutID on every payment; all of them must still be unclaimed.
func (r *paymentRepository) Claim(ctx context.Context, paymentIDs []uint, payoutID uint) error {
	if len(paymentIDs) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id IN ? AND payout_id IS NULL", paymentIDs).
		UpdateColumn("payout_id", payoutID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != int64(len(paymentIDs)) {
		return ErrNoRowsAffected
	}
	return nil
}

func (r *paymentRepository) ExternalIDExists(ctx context.Context, externalID string) (bool, error) {
	return exists(ctx, r.db, &models.Payment{}, "external_id", externalID)
}
