package repository

import (
	"context"

	"github.com/Eursukkul/booking-microservice/carpool-service/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PayoutRepository interface {
	Create(ctx context.Context, payout *models.Payout) error
	FindByID(ctx context.Context, id uint) (*models.Payout, error)
	FindByExternalID(ctx context.Context, externalID string) (*models.Payout, error)
	FindByIDForUpdate(ctx context.Context, id uint) (*models.Payout, error)
	FindByDriverAndPeriodForUpdate(ctx context.Context, driverID uint, period string) (*models.Payout, error)
	ListByPeriod(ctx context.Context, period string) ([]models.Payout, error)
	ListByDriver(ctx context.Context, driverID uint) ([]models.Payout, error)
	Update(ctx context.Context, payout *models.Payout) error
	ExternalIDExists(ctx context.Context, externalID string) (bool, error)
}

type payoutRepository struct {
	db *gorm.DB
}

func NewPayoutRepository(db *gorm.DB) PayoutRepository {
	return &payoutRepository{db: db}
}

func (r *payoutRepository) Create(ctx context.Context, payout *models.Payout) error {
	return r.db.WithContext(ctx).Create(payout).Error
}

func (r *payoutRepository) FindByID(ctx context.Context, id uint) (*models.Payout, error) {
	var payout models.Payout
	if err := r.db.WithContext(ctx).First(&payout, id).Error; err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *payoutRepository) FindByExternalID(ctx context.Context, externalID string) (*models.Payout, error) {
	var payout models.Payout
	if err := r.db.WithContext(ctx).Where("external_id = ?", externalID).First(&payout).Error; err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *payoutRepository) FindByIDForUpdate(ctx context.Context, id uint) (*models.Payout, error) {
	var payout models.Payout
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&payout, id).Error; err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *payoutRepository) FindByDriverAndPeriodForUpdate(ctx context.Context, driverID uint, period string) (*models.Payout, error) {
	var payout models.Payout
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("driver_id = ? AND period = ?", driverID, period).
		First(&payout).Error; err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *payoutRepository) ListByPeriod(ctx context.Context, period string) ([]models.Payout, error) {
	var payouts []models.Payout
	if err := r.db.WithContext(ctx).
		Where("period = ?", period).
		Order("driver_id ASC").
		Find(&payouts).Error; err != nil {
		return nil, err
	}
	return payouts, nil
}

func (r *payoutRepository) ListByDriver(ctx context.Context, driverID uint) ([]models.Payout, error) {
	var payouts []models.Payout
	if err := r.db.WithContext(ctx).
		Where("driver_id = ?", driverID).
		Order("period DESC").
		Find(&payouts).Error; err != nil {
		return nil, err
	}
	return payouts, nil
}

func (r *payoutRepository) Update(ctx context.Context, payout *models.Payout) error {
	return r.db.WithContext(ctx).Save(payout).Error
}

func (r *payoutRepository) ExternalIDExists(ctx context.Context, externalID string) (bool, error) {
	return exists(ctx, r.db, &models.Payout{}, "external_id", externalID)
}
