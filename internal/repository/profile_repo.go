package repository

import (
	"context"

	"github.com/Eursukkul/booking-microservice/carpool-service/internal/models"
	"gorm.io/gorm"
)

// ProfileRepository reads the profiles maintained by the account services.
type ProfileRepository interface {
	FindDriver(ctx context.Context, userID uint) (*models.DriverProfile, error)
	FindActiveVehicle(ctx context.Context, driverID uint) (*models.Vehicle, error)
	FindPassenger(ctx context.Context, userID uint) (*models.PassengerProfile, error)
}

type profileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) FindDriver(ctx context.Context, userID uint) (*models.DriverProfile, error) {
	var p models.DriverProfile
	if err := r.db.WithContext(ctx).First(&p, userID).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// FindActiveVehicle returns the driver's active vehicle with the most seats.
func (r *profileRepository) FindActiveVehicle(ctx context.Context, driverID uint) (*models.Vehicle, error) {
	var v models.Vehicle
	if err := r.db.WithContext(ctx).
		Where("driver_id = ? AND active = ?", driverID, true).
		Order("seats DESC, id ASC").
		First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *profileRepository) FindPassenger(ctx context.Context, userID uint) (*models.PassengerProfile, error) {
	var p models.PassengerProfile
	if err := r.db.WithContext(ctx).First(&p, userID).Error; err != nil {
		return nil, err
	}
	return &p, nil
}
