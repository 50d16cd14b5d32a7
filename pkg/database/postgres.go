package database

import (
	"fmt"

	"github.com/Eursukkul/booking-microservice/carpool-service/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewPostgresDB opens the database and migrates every engine table.
// TranslateError makes unique violations surface as gorm.ErrDuplicatedKey.
func NewPostgresDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.DriverProfile{},
		&models.Vehicle{},
		&models.PassengerProfile{},
		&models.Route{},
		&models.Stop{},
		&models.Booking{},
		&models.Payment{},
		&models.Payout{},
		&models.IdempotencyRecord{},
		&models.AuditEvent{},
	)
	if err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	// Seats can never go negative or exceed the route total.
	return db.Exec(`
		DO $$ BEGIN
			ALTER TABLE routes ADD CONSTRAINT chk_routes_seats
			CHECK (seats_available >= 0 AND seats_available <= seats_total);
		EXCEPTION WHEN duplicate_object THEN NULL;
		END $$
	`).Error
}
