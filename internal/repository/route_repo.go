package repository

import (
	"context"
	"time"

	"github.com/Eursukkul/booking-microservice/carpool-service/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RouteRepository interface {
	Create(ctx context.Context, route *models.Route) error
	FindByID(ctx context.Context, id uint) (*models.Route, error)
	FindByExternalID(ctx context.Context, externalID string) (*models.Route, error)
	FindByIDForUpdate(ctx context.Context, id uint) (*models.Route, error)
	ListByDriver(ctx context.Context, driverID uint) ([]models.Route, error)
	ListActiveDepartedBefore(ctx context.Context, before time.Time) ([]models.Route, error)
	Update(ctx context.Context, route *models.Route) error
	DecrementSeat(ctx context.Context, id uint) error
	IncrementSeat(ctx context.Context, id uint) error
	ListStops(ctx context.Context, routeID uint) ([]models.Stop, error)
	ShiftStops(ctx context.Context, routeID uint, fromOrder int) error
	CreateStop(ctx context.Context, stop *models.Stop) error
	ExternalIDExists(ctx context.Context, externalID string) (bool, error)
}

type routeRepository struct {
	db *gorm.DB
}

func NewRouteRepository(db *gorm.DB) RouteRepository {
	return &routeRepository{db: db}
}

func orderedStops(db *gorm.DB) *gorm.DB {
	return db.Order("stop_order ASC")
}

// Create inserts the route together with its stops.
func (r *routeRepository) Create(ctx context.Context, route *models.Route) error {
	return r.db.WithContext(ctx).Create(route).Error
}

func (r *routeRepository) FindByID(ctx context.Context, id uint) (*models.Route, error) {
	var route models.Route
	if err := r.db.WithContext(ctx).Preload("Stops", orderedStops).First(&route, id).Error; err != nil {
		return nil, err
	}
	return &route, nil
}

func (r *routeRepository) FindByExternalID(ctx context.Context, externalID string) (*models.Route, error) {
	var route models.Route
	if err := r.db.WithContext(ctx).
		Preload("Stops", orderedStops).
		Where("external_id = ?", externalID).
		First(&route).Error; err != nil {
		return nil, err
	}
	return &route, nil
}

// FindByIDForUpdate acquires a row-level lock on the route within the current transaction.
func (r *routeRepository) FindByIDForUpdate(ctx context.Context, id uint) (*models.Route, error) {
	var route models.Route
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&route, id).Error; err != nil {
		return nil, err
	}
	return &route, nil
}

func (r *routeRepository) ListByDriver(ctx context.Context, driverID uint) ([]models.Route, error) {
	var routes []models.Route
	if err := r.db.WithContext(ctx).
		Where("driver_id = ?", driverID).
		Order("departure_at DESC").
		Find(&routes).Error; err != nil {
		return nil, err
	}
	return routes, nil
}

func (r *routeRepository) ListActiveDepartedBefore(ctx context.Context, before time.Time) ([]models.Route, error) {
	var routes []models.Route
	if err := r.db.WithContext(ctx).
		Where("state = ? AND departure_at < ?", models.RouteActive, before).
		Order("departure_at ASC").
		Find(&routes).Error; err != nil {
		return nil, err
	}
	return routes, nil
}

// Update writes the route's own columns; stops are managed separately.
func (r *routeRepository) Update(ctx context.Context, route *models.Route) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(route).Error
}

// DecrementSeat takes one seat from an ACTIVE route. It returns
// ErrNoRowsAffected when the route is full or no longer active.
func (r *routeRepository) DecrementSeat(ctx context.Context, id uint) error {
	return affected(r.db.WithContext(ctx).
		Model(&models.Route{}).
		Where("id = ? AND state = ? AND seats_available > 0", id, models.RouteActive).
		UpdateColumn("seats_available", gorm.Expr("seats_available - 1")))
}

// IncrementSeat returns one seat, never exceeding seats_total.
func (r *routeRepository) IncrementSeat(ctx context.Context, id uint) error {
	return affected(r.db.WithContext(ctx).
		Model(&models.Route{}).
		Where("id = ? AND seats_available < seats_total", id).
		UpdateColumn("seats_available", gorm.Expr("seats_available + 1")))
}

func (r *routeRepository) ListStops(ctx context.Context, routeID uint) ([]models.Stop, error) {
	var stops []models.Stop
	if err := r.db.WithContext(ctx).
		Where("route_id = ?", routeID).
		Order("stop_order ASC").
		Find(&stops).Error; err != nil {
		return nil, err
	}
	return stops, nil
}

// ShiftStops moves every stop at or after fromOrder one position down.
func (r *routeRepository) ShiftStops(ctx context.Context, routeID uint, fromOrder int) error {
	return r.db.WithContext(ctx).
		Model(&models.Stop{}).
		Where("route_id = ? AND stop_order >= ?", routeID, fromOrder).
		UpdateColumn("stop_order", gorm.Expr("stop_order + 1")).Error
}

func (r *routeRepository) CreateStop(ctx context.Context, stop *models.Stop) error {
	return r.db.WithContext(ctx).Create(stop).Error
}

func (r *routeRepository) ExternalIDExists(ctx context.Context, externalID string) (bool, error) {
	return exists(ctx, r.db, &models.Route{}, "external_id", externalID)
}
