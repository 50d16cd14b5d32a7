package repository

import (
	"context"

	"github.com/Eursukkul/booking-microservice/carpool-service/internal/models"
	"gorm.io/gorm"
)

type AuditRepository interface {
	Create(ctx context.Context, event *models.AuditEvent) error
}

type auditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Create(ctx context.Context, event *models.AuditEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}
