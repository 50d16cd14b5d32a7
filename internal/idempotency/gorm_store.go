package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/Eursukkul/booking-microservice/carpool-service/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, now: time.Now}
}

func (s *GormStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var rec models.IdempotencyRecord
	err := s.db.WithContext(ctx).
		Where("key = ? AND expires_at > ?", key, s.now()).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return rec.Response, true, nil
}

// Put overwrites an expired record left behind under the same key.
func (s *GormStore) Put(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	rec := models.IdempotencyRecord{
		Key:       key,
		Response:  response,
		ExpiresAt: s.now().Add(ttl),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"response", "expires_at"}),
	}).Create(&rec).Error
}

func (s *GormStore) Purge(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at < ?", before).
		Delete(&models.IdempotencyRecord{})
	return res.RowsAffected, res.Error
}
