package repository

import (
	"context"
	"time"

	"github.com/vibelog/backend/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RateLimitRepository keeps fixed-window request counters in the database. It is
// the limiter's store when no Redis is configured.
type RateLimitRepository struct {
	db *gorm.DB
}

func NewRateLimitRepository(db *gorm.DB) *RateLimitRepository {
	return &RateLimitRepository{db: db}
}

// Increment bumps the counter for (key, windowStart) and returns the new count.
// Buckets of earlier windows for the same key are dropped on the way.
func (r *RateLimitRepository) Increment(ctx context.Context, key string, windowStart time.Time) (int, error) {
	bucket := domain.RateLimitBucket{Key: key, WindowStart: windowStart, Count: 1}
	var stored domain.RateLimitBucket
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("key = ? AND window_start < ?", key, windowStart).
			Delete(&domain.RateLimitBucket{}).Error; err != nil {
			return err
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "key"}, {Name: "window_start"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"count": gorm.Expr("rate_limit_buckets.count + 1"),
			}),
		}).Create(&bucket).Error; err != nil {
			return err
		}
		return tx.First(&stored, "key = ? AND window_start = ?", key, windowStart).Error
	})
	if err != nil {
		return 0, err
	}
	return stored.Count, nil
}
