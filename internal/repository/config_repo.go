package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/vibelog/backend/internal/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConfigRepository reads and writes admin configuration entries.
type ConfigRepository struct {
	db *gorm.DB
}

func NewConfigRepository(db *gorm.DB) *ConfigRepository {
	return &ConfigRepository{db: db}
}

func (r *ConfigRepository) Get(ctx context.Context, key string) (*domain.AdminConfig, error) {
	var c domain.AdminConfig
	if err := r.db.WithContext(ctx).First(&c, "key = ?", key).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// Decode loads key and unmarshals its value into dst. It returns ErrNotFound
// when the key is absent so callers can fall back to file defaults.
func (r *ConfigRepository) Decode(ctx context.Context, key string, dst interface{}) error {
	c, err := r.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(c.Value, dst)
}

func (r *ConfigRepository) List(ctx context.Context) ([]domain.AdminConfig, error) {
	var out []domain.AdminConfig
	if err := r.db.WithContext(ctx).Order("key").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Put creates or replaces the value stored under key.
func (r *ConfigRepository) Put(ctx context.Context, key string, value json.RawMessage, updatedBy string) (*domain.AdminConfig, error) {
	c := domain.AdminConfig{
		Key:       key,
		Value:     datatypes.JSON(value),
		UpdatedBy: updatedBy,
		UpdatedAt: time.Now().UTC(),
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_by", "updated_at"}),
	}).Create(&c).Error
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, key)
}
