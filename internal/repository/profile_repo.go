package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/vibelog/backend/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProfileRepository persists profiles and the memories the Vibe Brain keeps per user.
type ProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	var p domain.Profile
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *ProfileRepository) GetByUsername(ctx context.Context, username string) (*domain.Profile, error) {
	var p domain.Profile
	if err := r.db.WithContext(ctx).First(&p, "username = ?", username).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// Ensure returns the profile for id, creating an empty one on first sight.
func (r *ProfileRepository) Ensure(ctx context.Context, id string) (*domain.Profile, error) {
	p := domain.Profile{ID: id}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&p).Error; err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// UpdateFields updates the named columns of one profile.
func (r *ProfileRepository) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&domain.Profile{}).Where("id = ?", id).Updates(fields)
	if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AddMemories stores facts for userID, ignoring ones already known.
func (r *ProfileRepository) AddMemories(ctx context.Context, userID string, facts []string) (int64, error) {
	if len(facts) == 0 {
		return 0, nil
	}
	rows := make([]domain.UserMemory, 0, len(facts))
	for _, f := range facts {
		rows = append(rows, domain.UserMemory{ID: uuid.NewString(), UserID: userID, Fact: f})
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows)
	return res.RowsAffected, res.Error
}

// ListMemories returns the newest facts for userID.
func (r *ProfileRepository) ListMemories(ctx context.Context, userID string, limit int) ([]domain.UserMemory, error) {
	var out []domain.UserMemory
	q := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// GetByIDs loads several profiles keyed by id; missing ids are skipped.
func (r *ProfileRepository) GetByIDs(ctx context.Context, ids []string) (map[string]domain.Profile, error) {
	out := make(map[string]domain.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []domain.Profile
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, p := range rows {
		out[p.ID] = p
	}
	return out, nil
}
