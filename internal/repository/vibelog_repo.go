package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/vibelog/backend/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VibelogRepository persists vibelogs and their translations.
type VibelogRepository struct {
	db *gorm.DB
}

// NewVibelogRepository creates a VibelogRepository bound to db.
func NewVibelogRepository(db *gorm.DB) *VibelogRepository {
	return &VibelogRepository{db: db}
}

// ListFilter narrows ListPublished. Zero values mean "no filter".
type ListFilter struct {
	AuthorID string
	Limit    int
	Offset   int
}

// Create inserts a new vibelog. The caller assigns the ID.
func (r *VibelogRepository) Create(ctx context.Context, v *domain.Vibelog) error {
	return r.db.WithContext(ctx).Create(v).Error
}

// Save writes every column of v.
func (r *VibelogRepository) Save(ctx context.Context, v *domain.Vibelog) error {
	return r.db.WithContext(ctx).Save(v).Error
}

// UpdateFields updates the named columns of one vibelog.
func (r *VibelogRepository) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&domain.Vibelog{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID loads one vibelog.
func (r *VibelogRepository) GetByID(ctx context.Context, id string) (*domain.Vibelog, error) {
	var v domain.Vibelog
	if err := r.db.WithContext(ctx).First(&v, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}

// GetByIDs loads several vibelogs; missing ids are skipped.
func (r *VibelogRepository) GetByIDs(ctx context.Context, ids []string) ([]domain.Vibelog, error) {
	if len(ids) == 0 {
		return []domain.Vibelog{}, nil
	}
	var out []domain.Vibelog
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to get vibelogs by IDs: %w", err)
	}
	return out, nil
}

// ListPublished returns published public vibelogs, newest first.
func (r *VibelogRepository) ListPublished(ctx context.Context, f ListFilter) ([]domain.Vibelog, error) {
	q := r.publishedQuery(ctx, f.AuthorID)
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}
	var out []domain.Vibelog
	if err := q.Order("published_at DESC").Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// CountPublished counts what ListPublished would return without paging.
func (r *VibelogRepository) CountPublished(ctx context.Context, authorID string) (int64, error) {
	var n int64
	if err := r.publishedQuery(ctx, authorID).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *VibelogRepository) publishedQuery(ctx context.Context, authorID string) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&domain.Vibelog{}).
		Where("is_published = ? AND is_public = ?", true, true)
	if authorID != "" {
		q = q.Where("user_id = ?", authorID)
	}
	return q
}

// UpsertTranslation stores or replaces the translation for (vibelog, language).
func (r *VibelogRepository) UpsertTranslation(ctx context.Context, t *domain.VibelogTranslation) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "vibelog_id"}, {Name: "language"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "teaser", "content", "updated_at"}),
	}).Create(t).Error
}

// GetTranslation loads one translation.
func (r *VibelogRepository) GetTranslation(ctx context.Context, vibelogID, language string) (*domain.VibelogTranslation, error) {
	var t domain.VibelogTranslation
	err := r.db.WithContext(ctx).
		First(&t, "vibelog_id = ? AND language = ?", vibelogID, language).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

// ListTranslations returns every translation of a vibelog ordered by language.
func (r *VibelogRepository) ListTranslations(ctx context.Context, vibelogID string) ([]domain.VibelogTranslation, error) {
	var out []domain.VibelogTranslation
	if err := r.db.WithContext(ctx).
		Where("vibelog_id = ?", vibelogID).
		Order("language").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// TranslationsFor loads translations for many vibelogs in one language, keyed by vibelog id.
func (r *VibelogRepository) TranslationsFor(ctx context.Context, ids []string, language string) (map[string]domain.VibelogTranslation, error) {
	out := make(map[string]domain.VibelogTranslation, len(ids))
	if len(ids) == 0 || language == "" {
		return out, nil
	}
	var rows []domain.VibelogTranslation
	if err := r.db.WithContext(ctx).
		Where("vibelog_id IN ? AND language = ?", ids, language).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, t := range rows {
		out[t.VibelogID] = t
	}
	return out, nil
}
