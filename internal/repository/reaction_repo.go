package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/vibelog/backend/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// reactableTables maps each reactable type to the table holding its targets and
// denormalized reaction_count column.
var reactableTables = map[domain.ReactableType]string{
	domain.ReactableVibelog: "vibelogs",
	domain.ReactableComment: "comments",
}

// IsReactable reports whether t names a registered reactable type.
func IsReactable(t domain.ReactableType) bool {
	_, ok := reactableTables[t]
	return ok
}

// ReactionRepository stores polymorphic reactions.
type ReactionRepository struct {
	db *gorm.DB
}

func NewReactionRepository(db *gorm.DB) *ReactionRepository {
	return &ReactionRepository{db: db}
}

// TargetVisible reports whether the reactable exists and viewerID may see it.
// A comment is visible when its vibelog is: the owner always sees their own
// vibelog, everyone else only a published public one.
func (r *ReactionRepository) TargetVisible(ctx context.Context, t domain.ReactableType, id, viewerID string) (bool, error) {
	q := r.db.WithContext(ctx)
	switch t {
	case domain.ReactableVibelog:
		q = q.Table("vibelogs AS v").Where("v.id = ?", id)
	case domain.ReactableComment:
		q = q.Table("comments AS c").
			Joins("JOIN vibelogs AS v ON v.id = c.vibelog_id").
			Where("c.id = ?", id)
	default:
		return false, fmt.Errorf("unknown reactable type %q", t)
	}
	if viewerID != "" {
		q = q.Where("v.user_id = ? OR (v.is_published = ? AND v.is_public = ?)", viewerID, true, true)
	} else {
		q = q.Where("v.is_published = ? AND v.is_public = ?", true, true)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// Add inserts the reaction unless the identical tuple already exists.
// It reports whether a row was created.
func (r *ReactionRepository) Add(ctx context.Context, reaction *domain.Reaction) (bool, error) {
	if reaction.ID == "" {
		reaction.ID = uuid.NewString()
	}
	var created bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(reaction)
		if res.Error != nil {
			return res.Error
		}
		created = res.RowsAffected > 0
		if !created {
			return nil
		}
		return recountReactions(tx, reaction.ReactableType, reaction.ReactableID)
	})
	return created, err
}

// Remove deletes userID's reaction and reports whether one existed.
func (r *ReactionRepository) Remove(ctx context.Context, t domain.ReactableType, id, userID, emoji string) (bool, error) {
	var removed bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where(
			"reactable_type = ? AND reactable_id = ? AND user_id = ? AND emoji = ?",
			t, id, userID, emoji,
		).Delete(&domain.Reaction{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected > 0
		if !removed {
			return nil
		}
		return recountReactions(tx, t, id)
	})
	return removed, err
}

// Counts aggregates reactions per emoji, most used first.
func (r *ReactionRepository) Counts(ctx context.Context, t domain.ReactableType, id string) ([]domain.ReactionCount, error) {
	var rows []domain.ReactionCount
	err := r.db.WithContext(ctx).Model(&domain.Reaction{}).
		Select("emoji, COUNT(*) AS count").
		Where("reactable_type = ? AND reactable_id = ?", t, id).
		Group("emoji").
		Order("count DESC").Order("emoji").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// UserEmojis lists the emojis userID put on one reactable.
func (r *ReactionRepository) UserEmojis(ctx context.Context, t domain.ReactableType, id, userID string) ([]string, error) {
	var emojis []string
	err := r.db.WithContext(ctx).Model(&domain.Reaction{}).
		Where("reactable_type = ? AND reactable_id = ? AND user_id = ?", t, id, userID).
		Pluck("emoji", &emojis).Error
	return emojis, err
}

// recountReactions rewrites the denormalized counter from the source rows. The
// Postgres trigger installed by the migrations computes the same value, so
// running both is harmless.
func recountReactions(tx *gorm.DB, t domain.ReactableType, id string) error {
	table, ok := reactableTables[t]
	if !ok {
		return nil
	}
	return tx.Exec(
		"UPDATE "+table+" SET reaction_count = (SELECT COUNT(*) FROM reactions WHERE reactable_type = ? AND reactable_id = ?) WHERE id = ?",
		t, id, id,
	).Error
}
