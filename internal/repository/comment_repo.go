package repository

import (
	"context"

	"github.com/vibelog/backend/internal/domain"
	"gorm.io/gorm"
)

// CommentRepository persists comments and keeps vibelogs.comment_count in step.
type CommentRepository struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// Create inserts c and recounts the parent's comments in the same transaction.
func (r *CommentRepository) Create(ctx context.Context, c *domain.Comment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(c).Error; err != nil {
			return err
		}
		return recountComments(tx, c.VibelogID)
	})
}

func (r *CommentRepository) GetByID(ctx context.Context, id string) (*domain.Comment, error) {
	var c domain.Comment
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// ListByVibelog returns a vibelog's comments, oldest first.
func (r *CommentRepository) ListByVibelog(ctx context.Context, vibelogID string, limit, offset int) ([]domain.Comment, error) {
	q := r.db.WithContext(ctx).Where("vibelog_id = ?", vibelogID).Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	var out []domain.Comment
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a comment and the reactions pointing at it. Reactions reference
// comments polymorphically, so the database will not cascade for us.
func (r *CommentRepository) Delete(ctx context.Context, c *domain.Comment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("reactable_type = ? AND reactable_id = ?", domain.ReactableComment, c.ID).
			Delete(&domain.Reaction{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&domain.Comment{}, "id = ?", c.ID).Error; err != nil {
			return err
		}
		return recountComments(tx, c.VibelogID)
	})
}

func recountComments(tx *gorm.DB, vibelogID string) error {
	return tx.Exec(
		"UPDATE vibelogs SET comment_count = (SELECT COUNT(*) FROM comments WHERE vibelog_id = ?) WHERE id = ?",
		vibelogID, vibelogID,
	).Error
}
