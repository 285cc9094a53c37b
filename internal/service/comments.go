package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/vibelog/backend/internal/domain"
	"github.com/vibelog/backend/internal/repository"
)

const maxCommentRunes = 2000

// CommentService manages comments on vibelogs.
type CommentService struct {
	comments *repository.CommentRepository
	vibelogs *repository.VibelogRepository
}

func NewCommentService(comments *repository.CommentRepository, vibelogs *repository.VibelogRepository) *CommentService {
	return &CommentService{comments: comments, vibelogs: vibelogs}
}

func (s *CommentService) visibleVibelog(ctx context.Context, vibelogID, viewerID string) error {
	v, err := s.vibelogs.GetByID(ctx, vibelogID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if !v.Visible(viewerID) {
		return ErrNotFound
	}
	return nil
}

func (s *CommentService) Create(ctx context.Context, vibelogID, userID, content string) (*domain.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(content) > maxCommentRunes {
		return nil, fmt.Errorf("%w: comments are limited to %d characters", ErrInvalidInput, maxCommentRunes)
	}
	if err := s.visibleVibelog(ctx, vibelogID, userID); err != nil {
		return nil, err
	}
	c := &domain.Comment{
		ID:        uuid.NewString(),
		VibelogID: vibelogID,
		UserID:    userID,
		Content:   content,
	}
	if err := s.comments.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to save comment: %w", err)
	}
	return c, nil
}

func (s *CommentService) List(ctx context.Context, vibelogID, viewerID string, limit, offset int) ([]domain.Comment, error) {
	if err := s.visibleVibelog(ctx, vibelogID, viewerID); err != nil {
		return nil, err
	}
	limit, offset = clampPage(limit, offset)
	return s.comments.ListByVibelog(ctx, vibelogID, limit, offset)
}

// Delete removes a comment written by userID together with its reactions.
func (s *CommentService) Delete(ctx context.Context, id, userID string) error {
	c, err := s.comments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if c.UserID != userID {
		return ErrForbidden
	}
	return s.comments.Delete(ctx, c)
}
