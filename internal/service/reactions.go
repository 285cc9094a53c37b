package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/vibelog/backend/internal/domain"
	"github.com/vibelog/backend/internal/repository"
)

const maxEmojiBytes = 16

// ReactionInput names one reaction.
type ReactionInput struct {
	ReactableType domain.ReactableType `json:"reactable_type"`
	ReactableID   string               `json:"reactable_id"`
	Emoji         string               `json:"emoji"`
}

// ReactionService implements idempotent add, user-scoped remove and per-emoji summaries.
type ReactionService struct {
	reactions *repository.ReactionRepository
}

func NewReactionService(reactions *repository.ReactionRepository) *ReactionService {
	return &ReactionService{reactions: reactions}
}

func validateReaction(in *ReactionInput) error {
	in.Emoji = strings.TrimSpace(in.Emoji)
	in.ReactableID = strings.TrimSpace(in.ReactableID)
	if !repository.IsReactable(in.ReactableType) {
		return fmt.Errorf("%w: unknown reactable_type %q", ErrInvalidInput, in.ReactableType)
	}
	if in.ReactableID == "" {
		return fmt.Errorf("%w: reactable_id is required", ErrInvalidInput)
	}
	if in.Emoji == "" || len(in.Emoji) > maxEmojiBytes {
		return fmt.Errorf("%w: emoji must be 1 to %d bytes", ErrInvalidInput, maxEmojiBytes)
	}
	return nil
}

// checkVisible hides targets viewerID cannot see behind ErrNotFound.
func (s *ReactionService) checkVisible(ctx context.Context, t domain.ReactableType, id, viewerID string) error {
	ok, err := s.reactions.TargetVisible(ctx, t, id, viewerID)
	if err != nil {
		return fmt.Errorf("failed to check reaction target: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// Add records userID's reaction. Repeating an identical reaction is a no-op;
// created reports whether a new row was written.
func (s *ReactionService) Add(ctx context.Context, userID string, in ReactionInput) (created bool, err error) {
	if err := validateReaction(&in); err != nil {
		return false, err
	}
	if err := s.checkVisible(ctx, in.ReactableType, in.ReactableID, userID); err != nil {
		return false, err
	}
	return s.reactions.Add(ctx, &domain.Reaction{
		ReactableType: in.ReactableType,
		ReactableID:   in.ReactableID,
		UserID:        userID,
		Emoji:         in.Emoji,
	})
}

// Remove deletes userID's own reaction; other users' reactions are untouched.
// It works even after the target was hidden.
func (s *ReactionService) Remove(ctx context.Context, userID string, in ReactionInput) (bool, error) {
	if err := validateReaction(&in); err != nil {
		return false, err
	}
	return s.reactions.Remove(ctx, in.ReactableType, in.ReactableID, userID, in.Emoji)
}

// Summary returns per-emoji counts and whether viewerID used each emoji.
// Targets hidden from viewerID are ErrNotFound.
func (s *ReactionService) Summary(ctx context.Context, t domain.ReactableType, id, viewerID string) (*domain.ReactionSummary, error) {
	if !repository.IsReactable(t) {
		return nil, fmt.Errorf("%w: unknown reactable_type %q", ErrInvalidInput, t)
	}
	if err := s.checkVisible(ctx, t, id, viewerID); err != nil {
		return nil, err
	}
	counts, err := s.reactions.Counts(ctx, t, id)
	if err != nil {
		return nil, fmt.Errorf("failed to count reactions: %w", err)
	}
	mine := map[string]bool{}
	if viewerID != "" {
		emojis, err := s.reactions.UserEmojis(ctx, t, id, viewerID)
		if err != nil {
			return nil, fmt.Errorf("failed to load user reactions: %w", err)
		}
		for _, e := range emojis {
			mine[e] = true
		}
	}

	summary := &domain.ReactionSummary{ReactableType: t, ReactableID: id, Counts: make([]domain.ReactionCount, 0, len(counts))}
	for _, c := range counts {
		c.UserReacted = mine[c.Emoji]
		summary.Total += c.Count
		summary.Counts = append(summary.Counts, c)
	}
	return summary, nil
}
