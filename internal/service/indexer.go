package service

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/vibelog/backend/internal/domain"
	"github.com/vibelog/backend/internal/logger"
	"github.com/vibelog/backend/internal/repository"
)

// maxIndexRunes bounds the text sent for embedding.
const maxIndexRunes = 6000

// VectorIndex stores one vector per published vibelog.
type VectorIndex interface {
	Upsert(ctx context.Context, vector []float32, payload repository.VibelogPayload) error
	Search(ctx context.Context, vector []float32, topK int, minScore float32, excludeID string) ([]repository.VectorMatch, error)
	Delete(ctx context.Context, vibelogID string) error
}

// Indexer keeps the vector index in step with published vibelogs.
// A nil index or embedder disables indexing.
type Indexer struct {
	vibelogs *repository.VibelogRepository
	embedder Embedder
	index    VectorIndex
	costs    *CostGuard
}

func NewIndexer(vibelogs *repository.VibelogRepository, embedder Embedder, index VectorIndex, costs *CostGuard) *Indexer {
	return &Indexer{vibelogs: vibelogs, embedder: embedder, index: index, costs: costs}
}

func (i *Indexer) Enabled() bool {
	return i != nil && i.embedder != nil && i.index != nil
}

// IndexVibelog embeds a visible vibelog, or drops the point of one that is no longer public.
func (i *Indexer) IndexVibelog(ctx context.Context, vibelogID string) error {
	if !i.Enabled() {
		return nil
	}
	v, err := i.vibelogs.GetByID(ctx, vibelogID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return i.index.Delete(ctx, vibelogID)
		}
		return fmt.Errorf("failed to load vibelog: %w", err)
	}
	if !v.IsPublished || !v.IsPublic {
		return i.index.Delete(ctx, vibelogID)
	}
	// Queued jobs return the breaker error and are retried once spend resets.
	if err := i.costs.Check(ctx); err != nil {
		return err
	}

	vector, tokens, err := i.embedder.EmbedPassage(ctx, IndexText(v))
	if err != nil {
		return fmt.Errorf("failed to embed vibelog: %w", err)
	}
	i.costs.RecordEmbedding(ctx, tokens)

	if err := i.index.Upsert(ctx, vector, repository.VibelogPayload{
		VibelogID: v.ID,
		UserID:    v.UserID,
		Title:     v.Title,
		Language:  v.OriginalLanguage,
	}); err != nil {
		return fmt.Errorf("failed to upsert vector: %w", err)
	}
	logger.CtxInfo(ctx, "Indexed vibelog %s", v.ID)
	return nil
}

// Search embeds query and returns matching vibelog ids, best first.
func (i *Indexer) Search(ctx context.Context, query string, topK int, minScore float32, excludeID string) ([]repository.VectorMatch, error) {
	if !i.Enabled() {
		return nil, nil
	}
	if err := i.costs.Check(ctx); err != nil {
		return nil, err
	}
	vector, tokens, err := i.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	i.costs.RecordEmbedding(ctx, tokens)
	return i.index.Search(ctx, vector, topK, minScore, excludeID)
}

// IndexText is the text embedded for v.
func IndexText(v *domain.Vibelog) string {
	text := v.Title + "\n\n" + v.Teaser + "\n\n" + v.Content
	if utf8.RuneCountInString(text) > maxIndexRunes {
		text = string([]rune(text)[:maxIndexRunes])
	}
	return text
}
