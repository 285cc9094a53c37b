package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vibelog/backend/internal/domain"
	"github.com/vibelog/backend/internal/logger"
	"github.com/vibelog/backend/internal/repository"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// VibelogPage is one page of published vibelogs.
type VibelogPage struct {
	Items  []domain.Vibelog `json:"items"`
	Total  int64            `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

// VibelogUpdate holds the owner-editable fields. Nil fields are left alone.
type VibelogUpdate struct {
	Title       *string `json:"title"`
	Teaser      *string `json:"teaser"`
	Content     *string `json:"content"`
	IsPublished *bool   `json:"is_published"`
	IsPublic    *bool   `json:"is_public"`
}

// VibelogService reads and edits vibelogs after they were created.
type VibelogService struct {
	vibelogs   *repository.VibelogRepository
	profiles   *repository.ProfileRepository
	pipeline   *Pipeline
	covers     *CoverService
	indexer    *Indexer
	dispatcher Dispatcher
}

func NewVibelogService(
	vibelogs *repository.VibelogRepository,
	profiles *repository.ProfileRepository,
	pipeline *Pipeline,
	covers *CoverService,
	indexer *Indexer,
	dispatcher Dispatcher,
) *VibelogService {
	return &VibelogService{
		vibelogs:   vibelogs,
		profiles:   profiles,
		pipeline:   pipeline,
		covers:     covers,
		indexer:    indexer,
		dispatcher: dispatcher,
	}
}

// ResolveAuthor turns a username or user id into a user id.
func (s *VibelogService) ResolveAuthor(ctx context.Context, author string) (string, error) {
	author = strings.TrimPrefix(strings.TrimSpace(author), "@")
	if author == "" {
		return "", nil
	}
	p, err := s.profiles.GetByUsername(ctx, author)
	if err == nil {
		return p.ID, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return "", err
	}
	return author, nil
}

// List returns published public vibelogs, newest first.
func (s *VibelogService) List(ctx context.Context, author string, limit, offset int) (*VibelogPage, error) {
	limit, offset = clampPage(limit, offset)
	authorID, err := s.ResolveAuthor(ctx, author)
	if err != nil {
		return nil, err
	}
	items, err := s.vibelogs.ListPublished(ctx, repository.ListFilter{AuthorID: authorID, Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("failed to list vibelogs: %w", err)
	}
	total, err := s.vibelogs.CountPublished(ctx, authorID)
	if err != nil {
		return nil, fmt.Errorf("failed to count vibelogs: %w", err)
	}
	return &VibelogPage{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}

// Get loads a vibelog visible to viewerID. A non-empty lang swaps in the
// stored translation when one exists.
func (s *VibelogService) Get(ctx context.Context, id, viewerID, lang string) (*domain.Vibelog, error) {
	v, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !v.Visible(viewerID) {
		return nil, ErrNotFound
	}
	if lang = LanguageCode(lang); lang != "" && lang != v.OriginalLanguage {
		t, err := s.vibelogs.GetTranslation(ctx, id, lang)
		switch {
		case err == nil:
			applyTranslation(v, t)
		case !errors.Is(err, repository.ErrNotFound):
			logger.CtxWarn(ctx, "Failed to load %s translation: %v", lang, err)
		}
	}
	return v, nil
}

// Translations lists the stored translations of a visible vibelog.
func (s *VibelogService) Translations(ctx context.Context, id, viewerID string) ([]domain.VibelogTranslation, error) {
	if _, err := s.Get(ctx, id, viewerID, ""); err != nil {
		return nil, err
	}
	return s.vibelogs.ListTranslations(ctx, id)
}

// Update applies an owner's edit. Publishing sets published_at the first time
// and refreshes the search index.
func (s *VibelogService) Update(ctx context.Context, id, userID string, u VibelogUpdate) (*domain.Vibelog, error) {
	v, err := s.owned(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if u.Title != nil {
		title := strings.TrimSpace(*u.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: title cannot be empty", ErrInvalidInput)
		}
		fields["title"] = title
	}
	if u.Teaser != nil {
		fields["teaser"] = strings.TrimSpace(*u.Teaser)
	}
	if u.Content != nil {
		fields["content"] = *u.Content
	}
	if u.IsPublic != nil {
		fields["is_public"] = *u.IsPublic
	}
	if u.IsPublished != nil {
		fields["is_published"] = *u.IsPublished
		if *u.IsPublished && v.PublishedAt == nil {
			fields["published_at"] = time.Now().UTC()
		}
	}
	if len(fields) == 0 {
		return v, nil
	}
	if err := s.vibelogs.UpdateFields(ctx, id, fields); err != nil {
		return nil, fmt.Errorf("failed to update vibelog: %w", err)
	}

	tasks := []Task{{Type: TaskIndex, VibelogID: id}}
	if u.Content != nil || u.Title != nil || u.Teaser != nil {
		tasks = append(tasks, Task{Type: TaskTranslate, VibelogID: id})
	}
	DispatchAll(ctx, s.dispatcher, tasks...)
	return s.load(ctx, id)
}

// Regenerate re-runs generation over the stored transcription.
func (s *VibelogService) Regenerate(ctx context.Context, id, userID, tone, contentType string) (*domain.Vibelog, error) {
	v, err := s.owned(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	source := v.Content
	if v.Transcription != nil && strings.TrimSpace(*v.Transcription) != "" {
		source = *v.Transcription
	}
	if strings.TrimSpace(source) == "" {
		return nil, fmt.Errorf("%w: nothing to regenerate from", ErrInvalidInput)
	}
	if tone == "" {
		tone = v.Tone
	}
	if contentType == "" {
		contentType = v.ContentType
	}

	post, err := s.pipeline.writer.Generate(ctx, source, tone, contentType)
	if err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}
	fields := map[string]interface{}{
		"title":        post.Title,
		"teaser":       post.Teaser,
		"content":      post.Content,
		"tone":         tone,
		"content_type": contentType,
	}
	if err := s.vibelogs.UpdateFields(ctx, id, fields); err != nil {
		return nil, fmt.Errorf("failed to update vibelog: %w", err)
	}
	DispatchAll(ctx, s.dispatcher,
		Task{Type: TaskTranslate, VibelogID: id},
		Task{Type: TaskIndex, VibelogID: id},
	)
	return s.load(ctx, id)
}

// ReplaceCover stores an uploaded cover or generates a new one.
func (s *VibelogService) ReplaceCover(ctx context.Context, id, userID string, upload *Upload) (*domain.Vibelog, error) {
	v, err := s.owned(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	var res *CoverResult
	if upload != nil && len(upload.Data) > 0 {
		res, err = s.covers.Store(ctx, id, upload.Data, upload.ContentType)
	} else {
		res, err = s.covers.Generate(ctx, id, v.Title, v.Teaser)
	}
	if err != nil {
		return nil, err
	}
	if err := s.vibelogs.UpdateFields(ctx, id, map[string]interface{}{
		"cover_image_url": res.URL,
		"cover_width":     res.Width,
		"cover_height":    res.Height,
	}); err != nil {
		return nil, fmt.Errorf("failed to update vibelog: %w", err)
	}
	return s.load(ctx, id)
}

// Related returns published vibelogs similar to id. It is empty when the
// vector index is disabled.
func (s *VibelogService) Related(ctx context.Context, id, viewerID string, limit int) ([]domain.Vibelog, error) {
	v, err := s.Get(ctx, id, viewerID, "")
	if err != nil {
		return nil, err
	}
	if !s.indexer.Enabled() {
		return []domain.Vibelog{}, nil
	}
	if limit <= 0 || limit > 20 {
		limit = 5
	}
	matches, err := s.indexer.Search(ctx, v.Title+"\n"+v.Teaser, limit, 0, id)
	if err != nil {
		return nil, err
	}
	return s.visibleInOrder(ctx, matches, viewerID)
}

func (s *VibelogService) visibleInOrder(ctx context.Context, matches []repository.VectorMatch, viewerID string) ([]domain.Vibelog, error) {
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.VibelogID)
	}
	found, err := s.vibelogs.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Vibelog, len(found))
	for _, v := range found {
		byID[v.ID] = v
	}
	out := make([]domain.Vibelog, 0, len(found))
	for _, id := range ids {
		if v, ok := byID[id]; ok && v.IsPublished && v.IsPublic {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *VibelogService) load(ctx context.Context, id string) (*domain.Vibelog, error) {
	return loadVibelog(ctx, s.vibelogs, id)
}

func (s *VibelogService) owned(ctx context.Context, id, userID string) (*domain.Vibelog, error) {
	return ownedVibelog(ctx, s.vibelogs, id, userID)
}

func loadVibelog(ctx context.Context, repo *repository.VibelogRepository, id string) (*domain.Vibelog, error) {
	v, err := repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load vibelog: %w", err)
	}
	return v, nil
}

// ownedVibelog loads id for its owner. Other users get ErrForbidden when they
// can see the record and ErrNotFound when they cannot, so hidden posts stay hidden.
func ownedVibelog(ctx context.Context, repo *repository.VibelogRepository, id, userID string) (*domain.Vibelog, error) {
	v, err := loadVibelog(ctx, repo, id)
	if err != nil {
		return nil, err
	}
	if v.UserID != userID {
		if v.Visible(userID) {
			return nil, ErrForbidden
		}
		return nil, ErrNotFound
	}
	return v, nil
}

func applyTranslation(v *domain.Vibelog, t *domain.VibelogTranslation) {
	if t.Title != "" {
		v.Title = t.Title
	}
	if t.Teaser != "" {
		v.Teaser = t.Teaser
	}
	if t.Content != "" {
		v.Content = t.Content
	}
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
