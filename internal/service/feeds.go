package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/vibelog/backend/internal/config"
	"github.com/vibelog/backend/internal/domain"
	"github.com/vibelog/backend/internal/feed"
	"github.com/vibelog/backend/internal/logger"
	"github.com/vibelog/backend/internal/repository"
)

// FeedService assembles the syndication channel from published vibelogs.
type FeedService struct {
	vibelogs *VibelogService
	repo     *repository.VibelogRepository
	profiles *repository.ProfileRepository
	site     config.SiteConfig
}

func NewFeedService(vibelogs *VibelogService, repo *repository.VibelogRepository, profiles *repository.ProfileRepository, site config.SiteConfig) *FeedService {
	return &FeedService{vibelogs: vibelogs, repo: repo, profiles: profiles, site: site}
}

// Channel returns the newest published vibelogs, optionally by one author
// and with translations applied for lang.
func (s *FeedService) Channel(ctx context.Context, author, lang, feedPath string) (feed.Channel, error) {
	limit := s.site.FeedLimit
	if limit <= 0 || limit > maxPageSize {
		limit = 50
	}
	page, err := s.vibelogs.List(ctx, author, limit, 0)
	if err != nil {
		return feed.Channel{}, err
	}

	baseURL := strings.TrimSuffix(s.site.BaseURL, "/")
	ch := feed.Channel{
		Title:       s.site.Title,
		Description: s.site.Description,
		SiteURL:     baseURL,
		FeedURL:     baseURL + feedPath,
		Language:    s.site.Language,
		Items:       make([]feed.Item, 0, len(page.Items)),
	}

	lang = LanguageCode(lang)
	if lang != "" {
		ch.Language = lang
	}
	translations := map[string]domain.VibelogTranslation{}
	ids := make([]string, 0, len(page.Items))
	userIDs := make([]string, 0, len(page.Items))
	for _, v := range page.Items {
		ids = append(ids, v.ID)
		userIDs = append(userIDs, v.UserID)
	}
	if lang != "" {
		if translations, err = s.repo.TranslationsFor(ctx, ids, lang); err != nil {
			return feed.Channel{}, fmt.Errorf("failed to load translations: %w", err)
		}
	}
	authors, err := s.profiles.GetByIDs(ctx, userIDs)
	if err != nil {
		logger.CtxWarn(ctx, "Failed to load feed authors: %v", err)
		authors = map[string]domain.Profile{}
	}

	for i := range page.Items {
		v := page.Items[i]
		if t, ok := translations[v.ID]; ok && v.OriginalLanguage != lang {
			applyTranslation(&v, &t)
		}
		ch.Items = append(ch.Items, toFeedItem(baseURL, v, authors[v.UserID], lang))
	}
	if len(page.Items) > 0 && page.Items[0].PublishedAt != nil {
		ch.Updated = *page.Items[0].PublishedAt
	}
	return ch, nil
}

func toFeedItem(baseURL string, v domain.Vibelog, author domain.Profile, lang string) feed.Item {
	item := feed.Item{
		ID:       v.ID,
		URL:      fmt.Sprintf("%s/v/%s", baseURL, v.ID),
		Title:    v.Title,
		Summary:  v.Teaser,
		Content:  v.Content,
		Language: v.OriginalLanguage,
		Updated:  v.UpdatedAt,
	}
	if lang != "" {
		item.Language = lang
	}
	if v.PublishedAt != nil {
		item.Published = *v.PublishedAt
	} else {
		item.Published = v.CreatedAt
	}
	switch {
	case author.DisplayName != "":
		item.Author = author.DisplayName
	case author.Username != nil:
		item.Author = "@" + *author.Username
	}
	if v.CoverImageURL != nil {
		item.ImageURL = *v.CoverImageURL
	}
	if v.NarrationURL != nil {
		item.NarrationURL = *v.NarrationURL
	}
	return item
}
