package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vibelog/backend/internal/domain"
	"github.com/vibelog/backend/internal/logger"
	"github.com/vibelog/backend/internal/prompts"
	"github.com/vibelog/backend/internal/repository"
)

// Translator stores machine translations of a vibelog in the configured languages.
type Translator struct {
	vibelogs  *repository.VibelogRepository
	chat      ChatCompleter
	costs     *CostGuard
	enabled   bool
	languages []string
}

func NewTranslator(vibelogs *repository.VibelogRepository, chat ChatCompleter, costs *CostGuard, enabled bool, languages []string) *Translator {
	return &Translator{
		vibelogs:  vibelogs,
		chat:      chat,
		costs:     costs,
		enabled:   enabled,
		languages: languages,
	}
}

// TargetLanguages returns the configured languages other than original.
func (t *Translator) TargetLanguages(original string) []string {
	original = LanguageCode(original)
	seen := make(map[string]bool, len(t.languages))
	var out []string
	for _, lang := range t.languages {
		lang = LanguageCode(lang)
		if lang == "" || lang == original || seen[lang] {
			continue
		}
		seen[lang] = true
		out = append(out, lang)
	}
	return out
}

// TranslateVibelog translates into every target language. One failed
// language does not stop the others; all failures are returned joined.
func (t *Translator) TranslateVibelog(ctx context.Context, vibelogID string) error {
	if !t.enabled {
		return nil
	}
	v, err := t.vibelogs.GetByID(ctx, vibelogID)
	if err != nil {
		return fmt.Errorf("failed to load vibelog: %w", err)
	}
	targets := t.TargetLanguages(v.OriginalLanguage)
	if strings.TrimSpace(v.Content) == "" || len(targets) == 0 {
		return nil
	}
	if err := t.costs.Check(ctx); err != nil {
		return err
	}

	var errs []error
	translated := 0
	for _, lang := range targets {
		if err := t.translateOne(ctx, v, lang); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", lang, err))
			continue
		}
		translated++
	}
	logger.With(logger.Fields{"targets": len(targets)}).WithCount(translated).Info(ctx, "Translated vibelog %s", vibelogID)
	return errors.Join(errs...)
}

func (t *Translator) translateOne(ctx context.Context, v *domain.Vibelog, lang string) error {
	res, err := t.chat.Complete(ctx, ChatRequest{
		System:      prompts.TranslationSystemPrompt,
		Messages:    []ChatMessage{{Role: "user", Content: prompts.TranslationUserPrompt(v.Title, v.Teaser, v.Content, lang)}},
		Temperature: 0.2,
	})
	if err != nil {
		return err
	}
	t.costs.RecordChat(ctx, "translate", res)

	post, ok := ParseGenerated(res.Text)
	if !ok {
		return fmt.Errorf("translation output had no %s section", prompts.MarkerContent)
	}
	return t.vibelogs.UpsertTranslation(ctx, &domain.VibelogTranslation{
		VibelogID: v.ID,
		Language:  lang,
		Title:     post.Title,
		Teaser:    post.Teaser,
		Content:   post.Content,
	})
}
