package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/vibelog/backend/internal/domain"
	"github.com/vibelog/backend/internal/logger"
	"github.com/vibelog/backend/internal/prompts"
	"github.com/vibelog/backend/internal/repository"
)

// FallbackTitle is used when the writer model produced nothing usable.
const FallbackTitle = "New Vibelog"

const teaserMaxRunes = 160

// GeneratedPost is the parsed output of the writer model.
type GeneratedPost struct {
	Title    string `json:"title"`
	Teaser   string `json:"teaser"`
	Content  string `json:"content"`
	Language string `json:"language,omitempty"`
}

// ParseGenerated extracts the delimited sections from a raw completion.
// It reports false when no content section was found.
func ParseGenerated(raw string) (GeneratedPost, bool) {
	type section struct {
		marker string
		start  int
	}
	var found []section
	for _, m := range []string{prompts.MarkerTitle, prompts.MarkerTeaser, prompts.MarkerContent, prompts.MarkerLanguage} {
		if idx := strings.Index(raw, m); idx >= 0 {
			found = append(found, section{marker: m, start: idx})
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].start < found[j].start })

	values := make(map[string]string, len(found))
	for i, s := range found {
		end := len(raw)
		if i+1 < len(found) {
			end = found[i+1].start
		}
		values[s.marker] = strings.TrimSpace(raw[s.start+len(s.marker) : end])
	}

	post := GeneratedPost{
		Title:    cleanTitle(values[prompts.MarkerTitle]),
		Teaser:   values[prompts.MarkerTeaser],
		Content:  values[prompts.MarkerContent],
		Language: LanguageCode(values[prompts.MarkerLanguage]),
	}
	return post, post.Content != ""
}

func cleanTitle(t string) string {
	t = strings.TrimSpace(strings.SplitN(t, "\n", 2)[0])
	t = strings.TrimLeft(t, "# ")
	t = strings.Trim(t, `"'*`)
	return strings.TrimSpace(t)
}

// FallbackPost builds a post straight from the transcript.
func FallbackPost(transcript string) GeneratedPost {
	transcript = strings.TrimSpace(transcript)
	return GeneratedPost{
		Title:   FallbackTitle,
		Teaser:  DeriveTeaser(transcript),
		Content: transcript,
	}
}

// DeriveTeaser returns the first sentence of text, cut at a word boundary
// when it is longer than the teaser limit.
func DeriveTeaser(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return ""
	}
	if idx := strings.IndexAny(text, ".!?"); idx > 0 {
		text = text[:idx+1]
	}
	if utf8.RuneCountInString(text) <= teaserMaxRunes {
		return text
	}
	runes := []rune(text)[:teaserMaxRunes]
	cut := string(runes)
	if sp := strings.LastIndex(cut, " "); sp > teaserMaxRunes/2 {
		cut = cut[:sp]
	}
	return strings.TrimRight(cut, " ,;:") + "..."
}

// Writer turns transcripts into posts with the chat model.
type Writer struct {
	chat        ChatCompleter
	costs       *CostGuard
	configs     ConfigSource
	defaultTone string
}

func NewWriter(chat ChatCompleter, costs *CostGuard, configs ConfigSource, defaultTone string) *Writer {
	if defaultTone == "" {
		defaultTone = prompts.DefaultTone
	}
	return &Writer{chat: chat, costs: costs, configs: configs, defaultTone: defaultTone}
}

// ToneInstruction resolves a tone name against the vibe_brain presets,
// then the built-ins, then the default tone.
func (w *Writer) ToneInstruction(ctx context.Context, tone string) string {
	if tone == "" {
		tone = w.defaultTone
	}
	brain := loadVibeBrain(ctx, w.configs)
	if text, ok := brain.TonePresets[tone]; ok && text != "" {
		return text
	}
	if text, ok := prompts.TonePresets[tone]; ok {
		return text
	}
	return prompts.TonePresets[prompts.DefaultTone]
}

// Generate asks the model for a post. On any failure it returns the
// fallback post together with the error so callers can log it.
func (w *Writer) Generate(ctx context.Context, transcript, tone, contentType string) (GeneratedPost, error) {
	fallback := FallbackPost(transcript)
	if strings.TrimSpace(transcript) == "" {
		return fallback, fmt.Errorf("%w: nothing to generate from", ErrInvalidInput)
	}

	res, err := w.chat.Complete(ctx, ChatRequest{
		System:      prompts.GenerationSystemPrompt,
		Messages:    []ChatMessage{{Role: "user", Content: prompts.GenerationUserPrompt(transcript, w.ToneInstruction(ctx, tone), contentType)}},
		Temperature: 0.7,
	})
	if err != nil {
		return fallback, err
	}
	w.costs.RecordChat(ctx, "generate", res)

	post, ok := ParseGenerated(res.Text)
	if !ok {
		return fallback, fmt.Errorf("writer output had no %s section", prompts.MarkerContent)
	}
	if post.Title == "" {
		post.Title = fallback.Title
	}
	if post.Teaser == "" {
		post.Teaser = DeriveTeaser(post.Content)
	}
	return post, nil
}

// loadVibeBrain returns the admin-configured assistant settings merged over defaults.
func loadVibeBrain(ctx context.Context, configs ConfigSource) domain.VibeBrainConfig {
	cfg := domain.VibeBrainConfig{
		SystemPrompt:   prompts.DefaultBrainSystemPrompt,
		Temperature:    0.7,
		MaxTokens:      800,
		RAG:            domain.RAGConfig{Enabled: true, TopK: 5, MinScore: 0.3},
		MemoryPatterns: prompts.DefaultMemoryPatterns,
	}
	if configs == nil {
		return cfg
	}
	err := configs.Decode(ctx, domain.ConfigKeyVibeBrain, &cfg)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		logger.CtxWarn(ctx, "Failed to read %s, using defaults: %v", domain.ConfigKeyVibeBrain, err)
	}
	return cfg
}
