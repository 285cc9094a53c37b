package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/vibelog/backend/internal/logger"
	"github.com/vibelog/backend/internal/prompts"
	"github.com/vibelog/backend/internal/repository"
)

const (
	maxBrainMessageRunes = 4000
	maxBrainHistory      = 10
	maxMemoryRunes       = 200
	memoriesInPrompt     = 20
)

// BrainSource is a vibelog the reply drew on.
type BrainSource struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Score float32 `json:"score"`
}

// BrainReply is the response to one chat turn.
type BrainReply struct {
	Reply         string        `json:"reply"`
	Sources       []BrainSource `json:"sources"`
	MemoriesSaved int64         `json:"memories_saved"`
}

// BrainService is the Vibe Brain assistant.
type BrainService struct {
	chat     ChatCompleter
	profiles *repository.ProfileRepository
	vibelogs *repository.VibelogRepository
	indexer  *Indexer
	configs  ConfigSource
	costs    *CostGuard
}

func NewBrainService(
	chat ChatCompleter,
	profiles *repository.ProfileRepository,
	vibelogs *repository.VibelogRepository,
	indexer *Indexer,
	configs ConfigSource,
	costs *CostGuard,
) *BrainService {
	return &BrainService{
		chat:     chat,
		profiles: profiles,
		vibelogs: vibelogs,
		indexer:  indexer,
		configs:  configs,
		costs:    costs,
	}
}

// ExtractMemories applies each pattern to message. The first capture group
// is the fact when the pattern has one, otherwise the whole match. Invalid
// patterns are skipped.
func ExtractMemories(patterns []string, message string) []string {
	seen := map[string]bool{}
	var facts []string
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			continue
		}
		for _, m := range re.FindAllStringSubmatch(message, -1) {
			fact := m[0]
			if len(m) > 1 && m[1] != "" {
				fact = m[1]
			}
			fact = strings.TrimSpace(strings.TrimRight(strings.TrimSpace(fact), ".,!?;:"))
			if fact == "" {
				continue
			}
			if r := []rune(fact); len(r) > maxMemoryRunes {
				fact = string(r[:maxMemoryRunes])
			}
			key := strings.ToLower(fact)
			if seen[key] {
				continue
			}
			seen[key] = true
			facts = append(facts, fact)
		}
	}
	return facts
}

// Chat answers one message from userID.
func (s *BrainService) Chat(ctx context.Context, userID, message string, history []ChatMessage) (*BrainReply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, fmt.Errorf("%w: message is required", ErrInvalidInput)
	}
	if len([]rune(message)) > maxBrainMessageRunes {
		return nil, fmt.Errorf("%w: message is limited to %d characters", ErrInvalidInput, maxBrainMessageRunes)
	}
	cfg := loadVibeBrain(ctx, s.configs)
	reply := &BrainReply{Sources: []BrainSource{}}

	if facts := ExtractMemories(cfg.MemoryPatterns, message); len(facts) > 0 {
		n, err := s.profiles.AddMemories(ctx, userID, facts)
		if err != nil {
			logger.CtxWarn(ctx, "Failed to save memories: %v", err)
		}
		reply.MemoriesSaved = n
	}

	var memories []string
	if stored, err := s.profiles.ListMemories(ctx, userID, memoriesInPrompt); err != nil {
		logger.CtxWarn(ctx, "Failed to load memories: %v", err)
	} else {
		for _, m := range stored {
			memories = append(memories, m.Fact)
		}
	}

	var sourceLines []string
	if cfg.RAG.Enabled && s.indexer.Enabled() {
		matches, err := s.indexer.Search(ctx, message, cfg.RAG.TopK, cfg.RAG.MinScore, "")
		if err != nil {
			logger.CtxWarn(ctx, "Vibe Brain retrieval failed, answering without context: %v", err)
		}
		for _, m := range matches {
			v, err := s.vibelogs.GetByID(ctx, m.VibelogID)
			if err != nil || !v.IsPublished || !v.IsPublic {
				continue
			}
			reply.Sources = append(reply.Sources, BrainSource{ID: v.ID, Title: v.Title, Score: m.Score})
			sourceLines = append(sourceLines, fmt.Sprintf("%q: %s", v.Title, DeriveTeaser(v.Teaser+" "+v.Content)))
		}
	}

	if len(history) > maxBrainHistory {
		history = history[len(history)-maxBrainHistory:]
	}
	messages := make([]ChatMessage, 0, len(history)+1)
	for _, h := range history {
		if h.Role != "user" && h.Role != "assistant" {
			continue
		}
		messages = append(messages, h)
	}
	messages = append(messages, ChatMessage{Role: "user", Content: message})

	res, err := s.chat.Complete(ctx, ChatRequest{
		Model:       cfg.Model,
		System:      cfg.SystemPrompt + prompts.BrainContext(memories, sourceLines),
		Messages:    messages,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("vibe brain completion failed: %w", err)
	}
	s.costs.RecordChat(ctx, "brain", res)

	reply.Reply = strings.TrimSpace(res.Text)
	return reply, nil
}
