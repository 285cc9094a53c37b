package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vibelog/backend/internal/config"
	"github.com/vibelog/backend/internal/domain"
	"github.com/vibelog/backend/internal/logger"
	"github.com/vibelog/backend/internal/repository"
	"gorm.io/datatypes"
)

// CostLedger is the append-only store behind the circuit breaker.
type CostLedger interface {
	Append(ctx context.Context, e *domain.CostEntry) error
	TotalSince(ctx context.Context, since time.Time) (float64, error)
	BreakdownSince(ctx context.Context, since time.Time) ([]repository.ServiceTotal, error)
}

// ConfigSource reads typed admin configuration documents.
type ConfigSource interface {
	Decode(ctx context.Context, key string, dst interface{}) error
}

// CostStatus is today's spend against the ceiling.
type CostStatus struct {
	Day       string                    `json:"day"`
	TotalUSD  float64                   `json:"total_usd"`
	LimitUSD  float64                   `json:"limit_usd"`
	Exceeded  bool                      `json:"exceeded"`
	ByService []repository.ServiceTotal `json:"by_service"`
}

// CostGuard is the daily spend circuit breaker and the writer of the cost ledger.
type CostGuard struct {
	ledger  CostLedger
	configs ConfigSource
	prices  config.CostsConfig
	now     func() time.Time
}

func NewCostGuard(ledger CostLedger, configs ConfigSource, prices config.CostsConfig) *CostGuard {
	return &CostGuard{
		ledger:  ledger,
		configs: configs,
		prices:  prices,
		now:     time.Now,
	}
}

// startOfDay returns midnight UTC of the current day.
func (g *CostGuard) startOfDay() time.Time {
	now := g.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// Ceiling returns the active daily limit: the admin entry when present,
// otherwise the file default.
func (g *CostGuard) Ceiling(ctx context.Context) float64 {
	if g.configs != nil {
		var limit domain.DailyCostLimit
		err := g.configs.Decode(ctx, domain.ConfigKeyDailyCostLimit, &limit)
		switch {
		case err == nil:
			return limit.LimitUSD
		case !errors.Is(err, repository.ErrNotFound):
			logger.CtxWarn(ctx, "Failed to read %s, using configured default: %v", domain.ConfigKeyDailyCostLimit, err)
		}
	}
	return g.prices.DailyLimitUSD
}

// Check returns ErrCostLimitExceeded when today's spend has reached the ceiling.
// A failed ledger query also blocks: paid calls are never made while spend is unknown.
func (g *CostGuard) Check(ctx context.Context) error {
	if g == nil {
		return nil
	}
	ceiling := g.Ceiling(ctx)
	total, err := g.ledger.TotalSince(ctx, g.startOfDay())
	if err != nil {
		logger.CtxError(ctx, "Cost ledger query failed, blocking paid calls: %v", err)
		return fmt.Errorf("%w: cost ledger unavailable", ErrCostLimitExceeded)
	}
	if total >= ceiling {
		logger.With(logger.Fields{logger.FieldCostUSD: total}).
			Warn(ctx, "Daily cost ceiling reached (%.2f/%.2f USD)", total, ceiling)
		return ErrCostLimitExceeded
	}
	return nil
}

// Status reports today's totals for the admin dashboard.
func (g *CostGuard) Status(ctx context.Context) (*CostStatus, error) {
	since := g.startOfDay()
	total, err := g.ledger.TotalSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to sum cost ledger: %w", err)
	}
	breakdown, err := g.ledger.BreakdownSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to group cost ledger: %w", err)
	}
	ceiling := g.Ceiling(ctx)
	return &CostStatus{
		Day:       since.Format("2006-01-02"),
		TotalUSD:  total,
		LimitUSD:  ceiling,
		Exceeded:  total >= ceiling,
		ByService: breakdown,
	}, nil
}

// Record appends a ledger row. Failures are logged and never returned,
// the paid call has already happened.
func (g *CostGuard) Record(ctx context.Context, service string, costUSD float64, metadata map[string]interface{}) {
	entry := &domain.CostEntry{
		ID:        uuid.NewString(),
		Service:   service,
		CostUSD:   costUSD,
		CreatedAt: g.now().UTC(),
	}
	if len(metadata) > 0 {
		if raw, err := json.Marshal(metadata); err == nil {
			entry.Metadata = datatypes.JSON(raw)
		}
	}
	if err := g.ledger.Append(ctx, entry); err != nil {
		logger.CtxError(ctx, "Failed to record %s cost %.6f: %v", service, costUSD, err)
		return
	}
	logger.With(logger.Fields{logger.FieldCostUSD: costUSD}).Debug(ctx, "Recorded %s cost", service)
}

// RecordTranscription prices a transcription by audio duration.
func (g *CostGuard) RecordTranscription(ctx context.Context, seconds float64) {
	g.Record(ctx, domain.CostServiceTranscription, seconds/60*g.prices.TranscriptionPerMinute,
		map[string]interface{}{"seconds": seconds})
}

// RecordChat prices a chat completion by token usage.
func (g *CostGuard) RecordChat(ctx context.Context, purpose string, res *ChatResult) {
	if res == nil {
		return
	}
	cost := float64(res.PromptTokens)/1e6*g.prices.ChatInputPerMillion +
		float64(res.CompletionTokens)/1e6*g.prices.ChatOutputPerMillion
	g.Record(ctx, domain.CostServiceChat, cost, map[string]interface{}{
		"purpose":           purpose,
		"model":             res.Model,
		"prompt_tokens":     res.PromptTokens,
		"completion_tokens": res.CompletionTokens,
	})
}

func (g *CostGuard) RecordImage(ctx context.Context) {
	g.Record(ctx, domain.CostServiceImage, g.prices.ImagePerImage, nil)
}

func (g *CostGuard) RecordSpeech(ctx context.Context, chars int) {
	g.Record(ctx, domain.CostServiceSpeech, float64(chars)/1e6*g.prices.SpeechPerMillionChars,
		map[string]interface{}{"chars": chars})
}

func (g *CostGuard) RecordEmbedding(ctx context.Context, tokens int) {
	g.Record(ctx, domain.CostServiceEmbedding, float64(tokens)/1e6*g.prices.EmbeddingPerMillionToken,
		map[string]interface{}{"tokens": tokens})
}

func (g *CostGuard) RecordModal(ctx context.Context, elapsed time.Duration) {
	g.Record(ctx, domain.CostServiceModalTTS, elapsed.Seconds()*g.prices.ModalPerSecond,
		map[string]interface{}{"seconds": elapsed.Seconds()})
}
