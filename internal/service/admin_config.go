package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/vibelog/backend/internal/config"
	"github.com/vibelog/backend/internal/domain"
	"github.com/vibelog/backend/internal/repository"
)

var configKeyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

// AdminConfigService validates and stores admin configuration entries.
type AdminConfigService struct {
	configs *repository.ConfigRepository
}

func NewAdminConfigService(configs *repository.ConfigRepository) *AdminConfigService {
	return &AdminConfigService{configs: configs}
}

func (s *AdminConfigService) List(ctx context.Context) ([]domain.AdminConfig, error) {
	return s.configs.List(ctx)
}

func (s *AdminConfigService) Get(ctx context.Context, key string) (*domain.AdminConfig, error) {
	c, err := s.configs.Get(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	return c, err
}

// Put validates value against the schema of a known key and stores it.
// Unknown keys must still hold a JSON document.
func (s *AdminConfigService) Put(ctx context.Context, key string, value json.RawMessage, updatedBy string) (*domain.AdminConfig, error) {
	key = strings.TrimSpace(key)
	if !configKeyPattern.MatchString(key) {
		return nil, fmt.Errorf("%w: invalid config key %q", ErrInvalidInput, key)
	}
	if !json.Valid(value) {
		return nil, fmt.Errorf("%w: value must be valid JSON", ErrInvalidInput)
	}
	if err := ValidateConfigValue(key, value); err != nil {
		return nil, err
	}
	return s.configs.Put(ctx, key, value, updatedBy)
}

// ValidateConfigValue decodes known keys strictly into their typed documents.
func ValidateConfigValue(key string, value json.RawMessage) error {
	switch key {
	case domain.ConfigKeyVibeBrain:
		var cfg domain.VibeBrainConfig
		if err := decodeStrict(value, &cfg); err != nil {
			return err
		}
		if cfg.Temperature < 0 || cfg.Temperature > 2 {
			return fmt.Errorf("%w: temperature must be between 0 and 2", ErrInvalidInput)
		}
		if cfg.MaxTokens < 0 {
			return fmt.Errorf("%w: max_tokens must not be negative", ErrInvalidInput)
		}
		if cfg.RAG.TopK < 0 || cfg.RAG.TopK > 50 {
			return fmt.Errorf("%w: rag.top_k must be between 0 and 50", ErrInvalidInput)
		}
		for _, p := range cfg.MemoryPatterns {
			if _, err := regexp.Compile(p); err != nil {
				return fmt.Errorf("%w: memory pattern %q: %v", ErrInvalidInput, p, err)
			}
		}
	case domain.ConfigKeyRateLimits:
		var limits map[string]config.EndpointLimit
		if err := decodeStrict(value, &limits); err != nil {
			return err
		}
		for name, l := range limits {
			for _, r := range []config.RateLimitRule{l.Anonymous, l.Authenticated} {
				if r.Limit > 0 && r.WindowSeconds <= 0 {
					return fmt.Errorf("%w: %s: window_seconds must be positive", ErrInvalidInput, name)
				}
			}
		}
	case domain.ConfigKeyDailyCostLimit:
		var limit domain.DailyCostLimit
		if err := decodeStrict(value, &limit); err != nil {
			return err
		}
		if limit.LimitUSD < 0 {
			return fmt.Errorf("%w: limit_usd must not be negative", ErrInvalidInput)
		}
	}
	return nil
}

func decodeStrict(value json.RawMessage, dst interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(value))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}
