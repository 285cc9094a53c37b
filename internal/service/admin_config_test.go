package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/vibelog/backend/internal/domain"
	"github.com/vibelog/backend/internal/repository"
)

func TestValidateConfigValue(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr bool
	}{
		{"brain ok", domain.ConfigKeyVibeBrain, `{"temperature": 0.4, "rag": {"enabled": true, "top_k": 8}}`, false},
		{"brain unknown field", domain.ConfigKeyVibeBrain, `{"temprature": 0.4}`, true},
		{"brain temperature", domain.ConfigKeyVibeBrain, `{"temperature": 2.5}`, true},
		{"brain top_k", domain.ConfigKeyVibeBrain, `{"rag": {"top_k": 51}}`, true},
		{"brain bad regex", domain.ConfigKeyVibeBrain, `{"memory_patterns": ["(unclosed"]}`, true},
		{"limits ok", domain.ConfigKeyRateLimits, `{"upload": {"authenticated": {"limit": 5, "window_seconds": 60}}}`, false},
		{"limits disabled without window", domain.ConfigKeyRateLimits, `{"upload": {"anonymous": {"limit": 0}}}`, false},
		{"limits missing window", domain.ConfigKeyRateLimits, `{"upload": {"anonymous": {"limit": 3}}}`, true},
		{"limits wrong shape", domain.ConfigKeyRateLimits, `[1, 2]`, true},
		{"cost ok", domain.ConfigKeyDailyCostLimit, `{"limit_usd": 25.5}`, false},
		{"cost negative", domain.ConfigKeyDailyCostLimit, `{"limit_usd": -1}`, true},
		{"unknown key", "homepage_banner", `{"anything": [1, 2, 3]}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfigValue(tt.key, json.RawMessage(tt.value))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateConfigValue() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidInput) {
				t.Errorf("error %v does not wrap ErrInvalidInput", err)
			}
		})
	}
}

func TestAdminConfigService_Put(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := repository.NewConfigRepository(db)
	svc := NewAdminConfigService(repo)

	for _, key := range []string{"", "Bad-Key", "1starts_with_digit"} {
		if _, err := svc.Put(ctx, key, json.RawMessage(`{}`), "admin"); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Put(%q): err = %v, want ErrInvalidInput", key, err)
		}
	}
	if _, err := svc.Put(ctx, "banner", json.RawMessage(`{not json`), "admin"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("invalid JSON: err = %v", err)
	}

	if _, err := svc.Put(ctx, domain.ConfigKeyDailyCostLimit, json.RawMessage(`{"limit_usd": 3}`), "admin"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	guard := newTestCostGuard(&memLedger{}, repo)
	if got := guard.Ceiling(ctx); got != 3 {
		t.Errorf("Ceiling() = %v, want the stored admin value 3", got)
	}

	if _, err := svc.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing): err = %v, want ErrNotFound", err)
	}
	list, err := svc.List(ctx)
	if err != nil || len(list) != 1 {
		t.Errorf("List() = %d entries, %v", len(list), err)
	}
}
