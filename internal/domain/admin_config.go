package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Well-known admin configuration keys.
const (
	ConfigKeyVibeBrain      = "vibe_brain"
	ConfigKeyRateLimits     = "rate_limits"
	ConfigKeyDailyCostLimit = "daily_cost_limit"
)

// AdminConfig is a key/value row whose value is a free-form JSON document.
type AdminConfig struct {
	Key       string         `gorm:"type:text;primaryKey" json:"key"`
	Value     datatypes.JSON `gorm:"not null" json:"value"`
	UpdatedBy string         `gorm:"type:text" json:"updated_by,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (AdminConfig) TableName() string {
	return "admin_configs"
}

// VibeBrainConfig drives the chat assistant.
type VibeBrainConfig struct {
	SystemPrompt   string            `json:"system_prompt"`
	Model          string            `json:"model"`
	Temperature    float32           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens"`
	RAG            RAGConfig         `json:"rag"`
	TonePresets    map[string]string `json:"tone_presets"`
	MemoryPatterns []string          `json:"memory_patterns"`
}

type RAGConfig struct {
	Enabled  bool    `json:"enabled"`
	TopK     int     `json:"top_k"`
	MinScore float32 `json:"min_score"`
}

// DailyCostLimit is the value document for ConfigKeyDailyCostLimit.
type DailyCostLimit struct {
	LimitUSD float64 `json:"limit_usd"`
}
