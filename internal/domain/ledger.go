package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Paid services recorded in the cost ledger.
const (
	CostServiceTranscription = "openai.transcription"
	CostServiceChat          = "openai.chat"
	CostServiceImage         = "openai.image"
	CostServiceSpeech        = "openai.speech"
	CostServiceEmbedding     = "jina.embedding"
	CostServiceModalTTS      = "modal.tts"
)

// CostEntry is an append-only ledger row for one paid call.
type CostEntry struct {
	ID        string         `gorm:"type:text;primaryKey" json:"id"`
	Service   string         `gorm:"type:text;not null;index:idx_cost_service" json:"service"`
	CostUSD   float64        `gorm:"not null" json:"cost_usd"`
	Metadata  datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt time.Time      `gorm:"index:idx_cost_created" json:"created_at"`
}

func (CostEntry) TableName() string {
	return "cost_entries"
}

// RateLimitBucket counts requests for one key in one fixed window.
type RateLimitBucket struct {
	Key         string    `gorm:"type:text;primaryKey" json:"key"`
	WindowStart time.Time `gorm:"primaryKey" json:"window_start"`
	Count       int       `gorm:"not null;default:0" json:"count"`
}

func (RateLimitBucket) TableName() string {
	return "rate_limit_buckets"
}
