package domain

import "time"

// ReactableType names an entity kind that can receive reactions.
type ReactableType string

const (
	ReactableVibelog ReactableType = "vibelog"
	ReactableComment ReactableType = "comment"
)

// Reaction is one user's emoji on one reactable. The four-column tuple is unique;
// ReactableType/ReactableID is a polymorphic reference, not a foreign key.
type Reaction struct {
	ID            string        `gorm:"type:text;primaryKey" json:"id"`
	ReactableType ReactableType `gorm:"type:text;not null;uniqueIndex:idx_reactions_unique;index:idx_reactions_target" json:"reactable_type"`
	ReactableID   string        `gorm:"type:text;not null;uniqueIndex:idx_reactions_unique;index:idx_reactions_target" json:"reactable_id"`
	UserID        string        `gorm:"type:text;not null;uniqueIndex:idx_reactions_unique" json:"user_id"`
	Emoji         string        `gorm:"type:text;not null;uniqueIndex:idx_reactions_unique" json:"emoji"`
	CreatedAt     time.Time     `json:"created_at"`
}

func (Reaction) TableName() string {
	return "reactions"
}

// ReactionCount is one row of the per-emoji aggregation.
type ReactionCount struct {
	Emoji       string `json:"emoji"`
	Count       int64  `json:"count"`
	UserReacted bool   `json:"user_reacted"`
}

// ReactionSummary is the read model returned for a reactable.
type ReactionSummary struct {
	ReactableType ReactableType   `json:"reactable_type"`
	ReactableID   string          `json:"reactable_id"`
	Total         int64           `json:"total"`
	Counts        []ReactionCount `json:"counts"`
}
