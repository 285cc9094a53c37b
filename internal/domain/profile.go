package domain

import "time"

// Profile is the application-side record for an authenticated user.
type Profile struct {
	ID             string    `gorm:"type:text;primaryKey" json:"id"`
	Username       *string   `gorm:"type:text;uniqueIndex:idx_profiles_username" json:"username"`
	DisplayName    string    `gorm:"type:text" json:"display_name"`
	IsAdmin        bool      `gorm:"not null;default:false" json:"is_admin"`
	VoiceSampleKey string    `gorm:"type:text" json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (Profile) TableName() string {
	return "profiles"
}

// UserMemory is a fact the Vibe Brain extracted from a user's chat messages.
type UserMemory struct {
	ID        string    `gorm:"type:text;primaryKey" json:"id"`
	UserID    string    `gorm:"type:text;not null;uniqueIndex:idx_user_memories_fact" json:"user_id"`
	Fact      string    `gorm:"type:text;not null;uniqueIndex:idx_user_memories_fact" json:"fact"`
	CreatedAt time.Time `json:"created_at"`
}

func (UserMemory) TableName() string {
	return "user_memories"
}
