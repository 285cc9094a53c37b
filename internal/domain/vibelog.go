package domain

import "time"

// MediaType is the kind of media a vibelog was produced from. Text uploads have none.
type MediaType string

const (
	MediaTypeAudio MediaType = "audio"
	MediaTypeVideo MediaType = "video"
)

// Vibelog is a published content record produced from a voice, video or text upload.
type Vibelog struct {
	ID               string     `gorm:"type:text;primaryKey" json:"id"`
	UserID           string     `gorm:"type:text;not null;index:idx_vibelogs_user" json:"user_id"`
	Title            string     `gorm:"type:text;not null" json:"title"`
	Teaser           string     `gorm:"type:text" json:"teaser"`
	Content          string     `gorm:"type:text" json:"content"`
	Transcription    *string    `gorm:"type:text" json:"transcription"`
	MediaType        *MediaType `gorm:"type:text" json:"media_type"`
	AudioURL         *string    `gorm:"type:text" json:"audio_url"`
	VideoURL         *string    `gorm:"type:text" json:"video_url"`
	CoverImageURL    *string    `gorm:"type:text" json:"cover_image_url"`
	CoverWidth       int        `json:"cover_width,omitempty"`
	CoverHeight      int        `json:"cover_height,omitempty"`
	NarrationURL     *string    `gorm:"type:text" json:"narration_url"`
	OriginalLanguage string     `gorm:"type:text" json:"original_language"`
	Tone             string     `gorm:"type:text" json:"tone"`
	ContentType      string     `gorm:"type:text" json:"content_type"`
	IsPublished      bool       `gorm:"not null;default:false;index:idx_vibelogs_published" json:"is_published"`
	IsPublic         bool       `gorm:"not null;default:true" json:"is_public"`
	ReactionCount    int        `gorm:"not null;default:0" json:"reaction_count"`
	CommentCount     int        `gorm:"not null;default:0" json:"comment_count"`
	PublishedAt      *time.Time `gorm:"index:idx_vibelogs_published" json:"published_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (Vibelog) TableName() string {
	return "vibelogs"
}

// Visible reports whether the record may be shown to viewerID.
func (v *Vibelog) Visible(viewerID string) bool {
	if viewerID != "" && v.UserID == viewerID {
		return true
	}
	return v.IsPublished && v.IsPublic
}

// VibelogTranslation is a machine translation of a vibelog's text into one language.
type VibelogTranslation struct {
	ID        string    `gorm:"type:text;primaryKey" json:"id"`
	VibelogID string    `gorm:"type:text;not null;uniqueIndex:idx_translations_vibelog_lang" json:"vibelog_id"`
	Language  string    `gorm:"type:text;not null;uniqueIndex:idx_translations_vibelog_lang" json:"language"`
	Title     string    `gorm:"type:text" json:"title"`
	Teaser    string    `gorm:"type:text" json:"teaser"`
	Content   string    `gorm:"type:text" json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (VibelogTranslation) TableName() string {
	return "vibelog_translations"
}

// Comment is a reader comment on a vibelog. Comments are reactable.
type Comment struct {
	ID            string    `gorm:"type:text;primaryKey" json:"id"`
	VibelogID     string    `gorm:"type:text;not null;index:idx_comments_vibelog" json:"vibelog_id"`
	UserID        string    `gorm:"type:text;not null" json:"user_id"`
	Content       string    `gorm:"type:text;not null" json:"content"`
	ReactionCount int       `gorm:"not null;default:0" json:"reaction_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (Comment) TableName() string {
	return "comments"
}
