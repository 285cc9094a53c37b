// Package feed renders vibelogs as RSS 2.0, Atom 1.0 and JSON Feed 1.1.
package feed

import (
	"path"
	"strings"
	"time"
)

// Channel is the format-independent feed model.
type Channel struct {
	Title       string
	Description string
	SiteURL     string
	FeedURL     string
	Language    string
	Updated     time.Time
	Items       []Item
}

// Item is one vibelog in a feed. Text fields hold raw user text; each
// renderer escapes them for its own syntax.
type Item struct {
	ID           string
	URL          string
	Title        string
	Summary      string
	Content      string
	Author       string
	Language     string
	ImageURL     string
	NarrationURL string
	Published    time.Time
	Updated      time.Time
}

// latest returns the newest update time among the items, or fallback.
func (c Channel) latest() time.Time {
	t := c.Updated
	for _, it := range c.Items {
		if it.Updated.After(t) {
			t = it.Updated
		}
	}
	if t.IsZero() {
		t = time.Unix(0, 0)
	}
	return t.UTC()
}

func audioType(url string) string {
	switch strings.ToLower(path.Ext(url)) {
	case ".wav":
		return "audio/wav"
	case ".ogg":
		return "audio/ogg"
	case ".m4a":
		return "audio/mp4"
	default:
		return "audio/mpeg"
	}
}
