package feed

import (
	"encoding/json"
	"fmt"
	"time"
)

const jsonFeedVersion = "https://jsonfeed.org/version/1.1"

type jsonFeed struct {
	Version     string     `json:"version"`
	Title       string     `json:"title"`
	HomePageURL string     `json:"home_page_url,omitempty"`
	FeedURL     string     `json:"feed_url,omitempty"`
	Description string     `json:"description,omitempty"`
	Language    string     `json:"language,omitempty"`
	Items       []jsonItem `json:"items"`
}

type jsonAuthor struct {
	Name string `json:"name"`
}

type jsonAttachment struct {
	URL      string `json:"url"`
	MIMEType string `json:"mime_type"`
}

type jsonItem struct {
	ID            string           `json:"id"`
	URL           string           `json:"url,omitempty"`
	Title         string           `json:"title,omitempty"`
	Summary       string           `json:"summary,omitempty"`
	ContentText   string           `json:"content_text"`
	Image         string           `json:"image,omitempty"`
	DatePublished string           `json:"date_published,omitempty"`
	DateModified  string           `json:"date_modified,omitempty"`
	Authors       []jsonAuthor     `json:"authors,omitempty"`
	Language      string           `json:"language,omitempty"`
	Attachments   []jsonAttachment `json:"attachments,omitempty"`
}

// JSON renders ch as a JSON Feed 1.1 document.
func JSON(ch Channel) ([]byte, error) {
	doc := jsonFeed{
		Version:     jsonFeedVersion,
		Title:       ch.Title,
		HomePageURL: ch.SiteURL,
		FeedURL:     ch.FeedURL,
		Description: ch.Description,
		Language:    ch.Language,
		Items:       make([]jsonItem, 0, len(ch.Items)),
	}
	for _, it := range ch.Items {
		item := jsonItem{
			ID:            it.ID,
			URL:           it.URL,
			Title:         it.Title,
			Summary:       it.Summary,
			ContentText:   it.Content,
			Image:         it.ImageURL,
			DatePublished: it.Published.UTC().Format(time.RFC3339),
			Language:      it.Language,
		}
		if !it.Updated.IsZero() {
			item.DateModified = it.Updated.UTC().Format(time.RFC3339)
		}
		if it.Author != "" {
			item.Authors = []jsonAuthor{{Name: it.Author}}
		}
		if it.NarrationURL != "" {
			item.Attachments = []jsonAttachment{{URL: it.NarrationURL, MIMEType: audioType(it.NarrationURL)}}
		}
		doc.Items = append(doc.Items, item)
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to render json feed: %w", err)
	}
	return out, nil
}
