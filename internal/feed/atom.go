package feed

import (
	"encoding/xml"
	"fmt"
	"time"
)

type atomFeed struct {
	XMLName  xml.Name    `xml:"http://www.w3.org/2005/Atom feed"`
	Title    string      `xml:"title"`
	Subtitle string      `xml:"subtitle,omitempty"`
	ID       string      `xml:"id"`
	Updated  string      `xml:"updated"`
	Links    []atomLink  `xml:"link"`
	Entries  []atomEntry `xml:"entry"`
}

type atomLink struct {
	Href   string `xml:"href,attr"`
	Rel    string `xml:"rel,attr,omitempty"`
	Type   string `xml:"type,attr,omitempty"`
	Length string `xml:"length,attr,omitempty"`
}

type atomText struct {
	Type string `xml:"type,attr"`
	Body string `xml:",chardata"`
}

type atomPerson struct {
	Name string `xml:"name"`
}

type atomEntry struct {
	Title     string      `xml:"title"`
	ID        string      `xml:"id"`
	Updated   string      `xml:"updated"`
	Published string      `xml:"published"`
	Links     []atomLink  `xml:"link"`
	Author    *atomPerson `xml:"author,omitempty"`
	Summary   *atomText   `xml:"summary,omitempty"`
	Content   *atomText   `xml:"content,omitempty"`
}

// Atom renders ch as an Atom 1.0 document.
func Atom(ch Channel) ([]byte, error) {
	doc := atomFeed{
		Title:    ch.Title,
		Subtitle: ch.Description,
		ID:       ch.FeedURL,
		Updated:  ch.latest().Format(time.RFC3339),
		Links: []atomLink{
			{Href: ch.FeedURL, Rel: "self", Type: "application/atom+xml"},
			{Href: ch.SiteURL, Rel: "alternate", Type: "text/html"},
		},
		Entries: make([]atomEntry, 0, len(ch.Items)),
	}
	for _, it := range ch.Items {
		updated := it.Updated
		if updated.IsZero() {
			updated = it.Published
		}
		entry := atomEntry{
			Title:     it.Title,
			ID:        "urn:uuid:" + it.ID,
			Updated:   updated.UTC().Format(time.RFC3339),
			Published: it.Published.UTC().Format(time.RFC3339),
			Links:     []atomLink{{Href: it.URL, Rel: "alternate", Type: "text/html"}},
		}
		if it.NarrationURL != "" {
			entry.Links = append(entry.Links, atomLink{Href: it.NarrationURL, Rel: "enclosure", Type: audioType(it.NarrationURL)})
		}
		if it.Author != "" {
			entry.Author = &atomPerson{Name: it.Author}
		}
		if it.Summary != "" {
			entry.Summary = &atomText{Type: "text", Body: it.Summary}
		}
		if it.Content != "" {
			entry.Content = &atomText{Type: "text", Body: it.Content}
		}
		doc.Entries = append(doc.Entries, entry)
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to render atom: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}
