package feed

import (
	"encoding/xml"
	"fmt"
	"time"
)

type rssDoc struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	AtomNS  string     `xml:"xmlns:atom,attr"`
	DCNS    string     `xml:"xmlns:dc,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string      `xml:"title"`
	Link          string      `xml:"link"`
	Description   string      `xml:"description"`
	Language      string      `xml:"language,omitempty"`
	LastBuildDate string      `xml:"lastBuildDate"`
	Generator     string      `xml:"generator"`
	AtomLink      rssAtomLink `xml:"atom:link"`
	Items         []rssItem   `xml:"item"`
}

type rssAtomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type rssItem struct {
	Title       string        `xml:"title"`
	Link        string        `xml:"link"`
	Description string        `xml:"description"`
	Creator     string        `xml:"dc:creator,omitempty"`
	GUID        rssGUID       `xml:"guid"`
	PubDate     string        `xml:"pubDate"`
	Enclosure   *rssEnclosure `xml:"enclosure,omitempty"`
}

type rssGUID struct {
	IsPermaLink bool   `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

type rssEnclosure struct {
	URL    string `xml:"url,attr"`
	Length string `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}

// RSS renders ch as an RSS 2.0 document.
func RSS(ch Channel) ([]byte, error) {
	doc := rssDoc{
		Version: "2.0",
		AtomNS:  "http://www.w3.org/2005/Atom",
		DCNS:    "http://purl.org/dc/elements/1.1/",
		Channel: rssChannel{
			Title:         ch.Title,
			Link:          ch.SiteURL,
			Description:   ch.Description,
			Language:      ch.Language,
			LastBuildDate: ch.latest().Format(time.RFC1123Z),
			Generator:     "VibeLog",
			AtomLink:      rssAtomLink{Href: ch.FeedURL, Rel: "self", Type: "application/rss+xml"},
			Items:         make([]rssItem, 0, len(ch.Items)),
		},
	}
	for _, it := range ch.Items {
		item := rssItem{
			Title:       it.Title,
			Link:        it.URL,
			Description: it.Summary,
			Creator:     it.Author,
			GUID:        rssGUID{IsPermaLink: false, Value: it.ID},
			PubDate:     it.Published.UTC().Format(time.RFC1123Z),
		}
		if it.NarrationURL != "" {
			item.Enclosure = &rssEnclosure{URL: it.NarrationURL, Length: "0", Type: audioType(it.NarrationURL)}
		}
		doc.Channel.Items = append(doc.Channel.Items, item)
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to render rss: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}
