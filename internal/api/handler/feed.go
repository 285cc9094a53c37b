package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vibelog/backend/internal/feed"
	"github.com/vibelog/backend/internal/service"
)

type feedFormat struct {
	contentType string
	render      func(feed.Channel) ([]byte, error)
}

var (
	rssFormat  = feedFormat{"application/rss+xml; charset=utf-8", feed.RSS}
	atomFormat = feedFormat{"application/atom+xml; charset=utf-8", feed.Atom}
	jsonFormat = feedFormat{"application/feed+json; charset=utf-8", feed.JSON}
)

// FeedHandler renders public syndication feeds.
type FeedHandler struct {
	feeds *service.FeedService
}

func NewFeedHandler(feeds *service.FeedService) *FeedHandler {
	return &FeedHandler{feeds: feeds}
}

func (h *FeedHandler) RSS(c *gin.Context)  { h.serve(c, rssFormat) }
func (h *FeedHandler) Atom(c *gin.Context) { h.serve(c, atomFormat) }
func (h *FeedHandler) JSON(c *gin.Context) { h.serve(c, jsonFormat) }

// serve renders the channel. Query: author, lang.
func (h *FeedHandler) serve(c *gin.Context, f feedFormat) {
	ch, err := h.feeds.Channel(c.Request.Context(), c.Query("author"), c.Query("lang"), c.Request.URL.RequestURI())
	if err != nil {
		respondError(c, err)
		return
	}
	body, err := f.render(ch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Cache-Control", "public, max-age=300")
	c.Data(http.StatusOK, f.contentType, body)
}
