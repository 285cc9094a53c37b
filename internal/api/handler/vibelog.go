package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vibelog/backend/internal/api/middleware"
	"github.com/vibelog/backend/internal/service"
)

const defaultRelatedLimit = 5

// VibelogHandler serves reads and owner edits of vibelogs.
type VibelogHandler struct {
	vibelogs  *service.VibelogService
	narration *service.NarrationService
}

func NewVibelogHandler(vibelogs *service.VibelogService, narration *service.NarrationService) *VibelogHandler {
	return &VibelogHandler{vibelogs: vibelogs, narration: narration}
}

// List handles GET /api/v1/vibelogs.
// Query: author (id or username), limit, offset.
func (h *VibelogHandler) List(c *gin.Context) {
	page, err := h.vibelogs.List(c.Request.Context(), c.Query("author"), queryInt(c, "limit", 0), queryInt(c, "offset", 0))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{
		"vibelogs": page.Items,
		"total":    page.Total,
		"limit":    page.Limit,
		"offset":   page.Offset,
	})
}

// Get handles GET /api/v1/vibelogs/:id. The optional lang query selects a
// stored translation.
func (h *VibelogHandler) Get(c *gin.Context) {
	v, err := h.vibelogs.Get(c.Request.Context(), c.Param("id"), middleware.UserID(c), c.Query("lang"))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"vibelog": v})
}

func (h *VibelogHandler) Translations(c *gin.Context) {
	ts, err := h.vibelogs.Translations(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"translations": ts})
}

// Update handles PATCH /api/v1/vibelogs/:id.
func (h *VibelogHandler) Update(c *gin.Context) {
	var req service.VibelogUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}
	v, err := h.vibelogs.Update(c.Request.Context(), c.Param("id"), middleware.UserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"vibelog": v})
}

// RegenerateRequest is the optional body of the regenerate endpoint.
type RegenerateRequest struct {
	Tone        string `json:"tone"`
	ContentType string `json:"content_type"`
}

// Regenerate handles POST /api/v1/vibelogs/:id/regenerate.
func (h *VibelogHandler) Regenerate(c *gin.Context) {
	var req RegenerateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request: "+err.Error())
			return
		}
	}
	v, err := h.vibelogs.Regenerate(c.Request.Context(), c.Param("id"), middleware.UserID(c), req.Tone, req.ContentType)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"vibelog": v})
}

// Cover handles POST /api/v1/vibelogs/:id/cover. A multipart "cover" file
// replaces the image; without one a new cover is generated.
func (h *VibelogHandler) Cover(c *gin.Context) {
	limitBody(c, maxCoverBytes+multipartSlackBytes)

	var upload *service.Upload
	if c.ContentType() == "multipart/form-data" {
		var err error
		if upload, err = readFormFile(c, "cover", maxCoverBytes); err != nil {
			respondError(c, err)
			return
		}
	}
	v, err := h.vibelogs.ReplaceCover(c.Request.Context(), c.Param("id"), middleware.UserID(c), upload)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"vibelog": v})
}

// Narration handles POST /api/v1/vibelogs/:id/narration.
func (h *VibelogHandler) Narration(c *gin.Context) {
	res, err := h.narration.Narrate(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"narration_url": res.URL, "provider": res.Provider})
}

// Related handles GET /api/v1/vibelogs/:id/related.
func (h *VibelogHandler) Related(c *gin.Context) {
	items, err := h.vibelogs.Related(c.Request.Context(), c.Param("id"), middleware.UserID(c), queryInt(c, "limit", defaultRelatedLimit))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"vibelogs": items})
}
