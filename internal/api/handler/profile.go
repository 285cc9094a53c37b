package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vibelog/backend/internal/api/middleware"
	"github.com/vibelog/backend/internal/service"
)

const maxVoiceSampleBytes = 10 << 20

type ProfileHandler struct {
	profiles *service.ProfileService
}

func NewProfileHandler(profiles *service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// Me handles GET /api/v1/me.
func (h *ProfileHandler) Me(c *gin.Context) {
	p, err := h.profiles.Me(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"profile": p})
}

// Update handles PATCH /api/v1/me.
func (h *ProfileHandler) Update(c *gin.Context) {
	var req service.ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}
	p, err := h.profiles.Update(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"profile": p})
}

// VoiceSample handles POST /api/v1/me/voice-sample.
func (h *ProfileHandler) VoiceSample(c *gin.Context) {
	limitBody(c, maxVoiceSampleBytes+multipartSlackBytes)
	file, err := readFormFile(c, "file", maxVoiceSampleBytes)
	if err != nil {
		respondError(c, err)
		return
	}
	p, err := h.profiles.SaveVoiceSample(c.Request.Context(), middleware.UserID(c), file)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"profile": p, "has_voice_sample": true})
}
