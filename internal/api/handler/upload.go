package handler

import (
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/vibelog/backend/internal/api/middleware"
	"github.com/vibelog/backend/internal/service"
)

const (
	maxCoverBytes       = 10 << 20
	multipartSlackBytes = 1 << 20
	maxGenerateRunes    = 50000
)

// UploadHandler serves the upload, transcribe and generate endpoints.
type UploadHandler struct {
	pipeline *service.Pipeline
}

func NewUploadHandler(pipeline *service.Pipeline) *UploadHandler {
	return &UploadHandler{pipeline: pipeline}
}

// media validates the file or storage_path of a multipart request.
func (h *UploadHandler) media(c *gin.Context) (*service.Media, error) {
	file, err := readFormFile(c, "file", h.pipeline.MaxUploadBytes())
	if err != nil {
		return nil, err
	}
	if file != nil {
		return h.pipeline.PrepareUpload(file)
	}
	if path := strings.TrimSpace(c.PostForm("storage_path")); path != "" {
		userID := middleware.UserID(c)
		if userID == "" {
			return nil, service.ErrInvalidInput
		}
		return h.pipeline.PrepareStored(c.Request.Context(), userID, path, c.PostForm("mime_type"))
	}
	return h.pipeline.PrepareUpload(nil)
}

// Upload handles POST /api/v1/uploads.
func (h *UploadHandler) Upload(c *gin.Context) {
	limitBody(c, h.pipeline.MaxUploadBytes()+maxCoverBytes+multipartSlackBytes)

	m, err := h.media(c)
	if err != nil {
		respondError(c, err)
		return
	}
	cover, err := readFormFile(c, "cover", maxCoverBytes)
	if err != nil {
		respondError(c, err)
		return
	}

	draft := false
	if v := c.PostForm("publish"); v != "" {
		publish, err := strconv.ParseBool(v)
		if err != nil {
			badRequest(c, "publish must be true or false")
			return
		}
		draft = !publish
	}

	v, err := h.pipeline.Publish(c.Request.Context(), service.PublishRequest{
		UserID:      middleware.UserID(c),
		Media:       m,
		Title:       c.PostForm("title"),
		Tone:        c.PostForm("tone"),
		ContentType: c.PostForm("content_type"),
		Cover:       cover,
		Draft:       draft,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusCreated, gin.H{"vibelog": v})
}

// PresignRequest is the body of POST /api/v1/uploads/presign.
type PresignRequest struct {
	Filename string `json:"filename"`
	MIMEType string `json:"mime_type"`
}

// Presign handles POST /api/v1/uploads/presign. The returned storage_path is
// later passed to /uploads or /transcribe instead of a multipart file.
func (h *UploadHandler) Presign(c *gin.Context) {
	var req PresignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Filename) == "" && strings.TrimSpace(req.MIMEType) == "" {
		badRequest(c, "filename or mime_type is required")
		return
	}
	ticket, err := h.pipeline.PresignUpload(c.Request.Context(), middleware.UserID(c), req.Filename, req.MIMEType)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"upload": ticket})
}

// Transcribe handles POST /api/v1/transcribe.
func (h *UploadHandler) Transcribe(c *gin.Context) {
	limitBody(c, h.pipeline.MaxUploadBytes()+multipartSlackBytes)

	m, err := h.media(c)
	if err != nil {
		respondError(c, err)
		return
	}
	t, err := h.pipeline.Transcribe(c.Request.Context(), m)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{
		"transcription": t.Text,
		"language":      t.Language,
		"duration":      t.DurationSeconds,
	})
}

// GenerateRequest is the body of POST /api/v1/generate.
type GenerateRequest struct {
	Transcription string `json:"transcription"`
	Tone          string `json:"tone"`
	ContentType   string `json:"content_type"`
	Title         string `json:"title"`
}

// Generate handles POST /api/v1/generate.
func (h *UploadHandler) Generate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}
	req.Transcription = strings.TrimSpace(req.Transcription)
	if req.Transcription == "" {
		badRequest(c, "transcription is required")
		return
	}
	if utf8.RuneCountInString(req.Transcription) > maxGenerateRunes {
		badRequest(c, "transcription is too long")
		return
	}

	post := h.pipeline.Generate(c.Request.Context(), req.Transcription, req.Tone, req.ContentType, req.Title)
	ok(c, http.StatusOK, gin.H{"post": post})
}
