package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/vibelog/backend/internal/logger"
	"github.com/vibelog/backend/internal/service"
)

func fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error":   code,
		"message": message,
	})
}

// respondError maps service errors to statuses. Unclassified errors are
// logged and reported as a generic 500.
func respondError(c *gin.Context, err error) {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		fail(c, http.StatusBadRequest, "invalid_input", userMessage(err))
	case errors.Is(err, service.ErrUnsupportedMediaType):
		fail(c, http.StatusBadRequest, "unsupported_media_type", userMessage(err))
	case errors.Is(err, service.ErrFileTooLarge), errors.As(err, &maxBytes):
		fail(c, http.StatusBadRequest, "file_too_large", userMessage(err))
	case errors.Is(err, service.ErrNotFound):
		fail(c, http.StatusNotFound, "not_found", "Not found.")
	case errors.Is(err, service.ErrForbidden):
		fail(c, http.StatusForbidden, "forbidden", "You cannot change this.")
	case errors.Is(err, service.ErrConflict):
		fail(c, http.StatusConflict, "conflict", userMessage(err))
	case errors.Is(err, service.ErrCostLimitExceeded):
		fail(c, http.StatusServiceUnavailable, "service_unavailable", "VibeLog has reached its daily AI budget. Please try again tomorrow.")
	case errors.Is(err, service.ErrUnavailable):
		fail(c, http.StatusServiceUnavailable, "service_unavailable", userMessage(err))
	case errors.Is(err, service.ErrStorage):
		logger.CtxError(c.Request.Context(), "Storage failure: %v", err)
		fail(c, http.StatusInternalServerError, "storage_error", "Failed to store your file. Please try again.")
	case errors.Is(err, service.ErrPersist):
		logger.CtxError(c.Request.Context(), "Persist failure: %v", err)
		fail(c, http.StatusInternalServerError, "save_failed", "Failed to save your vibelog. Please try again.")
	default:
		logger.CtxError(c.Request.Context(), "Request failed: %v", err)
		fail(c, http.StatusInternalServerError, "internal_error", "Something went wrong. Please try again.")
	}
}

// userMessage is the wrapped service error as a sentence.
func userMessage(err error) string {
	msg := err.Error()
	if msg == "" {
		return "Invalid request."
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}

func badRequest(c *gin.Context, message string) {
	fail(c, http.StatusBadRequest, "invalid_input", message)
}

func ok(c *gin.Context, status int, body gin.H) {
	body["success"] = true
	c.JSON(status, body)
}

// readFormFile loads an optional multipart file. It returns nil when the
// field is absent and ErrFileTooLarge before reading an oversized file.
func readFormFile(c *gin.Context, field string, maxBytes int64) (*service.Upload, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, service.ErrFileTooLarge
		}
		return nil, fmt.Errorf("%w: %v", service.ErrInvalidInput, err)
	}
	if fh.Size > maxBytes {
		return nil, service.ErrFileTooLarge
	}
	return readFileHeader(fh, maxBytes)
}

func readFileHeader(fh *multipart.FileHeader, maxBytes int64) (*service.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, service.ErrFileTooLarge
	}
	return &service.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// limitBody caps the request body so multipart parsing cannot exhaust memory.
func limitBody(c *gin.Context, maxBytes int64) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
}

func queryInt(c *gin.Context, name string, def int) int {
	if v, err := strconv.Atoi(c.Query(name)); err == nil {
		return v
	}
	return def
}
