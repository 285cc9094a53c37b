package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"github.com/vibelog/backend/internal/logger"
	"github.com/vibelog/backend/internal/prompts"
	"github.com/vibelog/backend/internal/storage"
	_ "golang.org/x/image/webp"
)

// CoverResult is a stored cover image.
type CoverResult struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// CoverService stores uploaded covers and generates missing ones.
type CoverService struct {
	images     ImageGenerator
	storage    storage.ObjectStorage
	http       *resty.Client
	costs      *CostGuard
	fetchLimit int64
}

func NewCoverService(images ImageGenerator, store storage.ObjectStorage, costs *CostGuard, fetchLimit int64, fetchTimeout time.Duration) *CoverService {
	if fetchLimit <= 0 {
		fetchLimit = 10 << 20
	}
	if fetchTimeout <= 0 {
		fetchTimeout = 30 * time.Second
	}
	return &CoverService{
		images:     images,
		storage:    store,
		http:       resty.New().SetTimeout(fetchTimeout),
		costs:      costs,
		fetchLimit: fetchLimit,
	}
}

// Store validates an image and writes it to covers/<vibelogID>.<ext>.
func (s *CoverService) Store(ctx context.Context, vibelogID string, data []byte, declaredType string) (*CoverResult, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty cover image", ErrInvalidInput)
	}
	mt := NormalizeMIME(declaredType)
	if !strings.HasPrefix(mt, "image/") {
		mt = NormalizeMIME(mimetype.Detect(data).String())
	}
	if !strings.HasPrefix(mt, "image/") {
		return nil, fmt.Errorf("%w: cover must be an image, got %s", ErrUnsupportedMediaType, mt)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: unreadable cover image: %v", ErrInvalidInput, err)
	}

	key := storage.CoverKey(vibelogID, ExtensionFor(mt, ""))
	if err := s.storage.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), mt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return &CoverResult{URL: s.storage.GetURL(key), Width: cfg.Width, Height: cfg.Height}, nil
}

// Generate creates an illustration, downloads it before its URL expires and stores it.
func (s *CoverService) Generate(ctx context.Context, vibelogID, title, teaser string) (*CoverResult, error) {
	if s.images == nil {
		return nil, fmt.Errorf("%w: image generation is not configured", ErrUnavailable)
	}
	start := time.Now()
	url, err := s.images.GenerateImage(ctx, prompts.CoverPrompt(title, teaser))
	if err != nil {
		return nil, err
	}
	s.costs.RecordImage(ctx)

	data, contentType, err := s.fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	res, err := s.Store(ctx, vibelogID, data, contentType)
	if err != nil {
		return nil, err
	}
	logger.With(logger.Fields{
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
		logger.FieldSize:       len(data),
	}).Info(ctx, "Generated cover %dx%d", res.Width, res.Height)
	return res, nil
}

func (s *CoverService) fetch(ctx context.Context, url string) ([]byte, string, error) {
	resp, err := s.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch generated image: %w", err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() != 200 {
		return nil, "", fmt.Errorf("failed to fetch generated image: HTTP %d", resp.StatusCode())
	}

	data, err := io.ReadAll(io.LimitReader(body, s.fetchLimit+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read generated image: %w", err)
	}
	if int64(len(data)) > s.fetchLimit {
		return nil, "", fmt.Errorf("generated image exceeds %d bytes", s.fetchLimit)
	}
	return data, resp.Header().Get("Content-Type"), nil
}
