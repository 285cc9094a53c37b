package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/vibelog/backend/internal/config"
)

const (
	jinaEndpoint = "https://api.jina.ai/v1/embeddings"
	// Longer inputs are cut before sending; both providers reject oversized bodies.
	maxEmbedRunes = 8000
)

// Embedder turns text into vectors for the vibelog index.
type Embedder interface {
	// EmbedPassage embeds stored text. It also returns the tokens billed.
	EmbedPassage(ctx context.Context, text string) ([]float32, int, error)
	// EmbedQuery embeds a search query.
	EmbedQuery(ctx context.Context, query string) ([]float32, int, error)
}

// EmbeddingService calls Jina or an OpenAI-compatible /embeddings endpoint.
type EmbeddingService struct {
	client     *resty.Client
	jina       bool
	endpoint   string
	model      string
	dimensions int
}

func NewEmbeddingService(cfg *config.EmbeddingConfig) *EmbeddingService {
	endpoint := jinaEndpoint
	if cfg.Provider == "openai-compatible" {
		endpoint = strings.TrimSuffix(cfg.BaseURL, "/") + "/embeddings"
	}

	// No retries: query embeddings run inside chat and related-post requests.
	client := resty.New().
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(30 * time.Second)

	return &EmbeddingService{
		client:     client,
		jina:       cfg.Provider == "jina",
		endpoint:   endpoint,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

type embeddingRequest struct {
	Model         string   `json:"model"`
	Input         []string `json:"input"`
	Dimensions    int      `json:"dimensions,omitempty"`
	Task          string   `json:"task,omitempty"`           // jina only
	EmbeddingType string   `json:"embedding_type,omitempty"` // jina only
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`

	// Jina reports failures in detail, OpenAI-compatible servers in error.message.
	Detail string `json:"detail,omitempty"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (r *embeddingResponse) failure(status int) error {
	switch {
	case r.Detail != "":
		return fmt.Errorf("embedding API %d: %s", status, r.Detail)
	case r.Error != nil && r.Error.Message != "":
		return fmt.Errorf("embedding API %d: %s", status, r.Error.Message)
	default:
		return fmt.Errorf("embedding API returned status %d", status)
	}
}

func (s *EmbeddingService) EmbedPassage(ctx context.Context, text string) ([]float32, int, error) {
	return s.embed(ctx, text, "retrieval.passage")
}

func (s *EmbeddingService) EmbedQuery(ctx context.Context, query string) ([]float32, int, error) {
	return s.embed(ctx, query, "retrieval.query")
}

func (s *EmbeddingService) embed(ctx context.Context, text, task string) ([]float32, int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, 0, fmt.Errorf("%w: nothing to embed", ErrInvalidInput)
	}
	if r := []rune(text); len(r) > maxEmbedRunes {
		text = string(r[:maxEmbedRunes])
	}

	body := embeddingRequest{Model: s.model, Input: []string{text}, Dimensions: s.dimensions}
	if s.jina {
		body.Task = task
		body.EmbeddingType = "float"
	}

	var out embeddingResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		SetError(&out).
		Post(s.endpoint)
	if err != nil {
		return nil, 0, fmt.Errorf("embedding request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, 0, out.failure(resp.StatusCode())
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, 0, fmt.Errorf("embedding API returned no vector")
	}
	return out.Data[0].Embedding, out.Usage.TotalTokens, nil
}
