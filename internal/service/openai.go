package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/vibelog/backend/internal/config"
)

// Transcript is the result of a speech-to-text call.
type Transcript struct {
	Text            string  `json:"text"`
	Language        string  `json:"language"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// Transcriber turns recorded speech into text.
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio io.Reader) (*Transcript, error)
}

type ChatMessage struct {
	Role    string
	Content string
}

type ChatRequest struct {
	Model       string
	System      string
	Messages    []ChatMessage
	Temperature float32
	MaxTokens   int
}

type ChatResult struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// ChatCompleter runs one chat completion.
type ChatCompleter interface {
	Complete(ctx context.Context, req ChatRequest) (*ChatResult, error)
}

// ImageGenerator returns a (usually short-lived) URL of a generated image.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// SpeechSynthesizer renders text as audio and returns bytes and a file extension.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, string, error)
}

// OpenAIClient implements the AI collaborators on the OpenAI API.
type OpenAIClient struct {
	client             *openai.Client
	transcriptionModel string
	chatModel          string
	imageModel         string
	imageSize          string
	speechModel        string
	speechVoice        string
}

// NewOpenAIClient creates a client with a fixed per-call timeout.
func NewOpenAIClient(cfg *config.OpenAIConfig) *OpenAIClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAIClient{
		client:             openai.NewClientWithConfig(clientCfg),
		transcriptionModel: cfg.TranscriptionModel,
		chatModel:          cfg.ChatModel,
		imageModel:         cfg.ImageModel,
		imageSize:          cfg.ImageSize,
		speechModel:        cfg.SpeechModel,
		speechVoice:        cfg.SpeechVoice,
	}
}

// ChatModel returns the default chat model name.
func (c *OpenAIClient) ChatModel() string {
	return c.chatModel
}

func (c *OpenAIClient) Transcribe(ctx context.Context, filename string, audio io.Reader) (*Transcript, error) {
	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.transcriptionModel,
		FilePath: filename,
		Reader:   audio,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("transcription request failed: %w", err)
	}
	return &Transcript{
		Text:            strings.TrimSpace(resp.Text),
		Language:        LanguageCode(resp.Language),
		DurationSeconds: resp.Duration,
	}, nil
}

func (c *OpenAIClient) Complete(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	model := req.Model
	if model == "" {
		model = c.chatModel
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	return &ChatResult{
		Text:             resp.Choices[0].Message.Content,
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

func (c *OpenAIClient) GenerateImage(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          c.imageModel,
		N:              1,
		Size:           c.imageSize,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return "", fmt.Errorf("image generation failed: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", fmt.Errorf("image generation returned no URL")
	}
	return resp.Data[0].URL, nil
}

func (c *OpenAIClient) Synthesize(ctx context.Context, text string) ([]byte, string, error) {
	resp, err := c.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(c.speechModel),
		Input:          text,
		Voice:          openai.SpeechVoice(c.speechVoice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, "", fmt.Errorf("speech request failed: %w", err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read speech audio: %w", err)
	}
	return data, ".mp3", nil
}

// whisperLanguages maps the language names returned by verbose_json to ISO 639-1.
var whisperLanguages = map[string]string{
	"english":    "en",
	"spanish":    "es",
	"french":     "fr",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
	"polish":     "pl",
	"turkish":    "tr",
	"russian":    "ru",
	"dutch":      "nl",
	"czech":      "cs",
	"arabic":     "ar",
	"chinese":    "zh",
	"japanese":   "ja",
	"hungarian":  "hu",
	"korean":     "ko",
	"hindi":      "hi",
	"vietnamese": "vi",
	"ukrainian":  "uk",
	"swedish":    "sv",
	"indonesian": "id",
	"greek":      "el",
}

// LanguageCode normalizes a language name or code to a lowercase ISO code.
// Unknown names are returned lowercased.
func LanguageCode(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if code, ok := whisperLanguages[lang]; ok {
		return code
	}
	return lang
}
