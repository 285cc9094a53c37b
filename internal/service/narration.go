package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/vibelog/backend/internal/logger"
	"github.com/vibelog/backend/internal/repository"
	"github.com/vibelog/backend/internal/storage"
)

// Narration providers.
const (
	NarrationOpenAI = "openai"
	NarrationModal  = "modal"
)

// modalLanguages are the languages the voice-cloning model speaks.
var modalLanguages = map[string]bool{
	"en": true, "es": true, "fr": true, "de": true, "it": true, "pt": true,
	"pl": true, "tr": true, "ru": true, "nl": true, "cs": true, "ar": true,
	"zh-cn": true, "ja": true, "hu": true, "ko": true, "hi": true,
}

// ModalLanguage maps a stored language code to the voice-cloning model's code.
// ok is false when the model cannot speak it.
func ModalLanguage(lang string) (string, bool) {
	lang = LanguageCode(lang)
	if lang == "zh" || lang == "zh-hans" {
		lang = "zh-cn"
	}
	return lang, modalLanguages[lang]
}

// ModalTTSClient calls the self-hosted XTTS voice-cloning endpoint.
type ModalTTSClient struct {
	client *resty.Client
	url    string
}

func NewModalTTSClient(url string, timeout time.Duration) *ModalTTSClient {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	client := resty.New()
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(timeout)
	return &ModalTTSClient{client: client, url: url}
}

type modalRequest struct {
	Text       string `json:"text"`
	VoiceAudio string `json:"voiceAudio"`
	Language   string `json:"language"`
}

type modalResponse struct {
	AudioBase64 string  `json:"audioBase64"`
	Duration    float64 `json:"duration"`
	Language    string  `json:"language"`
	TextLength  int     `json:"textLength"`
	Error       string  `json:"error,omitempty"`
}

// Clone speaks text in the voice of voiceSample and returns WAV bytes.
func (c *ModalTTSClient) Clone(ctx context.Context, text string, voiceSample []byte, language string) ([]byte, error) {
	var resp modalResponse
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetBody(modalRequest{
			Text:       text,
			VoiceAudio: base64.StdEncoding.EncodeToString(voiceSample),
			Language:   language,
		}).
		SetResult(&resp).
		SetError(&resp).
		Post(c.url)
	if err != nil {
		return nil, fmt.Errorf("failed to call voice clone endpoint: %w", err)
	}
	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		if resp.Error != "" {
			return nil, fmt.Errorf("voice clone error: HTTP %d: %s", httpResp.StatusCode(), resp.Error)
		}
		return nil, fmt.Errorf("voice clone error: HTTP %d", httpResp.StatusCode())
	}
	if resp.AudioBase64 == "" {
		return nil, fmt.Errorf("voice clone returned no audio")
	}
	audio, err := base64.StdEncoding.DecodeString(resp.AudioBase64)
	if err != nil {
		return nil, fmt.Errorf("voice clone returned invalid audio: %w", err)
	}
	return audio, nil
}

// NarrationResult is a stored narration.
type NarrationResult struct {
	URL      string `json:"url"`
	Provider string `json:"provider"`
}

// NarrationService reads a vibelog aloud and stores the audio.
type NarrationService struct {
	vibelogs *repository.VibelogRepository
	profiles *repository.ProfileRepository
	storage  storage.ObjectStorage
	speech   SpeechSynthesizer
	modal    *ModalTTSClient
	provider string
	maxChars int
	costs    *CostGuard
}

func NewNarrationService(
	vibelogs *repository.VibelogRepository,
	profiles *repository.ProfileRepository,
	store storage.ObjectStorage,
	speech SpeechSynthesizer,
	modal *ModalTTSClient,
	provider string,
	maxChars int,
	costs *CostGuard,
) *NarrationService {
	if maxChars <= 0 {
		maxChars = 4096
	}
	return &NarrationService{
		vibelogs: vibelogs,
		profiles: profiles,
		storage:  store,
		speech:   speech,
		modal:    modal,
		provider: provider,
		maxChars: maxChars,
		costs:    costs,
	}
}

// Narrate produces narration for the owner's vibelog. The voice-cloning
// provider is used when configured, the owner has a voice sample and the
// language is supported; otherwise the standard speech API is used.
func (s *NarrationService) Narrate(ctx context.Context, vibelogID, userID string) (*NarrationResult, error) {
	v, err := ownedVibelog(ctx, s.vibelogs, vibelogID, userID)
	if err != nil {
		return nil, err
	}
	text := NarrationText(v.Title, v.Content, s.maxChars)
	if text == "" {
		return nil, fmt.Errorf("%w: nothing to narrate", ErrInvalidInput)
	}

	audio, ext, provider := s.tryClone(ctx, userID, text, v.OriginalLanguage)
	if audio == nil {
		if s.speech == nil {
			return nil, fmt.Errorf("%w: speech synthesis is not configured", ErrUnavailable)
		}
		audio, ext, err = s.speech.Synthesize(ctx, text)
		if err != nil {
			return nil, err
		}
		provider = NarrationOpenAI
		s.costs.RecordSpeech(ctx, len([]rune(text)))
	}

	key := storage.NarrationKey(vibelogID, ext)
	contentType := "audio/mpeg"
	if ext == ".wav" {
		contentType = "audio/wav"
	}
	if err := s.storage.Upload(ctx, key, bytes.NewReader(audio), int64(len(audio)), contentType); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	url := s.storage.GetURL(key)
	if err := s.vibelogs.UpdateFields(ctx, vibelogID, map[string]interface{}{"narration_url": url}); err != nil {
		return nil, fmt.Errorf("failed to save narration url: %w", err)
	}
	logger.With(logger.Fields{logger.FieldSize: len(audio)}).Info(ctx, "Narrated vibelog %s with %s", vibelogID, provider)
	return &NarrationResult{URL: url, Provider: provider}, nil
}

// tryClone returns nil audio whenever voice cloning cannot or did not work.
func (s *NarrationService) tryClone(ctx context.Context, userID, text, language string) ([]byte, string, string) {
	if s.provider != NarrationModal || s.modal == nil {
		return nil, "", ""
	}
	lang, ok := ModalLanguage(language)
	if !ok {
		logger.CtxInfo(ctx, "Voice cloning does not support %q, using standard voice", language)
		return nil, "", ""
	}
	profile, err := s.profiles.GetByID(ctx, userID)
	if err != nil || profile.VoiceSampleKey == "" {
		return nil, "", ""
	}
	rc, err := s.storage.Download(ctx, profile.VoiceSampleKey)
	if err != nil {
		logger.CtxWarn(ctx, "Failed to load voice sample: %v", err)
		return nil, "", ""
	}
	sample, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		logger.CtxWarn(ctx, "Failed to read voice sample: %v", err)
		return nil, "", ""
	}

	start := time.Now()
	audio, err := s.modal.Clone(ctx, text, sample, lang)
	elapsed := time.Since(start)
	s.costs.RecordModal(ctx, elapsed)
	if err != nil {
		logger.CtxWarn(ctx, "Voice cloning failed, using standard voice: %v", err)
		return nil, "", ""
	}
	logger.With(logger.Fields{"language": lang}).WithDuration(elapsed.Milliseconds()).Info(ctx, "Cloned voice for %d characters", len([]rune(text)))
	return audio, ".wav", NarrationModal
}

var (
	mdLink     = regexp.MustCompile(`!?\[([^\]]*)\]\([^)]*\)`)
	mdSymbols  = regexp.MustCompile("[*_`>#~]+")
	blankLines = regexp.MustCompile(`\n{3,}`)
)

// NarrationText strips Markdown from the post and cuts it to maxChars runes.
func NarrationText(title, content string, maxChars int) string {
	body := mdLink.ReplaceAllString(content, "$1")
	body = mdSymbols.ReplaceAllString(body, "")
	text := strings.TrimSpace(title + ".\n\n" + strings.TrimSpace(body))
	text = blankLines.ReplaceAllString(text, "\n\n")
	if strings.TrimSpace(strings.Trim(text, ".")) == "" {
		return ""
	}
	if r := []rune(text); len(r) > maxChars {
		text = string(r[:maxChars])
	}
	return text
}
