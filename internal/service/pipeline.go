package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vibelog/backend/internal/domain"
	"github.com/vibelog/backend/internal/logger"
	"github.com/vibelog/backend/internal/repository"
	"github.com/vibelog/backend/internal/storage"
)

const sniffLen = 512

// Upload is a file received in a request.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Media is an upload that passed validation.
type Media struct {
	Kind       MediaKind
	MIMEType   string
	Filename   string
	Data       []byte
	StorageKey string // set when the blob already lives in storage
}

// PublishRequest is the input of the upload pipeline.
type PublishRequest struct {
	UserID      string
	Media       *Media
	Title       string
	Tone        string
	ContentType string
	Cover       *Upload
	Draft       bool
}

// PipelineOptions tune the pipeline.
type PipelineOptions struct {
	MaxUploadBytes  int64
	GenerateCovers  bool
	DefaultLanguage string
	PresignTTL      time.Duration
}

// UploadTicket lets a client PUT a large file straight to storage and then
// reference it by StoragePath.
type UploadTicket struct {
	StoragePath string    `json:"storage_path"`
	UploadURL   string    `json:"upload_url"`
	MIMEType    string    `json:"mime_type"`
	MaxBytes    int64     `json:"max_bytes"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Pipeline turns an upload into a persisted vibelog:
// validate, transcribe or read, generate, cover, persist, dispatch follow-ups.
type Pipeline struct {
	vibelogs    *repository.VibelogRepository
	storage     storage.ObjectStorage
	transcriber Transcriber
	writer      *Writer
	covers      *CoverService
	costs       *CostGuard
	dispatcher  Dispatcher
	opts        PipelineOptions
}

func NewPipeline(
	vibelogs *repository.VibelogRepository,
	store storage.ObjectStorage,
	transcriber Transcriber,
	writer *Writer,
	covers *CoverService,
	costs *CostGuard,
	dispatcher Dispatcher,
	opts PipelineOptions,
) *Pipeline {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 25 << 20
	}
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = "en"
	}
	if opts.PresignTTL <= 0 {
		opts.PresignTTL = 15 * time.Minute
	}
	return &Pipeline{
		vibelogs:    vibelogs,
		storage:     store,
		transcriber: transcriber,
		writer:      writer,
		covers:      covers,
		costs:       costs,
		dispatcher:  dispatcher,
		opts:        opts,
	}
}

// MaxUploadBytes is the upload size ceiling.
func (p *Pipeline) MaxUploadBytes() int64 {
	return p.opts.MaxUploadBytes
}

// PrepareUpload validates a file received in the request. No external AI
// service is called before this passes.
func (p *Pipeline) PrepareUpload(file *Upload) (*Media, error) {
	if file == nil {
		return nil, fmt.Errorf("%w: a file or storage_path is required", ErrInvalidInput)
	}
	return p.classify(file.Filename, file.ContentType, file.Data)
}

// PresignUpload reserves a key under the caller's media prefix and signs a
// direct upload to it. Only types the pipeline accepts are signed.
func (p *Pipeline) PresignUpload(ctx context.Context, userID, filename, mimeType string) (*UploadTicket, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: sign in to upload", ErrInvalidInput)
	}
	mt := NormalizeMIME(mimeType)
	if mt == "" {
		mt = DetectMIME("", filename, nil)
	}
	if ClassifyMIME(mt) == MediaUnsupported {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMediaType, mt)
	}

	key := storage.MediaKey(userID, uuid.NewString(), ExtensionFor(mt, filename))
	signed, err := p.storage.PresignUpload(ctx, key, mt, p.opts.PresignTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	logger.CtxInfo(ctx, "Signed direct upload %s (%s)", key, mt)
	return &UploadTicket{
		StoragePath: key,
		UploadURL:   signed,
		MIMEType:    mt,
		MaxBytes:    p.opts.MaxUploadBytes,
		ExpiresAt:   time.Now().Add(p.opts.PresignTTL).UTC(),
	}, nil
}

// PrepareStored validates a blob the client already uploaded to storage.
// Callers may only reference keys under their own media prefix.
func (p *Pipeline) PrepareStored(ctx context.Context, userID, storagePath, declaredType string) (*Media, error) {
	key, ok := storage.CleanKey(storagePath)
	if !ok || userID == "" || !strings.HasPrefix(key, "media/"+userID+"/") {
		return nil, fmt.Errorf("%w: storage_path must point to one of your uploads", ErrInvalidInput)
	}

	rc, err := p.storage.Download(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: storage_path not found", ErrInvalidInput)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, p.opts.MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	m, err := p.classify(key, declaredType, data)
	if err != nil {
		return nil, err
	}
	m.StorageKey = key
	return m, nil
}

func (p *Pipeline) classify(filename, declared string, data []byte) (*Media, error) {
	if int64(len(data)) > p.opts.MaxUploadBytes {
		return nil, fmt.Errorf("%w: maximum size is %d bytes", ErrFileTooLarge, p.opts.MaxUploadBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: file is empty", ErrInvalidInput)
	}
	head := data
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	mt := DetectMIME(declared, filename, head)
	kind := ClassifyMIME(mt)
	if kind == MediaUnsupported {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMediaType, mt)
	}
	return &Media{Kind: kind, MIMEType: mt, Filename: filename, Data: data}, nil
}

// Transcribe returns the text of m. Text uploads are read directly; the
// transcription service is only called for audio and video.
func (p *Pipeline) Transcribe(ctx context.Context, m *Media) (*Transcript, error) {
	if m.Kind == MediaText {
		return &Transcript{Text: strings.TrimSpace(string(m.Data))}, nil
	}
	if p.transcriber == nil {
		return nil, fmt.Errorf("%w: transcription is not configured", ErrUnavailable)
	}

	start := time.Now()
	filename := m.Filename
	if filename == "" || !strings.Contains(filename, ".") {
		filename = "upload" + ExtensionFor(m.MIMEType, "")
	}
	t, err := p.transcriber.Transcribe(ctx, filename, bytes.NewReader(m.Data))
	if err != nil {
		return nil, err
	}
	p.costs.RecordTranscription(ctx, t.DurationSeconds)
	logger.With(logger.Fields{
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
		logger.FieldSize:       len(m.Data),
	}).Info(ctx, "Transcribed %s (%s)", m.MIMEType, t.Language)
	return t, nil
}

// Generate produces a post from a transcript. Generation failures fall back
// to the transcript itself. A non-empty title override always wins.
func (p *Pipeline) Generate(ctx context.Context, transcript, tone, contentType, titleOverride string) GeneratedPost {
	post, err := p.writer.Generate(ctx, transcript, tone, contentType)
	if err != nil {
		logger.CtxWarn(ctx, "Generation failed, using transcript fallback: %v", err)
	}
	if t := strings.TrimSpace(titleOverride); t != "" {
		post.Title = t
	}
	return post
}

// Publish runs the whole pipeline and returns the saved vibelog.
func (p *Pipeline) Publish(ctx context.Context, req PublishRequest) (*domain.Vibelog, error) {
	if req.Media == nil {
		return nil, fmt.Errorf("%w: a file or storage_path is required", ErrInvalidInput)
	}
	m := req.Media
	id := uuid.NewString()
	ctx = logger.SetVibelogID(ctx, id)

	v := &domain.Vibelog{
		ID:          id,
		UserID:      req.UserID,
		Tone:        req.Tone,
		ContentType: req.ContentType,
		IsPublic:    true,
		MediaType:   m.Kind.domainType(),
	}

	var uploadedKey string
	if m.Kind != MediaText {
		key := m.StorageKey
		if key == "" {
			key = storage.MediaKey(req.UserID, id, ExtensionFor(m.MIMEType, m.Filename))
			if err := p.storage.Upload(ctx, key, bytes.NewReader(m.Data), int64(len(m.Data)), m.MIMEType); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrStorage, err)
			}
			uploadedKey = key
		}
		url := p.storage.GetURL(key)
		if m.Kind == MediaVideo {
			v.VideoURL = &url
		} else {
			v.AudioURL = &url
		}
	}

	transcript, err := p.Transcribe(ctx, m)
	if err != nil {
		logger.CtxWarn(ctx, "Transcription failed, continuing with empty transcript: %v", err)
		transcript = &Transcript{}
	}
	text := transcript.Text
	v.Transcription = &text

	post := p.Generate(ctx, text, req.Tone, req.ContentType, req.Title)
	v.Title = post.Title
	v.Teaser = post.Teaser
	v.Content = post.Content
	v.OriginalLanguage = firstNonEmpty(transcript.Language, post.Language, p.opts.DefaultLanguage)

	if cover := p.attachCover(ctx, id, req.Cover, post); cover != nil {
		v.CoverImageURL = &cover.URL
		v.CoverWidth = cover.Width
		v.CoverHeight = cover.Height
	}

	if !req.Draft {
		now := time.Now().UTC()
		v.IsPublished = true
		v.PublishedAt = &now
	}

	if err := p.vibelogs.Create(ctx, v); err != nil {
		if uploadedKey != "" {
			if derr := p.storage.Delete(ctx, uploadedKey); derr != nil {
				logger.CtxWarn(ctx, "Failed to remove orphaned upload %s: %v", uploadedKey, derr)
			}
		}
		return nil, fmt.Errorf("%w: %v", ErrPersist, err)
	}
	logger.CtxInfo(ctx, "Created vibelog %q", v.Title)

	tasks := []Task{{Type: TaskTranslate, VibelogID: id}}
	if v.IsPublished {
		tasks = append(tasks, Task{Type: TaskIndex, VibelogID: id})
	}
	DispatchAll(ctx, p.dispatcher, tasks...)
	return v, nil
}

// attachCover stores the supplied cover or generates one. Any failure means no cover.
func (p *Pipeline) attachCover(ctx context.Context, id string, supplied *Upload, post GeneratedPost) *CoverResult {
	if p.covers == nil {
		return nil
	}
	var (
		res *CoverResult
		err error
	)
	switch {
	case supplied != nil && len(supplied.Data) > 0:
		res, err = p.covers.Store(ctx, id, supplied.Data, supplied.ContentType)
	case p.opts.GenerateCovers && strings.TrimSpace(post.Content) != "":
		res, err = p.covers.Generate(ctx, id, post.Title, post.Teaser)
	default:
		return nil
	}
	if err != nil {
		if !errors.Is(err, ErrUnavailable) {
			logger.CtxWarn(ctx, "Cover failed, publishing without one: %v", err)
		}
		return nil
	}
	return res
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
