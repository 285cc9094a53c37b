package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/vibelog/backend/internal/config"
	"github.com/vibelog/backend/internal/domain"
	"github.com/vibelog/backend/internal/repository"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repository.InitDB(&config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		MaxOpenConns: 1,
		AutoMigrate:  true,
	})
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// fakeChat replies with a fixed text or error and records every request.
type fakeChat struct {
	mu       sync.Mutex
	reply    string
	err      error
	requests []ChatRequest
}

func (f *fakeChat) Complete(_ context.Context, req ChatRequest) (*ChatResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &ChatResult{Text: f.reply, Model: "test", PromptTokens: 100, CompletionTokens: 50}, nil
}

func (f *fakeChat) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type fakeTranscriber struct {
	text  string
	err   error
	calls int
}

func (f *fakeTranscriber) Transcribe(_ context.Context, _ string, audio io.Reader) (*Transcript, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	_, _ = io.Copy(io.Discard, audio)
	return &Transcript{Text: f.text, Language: "en", DurationSeconds: 30}, nil
}

// memStorage is an in-memory ObjectStorage.
type memStorage struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr error
}

func newMemStorage() *memStorage {
	return &memStorage{objects: map[string][]byte{}}
}

func (s *memStorage) EnsureBucket(context.Context) error { return nil }

func (s *memStorage) Upload(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	if s.uploadErr != nil {
		return s.uploadErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.objects[key] = data
	s.mu.Unlock()
	return nil
}

func (s *memStorage) Download(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memStorage) PresignUpload(_ context.Context, key, _ string, _ time.Duration) (string, error) {
	return "https://upload.test/" + key + "?sig=1", nil
}

func (s *memStorage) GetURL(key string) string { return "https://cdn.test/" + key }

func (s *memStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

func (s *memStorage) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok, nil
}

// recordingDispatcher keeps dispatched tasks instead of running them.
type recordingDispatcher struct {
	mu    sync.Mutex
	tasks []Task
}

func (d *recordingDispatcher) Dispatch(_ context.Context, task Task) error {
	d.mu.Lock()
	d.tasks = append(d.tasks, task)
	d.mu.Unlock()
	return nil
}

func (d *recordingDispatcher) types() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.tasks))
	for _, t := range d.tasks {
		out = append(out, t.Type)
	}
	return out
}

// memLedger is a CostLedger over a slice.
type memLedger struct {
	mu       sync.Mutex
	entries  []domain.CostEntry
	totalErr error
}

func (l *memLedger) Append(_ context.Context, e *domain.CostEntry) error {
	l.mu.Lock()
	l.entries = append(l.entries, *e)
	l.mu.Unlock()
	return nil
}

func (l *memLedger) TotalSince(_ context.Context, since time.Time) (float64, error) {
	if l.totalErr != nil {
		return 0, l.totalErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	var total float64
	for _, e := range l.entries {
		if !e.CreatedAt.Before(since) {
			total += e.CostUSD
		}
	}
	return total, nil
}

func (l *memLedger) BreakdownSince(_ context.Context, since time.Time) ([]repository.ServiceTotal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	index := map[string]int{}
	var out []repository.ServiceTotal
	for _, e := range l.entries {
		if e.CreatedAt.Before(since) {
			continue
		}
		i, ok := index[e.Service]
		if !ok {
			out = append(out, repository.ServiceTotal{Service: e.Service})
			i = len(out) - 1
			index[e.Service] = i
		}
		out[i].CostUSD += e.CostUSD
		out[i].Calls++
	}
	return out, nil
}

// mapConfigs is a ConfigSource over raw JSON documents.
type mapConfigs map[string]string

func (m mapConfigs) Decode(_ context.Context, key string, dst interface{}) error {
	raw, ok := m[key]
	if !ok {
		return repository.ErrNotFound
	}
	if raw == "!" {
		return errors.New("config store unavailable")
	}
	return json.Unmarshal([]byte(raw), dst)
}

func newTestCostGuard(ledger CostLedger, configs ConfigSource) *CostGuard {
	return NewCostGuard(ledger, configs, config.CostsConfig{
		DailyLimitUSD:          10,
		TranscriptionPerMinute: 0.006,
		ChatInputPerMillion:    0.15,
		ChatOutputPerMillion:   0.60,
		ImagePerImage:          0.08,
	})
}
