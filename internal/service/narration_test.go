package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vibelog/backend/internal/repository"
	"github.com/vibelog/backend/internal/storage"
)

func TestNarrationText(t *testing.T) {
	tests := []struct {
		name     string
		title    string
		content  string
		maxChars int
		want     string
	}{
		{"strips emphasis and links", "Walk", "**Bold** [the sea](https://x.test) and ![pic](a.png)", 100, "Walk.\n\nBold the sea and pic"},
		{"collapses blank lines", "T", "# Heading\n\n\n\nBody", 100, "T.\n\nHeading\n\nBody"},
		{"cuts by runes", "héllo", "", 2, "hé"},
		{"empty post", "", "", 100, ""},
		{"only markup", "", "**__**", 100, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NarrationText(tt.title, tt.content, tt.maxChars); got != tt.want {
				t.Errorf("NarrationText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestModalLanguage(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"en", "en", true},
		{"zh", "zh-cn", true},
		{"ZH-Hans", "zh-cn", true},
		{"ja", "ja", true},
		{"xx", "xx", false},
		{"sv", "sv", false},
	}
	for _, tt := range tests {
		got, ok := ModalLanguage(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ModalLanguage(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

// modalServer plays the voice-cloning endpoint and records what it was sent.
type modalServer struct {
	*httptest.Server
	mu       sync.Mutex
	requests []modalRequest
	status   int
	body     string
}

func newModalServer(t *testing.T, status int, body string) *modalServer {
	t.Helper()
	m := &modalServer{status: status, body: body}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req modalRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		m.mu.Lock()
		m.requests = append(m.requests, req)
		m.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(m.status)
		_, _ = w.Write([]byte(m.body))
	}))
	t.Cleanup(m.Close)
	return m
}

func (m *modalServer) calls() []modalRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]modalRequest(nil), m.requests...)
}

func audioReply(data string) string {
	return `{"audioBase64":"` + base64.StdEncoding.EncodeToString([]byte(data)) + `","duration":1.5}`
}

func TestModalTTSClient_Clone(t *testing.T) {
	srv := newModalServer(t, http.StatusOK, audioReply("RIFFwave"))
	client := NewModalTTSClient(srv.URL, time.Second)

	audio, err := client.Clone(context.Background(), "Hello there", []byte("sample"), "en")
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	if string(audio) != "RIFFwave" {
		t.Errorf("audio = %q", audio)
	}
	reqs := srv.calls()
	if len(reqs) != 1 {
		t.Fatalf("requests = %d", len(reqs))
	}
	if reqs[0].Text != "Hello there" || reqs[0].Language != "en" {
		t.Errorf("request = %+v", reqs[0])
	}
	if sample, _ := base64.StdEncoding.DecodeString(reqs[0].VoiceAudio); string(sample) != "sample" {
		t.Errorf("voiceAudio = %q", reqs[0].VoiceAudio)
	}
}

func TestModalTTSClient_CloneErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"server error message", http.StatusBadGateway, `{"error":"gpu busy"}`, "gpu busy"},
		{"server error without body", http.StatusInternalServerError, `{}`, "HTTP 500"},
		{"no audio", http.StatusOK, `{"duration":0}`, "no audio"},
		{"bad base64", http.StatusOK, `{"audioBase64":"!!not base64!!"}`, "invalid audio"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newModalServer(t, tt.status, tt.body)
			_, err := NewModalTTSClient(srv.URL, time.Second).Clone(context.Background(), "hi", []byte("s"), "en")
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Clone() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

type fakeSpeech struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (f *fakeSpeech) Synthesize(_ context.Context, text string) ([]byte, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	if f.err != nil {
		return nil, "", f.err
	}
	return []byte("ID3speech"), ".mp3", nil
}

func (f *fakeSpeech) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.texts)
}

type narrationFixture struct {
	svc      *NarrationService
	vibelogs *repository.VibelogRepository
	profiles *repository.ProfileRepository
	store    *memStorage
	speech   *fakeSpeech
	ledger   *memLedger
}

func newNarrationFixture(t *testing.T, modal *ModalTTSClient) *narrationFixture {
	t.Helper()
	db := openTestDB(t)
	f := &narrationFixture{
		vibelogs: repository.NewVibelogRepository(db),
		profiles: repository.NewProfileRepository(db),
		store:    newMemStorage(),
		speech:   &fakeSpeech{},
		ledger:   &memLedger{},
	}
	costs := newTestCostGuard(f.ledger, nil)
	f.svc = NewNarrationService(f.vibelogs, f.profiles, f.store, f.speech, modal, NarrationModal, 0, costs)
	return f
}

func (f *narrationFixture) giveVoiceSample(t *testing.T, userID string) {
	t.Helper()
	ctx := context.Background()
	key := storage.VoiceSampleKey(userID, ".wav")
	f.store.objects[key] = []byte("RIFFsample")
	if _, err := f.profiles.Ensure(ctx, userID); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if err := f.profiles.UpdateFields(ctx, userID, map[string]interface{}{"voice_sample_key": key}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
}

func TestNarrate_ClonedVoice(t *testing.T) {
	srv := newModalServer(t, http.StatusOK, audioReply("RIFFcloned"))
	f := newNarrationFixture(t, NewModalTTSClient(srv.URL, time.Second))
	ctx := context.Background()
	v := seedVibelog(t, f.vibelogs, "owner", true, true)
	f.giveVoiceSample(t, "owner")

	res, err := f.svc.Narrate(ctx, v.ID, "owner")
	if err != nil {
		t.Fatalf("Narrate: %v", err)
	}
	if res.Provider != NarrationModal {
		t.Errorf("provider = %q, want %q", res.Provider, NarrationModal)
	}
	key := storage.NarrationKey(v.ID, ".wav")
	if string(f.store.objects[key]) != "RIFFcloned" {
		t.Errorf("stored narration = %q", f.store.objects[key])
	}
	if f.speech.calls() != 0 {
		t.Errorf("standard voice called %d times", f.speech.calls())
	}
	reqs := srv.calls()
	if len(reqs) != 1 || reqs[0].Language != "en" {
		t.Fatalf("modal requests = %+v", reqs)
	}
	if sample, _ := base64.StdEncoding.DecodeString(reqs[0].VoiceAudio); string(sample) != "RIFFsample" {
		t.Errorf("voice sample sent = %q", sample)
	}
	got, err := f.vibelogs.GetByID(ctx, v.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.NarrationURL == nil || *got.NarrationURL != res.URL {
		t.Errorf("narration_url = %v, want %q", got.NarrationURL, res.URL)
	}
}

func TestNarrate_FallsBackToStandardVoice(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		sample     bool
		language   string
		modalCalls int
	}{
		{"no voice sample", http.StatusOK, audioReply("RIFF"), false, "en", 0},
		{"unsupported language", http.StatusOK, audioReply("RIFF"), true, "sv", 0},
		{"clone fails", http.StatusBadGateway, `{"error":"gpu busy"}`, true, "en", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newModalServer(t, tt.status, tt.body)
			f := newNarrationFixture(t, NewModalTTSClient(srv.URL, time.Second))
			ctx := context.Background()
			v := seedVibelog(t, f.vibelogs, "owner", true, true)
			if err := f.vibelogs.UpdateFields(ctx, v.ID, map[string]interface{}{"original_language": tt.language}); err != nil {
				t.Fatalf("UpdateFields: %v", err)
			}
			if tt.sample {
				f.giveVoiceSample(t, "owner")
			}

			res, err := f.svc.Narrate(ctx, v.ID, "owner")
			if err != nil {
				t.Fatalf("Narrate: %v", err)
			}
			if res.Provider != NarrationOpenAI {
				t.Errorf("provider = %q, want %q", res.Provider, NarrationOpenAI)
			}
			if f.speech.calls() != 1 {
				t.Errorf("standard voice calls = %d, want 1", f.speech.calls())
			}
			if n := len(srv.calls()); n != tt.modalCalls {
				t.Errorf("modal calls = %d, want %d", n, tt.modalCalls)
			}
			if _, ok := f.store.objects[storage.NarrationKey(v.ID, ".mp3")]; !ok {
				t.Error("mp3 narration not stored")
			}
		})
	}
}

func TestNarrate_Access(t *testing.T) {
	srv := newModalServer(t, http.StatusOK, audioReply("RIFF"))
	f := newNarrationFixture(t, NewModalTTSClient(srv.URL, time.Second))
	ctx := context.Background()
	public := seedVibelog(t, f.vibelogs, "owner", true, true)
	draft := seedVibelog(t, f.vibelogs, "owner", false, true)

	tests := []struct {
		name    string
		id      string
		userID  string
		wantErr error
	}{
		{"visible to others", public.ID, "someone", ErrForbidden},
		{"draft of another user", draft.ID, "someone", ErrNotFound},
		{"missing", "nope", "owner", ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.Narrate(ctx, tt.id, tt.userID); !errors.Is(err, tt.wantErr) {
				t.Errorf("Narrate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
	if f.speech.calls() != 0 || len(srv.calls()) != 0 {
		t.Error("no audio may be produced for a denied request")
	}
	if len(f.ledger.entries) != 0 {
		t.Errorf("ledger rows = %d, want 0", len(f.ledger.entries))
	}
}
