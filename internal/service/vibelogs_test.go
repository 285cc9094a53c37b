package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/vibelog/backend/internal/domain"
	"github.com/vibelog/backend/internal/repository"
)

func seedVibelog(t *testing.T, repo *repository.VibelogRepository, userID string, published, public bool) *domain.Vibelog {
	t.Helper()
	transcript := "today I walked to the sea"
	v := &domain.Vibelog{
		ID:               uuid.NewString(),
		UserID:           userID,
		Title:            "Walk",
		Teaser:           "A walk.",
		Content:          "Today I walked to the sea.",
		Transcription:    &transcript,
		OriginalLanguage: "en",
		IsPublic:         public,
	}
	if published {
		now := time.Now().UTC()
		v.IsPublished = true
		v.PublishedAt = &now
	}
	if err := repo.Create(context.Background(), v); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return v
}

type vibelogFixture struct {
	svc        *VibelogService
	vibelogs   *repository.VibelogRepository
	profiles   *repository.ProfileRepository
	chat       *fakeChat
	dispatcher *recordingDispatcher
}

func newVibelogFixture(t *testing.T) *vibelogFixture {
	t.Helper()
	db := openTestDB(t)
	f := &vibelogFixture{
		vibelogs:   repository.NewVibelogRepository(db),
		profiles:   repository.NewProfileRepository(db),
		chat:       &fakeChat{},
		dispatcher: &recordingDispatcher{},
	}
	costs := newTestCostGuard(&memLedger{}, nil)
	pipeline := NewPipeline(f.vibelogs, newMemStorage(), &fakeTranscriber{}, NewWriter(f.chat, costs, nil, ""), nil, costs, f.dispatcher, PipelineOptions{})
	f.svc = NewVibelogService(f.vibelogs, f.profiles, pipeline, nil, nil, f.dispatcher)
	return f
}

func TestVibelogService_Visibility(t *testing.T) {
	f := newVibelogFixture(t)
	ctx := context.Background()
	published := seedVibelog(t, f.vibelogs, "owner", true, true)
	draft := seedVibelog(t, f.vibelogs, "owner", false, true)
	private := seedVibelog(t, f.vibelogs, "owner", true, false)

	tests := []struct {
		name    string
		id      string
		viewer  string
		wantErr error
	}{
		{"published anonymous", published.ID, "", nil},
		{"draft anonymous", draft.ID, "", ErrNotFound},
		{"draft other user", draft.ID, "someone", ErrNotFound},
		{"draft owner", draft.ID, "owner", nil},
		{"private other user", private.ID, "someone", ErrNotFound},
		{"private owner", private.ID, "owner", nil},
		{"missing", uuid.NewString(), "owner", ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Get(ctx, tt.id, tt.viewer, "")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Get() err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	page, err := f.svc.List(ctx, "", 0, -5)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 1 || len(page.Items) != 1 || page.Items[0].ID != published.ID {
		t.Errorf("List() = %+v, want only the published public vibelog", page)
	}
	if page.Limit != defaultPageSize || page.Offset != 0 {
		t.Errorf("page bounds = %d/%d", page.Limit, page.Offset)
	}
}

func TestVibelogService_GetTranslated(t *testing.T) {
	f := newVibelogFixture(t)
	ctx := context.Background()
	v := seedVibelog(t, f.vibelogs, "owner", true, true)
	if err := f.vibelogs.UpsertTranslation(ctx, &domain.VibelogTranslation{VibelogID: v.ID, Language: "es", Title: "Paseo", Content: "Hoy caminé al mar."}); err != nil {
		t.Fatalf("UpsertTranslation: %v", err)
	}

	got, err := f.svc.Get(ctx, v.ID, "", "ES")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "Paseo" || got.Content != "Hoy caminé al mar." || got.Teaser != "A walk." {
		t.Errorf("translated = %q / %q / %q", got.Title, got.Teaser, got.Content)
	}

	untranslated, err := f.svc.Get(ctx, v.ID, "", "de")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if untranslated.Title != "Walk" {
		t.Errorf("missing translation should fall back to the original, got %q", untranslated.Title)
	}
}

func TestVibelogService_Update(t *testing.T) {
	f := newVibelogFixture(t)
	ctx := context.Background()
	v := seedVibelog(t, f.vibelogs, "owner", false, true)

	title := "  New title "
	if _, err := f.svc.Update(ctx, v.ID, "intruder", VibelogUpdate{Title: &title}); !errors.Is(err, ErrNotFound) {
		t.Errorf("update of an invisible draft: err = %v, want ErrNotFound", err)
	}

	publish := true
	got, err := f.svc.Update(ctx, v.ID, "owner", VibelogUpdate{Title: &title, IsPublished: &publish})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Title != "New title" || !got.IsPublished || got.PublishedAt == nil {
		t.Errorf("updated = %+v", got)
	}
	if diff := cmp.Diff([]string{TaskIndex, TaskTranslate}, f.dispatcher.types()); diff != "" {
		t.Errorf("dispatched tasks mismatch (-want +got):\n%s", diff)
	}

	if _, err := f.svc.Update(ctx, v.ID, "intruder", VibelogUpdate{Title: &title}); !errors.Is(err, ErrForbidden) {
		t.Errorf("update of a visible vibelog by another user: err = %v, want ErrForbidden", err)
	}
	empty := " "
	if _, err := f.svc.Update(ctx, v.ID, "owner", VibelogUpdate{Title: &empty}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty title: err = %v, want ErrInvalidInput", err)
	}
}

func TestVibelogService_Regenerate(t *testing.T) {
	f := newVibelogFixture(t)
	ctx := context.Background()
	v := seedVibelog(t, f.vibelogs, "owner", true, true)
	f.chat.reply = "===TITLE===\nBy the sea\n===CONTENT===\nThe sea was loud today."

	got, err := f.svc.Regenerate(ctx, v.ID, "owner", "poetic", "")
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if got.Title != "By the sea" || got.Teaser != "The sea was loud today." || got.Tone != "poetic" {
		t.Errorf("regenerated = %q / %q / %q", got.Title, got.Teaser, got.Tone)
	}
	if len(f.chat.requests) != 1 || !containsText(f.chat.requests[0].Messages, "today I walked to the sea") {
		t.Error("regeneration should work from the stored transcription")
	}

	f.chat.err = errors.New("model offline")
	if _, err := f.svc.Regenerate(ctx, v.ID, "owner", "", ""); err == nil {
		t.Error("expected a generation error")
	}
	stored, _ := f.vibelogs.GetByID(ctx, v.ID)
	if stored.Title != "By the sea" {
		t.Errorf("failed regeneration must leave the post untouched, title = %q", stored.Title)
	}
}

func TestVibelogService_RelatedWithoutIndex(t *testing.T) {
	f := newVibelogFixture(t)
	v := seedVibelog(t, f.vibelogs, "owner", true, true)
	got, err := f.svc.Related(context.Background(), v.ID, "", 5)
	if err != nil {
		t.Fatalf("Related: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("Related() = %v, want an empty list", got)
	}
}

func containsText(msgs []ChatMessage, s string) bool {
	for _, m := range msgs {
		if strings.Contains(m.Content, s) {
			return true
		}
	}
	return false
}
