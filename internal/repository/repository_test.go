package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/vibelog/backend/internal/config"
	"github.com/vibelog/backend/internal/domain"
	"gorm.io/gorm"
)

// openTestDB opens a private in-memory SQLite database with every table migrated.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := InitDB(&config.DatabaseConfig{
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

func createVibelog(t *testing.T, repo *VibelogRepository, userID string, published bool) *domain.Vibelog {
	t.Helper()
	v := &domain.Vibelog{
		ID:       uuid.NewString(),
		UserID:   userID,
		Title:    "Morning walk",
		Content:  "It was sunny.",
		IsPublic: true,
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

func TestReactionRepository_AddIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	vibelogs := NewVibelogRepository(db)
	reactions := NewReactionRepository(db)
	v := createVibelog(t, vibelogs, "author", true)

	for i, want := range []bool{true, false, false} {
		created, err := reactions.Add(ctx, &domain.Reaction{
			ReactableType: domain.ReactableVibelog,
			ReactableID:   v.ID,
			UserID:        "u1",
			Emoji:         "🔥",
		})
		if err != nil {
			t.Fatalf("Add #%d: %v", i, err)
		}
		if created != want {
			t.Errorf("Add #%d: created = %v, want %v", i, created, want)
		}
	}

	counts, err := reactions.Counts(ctx, domain.ReactableVibelog, v.ID)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if len(counts) != 1 || counts[0].Count != 1 {
		t.Fatalf("counts = %+v, want one emoji with count 1", counts)
	}

	got, err := vibelogs.GetByID(ctx, v.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.ReactionCount != 1 {
		t.Errorf("reaction_count = %d, want 1", got.ReactionCount)
	}
}

func TestReactionRepository_RemoveOnlyOwnReaction(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	vibelogs := NewVibelogRepository(db)
	reactions := NewReactionRepository(db)
	v := createVibelog(t, vibelogs, "author", true)

	for _, user := range []string{"u1", "u2"} {
		if _, err := reactions.Add(ctx, &domain.Reaction{
			ReactableType: domain.ReactableVibelog, ReactableID: v.ID, UserID: user, Emoji: "❤️",
		}); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	removed, err := reactions.Remove(ctx, domain.ReactableVibelog, v.ID, "u1", "❤️")
	if err != nil || !removed {
		t.Fatalf("Remove = %v, %v; want true, nil", removed, err)
	}
	removed, err = reactions.Remove(ctx, domain.ReactableVibelog, v.ID, "u1", "❤️")
	if err != nil || removed {
		t.Fatalf("second Remove = %v, %v; want false, nil", removed, err)
	}

	emojis, err := reactions.UserEmojis(ctx, domain.ReactableVibelog, v.ID, "u2")
	if err != nil {
		t.Fatalf("UserEmojis: %v", err)
	}
	if len(emojis) != 1 {
		t.Errorf("u2 emojis = %v, want the reaction to survive", emojis)
	}
	got, _ := vibelogs.GetByID(ctx, v.ID)
	if got.ReactionCount != 1 {
		t.Errorf("reaction_count = %d, want 1", got.ReactionCount)
	}
}

func TestReactionRepository_TargetVisible(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	vibelogs := NewVibelogRepository(db)
	comments := NewCommentRepository(db)
	reactions := NewReactionRepository(db)
	published := createVibelog(t, vibelogs, "author", true)
	draft := createVibelog(t, vibelogs, "author", false)
	private := createVibelog(t, vibelogs, "author", true)
	if err := vibelogs.UpdateFields(ctx, private.ID, map[string]interface{}{"is_public": false}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	onPublished := &domain.Comment{ID: uuid.NewString(), VibelogID: published.ID, UserID: "u1", Content: "nice"}
	onDraft := &domain.Comment{ID: uuid.NewString(), VibelogID: draft.ID, UserID: "author", Content: "note"}
	for _, c := range []*domain.Comment{onPublished, onDraft} {
		if err := comments.Create(ctx, c); err != nil {
			t.Fatalf("Create comment: %v", err)
		}
	}

	tests := []struct {
		name   string
		t      domain.ReactableType
		id     string
		viewer string
		want   bool
	}{
		{"published vibelog anonymous", domain.ReactableVibelog, published.ID, "", true},
		{"draft by stranger", domain.ReactableVibelog, draft.ID, "u1", false},
		{"draft anonymous", domain.ReactableVibelog, draft.ID, "", false},
		{"draft by owner", domain.ReactableVibelog, draft.ID, "author", true},
		{"private by stranger", domain.ReactableVibelog, private.ID, "u1", false},
		{"comment on published", domain.ReactableComment, onPublished.ID, "u2", true},
		{"comment on draft by stranger", domain.ReactableComment, onDraft.ID, "u1", false},
		{"comment on draft by owner", domain.ReactableComment, onDraft.ID, "author", true},
		{"vibelog id as comment", domain.ReactableComment, published.ID, "u1", false},
		{"missing vibelog", domain.ReactableVibelog, "nope", "author", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := reactions.TargetVisible(ctx, tt.t, tt.id, tt.viewer)
			if err != nil || got != tt.want {
				t.Errorf("TargetVisible() = %v, %v; want %v", got, err, tt.want)
			}
		})
	}
	if _, err := reactions.TargetVisible(ctx, "story", published.ID, "u1"); err == nil {
		t.Error("expected error for unknown reactable type")
	}
}

func TestCommentRepository_MaintainsCount(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	vibelogs := NewVibelogRepository(db)
	comments := NewCommentRepository(db)
	reactions := NewReactionRepository(db)
	v := createVibelog(t, vibelogs, "author", true)

	c := &domain.Comment{ID: uuid.NewString(), VibelogID: v.ID, UserID: "u1", Content: "Nice!"}
	if err := comments.Create(ctx, c); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := reactions.Add(ctx, &domain.Reaction{
		ReactableType: domain.ReactableComment, ReactableID: c.ID, UserID: "u2", Emoji: "👍",
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	got, _ := vibelogs.GetByID(ctx, v.ID)
	if got.CommentCount != 1 {
		t.Errorf("comment_count = %d, want 1", got.CommentCount)
	}

	if err := comments.Delete(ctx, c); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, _ = vibelogs.GetByID(ctx, v.ID)
	if got.CommentCount != 0 {
		t.Errorf("comment_count after delete = %d, want 0", got.CommentCount)
	}
	counts, _ := reactions.Counts(ctx, domain.ReactableComment, c.ID)
	if len(counts) != 0 {
		t.Errorf("reactions on deleted comment = %+v, want none", counts)
	}
}

func TestVibelogRepository_ListPublished(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewVibelogRepository(db)
	createVibelog(t, repo, "alice", true)
	createVibelog(t, repo, "alice", false)
	createVibelog(t, repo, "bob", true)

	all, err := repo.ListPublished(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("ListPublished: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("published = %d, want 2", len(all))
	}

	n, err := repo.CountPublished(ctx, "alice")
	if err != nil {
		t.Fatalf("CountPublished: %v", err)
	}
	if n != 1 {
		t.Errorf("alice published = %d, want 1", n)
	}
}

func TestVibelogRepository_UpsertTranslation(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewVibelogRepository(db)
	v := createVibelog(t, repo, "alice", true)

	for _, title := range []string{"Paseo", "Paseo matutino"} {
		if err := repo.UpsertTranslation(ctx, &domain.VibelogTranslation{
			VibelogID: v.ID, Language: "es", Title: title,
		}); err != nil {
			t.Fatalf("UpsertTranslation: %v", err)
		}
	}

	ts, err := repo.ListTranslations(ctx, v.ID)
	if err != nil {
		t.Fatalf("ListTranslations: %v", err)
	}
	if len(ts) != 1 || ts[0].Title != "Paseo matutino" {
		t.Errorf("translations = %+v, want a single updated row", ts)
	}

	if _, err := repo.GetTranslation(ctx, v.ID, "fr"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing translation: err = %v, want ErrNotFound", err)
	}
}

func TestVibelogRepository_UpdateFieldsMissing(t *testing.T) {
	repo := NewVibelogRepository(openTestDB(t))
	err := repo.UpdateFields(context.Background(), "missing", map[string]interface{}{"title": "x"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRateLimitRepository_Increment(t *testing.T) {
	repo := NewRateLimitRepository(openTestDB(t))
	ctx := context.Background()
	window := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	for want := 1; want <= 3; want++ {
		got, err := repo.Increment(ctx, "generate:anon:1.2.3.4", window)
		if err != nil {
			t.Fatalf("Increment: %v", err)
		}
		if got != want {
			t.Errorf("count = %d, want %d", got, want)
		}
	}

	got, err := repo.Increment(ctx, "generate:anon:1.2.3.4", window.Add(time.Hour))
	if err != nil {
		t.Fatalf("Increment next window: %v", err)
	}
	if got != 1 {
		t.Errorf("next window count = %d, want 1", got)
	}
}

func TestCostRepository_TotalSince(t *testing.T) {
	repo := NewCostRepository(openTestDB(t))
	ctx := context.Background()
	today := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)

	entries := []domain.CostEntry{
		{Service: domain.CostServiceChat, CostUSD: 0.25, CreatedAt: today.Add(-time.Minute)},
		{Service: domain.CostServiceChat, CostUSD: 0.50, CreatedAt: today.Add(time.Hour)},
		{Service: domain.CostServiceImage, CostUSD: 0.08, CreatedAt: today.Add(2 * time.Hour)},
	}
	for i := range entries {
		entries[i].ID = uuid.NewString()
		if err := repo.Append(ctx, &entries[i]); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	total, err := repo.TotalSince(ctx, today)
	if err != nil {
		t.Fatalf("TotalSince: %v", err)
	}
	if diff := total - 0.58; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("total = %f, want 0.58", total)
	}

	breakdown, err := repo.BreakdownSince(ctx, today)
	if err != nil {
		t.Fatalf("BreakdownSince: %v", err)
	}
	if len(breakdown) != 2 {
		t.Fatalf("breakdown = %+v, want 2 services", breakdown)
	}
}

func TestConfigRepository_PutAndDecode(t *testing.T) {
	repo := NewConfigRepository(openTestDB(t))
	ctx := context.Background()

	var limit domain.DailyCostLimit
	if err := repo.Decode(ctx, domain.ConfigKeyDailyCostLimit, &limit); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Decode before Put: err = %v, want ErrNotFound", err)
	}

	for _, v := range []string{`{"limit_usd": 10}`, `{"limit_usd": 25.5}`} {
		if _, err := repo.Put(ctx, domain.ConfigKeyDailyCostLimit, json.RawMessage(v), "admin"); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	if err := repo.Decode(ctx, domain.ConfigKeyDailyCostLimit, &limit); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if limit.LimitUSD != 25.5 {
		t.Errorf("limit = %v, want 25.5", limit.LimitUSD)
	}
}

func TestProfileRepository_AddMemoriesDeduplicates(t *testing.T) {
	repo := NewProfileRepository(openTestDB(t))
	ctx := context.Background()

	n, err := repo.AddMemories(ctx, "u1", []string{"likes hiking", "lives in Lisbon"})
	if err != nil || n != 2 {
		t.Fatalf("AddMemories = %d, %v; want 2, nil", n, err)
	}
	n, err = repo.AddMemories(ctx, "u1", []string{"likes hiking"})
	if err != nil || n != 0 {
		t.Fatalf("repeat AddMemories = %d, %v; want 0, nil", n, err)
	}
	mems, err := repo.ListMemories(ctx, "u1", 10)
	if err != nil || len(mems) != 2 {
		t.Errorf("ListMemories = %d, %v; want 2", len(mems), err)
	}
}

func TestSQLiteDir(t *testing.T) {
	tests := map[string]string{
		"":                                  "",
		":memory:":                          "",
		"file:abc?mode=memory&cache=shared": "",
		"vibelog.db":                        "",
		"data/vibelog.db":                   "data",
	}
	for path, want := range tests {
		if got := sqliteDir(path); got != want {
			t.Errorf("sqliteDir(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestProfileRepository_DuplicateUsername(t *testing.T) {
	repo := NewProfileRepository(openTestDB(t))
	ctx := context.Background()
	for _, id := range []string{"u1", "u2"} {
		if _, err := repo.Ensure(ctx, id); err != nil {
			t.Fatalf("Ensure(%s): %v", id, err)
		}
	}
	if err := repo.UpdateFields(ctx, "u1", map[string]interface{}{"username": "ana"}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	err := repo.UpdateFields(ctx, "u2", map[string]interface{}{"username": "ana"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
}
