package transcript

import (
	"context"
	"testing"

	"github.com/eleven-am/careervoice/internal/conversation"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	store := NewStore(db)
	if err := store.Migrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return store
}

func exchange(user, model string) []conversation.TranscriptTurn {
	return []conversation.TranscriptTurn{
		{Speaker: conversation.SpeakerUser, Text: user},
		{Speaker: conversation.SpeakerModel, Text: model},
	}
}

func TestStore_AppendPreservesOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.AppendTurns(ctx, "sess-1", "user-1", exchange("hi", "hello")); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := store.AppendTurns(ctx, "sess-1", "user-1", exchange("help me", "of course")); err != nil {
		t.Fatalf("second append failed: %v", err)
	}

	turns, err := store.ListBySession(ctx, "user-1", "sess-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(turns) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(turns))
	}
	wantTexts := []string{"hi", "hello", "help me", "of course"}
	for i, turn := range turns {
		if turn.Ordinal != i {
			t.Errorf("turn %d has ordinal %d", i, turn.Ordinal)
		}
		if turn.Text != wantTexts[i] {
			t.Errorf("turn %d: expected %q, got %q", i, wantTexts[i], turn.Text)
		}
	}
	if turns[0].Speaker != string(conversation.SpeakerUser) {
		t.Errorf("first turn should be the user, got %s", turns[0].Speaker)
	}
}

func TestStore_AppendEmptyIsNoop(t *testing.T) {
	store := newTestStore(t)
	if err := store.AppendTurns(context.Background(), "sess-1", "user-1", nil); err != nil {
		t.Fatalf("empty append failed: %v", err)
	}
	turns, err := store.ListBySession(context.Background(), "user-1", "sess-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("expected no turns, got %d", len(turns))
	}
}

func TestStore_ListScopedToUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.AppendTurns(ctx, "sess-1", "user-1", exchange("mine", "yes")); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	turns, err := store.ListBySession(ctx, "user-2", "sess-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(turns) != 0 {
		t.Error("another user must not read the transcript")
	}
}

func TestStore_ListSessions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.AppendTurns(ctx, "sess-1", "user-1", exchange("a", "b")); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := store.AppendTurns(ctx, "sess-1", "user-1", exchange("c", "d")); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := store.AppendTurns(ctx, "sess-2", "user-1", exchange("e", "f")); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := store.AppendTurns(ctx, "sess-3", "user-2", exchange("g", "h")); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	sessions, err := store.ListSessions(ctx, "user-1")
	if err != nil {
		t.Fatalf("list sessions failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	counts := map[string]int64{}
	for _, s := range sessions {
		counts[s.SessionID] = s.Turns
	}
	if counts["sess-1"] != 4 || counts["sess-2"] != 2 {
		t.Errorf("unexpected turn counts: %v", counts)
	}
}
