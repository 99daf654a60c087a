package front

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func testHistory(t *testing.T) *History {
	t.Helper()
	h, err := NewHistory(filepath.Join(t.TempDir(), "sessions.db"), testLogger())
	if err != nil {
		t.Fatalf("NewHistory: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func TestHistory_AppendAndMessages(t *testing.T) {
	h := testHistory(t)
	ctx := context.Background()

	if err := h.Append(ctx, "s1", "user", "hello"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := h.Append(ctx, "s1", "assistant", "hi"); err != nil {
		t.Fatalf("Append: %v", err)
	}

	entries, err := h.Messages(ctx, "s1")
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Role != "user" || entries[0].Content != "hello" {
		t.Errorf("entries[0] = %+v", entries[0])
	}
	if entries[1].Role != "assistant" || entries[1].Content != "hi" {
		t.Errorf("entries[1] = %+v", entries[1])
	}
}

func TestHistory_TrimsToNewestEntries(t *testing.T) {
	h := testHistory(t)
	ctx := context.Background()

	for i := 1; i <= historyLimit+3; i++ {
		if err := h.Append(ctx, "s1", "user", fmt.Sprintf("message %d", i)); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	entries, err := h.Messages(ctx, "s1")
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(entries) != historyLimit {
		t.Fatalf("got %d entries, want %d", len(entries), historyLimit)
	}
	if entries[0].Content != "message 4" {
		t.Errorf("oldest surviving entry = %q, want \"message 4\"", entries[0].Content)
	}
	if entries[len(entries)-1].Content != fmt.Sprintf("message %d", historyLimit+3) {
		t.Errorf("newest entry = %q", entries[len(entries)-1].Content)
	}
}

func TestHistory_SessionsAreIsolated(t *testing.T) {
	h := testHistory(t)
	ctx := context.Background()

	if err := h.Append(ctx, "a", "user", "for a"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := h.Append(ctx, "b", "user", "for b"); err != nil {
		t.Fatalf("Append: %v", err)
	}

	entries, err := h.Messages(ctx, "a")
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(entries) != 1 || entries[0].Content != "for a" {
		t.Errorf("session a = %+v", entries)
	}
}

func TestHistory_Reset(t *testing.T) {
	h := testHistory(t)
	ctx := context.Background()

	if err := h.Append(ctx, "s1", "user", "hello"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := h.Reset(ctx, "s1"); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	entries, err := h.Messages(ctx, "s1")
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("got %d entries after reset, want 0", len(entries))
	}

	if err := h.Reset(ctx, "never-seen"); err != nil {
		t.Errorf("Reset on an unknown session: %v", err)
	}
}
