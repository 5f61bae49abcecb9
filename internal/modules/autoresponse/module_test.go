package autoresponse

import (
	"context"
	"testing"

	"warden/internal/storage"

	"go.uber.org/zap"
)

func newTestModule(t *testing.T) *Module {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return New(store, zap.NewNop())
}

func TestPlainTriggerMatchesWholeMessage(t *testing.T) {
	module := newTestModule(t)
	ctx := context.Background()
	if err := module.Add(ctx, "g1", "hello", "hi there", false); err != nil {
		t.Fatalf("add: %v", err)
	}

	if resp, ok := module.Match(ctx, "g1", "HELLO"); !ok || resp != "hi there" {
		t.Fatalf("match = (%q, %v), want case-insensitive hit", resp, ok)
	}
	if _, ok := module.Match(ctx, "g1", "hello everyone"); ok {
		t.Fatalf("plain trigger matched a substring")
	}
}

func TestRegexTriggerMatchesSubstring(t *testing.T) {
	module := newTestModule(t)
	ctx := context.Background()
	if err := module.Add(ctx, "g1", `server\s+ip`, "play.example.net", true); err != nil {
		t.Fatalf("add: %v", err)
	}

	if resp, ok := module.Match(ctx, "g1", "what is the Server IP please"); !ok || resp != "play.example.net" {
		t.Fatalf("match = (%q, %v), want regex hit", resp, ok)
	}
}

func TestInvalidRegexRejected(t *testing.T) {
	module := newTestModule(t)
	if err := module.Add(context.Background(), "g1", `[unclosed`, "x", true); err == nil {
		t.Fatalf("expected invalid pattern error")
	}
}

func TestDuplicateTriggerRejected(t *testing.T) {
	module := newTestModule(t)
	ctx := context.Background()
	if err := module.Add(ctx, "g1", "hello", "hi", false); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := module.Add(ctx, "g1", "hello", "other", false); err == nil {
		t.Fatalf("expected duplicate error")
	}
}

func TestRemoveInvalidatesCache(t *testing.T) {
	module := newTestModule(t)
	ctx := context.Background()
	_ = module.Add(ctx, "g1", "hello", "hi", false)

	if _, ok := module.Match(ctx, "g1", "hello"); !ok {
		t.Fatalf("expected match before remove")
	}
	removed, err := module.Remove(ctx, "g1", "hello")
	if err != nil || !removed {
		t.Fatalf("remove = (%v, %v)", removed, err)
	}
	if _, ok := module.Match(ctx, "g1", "hello"); ok {
		t.Fatalf("match survived remove")
	}
}

func TestGuildsIsolated(t *testing.T) {
	module := newTestModule(t)
	ctx := context.Background()
	_ = module.Add(ctx, "g1", "hello", "hi", false)

	if _, ok := module.Match(ctx, "g2", "hello"); ok {
		t.Fatalf("trigger leaked across guilds")
	}
}
