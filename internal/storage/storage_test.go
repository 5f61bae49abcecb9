package storage

import (
	"context"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestGuildSettingsDefaultsAndUpsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	settings, err := store.GetGuildSettings(ctx, "g1", GuildSettings{MaxWarnings: 5})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if settings.MaxWarnings != 5 || settings.AntiPingEnabled {
		t.Fatalf("unexpected defaults: %+v", settings)
	}

	settings.LogChannel = "c1"
	settings.AntiPingEnabled = true
	settings.MaxWarnings = 3
	if err := store.UpsertGuildSettings(ctx, settings); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := store.GetGuildSettings(ctx, "g1", GuildSettings{MaxWarnings: 5})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.LogChannel != "c1" || !got.AntiPingEnabled || got.MaxWarnings != 3 {
		t.Fatalf("unexpected settings: %+v", got)
	}
}

func TestWarningIncrementAndClear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		count, err := store.IncrementWarning(ctx, "g1", "u1", "spam")
		if err != nil {
			t.Fatalf("increment: %v", err)
		}
		if count != i {
			t.Fatalf("count = %d, want %d", count, i)
		}
	}

	warning, err := store.GetWarning(ctx, "g1", "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if warning.CountTotal != 3 || warning.LastReason != "spam" {
		t.Fatalf("unexpected warning: %+v", warning)
	}

	cleared, err := store.ClearWarnings(ctx, "g1", "u1")
	if err != nil || !cleared {
		t.Fatalf("clear = (%v, %v)", cleared, err)
	}
	warning, _ = store.GetWarning(ctx, "g1", "u1")
	if warning.CountTotal != 0 {
		t.Fatalf("count after clear = %d", warning.CountTotal)
	}
}

func TestWarningsIsolatedPerGuild(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, _ = store.IncrementWarning(ctx, "g1", "u1", "a")
	count, err := store.IncrementWarning(ctx, "g2", "u1", "b")
	if err != nil {
		t.Fatalf("increment: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, warnings leaked across guilds", count)
	}
}

func TestProtectedUsers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.AddProtectedUser(ctx, "g1", "u1"); err != nil {
		t.Fatalf("add: %v", err)
	}
	// Adding twice is a no-op, not an error.
	if err := store.AddProtectedUser(ctx, "g1", "u1"); err != nil {
		t.Fatalf("add twice: %v", err)
	}

	users, err := store.ListProtectedUsers(ctx, "g1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(users) != 1 || users[0] != "u1" {
		t.Fatalf("users = %v", users)
	}

	if err := store.RemoveProtectedUser(ctx, "g1", "u1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	users, _ = store.ListProtectedUsers(ctx, "g1")
	if len(users) != 0 {
		t.Fatalf("users after remove = %v", users)
	}
}

func TestAutoResponses(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	inserted, err := store.AddAutoResponse(ctx, AutoResponse{GuildID: "g1", Trigger: "hi", Response: "hello"})
	if err != nil || !inserted {
		t.Fatalf("add = (%v, %v)", inserted, err)
	}
	inserted, err = store.AddAutoResponse(ctx, AutoResponse{GuildID: "g1", Trigger: "hi", Response: "other"})
	if err != nil || inserted {
		t.Fatalf("duplicate add = (%v, %v), want (false, nil)", inserted, err)
	}

	responses, err := store.ListAutoResponses(ctx, "g1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(responses) != 1 || responses[0].Response != "hello" {
		t.Fatalf("responses = %+v", responses)
	}

	removed, err := store.RemoveAutoResponse(ctx, "g1", "hi")
	if err != nil || !removed {
		t.Fatalf("remove = (%v, %v)", removed, err)
	}
}

func TestAuditLogsSinceFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	old := AuditLog{GuildID: "g1", UserID: "u1", Level: "INFO", Event: "warn", Details: "old", CreatedAt: now.Add(-48 * time.Hour)}
	recent := AuditLog{GuildID: "g1", UserID: "u1", Level: "WARN", Event: "ban", Details: "recent", CreatedAt: now}
	if err := store.AddAuditLog(ctx, old); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := store.AddAuditLog(ctx, recent); err != nil {
		t.Fatalf("add: %v", err)
	}

	logs, err := store.ListAuditLogs(ctx, "g1", now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(logs) != 1 || logs[0].Event != "ban" {
		t.Fatalf("logs = %+v, want only the recent entry", logs)
	}
}
