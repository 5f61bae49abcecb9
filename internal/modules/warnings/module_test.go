package warnings

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"warden/internal/modules/audit"
	"warden/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type failingTransport struct{}

func (failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return &http.Response{
		StatusCode: http.StatusForbidden,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(`{"message":"Missing Permissions"}`)),
	}, nil
}

// failingSession answers every REST call with a 403, so the threshold kick
// fails without reaching Discord.
func failingSession(t *testing.T) *discordgo.Session {
	t.Helper()
	session, err := discordgo.New("Bot test-token")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	session.Client.Transport = failingTransport{}
	return session
}

func newTestModule(t *testing.T, max int) (*Module, *storage.Store) {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return New(store, audit.NewLogger(store, zap.NewNop()), max), store
}

func TestWarnBelowThreshold(t *testing.T) {
	module, _ := newTestModule(t, 3)

	count, kicked, err := module.Warn(context.Background(), &discordgo.Session{}, "g1", "u1", "spam", true)
	if err != nil {
		t.Fatalf("warn: %v", err)
	}
	if count != 1 || kicked {
		t.Fatalf("warn = (%d, %v), want (1, false)", count, kicked)
	}
}

func TestWarnReachesThreshold(t *testing.T) {
	module, _ := newTestModule(t, 2)
	ctx := context.Background()

	if _, kicked, _ := module.Warn(ctx, &discordgo.Session{}, "g1", "u1", "first", true); kicked {
		t.Fatalf("kicked at first warning")
	}
	count, kicked, err := module.Warn(ctx, &discordgo.Session{}, "g1", "u1", "second", true)
	if err != nil {
		t.Fatalf("warn: %v", err)
	}
	if count != 2 || !kicked {
		t.Fatalf("warn = (%d, %v), want (2, true)", count, kicked)
	}
}

func TestWarnHonorsGuildThreshold(t *testing.T) {
	module, store := newTestModule(t, 5)
	ctx := context.Background()

	if err := store.UpsertGuildSettings(ctx, storage.GuildSettings{GuildID: "g1", MaxWarnings: 1}); err != nil {
		t.Fatalf("upsert settings: %v", err)
	}
	_, kicked, err := module.Warn(ctx, &discordgo.Session{}, "g1", "u1", "one strike", true)
	if err != nil {
		t.Fatalf("warn: %v", err)
	}
	if !kicked {
		t.Fatalf("expected kick at guild threshold of 1")
	}
}

func TestWarnKickFailureKeepsCount(t *testing.T) {
	module, _ := newTestModule(t, 1)
	ctx := context.Background()

	count, kicked, err := module.Warn(ctx, failingSession(t), "g1", "u1", "spam", false)
	if err == nil {
		t.Fatalf("expected kick error")
	}
	if count != 1 || kicked {
		t.Fatalf("warn = (%d, %v), want the recorded count and no kick", count, kicked)
	}

	warning, err := module.Count(ctx, "g1", "u1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if warning.CountTotal != 1 {
		t.Fatalf("count after failed kick = %d, want 1", warning.CountTotal)
	}
}

func TestClearWarnings(t *testing.T) {
	module, _ := newTestModule(t, 5)
	ctx := context.Background()

	_, _, _ = module.Warn(ctx, &discordgo.Session{}, "g1", "u1", "spam", true)
	cleared, err := module.Clear(ctx, "g1", "u1")
	if err != nil || !cleared {
		t.Fatalf("clear = (%v, %v), want (true, nil)", cleared, err)
	}
	warning, err := module.Count(ctx, "g1", "u1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if warning.CountTotal != 0 {
		t.Fatalf("count after clear = %d", warning.CountTotal)
	}

	cleared, err = module.Clear(ctx, "g1", "u1")
	if err != nil || cleared {
		t.Fatalf("clear with nothing stored = (%v, %v), want (false, nil)", cleared, err)
	}
}
