package antiping

import (
	"context"
	"fmt"
	"sync"
	"time"

	"warden/internal/modules/audit"
	"warden/internal/storage"

	"github.com/bwmarrin/discordgo"
)

// Module shields a configured set of users from direct pings. When enabled
// for a guild, a message mentioning a protected user is deleted and its
// author timed out.
type Module struct {
	store       *storage.Store
	audit       *audit.Logger
	muteMinutes int

	mu    sync.Mutex
	cache map[string]map[string]bool // guildID -> protected user IDs
}

func New(store *storage.Store, auditLogger *audit.Logger, muteMinutes int) *Module {
	if muteMinutes <= 0 {
		muteMinutes = 5
	}
	return &Module{
		store:       store,
		audit:       auditLogger,
		muteMinutes: muteMinutes,
		cache:       make(map[string]map[string]bool),
	}
}

// HandleMessage reports whether the message pinged a protected user. The
// protected users themselves can ping each other freely.
func (m *Module) HandleMessage(ctx context.Context, session *discordgo.Session, msg *discordgo.MessageCreate, auditOnly bool) (bool, error) {
	if len(msg.Mentions) == 0 {
		return false, nil
	}

	settings, err := m.store.GetGuildSettings(ctx, msg.GuildID, storage.GuildSettings{})
	if err != nil || !settings.AntiPingEnabled {
		return false, err
	}

	protected, err := m.protectedSet(ctx, msg.GuildID)
	if err != nil {
		return false, err
	}
	if protected[msg.Author.ID] {
		return false, nil
	}

	var pinged string
	for _, mention := range msg.Mentions {
		if protected[mention.ID] && mention.ID != msg.Author.ID {
			pinged = mention.ID
			break
		}
	}
	if pinged == "" {
		return false, nil
	}

	m.audit.Log(ctx, audit.LevelWarn, msg.GuildID, msg.Author.ID, audit.EventAntiPing,
		"pinged protected user "+pinged)

	if !auditOnly {
		_ = session.ChannelMessageDelete(msg.ChannelID, msg.ID)
		until := time.Now().Add(time.Duration(m.muteMinutes) * time.Minute)
		if err := session.GuildMemberTimeout(msg.GuildID, msg.Author.ID, &until); err != nil {
			m.audit.Log(ctx, audit.LevelCrit, msg.GuildID, msg.Author.ID, audit.EventActionFailed,
				"anti-ping timeout failed: "+err.Error())
		}
		_, _ = session.ChannelMessageSend(msg.ChannelID, fmt.Sprintf(
			"<@%s>, pinging <@%s> is not allowed. You have been muted for %d minutes.",
			msg.Author.ID, pinged, m.muteMinutes))
	}
	return true, nil
}

func (m *Module) Protect(ctx context.Context, guildID, userID string) error {
	if err := m.store.AddProtectedUser(ctx, guildID, userID); err != nil {
		return err
	}
	m.invalidate(guildID)
	return nil
}

func (m *Module) Unprotect(ctx context.Context, guildID, userID string) error {
	if err := m.store.RemoveProtectedUser(ctx, guildID, userID); err != nil {
		return err
	}
	m.invalidate(guildID)
	return nil
}

func (m *Module) Protected(ctx context.Context, guildID string) ([]string, error) {
	return m.store.ListProtectedUsers(ctx, guildID)
}

func (m *Module) protectedSet(ctx context.Context, guildID string) (map[string]bool, error) {
	m.mu.Lock()
	if set, ok := m.cache[guildID]; ok {
		m.mu.Unlock()
		return set, nil
	}
	m.mu.Unlock()

	users, err := m.store.ListProtectedUsers(ctx, guildID)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(users))
	for _, id := range users {
		set[id] = true
	}

	m.mu.Lock()
	m.cache[guildID] = set
	m.mu.Unlock()
	return set, nil
}

func (m *Module) invalidate(guildID string) {
	m.mu.Lock()
	delete(m.cache, guildID)
	m.mu.Unlock()
}
