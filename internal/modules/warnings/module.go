package warnings

import (
	"context"
	"fmt"

	"warden/internal/modules/audit"
	"warden/internal/storage"

	"github.com/bwmarrin/discordgo"
)

// Module tracks moderator warnings per user and kicks once a guild's
// threshold is reached. Counts survive restarts; clearing is explicit.
type Module struct {
	store      *storage.Store
	audit      *audit.Logger
	maxDefault int
}

func New(store *storage.Store, auditLogger *audit.Logger, maxBeforeKick int) *Module {
	if maxBeforeKick <= 0 {
		maxBeforeKick = 5
	}
	return &Module{store: store, audit: auditLogger, maxDefault: maxBeforeKick}
}

// Warn records one warning and reports the new count plus whether the user
// was kicked for crossing the guild threshold. The kick itself is skipped in
// auditOnly mode but the count still advances.
func (m *Module) Warn(ctx context.Context, session *discordgo.Session, guildID, userID, reason string, auditOnly bool) (int, bool, error) {
	count, err := m.store.IncrementWarning(ctx, guildID, userID, reason)
	if err != nil {
		return 0, false, err
	}

	threshold := m.threshold(ctx, guildID)
	m.audit.Log(ctx, audit.LevelWarn, guildID, userID, audit.EventWarn,
		fmt.Sprintf("warning %d/%d: %s", count, threshold, reason))

	if count < threshold {
		return count, false, nil
	}

	if !auditOnly {
		if err := session.GuildMemberDeleteWithReason(guildID, userID, fmt.Sprintf("reached %d warnings", count)); err != nil {
			m.audit.Log(ctx, audit.LevelCrit, guildID, userID, audit.EventActionFailed,
				"kick after warning threshold failed: "+err.Error())
			return count, false, err
		}
	}
	m.audit.Log(ctx, audit.LevelCrit, guildID, userID, audit.EventWarnKick,
		fmt.Sprintf("kicked at %d warnings", count))
	return count, true, nil
}

func (m *Module) Count(ctx context.Context, guildID, userID string) (storage.Warning, error) {
	return m.store.GetWarning(ctx, guildID, userID)
}

func (m *Module) Clear(ctx context.Context, guildID, userID string) (bool, error) {
	return m.store.ClearWarnings(ctx, guildID, userID)
}

func (m *Module) threshold(ctx context.Context, guildID string) int {
	settings, err := m.store.GetGuildSettings(ctx, guildID, storage.GuildSettings{MaxWarnings: m.maxDefault})
	if err != nil || settings.MaxWarnings <= 0 {
		return m.maxDefault
	}
	return settings.MaxWarnings
}
