package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"warden/internal/analytics"
	"warden/internal/blacklist"
	"warden/internal/config"
	"warden/internal/modules/antiping"
	"warden/internal/modules/audit"
	"warden/internal/modules/autoresponse"
	"warden/internal/modules/warnings"
	"warden/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type Bot struct {
	cfg       config.Config
	logger    *zap.Logger
	store     *storage.Store
	audit     *audit.Logger
	analytics *analytics.Service
	session   *discordgo.Session

	registry blacklist.Registry
	enforcer *blacklist.Enforcer

	warnings     *warnings.Module
	antiping     *antiping.Module
	autoresponse *autoresponse.Module

	workflowMu sync.Mutex
	workflows  map[string]*blacklist.Workflow // keyed by intake thread ID
}

func New(cfg config.Config, logger *zap.Logger, store *storage.Store, auditLogger *audit.Logger, analyticsSvc *analytics.Service, registry blacklist.Registry, enforcer *blacklist.Enforcer) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildBans |
		discordgo.IntentsMessageContent |
		discordgo.IntentsDirectMessages

	b := &Bot{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		audit:     auditLogger,
		analytics: analyticsSvc,
		session:   session,
		registry:  registry,
		enforcer:  enforcer,
		workflows: make(map[string]*blacklist.Workflow),
	}

	b.warnings = warnings.New(store, auditLogger, cfg.Warnings.MaxBeforeKick)
	b.antiping = antiping.New(store, auditLogger, cfg.AntiPing.MuteMinutes)
	b.autoresponse = autoresponse.New(store, logger)

	if b.audit != nil {
		b.audit.SetNotifier(func(ctx context.Context, entry storage.AuditLog) {
			if !b.cfg.Notifications.AuditToChannel {
				return
			}
			b.notifyAudit(ctx, entry)
		})
	}

	return b, nil
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onGuildMemberAdd)
	b.session.AddHandler(b.onThreadCreate)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return err
	}

	return b.registerCommands()
}

func (b *Bot) Close(ctx context.Context) {
	_ = ctx
	if b.session != nil {
		_ = b.session.Close()
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready",
		zap.String("user", session.State.User.Username),
		zap.Int("guilds", len(event.Guilds)))
}

func (b *Bot) onMessageCreate(session *discordgo.Session, msg *discordgo.MessageCreate) {
	if msg.Author == nil || msg.Author.Bot {
		return
	}
	if msg.GuildID == "" {
		return
	}

	ctx := context.Background()
	if flagged, err := b.antiping.HandleMessage(ctx, session, msg, false); err != nil {
		b.logger.Warn("anti-ping check failed", zap.Error(err))
	} else if flagged {
		return
	}

	if response, ok := b.autoresponse.Match(ctx, msg.GuildID, msg.Content); ok {
		_, _ = session.ChannelMessageSend(msg.ChannelID, response)
	}
}

func (b *Bot) onGuildMemberAdd(session *discordgo.Session, event *discordgo.GuildMemberAdd) {
	if event.GuildID == "" || event.User == nil {
		return
	}

	ctx := context.Background()
	reason, banned := b.enforcer.Evaluate(ctx, event.User.ID)
	if !banned {
		return
	}

	if err := session.GuildBanCreateWithReason(event.GuildID, event.User.ID, reason, 0); err != nil {
		b.audit.Log(ctx, audit.LevelCrit, event.GuildID, event.User.ID, audit.EventActionFailed,
			"join enforcement ban failed: "+err.Error())
		return
	}
	b.audit.Log(ctx, audit.LevelCrit, event.GuildID, event.User.ID, audit.EventJoinEnforced, reason)
}

func (b *Bot) guildSettings(ctx context.Context, guildID string) storage.GuildSettings {
	defaults := storage.GuildSettings{
		GuildID:     guildID,
		LogChannel:  b.cfg.DefaultLogChannel,
		MaxWarnings: b.cfg.Warnings.MaxBeforeKick,
	}

	settings, err := b.store.GetGuildSettings(ctx, guildID, defaults)
	if err != nil {
		b.logger.Warn("guild settings fallback", zap.Error(err))
		return defaults
	}
	return settings
}

func (b *Bot) logChannel(ctx context.Context, guildID string) string {
	settings := b.guildSettings(ctx, guildID)
	if settings.LogChannel != "" {
		return settings.LogChannel
	}
	return b.cfg.DefaultLogChannel
}

func (b *Bot) notifyAudit(ctx context.Context, entry storage.AuditLog) {
	channelID := b.logChannel(ctx, entry.GuildID)
	if channelID == "" {
		return
	}

	userValue := "<@" + entry.UserID + ">"
	if entry.UserID == "" {
		userValue = "system"
	}
	color := b.cfg.Notifications.EmbedColors.Action
	if entry.Level == audit.LevelWarn {
		color = b.cfg.Notifications.EmbedColors.Warning
	} else if entry.Level == audit.LevelCrit {
		color = b.cfg.Notifications.EmbedColors.Error
	}

	embed := &discordgo.MessageEmbed{
		Title:     "Moderation log",
		Color:     color,
		Timestamp: entry.CreatedAt.Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Event", Value: entry.Event, Inline: true},
			{Name: "Level", Value: entry.Level, Inline: true},
			{Name: "User", Value: userValue, Inline: true},
			{Name: "Details", Value: entry.Details, Inline: false},
		},
	}
	_, _ = b.session.ChannelMessageSendEmbed(channelID, embed)
}

func (b *Bot) respond(session *discordgo.Session, interaction *discordgo.InteractionCreate, content string, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   flags,
		},
	})
}

func (b *Bot) respondEmbed(session *discordgo.Session, interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	if embed == nil {
		b.respond(session, interaction, "No response available.", ephemeral)
		return
	}
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  flags,
		},
	})
}

func (b *Bot) commandEmbed(title, description string, color int, fields []*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   time.Now().Format(time.RFC3339),
		Fields:      fields,
	}
}

// dmUser sends a best-effort direct message and reports delivery.
func (b *Bot) dmUser(userID, content string) bool {
	channel, err := b.session.UserChannelCreate(userID)
	if err != nil {
		return false
	}
	_, err = b.session.ChannelMessageSend(channel.ID, content)
	return err == nil
}

func (b *Bot) isAdmin(guildID, userID string) bool {
	guild, err := b.session.State.Guild(guildID)
	if err != nil || guild == nil {
		guild, _ = b.session.Guild(guildID)
	}
	if guild == nil {
		return false
	}
	if guild.OwnerID == userID {
		return true
	}

	member, err := b.session.State.Member(guildID, userID)
	if err != nil || member == nil {
		member, _ = b.session.GuildMember(guildID, userID)
	}
	if member == nil {
		return false
	}

	roleMap := make(map[string]*discordgo.Role, len(guild.Roles))
	for _, role := range guild.Roles {
		roleMap[role.ID] = role
	}
	perms := int64(0)
	for _, roleID := range member.Roles {
		if role := roleMap[roleID]; role != nil {
			perms |= role.Permissions
		}
	}
	return perms&discordgo.PermissionAdministrator != 0
}

func (b *Bot) trackWorkflow(threadID string, workflow *blacklist.Workflow) {
	b.workflowMu.Lock()
	b.workflows[threadID] = workflow
	b.workflowMu.Unlock()
}

func (b *Bot) workflowFor(threadID string) *blacklist.Workflow {
	b.workflowMu.Lock()
	defer b.workflowMu.Unlock()
	return b.workflows[threadID]
}

func mentionList(ids []string, byName map[string]string) string {
	if len(ids) == 0 {
		return "none"
	}
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if name := byName[id]; name != "" {
			names = append(names, name)
		} else {
			names = append(names, id)
		}
	}
	return strings.Join(names, ", ")
}

func formatReport(report analytics.Report) string {
	return fmt.Sprintf("Total: %d | INFO: %d | WARN: %d | CRIT: %d",
		report.Total,
		report.ByLevel[audit.LevelInfo],
		report.ByLevel[audit.LevelWarn],
		report.ByLevel[audit.LevelCrit])
}
