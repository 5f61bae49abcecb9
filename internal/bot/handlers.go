package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"warden/internal/modules/audit"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	ctx := context.Background()

	if interaction.Type == discordgo.InteractionMessageComponent {
		b.handleBlacklistComponent(ctx, session, interaction)
		return
	}
	if interaction.Type != discordgo.InteractionApplicationCommand {
		return
	}
	if interaction.GuildID == "" {
		b.respond(session, interaction, "This command only works inside a server.", true)
		return
	}

	data := interaction.ApplicationCommandData()
	switch data.Name {
	case "warn":
		b.handleWarn(ctx, session, interaction, data.Options)
	case "warnings":
		b.handleWarnings(ctx, session, interaction, data.Options)
	case "clear_warnings":
		b.handleClearWarnings(ctx, session, interaction, data.Options)
	case "ban":
		b.handleBan(ctx, session, interaction, data.Options)
	case "kick":
		b.handleKick(ctx, session, interaction, data.Options)
	case "mute":
		b.handleMute(ctx, session, interaction, data.Options)
	case "purge":
		b.handlePurge(ctx, session, interaction, data.Options)
	case "lock":
		b.handleLock(ctx, session, interaction, true)
	case "unlock":
		b.handleLock(ctx, session, interaction, false)
	case "antiping":
		b.handleAntiPing(ctx, session, interaction, data.Options)
	case "autoresponse":
		b.handleAutoResponse(ctx, session, interaction, data.Options)
	case "logchannel":
		b.handleLogChannel(ctx, session, interaction, data.Options)
	case "report":
		b.handleReport(ctx, session, interaction, data.Options)
	}
}

func optionMap(options []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	out := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(options))
	for _, option := range options {
		out[option.Name] = option
	}
	return out
}

func (b *Bot) handleWarn(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	opts := optionMap(options)
	user := opts["user"].UserValue(session)
	reason := opts["reason"].StringValue()

	dmDelivered := b.dmUser(user.ID, "You have received a warning.\nReason: "+reason)

	count, kicked, err := b.warnings.Warn(ctx, session, interaction.GuildID, user.ID, reason, false)
	if err != nil {
		b.logger.Warn("warn failed", zap.Error(err))
		// A non-zero count means the warning row was written and only the
		// threshold kick failed.
		if count > 0 {
			b.respond(session, interaction,
				fmt.Sprintf("The warning was recorded (%d total) but the kick failed: %s", count, err), true)
		} else {
			b.respond(session, interaction, "Could not record the warning.", true)
		}
		return
	}

	description := fmt.Sprintf("<@%s> has been warned (%d total).", user.ID, count)
	if kicked {
		description = fmt.Sprintf("<@%s> reached %d warnings and was kicked.", user.ID, count)
	}
	if !dmDelivered {
		description += " The user could not be notified by DM."
	}
	b.respondEmbed(session, interaction, b.commandEmbed("Warning", description, b.cfg.Notifications.EmbedColors.Warning, nil), false)
}

func (b *Bot) handleWarnings(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	opts := optionMap(options)
	user := opts["user"].UserValue(session)

	warning, err := b.warnings.Count(ctx, interaction.GuildID, user.ID)
	if err != nil {
		b.respond(session, interaction, "Could not look up warnings.", true)
		return
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "User", Value: "<@" + user.ID + ">", Inline: true},
		{Name: "Warnings", Value: fmt.Sprintf("%d", warning.CountTotal), Inline: true},
	}
	if warning.LastReason != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Last reason", Value: warning.LastReason, Inline: false})
	}
	b.respondEmbed(session, interaction, b.commandEmbed("Warnings", "", b.cfg.Notifications.EmbedColors.Action, fields), true)
}

func (b *Bot) handleClearWarnings(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	opts := optionMap(options)
	user := opts["user"].UserValue(session)

	cleared, err := b.warnings.Clear(ctx, interaction.GuildID, user.ID)
	if err != nil {
		b.respond(session, interaction, "Could not clear warnings.", true)
		return
	}
	if !cleared {
		b.respond(session, interaction, "That user has no warnings.", true)
		return
	}
	b.respondEmbed(session, interaction, b.commandEmbed("Warnings cleared",
		"Warnings for <@"+user.ID+"> have been cleared.", b.cfg.Notifications.EmbedColors.Action, nil), false)
}

func (b *Bot) handleBan(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	opts := optionMap(options)
	user := opts["user"].UserValue(session)
	reason := "No reason provided"
	if opt, ok := opts["reason"]; ok {
		reason = opt.StringValue()
	}

	// DM before the ban: once banned the user is unreachable.
	dmDelivered := b.dmUser(user.ID, "You have been banned.\nReason: "+reason)

	if err := session.GuildBanCreateWithReason(interaction.GuildID, user.ID, reason, 0); err != nil {
		b.audit.Log(ctx, audit.LevelWarn, interaction.GuildID, user.ID, audit.EventActionFailed, "ban failed: "+err.Error())
		b.respond(session, interaction, "Ban failed: "+err.Error(), true)
		return
	}
	b.audit.Log(ctx, audit.LevelCrit, interaction.GuildID, user.ID, audit.EventBan, reason)
	description := fmt.Sprintf("<@%s> has been banned. Reason: %s", user.ID, reason)
	if !dmDelivered {
		description += " The user could not be notified by DM."
	}
	b.respondEmbed(session, interaction, b.commandEmbed("Ban", description, b.cfg.Notifications.EmbedColors.Error, nil), false)
}

func (b *Bot) handleKick(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	opts := optionMap(options)
	user := opts["user"].UserValue(session)
	reason := "No reason provided"
	if opt, ok := opts["reason"]; ok {
		reason = opt.StringValue()
	}
	if b.isAdmin(interaction.GuildID, user.ID) {
		b.respond(session, interaction, "Administrators cannot be kicked.", true)
		return
	}

	if err := session.GuildMemberDeleteWithReason(interaction.GuildID, user.ID, reason); err != nil {
		b.audit.Log(ctx, audit.LevelWarn, interaction.GuildID, user.ID, audit.EventActionFailed, "kick failed: "+err.Error())
		b.respond(session, interaction, "Kick failed: "+err.Error(), true)
		return
	}
	b.audit.Log(ctx, audit.LevelWarn, interaction.GuildID, user.ID, audit.EventKick, reason)
	b.respondEmbed(session, interaction, b.commandEmbed("Kick",
		fmt.Sprintf("<@%s> has been kicked. Reason: %s", user.ID, reason), b.cfg.Notifications.EmbedColors.Warning, nil), false)
}

func (b *Bot) handleMute(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	opts := optionMap(options)
	user := opts["user"].UserValue(session)
	minutes := int64(b.cfg.AntiPing.MuteMinutes)
	if opt, ok := opts["minutes"]; ok {
		minutes = opt.IntValue()
	}
	if minutes <= 0 {
		minutes = 5
	}

	until := time.Now().Add(time.Duration(minutes) * time.Minute)
	if err := session.GuildMemberTimeout(interaction.GuildID, user.ID, &until); err != nil {
		b.audit.Log(ctx, audit.LevelWarn, interaction.GuildID, user.ID, audit.EventActionFailed, "mute failed: "+err.Error())
		b.respond(session, interaction, "Mute failed: "+err.Error(), true)
		return
	}
	b.audit.Log(ctx, audit.LevelWarn, interaction.GuildID, user.ID, audit.EventMute, fmt.Sprintf("minutes=%d", minutes))
	b.respondEmbed(session, interaction, b.commandEmbed("Mute",
		fmt.Sprintf("<@%s> has been muted for %d minutes.", user.ID, minutes), b.cfg.Notifications.EmbedColors.Warning, nil), false)
}

func (b *Bot) handlePurge(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	opts := optionMap(options)
	count := int(opts["count"].IntValue())
	if count < 1 {
		count = 1
	}
	if count > 100 {
		count = 100
	}

	messages, err := session.ChannelMessages(interaction.ChannelID, count, "", "", "")
	if err != nil {
		b.respond(session, interaction, "Could not fetch messages.", true)
		return
	}
	ids := make([]string, 0, len(messages))
	for _, msg := range messages {
		ids = append(ids, msg.ID)
	}
	if err := session.ChannelMessagesBulkDelete(interaction.ChannelID, ids); err != nil {
		b.audit.Log(ctx, audit.LevelWarn, interaction.GuildID, "", audit.EventActionFailed, "purge failed: "+err.Error())
		b.respond(session, interaction, "Purge failed: "+err.Error(), true)
		return
	}

	b.audit.Log(ctx, audit.LevelInfo, interaction.GuildID, interactionUserID(interaction), audit.EventPurge,
		fmt.Sprintf("deleted %d messages in channel %s", len(ids), interaction.ChannelID))
	b.respond(session, interaction, fmt.Sprintf("Deleted %d messages.", len(ids)), true)
}

func (b *Bot) handleLock(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, lock bool) {
	var err error
	if lock {
		err = session.ChannelPermissionSet(interaction.ChannelID, interaction.GuildID,
			discordgo.PermissionOverwriteTypeRole, 0, discordgo.PermissionSendMessages)
	} else {
		err = session.ChannelPermissionDelete(interaction.ChannelID, interaction.GuildID)
	}
	if err != nil {
		b.respond(session, interaction, "Could not update channel permissions: "+err.Error(), true)
		return
	}

	verb := "locked"
	if !lock {
		verb = "unlocked"
	}
	b.audit.Log(ctx, audit.LevelInfo, interaction.GuildID, interactionUserID(interaction), audit.EventChannelLock,
		fmt.Sprintf("channel %s %s", interaction.ChannelID, verb))
	b.respondEmbed(session, interaction, b.commandEmbed("Channel "+verb,
		"<#"+interaction.ChannelID+"> has been "+verb+".", b.cfg.Notifications.EmbedColors.Action, nil), false)
}

func (b *Bot) handleAntiPing(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if len(options) == 0 {
		b.respond(session, interaction, "Missing subcommand.", true)
		return
	}
	sub := options[0]

	switch sub.Name {
	case "add":
		user := optionMap(sub.Options)["user"].UserValue(session)
		if err := b.antiping.Protect(ctx, interaction.GuildID, user.ID); err != nil {
			b.respond(session, interaction, "Could not protect that user.", true)
			return
		}
		b.respond(session, interaction, "<@"+user.ID+"> is now protected from pings.", true)
	case "remove":
		user := optionMap(sub.Options)["user"].UserValue(session)
		if err := b.antiping.Unprotect(ctx, interaction.GuildID, user.ID); err != nil {
			b.respond(session, interaction, "Could not unprotect that user.", true)
			return
		}
		b.respond(session, interaction, "<@"+user.ID+"> is no longer protected.", true)
	case "toggle":
		enabled := optionMap(sub.Options)["enabled"].BoolValue()
		settings := b.guildSettings(ctx, interaction.GuildID)
		settings.AntiPingEnabled = enabled
		if err := b.store.UpsertGuildSettings(ctx, settings); err != nil {
			b.respond(session, interaction, "Could not update the setting.", true)
			return
		}
		state := "disabled"
		if enabled {
			state = "enabled"
		}
		b.respond(session, interaction, "Anti-ping is now "+state+".", true)
	case "list":
		users, err := b.antiping.Protected(ctx, interaction.GuildID)
		if err != nil {
			b.respond(session, interaction, "Could not list protected users.", true)
			return
		}
		if len(users) == 0 {
			b.respond(session, interaction, "No protected users.", true)
			return
		}
		mentions := make([]string, 0, len(users))
		for _, id := range users {
			mentions = append(mentions, "<@"+id+">")
		}
		b.respond(session, interaction, "Protected users: "+strings.Join(mentions, ", "), true)
	}
}

func (b *Bot) handleAutoResponse(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if len(options) == 0 {
		b.respond(session, interaction, "Missing subcommand.", true)
		return
	}
	sub := options[0]

	switch sub.Name {
	case "create":
		opts := optionMap(sub.Options)
		trigger := opts["trigger"].StringValue()
		response := opts["response"].StringValue()
		isRegex := false
		if opt, ok := opts["regex"]; ok {
			isRegex = opt.BoolValue()
		}
		if err := b.autoresponse.Add(ctx, interaction.GuildID, trigger, response, isRegex); err != nil {
			b.respond(session, interaction, "Could not create the trigger: "+err.Error(), true)
			return
		}
		b.respond(session, interaction, "Trigger created.", true)
	case "remove":
		trigger := optionMap(sub.Options)["trigger"].StringValue()
		removed, err := b.autoresponse.Remove(ctx, interaction.GuildID, trigger)
		if err != nil {
			b.respond(session, interaction, "Could not remove the trigger.", true)
			return
		}
		if !removed {
			b.respond(session, interaction, "No such trigger.", true)
			return
		}
		b.respond(session, interaction, "Trigger removed.", true)
	case "list":
		responses, err := b.autoresponse.List(ctx, interaction.GuildID)
		if err != nil {
			b.respond(session, interaction, "Could not list triggers.", true)
			return
		}
		if len(responses) == 0 {
			b.respond(session, interaction, "No triggers configured.", true)
			return
		}
		var lines []string
		for _, ar := range responses {
			kind := "plain"
			if ar.IsRegex {
				kind = "regex"
			}
			lines = append(lines, fmt.Sprintf("`%s` (%s) -> %s", ar.Trigger, kind, ar.Response))
		}
		b.respond(session, interaction, strings.Join(lines, "\n"), true)
	}
}

func (b *Bot) handleLogChannel(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	settings := b.guildSettings(ctx, interaction.GuildID)
	if len(options) == 0 {
		value := settings.LogChannel
		if value == "" {
			value = "not set"
		} else {
			value = "<#" + value + ">"
		}
		b.respond(session, interaction, "Current log channel: "+value, true)
		return
	}

	channel := options[0].ChannelValue(session)
	if channel == nil {
		b.respond(session, interaction, "Could not resolve that channel.", true)
		return
	}
	settings.LogChannel = channel.ID
	if err := b.store.UpsertGuildSettings(ctx, settings); err != nil {
		b.respond(session, interaction, "Could not update the log channel.", true)
		return
	}
	b.respond(session, interaction, "Log channel set to <#"+channel.ID+">.", true)
}

func (b *Bot) handleReport(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	period := "day"
	if len(options) > 0 {
		period = options[0].StringValue()
	}
	start := time.Now().Add(-24 * time.Hour)
	if period == "week" {
		start = time.Now().Add(-7 * 24 * time.Hour)
	}

	report, err := b.analytics.Report(ctx, interaction.GuildID, start)
	if err != nil {
		b.respond(session, interaction, "Could not build the report.", true)
		return
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Summary", Value: formatReport(report), Inline: false},
	}
	for event, count := range report.ByEvent {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name: event, Value: fmt.Sprintf("%d", count), Inline: true,
		})
	}
	b.respondEmbed(session, interaction, b.commandEmbed("Moderation report ("+period+")", "",
		b.cfg.Notifications.EmbedColors.Action, fields), true)
}
