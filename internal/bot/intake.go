package bot

import (
	"context"
	"errors"
	"strings"
	"time"

	"warden/internal/blacklist"
	"warden/internal/modules/audit"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	confirmPrefix = "blacklist_confirm:"
	cancelPrefix  = "blacklist_cancel:"
)

// onThreadCreate watches the intake forum. Each new thread is expected to
// carry one ban application in its starter message.
func (b *Bot) onThreadCreate(session *discordgo.Session, event *discordgo.ThreadCreate) {
	if event.Channel == nil || event.GuildID == "" {
		return
	}
	if !b.isIntakeThread(session, event.Channel) {
		return
	}

	starter := b.starterMessage(session, event.ID)
	if starter == nil || starter.Author == nil {
		b.logger.Warn("intake thread without starter message", zap.String("thread_id", event.ID))
		return
	}

	request, ok := blacklist.Parse(starter.Content)
	if !ok {
		_, _ = session.ChannelMessageSend(event.ID,
			"This request could not be read. Please use the following format:\n```\n"+blacklist.Format+"\n```")
		return
	}
	request.RequestedBy = starter.Author.ID

	workflow := blacklist.NewWorkflow(request, b.registry, newSessionDirectory(session), blacklist.WorkflowConfig{
		AuthorizedUsers:    b.cfg.Blacklist.AuthorizedUsers,
		CancelRequiresAuth: b.cfg.Blacklist.CancelRequiresAuth,
	}, b.logger)
	b.trackWorkflow(event.ID, workflow)

	embed := b.requestEmbed(session, request)
	_, err := session.ChannelMessageSendComplex(event.ID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{embed},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{
						Label:    "Confirm blacklist",
						Style:    discordgo.DangerButton,
						CustomID: confirmPrefix + event.ID,
					},
					discordgo.Button{
						Label:    "Cancel",
						Style:    discordgo.SecondaryButton,
						CustomID: cancelPrefix + event.ID,
					},
				},
			},
		},
	})
	if err != nil {
		b.logger.Error("intake prompt failed", zap.String("thread_id", event.ID), zap.Error(err))
	}
}

// isIntakeThread accepts threads under the configured intake channel, or any
// forum channel when no intake channel is pinned down.
func (b *Bot) isIntakeThread(session *discordgo.Session, thread *discordgo.Channel) bool {
	if thread.ParentID == "" {
		return false
	}
	if b.cfg.Blacklist.IntakeChannelID != "" {
		return thread.ParentID == b.cfg.Blacklist.IntakeChannelID
	}

	parent, err := session.State.Channel(thread.ParentID)
	if err != nil || parent == nil {
		parent, err = session.Channel(thread.ParentID)
		if err != nil || parent == nil {
			return false
		}
	}
	return parent.Type == discordgo.ChannelTypeGuildForum
}

// starterMessage fetches the thread's first message. It shares the thread's
// ID but can lag the thread-create event, so a short retry is needed.
func (b *Bot) starterMessage(session *discordgo.Session, threadID string) *discordgo.Message {
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Second)
		}
		msg, err := session.ChannelMessage(threadID, threadID)
		if err == nil && msg != nil {
			return msg
		}
	}
	return nil
}

func (b *Bot) requestEmbed(session *discordgo.Session, request blacklist.Request) *discordgo.MessageEmbed {
	fields := []*discordgo.MessageEmbedField{
		{Name: "User", Value: request.DisplayName + " (" + request.UserID + ")", Inline: true},
		{Name: "Requested by", Value: "<@" + request.RequestedBy + ">", Inline: true},
	}
	// Cache-only lookup: the authoritative sweep happens on confirm.
	var known []string
	for _, guild := range session.State.Guilds {
		if guild == nil {
			continue
		}
		if member, err := session.State.Member(guild.ID, request.UserID); err == nil && member != nil {
			known = append(known, guild.Name)
		}
	}
	if len(known) > 0 {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Known servers", Value: strings.Join(known, ", "), Inline: false})
	}
	if request.MCUsername != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Minecraft username", Value: request.MCUsername, Inline: true})
	}
	if request.MCUUID != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Minecraft UUID", Value: request.MCUUID, Inline: true})
	}
	fields = append(fields, &discordgo.MessageEmbedField{Name: "Reason", Value: request.Reason, Inline: false})

	return &discordgo.MessageEmbed{
		Title:       "Blacklist request",
		Description: "Review the request and confirm to ban the user across all connected servers.",
		Color:       b.cfg.Notifications.EmbedColors.Warning,
		Timestamp:   time.Now().Format(time.RFC3339),
		Fields:      fields,
	}
}

func (b *Bot) handleBlacklistComponent(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	customID := interaction.MessageComponentData().CustomID
	var threadID string
	confirm := false
	switch {
	case strings.HasPrefix(customID, confirmPrefix):
		threadID = strings.TrimPrefix(customID, confirmPrefix)
		confirm = true
	case strings.HasPrefix(customID, cancelPrefix):
		threadID = strings.TrimPrefix(customID, cancelPrefix)
	default:
		return
	}

	workflow := b.workflowFor(threadID)
	if workflow == nil {
		b.respond(session, interaction, "This request is no longer tracked. It may predate the last restart.", true)
		return
	}

	actorID := interactionUserID(interaction)
	if confirm {
		b.confirmBlacklist(ctx, session, interaction, workflow, actorID)
		return
	}
	b.cancelBlacklist(ctx, session, interaction, workflow, actorID)
}

func (b *Bot) confirmBlacklist(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, workflow *blacklist.Workflow, actorID string) {
	// Propagation can take a while across many guilds, so acknowledge the
	// click first and edit the prompt when the sweep is done.
	err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	})
	if err != nil {
		b.logger.Warn("interaction ack failed", zap.Error(err))
	}

	result, err := workflow.Confirm(ctx, actorID)
	if errors.Is(err, blacklist.ErrNotAuthorized) {
		b.followupEphemeral(session, interaction, "You are not authorized to confirm blacklist requests.")
		b.audit.Log(ctx, audit.LevelWarn, interaction.GuildID, actorID, audit.EventBlacklistDenied,
			"unauthorized confirm for user "+workflow.Request().UserID)
		return
	}
	if errors.Is(err, blacklist.ErrAlreadyDecided) {
		b.followupEphemeral(session, interaction, "This request has already been decided.")
		return
	}
	if err != nil {
		b.audit.Log(ctx, audit.LevelCrit, interaction.GuildID, workflow.Request().UserID, audit.EventBlacklistFailed, err.Error())
		b.editPrompt(session, interaction, b.commandEmbed("Blacklist failed",
			"The registry rejected the submission: "+err.Error(),
			b.cfg.Notifications.EmbedColors.Error, nil))
		return
	}

	names := make(map[string]string)
	for _, guild := range session.State.Guilds {
		if guild != nil {
			names[guild.ID] = guild.Name
		}
	}
	dmStatus := "delivered"
	if !result.DMDelivered {
		dmStatus = "not delivered"
	}
	fields := []*discordgo.MessageEmbedField{
		{Name: "Removed from", Value: mentionList(result.Removed, names), Inline: false},
		{Name: "Not a member of", Value: mentionList(result.Absent, names), Inline: false},
		{Name: "Failed", Value: mentionList(result.Failed, names), Inline: false},
		{Name: "DM", Value: dmStatus, Inline: true},
	}
	b.editPrompt(session, interaction, b.commandEmbed("Blacklist confirmed",
		"User "+workflow.Request().DisplayName+" ("+result.UserID+") has been blacklisted.",
		b.cfg.Notifications.EmbedColors.Error, fields))

	b.audit.Log(ctx, audit.LevelCrit, interaction.GuildID, result.UserID, audit.EventBlacklistConfirm,
		"confirmed by "+actorID+": "+workflow.Request().Reason)
}

func (b *Bot) cancelBlacklist(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, workflow *blacklist.Workflow, actorID string) {
	err := workflow.Cancel(actorID)
	if errors.Is(err, blacklist.ErrNotAuthorized) {
		b.respond(session, interaction, "You are not authorized to cancel blacklist requests.", true)
		return
	}
	if errors.Is(err, blacklist.ErrAlreadyDecided) {
		b.respond(session, interaction, "This request has already been decided.", true)
		return
	}

	embed := b.commandEmbed("Blacklist cancelled",
		"The request for "+workflow.Request().DisplayName+" ("+workflow.Request().UserID+") was cancelled.",
		b.cfg.Notifications.EmbedColors.Action, nil)
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{embed},
			Components: []discordgo.MessageComponent{},
		},
	})

	b.audit.Log(ctx, audit.LevelInfo, interaction.GuildID, workflow.Request().UserID, audit.EventBlacklistCancel,
		"cancelled by "+actorID)
}

// editPrompt replaces the original confirm/cancel prompt after a deferred
// acknowledgement, dropping the buttons so the decision cannot be repeated
// from the UI.
func (b *Bot) editPrompt(session *discordgo.Session, interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	_, err := session.InteractionResponseEdit(interaction.Interaction, &discordgo.WebhookEdit{
		Embeds:     &[]*discordgo.MessageEmbed{embed},
		Components: &[]discordgo.MessageComponent{},
	})
	if err == nil {
		return
	}
	b.logger.Warn("prompt edit failed", zap.Error(err))
	if interaction.Message != nil {
		_, sendErr := session.ChannelMessageSendEmbed(interaction.Message.ChannelID, embed)
		if sendErr == nil {
			return
		}
		b.logger.Error("prompt fallback failed", zap.Error(sendErr))
		err = sendErr
	}
	b.followupEphemeral(session, interaction, "The request was decided, but the outcome could not be posted: "+err.Error())
}

func (b *Bot) followupEphemeral(session *discordgo.Session, interaction *discordgo.InteractionCreate, content string) {
	_, _ = session.FollowupMessageCreate(interaction.Interaction, true, &discordgo.WebhookParams{
		Content: content,
		Flags:   discordgo.MessageFlagsEphemeral,
	})
}

func interactionUserID(interaction *discordgo.InteractionCreate) string {
	if interaction.Member != nil && interaction.Member.User != nil {
		return interaction.Member.User.ID
	}
	if interaction.User != nil {
		return interaction.User.ID
	}
	return ""
}
