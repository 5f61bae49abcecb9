package bot

import "github.com/bwmarrin/discordgo"

var (
	moderatePerm = int64(discordgo.PermissionModerateMembers)
	kickPerm     = int64(discordgo.PermissionKickMembers)
	banPerm      = int64(discordgo.PermissionBanMembers)
	managePerm   = int64(discordgo.PermissionManageServer)
	channelPerm  = int64(discordgo.PermissionManageChannels)
)

func (b *Bot) registerCommands() error {
	commands := []*discordgo.ApplicationCommand{
		{
			Name:                     "warn",
			Description:              "Warn a user",
			DefaultMemberPermissions: &moderatePerm,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "User to warn", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "Reason for the warning", Required: true},
			},
		},
		{
			Name:                     "warnings",
			Description:              "Show a user's warnings",
			DefaultMemberPermissions: &moderatePerm,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "User to look up", Required: true},
			},
		},
		{
			Name:                     "clear_warnings",
			Description:              "Clear a user's warnings",
			DefaultMemberPermissions: &moderatePerm,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "User to clear", Required: true},
			},
		},
		{
			Name:                     "ban",
			Description:              "Ban a user from this server",
			DefaultMemberPermissions: &banPerm,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "User to ban", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "Reason for the ban", Required: false},
			},
		},
		{
			Name:                     "kick",
			Description:              "Kick a user from this server",
			DefaultMemberPermissions: &kickPerm,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "User to kick", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "Reason for the kick", Required: false},
			},
		},
		{
			Name:                     "mute",
			Description:              "Timeout a user",
			DefaultMemberPermissions: &moderatePerm,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "User to mute", Required: true},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "minutes", Description: "Duration in minutes", Required: false},
			},
		},
		{
			Name:                     "purge",
			Description:              "Delete recent messages in this channel",
			DefaultMemberPermissions: &channelPerm,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "count", Description: "Number of messages (max 100)", Required: true},
			},
		},
		{
			Name:                     "lock",
			Description:              "Lock this channel for everyone",
			DefaultMemberPermissions: &channelPerm,
		},
		{
			Name:                     "unlock",
			Description:              "Unlock this channel",
			DefaultMemberPermissions: &channelPerm,
		},
		{
			Name:                     "antiping",
			Description:              "Manage ping protection",
			DefaultMemberPermissions: &managePerm,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type: discordgo.ApplicationCommandOptionSubCommand, Name: "add", Description: "Protect a user from pings",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "User to protect", Required: true},
					},
				},
				{
					Type: discordgo.ApplicationCommandOptionSubCommand, Name: "remove", Description: "Remove ping protection",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "User to unprotect", Required: true},
					},
				},
				{
					Type: discordgo.ApplicationCommandOptionSubCommand, Name: "toggle", Description: "Enable or disable anti-ping",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionBoolean, Name: "enabled", Description: "true to enable", Required: true},
					},
				},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "list", Description: "List protected users"},
			},
		},
		{
			Name:                     "autoresponse",
			Description:              "Manage automatic responses",
			DefaultMemberPermissions: &managePerm,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type: discordgo.ApplicationCommandOptionSubCommand, Name: "create", Description: "Create a trigger",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionString, Name: "trigger", Description: "Trigger text or pattern", Required: true},
						{Type: discordgo.ApplicationCommandOptionString, Name: "response", Description: "Response text", Required: true},
						{Type: discordgo.ApplicationCommandOptionBoolean, Name: "regex", Description: "Treat the trigger as a regular expression", Required: false},
					},
				},
				{
					Type: discordgo.ApplicationCommandOptionSubCommand, Name: "remove", Description: "Remove a trigger",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionString, Name: "trigger", Description: "Trigger to remove", Required: true},
					},
				},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "list", Description: "List triggers"},
			},
		},
		{
			Name:                     "logchannel",
			Description:              "View or set the moderation log channel",
			DefaultMemberPermissions: &managePerm,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionChannel, Name: "channel", Description: "Channel to log to", Required: false},
			},
		},
		{
			Name:                     "report",
			Description:              "Summarize recent moderation activity",
			DefaultMemberPermissions: &managePerm,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type: discordgo.ApplicationCommandOptionString, Name: "period", Description: "day or week", Required: false,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "day", Value: "day"},
						{Name: "week", Value: "week"},
					},
				},
			},
		},
	}

	appID := b.session.State.User.ID
	existing, err := b.session.ApplicationCommands(appID, "")
	if err != nil {
		for _, cmd := range commands {
			if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
				return err
			}
		}
		return nil
	}

	existingByName := make(map[string]*discordgo.ApplicationCommand)
	for _, cmd := range existing {
		existingByName[cmd.Name] = cmd
	}

	desired := make(map[string]struct{})
	for _, cmd := range commands {
		desired[cmd.Name] = struct{}{}
		if current, ok := existingByName[cmd.Name]; ok {
			if _, err := b.session.ApplicationCommandEdit(appID, "", current.ID, cmd); err != nil {
				return err
			}
			continue
		}
		if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
			return err
		}
	}

	for _, cmd := range existing {
		if _, ok := desired[cmd.Name]; ok {
			continue
		}
		_ = b.session.ApplicationCommandDelete(appID, "", cmd.ID)
	}
	return nil
}
