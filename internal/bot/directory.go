package bot

import (
	"context"
	"errors"

	"warden/internal/blacklist"

	"github.com/bwmarrin/discordgo"
)

// sessionDirectory adapts a live Discord session to the blacklist workflow.
// Guild and member lookups prefer the gateway state cache and fall back to
// the REST API when the cache has not been populated yet.
type sessionDirectory struct {
	session *discordgo.Session
}

func newSessionDirectory(session *discordgo.Session) *sessionDirectory {
	return &sessionDirectory{session: session}
}

func (d *sessionDirectory) Guilds() []blacklist.GuildInfo {
	var guilds []blacklist.GuildInfo
	for _, guild := range d.session.State.Guilds {
		if guild == nil {
			continue
		}
		guilds = append(guilds, blacklist.GuildInfo{ID: guild.ID, Name: guild.Name})
	}
	return guilds
}

func (d *sessionDirectory) IsMember(ctx context.Context, guildID, userID string) (bool, error) {
	_ = ctx
	member, err := d.session.State.Member(guildID, userID)
	if err == nil && member != nil {
		return true, nil
	}

	member, err = d.session.GuildMember(guildID, userID)
	if err != nil {
		if isUnknownMember(err) {
			return false, nil
		}
		return false, err
	}
	return member != nil, nil
}

func (d *sessionDirectory) Remove(ctx context.Context, guildID, userID, reason string) error {
	_ = ctx
	return d.session.GuildBanCreateWithReason(guildID, userID, reason, 0)
}

func (d *sessionDirectory) DirectMessage(ctx context.Context, userID, content string) error {
	_ = ctx
	channel, err := d.session.UserChannelCreate(userID)
	if err != nil {
		return err
	}
	_, err = d.session.ChannelMessageSend(channel.ID, content)
	return err
}

func isUnknownMember(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) || restErr.Message == nil {
		return false
	}
	code := restErr.Message.Code
	return code == discordgo.ErrCodeUnknownMember || code == discordgo.ErrCodeUnknownUser
}
