// Package discord implements the notify Adapter for Discord.
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/meridianbio/labsync/internal/notify"
)

// severityColors maps event severities to embed sidebar colors.
var severityColors = map[string]int{
	notify.SeverityInfo:    0x439fe0,
	notify.SeverityWarning: 0xf2c744,
	notify.SeverityError:   0xd50200,
}

// session abstracts the discordgo.Session methods we use, enabling test mocks.
type session interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	Close() error
}

// Adapter posts escalation events to a Discord channel via the REST API.
type Adapter struct {
	sess      session
	channelID string
}

// AdapterOpts holds parameters for creating a Discord Adapter.
type AdapterOpts struct {
	BotToken  string // Discord bot token
	ChannelID string // channel to post escalations to
	// For testing: inject a mock session instead of the real Discord API.
	Session session
}

// New creates a Discord Adapter.
func New(opts AdapterOpts) (*Adapter, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("discord: channel id is required")
	}

	a := &Adapter{sess: opts.Session, channelID: opts.ChannelID}
	if a.sess == nil {
		s, err := discordgo.New("Bot " + opts.BotToken)
		if err != nil {
			return nil, fmt.Errorf("discord: create session: %w", err)
		}
		a.sess = s
	}
	return a, nil
}

// Send posts the event as an embed. Embeds go over REST, so no Gateway
// connection is required for a send-only adapter.
func (a *Adapter) Send(ctx context.Context, ev notify.Event) error {
	color, ok := severityColors[ev.Severity]
	if !ok {
		color = severityColors[notify.SeverityInfo]
	}

	fields := make([]*discordgo.MessageEmbedField, 0, len(ev.Fields)+1)
	if ev.SessionID != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Session", Value: ev.SessionID, Inline: true})
	}
	for _, f := range ev.Fields {
		fields = append(fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: true})
	}

	embed := &discordgo.MessageEmbed{
		Title:       ev.Title,
		Description: ev.Body,
		Color:       color,
		Fields:      fields,
	}

	if _, err := a.sess.ChannelMessageSendEmbed(a.channelID, embed, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: send embed: %w", err)
	}
	return nil
}

// Close shuts down the underlying session.
func (a *Adapter) Close() error {
	return a.sess.Close()
}
