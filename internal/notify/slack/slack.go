// Package slack implements the notify Adapter for Slack using the Web API.
package slack

import (
	"context"
	"fmt"

	slackapi "github.com/slack-go/slack"
	"github.com/meridianbio/labsync/internal/notify"
)

// severityColors maps event severities to attachment sidebar colors.
var severityColors = map[string]string{
	notify.SeverityInfo:    "#439fe0",
	notify.SeverityWarning: "#f2c744",
	notify.SeverityError:   "#d50200",
}

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Adapter posts escalation events to a Slack channel.
type Adapter struct {
	client    slackClient
	channelID string
}

// AdapterOpts holds parameters for creating a Slack Adapter.
type AdapterOpts struct {
	BotToken  string // xoxb-... Slack bot token
	ChannelID string // channel to post escalations to
	// For testing: inject a mock client instead of the real Slack API.
	Client slackClient
}

// New creates a Slack Adapter.
func New(opts AdapterOpts) (*Adapter, error) {
	if opts.Client == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("slack: bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("slack: channel id is required")
	}

	client := opts.Client
	if client == nil {
		client = slackapi.New(opts.BotToken)
	}
	return &Adapter{client: client, channelID: opts.ChannelID}, nil
}

// Send posts the event as an attachment message.
func (a *Adapter) Send(ctx context.Context, ev notify.Event) error {
	color, ok := severityColors[ev.Severity]
	if !ok {
		color = severityColors[notify.SeverityInfo]
	}

	fields := make([]slackapi.AttachmentField, 0, len(ev.Fields)+1)
	if ev.SessionID != "" {
		fields = append(fields, slackapi.AttachmentField{Title: "Session", Value: ev.SessionID, Short: true})
	}
	for _, f := range ev.Fields {
		fields = append(fields, slackapi.AttachmentField{Title: f.Name, Value: f.Value, Short: true})
	}

	attachment := slackapi.Attachment{
		Color:  color,
		Title:  ev.Title,
		Text:   ev.Body,
		Fields: fields,
	}

	_, _, err := a.client.PostMessageContext(ctx, a.channelID,
		slackapi.MsgOptionAttachments(attachment))
	if err != nil {
		return fmt.Errorf("slack: post message: %w", err)
	}
	return nil
}

// Close is a no-op; the Web API client holds no connection.
func (a *Adapter) Close() error {
	return nil
}
