package main

import (
	"fmt"

	"github.com/meridianbio/labsync/internal/config"
	"github.com/meridianbio/labsync/internal/db"
	"github.com/meridianbio/labsync/internal/journal"
	"github.com/meridianbio/labsync/internal/notify"
	"github.com/meridianbio/labsync/internal/notify/discord"
	"github.com/meridianbio/labsync/internal/notify/slack"
	"github.com/meridianbio/labsync/internal/session"
)

// clientFromConfig loads the config file and builds an API client.
func clientFromConfig(configPath string) (*config.Config, *session.Client, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	client, err := session.NewClient(session.ClientOpts{
		BaseURL: cfg.API.BaseURL,
		Token:   cfg.API.Token,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, client, nil
}

// journalFromConfig opens the journal database and migrates its tables.
func journalFromConfig(cfg *config.Config) (*journal.Journal, error) {
	gormDB, err := db.Connect(cfg.Storage)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return nil, err
	}
	return journal.New(gormDB), nil
}

// notifierFromConfig builds the escalation fan-out from configured adapters.
// Returns an empty fan-out when no adapter is configured.
func notifierFromConfig(cfg *config.Config) (*notify.Fanout, error) {
	var adapters []notify.Adapter

	if cfg.Notify.Slack.BotToken != "" {
		a, err := slack.New(slack.AdapterOpts{
			BotToken:  cfg.Notify.Slack.BotToken,
			ChannelID: cfg.Notify.Slack.ChannelID,
		})
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	}

	if cfg.Notify.Discord.BotToken != "" {
		a, err := discord.New(discord.AdapterOpts{
			BotToken:  cfg.Notify.Discord.BotToken,
			ChannelID: cfg.Notify.Discord.ChannelID,
		})
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	}

	return notify.NewFanout(adapters...), nil
}
