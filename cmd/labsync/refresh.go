package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

func newRefreshCmd() *cobra.Command {
	var (
		configPath string
		once       bool
	)

	cmd := &cobra.Command{
		Use:   "refresh [session-id]...",
		Short: "Periodically re-fetch canonical snapshots",
		Long:  "Re-fetches the canonical snapshot for the given sessions (or the ones configured under refresh.sessions) on the configured cron schedule, keeping long-lived local caches honest.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRefresh(cmd, configPath, args, once)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "labsync.yaml", "path to Labsync config file")
	cmd.Flags().BoolVar(&once, "once", false, "refresh once and exit instead of running on the schedule")
	return cmd
}

func runRefresh(cmd *cobra.Command, configPath string, args []string, once bool) error {
	cfg, client, err := clientFromConfig(configPath)
	if err != nil {
		return err
	}

	sessions := args
	if len(sessions) == 0 {
		sessions = cfg.Refresh.Sessions
	}
	if len(sessions) == 0 {
		return fmt.Errorf("no sessions to refresh: pass session ids or set refresh.sessions")
	}

	out := cmd.OutOrStdout()
	refreshAll := func(ctx context.Context) {
		for _, id := range sessions {
			snap, err := client.Fetch(ctx, id)
			if err != nil {
				fmt.Fprintf(out, "refresh %s: %v\n", id, err)
				continue
			}
			fmt.Fprintf(out, "refreshed %s (status: %s)\n", id, snap.Status)
		}
	}

	if once {
		refreshAll(context.Background())
		return nil
	}

	sched, err := cronParser.Parse(cfg.Refresh.Schedule)
	if err != nil {
		return fmt.Errorf("parse refresh.schedule %q: %w", cfg.Refresh.Schedule, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Fprintf(out, "Refreshing %d session(s) on schedule %q... Ctrl+C to stop\n", len(sessions), cfg.Refresh.Schedule)
	for {
		next := sched.Next(time.Now())
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Until(next)):
			refreshAll(ctx)
		}
	}
}
