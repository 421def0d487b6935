package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"github.com/meridianbio/labsync/internal/cache"
	"github.com/meridianbio/labsync/internal/ledger"
	"github.com/meridianbio/labsync/internal/overlay"
	"github.com/meridianbio/labsync/internal/stream"
)

func newOverridesCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "overrides <session-id>",
		Short: "Follow a session's governance override stream",
		Long:  "Subscribes to the session's override stream and prints the merged lock and cooldown overlay as it changes.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOverrides(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "labsync.yaml", "path to Labsync config file")
	return cmd
}

func runOverrides(cmd *cobra.Command, configPath, sessionID string) error {
	cfg, client, err := clientFromConfig(configPath)
	if err != nil {
		return err
	}

	notifier, err := notifierFromConfig(cfg)
	if err != nil {
		return err
	}
	defer notifier.Close()

	out := cmd.OutOrStdout()
	streams := stream.NewManager(stream.ManagerOpts{Token: cfg.API.Token})
	defer streams.CloseAll()

	store := cache.NewMemory[*overlay.State]()
	syncer, err := overlay.NewSyncer(overlay.SyncerOpts{
		Streams:        streams,
		StreamURL:      client.OverridesStreamURL,
		Cache:          store,
		Notifier:       notifier,
		LedgerCapacity: cfg.Stream.LedgerCapacity,
		OnApply: func(id string, entry ledger.Entry) {
			fmt.Fprintf(out, "[%s] %s\n", entry.ReceivedAt.Format("15:04:05"), entry.Type)
			if state, ok := store.Get(id); ok {
				printOverlay(out, state)
			}
		},
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := syncer.Track(ctx, sessionID); err != nil {
		return err
	}
	fmt.Fprintf(out, "Watching overrides for %s... Ctrl+C to stop\n", sessionID)

	cooldown := time.Duration(cfg.Stream.ReopenCooldownSec) * time.Second
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			syncer.Untrack(sessionID)
			return nil
		case <-ticker.C:
			if syncer.Connected(sessionID) {
				continue
			}
			fmt.Fprintf(out, "stream dropped; reopening in %s\n", cooldown)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(cooldown):
			}
			if err := syncer.Track(ctx, sessionID); err != nil {
				fmt.Fprintf(out, "reopen failed: %v\n", err)
			}
		}
	}
}

func printOverlay(out io.Writer, state *overlay.State) {
	ids := make([]string, 0, len(state.Entries))
	for id := range state.Entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		entry := state.Entries[id]
		line := "  " + id
		if entry.Lock != nil {
			line += fmt.Sprintf(" lock=%s holder=%s", entry.Lock.Token, entry.Lock.Actor.Name)
			if entry.Lock.Escalation != "" {
				line += " escalation=" + entry.Lock.Escalation
			}
		}
		if entry.Cooldown != nil {
			line += fmt.Sprintf(" cooldown=%ds", entry.Cooldown.RemainingSeconds)
		}
		fmt.Fprintln(out, line)
	}
}
