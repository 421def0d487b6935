package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/meridianbio/labsync/internal/cache"
	"github.com/meridianbio/labsync/internal/session"
	"github.com/meridianbio/labsync/internal/stream"
)

func newWatchCmd() *cobra.Command {
	var (
		configPath string
		noJournal  bool
	)

	cmd := &cobra.Command{
		Use:   "watch <session-id>",
		Short: "Follow a session's stream in real-time",
		Long:  "Subscribes to the session's live stream, reconciles every update into a local snapshot, and prints messages as they arrive. Reopens dropped streams after the configured cooldown.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, configPath, args[0], noJournal)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "labsync.yaml", "path to Labsync config file")
	cmd.Flags().BoolVar(&noJournal, "no-journal", false, "skip writing received messages to the journal")
	return cmd
}

func runWatch(cmd *cobra.Command, configPath, sessionID string, noJournal bool) error {
	cfg, client, err := clientFromConfig(configPath)
	if err != nil {
		return err
	}

	var recorder session.Recorder
	if !noJournal {
		j, err := journalFromConfig(cfg)
		if err != nil {
			return err
		}
		recorder = j
	}

	notifier, err := notifierFromConfig(cfg)
	if err != nil {
		return err
	}
	defer notifier.Close()

	out := cmd.OutOrStdout()
	streams := stream.NewManager(stream.ManagerOpts{Token: cfg.API.Token})
	defer streams.CloseAll()

	syncer, err := session.NewSyncer(session.SyncerOpts{
		Client:         client,
		Streams:        streams,
		Cache:          cache.NewMemory[*session.Snapshot](),
		Journal:        recorder,
		Notifier:       notifier,
		LedgerCapacity: cfg.Stream.LedgerCapacity,
		OnApply: func(id string, entry session.LedgerEntry) {
			printLedgerEntry(out, entry)
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
	if snap, ok := syncer.Snapshot(sessionID); ok {
		fmt.Fprintf(out, "Watching %s (status: %s)... Ctrl+C to stop\n", sessionID, snap.Status)
	}

	// The reconciliation core never reconnects on its own; dropped streams
	// are reopened here after a flat cooldown.
	cooldown := time.Duration(cfg.Stream.ReopenCooldownSec) * time.Second
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			printProjections(out, syncer, sessionID)
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

// printProjections summarizes the session's resume point and deduplicated
// hints when the watch ends.
func printProjections(out io.Writer, syncer *session.Syncer, sessionID string) {
	if point := syncer.ResumePoint(sessionID); point != nil {
		fmt.Fprintf(out, "\nResume point: %s (from %s)\n", point.Token, point.Source)
	}
	hints := syncer.Hints(sessionID)
	if len(hints) > 0 {
		fmt.Fprintln(out, "Hints:")
		for _, h := range hints {
			line := fmt.Sprintf("  %s: %s", h.Category, h.Action)
			if h.Detail != "" {
				line += " (" + h.Detail + ")"
			}
			fmt.Fprintln(out, line)
		}
	}
}

func printLedgerEntry(out io.Writer, entry session.LedgerEntry) {
	ts := entry.ReceivedAt.Format("15:04:05")
	line := fmt.Sprintf("[%s] #%d %s", ts, entry.Seq, entry.Type)
	if entry.ResumeToken != "" {
		line += " resume=" + entry.ResumeToken
	}
	for _, h := range entry.Hints {
		line += fmt.Sprintf(" hint=%s:%s", h.Category, h.Action)
	}
	fmt.Fprintln(out, line)
}
