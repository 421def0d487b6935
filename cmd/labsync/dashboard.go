package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/meridianbio/labsync/internal/cache"
	"github.com/meridianbio/labsync/internal/dashboard"
	"github.com/meridianbio/labsync/internal/overlay"
	"github.com/meridianbio/labsync/internal/session"
	"github.com/meridianbio/labsync/internal/stream"
)

func newDashboardCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "dashboard <session-id>...",
		Short: "Start the read-only web dashboard",
		Long:  "Tracks the given sessions and serves their reconciled snapshots, ledgers, and projections over HTTP, with a live SSE relay.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDashboard(cmd, configPath, port, args)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "labsync.yaml", "path to Labsync config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides config)")
	return cmd
}

func runDashboard(cmd *cobra.Command, configPath string, port int, sessionIDs []string) error {
	cfg, client, err := clientFromConfig(configPath)
	if err != nil {
		return err
	}
	if port <= 0 {
		port = cfg.Dashboard.Port
	}

	j, err := journalFromConfig(cfg)
	if err != nil {
		return err
	}
	notifier, err := notifierFromConfig(cfg)
	if err != nil {
		return err
	}
	defer notifier.Close()

	sessionStreams := stream.NewManager(stream.ManagerOpts{Token: cfg.API.Token})
	defer sessionStreams.CloseAll()
	overrideStreams := stream.NewManager(stream.ManagerOpts{Token: cfg.API.Token})
	defer overrideStreams.CloseAll()

	sessions, err := session.NewSyncer(session.SyncerOpts{
		Client:         client,
		Streams:        sessionStreams,
		Cache:          cache.NewMemory[*session.Snapshot](),
		Journal:        j,
		Notifier:       notifier,
		LedgerCapacity: cfg.Stream.LedgerCapacity,
	})
	if err != nil {
		return err
	}

	overrides, err := overlay.NewSyncer(overlay.SyncerOpts{
		Streams:        overrideStreams,
		StreamURL:      client.OverridesStreamURL,
		Cache:          cache.NewMemory[*overlay.State](),
		Notifier:       notifier,
		LedgerCapacity: cfg.Stream.LedgerCapacity,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, id := range sessionIDs {
		if err := sessions.Track(ctx, id); err != nil {
			return err
		}
		if err := overrides.Track(ctx, id); err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "override stream for %s unavailable: %v\n", id, err)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	return dashboard.Start(ctx, dashboard.StartOpts{
		Sessions:  sessions,
		Overrides: overrides,
		Port:      port,
		Out:       cmd.OutOrStdout(),
	})
}
