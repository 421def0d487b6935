package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newJournalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the local audit journal",
	}

	cmd.AddCommand(newJournalEventsCmd())
	cmd.AddCommand(newJournalCommandsCmd())
	return cmd
}

func newJournalEventsCmd() *cobra.Command {
	var (
		configPath string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "events <session-id>",
		Short: "List journaled stream messages for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := clientFromConfig(configPath)
			if err != nil {
				return err
			}
			j, err := journalFromConfig(cfg)
			if err != nil {
				return err
			}

			rows, err := j.Events(args[0], limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range rows {
				line := fmt.Sprintf("[%s] %s", r.ReceivedAt.Format("2006-01-02 15:04:05"), r.Type)
				if r.ResumeToken != "" {
					line += " resume=" + r.ResumeToken
				}
				fmt.Fprintln(out, line)
			}
			fmt.Fprintf(out, "%d message(s)\n", len(rows))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "labsync.yaml", "path to Labsync config file")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum messages to list (0 for all)")
	return cmd
}

func newJournalCommandsCmd() *cobra.Command {
	var (
		configPath string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "commands <session-id>",
		Short: "List journaled control commands for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := clientFromConfig(configPath)
			if err != nil {
				return err
			}
			j, err := journalFromConfig(cfg)
			if err != nil {
				return err
			}

			rows, err := j.Commands(args[0], limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range rows {
				outcome := "ok"
				if !r.Succeeded {
					outcome = "failed: " + r.Error
				}
				fmt.Fprintf(out, "[%s] %-13s %4dms %s\n",
					r.CreatedAt.Format("2006-01-02 15:04:05"), r.Command, r.LatencyMs, outcome)
			}
			fmt.Fprintf(out, "%d command(s)\n", len(rows))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "labsync.yaml", "path to Labsync config file")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum commands to list (0 for all)")
	return cmd
}
