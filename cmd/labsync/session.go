package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/meridianbio/labsync/internal/cache"
	"github.com/meridianbio/labsync/internal/config"
	"github.com/meridianbio/labsync/internal/session"
)

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect and control lab sessions",
	}

	cmd.AddCommand(newSessionStatusCmd())
	cmd.AddCommand(newSessionSubmitCmd())
	cmd.AddCommand(newSessionResumeCmd())
	cmd.AddCommand(newSessionFinalizeCmd())
	cmd.AddCommand(newSessionCancelCmd())
	return cmd
}

func newSessionStatusCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "status <session-id>",
		Short: "Fetch and display the canonical session snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, err := clientFromConfig(configPath)
			if err != nil {
				return err
			}
			snap, err := client.Fetch(context.Background(), args[0])
			if err != nil {
				return err
			}
			printSnapshot(cmd.OutOrStdout(), snap)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "labsync.yaml", "path to Labsync config file")
	return cmd
}

func newSessionSubmitCmd() *cobra.Command {
	var (
		configPath string
		params     []string
	)

	cmd := &cobra.Command{
		Use:   "submit <session-id> <stage>",
		Short: "Submit results for the session's current stage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			parameters, err := parseParams(params)
			if err != nil {
				return err
			}
			return runCommand(cmd, configPath, args[0], func(ctx context.Context, cmds *session.Commands) (*session.Snapshot, error) {
				return cmds.SubmitStage(ctx, args[0], session.SubmitStageRequest{
					Stage:      args[1],
					Parameters: parameters,
				})
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "labsync.yaml", "path to Labsync config file")
	cmd.Flags().StringArrayVar(&params, "param", nil, "stage parameter as key=value (repeatable)")
	return cmd
}

func newSessionResumeCmd() *cobra.Command {
	var (
		configPath string
		token      string
	)

	cmd := &cobra.Command{
		Use:   "resume <session-id>",
		Short: "Resume a halted session from a resume token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				return fmt.Errorf("--token is required")
			}
			return runCommand(cmd, configPath, args[0], func(ctx context.Context, cmds *session.Commands) (*session.Snapshot, error) {
				return cmds.Resume(ctx, args[0], session.ResumeRequest{ResumeToken: token})
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "labsync.yaml", "path to Labsync config file")
	cmd.Flags().StringVar(&token, "token", "", "resume token to continue from")
	return cmd
}

func newSessionFinalizeCmd() *cobra.Command {
	var (
		configPath string
		publish    bool
		notes      string
	)

	cmd := &cobra.Command{
		Use:   "finalize <session-id>",
		Short: "Complete the session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd, configPath, args[0], func(ctx context.Context, cmds *session.Commands) (*session.Snapshot, error) {
				return cmds.Finalize(ctx, args[0], session.FinalizeRequest{Publish: publish, Notes: notes})
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "labsync.yaml", "path to Labsync config file")
	cmd.Flags().BoolVar(&publish, "publish", false, "publish the plan on completion")
	cmd.Flags().StringVar(&notes, "notes", "", "finalization notes")
	return cmd
}

func newSessionCancelCmd() *cobra.Command {
	var (
		configPath string
		reason     string
	)

	cmd := &cobra.Command{
		Use:   "cancel <session-id>",
		Short: "Abort the session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd, configPath, args[0], func(ctx context.Context, cmds *session.Commands) (*session.Snapshot, error) {
				return cmds.Cancel(ctx, args[0], session.CancelRequest{Reason: reason})
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "labsync.yaml", "path to Labsync config file")
	cmd.Flags().StringVar(&reason, "reason", "", "cancellation reason")
	return cmd
}

// runCommand wires the command façade for a one-shot control command and
// prints the authoritative snapshot the server returned.
func runCommand(cmd *cobra.Command, configPath, sessionID string, call func(context.Context, *session.Commands) (*session.Snapshot, error)) error {
	cfg, client, err := clientFromConfig(configPath)
	if err != nil {
		return err
	}
	cmds, err := commandsFromConfig(cfg, client)
	if err != nil {
		return err
	}

	snap, err := call(context.Background(), cmds)
	if err != nil {
		return err
	}
	printSnapshot(cmd.OutOrStdout(), snap)
	return nil
}

func commandsFromConfig(cfg *config.Config, client *session.Client) (*session.Commands, error) {
	j, err := journalFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return session.NewCommands(session.CommandsOpts{
		Client:  client,
		Cache:   cache.NewMemory[*session.Snapshot](),
		Journal: j,
	})
}

func parseParams(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(map[string]any, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --param %q, want key=value", p)
		}
		params[key] = value
	}
	return params, nil
}

func printSnapshot(out io.Writer, snap *session.Snapshot) {
	fmt.Fprintf(out, "Session %s  plan=%s  status=%s\n", snap.SessionID, snap.PlanID, snap.Status)
	if snap.CurrentStage != "" {
		fmt.Fprintf(out, "Current stage: %s\n", snap.CurrentStage)
	}
	for _, st := range snap.Stages {
		fmt.Fprintf(out, "  %-20s %-12s %3d%%\n", st.Name, st.Status, st.ProgressPct)
	}
	if snap.Recovery != nil {
		fmt.Fprintf(out, "Recovery: token=%s failed_stage=%s reason=%s\n",
			snap.Recovery.ResumeToken, snap.Recovery.FailedStage, snap.Recovery.Reason)
	}
}
