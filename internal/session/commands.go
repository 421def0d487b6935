package session

import (
	"context"
	"fmt"
	"time"

	"github.com/meridianbio/labsync/internal/stream"
)

// Recorder persists reconciliation activity for audit. Implementations must
// be best-effort; the synchronizer and façade never fail on recording errors.
type Recorder interface {
	RecordEvent(env stream.Envelope)
	RecordCommand(sessionID, command string, latency time.Duration, cmdErr error)
}

// Commands is the typed mutation façade for a tracked session. Each
// operation calls the remote collaborator and, on success, replaces the
// cache's canonical snapshot with the server's authoritative response —
// never a client-side guess. On failure the error is returned and no local
// state changes. In-flight commands for the same session are not coalesced;
// that is the caller's concern.
type Commands struct {
	client  *Client
	cache   Cache
	journal Recorder // optional
}

// CommandsOpts holds parameters for creating a Commands façade.
type CommandsOpts struct {
	Client  *Client
	Cache   Cache
	Journal Recorder // optional
}

// NewCommands creates a Commands façade.
func NewCommands(opts CommandsOpts) (*Commands, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("session: commands: client is required")
	}
	if opts.Cache == nil {
		return nil, fmt.Errorf("session: commands: cache is required")
	}
	return &Commands{client: opts.Client, cache: opts.Cache, journal: opts.Journal}, nil
}

// SubmitStage submits results for the session's current stage.
func (f *Commands) SubmitStage(ctx context.Context, sessionID string, req SubmitStageRequest) (*Snapshot, error) {
	return f.run(ctx, sessionID, "submit_stage", func() (*Snapshot, error) {
		return f.client.SubmitStage(ctx, sessionID, req)
	})
}

// Resume continues a halted session from a resume point.
func (f *Commands) Resume(ctx context.Context, sessionID string, req ResumeRequest) (*Snapshot, error) {
	return f.run(ctx, sessionID, "resume", func() (*Snapshot, error) {
		return f.client.Resume(ctx, sessionID, req)
	})
}

// Finalize completes the session and optionally publishes the plan.
func (f *Commands) Finalize(ctx context.Context, sessionID string, req FinalizeRequest) (*Snapshot, error) {
	return f.run(ctx, sessionID, "finalize", func() (*Snapshot, error) {
		return f.client.Finalize(ctx, sessionID, req)
	})
}

// Cancel aborts the session.
func (f *Commands) Cancel(ctx context.Context, sessionID string, req CancelRequest) (*Snapshot, error) {
	return f.run(ctx, sessionID, "cancel", func() (*Snapshot, error) {
		return f.client.Cancel(ctx, sessionID, req)
	})
}

func (f *Commands) run(ctx context.Context, sessionID, name string, call func() (*Snapshot, error)) (*Snapshot, error) {
	start := time.Now()
	snap, err := call()
	if f.journal != nil {
		f.journal.RecordCommand(sessionID, name, time.Since(start), err)
	}
	if err != nil {
		return nil, err
	}
	f.cache.Set(sessionID, snap)
	return snap, nil
}
