package session

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/meridianbio/labsync/internal/cache"
	"github.com/meridianbio/labsync/internal/stream"
)

// recordingJournal captures command records for assertions.
type recordingJournal struct {
	mu       sync.Mutex
	commands []string
	statuses []string
}

func (r *recordingJournal) RecordEvent(env stream.Envelope) {}

func (r *recordingJournal) RecordCommand(sessionID, command string, latency time.Duration, cmdErr error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, command)
	status := "ok"
	if cmdErr != nil {
		status = "error"
	}
	r.statuses = append(r.statuses, status)
}

func TestCommandsReplaceCanonicalState(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Snapshot{SessionID: "sess-1", Status: "running", CurrentStage: "verify"})
	}))

	store := cache.NewMemory[*Snapshot]()
	journal := &recordingJournal{}
	cmds, err := NewCommands(CommandsOpts{Client: client, Cache: store, Journal: journal})
	if err != nil {
		t.Fatalf("NewCommands: %v", err)
	}

	// Seed the cache with merged interim state that must be discarded.
	store.Set("sess-1", &Snapshot{SessionID: "sess-1", Status: "held"})

	snap, err := cmds.SubmitStage(context.Background(), "sess-1", SubmitStageRequest{Stage: "amplify"})
	if err != nil {
		t.Fatalf("SubmitStage: %v", err)
	}

	cached, ok := store.Get("sess-1")
	if !ok {
		t.Fatal("cache entry missing after command")
	}
	if cached != snap {
		t.Error("cache must hold exactly the server response, not a copy or merge")
	}
	if cached.Status != "running" {
		t.Errorf("Status = %q, want the server's running", cached.Status)
	}

	journal.mu.Lock()
	defer journal.mu.Unlock()
	if len(journal.commands) != 1 || journal.commands[0] != "submit_stage" || journal.statuses[0] != "ok" {
		t.Errorf("journal = %v %v", journal.commands, journal.statuses)
	}
}

func TestCommandFailureLeavesStateUntouched(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "stage mismatch", http.StatusUnprocessableEntity)
	}))

	store := cache.NewMemory[*Snapshot]()
	journal := &recordingJournal{}
	cmds, err := NewCommands(CommandsOpts{Client: client, Cache: store, Journal: journal})
	if err != nil {
		t.Fatalf("NewCommands: %v", err)
	}

	prior := &Snapshot{SessionID: "sess-1", Status: "running"}
	store.Set("sess-1", prior)

	if _, err := cmds.Finalize(context.Background(), "sess-1", FinalizeRequest{Publish: true}); err == nil {
		t.Fatal("expected error")
	}

	cached, _ := store.Get("sess-1")
	if cached != prior {
		t.Error("failed command must not mutate the cache")
	}

	journal.mu.Lock()
	defer journal.mu.Unlock()
	if len(journal.statuses) != 1 || journal.statuses[0] != "error" {
		t.Errorf("journal statuses = %v", journal.statuses)
	}
}

func TestCommandsAllOperations(t *testing.T) {
	var paths []string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		json.NewEncoder(w).Encode(Snapshot{SessionID: "sess-1"})
	}))

	cmds, err := NewCommands(CommandsOpts{Client: client, Cache: cache.NewMemory[*Snapshot]()})
	if err != nil {
		t.Fatalf("NewCommands: %v", err)
	}

	ctx := context.Background()
	cmds.SubmitStage(ctx, "sess-1", SubmitStageRequest{Stage: "s"})
	cmds.Resume(ctx, "sess-1", ResumeRequest{ResumeToken: "rt"})
	cmds.Finalize(ctx, "sess-1", FinalizeRequest{})
	cmds.Cancel(ctx, "sess-1", CancelRequest{})

	want := []string{
		"/api/sessions/sess-1/stages",
		"/api/sessions/sess-1/resume",
		"/api/sessions/sess-1/finalize",
		"/api/sessions/sess-1/cancel",
	}
	if len(paths) != len(want) {
		t.Fatalf("paths = %v", paths)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("paths[%d] = %q, want %q", i, paths[i], want[i])
		}
	}
}

func TestNewCommandsValidation(t *testing.T) {
	client, _ := newTestClient(t, http.NotFoundHandler())
	if _, err := NewCommands(CommandsOpts{Cache: cache.NewMemory[*Snapshot]()}); err == nil {
		t.Error("expected error for missing client")
	}
	if _, err := NewCommands(CommandsOpts{Client: client}); err == nil {
		t.Error("expected error for missing cache")
	}
}
