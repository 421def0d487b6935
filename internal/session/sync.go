package session

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/meridianbio/labsync/internal/ledger"
	"github.com/meridianbio/labsync/internal/notify"
	"github.com/meridianbio/labsync/internal/stream"
)

// Syncer ties one subscription per tracked session to the merge engine and
// the injected cache. Merges for a session are serialized behind the syncer
// mutex; the merge functions themselves stay pure.
type Syncer struct {
	client   *Client
	streams  *stream.Manager
	cache    Cache
	journal  Recorder      // optional
	notifier notify.Sender // optional
	capacity int
	onApply  func(sessionID string, entry LedgerEntry)

	mu       sync.Mutex
	ledgers  map[string][]LedgerEntry
	appended map[string]uint64
}

// SyncerOpts holds parameters for creating a Syncer.
type SyncerOpts struct {
	Client   *Client
	Streams  *stream.Manager
	Cache    Cache
	Journal  Recorder      // optional audit journal
	Notifier notify.Sender // optional escalation fan-out
	// LedgerCapacity bounds the per-session event ledger; 0 means the default.
	LedgerCapacity int
	// OnApply, if set, runs after each message is reconciled. Used by watch
	// and relay consumers; it must not call back into the Syncer's handle.
	OnApply func(sessionID string, entry LedgerEntry)
}

// NewSyncer creates a Syncer.
func NewSyncer(opts SyncerOpts) (*Syncer, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("session: syncer: client is required")
	}
	if opts.Streams == nil {
		return nil, fmt.Errorf("session: syncer: stream manager is required")
	}
	if opts.Cache == nil {
		return nil, fmt.Errorf("session: syncer: cache is required")
	}
	capacity := opts.LedgerCapacity
	if capacity <= 0 {
		capacity = DefaultLedgerCapacity
	}
	return &Syncer{
		client:   opts.Client,
		streams:  opts.Streams,
		cache:    opts.Cache,
		journal:  opts.Journal,
		notifier: opts.Notifier,
		capacity: capacity,
		onApply:  opts.OnApply,
		ledgers:  make(map[string][]LedgerEntry),
		appended: make(map[string]uint64),
	}, nil
}

// Track fetches the canonical snapshot for sessionID and opens its stream.
// Tracking an already-tracked session re-fetches and replaces the previous
// subscription.
func (s *Syncer) Track(ctx context.Context, sessionID string) error {
	snap, err := s.client.Fetch(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("session: track %s: %w", sessionID, err)
	}
	s.cache.Set(sessionID, snap)

	_, err = s.streams.Open(ctx, sessionID, s.client.StreamURL(sessionID), s.handleMessage)
	if err != nil {
		return fmt.Errorf("session: track %s: %w", sessionID, err)
	}
	return nil
}

// Untrack closes the session's subscription and discards its cached state
// and ledger.
func (s *Syncer) Untrack(sessionID string) {
	s.streams.Close(sessionID)
	s.cache.Invalidate(sessionID)

	s.mu.Lock()
	delete(s.ledgers, sessionID)
	delete(s.appended, sessionID)
	s.mu.Unlock()
}

// Refresh re-fetches the canonical snapshot out of band and replaces the
// cache entry. Used by lifecycle invalidation and the periodic refresh
// daemon.
func (s *Syncer) Refresh(ctx context.Context, sessionID string) error {
	snap, err := s.client.Fetch(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("session: refresh %s: %w", sessionID, err)
	}
	s.cache.Set(sessionID, snap)
	return nil
}

// Connected reports whether the session's subscription is currently open.
func (s *Syncer) Connected(sessionID string) bool {
	return s.streams.Opened(sessionID)
}

// Snapshot returns the cached canonical snapshot.
func (s *Syncer) Snapshot(sessionID string) (*Snapshot, bool) {
	return s.cache.Get(sessionID)
}

// Ledger returns a copy of the session's bounded event ledger.
func (s *Syncer) Ledger(sessionID string) []LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]LedgerEntry(nil), s.ledgers[sessionID]...)
}

// Appended returns the total number of messages ever appended for the
// session. Unlike ledger sequence numbers, it survives eviction, so relay
// consumers can detect new messages.
func (s *Syncer) Appended(sessionID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appended[sessionID]
}

// ResumePoint resolves the most authoritative resume point from the current
// merged state. Recomputed on demand so consumers always observe the latest.
func (s *Syncer) ResumePoint(sessionID string) *ResumePoint {
	snap, _ := s.cache.Get(sessionID)
	var bundle *RecoveryBundle
	var history []HistoryRecord
	if snap != nil {
		bundle = snap.Recovery
		history = snap.History
	}
	return ResolveResume(bundle, s.Ledger(sessionID), history)
}

// Hints returns the deduplicated mitigation hints projected from the current
// merged state.
func (s *Syncer) Hints(sessionID string) []Hint {
	snap, _ := s.cache.Get(sessionID)
	var bundle *RecoveryBundle
	var history []HistoryRecord
	if snap != nil {
		bundle = snap.Recovery
		history = snap.History
	}
	return CollectHints(bundle, s.Ledger(sessionID), history)
}

// handleMessage reconciles one parsed stream message: ledger append, journal
// record, merge into the cached snapshot, lifecycle re-fetch, escalation.
func (s *Syncer) handleMessage(env stream.Envelope) {
	sessionID := env.SessionID
	entry := ledger.FromEnvelope(env)

	s.mu.Lock()
	s.ledgers[sessionID] = ledger.Append(s.ledgers[sessionID], entry, s.capacity)
	entry = s.ledgers[sessionID][len(s.ledgers[sessionID])-1]
	s.appended[sessionID]++

	cur, _ := s.cache.Get(sessionID)
	next, err := Apply(cur, env)
	if err != nil {
		log.Printf("session: %s: merge skipped: %v", sessionID, err)
	} else if next != cur {
		s.cache.Set(sessionID, next)
	}
	s.mu.Unlock()

	if s.journal != nil {
		s.journal.RecordEvent(env)
	}

	// Lifecycle transitions replace the snapshot with the server's view.
	// Informational ticks never re-fetch.
	if stream.IsLifecycle(env.Type) {
		if err := s.Refresh(context.Background(), sessionID); err != nil {
			log.Printf("session: %s: lifecycle re-fetch failed: %v", sessionID, err)
		}
	}

	if env.Type == stream.TypeGuardrailHold && s.notifier != nil {
		s.escalateHold(sessionID, env)
	}

	if s.onApply != nil {
		s.onApply(sessionID, entry)
	}
}

func (s *Syncer) escalateHold(sessionID string, env stream.Envelope) {
	ev := notify.Event{
		Title:     "Guardrail hold on " + sessionID,
		Severity:  notify.SeverityError,
		SessionID: sessionID,
	}

	var msg LifecycleMessage
	if err := unmarshalLifecycle(env, &msg); err == nil {
		ev.Body = msg.Reason
		if msg.Stage != "" {
			ev.Fields = append(ev.Fields, notify.Field{Name: "Stage", Value: msg.Stage})
		}
		if msg.ResumeToken != "" {
			ev.Fields = append(ev.Fields, notify.Field{Name: "Resume token", Value: msg.ResumeToken})
		}
	}

	if err := s.notifier.Send(context.Background(), ev); err != nil {
		log.Printf("session: %s: escalation failed: %v", sessionID, err)
	}
}
