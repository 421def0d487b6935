package overlay

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/meridianbio/labsync/internal/ledger"
	"github.com/meridianbio/labsync/internal/notify"
	"github.com/meridianbio/labsync/internal/stream"
)

// Syncer ties one override subscription per tracked session to the overlay
// merge engine. Unlike the session syncer there is no canonical REST fetch:
// the overlay is built entirely from the stream, starting empty. The Syncer
// must be given its own stream manager — subscriptions are keyed by session
// id and would collide with session subscriptions on a shared manager.
type Syncer struct {
	streams   *stream.Manager
	streamURL func(sessionID string) string
	cache     Cache
	notifier  notify.Sender // optional
	capacity  int
	onApply   func(sessionID string, entry ledger.Entry)

	mu       sync.Mutex
	ledgers  map[string][]ledger.Entry
	appended map[string]uint64
}

// SyncerOpts holds parameters for creating an overlay Syncer.
type SyncerOpts struct {
	Streams *stream.Manager
	// StreamURL maps a session id to its override stream endpoint.
	StreamURL func(sessionID string) string
	Cache     Cache
	Notifier  notify.Sender // optional escalation fan-out
	// LedgerCapacity bounds the per-session override ledger; 0 means the
	// default.
	LedgerCapacity int
	OnApply        func(sessionID string, entry ledger.Entry)
}

// NewSyncer creates an overlay Syncer.
func NewSyncer(opts SyncerOpts) (*Syncer, error) {
	if opts.Streams == nil {
		return nil, fmt.Errorf("overlay: syncer: stream manager is required")
	}
	if opts.StreamURL == nil {
		return nil, fmt.Errorf("overlay: syncer: stream URL builder is required")
	}
	if opts.Cache == nil {
		return nil, fmt.Errorf("overlay: syncer: cache is required")
	}
	capacity := opts.LedgerCapacity
	if capacity <= 0 {
		capacity = ledger.DefaultCapacity
	}
	return &Syncer{
		streams:   opts.Streams,
		streamURL: opts.StreamURL,
		cache:     opts.Cache,
		notifier:  opts.Notifier,
		capacity:  capacity,
		onApply:   opts.OnApply,
		ledgers:   make(map[string][]ledger.Entry),
		appended:  make(map[string]uint64),
	}, nil
}

// Track opens the override stream for sessionID and seeds an empty overlay.
// Tracking an already-tracked session replaces the previous subscription and
// keeps the accumulated overlay.
func (s *Syncer) Track(ctx context.Context, sessionID string) error {
	if _, ok := s.cache.Get(sessionID); !ok {
		s.cache.Set(sessionID, &State{SessionID: sessionID, Entries: make(map[string]Entry)})
	}

	_, err := s.streams.Open(ctx, sessionID, s.streamURL(sessionID), s.handleMessage)
	if err != nil {
		return fmt.Errorf("overlay: track %s: %w", sessionID, err)
	}
	return nil
}

// Untrack closes the session's override subscription and discards its
// overlay and ledger.
func (s *Syncer) Untrack(sessionID string) {
	s.streams.Close(sessionID)
	s.cache.Invalidate(sessionID)

	s.mu.Lock()
	delete(s.ledgers, sessionID)
	delete(s.appended, sessionID)
	s.mu.Unlock()
}

// Connected reports whether the session's override subscription is open.
func (s *Syncer) Connected(sessionID string) bool {
	return s.streams.Opened(sessionID)
}

// State returns the merged override overlay for the session.
func (s *Syncer) State(sessionID string) (*State, bool) {
	return s.cache.Get(sessionID)
}

// Ledger returns a copy of the session's bounded override ledger.
func (s *Syncer) Ledger(sessionID string) []ledger.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ledger.Entry(nil), s.ledgers[sessionID]...)
}

// Appended returns the total number of override messages ever appended for
// the session, surviving ledger eviction.
func (s *Syncer) Appended(sessionID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appended[sessionID]
}

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
		log.Printf("overlay: %s: merge skipped: %v", sessionID, err)
	} else if next != cur {
		s.cache.Set(sessionID, next)
	}
	s.mu.Unlock()

	if env.Type == stream.TypeOverrideLock && s.notifier != nil {
		s.escalateLock(sessionID, env)
	}

	if s.onApply != nil {
		s.onApply(sessionID, entry)
	}
}

// escalateLock notifies on locks carrying an escalation marker. Plain locks
// stay quiet.
func (s *Syncer) escalateLock(sessionID string, env stream.Envelope) {
	var msg LockMessage
	if err := json.Unmarshal(env.Raw, &msg); err != nil || msg.Lock.Escalation == "" {
		return
	}

	ev := notify.Event{
		Title:     "Override lock escalated on " + sessionID,
		Body:      msg.Lock.Reason,
		Severity:  notify.SeverityWarning,
		SessionID: sessionID,
		Fields: []notify.Field{
			{Name: "Override", Value: msg.OverrideID},
			{Name: "Escalation", Value: msg.Lock.Escalation},
		},
	}
	if msg.Lock.Actor.Name != "" {
		ev.Fields = append(ev.Fields, notify.Field{Name: "Held by", Value: msg.Lock.Actor.Name})
	}

	if err := s.notifier.Send(context.Background(), ev); err != nil {
		log.Printf("overlay: %s: escalation failed: %v", sessionID, err)
	}
}
