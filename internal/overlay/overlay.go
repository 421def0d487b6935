// Package overlay reconciles the governance override stream: per-override
// lock descriptors and cooldown counters layered over a session. Lock and
// cooldown are independently updatable facets — a cooldown tick must leave
// the lock exactly as the last lock snapshot set it.
package overlay

import (
	"time"

	"github.com/meridianbio/labsync/internal/ledger"
)

// State is the merged override overlay for one session, keyed by override id.
type State struct {
	SessionID string           `json:"session_id"`
	Entries   map[string]Entry `json:"entries"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Entry is the overlay record for one governance override.
type Entry struct {
	OverrideID string    `json:"override_id"`
	Lock       *Lock     `json:"lock,omitempty"`
	Cooldown   *Cooldown `json:"cooldown,omitempty"`
}

// Lock identifies who holds a governance override lock and why.
type Lock struct {
	Token      string `json:"token"`
	Reason     string `json:"reason,omitempty"`
	Escalation string `json:"escalation,omitempty"`
	Actor      Actor  `json:"actor"`
}

// Actor is the person or role holding a lock.
type Actor struct {
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}

// Cooldown is the expiry facet of an override.
type Cooldown struct {
	ExpiresAt        time.Time `json:"expires_at,omitzero"`
	RemainingSeconds int       `json:"remaining_seconds"`
}

// Cache is the injected overlay store, one entry per session id.
type Cache interface {
	Get(sessionID string) (*State, bool)
	Set(sessionID string, state *State)
	Invalidate(sessionID string)
}

// Hint re-exported for consumers of override escalation projections.
type Hint = ledger.Hint

// clone returns a copy of s with the entry map duplicated. Lock and
// Cooldown pointers are duplicated too, so facet merges never write through
// to a state a consumer may still be reading.
func (s *State) clone() *State {
	if s == nil {
		return nil
	}
	next := *s
	next.Entries = make(map[string]Entry, len(s.Entries))
	for id, e := range s.Entries {
		next.Entries[id] = e.clone()
	}
	return &next
}

func (e Entry) clone() Entry {
	if e.Lock != nil {
		lock := *e.Lock
		e.Lock = &lock
	}
	if e.Cooldown != nil {
		cd := *e.Cooldown
		e.Cooldown = &cd
	}
	return e
}
