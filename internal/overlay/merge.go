package overlay

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/meridianbio/labsync/internal/stream"
)

// LockMessage declares itself authoritative for one override's lock facet.
type LockMessage struct {
	SessionID  string `json:"session_id"`
	OverrideID string `json:"override_id"`
	Lock       Lock   `json:"lock"`
}

// CooldownTick updates only the cooldown fields it names.
type CooldownTick struct {
	SessionID        string     `json:"session_id"`
	OverrideID       string     `json:"override_id"`
	RemainingSeconds *int       `json:"remaining_seconds,omitempty"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
}

// ClearedMessage removes an override from the overlay.
type ClearedMessage struct {
	SessionID  string `json:"session_id"`
	OverrideID string `json:"override_id"`
}

// Apply reconciles one override stream message into the current state and
// returns the next state. It never mutates cur. When the message changes
// the state, the returned state's UpdatedAt is the envelope receipt time.
func Apply(cur *State, env stream.Envelope) (*State, error) {
	next := cur
	switch env.Type {
	case stream.TypeOverrideLock:
		var msg LockMessage
		if err := json.Unmarshal(env.Raw, &msg); err != nil {
			return cur, fmt.Errorf("overlay: decode %s: %w", env.Type, err)
		}
		next = MergeLock(cur, msg)

	case stream.TypeCooldownTick:
		var tick CooldownTick
		if err := json.Unmarshal(env.Raw, &tick); err != nil {
			return cur, fmt.Errorf("overlay: decode %s: %w", env.Type, err)
		}
		next = MergeCooldown(cur, tick)

	case stream.TypeOverrideCleared:
		var msg ClearedMessage
		if err := json.Unmarshal(env.Raw, &msg); err != nil {
			return cur, fmt.Errorf("overlay: decode %s: %w", env.Type, err)
		}
		next = MergeCleared(cur, msg)
	}
	if next != cur && next != nil {
		next.UpdatedAt = env.ReceivedAt
	}
	return next, nil
}

// MergeLock replaces the override's lock facet wholesale, creating the entry
// if the override has not been seen. The cooldown facet is untouched.
func MergeLock(cur *State, msg LockMessage) *State {
	if msg.OverrideID == "" {
		return cur
	}
	next := cur.clone()
	if next == nil {
		next = &State{SessionID: msg.SessionID, Entries: make(map[string]Entry)}
	}

	entry := next.Entries[msg.OverrideID]
	entry.OverrideID = msg.OverrideID
	lock := msg.Lock
	entry.Lock = &lock
	next.Entries[msg.OverrideID] = entry
	return next
}

// MergeCooldown shallow-merges the tick's present fields into the override's
// cooldown facet, leaving the lock facet exactly as the last snapshot set
// it. A tick for an override the overlay has never seen is a no-op — a
// cooldown with no matching lock is not independently useful.
func MergeCooldown(cur *State, tick CooldownTick) *State {
	if cur == nil {
		return nil
	}
	entry, ok := cur.Entries[tick.OverrideID]
	if !ok {
		return cur
	}

	next := cur.clone()
	entry = next.Entries[tick.OverrideID]
	if entry.Cooldown == nil {
		entry.Cooldown = &Cooldown{}
	}
	if tick.RemainingSeconds != nil {
		entry.Cooldown.RemainingSeconds = *tick.RemainingSeconds
	}
	if tick.ExpiresAt != nil {
		entry.Cooldown.ExpiresAt = *tick.ExpiresAt
	}
	next.Entries[tick.OverrideID] = entry
	return next
}

// MergeCleared removes the override from the overlay. Clearing an unknown
// override is a no-op.
func MergeCleared(cur *State, msg ClearedMessage) *State {
	if cur == nil {
		return nil
	}
	if _, ok := cur.Entries[msg.OverrideID]; !ok {
		return cur
	}
	next := cur.clone()
	delete(next.Entries, msg.OverrideID)
	return next
}
