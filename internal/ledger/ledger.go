// Package ledger implements the bounded event ledger shared by the session
// and override reconcilers: an append-only, capacity-limited window of raw
// stream messages kept for audit and replay. It is a sliding window, not a
// queue — callers never evict explicitly.
package ledger

import (
	"encoding/json"
	"time"

	"github.com/meridianbio/labsync/internal/stream"
)

// DefaultCapacity bounds a ledger when no capacity is configured.
const DefaultCapacity = 50

// Hint is a mitigation advisory surfaced to operators.
type Hint struct {
	Category string `json:"category"`
	Action   string `json:"action"`
	Detail   string `json:"detail,omitempty"`
}

// Key returns the composite uniqueness key for deduplication.
func (h Hint) Key() string {
	return h.Category + ":" + h.Action
}

// Entry is one retained stream message, with the resumability fields lifted
// out so projections need not re-decode Raw.
type Entry struct {
	Seq         int             `json:"seq"`
	Type        string          `json:"type"`
	ResumeToken string          `json:"resume_token,omitempty"`
	Hints       []Hint          `json:"hints,omitempty"`
	Raw         json.RawMessage `json:"raw,omitempty"`
	ReceivedAt  time.Time       `json:"received_at"`
}

// liftedFields is the subset of any message payload relevant to projections.
type liftedFields struct {
	ResumeToken string `json:"resume_token"`
	Hints       []Hint `json:"hints"`
}

// FromEnvelope builds an entry from a parsed envelope. Seq is assigned by
// Append.
func FromEnvelope(env stream.Envelope) Entry {
	var fields liftedFields
	// Raw already parsed once; a failure here just leaves the lifted fields empty.
	json.Unmarshal(env.Raw, &fields)

	return Entry{
		Type:        env.Type,
		ResumeToken: fields.ResumeToken,
		Hints:       fields.Hints,
		Raw:         env.Raw,
		ReceivedAt:  env.ReceivedAt,
	}
}

// Append appends entry to the ledger, evicting the oldest entries first once
// capacity is reached. Sequence numbers are renumbered 1..len after eviction
// so ledger positions stay contiguous and stable for display. The input
// slice is never mutated.
func Append(entries []Entry, entry Entry, capacity int) []Entry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	start := 0
	if len(entries) >= capacity {
		start = len(entries) - capacity + 1
	}

	next := make([]Entry, 0, min(len(entries)-start+1, capacity))
	next = append(next, entries[start:]...)
	next = append(next, entry)
	for i := range next {
		next[i].Seq = i + 1
	}
	return next
}
