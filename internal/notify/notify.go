// Package notify fans governance escalations out to chat platforms. Adapters
// are send-only: the synchronizer pushes guardrail holds and override lock
// escalations to operators, and nothing flows back in.
package notify

import (
	"context"
	"log"
)

// Severity levels for escalation events.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Event is an escalation formatted for operator display.
type Event struct {
	Title     string  // headline, e.g. "Guardrail hold on sess-42"
	Body      string  // detail text
	Severity  string  // "info", "warning", "error"
	SessionID string  // originating session
	Fields    []Field // key-value metadata pairs
}

// Field is a key-value pair displayed alongside an event.
type Field struct {
	Name  string
	Value string
}

// Adapter is implemented per chat platform.
type Adapter interface {
	// Send delivers the event to the platform.
	Send(ctx context.Context, ev Event) error
	// Close releases the adapter's connection, if any.
	Close() error
}

// Sender is the narrow interface the synchronizers depend on.
type Sender interface {
	Send(ctx context.Context, ev Event) error
}

// Fanout delivers each event to every configured adapter. Delivery is
// best-effort: a failing adapter is logged and the rest still receive the
// event.
type Fanout struct {
	adapters []Adapter
}

// NewFanout creates a Fanout over the given adapters. Nil adapters are
// skipped so callers can pass optional adapters unconditionally.
func NewFanout(adapters ...Adapter) *Fanout {
	f := &Fanout{}
	for _, a := range adapters {
		if a != nil {
			f.adapters = append(f.adapters, a)
		}
	}
	return f
}

// Send delivers ev to all adapters. Always returns nil; per-adapter failures
// are logged, not propagated, so a broken notifier can never stall the
// reconciliation path.
func (f *Fanout) Send(ctx context.Context, ev Event) error {
	for _, a := range f.adapters {
		if err := a.Send(ctx, ev); err != nil {
			log.Printf("notify: send %q: %v", ev.Title, err)
		}
	}
	return nil
}

// Close closes all adapters, returning the first error encountered.
func (f *Fanout) Close() error {
	var first error
	for _, a := range f.adapters {
		if err := a.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Len returns the number of configured adapters.
func (f *Fanout) Len() int {
	return len(f.adapters)
}
