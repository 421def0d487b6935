// Package stream subscribes to the lab platform's server-push event streams
// and hands parsed messages to per-domain reconcilers. One subscription exists
// per tracked resource id; the package never retries a dropped connection —
// reconnection policy belongs to callers.
package stream

import (
	"encoding/json"
	"time"
)

// Message types carried on the session stream.
const (
	TypeStageStarted     = "stage_started"
	TypeStageCompleted   = "stage_completed"
	TypeSessionCompleted = "session_completed"
	TypeGuardrailHold    = "guardrail_hold"
	TypeRecoveryBundle   = "recovery_bundle"
	TypeDrillSummaries   = "drill_summaries"
	TypeTelemetry        = "telemetry"
	TypeStageProgress    = "stage_progress"
)

// Message types carried on the governance override stream.
const (
	TypeOverrideLock    = "override_lock"
	TypeCooldownTick    = "cooldown_tick"
	TypeOverrideCleared = "override_cleared"
)

// Envelope is the parsed form of one stream message. The domain payload stays
// raw; reconcilers decode it against their own typed message structs.
type Envelope struct {
	Type       string          `json:"type"`
	SessionID  string          `json:"session_id"`
	OverrideID string          `json:"override_id,omitempty"`
	Raw        json.RawMessage `json:"-"`
	ReceivedAt time.Time       `json:"-"`
}

// IsLifecycle reports whether the message type marks a session or stage
// lifecycle transition. Lifecycle messages trigger an authoritative re-fetch
// of the canonical snapshot; informational ticks never do.
func IsLifecycle(msgType string) bool {
	switch msgType {
	case TypeStageStarted, TypeStageCompleted, TypeSessionCompleted, TypeGuardrailHold:
		return true
	}
	return false
}
