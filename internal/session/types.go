// Package session keeps a locally cached canonical snapshot of a cloning
// planner session consistent with the platform's push-based event stream.
// Commands and canonical fetches replace the snapshot wholesale; stream
// messages merge into it without clobbering fields they do not name.
package session

import (
	"time"

	"github.com/meridianbio/labsync/internal/ledger"
)

// Hint and LedgerEntry are shared with the override reconciler; re-exported
// here so session consumers work with one package.
type (
	Hint        = ledger.Hint
	LedgerEntry = ledger.Entry
)

// DefaultLedgerCapacity bounds the in-memory event ledger when no capacity
// is configured.
const DefaultLedgerCapacity = ledger.DefaultCapacity

// Snapshot is the canonical representation of a planner session. It is only
// ever constructed from a server response; the synchronizer merges into
// copies of it but never fabricates one from stream messages alone, except
// for the documented partial-entity case.
type Snapshot struct {
	SessionID    string          `json:"session_id"`
	PlanID       string          `json:"plan_id,omitempty"`
	Status       string          `json:"status"` // pending, running, held, completed, cancelled
	CurrentStage string          `json:"current_stage,omitempty"`
	Stages       []Stage         `json:"stages,omitempty"`
	Recovery     *RecoveryBundle `json:"recovery,omitempty"`
	History      []HistoryRecord `json:"history,omitempty"`
	Telemetry    Telemetry       `json:"telemetry"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Stage is one step of the multi-stage cloning plan.
type Stage struct {
	Name        string `json:"name"`
	Status      string `json:"status"` // pending, running, completed, failed
	ProgressPct int    `json:"progress_pct,omitempty"`
}

// RecoveryBundle carries everything needed to continue a halted session. It
// may arrive whole in one message and be refined sub-list by sub-list later.
type RecoveryBundle struct {
	ResumeToken    string         `json:"resume_token,omitempty"`
	FailedStage    string         `json:"failed_stage,omitempty"`
	Reason         string         `json:"reason,omitempty"`
	DrillSummaries []DrillSummary `json:"drill_summaries,omitempty"`
	Hints          []Hint         `json:"hints,omitempty"`
}

// DrillSummary records the outcome of one recovery drill.
type DrillSummary struct {
	Drill      string `json:"drill"`
	Outcome    string `json:"outcome"`
	DurationMs int    `json:"duration_ms,omitempty"`
}

// HistoryRecord is one entry in the session's stage history.
type HistoryRecord struct {
	Stage       string    `json:"stage"`
	Status      string    `json:"status"`
	ResumeToken string    `json:"resume_token,omitempty"`
	Hints       []Hint    `json:"hints,omitempty"`
	At          time.Time `json:"at,omitempty"`
}

// Telemetry holds instrument readings attached to the session. Updated only
// by tick messages and canonical fetches.
type Telemetry struct {
	ElapsedSec     int     `json:"elapsed_sec,omitempty"`
	ReadingsPerMin float64 `json:"readings_per_min,omitempty"`
	ChamberTempC   float64 `json:"chamber_temp_c,omitempty"`
}

// ResumePoint is the resolved most-authoritative checkpoint for continuing a
// halted session.
type ResumePoint struct {
	Token  string `json:"token"`
	Source string `json:"source"` // "bundle", "message", "history"
}

// Cache is the injected canonical snapshot store. The synchronizer and the
// command façade are the only writers; every write is either a wholesale
// replace with a server response or the output of a documented merge.
type Cache interface {
	Get(sessionID string) (*Snapshot, bool)
	Set(sessionID string, snap *Snapshot)
	Invalidate(sessionID string)
}

// clone returns a copy of s with its slices and bundle duplicated, so merges
// never alias the snapshot a consumer may still be reading.
func (s *Snapshot) clone() *Snapshot {
	if s == nil {
		return nil
	}
	next := *s
	next.Stages = append([]Stage(nil), s.Stages...)
	next.History = cloneHistory(s.History)
	next.Recovery = s.Recovery.clone()
	return &next
}

func (b *RecoveryBundle) clone() *RecoveryBundle {
	if b == nil {
		return nil
	}
	next := *b
	next.DrillSummaries = append([]DrillSummary(nil), b.DrillSummaries...)
	next.Hints = append([]Hint(nil), b.Hints...)
	return &next
}

func cloneHistory(history []HistoryRecord) []HistoryRecord {
	if history == nil {
		return nil
	}
	next := make([]HistoryRecord, len(history))
	for i, rec := range history {
		next[i] = rec
		next[i].Hints = append([]Hint(nil), rec.Hints...)
	}
	return next
}
