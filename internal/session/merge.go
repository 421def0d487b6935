package session

import (
	"encoding/json"
	"fmt"

	"github.com/meridianbio/labsync/internal/stream"
)

// Typed stream message payloads. Snapshot messages declare themselves
// authoritative for a substructure and replace it wholesale; tick messages
// use pointer fields so the merge can distinguish "absent" from "zero".

// RecoveryBundleMessage fully replaces the session's recovery bundle.
type RecoveryBundleMessage struct {
	SessionID string         `json:"session_id"`
	Bundle    RecoveryBundle `json:"bundle"`
}

// DrillSummariesMessage refines only the bundle's drill summary sub-list.
type DrillSummariesMessage struct {
	SessionID      string         `json:"session_id"`
	DrillSummaries []DrillSummary `json:"drill_summaries"`
}

// TelemetryTick updates only the telemetry fields it names.
type TelemetryTick struct {
	SessionID      string   `json:"session_id"`
	ElapsedSec     *int     `json:"elapsed_sec,omitempty"`
	ReadingsPerMin *float64 `json:"readings_per_min,omitempty"`
	ChamberTempC   *float64 `json:"chamber_temp_c,omitempty"`
}

// StageProgressTick updates only the named stage's present fields.
type StageProgressTick struct {
	SessionID   string  `json:"session_id"`
	Stage       string  `json:"stage"`
	ProgressPct *int    `json:"progress_pct,omitempty"`
	Status      *string `json:"status,omitempty"`
}

// LifecycleMessage announces a session or stage transition.
type LifecycleMessage struct {
	SessionID   string `json:"session_id"`
	Stage       string `json:"stage,omitempty"`
	Status      string `json:"status,omitempty"`
	Reason      string `json:"reason,omitempty"`
	ResumeToken string `json:"resume_token,omitempty"`
	Hints       []Hint `json:"hints,omitempty"`
}

// Apply reconciles one stream message into the current snapshot and returns
// the next snapshot. It never mutates cur. Unknown message types leave the
// snapshot untouched. A decode failure returns cur and an error; the caller
// logs and keeps the stream alive.
func Apply(cur *Snapshot, env stream.Envelope) (*Snapshot, error) {
	switch env.Type {
	case stream.TypeRecoveryBundle:
		var msg RecoveryBundleMessage
		if err := json.Unmarshal(env.Raw, &msg); err != nil {
			return cur, fmt.Errorf("session: decode %s: %w", env.Type, err)
		}
		return MergeRecoveryBundle(cur, msg), nil

	case stream.TypeDrillSummaries:
		var msg DrillSummariesMessage
		if err := json.Unmarshal(env.Raw, &msg); err != nil {
			return cur, fmt.Errorf("session: decode %s: %w", env.Type, err)
		}
		return MergeDrillSummaries(cur, msg), nil

	case stream.TypeTelemetry:
		var tick TelemetryTick
		if err := json.Unmarshal(env.Raw, &tick); err != nil {
			return cur, fmt.Errorf("session: decode %s: %w", env.Type, err)
		}
		return MergeTelemetry(cur, tick), nil

	case stream.TypeStageProgress:
		var tick StageProgressTick
		if err := json.Unmarshal(env.Raw, &tick); err != nil {
			return cur, fmt.Errorf("session: decode %s: %w", env.Type, err)
		}
		return MergeStageProgress(cur, tick), nil

	case stream.TypeStageStarted, stream.TypeStageCompleted,
		stream.TypeSessionCompleted, stream.TypeGuardrailHold:
		var msg LifecycleMessage
		if err := json.Unmarshal(env.Raw, &msg); err != nil {
			return cur, fmt.Errorf("session: decode %s: %w", env.Type, err)
		}
		return MergeLifecycle(cur, env.Type, msg), nil
	}
	return cur, nil
}

// unmarshalLifecycle decodes a lifecycle payload without re-classifying it.
func unmarshalLifecycle(env stream.Envelope, msg *LifecycleMessage) error {
	return json.Unmarshal(env.Raw, msg)
}

// MergeRecoveryBundle replaces the recovery bundle wholesale. A bundle
// message for a session with no snapshot yet creates a partial entry
// carrying only the bundle.
func MergeRecoveryBundle(cur *Snapshot, msg RecoveryBundleMessage) *Snapshot {
	next := cur.clone()
	if next == nil {
		next = &Snapshot{SessionID: msg.SessionID}
	}
	bundle := msg.Bundle
	next.Recovery = (&bundle).clone()
	return next
}

// MergeDrillSummaries replaces only the bundle's drill summary sub-list,
// preserving the rest of the previously merged bundle. With no bundle to
// attach to, the message is a no-op.
func MergeDrillSummaries(cur *Snapshot, msg DrillSummariesMessage) *Snapshot {
	if cur == nil || cur.Recovery == nil {
		return cur
	}
	next := cur.clone()
	next.Recovery.DrillSummaries = append([]DrillSummary(nil), msg.DrillSummaries...)
	return next
}

// MergeTelemetry shallow-merges only the fields present in the tick. A tick
// for a session with no snapshot synthesizes a partial entry from the tick's
// fields alone; absent optional fields stay unknown, not cleared.
func MergeTelemetry(cur *Snapshot, tick TelemetryTick) *Snapshot {
	if cur == nil && tick.ElapsedSec == nil && tick.ReadingsPerMin == nil && tick.ChamberTempC == nil {
		// Nothing usable to synthesize an entry from.
		return nil
	}
	next := cur.clone()
	if next == nil {
		next = &Snapshot{SessionID: tick.SessionID}
	}
	if tick.ElapsedSec != nil {
		next.Telemetry.ElapsedSec = *tick.ElapsedSec
	}
	if tick.ReadingsPerMin != nil {
		next.Telemetry.ReadingsPerMin = *tick.ReadingsPerMin
	}
	if tick.ChamberTempC != nil {
		next.Telemetry.ChamberTempC = *tick.ChamberTempC
	}
	return next
}

// MergeStageProgress updates only the present fields of the named stage,
// leaving sibling stages and all other snapshot fields untouched. A tick
// naming a stage the snapshot has never seen appends a partial stage entry;
// a tick naming no stage is a no-op.
func MergeStageProgress(cur *Snapshot, tick StageProgressTick) *Snapshot {
	if tick.Stage == "" {
		return cur
	}
	next := cur.clone()
	if next == nil {
		next = &Snapshot{SessionID: tick.SessionID}
	}

	idx := -1
	for i := range next.Stages {
		if next.Stages[i].Name == tick.Stage {
			idx = i
			break
		}
	}
	if idx == -1 {
		next.Stages = append(next.Stages, Stage{Name: tick.Stage})
		idx = len(next.Stages) - 1
	}
	if tick.ProgressPct != nil {
		next.Stages[idx].ProgressPct = *tick.ProgressPct
	}
	if tick.Status != nil {
		next.Stages[idx].Status = *tick.Status
	}
	return next
}

// MergeLifecycle folds a lifecycle transition into the snapshot: session
// status, current stage, the named stage's status, and a history record. The
// synchronizer follows every lifecycle merge with an authoritative re-fetch,
// so this merge only has to keep the snapshot plausible in the interim.
func MergeLifecycle(cur *Snapshot, msgType string, msg LifecycleMessage) *Snapshot {
	next := cur.clone()
	if next == nil {
		next = &Snapshot{SessionID: msg.SessionID}
	}

	switch msgType {
	case stream.TypeStageStarted:
		next.Status = "running"
		next.CurrentStage = msg.Stage
		setStageStatus(next, msg.Stage, "running")
	case stream.TypeStageCompleted:
		setStageStatus(next, msg.Stage, "completed")
	case stream.TypeSessionCompleted:
		next.Status = "completed"
		next.CurrentStage = ""
	case stream.TypeGuardrailHold:
		next.Status = "held"
	}

	next.History = append(next.History, HistoryRecord{
		Stage:       msg.Stage,
		Status:      statusForHistory(msgType, msg),
		ResumeToken: msg.ResumeToken,
		Hints:       append([]Hint(nil), msg.Hints...),
	})
	return next
}

func setStageStatus(snap *Snapshot, name, status string) {
	if name == "" {
		return
	}
	for i := range snap.Stages {
		if snap.Stages[i].Name == name {
			snap.Stages[i].Status = status
			return
		}
	}
	snap.Stages = append(snap.Stages, Stage{Name: name, Status: status})
}

func statusForHistory(msgType string, msg LifecycleMessage) string {
	if msg.Status != "" {
		return msg.Status
	}
	switch msgType {
	case stream.TypeStageStarted:
		return "started"
	case stream.TypeStageCompleted:
		return "completed"
	case stream.TypeSessionCompleted:
		return "session_completed"
	case stream.TypeGuardrailHold:
		return "held"
	}
	return msgType
}
