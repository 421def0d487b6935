package overlay

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/meridianbio/labsync/internal/stream"
)

func envelope(t *testing.T, msgType, payload string) stream.Envelope {
	t.Helper()
	return stream.Envelope{
		Type:       msgType,
		Raw:        json.RawMessage(payload),
		ReceivedAt: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}
}

func TestMergeLockCreatesEntry(t *testing.T) {
	msg := LockMessage{
		SessionID:  "sess-1",
		OverrideID: "ovr-1",
		Lock:       Lock{Token: "lock-789", Reason: "calibration drift", Actor: Actor{Name: "Safety Lead"}},
	}

	next := MergeLock(nil, msg)
	if next == nil {
		t.Fatal("lock onto empty overlay should create state")
	}
	entry, ok := next.Entries["ovr-1"]
	if !ok {
		t.Fatal("entry not created")
	}
	if entry.Lock == nil || entry.Lock.Token != "lock-789" || entry.Lock.Actor.Name != "Safety Lead" {
		t.Errorf("lock = %+v", entry.Lock)
	}
	if entry.Cooldown != nil {
		t.Error("lock message must not invent a cooldown facet")
	}
}

func TestMergeLockReplacesLockFacetWholesale(t *testing.T) {
	cur := &State{
		SessionID: "sess-1",
		Entries: map[string]Entry{
			"ovr-1": {
				OverrideID: "ovr-1",
				Lock:       &Lock{Token: "lock-111", Reason: "old reason", Escalation: "page"},
				Cooldown:   &Cooldown{RemainingSeconds: 30},
			},
		},
	}

	next := MergeLock(cur, LockMessage{OverrideID: "ovr-1", Lock: Lock{Token: "lock-222", Actor: Actor{Name: "QA"}}})

	lock := next.Entries["ovr-1"].Lock
	if lock.Token != "lock-222" || lock.Actor.Name != "QA" {
		t.Errorf("lock = %+v", lock)
	}
	if lock.Reason != "" || lock.Escalation != "" {
		t.Error("lock replacement is wholesale; stale fields must not survive")
	}
	if next.Entries["ovr-1"].Cooldown.RemainingSeconds != 30 {
		t.Error("cooldown facet must survive a lock replacement")
	}
}

// A cooldown tick updates only the fields it names and leaves the lock facet
// exactly as the last lock snapshot set it.
func TestCooldownTickPreservesLock(t *testing.T) {
	cur := MergeLock(nil, LockMessage{
		SessionID:  "sess-1",
		OverrideID: "ovr-1",
		Lock:       Lock{Token: "lock-789", Actor: Actor{Name: "Safety Lead"}},
	})

	remaining := 15
	next := MergeCooldown(cur, CooldownTick{OverrideID: "ovr-1", RemainingSeconds: &remaining})

	entry := next.Entries["ovr-1"]
	if entry.Lock.Token != "lock-789" || entry.Lock.Actor.Name != "Safety Lead" {
		t.Errorf("lock facet changed: %+v", entry.Lock)
	}
	if entry.Cooldown == nil || entry.Cooldown.RemainingSeconds != 15 {
		t.Errorf("cooldown = %+v, want remaining 15", entry.Cooldown)
	}
}

func TestCooldownTickMergesOnlyPresentFields(t *testing.T) {
	expires := time.Date(2026, 8, 30, 13, 0, 0, 0, time.UTC)
	cur := &State{
		SessionID: "sess-1",
		Entries: map[string]Entry{
			"ovr-1": {OverrideID: "ovr-1", Cooldown: &Cooldown{ExpiresAt: expires, RemainingSeconds: 60}},
		},
	}

	remaining := 45
	next := MergeCooldown(cur, CooldownTick{OverrideID: "ovr-1", RemainingSeconds: &remaining})

	cd := next.Entries["ovr-1"].Cooldown
	if cd.RemainingSeconds != 45 {
		t.Errorf("RemainingSeconds = %d, want 45", cd.RemainingSeconds)
	}
	if !cd.ExpiresAt.Equal(expires) {
		t.Error("an absent expires_at must not clobber the stored one")
	}
}

func TestCooldownTickForUnseenOverrideIsNoOp(t *testing.T) {
	cur := &State{SessionID: "sess-1", Entries: map[string]Entry{}}
	remaining := 15

	next := MergeCooldown(cur, CooldownTick{OverrideID: "ovr-ghost", RemainingSeconds: &remaining})
	if next != cur {
		t.Error("tick for an unseen override must return the input state unchanged")
	}
	if next = MergeCooldown(nil, CooldownTick{OverrideID: "ovr-1"}); next != nil {
		t.Error("tick onto nil state must stay nil")
	}
}

func TestMergeClearedRemovesEntry(t *testing.T) {
	cur := &State{
		SessionID: "sess-1",
		Entries: map[string]Entry{
			"ovr-1": {OverrideID: "ovr-1", Lock: &Lock{Token: "lock-789"}},
			"ovr-2": {OverrideID: "ovr-2", Lock: &Lock{Token: "lock-790"}},
		},
	}

	next := MergeCleared(cur, ClearedMessage{OverrideID: "ovr-1"})
	if _, ok := next.Entries["ovr-1"]; ok {
		t.Error("cleared override should be removed")
	}
	if _, ok := next.Entries["ovr-2"]; !ok {
		t.Error("other overrides must survive")
	}
	if next = MergeCleared(cur, ClearedMessage{OverrideID: "ovr-ghost"}); next != cur {
		t.Error("clearing an unknown override must be a no-op")
	}
}

func TestMergesNeverMutateInput(t *testing.T) {
	cur := &State{
		SessionID: "sess-1",
		Entries: map[string]Entry{
			"ovr-1": {
				OverrideID: "ovr-1",
				Lock:       &Lock{Token: "lock-789", Actor: Actor{Name: "Safety Lead"}},
				Cooldown:   &Cooldown{RemainingSeconds: 60},
			},
		},
	}
	before, _ := json.Marshal(cur)

	remaining := 5
	MergeLock(cur, LockMessage{OverrideID: "ovr-1", Lock: Lock{Token: "lock-999"}})
	MergeLock(cur, LockMessage{OverrideID: "ovr-2", Lock: Lock{Token: "lock-000"}})
	MergeCooldown(cur, CooldownTick{OverrideID: "ovr-1", RemainingSeconds: &remaining})
	MergeCleared(cur, ClearedMessage{OverrideID: "ovr-1"})

	after, _ := json.Marshal(cur)
	if string(before) != string(after) {
		t.Errorf("input state mutated:\nbefore %s\nafter  %s", before, after)
	}
}

func TestApplyDispatchesByType(t *testing.T) {
	state, err := Apply(nil, envelope(t, stream.TypeOverrideLock,
		`{"session_id":"sess-1","override_id":"ovr-1","lock":{"token":"lock-789","actor":{"name":"Safety Lead"}}}`))
	if err != nil {
		t.Fatalf("Apply lock: %v", err)
	}
	if state.Entries["ovr-1"].Lock.Token != "lock-789" {
		t.Errorf("state = %+v", state)
	}
	if state.UpdatedAt.IsZero() {
		t.Error("a state change should stamp UpdatedAt from the envelope")
	}

	state, err = Apply(state, envelope(t, stream.TypeCooldownTick,
		`{"session_id":"sess-1","override_id":"ovr-1","remaining_seconds":15}`))
	if err != nil {
		t.Fatalf("Apply tick: %v", err)
	}
	if state.Entries["ovr-1"].Cooldown.RemainingSeconds != 15 {
		t.Errorf("cooldown = %+v", state.Entries["ovr-1"].Cooldown)
	}

	state, err = Apply(state, envelope(t, stream.TypeOverrideCleared,
		`{"session_id":"sess-1","override_id":"ovr-1"}`))
	if err != nil {
		t.Fatalf("Apply cleared: %v", err)
	}
	if len(state.Entries) != 0 {
		t.Errorf("entries = %+v, want empty", state.Entries)
	}
}

func TestApplyIgnoresUnknownTypes(t *testing.T) {
	cur := &State{SessionID: "sess-1", Entries: map[string]Entry{}}

	next, err := Apply(cur, envelope(t, "operator_note", `{"text":"hi"}`))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if next != cur {
		t.Error("unknown message types must be no-ops")
	}
}

func TestApplyReturnsCurrentOnDecodeError(t *testing.T) {
	cur := &State{SessionID: "sess-1", Entries: map[string]Entry{}}

	next, err := Apply(cur, envelope(t, stream.TypeOverrideLock, `{"lock":`))
	if err == nil {
		t.Fatal("want decode error")
	}
	if next != cur {
		t.Error("a failed decode must leave the current state in place")
	}
}
