package session

import (
	"reflect"
	"testing"
)

func resumeFixture() (*RecoveryBundle, []LedgerEntry, []HistoryRecord) {
	bundle := &RecoveryBundle{ResumeToken: "T1"}
	messages := []LedgerEntry{
		{Seq: 1, Type: "stage_completed"},
		{Seq: 2, Type: "guardrail_hold", ResumeToken: "T2-old"},
		{Seq: 3, Type: "guardrail_hold", ResumeToken: "T2"},
		{Seq: 4, Type: "telemetry"},
	}
	history := []HistoryRecord{
		{Stage: "design", ResumeToken: "T3-old"},
		{Stage: "amplify", ResumeToken: "T3"},
		{Stage: "verify"},
	}
	return bundle, messages, history
}

func TestResolveResumePriority(t *testing.T) {
	bundle, messages, history := resumeFixture()

	// Bundle outranks everything.
	rp := ResolveResume(bundle, messages, history)
	if rp == nil || rp.Token != "T1" || rp.Source != "bundle" {
		t.Errorf("ResolveResume = %+v, want T1 from bundle", rp)
	}

	// Without the bundle, the newest message token wins.
	rp = ResolveResume(nil, messages, history)
	if rp == nil || rp.Token != "T2" || rp.Source != "message" {
		t.Errorf("ResolveResume = %+v, want T2 from message", rp)
	}

	// Bundle present but tokenless does not shadow messages.
	rp = ResolveResume(&RecoveryBundle{FailedStage: "amplify"}, messages, history)
	if rp == nil || rp.Token != "T2" {
		t.Errorf("ResolveResume = %+v, want T2", rp)
	}

	// Without bundle and messages, the newest history token wins.
	rp = ResolveResume(nil, nil, history)
	if rp == nil || rp.Token != "T3" || rp.Source != "history" {
		t.Errorf("ResolveResume = %+v, want T3 from history", rp)
	}

	// No candidates at all.
	if rp := ResolveResume(nil, nil, nil); rp != nil {
		t.Errorf("ResolveResume = %+v, want nil", rp)
	}
}

func TestResolveResumeDeterministic(t *testing.T) {
	bundle, messages, history := resumeFixture()
	first := ResolveResume(bundle, messages, history)
	for i := 0; i < 5; i++ {
		if got := ResolveResume(bundle, messages, history); !reflect.DeepEqual(got, first) {
			t.Fatalf("resolution not deterministic: %+v vs %+v", got, first)
		}
	}
}

func TestCollectHintsFirstSeenWins(t *testing.T) {
	bundle := &RecoveryBundle{
		Hints: []Hint{{Category: "custody", Action: "hold", Detail: "from bundle"}},
	}
	messages := []LedgerEntry{
		{Hints: []Hint{
			{Category: "custody", Action: "hold", Detail: "from message"},
			{Category: "qc", Action: "retry"},
		}},
	}

	got := CollectHints(bundle, messages, nil)
	want := []Hint{
		{Category: "custody", Action: "hold", Detail: "from bundle"},
		{Category: "qc", Action: "retry"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CollectHints = %v, want %v", got, want)
	}
}

func TestCollectHintsSourceOrder(t *testing.T) {
	bundle := &RecoveryBundle{Hints: []Hint{{Category: "a", Action: "1"}}}
	messages := []LedgerEntry{
		{Hints: []Hint{{Category: "b", Action: "2"}}},
		{Hints: []Hint{{Category: "c", Action: "3"}, {Category: "a", Action: "1", Detail: "dup"}}},
	}
	history := []HistoryRecord{
		{Hints: []Hint{{Category: "d", Action: "4"}, {Category: "b", Action: "2", Detail: "dup"}}},
	}

	got := CollectHints(bundle, messages, history)
	wantKeys := []string{"a:1", "b:2", "c:3", "d:4"}
	if len(got) != len(wantKeys) {
		t.Fatalf("len = %d, want %d: %v", len(got), len(wantKeys), got)
	}
	for i, h := range got {
		if h.Key() != wantKeys[i] {
			t.Errorf("hint[%d] = %q, want %q", i, h.Key(), wantKeys[i])
		}
		if h.Detail == "dup" {
			t.Errorf("hint[%d] took the later duplicate", i)
		}
	}
}

func TestCollectHintsEmpty(t *testing.T) {
	if got := CollectHints(nil, nil, nil); len(got) != 0 {
		t.Errorf("CollectHints = %v, want empty", got)
	}
}
