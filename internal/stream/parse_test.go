package stream

import (
	"strings"
	"testing"
)

func TestParseData(t *testing.T) {
	env, err := ParseData([]byte(`{"type":"telemetry","session_id":"sess-1","elapsed_sec":42}`))
	if err != nil {
		t.Fatalf("ParseData: %v", err)
	}
	if env.Type != TypeTelemetry {
		t.Errorf("Type = %q, want %q", env.Type, TypeTelemetry)
	}
	if env.SessionID != "sess-1" {
		t.Errorf("SessionID = %q", env.SessionID)
	}
	if len(env.Raw) == 0 {
		t.Error("Raw payload not retained")
	}
	if env.ReceivedAt.IsZero() {
		t.Error("ReceivedAt not set")
	}
}

func TestParseDataOverride(t *testing.T) {
	env, err := ParseData([]byte(`{"type":"cooldown_tick","session_id":"sess-1","override_id":"ovr-7"}`))
	if err != nil {
		t.Fatalf("ParseData: %v", err)
	}
	if env.OverrideID != "ovr-7" {
		t.Errorf("OverrideID = %q", env.OverrideID)
	}
}

func TestParseDataErrors(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"not json", "this is not json"},
		{"missing type", `{"session_id":"sess-1"}`},
		{"empty", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseData([]byte(tc.data)); err == nil {
				t.Errorf("ParseData(%q): expected error", tc.data)
			}
		})
	}
}

func TestReadFrames(t *testing.T) {
	input := "event: message\n" +
		"data: {\"type\":\"stage_started\"}\n" +
		"\n" +
		": heartbeat comment\n" +
		"\n" +
		"data: {\"type\":\"telemetry\"}\n" +
		"\n"

	var frames []string
	err := readFrames(strings.NewReader(input), func(data []byte) {
		frames = append(frames, string(data))
	})
	if err != nil {
		t.Fatalf("readFrames: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2: %v", len(frames), frames)
	}
	if frames[0] != `{"type":"stage_started"}` {
		t.Errorf("frame[0] = %q", frames[0])
	}
	if frames[1] != `{"type":"telemetry"}` {
		t.Errorf("frame[1] = %q", frames[1])
	}
}

func TestReadFramesMultiLineData(t *testing.T) {
	input := "data: line-one\ndata: line-two\n\n"

	var frames []string
	err := readFrames(strings.NewReader(input), func(data []byte) {
		frames = append(frames, string(data))
	})
	if err != nil {
		t.Fatalf("readFrames: %v", err)
	}
	if len(frames) != 1 || frames[0] != "line-one\nline-two" {
		t.Errorf("frames = %v", frames)
	}
}

func TestReadFramesUnterminatedFinalFrame(t *testing.T) {
	var frames []string
	err := readFrames(strings.NewReader("data: tail\n"), func(data []byte) {
		frames = append(frames, string(data))
	})
	if err != nil {
		t.Fatalf("readFrames: %v", err)
	}
	if len(frames) != 1 || frames[0] != "tail" {
		t.Errorf("frames = %v", frames)
	}
}

func TestIsLifecycle(t *testing.T) {
	lifecycle := []string{TypeStageStarted, TypeStageCompleted, TypeSessionCompleted, TypeGuardrailHold}
	for _, mt := range lifecycle {
		if !IsLifecycle(mt) {
			t.Errorf("IsLifecycle(%q) = false, want true", mt)
		}
	}
	ticks := []string{TypeTelemetry, TypeStageProgress, TypeCooldownTick, TypeRecoveryBundle, TypeDrillSummaries}
	for _, mt := range ticks {
		if IsLifecycle(mt) {
			t.Errorf("IsLifecycle(%q) = true, want false", mt)
		}
	}
}
