package notify

import (
	"context"
	"errors"
	"testing"
)

// stubAdapter records sends and fails on demand.
type stubAdapter struct {
	sendErr  error
	closeErr error
	sent     []Event
	closed   bool
}

func (s *stubAdapter) Send(ctx context.Context, ev Event) error {
	s.sent = append(s.sent, ev)
	return s.sendErr
}

func (s *stubAdapter) Close() error {
	s.closed = true
	return s.closeErr
}

func TestNewFanoutSkipsNilAdapters(t *testing.T) {
	f := NewFanout(&stubAdapter{}, nil, &stubAdapter{}, nil)
	if f.Len() != 2 {
		t.Errorf("Len() = %d, want 2", f.Len())
	}
}

func TestFanoutDeliversPastFailures(t *testing.T) {
	bad := &stubAdapter{sendErr: errors.New("rate limited")}
	good := &stubAdapter{}
	f := NewFanout(bad, good)

	ev := Event{Title: "Guardrail hold on sess-1", Severity: SeverityError}
	if err := f.Send(context.Background(), ev); err != nil {
		t.Errorf("Send returned %v, want nil even when an adapter fails", err)
	}
	if len(good.sent) != 1 || good.sent[0].Title != ev.Title {
		t.Errorf("good adapter got %+v", good.sent)
	}
	if len(bad.sent) != 1 {
		t.Error("failing adapter should still have been attempted")
	}
}

func TestFanoutCloseReturnsFirstError(t *testing.T) {
	first := errors.New("first")
	a := &stubAdapter{closeErr: first}
	b := &stubAdapter{closeErr: errors.New("second")}
	c := &stubAdapter{}

	if err := NewFanout(a, b, c).Close(); !errors.Is(err, first) {
		t.Errorf("Close() = %v, want first error", err)
	}
	if !a.closed || !b.closed || !c.closed {
		t.Error("all adapters should be closed")
	}
}
