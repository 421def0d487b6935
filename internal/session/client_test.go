package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(ClientOpts{BaseURL: srv.URL, Token: "tok-1"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client, srv
}

func TestClientFetch(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/sessions/sess-1" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("Authorization = %q", got)
		}
		json.NewEncoder(w).Encode(Snapshot{SessionID: "sess-1", Status: "running"})
	}))

	snap, err := client.Fetch(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if snap.SessionID != "sess-1" || snap.Status != "running" {
		t.Errorf("snap = %+v", snap)
	}
}

func TestClientSubmitStage(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/sessions/sess-1/stages" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req SubmitStageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Stage != "amplify" {
			t.Errorf("Stage = %q", req.Stage)
		}
		json.NewEncoder(w).Encode(Snapshot{SessionID: "sess-1", CurrentStage: "verify"})
	}))

	snap, err := client.SubmitStage(context.Background(), "sess-1", SubmitStageRequest{Stage: "amplify"})
	if err != nil {
		t.Fatalf("SubmitStage: %v", err)
	}
	if snap.CurrentStage != "verify" {
		t.Errorf("CurrentStage = %q", snap.CurrentStage)
	}
}

func TestClientErrorStatus(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "session is locked", http.StatusConflict)
	}))

	_, err := client.Cancel(context.Background(), "sess-1", CancelRequest{Reason: "operator abort"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "status 409") || !strings.Contains(err.Error(), "session is locked") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestClientStreamURLs(t *testing.T) {
	client, err := NewClient(ClientOpts{BaseURL: "https://lab.example.com/"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if got := client.StreamURL("sess-1"); got != "https://lab.example.com/api/sessions/sess-1/stream" {
		t.Errorf("StreamURL = %q", got)
	}
	if got := client.OverridesStreamURL("sess-1"); got != "https://lab.example.com/api/sessions/sess-1/overrides/stream" {
		t.Errorf("OverridesStreamURL = %q", got)
	}
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(ClientOpts{}); err == nil {
		t.Error("expected error for missing base url")
	}
}
