package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Client talks to the lab platform's session endpoints. It performs no
// retries and never caches; the command façade layers cache replacement on
// top of it.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// ClientOpts holds parameters for creating a Client.
type ClientOpts struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client // nil means http.DefaultClient
}

// NewClient creates a Client.
func NewClient(opts ClientOpts) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("session: base url is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		token:      opts.Token,
		httpClient: httpClient,
	}, nil
}

// StreamURL returns the push-stream URL for a session.
func (c *Client) StreamURL(sessionID string) string {
	return c.baseURL + "/api/sessions/" + sessionID + "/stream"
}

// OverridesStreamURL returns the governance override stream URL for a session.
func (c *Client) OverridesStreamURL(sessionID string) string {
	return c.baseURL + "/api/sessions/" + sessionID + "/overrides/stream"
}

// Fetch retrieves the canonical snapshot for a session.
func (c *Client) Fetch(ctx context.Context, sessionID string) (*Snapshot, error) {
	return c.do(ctx, http.MethodGet, "/api/sessions/"+sessionID, nil)
}

// SubmitStageRequest submits results for the session's current stage.
type SubmitStageRequest struct {
	Stage      string         `json:"stage"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// ResumeRequest continues a halted session from a resume point.
type ResumeRequest struct {
	ResumeToken string `json:"resume_token"`
}

// FinalizeRequest completes the session and optionally publishes the plan.
type FinalizeRequest struct {
	Publish bool   `json:"publish"`
	Notes   string `json:"notes,omitempty"`
}

// CancelRequest aborts the session.
type CancelRequest struct {
	Reason string `json:"reason,omitempty"`
}

// SubmitStage posts stage results and returns the server's authoritative
// snapshot.
func (c *Client) SubmitStage(ctx context.Context, sessionID string, req SubmitStageRequest) (*Snapshot, error) {
	return c.do(ctx, http.MethodPost, "/api/sessions/"+sessionID+"/stages", req)
}

// Resume continues the session from a resume token.
func (c *Client) Resume(ctx context.Context, sessionID string, req ResumeRequest) (*Snapshot, error) {
	return c.do(ctx, http.MethodPost, "/api/sessions/"+sessionID+"/resume", req)
}

// Finalize completes the session.
func (c *Client) Finalize(ctx context.Context, sessionID string, req FinalizeRequest) (*Snapshot, error) {
	return c.do(ctx, http.MethodPost, "/api/sessions/"+sessionID+"/finalize", req)
}

// Cancel aborts the session.
func (c *Client) Cancel(ctx context.Context, sessionID string, req CancelRequest) (*Snapshot, error) {
	return c.do(ctx, http.MethodPost, "/api/sessions/"+sessionID+"/cancel", req)
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (*Snapshot, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("session: marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("session: build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("session: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("session: %s %s: status %d: %s",
			method, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var snap Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("session: decode response: %w", err)
	}
	return &snap, nil
}
