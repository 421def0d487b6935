package stream

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
)

// Transport opens the raw byte stream for a subscription URL. The default
// implementation is HTTP SSE; tests inject pipes.
type Transport interface {
	Connect(ctx context.Context, url string) (io.ReadCloser, error)
}

// httpTransport connects over HTTP with an Accept: text/event-stream header.
type httpTransport struct {
	client *http.Client
	token  string
}

func (t *httpTransport) Connect(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("stream: build request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stream: connect %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("stream: connect %s: unexpected status %d", url, resp.StatusCode)
	}
	return resp.Body, nil
}

// Manager owns at most one open subscription per resource id. Opening a new
// subscription for an id tears down the existing one first.
type Manager struct {
	transport Transport

	mu      sync.Mutex
	handles map[string]*Handle
}

// ManagerOpts holds parameters for creating a Manager.
type ManagerOpts struct {
	// Transport overrides the default HTTP SSE transport (used by tests).
	Transport Transport
	// HTTPClient is used by the default transport; nil means http.DefaultClient.
	HTTPClient *http.Client
	// Token is sent as a bearer token by the default transport.
	Token string
}

// NewManager creates a subscription Manager.
func NewManager(opts ManagerOpts) *Manager {
	tr := opts.Transport
	if tr == nil {
		client := opts.HTTPClient
		if client == nil {
			client = http.DefaultClient
		}
		tr = &httpTransport{client: client, token: opts.Token}
	}
	return &Manager{
		transport: tr,
		handles:   make(map[string]*Handle),
	}
}

// Handle is one live subscription. Close is idempotent; messages already in
// flight when Close returns never reach the callback.
type Handle struct {
	resourceID string
	onMessage  func(Envelope)

	mu     sync.Mutex
	closed bool
	body   io.ReadCloser
	done   chan struct{}
}

// Open subscribes to url for the given resource id, dispatching each parsed
// message to onMessage. Any existing subscription for the id is closed first.
// Messages whose session or override id does not match the subscription are
// dropped. A message that fails to parse is logged and dropped; it does not
// tear down the subscription. A transport error closes the subscription
// without retrying.
func (m *Manager) Open(ctx context.Context, resourceID, url string, onMessage func(Envelope)) (*Handle, error) {
	if resourceID == "" {
		return nil, fmt.Errorf("stream: resource id is required")
	}
	if onMessage == nil {
		return nil, fmt.Errorf("stream: onMessage is required")
	}

	body, err := m.transport.Connect(ctx, url)
	if err != nil {
		return nil, err
	}

	h := &Handle{
		resourceID: resourceID,
		onMessage:  onMessage,
		body:       body,
		done:       make(chan struct{}),
	}

	m.mu.Lock()
	if prev, ok := m.handles[resourceID]; ok {
		prev.Close()
	}
	m.handles[resourceID] = h
	m.mu.Unlock()

	go m.readLoop(h)
	return h, nil
}

// Close tears down the subscription for the given resource id, if any.
func (m *Manager) Close(resourceID string) {
	m.mu.Lock()
	h, ok := m.handles[resourceID]
	if ok {
		delete(m.handles, resourceID)
	}
	m.mu.Unlock()
	if ok {
		h.Close()
	}
}

// CloseAll tears down every open subscription.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	handles := make([]*Handle, 0, len(m.handles))
	for _, h := range m.handles {
		handles = append(handles, h)
	}
	m.handles = make(map[string]*Handle)
	m.mu.Unlock()

	for _, h := range handles {
		h.Close()
	}
}

// Opened reports whether a subscription is currently open for the resource id.
func (m *Manager) Opened(resourceID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.handles[resourceID]
	return ok
}

func (m *Manager) readLoop(h *Handle) {
	defer close(h.done)

	err := readFrames(h.body, func(data []byte) {
		env, perr := ParseData(data)
		if perr != nil {
			log.Printf("stream: dropping unparseable message for %s: %v", h.resourceID, perr)
			return
		}
		if env.SessionID != "" && env.SessionID != h.resourceID {
			log.Printf("stream: dropping message for %s addressed to %s", h.resourceID, env.SessionID)
			return
		}
		h.dispatch(env)
	})
	if err != nil && !h.Closed() {
		log.Printf("stream: %s: transport error: %v", h.resourceID, err)
	}

	// EOF or error: the subscription is over either way. No retry here.
	h.Close()
	m.remove(h)
}

// remove detaches h from the handle map if it is still the current handle
// for its resource id.
func (m *Manager) remove(h *Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.handles[h.resourceID]; ok && cur == h {
		delete(m.handles, h.resourceID)
	}
}

// dispatch invokes the callback unless the handle has been closed. The
// callback runs under the handle mutex so that Close, once returned,
// guarantees no further callback invocations.
func (h *Handle) dispatch(env Envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.onMessage(env)
}

// Close tears down the subscription. Safe to call more than once.
func (h *Handle) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	body := h.body
	h.mu.Unlock()

	if body != nil {
		body.Close()
	}
}

// Closed reports whether the handle has been closed.
func (h *Handle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// ResourceID returns the resource id this handle is subscribed to.
func (h *Handle) ResourceID() string {
	return h.resourceID
}

// Done returns a channel that closes when the read loop exits.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}
