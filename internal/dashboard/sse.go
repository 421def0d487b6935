package dashboard

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/meridianbio/labsync/internal/session"
)

// ledgerEvent is what the relay pushes to dashboard clients for each newly
// reconciled message.
type ledgerEvent struct {
	SessionID string              `json:"session_id"`
	Appended  uint64              `json:"appended"`
	Latest    session.LedgerEntry `json:"latest"`
}

// handleSSE relays reconciled messages for one session to the browser. It
// polls the syncer's appended counter, so it observes messages even after
// ledger eviction renumbers entries.
func handleSSE(sessions *session.Syncer) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		id := c.Param("id")

		writeSSE(c.Writer, "connected", map[string]string{"session_id": id})
		c.Writer.Flush()

		lastSeen := sessions.Appended(id)

		ctx := c.Request.Context()
		ticker := time.NewTicker(1 * time.Second)
		heartbeat := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				writeSSE(c.Writer, "heartbeat", map[string]string{
					"timestamp": time.Now().UTC().Format(time.RFC3339),
				})
				c.Writer.Flush()
			case <-ticker.C:
				appended := sessions.Appended(id)
				if appended == lastSeen {
					continue
				}
				lastSeen = appended

				entries := sessions.Ledger(id)
				if len(entries) == 0 {
					continue
				}
				writeSSE(c.Writer, "message", ledgerEvent{
					SessionID: id,
					Appended:  appended,
					Latest:    entries[len(entries)-1],
				})
				c.Writer.Flush()
			}
		}
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
