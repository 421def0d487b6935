package dashboard

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/meridianbio/labsync/internal/overlay"
	"github.com/meridianbio/labsync/internal/session"
)

// registerRoutes sets up all dashboard routes on the Gin router.
func registerRoutes(router *gin.Engine, sessions *session.Syncer, overrides *overlay.Syncer) {
	router.GET("/healthz", handleHealth)

	api := router.Group("/api")
	api.GET("/sessions/:id", handleSnapshot(sessions))
	api.GET("/sessions/:id/ledger", handleLedger(sessions))
	api.GET("/sessions/:id/resume", handleResume(sessions))
	api.GET("/sessions/:id/hints", handleHints(sessions))
	api.GET("/sessions/:id/events", handleSSE(sessions))

	if overrides != nil {
		api.GET("/sessions/:id/overrides", handleOverrides(overrides))
	}
}

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func handleSnapshot(sessions *session.Syncer) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		snap, ok := sessions.Snapshot(id)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not tracked"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"snapshot":  snap,
			"connected": sessions.Connected(id),
		})
	}
}

func handleLedger(sessions *session.Syncer) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		c.JSON(http.StatusOK, gin.H{
			"session_id": id,
			"entries":    sessions.Ledger(id),
			"appended":   sessions.Appended(id),
		})
	}
}

func handleResume(sessions *session.Syncer) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		point := sessions.ResumePoint(id)
		if point == nil {
			c.JSON(http.StatusOK, gin.H{"session_id": id, "resume": nil})
			return
		}
		c.JSON(http.StatusOK, gin.H{"session_id": id, "resume": point})
	}
}

func handleHints(sessions *session.Syncer) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		c.JSON(http.StatusOK, gin.H{
			"session_id": id,
			"hints":      sessions.Hints(id),
		})
	}
}

func handleOverrides(overrides *overlay.Syncer) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		state, ok := overrides.State(id)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not tracked"})
			return
		}
		c.JSON(http.StatusOK, state)
	}
}
