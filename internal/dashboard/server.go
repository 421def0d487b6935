// Package dashboard serves a read-only HTTP view over the tracked sessions:
// merged snapshots, ledgers, resume and hint projections, and a live SSE
// relay of reconciled messages.
package dashboard

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/meridianbio/labsync/internal/overlay"
	"github.com/meridianbio/labsync/internal/session"
)

// StartOpts holds configuration for the dashboard server.
type StartOpts struct {
	Sessions  *session.Syncer
	Overrides *overlay.Syncer // optional
	Port      int
	Out       io.Writer
}

// Start launches the dashboard HTTP server. It blocks until ctx is
// cancelled, then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Sessions == nil {
		return fmt.Errorf("dashboard: session syncer is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	router := NewRouter(opts.Sessions, opts.Overrides)

	addr := fmt.Sprintf(":%d", opts.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Dashboard running at http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}

// NewRouter builds the dashboard routes. Split out so tests can exercise
// handlers without binding a port.
func NewRouter(sessions *session.Syncer, overrides *overlay.Syncer) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	registerRoutes(router, sessions, overrides)
	return router
}
