// Package testutil provides shared helpers for integration tests: a wired
// router, shell availability checks, and polling utilities.
package testutil

import (
	"context"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	apihttp "github.com/GriffinCanCode/TermStream/internal/api/http"
	"github.com/GriffinCanCode/TermStream/internal/api/ws"
	"github.com/GriffinCanCode/TermStream/internal/domain/terminal"
	"github.com/GriffinCanCode/TermStream/internal/infrastructure/logging"
)

// Shell is the shell used by integration tests.
const Shell = "/bin/sh"

// RequireShell skips the test when the test shell is not installed.
func RequireShell(t *testing.T) {
	t.Helper()
	if _, err := os.Stat(Shell); err != nil {
		t.Skipf("%s not available: %v", Shell, err)
	}
}

// NewManager creates a session manager with fast test-friendly tunables.
// Shutdown runs in cleanup.
func NewManager(t *testing.T) *terminal.Manager {
	t.Helper()
	m := terminal.NewManager(terminal.Config{
		DefaultShell:  Shell,
		MaxSessions:   8,
		FlushInterval: 5 * time.Millisecond,
		KillGrace:     time.Second,
	}, logging.NewNop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = m.Shutdown(ctx)
	})
	return m
}

// NewServer starts an httptest server with the full route table wired to a
// fresh manager: the session control plane, the WebSocket data plane, and
// health. Middleware is omitted.
func NewServer(t *testing.T) (*httptest.Server, *terminal.Manager) {
	t.Helper()
	manager := NewManager(t)

	gin.SetMode(gin.TestMode)
	router := gin.New()

	log := logging.NewNop()
	handlers := apihttp.NewHandler(manager, nil, log)
	wsHandler := ws.NewHandler(manager, log, nil)

	router.GET("/health", handlers.Health)
	router.POST("/sessions", handlers.CreateSession)
	router.GET("/sessions", handlers.ListSessions)
	router.GET("/sessions/:id", handlers.GetSession)
	router.DELETE("/sessions/:id", handlers.DestroySession)
	router.POST("/sessions/:id/restart", handlers.RestartSession)
	router.POST("/sessions/:id/input", handlers.WriteInput)
	router.POST("/sessions/:id/input/batch", handlers.WriteInputBatch)
	router.POST("/sessions/:id/control", handlers.Control)
	router.POST("/sessions/:id/resize", handlers.Resize)
	router.GET("/sessions/:id/scrollback", handlers.Scrollback)
	router.GET("/sessions/:id/stream", wsHandler.Stream)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, manager
}

// WaitFor polls cond until it returns true or the timeout elapses.
func WaitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}
