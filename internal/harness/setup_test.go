package harness_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/WangZhewei1027/demoprobe/internal/config"
	"github.com/WangZhewei1027/demoprobe/internal/harness"
)

// testFixture holds the environment for browser integration tests.
type testFixture struct {
	Manager *harness.Manager
	Logger  *zap.Logger
	Config  *config.Config
	// Context used for the manager's lifecycle (allocator).
	MgrCtx context.Context
}

// setupTestConfig initializes the configuration and logger with timings tuned
// for tests: fast polling, short deadlines.
func setupTestConfig(t *testing.T) (*zap.Logger, *config.Config) {
	t.Helper()
	logger := zaptest.NewLogger(t, zaptest.Level(zap.DebugLevel))

	cfg := config.NewDefaultConfig()
	cfg.SetBrowserHeadless(true)
	cfg.SetBrowserDisableCache(true)
	cfg.SetHarnessNavigationTimeout(20 * time.Second)
	cfg.SetHarnessActionTimeout(10 * time.Second)
	cfg.SetHarnessPollInterval(50 * time.Millisecond)

	return logger, cfg
}

// setupBrowserManager initializes and starts the browser manager for a test.
func setupBrowserManager(t *testing.T) *testFixture {
	t.Helper()
	logger, cfg := setupTestConfig(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)

	mgr, err := harness.NewManager(ctx, logger, cfg)
	if err != nil {
		cancel()
		t.Fatalf("Failed to initialize browser manager. Ensure Chrome/Chromium is installed: %v", err)
	}

	fixture := &testFixture{
		Manager: mgr,
		Logger:  logger,
		Config:  cfg,
		MgrCtx:  ctx,
	}

	t.Cleanup(func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		if err := mgr.Shutdown(shutdownCtx); err != nil {
			t.Logf("Error during browser manager shutdown: %v", err)
		}
		cancel()
	})

	return fixture
}

// initializeSession creates a new browser session using the fixture's manager.
func (f *testFixture) initializeSession(t *testing.T) *harness.Session {
	t.Helper()

	sessionInitCtx, cancelInit := context.WithTimeout(f.MgrCtx, 30*time.Second)

	session, err := f.Manager.NewSession(sessionInitCtx)
	if err != nil {
		cancelInit()
		t.Fatalf("Failed to initialize session: %v", err)
	}

	t.Cleanup(func() {
		cancelInit()
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer closeCancel()
		if err := session.Close(closeCtx); err != nil {
			t.Logf("Error closing session %s: %v", session.ID(), err)
		}
	})
	return session
}

// createTestServer starts a mock HTTP server.
func createTestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

// serveHTML starts a server that answers every request with the given page.
func serveHTML(t *testing.T, html string) *httptest.Server {
	t.Helper()
	return createTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(html))
	}))
}
