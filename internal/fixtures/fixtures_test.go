package fixtures_test

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/WangZhewei1027/demoprobe/internal/config"
	"github.com/WangZhewei1027/demoprobe/internal/fixtures"
)

func TestAuditAll(t *testing.T) {
	require.NoError(t, fixtures.AuditAll())
}

func TestAuditPage(t *testing.T) {
	t.Run("MissingPage", func(t *testing.T) {
		err := fixtures.AuditPage("ghost.html", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing")
	})

	t.Run("MissingRequiredID", func(t *testing.T) {
		err := fixtures.AuditPage("static.html", []string{"definitelyNotThere"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "definitelyNotThere")
	})
}

func TestServerServesPages(t *testing.T) {
	logger := zaptest.NewLogger(t)
	cfg := config.NewDefaultConfig()

	server, err := fixtures.NewServer(logger, cfg)
	require.NoError(t, err)
	server.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	})

	resp, err := http.Get(server.PageURL("bars.html"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `id="generate"`)

	resp2, err := http.Get(server.BaseURL() + "/healthz")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
}

func TestServerUnknownPage(t *testing.T) {
	logger := zaptest.NewLogger(t)
	cfg := config.NewDefaultConfig()

	server, err := fixtures.NewServer(logger, cfg)
	require.NoError(t, err)
	server.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	})

	resp, err := http.Get(server.PageURL("ghost.html"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
