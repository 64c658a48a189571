package service

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemalens/schemalens/internal/analysis"
)

func TestServerRequiresLedger(t *testing.T) {
	_, err := NewServer(Config{}, analysis.Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ledger")
}

func TestServerLifecycle(t *testing.T) {
	l := openTestLedger(t)
	srv, err := NewServer(Config{Host: "127.0.0.1", Port: 0}, analysis.Options{
		OutputBase: t.TempDir(),
		Ledger:     l,
	})
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(context.Background()) }()

	var addr string
	require.Eventually(t, func() bool {
		addr = srv.Addr()
		return !strings.HasSuffix(addr, ":0")
	}, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + addr + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	require.NoError(t, <-errCh)

	// A second shutdown is a no-op.
	require.NoError(t, srv.Shutdown(ctx))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, DefaultWorkers, cfg.Workers)
	assert.Equal(t, 15*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 60*time.Second, cfg.IdleTimeout)
	assert.Equal(t, 1<<20, cfg.MaxHeaderBytes)
}
