package server

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/BaSui01/agentcoord/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func randomPort() Config {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	return cfg
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(config.ServerConfig{HTTPPort: 7000, ReadTimeout: 5 * time.Second})
	assert.Equal(t, ":7000", cfg.Addr)
	assert.Equal(t, 5*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 10*time.Second, cfg.IdleTimeout)
	assert.Equal(t, DefaultConfig().WriteTimeout, cfg.WriteTimeout)

	assert.Equal(t, DefaultConfig(), ConfigFrom(config.ServerConfig{}))
}

func TestManager_StartAndShutdown(t *testing.T) {
	m := NewManager(okHandler(), randomPort(), zap.NewNop())
	require.NoError(t, m.Start())
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })

	assert.NotEqual(t, "127.0.0.1:0", m.Addr(), "Addr reports the bound port")
	resp, err := http.Get("http://" + m.Addr() + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))

	require.NoError(t, m.Shutdown(context.Background()))
	assert.False(t, m.IsRunning())
	require.NoError(t, m.Shutdown(context.Background()), "shutdown is idempotent")
}

func TestManager_DoubleStart(t *testing.T) {
	m := NewManager(okHandler(), randomPort(), nil)
	require.NoError(t, m.Start())
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })

	err := m.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already started")
}

func TestManager_StartAfterShutdown(t *testing.T) {
	m := NewManager(okHandler(), randomPort(), nil)
	require.NoError(t, m.Start())
	require.NoError(t, m.Shutdown(context.Background()))

	err := m.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")
}

func TestManager_WaitReturnsOnContextCancel(t *testing.T) {
	m := NewManager(okHandler(), randomPort(), nil)
	require.NoError(t, m.Start())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Wait(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not return after cancel")
	}
	assert.False(t, m.IsRunning())
}

func TestManager_ErrorsEmptyWhileHealthy(t *testing.T) {
	m := NewManager(okHandler(), randomPort(), nil)
	select {
	case <-m.Errors():
		t.Fatal("should not have received an error")
	default:
	}
}
