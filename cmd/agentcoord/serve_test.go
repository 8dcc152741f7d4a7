package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/BaSui01/agentcoord/agent/coordination"
	"github.com/BaSui01/agentcoord/api/handlers"
	"github.com/BaSui01/agentcoord/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T, opts ...coordination.Option) (*coordination.Coordinator, http.Handler) {
	t.Helper()
	coord := coordination.New(append([]coordination.Option{coordination.WithLogger(zap.NewNop())}, opts...)...)
	t.Cleanup(func() { _ = coord.Close() })
	return coord, newHTTPHandler(coord, zap.NewNop())
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

// envelope 解出统一响应中的 data
func envelope[T any](t *testing.T, w *httptest.ResponseRecorder) (T, handlers.Response) {
	t.Helper()
	var raw struct {
		handlers.Response
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw), w.Body.String())
	return raw.Data, raw.Response
}

func TestHTTP_Health(t *testing.T) {
	_, h := newTestHandler(t)

	for _, path := range []string{"/health", "/healthz"} {
		w := do(h, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"healthy"`)
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	}

	w := do(h, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, w.Code)
	var ready handlers.HealthStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ready))
	assert.Equal(t, "healthy", ready.Status)
	assert.Equal(t, float64(0), ready.Details["agents"])

	w = do(h, http.MethodGet, "/version", "")
	assert.Equal(t, http.StatusOK, w.Code)
	data, resp := envelope[map[string]string](t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, Version, data["version"])
	assert.NotEmpty(t, resp.RequestID)
}

func TestHTTP_ReadyReflectsHealthChecks(t *testing.T) {
	_, h := newTestHandler(t,
		coordination.WithHealthCheck("redis", func(context.Context) error { return nil }),
		coordination.WithHealthCheck("database", func(context.Context) error { return errors.New("connection refused") }),
	)

	w := do(h, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var ready handlers.HealthStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ready))
	assert.Equal(t, "unhealthy", ready.Status)
	assert.Equal(t, "pass", ready.Checks["redis"].Status)
	assert.Equal(t, "fail", ready.Checks["database"].Status)
}

func TestHTTP_RegisterAndListAgents(t *testing.T) {
	coord, h := newTestHandler(t)

	w := do(h, http.MethodPost, "/api/v1/agents",
		`{"agent":{"id":"dev","name":"Dev"},"proficiency":{"coding":0.9,"review":1.4},"load":0.2,"available":true}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	stored, _ := envelope[types.AgentCapabilities](t, w)
	assert.Equal(t, "dev", stored.Agent.ID)
	assert.Equal(t, []string{"coding", "review"}, stored.Skills)
	assert.Equal(t, 1.0, stored.Proficiency["review"], "proficiency is clamped")
	assert.True(t, coord.Directory().Contains("dev"))

	w = do(h, http.MethodGet, "/api/v1/agents", "")
	require.Equal(t, http.StatusOK, w.Code)
	all, _ := envelope[[]types.AgentCapabilities](t, w)
	require.Len(t, all, 1)
	assert.Equal(t, "dev", all[0].Agent.ID)

	w = do(h, http.MethodGet, "/api/v1/agents/dev", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(h, http.MethodPut, "/api/v1/agents/dev/status", `{"available":false}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	caps, ok := coord.Directory().Lookup("dev")
	require.True(t, ok)
	assert.False(t, caps.Available)
}

func TestHTTP_RegisterRejectsBadInput(t *testing.T) {
	_, h := newTestHandler(t)

	w := do(h, http.MethodPost, "/api/v1/agents", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(h, http.MethodPost, "/api/v1/agents", `{"agent":{"id":""}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	_, resp := envelope[json.RawMessage](t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(types.ErrInvalidInput), resp.Error.Code)
}

func TestHTTP_Mailbox(t *testing.T) {
	coord, h := newTestHandler(t)
	ctx := context.Background()

	dev := types.NewAgentID("dev", "Dev")
	require.NoError(t, coord.RegisterAgent(ctx, types.AgentCapabilities{Agent: dev, Available: true}))
	require.NoError(t, coord.Send(ctx, types.NewMessage(coord.Identity(), types.MessageKindQuery, "status?"), dev))

	w := do(h, http.MethodGet, "/api/v1/agents/dev/mailbox", "")
	require.Equal(t, http.StatusOK, w.Code)
	info, _ := envelope[handlers.MailboxInfo](t, w)
	assert.Equal(t, handlers.MailboxInfo{Agent: "dev", Pending: 1}, info)

	w = do(h, http.MethodGet, "/api/v1/agents/ghost/mailbox", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), string(types.ErrUnknownAgent))
}

func TestHTTP_MethodNotAllowed(t *testing.T) {
	_, h := newTestHandler(t)
	w := do(h, http.MethodDelete, "/api/v1/agents", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
