package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/BaSui01/agentcoord/agent/coordination"
	"github.com/BaSui01/agentcoord/agent/persistence"
	"github.com/BaSui01/agentcoord/testutil/fixtures"
	"github.com/BaSui01/agentcoord/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// 🧪 AgentHandler 测试
// =============================================================================

func newAgentMux(t *testing.T, opts ...coordination.Option) (*coordination.Coordinator, *http.ServeMux) {
	t.Helper()
	coord := coordination.New(append([]coordination.Option{coordination.WithLogger(zap.NewNop())}, opts...)...)
	t.Cleanup(func() { _ = coord.Close() })

	h := NewAgentHandler(coord, zap.NewNop())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/agents", h.HandleListAgents)
	mux.HandleFunc("POST /api/v1/agents", h.HandleRegisterAgent)
	mux.HandleFunc("GET /api/v1/agents/{id}", h.HandleGetAgent)
	mux.HandleFunc("PUT /api/v1/agents/{id}/status", h.HandleUpdateStatus)
	mux.HandleFunc("GET /api/v1/agents/{id}/mailbox", h.HandleMailbox)
	return coord, mux
}

func serve(mux http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	return w
}

func dataAs[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var resp struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp.Data
}

func TestAgentHandler_RegisterAndGet(t *testing.T) {
	coord, mux := newAgentMux(t)

	w := serve(mux, http.MethodPost, "/api/v1/agents",
		`{"agent":{"id":"dev","name":"Dev"},"proficiency":{"coding":0.9},"load":0.3,"available":true}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	stored := dataAs[types.AgentCapabilities](t, w)
	assert.Equal(t, []string{"coding"}, stored.Skills)
	assert.True(t, coord.Directory().Contains("dev"))

	w = serve(mux, http.MethodGet, "/api/v1/agents/dev", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0.3, dataAs[types.AgentCapabilities](t, w).Load)

	w = serve(mux, http.MethodGet, "/api/v1/agents/ghost", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAgentHandler_RegisterRejectsInvalid(t *testing.T) {
	_, mux := newAgentMux(t)

	w := serve(mux, http.MethodPost, "/api/v1/agents", `{"agent":{"id":""}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_INPUT")

	w = serve(mux, http.MethodPost, "/api/v1/agents", `{"agent":{"id":"x"},"unknown":true}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAgentHandler_ListBySkill(t *testing.T) {
	coord, mux := newAgentMux(t)
	ctx := context.Background()
	team := fixtures.Team("", append(fixtures.DefaultTeam(),
		fixtures.Member{ID: "junior", Skill: "coding", Proficiency: 0.4})...)
	for _, caps := range team {
		require.NoError(t, coord.RegisterAgent(ctx, caps))
	}

	w := serve(mux, http.MethodGet, "/api/v1/agents", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, dataAs[[]types.AgentCapabilities](t, w), 6)

	w = serve(mux, http.MethodGet, "/api/v1/agents?skill=coding", "")
	require.Equal(t, http.StatusOK, w.Code)
	coders := dataAs[[]types.AgentCapabilities](t, w)
	require.Len(t, coders, 2)
	assert.Equal(t, "dev", coders[0].Agent.ID, "highest proficiency first")
	assert.Equal(t, "junior", coders[1].Agent.ID)
}

func TestAgentHandler_UpdateStatus(t *testing.T) {
	coord, mux := newAgentMux(t)
	require.NoError(t, coord.RegisterAgent(context.Background(), fixtures.Team("")[2]))

	w := serve(mux, http.MethodPut, "/api/v1/agents/dev/status", `{"load":1.7,"available":false}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	caps := dataAs[types.AgentCapabilities](t, w)
	assert.Equal(t, 1.0, caps.Load, "load is clamped")
	assert.False(t, caps.Available)

	w = serve(mux, http.MethodPut, "/api/v1/agents/dev/status", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(mux, http.MethodPut, "/api/v1/agents/ghost/status", `{"load":0.1}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAgentHandler_Mailbox(t *testing.T) {
	coord, mux := newAgentMux(t)
	ctx := context.Background()
	dev := fixtures.Team("")[2]
	require.NoError(t, coord.RegisterAgent(ctx, dev))
	require.NoError(t, coord.Send(ctx, types.NewMessage(coord.Identity(), types.MessageKindCommand, "build"), dev.Agent))
	require.NoError(t, coord.Send(ctx, types.NewMessage(coord.Identity(), types.MessageKindCommand, "test"), dev.Agent))

	w := serve(mux, http.MethodGet, "/api/v1/agents/dev/mailbox", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, MailboxInfo{Agent: "dev", Pending: 2}, dataAs[MailboxInfo](t, w))

	w = serve(mux, http.MethodGet, "/api/v1/agents/ghost/mailbox", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAgentHandler_RegisterRecoversPersistedBacklog(t *testing.T) {
	store := persistence.NewMemoryMessageStore(persistence.DefaultStoreConfig())
	ctx := context.Background()

	// 重启前：消息已持久化但未被取走
	before := coordination.New(coordination.WithMessageStore(store))
	t.Cleanup(func() { _ = before.Close() })
	dev := fixtures.Team("")[2]
	require.NoError(t, before.RegisterAgent(ctx, dev))
	require.NoError(t, before.Send(ctx, types.NewMessage(before.Identity(), types.MessageKindCommand, "deploy"), dev.Agent))

	_, mux := newAgentMux(t, coordination.WithMessageStore(store))
	w := serve(mux, http.MethodPost, "/api/v1/agents", `{"agent":{"id":"dev"},"proficiency":{"coding":0.9},"available":true}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = serve(mux, http.MethodGet, "/api/v1/agents/dev/mailbox", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, dataAs[MailboxInfo](t, w).Pending)
}
