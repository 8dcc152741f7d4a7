package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/BaSui01/agentcoord/agent/directory"
	"github.com/BaSui01/agentcoord/agent/mailbox"
	"github.com/BaSui01/agentcoord/types"
	"go.uber.org/zap"
)

// =============================================================================
// 🤖 Agent 目录 Handler
// =============================================================================

// AgentRegistry Handler 依赖的协调器能力；*coordination.Coordinator 满足该接口
type AgentRegistry interface {
	RegisterAgent(ctx context.Context, caps types.AgentCapabilities) error
	RecoverMessages(ctx context.Context) (int, error)
	Directory() *directory.Directory
	Mailboxes() *mailbox.System
}

// AgentHandler Agent 目录处理器
type AgentHandler struct {
	registry AgentRegistry
	logger   *zap.Logger
}

// StatusUpdate Agent 运行时上报的状态；nil 字段保持不变
type StatusUpdate struct {
	Load      *float64 `json:"load,omitempty"`
	Available *bool    `json:"available,omitempty"`
}

// MailboxInfo 邮箱积压
type MailboxInfo struct {
	Agent   string `json:"agent"`
	Pending int    `json:"pending"`
}

// NewAgentHandler 创建 Agent 目录处理器
func NewAgentHandler(registry AgentRegistry, logger *zap.Logger) *AgentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AgentHandler{
		registry: registry,
		logger:   logger.With(zap.String("component", "agent_handler")),
	}
}

// =============================================================================
// 🎯 HTTP 处理程序
// =============================================================================

// HandleListAgents 列出全部 Agent；?skill= 时按该技能熟练度降序过滤
//
//	GET /api/v1/agents[?skill=coding]
func (h *AgentHandler) HandleListAgents(w http.ResponseWriter, r *http.Request) {
	dir := h.registry.Directory()
	if skill := strings.TrimSpace(r.URL.Query().Get("skill")); skill != "" {
		WriteSuccess(w, r, http.StatusOK, dir.FindBySkill(skill))
		return
	}
	WriteSuccess(w, r, http.StatusOK, dir.ListAll())
}

// HandleGetAgent 查询单个 Agent
//
//	GET /api/v1/agents/{id}
func (h *AgentHandler) HandleGetAgent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	caps, ok := h.registry.Directory().Lookup(id)
	if !ok {
		WriteError(w, r, types.NewUnknownAgentError(id), h.logger)
		return
	}
	WriteSuccess(w, r, http.StatusOK, caps)
}

// HandleRegisterAgent 注册或替换 Agent 的能力描述。
// 注册后重新投递持久化存储中尚未确认的消息，Agent 重启后据此取回积压。
//
//	POST /api/v1/agents
func (h *AgentHandler) HandleRegisterAgent(w http.ResponseWriter, r *http.Request) {
	var caps types.AgentCapabilities
	if err := DecodeJSONBody(w, r, &caps, h.logger); err != nil {
		return
	}
	if err := h.registry.RegisterAgent(r.Context(), caps); err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	recovered, err := h.registry.RecoverMessages(r.Context())
	if err != nil {
		h.logger.Warn("message recovery failed", zap.String("agent_id", caps.Agent.ID), zap.Error(err))
	}

	stored, _ := h.registry.Directory().Lookup(caps.Agent.ID)
	h.logger.Info("agent registered via API",
		zap.String("agent_id", stored.Agent.ID),
		zap.Strings("skills", stored.Skills),
		zap.Int("recovered", recovered),
	)
	WriteSuccess(w, r, http.StatusCreated, stored)
}

// HandleUpdateStatus 上报负载与可用性
//
//	PUT /api/v1/agents/{id}/status
func (h *AgentHandler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var update StatusUpdate
	if err := DecodeJSONBody(w, r, &update, h.logger); err != nil {
		return
	}
	if update.Load == nil && update.Available == nil {
		WriteErrorMessage(w, r, types.ErrInvalidInput, "load or available is required", h.logger)
		return
	}

	dir := h.registry.Directory()
	if update.Load != nil {
		if err := dir.SetLoad(id, *update.Load); err != nil {
			WriteError(w, r, err, h.logger)
			return
		}
	}
	if update.Available != nil {
		if err := dir.SetAvailability(id, *update.Available); err != nil {
			WriteError(w, r, err, h.logger)
			return
		}
	}

	caps, _ := dir.Lookup(id)
	WriteSuccess(w, r, http.StatusOK, caps)
}

// HandleMailbox 查询邮箱积压
//
//	GET /api/v1/agents/{id}/mailbox
func (h *AgentHandler) HandleMailbox(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.registry.Directory().Contains(id) {
		WriteError(w, r, types.NewUnknownAgentError(id), h.logger)
		return
	}
	WriteSuccess(w, r, http.StatusOK, MailboxInfo{
		Agent:   id,
		Pending: h.registry.Mailboxes().Pending(id),
	})
}
