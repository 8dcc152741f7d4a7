package coordination

import (
	"context"

	"github.com/BaSui01/agentcoord/agent/allocation"
	"github.com/BaSui01/agentcoord/agent/consensus"
	"github.com/BaSui01/agentcoord/agent/decompose"
	"github.com/BaSui01/agentcoord/agent/knowledge"
	"github.com/BaSui01/agentcoord/agent/mailbox"
	"github.com/BaSui01/agentcoord/agent/persistence"
	"github.com/BaSui01/agentcoord/agent/planning"
	"github.com/BaSui01/agentcoord/config"
	"github.com/BaSui01/agentcoord/internal/metrics"
	"github.com/BaSui01/agentcoord/types"
	"go.uber.org/zap"
)

// Config 各引擎配置的集合
type Config struct {
	Mailbox    mailbox.Config    `json:"mailbox" yaml:"mailbox"`
	Allocation allocation.Config `json:"allocation" yaml:"allocation"`
	Consensus  consensus.Config  `json:"consensus" yaml:"consensus"`
	Sync       knowledge.Config  `json:"sync" yaml:"sync"`
	Planner    planning.Config   `json:"planner" yaml:"planner"`
}

// DefaultConfig 返回各引擎的默认配置
func DefaultConfig() Config {
	return Config{
		Mailbox:    mailbox.DefaultConfig(),
		Allocation: allocation.DefaultConfig(),
		Consensus:  consensus.DefaultConfig(),
		Sync:       knowledge.DefaultConfig(),
		Planner:    planning.DefaultConfig(),
	}
}

// ConfigFrom 把应用配置映射为引擎配置；零值字段保留默认值
func ConfigFrom(cfg *config.Config) Config {
	out := DefaultConfig()
	if cfg == nil {
		return out
	}

	out.Mailbox.Capacity = cfg.Mailbox.Capacity
	if cfg.Mailbox.StoreTimeout > 0 {
		out.Mailbox.StoreTimeout = cfg.Mailbox.StoreTimeout
	}
	if cfg.Mailbox.MaxRetries > 0 {
		out.Mailbox.Retry.MaxRetries = cfg.Mailbox.MaxRetries
	}

	if cfg.Allocation.DefaultTaskDuration > 0 {
		out.Allocation.DefaultTaskDuration = cfg.Allocation.DefaultTaskDuration
	}
	if cfg.Allocation.LoadIncrement > 0 {
		out.Allocation.LoadIncrement = cfg.Allocation.LoadIncrement
	}
	out.Allocation.MaxTasks = cfg.Allocation.MaxTasks

	if cfg.Consensus.DefaultTimeout > 0 {
		out.Consensus.DefaultTimeout = cfg.Consensus.DefaultTimeout
	}
	if cfg.Consensus.MaxConcurrentVotes > 0 {
		out.Consensus.MaxConcurrentVotes = cfg.Consensus.MaxConcurrentVotes
	}
	if cfg.Consensus.MinVotes > 0 {
		out.Consensus.MinVotes = cfg.Consensus.MinVotes
	}
	if cfg.Consensus.DecisionSkill != "" {
		out.Consensus.DecisionSkill = cfg.Consensus.DecisionSkill
	}

	if cfg.Sync.DefaultTimeout > 0 {
		out.Sync.DefaultTimeout = cfg.Sync.DefaultTimeout
	}
	out.Sync.PushRate = cfg.Sync.PushRate
	if cfg.Sync.PushBurst > 0 {
		out.Sync.PushBurst = cfg.Sync.PushBurst
	}
	if cfg.Sync.MaxConcurrentPushes > 0 {
		out.Sync.MaxConcurrentPushes = cfg.Sync.MaxConcurrentPushes
	}
	if cfg.Sync.GossipRounds > 0 {
		out.Sync.GossipRounds = cfg.Sync.GossipRounds
	}
	if cfg.Sync.GossipPairing != "" {
		out.Sync.GossipPairing = cfg.Sync.GossipPairing
	}
	if cfg.Sync.Seed != 0 {
		out.Sync.Seed = cfg.Sync.Seed
	}

	if cfg.Planner.DefaultTaskDuration > 0 {
		out.Planner.DefaultTaskDuration = cfg.Planner.DefaultTaskDuration
	}
	if cfg.Planner.MaxTasks > 0 {
		out.Planner.MaxTasks = cfg.Planner.MaxTasks
	}
	out.Planner.PhaseOrdering = cfg.Planner.PhaseOrdering

	return out
}

// Option 配置 Coordinator
type Option func(*options)

type options struct {
	config         Config
	logger         *zap.Logger
	metrics        *metrics.Collector
	decomposer     decompose.Decomposer
	caster         consensus.VoteCaster
	knowledgeStore knowledge.Store
	messageStore   persistence.MessageStore
	self           types.AgentID
	closers        []func() error
	checks         []HealthCheck
}

// HealthCheck 后端连通性检查，供就绪检查使用
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// WithConfig 设置引擎配置
func WithConfig(cfg Config) Option {
	return func(o *options) { o.config = cfg }
}

// WithLogger 设置日志，默认 zap.NewNop()
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics 设置 Prometheus 指标采集器；未设置时不记录指标
func WithMetrics(c *metrics.Collector) Option {
	return func(o *options) { o.metrics = c }
}

// WithDecomposer 设置目标分解器，默认启发式分解
func WithDecomposer(d decompose.Decomposer) Option {
	return func(o *options) { o.decomposer = d }
}

// WithVoteCaster 设置投票征集器。未设置时通过邮箱向投票者征集，
// 回复投递到 Coordinator 自己的邮箱。
func WithVoteCaster(c consensus.VoteCaster) Option {
	return func(o *options) { o.caster = c }
}

// WithKnowledgeStore 设置每个 Agent 的知识库，默认内存实现
func WithKnowledgeStore(s knowledge.Store) Option {
	return func(o *options) { o.knowledgeStore = s }
}

// WithMessageStore 设置邮箱持久化存储；未设置时邮箱仅在内存中
func WithMessageStore(s persistence.MessageStore) Option {
	return func(o *options) { o.messageStore = s }
}

// WithIdentity 设置 Coordinator 作为消息发送方时使用的身份
func WithIdentity(id types.AgentID) Option {
	return func(o *options) { o.self = id }
}

// WithCloser 注册在 Close 时按注册逆序释放的资源
func WithCloser(fn func() error) Option {
	return func(o *options) {
		if fn != nil {
			o.closers = append(o.closers, fn)
		}
	}
}

// WithHealthCheck 注册后端健康检查
func WithHealthCheck(name string, ping func(ctx context.Context) error) Option {
	return func(o *options) {
		if ping != nil {
			o.checks = append(o.checks, HealthCheck{Name: name, Ping: ping})
		}
	}
}
