package knowledge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BaSui01/agentcoord/agent/directory"
	"github.com/BaSui01/agentcoord/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Strategy 知识同步策略
type Strategy string

const (
	StrategyFull        Strategy = "full"
	StrategyIncremental Strategy = "incremental"
	StrategySelective   Strategy = "selective"
	StrategyGossip      Strategy = "gossip"
)

// Strategies 返回全部同步策略
func Strategies() []Strategy {
	return []Strategy{StrategyFull, StrategyIncremental, StrategySelective, StrategyGossip}
}

// ParseStrategy 解析策略名（大小写不敏感）
func ParseStrategy(s string) (Strategy, error) {
	for _, st := range Strategies() {
		if strings.EqualFold(s, string(st)) {
			return st, nil
		}
	}
	return "", types.Errorf(types.ErrInvalidInput, "unknown sync strategy %q", s)
}

// Gossip 配对方式
const (
	PairingRotation = "rotation"
	PairingRandom   = "random"
)

// Config 同步器配置
type Config struct {
	// DefaultTimeout 调用方未给出超时时使用
	DefaultTimeout time.Duration `json:"default_timeout" yaml:"default_timeout"`

	// PushRate 每秒推送次数上限，0 表示不限
	PushRate float64 `json:"push_rate" yaml:"push_rate"`

	// PushBurst 令牌桶容量
	PushBurst int `json:"push_burst" yaml:"push_burst"`

	// MaxConcurrentPushes 并发推送上限，0 表示不限
	MaxConcurrentPushes int `json:"max_concurrent_pushes" yaml:"max_concurrent_pushes"`

	// GossipRounds 每次调用的 Gossip 轮数
	GossipRounds int `json:"gossip_rounds" yaml:"gossip_rounds"`

	// GossipPairing rotation 或 random
	GossipPairing string `json:"gossip_pairing" yaml:"gossip_pairing"`

	// Seed random 配对的随机种子
	Seed int64 `json:"seed" yaml:"seed"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		DefaultTimeout:      30 * time.Second,
		PushBurst:           1,
		MaxConcurrentPushes: 8,
		GossipRounds:        3,
		GossipPairing:       PairingRotation,
		Seed:                1,
	}
}

// Report 同步结果
type Report struct {
	Strategy Strategy `json:"strategy"`

	// Pushed 每个 Agent 收到的事实数
	Pushed map[string]int `json:"pushed"`

	// Failed 推送失败的 Agent 及原因
	Failed map[string]string `json:"failed,omitempty"`

	// Rounds Gossip 实际执行的轮数，其它策略为 1
	Rounds int `json:"rounds"`

	// Convergence 同步结束时的收敛度，[0,1]
	Convergence float64 `json:"convergence"`
}

// OK reports whether every push was delivered.
func (r *Report) OK() bool {
	return len(r.Failed) == 0
}

func (r *Report) failedAgents() []string {
	out := make([]string, 0, len(r.Failed))
	for id := range r.Failed {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Synchronizer 在一组 Agent 的知识库之间传播事实
type Synchronizer struct {
	directory *directory.Directory
	store     Store
	config    Config
	logger    *zap.Logger

	// rotation 跨调用推进的 Gossip 轮次偏移
	rotation atomic.Uint64
}

// NewSynchronizer 创建同步器
func NewSynchronizer(dir *directory.Directory, store Store, config Config, logger *zap.Logger) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if store == nil {
		store = NewMemoryStore()
	}
	def := DefaultConfig()
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = def.DefaultTimeout
	}
	if config.GossipRounds <= 0 {
		config.GossipRounds = def.GossipRounds
	}
	if config.GossipPairing == "" {
		config.GossipPairing = def.GossipPairing
	}
	if config.PushBurst <= 0 {
		config.PushBurst = def.PushBurst
	}
	return &Synchronizer{
		directory: dir,
		store:     store,
		config:    config,
		logger:    logger.With(zap.String("component", "knowledge_sync")),
	}
}

// Store returns the backing knowledge store.
func (s *Synchronizer) Store() Store {
	return s.store
}

// Synchronize 按策略同步 agents 的知识。
// 所有推送都已送达时返回 nil；任一读取或推送失败、超时时返回报告及 KNOWLEDGE_SYNC_PARTIAL_FAILURE。
// 只有所有 Agent 的知识库都不可达（且并非超时）时返回 UPSTREAM_ERROR。
func (s *Synchronizer) Synchronize(ctx context.Context, agents []types.AgentID, strategy Strategy, timeout time.Duration) (*Report, error) {
	if _, err := ParseStrategy(string(strategy)); err != nil {
		return nil, err
	}
	if len(agents) == 0 {
		return nil, types.NewError(types.ErrEmptyCandidateSet, "agent set is empty")
	}
	snapshot, err := s.directory.Snapshot(agents)
	if err != nil {
		return nil, err
	}
	snapshot = dedupe(snapshot)

	if timeout <= 0 {
		timeout = s.config.DefaultTimeout
	}
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	report := &Report{
		Strategy: strategy,
		Pushed:   make(map[string]int, len(snapshot)),
		Failed:   make(map[string]string),
		Rounds:   1,
	}

	// 读取最多占用一半预算，读不到的 Agent 记入 Failed，其余照常同步
	rctx, rcancel := context.WithTimeout(sctx, timeout/2)
	defer rcancel()
	view, unread := s.readAll(rctx, snapshot)
	if len(view) == 0 && !deadlineExpired(rctx, unread) {
		ids := sortedKeys(unread)
		return nil, types.Errorf(types.ErrUpstreamError, "knowledge store unreachable for all %d agents", len(snapshot)).
			WithCause(unread[ids[0]])
	}
	readable := make([]types.AgentCapabilities, 0, len(view))
	for _, a := range snapshot {
		if err, ok := unread[a.Agent.ID]; ok {
			report.Failed[a.Agent.ID] = timeoutOr(rctx, err, "read deadline exceeded").Error()
			s.logger.Warn("knowledge read failed", zap.String("agent_id", a.Agent.ID), zap.Error(err))
			continue
		}
		readable = append(readable, a)
	}

	switch strategy {
	case StrategyFull:
		s.pushUnion(sctx, readable, view, report, false)
	case StrategyIncremental:
		s.pushUnion(sctx, readable, view, report, true)
	case StrategySelective:
		s.pushSelective(sctx, readable, view, report)
	case StrategyGossip:
		s.gossip(sctx, readable, view, report)
	}

	if strategy != StrategyGossip {
		if after, _ := s.readAll(sctx, readable); len(after) > 0 {
			report.Convergence = Convergence(after)
		}
	}

	s.logger.Info("knowledge synchronized",
		zap.String("strategy", string(strategy)),
		zap.Int("agents", len(snapshot)),
		zap.Int("failed", len(report.Failed)),
		zap.Int("rounds", report.Rounds),
		zap.Float64("convergence", report.Convergence),
	)

	if !report.OK() {
		failed := report.failedAgents()
		return report, types.Errorf(types.ErrKnowledgeSyncPartialFailure,
			"sync failed for %d of %d agents: %s", len(failed), len(snapshot), describe(report.Failed, failed))
	}
	return report, nil
}

// readAll 并发读取每个 Agent 当前的事实。单个 Agent 读取失败不影响其它 Agent，
// 失败的 Agent 不出现在 view 中。
func (s *Synchronizer) readAll(ctx context.Context, agents []types.AgentCapabilities) (map[string][]types.KnowledgeFact, map[string]error) {
	var mu sync.Mutex
	view := make(map[string][]types.KnowledgeFact, len(agents))
	failed := make(map[string]error)

	g := new(errgroup.Group)
	if s.config.MaxConcurrentPushes > 0 {
		g.SetLimit(s.config.MaxConcurrentPushes)
	}
	for _, a := range agents {
		id := a.Agent.ID
		g.Go(func() error {
			facts, err := s.store.CurrentFacts(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed[id] = err
				return nil
			}
			view[id] = facts
			return nil
		})
	}
	_ = g.Wait()
	return view, failed
}

// pushUnion Full 与 Incremental：中心化计算并集后推送给每个 Agent
func (s *Synchronizer) pushUnion(ctx context.Context, agents []types.AgentCapabilities, view map[string][]types.KnowledgeFact, report *Report, incremental bool) {
	union := unionOf(view)
	top := types.MaxVersion(union)

	deltas := make(map[string][]types.KnowledgeFact, len(agents))
	for _, a := range agents {
		id := a.Agent.ID
		if !incremental {
			deltas[id] = union
			continue
		}
		cursor, err := s.store.LastSynced(ctx, id)
		if err != nil {
			report.Failed[id] = fmt.Sprintf("read sync cursor: %v", err)
			continue
		}
		var delta []types.KnowledgeFact
		for _, f := range types.MissingFrom(union, view[id]) {
			if f.Version > cursor {
				delta = append(delta, f)
			}
		}
		deltas[id] = delta
	}

	s.pushAll(ctx, deltas, report, func(ctx context.Context, id string) error {
		return s.store.MarkSynced(ctx, id, top)
	})
}

// pushSelective 并集按 Agent 技能与事实主题的交集过滤
func (s *Synchronizer) pushSelective(ctx context.Context, agents []types.AgentCapabilities, view map[string][]types.KnowledgeFact, report *Report) {
	union := unionOf(view)
	deltas := make(map[string][]types.KnowledgeFact, len(agents))
	for _, a := range agents {
		var relevant []types.KnowledgeFact
		for _, f := range union {
			if relevantTo(f, a.Skills) {
				relevant = append(relevant, f)
			}
		}
		deltas[a.Agent.ID] = types.MissingFrom(relevant, view[a.Agent.ID])
	}
	s.pushAll(ctx, deltas, report, nil)
}

// pushAll 并发推送，受令牌桶与并发上限约束。after 在推送成功后执行。
func (s *Synchronizer) pushAll(ctx context.Context, deltas map[string][]types.KnowledgeFact, report *Report, after func(context.Context, string) error) {
	ids := make([]string, 0, len(deltas))
	for id := range deltas {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	limiter := s.limiter()
	var mu sync.Mutex

	g := new(errgroup.Group)
	if s.config.MaxConcurrentPushes > 0 {
		g.SetLimit(s.config.MaxConcurrentPushes)
	}
	for _, id := range ids {
		id := id
		facts := deltas[id]
		g.Go(func() error {
			err := s.push(ctx, limiter, id, facts)
			if err == nil && after != nil {
				err = after(ctx, id)
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed[id] = err.Error()
				s.logger.Warn("knowledge push failed", zap.String("agent_id", id), zap.Error(err))
				return nil
			}
			report.Pushed[id] += len(facts)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Synchronizer) push(ctx context.Context, limiter *rate.Limiter, id string, facts []types.KnowledgeFact) error {
	if err := limiter.Wait(ctx); err != nil {
		return timeoutOr(ctx, err, "push deadline exceeded")
	}
	if err := s.store.ApplyFacts(ctx, id, facts); err != nil {
		return timeoutOr(ctx, err, "push deadline exceeded")
	}
	return nil
}

func (s *Synchronizer) limiter() *rate.Limiter {
	if s.config.PushRate <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(s.config.PushRate), s.config.PushBurst)
}

func timeoutOr(ctx context.Context, err error, msg string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return types.NewTimeoutError(msg).WithCause(err)
	}
	return err
}

// deadlineExpired 截止时间已过，或任一失败由超时引起
func deadlineExpired(ctx context.Context, failed map[string]error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	for _, err := range failed {
		if errors.Is(err, context.DeadlineExceeded) {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func unionOf(view map[string][]types.KnowledgeFact) []types.KnowledgeFact {
	sets := make([][]types.KnowledgeFact, 0, len(view))
	for _, facts := range view {
		sets = append(sets, facts)
	}
	return types.MergeFacts(sets...)
}

func relevantTo(f types.KnowledgeFact, skills []string) bool {
	for _, skill := range skills {
		if f.HasTopic(skill) {
			return true
		}
	}
	return false
}

func dedupe(in []types.AgentCapabilities) []types.AgentCapabilities {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, c := range in {
		if _, ok := seen[c.Agent.ID]; ok {
			continue
		}
		seen[c.Agent.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}

func describe(failed map[string]string, order []string) string {
	parts := make([]string, len(order))
	for i, id := range order {
		parts[i] = id + ": " + failed[id]
	}
	return strings.Join(parts, "; ")
}
