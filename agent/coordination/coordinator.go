package coordination

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/BaSui01/agentcoord/agent/allocation"
	"github.com/BaSui01/agentcoord/agent/consensus"
	"github.com/BaSui01/agentcoord/agent/directory"
	"github.com/BaSui01/agentcoord/agent/knowledge"
	"github.com/BaSui01/agentcoord/agent/mailbox"
	"github.com/BaSui01/agentcoord/agent/planning"
	"github.com/BaSui01/agentcoord/internal/metrics"
	"github.com/BaSui01/agentcoord/internal/telemetry"
	"github.com/BaSui01/agentcoord/types"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// DefaultIdentity Coordinator 发送消息、接收投票回复时使用的身份
var DefaultIdentity = types.NewAgentID("coordinator", "Coordinator")

// Coordinator 把目录与邮箱系统接入四个引擎，对外提供统一 API。
// 自身只持有这些组件的引用，每次调用的结果都归调用方所有。
type Coordinator struct {
	self types.AgentID

	directory *directory.Directory
	mailboxes *mailbox.System
	allocator *allocation.Engine
	consensus *consensus.Engine
	sync      *knowledge.Synchronizer
	planner   *planning.Planner

	metrics *metrics.Collector
	logger  *zap.Logger

	stopCaster context.CancelFunc
	casterDone chan struct{}
	closers    []func() error
	checks     []HealthCheck
	closeOnce  sync.Once
	closeErr   error
}

// New 创建 Coordinator
func New(opts ...Option) *Coordinator {
	o := &options{
		config: DefaultConfig(),
		self:   DefaultIdentity,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	logger := o.logger

	c := &Coordinator{
		self:      o.self,
		directory: directory.New(logger),
		metrics:   o.metrics,
		logger:    logger.With(zap.String("component", "coordinator")),
		closers:   o.closers,
		checks:    o.checks,
	}
	c.mailboxes = mailbox.NewWithStore(o.config.Mailbox, o.messageStore, logger)

	caster := o.caster
	if caster == nil {
		mc := consensus.NewMailboxCaster(c.mailboxes, c.self, logger)
		ctx, cancel := context.WithCancel(context.Background())
		c.stopCaster = cancel
		c.casterDone = make(chan struct{})
		go func() {
			defer close(c.casterDone)
			if err := mc.Run(ctx); err != nil {
				c.logger.Debug("vote reply loop stopped", zap.Error(err))
			}
		}()
		caster = mc
	}

	c.allocator = allocation.NewEngine(c.directory, o.decomposer, o.config.Allocation, logger)
	c.consensus = consensus.NewEngine(c.directory, caster, o.config.Consensus, logger)
	c.sync = knowledge.NewSynchronizer(c.directory, o.knowledgeStore, o.config.Sync, logger)
	c.planner = planning.NewPlanner(c.directory, o.decomposer, o.config.Planner, logger)

	c.logger.Info("coordinator initialized",
		zap.String("identity", c.self.ID),
		zap.Bool("metrics", c.metrics != nil),
		zap.Bool("mailbox_vote_caster", o.caster == nil),
	)
	return c
}

// HealthChecks 返回注册的后端健康检查
func (c *Coordinator) HealthChecks() []HealthCheck {
	return append([]HealthCheck(nil), c.checks...)
}

// Identity 返回 Coordinator 自身的身份
func (c *Coordinator) Identity() types.AgentID {
	return c.self
}

// Directory 返回 Agent 目录，调用方通过它更新负载与可用性
func (c *Coordinator) Directory() *directory.Directory {
	return c.directory
}

// Mailboxes 返回邮箱系统，外部 Agent 运行时通过它收发消息
func (c *Coordinator) Mailboxes() *mailbox.System {
	return c.mailboxes
}

// Metrics 返回指标采集器，未启用时为 nil
func (c *Coordinator) Metrics() *metrics.Collector {
	return c.metrics
}

// Knowledge 返回知识同步使用的知识库
func (c *Coordinator) Knowledge() knowledge.Store {
	return c.sync.Store()
}

// =============================================================================
// 🎯 公共操作
// =============================================================================

// RegisterAgent 注册或替换 Agent 的能力描述，并为其创建邮箱
func (c *Coordinator) RegisterAgent(ctx context.Context, caps types.AgentCapabilities) (err error) {
	_, span := telemetry.StartSpan(ctx, "register_agent", attribute.String("coord.agent_id", caps.Agent.ID))
	start := time.Now()
	defer func() {
		telemetry.EndSpan(span, err)
		c.observe("register_agent", start, err)
	}()

	// 与 Coordinator 同名会共用其邮箱，投票回复会被吞掉
	if caps.Agent.ID == c.self.ID {
		err = types.Errorf(types.ErrInvalidInput, "agent id %q is reserved for the coordinator", caps.Agent.ID)
		return err
	}
	if err = c.directory.Register(caps); err != nil {
		return err
	}
	c.mailboxes.Open(caps.Agent)

	if c.metrics != nil {
		c.metrics.SetAgentsRegistered(c.directory.Len())
	}
	return nil
}

// Send 单播投递
func (c *Coordinator) Send(ctx context.Context, msg types.Message, recipient types.AgentID) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "send",
		attribute.String("coord.recipient", recipient.ID),
		attribute.String("coord.message_kind", string(msg.Kind)),
	)
	start := time.Now()
	defer func() {
		telemetry.EndSpan(span, err)
		c.observe("send", start, err)
	}()

	err = c.mailboxes.Deliver(ctx, msg, recipient)
	if c.metrics != nil {
		if err != nil {
			c.metrics.RecordDelivery("unicast", 0, []string{string(errorCode(err))})
		} else {
			c.metrics.RecordDelivery("unicast", 1, nil)
		}
	}
	return err
}

// Broadcast 按分组模式投递消息。部分成员失败时仍返回成功，失败明细在报告中。
func (c *Coordinator) Broadcast(ctx context.Context, msg types.Message, group types.AgentGroup) (report types.DeliveryReport, err error) {
	ctx, span := telemetry.StartSpan(ctx, "broadcast",
		attribute.String("coord.group", group.Name),
		attribute.String("coord.delivery_mode", string(group.Mode)),
		attribute.Int("coord.members", len(group.Members)),
	)
	start := time.Now()
	defer func() {
		span.SetAttributes(
			attribute.Int("coord.delivered", report.Delivered),
			attribute.Int("coord.failures", len(report.Failures)),
		)
		telemetry.EndSpan(span, err)
		c.observe("broadcast", start, err)
	}()

	report, err = c.mailboxes.DeliverToGroup(ctx, msg, group)
	if err != nil {
		return report, err
	}

	if c.metrics != nil {
		codes := make([]string, len(report.Failures))
		for i, f := range report.Failures {
			codes[i] = string(f.Code)
		}
		c.metrics.RecordDelivery(string(group.Mode), report.Delivered, codes)
	}
	if !report.Complete() {
		c.logger.Warn("partial group delivery",
			zap.String("group", group.Name),
			zap.Int("delivered", report.Delivered),
			zap.Int("failures", len(report.Failures)),
		)
	}
	return report, nil
}

// AllocateTasks 分解目标并按策略分配任务
func (c *Coordinator) AllocateTasks(ctx context.Context, goal string, agents []types.AgentID, strategy allocation.Strategy) (result *allocation.Allocation, err error) {
	ctx, span := telemetry.StartSpan(ctx, "allocate_tasks",
		attribute.String("coord.strategy", string(strategy)),
		attribute.Int("coord.candidates", len(agents)),
	)
	start := time.Now()
	defer func() {
		telemetry.EndSpan(span, err)
		c.observe("allocate_tasks", start, err)
	}()

	result, err = c.allocator.Allocate(ctx, goal, agents, strategy)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("coord.assigned", len(result.Assignments)),
		attribute.Int("coord.unallocated", len(result.Unallocated)),
	)
	if c.metrics != nil {
		c.metrics.RecordAllocation(string(strategy), len(result.Assignments), len(result.Unallocated))
	}
	return result, nil
}

// ReachConsensus 征集投票并按协议形成决议
func (c *Coordinator) ReachConsensus(ctx context.Context, proposal string, voters []types.AgentID, protocol consensus.Protocol, timeout time.Duration) (decision *types.Decision, err error) {
	ctx, span := telemetry.StartSpan(ctx, "reach_consensus",
		attribute.String("coord.protocol", string(protocol)),
		attribute.Int("coord.voters", len(voters)),
	)
	start := time.Now()
	defer func() {
		telemetry.EndSpan(span, err)
		c.observe("reach_consensus", start, err)
	}()

	decision, err = c.consensus.ReachConsensus(ctx, proposal, voters, protocol, timeout)
	if err != nil {
		return nil, err
	}

	inFavor := 0
	for _, v := range decision.Votes {
		if v.InFavor {
			inFavor++
		}
	}
	span.SetAttributes(
		attribute.Bool("coord.accepted", decision.Accepted),
		attribute.Float64("coord.score", decision.Score),
	)
	if c.metrics != nil {
		c.metrics.RecordDecision(string(protocol), decision.Accepted,
			inFavor, len(decision.Votes)-inFavor, len(decision.Abstentions))
	}
	return decision, nil
}

// SynchronizeKnowledge 按策略在 Agent 之间同步知识。
// 部分 Agent 推送失败时同时返回报告与 KNOWLEDGE_SYNC_PARTIAL_FAILURE。
func (c *Coordinator) SynchronizeKnowledge(ctx context.Context, agents []types.AgentID, strategy knowledge.Strategy, timeout time.Duration) (report *knowledge.Report, err error) {
	ctx, span := telemetry.StartSpan(ctx, "synchronize_knowledge",
		attribute.String("coord.strategy", string(strategy)),
		attribute.Int("coord.agents", len(agents)),
	)
	start := time.Now()
	defer func() {
		telemetry.EndSpan(span, err)
		c.observe("synchronize_knowledge", start, err)
	}()

	report, err = c.sync.Synchronize(ctx, agents, strategy, timeout)
	if report != nil {
		pushed := 0
		for _, n := range report.Pushed {
			pushed += n
		}
		span.SetAttributes(
			attribute.Int("coord.facts_pushed", pushed),
			attribute.Int("coord.rounds", report.Rounds),
			attribute.Float64("coord.convergence", report.Convergence),
		)
		if c.metrics != nil {
			c.metrics.RecordSync(string(strategy), pushed, len(report.Failed), report.Convergence)
		}
	}
	return report, err
}

// PlanCollaboratively 分解目标、按技能分配并推导依赖，生成带关键路径的计划
func (c *Coordinator) PlanCollaboratively(ctx context.Context, goal string, participants []types.AgentID) (plan *types.CollaborativePlan, err error) {
	ctx, span := telemetry.StartSpan(ctx, "plan_collaboratively",
		attribute.Int("coord.participants", len(participants)),
	)
	start := time.Now()
	defer func() {
		telemetry.EndSpan(span, err)
		c.observe("plan_collaboratively", start, err)
	}()

	plan, err = c.planner.Plan(ctx, goal, participants)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.String("coord.plan_id", plan.ID),
		attribute.Int("coord.tasks", len(plan.Assignments)),
		attribute.String("coord.critical_path", plan.EstimatedDuration.String()),
	)
	if c.metrics != nil {
		c.metrics.RecordPlan(len(plan.Assignments), plan.EstimatedDuration)
	}
	return plan, nil
}

// RecoverMessages 把持久化存储中未确认的消息重新放回已打开的邮箱
func (c *Coordinator) RecoverMessages(ctx context.Context) (n int, err error) {
	ctx, span := telemetry.StartSpan(ctx, "recover_messages")
	start := time.Now()
	defer func() {
		span.SetAttributes(attribute.Int("coord.recovered", n))
		telemetry.EndSpan(span, err)
		c.observe("recover_messages", start, err)
	}()
	return c.mailboxes.Recover(ctx)
}

// Close 停止投票回复循环，关闭邮箱系统并释放注册的资源。幂等。
func (c *Coordinator) Close() error {
	c.closeOnce.Do(func() {
		var errs []error
		if c.stopCaster != nil {
			c.stopCaster()
		}
		if err := c.mailboxes.Close(); err != nil {
			errs = append(errs, err)
		}
		if c.casterDone != nil {
			<-c.casterDone
		}
		for i := len(c.closers) - 1; i >= 0; i-- {
			if err := c.closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
		c.closeErr = errors.Join(errs...)
		c.logger.Info("coordinator closed")
	})
	return c.closeErr
}

// observe 记录操作耗时与结果；失败时状态为错误码
func (c *Coordinator) observe(operation string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = string(errorCode(err))
	}
	c.metrics.RecordOperation(operation, status, time.Since(start))
}

func errorCode(err error) types.ErrorCode {
	if code := types.GetErrorCode(err); code != "" {
		return code
	}
	return types.ErrInternalError
}
