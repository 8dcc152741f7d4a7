package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/BaSui01/agentcoord/agent/allocation"
	"github.com/BaSui01/agentcoord/agent/consensus"
	"github.com/BaSui01/agentcoord/agent/coordination"
	"github.com/BaSui01/agentcoord/agent/decompose"
	"github.com/BaSui01/agentcoord/agent/knowledge"
	"github.com/BaSui01/agentcoord/config"
	"github.com/BaSui01/agentcoord/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🎬 simulate 命令
// =============================================================================

// Scenario 离线协调场景
type Scenario struct {
	Goal     string          `yaml:"goal"`
	Proposal string          `yaml:"proposal"`
	Message  string          `yaml:"message"`
	Timeout  time.Duration   `yaml:"timeout"`
	Agents   []ScenarioAgent `yaml:"agents"`

	// Group 投递分组；为空时广播给全部 Agent
	Group *types.AgentGroup `yaml:"group"`

	// Votes 脚本化投票，未列出的 Agent 弃权
	Votes   map[string]bool    `yaml:"votes"`
	Weights map[string]float64 `yaml:"weights"`

	// Facts 每个 Agent 同步前持有的知识
	Facts map[string][]types.KnowledgeFact `yaml:"facts"`

	// Tasks 显式任务列表；为空时由配置的分解器分解 Goal
	Tasks []types.Task `yaml:"tasks"`
}

// ScenarioAgent 场景中的 Agent
type ScenarioAgent struct {
	ID          string             `yaml:"id"`
	Name        string             `yaml:"name"`
	Skills      []string           `yaml:"skills"`
	Proficiency map[string]float64 `yaml:"proficiency"`
	Load        float64            `yaml:"load"`
	Unavailable bool               `yaml:"unavailable"`
}

// SimulationReport simulate 的输出
type SimulationReport struct {
	Broadcast   *BroadcastOutcome            `yaml:"broadcast,omitempty"`
	Allocations map[string]AllocationOutcome `yaml:"allocations"`
	Decisions   map[string]DecisionOutcome   `yaml:"decisions"`
	Sync        map[string]SyncOutcome       `yaml:"sync"`
	Plan        *PlanOutcome                 `yaml:"plan,omitempty"`
}

// BroadcastOutcome 分组投递结果
type BroadcastOutcome struct {
	Group     string            `yaml:"group"`
	Delivered int               `yaml:"delivered"`
	Failed    map[string]string `yaml:"failed,omitempty"`
}

// AllocationOutcome 单个分配策略的结果
type AllocationOutcome struct {
	Assignments map[string][]string      `yaml:"assignments,omitempty"`
	Unallocated []allocation.TaskFailure `yaml:"unallocated,omitempty"`
	Error       string                   `yaml:"error,omitempty"`
}

// DecisionOutcome 单个共识协议的结果
type DecisionOutcome struct {
	Accepted    bool     `yaml:"accepted"`
	Score       float64  `yaml:"score"`
	Leader      string   `yaml:"leader,omitempty"`
	Abstentions []string `yaml:"abstentions,omitempty"`
	Error       string   `yaml:"error,omitempty"`
}

// SyncOutcome 单个同步策略的结果
type SyncOutcome struct {
	Pushed      map[string]int    `yaml:"pushed,omitempty"`
	Failed      map[string]string `yaml:"failed,omitempty"`
	Rounds      int               `yaml:"rounds"`
	Convergence float64           `yaml:"convergence"`
	Error       string            `yaml:"error,omitempty"`
}

// PlanOutcome 协作规划结果
type PlanOutcome struct {
	Assignments  []string      `yaml:"assignments,omitempty"`
	Duration     time.Duration `yaml:"duration,omitempty"`
	CriticalPath []string      `yaml:"critical_path,omitempty"`
	Error        string        `yaml:"error,omitempty"`
}

func newSimulateCmd(root *rootOptions) *cobra.Command {
	var scenarioPath string

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a scripted coordination scenario and print a YAML report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			sc, err := loadScenario(scenarioPath)
			if err != nil {
				return err
			}
			logger := initLogger(cfg.Log)
			defer func() { _ = logger.Sync() }()

			report, err := runScenario(cmd.Context(), sc, cfg, logger)
			if err != nil {
				return err
			}
			return writeReport(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVar(&scenarioPath, "scenario", "", "path to scenario file (YAML)")
	_ = cmd.MarkFlagRequired("scenario")
	return cmd
}

func loadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario %s: %w", path, err)
	}
	if len(sc.Agents) == 0 {
		return nil, fmt.Errorf("scenario %s declares no agents", path)
	}
	if sc.Timeout <= 0 {
		sc.Timeout = 2 * time.Second
	}
	return &sc, nil
}

func writeReport(w io.Writer, report *SimulationReport) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return err
	}
	return enc.Close()
}

// runScenario 每种同步策略使用独立的 Coordinator，避免前一次同步影响后一次
func runScenario(ctx context.Context, sc *Scenario, cfg *config.Config, logger *zap.Logger) (*SimulationReport, error) {
	var d decompose.Decomposer
	if len(sc.Tasks) > 0 {
		d = decompose.Static(sc.Tasks...)
	} else {
		var err error
		if d, err = decompose.NewFromConfig(cfg.Decomposer, logger); err != nil {
			return nil, err
		}
	}

	c, ids, err := newScenarioCoordinator(ctx, sc, cfg, d, logger)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	report := &SimulationReport{
		Allocations: make(map[string]AllocationOutcome),
		Decisions:   make(map[string]DecisionOutcome),
		Sync:        make(map[string]SyncOutcome),
	}

	if sc.Message != "" {
		group := types.NewBroadcastGroup("all", ids...)
		if sc.Group != nil {
			group = *sc.Group
		}
		msg := types.NewMessage(c.Identity(), types.MessageKindNotification, sc.Message)
		delivery, err := c.Broadcast(ctx, msg, group)
		if err != nil {
			return nil, err
		}
		out := &BroadcastOutcome{Group: delivery.Group, Delivered: delivery.Delivered}
		for _, f := range delivery.Failures {
			if out.Failed == nil {
				out.Failed = make(map[string]string)
			}
			out.Failed[f.Agent.ID] = string(f.Code)
		}
		report.Broadcast = out
	}

	if sc.Goal != "" {
		for _, strategy := range allocation.Strategies() {
			report.Allocations[string(strategy)] = allocate(ctx, c, sc.Goal, ids, strategy)
		}
		report.Plan = plan(ctx, c, sc.Goal, ids)
	}

	if sc.Proposal != "" {
		for _, protocol := range consensus.Protocols() {
			report.Decisions[string(protocol)] = decide(ctx, c, sc, ids, protocol)
		}
	}

	if len(sc.Facts) > 0 {
		for _, strategy := range knowledge.Strategies() {
			fresh, _, err := newScenarioCoordinator(ctx, sc, cfg, d, logger)
			if err != nil {
				return nil, err
			}
			report.Sync[string(strategy)] = synchronize(ctx, fresh, sc, ids, strategy)
			_ = fresh.Close()
		}
	}
	return report, nil
}

func newScenarioCoordinator(ctx context.Context, sc *Scenario, cfg *config.Config, d decompose.Decomposer, logger *zap.Logger) (*coordination.Coordinator, []types.AgentID, error) {
	caster := consensus.CasterFunc(func(_ context.Context, voter types.AgentID, _ string) (*types.Vote, error) {
		inFavor, ok := sc.Votes[voter.ID]
		if !ok {
			return nil, nil
		}
		return &types.Vote{Voter: voter, InFavor: inFavor, Weight: sc.Weights[voter.ID]}, nil
	})

	c := coordination.New(
		coordination.WithConfig(coordination.ConfigFrom(cfg)),
		coordination.WithLogger(logger),
		coordination.WithDecomposer(d),
		coordination.WithVoteCaster(caster),
	)

	ids := make([]types.AgentID, 0, len(sc.Agents))
	for _, a := range sc.Agents {
		id := types.NewAgentID(a.ID, a.Name)
		if err := c.RegisterAgent(ctx, types.AgentCapabilities{
			Agent:       id,
			Skills:      a.Skills,
			Proficiency: a.Proficiency,
			Load:        a.Load,
			Available:   !a.Unavailable,
		}); err != nil {
			_ = c.Close()
			return nil, nil, err
		}
		ids = append(ids, id)
	}

	for agentID, facts := range sc.Facts {
		if err := c.Knowledge().ApplyFacts(ctx, agentID, facts); err != nil {
			_ = c.Close()
			return nil, nil, err
		}
	}
	return c, ids, nil
}

func allocate(ctx context.Context, c *coordination.Coordinator, goal string, ids []types.AgentID, strategy allocation.Strategy) AllocationOutcome {
	result, err := c.AllocateTasks(ctx, goal, ids, strategy)
	if err != nil {
		return AllocationOutcome{Error: err.Error()}
	}
	out := AllocationOutcome{
		Assignments: make(map[string][]string),
		Unallocated: result.Unallocated,
	}
	for agentID, tasks := range result.ByAgent() {
		for _, t := range tasks {
			out.Assignments[agentID] = append(out.Assignments[agentID], t.TaskID)
		}
	}
	return out
}

func decide(ctx context.Context, c *coordination.Coordinator, sc *Scenario, ids []types.AgentID, protocol consensus.Protocol) DecisionOutcome {
	dec, err := c.ReachConsensus(ctx, sc.Proposal, ids, protocol, sc.Timeout)
	if err != nil {
		return DecisionOutcome{Error: err.Error()}
	}
	out := DecisionOutcome{Accepted: dec.Accepted, Score: dec.Score}
	if dec.Leader != nil {
		out.Leader = dec.Leader.ID
	}
	for _, a := range dec.Abstentions {
		out.Abstentions = append(out.Abstentions, a.Voter.ID)
	}
	return out
}

func synchronize(ctx context.Context, c *coordination.Coordinator, sc *Scenario, ids []types.AgentID, strategy knowledge.Strategy) SyncOutcome {
	rep, err := c.SynchronizeKnowledge(ctx, ids, strategy, sc.Timeout)
	out := SyncOutcome{}
	if rep != nil {
		out.Pushed = rep.Pushed
		out.Failed = rep.Failed
		out.Rounds = rep.Rounds
		out.Convergence = rep.Convergence
	}
	if err != nil {
		out.Error = err.Error()
	}
	return out
}

func plan(ctx context.Context, c *coordination.Coordinator, goal string, ids []types.AgentID) *PlanOutcome {
	p, err := c.PlanCollaboratively(ctx, goal, ids)
	if err != nil {
		return &PlanOutcome{Error: err.Error()}
	}
	out := &PlanOutcome{Duration: p.EstimatedDuration, CriticalPath: p.CriticalPath}
	for _, a := range p.Assignments {
		out.Assignments = append(out.Assignments, a.TaskID+" -> "+a.Agent.ID)
	}
	return out
}
