package allocation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/agentcoord/agent/decompose"
	"github.com/BaSui01/agentcoord/agent/directory"
	"github.com/BaSui01/agentcoord/types"
	"go.uber.org/zap"
)

// Config 分配引擎配置
type Config struct {
	// DefaultTaskDuration 任务未给出时长时用于计算截止时间
	DefaultTaskDuration time.Duration `json:"default_task_duration" yaml:"default_task_duration"`

	// LoadIncrement LoadBalanced 每次分配后的有效负载增量（仅本次调用）
	LoadIncrement float64 `json:"load_increment" yaml:"load_increment"`

	// MaxTasks 分解任务上限，0 表示不限
	MaxTasks int `json:"max_tasks" yaml:"max_tasks"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		DefaultTaskDuration: 4 * time.Hour,
		LoadIncrement:       0.1,
		MaxTasks:            0,
	}
}

// Allocation 一次分配调用的结果
type Allocation struct {
	Goal        string                 `json:"goal" yaml:"goal"`
	Strategy    Strategy               `json:"strategy" yaml:"strategy"`
	Assignments []types.TaskAssignment `json:"assignments" yaml:"assignments"` // 任务顺序
	Unallocated []TaskFailure          `json:"unallocated,omitempty" yaml:"unallocated,omitempty"`
	CreatedAt   time.Time              `json:"created_at" yaml:"created_at"`
}

// ByAgent 按 Agent 分组的分配结果
func (a *Allocation) ByAgent() map[string][]types.TaskAssignment {
	out := make(map[string][]types.TaskAssignment)
	for _, as := range a.Assignments {
		out[as.Agent.ID] = append(out[as.Agent.ID], as)
	}
	return out
}

// Complete 是否所有任务都已分配
func (a *Allocation) Complete() bool {
	return len(a.Unallocated) == 0
}

// Engine 分配引擎。无可变共享状态，可被并发调用。
type Engine struct {
	directory  *directory.Directory
	decomposer decompose.Decomposer
	config     Config
	logger     *zap.Logger
	now        func() time.Time
}

// NewEngine 创建分配引擎
func NewEngine(dir *directory.Directory, decomposer decompose.Decomposer, config Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if decomposer == nil {
		decomposer = decompose.NewHeuristic()
	}
	if config.DefaultTaskDuration <= 0 {
		config.DefaultTaskDuration = DefaultConfig().DefaultTaskDuration
	}
	// 增量为 0 时 LoadBalanced 会把同一次调用的任务全部压到同一个 Agent
	if config.LoadIncrement <= 0 {
		config.LoadIncrement = DefaultConfig().LoadIncrement
	}
	return &Engine{
		directory:  dir,
		decomposer: decomposer,
		config:     config,
		logger:     logger.With(zap.String("component", "allocation_engine")),
		now:        time.Now,
	}
}

// Allocate 分解目标并按策略把每个任务分配给一个候选者。
// 部分分配返回成功并在 Unallocated 中列出失败任务；一个都分配不了返回 ALLOCATION_INFEASIBLE。
func (e *Engine) Allocate(ctx context.Context, goal string, candidates []types.AgentID, strategy Strategy) (*Allocation, error) {
	if _, err := ParseStrategy(string(strategy)); err != nil {
		return nil, err
	}

	pool, err := e.candidatePool(candidates)
	if err != nil {
		return nil, err
	}

	tasks, err := e.decompose(ctx, goal, strategy, pool)
	if err != nil {
		return nil, err
	}

	picks, failures, err := Assign(strategy, tasks, pool, e.config.LoadIncrement)
	if err != nil {
		return nil, err
	}

	now := e.now()
	result := &Allocation{
		Goal:        goal,
		Strategy:    strategy,
		Assignments: make([]types.TaskAssignment, 0, len(picks)),
		Unallocated: failures,
		CreatedAt:   now,
	}
	for _, p := range picks {
		task := tasks[p.Task]
		result.Assignments = append(result.Assignments, types.TaskAssignment{
			TaskID:      task.ID,
			Description: task.Description,
			Agent:       pool[p.Candidate].Agent,
			Priority:    task.Priority,
			Deadline:    now.Add(task.EstimatedDuration),
			Score:       p.Score,
		})
	}

	if len(result.Assignments) == 0 {
		reasons := make([]string, 0, len(failures))
		for _, f := range failures {
			reasons = append(reasons, f.TaskID+": "+f.Reason)
		}
		return nil, types.Errorf(types.ErrAllocationInfeasible,
			"no task of %d could be allocated under %s (%s)", len(tasks), strategy, strings.Join(reasons, "; "))
	}

	e.logger.Info("tasks allocated",
		zap.String("strategy", string(strategy)),
		zap.Int("tasks", len(tasks)),
		zap.Int("assigned", len(result.Assignments)),
		zap.Int("unallocated", len(failures)),
	)
	return result, nil
}

// candidatePool 目录快照，去重并剔除不可用的候选者
func (e *Engine) candidatePool(candidates []types.AgentID) ([]types.AgentCapabilities, error) {
	if len(candidates) == 0 {
		return nil, types.NewError(types.ErrEmptyCandidateSet, "candidate set is empty")
	}

	snapshot, err := e.directory.Snapshot(candidates)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(snapshot))
	pool := make([]types.AgentCapabilities, 0, len(snapshot))
	for _, c := range snapshot {
		if _, dup := seen[c.Agent.ID]; dup {
			continue
		}
		seen[c.Agent.ID] = struct{}{}
		if !c.Available {
			e.logger.Debug("skipping unavailable candidate", zap.String("agent_id", c.Agent.ID))
			continue
		}
		pool = append(pool, c)
	}
	if len(pool) == 0 {
		return nil, types.Errorf(types.ErrEmptyCandidateSet, "none of the %d candidates is available", len(candidates))
	}
	return pool, nil
}

func (e *Engine) decompose(ctx context.Context, goal string, strategy Strategy, pool []types.AgentCapabilities) ([]types.Task, error) {
	tasks, err := e.decomposer.Decompose(ctx, goal, decompose.Hint{
		Strategy:     string(strategy),
		MaxTasks:     e.config.MaxTasks,
		Participants: pool,
	})
	if err != nil {
		if _, ok := types.AsError(err); ok {
			return nil, err
		}
		return nil, types.NewError(types.ErrUpstreamError, "goal decomposition failed").WithCause(err)
	}

	tasks, err = decompose.Normalize(tasks, e.config.DefaultTaskDuration, e.config.MaxTasks)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, types.Errorf(types.ErrAllocationInfeasible, "goal %q produced no tasks", goal)
	}
	return tasks, nil
}

// String 便于日志输出
func (a *Allocation) String() string {
	return fmt.Sprintf("allocation(%s, %d assigned, %d unallocated)", a.Strategy, len(a.Assignments), len(a.Unallocated))
}
