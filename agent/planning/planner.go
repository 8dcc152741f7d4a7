package planning

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/agentcoord/agent/allocation"
	"github.com/BaSui01/agentcoord/agent/decompose"
	"github.com/BaSui01/agentcoord/agent/directory"
	"github.com/BaSui01/agentcoord/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config 规划器配置
type Config struct {
	// DefaultTaskDuration 分解器未给出时长时使用
	DefaultTaskDuration time.Duration `json:"default_task_duration" yaml:"default_task_duration"`

	// MaxTasks 单个计划的任务上限，0 表示不限
	MaxTasks int `json:"max_tasks" yaml:"max_tasks"`

	// PhaseOrdering 是否按阶段推导依赖
	PhaseOrdering bool `json:"phase_ordering" yaml:"phase_ordering"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		DefaultTaskDuration: time.Hour,
		MaxTasks:            20,
		PhaseOrdering:       true,
	}
}

// Planner 协作规划器
type Planner struct {
	directory  *directory.Directory
	decomposer decompose.Decomposer
	config     Config
	logger     *zap.Logger
	now        func() time.Time
}

// NewPlanner 创建规划器。decomposer 为 nil 时使用启发式分解器。
func NewPlanner(dir *directory.Directory, decomposer decompose.Decomposer, config Config, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if decomposer == nil {
		decomposer = decompose.NewHeuristic()
	}
	if config.DefaultTaskDuration <= 0 {
		config.DefaultTaskDuration = DefaultConfig().DefaultTaskDuration
	}
	return &Planner{
		directory:  dir,
		decomposer: decomposer,
		config:     config,
		logger:     logger.With(zap.String("component", "collaborative_planner")),
		now:        time.Now,
	}
}

// Plan 为 participants 生成协作计划。
//
// 每个任务分配给技能匹配度最高的参与者，任一任务无人匹配时整体失败
// （NO_QUALIFIED_PARTICIPANT）。依赖来自分解器给出的 DependsOn 与阶段顺序，
// 存在环时返回 CYCLIC_DEPENDENCY。计划总时长为关键路径长度。
func (p *Planner) Plan(ctx context.Context, goal string, participants []types.AgentID) (*types.CollaborativePlan, error) {
	pool, err := p.participantPool(participants)
	if err != nil {
		return nil, err
	}

	tasks, err := p.decompose(ctx, goal, pool)
	if err != nil {
		return nil, err
	}

	picks, failures, err := allocation.Assign(allocation.SkillBased, tasks, pool, 0)
	if err != nil {
		return nil, err
	}
	if len(failures) > 0 {
		f := failures[0]
		return nil, types.Errorf(types.ErrNoQualifiedParticipant,
			"no participant matches task %s (%q); %d of %d tasks unmatched",
			f.TaskID, f.Description, len(failures), len(tasks)).WithTask(f.TaskID)
	}

	graph, deps, err := buildGraph(tasks, p.config.PhaseOrdering)
	if err != nil {
		return nil, err
	}
	order, err := graph.TopologicalOrder()
	if err != nil {
		return nil, err
	}
	finish, err := graph.EarliestFinish()
	if err != nil {
		return nil, err
	}
	total, critical, err := graph.CriticalPath()
	if err != nil {
		return nil, err
	}

	byID := make(map[string]int, len(tasks))
	for i, t := range tasks {
		byID[t.ID] = i
	}
	assigned := make(map[int]allocation.Pick, len(picks))
	for _, pk := range picks {
		assigned[pk.Task] = pk
	}

	start := p.now()
	plan := &types.CollaborativePlan{
		ID:                uuid.NewString(),
		Goal:              goal,
		Assignments:       make([]types.TaskAssignment, 0, len(order)),
		Dependencies:      deps,
		EstimatedDuration: total,
		CriticalPath:      critical,
		CreatedAt:         start,
	}
	for rank, id := range order {
		i := byID[id]
		pk := assigned[i]
		plan.Assignments = append(plan.Assignments, types.TaskAssignment{
			TaskID:      id,
			Description: tasks[i].Description,
			Agent:       pool[pk.Candidate].Agent,
			Priority:    rank + 1,
			Deadline:    start.Add(finish[id]),
			Score:       pk.Score,
		})
	}

	p.logger.Info("collaborative plan created",
		zap.String("plan_id", plan.ID),
		zap.Int("tasks", len(tasks)),
		zap.Int("dependencies", len(deps)),
		zap.Duration("estimated_duration", total),
		zap.Strings("critical_path", critical),
	)
	return plan, nil
}

// buildGraph 先加入分解器给出的显式依赖，再加入阶段依赖
func buildGraph(tasks []types.Task, phaseOrdering bool) (*Graph, []types.Dependency, error) {
	g := NewGraph()
	for _, t := range tasks {
		if err := g.AddTask(t.ID, t.EstimatedDuration); err != nil {
			return nil, nil, err
		}
	}

	var deps []types.Dependency
	add := func(before, after string) error {
		added, err := g.AddEdge(before, after)
		if err != nil {
			return err
		}
		if added {
			deps = append(deps, types.Dependency{From: after, To: before, Relation: types.MustFollow})
		}
		return nil
	}

	for _, t := range tasks {
		for _, dep := range t.DependsOn {
			dep = strings.TrimSpace(dep)
			if dep == "" {
				continue
			}
			if err := add(dep, t.ID); err != nil {
				return nil, nil, err
			}
		}
	}
	if phaseOrdering {
		for _, e := range phaseEdges(tasks) {
			if err := add(e[0], e[1]); err != nil {
				return nil, nil, err
			}
		}
	}
	return g, deps, nil
}

func (p *Planner) participantPool(participants []types.AgentID) ([]types.AgentCapabilities, error) {
	if len(participants) == 0 {
		return nil, types.NewError(types.ErrEmptyCandidateSet, "participant set is empty")
	}
	snapshot, err := p.directory.Snapshot(participants)
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
			continue
		}
		pool = append(pool, c)
	}
	if len(pool) == 0 {
		return nil, types.Errorf(types.ErrEmptyCandidateSet, "none of the %d participants is available", len(participants))
	}
	return pool, nil
}

func (p *Planner) decompose(ctx context.Context, goal string, pool []types.AgentCapabilities) ([]types.Task, error) {
	tasks, err := p.decomposer.Decompose(ctx, goal, decompose.Hint{
		Strategy:     "plan",
		MaxTasks:     p.config.MaxTasks,
		Participants: pool,
	})
	if err != nil {
		if _, ok := types.AsError(err); ok {
			return nil, err
		}
		return nil, types.NewError(types.ErrUpstreamError, "goal decomposition failed").WithCause(err)
	}

	tasks, err = decompose.Normalize(tasks, p.config.DefaultTaskDuration, p.config.MaxTasks)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, types.Errorf(types.ErrInvalidInput, "goal %q produced no tasks", goal)
	}
	return tasks, nil
}

// Validate 检查计划依赖无环且每条依赖在分配顺序中满足先后关系
func Validate(plan *types.CollaborativePlan) error {
	pos := make(map[string]int, len(plan.Assignments))
	for i, a := range plan.Assignments {
		pos[a.TaskID] = i
	}
	for _, d := range plan.Dependencies {
		before, after, ok := d.Ordering()
		if !ok {
			continue
		}
		bi, okB := pos[before]
		ai, okA := pos[after]
		if !okB || !okA {
			return fmt.Errorf("dependency %s -> %s references unknown task", d.From, d.To)
		}
		if bi >= ai {
			return types.Errorf(types.ErrCyclicDependency, "task %s is ordered before its dependency %s", after, before)
		}
	}
	return nil
}
