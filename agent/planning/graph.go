package planning

import (
	"sort"
	"strings"
	"time"

	"github.com/BaSui01/agentcoord/types"
)

// Graph 任务依赖图（邻接表）。边 before → after 表示 after 必须在 before 完成后开始。
type Graph struct {
	order     []string
	index     map[string]int
	durations map[string]time.Duration
	succ      map[string][]string
	pred      map[string][]string
	edges     map[[2]string]struct{}
}

// NewGraph 创建空依赖图
func NewGraph() *Graph {
	return &Graph{
		index:     make(map[string]int),
		durations: make(map[string]time.Duration),
		succ:      make(map[string][]string),
		pred:      make(map[string][]string),
		edges:     make(map[[2]string]struct{}),
	}
}

// AddTask 添加任务节点，插入顺序用于拓扑排序的平局裁决
func (g *Graph) AddTask(id string, duration time.Duration) error {
	if id == "" {
		return types.NewError(types.ErrInvalidInput, "task id is required")
	}
	if _, ok := g.index[id]; ok {
		return types.Errorf(types.ErrInvalidInput, "duplicate task %q", id).WithTask(id)
	}
	if duration < 0 {
		duration = 0
	}
	g.index[id] = len(g.order)
	g.order = append(g.order, id)
	g.durations[id] = duration
	return nil
}

// AddEdge 添加 before → after 边。重复边被忽略，返回是否新增。
// 自环返回 CYCLIC_DEPENDENCY，未知任务返回 INVALID_INPUT。
func (g *Graph) AddEdge(before, after string) (bool, error) {
	if before == after {
		return false, types.Errorf(types.ErrCyclicDependency, "task %s cannot depend on itself", before).WithTask(before)
	}
	for _, id := range []string{before, after} {
		if _, ok := g.index[id]; !ok {
			return false, types.Errorf(types.ErrInvalidInput, "unknown task %q in dependency %s -> %s", id, before, after).WithTask(id)
		}
	}
	key := [2]string{before, after}
	if _, ok := g.edges[key]; ok {
		return false, nil
	}
	g.edges[key] = struct{}{}
	g.succ[before] = append(g.succ[before], after)
	g.pred[after] = append(g.pred[after], before)
	return true, nil
}

// HasEdge reports whether before → after was added.
func (g *Graph) HasEdge(before, after string) bool {
	_, ok := g.edges[[2]string{before, after}]
	return ok
}

// Len 任务数
func (g *Graph) Len() int {
	return len(g.order)
}

// Tasks 按插入顺序返回任务 ID
func (g *Graph) Tasks() []string {
	return append([]string(nil), g.order...)
}

// Predecessors 返回直接前驱
func (g *Graph) Predecessors(id string) []string {
	return append([]string(nil), g.pred[id]...)
}

// TopologicalOrder Kahn 算法；多个就绪节点时按插入顺序取最早者。
// 存在环时返回 CYCLIC_DEPENDENCY，并列出无法排序的任务。
func (g *Graph) TopologicalOrder() ([]string, error) {
	inDegree := make(map[string]int, len(g.order))
	for _, id := range g.order {
		inDegree[id] = len(g.pred[id])
	}

	var ready []int
	for _, id := range g.order {
		if inDegree[id] == 0 {
			ready = append(ready, g.index[id])
		}
	}

	out := make([]string, 0, len(g.order))
	for len(ready) > 0 {
		sort.Ints(ready)
		id := g.order[ready[0]]
		ready = ready[1:]
		out = append(out, id)

		for _, next := range g.succ[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				ready = append(ready, g.index[next])
			}
		}
	}

	if len(out) < len(g.order) {
		var stuck []string
		for _, id := range g.order {
			if inDegree[id] > 0 {
				stuck = append(stuck, id)
			}
		}
		return nil, types.Errorf(types.ErrCyclicDependency,
			"dependency cycle among tasks: %s", strings.Join(stuck, ", "))
	}
	return out, nil
}

// EarliestFinish 每个任务从根开始沿最长前驱链累积的完成时间
func (g *Graph) EarliestFinish() (map[string]time.Duration, error) {
	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, err
	}
	finish := make(map[string]time.Duration, len(order))
	for _, id := range order {
		var start time.Duration
		for _, p := range g.pred[id] {
			if finish[p] > start {
				start = finish[p]
			}
		}
		finish[id] = start + g.durations[id]
	}
	return finish, nil
}

// CriticalPath 返回按时长加权的最长路径长度及其上的任务（从根到叶）
func (g *Graph) CriticalPath() (time.Duration, []string, error) {
	order, err := g.TopologicalOrder()
	if err != nil {
		return 0, nil, err
	}
	if len(order) == 0 {
		return 0, nil, nil
	}

	finish := make(map[string]time.Duration, len(order))
	via := make(map[string]string, len(order))
	for _, id := range order {
		var start time.Duration
		for _, p := range g.pred[id] {
			if _, set := via[id]; !set || finish[p] > start {
				start = finish[p]
				via[id] = p
			}
		}
		finish[id] = start + g.durations[id]
	}

	end := order[0]
	for _, id := range order[1:] {
		if finish[id] > finish[end] {
			end = id
		}
	}

	path := []string{end}
	for cur := end; ; {
		p, ok := via[cur]
		if !ok {
			break
		}
		path = append(path, p)
		cur = p
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return finish[end], path, nil
}
