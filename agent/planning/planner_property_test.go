package planning

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/BaSui01/agentcoord/agent/decompose"
	"github.com/BaSui01/agentcoord/types"
	"pgregory.net/rapid"
)

// 任意依赖输入：要么得到满足所有依赖先后关系的计划，要么返回 CYCLIC_DEPENDENCY
func TestProperty_PlanIsAlwaysAcyclic(t *testing.T) {
	skills := []string{"research", "design", "coding", "testing", "deployment"}

	rapid.Check(t, func(rt *rapid.T) {
		dir, ids := team(t)

		n := rapid.IntRange(1, 8).Draw(rt, "tasks")
		tasks := make([]types.Task, n)
		for i := range tasks {
			id := fmt.Sprintf("t%d", i)
			var deps []string
			for j := 0; j < n; j++ {
				if j != i && rapid.IntRange(0, 4).Draw(rt, fmt.Sprintf("dep_%d_%d", i, j)) == 0 {
					deps = append(deps, fmt.Sprintf("t%d", j))
				}
			}
			tasks[i] = types.Task{
				ID:                id,
				Description:       "task " + id,
				RequiredSkills:    []string{rapid.SampledFrom(skills).Draw(rt, "skill_"+id)},
				EstimatedDuration: time.Duration(rapid.IntRange(1, 8).Draw(rt, "hours_"+id)) * time.Hour,
				DependsOn:         deps,
			}
		}

		p := NewPlanner(dir, decompose.Static(tasks...), DefaultConfig(), nil)
		plan, err := p.Plan(context.Background(), "goal", ids)
		if err != nil {
			if !types.IsErrorCode(err, types.ErrCyclicDependency) {
				rt.Fatalf("unexpected error: %v", err)
			}
			return
		}
		if err := Validate(plan); err != nil {
			rt.Fatalf("plan violates its dependencies: %v", err)
		}
		if len(plan.Assignments) != n {
			rt.Fatalf("expected %d assignments, got %d", n, len(plan.Assignments))
		}

		var longest time.Duration
		for _, task := range tasks {
			if task.EstimatedDuration > longest {
				longest = task.EstimatedDuration
			}
		}
		if plan.EstimatedDuration < longest {
			rt.Fatalf("critical path %s shorter than longest task %s", plan.EstimatedDuration, longest)
		}
	})
}

// 只指向更早任务的依赖永远无环
func TestProperty_BackwardDependenciesAlwaysPlan(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		dir, ids := team(t)

		n := rapid.IntRange(1, 10).Draw(rt, "tasks")
		tasks := make([]types.Task, n)
		for i := range tasks {
			var deps []string
			for j := 0; j < i; j++ {
				if rapid.Bool().Draw(rt, fmt.Sprintf("dep_%d_%d", i, j)) {
					deps = append(deps, fmt.Sprintf("t%d", j))
				}
			}
			tasks[i] = types.Task{
				ID:             fmt.Sprintf("t%d", i),
				Description:    "implement part",
				RequiredSkills: []string{"coding"},
				DependsOn:      deps,
			}
		}

		p := NewPlanner(dir, decompose.Static(tasks...), DefaultConfig(), nil)
		plan, err := p.Plan(context.Background(), "goal", ids)
		if err != nil {
			rt.Fatalf("backward-only dependencies must plan: %v", err)
		}
		if err := Validate(plan); err != nil {
			rt.Fatal(err)
		}
	})
}
