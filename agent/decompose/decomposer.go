// Package decompose turns a free-text goal into candidate tasks.
//
// The coordination engines never parse goals themselves; they call a
// Decomposer. Heuristic is a deterministic offline implementation, OpenAI
// asks a chat model for a JSON task list.
package decompose

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/agentcoord/types"
)

// Hint carries caller context for a decomposition.
type Hint struct {
	// Strategy is the allocation strategy or "plan" for collaborative planning.
	Strategy string `json:"strategy,omitempty"`

	// MaxTasks caps the number of tasks; 0 means no cap.
	MaxTasks int `json:"max_tasks,omitempty"`

	// Participants lists the agents that will receive the tasks.
	Participants []types.AgentCapabilities `json:"-"`
}

// Decomposer splits a goal into tasks.
type Decomposer interface {
	Decompose(ctx context.Context, goal string, hint Hint) ([]types.Task, error)
}

// Func adapts a function to the Decomposer interface.
type Func func(ctx context.Context, goal string, hint Hint) ([]types.Task, error)

// Decompose calls f.
func (f Func) Decompose(ctx context.Context, goal string, hint Hint) ([]types.Task, error) {
	return f(ctx, goal, hint)
}

// Static returns a decomposer that always yields a copy of tasks.
func Static(tasks ...types.Task) Decomposer {
	return Func(func(context.Context, string, Hint) ([]types.Task, error) {
		out := make([]types.Task, len(tasks))
		copy(out, tasks)
		return out, nil
	})
}

// Normalize fills missing ids and durations, trims text and rejects duplicate ids.
// The result is capped at maxTasks when maxTasks > 0; DependsOn entries naming
// a task cut off by the cap are dropped.
func Normalize(tasks []types.Task, defaultDuration time.Duration, maxTasks int) ([]types.Task, error) {
	var dropped map[string]struct{}
	if maxTasks > 0 && len(tasks) > maxTasks {
		dropped = make(map[string]struct{}, len(tasks)-maxTasks)
		for _, t := range tasks[maxTasks:] {
			if id := strings.TrimSpace(t.ID); id != "" {
				dropped[id] = struct{}{}
			}
		}
		tasks = tasks[:maxTasks]
	}

	seen := make(map[string]struct{}, len(tasks))
	out := make([]types.Task, 0, len(tasks))
	for i, t := range tasks {
		t.ID = strings.TrimSpace(t.ID)
		if t.ID == "" {
			t.ID = fmt.Sprintf("task-%d", i+1)
		}
		if _, dup := seen[t.ID]; dup {
			return nil, types.Errorf(types.ErrInvalidInput, "duplicate task id %q", t.ID).WithTask(t.ID)
		}
		seen[t.ID] = struct{}{}

		t.Description = strings.TrimSpace(t.Description)
		if t.Description == "" {
			return nil, types.Errorf(types.ErrInvalidInput, "task %s has no description", t.ID).WithTask(t.ID)
		}
		if t.EstimatedDuration <= 0 {
			t.EstimatedDuration = defaultDuration
		}
		if t.Priority == 0 {
			t.Priority = i + 1
		}
		t.RequiredSkills = cleanSkills(t.RequiredSkills)
		out = append(out, t)
	}

	// 被截掉的任务不再是依赖；其余未知依赖保留给调用方校验
	for id := range seen {
		delete(dropped, id)
	}
	for i := range out {
		out[i].DependsOn = pruneDeps(out[i].DependsOn, dropped)
	}
	return out, nil
}

func pruneDeps(deps []string, dropped map[string]struct{}) []string {
	if len(deps) == 0 {
		return deps
	}
	out := make([]string, 0, len(deps))
	for _, d := range deps {
		d = strings.TrimSpace(d)
		if _, gone := dropped[d]; gone {
			continue
		}
		out = append(out, d)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func cleanSkills(skills []string) []string {
	if len(skills) == 0 {
		return skills
	}
	seen := make(map[string]struct{}, len(skills))
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
