package types

import "time"

// Task 目标分解出的任务
type Task struct {
	ID                string        `json:"id" yaml:"id"`
	Description       string        `json:"description" yaml:"description"`
	RequiredSkills    []string      `json:"required_skills" yaml:"required_skills"`
	EstimatedDuration time.Duration `json:"estimated_duration" yaml:"estimated_duration"`
	Priority          int           `json:"priority" yaml:"priority"`
	DependsOn         []string      `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
}

// TaskAssignment 任务分配结果
type TaskAssignment struct {
	TaskID      string    `json:"task_id" yaml:"task_id"`
	Description string    `json:"description" yaml:"description"`
	Agent       AgentID   `json:"agent" yaml:"agent"`
	Priority    int       `json:"priority" yaml:"priority"`
	Deadline    time.Time `json:"deadline" yaml:"deadline"`
	Score       float64   `json:"score" yaml:"score"`
}

// DependencyRelation 任务间依赖关系
type DependencyRelation string

const (
	// MustPrecede From 必须在 To 之前
	MustPrecede DependencyRelation = "must_precede"
	// MustFollow From 必须在 To 之后
	MustFollow DependencyRelation = "must_follow"
	// Overlaps 可并行，无顺序约束
	Overlaps DependencyRelation = "overlaps"
)

// Dependency 依赖边
type Dependency struct {
	From     string             `json:"from" yaml:"from"`
	To       string             `json:"to" yaml:"to"`
	Relation DependencyRelation `json:"relation" yaml:"relation"`
}

// Ordering returns the (before, after) pair implied by the dependency.
// ok is false for Overlaps.
func (d Dependency) Ordering() (before, after string, ok bool) {
	switch d.Relation {
	case MustPrecede:
		return d.From, d.To, true
	case MustFollow:
		return d.To, d.From, true
	default:
		return "", "", false
	}
}

// CollaborativePlan 协作计划
type CollaborativePlan struct {
	ID                string           `json:"id" yaml:"id"`
	Goal              string           `json:"goal" yaml:"goal"`
	Assignments       []TaskAssignment `json:"assignments" yaml:"assignments"`
	Dependencies      []Dependency     `json:"dependencies" yaml:"dependencies"`
	EstimatedDuration time.Duration    `json:"estimated_duration" yaml:"estimated_duration"`
	CriticalPath      []string         `json:"critical_path" yaml:"critical_path"`
	CreatedAt         time.Time        `json:"created_at" yaml:"created_at"`
}

// Assignment returns the assignment for a task id.
func (p *CollaborativePlan) Assignment(taskID string) (TaskAssignment, bool) {
	for _, a := range p.Assignments {
		if a.TaskID == taskID {
			return a, true
		}
	}
	return TaskAssignment{}, false
}
