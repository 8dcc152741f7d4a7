package decompose

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/BaSui01/agentcoord/types"
)

// skillRule 关键词前缀 -> 技能
type skillRule struct {
	prefixes []string
	skill    string
	duration time.Duration
}

// 顺序即阶段顺序：调研、设计、实现、验证、发布
var skillRules = []skillRule{
	{prefixes: []string{"research", "investigat", "analy", "survey", "explor", "gather"}, skill: "research", duration: 2 * time.Hour},
	{prefixes: []string{"design", "architect", "model", "plan", "spec"}, skill: "design", duration: 3 * time.Hour},
	{prefixes: []string{"implement", "build", "code", "develop", "write", "creat", "refactor", "fix"}, skill: "coding", duration: 8 * time.Hour},
	{prefixes: []string{"test", "verif", "review", "validat", "check", "audit"}, skill: "testing", duration: 4 * time.Hour},
	{prefixes: []string{"deploy", "release", "ship", "launch", "publish", "rollout"}, skill: "deployment", duration: time.Hour},
	{prefixes: []string{"document", "docs"}, skill: "documentation", duration: 2 * time.Hour},
}

// 单句目标展开时使用的阶段模板
var phaseTemplate = []string{"Research", "Design", "Implement", "Test", "Deploy"}

var clauseSplitter = regexp.MustCompile(`(?i)[.;\n]+|,?\s+and then\s+|,?\s+then\s+`)

var wordSplitter = regexp.MustCompile(`[^\p{L}\p{N}-]+`)

// Heuristic 基于规则的确定性分解器，不依赖外部服务
type Heuristic struct {
	// DefaultDuration 无法推断时长时使用
	DefaultDuration time.Duration

	// DefaultSkill 无法推断技能时使用
	DefaultSkill string

	// ExpandSingleGoal 单句目标时按阶段模板展开
	ExpandSingleGoal bool
}

// NewHeuristic 创建默认启发式分解器
func NewHeuristic() *Heuristic {
	return &Heuristic{
		DefaultDuration:  4 * time.Hour,
		DefaultSkill:     "general",
		ExpandSingleGoal: true,
	}
}

// Decompose splits the goal into clauses and infers skills from keywords.
func (h *Heuristic) Decompose(ctx context.Context, goal string, hint Hint) ([]types.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	goal = strings.TrimSpace(goal)
	if goal == "" {
		return nil, types.NewError(types.ErrInvalidInput, "goal is empty")
	}

	clauses := SplitClauses(goal)
	if len(clauses) == 1 && h.ExpandSingleGoal && hint.MaxTasks != 1 {
		return Normalize(h.expand(clauses[0]), h.DefaultDuration, hint.MaxTasks)
	}

	tasks := make([]types.Task, 0, len(clauses))
	for _, clause := range clauses {
		skills, duration := h.infer(clause)
		tasks = append(tasks, types.Task{
			Description:       clause,
			RequiredSkills:    skills,
			EstimatedDuration: duration,
		})
	}
	return Normalize(tasks, h.DefaultDuration, hint.MaxTasks)
}

// SplitClauses 按句号、分号、换行以及 "then" 切分目标
func SplitClauses(goal string) []string {
	parts := clauseSplitter.Split(goal, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(strings.Trim(p, ", "))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Keywords 返回小写单词，供技能匹配使用
func Keywords(text string) []string {
	words := wordSplitter.Split(strings.ToLower(text), -1)
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.Trim(w, "-"); w != "" {
			out = append(out, w)
		}
	}
	return out
}

// InferSkills 根据关键词推断技能，按阶段顺序返回
func InferSkills(text string) []string {
	skills, _ := inferRules(text)
	return skills
}

func (h *Heuristic) infer(clause string) ([]string, time.Duration) {
	skills, duration := inferRules(clause)
	if len(skills) == 0 {
		skill := h.DefaultSkill
		if skill == "" {
			skill = "general"
		}
		return []string{skill}, h.DefaultDuration
	}
	return skills, duration
}

// inferRules 返回命中的技能，时长取命中规则中最长的
func inferRules(text string) ([]string, time.Duration) {
	words := Keywords(text)
	var (
		skills   []string
		duration time.Duration
	)
	for _, rule := range skillRules {
		if !matchAny(words, rule.prefixes) {
			continue
		}
		skills = append(skills, rule.skill)
		if rule.duration > duration {
			duration = rule.duration
		}
	}
	return skills, duration
}

func matchAny(words, prefixes []string) bool {
	for _, w := range words {
		for _, p := range prefixes {
			if strings.HasPrefix(w, p) {
				return true
			}
		}
	}
	return false
}

// expand 技能只取自阶段词，目标文本中的关键词不参与推断
func (h *Heuristic) expand(goal string) []types.Task {
	out := make([]types.Task, len(phaseTemplate))
	for i, phase := range phaseTemplate {
		skills, duration := h.infer(phase)
		out[i] = types.Task{
			Description:       phase + ": " + goal,
			RequiredSkills:    skills,
			EstimatedDuration: duration,
		}
	}
	return out
}
