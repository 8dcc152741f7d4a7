package planning

import (
	"strings"

	"github.com/BaSui01/agentcoord/types"
)

// Phase 交付阶段，数值越小越靠前
type Phase int

const (
	PhaseNone Phase = iota
	PhaseResearch
	PhaseDesign
	PhaseImplement
	PhaseVerify
	PhaseRelease
)

var phaseNames = map[Phase]string{
	PhaseNone:      "none",
	PhaseResearch:  "research",
	PhaseDesign:    "design",
	PhaseImplement: "implement",
	PhaseVerify:    "verify",
	PhaseRelease:   "release",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return "unknown"
}

// 技能标签前缀到阶段的映射
var phaseRules = []struct {
	phase    Phase
	prefixes []string
}{
	{PhaseResearch, []string{"research", "analy", "investigat", "discovery"}},
	{PhaseDesign, []string{"design", "architect", "modeling", "planning"}},
	{PhaseImplement, []string{"coding", "implement", "develop", "programming", "engineering"}},
	{PhaseVerify, []string{"testing", "test", "verif", "review", "qa", "validat"}},
	{PhaseRelease, []string{"deploy", "release", "ops", "document"}},
}

// PhaseOfSkill 返回技能标签所属阶段，无法识别时为 PhaseNone
func PhaseOfSkill(skill string) Phase {
	s := strings.ToLower(strings.TrimSpace(skill))
	for _, rule := range phaseRules {
		for _, prefix := range rule.prefixes {
			if strings.HasPrefix(s, prefix) {
				return rule.phase
			}
		}
	}
	return PhaseNone
}

// PhaseOf 任务阶段取其技能中最靠后的阶段
func PhaseOf(task types.Task) Phase {
	phase := PhaseNone
	for _, skill := range task.RequiredSkills {
		if p := PhaseOfSkill(skill); p > phase {
			phase = p
		}
	}
	return phase
}

// phaseEdges 每个阶段为 p 的任务依赖最近的、存在任务的较低阶段中的全部任务
func phaseEdges(tasks []types.Task) [][2]string {
	byPhase := make(map[Phase][]string)
	for _, t := range tasks {
		if p := PhaseOf(t); p != PhaseNone {
			byPhase[p] = append(byPhase[p], t.ID)
		}
	}

	var edges [][2]string
	for _, t := range tasks {
		p := PhaseOf(t)
		if p == PhaseNone {
			continue
		}
		for lower := p - 1; lower > PhaseNone; lower-- {
			prev, ok := byPhase[lower]
			if !ok {
				continue
			}
			for _, before := range prev {
				edges = append(edges, [2]string{before, t.ID})
			}
			break
		}
	}
	return edges
}
