package allocation

import (
	"strings"
	"unicode/utf8"

	"github.com/BaSui01/agentcoord/agent/decompose"
	"github.com/BaSui01/agentcoord/types"
)

// minPrefixRunes 前缀匹配时较短一方的最小长度
const minPrefixRunes = 4

// Keywords 任务关键词：所需技能 + 描述分词，小写去重
func Keywords(task types.Task) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(w string) {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			return
		}
		if _, ok := seen[w]; ok {
			return
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	for _, s := range task.RequiredSkills {
		add(s)
	}
	for _, w := range decompose.Keywords(task.Description) {
		add(w)
	}
	return out
}

// SkillMatch 候选者技能中与关键词词法匹配者的最高熟练度；无匹配为 0
func SkillMatch(caps types.AgentCapabilities, keywords []string) float64 {
	best := 0.0
	for _, skill := range caps.Skills {
		for _, kw := range keywords {
			if !LexicalMatch(skill, kw) {
				continue
			}
			if p := caps.ProficiencyFor(skill); p > best {
				best = p
			}
			break
		}
	}
	return best
}

// LexicalMatch 忽略大小写相等，或较短一方不少于 4 个字符且为另一方前缀
func LexicalMatch(skill, keyword string) bool {
	s := strings.ToLower(strings.TrimSpace(skill))
	k := strings.ToLower(strings.TrimSpace(keyword))
	if s == "" || k == "" {
		return false
	}
	if s == k {
		return true
	}
	short, long := s, k
	if utf8.RuneCountInString(short) > utf8.RuneCountInString(long) {
		short, long = long, short
	}
	return utf8.RuneCountInString(short) >= minPrefixRunes && strings.HasPrefix(long, short)
}
