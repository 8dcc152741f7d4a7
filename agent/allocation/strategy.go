package allocation

import (
	"fmt"
	"strings"

	"github.com/BaSui01/agentcoord/types"
)

// Strategy 分配策略
type Strategy string

const (
	RoundRobin   Strategy = "round_robin"
	SkillBased   Strategy = "skill_based"
	LoadBalanced Strategy = "load_balanced"
	Auction      Strategy = "auction"
)

// Strategies 返回全部策略
func Strategies() []Strategy {
	return []Strategy{RoundRobin, SkillBased, LoadBalanced, Auction}
}

// ParseStrategy 解析策略名，忽略大小写，接受 "-" 与 "_" 两种写法
func ParseStrategy(s string) (Strategy, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	switch norm {
	case "round_robin", "roundrobin":
		return RoundRobin, nil
	case "skill_based", "skillbased", "skill":
		return SkillBased, nil
	case "load_balanced", "loadbalanced", "least_loaded":
		return LoadBalanced, nil
	case "auction":
		return Auction, nil
	default:
		return "", types.Errorf(types.ErrInvalidInput, "unknown allocation strategy %q", s)
	}
}

// Pick 单个任务的分配结果（下标指向传入的任务与候选者切片）
type Pick struct {
	Task      int
	Candidate int
	Score     float64
}

// TaskFailure 无法分配的任务
type TaskFailure struct {
	TaskID      string          `json:"task_id" yaml:"task_id"`
	Description string          `json:"description" yaml:"description"`
	Code        types.ErrorCode `json:"code" yaml:"code"`
	Reason      string          `json:"reason" yaml:"reason"`
}

// Assign 纯函数：按策略为每个任务选择候选者。candidates 顺序即声明顺序。
// 调用方保证 candidates 非空。
func Assign(strategy Strategy, tasks []types.Task, candidates []types.AgentCapabilities, loadIncrement float64) ([]Pick, []TaskFailure, error) {
	switch strategy {
	case RoundRobin:
		return assignRoundRobin(tasks, candidates), nil, nil
	case SkillBased:
		picks, failures := assignByScore(tasks, candidates, skillScore)
		return picks, failures, nil
	case LoadBalanced:
		return assignLoadBalanced(tasks, candidates, loadIncrement), nil, nil
	case Auction:
		picks, failures := assignByScore(tasks, candidates, auctionBid)
		return picks, failures, nil
	default:
		return nil, nil, types.Errorf(types.ErrInvalidInput, "unknown allocation strategy %q", strategy)
	}
}

// 轮询：任务 i 分配给候选者 i mod M，忽略技能
func assignRoundRobin(tasks []types.Task, candidates []types.AgentCapabilities) []Pick {
	picks := make([]Pick, len(tasks))
	for i, task := range tasks {
		c := i % len(candidates)
		picks[i] = Pick{Task: i, Candidate: c, Score: SkillMatch(candidates[c], Keywords(task))}
	}
	return picks
}

// 最低有效负载优先；每次分配后被选者的有效负载增加 increment
func assignLoadBalanced(tasks []types.Task, candidates []types.AgentCapabilities, increment float64) []Pick {
	load := make([]float64, len(candidates))
	for i, c := range candidates {
		load[i] = c.Load
	}

	picks := make([]Pick, len(tasks))
	for i := range tasks {
		best := 0
		for c := 1; c < len(candidates); c++ {
			if load[c] < load[best] {
				best = c
			}
		}
		picks[i] = Pick{Task: i, Candidate: best, Score: 1 - load[best]}
		load[best] += increment
	}
	return picks
}

// scorer 返回候选者对任务的得分，qualified 为 false 表示不参与竞争
type scorer func(c types.AgentCapabilities, keywords []string) (score float64, qualified bool)

func skillScore(c types.AgentCapabilities, keywords []string) (float64, bool) {
	m := SkillMatch(c, keywords)
	return m, m > 0
}

// 出价 = 最佳匹配熟练度 - 负载；只有存在匹配技能的候选者出价
func auctionBid(c types.AgentCapabilities, keywords []string) (float64, bool) {
	m := SkillMatch(c, keywords)
	return m - c.Load, m > 0
}

// 最高分胜出；平分时负载低者优先，再按声明顺序
func assignByScore(tasks []types.Task, candidates []types.AgentCapabilities, score scorer) ([]Pick, []TaskFailure) {
	var (
		picks    []Pick
		failures []TaskFailure
	)
	for i, task := range tasks {
		keywords := Keywords(task)
		best, bestScore := -1, 0.0
		for c, cand := range candidates {
			s, ok := score(cand, keywords)
			if !ok {
				continue
			}
			if best < 0 || s > bestScore || (s == bestScore && cand.Load < candidates[best].Load) {
				best, bestScore = c, s
			}
		}
		if best < 0 {
			failures = append(failures, TaskFailure{
				TaskID:      task.ID,
				Description: task.Description,
				Code:        types.ErrNoQualifiedParticipant,
				Reason:      fmt.Sprintf("no candidate has a skill matching %v", keywords),
			})
			continue
		}
		picks = append(picks, Pick{Task: i, Candidate: best, Score: bestScore})
	}
	return picks, failures
}
