// =============================================================================
// 📦 测试数据工厂 - 团队、知识与任务
// =============================================================================
// 提供预定义的 Agent 团队、知识事实与任务，用于测试
// =============================================================================
package fixtures

import (
	"time"

	"github.com/BaSui01/agentcoord/types"
)

// =============================================================================
// 🤖 团队
// =============================================================================

// Member 单技能团队成员
type Member struct {
	ID          string
	Skill       string
	Proficiency float64
	Load        float64
}

// DefaultTeam 覆盖调研、设计、开发、测试、部署五个阶段的团队
func DefaultTeam() []Member {
	return []Member{
		{ID: "researcher", Skill: "research", Proficiency: 0.9},
		{ID: "architect", Skill: "design", Proficiency: 0.8},
		{ID: "dev", Skill: "coding", Proficiency: 0.9},
		{ID: "qa", Skill: "testing", Proficiency: 0.7},
		{ID: "ops", Skill: "deployment", Proficiency: 0.6},
	}
}

// Team 把成员转换为能力描述，ID 加上 prefix 以便并发测试互不干扰
func Team(prefix string, members ...Member) []types.AgentCapabilities {
	if len(members) == 0 {
		members = DefaultTeam()
	}
	out := make([]types.AgentCapabilities, len(members))
	for i, m := range members {
		out[i] = types.AgentCapabilities{
			Agent:       types.NewAgentID(prefix+m.ID, m.ID),
			Proficiency: map[string]float64{m.Skill: m.Proficiency},
			Load:        m.Load,
			Available:   true,
		}
	}
	return out
}

// =============================================================================
// 📚 知识
// =============================================================================

// Fact 构造一条知识事实
func Fact(key, origin string, version uint64, topics ...string) types.KnowledgeFact {
	return types.KnowledgeFact{
		Key:       key,
		Topics:    topics,
		Statement: key + " by " + origin,
		Version:   version,
		Origin:    origin,
		UpdatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// =============================================================================
// 📋 任务
// =============================================================================

// ServiceTasks 实现、验证、上线三个任务
func ServiceTasks() []types.Task {
	return []types.Task{
		{ID: "impl", Description: "implement the service", RequiredSkills: []string{"coding"}, EstimatedDuration: 8 * time.Hour},
		{ID: "verify", Description: "test the service", RequiredSkills: []string{"testing"}, EstimatedDuration: 4 * time.Hour},
		{ID: "ship", Description: "deploy to staging", RequiredSkills: []string{"deployment"}, EstimatedDuration: time.Hour},
	}
}
