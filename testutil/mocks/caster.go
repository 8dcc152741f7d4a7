// =============================================================================
// 🗳️ MockVoteCaster - 投票征集器模拟实现
// =============================================================================
// 按脚本返回投票，支持延迟、错误注入和调用记录
//
// 使用方法:
//
//	caster := mocks.NewMockVoteCaster().
//		WithVote("dev", true).
//		WithDelay("qa", time.Minute)
// =============================================================================
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/BaSui01/agentcoord/types"
)

// MockVoteCaster 实现 consensus.VoteCaster；未配置的投票者弃权
type MockVoteCaster struct {
	mu sync.Mutex

	votes   map[string]bool
	weights map[string]float64
	errs    map[string]error
	delays  map[string]time.Duration

	calls []string
}

// NewMockVoteCaster 创建新的 MockVoteCaster
func NewMockVoteCaster() *MockVoteCaster {
	return &MockVoteCaster{
		votes:   make(map[string]bool),
		weights: make(map[string]float64),
		errs:    make(map[string]error),
		delays:  make(map[string]time.Duration),
	}
}

// WithVote 设置投票者的选择
func (m *MockVoteCaster) WithVote(agentID string, inFavor bool) *MockVoteCaster {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.votes[agentID] = inFavor
	return m
}

// WithWeightedVote 设置带权重的投票
func (m *MockVoteCaster) WithWeightedVote(agentID string, inFavor bool, weight float64) *MockVoteCaster {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.votes[agentID] = inFavor
	m.weights[agentID] = weight
	return m
}

// WithError 投票者返回错误
func (m *MockVoteCaster) WithError(agentID string, err error) *MockVoteCaster {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[agentID] = err
	return m
}

// WithDelay 投票者在 d 之后才回复；ctx 先结束时返回 ctx.Err()
func (m *MockVoteCaster) WithDelay(agentID string, d time.Duration) *MockVoteCaster {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delays[agentID] = d
	return m
}

// CastVote 实现 consensus.VoteCaster
func (m *MockVoteCaster) CastVote(ctx context.Context, voter types.AgentID, proposal string) (*types.Vote, error) {
	m.mu.Lock()
	m.calls = append(m.calls, voter.ID)
	delay := m.delays[voter.ID]
	err := m.errs[voter.ID]
	inFavor, voted := m.votes[voter.ID]
	weight := m.weights[voter.ID]
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	if err != nil {
		return nil, err
	}
	if !voted {
		return nil, nil
	}
	return &types.Vote{Voter: voter, InFavor: inFavor, Weight: weight}, nil
}

// Calls 返回被征集过的投票者，按调用顺序
func (m *MockVoteCaster) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}
