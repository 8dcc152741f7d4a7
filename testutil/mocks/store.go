// =============================================================================
// 🧠 MockKnowledgeStore - 知识库模拟实现
// =============================================================================
// 内存知识库，支持按 Agent 注入写入错误和调用记录
//
// 使用方法:
//
//	store := mocks.NewMockKnowledgeStore().
//		WithApplyError("qa", errors.New("disk full"))
// =============================================================================
package mocks

import (
	"context"
	"sync"

	"github.com/BaSui01/agentcoord/types"
)

// MockKnowledgeStore 实现 knowledge.Store
type MockKnowledgeStore struct {
	mu sync.RWMutex

	facts   map[string][]types.KnowledgeFact
	cursors map[string]uint64

	// 错误注入
	applyErrs map[string]error
	readErr   error

	// 调用记录
	applyCalls map[string]int
}

// NewMockKnowledgeStore 创建新的 MockKnowledgeStore
func NewMockKnowledgeStore() *MockKnowledgeStore {
	return &MockKnowledgeStore{
		facts:      make(map[string][]types.KnowledgeFact),
		cursors:    make(map[string]uint64),
		applyErrs:  make(map[string]error),
		applyCalls: make(map[string]int),
	}
}

// WithFacts 预置 Agent 的知识
func (m *MockKnowledgeStore) WithFacts(agentID string, facts ...types.KnowledgeFact) *MockKnowledgeStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.facts[agentID] = types.MergeFacts(m.facts[agentID], facts)
	return m
}

// WithApplyError 对 Agent 的写入返回 err
func (m *MockKnowledgeStore) WithApplyError(agentID string, err error) *MockKnowledgeStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyErrs[agentID] = err
	return m
}

// WithReadError 所有读取返回 err
func (m *MockKnowledgeStore) WithReadError(err error) *MockKnowledgeStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr = err
	return m
}

// CurrentFacts 实现 knowledge.Store
func (m *MockKnowledgeStore) CurrentFacts(ctx context.Context, agentID string) ([]types.KnowledgeFact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	return append([]types.KnowledgeFact(nil), m.facts[agentID]...), nil
}

// ApplyFacts 实现 knowledge.Store
func (m *MockKnowledgeStore) ApplyFacts(ctx context.Context, agentID string, facts []types.KnowledgeFact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyCalls[agentID]++
	if err := m.applyErrs[agentID]; err != nil {
		return err
	}
	m.facts[agentID] = types.MergeFacts(m.facts[agentID], facts)
	return nil
}

// LastSynced 实现 knowledge.Store
func (m *MockKnowledgeStore) LastSynced(ctx context.Context, agentID string) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cursors[agentID], nil
}

// MarkSynced 实现 knowledge.Store
func (m *MockKnowledgeStore) MarkSynced(ctx context.Context, agentID string, version uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursors[agentID] = version
	return nil
}

// ApplyCalls 返回 Agent 的写入次数，包括失败的写入
func (m *MockKnowledgeStore) ApplyCalls(agentID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.applyCalls[agentID]
}
