package knowledge

import (
	"context"
	"sort"
	"sync"

	"github.com/BaSui01/agentcoord/types"
)

// Store 每个 Agent 的知识库。ApplyFacts 按 Key 合并，较新者胜出。
type Store interface {
	// CurrentFacts 返回 Agent 当前持有的全部事实，按 Key 排序
	CurrentFacts(ctx context.Context, agentID string) ([]types.KnowledgeFact, error)

	// ApplyFacts 合并事实到 Agent 的知识库
	ApplyFacts(ctx context.Context, agentID string, facts []types.KnowledgeFact) error

	// LastSynced 返回 Agent 最近一次同步到的版本，未同步过为 0
	LastSynced(ctx context.Context, agentID string) (uint64, error)

	// MarkSynced 记录 Agent 已同步到的版本
	MarkSynced(ctx context.Context, agentID string, version uint64) error
}

// MemoryStore 内存知识库，适合测试和单进程部署
type MemoryStore struct {
	mu      sync.RWMutex
	facts   map[string]map[string]types.KnowledgeFact
	cursors map[string]uint64
}

// NewMemoryStore 创建内存知识库
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		facts:   make(map[string]map[string]types.KnowledgeFact),
		cursors: make(map[string]uint64),
	}
}

// CurrentFacts implements Store.
func (s *MemoryStore) CurrentFacts(ctx context.Context, agentID string) ([]types.KnowledgeFact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	held := s.facts[agentID]
	out := make([]types.KnowledgeFact, 0, len(held))
	for _, f := range held {
		out = append(out, cloneFact(f))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// ApplyFacts implements Store.
func (s *MemoryStore) ApplyFacts(ctx context.Context, agentID string, facts []types.KnowledgeFact) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	held := s.facts[agentID]
	if held == nil {
		held = make(map[string]types.KnowledgeFact, len(facts))
		s.facts[agentID] = held
	}
	for _, f := range facts {
		if cur, ok := held[f.Key]; !ok || f.Newer(cur) {
			held[f.Key] = cloneFact(f)
		}
	}
	return nil
}

// LastSynced implements Store.
func (s *MemoryStore) LastSynced(ctx context.Context, agentID string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursors[agentID], nil
}

// MarkSynced implements Store.
func (s *MemoryStore) MarkSynced(ctx context.Context, agentID string, version uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[agentID] = version
	return nil
}

func cloneFact(f types.KnowledgeFact) types.KnowledgeFact {
	if f.Topics != nil {
		f.Topics = append([]string(nil), f.Topics...)
	}
	return f
}

// winners 返回 incoming 中比 existing 更新（或 existing 中不存在）的事实，同 Key 只保留最新
func winners(existing map[string]types.KnowledgeFact, incoming []types.KnowledgeFact) []types.KnowledgeFact {
	best := make(map[string]types.KnowledgeFact, len(incoming))
	for _, f := range incoming {
		if cur, ok := best[f.Key]; ok && !f.Newer(cur) {
			continue
		}
		best[f.Key] = f
	}
	out := make([]types.KnowledgeFact, 0, len(best))
	for key, f := range best {
		if cur, ok := existing[key]; ok && !f.Newer(cur) {
			continue
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
