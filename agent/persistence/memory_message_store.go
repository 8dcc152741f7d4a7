package persistence

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryMessageStore 内存实现，适合开发和测试，重启后数据丢失
type MemoryMessageStore struct {
	messages map[string]*Message // recordID -> Message
	mu       sync.RWMutex
	closed   bool
	config   StoreConfig
	now      func() time.Time
}

// NewMemoryMessageStore 创建内存消息存储
func NewMemoryMessageStore(config StoreConfig) *MemoryMessageStore {
	return &MemoryMessageStore{
		messages: make(map[string]*Message),
		config:   config,
		now:      time.Now,
	}
}

// Close 关闭存储
func (s *MemoryMessageStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Ping 健康检查
func (s *MemoryMessageStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// SaveMessage 保存消息记录
func (s *MemoryMessageStore) SaveMessage(ctx context.Context, msg *Message) error {
	if msg == nil || msg.Recipient == "" || msg.MessageID == "" {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if msg.ID == "" {
		msg.ID = RecordID(msg.Recipient, msg.MessageID)
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}

	// 存副本，调用方后续修改不影响存储
	cp := *msg
	s.messages[cp.ID] = &cp
	return nil
}

// GetMessage 按记录 ID 查询
func (s *MemoryMessageStore) GetMessage(ctx context.Context, id string) (*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	msg, ok := s.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *msg
	return &cp, nil
}

// AckMessages 确认消息；未知 ID 被忽略
func (s *MemoryMessageStore) AckMessages(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	now := s.now()
	for _, id := range ids {
		if msg, ok := s.messages[id]; ok && msg.AckedAt == nil {
			acked := now
			msg.AckedAt = &acked
		}
	}
	return nil
}

// GetUnackedMessages 获取接收方未确认的消息，按创建时间排序
func (s *MemoryMessageStore) GetUnackedMessages(ctx context.Context, recipient string, olderThan time.Duration) ([]*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	cutoff := s.now().Add(-olderThan)
	result := make([]*Message, 0)
	for _, msg := range s.messages {
		if msg.Recipient != recipient || msg.AckedAt != nil {
			continue
		}
		if msg.CreatedAt.After(cutoff) {
			continue
		}
		cp := *msg
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// IncrementRetry 增加重试计数
func (s *MemoryMessageStore) IncrementRetry(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	msg, ok := s.messages[id]
	if !ok {
		return ErrNotFound
	}
	msg.RetryCount++
	now := s.now()
	msg.LastRetryAt = &now
	return nil
}

// Cleanup 清理过期的已确认消息
func (s *MemoryMessageStore) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	cutoff := s.now().Add(-olderThan)
	removed := 0
	for id, msg := range s.messages {
		if msg.AckedAt != nil && msg.AckedAt.Before(cutoff) {
			delete(s.messages, id)
			removed++
		}
	}
	return removed, nil
}

// Stats 统计信息
func (s *MemoryMessageStore) Stats(ctx context.Context) (*MessageStoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	stats := &MessageStoreStats{
		RecipientCounts: make(map[string]int64),
	}
	for _, msg := range s.messages {
		stats.TotalMessages++
		if msg.AckedAt != nil {
			stats.AckedMessages++
			continue
		}
		stats.PendingMessages++
		stats.RecipientCounts[msg.Recipient]++
	}
	return stats, nil
}
