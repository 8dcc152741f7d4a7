package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisMessageStore is a Redis-based implementation of MessageStore.
// Suitable for distributed production deployments.
// Records are stored as JSON strings; a sorted set per recipient indexes
// pending records by creation time and a global sorted set indexes acked
// records by ack time for cleanup.
type RedisMessageStore struct {
	client    *redis.Client
	keyPrefix string
	config    StoreConfig
	ownClient bool
}

// NewRedisMessageStore creates a new Redis-based message store
func NewRedisMessageStore(config StoreConfig) (*RedisMessageStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Redis.Addr,
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
		PoolSize: config.Redis.PoolSize,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	store := NewRedisMessageStoreWithClient(client, config)
	store.ownClient = true
	return store, nil
}

// NewRedisMessageStoreWithClient wraps an existing client. The caller keeps
// ownership of the client.
func NewRedisMessageStoreWithClient(client *redis.Client, config StoreConfig) *RedisMessageStore {
	keyPrefix := config.Redis.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "agentcoord:"
	}
	return &RedisMessageStore{
		client:    client,
		keyPrefix: keyPrefix + "mbox:",
		config:    config,
	}
}

// Close closes the store
func (s *RedisMessageStore) Close() error {
	if !s.ownClient {
		return nil
	}
	return s.client.Close()
}

// Ping checks if the store is healthy
func (s *RedisMessageStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisMessageStore) messageKey(id string) string {
	return s.keyPrefix + "data:" + id
}

func (s *RedisMessageStore) pendingKey(recipient string) string {
	return s.keyPrefix + "pending:" + recipient
}

func (s *RedisMessageStore) ackedKey() string {
	return s.keyPrefix + "acked"
}

func (s *RedisMessageStore) recipientsKey() string {
	return s.keyPrefix + "recipients"
}

// SaveMessage persists a single message record
func (s *RedisMessageStore) SaveMessage(ctx context.Context, msg *Message) error {
	if msg == nil || msg.Recipient == "" || msg.MessageID == "" {
		return ErrInvalidInput
	}
	if msg.ID == "" {
		msg.ID = RecordID(msg.Recipient, msg.MessageID)
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.messageKey(msg.ID), data, 0)
	pipe.ZAdd(ctx, s.pendingKey(msg.Recipient), redis.Z{
		Score:  float64(msg.CreatedAt.UnixNano()),
		Member: msg.ID,
	})
	pipe.SAdd(ctx, s.recipientsKey(), msg.Recipient)

	_, err = pipe.Exec(ctx)
	return err
}

// GetMessage retrieves a record by ID
func (s *RedisMessageStore) GetMessage(ctx context.Context, id string) (*Message, error) {
	data, err := s.client.Get(ctx, s.messageKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// AckMessages marks records as acknowledged
func (s *RedisMessageStore) AckMessages(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	now := time.Now()
	pipe := s.client.TxPipeline()
	for _, id := range ids {
		msg, err := s.GetMessage(ctx, id)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return err
		}
		if msg.AckedAt != nil {
			continue
		}
		acked := now
		msg.AckedAt = &acked

		data, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		pipe.Set(ctx, s.messageKey(id), data, 0)
		pipe.ZRem(ctx, s.pendingKey(msg.Recipient), id)
		pipe.ZAdd(ctx, s.ackedKey(), redis.Z{Score: float64(now.UnixNano()), Member: id})
	}

	_, err := pipe.Exec(ctx)
	return err
}

// GetUnackedMessages retrieves unacknowledged records created before now-olderThan
func (s *RedisMessageStore) GetUnackedMessages(ctx context.Context, recipient string, olderThan time.Duration) ([]*Message, error) {
	cutoff := time.Now().Add(-olderThan).UnixNano()

	ids, err := s.client.ZRangeByScore(ctx, s.pendingKey(recipient), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(cutoff, 10),
	}).Result()
	if err != nil {
		return nil, err
	}

	result := make([]*Message, 0, len(ids))
	for _, id := range ids {
		msg, err := s.GetMessage(ctx, id)
		if err != nil {
			continue
		}
		if msg.AckedAt == nil {
			result = append(result, msg)
		}
	}
	return result, nil
}

// IncrementRetry increments the retry count for a record
func (s *RedisMessageStore) IncrementRetry(ctx context.Context, id string) error {
	msg, err := s.GetMessage(ctx, id)
	if err != nil {
		return err
	}

	msg.RetryCount++
	now := time.Now()
	msg.LastRetryAt = &now

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.messageKey(id), data, 0).Err()
}

// Cleanup removes acknowledged records acked before now-olderThan
func (s *RedisMessageStore) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan).UnixNano()

	ids, err := s.client.ZRangeByScore(ctx, s.ackedKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(cutoff, 10),
	}).Result()
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	pipe := s.client.TxPipeline()
	members := make([]any, 0, len(ids))
	for _, id := range ids {
		pipe.Del(ctx, s.messageKey(id))
		members = append(members, id)
	}
	pipe.ZRem(ctx, s.ackedKey(), members...)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Stats returns statistics about the message store
func (s *RedisMessageStore) Stats(ctx context.Context) (*MessageStoreStats, error) {
	recipients, err := s.client.SMembers(ctx, s.recipientsKey()).Result()
	if err != nil {
		return nil, err
	}

	stats := &MessageStoreStats{
		RecipientCounts: make(map[string]int64),
	}
	for _, r := range recipients {
		n, err := s.client.ZCard(ctx, s.pendingKey(r)).Result()
		if err != nil {
			return nil, err
		}
		if n > 0 {
			stats.RecipientCounts[r] = n
		}
		stats.PendingMessages += n
	}

	acked, err := s.client.ZCard(ctx, s.ackedKey()).Result()
	if err != nil {
		return nil, err
	}
	stats.AckedMessages = acked
	stats.TotalMessages = stats.PendingMessages + stats.AckedMessages
	return stats, nil
}

// String describes the store for logs.
func (s *RedisMessageStore) String() string {
	return "redis(" + strings.TrimSuffix(s.keyPrefix, ":") + ")"
}
