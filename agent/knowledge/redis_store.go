package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/BaSui01/agentcoord/types"
	"github.com/redis/go-redis/v9"
)

// maxApplyRetries WATCH 冲突时的最大重试次数
const maxApplyRetries = 5

// RedisStore 基于 Redis 的知识库：每个 Agent 一个 Hash（字段为事实 Key），
// 同步游标单独存放
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore 创建 Redis 知识库
func NewRedisStore(client *redis.Client, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "agentcoord:"
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix + "knowledge:"}
}

func (s *RedisStore) factsKey(agentID string) string {
	return s.keyPrefix + "facts:" + agentID
}

func (s *RedisStore) cursorKey(agentID string) string {
	return s.keyPrefix + "cursor:" + agentID
}

// CurrentFacts implements Store.
func (s *RedisStore) CurrentFacts(ctx context.Context, agentID string) ([]types.KnowledgeFact, error) {
	raw, err := s.client.HGetAll(ctx, s.factsKey(agentID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]types.KnowledgeFact, 0, len(raw))
	for key, data := range raw {
		var f types.KnowledgeFact
		if err := json.Unmarshal([]byte(data), &f); err != nil {
			return nil, fmt.Errorf("decode fact %s for %s: %w", key, agentID, err)
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// ApplyFacts implements Store. 使用 WATCH 乐观锁保证读-比较-写的原子性。
func (s *RedisStore) ApplyFacts(ctx context.Context, agentID string, facts []types.KnowledgeFact) error {
	if len(facts) == 0 {
		return nil
	}
	key := s.factsKey(agentID)
	fields := make([]string, len(facts))
	for i, f := range facts {
		fields[i] = f.Key
	}

	txf := func(tx *redis.Tx) error {
		current, err := tx.HMGet(ctx, key, fields...).Result()
		if err != nil {
			return err
		}
		existing := make(map[string]types.KnowledgeFact, len(current))
		for _, v := range current {
			str, ok := v.(string)
			if !ok {
				continue
			}
			var f types.KnowledgeFact
			if err := json.Unmarshal([]byte(str), &f); err == nil {
				existing[f.Key] = f
			}
		}

		win := winners(existing, facts)
		if len(win) == 0 {
			return nil
		}
		values := make([]any, 0, len(win)*2)
		for _, f := range win {
			data, err := json.Marshal(f)
			if err != nil {
				return err
			}
			values = append(values, f.Key, data)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, values...)
			return nil
		})
		return err
	}

	for i := 0; i < maxApplyRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("apply facts for %s: too many concurrent updates", agentID)
}

// LastSynced implements Store.
func (s *RedisStore) LastSynced(ctx context.Context, agentID string) (uint64, error) {
	v, err := s.client.Get(ctx, s.cursorKey(agentID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(v, 10, 64)
}

// MarkSynced implements Store.
func (s *RedisStore) MarkSynced(ctx context.Context, agentID string, version uint64) error {
	return s.client.Set(ctx, s.cursorKey(agentID), strconv.FormatUint(version, 10), 0).Err()
}
