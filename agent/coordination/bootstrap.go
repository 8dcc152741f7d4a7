package coordination

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/agentcoord/agent/decompose"
	"github.com/BaSui01/agentcoord/agent/knowledge"
	"github.com/BaSui01/agentcoord/agent/persistence"
	"github.com/BaSui01/agentcoord/config"
	"github.com/BaSui01/agentcoord/internal/database"
	"github.com/BaSui01/agentcoord/internal/metrics"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Build 按应用配置装配 Coordinator：连接 Redis 与数据库、选择邮箱与知识库后端、
// 创建目标分解器。extra 中的选项在配置派生的选项之后应用，可覆盖它们。
// 构建失败时已经打开的连接会被释放。
func Build(cfg *config.Config, logger *zap.Logger, extra ...Option) (c *Coordinator, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var closers []func() error
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				_ = closers[i]()
			}
		}
	}()

	opts := []Option{
		WithConfig(ConfigFrom(cfg)),
		WithLogger(logger),
	}

	var rdb *redis.Client
	redisClient := func() (*redis.Client, error) {
		if rdb != nil {
			return rdb, nil
		}
		client, err := openRedis(cfg.Redis)
		if err != nil {
			return nil, err
		}
		rdb = client
		closers = append(closers, client.Close)
		opts = append(opts, WithHealthCheck("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}))
		return rdb, nil
	}

	// extra 中显式给出的采集器优先，避免重复注册到默认 Registry
	given := &options{}
	for _, opt := range extra {
		opt(given)
	}
	collector := given.metrics
	if collector == nil && cfg.Metrics.Enabled {
		collector = metrics.NewCollector(cfg.Metrics.Namespace, logger)
	}
	if collector != nil {
		opts = append(opts, WithMetrics(collector))
	}

	// 邮箱持久化
	storeCfg := persistence.DefaultStoreConfig()
	storeCfg.Redis.KeyPrefix = cfg.Redis.KeyPrefix
	if cfg.Mailbox.MessageRetention > 0 {
		storeCfg.MessageRetention = cfg.Mailbox.MessageRetention
	}
	if cfg.Mailbox.MaxRetries > 0 {
		storeCfg.Retry.MaxRetries = cfg.Mailbox.MaxRetries
	}
	switch strings.ToLower(cfg.Mailbox.Store) {
	case "", "none":
	case "memory":
		opts = append(opts, WithMessageStore(persistence.NewMemoryMessageStore(storeCfg)))
	case "redis":
		client, err := redisClient()
		if err != nil {
			return nil, err
		}
		storeCfg.Type = persistence.StoreTypeRedis
		opts = append(opts, WithMessageStore(persistence.NewRedisMessageStoreWithClient(client, storeCfg)))
	default:
		return nil, fmt.Errorf("unknown mailbox store: %q", cfg.Mailbox.Store)
	}

	// 知识库
	switch strings.ToLower(cfg.Sync.Store) {
	case "", "memory":
	case "redis":
		client, err := redisClient()
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithKnowledgeStore(knowledge.NewRedisStore(client, cfg.Redis.KeyPrefix)))
	case "sql":
		db, err := database.Open(cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		// 连接池接管前由 closers 直接关闭底层连接
		closers = append(closers, func() error { return database.Close(db) })
		var poolOpts []database.PoolOption
		if collector != nil {
			poolOpts = append(poolOpts, database.WithMetrics(collector, "knowledge"))
		}
		pool, err := database.NewPoolManager(db, database.PoolConfigFrom(cfg.Database), logger, poolOpts...)
		if err != nil {
			return nil, err
		}
		closers[len(closers)-1] = pool.Close
		opts = append(opts, WithHealthCheck("database", pool.Ping))

		store := knowledge.NewSQLStore(pool.DB())
		// sqlite 通常用于单机部署，直接建表；其他数据库走 migrate 命令
		if strings.EqualFold(cfg.Database.Driver, "sqlite") {
			if err := store.AutoMigrate(); err != nil {
				return nil, fmt.Errorf("failed to migrate knowledge tables: %w", err)
			}
		}
		opts = append(opts, WithKnowledgeStore(store))
	default:
		return nil, fmt.Errorf("unknown knowledge store: %q", cfg.Sync.Store)
	}

	d, err := decompose.NewFromConfig(cfg.Decomposer, logger)
	if err != nil {
		return nil, err
	}
	opts = append(opts, WithDecomposer(d))

	for _, fn := range closers {
		opts = append(opts, WithCloser(fn))
	}
	opts = append(opts, extra...)

	logger.Info("coordinator backends selected",
		zap.String("mailbox_store", cfg.Mailbox.Store),
		zap.String("knowledge_store", cfg.Sync.Store),
		zap.String("decomposer", cfg.Decomposer.Type),
	)
	return New(opts...), nil
}

func openRedis(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}
