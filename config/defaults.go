// =============================================================================
// 📦 AgentCoord 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:     DefaultServerConfig(),
		Mailbox:    DefaultMailboxConfig(),
		Allocation: DefaultAllocationConfig(),
		Consensus:  DefaultConsensusConfig(),
		Sync:       DefaultSyncConfig(),
		Planner:    DefaultPlannerConfig(),
		Decomposer: DefaultDecomposerConfig(),
		Redis:      DefaultRedisConfig(),
		Database:   DefaultDatabaseConfig(),
		Log:        DefaultLogConfig(),
		Telemetry:  DefaultTelemetryConfig(),
		Metrics:    DefaultMetricsConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
	}
}

// DefaultMailboxConfig 返回默认邮箱配置
func DefaultMailboxConfig() MailboxConfig {
	return MailboxConfig{
		Capacity:         0,
		Store:            "none",
		StoreTimeout:     2 * time.Second,
		MaxRetries:       3,
		MessageRetention: 24 * time.Hour,
	}
}

// DefaultAllocationConfig 返回默认分配配置
func DefaultAllocationConfig() AllocationConfig {
	return AllocationConfig{
		DefaultTaskDuration: time.Hour,
		LoadIncrement:       0.1,
		MaxTasks:            20,
	}
}

// DefaultConsensusConfig 返回默认共识配置
func DefaultConsensusConfig() ConsensusConfig {
	return ConsensusConfig{
		DefaultTimeout:     30 * time.Second,
		MaxConcurrentVotes: 16,
		MinVotes:           1,
		DecisionSkill:      "decision-making",
	}
}

// DefaultSyncConfig 返回默认知识同步配置
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		Store:               "memory",
		DefaultTimeout:      30 * time.Second,
		PushRate:            0,
		PushBurst:           1,
		MaxConcurrentPushes: 8,
		GossipRounds:        3,
		GossipPairing:       "rotation",
		Seed:                1,
	}
}

// DefaultPlannerConfig 返回默认规划配置
func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		DefaultTaskDuration: time.Hour,
		MaxTasks:            20,
		PhaseOrdering:       true,
	}
}

// DefaultDecomposerConfig 返回默认分解器配置
func DefaultDecomposerConfig() DecomposerConfig {
	return DecomposerConfig{
		Type:       "heuristic",
		Model:      "gpt-4o-mini",
		Timeout:    2 * time.Minute,
		MaxRetries: 2,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		KeyPrefix:    "agentcoord:",
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "postgres",
		Host:            "localhost",
		Port:            5432,
		User:            "agentcoord",
		Password:        "",
		Name:            "agentcoord",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "agentcoord",
		SampleRate:   0.1,
	}
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   true,
		Namespace: "agentcoord",
	}
}
