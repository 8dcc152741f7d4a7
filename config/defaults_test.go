package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- DefaultConfig aggregate ---

func TestDefaultConfig_ContainsAllSubConfigs(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)

	assert.NotEqual(t, ServerConfig{}, cfg.Server)
	assert.NotEqual(t, MailboxConfig{}, cfg.Mailbox)
	assert.NotEqual(t, AllocationConfig{}, cfg.Allocation)
	assert.NotEqual(t, ConsensusConfig{}, cfg.Consensus)
	assert.NotEqual(t, SyncConfig{}, cfg.Sync)
	assert.NotEqual(t, PlannerConfig{}, cfg.Planner)
	assert.NotEqual(t, DecomposerConfig{}, cfg.Decomposer)
	assert.NotEqual(t, RedisConfig{}, cfg.Redis)
	assert.NotEqual(t, DatabaseConfig{}, cfg.Database)
	assert.NotEqual(t, TelemetryConfig{}, cfg.Telemetry)
	assert.NotEqual(t, MetricsConfig{}, cfg.Metrics)
}

// --- Individual Default*Config functions ---

func TestDefaultConsensusConfig(t *testing.T) {
	cfg := DefaultConsensusConfig()
	assert.Equal(t, 30*time.Second, cfg.DefaultTimeout)
	assert.Equal(t, 16, cfg.MaxConcurrentVotes)
	assert.Equal(t, 1, cfg.MinVotes)
	assert.Equal(t, "decision-making", cfg.DecisionSkill)
}

func TestDefaultSyncConfig(t *testing.T) {
	cfg := DefaultSyncConfig()
	assert.Equal(t, "memory", cfg.Store)
	assert.Equal(t, 3, cfg.GossipRounds)
	assert.Equal(t, "rotation", cfg.GossipPairing)
	assert.Zero(t, cfg.PushRate, "unlimited by default")
}

func TestDefaultAllocationAndPlanner(t *testing.T) {
	alloc := DefaultAllocationConfig()
	assert.Equal(t, 0.1, alloc.LoadIncrement)
	assert.Equal(t, time.Hour, alloc.DefaultTaskDuration)

	planner := DefaultPlannerConfig()
	assert.True(t, planner.PhaseOrdering)
	assert.Equal(t, 20, planner.MaxTasks)
}

func TestDefaultMailboxConfig(t *testing.T) {
	cfg := DefaultMailboxConfig()
	assert.Zero(t, cfg.Capacity, "unbounded by default")
	assert.Equal(t, "none", cfg.Store)
	assert.Equal(t, 3, cfg.MaxRetries)
}

func TestDefaultInfraConfigs(t *testing.T) {
	assert.Equal(t, "agentcoord:", DefaultRedisConfig().KeyPrefix)
	assert.Equal(t, "postgres", DefaultDatabaseConfig().Driver)
	assert.Equal(t, "json", DefaultLogConfig().Format)
	assert.False(t, DefaultTelemetryConfig().Enabled)
	assert.Equal(t, "agentcoord", DefaultMetricsConfig().Namespace)
}
