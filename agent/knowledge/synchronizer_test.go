package knowledge

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/BaSui01/agentcoord/agent/directory"
	"github.com/BaSui01/agentcoord/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDirectory(t *testing.T, agents map[string][]string) *directory.Directory {
	t.Helper()
	dir := directory.New(nil)
	for id, skills := range agents {
		prof := make(map[string]float64, len(skills))
		for _, s := range skills {
			prof[s] = 0.8
		}
		require.NoError(t, dir.Register(types.AgentCapabilities{
			Agent:       types.NewAgentID(id, id),
			Proficiency: prof,
			Available:   true,
		}))
	}
	return dir
}

func ids(names ...string) []types.AgentID {
	out := make([]types.AgentID, len(names))
	for i, n := range names {
		out[i] = types.NewAgentID(n, n)
	}
	return out
}

func seed(t *testing.T, store Store, agent string, facts ...types.KnowledgeFact) {
	t.Helper()
	require.NoError(t, store.ApplyFacts(context.Background(), agent, facts))
}

func held(t *testing.T, store Store, agent string) map[string]uint64 {
	t.Helper()
	facts, err := store.CurrentFacts(context.Background(), agent)
	require.NoError(t, err)
	out := make(map[string]uint64, len(facts))
	for _, f := range facts {
		out[f.Key] = f.Version
	}
	return out
}

// failingStore 对指定 Agent 的写入返回错误
type failingStore struct {
	*MemoryStore
	failFor string
}

func (s *failingStore) ApplyFacts(ctx context.Context, agentID string, facts []types.KnowledgeFact) error {
	if agentID == s.failFor {
		return errors.New("disk full")
	}
	return s.MemoryStore.ApplyFacts(ctx, agentID, facts)
}

// blockingStore 对指定 Agent 的写入一直阻塞到 ctx 结束
type blockingStore struct {
	*MemoryStore
	blockFor string
}

func (s *blockingStore) ApplyFacts(ctx context.Context, agentID string, facts []types.KnowledgeFact) error {
	if agentID == s.blockFor {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.MemoryStore.ApplyFacts(ctx, agentID, facts)
}

// =============================================================================
// 🧪 Full / Incremental / Selective
// =============================================================================

func TestSynchronize_Full(t *testing.T) {
	dir := newDirectory(t, map[string][]string{"a1": nil, "a2": nil, "a3": nil})
	store := NewMemoryStore()
	seed(t, store, "a1", fact("k1", 1))
	seed(t, store, "a2", fact("k2", 1))
	seed(t, store, "a3", fact("k1", 2))

	s := NewSynchronizer(dir, store, DefaultConfig(), nil)
	report, err := s.Synchronize(context.Background(), ids("a1", "a2", "a3"), StrategyFull, time.Second)
	require.NoError(t, err)

	want := map[string]uint64{"k1": 2, "k2": 1}
	for _, a := range []string{"a1", "a2", "a3"} {
		assert.Equal(t, want, held(t, store, a), a)
		assert.Equal(t, 2, report.Pushed[a])
		cursor, err := store.LastSynced(context.Background(), a)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), cursor)
	}
	assert.Equal(t, 1.0, report.Convergence)
	assert.True(t, report.OK())
}

func TestSynchronize_IncrementalRespectsCursor(t *testing.T) {
	dir := newDirectory(t, map[string][]string{"a1": nil, "a2": nil})
	store := NewMemoryStore()
	seed(t, store, "a1", fact("k1", 3), fact("k2", 6))
	require.NoError(t, store.MarkSynced(context.Background(), "a2", 5))

	s := NewSynchronizer(dir, store, DefaultConfig(), nil)
	report, err := s.Synchronize(context.Background(), ids("a1", "a2"), StrategyIncremental, time.Second)
	require.NoError(t, err)

	assert.Equal(t, map[string]uint64{"k2": 6}, held(t, store, "a2"), "k1 is at or below the cursor")
	assert.Equal(t, 1, report.Pushed["a2"])
	assert.Equal(t, 0, report.Pushed["a1"])

	cursor, err := store.LastSynced(context.Background(), "a2")
	require.NoError(t, err)
	assert.Equal(t, uint64(6), cursor)

	// 再次同步没有新增
	report, err = s.Synchronize(context.Background(), ids("a1", "a2"), StrategyIncremental, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Pushed["a2"])
}

func TestSynchronize_SelectiveFiltersByTopic(t *testing.T) {
	dir := newDirectory(t, map[string][]string{
		"dev":    {"golang"},
		"tester": {"Testing"},
		"ops":    {"deploy"},
	})
	store := NewMemoryStore()
	seed(t, store, "dev", fact("go-generics", 1, "golang"))
	seed(t, store, "tester", fact("flaky-tests", 1, "testing"), fact("shared", 1, "golang", "testing"))

	s := NewSynchronizer(dir, store, DefaultConfig(), nil)
	report, err := s.Synchronize(context.Background(), ids("dev", "tester", "ops"), StrategySelective, time.Second)
	require.NoError(t, err)

	assert.Equal(t, map[string]uint64{"go-generics": 1, "shared": 1}, held(t, store, "dev"))
	assert.Equal(t, map[string]uint64{"flaky-tests": 1, "shared": 1}, held(t, store, "tester"))
	assert.Empty(t, held(t, store, "ops"))
	assert.Equal(t, 1, report.Pushed["dev"])
	assert.Less(t, report.Convergence, 1.0)
}

// =============================================================================
// 🧪 Gossip
// =============================================================================

func TestSynchronize_GossipConvergesWithinRotation(t *testing.T) {
	for _, n := range []int{2, 3, 4, 5, 6} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			agents := make(map[string][]string, n)
			names := make([]string, n)
			for i := range names {
				names[i] = fmt.Sprintf("a%d", i)
				agents[names[i]] = nil
			}
			dir := newDirectory(t, agents)
			store := NewMemoryStore()
			for i, name := range names {
				seed(t, store, name, fact(fmt.Sprintf("k%d", i), uint64(i+1)))
			}

			m := n + n%2
			cfg := DefaultConfig()
			cfg.GossipRounds = m - 1
			s := NewSynchronizer(dir, store, cfg, nil)

			report, err := s.Synchronize(context.Background(), ids(names...), StrategyGossip, time.Second)
			require.NoError(t, err)
			assert.Equal(t, 1.0, report.Convergence)
			assert.LessOrEqual(t, report.Rounds, m-1)
			for _, name := range names {
				assert.Len(t, held(t, store, name), n, name)
			}
		})
	}
}

func TestSynchronize_GossipIdempotentWhenConverged(t *testing.T) {
	dir := newDirectory(t, map[string][]string{"a1": nil, "a2": nil, "a3": nil, "a4": nil})
	store := NewMemoryStore()
	all := []types.KnowledgeFact{fact("k1", 1), fact("k2", 2)}
	for _, a := range []string{"a1", "a2", "a3", "a4"} {
		seed(t, store, a, all...)
	}
	before := held(t, store, "a1")

	s := NewSynchronizer(dir, store, DefaultConfig(), nil)
	report, err := s.Synchronize(context.Background(), ids("a1", "a2", "a3", "a4"), StrategyGossip, time.Second)
	require.NoError(t, err)

	assert.Zero(t, report.Rounds)
	assert.Equal(t, 1.0, report.Convergence)
	for _, a := range []string{"a1", "a2", "a3", "a4"} {
		assert.Zero(t, report.Pushed[a])
		assert.Equal(t, before, held(t, store, a))
	}
}

func TestSynchronize_GossipRandomPairingIsSeeded(t *testing.T) {
	run := func() *Report {
		names := []string{"a", "b", "c", "d", "e", "f"}
		agents := make(map[string][]string)
		for _, n := range names {
			agents[n] = nil
		}
		dir := newDirectory(t, agents)
		store := NewMemoryStore()
		for i, n := range names {
			seed(t, store, n, fact(fmt.Sprintf("k%d", i), 1))
		}
		cfg := DefaultConfig()
		cfg.GossipPairing = PairingRandom
		cfg.GossipRounds = 1
		cfg.Seed = 42
		report, err := NewSynchronizer(dir, store, cfg, nil).
			Synchronize(context.Background(), ids(names...), StrategyGossip, time.Second)
		require.NoError(t, err)
		return report
	}

	assert.Equal(t, run().Pushed, run().Pushed)
}

func TestRotationPairs_CoversEveryPair(t *testing.T) {
	names := []string{"a", "b", "c", "d", "e"}
	seen := make(map[[2]string]int)
	for round := 0; round < 5; round++ {
		pairs := RotationPairs(names, round)
		assert.Len(t, pairs, 2, "one agent sits out with an odd count")
		used := make(map[string]bool)
		for _, p := range pairs {
			assert.False(t, used[p.A] || used[p.B], "pairs within a round are disjoint")
			used[p.A], used[p.B] = true, true
			k := [2]string{p.A, p.B}
			if k[0] > k[1] {
				k[0], k[1] = k[1], k[0]
			}
			seen[k]++
		}
	}
	assert.Len(t, seen, 10)
	for k, c := range seen {
		assert.Equal(t, 1, c, "%v", k)
	}
	assert.Nil(t, RotationPairs([]string{"solo"}, 0))
}

func TestConvergence(t *testing.T) {
	assert.Equal(t, 1.0, Convergence(nil))
	assert.Equal(t, 1.0, Convergence(map[string][]types.KnowledgeFact{"a": nil, "b": nil}))

	view := map[string][]types.KnowledgeFact{
		"a": {fact("k1", 2), fact("k2", 1)},
		"b": {fact("k1", 1)},
	}
	// 并集 {k1@2, k2@1}；a 持有 2，b 持有 0
	assert.InDelta(t, 0.5, Convergence(view), 1e-9)
}

// =============================================================================
// 🧪 失败与输入校验
// =============================================================================

func TestSynchronize_PartialFailure(t *testing.T) {
	dir := newDirectory(t, map[string][]string{"a1": nil, "bad": nil, "a3": nil})
	store := &failingStore{MemoryStore: NewMemoryStore(), failFor: "bad"}
	seed(t, store.MemoryStore, "a1", fact("k1", 1))

	s := NewSynchronizer(dir, store, DefaultConfig(), nil)
	report, err := s.Synchronize(context.Background(), ids("a1", "bad", "a3"), StrategyFull, time.Second)
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrKnowledgeSyncPartialFailure))
	assert.Contains(t, err.Error(), "bad")

	require.NotNil(t, report)
	assert.Contains(t, report.Failed["bad"], "disk full")
	assert.Equal(t, 1, report.Pushed["a3"])
	assert.Equal(t, map[string]uint64{"k1": 1}, held(t, store, "a3"))

	cursor, _ := store.LastSynced(context.Background(), "bad")
	assert.Zero(t, cursor, "failed push must not advance the cursor")
}

func TestSynchronize_TimeoutIsReportedAsFailure(t *testing.T) {
	dir := newDirectory(t, map[string][]string{"fast": nil, "slow": nil})
	store := &blockingStore{MemoryStore: NewMemoryStore(), blockFor: "slow"}
	seed(t, store.MemoryStore, "fast", fact("k1", 1))

	s := NewSynchronizer(dir, store, DefaultConfig(), nil)
	start := time.Now()
	report, err := s.Synchronize(context.Background(), ids("fast", "slow"), StrategyFull, 50*time.Millisecond)
	assert.Less(t, time.Since(start), 2*time.Second)

	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrKnowledgeSyncPartialFailure))
	require.NotNil(t, report)
	assert.Contains(t, report.Failed["slow"], string(types.ErrTimeout))
}

// slowReadStore 对指定 Agent 的读取一直阻塞到 ctx 结束
type slowReadStore struct {
	*MemoryStore
	slowFor string
}

func (s *slowReadStore) CurrentFacts(ctx context.Context, agentID string) ([]types.KnowledgeFact, error) {
	if agentID == s.slowFor {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.MemoryStore.CurrentFacts(ctx, agentID)
}

// downStore 所有读取都失败
type downStore struct {
	*MemoryStore
}

func (s *downStore) CurrentFacts(ctx context.Context, agentID string) ([]types.KnowledgeFact, error) {
	return nil, errors.New("connection refused")
}

func TestSynchronize_SlowReadYieldsPartialResult(t *testing.T) {
	dir := newDirectory(t, map[string][]string{"a": nil, "b": nil, "c": nil})
	store := &slowReadStore{MemoryStore: NewMemoryStore(), slowFor: "b"}
	seed(t, store.MemoryStore, "a", fact("k1", 1))
	seed(t, store.MemoryStore, "c", fact("k2", 1))

	s := NewSynchronizer(dir, store, DefaultConfig(), nil)
	report, err := s.Synchronize(context.Background(), ids("a", "b", "c"), StrategyFull, 200*time.Millisecond)

	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrKnowledgeSyncPartialFailure))
	require.NotNil(t, report)
	assert.Contains(t, report.Failed["b"], string(types.ErrTimeout))
	assert.NotContains(t, report.Failed, "a")
	assert.NotContains(t, report.Failed, "c")

	// 可读的 Agent 仍然完成同步
	want := map[string]uint64{"k1": 1, "k2": 1}
	assert.Equal(t, want, held(t, store.MemoryStore, "a"))
	assert.Equal(t, want, held(t, store.MemoryStore, "c"))
	assert.Empty(t, held(t, store.MemoryStore, "b"))
}

func TestSynchronize_UnreachableStoreIsHardFailure(t *testing.T) {
	dir := newDirectory(t, map[string][]string{"a": nil, "b": nil})
	s := NewSynchronizer(dir, &downStore{MemoryStore: NewMemoryStore()}, DefaultConfig(), nil)

	report, err := s.Synchronize(context.Background(), ids("a", "b"), StrategyFull, time.Second)
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrUpstreamError))
	assert.Nil(t, report)
	assert.ErrorContains(t, err, "connection refused")
}

func TestSynchronize_InputValidation(t *testing.T) {
	dir := newDirectory(t, map[string][]string{"a1": nil})
	s := NewSynchronizer(dir, nil, DefaultConfig(), nil)
	ctx := context.Background()

	_, err := s.Synchronize(ctx, nil, StrategyFull, time.Second)
	assert.True(t, types.IsErrorCode(err, types.ErrEmptyCandidateSet))

	_, err = s.Synchronize(ctx, ids("a1", "ghost"), StrategyFull, time.Second)
	assert.True(t, types.IsErrorCode(err, types.ErrUnknownAgent))

	_, err = s.Synchronize(ctx, ids("a1"), Strategy("broadcast"), time.Second)
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidInput))
}

func TestSynchronize_RateLimited(t *testing.T) {
	dir := newDirectory(t, map[string][]string{"a1": nil, "a2": nil, "a3": nil})
	store := NewMemoryStore()
	seed(t, store, "a1", fact("k1", 1))

	cfg := DefaultConfig()
	cfg.PushRate = 1000
	cfg.PushBurst = 1
	report, err := NewSynchronizer(dir, store, cfg, nil).
		Synchronize(context.Background(), ids("a1", "a2", "a3"), StrategyFull, time.Second)
	require.NoError(t, err)
	assert.Len(t, report.Pushed, 3)
}

func TestParseStrategy(t *testing.T) {
	for _, st := range Strategies() {
		got, err := ParseStrategy(string(st))
		require.NoError(t, err)
		assert.Equal(t, st, got)
	}
	got, err := ParseStrategy("GOSSIP")
	require.NoError(t, err)
	assert.Equal(t, StrategyGossip, got)

	_, err = ParseStrategy("flood")
	assert.Error(t, err)
}
