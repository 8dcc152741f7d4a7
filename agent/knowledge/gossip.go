package knowledge

import (
	"context"
	"math/rand"
	"sort"
	"sync"

	"github.com/BaSui01/agentcoord/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Pair 一轮中交换事实的两个 Agent
type Pair struct {
	A, B string
}

// gossip 多轮成对交换。每轮内的配对互不相交，可并发执行；
// 每轮结束后按成功的推送更新本地视图，完全收敛时提前结束。
func (s *Synchronizer) gossip(ctx context.Context, agents []types.AgentCapabilities, view map[string][]types.KnowledgeFact, report *Report) {
	ids := make([]string, len(agents))
	for i, a := range agents {
		ids[i] = a.Agent.ID
	}
	sort.Strings(ids)

	rng := rand.New(rand.NewSource(s.config.Seed))
	limiter := s.limiter()

	report.Rounds = 0
	report.Convergence = Convergence(view)

	for round := 0; round < s.config.GossipRounds; round++ {
		if report.Convergence >= 1 || ctx.Err() != nil {
			break
		}

		var pairs []Pair
		if s.config.GossipPairing == PairingRandom {
			pairs = RandomPairs(ids, rng)
		} else {
			pairs = RotationPairs(ids, int(s.rotation.Add(1)-1))
		}

		var mu sync.Mutex
		applied := make(map[string][]types.KnowledgeFact)

		g := new(errgroup.Group)
		if s.config.MaxConcurrentPushes > 0 {
			g.SetLimit(s.config.MaxConcurrentPushes)
		}
		for _, p := range pairs {
			toA := types.MissingFrom(view[p.B], view[p.A])
			toB := types.MissingFrom(view[p.A], view[p.B])
			for _, d := range []struct {
				id    string
				facts []types.KnowledgeFact
			}{{p.A, toA}, {p.B, toB}} {
				d := d
				if len(d.facts) == 0 {
					continue
				}
				g.Go(func() error {
					err := s.push(ctx, limiter, d.id, d.facts)
					mu.Lock()
					defer mu.Unlock()
					if err != nil {
						report.Failed[d.id] = err.Error()
						s.logger.Warn("gossip push failed",
							zap.String("agent_id", d.id), zap.Int("round", round), zap.Error(err))
						return nil
					}
					applied[d.id] = d.facts
					report.Pushed[d.id] += len(d.facts)
					return nil
				})
			}
		}
		_ = g.Wait()

		for id, facts := range applied {
			view[id] = types.MergeFacts(view[id], facts)
		}
		report.Rounds++
		report.Convergence = Convergence(view)

		s.logger.Debug("gossip round finished",
			zap.Int("round", round),
			zap.Int("pairs", len(pairs)),
			zap.Float64("convergence", report.Convergence),
		)
	}
}

// RotationPairs 轮转配对（圆桌法）：固定第一个位置，其余位置每轮旋转一格。
// 连续 m-1 轮覆盖所有两两组合（m 为补齐到偶数后的人数）。奇数人数时每轮有一人轮空。
func RotationPairs(ids []string, round int) []Pair {
	slots := append([]string(nil), ids...)
	if len(slots)%2 == 1 {
		slots = append(slots, "")
	}
	m := len(slots)
	if m < 2 {
		return nil
	}

	rest := slots[1:]
	shift := round % (m - 1)
	rotated := make([]string, 0, m)
	rotated = append(rotated, slots[0])
	rotated = append(rotated, rest[len(rest)-shift:]...)
	rotated = append(rotated, rest[:len(rest)-shift]...)

	pairs := make([]Pair, 0, m/2)
	for i := 0; i < m/2; i++ {
		a, b := rotated[i], rotated[m-1-i]
		if a == "" || b == "" {
			continue
		}
		pairs = append(pairs, Pair{A: a, B: b})
	}
	return pairs
}

// RandomPairs 随机打乱后相邻两两配对
func RandomPairs(ids []string, rng *rand.Rand) []Pair {
	shuffled := append([]string(nil), ids...)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	pairs := make([]Pair, 0, len(shuffled)/2)
	for i := 0; i+1 < len(shuffled); i += 2 {
		pairs = append(pairs, Pair{A: shuffled[i], B: shuffled[i+1]})
	}
	return pairs
}

// Convergence 计算收敛度：每个 Agent 持有并集中胜出版本的比例的平均值。
// 并集为空或没有 Agent 时为 1。
func Convergence(view map[string][]types.KnowledgeFact) float64 {
	union := unionOf(view)
	if len(view) == 0 || len(union) == 0 {
		return 1
	}

	held := 0
	for _, facts := range view {
		byKey := make(map[string]types.KnowledgeFact, len(facts))
		for _, f := range facts {
			byKey[f.Key] = f
		}
		for _, u := range union {
			if f, ok := byKey[u.Key]; ok && f.Same(u) {
				held++
			}
		}
	}
	return float64(held) / float64(len(view)*len(union))
}
