package knowledge

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/BaSui01/agentcoord/agent/directory"
	"github.com/BaSui01/agentcoord/types"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Gossip 收敛度随轮数单调不减，且在足够多轮后达到 1
func TestProperty_GossipConvergenceIsMonotone(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("convergence never decreases across rounds", prop.ForAll(
		func(n int, factsPer []int, random bool) bool {
			ctx := context.Background()
			dir := directory.New(nil)
			store := NewMemoryStore()
			agents := make([]types.AgentID, n)
			for i := 0; i < n; i++ {
				id := fmt.Sprintf("a%02d", i)
				agents[i] = types.NewAgentID(id, id)
				if err := dir.Register(types.AgentCapabilities{Agent: agents[i], Available: true}); err != nil {
					return false
				}
				count := factsPer[i%len(factsPer)]
				facts := make([]types.KnowledgeFact, count)
				for j := range facts {
					// 部分 Key 在 Agent 之间重叠，版本不同
					facts[j] = fact(fmt.Sprintf("k%d", (i+j)%7), uint64(i+j+1))
				}
				if err := store.ApplyFacts(ctx, id, facts); err != nil {
					return false
				}
			}

			cfg := DefaultConfig()
			cfg.GossipRounds = 1
			if random {
				cfg.GossipPairing = PairingRandom
			}
			s := NewSynchronizer(dir, store, cfg, nil)

			prev := -1.0
			for round := 0; round < 2*n; round++ {
				s.config.Seed = int64(round)
				report, err := s.Synchronize(ctx, agents, StrategyGossip, time.Second)
				if err != nil {
					return false
				}
				if report.Convergence < prev {
					return false
				}
				prev = report.Convergence
			}
			// rotation 配对在 m-1 轮内必然收敛
			return random || prev == 1
		},
		gen.IntRange(2, 7),
		gen.SliceOfN(3, gen.IntRange(0, 4)),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
