package consensus

import (
	"fmt"
	"testing"

	"github.com/BaSui01/agentcoord/types"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

// TestProperty_Aggregate_OrderIndependent 聚合结果与投票顺序无关
func TestProperty_Aggregate_OrderIndependent(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 9).Draw(rt, "voters")
		invited := make([]types.AgentID, n)
		votes := make([]types.Vote, 0, n)
		for i := 0; i < n; i++ {
			invited[i] = types.NewAgentID(fmt.Sprintf("v%02d", i), "")
			if rapid.Bool().Draw(rt, fmt.Sprintf("abstain_%d", i)) {
				continue
			}
			votes = append(votes, types.Vote{
				Voter:   invited[i],
				InFavor: rapid.Bool().Draw(rt, fmt.Sprintf("favor_%d", i)),
				Weight:  rapid.Float64Range(0, 5).Draw(rt, fmt.Sprintf("weight_%d", i)),
			})
		}

		perm := rapid.Permutation(votes).Draw(rt, "perm")
		invitedPerm := rapid.Permutation(invited).Draw(rt, "invited_perm")

		for _, p := range Protocols() {
			a := Aggregate(p, "proposal", votes, invited)
			b := Aggregate(p, "proposal", perm, invitedPerm)
			assert.Equal(rt, a.Accepted, b.Accepted, p)
			assert.Equal(rt, a.Score, b.Score, p)
			assert.Equal(rt, a.Votes, b.Votes, p)
			assert.Equal(rt, a.Leader, b.Leader, p)
			assert.GreaterOrEqual(rt, a.Score, 0.0)
			assert.LessOrEqual(rt, a.Score, 1.0)
		}
	})
}

// TestProperty_Unanimous_ImpliesMajority 全票通过必然多数通过
func TestProperty_Unanimous_ImpliesMajority(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		favor := rapid.SliceOfN(rapid.Bool(), 1, 12).Draw(rt, "favor")
		votes := make([]types.Vote, len(favor))
		for i, f := range favor {
			votes[i] = types.Vote{Voter: types.NewAgentID(fmt.Sprintf("v%d", i), ""), InFavor: f}
		}
		if Aggregate(Unanimous, "p", votes, nil).Accepted {
			assert.True(rt, Aggregate(Majority, "p", votes, nil).Accepted)
		}
	})
}

func TestAggregate_Examples(t *testing.T) {
	votes := []types.Vote{
		{Voter: types.NewAgentID("a", ""), InFavor: true},
		{Voter: types.NewAgentID("b", ""), InFavor: true},
		{Voter: types.NewAgentID("c", ""), InFavor: true},
		{Voter: types.NewAgentID("d", ""), InFavor: true},
		{Voter: types.NewAgentID("e", ""), InFavor: false, Weight: 10},
	}
	assert.False(t, Aggregate(Unanimous, "p", votes, nil).Accepted)

	maj := Aggregate(Majority, "p", votes, nil)
	assert.True(t, maj.Accepted)
	assert.InDelta(t, 0.8, maj.Score, 1e-9)

	assert.False(t, Aggregate(Weighted, "p", votes, nil).Accepted)

	assert.False(t, Aggregate(Unanimous, "p", nil, nil).Accepted, "no votes never passes")
	assert.False(t, Aggregate(Raft, "p", votes, nil).Accepted, "no invited voters means no leader")
}

func TestAggregate_RaftCountsInvitedVoters(t *testing.T) {
	invited := []types.AgentID{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}, {ID: "e"}}
	yes := func(ids ...string) []types.Vote {
		out := make([]types.Vote, len(ids))
		for i, id := range ids {
			out[i] = types.Vote{Voter: types.AgentID{ID: id}, InFavor: true}
		}
		return out
	}

	assert.False(t, Aggregate(Raft, "p", yes("a"), invited).Accepted, "leader alone is not sufficient")
	assert.False(t, Aggregate(Raft, "p", yes("a", "b"), invited).Accepted)
	assert.False(t, Aggregate(Raft, "p", yes("a", "b", "c"), invited).Accepted, "two of four is not a majority")
	assert.True(t, Aggregate(Raft, "p", yes("a", "b", "c", "d"), invited).Accepted)
	assert.False(t, Aggregate(Raft, "p", yes("b", "c", "d", "e"), invited).Accepted, "leader abstains")

	assert.True(t, Aggregate(Raft, "p", yes("a"), invited[:1]).Accepted, "sole voter decides")
}

func TestLeaderAndParseProtocol(t *testing.T) {
	leader, ok := Leader([]types.AgentID{{ID: "m"}, {ID: "b"}, {ID: "x"}})
	assert.True(t, ok)
	assert.Equal(t, "b", leader.ID)

	p, err := ParseProtocol("Raft-Style")
	assert.NoError(t, err)
	assert.Equal(t, Raft, p)
	_, err = ParseProtocol("pbft")
	assert.Error(t, err)
}
