package mailbox

import (
	"context"
	"fmt"
	"testing"

	"github.com/BaSui01/agentcoord/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestProperty_Broadcast_ExactlyOncePerReachableMember 广播后每个可达成员都有待处理消息，
// 且 Drain 恰好返回该消息一次
func TestProperty_Broadcast_ExactlyOncePerReachableMember(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		registered := rapid.IntRange(1, 8).Draw(rt, "registered")
		s := New(DefaultConfig(), nil)
		for i := 0; i < registered; i++ {
			s.Open(agentID(fmt.Sprintf("a%d", i)))
		}

		// 成员可能包含未注册的 Agent 与重复成员
		size := rapid.IntRange(0, 12).Draw(rt, "size")
		members := make([]types.AgentID, size)
		for i := range members {
			members[i] = agentID(fmt.Sprintf("a%d", rapid.IntRange(0, registered+2).Draw(rt, fmt.Sprintf("member_%d", i))))
		}

		msg := types.NewMessage(agentID("sender"), types.MessageKindNotification, "payload")
		report, err := s.DeliverToGroup(context.Background(), msg, types.NewBroadcastGroup("g", members...))
		require.NoError(rt, err)

		reachable := make(map[string]bool)
		failed := make(map[string]bool)
		for _, f := range report.Failures {
			failed[f.Agent.ID] = true
		}
		for _, m := range members {
			if !failed[m.ID] {
				reachable[m.ID] = true
			}
		}
		assert.Equal(rt, len(reachable), report.Delivered)

		for id := range reachable {
			assert.True(rt, s.HasPending(id))
			drained, err := s.Drain(context.Background(), id)
			require.NoError(rt, err)
			count := 0
			for _, d := range drained {
				if d.ID == msg.ID {
					count++
				}
			}
			assert.Equal(rt, 1, count, "member %s", id)
		}
	})
}
