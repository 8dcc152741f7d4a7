package mailbox

import (
	"strings"

	"github.com/BaSui01/agentcoord/types"
	"github.com/cespare/xxhash/v2"
)

// Route 按分组模式解析本次投递的目标成员。
// 重复成员只投递一次；multicast 中不属于分组的目标记为失败。
func Route(group types.AgentGroup, msg types.Message) ([]types.AgentID, []types.DeliveryFailure, error) {
	members := dedupe(group.Members)

	switch group.Mode {
	case types.DeliveryBroadcast, "":
		return members, nil, nil

	case types.DeliveryMulticast:
		index := make(map[string]types.AgentID, len(members))
		for _, m := range members {
			index[m.ID] = m
		}
		var (
			targets  []types.AgentID
			failures []types.DeliveryFailure
			seen     = make(map[string]struct{}, len(group.Targets))
		)
		for _, id := range group.Targets {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			m, ok := index[id]
			if !ok {
				failures = append(failures, types.DeliveryFailure{
					Agent:  types.AgentID{ID: id},
					Code:   types.ErrInvalidInput,
					Reason: "target " + id + " is not a member of group " + group.Name,
				})
				continue
			}
			targets = append(targets, m)
		}
		return targets, failures, nil

	case types.DeliveryUnicastGroup:
		if len(members) == 0 {
			return nil, nil, nil
		}
		key := group.RouteKey
		if key == "" {
			key = msg.CorrelationID
		}
		return []types.AgentID{members[RouteIndex(key, len(members))]}, nil, nil

	default:
		return nil, nil, types.Errorf(types.ErrInvalidInput, "unknown delivery mode %q for group %s", group.Mode, group.Name)
	}
}

// RouteIndex 将路由键映射到 [0, n) 内的成员下标
func RouteIndex(key string, n int) int {
	if n <= 0 {
		return 0
	}
	return int(xxhash.Sum64String(strings.TrimSpace(key)) % uint64(n))
}

func dedupe(members []types.AgentID) []types.AgentID {
	seen := make(map[string]struct{}, len(members))
	out := make([]types.AgentID, 0, len(members))
	for _, m := range members {
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	return out
}
