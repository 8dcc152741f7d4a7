package consensus

import (
	"sort"
	"strings"

	"github.com/BaSui01/agentcoord/types"
)

// Protocol 共识协议
type Protocol string

const (
	Majority  Protocol = "majority"
	Unanimous Protocol = "unanimous"
	Weighted  Protocol = "weighted"
	Raft      Protocol = "raft"
)

// Protocols 返回全部协议
func Protocols() []Protocol {
	return []Protocol{Majority, Unanimous, Weighted, Raft}
}

// ParseProtocol 解析协议名
func ParseProtocol(s string) (Protocol, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "majority":
		return Majority, nil
	case "unanimous":
		return Unanimous, nil
	case "weighted":
		return Weighted, nil
	case "raft", "raft_style", "raft-style", "leader":
		return Raft, nil
	default:
		return "", types.Errorf(types.ErrInvalidInput, "unknown consensus protocol %q", s)
	}
}

// Leader 领导者为受邀投票者中 ID 最小者
func Leader(voters []types.AgentID) (types.AgentID, bool) {
	if len(voters) == 0 {
		return types.AgentID{}, false
	}
	leader := voters[0]
	for _, v := range voters[1:] {
		if v.ID < leader.ID {
			leader = v
		}
	}
	return leader, true
}

// Aggregate 纯函数：按协议聚合投票。votes 的顺序不影响结果；
// invited 为全部受邀投票者（Raft 用它确定领导者）。
// 未设置的权重按 1 计算。
func Aggregate(protocol Protocol, proposal string, votes []types.Vote, invited []types.AgentID) types.Decision {
	sorted := make([]types.Vote, len(votes))
	copy(sorted, votes)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Voter.ID < sorted[j].Voter.ID })

	d := types.Decision{
		Proposal: proposal,
		Protocol: string(protocol),
		Votes:    sorted,
	}

	yes, no := tally(sorted)
	if total := yes + no; total > 0 {
		d.Score = float64(yes) / float64(total)
	}

	switch protocol {
	case Majority:
		d.Accepted = yes > no

	case Unanimous:
		d.Accepted = no == 0 && yes > 0

	case Weighted:
		var wYes, wNo float64
		for _, v := range sorted {
			w := weightOf(v)
			if v.InFavor {
				wYes += w
			} else {
				wNo += w
			}
		}
		d.Score = 0
		if total := wYes + wNo; total > 0 {
			d.Score = wYes / total
		}
		d.Accepted = wYes > wNo

	case Raft:
		leader, ok := Leader(invited)
		if !ok {
			return d
		}
		d.Leader = &leader

		var (
			leaderVote *types.Vote
			othersYes  int
		)
		for i := range sorted {
			v := &sorted[i]
			if v.Voter.Equal(leader) {
				leaderVote = v
				continue
			}
			if v.InFavor {
				othersYes++
			}
		}

		// 多数以受邀的其余投票者为分母，弃权不缩小分母
		others := make(map[string]struct{}, len(invited))
		for _, id := range invited {
			if !id.Equal(leader) {
				others[id.ID] = struct{}{}
			}
		}

		// 领导者弃权或反对即否决；唯一投票者时领导者独自决定
		leaderYes := leaderVote != nil && leaderVote.InFavor
		if len(others) == 0 {
			d.Accepted = leaderYes
		} else {
			d.Accepted = leaderYes && othersYes*2 > len(others)
		}
	}
	return d
}

func tally(votes []types.Vote) (yes, no int) {
	for _, v := range votes {
		if v.InFavor {
			yes++
		} else {
			no++
		}
	}
	return yes, no
}

func weightOf(v types.Vote) float64 {
	if v.Weight <= 0 {
		return 1
	}
	return v.Weight
}
