package consensus

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/BaSui01/agentcoord/agent/directory"
	"github.com/BaSui01/agentcoord/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config 共识引擎配置
type Config struct {
	// DefaultTimeout 调用方未给出超时时使用
	DefaultTimeout time.Duration `json:"default_timeout" yaml:"default_timeout"`

	// MaxConcurrentVotes 并发征集投票上限，0 表示不限
	MaxConcurrentVotes int `json:"max_concurrent_votes" yaml:"max_concurrent_votes"`

	// MinVotes 形成决议所需的最少投票数
	MinVotes int `json:"min_votes" yaml:"min_votes"`

	// DecisionSkill Weighted 协议默认权重取该技能的熟练度
	DecisionSkill string `json:"decision_skill" yaml:"decision_skill"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		DefaultTimeout:     30 * time.Second,
		MaxConcurrentVotes: 16,
		MinVotes:           1,
		DecisionSkill:      "decision-making",
	}
}

// Engine 共识引擎。每次调用使用目录快照，调用之间不共享可变状态。
type Engine struct {
	directory *directory.Directory
	caster    VoteCaster
	config    Config
	logger    *zap.Logger
}

// NewEngine 创建共识引擎
func NewEngine(dir *directory.Directory, caster VoteCaster, config Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MinVotes < 1 {
		config.MinVotes = 1
	}
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = DefaultConfig().DefaultTimeout
	}
	return &Engine{
		directory: dir,
		caster:    caster,
		config:    config,
		logger:    logger.With(zap.String("component", "consensus_engine")),
	}
}

// ReachConsensus 向每个投票者征集投票并按协议聚合。
// 截止前未返回、返回 nil 或出错的投票者记为弃权；
// 有效投票少于 MinVotes 时返回 QUORUM_NOT_REACHED。
func (e *Engine) ReachConsensus(ctx context.Context, proposal string, voters []types.AgentID, protocol Protocol, timeout time.Duration) (*types.Decision, error) {
	if _, err := ParseProtocol(string(protocol)); err != nil {
		return nil, err
	}
	if e.caster == nil {
		return nil, types.NewError(types.ErrUpstreamError, "no vote caster configured")
	}
	if len(voters) == 0 {
		return nil, types.NewError(types.ErrEmptyCandidateSet, "voter set is empty")
	}

	snapshot, err := e.directory.Snapshot(voters)
	if err != nil {
		return nil, err
	}
	snapshot = dedupe(snapshot)

	if timeout <= 0 {
		timeout = e.config.DefaultTimeout
	}
	vctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	votes, abstentions := e.collect(vctx, proposal, snapshot)

	if len(votes) < e.config.MinVotes {
		return nil, types.Errorf(types.ErrQuorumNotReached,
			"%d of %d voters responded, %d required (%s)",
			len(votes), len(snapshot), e.config.MinVotes, describe(abstentions))
	}

	invited := make([]types.AgentID, len(snapshot))
	for i, c := range snapshot {
		invited[i] = c.Agent
	}

	decision := Aggregate(protocol, proposal, votes, invited)
	decision.Abstentions = abstentions

	e.logger.Info("consensus reached",
		zap.String("protocol", string(protocol)),
		zap.Bool("accepted", decision.Accepted),
		zap.Float64("score", decision.Score),
		zap.Int("votes", len(votes)),
		zap.Int("abstentions", len(abstentions)),
	)
	return &decision, nil
}

type ballot struct {
	vote   *types.Vote
	reason string
}

// collect 并发征集投票；结果按投票者 ID 排序
func (e *Engine) collect(ctx context.Context, proposal string, voters []types.AgentCapabilities) ([]types.Vote, []types.Abstention) {
	ballots := make([]ballot, len(voters))

	g := new(errgroup.Group)
	if e.config.MaxConcurrentVotes > 0 {
		g.SetLimit(e.config.MaxConcurrentVotes)
	}
	for i := range voters {
		i := i
		g.Go(func() error {
			ballots[i] = e.castOne(ctx, proposal, voters[i])
			return nil
		})
	}
	_ = g.Wait()

	var (
		votes       []types.Vote
		abstentions []types.Abstention
	)
	for i, b := range ballots {
		if b.vote == nil {
			abstentions = append(abstentions, types.Abstention{Voter: voters[i].Agent, Reason: b.reason})
			continue
		}
		votes = append(votes, *b.vote)
	}
	sort.Slice(votes, func(i, j int) bool { return votes[i].Voter.ID < votes[j].Voter.ID })
	sort.Slice(abstentions, func(i, j int) bool { return abstentions[i].Voter.ID < abstentions[j].Voter.ID })
	return votes, abstentions
}

// castOne 征集单个投票；截止时间到达时不等待投票者返回
func (e *Engine) castOne(ctx context.Context, proposal string, voter types.AgentCapabilities) ballot {
	if err := ctx.Err(); err != nil {
		return ballot{reason: "deadline expired before the vote was requested"}
	}

	type result struct {
		vote *types.Vote
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := e.caster.CastVote(ctx, voter.Agent, proposal)
		ch <- result{vote: v, err: err}
	}()

	select {
	case <-ctx.Done():
		e.logger.Debug("vote timed out", zap.String("agent_id", voter.Agent.ID))
		return ballot{reason: "no vote before deadline"}
	case r := <-ch:
		if r.err != nil {
			e.logger.Warn("vote casting failed", zap.String("agent_id", voter.Agent.ID), zap.Error(r.err))
			return ballot{reason: "vote failed: " + r.err.Error()}
		}
		if r.vote == nil {
			return ballot{reason: "abstained"}
		}
		v := *r.vote
		v.Voter = voter.Agent
		if v.Weight <= 0 {
			v.Weight = e.defaultWeight(voter)
		}
		return ballot{vote: &v}
	}
}

// defaultWeight 决策技能熟练度，未声明或为 0 时为 1
func (e *Engine) defaultWeight(voter types.AgentCapabilities) float64 {
	if e.config.DecisionSkill != "" {
		if p := voter.ProficiencyFor(e.config.DecisionSkill); p > 0 {
			return p
		}
	}
	return 1
}

func dedupe(caps []types.AgentCapabilities) []types.AgentCapabilities {
	seen := make(map[string]struct{}, len(caps))
	out := caps[:0]
	for _, c := range caps {
		if _, ok := seen[c.Agent.ID]; ok {
			continue
		}
		seen[c.Agent.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}

func describe(abstentions []types.Abstention) string {
	if len(abstentions) == 0 {
		return "no abstentions"
	}
	parts := make([]string, len(abstentions))
	for i, a := range abstentions {
		parts[i] = fmt.Sprintf("%s: %s", a.Voter.ID, a.Reason)
	}
	return strings.Join(parts, "; ")
}
