package consensus

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/BaSui01/agentcoord/agent/mailbox"
	"github.com/BaSui01/agentcoord/types"
	"go.uber.org/zap"
)

// VoteCaster 向单个投票者征集投票。返回 nil 表示弃权。
type VoteCaster interface {
	CastVote(ctx context.Context, voter types.AgentID, proposal string) (*types.Vote, error)
}

// CasterFunc 函数适配器
type CasterFunc func(ctx context.Context, voter types.AgentID, proposal string) (*types.Vote, error)

// CastVote calls f.
func (f CasterFunc) CastVote(ctx context.Context, voter types.AgentID, proposal string) (*types.Vote, error) {
	return f(ctx, voter, proposal)
}

// 投票请求/回复使用的元数据键
const (
	MetaVoteRequest = "vote_request"
	MetaWeight      = "weight"
)

// MailboxCaster 通过邮箱征集投票：向投票者投递 Proposal 消息，
// 在协调者自己的邮箱等待相同 CorrelationID 的 Response。
// 必须先启动 Run 才能收到回复。
type MailboxCaster struct {
	mailboxes *mailbox.System
	self      types.AgentID
	logger    *zap.Logger

	mu      sync.Mutex
	waiters map[string]chan types.Message
}

// NewMailboxCaster 创建邮箱投票征集器，self 为接收回复的邮箱
func NewMailboxCaster(mailboxes *mailbox.System, self types.AgentID, logger *zap.Logger) *MailboxCaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	mailboxes.Open(self)
	return &MailboxCaster{
		mailboxes: mailboxes,
		self:      self,
		logger:    logger.With(zap.String("component", "mailbox_caster")),
		waiters:   make(map[string]chan types.Message),
	}
}

// Run 持续从回复邮箱取消息并分发给等待中的 CastVote，直到 ctx 结束或邮箱关闭
func (c *MailboxCaster) Run(ctx context.Context) error {
	for {
		msg, err := c.mailboxes.Receive(ctx, c.self.ID)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		c.mu.Lock()
		ch, ok := c.waiters[msg.CorrelationID]
		if ok {
			delete(c.waiters, msg.CorrelationID)
		}
		c.mu.Unlock()

		if !ok {
			c.logger.Debug("dropping uncorrelated reply",
				zap.String("msg_id", msg.ID),
				zap.String("from", msg.Sender.ID),
			)
			continue
		}
		ch <- msg
	}
}

// CastVote 发送投票请求并等待回复
func (c *MailboxCaster) CastVote(ctx context.Context, voter types.AgentID, proposal string) (*types.Vote, error) {
	req := types.NewDirectMessage(c.self, voter, types.MessageKindProposal, proposal)
	req.Metadata = map[string]string{MetaVoteRequest: "true"}

	ch := make(chan types.Message, 1)
	c.mu.Lock()
	c.waiters[req.CorrelationID] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.waiters, req.CorrelationID)
		c.mu.Unlock()
	}()

	if err := c.mailboxes.Deliver(ctx, req, voter); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, nil
	case reply := <-ch:
		inFavor, rationale, ok := ParseVoteReply(reply.Content)
		if !ok {
			return nil, types.Errorf(types.ErrInvalidInput, "unparseable vote reply %q", reply.Content).WithAgent(voter.ID)
		}
		vote := &types.Vote{Voter: voter, InFavor: inFavor, Rationale: rationale}
		if w, err := strconv.ParseFloat(reply.Metadata[MetaWeight], 64); err == nil && w > 0 {
			vote.Weight = w
		}
		return vote, nil
	}
}

// IsVoteRequest 判断消息是否为投票请求
func IsVoteRequest(msg types.Message) bool {
	return msg.Kind == types.MessageKindProposal && msg.Metadata[MetaVoteRequest] == "true"
}

// ReplyVote 由投票者调用：回复投票请求
func ReplyVote(ctx context.Context, mailboxes *mailbox.System, request types.Message, voter types.AgentID, inFavor bool, rationale string) error {
	verdict := "no"
	if inFavor {
		verdict = "yes"
	}
	content := verdict
	if rationale != "" {
		content += " " + rationale
	}
	return mailboxes.Deliver(ctx, request.Reply(voter, content), request.Sender)
}

var (
	affirmative = map[string]bool{"yes": true, "y": true, "approve": true, "accept": true, "agree": true, "true": true}
	negative    = map[string]bool{"no": true, "n": true, "reject": true, "deny": true, "disagree": true, "false": true}
)

// ParseVoteReply 解析回复：首个单词为赞成/反对，其余为理由
func ParseVoteReply(content string) (inFavor bool, rationale string, ok bool) {
	content = strings.TrimSpace(content)
	word, rest, _ := strings.Cut(content, " ")
	word = strings.ToLower(strings.Trim(word, ".,:;!"))
	rationale = strings.TrimSpace(rest)

	switch {
	case affirmative[word]:
		return true, rationale, true
	case negative[word]:
		return false, rationale, true
	default:
		return false, "", false
	}
}
