package mailbox

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BaSui01/agentcoord/agent/persistence"
	"github.com/BaSui01/agentcoord/types"
	"go.uber.org/zap"
)

// Config 邮箱配置
type Config struct {
	// Capacity 每个邮箱的最大待处理消息数，0 表示无界
	Capacity int `json:"capacity" yaml:"capacity"`

	// StoreTimeout 单次持久化操作超时
	StoreTimeout time.Duration `json:"store_timeout" yaml:"store_timeout"`

	// Retry 恢复时的重投策略
	Retry persistence.RetryConfig `json:"retry" yaml:"retry"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Capacity:     0,
		StoreTimeout: 2 * time.Second,
		Retry:        persistence.DefaultRetryConfig(),
	}
}

// System 邮箱系统，每个 Agent 一个独立队列，跨 Agent 无共享锁
type System struct {
	mu    sync.RWMutex
	boxes map[string]*mailbox

	store  persistence.MessageStore // 持久化存储（可选）
	config Config
	logger *zap.Logger

	closed    bool
	done      chan struct{}
	closeOnce sync.Once
}

type mailbox struct {
	mu     sync.Mutex
	owner  types.AgentID
	queue  []types.Message
	notify chan struct{}
}

// New 创建邮箱系统
func New(config Config, logger *zap.Logger) *System {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &System{
		boxes:  make(map[string]*mailbox),
		config: config,
		logger: logger.With(zap.String("component", "mailbox")),
		done:   make(chan struct{}),
	}
}

// NewWithStore 创建带持久化的邮箱系统
func NewWithStore(config Config, store persistence.MessageStore, logger *zap.Logger) *System {
	s := New(config, logger)
	s.store = store
	return s
}

// Open 为 Agent 创建邮箱，幂等
func (s *System) Open(id types.AgentID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if box, ok := s.boxes[id.ID]; ok {
		box.mu.Lock()
		box.owner = id
		box.mu.Unlock()
		return
	}
	s.boxes[id.ID] = &mailbox{
		owner:  id,
		notify: make(chan struct{}, 1),
	}
}

// Agents 返回所有已打开邮箱的 Agent，按 ID 排序
func (s *System) Agents() []types.AgentID {
	s.mu.RLock()
	out := make([]types.AgentID, 0, len(s.boxes))
	for _, box := range s.boxes {
		box.mu.Lock()
		out = append(out, box.owner)
		box.mu.Unlock()
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Deliver 单播投递。接收方未知返回 UNKNOWN_AGENT。
// 同一邮箱的并发投递在邮箱锁内串行追加，同一发送方的顺序得以保持。
func (s *System) Deliver(ctx context.Context, msg types.Message, recipient types.AgentID) error {
	box, err := s.box(recipient.ID)
	if err != nil {
		return err
	}

	box.mu.Lock()
	if s.config.Capacity > 0 && len(box.queue) >= s.config.Capacity {
		box.mu.Unlock()
		return types.Errorf(types.ErrMailboxFull, "mailbox of %s is full (%d messages)", recipient.ID, s.config.Capacity).
			WithAgent(recipient.ID).WithRetryable(true)
	}

	// 先持久化再入队；持久化失败不阻止投递
	s.persist(ctx, msg, box.owner)

	box.queue = append(box.queue, msg)
	box.signal()
	box.mu.Unlock()

	s.logger.Debug("message delivered",
		zap.String("msg_id", msg.ID),
		zap.String("from", msg.Sender.ID),
		zap.String("to", recipient.ID),
		zap.String("kind", string(msg.Kind)),
	)
	return nil
}

// DeliverToGroup 分组投递，返回成功数与失败列表；部分投递视为成功。
// ctx 到期后尚未投递的成员记为 TIMEOUT。仅在分组本身非法时返回 error。
func (s *System) DeliverToGroup(ctx context.Context, msg types.Message, group types.AgentGroup) (types.DeliveryReport, error) {
	report := types.DeliveryReport{MessageID: msg.ID, Group: group.Name}

	targets, failures, err := Route(group, msg)
	if err != nil {
		return report, err
	}
	report.Failures = append(report.Failures, failures...)

	for i, target := range targets {
		if ctxErr := ctx.Err(); ctxErr != nil {
			for _, missed := range targets[i:] {
				report.Failures = append(report.Failures, types.DeliveryFailure{
					Agent:  missed,
					Code:   types.ErrTimeout,
					Reason: "delivery deadline expired: " + ctxErr.Error(),
				})
			}
			break
		}

		if err := s.Deliver(ctx, msg, target); err != nil {
			code := types.GetErrorCode(err)
			if code == "" {
				code = types.ErrInternalError
			}
			report.Failures = append(report.Failures, types.DeliveryFailure{
				Agent:  target,
				Code:   code,
				Reason: err.Error(),
			})
			continue
		}
		report.Delivered++
	}

	if len(report.Failures) > 0 {
		s.logger.Warn("group delivery incomplete",
			zap.String("msg_id", msg.ID),
			zap.String("group", group.Name),
			zap.Int("delivered", report.Delivered),
			zap.Int("failed", len(report.Failures)),
		)
	}
	return report, nil
}

// HasPending 非阻塞探测；未知 Agent 返回 false
func (s *System) HasPending(id string) bool {
	return s.Pending(id) > 0
}

// Pending 返回待处理消息数
func (s *System) Pending(id string) int {
	s.mu.RLock()
	box, ok := s.boxes[id]
	s.mu.RUnlock()
	if !ok {
		return 0
	}

	box.mu.Lock()
	defer box.mu.Unlock()
	return len(box.queue)
}

// Drain 原子地取出并返回全部待处理消息
func (s *System) Drain(ctx context.Context, id string) ([]types.Message, error) {
	box, err := s.box(id)
	if err != nil {
		return nil, err
	}

	box.mu.Lock()
	drained := box.queue
	box.queue = nil
	box.mu.Unlock()

	s.ack(ctx, id, drained...)
	return drained, nil
}

// Receive 阻塞直到取到一条消息、ctx 结束或系统关闭
func (s *System) Receive(ctx context.Context, id string) (types.Message, error) {
	box, err := s.box(id)
	if err != nil {
		return types.Message{}, err
	}

	for {
		box.mu.Lock()
		if len(box.queue) > 0 {
			msg := box.queue[0]
			box.queue[0] = types.Message{}
			box.queue = box.queue[1:]
			if len(box.queue) > 0 {
				box.signal()
			}
			box.mu.Unlock()

			s.ack(ctx, id, msg)
			return msg, nil
		}
		box.mu.Unlock()

		select {
		case <-box.notify:
		case <-s.done:
			return types.Message{}, types.NewError(types.ErrMailboxClosed, "mailbox system is closed").WithAgent(id)
		case <-ctx.Done():
			return types.Message{}, types.NewTimeoutError("receive on mailbox " + id + " expired").
				WithAgent(id).WithCause(ctx.Err())
		}
	}
}

// Recover 将持久化存储中未确认的消息重新入队，返回重新入队的数量。
// 已在队列中的消息不会重复入队；超过重试上限的记录被跳过。
func (s *System) Recover(ctx context.Context) (int, error) {
	if s.store == nil {
		return 0, nil
	}

	s.mu.RLock()
	boxes := make([]*mailbox, 0, len(s.boxes))
	for _, box := range s.boxes {
		boxes = append(boxes, box)
	}
	s.mu.RUnlock()

	recovered := 0
	for _, box := range boxes {
		box.mu.Lock()
		owner := box.owner
		box.mu.Unlock()

		records, err := s.store.GetUnackedMessages(ctx, owner.ID, 0)
		if err != nil {
			return recovered, types.Errorf(types.ErrInternalError, "list unacked messages for %s", owner.ID).
				WithAgent(owner.ID).WithCause(err)
		}

		box.mu.Lock()
		queued := make(map[string]struct{}, len(box.queue))
		for _, m := range box.queue {
			queued[m.ID] = struct{}{}
		}
		for _, rec := range records {
			if _, ok := queued[rec.MessageID]; ok {
				continue
			}
			if !rec.ShouldRetry(s.config.Retry) {
				s.logger.Warn("message exceeded max redeliveries",
					zap.String("record_id", rec.ID),
					zap.Int("retry_count", rec.RetryCount),
				)
				continue
			}
			if err := s.store.IncrementRetry(ctx, rec.ID); err != nil {
				s.logger.Warn("failed to increment retry", zap.String("record_id", rec.ID), zap.Error(err))
			}
			box.queue = append(box.queue, fromRecord(rec))
			queued[rec.MessageID] = struct{}{}
			recovered++
		}
		if len(box.queue) > 0 {
			box.signal()
		}
		box.mu.Unlock()
	}

	if recovered > 0 {
		s.logger.Info("recovered unacknowledged messages", zap.Int("count", recovered))
	}
	return recovered, nil
}

// Close 关闭邮箱系统，唤醒阻塞的 Receive，并关闭持久化存储
func (s *System) Close() error {
	var storeErr error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.done)
		s.mu.Unlock()

		if s.store != nil {
			storeErr = s.store.Close()
		}
	})
	return storeErr
}

func (s *System) box(id string) (*mailbox, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, types.NewError(types.ErrMailboxClosed, "mailbox system is closed").WithAgent(id)
	}
	box, ok := s.boxes[id]
	if !ok {
		return nil, types.NewUnknownAgentError(id)
	}
	return box, nil
}

func (b *mailbox) signal() {
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

func (s *System) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.StoreTimeout <= 0 {
		return context.WithCancel(context.WithoutCancel(ctx))
	}
	return context.WithTimeout(context.WithoutCancel(ctx), s.config.StoreTimeout)
}

func (s *System) persist(ctx context.Context, msg types.Message, recipient types.AgentID) {
	if s.store == nil {
		return
	}
	sctx, cancel := s.storeContext(ctx)
	defer cancel()

	if err := s.store.SaveMessage(sctx, toRecord(msg, recipient)); err != nil {
		s.logger.Error("failed to persist message",
			zap.String("msg_id", msg.ID),
			zap.String("recipient", recipient.ID),
			zap.Error(err),
		)
	}
}

func (s *System) ack(ctx context.Context, recipient string, msgs ...types.Message) {
	if s.store == nil || len(msgs) == 0 {
		return
	}
	ids := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = persistence.RecordID(recipient, m.ID)
	}

	sctx, cancel := s.storeContext(ctx)
	defer cancel()

	if err := s.store.AckMessages(sctx, ids); err != nil {
		s.logger.Warn("failed to ack messages",
			zap.String("recipient", recipient),
			zap.Int("count", len(ids)),
			zap.Error(err),
		)
	}
}

func toRecord(msg types.Message, recipient types.AgentID) *persistence.Message {
	return &persistence.Message{
		ID:            persistence.RecordID(recipient.ID, msg.ID),
		MessageID:     msg.ID,
		CorrelationID: msg.CorrelationID,
		Recipient:     recipient.ID,
		RecipientName: recipient.Name,
		Direct:        msg.Recipient != nil,
		FromID:        msg.Sender.ID,
		FromName:      msg.Sender.Name,
		Kind:          string(msg.Kind),
		Content:       msg.Content,
		Metadata:      msg.Metadata,
		SentAt:        msg.Timestamp,
	}
}

func fromRecord(rec *persistence.Message) types.Message {
	msg := types.Message{
		ID:            rec.MessageID,
		CorrelationID: rec.CorrelationID,
		Sender:        types.NewAgentID(rec.FromID, rec.FromName),
		Kind:          types.MessageKind(rec.Kind),
		Content:       rec.Content,
		Metadata:      rec.Metadata,
		Timestamp:     rec.SentAt,
	}
	if rec.Direct {
		r := types.NewAgentID(rec.Recipient, rec.RecipientName)
		msg.Recipient = &r
	}
	return msg
}
