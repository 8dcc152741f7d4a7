package types

import (
	"time"

	"github.com/google/uuid"
)

// MessageKind 消息类型
type MessageKind string

const (
	MessageKindQuery        MessageKind = "query"
	MessageKindNotification MessageKind = "notification"
	MessageKindCommand      MessageKind = "command"
	MessageKindResponse     MessageKind = "response"
	MessageKindProposal     MessageKind = "proposal"
	MessageKindVote         MessageKind = "vote"
)

// Message Agent 间消息。构造后不可变，按值传递。
type Message struct {
	ID            string            `json:"id" yaml:"id"`
	CorrelationID string            `json:"correlation_id" yaml:"correlation_id"`
	Sender        AgentID           `json:"sender" yaml:"sender"`
	Recipient     *AgentID          `json:"recipient,omitempty" yaml:"recipient,omitempty"` // nil 表示广播
	Kind          MessageKind       `json:"kind" yaml:"kind"`
	Content       string            `json:"content" yaml:"content"`
	Metadata      map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Timestamp     time.Time         `json:"timestamp" yaml:"timestamp"`
}

// NewMessage creates a broadcast message with a fresh id and correlation id.
func NewMessage(sender AgentID, kind MessageKind, content string) Message {
	id := uuid.New().String()
	return Message{
		ID:            id,
		CorrelationID: id,
		Sender:        sender,
		Kind:          kind,
		Content:       content,
		Timestamp:     time.Now(),
	}
}

// NewDirectMessage creates a unicast message.
func NewDirectMessage(sender, recipient AgentID, kind MessageKind, content string) Message {
	msg := NewMessage(sender, kind, content)
	r := recipient
	msg.Recipient = &r
	return msg
}

// Reply builds a Response to m carrying the same correlation id.
func (m Message) Reply(from AgentID, content string) Message {
	reply := NewDirectMessage(from, m.Sender, MessageKindResponse, content)
	reply.CorrelationID = m.CorrelationID
	return reply
}

// IsBroadcast reports whether the message has no explicit recipient.
func (m Message) IsBroadcast() bool {
	return m.Recipient == nil
}

// DeliveryMode 分组投递模式
type DeliveryMode string

const (
	// DeliveryBroadcast 每个成员一份
	DeliveryBroadcast DeliveryMode = "broadcast"
	// DeliveryMulticast 仅 Targets 指定的成员子集
	DeliveryMulticast DeliveryMode = "multicast"
	// DeliveryUnicastGroup 按 RouteKey 路由到单个成员
	DeliveryUnicastGroup DeliveryMode = "unicast_group"
)

// AgentGroup 临时分组，由调用方创建，不被协调器持久化
type AgentGroup struct {
	Name     string       `json:"name" yaml:"name"`
	Members  []AgentID    `json:"members" yaml:"members"`
	Mode     DeliveryMode `json:"mode" yaml:"mode"`
	Targets  []string     `json:"targets,omitempty" yaml:"targets,omitempty"`
	RouteKey string       `json:"route_key,omitempty" yaml:"route_key,omitempty"`
}

// NewBroadcastGroup creates a broadcast-mode group.
func NewBroadcastGroup(name string, members ...AgentID) AgentGroup {
	return AgentGroup{Name: name, Members: members, Mode: DeliveryBroadcast}
}

// DeliveryFailure 单个成员投递失败
type DeliveryFailure struct {
	Agent  AgentID   `json:"agent"`
	Code   ErrorCode `json:"code"`
	Reason string    `json:"reason"`
}

// DeliveryReport 分组投递结果；部分投递视为成功
type DeliveryReport struct {
	MessageID string            `json:"message_id"`
	Group     string            `json:"group"`
	Delivered int               `json:"delivered"`
	Failures  []DeliveryFailure `json:"failures,omitempty"`
}

// Complete reports whether every addressed member received the message.
func (r DeliveryReport) Complete() bool {
	return len(r.Failures) == 0
}
