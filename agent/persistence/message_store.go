package persistence

import (
	"context"
	"time"
)

// MessageStore defines the interface for mailbox persistence.
// Records are keyed per (recipient, message) so a group fan-out produces one
// record per member.
type MessageStore interface {
	Store

	// SaveMessage persists a single message record
	SaveMessage(ctx context.Context, msg *Message) error

	// GetMessage retrieves a record by ID
	GetMessage(ctx context.Context, id string) (*Message, error)

	// AckMessages marks records as acknowledged (drained by the recipient)
	AckMessages(ctx context.Context, ids []string) error

	// GetUnackedMessages retrieves unacknowledged records for a recipient created
	// at least olderThan ago, oldest first
	GetUnackedMessages(ctx context.Context, recipient string, olderThan time.Duration) ([]*Message, error)

	// IncrementRetry increments the redelivery count for a record
	IncrementRetry(ctx context.Context, id string) error

	// Cleanup removes acknowledged records acked before now-olderThan
	Cleanup(ctx context.Context, olderThan time.Duration) (int, error)

	// Stats returns statistics about the message store
	Stats(ctx context.Context) (*MessageStoreStats, error)
}

// Message represents a persisted mailbox record
type Message struct {
	// ID is the record identifier, see RecordID
	ID string `json:"id"`

	// MessageID is the id of the delivered message
	MessageID string `json:"message_id"`

	// CorrelationID links requests and responses
	CorrelationID string `json:"correlation_id,omitempty"`

	// Recipient is the mailbox owner
	Recipient string `json:"recipient"`

	// RecipientName is the display name of the recipient
	RecipientName string `json:"recipient_name,omitempty"`

	// Direct is true when the message was addressed to the recipient explicitly
	Direct bool `json:"direct"`

	// FromID / FromName identify the sender
	FromID   string `json:"from_id"`
	FromName string `json:"from_name,omitempty"`

	// Kind is the message kind (query, command, ...)
	Kind string `json:"kind"`

	// Content is the message payload
	Content string `json:"content"`

	// Metadata contains message metadata
	Metadata map[string]string `json:"metadata,omitempty"`

	// SentAt is the message timestamp
	SentAt time.Time `json:"sent_at"`

	// CreatedAt is when the record was persisted
	CreatedAt time.Time `json:"created_at"`

	// AckedAt is when the record was acknowledged (nil if not acked)
	AckedAt *time.Time `json:"acked_at,omitempty"`

	// RetryCount is the number of redelivery attempts
	RetryCount int `json:"retry_count"`

	// LastRetryAt is when the last redelivery was attempted
	LastRetryAt *time.Time `json:"last_retry_at,omitempty"`
}

// RecordID returns the record id for a message delivered to recipient.
func RecordID(recipient, messageID string) string {
	return recipient + "/" + messageID
}

// IsAcked checks if the record has been acknowledged
func (m *Message) IsAcked() bool {
	return m.AckedAt != nil
}

// ShouldRetry checks if the record should be redelivered based on the retry config
func (m *Message) ShouldRetry(config RetryConfig) bool {
	if m.IsAcked() {
		return false
	}
	return m.RetryCount < config.MaxRetries
}

// NextRetryTime calculates when the next redelivery should occur
func (m *Message) NextRetryTime(config RetryConfig) time.Time {
	backoff := config.CalculateBackoff(m.RetryCount)
	if m.LastRetryAt != nil {
		return m.LastRetryAt.Add(backoff)
	}
	return m.CreatedAt.Add(backoff)
}

// MessageStoreStats contains statistics about the message store
type MessageStoreStats struct {
	// TotalMessages is the total number of records in the store
	TotalMessages int64 `json:"total_messages"`

	// PendingMessages is the number of unacknowledged records
	PendingMessages int64 `json:"pending_messages"`

	// AckedMessages is the number of acknowledged records
	AckedMessages int64 `json:"acked_messages"`

	// RecipientCounts is the pending record count per recipient
	RecipientCounts map[string]int64 `json:"recipient_counts"`
}
