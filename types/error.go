package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the coordination engine.
type ErrorCode string

// Coordination error codes
const (
	ErrUnknownAgent                ErrorCode = "UNKNOWN_AGENT"
	ErrEmptyCandidateSet           ErrorCode = "EMPTY_CANDIDATE_SET"
	ErrAllocationInfeasible        ErrorCode = "ALLOCATION_INFEASIBLE"
	ErrNoQualifiedParticipant      ErrorCode = "NO_QUALIFIED_PARTICIPANT"
	ErrCyclicDependency            ErrorCode = "CYCLIC_DEPENDENCY"
	ErrQuorumNotReached            ErrorCode = "QUORUM_NOT_REACHED"
	ErrTimeout                     ErrorCode = "TIMEOUT"
	ErrKnowledgeSyncPartialFailure ErrorCode = "KNOWLEDGE_SYNC_PARTIAL_FAILURE"
)

// Supporting error codes
const (
	ErrInvalidInput  ErrorCode = "INVALID_INPUT"
	ErrMailboxFull   ErrorCode = "MAILBOX_FULL"
	ErrMailboxClosed ErrorCode = "MAILBOX_CLOSED"
	ErrUpstreamError ErrorCode = "UPSTREAM_ERROR"
	ErrInternalError ErrorCode = "INTERNAL_ERROR"
)

// Error represents a structured error with code, message, and the agent/task it concerns.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Agent     string    `json:"agent,omitempty"`
	Task      string    `json:"task,omitempty"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf creates a new Error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithAgent records which agent caused the error.
func (e *Error) WithAgent(agentID string) *Error {
	e.Agent = agentID
	return e
}

// WithTask records which task caused the error.
func (e *Error) WithTask(taskID string) *Error {
	e.Task = taskID
	return e
}

// AsError extracts a *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsErrorCode reports whether any *Error in the chain carries the given code.
func IsErrorCode(err error, code ErrorCode) bool {
	e, ok := AsError(err)
	return ok && e.Code == code
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := AsError(err); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// NewUnknownAgentError 未注册 Agent
func NewUnknownAgentError(agentID string) *Error {
	return Errorf(ErrUnknownAgent, "agent %q is not registered", agentID).WithAgent(agentID)
}

// NewTimeoutError 超时
func NewTimeoutError(message string) *Error {
	return NewError(ErrTimeout, message).WithRetryable(true)
}
