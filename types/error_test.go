package types

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrUpstreamError, "decomposer unreachable").
		WithCause(root).
		WithRetryable(true).
		WithAgent("planner")

	if GetErrorCode(err) != ErrUpstreamError {
		t.Fatalf("expected code %s, got %s", ErrUpstreamError, GetErrorCode(err))
	}
	if !IsRetryable(err) {
		t.Fatalf("expected retryable")
	}
	if !errors.Is(err, root) {
		t.Fatalf("expected errors.Is unwrap to root")
	}
	if err.Agent != "planner" {
		t.Fatalf("expected agent to be recorded, got %q", err.Agent)
	}
}

func TestError_WrappedChain(t *testing.T) {
	t.Parallel()

	inner := NewUnknownAgentError("ghost")
	wrapped := fmt.Errorf("broadcast: %w", inner)

	if !IsErrorCode(wrapped, ErrUnknownAgent) {
		t.Fatalf("expected UNKNOWN_AGENT through wrap")
	}
	e, ok := AsError(wrapped)
	if !ok || e.Agent != "ghost" {
		t.Fatalf("expected AsError to find agent, got %+v", e)
	}
	if GetErrorCode(errors.New("plain")) != "" {
		t.Fatalf("plain error should have no code")
	}
	if IsRetryable(errors.New("plain")) {
		t.Fatalf("plain error should not be retryable")
	}
}

func TestNewTimeoutError_IsRetryable(t *testing.T) {
	t.Parallel()

	err := NewTimeoutError("vote collection expired")
	if !IsRetryable(err) {
		t.Fatalf("timeout should be retryable")
	}
	if got := err.Error(); got != "[TIMEOUT] vote collection expired" {
		t.Fatalf("unexpected message %q", got)
	}
}
