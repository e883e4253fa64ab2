package providers

import (
	"context"
	"time"

	"github.com/haasonsaas/agentcore/internal/agent"
	"github.com/haasonsaas/agentcore/internal/backoff"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// BaseProvider holds shared retry configuration for LLM provider backends.
// Concrete providers embed it and call Retry around their wire call.
type BaseProvider struct {
	name       string
	maxRetries int
	policy     backoff.BackoffPolicy
}

// NewBaseProvider creates a base provider with sane defaults. retryDelay
// seeds the backoff policy's initial delay; the policy then grows
// exponentially from there rather than linearly.
func NewBaseProvider(name string, maxRetries int, retryDelay time.Duration) BaseProvider {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	policy := backoff.DefaultPolicy()
	policy.InitialMs = float64(retryDelay.Milliseconds())
	return BaseProvider{
		name:       name,
		maxRetries: maxRetries,
		policy:     policy,
	}
}

// Retry executes op with exponential backoff and jitter (internal/backoff)
// if isRetryable returns true. This is a wire-level retry for transient
// transport failures; it is distinct from the failover chain (spec.md
// §4.7), which moves to an entirely different provider rather than
// retrying the same one.
func (b *BaseProvider) Retry(ctx context.Context, isRetryable func(error) bool, op func() error) error {
	if op == nil {
		return nil
	}
	var lastErr error
	for attempt := 1; attempt <= b.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := op(); err == nil {
			return nil
		} else {
			lastErr = err
			if isRetryable == nil || !isRetryable(err) {
				return err
			}
			if attempt >= b.maxRetries {
				break
			}
			if err := backoff.SleepWithBackoff(ctx, b.policy, attempt); err != nil {
				return err
			}
		}
	}
	return lastErr
}

// streamer is satisfied by any provider embedding BaseProvider, letting
// DefaultStreamWithTools call back into the concrete provider's Stream.
type streamer interface {
	Stream(ctx context.Context, messages []models.ChatMessage) (<-chan agent.StreamEvent, error)
}

// DefaultStreamWithTools is the spec.md §4.3 fallback: "default
// implementation falls back to stream ignoring tools". Providers that only
// support tool-calling in non-streaming mode call this from their own
// StreamWithTools method rather than reimplementing the ignore-tools path.
func DefaultStreamWithTools(ctx context.Context, s streamer, messages []models.ChatMessage, _ []agent.ToolSchema) (<-chan agent.StreamEvent, error) {
	return s.Stream(ctx, messages)
}
