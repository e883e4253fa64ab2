// Package failover implements the ordered-provider fallback chain (spec.md
// §4.7): try each provider in turn, skip ones whose circuit breaker is
// tripped, and only fail over on errors the classifier marks as
// failover-eligible.
package failover

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/haasonsaas/agentcore/internal/agent"
	"github.com/haasonsaas/agentcore/internal/breaker"
	"github.com/haasonsaas/agentcore/internal/providers"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// entry pairs a provider with the breaker that gates it.
type entry struct {
	provider providers.Provider
	breaker  *breaker.Breaker
}

// Chain is an ordered list of (provider, breaker) pairs implementing the
// Provider contract by delegating metadata to the head provider.
type Chain struct {
	entries []entry
}

// New builds a Chain from providers in priority order. The first provider
// is the primary; the rest are fallbacks tried only when an earlier one
// fails with a failover-eligible error or is already tripped.
func New(providerList ...providers.Provider) (*Chain, error) {
	if len(providerList) == 0 {
		return nil, errors.New("failover: chain requires at least one provider")
	}
	entries := make([]entry, len(providerList))
	for i, p := range providerList {
		entries[i] = entry{provider: p, breaker: breaker.New(breaker.DefaultThreshold, breaker.DefaultCooldown)}
	}
	return &Chain{entries: entries}, nil
}

func (c *Chain) head() providers.Provider { return c.entries[0].provider }

func (c *Chain) Name() string         { return c.head().Name() }
func (c *Chain) ID() string           { return c.head().ID() }
func (c *Chain) ContextWindow() int   { return c.head().ContextWindow() }
func (c *Chain) SupportsTools() bool  { return c.head().SupportsTools() }
func (c *Chain) SupportsVision() bool { return c.head().SupportsVision() }

// providerFailure records one provider's last failure for the aggregated
// error returned when every entry in the chain is exhausted.
type providerFailure struct {
	provider string
	err      error
}

// AggregateError is returned when every provider in the chain has been
// tried (or skipped as tripped) and none succeeded.
type AggregateError struct {
	Failures []providerFailure
}

func (e *AggregateError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.provider, f.err))
	}
	return "failover: all providers exhausted: " + strings.Join(parts, "; ")
}

// Complete tries each provider in order, honoring circuit breakers and the
// error classifier's failover eligibility (spec.md §4.7 step 1-2).
func (c *Chain) Complete(ctx context.Context, messages []models.ChatMessage, tools []agent.ToolSchema) (*providers.CompletionResult, error) {
	var failures []providerFailure

	for _, e := range c.entries {
		if e.breaker.IsTripped() {
			continue
		}

		result, err := e.provider.Complete(ctx, messages, tools)
		if err == nil {
			e.breaker.RecordSuccess()
			return result, nil
		}

		kind := providers.Classify(err)
		if !kind.ShouldFailover() {
			return nil, err
		}

		e.breaker.RecordFailure()
		failures = append(failures, providerFailure{provider: e.provider.Name(), err: err})
	}

	if len(failures) == 0 {
		return nil, errors.New("failover: no providers available (all circuits tripped)")
	}
	return nil, &AggregateError{Failures: failures}
}

// Stream cannot be transparently retried mid-stream (spec.md §4.7): it
// picks the first non-tripped provider at start-of-stream, falling back to
// the head provider if every entry is tripped.
func (c *Chain) Stream(ctx context.Context, messages []models.ChatMessage) (<-chan agent.StreamEvent, error) {
	return c.StreamWithTools(ctx, messages, nil)
}

func (c *Chain) StreamWithTools(ctx context.Context, messages []models.ChatMessage, tools []agent.ToolSchema) (<-chan agent.StreamEvent, error) {
	chosen := c.entries[0]
	for _, e := range c.entries {
		if !e.breaker.IsTripped() {
			chosen = e
			break
		}
	}

	events, err := chosen.provider.StreamWithTools(ctx, messages, tools)
	if err != nil {
		chosen.breaker.RecordFailure()
		return nil, err
	}

	out := make(chan agent.StreamEvent)
	go func() {
		defer close(out)
		for ev := range events {
			if ev.Kind == agent.EventError {
				chosen.breaker.RecordFailure()
			} else if ev.Kind == agent.EventDone {
				chosen.breaker.RecordSuccess()
			}
			out <- ev
		}
	}()
	return out, nil
}
