package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/haasonsaas/agentcore/pkg/models"
)

// ToolExecConfig controls concurrent tool execution. Values mirror the
// teacher's tool_exec.go defaults: a small worker pool and a per-call
// timeout so one stuck tool cannot stall a turn indefinitely.
type ToolExecConfig struct {
	Concurrency    int
	PerToolTimeout time.Duration
}

// DefaultToolExecConfig returns the spec's defaults: four concurrent tool
// calls, thirty seconds per call.
func DefaultToolExecConfig() ToolExecConfig {
	return ToolExecConfig{Concurrency: 4, PerToolTimeout: 30 * time.Second}
}

// ToolExecutor runs a turn's tool calls concurrently while preserving the
// original call order for everything the caller observes afterward.
//
// Ordering guarantee (spec.md §5): ToolCallStart is emitted by the loop in
// call order before any execution begins. Execution then proceeds
// concurrently, bounded by Concurrency; results are written into a
// pre-sized slice indexed by the call's original position, so the returned
// slice is in call order regardless of completion order.
type ToolExecutor struct {
	registry *ToolRegistry
	config   ToolExecConfig
}

func NewToolExecutor(registry *ToolRegistry, config ToolExecConfig) *ToolExecutor {
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultToolExecConfig().Concurrency
	}
	if config.PerToolTimeout <= 0 {
		config.PerToolTimeout = DefaultToolExecConfig().PerToolTimeout
	}
	return &ToolExecutor{registry: registry, config: config}
}

// ExecuteAll runs every call concurrently (bounded by a semaphore) and
// returns results in the same order as calls. A hook callback, invoked
// sequentially and in order before any execution starts, may replace a
// call's arguments or block it outright.
func (e *ToolExecutor) ExecuteAll(ctx context.Context, calls []models.ToolCall, before func(models.ToolCall) (models.ToolCall, *ToolResult)) []ToolResult {
	results := make([]ToolResult, len(calls))
	blocked := make([]bool, len(calls))

	for i, c := range calls {
		if before != nil {
			rewritten, blockResult := before(c)
			calls[i] = rewritten
			if blockResult != nil {
				results[i] = *blockResult
				blocked[i] = true
			}
		}
	}

	sem := make(chan struct{}, e.config.Concurrency)
	var wg sync.WaitGroup

	for i, c := range calls {
		if blocked[i] {
			continue
		}
		i, c := i, c
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = e.executeOne(ctx, c)
		}()
	}
	wg.Wait()

	return results
}

func (e *ToolExecutor) executeOne(ctx context.Context, call models.ToolCall) ToolResult {
	tool := e.registry.Get(call.Name)
	if tool == nil {
		return ToolResult{Content: fmt.Sprintf(`{"error":"unknown tool: %s"}`, call.Name), IsError: true}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.config.PerToolTimeout)
	defer cancel()

	done := make(chan struct {
		res *ToolResult
		err error
	}, 1)

	go func() {
		res, err := tool.Execute(callCtx, json.RawMessage(call.Arguments))
		select {
		case done <- struct {
			res *ToolResult
			err error
		}{res, err}:
		default:
			// caller already gave up (timeout); avoid leaking this goroutine
			// by not blocking on a send nobody will receive.
		}
	}()

	select {
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return ToolResult{Content: fmt.Sprintf(`{"error":"tool %s cancelled: %s"}`, call.Name, ctx.Err()), IsError: true}
		}
		return ToolResult{Content: fmt.Sprintf(`{"error":"tool %s timed out"}`, call.Name), IsError: true}
	case out := <-done:
		if out.err != nil {
			return ToolResult{Content: fmt.Sprintf(`{"error":%q}`, out.err.Error()), IsError: true}
		}
		if out.res == nil {
			return ToolResult{Content: `{"error":"tool returned no result"}`, IsError: true}
		}
		return *out.res
	}
}
