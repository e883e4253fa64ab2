package agent

import "github.com/haasonsaas/agentcore/pkg/models"

// HookDecision is what a hook returns for one tool call.
type HookDecision int

const (
	// HookContinue lets the call proceed unmodified.
	HookContinue HookDecision = iota
	// HookModifyPayload replaces the call's arguments before execution.
	HookModifyPayload
	// HookBlock short-circuits execution with an error result.
	HookBlock
)

// BeforeToolCallHook inspects (and may rewrite or block) a tool call before
// it executes. Hooks run sequentially, in call order, so ordering is
// deterministic even though execution itself is concurrent.
type BeforeToolCallHook func(call models.ToolCall) (decision HookDecision, arguments []byte, blockReason string)

// AfterToolCallHook observes a tool call's outcome. It cannot change the
// result; it is purely an observation point (metrics, audit, telemetry —
// all external collaborators per spec.md §1).
type AfterToolCallHook func(call models.ToolCall, result ToolResult)

// HookChain dispatches BeforeToolCall/AfterToolCall across zero or more
// registered hooks. A nil HookChain behaves as an empty one.
type HookChain struct {
	Before []BeforeToolCallHook
	After  []AfterToolCallHook
}

// RunBefore applies every Before hook in registration order. The first hook
// to return HookBlock wins; a hook returning HookModifyPayload replaces the
// arguments seen by subsequent hooks and by execution.
func (h *HookChain) RunBefore(call models.ToolCall) (models.ToolCall, *ToolResult) {
	if h == nil {
		return call, nil
	}
	for _, hook := range h.Before {
		decision, args, reason := hook(call)
		switch decision {
		case HookModifyPayload:
			call.Arguments = args
		case HookBlock:
			return call, &ToolResult{
				Content: `{"error":"blocked by hook: ` + reason + `"}`,
				IsError: true,
			}
		}
	}
	return call, nil
}

// RunAfter notifies every After hook in registration order.
func (h *HookChain) RunAfter(call models.ToolCall, result ToolResult) {
	if h == nil {
		return
	}
	for _, hook := range h.After {
		hook(call, result)
	}
}
