package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/haasonsaas/agentcore/pkg/models"
)

// MaxIterations bounds one turn's provider/tool round trips (spec.md §4.8).
const MaxIterations = 25

// DefaultMaxToolResultBytes bounds a sanitized tool result before it is
// injected into the next iteration's message list.
const DefaultMaxToolResultBytes = 32 * 1024

// EventKind discriminates the loop-level UI events emitted alongside the
// provider-level StreamEvent sequence. These are for observers (a UI, a
// logger); the loop's own control flow never depends on whether anything is
// listening.
type EventKind int

const (
	EventThinking EventKind = iota
	EventThinkingDone
	EventTextDelta
	EventLoopToolCallStart
	EventLoopToolCallEnd
	EventIteration
)

// LoopEvent is one UI-facing notification from a running turn.
type LoopEvent struct {
	Kind      EventKind
	Iteration int
	Text      string          // EventTextDelta
	ToolCall  models.ToolCall // EventLoopToolCallStart / EventLoopToolCallEnd
	ToolError bool            // EventLoopToolCallEnd
}

// EventSink receives LoopEvent notifications. A nil EventSink is valid and
// discards everything.
type EventSink func(LoopEvent)

func emit(sink EventSink, ev LoopEvent) {
	if sink != nil {
		sink(ev)
	}
}

// Provider is the subset of providers.Provider the loop depends on. Defined
// locally to avoid an import cycle (package providers already imports
// package agent for ToolSchema/StreamEvent).
type Provider interface {
	SupportsTools() bool
	Complete(ctx context.Context, messages []models.ChatMessage, tools []ToolSchema) (CompletionResult, error)
	StreamWithTools(ctx context.Context, messages []models.ChatMessage, tools []ToolSchema) (<-chan StreamEvent, error)
}

// CompletionResult is the loop's view of a non-streaming completion. It
// mirrors providers.CompletionResult structurally so callers can pass that
// type directly.
type CompletionResult struct {
	Text      string
	ToolCalls []models.ToolCall
	Usage     models.Usage
}

// Loop drives one turn of the agent loop (spec.md §4.8) to completion,
// either via non-streaming Complete calls or via StreamWithTools.
type Loop struct {
	Provider     Provider
	Tools        *ToolRegistry
	Hooks        *HookChain
	ToolContext  json.RawMessage
	MaxToolBytes int
	Executor     *ToolExecutor
	Events       EventSink
}

// NewLoop builds a Loop with the spec's defaults: an executor using
// DefaultToolExecConfig and DefaultMaxToolResultBytes.
func NewLoop(provider Provider, tools *ToolRegistry) *Loop {
	return &Loop{
		Provider:     provider,
		Tools:        tools,
		Executor:     NewToolExecutor(tools, DefaultToolExecConfig()),
		MaxToolBytes: DefaultMaxToolResultBytes,
	}
}

// errorKinder is satisfied by providers.ProviderError without this package
// importing package providers (which itself imports package agent for
// ToolSchema/StreamEvent — importing back would cycle). errors.As can match
// against a pointer-to-interface target, so this lets the loop recognize a
// context-window classification purely by duck-typed shape.
type errorKinder interface{ ErrorKind() string }

func isContextWindowErr(err error) bool {
	if err == nil {
		return false
	}
	var ek errorKinder
	if errors.As(err, &ek) {
		return ek.ErrorKind() == "context_window"
	}
	reason := strings.ToLower(err.Error())
	return strings.Contains(reason, "context_window") || strings.Contains(reason, "context window")
}

// toolCallFence matches a text-embedded tool-call fallback block (spec.md
// §4.8 step 5), used only when the active provider does not support
// structured tool calls.
var toolCallFence = regexp.MustCompile("(?s)```tool_call\\s*\\n(\\{.*?\\})\\s*\\n```")

type embeddedToolCall struct {
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments"`
}

// extractEmbeddedToolCall scans text for the fenced tool-call block. It
// returns the remaining text (before- and after-fence substrings joined)
// and a synthesized ToolCall, or ok=false if no block was found.
func extractEmbeddedToolCall(text string) (remaining string, call models.ToolCall, ok bool) {
	loc := toolCallFence.FindStringSubmatchIndex(text)
	if loc == nil {
		return text, models.ToolCall{}, false
	}
	var embedded embeddedToolCall
	if err := json.Unmarshal([]byte(text[loc[2]:loc[3]]), &embedded); err != nil {
		return text, models.ToolCall{}, false
	}
	before := text[:loc[0]]
	after := text[loc[1]:]
	remaining = before + after
	call = models.ToolCall{
		ID:        uuid.NewString(),
		Name:      embedded.Tool,
		Arguments: embedded.Arguments,
	}
	return remaining, call, true
}

// mergeToolContext returns arguments with every key from extra overlaid on
// top (extra wins on conflict), or arguments unchanged if extra is empty.
func mergeToolContext(arguments, extra json.RawMessage) json.RawMessage {
	if len(extra) == 0 {
		return arguments
	}
	var base map[string]any
	if len(arguments) > 0 {
		if err := json.Unmarshal(arguments, &base); err != nil {
			base = nil
		}
	}
	if base == nil {
		base = map[string]any{}
	}
	var extraMap map[string]any
	if err := json.Unmarshal(extra, &extraMap); err != nil {
		return arguments
	}
	for k, v := range extraMap {
		base[k] = v
	}
	merged, err := json.Marshal(base)
	if err != nil {
		return arguments
	}
	return merged
}

// Run executes a turn via non-streaming Complete calls.
func (l *Loop) Run(ctx context.Context, history []models.ChatMessage) (*TurnResult, error) {
	return l.run(ctx, history, false)
}

// RunStreaming executes a turn via StreamWithTools, emitting EventTextDelta
// for each Delta as it arrives.
func (l *Loop) RunStreaming(ctx context.Context, history []models.ChatMessage) (*TurnResult, error) {
	return l.run(ctx, history, true)
}

func (l *Loop) run(ctx context.Context, history []models.ChatMessage, streaming bool) (*TurnResult, error) {
	messages := append([]models.ChatMessage(nil), history...)

	maxBytes := l.MaxToolBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxToolResultBytes
	}

	var total models.Usage
	toolCallsMade := 0
	schemas := l.Tools.ListSchemas()

	for iteration := 1; ; iteration++ {
		if iteration > MaxIterations {
			return nil, fmt.Errorf("agent loop: exceeded max iterations (%d)", MaxIterations)
		}
		emit(l.Events, LoopEvent{Kind: EventIteration, Iteration: iteration})
		emit(l.Events, LoopEvent{Kind: EventThinking, Iteration: iteration})

		var text string
		var toolCalls []models.ToolCall
		var usage models.Usage
		var err error

		if streaming {
			text, toolCalls, usage, err = l.runStreamingIteration(ctx, messages, schemas, iteration)
		} else {
			var result CompletionResult
			result, err = l.Provider.Complete(ctx, messages, schemas)
			if err == nil {
				text, toolCalls, usage = result.Text, result.ToolCalls, result.Usage
			}
		}

		emit(l.Events, LoopEvent{Kind: EventThinkingDone, Iteration: iteration})
		total = total.Add(usage)

		if err != nil {
			if isContextWindowErr(err) {
				return nil, &ContextWindowExceededError{Reason: err.Error()}
			}
			return nil, fmt.Errorf("agent loop: provider call failed: %w", err)
		}

		// Step 5: text-embedded tool-call fallback, only when the provider
		// can't do structured tools and none arrived.
		if !l.Provider.SupportsTools() && len(toolCalls) == 0 {
			if remaining, call, ok := extractEmbeddedToolCall(text); ok {
				text = remaining
				toolCalls = append(toolCalls, call)
			}
		}

		if len(toolCalls) == 0 {
			return &TurnResult{
				Text:          text,
				Iterations:    iteration,
				ToolCallsMade: toolCallsMade,
				Usage:         total,
			}, nil
		}

		messages = append(messages, models.NewAssistantMessage(text, append([]models.ToolCall(nil), toolCalls...)))

		for _, call := range toolCalls {
			emit(l.Events, LoopEvent{Kind: EventLoopToolCallStart, Iteration: iteration, ToolCall: call})
		}

		before := func(call models.ToolCall) (models.ToolCall, *ToolResult) {
			call, blocked := l.Hooks.RunBefore(call)
			if blocked == nil {
				call.Arguments = mergeToolContext(call.Arguments, l.ToolContext)
			}
			return call, blocked
		}

		results := l.Executor.ExecuteAll(ctx, toolCalls, before)
		toolCallsMade += len(toolCalls)

		for i, call := range toolCalls {
			result := results[i]
			l.Hooks.RunAfter(call, result)
			emit(l.Events, LoopEvent{Kind: EventLoopToolCallEnd, Iteration: iteration, ToolCall: call, ToolError: result.IsError})

			sanitized := Sanitize(result.Content, maxBytes)
			messages = append(messages, models.NewToolMessage(call.ID, sanitized))
		}
	}
}

// runStreamingIteration consumes one StreamWithTools invocation, emitting
// EventTextDelta per Delta and assembling tool calls via ToolCallAssembler.
func (l *Loop) runStreamingIteration(ctx context.Context, messages []models.ChatMessage, schemas []ToolSchema, iteration int) (string, []models.ToolCall, models.Usage, error) {
	events, err := l.Provider.StreamWithTools(ctx, messages, schemas)
	if err != nil {
		return "", nil, models.Usage{}, err
	}

	assembler := NewToolCallAssembler()
	var text strings.Builder

	for ev := range events {
		if ev.Kind == EventDelta && ev.Text != "" {
			text.WriteString(ev.Text)
			emit(l.Events, LoopEvent{Kind: EventTextDelta, Iteration: iteration, Text: ev.Text})
		}
		if assembler.Apply(ev) {
			break
		}
	}

	if err := assembler.Err(); err != nil {
		return "", nil, models.Usage{}, err
	}

	combinedText := text.String()
	if combinedText == "" {
		combinedText = assembler.Text()
	}

	return combinedText, assembler.ToolCalls(), assembler.Usage(), nil
}
