package agent

import "github.com/haasonsaas/agentcore/pkg/models"

// StreamEventKind discriminates the StreamEvent tagged sum.
type StreamEventKind int

const (
	EventDelta StreamEventKind = iota
	EventToolCallStart
	EventToolCallArgumentsDelta
	EventToolCallComplete
	EventDone
	EventError
)

// StreamEvent is the canonical event every streaming normalizer produces,
// regardless of backend wire format. A stream is a finite, lazy,
// single-consumer sequence of these: exactly one of Done or Error terminates
// it, and no event follows a terminal one.
//
// Index is the backend's own correlation key for a tool call — it is opaque
// and MUST NOT be treated as a position in any list. A backend may report
// indices that are non-zero or non-contiguous (text at index 0, a tool call
// at index 1 with nothing at index... there is no index "between" them to
// skip). Callers that assemble tool calls from these events must keep an
// explicit backend-index -> list-position map; see streamassembler.go.
type StreamEvent struct {
	Kind StreamEventKind

	// EventDelta
	Text string

	// EventToolCallStart
	ID    string
	Name  string
	Index int

	// EventToolCallArgumentsDelta
	ArgumentsFragment string

	// EventDone
	Usage models.Usage

	// EventError
	Err error
}

func DeltaEvent(text string) StreamEvent { return StreamEvent{Kind: EventDelta, Text: text} }

func ToolCallStartEvent(id, name string, index int) StreamEvent {
	return StreamEvent{Kind: EventToolCallStart, ID: id, Name: name, Index: index}
}

func ToolCallArgumentsDeltaEvent(index int, fragment string) StreamEvent {
	return StreamEvent{Kind: EventToolCallArgumentsDelta, Index: index, ArgumentsFragment: fragment}
}

func ToolCallCompleteEvent(index int) StreamEvent {
	return StreamEvent{Kind: EventToolCallComplete, Index: index}
}

func DoneEvent(usage models.Usage) StreamEvent { return StreamEvent{Kind: EventDone, Usage: usage} }

func ErrorEvent(err error) StreamEvent { return StreamEvent{Kind: EventError, Err: err} }
