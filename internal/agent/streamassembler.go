package agent

import (
	"strings"

	"github.com/haasonsaas/agentcore/pkg/models"
)

// ToolCallAssembler consumes a StreamEvent sequence and accumulates the text
// and tool calls it carries.
//
// This is deliberately the only place that maps StreamEvent.Index to a list
// position. Backend normalizers (§4.4) only emit Index values and leave tool
// call bookkeeping to this type rather than indexing a slice by
// StreamEvent.Index directly — that shortcut is exactly the bug spec.md §4.4
// warns about: a backend index is an opaque correlation key, not a list
// position, and may be non-zero or have gaps.
type ToolCallAssembler struct {
	text strings.Builder

	// positionByIndex maps a backend-reported index to its position in
	// calls. Never assume index == position.
	positionByIndex map[int]int
	calls           []pendingToolCall
	usage           models.Usage
	err             error
}

type pendingToolCall struct {
	id   string
	name string
	args strings.Builder
	done bool
}

func NewToolCallAssembler() *ToolCallAssembler {
	return &ToolCallAssembler{positionByIndex: make(map[int]int)}
}

// Apply folds one StreamEvent into the assembler's state. It returns true
// when ev is a terminal event (Done or Error); the assembler keeps no
// terminal state, so events applied after that are still folded in.
func (a *ToolCallAssembler) Apply(ev StreamEvent) (terminal bool) {
	switch ev.Kind {
	case EventDelta:
		a.text.WriteString(ev.Text)
	case EventToolCallStart:
		pos := len(a.calls)
		a.positionByIndex[ev.Index] = pos
		a.calls = append(a.calls, pendingToolCall{id: ev.ID, name: ev.Name})
	case EventToolCallArgumentsDelta:
		pos, ok := a.positionByIndex[ev.Index]
		if !ok {
			// A backend emitted an arguments delta for an index we never
			// saw a ToolCallStart for. Nothing sane to attach it to.
			return false
		}
		a.calls[pos].args.WriteString(ev.ArgumentsFragment)
	case EventToolCallComplete:
		if pos, ok := a.positionByIndex[ev.Index]; ok {
			a.calls[pos].done = true
		}
	case EventDone:
		a.usage = ev.Usage
		return true
	case EventError:
		a.err = ev.Err
		return true
	}
	return false
}

// Text returns the accumulated visible text. Per spec.md §3, text
// accumulated before an EventError is discarded by the caller at the call
// boundary, not by the assembler — Text still returns whatever was
// accumulated so the caller can choose.
func (a *ToolCallAssembler) Text() string { return a.text.String() }

// Usage returns the usage carried by the terminal Done event (zero value if
// the stream ended in Error).
func (a *ToolCallAssembler) Usage() models.Usage { return a.usage }

// Err returns the error carried by a terminal Error event, or nil.
func (a *ToolCallAssembler) Err() error { return a.err }

// ToolCalls returns the assembled tool calls in call order (i.e. in the
// order their ToolCallStart events arrived, which is the list position, not
// the backend index).
func (a *ToolCallAssembler) ToolCalls() []models.ToolCall {
	out := make([]models.ToolCall, 0, len(a.calls))
	for _, c := range a.calls {
		if c.id == "" && c.name == "" {
			continue
		}
		out = append(out, models.ToolCall{
			ID:        c.id,
			Name:      c.name,
			Arguments: []byte(c.args.String()),
		})
	}
	return out
}
