package agent

import (
	"fmt"

	"github.com/haasonsaas/agentcore/pkg/models"
)

// ContextWindowExceededError is raised when the provider reports the
// conversation is too long to process. Callers are expected to compact the
// conversation and retry; the loop itself never compacts.
type ContextWindowExceededError struct {
	Reason string
}

func (e *ContextWindowExceededError) Error() string {
	return fmt.Sprintf("context window exceeded: %s", e.Reason)
}

// TurnResult is what the agent loop returns for a completed turn.
type TurnResult struct {
	Text          string
	Iterations    int
	ToolCallsMade int
	Usage         models.Usage
}
