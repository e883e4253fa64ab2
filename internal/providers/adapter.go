package providers

import (
	"context"

	"github.com/haasonsaas/agentcore/internal/agent"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// agentProvider adapts a Provider to agent.Provider, the narrower shape the
// agent loop depends on. The two interfaces describe the same contract;
// they differ only because CompletionResult lives in different packages on
// either side of what would otherwise be an import cycle (package providers
// already imports package agent for ToolSchema and StreamEvent).
type agentProvider struct {
	provider Provider
}

// AsAgentProvider wraps p so it satisfies agent.Provider.
func AsAgentProvider(p Provider) agent.Provider {
	return agentProvider{provider: p}
}

func (a agentProvider) SupportsTools() bool { return a.provider.SupportsTools() }

func (a agentProvider) Complete(ctx context.Context, messages []models.ChatMessage, tools []agent.ToolSchema) (agent.CompletionResult, error) {
	result, err := a.provider.Complete(ctx, messages, tools)
	if err != nil {
		return agent.CompletionResult{}, err
	}
	return agent.CompletionResult{
		Text:      result.Text,
		ToolCalls: result.ToolCalls,
		Usage:     result.Usage,
	}, nil
}

func (a agentProvider) StreamWithTools(ctx context.Context, messages []models.ChatMessage, tools []agent.ToolSchema) (<-chan agent.StreamEvent, error) {
	return a.provider.StreamWithTools(ctx, messages, tools)
}
