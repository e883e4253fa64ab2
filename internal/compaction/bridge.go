package compaction

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/haasonsaas/agentcore/pkg/models"
)

// FromChatMessages converts a loop history into the flat Message shape this
// package's token estimation and chunking operate on. Tool calls/results are
// serialized to their raw JSON so EstimateTokens still sees their weight.
func FromChatMessages(history []models.ChatMessage) []*Message {
	out := make([]*Message, len(history))
	for i, m := range history {
		msg := &Message{
			Role:    string(m.Role),
			Content: m.Text,
		}
		if len(m.ToolCalls) > 0 {
			if b, err := json.Marshal(m.ToolCalls); err == nil {
				msg.ToolCalls = string(b)
			}
		}
		if m.Role == models.RoleTool {
			msg.ToolResults = m.Text
		}
		out[i] = msg
	}
	return out
}

// ProviderSummarizer adapts an agent completion call (anything that can turn
// a prompt into text) into this package's Summarizer interface. ask is
// typically a Loop's provider wrapped to answer a single non-tool prompt.
type ProviderSummarizer struct {
	ask func(ctx context.Context, prompt string) (string, error)
}

// NewSummarizer builds a ProviderSummarizer backed by ask.
func NewSummarizer(ask func(ctx context.Context, prompt string) (string, error)) *ProviderSummarizer {
	return &ProviderSummarizer{ask: ask}
}

// GenerateSummary implements Summarizer by formatting messages into a prompt
// and delegating to the backing ask function.
func (s *ProviderSummarizer) GenerateSummary(ctx context.Context, messages []*Message, config *SummarizationConfig) (string, error) {
	prompt := "Summarize the following conversation concisely, in under " +
		fmt.Sprint(config.ReserveTokens*CharsPerToken) +
		" characters. Preserve key decisions, open tasks, and tool outcomes.\n\n"
	if config.CustomInstructions != "" {
		prompt += config.CustomInstructions + "\n\n"
	}
	prompt += FormatMessagesForSummary(messages)

	summary, err := s.ask(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("compaction: generating summary: %w", err)
	}
	return summary, nil
}
