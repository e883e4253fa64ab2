package agent

import (
	"context"

	"github.com/haasonsaas/agentcore/internal/compaction"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// CompactionContextWindow bounds a Loop that doesn't otherwise know its
// provider's context size (the narrow Provider interface has no
// ContextWindow method). Callers running against a specific model should
// prefer RunCompactingWithWindow.
const CompactionContextWindow = compaction.DefaultContextWindow

// RunCompacting runs a turn via Run, and on ContextWindowExceededError
// compacts history once (prune, then summarize the dropped portion via the
// same provider) and retries exactly once before giving up. This is the
// caller-side compaction spec.md §4.9 assigns to the loop's caller, wired
// here as a ready-to-use helper rather than left for every caller to
// reimplement.
func (l *Loop) RunCompacting(ctx context.Context, history []models.ChatMessage) (*TurnResult, error) {
	return l.RunCompactingWithWindow(ctx, history, CompactionContextWindow)
}

// RunCompactingWithWindow is RunCompacting with an explicit context window
// size (tokens), used to size the prune/summarize budget precisely.
func (l *Loop) RunCompactingWithWindow(ctx context.Context, history []models.ChatMessage, contextWindow int) (*TurnResult, error) {
	result, err := l.Run(ctx, history)
	var cwErr *ContextWindowExceededError
	if err == nil || !isContextWindowExceeded(err, &cwErr) {
		return result, err
	}

	compacted, compactErr := l.compactHistory(ctx, history, contextWindow)
	if compactErr != nil {
		return nil, compactErr
	}
	return l.Run(ctx, compacted)
}

// isContextWindowExceeded reports whether err is a *ContextWindowExceededError,
// assigning it into target on success.
func isContextWindowExceeded(err error, target **ContextWindowExceededError) bool {
	e, ok := err.(*ContextWindowExceededError)
	if !ok {
		return false
	}
	*target = e
	return true
}

// compactHistory keeps the most recent messages within a share of
// contextWindow and replaces everything older with a single system-role
// summary message generated by the loop's own provider.
func (l *Loop) compactHistory(ctx context.Context, history []models.ChatMessage, contextWindow int) ([]models.ChatMessage, error) {
	msgs := compaction.FromChatMessages(history)
	pruned := compaction.PruneHistoryForContextShare(msgs, contextWindow, compaction.BaseChunkRatio, compaction.DefaultParts)
	if pruned.DroppedMessages == 0 {
		// Nothing prunable by count; fall back to keeping only the last
		// message so the retried turn has a shot at fitting.
		if len(history) <= 1 {
			return history, nil
		}
		pruned.Messages = msgs[len(msgs)-1:]
		pruned.DroppedMessages = len(msgs) - 1
	}

	keptFrom := len(history) - len(pruned.Messages)
	if keptFrom < 0 {
		keptFrom = 0
	}
	dropped := msgs[:keptFrom]
	if len(dropped) == 0 {
		return history[keptFrom:], nil
	}

	summarizer := compaction.NewSummarizer(func(ctx context.Context, prompt string) (string, error) {
		result, err := l.Provider.Complete(ctx, []models.ChatMessage{models.NewUserMessage(prompt)}, nil)
		if err != nil {
			return "", err
		}
		return result.Text, nil
	})

	config := compaction.DefaultSummarizationConfig()
	config.ContextWindow = contextWindow
	summary, err := compaction.SummarizeWithFallback(ctx, dropped, summarizer, config)
	if err != nil {
		return nil, err
	}

	out := make([]models.ChatMessage, 0, len(pruned.Messages)+1)
	out = append(out, models.NewSystemMessage("Summary of earlier conversation:\n"+summary))
	out = append(out, history[keptFrom:]...)
	return out, nil
}
