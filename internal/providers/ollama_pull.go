package providers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/haasonsaas/agentcore/internal/debounce"
)

// PullProgress reports one decoded line of Ollama's pull stream.
type PullProgress struct {
	Status    string `json:"status"`
	Digest    string `json:"digest,omitempty"`
	Total     int64  `json:"total,omitempty"`
	Completed int64  `json:"completed,omitempty"`
}

// PullModel streams a `POST /api/pull` for a local model, coalescing the
// (typically very chatty, several-updates-per-second) progress stream
// through a debounce.Debouncer before invoking onProgress, so a caller
// driving a UI isn't forced to redraw on every byte-count tick.
//
// debounceMs <= 0 disables coalescing and invokes onProgress synchronously
// for every line.
func (p *OllamaProvider) PullModel(ctx context.Context, model string, debounceMs int, onProgress func(PullProgress)) error {
	if strings.TrimSpace(model) == "" {
		return NewProviderError("ollama", model, fmt.Errorf("model is required"))
	}

	body, err := json.Marshal(struct {
		Model  string `json:"model"`
		Stream bool   `json:"stream"`
	}{Model: model, Stream: true})
	if err != nil {
		return NewProviderError("ollama", model, fmt.Errorf("marshal pull request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/pull", strings.NewReader(string(body)))
	if err != nil {
		return NewProviderError("ollama", model, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return NewProviderError("ollama", model, err)
	}
	defer resp.Body.Close()

	if onProgress == nil {
		onProgress = func(PullProgress) {}
	}

	var deb *debounce.Debouncer[PullProgress]
	if debounceMs > 0 {
		deb = debounce.NewDebouncer(
			debounce.WithDebounceMs[PullProgress](debounceMs),
			debounce.WithOnFlush(func(items []*PullProgress) error {
				if len(items) > 0 {
					onProgress(*items[len(items)-1])
				}
				return nil
			}),
		)
		defer deb.Stop()
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var progress PullProgress
		if err := json.Unmarshal([]byte(line), &progress); err != nil {
			return NewProviderError("ollama", model, fmt.Errorf("decode pull progress: %w", err))
		}
		if deb != nil {
			deb.Enqueue(&progress)
		} else {
			onProgress(progress)
		}
	}
	return scanner.Err()
}
