package providers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/haasonsaas/agentcore/internal/agent"
	"github.com/haasonsaas/agentcore/internal/providers/toolconv"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// OllamaConfig configures the Ollama provider.
type OllamaConfig struct {
	BaseURL       string
	Model         string
	Timeout       time.Duration
	ContextWindow int
}

// OllamaProvider implements Provider against a local Ollama daemon's
// /api/chat endpoint. Unlike the hosted providers, there is no SDK: Ollama
// speaks newline-delimited JSON over plain HTTP.
type OllamaProvider struct {
	client        *http.Client
	baseURL       string
	model         string
	contextWindow int
}

func NewOllamaProvider(cfg OllamaConfig) *OllamaProvider {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	contextWindow := cfg.ContextWindow
	if contextWindow <= 0 {
		contextWindow = 8192
	}
	return &OllamaProvider{
		client:        &http.Client{Timeout: timeout},
		baseURL:       baseURL,
		model:         strings.TrimSpace(cfg.Model),
		contextWindow: contextWindow,
	}
}

func (p *OllamaProvider) Name() string          { return "ollama" }
func (p *OllamaProvider) ID() string            { return p.model }
func (p *OllamaProvider) ContextWindow() int    { return p.contextWindow }
func (p *OllamaProvider) SupportsTools() bool   { return true }
func (p *OllamaProvider) SupportsVision() bool  { return false }

func (p *OllamaProvider) Complete(ctx context.Context, messages []models.ChatMessage, tools []agent.ToolSchema) (*CompletionResult, error) {
	events, err := p.streamChat(ctx, messages, tools)
	if err != nil {
		return nil, err
	}

	assembler := agent.NewToolCallAssembler()
	for ev := range events {
		if assembler.Apply(ev) {
			break
		}
	}
	if err := assembler.Err(); err != nil {
		return nil, err
	}
	return &CompletionResult{Text: assembler.Text(), ToolCalls: assembler.ToolCalls(), Usage: assembler.Usage()}, nil
}

func (p *OllamaProvider) Stream(ctx context.Context, messages []models.ChatMessage) (<-chan agent.StreamEvent, error) {
	return p.StreamWithTools(ctx, messages, nil)
}

func (p *OllamaProvider) StreamWithTools(ctx context.Context, messages []models.ChatMessage, tools []agent.ToolSchema) (<-chan agent.StreamEvent, error) {
	return p.streamChat(ctx, messages, tools)
}

func (p *OllamaProvider) streamChat(ctx context.Context, messages []models.ChatMessage, tools []agent.ToolSchema) (<-chan agent.StreamEvent, error) {
	if p.model == "" {
		return nil, NewProviderError("ollama", "", errors.New("model is required"))
	}

	payload := ollamaChatRequest{Model: p.model, Stream: true, Messages: buildOllamaMessages(messages)}
	if len(tools) > 0 {
		payload.Tools = toolconv.ToOpenAITools(toolSchemasToTools(tools))
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, NewProviderError("ollama", p.model, fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, NewProviderError("ollama", p.model, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, NewProviderError("ollama", p.model, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return nil, NewProviderError("ollama", p.model, fmt.Errorf("ollama status %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody))))
	}

	out := make(chan agent.StreamEvent)
	go p.streamResponse(ctx, resp.Body, out)
	return out, nil
}

func (p *OllamaProvider) streamResponse(ctx context.Context, body io.ReadCloser, out chan<- agent.StreamEvent) {
	defer close(out)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	var usage models.Usage
	nextIndex := 0
	emitted := map[string]struct{}{}

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			out <- agent.ErrorEvent(ctx.Err())
			return
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var resp ollamaChatResponse
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			out <- agent.ErrorEvent(NewProviderError("ollama", p.model, fmt.Errorf("decode response: %w", err)))
			return
		}
		if resp.Error != "" {
			out <- agent.ErrorEvent(NewProviderError("ollama", p.model, errors.New(resp.Error)))
			return
		}
		if resp.Message != nil {
			if resp.Message.Content != "" {
				out <- agent.DeltaEvent(resp.Message.Content)
			}
			for _, tc := range resp.Message.ToolCalls {
				key := toolCallKey(tc)
				if key == "" {
					key = uuid.NewString()
				}
				if _, seen := emitted[key]; seen {
					continue
				}
				emitted[key] = struct{}{}

				idx := nextIndex
				nextIndex++
				args := tc.Function.Arguments
				if len(args) == 0 {
					args = json.RawMessage(`{}`)
				}
				id := strings.TrimSpace(tc.ID)
				if id == "" {
					id = uuid.NewString()
				}
				out <- agent.ToolCallStartEvent(id, strings.TrimSpace(tc.Function.Name), idx)
				out <- agent.ToolCallArgumentsDeltaEvent(idx, string(args))
				out <- agent.ToolCallCompleteEvent(idx)
			}
		}
		if resp.Done {
			usage.InputTokens = uint64(resp.PromptEvalCount)
			usage.OutputTokens = uint64(resp.EvalCount)
			out <- agent.DoneEvent(usage)
			return
		}
	}

	if err := scanner.Err(); err != nil {
		out <- agent.ErrorEvent(NewProviderError("ollama", p.model, err))
	}
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Tools    []openai.Tool       `json:"tools,omitempty"`
	Stream   bool                `json:"stream"`
}

type ollamaChatMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content,omitempty"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
	ToolName  string           `json:"tool_name,omitempty"`
}

type ollamaChatResponse struct {
	Message         *ollamaChatMessage `json:"message"`
	Done            bool               `json:"done"`
	Error           string             `json:"error"`
	EvalCount       int                `json:"eval_count"`
	PromptEvalCount int                `json:"prompt_eval_count"`
}

type ollamaToolCall struct {
	ID       string             `json:"id,omitempty"`
	Type     string             `json:"type,omitempty"`
	Function ollamaToolFunction `json:"function"`
}

type ollamaToolFunction struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

func buildOllamaMessages(messages []models.ChatMessage) []ollamaChatMessage {
	result := make([]ollamaChatMessage, 0, len(messages))
	toolNames := map[string]string{}
	for _, msg := range messages {
		for _, tc := range msg.ToolCalls {
			if tc.ID != "" && tc.Name != "" {
				toolNames[tc.ID] = tc.Name
			}
		}
	}

	for _, msg := range messages {
		switch msg.Role {
		case models.RoleSystem:
			result = append(result, ollamaChatMessage{Role: "system", Content: msg.Text})
		case models.RoleAssistant:
			oMsg := ollamaChatMessage{Role: "assistant", Content: msg.Text}
			for _, tc := range msg.ToolCalls {
				args := tc.Arguments
				if len(args) == 0 {
					args = json.RawMessage(`{}`)
				}
				oMsg.ToolCalls = append(oMsg.ToolCalls, ollamaToolCall{
					ID:       tc.ID,
					Type:     "function",
					Function: ollamaToolFunction{Name: tc.Name, Arguments: args},
				})
			}
			result = append(result, oMsg)
		case models.RoleTool:
			result = append(result, ollamaChatMessage{
				Role:     "tool",
				Content:  msg.Text,
				ToolName: toolNames[msg.ToolCallID],
			})
		default:
			result = append(result, ollamaChatMessage{Role: "user", Content: msg.Text})
		}
	}
	return result
}

func toolCallKey(tc ollamaToolCall) string {
	if strings.TrimSpace(tc.ID) != "" {
		return strings.TrimSpace(tc.ID)
	}
	name := strings.TrimSpace(tc.Function.Name)
	args := strings.TrimSpace(string(tc.Function.Arguments))
	if name == "" && args == "" {
		return ""
	}
	return name + ":" + args
}
