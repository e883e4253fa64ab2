package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/haasonsaas/agentcore/internal/agent"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// OpenAIConfig configures an OpenAIProvider.
type OpenAIConfig struct {
	APIKey        string
	BaseURL       string
	Model         string
	MaxRetries    int
	RetryDelay    time.Duration
	ContextWindow int
}

// OpenAIProvider implements Provider against the Chat Completions API.
type OpenAIProvider struct {
	BaseProvider
	client        *openai.Client
	model         string
	contextWindow int
}

func NewOpenAIProvider(config OpenAIConfig) (*OpenAIProvider, error) {
	if config.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	if config.Model == "" {
		config.Model = openai.GPT4o
	}
	if config.ContextWindow <= 0 {
		config.ContextWindow = 128_000
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIProvider{
		BaseProvider:  NewBaseProvider("openai", config.MaxRetries, config.RetryDelay),
		client:        openai.NewClientWithConfig(clientConfig),
		model:         config.Model,
		contextWindow: config.ContextWindow,
	}, nil
}

func (p *OpenAIProvider) Name() string          { return "openai" }
func (p *OpenAIProvider) ID() string            { return p.model }
func (p *OpenAIProvider) ContextWindow() int    { return p.contextWindow }
func (p *OpenAIProvider) SupportsTools() bool   { return true }
func (p *OpenAIProvider) SupportsVision() bool  { return true }

func (p *OpenAIProvider) Complete(ctx context.Context, messages []models.ChatMessage, tools []agent.ToolSchema) (*CompletionResult, error) {
	req := openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: convertOpenAIMessages(messages),
	}
	if len(tools) > 0 {
		req.Tools = convertOpenAITools(tools)
	}

	var resp openai.ChatCompletionResponse
	err := p.Retry(ctx, isRetryableOpenAIErr, func() error {
		var callErr error
		resp, callErr = p.client.CreateChatCompletion(ctx, req)
		return callErr
	})
	if err != nil {
		return nil, NewProviderError("openai", p.model, err)
	}
	if len(resp.Choices) == 0 {
		return nil, NewProviderError("openai", p.model, errors.New("openai: no choices returned"))
	}

	choice := resp.Choices[0].Message
	result := &CompletionResult{
		Text: choice.Content,
		Usage: models.Usage{
			InputTokens:  uint64(resp.Usage.PromptTokens),
			OutputTokens: uint64(resp.Usage.CompletionTokens),
		},
	}
	for _, tc := range choice.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, models.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	return result, nil
}

func (p *OpenAIProvider) Stream(ctx context.Context, messages []models.ChatMessage) (<-chan agent.StreamEvent, error) {
	return p.StreamWithTools(ctx, messages, nil)
}

func (p *OpenAIProvider) StreamWithTools(ctx context.Context, messages []models.ChatMessage, tools []agent.ToolSchema) (<-chan agent.StreamEvent, error) {
	req := openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: convertOpenAIMessages(messages),
		Stream:   true,
	}
	if len(tools) > 0 {
		req.Tools = convertOpenAITools(tools)
	}

	var stream *openai.ChatCompletionStream
	err := p.Retry(ctx, isRetryableOpenAIErr, func() error {
		var callErr error
		stream, callErr = p.client.CreateChatCompletionStream(ctx, req)
		return callErr
	})
	if err != nil {
		return nil, NewProviderError("openai", p.model, err)
	}

	out := make(chan agent.StreamEvent)
	go p.processStream(stream, out)
	return out, nil
}

// processStream translates OpenAI's delta.tool_calls[].index correlation key
// into StreamEvent.Index verbatim — the same index the API uses to
// interleave multiple concurrent tool calls across chunks. It is opaque:
// ToolCallAssembler, not this method, is responsible for mapping it to a
// list position.
func (p *OpenAIProvider) processStream(stream *openai.ChatCompletionStream, out chan<- agent.StreamEvent) {
	defer close(out)
	defer stream.Close()

	var usage models.Usage
	seenIndex := make(map[int]bool)

	for {
		resp, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				for idx := range seenIndex {
					out <- agent.ToolCallCompleteEvent(idx)
				}
				out <- agent.DoneEvent(usage)
				return
			}
			out <- agent.ErrorEvent(NewProviderError("openai", p.model, err))
			return
		}

		if resp.Usage != nil {
			usage.InputTokens = uint64(resp.Usage.PromptTokens)
			usage.OutputTokens = uint64(resp.Usage.CompletionTokens)
		}

		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta

		if delta.Content != "" {
			out <- agent.DeltaEvent(delta.Content)
		}

		for _, tc := range delta.ToolCalls {
			index := 0
			if tc.Index != nil {
				index = *tc.Index
			}
			if !seenIndex[index] {
				seenIndex[index] = true
				out <- agent.ToolCallStartEvent(tc.ID, tc.Function.Name, index)
			}
			if tc.Function.Arguments != "" {
				out <- agent.ToolCallArgumentsDeltaEvent(index, tc.Function.Arguments)
			}
		}

		if resp.Choices[0].FinishReason == openai.FinishReasonToolCalls {
			for idx := range seenIndex {
				out <- agent.ToolCallCompleteEvent(idx)
			}
			seenIndex = make(map[int]bool)
		}
	}
}

func convertOpenAIMessages(messages []models.ChatMessage) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case models.RoleSystem:
			result = append(result, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: msg.Text})
		case models.RoleUser:
			if msg.HasImages() {
				result = append(result, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, MultiContent: convertOpenAIParts(msg)})
			} else {
				result = append(result, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: msg.Text})
			}
		case models.RoleAssistant:
			oaiMsg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: msg.Text}
			for _, tc := range msg.ToolCalls {
				oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Arguments),
					},
				})
			}
			result = append(result, oaiMsg)
		case models.RoleTool:
			result = append(result, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    msg.Text,
				ToolCallID: msg.ToolCallID,
			})
		}
	}
	return result
}

func convertOpenAIParts(msg models.ChatMessage) []openai.ChatMessagePart {
	parts := make([]openai.ChatMessagePart, 0, len(msg.Parts)+1)
	if msg.Text != "" {
		parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: msg.Text})
	}
	for _, part := range msg.Parts {
		switch part.Type {
		case models.PartText:
			parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: part.Text})
		case models.PartImage:
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    "data:" + part.MediaType + ";base64," + part.Data,
					Detail: openai.ImageURLDetailAuto,
				},
			})
		}
	}
	return parts
}

func convertOpenAITools(tools []agent.ToolSchema) []openai.Tool {
	result := make([]openai.Tool, len(tools))
	for i, tool := range tools {
		var schemaMap map[string]any
		if err := json.Unmarshal(tool.Parameters, &schemaMap); err != nil {
			schemaMap = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  schemaMap,
			},
		}
	}
	return result
}

func isRetryableOpenAIErr(err error) bool {
	kind := Classify(err)
	return kind == ErrRateLimit || kind == ErrServerError
}
