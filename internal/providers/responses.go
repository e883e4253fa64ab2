package providers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"

	"github.com/haasonsaas/agentcore/internal/agent"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// ResponsesConfig configures an OpenAIResponsesProvider.
type ResponsesConfig struct {
	APIKey        string
	BaseURL       string
	Model         string
	MaxRetries    int
	RetryDelay    time.Duration
	ContextWindow int
}

// OpenAIResponsesProvider implements Provider against OpenAI's Responses
// API — a second OpenAI wire format distinct from Chat Completions, used by
// newer reasoning-capable models. It exists alongside OpenAIProvider rather
// than replacing it because not every OpenAI-compatible backend (Azure,
// proxies, Ollama's OpenAI-compatible surface) speaks it.
type OpenAIResponsesProvider struct {
	BaseProvider
	client        openai.Client
	model         string
	contextWindow int
}

func NewOpenAIResponsesProvider(config ResponsesConfig) (*OpenAIResponsesProvider, error) {
	if config.APIKey == "" {
		return nil, errors.New("openai-responses: API key is required")
	}
	if config.Model == "" {
		config.Model = "gpt-4o"
	}
	if config.ContextWindow <= 0 {
		config.ContextWindow = 128_000
	}

	options := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		options = append(options, option.WithBaseURL(config.BaseURL))
	}

	return &OpenAIResponsesProvider{
		BaseProvider:  NewBaseProvider("openai-responses", config.MaxRetries, config.RetryDelay),
		client:        openai.NewClient(options...),
		model:         config.Model,
		contextWindow: config.ContextWindow,
	}, nil
}

func (p *OpenAIResponsesProvider) Name() string          { return "openai-responses" }
func (p *OpenAIResponsesProvider) ID() string            { return p.model }
func (p *OpenAIResponsesProvider) ContextWindow() int    { return p.contextWindow }
func (p *OpenAIResponsesProvider) SupportsTools() bool   { return true }
func (p *OpenAIResponsesProvider) SupportsVision() bool  { return false }

func (p *OpenAIResponsesProvider) Complete(ctx context.Context, messages []models.ChatMessage, tools []agent.ToolSchema) (*CompletionResult, error) {
	params, err := p.buildParams(messages, tools)
	if err != nil {
		return nil, err
	}

	var resp *responses.Response
	err = p.Retry(ctx, isRetryableResponsesErr, func() error {
		var callErr error
		resp, callErr = p.client.Responses.New(ctx, params)
		return callErr
	})
	if err != nil {
		return nil, NewProviderError("openai-responses", p.model, err)
	}

	result := &CompletionResult{
		Usage: models.Usage{
			InputTokens:  uint64(resp.Usage.InputTokens),
			OutputTokens: uint64(resp.Usage.OutputTokens),
		},
	}
	for _, output := range resp.Output {
		switch variant := output.AsAny().(type) {
		case responses.ResponseOutputMessage:
			for _, content := range variant.Content {
				if text := content.AsOutputText(); text.Text != "" {
					result.Text += text.Text
				}
			}
		case responses.ResponseFunctionToolCall:
			result.ToolCalls = append(result.ToolCalls, models.ToolCall{
				ID:        variant.CallID,
				Name:      variant.Name,
				Arguments: json.RawMessage(variant.Arguments),
			})
		}
	}
	return result, nil
}

func (p *OpenAIResponsesProvider) Stream(ctx context.Context, messages []models.ChatMessage) (<-chan agent.StreamEvent, error) {
	return p.StreamWithTools(ctx, messages, nil)
}

// StreamWithTools streams a Responses-API reply. A function-call output
// item's OutputIndex is this backend's position for the whole response
// turn, assigned once at ResponseOutputItemAddedEvent and reused by every
// subsequent delta for that item — so, like Anthropic and Bedrock, it
// never needs remapping before reaching ToolCallAssembler.
func (p *OpenAIResponsesProvider) StreamWithTools(ctx context.Context, messages []models.ChatMessage, tools []agent.ToolSchema) (<-chan agent.StreamEvent, error) {
	params, err := p.buildParams(messages, tools)
	if err != nil {
		return nil, err
	}

	out := make(chan agent.StreamEvent)
	go func() {
		defer close(out)

		var usage models.Usage
		retryErr := p.Retry(ctx, isRetryableResponsesErr, func() error {
			stream := p.client.Responses.NewStreaming(ctx, params)
			for stream.Next() {
				event := stream.Current()
				switch variant := event.AsAny().(type) {
				case responses.ResponseOutputItemAddedEvent:
					if call, ok := variant.Item.AsAny().(responses.ResponseFunctionToolCall); ok {
						out <- agent.ToolCallStartEvent(call.CallID, call.Name, int(variant.OutputIndex))
					}
				case responses.ResponseTextDeltaEvent:
					if variant.Delta != "" {
						out <- agent.DeltaEvent(variant.Delta)
					}
				case responses.ResponseFunctionCallArgumentsDeltaEvent:
					if variant.Delta != "" {
						out <- agent.ToolCallArgumentsDeltaEvent(int(variant.OutputIndex), variant.Delta)
					}
				case responses.ResponseOutputItemDoneEvent:
					if _, ok := variant.Item.AsAny().(responses.ResponseFunctionToolCall); ok {
						out <- agent.ToolCallCompleteEvent(int(variant.OutputIndex))
					}
				case responses.ResponseCompletedEvent:
					if variant.Response.Usage.InputTokens > 0 {
						usage.InputTokens = uint64(variant.Response.Usage.InputTokens)
					}
					if variant.Response.Usage.OutputTokens > 0 {
						usage.OutputTokens = uint64(variant.Response.Usage.OutputTokens)
					}
				}
			}
			return stream.Err()
		})
		if retryErr != nil {
			out <- agent.ErrorEvent(NewProviderError("openai-responses", p.model, retryErr))
			return
		}
		out <- agent.DoneEvent(usage)
	}()
	return out, nil
}

func (p *OpenAIResponsesProvider) buildParams(messages []models.ChatMessage, tools []agent.ToolSchema) (responses.ResponseNewParams, error) {
	items, err := p.convertMessages(messages)
	if err != nil {
		return responses.ResponseNewParams{}, err
	}

	params := responses.ResponseNewParams{
		Input: responses.ResponseNewParamsInputUnion{OfInputItemList: items},
		Model: openai.ChatModel(p.model),
		Store: openai.Bool(false),
	}
	if len(tools) > 0 {
		toolParams, err := convertResponsesTools(tools)
		if err != nil {
			return responses.ResponseNewParams{}, err
		}
		params.Tools = toolParams
	}
	return params, nil
}

func (p *OpenAIResponsesProvider) convertMessages(messages []models.ChatMessage) ([]responses.ResponseInputItemUnionParam, error) {
	var items []responses.ResponseInputItemUnionParam

	for _, msg := range messages {
		switch msg.Role {
		case models.RoleSystem:
			items = append(items, responses.ResponseInputItemParamOfMessage(msg.Text, responses.EasyInputMessageRoleSystem))
		case models.RoleUser:
			items = append(items, responses.ResponseInputItemParamOfMessage(msg.Text, responses.EasyInputMessageRoleUser))
		case models.RoleAssistant:
			if msg.Text != "" {
				items = append(items, responses.ResponseInputItemParamOfMessage(msg.Text, responses.EasyInputMessageRoleAssistant))
			}
			for _, call := range msg.ToolCalls {
				items = append(items, responses.ResponseInputItemParamOfFunctionCall(string(call.Arguments), call.ID, call.Name))
			}
		case models.RoleTool:
			items = append(items, responses.ResponseInputItemParamOfFunctionCallOutput(msg.ToolCallID, msg.Text))
		}
	}
	return items, nil
}

func convertResponsesTools(tools []agent.ToolSchema) ([]responses.ToolUnionParam, error) {
	result := make([]responses.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		var schemaMap map[string]any
		if err := json.Unmarshal(tool.Parameters, &schemaMap); err != nil {
			schemaMap = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		result = append(result, responses.ToolUnionParam{
			OfFunction: &responses.FunctionToolParam{
				Name:        tool.Name,
				Description: param.NewOpt(tool.Description),
				Parameters:  schemaMap,
			},
		})
	}
	return result, nil
}

func isRetryableResponsesErr(err error) bool {
	kind := Classify(err)
	return kind == ErrRateLimit || kind == ErrServerError
}
