package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/haasonsaas/agentcore/internal/agent"
	"github.com/haasonsaas/agentcore/internal/providers/toolconv"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// AnthropicConfig configures an AnthropicProvider.
type AnthropicConfig struct {
	APIKey        string
	BaseURL       string
	Model         string
	MaxRetries    int
	RetryDelay    time.Duration
	ContextWindow int
}

// AnthropicProvider implements Provider against the Messages API.
type AnthropicProvider struct {
	BaseProvider
	client        anthropic.Client
	model         string
	contextWindow int
}

func NewAnthropicProvider(config AnthropicConfig) (*AnthropicProvider, error) {
	if config.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	if config.Model == "" {
		config.Model = "claude-sonnet-4-20250514"
	}
	if config.ContextWindow <= 0 {
		config.ContextWindow = 200_000
	}

	options := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if strings.TrimSpace(config.BaseURL) != "" {
		options = append(options, option.WithBaseURL(config.BaseURL))
	}

	return &AnthropicProvider{
		BaseProvider:  NewBaseProvider("anthropic", config.MaxRetries, config.RetryDelay),
		client:        anthropic.NewClient(options...),
		model:         config.Model,
		contextWindow: config.ContextWindow,
	}, nil
}

func (p *AnthropicProvider) Name() string          { return "anthropic" }
func (p *AnthropicProvider) ID() string             { return p.model }
func (p *AnthropicProvider) ContextWindow() int     { return p.contextWindow }
func (p *AnthropicProvider) SupportsTools() bool    { return true }
func (p *AnthropicProvider) SupportsVision() bool   { return true }

func (p *AnthropicProvider) Complete(ctx context.Context, messages []models.ChatMessage, tools []agent.ToolSchema) (*CompletionResult, error) {
	params, err := p.buildParams(messages, tools)
	if err != nil {
		return nil, err
	}

	var msg *anthropic.Message
	err = p.Retry(ctx, isRetryableAnthropicErr, func() error {
		var callErr error
		msg, callErr = p.client.Messages.New(ctx, params)
		return callErr
	})
	if err != nil {
		return nil, NewProviderError("anthropic", p.model, err)
	}

	result := &CompletionResult{
		Usage: models.Usage{
			InputTokens:     uint64(msg.Usage.InputTokens),
			OutputTokens:    uint64(msg.Usage.OutputTokens),
			CacheReadTokens:  uint64(msg.Usage.CacheReadInputTokens),
			CacheWriteTokens: uint64(msg.Usage.CacheCreationInputTokens),
		},
	}
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			result.Text += variant.Text
		case anthropic.ToolUseBlock:
			result.ToolCalls = append(result.ToolCalls, models.ToolCall{
				ID:        variant.ID,
				Name:      variant.Name,
				Arguments: json.RawMessage(variant.Input),
			})
		}
	}
	return result, nil
}

func (p *AnthropicProvider) Stream(ctx context.Context, messages []models.ChatMessage) (<-chan agent.StreamEvent, error) {
	return p.StreamWithTools(ctx, messages, nil)
}

func (p *AnthropicProvider) StreamWithTools(ctx context.Context, messages []models.ChatMessage, tools []agent.ToolSchema) (<-chan agent.StreamEvent, error) {
	params, err := p.buildParams(messages, tools)
	if err != nil {
		return nil, err
	}

	out := make(chan agent.StreamEvent)
	go func() {
		defer close(out)

		var stream *ssestream.Stream[anthropic.MessageStreamEventUnion]
		retryErr := p.Retry(ctx, isRetryableAnthropicErr, func() error {
			stream = p.client.Messages.NewStreaming(ctx, params)
			return stream.Err()
		})
		if retryErr != nil {
			out <- agent.ErrorEvent(NewProviderError("anthropic", p.model, retryErr))
			return
		}

		p.processStream(stream, out)
	}()
	return out, nil
}

// processStream translates Anthropic's content-block SSE events into the
// normalized StreamEvent sum. Anthropic never interleaves content blocks —
// one opens, its deltas follow, then it closes before the next opens — so
// Index here is always the position of the block currently open, matching
// what ToolCallAssembler expects.
func (p *AnthropicProvider) processStream(stream *ssestream.Stream[anthropic.MessageStreamEventUnion], out chan<- agent.StreamEvent) {
	var usage models.Usage
	var openToolIndex = -1

	for stream.Next() {
		event := stream.Current()

		switch event.Type {
		case "message_start":
			ms := event.AsMessageStart()
			usage.InputTokens = uint64(ms.Message.Usage.InputTokens)

		case "content_block_start":
			cbs := event.AsContentBlockStart()
			if cbs.ContentBlock.Type == "tool_use" {
				tu := cbs.ContentBlock.AsToolUse()
				openToolIndex = int(cbs.Index)
				out <- agent.ToolCallStartEvent(tu.ID, tu.Name, openToolIndex)
			}

		case "content_block_delta":
			cbd := event.AsContentBlockDelta()
			switch cbd.Delta.Type {
			case "text_delta":
				if cbd.Delta.Text != "" {
					out <- agent.DeltaEvent(cbd.Delta.Text)
				}
			case "input_json_delta":
				if cbd.Delta.PartialJSON != "" {
					out <- agent.ToolCallArgumentsDeltaEvent(int(cbd.Index), cbd.Delta.PartialJSON)
				}
			}

		case "content_block_stop":
			cbs := event.AsContentBlockStop()
			if int(cbs.Index) == openToolIndex {
				out <- agent.ToolCallCompleteEvent(int(cbs.Index))
				openToolIndex = -1
			}

		case "message_delta":
			md := event.AsMessageDelta()
			usage.OutputTokens = uint64(md.Usage.OutputTokens)

		case "message_stop":
			out <- agent.DoneEvent(usage)
			return

		case "error":
			out <- agent.ErrorEvent(NewProviderError("anthropic", p.model, errors.New("anthropic stream error")))
			return
		}
	}

	if err := stream.Err(); err != nil {
		out <- agent.ErrorEvent(NewProviderError("anthropic", p.model, err))
	}
}

func (p *AnthropicProvider) buildParams(messages []models.ChatMessage, tools []agent.ToolSchema) (anthropic.MessageNewParams, error) {
	converted, system, err := p.convertMessages(messages)
	if err != nil {
		return anthropic.MessageNewParams{}, fmt.Errorf("anthropic: failed to convert messages: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		Messages:  converted,
		MaxTokens: 4096,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(tools) > 0 {
		toolParams, err := toolconv.ToAnthropicTools(toolSchemasToTools(tools))
		if err != nil {
			return anthropic.MessageNewParams{}, fmt.Errorf("anthropic: failed to convert tools: %w", err)
		}
		params.Tools = toolParams
	}
	return params, nil
}

func (p *AnthropicProvider) convertMessages(messages []models.ChatMessage) ([]anthropic.MessageParam, string, error) {
	var result []anthropic.MessageParam
	var system strings.Builder

	for _, msg := range messages {
		if msg.Role == models.RoleSystem {
			if system.Len() > 0 {
				system.WriteString("\n\n")
			}
			system.WriteString(msg.Text)
			continue
		}

		var content []anthropic.ContentBlockParamUnion
		if msg.Role == models.RoleTool {
			content = append(content, anthropic.NewToolResultBlock(msg.ToolCallID, msg.Text, false))
		} else {
			if msg.Text != "" {
				content = append(content, anthropic.NewTextBlock(msg.Text))
			}
			for _, part := range msg.Parts {
				if part.Type == models.PartImage {
					content = append(content, anthropic.NewImageBlockBase64(part.MediaType, part.Data))
				}
			}
			for _, call := range msg.ToolCalls {
				var input map[string]any
				if err := json.Unmarshal(call.Arguments, &input); err != nil {
					return nil, "", fmt.Errorf("invalid tool call arguments: %w", err)
				}
				content = append(content, anthropic.NewToolUseBlock(call.ID, input, call.Name))
			}
		}

		var message anthropic.MessageParam
		if msg.Role == models.RoleAssistant {
			message = anthropic.NewAssistantMessage(content...)
		} else {
			message = anthropic.NewUserMessage(content...)
		}
		result = append(result, message)
	}

	return result, system.String(), nil
}

// toolSchemasToTools adapts the registry's flattened ToolSchema into the
// agent.Tool shape toolconv expects, since streaming conversion only needs
// name/description/schema, never Execute.
func toolSchemasToTools(schemas []agent.ToolSchema) []agent.Tool {
	out := make([]agent.Tool, len(schemas))
	for i, s := range schemas {
		out[i] = schemaOnlyTool(s)
	}
	return out
}

type schemaOnlyTool agent.ToolSchema

func (t schemaOnlyTool) Name() string               { return t.Name }
func (t schemaOnlyTool) Description() string        { return t.Description }
func (t schemaOnlyTool) Schema() json.RawMessage     { return t.Parameters }
func (t schemaOnlyTool) Execute(context.Context, json.RawMessage) (*agent.ToolResult, error) {
	return nil, errors.New("schemaOnlyTool: execute not supported")
}

func isRetryableAnthropicErr(err error) bool {
	kind := Classify(err)
	return kind == ErrRateLimit || kind == ErrServerError
}
