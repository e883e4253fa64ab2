package providers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/haasonsaas/agentcore/internal/agent"
	"github.com/haasonsaas/agentcore/internal/providers/toolconv"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// GeminiConfig configures a GeminiProvider.
type GeminiConfig struct {
	APIKey        string
	Model         string
	MaxRetries    int
	RetryDelay    time.Duration
	ContextWindow int
}

// GeminiProvider implements Provider against the Google Gen AI SDK.
type GeminiProvider struct {
	BaseProvider
	client        *genai.Client
	model         string
	contextWindow int
}

func NewGeminiProvider(ctx context.Context, config GeminiConfig) (*GeminiProvider, error) {
	if config.APIKey == "" {
		return nil, errors.New("gemini: API key is required")
	}
	if config.Model == "" {
		config.Model = "gemini-2.0-flash"
	}
	if config.ContextWindow <= 0 {
		config.ContextWindow = 1_000_000
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to create client: %w", err)
	}

	return &GeminiProvider{
		BaseProvider:  NewBaseProvider("gemini", config.MaxRetries, config.RetryDelay),
		client:        client,
		model:         config.Model,
		contextWindow: config.ContextWindow,
	}, nil
}

func (p *GeminiProvider) Name() string          { return "gemini" }
func (p *GeminiProvider) ID() string            { return p.model }
func (p *GeminiProvider) ContextWindow() int    { return p.contextWindow }
func (p *GeminiProvider) SupportsTools() bool   { return true }
func (p *GeminiProvider) SupportsVision() bool  { return true }

func (p *GeminiProvider) Complete(ctx context.Context, messages []models.ChatMessage, tools []agent.ToolSchema) (*CompletionResult, error) {
	contents, system := p.convertMessages(messages)
	config := p.buildConfig(system, tools)

	var resp *genai.GenerateContentResponse
	err := p.Retry(ctx, isRetryableGeminiErr, func() error {
		var callErr error
		resp, callErr = p.client.Models.GenerateContent(ctx, p.model, contents, config)
		return callErr
	})
	if err != nil {
		return nil, NewProviderError("gemini", p.model, err)
	}

	result := &CompletionResult{}
	if resp.UsageMetadata != nil {
		result.Usage = models.Usage{
			InputTokens:  uint64(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: uint64(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				result.Text += part.Text
			}
			if part.FunctionCall != nil {
				args, _ := json.Marshal(part.FunctionCall.Args)
				result.ToolCalls = append(result.ToolCalls, models.ToolCall{
					ID:        generateGeminiToolCallID(part.FunctionCall.Name),
					Name:      part.FunctionCall.Name,
					Arguments: args,
				})
			}
		}
	}
	return result, nil
}

func (p *GeminiProvider) Stream(ctx context.Context, messages []models.ChatMessage) (<-chan agent.StreamEvent, error) {
	return p.StreamWithTools(ctx, messages, nil)
}

// StreamWithTools streams a Gemini response. Gemini never splits a function
// call's arguments across chunks the way OpenAI does — each FunctionCall
// part arrives whole — so each one gets a synthetic, locally-unique index
// and an immediate start/delta/complete triple.
func (p *GeminiProvider) StreamWithTools(ctx context.Context, messages []models.ChatMessage, tools []agent.ToolSchema) (<-chan agent.StreamEvent, error) {
	contents, system := p.convertMessages(messages)
	config := p.buildConfig(system, tools)

	out := make(chan agent.StreamEvent)
	go func() {
		defer close(out)

		var usage models.Usage
		nextIndex := 0

		retryErr := p.Retry(ctx, isRetryableGeminiErr, func() error {
			for resp, err := range p.client.Models.GenerateContentStream(ctx, p.model, contents, config) {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if err != nil {
					return err
				}
				if resp == nil {
					continue
				}
				if resp.UsageMetadata != nil {
					usage.InputTokens = uint64(resp.UsageMetadata.PromptTokenCount)
					usage.OutputTokens = uint64(resp.UsageMetadata.CandidatesTokenCount)
				}
				for _, candidate := range resp.Candidates {
					if candidate.Content == nil {
						continue
					}
					for _, part := range candidate.Content.Parts {
						if part.Text != "" {
							out <- agent.DeltaEvent(part.Text)
						}
						if part.FunctionCall != nil {
							idx := nextIndex
							nextIndex++
							args, _ := json.Marshal(part.FunctionCall.Args)
							out <- agent.ToolCallStartEvent(generateGeminiToolCallID(part.FunctionCall.Name), part.FunctionCall.Name, idx)
							out <- agent.ToolCallArgumentsDeltaEvent(idx, string(args))
							out <- agent.ToolCallCompleteEvent(idx)
						}
					}
				}
			}
			return nil
		})
		if retryErr != nil {
			out <- agent.ErrorEvent(NewProviderError("gemini", p.model, retryErr))
			return
		}
		out <- agent.DoneEvent(usage)
	}()
	return out, nil
}

func (p *GeminiProvider) convertMessages(messages []models.ChatMessage) ([]*genai.Content, string) {
	var result []*genai.Content
	var system string

	for _, msg := range messages {
		if msg.Role == models.RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += msg.Text
			continue
		}

		content := &genai.Content{}
		switch msg.Role {
		case models.RoleAssistant:
			content.Role = genai.RoleModel
		default:
			content.Role = genai.RoleUser
		}

		if msg.Text != "" {
			content.Parts = append(content.Parts, &genai.Part{Text: msg.Text})
		}
		for _, part := range msg.Parts {
			if part.Type == models.PartImage {
				if data, err := base64.StdEncoding.DecodeString(part.Data); err == nil {
					content.Parts = append(content.Parts, &genai.Part{
						InlineData: &genai.Blob{MIMEType: part.MediaType, Data: data},
					})
				}
			}
		}
		for _, call := range msg.ToolCalls {
			var args map[string]any
			if err := json.Unmarshal(call.Arguments, &args); err != nil {
				args = map[string]any{}
			}
			content.Parts = append(content.Parts, &genai.Part{
				FunctionCall: &genai.FunctionCall{Name: call.Name, Args: args},
			})
		}
		if msg.Role == models.RoleTool {
			var response map[string]any
			if err := json.Unmarshal([]byte(msg.Text), &response); err != nil {
				response = map[string]any{"result": msg.Text}
			}
			content.Parts = append(content.Parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{Name: msg.ToolCallID, Response: response},
			})
		}

		if len(content.Parts) > 0 {
			result = append(result, content)
		}
	}
	return result, system
}

func (p *GeminiProvider) buildConfig(system string, tools []agent.ToolSchema) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if system != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	if len(tools) > 0 {
		config.Tools = toolconv.ToGeminiTools(toolSchemasToTools(tools))
	}
	return config
}

// generateGeminiToolCallID uses the function name as the call id: Gemini
// has no call ids of its own, and convertMessages keys each
// FunctionResponse by the Tool message's ToolCallID.
func generateGeminiToolCallID(name string) string {
	return name
}

func isRetryableGeminiErr(err error) bool {
	kind := Classify(err)
	return kind == ErrRateLimit || kind == ErrServerError
}
