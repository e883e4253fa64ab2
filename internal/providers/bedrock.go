package providers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/haasonsaas/agentcore/internal/agent"
	"github.com/haasonsaas/agentcore/internal/providers/toolconv"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// BedrockConfig configures a BedrockProvider.
type BedrockConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Model           string
	MaxRetries      int
	RetryDelay      time.Duration
	ContextWindow   int
}

// BedrockProvider implements Provider against the AWS Bedrock Converse API,
// giving access to any Converse-compatible foundation model (Anthropic,
// Titan, Llama, Mistral, Cohere) behind one wire format.
type BedrockProvider struct {
	BaseProvider
	client        *bedrockruntime.Client
	model         string
	contextWindow int
}

func NewBedrockProvider(ctx context.Context, cfg BedrockConfig) (*BedrockProvider, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.Model == "" {
		cfg.Model = "anthropic.claude-3-sonnet-20240229-v1:0"
	}
	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = 200_000
	}

	var awsCfg aws.Config
	var err error
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.Region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken,
			)),
		)
	} else {
		awsCfg, err = config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	}
	if err != nil {
		return nil, fmt.Errorf("bedrock: failed to load AWS config: %w", err)
	}

	return &BedrockProvider{
		BaseProvider:  NewBaseProvider("bedrock", cfg.MaxRetries, cfg.RetryDelay),
		client:        bedrockruntime.NewFromConfig(awsCfg),
		model:         cfg.Model,
		contextWindow: cfg.ContextWindow,
	}, nil
}

func (p *BedrockProvider) Name() string          { return "bedrock" }
func (p *BedrockProvider) ID() string            { return p.model }
func (p *BedrockProvider) ContextWindow() int    { return p.contextWindow }
func (p *BedrockProvider) SupportsTools() bool   { return true }
func (p *BedrockProvider) SupportsVision() bool  { return true }

func (p *BedrockProvider) Complete(ctx context.Context, messages []models.ChatMessage, tools []agent.ToolSchema) (*CompletionResult, error) {
	req, err := p.buildRequest(messages, tools)
	if err != nil {
		return nil, err
	}

	var resp *bedrockruntime.ConverseOutput
	retryErr := p.Retry(ctx, isRetryableBedrockErr, func() error {
		var callErr error
		resp, callErr = p.client.Converse(ctx, &bedrockruntime.ConverseInput{
			ModelId:         req.ModelId,
			Messages:        req.Messages,
			System:          req.System,
			InferenceConfig: req.InferenceConfig,
			ToolConfig:      req.ToolConfig,
		})
		return callErr
	})
	if retryErr != nil {
		return nil, NewProviderError("bedrock", p.model, retryErr)
	}

	result := &CompletionResult{}
	if resp.Usage != nil {
		result.Usage = models.Usage{
			InputTokens:  uint64(aws.ToInt32(resp.Usage.InputTokens)),
			OutputTokens: uint64(aws.ToInt32(resp.Usage.OutputTokens)),
		}
	}
	if output, ok := resp.Output.(*types.ConverseOutputMemberMessage); ok {
		for _, block := range output.Value.Content {
			switch b := block.(type) {
			case *types.ContentBlockMemberText:
				result.Text += b.Value
			case *types.ContentBlockMemberToolUse:
				args, _ := json.Marshal(b.Value.Input)
				result.ToolCalls = append(result.ToolCalls, models.ToolCall{
					ID:        aws.ToString(b.Value.ToolUseId),
					Name:      aws.ToString(b.Value.Name),
					Arguments: args,
				})
			}
		}
	}
	return result, nil
}

func (p *BedrockProvider) Stream(ctx context.Context, messages []models.ChatMessage) (<-chan agent.StreamEvent, error) {
	return p.StreamWithTools(ctx, messages, nil)
}

func (p *BedrockProvider) StreamWithTools(ctx context.Context, messages []models.ChatMessage, tools []agent.ToolSchema) (<-chan agent.StreamEvent, error) {
	req, err := p.buildRequest(messages, tools)
	if err != nil {
		return nil, err
	}

	var stream *bedrockruntime.ConverseStreamOutput
	retryErr := p.Retry(ctx, isRetryableBedrockErr, func() error {
		var callErr error
		stream, callErr = p.client.ConverseStream(ctx, req)
		return callErr
	})
	if retryErr != nil {
		return nil, NewProviderError("bedrock", p.model, retryErr)
	}

	out := make(chan agent.StreamEvent)
	go p.processStream(ctx, stream, out)
	return out, nil
}

// processStream translates Bedrock's Converse event stream. Like Anthropic,
// Bedrock opens and closes one content block at a time, so the block's own
// position in the conversation is its index.
func (p *BedrockProvider) processStream(ctx context.Context, stream *bedrockruntime.ConverseStreamOutput, out chan<- agent.StreamEvent) {
	defer close(out)

	eventStream := stream.GetStream()
	defer eventStream.Close()

	var usage models.Usage
	openIndex := -1
	blockIndex := 0

	eventChan := eventStream.Events()
	for {
		select {
		case <-ctx.Done():
			out <- agent.ErrorEvent(ctx.Err())
			return
		case event, ok := <-eventChan:
			if !ok {
				if err := eventStream.Err(); err != nil {
					out <- agent.ErrorEvent(NewProviderError("bedrock", p.model, err))
					return
				}
				out <- agent.DoneEvent(usage)
				return
			}

			switch ev := event.(type) {
			case *types.ConverseStreamOutputMemberContentBlockStart:
				if toolUse, ok := ev.Value.Start.(*types.ContentBlockStartMemberToolUse); ok {
					openIndex = blockIndex
					out <- agent.ToolCallStartEvent(aws.ToString(toolUse.Value.ToolUseId), aws.ToString(toolUse.Value.Name), openIndex)
				}

			case *types.ConverseStreamOutputMemberContentBlockDelta:
				switch delta := ev.Value.Delta.(type) {
				case *types.ContentBlockDeltaMemberText:
					if delta.Value != "" {
						out <- agent.DeltaEvent(delta.Value)
					}
				case *types.ContentBlockDeltaMemberToolUse:
					if delta.Value.Input != nil {
						out <- agent.ToolCallArgumentsDeltaEvent(openIndex, *delta.Value.Input)
					}
				}

			case *types.ConverseStreamOutputMemberContentBlockStop:
				if openIndex >= 0 {
					out <- agent.ToolCallCompleteEvent(openIndex)
					openIndex = -1
				}
				blockIndex++

			case *types.ConverseStreamOutputMemberMessageStop:
				out <- agent.DoneEvent(usage)
				return

			case *types.ConverseStreamOutputMemberMetadata:
				if ev.Value.Usage != nil {
					usage.InputTokens = uint64(aws.ToInt32(ev.Value.Usage.InputTokens))
					usage.OutputTokens = uint64(aws.ToInt32(ev.Value.Usage.OutputTokens))
				}
			}
		}
	}
}

func (p *BedrockProvider) buildRequest(messages []models.ChatMessage, tools []agent.ToolSchema) (*bedrockruntime.ConverseStreamInput, error) {
	converted, system, err := p.convertMessages(messages)
	if err != nil {
		return nil, fmt.Errorf("bedrock: failed to convert messages: %w", err)
	}

	req := &bedrockruntime.ConverseStreamInput{
		ModelId:  aws.String(p.model),
		Messages: converted,
	}
	if system != "" {
		req.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: system}}
	}
	if len(tools) > 0 {
		req.ToolConfig = toolconv.ToBedrockTools(toolSchemasToTools(tools))
	}
	return req, nil
}

func (p *BedrockProvider) convertMessages(messages []models.ChatMessage) ([]types.Message, string, error) {
	var result []types.Message
	var system strings.Builder

	for _, msg := range messages {
		if msg.Role == models.RoleSystem {
			if system.Len() > 0 {
				system.WriteString("\n\n")
			}
			system.WriteString(msg.Text)
			continue
		}

		var content []types.ContentBlock
		switch msg.Role {
		case models.RoleTool:
			content = append(content, &types.ContentBlockMemberToolResult{
				Value: types.ToolResultBlock{
					ToolUseId: aws.String(msg.ToolCallID),
					Content:   []types.ToolResultContentBlock{&types.ToolResultContentBlockMemberText{Value: msg.Text}},
				},
			})
		default:
			if msg.Text != "" {
				content = append(content, &types.ContentBlockMemberText{Value: msg.Text})
			}
			for _, part := range msg.Parts {
				if part.Type != models.PartImage {
					continue
				}
				data, err := base64.StdEncoding.DecodeString(part.Data)
				if err != nil {
					continue
				}
				format, ok := bedrockImageFormat(part.MediaType)
				if !ok {
					continue
				}
				content = append(content, &types.ContentBlockMemberImage{
					Value: types.ImageBlock{Format: format, Source: &types.ImageSourceMemberBytes{Value: data}},
				})
			}
			for _, call := range msg.ToolCalls {
				var input any
				if err := json.Unmarshal(call.Arguments, &input); err != nil {
					input = map[string]any{}
				}
				content = append(content, &types.ContentBlockMemberToolUse{
					Value: types.ToolUseBlock{
						ToolUseId: aws.String(call.ID),
						Name:      aws.String(call.Name),
						Input:     document.NewLazyDocument(input),
					},
				})
			}
		}

		role := types.ConversationRoleUser
		if msg.Role == models.RoleAssistant {
			role = types.ConversationRoleAssistant
		}
		if len(content) > 0 {
			result = append(result, types.Message{Role: role, Content: content})
		}
	}

	return result, system.String(), nil
}

func bedrockImageFormat(mimeType string) (types.ImageFormat, bool) {
	switch strings.ToLower(mimeType) {
	case "image/png":
		return types.ImageFormatPng, true
	case "image/jpeg", "image/jpg":
		return types.ImageFormatJpeg, true
	case "image/gif":
		return types.ImageFormatGif, true
	case "image/webp":
		return types.ImageFormatWebp, true
	default:
		return "", false
	}
}

func isRetryableBedrockErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "throttlingexception") || strings.Contains(msg, "toomanyrequestsexception") ||
		strings.Contains(msg, "serviceunavailableexception") {
		return true
	}
	kind := Classify(err)
	return kind == ErrRateLimit || kind == ErrServerError
}
