// Package models defines the conversation entities shared by the agent loop,
// the provider implementations, and the tool registry: the message types the
// loop accumulates, tool calls and their results, and token usage.
//
// Construction is deliberately narrow: a ChatMessage has no field for a
// timestamp, a model name, a provider label, or a token count. Those belong
// to whatever owns the conversation (a session store, a UI), never to the
// wire payload a provider sees, so there is no constructor path that lets
// them leak into a provider request.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role identifies which of the four ChatMessage variants a message is.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// PartType identifies a ContentPart variant within multimodal user content.
type PartType string

const (
	PartText  PartType = "text"
	PartImage PartType = "image"
)

// ContentPart is one element of a multimodal User message: either a text run
// or an inline image carried as base64.
type ContentPart struct {
	Type PartType `json:"type"`

	// Text holds the text for a PartText part.
	Text string `json:"text,omitempty"`

	// MediaType and Data hold an inline image for a PartImage part, e.g.
	// MediaType "image/png" and Data the base64-encoded bytes (no data: URI
	// prefix — each provider's projection adds its own wire wrapper).
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
}

// ToolCall is a structured request from the model to run a named tool with
// JSON arguments. Produced by the provider (or synthesized by the agent
// loop's text-embedded fallback parser), consumed by the tool registry.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ChatMessage is the tagged-sum conversation entity. Exactly one of the
// role-specific field groups is meaningful, selected by Role:
//
//	System    — Text
//	User      — Text (plain) or Parts (multimodal); never both
//	Assistant — optional Text plus zero or more ToolCalls
//	Tool      — ToolCallID and Text (the tool's sanitized output)
//
// Do not construct a ChatMessage by literal outside this package in code
// that also needs the invariants enforced; use the New* constructors.
type ChatMessage struct {
	Role       Role          `json:"role"`
	Text       string        `json:"text,omitempty"`
	Parts      []ContentPart `json:"parts,omitempty"`
	ToolCalls  []ToolCall    `json:"tool_calls,omitempty"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
}

// NewSystemMessage builds a System message.
func NewSystemMessage(text string) ChatMessage {
	return ChatMessage{Role: RoleSystem, Text: text}
}

// NewUserMessage builds a plain-text User message.
func NewUserMessage(text string) ChatMessage {
	return ChatMessage{Role: RoleUser, Text: text}
}

// NewUserMultimodalMessage builds a User message from an ordered sequence of
// text and image parts.
func NewUserMultimodalMessage(parts []ContentPart) ChatMessage {
	return ChatMessage{Role: RoleUser, Parts: parts}
}

// NewAssistantMessage builds an Assistant message. Tool call ids must be
// unique within the message; callers that synthesize ids (the text-embedded
// fallback parser) are responsible for that uniqueness.
func NewAssistantMessage(text string, toolCalls []ToolCall) ChatMessage {
	return ChatMessage{Role: RoleAssistant, Text: text, ToolCalls: toolCalls}
}

// NewToolMessage builds a Tool message carrying a sanitized result for the
// given tool call id. The caller is expected to have already applied
// Sanitize to content before calling this.
func NewToolMessage(toolCallID, content string) ChatMessage {
	return ChatMessage{Role: RoleTool, ToolCallID: toolCallID, Text: content}
}

// HasImages reports whether a User message carries at least one image part,
// the signal providers use to decide whether to emit a vision-style payload.
func (m ChatMessage) HasImages() bool {
	for _, p := range m.Parts {
		if p.Type == PartImage {
			return true
		}
	}
	return false
}

// Usage accumulates token counts across one or more provider calls.
// CacheReadTokens/CacheWriteTokens are zero-filled by providers that do not
// report them; this is expected, not an error condition.
type Usage struct {
	InputTokens      uint64 `json:"input_tokens"`
	OutputTokens     uint64 `json:"output_tokens"`
	CacheReadTokens  uint64 `json:"cache_read_tokens,omitempty"`
	CacheWriteTokens uint64 `json:"cache_write_tokens,omitempty"`
}

// Add accumulates other into u using saturating arithmetic: a sum that would
// overflow uint64 clamps to MaxUint64 rather than wrapping. Usage numbers
// feed budget and billing decisions, so silent wraparound is worse than a
// clamped (if wrong) total.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:      saturatingAdd(u.InputTokens, other.InputTokens),
		OutputTokens:     saturatingAdd(u.OutputTokens, other.OutputTokens),
		CacheReadTokens:  saturatingAdd(u.CacheReadTokens, other.CacheReadTokens),
		CacheWriteTokens: saturatingAdd(u.CacheWriteTokens, other.CacheWriteTokens),
	}
}

func saturatingAdd(a, b uint64) uint64 {
	sum := a + b
	if sum < a {
		return ^uint64(0)
	}
	return sum
}

// PersistedMessage is the §6 "persisted state format" wire shape: a session
// history entry as role plus role-specific fields matching the
// Chat-Completions shape. Unknown extra fields are tolerated and dropped on
// ingestion, never rejected.
type PersistedMessage struct {
	Role       string          `json:"role"`
	Content    json.RawMessage `json:"content,omitempty"`
	ToolCalls  []ToolCall      `json:"tool_calls,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
}

// IngestHistory converts a persisted JSON message array back into typed
// ChatMessages. Elements missing a role, or carrying a role this module does
// not recognize, are dropped (the caller is expected to log the warning
// spec.md §4.1 calls for; this function only reports a count). A System
// message whose content is a parts array is kept with empty text and also
// adds one to dropped. Content may be a bare JSON string or an array of
// {type, text} / {type, image_url} parts — both are tolerated. An image_url
// holding a base64 data: URI is split into MediaType and Data; any other
// URL is kept whole in Data.
func IngestHistory(raw []byte) (messages []ChatMessage, dropped int, err error) {
	var entries []PersistedMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, 0, fmt.Errorf("ingest history: %w", err)
	}

	for _, e := range entries {
		role := Role(e.Role)
		switch role {
		case RoleSystem:
			text, parts := decodeContent(e.Content)
			if len(parts) > 0 {
				dropped++ // system messages are never multimodal; drop the extra parts
			}
			messages = append(messages, NewSystemMessage(text))
		case RoleUser:
			text, parts := decodeContent(e.Content)
			if len(parts) > 0 {
				messages = append(messages, NewUserMultimodalMessage(parts))
			} else {
				messages = append(messages, NewUserMessage(text))
			}
		case RoleAssistant:
			text, _ := decodeContent(e.Content)
			messages = append(messages, NewAssistantMessage(text, e.ToolCalls))
		case RoleTool:
			text, _ := decodeContent(e.Content)
			messages = append(messages, NewToolMessage(e.ToolCallID, text))
		default:
			dropped++
		}
	}
	return messages, dropped, nil
}

// decodeContent tolerates both a bare JSON string and an array of content
// parts, returning whichever shape matched.
func decodeContent(raw json.RawMessage) (text string, parts []ContentPart) {
	if len(raw) == 0 {
		return "", nil
	}
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, nil
	}
	var rawParts []struct {
		Type     string `json:"type"`
		Text     string `json:"text"`
		ImageURL struct {
			URL string `json:"url"`
		} `json:"image_url"`
	}
	if err := json.Unmarshal(raw, &rawParts); err != nil {
		return "", nil
	}
	for _, p := range rawParts {
		switch p.Type {
		case "text":
			parts = append(parts, ContentPart{Type: PartText, Text: p.Text})
		case "image_url":
			part := ContentPart{Type: PartImage, Data: p.ImageURL.URL}
			if rest, ok := strings.CutPrefix(p.ImageURL.URL, "data:"); ok {
				if mediaType, data, ok := strings.Cut(rest, ";base64,"); ok {
					part.MediaType, part.Data = mediaType, data
				}
			}
			parts = append(parts, part)
		}
	}
	return "", parts
}
