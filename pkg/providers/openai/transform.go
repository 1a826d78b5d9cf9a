package openai

import (
	"encoding/json"
	"time"

	"aratta-hq/aratta/pkg/schema"
)

// Chat Completions wire types.

type chatCompletionRequest struct {
	Model               string         `json:"model"`
	Messages            []wireMessage  `json:"messages"`
	Temperature         *float64       `json:"temperature,omitempty"`
	TopP                *float64       `json:"top_p,omitempty"`
	MaxCompletionTokens int            `json:"max_completion_tokens,omitempty"`
	Stop                []string       `json:"stop,omitempty"`
	Stream              bool           `json:"stream,omitempty"`
	Tools               []any          `json:"tools,omitempty"`
	ToolChoice          any            `json:"tool_choice,omitempty"`
	ReasoningEffort     string         `json:"reasoning_effort,omitempty"`
	Metadata            map[string]any `json:"metadata,omitempty"`
}

type wireMessage struct {
	Role       string         `json:"role"`
	Content    any            `json:"content"` // string or []contentPart
	Name       string         `json:"name,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
}

type contentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *imageURLPart `json:"image_url,omitempty"`
}

type imageURLPart struct {
	URL string `json:"url"`
}

type wireTool struct {
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type wireFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
	Strict      bool           `json:"strict,omitempty"`
}

type wireToolCall struct {
	Index    int              `json:"index,omitempty"`
	ID       string           `json:"id,omitempty"`
	Type     string           `json:"type,omitempty"`
	Function wireFunctionCall `json:"function"`
}

type wireFunctionCall struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

type chatCompletionResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []wireChoice `json:"choices"`
	Usage   wireUsage    `json:"usage"`
}

type wireChoice struct {
	Index        int          `json:"index"`
	Message      wireResponse `json:"message"`
	FinishReason string       `json:"finish_reason"`
}

type wireResponse struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	ToolCalls []wireToolCall `json:"tool_calls,omitempty"`
}

type wireUsage struct {
	PromptTokens            int               `json:"prompt_tokens"`
	CompletionTokens        int               `json:"completion_tokens"`
	TotalTokens             int               `json:"total_tokens"`
	ReasoningTokens         int               `json:"reasoning_tokens,omitempty"`
	CompletionTokensDetails *completionDetail `json:"completion_tokens_details,omitempty"`
	PromptTokensDetails     *promptDetail     `json:"prompt_tokens_details,omitempty"`
}

type completionDetail struct {
	ReasoningTokens int `json:"reasoning_tokens"`
}

type promptDetail struct {
	CachedTokens int `json:"cached_tokens"`
}

// transformRequest converts a canonical request to Chat Completions
// format. System messages pass through inline; OpenAI accepts them in
// the message list directly.
func transformRequest(req *schema.ChatRequest) *chatCompletionRequest {
	out := &chatCompletionRequest{
		Model:               req.Model,
		Messages:            convertMessages(req.Messages),
		Temperature:         req.Temperature,
		TopP:                req.TopP,
		MaxCompletionTokens: req.MaxTokens,
		Stop:                req.Stop,
	}

	// Server-side builtin tools (web_search, x_search, code_execution) are
	// requested through metadata; only upstreams that implement them see
	// these entries.
	var tools []any
	for _, bt := range metadataStrings(req.Metadata, "builtin_tools") {
		tools = append(tools, map[string]any{"type": bt})
	}
	if ids := metadataStrings(req.Metadata, "collection_ids"); len(ids) > 0 {
		tools = append(tools, map[string]any{"type": "collections_search", "collection_ids": ids})
	}
	for _, t := range req.Tools {
		tools = append(tools, wireTool{
			Type: "function",
			Function: wireFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
				Strict:      t.Strict,
			},
		})
	}
	if len(tools) > 0 {
		out.Tools = tools
		out.ToolChoice = req.ToolChoice
	}

	// Reasoning models take an effort hint instead of a thinking budget.
	if req.ThinkingEnabled() {
		out.ReasoningEffort = "medium"
		out.Temperature = nil
	}

	return out
}

func convertMessages(messages []schema.Message) []wireMessage {
	out := make([]wireMessage, 0, len(messages))
	for _, msg := range messages {
		m := wireMessage{
			Role:       string(msg.Role),
			Name:       msg.Name,
			ToolCallID: msg.ToolCallID,
		}
		if msg.Blocks == nil {
			m.Content = msg.Content
		} else {
			parts := make([]contentPart, 0, len(msg.Blocks))
			var toolCalls []wireToolCall
			for _, b := range msg.Blocks {
				switch b.Type {
				case schema.ContentText:
					if b.Text != "" {
						parts = append(parts, contentPart{Type: "text", Text: b.Text})
					}
				case schema.ContentImage:
					if b.ImageURL != "" {
						parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURLPart{URL: b.ImageURL}})
					} else if b.ImageBase64 != "" {
						mediaType := b.MediaType
						if mediaType == "" {
							mediaType = "image/jpeg"
						}
						parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURLPart{
							URL: "data:" + mediaType + ";base64," + b.ImageBase64,
						}})
					}
				case schema.ContentToolUse:
					args, _ := json.Marshal(b.ToolInput)
					toolCalls = append(toolCalls, wireToolCall{
						ID:   b.ToolUseID,
						Type: "function",
						Function: wireFunctionCall{
							Name:      b.ToolName,
							Arguments: string(args),
						},
					})
				}
			}
			m.Content = parts
			m.ToolCalls = toolCalls
		}
		out = append(out, m)
	}
	return out
}

// metadataStrings reads a list-of-strings metadata value, tolerating the
// []any shape JSON decoding produces.
func metadataStrings(metadata map[string]any, key string) []string {
	if metadata == nil {
		return nil
	}
	switch v := metadata[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// transformResponse converts a Chat Completions response to the
// canonical format.
func transformResponse(resp *chatCompletionResponse, requestModel, provider string, latency time.Duration) (*schema.ChatResponse, error) {
	model := resp.Model
	if model == "" {
		model = requestModel
	}

	lineage := schema.NewLineage(provider, model, latency)
	lineage.RequestID = resp.ID

	out := &schema.ChatResponse{
		ID:       resp.ID,
		Model:    model,
		Provider: provider,
		Usage: &schema.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
		Lineage: &lineage,
	}
	if d := resp.Usage.CompletionTokensDetails; d != nil && d.ReasoningTokens > 0 {
		out.Usage.ReasoningTokens = schema.IntPtr(d.ReasoningTokens)
	} else if resp.Usage.ReasoningTokens > 0 {
		// xAI reports reasoning tokens at the top level of usage.
		out.Usage.ReasoningTokens = schema.IntPtr(resp.Usage.ReasoningTokens)
	}
	if d := resp.Usage.PromptTokensDetails; d != nil && d.CachedTokens > 0 {
		out.Usage.CacheReadTokens = schema.IntPtr(d.CachedTokens)
	}

	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		out.Content = choice.Message.Content
		out.FinishReason = normalizeFinishReason(choice.FinishReason)

		for _, tc := range choice.Message.ToolCalls {
			// Server-side tool executions come back with their own types;
			// only function calls surface as canonical tool calls.
			if tc.Type != "" && tc.Type != "function" {
				continue
			}
			call, err := decodeToolCall(tc)
			if err != nil {
				return nil, err
			}
			out.ToolCalls = append(out.ToolCalls, call)
		}
	}

	out.Normalize()
	return out, nil
}

func decodeToolCall(tc wireToolCall) (schema.ToolCall, error) {
	args := make(map[string]any)
	if tc.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			return schema.ToolCall{}, err
		}
	}
	return schema.ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: args}, nil
}

// normalizeFinishReason maps OpenAI finish reasons onto the canonical
// set. The names mostly align already.
func normalizeFinishReason(reason string) schema.FinishReason {
	switch reason {
	case "stop":
		return schema.FinishStop
	case "tool_calls", "function_call":
		return schema.FinishToolCalls
	case "length":
		return schema.FinishLength
	case "content_filter":
		return schema.FinishContentFilter
	default:
		return schema.FinishStop
	}
}
