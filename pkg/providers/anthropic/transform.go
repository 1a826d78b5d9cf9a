package anthropic

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"aratta-hq/aratta/pkg/schema"
)

// Anthropic Messages API wire types.

type anthropicRequest struct {
	Model         string             `json:"model"`
	Messages      []anthropicMessage `json:"messages"`
	System        string             `json:"system,omitempty"`
	MaxTokens     int                `json:"max_tokens"`
	Temperature   *float64           `json:"temperature,omitempty"`
	TopP          *float64           `json:"top_p,omitempty"`
	Stream        bool               `json:"stream,omitempty"`
	Tools         []anthropicTool    `json:"tools,omitempty"`
	ToolChoice    any                `json:"tool_choice,omitempty"`
	StopSequences []string           `json:"stop_sequences,omitempty"`
	Thinking      *thinkingParam     `json:"thinking,omitempty"`
}

type thinkingParam struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or []contentBlock
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`

	// tool_use blocks
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`

	// tool_result blocks
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`

	// image blocks
	Source *imageSource `json:"source,omitempty"`

	// thinking blocks
	Thinking  string `json:"thinking,omitempty"`
	Signature string `json:"signature,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Content    []contentBlock `json:"content"`
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason"`
	Usage      anthropicUsage `json:"usage"`
}

type anthropicUsage struct {
	InputTokens              int  `json:"input_tokens"`
	OutputTokens             int  `json:"output_tokens"`
	CacheReadInputTokens     *int `json:"cache_read_input_tokens,omitempty"`
	CacheCreationInputTokens *int `json:"cache_creation_input_tokens,omitempty"`
}

// transformRequest converts a canonical request to the Messages API
// format. The system message becomes a top-level field, and temperature
// is dropped when thinking is enabled because the API rejects the
// combination.
func transformRequest(req *schema.ChatRequest) (*anthropicRequest, error) {
	system, messages, err := convertMessages(req.Messages)
	if err != nil {
		return nil, err
	}

	out := &anthropicRequest{
		Model:         req.Model,
		Messages:      messages,
		System:        system,
		MaxTokens:     req.MaxTokens,
		TopP:          req.TopP,
		StopSequences: req.Stop,
	}
	if out.MaxTokens == 0 {
		out.MaxTokens = defaultMaxTokens
	}
	if !req.ThinkingEnabled() && req.Temperature != nil {
		out.Temperature = req.Temperature
	}
	if req.ThinkingEnabled() {
		budget := req.ThinkingBudget()
		if budget < minThinkingBudget {
			budget = minThinkingBudget
		}
		out.Thinking = &thinkingParam{Type: "enabled", BudgetTokens: budget}
	}

	if len(req.Tools) > 0 {
		out.Tools = make([]anthropicTool, len(req.Tools))
		for i, t := range req.Tools {
			out.Tools[i] = anthropicTool{
				Name:        t.Name,
				Description: t.Description,
				InputSchema: t.Parameters,
			}
		}
		switch choice := req.ToolChoice.(type) {
		case string:
			if choice == "auto" {
				out.ToolChoice = map[string]any{"type": "auto"}
			} else if choice == "required" {
				out.ToolChoice = map[string]any{"type": "any"}
			}
		case nil:
		default:
			out.ToolChoice = req.ToolChoice
		}
	}

	return out, nil
}

// convertMessages splits out the system message and converts the rest to
// Anthropic message shapes.
func convertMessages(messages []schema.Message) (string, []anthropicMessage, error) {
	var system string
	converted := make([]anthropicMessage, 0, len(messages))

	for _, msg := range messages {
		if msg.Role == schema.RoleSystem {
			if msg.Content != "" {
				system = msg.Content
			} else {
				var parts []string
				for _, b := range msg.Blocks {
					if b.Type == schema.ContentText && b.Text != "" {
						parts = append(parts, b.Text)
					}
				}
				system = strings.Join(parts, "\n")
			}
			continue
		}

		m := anthropicMessage{Role: string(msg.Role)}
		if msg.Blocks == nil {
			m.Content = msg.Content
		} else {
			blocks := make([]contentBlock, 0, len(msg.Blocks))
			for _, b := range msg.Blocks {
				switch b.Type {
				case schema.ContentText:
					blocks = append(blocks, contentBlock{Type: "text", Text: b.Text})
				case schema.ContentImage:
					if b.ImageBase64 != "" {
						mediaType := b.MediaType
						if mediaType == "" {
							mediaType = "image/jpeg"
						}
						blocks = append(blocks, contentBlock{Type: "image", Source: &imageSource{
							Type: "base64", MediaType: mediaType, Data: b.ImageBase64,
						}})
					} else if b.ImageURL != "" {
						blocks = append(blocks, contentBlock{Type: "image", Source: &imageSource{
							Type: "url", URL: b.ImageURL,
						}})
					}
				case schema.ContentToolResult:
					blocks = append(blocks, contentBlock{
						Type:      "tool_result",
						ToolUseID: b.ToolUseID,
						Content:   stringifyToolResult(b.ToolResult),
					})
				case schema.ContentToolUse:
					blocks = append(blocks, contentBlock{
						Type:  "tool_use",
						ID:    b.ToolUseID,
						Name:  b.ToolName,
						Input: b.ToolInput,
					})
				}
			}
			m.Content = blocks
		}
		converted = append(converted, m)
	}

	return system, converted, nil
}

func stringifyToolResult(result any) string {
	switch v := result.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

// transformResponse converts a Messages API response to the canonical
// format.
func transformResponse(resp *anthropicResponse, requestModel string, latency time.Duration) *schema.ChatResponse {
	var text string
	var toolCalls []schema.ToolCall
	var thinking []schema.ThinkingBlock

	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text += block.Text
		case "thinking":
			thinking = append(thinking, schema.ThinkingBlock{
				Thinking:  block.Thinking,
				Signature: block.Signature,
			})
		case "tool_use":
			id := block.ID
			if id == "" {
				id = "tool_" + uuid.NewString()[:8]
			}
			toolCalls = append(toolCalls, schema.ToolCall{
				ID:        id,
				Name:      block.Name,
				Arguments: block.Input,
			})
		}
	}

	model := resp.Model
	if model == "" {
		model = requestModel
	}

	lineage := schema.NewLineage("anthropic", model, latency)
	lineage.RequestID = resp.ID

	out := &schema.ChatResponse{
		ID:           resp.ID,
		Content:      text,
		Model:        model,
		Provider:     "anthropic",
		FinishReason: normalizeStopReason(resp.StopReason),
		ToolCalls:    toolCalls,
		Thinking:     thinking,
		Usage: &schema.Usage{
			InputTokens:      resp.Usage.InputTokens,
			OutputTokens:     resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
			CacheReadTokens:  resp.Usage.CacheReadInputTokens,
			CacheWriteTokens: resp.Usage.CacheCreationInputTokens,
		},
		Lineage: &lineage,
	}
	out.Normalize()
	return out
}

// normalizeStopReason maps Anthropic stop reasons onto canonical finish
// reasons.
func normalizeStopReason(reason string) schema.FinishReason {
	switch reason {
	case "end_turn", "stop_sequence":
		return schema.FinishStop
	case "max_tokens":
		return schema.FinishLength
	case "tool_use":
		return schema.FinishToolCalls
	default:
		return schema.FinishStop
	}
}
