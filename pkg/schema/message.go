package schema

import (
	"encoding/json"
	"fmt"
)

// Role identifies the sender of a message.
type Role string

// Message role constants.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ContentType discriminates the variants of a content block.
type ContentType string

// Content block type constants.
const (
	ContentText       ContentType = "text"
	ContentImage      ContentType = "image"
	ContentToolUse    ContentType = "tool_use"
	ContentToolResult ContentType = "tool_result"
	ContentThinking   ContentType = "thinking"
)

// Content is a single block within a multimodal message.
//
// Exactly which optional fields are set depends on Type:
//   - text: Text
//   - image: one of ImageURL or ImageBase64, plus optional MediaType
//   - tool_use: ToolName, ToolInput, ToolUseID
//   - tool_result: ToolUseID (matching a prior tool_use), ToolResult
//   - thinking: Text, optional Signature
//
// Wire shape: {"type", "text?", "image_url?", "image_base64?",
// "tool_use_id?", "tool_name?", "tool_input?", "tool_result?"}.
type Content struct {
	// Type discriminates the block variant.
	Type ContentType `json:"type"`

	// Text is the text payload for text and thinking blocks.
	Text string `json:"text,omitempty"`

	// ImageURL is a remote image reference. Mutually exclusive with ImageBase64.
	ImageURL string `json:"image_url,omitempty"`

	// ImageBase64 is an inline base64-encoded image payload.
	ImageBase64 string `json:"image_base64,omitempty"`

	// MediaType is the optional MIME type for image blocks (e.g. "image/png").
	MediaType string `json:"media_type,omitempty"`

	// ToolUseID links a tool_result block to the tool_use block it answers,
	// or carries the server-generated id on a tool_use block.
	ToolUseID string `json:"tool_use_id,omitempty"`

	// ToolName is the tool being invoked in a tool_use block.
	ToolName string `json:"tool_name,omitempty"`

	// ToolInput is the decoded JSON arguments of a tool_use block.
	ToolInput map[string]any `json:"tool_input,omitempty"`

	// ToolResult is the arbitrary JSON result of a tool execution.
	ToolResult any `json:"tool_result,omitempty"`

	// Signature is the opaque upstream-provided signature on thinking
	// blocks. Preserved verbatim, never interpreted.
	Signature string `json:"signature,omitempty"`
}

// ThinkingBlock is an extended-thinking / reasoning block on a response.
// The signature, when present, is upstream-opaque and preserved verbatim.
type ThinkingBlock struct {
	Thinking  string `json:"thinking"`
	Signature string `json:"signature,omitempty"`
}

// Message is one turn in a conversation. Content is either a scalar string
// or an ordered non-empty sequence of content blocks; the two forms are
// distinguished on the wire by the JSON type of the "content" field.
type Message struct {
	// Role identifies the sender.
	Role Role

	// Content is the scalar text form. Ignored when Blocks is non-nil.
	Content string

	// Blocks is the multimodal block form. When non-nil it takes
	// precedence over Content.
	Blocks []Content

	// Name optionally identifies the sender in multi-party conversations.
	Name string

	// ToolCallID references the tool call this message answers.
	// Present only when Role is RoleTool.
	ToolCallID string
}

// messageWire is the raw JSON shape of a Message.
type messageWire struct {
	Role       Role            `json:"role"`
	Content    json.RawMessage `json:"content"`
	Name       string          `json:"name,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
}

// MarshalJSON encodes the message with content as either a string or a
// block list, matching the canonical wire schema.
func (m Message) MarshalJSON() ([]byte, error) {
	var content json.RawMessage
	var err error
	if m.Blocks != nil {
		content, err = json.Marshal(m.Blocks)
	} else {
		content, err = json.Marshal(m.Content)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(messageWire{
		Role:       m.Role,
		Content:    content,
		Name:       m.Name,
		ToolCallID: m.ToolCallID,
	})
}

// UnmarshalJSON decodes either content form.
func (m *Message) UnmarshalJSON(data []byte) error {
	var wire messageWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	m.Role = wire.Role
	m.Name = wire.Name
	m.ToolCallID = wire.ToolCallID
	m.Content = ""
	m.Blocks = nil

	if len(wire.Content) == 0 {
		return nil
	}
	switch wire.Content[0] {
	case '"':
		return json.Unmarshal(wire.Content, &m.Content)
	case '[':
		return json.Unmarshal(wire.Content, &m.Blocks)
	case 'n': // null
		return nil
	default:
		return fmt.Errorf("message content must be a string or a block list")
	}
}

// TextContent returns the scalar text of the message: the Content field in
// scalar form, or the concatenation of all text blocks in block form.
func (m Message) TextContent() string {
	if m.Blocks == nil {
		return m.Content
	}
	var out string
	for _, b := range m.Blocks {
		if b.Type == ContentText {
			out += b.Text
		}
	}
	return out
}

// TextMessage is a convenience constructor for a scalar-text message.
func TextMessage(role Role, text string) Message {
	return Message{Role: role, Content: text}
}
