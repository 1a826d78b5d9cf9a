package schema

import "encoding/json"

// FrameType is the kind of a canonical streaming frame.
type FrameType string

// Canonical frame kinds. Every adapter coalesces its upstream's native
// stream events into exactly these; raw upstream events are never forwarded.
const (
	FrameStart    FrameType = "start"
	FrameContent  FrameType = "content"
	FrameThinking FrameType = "thinking"
	FrameToolCall FrameType = "tool_call"
	FrameStop     FrameType = "stop"
)

// StreamDone is the sentinel data payload terminating every stream.
const StreamDone = "[DONE]"

// StreamFrame is one canonical streaming event. The server writes each frame
// as "data: <json>\n\n" and terminates with "data: [DONE]\n\n".
type StreamFrame struct {
	// Type is the frame kind.
	Type FrameType `json:"type"`

	// ID and Model are set on start frames.
	ID    string `json:"id,omitempty"`
	Model string `json:"model,omitempty"`

	// Content is the delta text on content frames.
	Content string `json:"content,omitempty"`

	// Thinking is the delta thinking text on thinking frames.
	Thinking string `json:"thinking,omitempty"`

	// ToolCallID, ToolName and Arguments carry incremental tool call data
	// on tool_call frames. Arguments is the raw JSON fragment as streamed.
	ToolCallID string `json:"tool_call_id,omitempty"`
	ToolName   string `json:"tool_name,omitempty"`
	Arguments  string `json:"arguments,omitempty"`

	// FinishReason is set on stop frames.
	FinishReason FinishReason `json:"finish_reason,omitempty"`
}

// SSE renders the frame as a complete server-sent event line.
func (f StreamFrame) SSE() []byte {
	payload, err := json.Marshal(f)
	if err != nil {
		// Frames are plain data; marshalling cannot fail for valid frames.
		payload = []byte(`{"type":"stop","finish_reason":"error"}`)
	}
	out := make([]byte, 0, len(payload)+8)
	out = append(out, "data: "...)
	out = append(out, payload...)
	out = append(out, "\n\n"...)
	return out
}

// DoneSSE is the rendered terminator event.
func DoneSSE() []byte {
	return []byte("data: " + StreamDone + "\n\n")
}

// StartFrame builds the stream-opening frame.
func StartFrame(id, model string) StreamFrame {
	return StreamFrame{Type: FrameStart, ID: id, Model: model}
}

// ContentFrame builds a delta-text frame.
func ContentFrame(delta string) StreamFrame {
	return StreamFrame{Type: FrameContent, Content: delta}
}

// ThinkingFrame builds a delta-thinking frame.
func ThinkingFrame(delta string) StreamFrame {
	return StreamFrame{Type: FrameThinking, Thinking: delta}
}

// StopFrame builds the stream-closing frame.
func StopFrame(reason FinishReason) StreamFrame {
	return StreamFrame{Type: FrameStop, FinishReason: reason}
}
