package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"aratta-hq/aratta/pkg/providers"
	"aratta-hq/aratta/pkg/schema"
)

// anthropicStreamEvent is one event from the Messages SSE stream.
type anthropicStreamEvent struct {
	Type string `json:"type"`

	// message_start
	Message *anthropicResponse `json:"message,omitempty"`

	// content_block_start
	Index        int           `json:"index"`
	ContentBlock *contentBlock `json:"content_block,omitempty"`

	// content_block_delta and message_delta
	Delta *streamDelta `json:"delta,omitempty"`

	Usage *anthropicUsage `json:"usage,omitempty"`
}

type streamDelta struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	Thinking    string `json:"thinking,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
	StopReason  string `json:"stop_reason,omitempty"`
}

// streamReader turns the upstream SSE stream into canonical frames.
// Tool call input arrives as partial JSON deltas; the reader accumulates
// them per block and emits one tool_call frame when the block closes.
type streamReader struct {
	client  *providers.HTTPClient
	body    io.ReadCloser
	scanner *providers.SSEScanner

	// Active tool_use block, if any.
	toolID   string
	toolName string
	toolArgs []byte

	stopReason string
	stopped    bool
}

func newStreamReader(ctx context.Context, client *providers.HTTPClient, req *anthropicRequest, headers map[string]string) (*streamReader, error) {
	bodyBytes, err := json.Marshal(req)
	if err != nil {
		return nil, &providers.ParseError{Provider: client.Name(), Cause: err}
	}
	headers["Accept"] = "text/event-stream"

	resp, err := client.Do(ctx, http.MethodPost, "/v1/messages", bodyBytes, headers)
	if err != nil {
		return nil, err
	}

	return &streamReader{
		client:  client,
		body:    resp.Body,
		scanner: providers.NewSSEScanner(resp.Body),
	}, nil
}

// pump reads to end of stream, forwarding canonical frames. The channel
// always ends with a stop frame, then close. Mid-stream failures become
// a stop frame with finish_reason=error.
func (s *streamReader) pump(ctx context.Context, frames chan<- schema.StreamFrame) {
	defer close(frames)
	defer s.body.Close()

	send := func(f schema.StreamFrame) bool {
		select {
		case frames <- f:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for s.scanner.Next() {
		if ctx.Err() != nil {
			return
		}

		data := s.scanner.Event().Data
		if data == schema.StreamDone {
			break
		}

		var event anthropicStreamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			// Skip malformed keepalive noise rather than killing the stream.
			continue
		}
		if event.Type == "" {
			event.Type = s.scanner.Event().Event
		}

		for _, frame := range s.handleEvent(&event) {
			if frame.Type == schema.FrameStop {
				s.stopped = true
			}
			if !send(frame) {
				return
			}
		}
		if s.stopped {
			return
		}
	}

	if err := s.scanner.Err(); err != nil {
		slog.Warn("stream read failed", "provider", s.client.Name(), "error", err)
		if !s.stopped {
			send(schema.StopFrame(schema.FinishError))
		}
		return
	}

	if !s.stopped {
		send(schema.StopFrame(s.finishReason()))
	}
}

// handleEvent maps one upstream event to zero or more canonical frames.
func (s *streamReader) handleEvent(event *anthropicStreamEvent) []schema.StreamFrame {
	switch event.Type {
	case "message_start":
		if event.Message != nil {
			return []schema.StreamFrame{schema.StartFrame(event.Message.ID, event.Message.Model)}
		}
		return nil

	case "content_block_start":
		if event.ContentBlock != nil && event.ContentBlock.Type == "tool_use" {
			s.toolID = event.ContentBlock.ID
			s.toolName = event.ContentBlock.Name
			s.toolArgs = s.toolArgs[:0]
		}
		return nil

	case "content_block_delta":
		if event.Delta == nil {
			return nil
		}
		switch event.Delta.Type {
		case "text_delta":
			if event.Delta.Text != "" {
				return []schema.StreamFrame{schema.ContentFrame(event.Delta.Text)}
			}
		case "thinking_delta":
			if event.Delta.Thinking != "" {
				return []schema.StreamFrame{schema.ThinkingFrame(event.Delta.Thinking)}
			}
		case "input_json_delta":
			s.toolArgs = append(s.toolArgs, event.Delta.PartialJSON...)
		}
		return nil

	case "content_block_stop":
		if s.toolName != "" {
			frame := schema.StreamFrame{
				Type:       schema.FrameToolCall,
				ToolCallID: s.toolID,
				ToolName:   s.toolName,
				Arguments:  string(s.toolArgs),
			}
			s.toolID, s.toolName, s.toolArgs = "", "", nil
			return []schema.StreamFrame{frame}
		}
		return nil

	case "message_delta":
		if event.Delta != nil && event.Delta.StopReason != "" {
			s.stopReason = event.Delta.StopReason
		}
		return nil

	case "message_stop":
		return []schema.StreamFrame{schema.StopFrame(s.finishReason())}

	default:
		// ping and unknown event types are dropped.
		return nil
	}
}

func (s *streamReader) finishReason() schema.FinishReason {
	if s.stopReason == "" {
		return schema.FinishStop
	}
	return normalizeStopReason(s.stopReason)
}
