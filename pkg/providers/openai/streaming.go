package openai

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sort"

	"aratta-hq/aratta/pkg/providers"
	"aratta-hq/aratta/pkg/schema"
)

// chatCompletionChunk is one streamed Chat Completions delta.
type chatCompletionChunk struct {
	ID      string        `json:"id"`
	Model   string        `json:"model"`
	Choices []chunkChoice `json:"choices"`
}

type chunkChoice struct {
	Index        int        `json:"index"`
	Delta        chunkDelta `json:"delta"`
	FinishReason string     `json:"finish_reason"`
}

type chunkDelta struct {
	Role      string         `json:"role,omitempty"`
	Content   string         `json:"content,omitempty"`
	ToolCalls []wireToolCall `json:"tool_calls,omitempty"`
}

// pendingToolCall accumulates argument fragments streamed for one tool
// call index.
type pendingToolCall struct {
	id   string
	name string
	args []byte
}

// streamReader coalesces Chat Completions chunks into canonical frames.
// Tool call arguments stream as fragments keyed by index; one tool_call
// frame is emitted per call once the stream finishes.
type streamReader struct {
	client  *providers.HTTPClient
	body    io.ReadCloser
	scanner *providers.SSEScanner

	started      bool
	finishReason string
	pending      map[int]*pendingToolCall
}

func newStreamReader(ctx context.Context, client *providers.HTTPClient, path string, req *chatCompletionRequest, headers map[string]string) (*streamReader, error) {
	bodyBytes, err := json.Marshal(req)
	if err != nil {
		return nil, &providers.ParseError{Provider: client.Name(), Cause: err}
	}
	headers["Accept"] = "text/event-stream"

	resp, err := client.Do(ctx, http.MethodPost, path, bodyBytes, headers)
	if err != nil {
		return nil, err
	}

	return &streamReader{
		client:  client,
		body:    resp.Body,
		scanner: providers.NewSSEScanner(resp.Body),
		pending: make(map[int]*pendingToolCall),
	}, nil
}

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

		var chunk chatCompletionChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}

		for _, frame := range s.handleChunk(&chunk) {
			if !send(frame) {
				return
			}
		}
	}

	if err := s.scanner.Err(); err != nil {
		slog.Warn("stream read failed", "provider", s.client.Name(), "error", err)
		send(schema.StopFrame(schema.FinishError))
		return
	}

	// Flush accumulated tool calls, then close the stream.
	for _, frame := range s.flushToolCalls() {
		if !send(frame) {
			return
		}
	}
	send(schema.StopFrame(normalizeFinishReason(s.finishReason)))
}

func (s *streamReader) handleChunk(chunk *chatCompletionChunk) []schema.StreamFrame {
	var out []schema.StreamFrame

	if !s.started {
		s.started = true
		out = append(out, schema.StartFrame(chunk.ID, chunk.Model))
	}

	for _, choice := range chunk.Choices {
		if choice.Delta.Content != "" {
			out = append(out, schema.ContentFrame(choice.Delta.Content))
		}
		for _, tc := range choice.Delta.ToolCalls {
			p := s.pending[tc.Index]
			if p == nil {
				p = &pendingToolCall{}
				s.pending[tc.Index] = p
			}
			if tc.ID != "" {
				p.id = tc.ID
			}
			if tc.Function.Name != "" {
				p.name = tc.Function.Name
			}
			p.args = append(p.args, tc.Function.Arguments...)
		}
		if choice.FinishReason != "" {
			s.finishReason = choice.FinishReason
		}
	}

	return out
}

// flushToolCalls emits one tool_call frame per accumulated call, in
// index order.
func (s *streamReader) flushToolCalls() []schema.StreamFrame {
	if len(s.pending) == 0 {
		return nil
	}
	indexes := make([]int, 0, len(s.pending))
	for i := range s.pending {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	out := make([]schema.StreamFrame, 0, len(indexes))
	for _, i := range indexes {
		p := s.pending[i]
		out = append(out, schema.StreamFrame{
			Type:       schema.FrameToolCall,
			ToolCallID: p.id,
			ToolName:   p.name,
			Arguments:  string(p.args),
		})
	}
	s.pending = make(map[int]*pendingToolCall)
	return out
}
