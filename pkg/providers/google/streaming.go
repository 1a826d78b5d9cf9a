package google

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"aratta-hq/aratta/pkg/providers"
	"aratta-hq/aratta/pkg/schema"
)

// streamReader coalesces streamGenerateContent SSE events into canonical
// frames. Each event is a partial generateResponse; text parts become
// content frames and functionCall parts become tool_call frames.
type streamReader struct {
	client  *providers.HTTPClient
	body    io.ReadCloser
	scanner *providers.SSEScanner
	model   string

	started      bool
	finishReason string
}

func newStreamReader(ctx context.Context, client *providers.HTTPClient, path string, req *generateRequest, headers map[string]string, model string) (*streamReader, error) {
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
		model:   model,
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

		var event generateResponse
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			continue
		}

		if !s.started {
			s.started = true
			if !send(schema.StartFrame(newResponseID(), s.model)) {
				return
			}
		}

		if len(event.Candidates) == 0 {
			continue
		}
		cand := event.Candidates[0]
		if cand.FinishReason != "" {
			s.finishReason = cand.FinishReason
		}
		for _, p := range cand.Content.Parts {
			var frame schema.StreamFrame
			switch {
			case p.FunctionCall != nil:
				args, _ := json.Marshal(p.FunctionCall.Args)
				frame = schema.StreamFrame{
					Type:       schema.FrameToolCall,
					ToolCallID: "call_" + newCallSuffix(),
					ToolName:   p.FunctionCall.Name,
					Arguments:  string(args),
				}
			case p.Text != "":
				frame = schema.ContentFrame(p.Text)
			default:
				continue
			}
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

	send(schema.StopFrame(normalizeFinishReason(s.finishReason)))
}
