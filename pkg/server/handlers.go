package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"aratta-hq/aratta/pkg/audit"
	"aratta-hq/aratta/pkg/resilience"
	"aratta-hq/aratta/pkg/schema"
)

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req schema.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if len(req.Messages) == 0 {
		writeBadRequest(w, "messages must not be empty")
		return
	}

	start := time.Now()
	primary, _ := s.router.Resolve(&req)
	resp, err := s.router.Chat(r.Context(), &req)
	if err != nil {
		s.auditRequest("chat", primary, &req, "", time.Since(start), err)
		writeError(w, err)
		return
	}

	s.auditChatSuccess("chat", primary, resp, time.Since(start))
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var req schema.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if len(req.Messages) == 0 {
		writeBadRequest(w, "messages must not be empty")
		return
	}

	start := time.Now()
	primary, _ := s.router.Resolve(&req)
	frames, served, err := s.router.ChatStream(r.Context(), &req)
	if err != nil {
		s.auditRequest("chat_stream", primary, &req, served, time.Since(start), err)
		writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: errorDetail{
			Message: "streaming not supported by this connection",
			Type:    "internal_error",
		}})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			// Client went away; drain so the provider goroutine exits.
			go func() {
				for range frames {
				}
			}()
			return
		case frame, open := <-frames:
			if !open {
				w.Write(schema.DoneSSE())
				flusher.Flush()
				s.auditRequest("chat_stream", primary, &req, served, time.Since(start), nil)
				return
			}
			w.Write(frame.SSE())
			flusher.Flush()
		}
	}
}

func (s *Server) handleEmbed(w http.ResponseWriter, r *http.Request) {
	var req schema.EmbeddingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if len(req.Input.Texts) == 0 {
		writeBadRequest(w, "input must not be empty")
		return
	}

	start := time.Now()
	resp, err := s.router.Embed(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}

	if s.audit != nil {
		rec := audit.NewRecord(audit.KindRequest, resp.Provider)
		rec.Model = resp.Model
		rec.Operation = "embed"
		rec.Status = "success"
		rec.LatencyMS = time.Since(start).Milliseconds()
		s.recordAudit(rec)
	}
	writeJSON(w, http.StatusOK, resp)
}

// auditChatSuccess records a succeeded chat, noting when a fallback
// served it.
func (s *Server) auditChatSuccess(operation, primary string, resp *schema.ChatResponse, elapsed time.Duration) {
	if s.audit == nil {
		return
	}
	rec := audit.NewRecord(audit.KindRequest, resp.Provider)
	rec.Model = resp.Model
	rec.Operation = operation
	rec.Status = "success"
	rec.LatencyMS = elapsed.Milliseconds()
	if resp.Provider != primary {
		rec.FallbackFrom = primary
	}
	if resp.Usage != nil && resp.Usage.TotalTokens > 0 {
		rec.Detail = map[string]any{"total_tokens": resp.Usage.TotalTokens}
	}
	s.recordAudit(rec)
}

// auditRequest records a request outcome when no response is available.
func (s *Server) auditRequest(operation, primary string, req *schema.ChatRequest, served string, elapsed time.Duration, err error) {
	if s.audit == nil {
		return
	}
	provider := served
	if provider == "" {
		provider = primary
	}
	rec := audit.NewRecord(audit.KindRequest, provider)
	rec.Model = req.Model
	rec.Operation = operation
	rec.LatencyMS = elapsed.Milliseconds()
	if err != nil {
		rec.Status = "error"
		rec.Error = err.Error()
		rec.ErrorType = string(resilience.ClassifyError(err))
	} else {
		rec.Status = "success"
		if served != "" && served != primary {
			rec.FallbackFrom = primary
		}
	}
	s.recordAudit(rec)
}

// recordAudit writes on a detached context so the trail outlives
// cancelled requests. Audit failures never fail the request.
func (s *Server) recordAudit(rec *audit.Record) {
	if err := s.audit.Record(context.Background(), rec); err != nil {
		slog.Warn("audit write failed", "error", err)
	}
}
