package server

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"aratta-hq/aratta/pkg/audit"
	"aratta-hq/aratta/pkg/resilience"
)

const healCycleTimeout = 5 * time.Minute

// onHealRequest runs when the health monitor crosses the error
// threshold for a provider. The cycle runs in its own goroutine: the
// monitor fires callbacks synchronously and must not block on model
// calls.
func (s *Server) onHealRequest(provider string, latest resilience.AdapterError, recent []resilience.AdapterError) {
	go s.runHealCycle(provider, latest, recent)
}

func (s *Server) runHealCycle(provider string, latest resilience.AdapterError, recent []resilience.AdapterError) {
	slog.Info("self-healing triggered", "provider", provider, "error_type", latest.Kind)
	if s.metrics != nil {
		s.metrics.RecordHealRequest(provider, string(latest.Kind))
	}

	ctx, cancel := context.WithTimeout(context.Background(), healCycleTimeout)
	defer cancel()

	start := time.Now()
	source := s.reloader.AdapterSource(provider)
	proposal := s.healer.Heal(ctx, provider, latest, recent, source)
	result := s.reloader.ApplyFix(provider, proposal, s.verifyProvider)

	if s.metrics != nil {
		s.metrics.RecordHealDuration(provider, time.Since(start).Seconds())
	}

	queued := strings.Contains(result.Message, "queued")
	if result.Success {
		slog.Info("self-heal succeeded",
			"provider", provider, "version", result.Version)
		s.monitor.HealComplete(provider, true)
	} else {
		slog.Warn("self-heal did not apply",
			"provider", provider, "message", result.Message)
		// A queued fix keeps the heal in-flight flag set until a human
		// approves or rejects it.
		if !queued {
			s.monitor.HealComplete(provider, false)
		}
	}

	if s.audit != nil {
		rec := audit.NewRecord(audit.KindHeal, provider)
		rec.Model = latest.Model
		rec.LatencyMS = time.Since(start).Milliseconds()
		rec.ErrorType = string(latest.Kind)
		switch {
		case result.Success:
			rec.Status = "verified"
		case queued:
			rec.Status = "pending_review"
		default:
			rec.Status = "failed"
			rec.Error = result.Message
		}
		rec.Detail = map[string]any{
			"fix_type":       proposal.FixType,
			"confidence":     proposal.Confidence,
			"change_summary": proposal.ChangeSummary,
		}
		s.recordAudit(rec)
	}
}
