package server

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"aratta-hq/aratta/pkg/audit"
	"aratta-hq/aratta/pkg/providers"
	"aratta-hq/aratta/pkg/schema"
)

const healthCheckTimeout = 10 * time.Second

func (s *Server) handleProviderHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	results := make(map[string]any)
	for _, name := range s.config.AvailableProviders() {
		p, err := s.registry.Get(name)
		if err != nil {
			results[name] = map[string]string{"status": "error", "error": err.Error()}
			continue
		}
		results[name] = p.HealthCheck(ctx)
	}

	payload := map[string]any{"providers": results}
	if s.breaker != nil {
		payload["circuits"] = s.breaker.Snapshots()
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleModels(w http.ResponseWriter, _ *http.Request) {
	models := []schema.ModelCapabilities{}
	for _, name := range s.config.AvailableProviders() {
		p, err := s.registry.Get(name)
		if err != nil {
			slog.Warn("provider models unavailable", "provider", name, "error", err)
			continue
		}
		models = append(models, p.Models()...)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"models":  models,
		"aliases": s.config.Aliases,
	})
}

func (s *Server) handleCircuitOpen(w http.ResponseWriter, r *http.Request) {
	if s.breaker == nil {
		writeUnavailable(w, "circuit breaker not enabled")
		return
	}
	provider := r.PathValue("provider")
	s.breaker.ForceOpen(provider)
	writeJSON(w, http.StatusOK, map[string]string{"status": "opened", "provider": provider})
}

func (s *Server) handleCircuitClose(w http.ResponseWriter, r *http.Request) {
	if s.breaker == nil {
		writeUnavailable(w, "circuit breaker not enabled")
		return
	}
	provider := r.PathValue("provider")
	s.breaker.ForceClose(provider)
	writeJSON(w, http.StatusOK, map[string]string{"status": "closed", "provider": provider})
}

func (s *Server) handleCircuitReset(w http.ResponseWriter, r *http.Request) {
	if s.breaker == nil {
		writeUnavailable(w, "circuit breaker not enabled")
		return
	}
	provider := r.PathValue("provider")
	s.breaker.Reset(provider)
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset", "provider": provider})
}

func (s *Server) handleHealingStatus(w http.ResponseWriter, _ *http.Request) {
	status := map[string]any{
		"enabled":                 s.config.Healing.HealingEnabled(),
		"heal_model":              s.config.Healing.HealModel,
		"research_model":          s.config.Healing.ResearchModel,
		"circuit_breaker_enabled": s.config.Resilience.BreakerEnabled(),
	}
	if s.monitor != nil {
		status["health"] = s.monitor.Summary()
	}
	if s.breaker != nil {
		status["circuits"] = map[string]any{
			"states": s.breaker.Snapshots(),
			"open":   s.breaker.OpenCircuits(),
		}
	}
	if s.reloader != nil {
		status["reload_manager"] = s.reloader.Status()
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleHealingPause(w http.ResponseWriter, r *http.Request) {
	if s.monitor == nil {
		writeUnavailable(w, "self-healing not enabled")
		return
	}
	provider := r.PathValue("provider")
	s.monitor.PauseHealing(provider)
	writeJSON(w, http.StatusOK, map[string]string{"status": "paused", "provider": provider})
}

func (s *Server) handleHealingResume(w http.ResponseWriter, r *http.Request) {
	if s.monitor == nil {
		writeUnavailable(w, "self-healing not enabled")
		return
	}
	provider := r.PathValue("provider")
	s.monitor.ResumeHealing(provider)
	writeJSON(w, http.StatusOK, map[string]string{"status": "resumed", "provider": provider})
}

func (s *Server) handlePendingFixes(w http.ResponseWriter, _ *http.Request) {
	if s.reloader == nil {
		writeUnavailable(w, "reload manager not enabled")
		return
	}
	pending := []map[string]any{}
	for provider, fix := range s.reloader.PendingFixes() {
		pending = append(pending, map[string]any{
			"provider":         provider,
			"fix_type":         fix.FixType,
			"confidence":       fix.Confidence,
			"change_summary":   fix.ChangeSummary,
			"analysis":         fix.Analysis,
			"research_summary": clip(fix.ResearchSummary, 500),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"pending_fixes": pending})
}

func (s *Server) handleApproveFix(w http.ResponseWriter, r *http.Request) {
	if s.reloader == nil {
		writeUnavailable(w, "reload manager not enabled")
		return
	}
	provider := r.PathValue("provider")
	result := s.reloader.ApproveFix(provider, s.verifyProvider)
	// A queued fix keeps the heal in-flight flag set; resolving it must
	// release the flag or the monitor never heals this provider again.
	if s.monitor != nil {
		s.monitor.HealComplete(provider, result.Success)
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRejectFix(w http.ResponseWriter, r *http.Request) {
	if s.reloader == nil {
		writeUnavailable(w, "reload manager not enabled")
		return
	}
	provider := r.PathValue("provider")
	reason := r.URL.Query().Get("reason")
	if !s.reloader.RejectFix(provider, reason) {
		writeNotFound(w, "no pending fix for "+provider)
		return
	}
	if s.monitor != nil {
		s.monitor.HealComplete(provider, false)
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "rejected", "provider": provider, "reason": reason,
	})
}

func (s *Server) handleFixHistory(w http.ResponseWriter, r *http.Request) {
	if s.reloader == nil {
		writeUnavailable(w, "reload manager not enabled")
		return
	}
	provider := r.PathValue("provider")
	writeJSON(w, http.StatusOK, map[string]any{
		"provider": provider,
		"versions": s.reloader.VersionHistory(provider),
	})
}

func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	if s.reloader == nil {
		writeUnavailable(w, "reload manager not enabled")
		return
	}
	provider := r.PathValue("provider")
	version, err := strconv.Atoi(r.PathValue("version"))
	if err != nil {
		writeBadRequest(w, "version must be an integer")
		return
	}
	if err := s.reloader.Rollback(provider, version); err != nil {
		writeBadRequest(w, "rollback failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "rolled_back", "provider": provider, "version": version,
	})
}

func (s *Server) handleMetricsSummary(w http.ResponseWriter, _ *http.Request) {
	if s.metrics == nil {
		writeUnavailable(w, "metrics not enabled")
		return
	}
	writeJSON(w, http.StatusOK, s.metrics.GetSummary())
}

func (s *Server) handleDashboard(w http.ResponseWriter, _ *http.Request) {
	data := map[string]any{
		"system": map[string]any{
			"service":                 "aratta",
			"version":                 Version,
			"self_healing_enabled":    s.config.Healing.HealingEnabled(),
			"heal_model":              s.config.Healing.HealModel,
			"research_model":          s.config.Healing.ResearchModel,
			"circuit_breaker_enabled": s.config.Resilience.BreakerEnabled(),
		},
	}

	var health map[string]providersHealth
	if s.monitor != nil {
		summary := s.monitor.Summary()
		health = make(map[string]providersHealth, len(summary))
		for name, ph := range summary {
			health[name] = providersHealth{
				ConsecutiveFailures: ph.ConsecutiveFailures,
				Healing:             ph.Healing,
			}
		}
		data["health"] = summary
	}

	var reloadStatus map[string]bool
	var currentVersions map[string]int
	if s.reloader != nil {
		status := s.reloader.Status()
		reloadStatus = make(map[string]bool, len(status.PendingFixes))
		for _, p := range status.PendingFixes {
			reloadStatus[p] = true
		}
		currentVersions = status.CurrentVersions
	}

	providerList := []map[string]any{}
	for _, name := range s.config.AvailableProviders() {
		entry := map[string]any{"name": name, "circuit_state": "closed"}
		if s.breaker != nil {
			entry["circuit_state"] = string(s.breaker.State(name))
		}
		if h, ok := health[name]; ok {
			entry["consecutive_failures"] = h.ConsecutiveFailures
			entry["healing"] = h.Healing
		}
		if s.reloader != nil {
			entry["pending_fix"] = reloadStatus[name]
			entry["current_version"] = currentVersions[name]
		}
		providerList = append(providerList, entry)
	}
	data["providers"] = providerList

	if s.metrics != nil {
		data["metrics"] = s.metrics.GetSummary()
	}
	writeJSON(w, http.StatusOK, data)
}

type providersHealth struct {
	ConsecutiveFailures int
	Healing             bool
}

func (s *Server) handleAuditRecent(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeUnavailable(w, "audit trail not enabled")
		return
	}

	q := audit.Query{
		Kind:     audit.Kind(r.URL.Query().Get("kind")),
		Provider: r.URL.Query().Get("provider"),
		Status:   r.URL.Query().Get("status"),
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		q.Limit = n
	}

	records, err := s.audit.Recent(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

// verifyProvider probes a provider after a fix is applied. A non-nil
// error fails verification and triggers rollback.
func (s *Server) verifyProvider(name string) error {
	p, err := s.registry.Get(name)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
	defer cancel()
	status := p.HealthCheck(ctx)
	if status.Status != providers.Healthy {
		return &providers.ProviderError{
			Provider: name,
			Message:  "health check returned " + string(status.Status),
		}
	}
	return nil
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
