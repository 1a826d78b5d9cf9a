package resilience

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"aratta-hq/aratta/pkg/providers"
	"aratta-hq/aratta/pkg/schema"
)

// Heal cycle tuning. Research findings and adapter source are capped
// before entering the fix prompt.
const (
	healTemperature   = 0.3
	healMaxTokens     = 3000
	healSourceLimit   = 6000
	healResearchLimit = 6000
)

const diagnosePrompt = `You are analyzing an adapter failure in Aratta, a sovereignty layer for AI providers.

Given the error details below, determine:
1. Is this a transient issue (rate limit, timeout) or a real API/schema change?
2. If it looks like an API change, what specific thing changed?
3. What search query would find the current API documentation or changelog?

Respond in this exact JSON format:
{
    "is_transient": false,
    "diagnosis": "Brief analysis of what broke",
    "search_queries": ["query to find current API docs", "query for changelog"],
    "what_to_look_for": "Specific thing the search should find"
}`

const fixPrompt = `You are generating a code fix for an Aratta provider adapter.

You have:
1. The original error and diagnosis
2. Research findings from current API documentation
3. The current adapter source code

Generate a fix. Be conservative and only change what is necessary.

Respond in this exact JSON format:
{
    "fix_type": "code_patch | config_change | workaround | no_fix_needed",
    "confidence": 0.0,
    "change_summary": "One-line description",
    "fix_code": "The corrected function or code block (only if fix_type is code_patch/workaround)",
    "reasoning": "Why this fix addresses the issue"
}`

type diagnosis struct {
	IsTransient   bool     `json:"is_transient"`
	Diagnosis     string   `json:"diagnosis"`
	SearchQueries []string `json:"search_queries"`
	WhatToLookFor string   `json:"what_to_look_for"`
}

// GetProviderFunc returns a constructed provider by gateway name.
type GetProviderFunc func(name string) (providers.Provider, error)

// ResolveFunc resolves a model alias to (provider, model id).
type ResolveFunc func(alias string) (provider, model string)

// HealWorker runs the three-phase heal cycle through the gateway's own
// provider stack: a local model diagnoses the failure, a search-capable
// cloud provider fetches current documentation, and the local model
// generates the fix. The cloud provider only retrieves; the local model
// decides.
type HealWorker struct {
	getProvider GetProviderFunc
	resolve     ResolveFunc

	healModel         string
	researchModel     string
	researchWebSearch bool
	cloudProviders    []string
}

// NewHealWorker builds a worker. healModel is the alias used for
// diagnosis and fix generation, researchModel the alias for document
// retrieval; empty values fall back to "local" and "grok".
func NewHealWorker(getProvider GetProviderFunc, resolve ResolveFunc, healModel, researchModel string) *HealWorker {
	if healModel == "" {
		healModel = "local"
	}
	if researchModel == "" {
		researchModel = "grok"
	}
	return &HealWorker{
		getProvider:       getProvider,
		resolve:           resolve,
		healModel:         healModel,
		researchModel:     researchModel,
		researchWebSearch: true,
		cloudProviders:    []string{"xai", "openai", "google", "anthropic"},
	}
}

// Heal runs the full cycle for a failed provider and returns a proposal
// ready for ReloadManager.ApplyFix. It never returns an error; a failed
// cycle is reported as a zero-confidence proposal with a failure fix
// type.
func (w *HealWorker) Heal(ctx context.Context, provider string, latest AdapterError, recent []AdapterError, adapterSource string) FixProposal {
	diag, err := w.phaseDiagnose(ctx, provider, latest, recent)
	if err != nil {
		return healFailure(provider, err)
	}

	if diag.IsTransient {
		slog.Info("diagnosis transient, skipping fix", "provider", provider)
		summary := diag.Diagnosis
		if summary == "" {
			summary = "temporary failure"
		}
		return FixProposal{
			Provider:      provider,
			FixType:       FixTypeNoFixNeeded,
			Confidence:    0.8,
			ChangeSummary: "transient: " + summary,
			Analysis:      diag.Diagnosis,
			Reasoning:     "transient errors resolve on their own",
		}
	}

	research := w.phaseResearch(ctx, provider, diag)

	fix, err := w.phaseFix(ctx, provider, latest, diag, research, adapterSource)
	if err != nil {
		return healFailure(provider, err)
	}
	slog.Info("heal cycle complete",
		"provider", provider,
		"fix_type", fix.FixType,
		"confidence", fix.Confidence,
	)
	return fix
}

// healFailure categorizes a failed heal cycle instead of masking it as
// no_fix_needed.
func healFailure(provider string, err error) FixProposal {
	msg := strings.ToLower(err.Error())
	fixType := FixTypeHealError
	switch {
	case strings.Contains(msg, "auth"), strings.Contains(msg, "401"), strings.Contains(msg, "key"):
		fixType = FixTypeAuthError
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "connect"), strings.Contains(msg, "temporary"):
		fixType = FixTypeTransient
	}
	slog.Error("heal cycle failed", "provider", provider, "fix_type", fixType, "error", err)
	return FixProposal{
		Provider:      provider,
		FixType:       fixType,
		Confidence:    0,
		ChangeSummary: fmt.Sprintf("heal cycle failed: %v", err),
		Analysis:      err.Error(),
		Reasoning:     fmt.Sprintf("could not complete heal cycle (%s)", fixType),
	}
}

func (w *HealWorker) phaseDiagnose(ctx context.Context, provider string, latest AdapterError, recent []AdapterError) (diagnosis, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "## Adapter Failure Report\n")
	fmt.Fprintf(&b, "Provider: %s\n", provider)
	fmt.Fprintf(&b, "Model: %s\n", latest.Model)
	fmt.Fprintf(&b, "Error type: %s\n", latest.Kind)
	fmt.Fprintf(&b, "Error message: %s\n", latest.Message)
	if len(recent) > 0 {
		b.WriteString("\n## Recent Error History\n")
		for i, e := range recent {
			msg := e.Message
			if len(msg) > 200 {
				msg = msg[:200]
			}
			fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, e.Kind, msg)
		}
	}

	response, err := w.callModel(ctx, w.healModel, diagnosePrompt, b.String(), false)
	if err != nil {
		return diagnosis{}, err
	}

	var diag diagnosis
	if !parseModelJSON(response, &diag) {
		diag = diagnosis{
			Diagnosis:     truncate(response, 500),
			SearchQueries: []string{provider + " API changelog latest"},
			WhatToLookFor: "API changes",
		}
	}
	return diag, nil
}

// phaseResearch asks a search-capable cloud provider for current
// documentation. The configured research model goes first; any other
// cloud provider is tried as a fallback. Research is best-effort.
func (w *HealWorker) phaseResearch(ctx context.Context, provider string, diag diagnosis) string {
	queries := diag.SearchQueries
	if len(queries) == 0 {
		queries = []string{provider + " API documentation latest changes"}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Search for the latest %s API documentation and recent changes.\n\n", provider)
	fmt.Fprintf(&b, "Specifically look for: %s\n\n", diag.WhatToLookFor)
	b.WriteString("Search queries to try:\n")
	for _, q := range queries {
		fmt.Fprintf(&b, "- %s\n", q)
	}
	fmt.Fprintf(&b,
		"\nReturn a summary of what you find about recent API changes, "+
			"new fields, deprecated fields, or format changes for the %s API. "+
			"Include specific details about request/response schemas if available.",
		provider)
	prompt := b.String()

	system := "You are a research assistant finding current API documentation. " +
		"Search the web for the most recent information and summarize your findings. " +
		"Focus on API changes, schema updates, and breaking changes."

	result, err := w.callModel(ctx, w.researchModel, system, prompt, w.researchWebSearch)
	if err == nil && len(strings.TrimSpace(result)) > 50 {
		slog.Info("research phase complete", "model", w.researchModel)
		return result
	}
	if err != nil {
		slog.Warn("research model failed", "model", w.researchModel, "error", err)
	}

	// Exclude the provider the research alias resolved to, and never
	// research through the provider being healed.
	primary, _ := w.resolve(w.researchModel)
	for _, name := range w.cloudProviders {
		if name == primary || name == provider {
			continue
		}
		result, err := w.callModel(ctx, name, system, prompt, true)
		if err != nil {
			slog.Debug("research fallback failed", "provider", name, "error", err)
			continue
		}
		if len(strings.TrimSpace(result)) > 50 {
			slog.Info("research phase complete", "provider", name, "fallback", true)
			return result
		}
	}

	slog.Warn("research phase found no cloud provider, proceeding without docs")
	return "No current documentation found. Fix based on error analysis only."
}

func (w *HealWorker) phaseFix(ctx context.Context, provider string, latest AdapterError, diag diagnosis, research, adapterSource string) (FixProposal, error) {
	var b strings.Builder
	b.WriteString("## Error\n")
	fmt.Fprintf(&b, "Provider: %s, Model: %s\n", provider, latest.Model)
	fmt.Fprintf(&b, "Type: %s\n", latest.Kind)
	fmt.Fprintf(&b, "Message: %s\n", latest.Message)
	b.WriteString("\n## Diagnosis\n")
	if diag.Diagnosis != "" {
		b.WriteString(diag.Diagnosis)
	} else {
		b.WriteString("Unknown")
	}
	b.WriteString("\n\n## Research Findings (current API docs)\n")
	b.WriteString(truncate(research, healResearchLimit))
	if adapterSource != "" {
		truncated := truncate(adapterSource, healSourceLimit)
		if len(adapterSource) > healSourceLimit {
			truncated += "\n\n... (truncated)"
		}
		fmt.Fprintf(&b, "\n\n## Current Adapter Source\n```go\n%s\n```", truncated)
	}

	response, err := w.callModel(ctx, w.healModel, fixPrompt, b.String(), false)
	if err != nil {
		return FixProposal{}, err
	}

	var fix FixProposal
	if !parseModelJSON(response, &fix) {
		fix = FixProposal{
			FixType:       FixTypeNoFixNeeded,
			Confidence:    0.1,
			ChangeSummary: "could not parse fix response",
			Reasoning:     truncate(response, 500),
		}
	}
	fix.Provider = provider
	fix.Analysis = diag.Diagnosis
	fix.ResearchSummary = truncate(research, 1000)
	return fix, nil
}

// callModel sends a system+user prompt through the gateway's own
// provider stack. webSearch enables builtin search on upstreams that
// support it, via the request metadata hint.
func (w *HealWorker) callModel(ctx context.Context, modelAlias, systemPrompt, userPrompt string, webSearch bool) (string, error) {
	if w.getProvider == nil || w.resolve == nil {
		return "", fmt.Errorf("heal worker not connected to provider system")
	}

	providerName, modelID := w.resolve(modelAlias)
	provider, err := w.getProvider(providerName)
	if err != nil {
		return "", err
	}

	temp := healTemperature
	req := &schema.ChatRequest{
		Messages: []schema.Message{
			{Role: schema.RoleSystem, Content: systemPrompt},
			{Role: schema.RoleUser, Content: userPrompt},
		},
		Model:       modelID,
		Temperature: &temp,
		MaxTokens:   healMaxTokens,
	}
	if webSearch {
		req.Metadata = map[string]any{
			"web_search":    true,
			"builtin_tools": []any{"web_search"},
		}
	}

	resp, err := provider.Chat(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// parseModelJSON extracts a JSON object from a model reply, tolerating
// markdown code fences. Returns false when nothing parseable is found.
func parseModelJSON(text string, out any) bool {
	cleaned := strings.TrimSpace(text)
	if i := strings.Index(cleaned, "```json"); i >= 0 {
		rest := cleaned[i+len("```json"):]
		if j := strings.Index(rest, "```"); j >= 0 {
			cleaned = strings.TrimSpace(rest[:j])
		}
	} else if i := strings.Index(cleaned, "```"); i >= 0 {
		rest := cleaned[i+3:]
		if j := strings.Index(rest, "```"); j >= 0 {
			cleaned = strings.TrimSpace(rest[:j])
		}
	}
	return json.Unmarshal([]byte(cleaned), out) == nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
