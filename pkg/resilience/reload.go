package resilience

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Reload manager tuning.
const (
	MaxVersions         = 10
	AutoApplyConfidence = 0.85
)

// FixStatus is the lifecycle state of an adapter version.
type FixStatus string

const (
	FixPending    FixStatus = "pending"
	FixApplied    FixStatus = "applied"
	FixVerified   FixStatus = "verified"
	FixFailed     FixStatus = "failed"
	FixRolledBack FixStatus = "rolled_back"
	FixRejected   FixStatus = "rejected"
)

// Fix types a heal cycle can produce. The last three mark heal-cycle
// failures and carry zero confidence.
const (
	FixTypeCodePatch    = "code_patch"
	FixTypeConfigChange = "config_change"
	FixTypeWorkaround   = "workaround"
	FixTypeNoFixNeeded  = "no_fix_needed"
	FixTypeAuthError    = "auth_error"
	FixTypeTransient    = "transient_error"
	FixTypeHealError    = "heal_error"
)

// FixProposal is a candidate adapter fix, usually produced by the heal
// worker.
type FixProposal struct {
	Provider        string  `json:"provider,omitempty"`
	FixType         string  `json:"fix_type"`
	Confidence      float64 `json:"confidence"`
	ChangeSummary   string  `json:"change_summary"`
	FixCode         string  `json:"fix_code,omitempty"`
	Reasoning       string  `json:"reasoning,omitempty"`
	Analysis        string  `json:"analysis,omitempty"`
	ResearchSummary string  `json:"research_summary,omitempty"`
}

// AdapterVersion is one entry in a provider's version history.
type AdapterVersion struct {
	Version            int          `json:"version"`
	Provider           string       `json:"provider"`
	Timestamp          string       `json:"timestamp"`
	BackupPath         string       `json:"backup_path"`
	ChangeSummary      string       `json:"change_summary"`
	FixProposal        *FixProposal `json:"fix_proposal,omitempty"`
	Status             FixStatus    `json:"status"`
	VerificationResult string       `json:"verification_result,omitempty"`
}

// FixApplication is the outcome of applying a fix proposal.
type FixApplication struct {
	Success            bool   `json:"success"`
	Provider           string `json:"provider"`
	Version            int    `json:"version"`
	Message            string `json:"message"`
	CodeChanged        bool   `json:"code_changed"`
	RequiresRestart    bool   `json:"requires_restart"`
	VerificationPassed *bool  `json:"verification_passed,omitempty"`
}

// VerifyFunc probes a provider after a fix. A nil error means verified.
type VerifyFunc func(provider string) error

// ReloadStatus summarizes the manager for the status API.
type ReloadStatus struct {
	AutoApply          bool           `json:"auto_apply"`
	AutoApplyThreshold float64        `json:"auto_apply_threshold"`
	CurrentVersions    map[string]int `json:"current_versions"`
	PendingFixCount    int            `json:"pending_fixes_count"`
	PendingFixes       []string       `json:"pending_fixes"`
	VersionCounts      map[string]int `json:"version_counts"`
}

type historyFile struct {
	Versions       map[string][]*AdapterVersion `json:"versions"`
	CurrentVersion map[string]int               `json:"current_version"`
}

// ReloadManager versions adapter definitions and applies heal fixes.
//
// A running Go binary cannot swap code, so code_patch and workaround
// proposals are recorded for review rather than written to the adapter
// source; applying one marks the result requires_restart and
// invalidates the provider's registry entry so the next construction
// (or a supervisor restart) picks up the promoted state. Low-confidence
// proposals queue for human approval.
type ReloadManager struct {
	mu sync.Mutex

	autoApply          bool
	autoApplyThreshold float64
	backupDir          string

	// adapterPaths maps provider name to its on-disk adapter
	// definition, the file backed up before every change.
	adapterPaths map[string]string

	versions       map[string][]*AdapterVersion
	currentVersion map[string]int
	pendingFixes   map[string]FixProposal

	// invalidate evicts a provider's cached instance after a change.
	invalidate func(provider string)

	now func() time.Time
}

// NewReloadManager builds a manager rooted at backupDir and loads any
// persisted version history.
func NewReloadManager(backupDir string, autoApply bool) (*ReloadManager, error) {
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}
	m := &ReloadManager{
		autoApply:          autoApply,
		autoApplyThreshold: AutoApplyConfidence,
		backupDir:          backupDir,
		adapterPaths:       make(map[string]string),
		versions:           make(map[string][]*AdapterVersion),
		currentVersion:     make(map[string]int),
		pendingFixes:       make(map[string]FixProposal),
		now:                time.Now,
	}
	m.loadHistory()
	return m, nil
}

// SetAdapterPath registers the on-disk definition file for a provider.
func (m *ReloadManager) SetAdapterPath(provider, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adapterPaths[provider] = path
}

// AdapterSource reads the registered definition file for a provider.
// Returns "" when no path is registered or the file is unreadable; the
// heal worker treats missing source as context it simply does not have.
func (m *ReloadManager) AdapterSource(provider string) string {
	m.mu.Lock()
	path := m.adapterPaths[provider]
	m.mu.Unlock()
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}

// OnInvalidate registers the registry eviction hook.
func (m *ReloadManager) OnInvalidate(fn func(provider string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidate = fn
}

func (m *ReloadManager) loadHistory() {
	path := filepath.Join(m.backupDir, "version_history.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("failed to load version history", "error", err)
		}
		return
	}
	var h historyFile
	if err := json.Unmarshal(raw, &h); err != nil {
		slog.Warn("failed to parse version history", "error", err)
		return
	}
	if h.Versions != nil {
		m.versions = h.Versions
	}
	if h.CurrentVersion != nil {
		m.currentVersion = h.CurrentVersion
	}
}

// saveHistory must be called with the lock held.
func (m *ReloadManager) saveHistory() {
	h := historyFile{Versions: m.versions, CurrentVersion: m.currentVersion}
	raw, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		slog.Error("failed to encode version history", "error", err)
		return
	}
	path := filepath.Join(m.backupDir, "version_history.json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		slog.Error("failed to save version history", "error", err)
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		slog.Error("failed to save version history", "error", err)
	}
}

// backupAdapter copies the provider's definition into the backup tree
// and appends a version entry. Must be called with the lock held.
func (m *ReloadManager) backupAdapter(provider, changeSummary string) (*AdapterVersion, error) {
	path, ok := m.adapterPaths[provider]
	if !ok {
		return nil, fmt.Errorf("no adapter path registered for %s", provider)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read adapter for %s: %w", provider, err)
	}

	newVersion := m.currentVersion[provider] + 1
	ts := m.now().UTC().Format("20060102_150405")
	ext := filepath.Ext(path)
	if ext == "" {
		ext = ".json"
	}
	backupPath := filepath.Join(m.backupDir, provider, fmt.Sprintf("v%d_%s%s", newVersion, ts, ext))
	if err := os.MkdirAll(filepath.Dir(backupPath), 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}
	if err := os.WriteFile(backupPath, src, 0o644); err != nil {
		return nil, fmt.Errorf("write backup: %w", err)
	}

	v := &AdapterVersion{
		Version:       newVersion,
		Provider:      provider,
		Timestamp:     m.now().UTC().Format(time.RFC3339),
		BackupPath:    backupPath,
		ChangeSummary: changeSummary,
		Status:        FixPending,
	}
	m.versions[provider] = append(m.versions[provider], v)

	if len(m.versions[provider]) > MaxVersions {
		oldest := m.versions[provider][0]
		m.versions[provider] = m.versions[provider][1:]
		if err := os.Remove(oldest.BackupPath); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to evict old backup", "path", oldest.BackupPath, "error", err)
		}
	}

	slog.Info("backed up adapter", "provider", provider, "version", newVersion)
	return v, nil
}

// ApplyFix applies a fix proposal. Proposals below the confidence
// threshold queue for human review unless auto-apply is on.
func (m *ReloadManager) ApplyFix(provider string, fix FixProposal, verify VerifyFunc) FixApplication {
	return m.apply(provider, fix, verify, false)
}

func (m *ReloadManager) apply(provider string, fix FixProposal, verify VerifyFunc, force bool) FixApplication {
	m.mu.Lock()

	slog.Info("applying fix",
		"provider", provider,
		"fix_type", fix.FixType,
		"confidence", fix.Confidence,
	)

	if !force && !m.autoApply && fix.Confidence < m.autoApplyThreshold {
		m.pendingFixes[provider] = fix
		current := m.currentVersion[provider]
		m.mu.Unlock()
		return FixApplication{
			Provider: provider,
			Version:  current,
			Message: fmt.Sprintf("queued for review (confidence %.2f < %.2f)",
				fix.Confidence, m.autoApplyThreshold),
		}
	}

	version, err := m.backupAdapter(provider, fix.ChangeSummary)
	if err != nil {
		current := m.currentVersion[provider]
		m.mu.Unlock()
		slog.Error("fix application failed", "provider", provider, "error", err)
		return FixApplication{
			Provider: provider,
			Version:  current,
			Message:  fmt.Sprintf("failed: %v", err),
		}
	}
	version.FixProposal = &fix

	requiresRestart := false
	switch fix.FixType {
	case FixTypeCodePatch, FixTypeWorkaround:
		if fix.FixCode != "" {
			requiresRestart = m.proposeCodePatch(provider, fix.FixCode)
		}
	case FixTypeNoFixNeeded:
		version.Status = FixVerified
		version.VerificationResult = "no fix needed"
		m.saveHistory()
		m.mu.Unlock()
		return FixApplication{
			Success:  true,
			Provider: provider,
			Version:  version.Version,
			Message:  "no fix needed",
		}
	}

	invalidate := m.invalidate
	m.mu.Unlock()

	if requiresRestart && invalidate != nil {
		invalidate(provider)
	}

	verified := true
	if verify != nil {
		if err := verify(provider); err != nil {
			slog.Error("verification failed", "provider", provider, "error", err)
			verified = false
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if verified {
		version.Status = FixVerified
		version.VerificationResult = "passed"
		m.currentVersion[provider] = version.Version
		m.saveHistory()
		passed := true
		return FixApplication{
			Success:            true,
			Provider:           provider,
			Version:            version.Version,
			Message:            "fix applied and verified",
			RequiresRestart:    requiresRestart,
			VerificationPassed: &passed,
		}
	}

	if err := m.rollbackLocked(provider, version.Version-1); err != nil {
		slog.Error("rollback failed", "provider", provider, "error", err)
	}
	version.Status = FixRolledBack
	version.VerificationResult = "failed, rolled back"
	m.saveHistory()
	failed := false
	return FixApplication{
		Provider:           provider,
		Version:            version.Version - 1,
		Message:            "verification failed, rolled back",
		VerificationPassed: &failed,
	}
}

// proposeCodePatch records a patch for human review. Patches are never
// written to the adapter source by the running process; the return
// value reports whether a restart would be needed to pick one up.
// Must be called with the lock held.
func (m *ReloadManager) proposeCodePatch(provider, fixCode string) bool {
	if _, ok := m.adapterPaths[provider]; !ok {
		slog.Warn("cannot propose code patch, adapter path unknown", "provider", provider)
		return false
	}
	preview := fixCode
	if len(preview) > 500 {
		preview = preview[:500] + "..."
	}
	slog.Info("code patch proposed, requires review via fixes API",
		"provider", provider,
		"patch_preview", preview,
	)
	return true
}

// rollbackLocked restores a provider's definition from a backed-up
// version. Must be called with the lock held.
func (m *ReloadManager) rollbackLocked(provider string, toVersion int) error {
	var target *AdapterVersion
	for _, v := range m.versions[provider] {
		if v.Version == toVersion {
			target = v
			break
		}
	}
	if target == nil {
		return fmt.Errorf("version %d not found for %s", toVersion, provider)
	}
	src, err := os.ReadFile(target.BackupPath)
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}
	if path, ok := m.adapterPaths[provider]; ok {
		if err := os.WriteFile(path, src, 0o644); err != nil {
			return fmt.Errorf("restore adapter: %w", err)
		}
	}
	m.currentVersion[provider] = toVersion
	m.saveHistory()
	slog.Info("rolled back adapter", "provider", provider, "version", toVersion)
	return nil
}

// Rollback restores a provider to an earlier version and invalidates
// its registry entry.
func (m *ReloadManager) Rollback(provider string, version int) error {
	m.mu.Lock()
	err := m.rollbackLocked(provider, version)
	invalidate := m.invalidate
	m.mu.Unlock()
	if err != nil {
		return err
	}
	if invalidate != nil {
		invalidate(provider)
	}
	return nil
}

// VersionHistory returns the recorded versions for a provider, oldest
// first.
func (m *ReloadManager) VersionHistory(provider string) []AdapterVersion {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]AdapterVersion, 0, len(m.versions[provider]))
	for _, v := range m.versions[provider] {
		out = append(out, *v)
	}
	return out
}

// PendingFixes returns the proposals queued for review, keyed by
// provider.
func (m *ReloadManager) PendingFixes() map[string]FixProposal {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]FixProposal, len(m.pendingFixes))
	for p, f := range m.pendingFixes {
		out[p] = f
	}
	return out
}

// ApproveFix applies a queued proposal regardless of its confidence.
func (m *ReloadManager) ApproveFix(provider string, verify VerifyFunc) FixApplication {
	m.mu.Lock()
	fix, ok := m.pendingFixes[provider]
	if !ok {
		current := m.currentVersion[provider]
		m.mu.Unlock()
		return FixApplication{
			Provider: provider,
			Version:  current,
			Message:  "no pending fix",
		}
	}
	delete(m.pendingFixes, provider)
	m.mu.Unlock()
	return m.apply(provider, fix, verify, true)
}

// RejectFix drops a queued proposal.
func (m *ReloadManager) RejectFix(provider, reason string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pendingFixes[provider]; !ok {
		return false
	}
	delete(m.pendingFixes, provider)
	slog.Info("rejected fix", "provider", provider, "reason", reason)
	if vs := m.versions[provider]; len(vs) > 0 {
		latest := vs[len(vs)-1]
		latest.Status = FixRejected
		latest.VerificationResult = "rejected: " + reason
		m.saveHistory()
	}
	return true
}

// Status reports the manager state for the status API.
func (m *ReloadManager) Status() ReloadStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	pending := make([]string, 0, len(m.pendingFixes))
	for p := range m.pendingFixes {
		pending = append(pending, p)
	}
	current := make(map[string]int, len(m.currentVersion))
	for p, v := range m.currentVersion {
		current[p] = v
	}
	counts := make(map[string]int, len(m.versions))
	for p, vs := range m.versions {
		counts[p] = len(vs)
	}
	return ReloadStatus{
		AutoApply:          m.autoApply,
		AutoApplyThreshold: m.autoApplyThreshold,
		CurrentVersions:    current,
		PendingFixCount:    len(m.pendingFixes),
		PendingFixes:       pending,
		VersionCounts:      counts,
	}
}
