package resilience

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestManager(t *testing.T, autoApply bool) (*ReloadManager, string) {
	t.Helper()
	dir := t.TempDir()
	adapterPath := filepath.Join(dir, "adapter.go")
	if err := os.WriteFile(adapterPath, []byte("package anthropic // v0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := NewReloadManager(filepath.Join(dir, "backups"), autoApply)
	if err != nil {
		t.Fatal(err)
	}
	m.SetAdapterPath("anthropic", adapterPath)
	return m, adapterPath
}

func TestReloadQueuesLowConfidence(t *testing.T) {
	m, _ := newTestManager(t, false)

	result := m.ApplyFix("anthropic", FixProposal{
		FixType:       FixTypeCodePatch,
		Confidence:    0.5,
		ChangeSummary: "rename field",
	}, nil)

	if result.Success {
		t.Fatal("low-confidence fix should not apply")
	}
	if !strings.Contains(result.Message, "queued for review") {
		t.Fatalf("message = %q", result.Message)
	}
	pending := m.PendingFixes()
	if _, ok := pending["anthropic"]; !ok {
		t.Fatal("fix should be queued")
	}
}

func TestReloadAppliesHighConfidence(t *testing.T) {
	m, _ := newTestManager(t, false)

	result := m.ApplyFix("anthropic", FixProposal{
		FixType:       FixTypeNoFixNeeded,
		Confidence:    0.9,
		ChangeSummary: "transient",
	}, nil)

	if !result.Success {
		t.Fatalf("apply failed: %s", result.Message)
	}
	history := m.VersionHistory("anthropic")
	if len(history) != 1 || history[0].Status != FixVerified {
		t.Fatalf("history = %+v", history)
	}
}

func TestReloadBackupKeepsAdapterExtension(t *testing.T) {
	dir := t.TempDir()
	adapterPath := filepath.Join(dir, "anthropic.json")
	if err := os.WriteFile(adapterPath, []byte(`{"base_url":"https://api.anthropic.com"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := NewReloadManager(filepath.Join(dir, "backups"), false)
	if err != nil {
		t.Fatal(err)
	}
	m.SetAdapterPath("anthropic", adapterPath)

	result := m.ApplyFix("anthropic", FixProposal{
		FixType:       FixTypeNoFixNeeded,
		Confidence:    0.9,
		ChangeSummary: "transient",
	}, nil)
	if !result.Success {
		t.Fatalf("apply failed: %s", result.Message)
	}

	history := m.VersionHistory("anthropic")
	if len(history) != 1 {
		t.Fatalf("history = %+v", history)
	}
	if filepath.Ext(history[0].BackupPath) != ".json" {
		t.Errorf("backup path = %q, want .json extension", history[0].BackupPath)
	}
}

func TestReloadCodePatchIsProposeOnly(t *testing.T) {
	m, adapterPath := newTestManager(t, true)
	invalidated := []string{}
	m.OnInvalidate(func(p string) { invalidated = append(invalidated, p) })

	original, _ := os.ReadFile(adapterPath)
	result := m.ApplyFix("anthropic", FixProposal{
		FixType:       FixTypeCodePatch,
		Confidence:    0.95,
		ChangeSummary: "fix streaming field",
		FixCode:       "func transformResponse() {}",
	}, nil)

	if !result.Success {
		t.Fatalf("apply failed: %s", result.Message)
	}
	if result.CodeChanged {
		t.Fatal("code must never be changed by the running process")
	}
	if !result.RequiresRestart {
		t.Fatal("applied patch should require a restart")
	}
	after, _ := os.ReadFile(adapterPath)
	if string(after) != string(original) {
		t.Fatal("adapter source was modified")
	}
	if len(invalidated) != 1 || invalidated[0] != "anthropic" {
		t.Fatalf("invalidated = %v", invalidated)
	}
}

func TestReloadVerificationFailureRollsBack(t *testing.T) {
	m, _ := newTestManager(t, true)

	// Establish a known-good version first.
	first := m.ApplyFix("anthropic", FixProposal{
		FixType:       FixTypeConfigChange,
		Confidence:    0.9,
		ChangeSummary: "baseline",
	}, nil)
	if !first.Success {
		t.Fatalf("baseline apply failed: %s", first.Message)
	}

	result := m.ApplyFix("anthropic", FixProposal{
		FixType:       FixTypeConfigChange,
		Confidence:    0.9,
		ChangeSummary: "bad change",
	}, func(provider string) error {
		return errors.New("probe failed")
	})

	if result.Success {
		t.Fatal("failed verification should not succeed")
	}
	if result.Version != first.Version {
		t.Fatalf("version = %d, want rollback to %d", result.Version, first.Version)
	}
	history := m.VersionHistory("anthropic")
	last := history[len(history)-1]
	if last.Status != FixRolledBack {
		t.Fatalf("last status = %s, want rolled_back", last.Status)
	}
}

func TestReloadApproveAndReject(t *testing.T) {
	m, _ := newTestManager(t, false)

	m.ApplyFix("anthropic", FixProposal{
		FixType:       FixTypeNoFixNeeded,
		Confidence:    0.3,
		ChangeSummary: "low confidence",
	}, nil)

	result := m.ApproveFix("anthropic", nil)
	if !result.Success {
		t.Fatalf("approve failed: %s", result.Message)
	}
	if len(m.PendingFixes()) != 0 {
		t.Fatal("approved fix should leave the queue")
	}

	// Reject path.
	m.ApplyFix("anthropic", FixProposal{
		FixType:       FixTypeCodePatch,
		Confidence:    0.2,
		ChangeSummary: "sketchy",
	}, nil)
	if !m.RejectFix("anthropic", "not convincing") {
		t.Fatal("reject should succeed")
	}
	if m.RejectFix("anthropic", "again") {
		t.Fatal("second reject should report no pending fix")
	}
	history := m.VersionHistory("anthropic")
	last := history[len(history)-1]
	if last.Status != FixRejected {
		t.Fatalf("last status = %s, want rejected", last.Status)
	}
}

func TestReloadVersionBound(t *testing.T) {
	m, _ := newTestManager(t, true)

	for i := 0; i < MaxVersions+5; i++ {
		result := m.ApplyFix("anthropic", FixProposal{
			FixType:       FixTypeConfigChange,
			Confidence:    0.9,
			ChangeSummary: fmt.Sprintf("change %d", i),
		}, nil)
		if !result.Success {
			t.Fatalf("apply %d failed: %s", i, result.Message)
		}
	}

	history := m.VersionHistory("anthropic")
	if len(history) != MaxVersions {
		t.Fatalf("history length = %d, want %d", len(history), MaxVersions)
	}
	// Evicted backups must be gone from disk; retained ones present.
	for _, v := range history {
		if _, err := os.Stat(v.BackupPath); err != nil {
			t.Fatalf("retained backup missing: %s", v.BackupPath)
		}
	}
	entries, err := os.ReadDir(filepath.Dir(history[0].BackupPath))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != MaxVersions {
		t.Fatalf("backup files on disk = %d, want %d", len(entries), MaxVersions)
	}
}

func TestReloadHistoryPersists(t *testing.T) {
	dir := t.TempDir()
	adapterPath := filepath.Join(dir, "adapter.go")
	os.WriteFile(adapterPath, []byte("package openai\n"), 0o644)
	backups := filepath.Join(dir, "backups")

	m1, err := NewReloadManager(backups, true)
	if err != nil {
		t.Fatal(err)
	}
	m1.SetAdapterPath("openai", adapterPath)
	m1.ApplyFix("openai", FixProposal{
		FixType:       FixTypeConfigChange,
		Confidence:    0.9,
		ChangeSummary: "baseline",
	}, nil)

	m2, err := NewReloadManager(backups, true)
	if err != nil {
		t.Fatal(err)
	}
	history := m2.VersionHistory("openai")
	if len(history) != 1 || history[0].ChangeSummary != "baseline" {
		t.Fatalf("reloaded history = %+v", history)
	}
	if m2.Status().CurrentVersions["openai"] != 1 {
		t.Fatal("current version not persisted")
	}
}

func TestReloadRollbackToVersion(t *testing.T) {
	m, adapterPath := newTestManager(t, true)

	// v1 backs up the original source, then mutate and apply v2.
	m.ApplyFix("anthropic", FixProposal{
		FixType: FixTypeConfigChange, Confidence: 0.9, ChangeSummary: "v1",
	}, nil)
	os.WriteFile(adapterPath, []byte("package anthropic // v1\n"), 0o644)
	m.ApplyFix("anthropic", FixProposal{
		FixType: FixTypeConfigChange, Confidence: 0.9, ChangeSummary: "v2",
	}, nil)

	if err := m.Rollback("anthropic", 1); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	after, _ := os.ReadFile(adapterPath)
	if string(after) != "package anthropic // v0\n" {
		t.Fatalf("adapter content = %q, want v0 snapshot", after)
	}
	if m.Status().CurrentVersions["anthropic"] != 1 {
		t.Fatal("current version not updated by rollback")
	}

	if err := m.Rollback("anthropic", 99); err == nil {
		t.Fatal("rollback to missing version should fail")
	}
}
