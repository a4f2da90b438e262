package integration_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"compass/integration/harness"
)

// resultEnvelope mirrors the engine's Result wrapper for decoding CLI output.
type resultEnvelope struct {
	Value  json.RawMessage `json:"value"`
	Status string          `json:"status"`
	Faults []string        `json:"faults"`
}

func decodeResult(t *testing.T, stdout string) resultEnvelope {
	t.Helper()
	var res resultEnvelope
	if err := json.Unmarshal([]byte(stdout), &res); err != nil {
		t.Fatalf("decode result envelope: %v\nstdout:\n%s", err, stdout)
	}
	return res
}

func fixtureWorkspace(t *testing.T) string {
	t.Helper()
	workspace := t.TempDir()
	fixture := filepath.Join(harness.RepoRoot(t), "integration", "fixtures", "workspace-min")
	harness.CopyDir(t, fixture, workspace)
	return workspace
}

func TestCLISmoke(t *testing.T) {
	binPath := harness.BuildBinary(t)
	workspace := fixtureWorkspace(t)
	runDir := t.TempDir()

	stdout, stderr, code := harness.Run(t, binPath, runDir, []string{"--help"})
	if code != 0 {
		t.Fatalf("compass --help exit code %d\nstdout:\n%s\nstderr:\n%s", code, stdout, stderr)
	}
	if !strings.Contains(stdout+stderr, "strategic intelligence analytics") {
		t.Fatalf("expected help header\nstdout:\n%s\nstderr:\n%s", stdout, stderr)
	}

	stdout, stderr, code = harness.Run(t, binPath, runDir, []string{"clusters", "--workspace", workspace})
	if code != 0 {
		t.Fatalf("compass clusters exit code %d\nstderr:\n%s", code, stderr)
	}
	clusters := decodeResult(t, stdout)
	if clusters.Status != "ok" {
		t.Fatalf("clusters status = %s\nstdout:\n%s", clusters.Status, stdout)
	}
	if !strings.Contains(string(clusters.Value), `"Delivery"`) || !strings.Contains(string(clusters.Value), `"Revenue"`) {
		t.Fatalf("expected Delivery and Revenue clusters\nstdout:\n%s", stdout)
	}

	stdout, stderr, code = harness.Run(t, binPath, runDir, []string{"health", "--workspace", workspace})
	if code != 0 {
		t.Fatalf("compass health exit code %d\nstderr:\n%s", code, stderr)
	}
	health := decodeResult(t, stdout)
	var score struct {
		Score int    `json:"score"`
		Trend string `json:"trend"`
	}
	if err := json.Unmarshal(health.Value, &score); err != nil {
		t.Fatalf("decode health score: %v\nstdout:\n%s", err, stdout)
	}
	if score.Score < 0 || score.Score > 100 {
		t.Fatalf("health score %d out of range", score.Score)
	}

	stdout, stderr, code = harness.Run(t, binPath, runDir, []string{"alerts", "--workspace", workspace})
	if code != 0 {
		t.Fatalf("compass alerts exit code %d\nstderr:\n%s", code, stderr)
	}
	alerts := decodeResult(t, stdout)
	for _, want := range []string{
		"timeline:critical:init-1",
		"roi:budget:crit:init-1",
		"resource:over:team-platform",
		"issue:backlog",
	} {
		if !strings.Contains(string(alerts.Value), want) {
			t.Fatalf("expected alert %s\nstdout:\n%s", want, stdout)
		}
	}

	stdout, stderr, code = harness.Run(t, binPath, runDir, []string{"forecast", "--workspace", workspace})
	if code != 0 {
		t.Fatalf("compass forecast exit code %d\nstderr:\n%s", code, stderr)
	}
	forecast := decodeResult(t, stdout)
	if !strings.Contains(string(forecast.Value), `"total_investment"`) {
		t.Fatalf("expected a forecast record\nstdout:\n%s", stdout)
	}

	stdout, stderr, code = harness.Run(t, binPath, runDir, []string{
		"correlate", "--workspace", workspace, "--type", "cluster", "--id", "Delivery",
	})
	if code != 0 {
		t.Fatalf("compass correlate exit code %d\nstderr:\n%s", code, stderr)
	}
	correlation := decodeResult(t, stdout)
	if !strings.Contains(string(correlation.Value), "issue-1") || !strings.Contains(string(correlation.Value), "init-1") {
		t.Fatalf("expected related issue and initiative\nstdout:\n%s", stdout)
	}

	// Second run over the unchanged workspace serves the cached result.
	stdout, stderr, code = harness.Run(t, binPath, runDir, []string{"alerts", "--workspace", workspace})
	if code != 0 {
		t.Fatalf("compass alerts (cached) exit code %d\nstderr:\n%s", code, stderr)
	}
	if !strings.Contains(stdout, `"from_cache": true`) {
		t.Fatalf("expected a cache hit on the second run\nstdout:\n%s", stdout)
	}

	// State stays inside the workspace, never in the repo.
	if _, err := os.Stat(filepath.Join(workspace, "state", "cache.db")); err != nil {
		t.Fatalf("cache db not written in workspace: %v", err)
	}
	repoState := filepath.Join(harness.RepoRoot(t), "state")
	if _, err := os.Stat(repoState); err == nil {
		t.Fatalf("repo state dir should not exist at %s", repoState)
	} else if !os.IsNotExist(err) {
		t.Fatalf("stat repo state: %v", err)
	}
}

func TestCLIDegradedWithoutTeams(t *testing.T) {
	binPath := harness.BuildBinary(t)
	workspace := fixtureWorkspace(t)
	runDir := t.TempDir()

	if err := os.Remove(filepath.Join(workspace, "records", "teams.yml")); err != nil {
		t.Fatalf("remove teams.yml: %v", err)
	}

	stdout, stderr, code := harness.Run(t, binPath, runDir, []string{"alerts", "--workspace", workspace, "--fresh"})
	if code != 0 {
		t.Fatalf("compass alerts exit code %d\nstderr:\n%s", code, stderr)
	}
	alerts := decodeResult(t, stdout)
	if alerts.Status != "degraded" {
		t.Fatalf("alerts status = %s, want degraded\nstdout:\n%s", alerts.Status, stdout)
	}
	if strings.Contains(string(alerts.Value), "resource:over") {
		t.Fatalf("resource rules must stay silent without team data\nstdout:\n%s", stdout)
	}
	if !strings.Contains(string(alerts.Value), "timeline:critical:init-1") {
		t.Fatalf("timeline rule should still fire\nstdout:\n%s", stdout)
	}
}

func TestCLISettingsCommands(t *testing.T) {
	binPath := harness.BuildBinary(t)
	workspace := fixtureWorkspace(t)
	runDir := t.TempDir()

	stdout, stderr, code := harness.Run(t, binPath, runDir, []string{"settings", "show", "--workspace", workspace})
	if code != 0 {
		t.Fatalf("compass settings show exit code %d\nstderr:\n%s", code, stderr)
	}
	if !strings.Contains(stdout, "timeline_behind_pct") {
		t.Fatalf("expected rendered settings\nstdout:\n%s", stdout)
	}

	// Sparse settings file: diff previews the normalization, write applies it.
	if err := os.WriteFile(filepath.Join(workspace, "settings.yml"), []byte("cache_ttl_minutes: 10\n"), 0o644); err != nil {
		t.Fatalf("write sparse settings: %v", err)
	}
	stdout, stderr, code = harness.Run(t, binPath, runDir, []string{"settings", "diff", "--workspace", workspace})
	if code != 0 {
		t.Fatalf("compass settings diff exit code %d\nstderr:\n%s", code, stderr)
	}
	if !strings.Contains(stdout, "+alerts:") {
		t.Fatalf("expected a normalization diff\nstdout:\n%s", stdout)
	}

	_, stderr, code = harness.Run(t, binPath, runDir, []string{"settings", "write", "--workspace", workspace})
	if code != 0 {
		t.Fatalf("compass settings write exit code %d\nstderr:\n%s", code, stderr)
	}
	stdout, _, code = harness.Run(t, binPath, runDir, []string{"settings", "diff", "--workspace", workspace})
	if code != 0 {
		t.Fatalf("compass settings diff after write exit code %d", code)
	}
	if !strings.Contains(stdout, "already normalized") {
		t.Fatalf("expected a clean diff after write\nstdout:\n%s", stdout)
	}
}
