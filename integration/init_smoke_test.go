package integration_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"compass/integration/harness"
)

func TestInitSmoke(t *testing.T) {
	binPath := harness.BuildBinary(t)
	runDir := t.TempDir()
	workspaceRoot := filepath.Join(t.TempDir(), "workspace-init")

	args := []string{
		"init",
		"--workspace", workspaceRoot,
	}
	stdout, stderr, code := harness.Run(t, binPath, runDir, args)
	if code != 0 {
		t.Fatalf("compass init exit code %d\nstdout:\n%s\nstderr:\n%s", code, stdout, stderr)
	}
	if !strings.Contains(stdout, "Initialized workspace") {
		t.Fatalf("expected init confirmation\nstdout:\n%s", stdout)
	}

	paths := []string{
		filepath.Join(workspaceRoot, "records"),
		filepath.Join(workspaceRoot, "state"),
		filepath.Join(workspaceRoot, "records", "issues.yml"),
		filepath.Join(workspaceRoot, "records", "initiatives.yml"),
		filepath.Join(workspaceRoot, "records", "teams.yml"),
		filepath.Join(workspaceRoot, "settings.yml"),
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("missing init path %s: %v", path, err)
		}
	}

	// Init is idempotent: a second run leaves existing records alone.
	before, err := os.ReadFile(filepath.Join(workspaceRoot, "records", "issues.yml"))
	if err != nil {
		t.Fatalf("read issues: %v", err)
	}
	_, stderr, code = harness.Run(t, binPath, runDir, args)
	if code != 0 {
		t.Fatalf("second compass init exit code %d\nstderr:\n%s", code, stderr)
	}
	after, err := os.ReadFile(filepath.Join(workspaceRoot, "records", "issues.yml"))
	if err != nil {
		t.Fatalf("reread issues: %v", err)
	}
	if string(before) != string(after) {
		t.Fatalf("init must not overwrite existing records")
	}

	// The scaffolded workspace analyzes cleanly.
	stdout, stderr, code = harness.Run(t, binPath, runDir, []string{"insights", "--workspace", workspaceRoot})
	if code != 0 {
		t.Fatalf("compass insights exit code %d\nstdout:\n%s\nstderr:\n%s", code, stdout, stderr)
	}
	if !strings.Contains(stdout, `"headlines"`) {
		t.Fatalf("expected an insight report\nstdout:\n%s", stdout)
	}
}
