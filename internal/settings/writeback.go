package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"gopkg.in/yaml.v3"
)

type writebackSettings struct {
	Alerts struct {
		TimelineBehindPct    float64 `yaml:"timeline_behind_pct"`
		DeadlineDaysCritical int     `yaml:"deadline_days_critical"`
		OwnerMaxActive       int     `yaml:"owner_max_active"`
		BudgetOverrunWarnPct float64 `yaml:"budget_overrun_warn_pct"`
		BudgetOverrunCritPct float64 `yaml:"budget_overrun_crit_pct"`
		LowROIPct            float64 `yaml:"low_roi_pct"`
	} `yaml:"alerts"`
	HealthWeights struct {
		InitiativeHealth float64 `yaml:"initiative_health"`
		IssueVelocity    float64 `yaml:"issue_velocity"`
		TeamUtilization  float64 `yaml:"team_utilization"`
		ROITrend         float64 `yaml:"roi_trend"`
	} `yaml:"health_weights"`
	CacheTTLMinutes        int `yaml:"cache_ttl_minutes"`
	RefreshIntervalMinutes int `yaml:"refresh_interval_minutes"`
}

// Render marshals a normalized settings document with every field explicit,
// so a reviewed file always shows the effective configuration.
func Render(s Settings) ([]byte, error) {
	var w writebackSettings
	w.Alerts.TimelineBehindPct = s.Alerts.TimelineBehindPct
	w.Alerts.DeadlineDaysCritical = s.Alerts.DeadlineDaysCritical
	w.Alerts.OwnerMaxActive = s.Alerts.OwnerMaxActive
	w.Alerts.BudgetOverrunWarnPct = s.Alerts.BudgetOverrunWarnPct
	w.Alerts.BudgetOverrunCritPct = s.Alerts.BudgetOverrunCritPct
	w.Alerts.LowROIPct = s.Alerts.LowROIPct
	w.HealthWeights.InitiativeHealth = s.HealthWeights.InitiativeHealth
	w.HealthWeights.IssueVelocity = s.HealthWeights.IssueVelocity
	w.HealthWeights.TeamUtilization = s.HealthWeights.TeamUtilization
	w.HealthWeights.ROITrend = s.HealthWeights.ROITrend
	w.CacheTTLMinutes = s.CacheTTLMinutes
	w.RefreshIntervalMinutes = s.RefreshIntervalMinutes

	data, err := yaml.Marshal(&w)
	if err != nil {
		return nil, fmt.Errorf("marshal settings: %w", err)
	}
	return data, nil
}

// PreviewDiff renders the unified diff between the file at path and the
// normalized form of s. An empty string means the file is already normalized.
func PreviewDiff(path string, s Settings) (string, error) {
	newBytes, err := Render(s)
	if err != nil {
		return "", err
	}
	oldBytes, _ := os.ReadFile(path)

	diff := difflib.UnifiedDiff{
		A:        strings.Split(string(oldBytes), "\n"),
		B:        strings.Split(string(newBytes), "\n"),
		FromFile: filepath.Base(path),
		ToFile:   filepath.Base(path) + " (normalized)",
		Context:  3,
	}
	diffText, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("diff settings: %w", err)
	}
	return diffText, nil
}

// Write persists the normalized settings atomically via temp file + rename.
func Write(path string, s Settings) error {
	data, err := Render(s)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure settings dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp settings: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename settings: %w", err)
	}
	return nil
}
