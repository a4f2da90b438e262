// Package settings loads the externally owned analytics configuration:
// alert thresholds, health-score component weights, and engine cadence.
// Every field carries a documented default; a missing or malformed field is
// replaced by its default and reported as a FieldWarning so evaluation of the
// remaining rules is never blocked.
package settings

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Default threshold values, applied whenever a field is absent or invalid.
const (
	DefaultTimelineBehindPct    = 20.0
	DefaultDeadlineDaysCritical = 7
	DefaultOwnerMaxActive       = 5
	DefaultBudgetOverrunWarnPct = 10.0
	DefaultBudgetOverrunCritPct = 25.0
	DefaultLowROIPct            = 5.0

	DefaultCacheTTLMinutes        = 5
	DefaultRefreshIntervalMinutes = 5
)

// Alerts holds the threshold configuration consumed by the alert engine.
type Alerts struct {
	TimelineBehindPct    float64
	DeadlineDaysCritical int
	OwnerMaxActive       int
	BudgetOverrunWarnPct float64
	BudgetOverrunCritPct float64
	LowROIPct            float64
}

// HealthWeights holds the relative weight of each health-score component.
// Weights are normalized at use; only the ratios matter.
type HealthWeights struct {
	InitiativeHealth float64
	IssueVelocity    float64
	TeamUtilization  float64
	ROITrend         float64
}

// Settings is the full validated configuration record.
type Settings struct {
	Alerts                 Alerts
	HealthWeights          HealthWeights
	CacheTTLMinutes        int
	RefreshIntervalMinutes int
}

// FieldWarning reports a configuration field that fell back to its default.
type FieldWarning struct {
	Field   string
	Message string
}

func (w FieldWarning) String() string {
	return fmt.Sprintf("%s: %s", w.Field, w.Message)
}

// Defaults returns the documented default configuration.
func Defaults() Settings {
	return Settings{
		Alerts: Alerts{
			TimelineBehindPct:    DefaultTimelineBehindPct,
			DeadlineDaysCritical: DefaultDeadlineDaysCritical,
			OwnerMaxActive:       DefaultOwnerMaxActive,
			BudgetOverrunWarnPct: DefaultBudgetOverrunWarnPct,
			BudgetOverrunCritPct: DefaultBudgetOverrunCritPct,
			LowROIPct:            DefaultLowROIPct,
		},
		HealthWeights: HealthWeights{
			InitiativeHealth: 1,
			IssueVelocity:    1,
			TeamUtilization:  1,
			ROITrend:         1,
		},
		CacheTTLMinutes:        DefaultCacheTTLMinutes,
		RefreshIntervalMinutes: DefaultRefreshIntervalMinutes,
	}
}

type rawSettings struct {
	Alerts struct {
		TimelineBehindPct    *float64 `yaml:"timeline_behind_pct"`
		DeadlineDaysCritical *int     `yaml:"deadline_days_critical"`
		OwnerMaxActive       *int     `yaml:"owner_max_active"`
		BudgetOverrunWarnPct *float64 `yaml:"budget_overrun_warn_pct"`
		BudgetOverrunCritPct *float64 `yaml:"budget_overrun_crit_pct"`
		LowROIPct            *float64 `yaml:"low_roi_pct"`
	} `yaml:"alerts"`
	HealthWeights struct {
		InitiativeHealth *float64 `yaml:"initiative_health"`
		IssueVelocity    *float64 `yaml:"issue_velocity"`
		TeamUtilization  *float64 `yaml:"team_utilization"`
		ROITrend         *float64 `yaml:"roi_trend"`
	} `yaml:"health_weights"`
	CacheTTLMinutes        *int `yaml:"cache_ttl_minutes"`
	RefreshIntervalMinutes *int `yaml:"refresh_interval_minutes"`
}

// Parse validates a settings document. Field-level problems are repaired with
// defaults and returned as warnings; only an unparsable document is an error.
func Parse(data []byte) (Settings, []FieldWarning, error) {
	var raw rawSettings
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Defaults(), nil, fmt.Errorf("parse settings: %w", err)
	}

	s := Defaults()
	var warnings []FieldWarning

	pickFloat := func(field string, dst *float64, src *float64, min float64) {
		if src == nil {
			warnings = append(warnings, FieldWarning{Field: field, Message: fmt.Sprintf("missing, using default %g", *dst)})
			return
		}
		if *src < min {
			warnings = append(warnings, FieldWarning{Field: field, Message: fmt.Sprintf("%g is below minimum %g, using default %g", *src, min, *dst)})
			return
		}
		*dst = *src
	}
	pickInt := func(field string, dst *int, src *int, min int) {
		if src == nil {
			warnings = append(warnings, FieldWarning{Field: field, Message: fmt.Sprintf("missing, using default %d", *dst)})
			return
		}
		if *src < min {
			warnings = append(warnings, FieldWarning{Field: field, Message: fmt.Sprintf("%d is below minimum %d, using default %d", *src, min, *dst)})
			return
		}
		*dst = *src
	}

	pickFloat("alerts.timeline_behind_pct", &s.Alerts.TimelineBehindPct, raw.Alerts.TimelineBehindPct, 0)
	pickInt("alerts.deadline_days_critical", &s.Alerts.DeadlineDaysCritical, raw.Alerts.DeadlineDaysCritical, 0)
	pickInt("alerts.owner_max_active", &s.Alerts.OwnerMaxActive, raw.Alerts.OwnerMaxActive, 1)
	pickFloat("alerts.budget_overrun_warn_pct", &s.Alerts.BudgetOverrunWarnPct, raw.Alerts.BudgetOverrunWarnPct, 0)
	pickFloat("alerts.budget_overrun_crit_pct", &s.Alerts.BudgetOverrunCritPct, raw.Alerts.BudgetOverrunCritPct, 0)
	pickFloat("alerts.low_roi_pct", &s.Alerts.LowROIPct, raw.Alerts.LowROIPct, 0)

	pickFloat("health_weights.initiative_health", &s.HealthWeights.InitiativeHealth, raw.HealthWeights.InitiativeHealth, 0)
	pickFloat("health_weights.issue_velocity", &s.HealthWeights.IssueVelocity, raw.HealthWeights.IssueVelocity, 0)
	pickFloat("health_weights.team_utilization", &s.HealthWeights.TeamUtilization, raw.HealthWeights.TeamUtilization, 0)
	pickFloat("health_weights.roi_trend", &s.HealthWeights.ROITrend, raw.HealthWeights.ROITrend, 0)

	pickInt("cache_ttl_minutes", &s.CacheTTLMinutes, raw.CacheTTLMinutes, 0)
	pickInt("refresh_interval_minutes", &s.RefreshIntervalMinutes, raw.RefreshIntervalMinutes, 1)

	if s.HealthWeights.InitiativeHealth+s.HealthWeights.IssueVelocity+s.HealthWeights.TeamUtilization+s.HealthWeights.ROITrend <= 0 {
		s.HealthWeights = Defaults().HealthWeights
		warnings = append(warnings, FieldWarning{Field: "health_weights", Message: "weights sum to zero, using equal weighting"})
	}

	if s.Alerts.BudgetOverrunCritPct < s.Alerts.BudgetOverrunWarnPct {
		warnings = append(warnings, FieldWarning{
			Field:   "alerts.budget_overrun_crit_pct",
			Message: fmt.Sprintf("%g is below warn threshold %g, using defaults for both", s.Alerts.BudgetOverrunCritPct, s.Alerts.BudgetOverrunWarnPct),
		})
		s.Alerts.BudgetOverrunWarnPct = DefaultBudgetOverrunWarnPct
		s.Alerts.BudgetOverrunCritPct = DefaultBudgetOverrunCritPct
	}

	return s, warnings, nil
}

// Load reads the settings file at path. Any failure, including a missing
// file, yields the documented defaults plus a warning; the engine always gets
// a usable configuration.
func Load(path string) (Settings, []FieldWarning) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Defaults(), []FieldWarning{{Field: "settings", Message: fmt.Sprintf("unreadable (%v), using defaults", err)}}
	}
	s, warnings, err := Parse(data)
	if err != nil {
		return Defaults(), []FieldWarning{{Field: "settings", Message: fmt.Sprintf("malformed (%v), using defaults", err)}}
	}
	return s, warnings
}
