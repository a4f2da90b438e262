// Package alert evaluates configurable threshold rules across timeline,
// resource, budget/ROI, and issue-backlog signals, producing ranked alerts.
package alert

import (
	"sort"
	"time"

	"compass/internal/record"
	"compass/internal/settings"
)

// Type is the alert severity.
type Type string

const (
	TypeInfo     Type = "info"
	TypeWarning  Type = "warning"
	TypeCritical Type = "critical"
)

// Category groups alerts by the signal that produced them.
type Category string

const (
	CategoryTimeline Category = "timeline"
	CategoryResource Category = "resource"
	CategoryROI      Category = "roi"
	CategoryIssue    Category = "issue"
)

// Alert is a single ranked, rule-triggered risk notice. IDs are derived from
// the rule and entity so an unchanged snapshot yields identical output.
type Alert struct {
	ID             string   `json:"id"`
	Type           Type     `json:"type"`
	Category       Category `json:"category"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Recommendation string   `json:"recommendation"`
	Priority       int      `json:"priority"`
}

// Context carries the snapshot and configuration one evaluation reads.
// Rules consult Availability and skip themselves when their inputs are
// missing, so one failed data source never blocks unrelated rules.
type Context struct {
	Snapshot     record.Snapshot
	Availability record.Availability
	Settings     settings.Alerts
	Now          time.Time
}

// Rule is a single alert rule evaluated independently per entity. A rule
// produces at most one alert per (entity, rule) pair.
type Rule interface {
	Name() string
	Evaluate(ctx *Context) []Alert
}

// Engine evaluates an ordered set of rules over a snapshot.
type Engine struct {
	rules []Rule
}

// NewEngine returns an engine with the given rules, in evaluation order.
func NewEngine(rules ...Rule) *Engine {
	return &Engine{rules: rules}
}

// DefaultEngine returns an engine carrying the standard rule set.
func DefaultEngine() *Engine {
	return NewEngine(
		&TimelineRule{},
		&ResourceRule{},
		&OwnerLoadRule{},
		&BudgetRule{},
		&BacklogRule{},
		&LowROIRule{},
	)
}

// Evaluate runs every rule and returns the combined alerts sorted by
// priority descending, then category, then id.
func (e *Engine) Evaluate(ctx *Context) []Alert {
	var alerts []Alert
	for _, rule := range e.rules {
		alerts = append(alerts, rule.Evaluate(ctx)...)
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		if alerts[i].Priority != alerts[j].Priority {
			return alerts[i].Priority > alerts[j].Priority
		}
		if alerts[i].Category != alerts[j].Category {
			return alerts[i].Category < alerts[j].Category
		}
		return alerts[i].ID < alerts[j].ID
	})

	if len(alerts) == 0 {
		return nil
	}
	return alerts
}

// Priority bases per severity; overshoot past the triggering threshold adds
// up to three points.
const (
	baseCritical = 7
	baseWarning  = 4
	baseInfo     = 1
)

// priorityFor derives the 1-10 priority from severity and how far past the
// threshold the signal landed (overshoot, in percentage points).
func priorityFor(t Type, overshoot float64) int {
	base := baseInfo
	switch t {
	case TypeCritical:
		base = baseCritical
	case TypeWarning:
		base = baseWarning
	}

	bump := int(overshoot / 10)
	if bump > 3 {
		bump = 3
	}
	if bump < 0 {
		bump = 0
	}

	p := base + bump
	if p < 1 {
		p = 1
	}
	if p > 10 {
		p = 10
	}
	return p
}
