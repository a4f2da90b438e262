package alert

import (
	"fmt"
	"sort"

	"compass/internal/roi"
)

// TimelineRule flags active initiatives running behind their linearly
// expected progress. When the deadline is also inside the critical window the
// critical alert supersedes the warning; only one alert is emitted per
// initiative.
type TimelineRule struct{}

func (r *TimelineRule) Name() string { return "timeline_behind" }

func (r *TimelineRule) Evaluate(ctx *Context) []Alert {
	if !ctx.Availability.Initiatives {
		return nil
	}

	var alerts []Alert
	for _, in := range ctx.Snapshot.Initiatives {
		if !in.Active() {
			continue
		}
		expected, ok := in.ExpectedProgressAt(ctx.Now)
		if !ok {
			continue
		}
		behind := expected - in.Progress
		if behind <= ctx.Settings.TimelineBehindPct {
			continue
		}

		overshoot := behind - ctx.Settings.TimelineBehindPct
		days, hasDeadline := in.DaysToDeadline(ctx.Now)

		if hasDeadline && days <= ctx.Settings.DeadlineDaysCritical {
			alerts = append(alerts, Alert{
				ID:       "timeline:critical:" + in.ID,
				Type:     TypeCritical,
				Category: CategoryTimeline,
				Title:    fmt.Sprintf("Deadline at risk: %s", in.Title),
				Description: fmt.Sprintf("%s is %.0f%% behind expected progress (%.0f%% actual vs %.0f%% expected) with %d day(s) to deadline.",
					in.Title, behind, in.Progress, expected, days),
				Recommendation: "Escalate now: re-scope the remaining work or move the deadline before it slips.",
				Priority:       priorityFor(TypeCritical, overshoot),
			})
			continue
		}

		alerts = append(alerts, Alert{
			ID:       "timeline:behind:" + in.ID,
			Type:     TypeWarning,
			Category: CategoryTimeline,
			Title:    fmt.Sprintf("Initiative behind schedule: %s", in.Title),
			Description: fmt.Sprintf("%s is %.0f%% behind expected progress (%.0f%% actual vs %.0f%% expected).",
				in.Title, behind, in.Progress, expected),
			Recommendation: "Review blockers with the owning team and rebalance scope or staffing.",
			Priority:       priorityFor(TypeWarning, overshoot),
		})
	}
	return alerts
}

// ResourceRule flags teams allocated beyond capacity (critical) or running
// hot above 80% (warning).
type ResourceRule struct{}

func (r *ResourceRule) Name() string { return "resource_overallocation" }

func (r *ResourceRule) Evaluate(ctx *Context) []Alert {
	if !ctx.Availability.Teams || !ctx.Availability.Initiatives {
		return nil
	}

	allocated := make(map[string]float64)
	for _, in := range ctx.Snapshot.Initiatives {
		if !in.Active() {
			continue
		}
		for _, a := range in.Assignments {
			allocated[a.TeamID] += a.HoursAllocated
		}
	}

	var alerts []Alert
	for _, team := range ctx.Snapshot.Teams {
		if team.Capacity <= 0 {
			continue
		}
		util := allocated[team.ID] / team.Capacity * 100

		switch {
		case util > 100:
			alerts = append(alerts, Alert{
				ID:       "resource:over:" + team.ID,
				Type:     TypeCritical,
				Category: CategoryResource,
				Title:    fmt.Sprintf("Team over capacity: %s", team.Name),
				Description: fmt.Sprintf("%s is allocated %.0fh against a %.0fh/week capacity (%.0f%% utilization).",
					team.Name, allocated[team.ID], team.Capacity, util),
				Recommendation: "Shed or defer assignments until allocation fits within capacity.",
				Priority:       priorityFor(TypeCritical, util-100),
			})
		case util > 80:
			alerts = append(alerts, Alert{
				ID:       "resource:hot:" + team.ID,
				Type:     TypeWarning,
				Category: CategoryResource,
				Title:    fmt.Sprintf("Team running hot: %s", team.Name),
				Description: fmt.Sprintf("%s is at %.0f%% utilization; little slack remains for unplanned work.",
					team.Name, util),
				Recommendation: "Hold new assignments for this team or add capacity.",
				Priority:       priorityFor(TypeWarning, util-80),
			})
		}
	}
	return alerts
}

// OwnerLoadRule flags owners carrying more active initiatives than the
// configured maximum.
type OwnerLoadRule struct{}

func (r *OwnerLoadRule) Name() string { return "owner_overload" }

func (r *OwnerLoadRule) Evaluate(ctx *Context) []Alert {
	if !ctx.Availability.Initiatives {
		return nil
	}

	counts := make(map[string]int)
	for _, in := range ctx.Snapshot.Initiatives {
		if in.Active() && in.OwnerID != "" {
			counts[in.OwnerID]++
		}
	}

	owners := make([]string, 0, len(counts))
	for owner := range counts {
		owners = append(owners, owner)
	}
	sort.Strings(owners)

	var alerts []Alert
	for _, owner := range owners {
		count := counts[owner]
		if count <= ctx.Settings.OwnerMaxActive {
			continue
		}
		// Each initiative past the limit counts as ten overshoot points, so
		// every extra one bumps priority until the cap.
		overshoot := float64(count-ctx.Settings.OwnerMaxActive) * 10
		alerts = append(alerts, Alert{
			ID:       "resource:owner:" + owner,
			Type:     TypeWarning,
			Category: CategoryResource,
			Title:    fmt.Sprintf("Owner overloaded: %s", owner),
			Description: fmt.Sprintf("%s owns %d active initiatives; the configured maximum is %d.",
				owner, count, ctx.Settings.OwnerMaxActive),
			Recommendation: "Reassign or pause initiatives so the owner can focus on fewer streams.",
			Priority:       priorityFor(TypeWarning, overshoot),
		})
	}
	return alerts
}

// BudgetRule flags initiatives whose actual spend overruns their budget.
type BudgetRule struct{}

func (r *BudgetRule) Name() string { return "budget_overrun" }

func (r *BudgetRule) Evaluate(ctx *Context) []Alert {
	if !ctx.Availability.Initiatives {
		return nil
	}

	var alerts []Alert
	for _, in := range ctx.Snapshot.Initiatives {
		if in.Budget == nil || *in.Budget <= 0 || in.Spent == nil {
			continue
		}
		overrun := (*in.Spent / *in.Budget - 1) * 100

		switch {
		case overrun >= ctx.Settings.BudgetOverrunCritPct:
			alerts = append(alerts, Alert{
				ID:       "roi:budget:crit:" + in.ID,
				Type:     TypeCritical,
				Category: CategoryROI,
				Title:    fmt.Sprintf("Budget blown: %s", in.Title),
				Description: fmt.Sprintf("%s has spent %.0f against a %.0f budget (%.0f%% overrun).",
					in.Title, *in.Spent, *in.Budget, overrun),
				Recommendation: "Freeze discretionary spend and re-baseline the budget with sponsors.",
				Priority:       priorityFor(TypeCritical, overrun-ctx.Settings.BudgetOverrunCritPct),
			})
		case overrun >= ctx.Settings.BudgetOverrunWarnPct:
			alerts = append(alerts, Alert{
				ID:       "roi:budget:warn:" + in.ID,
				Type:     TypeWarning,
				Category: CategoryROI,
				Title:    fmt.Sprintf("Budget overrun: %s", in.Title),
				Description: fmt.Sprintf("%s is %.0f%% over budget (%.0f spent vs %.0f planned).",
					in.Title, overrun, *in.Spent, *in.Budget),
				Recommendation: "Review the burn rate with the owner before the overrun becomes critical.",
				Priority:       priorityFor(TypeWarning, overrun-ctx.Settings.BudgetOverrunWarnPct),
			})
		}
	}
	return alerts
}

// BacklogRule watches the unresolved issue backlog for concentrations of
// high-heatmap issues. A small concentration is informational; a large one is
// a warning.
type BacklogRule struct{}

// Backlog thresholds: issues scoring 70+ on the heatmap, unresolved.
const (
	backlogHeatmapFloor = 70.0
	backlogInfoCount    = 2
	backlogWarnCount    = 5
)

func (r *BacklogRule) Name() string { return "issue_backlog" }

func (r *BacklogRule) Evaluate(ctx *Context) []Alert {
	if !ctx.Availability.Issues {
		return nil
	}

	hot := 0
	for _, issue := range ctx.Snapshot.Issues {
		if !issue.Resolved() && issue.HeatmapScore >= backlogHeatmapFloor {
			hot++
		}
	}
	if hot < backlogInfoCount {
		return nil
	}

	typ := TypeInfo
	recommendation := "Keep an eye on the high-priority backlog during the next planning cycle."
	if hot >= backlogWarnCount {
		typ = TypeWarning
		recommendation = "Spin up or re-scope an initiative to address the high-priority backlog."
	}

	return []Alert{{
		ID:       "issue:backlog",
		Type:     typ,
		Category: CategoryIssue,
		Title:    "High-priority issue backlog building",
		Description: fmt.Sprintf("%d unresolved issue(s) score %.0f+ on the priority heatmap.",
			hot, backlogHeatmapFloor),
		Recommendation: recommendation,
		Priority:       priorityFor(typ, float64(hot-backlogWarnCount)*10),
	}}
}

// LowROIRule flags a portfolio whose realized ROI sits below the configured
// floor. It stays silent when no completed initiative reports a realized
// figure, since there is no signal to judge.
type LowROIRule struct{}

func (r *LowROIRule) Name() string { return "low_portfolio_roi" }

func (r *LowROIRule) Evaluate(ctx *Context) []Alert {
	if !ctx.Availability.Initiatives {
		return nil
	}

	realized, ok := roi.PortfolioRealizedROI(ctx.Snapshot.Initiatives)
	if !ok || realized >= ctx.Settings.LowROIPct {
		return nil
	}

	return []Alert{{
		ID:       "roi:portfolio",
		Type:     TypeWarning,
		Category: CategoryROI,
		Title:    "Portfolio ROI below target",
		Description: fmt.Sprintf("Realized portfolio ROI is %.1f%%, below the %.1f%% floor.",
			realized, ctx.Settings.LowROIPct),
		Recommendation: "Audit completed initiatives for unrealized benefits and tighten the business cases of active ones.",
		Priority:       priorityFor(TypeWarning, ctx.Settings.LowROIPct-realized),
	}}
}
