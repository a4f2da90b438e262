// Package health computes the composite portfolio health score from
// initiative, issue, team, and ROI signals.
package health

import (
	"math"
	"time"

	"compass/internal/record"
	"compass/internal/settings"
)

// Trend labels the direction of the composite score between runs.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendDeclining Trend = "declining"
	TrendStable    Trend = "stable"
)

// neutralScore is used for any component whose inputs are unavailable; the
// calculation degrades instead of aborting.
const neutralScore = 50.0

// trendEpsilon is the minimum score delta counted as a real change.
const trendEpsilon = 2.0

// DefaultVelocityWindow is the trailing period for issue velocity.
const DefaultVelocityWindow = 30 * 24 * time.Hour

// roiTrendFloorSlope is the per-period ROI slope at which the roiTrend
// component reaches zero.
const roiTrendFloorSlope = -5.0

// Components are the four weighted sub-scores, each clamped to [0,100].
type Components struct {
	InitiativeHealth float64 `json:"initiative_health"`
	IssueVelocity    float64 `json:"issue_velocity"`
	TeamUtilization  float64 `json:"team_utilization"`
	ROITrend         float64 `json:"roi_trend"`
}

// Score is the composite health result.
type Score struct {
	Score       int        `json:"score"`
	Trend       Trend      `json:"trend"`
	Components  Components `json:"components"`
	LastUpdated time.Time  `json:"last_updated"`
}

// Inputs bundles everything a health computation reads. Previous and
// ROIHistory come from the history store; either may be absent.
type Inputs struct {
	Snapshot       record.Snapshot
	Availability   record.Availability
	ROIHistory     []float64
	PreviousScore  *int
	Weights        settings.HealthWeights
	VelocityWindow time.Duration
	Now            time.Time
}

// Compute derives the composite health score. Each component whose inputs are
// unavailable defaults to the neutral midpoint rather than failing the run.
func Compute(in Inputs) Score {
	if in.VelocityWindow <= 0 {
		in.VelocityWindow = DefaultVelocityWindow
	}

	c := Components{
		InitiativeHealth: initiativeHealth(in),
		IssueVelocity:    issueVelocity(in),
		TeamUtilization:  teamUtilization(in),
		ROITrend:         roiTrend(in.ROIHistory),
	}

	score := int(math.Round(weightedMean(c, in.Weights)))
	score = clampInt(score, 0, 100)

	return Score{
		Score:       score,
		Trend:       trendFor(score, in.PreviousScore),
		Components:  c,
		LastUpdated: in.Now,
	}
}

// initiativeHealth is the mean, over active initiatives with a timeline, of
// progress relative to the linearly expected progress, capped at 100.
func initiativeHealth(in Inputs) float64 {
	if !in.Availability.Initiatives {
		return neutralScore
	}

	var sum float64
	var n int
	for _, init := range in.Snapshot.Initiatives {
		if !init.Active() {
			continue
		}
		expected, ok := init.ExpectedProgressAt(in.Now)
		if !ok {
			continue
		}
		var ratio float64
		if expected <= 0 {
			// Timeline has not started; nothing can be behind yet.
			ratio = 100
		} else {
			ratio = init.Progress / expected * 100
		}
		sum += clamp(ratio, 0, 100)
		n++
	}
	if n == 0 {
		return neutralScore
	}
	return clamp(sum/float64(n), 0, 100)
}

// issueVelocity compares issues resolved in the trailing window to issues
// newly reported in the same window.
func issueVelocity(in Inputs) float64 {
	if !in.Availability.Issues {
		return neutralScore
	}

	cutoff := in.Now.Add(-in.VelocityWindow)
	resolved := 0
	reported := 0
	for _, issue := range in.Snapshot.Issues {
		if !issue.CreatedAt.IsZero() && issue.CreatedAt.After(cutoff) {
			reported++
		}
		if issue.ResolvedAt != nil && issue.ResolvedAt.After(cutoff) {
			resolved++
		}
	}

	if reported == 0 {
		if resolved > 0 {
			return 100
		}
		return neutralScore
	}
	return clamp(float64(resolved)/float64(reported)*100, 0, 100)
}

// teamUtilization rewards average utilization near 100% and penalizes both
// under- and over-allocation symmetrically.
func teamUtilization(in Inputs) float64 {
	if !in.Availability.Teams || !in.Availability.Initiatives {
		return neutralScore
	}
	if len(in.Snapshot.Teams) == 0 {
		return neutralScore
	}

	allocated := make(map[string]float64)
	for _, init := range in.Snapshot.Initiatives {
		if !init.Active() {
			continue
		}
		for _, a := range init.Assignments {
			allocated[a.TeamID] += a.HoursAllocated
		}
	}

	var sum float64
	var n int
	for _, team := range in.Snapshot.Teams {
		if team.Capacity <= 0 {
			continue
		}
		sum += allocated[team.ID] / team.Capacity * 100
		n++
	}
	if n == 0 {
		return neutralScore
	}
	avg := sum / float64(n)
	return clamp(100-math.Abs(avg-100), 0, 100)
}

// roiTrend scores 100 for a non-negative trailing ROI trend and scales down
// toward 0 as the per-period slope falls to roiTrendFloorSlope.
func roiTrend(history []float64) float64 {
	if len(history) < 2 {
		return neutralScore
	}

	var deltaSum float64
	for i := 1; i < len(history); i++ {
		deltaSum += history[i] - history[i-1]
	}
	slope := deltaSum / float64(len(history)-1)

	if slope >= 0 {
		return 100
	}
	return clamp(100*(1-slope/roiTrendFloorSlope), 0, 100)
}

func weightedMean(c Components, w settings.HealthWeights) float64 {
	total := w.InitiativeHealth + w.IssueVelocity + w.TeamUtilization + w.ROITrend
	if total <= 0 {
		// Equal weighting is the documented default.
		return (c.InitiativeHealth + c.IssueVelocity + c.TeamUtilization + c.ROITrend) / 4
	}
	return (c.InitiativeHealth*w.InitiativeHealth +
		c.IssueVelocity*w.IssueVelocity +
		c.TeamUtilization*w.TeamUtilization +
		c.ROITrend*w.ROITrend) / total
}

// TrendBetween labels the movement from a previous composite score to the
// current one, using the same epsilon as Compute.
func TrendBetween(previous, current int) Trend {
	return trendFor(current, &previous)
}

func trendFor(score int, previous *int) Trend {
	if previous == nil {
		return TrendStable
	}
	delta := float64(score - *previous)
	switch {
	case delta > trendEpsilon:
		return TrendImproving
	case delta < -trendEpsilon:
		return TrendDeclining
	default:
		return TrendStable
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
