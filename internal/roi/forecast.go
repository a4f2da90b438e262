// Package roi computes the portfolio ROI position and extrapolates it into
// 3/6/12-month projections with a confidence figure.
package roi

import (
	"fmt"
	"math"
	"sort"

	"compass/internal/record"
)

// Extrapolated projections are clamped to this documented range; clamping is
// treated as a computation overflow and lowers confidence.
const (
	ProjectionFloor   = -100.0
	ProjectionCeiling = 500.0
)

// trailingWindow is how many recent history periods feed the slope.
const trailingWindow = 6

// minSamplePeriods is the history length below which the small-sample
// penalty starts to apply.
const minSamplePeriods = 6

const (
	smallSamplePenaltyPerPeriod = 10.0
	overflowPenalty             = 10.0
	maxVarianceIndex            = 60.0
)

// maxTopPerformers bounds the ranked performer list.
const maxTopPerformers = 5

// Current is the realized portfolio position.
type Current struct {
	TotalInvestment float64 `json:"total_investment"`
	RealizedROI     float64 `json:"realized_roi"`
	PendingROI      float64 `json:"pending_roi"`
	PortfolioValue  float64 `json:"portfolio_value"`
}

// Projection carries the extrapolated ROI horizons and their confidence.
type Projection struct {
	ThreeMonth  float64 `json:"three_month"`
	SixMonth    float64 `json:"six_month"`
	TwelveMonth float64 `json:"twelve_month"`
	Confidence  float64 `json:"confidence"`
}

// Performer is one initiative in the ROI ranking.
type Performer struct {
	ID     string        `json:"id"`
	Title  string        `json:"title"`
	ROI    float64       `json:"roi"`
	Status record.Status `json:"status"`
}

// Forecast is the full ROI forecast record.
type Forecast struct {
	Current         Current     `json:"current"`
	Forecast        Projection  `json:"forecast"`
	TopPerformers   []Performer `json:"top_performers"`
	Recommendations []string    `json:"recommendations"`
}

// Project builds the ROI forecast from the initiative snapshot and the
// realized-ROI history series (oldest first). An empty history yields a flat
// extrapolation at zero confidence rather than an error.
func Project(initiatives []record.Initiative, history []float64) Forecast {
	current := currentPosition(initiatives)

	slope, variance := trailingSlope(history)

	f := Forecast{Current: current}
	f.Forecast.ThreeMonth = current.RealizedROI + slope*3
	f.Forecast.SixMonth = current.RealizedROI + slope*6
	f.Forecast.TwelveMonth = current.RealizedROI + slope*12

	overflowed := false
	for _, p := range []*float64{&f.Forecast.ThreeMonth, &f.Forecast.SixMonth, &f.Forecast.TwelveMonth} {
		if *p < ProjectionFloor || *p > ProjectionCeiling {
			*p = clamp(*p, ProjectionFloor, ProjectionCeiling)
			overflowed = true
		}
	}

	f.Forecast.Confidence = confidence(len(history), variance, overflowed)
	f.TopPerformers = topPerformers(initiatives)
	f.Recommendations = recommendations(current, slope, len(history))
	return f
}

// PortfolioRealizedROI is the investment-weighted realized ROI over completed
// initiatives. The second return is false when no completed initiative
// reports a realized figure.
func PortfolioRealizedROI(initiatives []record.Initiative) (float64, bool) {
	var weighted, weights float64
	var plainSum float64
	var n int
	for _, in := range initiatives {
		if in.Status != record.StatusDone || in.RealizedROI == nil {
			continue
		}
		n++
		plainSum += *in.RealizedROI
		if w := investment(in); w > 0 {
			weighted += *in.RealizedROI * w
			weights += w
		}
	}
	if n == 0 {
		return 0, false
	}
	if weights > 0 {
		return weighted / weights, true
	}
	return plainSum / float64(n), true
}

func currentPosition(initiatives []record.Initiative) Current {
	var c Current
	for _, in := range initiatives {
		c.TotalInvestment += investment(in)
	}

	if realized, ok := PortfolioRealizedROI(initiatives); ok {
		c.RealizedROI = realized
	}

	// Pending ROI is the progress-weighted mean of projected ROI over active
	// initiatives.
	var weighted, weights float64
	for _, in := range initiatives {
		if !in.Active() || in.ProjectedROI == nil {
			continue
		}
		weighted += *in.ProjectedROI * in.Progress
		weights += in.Progress
	}
	if weights > 0 {
		c.PendingROI = weighted / weights
	}

	c.PortfolioValue = c.TotalInvestment * (1 + c.RealizedROI/100)
	return c
}

// investment is actual spend when reported, committed budget otherwise.
func investment(in record.Initiative) float64 {
	if in.Spent != nil {
		return *in.Spent
	}
	if in.Budget != nil {
		return *in.Budget
	}
	return 0
}

// trailingSlope returns the average period-over-period delta and the variance
// of those deltas over the trailing window.
func trailingSlope(history []float64) (slope, variance float64) {
	if len(history) > trailingWindow {
		history = history[len(history)-trailingWindow:]
	}
	if len(history) < 2 {
		return 0, 0
	}

	deltas := make([]float64, 0, len(history)-1)
	var sum float64
	for i := 1; i < len(history); i++ {
		d := history[i] - history[i-1]
		deltas = append(deltas, d)
		sum += d
	}
	slope = sum / float64(len(deltas))

	var sq float64
	for _, d := range deltas {
		sq += (d - slope) * (d - slope)
	}
	variance = sq / float64(len(deltas))
	return slope, variance
}

// confidence shrinks with delta variance and with sample size. Holding
// variance fixed, it is monotonically non-increasing as the history shrinks.
func confidence(samples int, variance float64, overflowed bool) float64 {
	if samples == 0 {
		return 0
	}

	varianceIndex := math.Min(math.Sqrt(variance)*10, maxVarianceIndex)

	var samplePenalty float64
	if samples < minSamplePeriods {
		samplePenalty = float64(minSamplePeriods-samples) * smallSamplePenaltyPerPeriod
	}

	c := 100 - varianceIndex - samplePenalty
	if overflowed {
		c -= overflowPenalty
	}
	return clamp(c, 0, 100)
}

// topPerformers ranks initiatives by individual ROI, realized figures first.
func topPerformers(initiatives []record.Initiative) []Performer {
	performers := make([]Performer, 0, len(initiatives))
	for _, in := range initiatives {
		var value float64
		switch {
		case in.RealizedROI != nil:
			value = *in.RealizedROI
		case in.ProjectedROI != nil:
			value = *in.ProjectedROI
		default:
			continue
		}
		performers = append(performers, Performer{ID: in.ID, Title: in.Title, ROI: value, Status: in.Status})
	}

	sort.SliceStable(performers, func(i, j int) bool {
		if performers[i].ROI != performers[j].ROI {
			return performers[i].ROI > performers[j].ROI
		}
		return performers[i].ID < performers[j].ID
	})

	if len(performers) > maxTopPerformers {
		performers = performers[:maxTopPerformers]
	}
	if len(performers) == 0 {
		return nil
	}
	return performers
}

// recommendations emits templated guidance keyed to the weakest of realized
// ROI, pending ROI, and trend direction.
func recommendations(c Current, slope float64, samples int) []string {
	var recs []string

	switch {
	case slope < 0:
		recs = append(recs, fmt.Sprintf("ROI trend is declining (%.1f points/period); review underperforming initiatives before committing new spend.", slope))
	case c.PendingROI < c.RealizedROI:
		recs = append(recs, fmt.Sprintf("Pipeline ROI (%.1f%%) trails realized returns (%.1f%%); rebalance active initiatives toward higher-value work.", c.PendingROI, c.RealizedROI))
	default:
		recs = append(recs, fmt.Sprintf("Realized ROI stands at %.1f%%; protect the initiatives driving it and scale their practices.", c.RealizedROI))
	}

	if samples < minSamplePeriods {
		recs = append(recs, "ROI history is short; projections carry reduced confidence until more periods are recorded.")
	}
	return recs
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
