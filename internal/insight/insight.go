// Package insight merges the engine's derived outputs into one executive
// summary record for the presentation layer.
package insight

import (
	"fmt"
	"time"

	"compass/internal/alert"
	"compass/internal/cluster"
	"compass/internal/health"
	"compass/internal/roi"
)

// Report is the unified executive insight record. Sections whose inputs were
// unavailable are nil and listed in Degraded.
type Report struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Health      *health.Score     `json:"health,omitempty"`
	Alerts      []alert.Alert     `json:"alerts,omitempty"`
	Forecast    *roi.Forecast     `json:"forecast,omitempty"`
	Clusters    []cluster.Cluster `json:"clusters,omitempty"`
	Headlines   []string          `json:"headlines"`
	Degraded    []string          `json:"degraded,omitempty"`
}

// Compose builds the report and its headline summary lines. Any section may
// be nil/empty; headlines only cover what is present.
func Compose(generatedAt time.Time, h *health.Score, alerts []alert.Alert, forecast *roi.Forecast, clusters []cluster.Cluster, degraded []string) Report {
	r := Report{
		GeneratedAt: generatedAt,
		Health:      h,
		Alerts:      alerts,
		Forecast:    forecast,
		Clusters:    clusters,
		Degraded:    degraded,
	}

	if h != nil {
		r.Headlines = append(r.Headlines, fmt.Sprintf("Portfolio health at %d (%s)", h.Score, h.Trend))
	}
	if len(alerts) > 0 {
		critical := 0
		for _, a := range alerts {
			if a.Type == alert.TypeCritical {
				critical++
			}
		}
		line := fmt.Sprintf("%d active alert(s)", len(alerts))
		if critical > 0 {
			line = fmt.Sprintf("%d active alert(s), %d critical", len(alerts), critical)
		}
		// Alerts arrive sorted by priority; the first is the headline.
		r.Headlines = append(r.Headlines, fmt.Sprintf("%s; top: %s", line, alerts[0].Title))
	}
	if forecast != nil {
		r.Headlines = append(r.Headlines, fmt.Sprintf("12-month ROI projected at %.1f%% (confidence %.0f%%)",
			forecast.Forecast.TwelveMonth, forecast.Forecast.Confidence))
	}
	if len(clusters) > 0 {
		largest := clusters[0]
		for _, c := range clusters[1:] {
			if len(c.IssueIDs) > len(largest.IssueIDs) {
				largest = c
			}
		}
		r.Headlines = append(r.Headlines, fmt.Sprintf("%d issue theme(s) identified; largest: %q (%d issues)",
			len(clusters), largest.Label, len(largest.IssueIDs)))
	}
	if len(degraded) > 0 {
		r.Headlines = append(r.Headlines, fmt.Sprintf("%d tile(s) degraded this run; see details", len(degraded)))
	}

	return r
}
