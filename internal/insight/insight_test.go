package insight

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compass/internal/alert"
	"compass/internal/cluster"
	"compass/internal/health"
	"compass/internal/roi"
)

func TestComposeFullReport(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	h := &health.Score{Score: 72, Trend: health.TrendImproving}
	alerts := []alert.Alert{
		{ID: "timeline:critical:init-1", Type: alert.TypeCritical, Title: "Deadline at risk: Pipeline", Priority: 9},
		{ID: "issue:backlog", Type: alert.TypeInfo, Title: "Backlog building", Priority: 1},
	}
	forecast := &roi.Forecast{}
	forecast.Forecast.TwelveMonth = 34.5
	forecast.Forecast.Confidence = 80
	clusters := []cluster.Cluster{
		{ID: "cluster-delivery", Label: "Delivery", IssueIDs: []string{"issue-1", "issue-2"}},
		{ID: "cluster-ops", Label: "Ops", IssueIDs: []string{"issue-3", "issue-4", "issue-5"}},
	}

	report := Compose(now, h, alerts, forecast, clusters, nil)

	assert.Equal(t, now, report.GeneratedAt)
	require.Len(t, report.Headlines, 4)
	assert.Equal(t, "Portfolio health at 72 (improving)", report.Headlines[0])
	assert.Equal(t, "2 active alert(s), 1 critical; top: Deadline at risk: Pipeline", report.Headlines[1])
	assert.Equal(t, "12-month ROI projected at 34.5% (confidence 80%)", report.Headlines[2])
	assert.Equal(t, `2 issue theme(s) identified; largest: "Ops" (3 issues)`, report.Headlines[3])
	assert.Empty(t, report.Degraded)
}

func TestComposeNoCriticalAlerts(t *testing.T) {
	alerts := []alert.Alert{{ID: "issue:backlog", Type: alert.TypeInfo, Title: "Backlog building"}}
	report := Compose(time.Now(), nil, alerts, nil, nil, nil)

	require.Len(t, report.Headlines, 1)
	assert.Equal(t, "1 active alert(s); top: Backlog building", report.Headlines[0])
}

func TestComposeDegradedSections(t *testing.T) {
	degraded := []string{"alerts (teams unavailable)", "forecast (initiatives unavailable)"}
	report := Compose(time.Now(), nil, nil, nil, nil, degraded)

	require.Len(t, report.Headlines, 1)
	assert.Equal(t, "2 tile(s) degraded this run; see details", report.Headlines[0])
	assert.Equal(t, degraded, report.Degraded)
	assert.Nil(t, report.Health)
	assert.Nil(t, report.Forecast)
}

func TestComposeEmptyInputs(t *testing.T) {
	report := Compose(time.Now(), nil, nil, nil, nil, nil)
	assert.Empty(t, report.Headlines)
}
