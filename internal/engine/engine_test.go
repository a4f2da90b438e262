package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"compass/internal/cache"
	"compass/internal/correlate"
	"compass/internal/history"
	"compass/internal/record"
	"compass/internal/settings"
)

// fakeRepo serves fixed collections and can fail any of them independently.
type fakeRepo struct {
	issues      []record.Issue
	initiatives []record.Initiative
	teams       []record.Team

	issuesErr      error
	initiativesErr error
	teamsErr       error
}

func (r *fakeRepo) Issues(ctx context.Context) ([]record.Issue, error) {
	return r.issues, r.issuesErr
}

func (r *fakeRepo) Initiatives(ctx context.Context) ([]record.Initiative, error) {
	return r.initiatives, r.initiativesErr
}

func (r *fakeRepo) Teams(ctx context.Context) ([]record.Team, error) {
	return r.teams, r.teamsErr
}

func datep(value string) *time.Time {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		panic(err)
	}
	return &t
}

func f(v float64) *float64 { return &v }

func fullRepo() *fakeRepo {
	return &fakeRepo{
		issues: []record.Issue{
			{ID: "issue-1", Description: "Deploys take too long", Category: "Delivery", Keywords: []string{"pipeline"}, Votes: 10, HeatmapScore: 80},
			{ID: "issue-2", Description: "Staging drifts", Category: "Delivery", Keywords: []string{"pipeline"}, Votes: 4, HeatmapScore: 75},
		},
		initiatives: []record.Initiative{
			{ID: "init-1", Title: "Pipeline rebuild", Status: record.StatusInProgress, Progress: 10,
				TimelineStart: datep("2026-01-01"), TimelineEnd: datep("2026-03-04"),
				Budget: f(100), Spent: f(130), AddressesIssues: []string{"issue-1"},
				Assignments: []record.Assignment{{TeamID: "team-a", Role: "lead", HoursAllocated: 120}}},
			{ID: "init-2", Title: "Old migration", Status: record.StatusDone, Budget: f(50), RealizedROI: f(20)},
		},
		teams: []record.Team{{ID: "team-a", Name: "Alpha", Department: "Engineering", Capacity: 100}},
	}
}

func testClock() func() time.Time {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return now }
}

func newTestEngine(t *testing.T, repo record.Repository) *Engine {
	t.Helper()
	return New(Config{
		Repo:     repo,
		Settings: settings.Defaults(),
		Logger:   zaptest.NewLogger(t),
		Clock:    testClock(),
	})
}

func TestClustersOK(t *testing.T) {
	e := newTestEngine(t, fullRepo())
	res := e.Clusters(context.Background())

	assert.Equal(t, StatusOK, res.Status)
	assert.Empty(t, res.Faults)
	require.Len(t, res.Value, 1)
	assert.Equal(t, "Delivery", res.Value[0].Label)
	assert.False(t, res.FromCache)
}

func TestClustersDegradedWhenIssuesUnavailable(t *testing.T) {
	repo := fullRepo()
	repo.issuesErr = errors.New("tracker down")

	res := newTestEngine(t, repo).Clusters(context.Background())
	assert.Equal(t, StatusDegraded, res.Status)
	require.Len(t, res.Faults, 1)
	assert.Contains(t, res.Faults[0], "issues unavailable")
	assert.Empty(t, res.Value)
}

func TestClustersEmptyWhenNothingGroups(t *testing.T) {
	repo := fullRepo()
	repo.issues = []record.Issue{{ID: "issue-1", Category: "Solo"}}

	res := newTestEngine(t, repo).Clusters(context.Background())
	assert.Equal(t, StatusEmpty, res.Status)
	assert.Empty(t, res.Value)
}

func TestHealthScoreOK(t *testing.T) {
	res := newTestEngine(t, fullRepo()).HealthScore(context.Background())

	assert.Equal(t, StatusOK, res.Status)
	assert.GreaterOrEqual(t, res.Value.Score, 0)
	assert.LessOrEqual(t, res.Value.Score, 100)
	assert.Equal(t, res.ComputedAt, res.Value.LastUpdated)
}

func TestHealthScoreDegradesPerSource(t *testing.T) {
	repo := fullRepo()
	repo.teamsErr = errors.New("hr system down")

	res := newTestEngine(t, repo).HealthScore(context.Background())
	assert.Equal(t, StatusDegraded, res.Status)
	// Unavailable teams pin utilization to the neutral midpoint.
	assert.Equal(t, 50.0, res.Value.Components.TeamUtilization)
}

func TestAlertsScenarioTeamsUnavailable(t *testing.T) {
	repo := fullRepo()
	repo.teamsErr = errors.New("hr system down")

	res := newTestEngine(t, repo).Alerts(context.Background())
	assert.Equal(t, StatusDegraded, res.Status)

	// Resource rules are silent without team data; the timeline and budget
	// alerts still fire.
	for _, a := range res.Value {
		assert.NotContains(t, a.ID, "resource:over")
		assert.NotContains(t, a.ID, "resource:hot")
	}
	ids := make(map[string]bool)
	for _, a := range res.Value {
		ids[a.ID] = true
	}
	assert.True(t, ids["timeline:behind:init-1"] || ids["timeline:critical:init-1"], "timeline alert missing: %v", res.Value)
	assert.True(t, ids["roi:budget:crit:init-1"], "budget alert missing: %v", res.Value)
}

func TestAlertsOverCapacityTeam(t *testing.T) {
	res := newTestEngine(t, fullRepo()).Alerts(context.Background())

	found := false
	for _, a := range res.Value {
		if a.ID == "resource:over:team-a" {
			found = true
		}
	}
	assert.True(t, found, "expected an over-capacity alert, got %v", res.Value)
}

func TestROIForecastOK(t *testing.T) {
	res := newTestEngine(t, fullRepo()).ROIForecast(context.Background())

	assert.Equal(t, StatusOK, res.Status)
	assert.InDelta(t, 180, res.Value.Current.TotalInvestment, 0.01)
	// No history store wired: zero confidence, flat projection.
	assert.Equal(t, 0.0, res.Value.Forecast.Confidence)
}

func TestCorrelationsByCluster(t *testing.T) {
	e := newTestEngine(t, fullRepo())
	res := e.Correlations(context.Background(), "Delivery", correlate.EntityCluster)

	assert.Equal(t, StatusOK, res.Status)
	require.Len(t, res.Value.RelatedIssues, 2)
	assert.NotEmpty(t, res.Value.RootCauses)
}

func TestCorrelationsUnknownEntityType(t *testing.T) {
	e := newTestEngine(t, fullRepo())
	res := e.Correlations(context.Background(), "x", correlate.EntityType("portfolio"))

	assert.Equal(t, StatusDegraded, res.Status)
	require.NotEmpty(t, res.Faults)
	assert.Contains(t, res.Faults[0], "unknown entity type")
}

func TestOperationsAreIdempotent(t *testing.T) {
	e := newTestEngine(t, fullRepo())
	ctx := context.Background()

	first := e.Alerts(ctx)
	second := e.Alerts(ctx)
	assert.Equal(t, first, second)

	c1 := e.Clusters(ctx)
	c2 := e.Clusters(ctx)
	assert.Equal(t, c1, c2)
}

func TestCacheRoundTrip(t *testing.T) {
	resultCache, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer resultCache.Close()

	e := New(Config{
		Repo:     fullRepo(),
		Settings: settings.Defaults(),
		Cache:    resultCache,
		Logger:   zaptest.NewLogger(t),
		Clock:    testClock(),
	})
	ctx := context.Background()

	first := e.HealthScore(ctx)
	assert.False(t, first.FromCache)

	second := e.HealthScore(ctx)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Value, second.Value)
	assert.Equal(t, first.Status, second.Status)
}

func TestInsightsComposesAndCollectsDegradation(t *testing.T) {
	repo := fullRepo()
	repo.teamsErr = errors.New("hr system down")

	res := newTestEngine(t, repo).Insights(context.Background())
	assert.Equal(t, StatusDegraded, res.Status)
	require.NotNil(t, res.Value.Health)
	require.NotNil(t, res.Value.Forecast)
	assert.NotEmpty(t, res.Value.Headlines)
	assert.NotEmpty(t, res.Value.Degraded)
}

func TestInsightsHealthyRun(t *testing.T) {
	res := newTestEngine(t, fullRepo()).Insights(context.Background())
	assert.Equal(t, StatusOK, res.Status)
	assert.Empty(t, res.Value.Degraded)
}

func TestRefreshRecordsHistory(t *testing.T) {
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer store.Close()

	e := New(Config{
		Repo:     fullRepo(),
		Settings: settings.Defaults(),
		History:  store,
		Logger:   zaptest.NewLogger(t),
		Clock:    testClock(),
	})

	res, err := e.Refresh(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res.Value.Health)

	latest, err := store.LatestHealthScore()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, res.Value.Health.Score, *latest)

	series, err := store.ROISeries(12)
	require.NoError(t, err)
	assert.Len(t, series, 1)
}

func TestRefreshInvalidatesCachedResults(t *testing.T) {
	resultCache, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer resultCache.Close()

	repo := fullRepo()
	e := New(Config{
		Repo:     repo,
		Settings: settings.Defaults(),
		Cache:    resultCache,
		Logger:   zaptest.NewLogger(t),
		Clock:    testClock(),
	})
	ctx := context.Background()

	first := e.Alerts(ctx)
	require.False(t, first.FromCache)

	// The record store changes; a plain read still serves the cached result,
	// a refresh observes the live snapshot.
	repo.initiatives = nil

	cached := e.Alerts(ctx)
	assert.True(t, cached.FromCache)

	_, err = e.Refresh(ctx)
	require.NoError(t, err)

	fresh := e.Alerts(ctx)
	assert.True(t, fresh.FromCache)
	for _, a := range fresh.Value {
		assert.NotContains(t, a.ID, "timeline:", "stale initiative alerts must be gone: %v", fresh.Value)
	}
}
