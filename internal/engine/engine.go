// Package engine is the facade over the strategic intelligence analytics:
// five pure read operations (clusters, health, alerts, ROI forecast,
// correlations) plus the merged executive insights. Each call fetches an
// immutable snapshot, degrades independently per data source, and never
// writes back to the record store.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"compass/internal/alert"
	"compass/internal/cache"
	"compass/internal/cluster"
	"compass/internal/correlate"
	"compass/internal/health"
	"compass/internal/history"
	"compass/internal/insight"
	"compass/internal/record"
	"compass/internal/roi"
	"compass/internal/runlog"
	"compass/internal/settings"
)

// Operation names, used for cache keys and the run log.
const (
	OpClusters     = "clusters"
	OpHealth       = "health"
	OpAlerts       = "alerts"
	OpForecast     = "forecast"
	OpCorrelations = "correlations"
	OpInsights     = "insights"
)

// roiHistoryWindow is how many realized-ROI periods are read for trend math.
const roiHistoryWindow = 12

// Config wires an Engine. Repo is required; History, Cache, and RunLog are
// optional and the engine runs without them.
type Config struct {
	Repo             record.Repository
	Settings         settings.Settings
	SettingsWarnings []settings.FieldWarning
	History          *history.Store
	Cache            *cache.Cache
	RunLog           *runlog.Logger
	Logger           *zap.Logger
	Clock            func() time.Time
}

// Engine evaluates analytics over record snapshots.
type Engine struct {
	repo     record.Repository
	settings settings.Settings
	history  *history.Store
	cache    *cache.Cache
	runLog   *runlog.Logger
	rules    *alert.Engine
	logger   *zap.Logger
	clock    func() time.Time
}

// New builds an engine and logs any configuration fields that fell back to
// their defaults.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	for _, w := range cfg.SettingsWarnings {
		logger.Warn("configuration fallback", zap.String("field", w.Field), zap.String("reason", w.Message))
	}
	return &Engine{
		repo:     cfg.Repo,
		settings: cfg.Settings,
		history:  cfg.History,
		cache:    cfg.Cache,
		runLog:   cfg.RunLog,
		rules:    alert.DefaultEngine(),
		logger:   logger,
		clock:    clock,
	}
}

// Clusters groups the current issues into labeled theme clusters.
func (e *Engine) Clusters(ctx context.Context) Result[[]cluster.Cluster] {
	if cached, ok := lookup[[]cluster.Cluster](e, OpClusters, ""); ok {
		return cached
	}

	started := e.clock()
	snap, avail := record.FetchSnapshot(ctx, e.repo, e.logger, started)

	var faults []string
	if !avail.Issues {
		faults = append(faults, "issues unavailable")
	}

	var clusters []cluster.Cluster
	if fault := e.safely(OpClusters, func() {
		clusters = cluster.Assign(snap.Issues, cluster.DefaultMaxClusters)
	}); fault != "" {
		clusters = nil
		faults = append(faults, fault)
	}

	res := Result[[]cluster.Cluster]{
		Value:      clusters,
		Status:     statusFor(len(clusters) == 0, faults),
		Faults:     faults,
		ComputedAt: started,
	}
	e.finish(OpClusters, "", started, res.Status, faults, res)
	return res
}

// HealthScore computes the composite portfolio health score.
func (e *Engine) HealthScore(ctx context.Context) Result[health.Score] {
	if cached, ok := lookup[health.Score](e, OpHealth, ""); ok {
		return cached
	}

	started := e.clock()
	snap, avail := record.FetchSnapshot(ctx, e.repo, e.logger, started)

	var faults []string
	faults = append(faults, avail.Notes...)

	previous, roiHistory := e.trendInputs(&faults)

	var score health.Score
	if fault := e.safely(OpHealth, func() {
		score = health.Compute(health.Inputs{
			Snapshot:      snap,
			Availability:  avail,
			ROIHistory:    roiHistory,
			PreviousScore: previous,
			Weights:       e.settings.HealthWeights,
			Now:           started,
		})
	}); fault != "" {
		// Neutral, well-formed fallback.
		score = health.Score{Score: 50, Trend: health.TrendStable, LastUpdated: started}
		score.Components = health.Components{InitiativeHealth: 50, IssueVelocity: 50, TeamUtilization: 50, ROITrend: 50}
		faults = append(faults, fault)
	}

	res := Result[health.Score]{
		Value:      score,
		Status:     statusFor(false, faults),
		Faults:     faults,
		ComputedAt: started,
	}
	e.finish(OpHealth, "", started, res.Status, faults, res)
	return res
}

// Alerts evaluates the threshold rules over the current snapshot.
func (e *Engine) Alerts(ctx context.Context) Result[[]alert.Alert] {
	if cached, ok := lookup[[]alert.Alert](e, OpAlerts, ""); ok {
		return cached
	}

	started := e.clock()
	snap, avail := record.FetchSnapshot(ctx, e.repo, e.logger, started)

	var faults []string
	faults = append(faults, avail.Notes...)

	var alerts []alert.Alert
	if fault := e.safely(OpAlerts, func() {
		alerts = e.rules.Evaluate(&alert.Context{
			Snapshot:     snap,
			Availability: avail,
			Settings:     e.settings.Alerts,
			Now:          started,
		})
	}); fault != "" {
		alerts = nil
		faults = append(faults, fault)
	}

	res := Result[[]alert.Alert]{
		Value:      alerts,
		Status:     statusFor(len(alerts) == 0, faults),
		Faults:     faults,
		ComputedAt: started,
	}
	e.finish(OpAlerts, "", started, res.Status, faults, res)
	return res
}

// ROIForecast extrapolates the portfolio ROI position.
func (e *Engine) ROIForecast(ctx context.Context) Result[roi.Forecast] {
	if cached, ok := lookup[roi.Forecast](e, OpForecast, ""); ok {
		return cached
	}

	started := e.clock()
	snap, avail := record.FetchSnapshot(ctx, e.repo, e.logger, started)

	var faults []string
	if !avail.Initiatives {
		faults = append(faults, "initiatives unavailable")
	}

	var roiHistory []float64
	if e.history != nil {
		series, err := e.history.ROISeries(roiHistoryWindow)
		if err != nil {
			faults = append(faults, fmt.Sprintf("roi history unavailable: %v", err))
		} else {
			roiHistory = series
		}
	}

	var forecast roi.Forecast
	if fault := e.safely(OpForecast, func() {
		forecast = roi.Project(snap.Initiatives, roiHistory)
	}); fault != "" {
		forecast = roi.Forecast{}
		faults = append(faults, fault)
	}

	res := Result[roi.Forecast]{
		Value:      forecast,
		Status:     statusFor(false, faults),
		Faults:     faults,
		ComputedAt: started,
	}
	e.finish(OpForecast, "", started, res.Status, faults, res)
	return res
}

// Correlations finds related entities and root causes for a cluster or an
// initiative.
func (e *Engine) Correlations(ctx context.Context, entityID string, entityType correlate.EntityType) Result[correlate.Result] {
	cacheID := string(entityType) + ":" + entityID
	if cached, ok := lookup[correlate.Result](e, OpCorrelations, cacheID); ok {
		return cached
	}

	started := e.clock()
	snap, avail := record.FetchSnapshot(ctx, e.repo, e.logger, started)

	var faults []string
	faults = append(faults, avail.Notes...)
	if !entityType.IsValid() {
		faults = append(faults, fmt.Sprintf("unknown entity type %q", entityType))
	}

	var result correlate.Result
	if fault := e.safely(OpCorrelations, func() {
		clusters := cluster.Assign(snap.Issues, cluster.DefaultMaxClusters)
		result = correlate.Correlate(snap, clusters, entityID, entityType)
	}); fault != "" {
		result = correlate.Result{EntityID: entityID, EntityType: entityType}
		faults = append(faults, fault)
	}

	empty := len(result.RelatedIssues) == 0 && len(result.RelatedInitiatives) == 0
	res := Result[correlate.Result]{
		Value:      result,
		Status:     statusFor(empty, faults),
		Faults:     faults,
		ComputedAt: started,
	}
	e.finish(OpCorrelations, cacheID, started, res.Status, faults, res)
	return res
}

// Insights composes the executive summary from all derived outputs.
func (e *Engine) Insights(ctx context.Context) Result[insight.Report] {
	started := e.clock()

	clustersRes := e.Clusters(ctx)
	healthRes := e.HealthScore(ctx)
	alertsRes := e.Alerts(ctx)
	forecastRes := e.ROIForecast(ctx)

	var degraded []string
	collect := func(op string, s Status, faults []string) {
		if s != StatusDegraded {
			return
		}
		note := op
		if len(faults) > 0 {
			note = fmt.Sprintf("%s (%s)", op, faults[0])
		}
		degraded = append(degraded, note)
	}
	collect(OpClusters, clustersRes.Status, clustersRes.Faults)
	collect(OpHealth, healthRes.Status, healthRes.Faults)
	collect(OpAlerts, alertsRes.Status, alertsRes.Faults)
	collect(OpForecast, forecastRes.Status, forecastRes.Faults)

	report := insight.Compose(started, &healthRes.Value, alertsRes.Value, &forecastRes.Value, clustersRes.Value, degraded)

	res := Result[insight.Report]{
		Value:      report,
		Status:     statusFor(false, degraded),
		Faults:     degraded,
		ComputedAt: started,
	}
	e.logRun(OpInsights, started, res.Status, degraded)
	return res
}

// Refresh recomputes the portfolio analytics and records the composite score
// and current realized-ROI period into history. Stale caches for the run's
// operations are dropped first so the refresh observes the live snapshot.
func (e *Engine) Refresh(ctx context.Context) (Result[insight.Report], error) {
	if e.cache != nil {
		for _, op := range []string{OpClusters, OpHealth, OpAlerts, OpForecast, OpCorrelations} {
			if _, err := e.cache.Invalidate(op); err != nil {
				e.logger.Warn("cache invalidation failed", zap.String("operation", op), zap.Error(err))
			}
		}
	}

	res := e.Insights(ctx)

	if e.history != nil {
		now := res.ComputedAt
		if res.Value.Health != nil {
			components := map[string]float64{
				"initiative_health": res.Value.Health.Components.InitiativeHealth,
				"issue_velocity":    res.Value.Health.Components.IssueVelocity,
				"team_utilization":  res.Value.Health.Components.TeamUtilization,
				"roi_trend":         res.Value.Health.Components.ROITrend,
			}
			if err := e.history.AppendHealth(now, res.Value.Health.Score, components); err != nil {
				return res, fmt.Errorf("append health history: %w", err)
			}
		}
		if res.Value.Forecast != nil {
			period := now.UTC().Format("2006-01")
			if err := e.history.RecordROIPeriod(period, res.Value.Forecast.Current.RealizedROI); err != nil {
				return res, fmt.Errorf("record roi period: %w", err)
			}
		}
	}

	return res, nil
}

// trendInputs reads the previous composite score and the realized-ROI series
// from history; either may be absent.
func (e *Engine) trendInputs(faults *[]string) (*int, []float64) {
	if e.history == nil {
		return nil, nil
	}
	previous, err := e.history.LatestHealthScore()
	if err != nil {
		*faults = append(*faults, fmt.Sprintf("health history unavailable: %v", err))
		previous = nil
	}
	series, err := e.history.ROISeries(roiHistoryWindow)
	if err != nil {
		*faults = append(*faults, fmt.Sprintf("roi history unavailable: %v", err))
		series = nil
	}
	return previous, series
}

// safely runs one sub-engine computation, converting a panic into a fault
// note so no failure crosses a sub-engine boundary.
func (e *Engine) safely(op string, fn func()) (fault string) {
	defer func() {
		if r := recover(); r != nil {
			fault = fmt.Sprintf("internal fault: %v", r)
			e.logger.Error("sub-engine fault", zap.String("operation", op), zap.Any("panic", r))
		}
	}()
	fn()
	return ""
}

// lookup returns a cached result for the operation, when caching is enabled
// and a live entry exists.
func lookup[T any](e *Engine, op, entityID string) (Result[T], bool) {
	var zero Result[T]
	if e.cache == nil {
		return zero, false
	}
	payload, hit, err := e.cache.Get(cache.Key(op, entityID), e.clock())
	if err != nil {
		e.logger.Warn("cache read failed", zap.String("operation", op), zap.Error(err))
		return zero, false
	}
	if !hit {
		return zero, false
	}
	var res Result[T]
	if err := json.Unmarshal(payload, &res); err != nil {
		e.logger.Warn("cache entry corrupt", zap.String("operation", op), zap.Error(err))
		return zero, false
	}
	res.FromCache = true
	return res, true
}

// finish stores the result in the cache and writes the run log entry.
func (e *Engine) finish(op, entityID string, started time.Time, status Status, faults []string, result any) {
	if e.cache != nil {
		ttl := time.Duration(e.settings.CacheTTLMinutes) * time.Minute
		if ttl > 0 {
			if payload, err := json.Marshal(result); err == nil {
				if err := e.cache.Put(cache.Key(op, entityID), payload, e.clock(), ttl); err != nil {
					e.logger.Warn("cache write failed", zap.String("operation", op), zap.Error(err))
				}
			}
		}
	}
	e.logRun(op, started, status, faults)
}

func (e *Engine) logRun(op string, started time.Time, status Status, faults []string) {
	duration := e.clock().Sub(started)
	e.logger.Debug("operation complete",
		zap.String("operation", op),
		zap.String("status", string(status)),
		zap.Duration("duration", duration))
	if e.runLog != nil {
		if err := e.runLog.LogRun(op, string(status), duration, faults); err != nil {
			e.logger.Warn("run log write failed", zap.String("operation", op), zap.Error(err))
		}
	}
}
