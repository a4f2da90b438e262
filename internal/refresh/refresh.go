// Package refresh runs the analytics engine on a fixed interval, the way a
// dashboard backend would. Staleness is handled here, at the calling layer:
// each tick works on its own snapshot and the last completed run wins.
package refresh

import (
	"context"
	"time"

	"go.uber.org/zap"

	"compass/internal/alert"
	"compass/internal/engine"
	"compass/internal/health"
	"compass/internal/notify"
)

// Runner periodically refreshes the portfolio analytics.
type Runner struct {
	Engine   *engine.Engine
	Interval time.Duration
	Logger   *zap.Logger
	Notifier *notify.Notifier

	// RecordsDir, when set, enables change detection: a tick with an
	// unchanged records content hash skips recomputation.
	RecordsDir string

	lastHash   string
	lastAlerts map[string]struct{}
	lastScore  *int
}

// Run executes refresh ticks until the context is cancelled. The first tick
// fires immediately.
func (r *Runner) Run(ctx context.Context) error {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := r.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	logger.Info("refresh loop started", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.tick(ctx, logger)
	for {
		select {
		case <-ctx.Done():
			logger.Info("refresh loop stopped")
			return ctx.Err()
		case <-ticker.C:
			r.tick(ctx, logger)
		}
	}
}

// Tick runs a single refresh pass. Exposed for the one-shot CLI path.
func (r *Runner) Tick(ctx context.Context) {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	r.tick(ctx, logger)
}

func (r *Runner) tick(ctx context.Context, logger *zap.Logger) {
	if r.RecordsDir != "" {
		hash, err := SnapshotDirHash(r.RecordsDir)
		if err != nil {
			logger.Warn("records hash failed", zap.Error(err))
		} else if hash != "" && hash == r.lastHash {
			logger.Debug("records unchanged, skipping refresh")
			return
		} else {
			r.lastHash = hash
		}
	}

	res, err := r.Engine.Refresh(ctx)
	if err != nil {
		logger.Warn("refresh completed with history errors", zap.Error(err))
	}
	logger.Info("refresh complete",
		zap.String("status", string(res.Status)),
		zap.Int("headlines", len(res.Value.Headlines)),
		zap.Int("alerts", len(res.Value.Alerts)))

	r.announce(logger, res.Value.Alerts)
	r.announceHealth(logger, res.Value.Health)
}

// announce sends notifications for alerts not seen on the previous tick.
func (r *Runner) announce(logger *zap.Logger, alerts []alert.Alert) {
	if r.Notifier == nil || !r.Notifier.Enabled {
		return
	}

	current := make(map[string]struct{}, len(alerts))
	var fresh []alert.Alert
	for _, a := range alerts {
		current[a.ID] = struct{}{}
		if r.lastAlerts != nil {
			if _, seen := r.lastAlerts[a.ID]; seen {
				continue
			}
		}
		fresh = append(fresh, a)
	}

	// Skip the very first tick so a restart does not replay every alert.
	if r.lastAlerts != nil && len(fresh) > 0 {
		title, message := notify.FormatNewAlerts(fresh)
		if err := r.Notifier.Send(title, message); err != nil {
			logger.Warn("alert notification failed", zap.Error(err))
		}
	}
	r.lastAlerts = current
}

// announceHealth sends a notification when the composite score moves between
// ticks. The first scored tick only records the baseline.
func (r *Runner) announceHealth(logger *zap.Logger, score *health.Score) {
	if score == nil {
		return
	}
	previous := r.lastScore
	current := score.Score
	r.lastScore = &current

	if previous == nil || r.Notifier == nil || !r.Notifier.Enabled {
		return
	}
	trend := health.TrendBetween(*previous, current)
	if trend == health.TrendStable {
		return
	}
	title, message := notify.FormatHealthChange(*previous, current, trend)
	if err := r.Notifier.Send(title, message); err != nil {
		logger.Warn("health notification failed", zap.Error(err))
	}
}
