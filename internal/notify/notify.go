// Package notify formats analytics events as notification title/message
// pairs. Delivery beyond a local writer is intentionally out of scope; the
// watch command writes formatted lines to its output.
package notify

import (
	"fmt"
	"io"
	"strings"

	"compass/internal/alert"
	"compass/internal/health"
)

// Notifier writes formatted notifications to an output stream.
type Notifier struct {
	Enabled bool
	Out     io.Writer
}

// Send writes a single notification line. Disabled notifiers are a no-op.
func (n *Notifier) Send(title, message string) error {
	if n == nil || !n.Enabled || n.Out == nil {
		return nil
	}
	if _, err := fmt.Fprintf(n.Out, "%s: %s\n", title, message); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	return nil
}

// FormatAlert formats a single alert as a notification.
func FormatAlert(a alert.Alert) (title, message string) {
	switch a.Type {
	case alert.TypeCritical:
		title = "🚨 Compass Critical Alert"
	case alert.TypeWarning:
		title = "⚠️ Compass Alert"
	default:
		title = "ℹ️ Compass Notice"
	}
	message = fmt.Sprintf("[%s/p%d] %s", a.Category, a.Priority, a.Title)
	return title, message
}

// FormatNewAlerts summarizes alerts that appeared since the previous run.
func FormatNewAlerts(fresh []alert.Alert) (title, message string) {
	if len(fresh) == 1 {
		return FormatAlert(fresh[0])
	}
	title = "⚠️ Compass Alerts"
	titles := make([]string, 0, len(fresh))
	for _, a := range fresh {
		titles = append(titles, a.Title)
	}
	message = fmt.Sprintf("%d new alerts: %s", len(fresh), strings.Join(titles, "; "))
	return title, message
}

// FormatHealthChange formats a composite health score movement.
func FormatHealthChange(previous, current int, trend health.Trend) (title, message string) {
	switch trend {
	case health.TrendImproving:
		title = "📈 Compass Health Improving"
	case health.TrendDeclining:
		title = "📉 Compass Health Declining"
	default:
		title = "📊 Compass Health Update"
	}
	message = fmt.Sprintf("Portfolio health %d → %d", previous, current)
	return title, message
}
