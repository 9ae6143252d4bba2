package reconcile

import (
	"log/slog"
	"sync"
	"time"

	"github.com/seclens/threatview/pkg/events"
	"github.com/seclens/threatview/pkg/metrics"
)

// DefaultAlertDuration is how long an alert stays up before auto-dismissal.
const DefaultAlertDuration = 4 * time.Second

// Alert is the single active notification shown to the operator.
type Alert struct {
	Event    events.ActivityEvent
	RaisedAt time.Time
}

// Alerter keeps at most one alert active at a time. A raised alert is
// dismissed after the configured duration or by Dismiss, whichever comes
// first; raising again replaces the active alert and restarts the clock.
type Alerter struct {
	mu       sync.Mutex
	duration time.Duration
	active   *Alert
	timer    *time.Timer
	closed   bool
	logger   *slog.Logger
}

// NewAlerter creates an Alerter. A non-positive duration falls back to
// DefaultAlertDuration.
func NewAlerter(duration time.Duration, logger *slog.Logger) *Alerter {
	if duration <= 0 {
		duration = DefaultAlertDuration
	}
	return &Alerter{
		duration: duration,
		logger:   logger,
	}
}

// Raise activates an alert for the event, replacing any current one.
func (a *Alerter) Raise(e events.ActivityEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return
	}

	if a.timer != nil {
		a.timer.Stop()
	}
	a.active = &Alert{Event: e, RaisedAt: time.Now()}
	a.timer = time.AfterFunc(a.duration, a.Dismiss)

	metrics.AlertsFired.Inc()
	a.logger.Warn("High severity alert raised",
		"event_id", e.ID,
		"message", e.Message,
	)
}

// Current returns the active alert, if any.
func (a *Alerter) Current() (Alert, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.active == nil {
		return Alert{}, false
	}
	return *a.active, true
}

// Dismiss clears the active alert. Dismissing when nothing is active is a
// no-op.
func (a *Alerter) Dismiss() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.active = nil
}

// Close dismisses any active alert and stops outstanding timers. Safe to
// call more than once; Raise after Close is a no-op.
func (a *Alerter) Close() {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	a.Dismiss()
}
