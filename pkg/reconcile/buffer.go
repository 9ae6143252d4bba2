// Package reconcile merges incoming snapshots into the displayed recent
// activity window and raises edge-detected high severity alerts.
package reconcile

import (
	"log/slog"
	"sync"

	"github.com/seclens/threatview/pkg/events"
)

// AlertSink receives the newly observed high severity event. Raise is called
// at most once per distinct high severity event id.
type AlertSink interface {
	Raise(e events.ActivityEvent)
}

// Buffer holds the displayed recent activity window. Each snapshot is
// authoritative: the window is replaced wholesale, never merged. The buffer
// tracks the id of the last high severity event it alerted on so that a
// snapshot still containing the same event does not re-fire.
type Buffer struct {
	mu         sync.Mutex
	window     []events.ActivityEvent
	lastHighID int64
	sink       AlertSink
	logger     *slog.Logger
}

// NewBuffer creates a Buffer. sink may be nil if no alerting is wanted.
func NewBuffer(sink AlertSink, logger *slog.Logger) *Buffer {
	return &Buffer{
		sink:   sink,
		logger: logger,
	}
}

// Apply replaces the window with the snapshot and fires the alert sink if
// the snapshot contains a high severity event not alerted on before. An
// empty snapshot leaves the tracked id unchanged and fires nothing.
func (b *Buffer) Apply(snapshot []events.ActivityEvent) {
	b.mu.Lock()

	b.window = snapshot

	var alertOn *events.ActivityEvent
	for i := range snapshot {
		e := &snapshot[i]
		if e.Status == events.SeverityHigh && e.ID != b.lastHighID {
			b.lastHighID = e.ID
			alertOn = e
			break
		}
	}
	b.mu.Unlock()

	if alertOn != nil {
		b.logger.Info("New high severity event observed",
			"event_id", alertOn.ID,
			"device", alertOn.Device,
		)
		if b.sink != nil {
			b.sink.Raise(*alertOn)
		}
	}
}

// Seed installs an initial window without firing the alert sink. The first
// high severity event in the seed becomes the tracked id, so only events
// arriving after the seed can alert.
func (b *Buffer) Seed(snapshot []events.ActivityEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.window = snapshot
	for i := range snapshot {
		if snapshot[i].Status == events.SeverityHigh {
			b.lastHighID = snapshot[i].ID
			break
		}
	}
}

// Window returns a copy of the displayed window, newest first.
func (b *Buffer) Window() []events.ActivityEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]events.ActivityEvent, len(b.window))
	copy(out, b.window)
	return out
}

// LastHighID returns the id of the last high severity event alerted on,
// zero if none yet.
func (b *Buffer) LastHighID() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastHighID
}
