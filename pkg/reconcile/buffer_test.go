package reconcile

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seclens/threatview/pkg/events"
)

type recordSink struct {
	raised []events.ActivityEvent
}

func (r *recordSink) Raise(e events.ActivityEvent) {
	r.raised = append(r.raised, e)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestApply_ReplacesWindow(t *testing.T) {
	b := NewBuffer(nil, testLogger())

	first := []events.ActivityEvent{{ID: 3, Status: events.SeverityLow}, {ID: 2, Status: events.SeverityLow}}
	second := []events.ActivityEvent{{ID: 5, Status: events.SeverityMedium}}

	b.Apply(first)
	require.Len(t, b.Window(), 2)

	b.Apply(second)
	window := b.Window()
	require.Len(t, window, 1)
	assert.Equal(t, int64(5), window[0].ID, "snapshot is authoritative, no merging")
}

func TestApply_NoHighSeverityNeverAlerts(t *testing.T) {
	sink := &recordSink{}
	b := NewBuffer(sink, testLogger())

	b.Apply([]events.ActivityEvent{
		{ID: 10, Status: events.SeverityMedium},
		{ID: 9, Status: events.SeverityLow},
	})
	b.Apply([]events.ActivityEvent{
		{ID: 12, Status: events.SeverityLow},
	})

	assert.Empty(t, sink.raised)
	assert.Equal(t, int64(0), b.LastHighID(), "tracked id must not change without a high event")
}

func TestApply_NewHighSeverityScenario(t *testing.T) {
	sink := &recordSink{}
	b := NewBuffer(sink, testLogger())

	// seed the tracked id at 41
	b.Apply([]events.ActivityEvent{{ID: 41, Status: events.SeverityHigh, Message: "probe"}})
	require.Len(t, sink.raised, 1)
	require.Equal(t, int64(41), b.LastHighID())

	snapshot := []events.ActivityEvent{
		{ID: 42, Status: events.SeverityHigh, Message: `type="attack" srcip=10.0.0.5`},
	}

	b.Apply(snapshot)
	require.Len(t, sink.raised, 2, "exactly one new notification")
	assert.Contains(t, sink.raised[1].Message, "10.0.0.5")
	assert.Equal(t, int64(42), b.LastHighID())

	// identical snapshot again: edge-detected, must not re-fire
	b.Apply(snapshot)
	assert.Len(t, sink.raised, 2)
	assert.Equal(t, int64(42), b.LastHighID())
}

func TestSeed_DoesNotAlert(t *testing.T) {
	sink := &recordSink{}
	b := NewBuffer(sink, testLogger())

	b.Seed([]events.ActivityEvent{
		{ID: 30, Status: events.SeverityLow},
		{ID: 29, Status: events.SeverityHigh},
	})

	assert.Empty(t, sink.raised, "seed data is not newly observed")
	assert.Equal(t, int64(29), b.LastHighID())
	assert.Len(t, b.Window(), 2)

	// the seeded high event arriving again in a snapshot must not fire
	b.Apply([]events.ActivityEvent{{ID: 29, Status: events.SeverityHigh}})
	assert.Empty(t, sink.raised)

	// a genuinely new high event still does
	b.Apply([]events.ActivityEvent{{ID: 31, Status: events.SeverityHigh}})
	assert.Len(t, sink.raised, 1)
}

func TestApply_EmptySnapshot(t *testing.T) {
	sink := &recordSink{}
	b := NewBuffer(sink, testLogger())

	b.Apply([]events.ActivityEvent{{ID: 7, Status: events.SeverityHigh}})
	require.Equal(t, int64(7), b.LastHighID())

	b.Apply(nil)
	assert.Len(t, sink.raised, 1)
	assert.Equal(t, int64(7), b.LastHighID(), "empty snapshot leaves tracked id unchanged")
	assert.Empty(t, b.Window())
}

func TestApply_DuplicateIDsDoNotCrash(t *testing.T) {
	sink := &recordSink{}
	b := NewBuffer(sink, testLogger())

	b.Apply([]events.ActivityEvent{
		{ID: 5, Status: events.SeverityHigh, Message: "first"},
		{ID: 5, Status: events.SeverityHigh, Message: "dup"},
	})

	assert.Len(t, sink.raised, 1, "one alert per distinct id, duplicates tolerated")
}

func TestApply_FirstHighNotNewest(t *testing.T) {
	sink := &recordSink{}
	b := NewBuffer(sink, testLogger())

	// the high event is buried in the middle of the snapshot
	b.Apply([]events.ActivityEvent{
		{ID: 20, Status: events.SeverityLow},
		{ID: 19, Status: events.SeverityHigh, Message: "buried"},
		{ID: 18, Status: events.SeverityMedium},
	})

	require.Len(t, sink.raised, 1)
	assert.Equal(t, int64(19), sink.raised[0].ID)
}

func TestAlerter_AutoDismiss(t *testing.T) {
	a := NewAlerter(30*time.Millisecond, testLogger())
	defer a.Close()

	a.Raise(events.ActivityEvent{ID: 1, Status: events.SeverityHigh})

	_, ok := a.Current()
	require.True(t, ok, "alert active immediately after raise")

	assert.Eventually(t, func() bool {
		_, active := a.Current()
		return !active
	}, time.Second, 5*time.Millisecond, "alert auto-dismisses after the configured duration")
}

func TestAlerter_ManualDismiss(t *testing.T) {
	a := NewAlerter(time.Minute, testLogger())
	defer a.Close()

	a.Raise(events.ActivityEvent{ID: 2, Status: events.SeverityHigh})
	a.Dismiss()

	_, ok := a.Current()
	assert.False(t, ok)

	// dismissing again is a no-op
	a.Dismiss()
}

func TestAlerter_RaiseReplacesActive(t *testing.T) {
	a := NewAlerter(time.Minute, testLogger())
	defer a.Close()

	a.Raise(events.ActivityEvent{ID: 1})
	a.Raise(events.ActivityEvent{ID: 2})

	alert, ok := a.Current()
	require.True(t, ok)
	assert.Equal(t, int64(2), alert.Event.ID, "at most one active alert")
}

func TestAlerter_CloseIsIdempotent(t *testing.T) {
	a := NewAlerter(time.Minute, testLogger())

	a.Raise(events.ActivityEvent{ID: 1})
	a.Close()
	a.Close()

	a.Raise(events.ActivityEvent{ID: 2})
	_, ok := a.Current()
	assert.False(t, ok, "raise after close is a no-op")
}
