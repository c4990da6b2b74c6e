package monitor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCounter struct {
	count int
	err   error
	since time.Time
}

func (f *fakeCounter) FailedCountSince(_ context.Context, since time.Time) (int, error) {
	f.since = since
	return f.count, f.err
}

type fakeNotifier struct {
	events []string
	data   []any
}

func (f *fakeNotifier) Send(event string, data any) error {
	f.events = append(f.events, event)
	f.data = append(f.data, data)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMonitorAlertsAboveThreshold(t *testing.T) {
	counter := &fakeCounter{count: 11}
	notifier := &fakeNotifier{}
	m := New(counter, time.Minute, 10*time.Minute, 10, notifier, testLogger())

	m.Check()

	require.Len(t, notifier.events, 1)
	assert.Equal(t, "failure_threshold_exceeded", notifier.events[0])

	data, ok := notifier.data[0].(alertData)
	require.True(t, ok)
	assert.Equal(t, 11, data.FailedCount)
	assert.Equal(t, 10, data.Threshold)
	assert.Equal(t, "10m0s", data.Window)

	// The lookback equals the configured window.
	assert.WithinDuration(t, time.Now().Add(-10*time.Minute), counter.since, 5*time.Second)
}

func TestMonitorQuietAtOrBelowThreshold(t *testing.T) {
	counter := &fakeCounter{count: 10}
	notifier := &fakeNotifier{}
	m := New(counter, time.Minute, 10*time.Minute, 10, notifier, testLogger())

	m.Check()

	assert.Empty(t, notifier.events)
}

func TestMonitorSurvivesCounterError(t *testing.T) {
	counter := &fakeCounter{err: errors.New("db closed")}
	notifier := &fakeNotifier{}
	m := New(counter, time.Minute, 10*time.Minute, 10, notifier, testLogger())

	m.Check()

	assert.Empty(t, notifier.events)
}

func TestMonitorWithoutNotifier(t *testing.T) {
	counter := &fakeCounter{count: 100}
	m := New(counter, time.Minute, 10*time.Minute, 10, nil, testLogger())

	// Logs the warning and returns without a notifier configured.
	m.Check()
}

func TestMonitorDefaults(t *testing.T) {
	m := New(&fakeCounter{}, 0, 0, 0, nil, testLogger())

	assert.Equal(t, 60*time.Second, m.interval)
	assert.Equal(t, 10*time.Minute, m.window)
	assert.Equal(t, 10, m.threshold)
}

func TestMonitorStartStop(t *testing.T) {
	m := New(&fakeCounter{}, time.Minute, 10*time.Minute, 10, nil, testLogger())

	require.NoError(t, m.Start())
	m.Stop()
}
