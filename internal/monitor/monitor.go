package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/stitchflow/labelrelay/internal/telemetry"
)

const (
	defaultInterval  = 60 * time.Second
	defaultWindow    = 10 * time.Minute
	defaultThreshold = 10

	eventFailureThreshold = "failure_threshold_exceeded"
)

// FailureCounter is the slice of the job store the monitor reads.
type FailureCounter interface {
	FailedCountSince(ctx context.Context, since time.Time) (int, error)
}

// Notifier receives the alert signal. Optional.
type Notifier interface {
	Send(event string, data any) error
}

type alertData struct {
	FailedCount int    `json:"failed_count"`
	Threshold   int    `json:"threshold"`
	Window      string `json:"window"`
}

// Monitor periodically counts recent terminal failures and raises an
// operational warning when they exceed the threshold. Purely observational;
// it never touches job state.
type Monitor struct {
	counter   FailureCounter
	notifier  Notifier
	interval  time.Duration
	window    time.Duration
	threshold int
	logger    *slog.Logger
	cron      *cron.Cron
}

func New(counter FailureCounter, interval, window time.Duration, threshold int, notifier Notifier, logger *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = defaultInterval
	}
	if window <= 0 {
		window = defaultWindow
	}
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	return &Monitor{
		counter:   counter,
		notifier:  notifier,
		interval:  interval,
		window:    window,
		threshold: threshold,
		logger:    logger.With("component", "failure_monitor"),
	}
}

func (m *Monitor) Start() error {
	m.cron = cron.New()
	_, err := m.cron.AddFunc(fmt.Sprintf("@every %s", m.interval), m.Check)
	if err != nil {
		return fmt.Errorf("failed to schedule failure monitor: %w", err)
	}
	m.cron.Start()
	m.logger.Info("failure monitor started", "interval", m.interval, "window", m.window, "threshold", m.threshold)
	return nil
}

func (m *Monitor) Stop() {
	if m.cron != nil {
		m.cron.Stop()
	}
}

// Check runs one inspection pass. Exported so the composition root and
// tests can trigger it outside the schedule.
func (m *Monitor) Check() {
	ctx := context.Background()

	count, err := m.counter.FailedCountSince(ctx, time.Now().Add(-m.window))
	if err != nil {
		m.logger.Error("failure count query failed", "error", err)
		return
	}

	if count <= m.threshold {
		return
	}

	telemetry.FailureAlerts.Inc()
	m.logger.Warn("failure threshold exceeded", "failed_count", count, "threshold", m.threshold, "window", m.window)

	if m.notifier == nil {
		return
	}
	err = m.notifier.Send(eventFailureThreshold, alertData{
		FailedCount: count,
		Threshold:   m.threshold,
		Window:      m.window.String(),
	})
	if err != nil {
		m.logger.Error("alert delivery failed", "error", err)
	}
}
