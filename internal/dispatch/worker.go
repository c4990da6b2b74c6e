package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/stitchflow/labelrelay/internal/core"
	"github.com/stitchflow/labelrelay/internal/store"
	"github.com/stitchflow/labelrelay/internal/telemetry"
)

const defaultPollInterval = 2 * time.Second

// Worker is the polling dispatch loop: claim one job, resolve its printer,
// push the payload, record the outcome. It is the only writer of job
// outcomes. Multiple worker processes may poll the same store; exclusivity
// comes from the store's conditional claim, not from anything here.
type Worker struct {
	store     store.JobStore
	registry  store.PrinterRegistry
	transport Transport
	interval  time.Duration
	logger    *slog.Logger

	tickMu  sync.Mutex
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func NewWorker(jobs store.JobStore, registry store.PrinterRegistry, transport Transport, interval time.Duration, logger *slog.Logger) *Worker {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Worker{
		store:     jobs,
		registry:  registry,
		transport: transport,
		interval:  interval,
		logger:    logger.With("component", "dispatch_worker"),
		stopCh:    make(chan struct{}),
	}
}

func (w *Worker) Start() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.loop()
}

func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	w.wg.Wait()
}

func (w *Worker) loop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			// A tick that is still running is never re-entered; an
			// overlapping tick is skipped, not queued.
			if !w.tickMu.TryLock() {
				continue
			}
			w.runTick()
			w.tickMu.Unlock()
		}
	}
}

func (w *Worker) runTick() {
	ctx := context.Background()

	job, err := w.store.ClaimNextQueuedJob(ctx)
	if err != nil {
		w.logger.Error("claim failed", "error", err)
		return
	}
	if job == nil {
		return
	}

	w.dispatch(ctx, job)
}

func (w *Worker) dispatch(ctx context.Context, job *core.PrintJob) {
	printer, err := w.registry.Get(ctx, job.PrinterID)
	if err != nil {
		if errors.Is(err, core.ErrPrinterNotFound) {
			w.fail(ctx, job, "printer disabled or missing")
			return
		}
		// Store hiccup, not a delivery verdict: release the claim without
		// charging an attempt and let a later tick retry.
		w.logger.Error("printer lookup failed", "job_id", job.ID, "printer_id", job.PrinterID, "error", err)
		if rerr := w.store.RequeueJob(ctx, job.ID); rerr != nil {
			w.logger.Error("requeue failed", "job_id", job.ID, "error", rerr)
		}
		return
	}
	if !printer.Enabled {
		w.fail(ctx, job, "printer disabled or missing")
		return
	}

	if printer.Protocol != core.ProtocolRaw {
		w.fail(ctx, job, "unsupported protocol")
		return
	}

	if err := w.transport.SendRaw(printer.PublicHost, printer.PublicPort, job.Payload); err != nil {
		w.fail(ctx, job, err.Error())
		return
	}

	if err := w.store.MarkPrinted(ctx, job.ID); err != nil {
		w.logger.Error("mark printed failed", "job_id", job.ID, "error", err)
		return
	}
	telemetry.JobsPrinted.Inc()
	w.logger.Info("job printed", "job_id", job.ID, "printer_id", job.PrinterID, "attempts", job.Attempts+1)
}

func (w *Worker) fail(ctx context.Context, job *core.PrintJob, message string) {
	if err := w.store.RecordFailure(ctx, job, message); err != nil {
		w.logger.Error("record failure failed", "job_id", job.ID, "error", err)
		return
	}

	if job.Status.Terminal() {
		telemetry.JobsFailed.Inc()
		w.logger.Error("job failed permanently", "job_id", job.ID, "printer_id", job.PrinterID, "attempts", job.Attempts, "error", message)
		return
	}
	telemetry.JobsRetried.Inc()
	w.logger.Warn("job delivery failed, retry scheduled", "job_id", job.ID, "printer_id", job.PrinterID, "attempts", job.Attempts, "error", message)
}
