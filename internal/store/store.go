package store

import (
	"context"
	"fmt"
	"time"

	"github.com/stitchflow/labelrelay/internal/core"
)

// EnqueueParams collects the inputs for an idempotent job submission.
type EnqueueParams struct {
	CreatedBy      string
	Source         string
	OrderID        string
	PrinterID      string
	Payload        []byte
	IdempotencyKey string
}

// JobStore owns the PrintJob lifecycle. Implementations must make
// ClaimNextQueuedJob a conditional transition so that concurrent workers
// never claim the same job twice.
type JobStore interface {
	// EnqueueJob creates a job or returns the existing one for the same
	// idempotency key. The bool reports whether a new row was created.
	EnqueueJob(ctx context.Context, p EnqueueParams) (*core.PrintJob, bool, error)

	// ClaimNextQueuedJob atomically moves the next eligible queued job to
	// sending and returns it, or nil when nothing is eligible. Fresh jobs
	// (no retry time) are preferred over elapsed retries.
	ClaimNextQueuedJob(ctx context.Context) (*core.PrintJob, error)

	// MarkPrinted records terminal success for a job in sending.
	MarkPrinted(ctx context.Context, jobID string) error

	// RecordFailure increments attempts and either schedules a retry or,
	// once the attempt budget is spent, moves the job to terminal failed.
	// The passed job is updated in place with the resulting state.
	RecordFailure(ctx context.Context, job *core.PrintJob, errText string) error

	// RequeueJob releases a claim without charging an attempt, for ticks
	// that could not reach a delivery verdict. The job becomes immediately
	// claimable again.
	RequeueJob(ctx context.Context, jobID string) error

	GetJob(ctx context.Context, id string) (*core.PrintJob, error)

	// FailedCountSince counts terminally failed jobs created at or after
	// the given time. Feeds the failure monitor.
	FailedCountSince(ctx context.Context, since time.Time) (int, error)
}

// PrinterPatch is a partial printer update; nil fields are left untouched.
type PrinterPatch struct {
	Name           *string
	PublicHost     *string
	PublicPort     *int
	Protocol       *string
	Enabled        *bool
	AllowedSources *[]string
}

// PrinterRegistry owns printer configurations and the global default setting.
type PrinterRegistry interface {
	List(ctx context.Context) ([]*core.Printer, error)
	Get(ctx context.Context, id string) (*core.Printer, error)
	Upsert(ctx context.Context, p *core.Printer) error
	Patch(ctx context.Context, id string, patch PrinterPatch) (*core.Printer, error)

	// DefaultID returns the configured default printer id, or "" when unset.
	DefaultID(ctx context.Context) (string, error)
	// SetDefault rejects missing or disabled printers.
	SetDefault(ctx context.Context, id string) error
}

const maxErrorLen = 500

func errNotSending(id string) error {
	return fmt.Errorf("job %s is not in sending state", id)
}

func truncateError(s string) string {
	if len(s) > maxErrorLen {
		return s[:maxErrorLen]
	}
	return s
}
