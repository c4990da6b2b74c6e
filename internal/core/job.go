package core

import (
	"time"
)

type JobStatus string

const (
	JobStatusQueued  JobStatus = "queued"
	JobStatusSending JobStatus = "sending"
	JobStatusPrinted JobStatus = "printed"
	JobStatusFailed  JobStatus = "failed"
)

// Terminal reports whether a job in this status can never transition again.
func (s JobStatus) Terminal() bool {
	return s == JobStatusPrinted || s == JobStatusFailed
}

// PrintJob is a single delivery of an opaque label payload to one printer.
// Exactly one job exists per idempotency key. The dispatch worker is the only
// component that moves a job out of "sending".
type PrintJob struct {
	ID             string     `json:"id"`
	CreatedAt      time.Time  `json:"created_at"`
	CreatedBy      string     `json:"created_by"`
	Source         string     `json:"source"`
	OrderID        string     `json:"order_id,omitempty"`
	PrinterID      string     `json:"printer_id"`
	Payload        []byte     `json:"-"`
	Status         JobStatus  `json:"status"`
	Attempts       int        `json:"attempts"`
	LastError      string     `json:"last_error,omitempty"`
	DispatchedAt   *time.Time `json:"dispatched_at,omitempty"`
	PrintedAt      *time.Time `json:"printed_at,omitempty"`
	NextAttemptAt  *time.Time `json:"next_attempt_at,omitempty"`
	IdempotencyKey string     `json:"idempotency_key"`
}
