package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stitchflow/labelrelay/internal/core"
)

// Memory is an in-process JobStore and PrinterRegistry with the same
// transition semantics as the SQLite store. Used for deterministic tests;
// Now can be swapped to control the clock.
type Memory struct {
	mu        sync.Mutex
	jobs      map[string]*core.PrintJob
	byKey     map[string]string
	printers  map[string]*core.Printer
	defaultID string
	retry     core.RetryPolicy

	Now func() time.Time
}

func NewMemory(retry core.RetryPolicy) *Memory {
	return &Memory{
		jobs:     make(map[string]*core.PrintJob),
		byKey:    make(map[string]string),
		printers: make(map[string]*core.Printer),
		retry:    retry,
		Now:      time.Now,
	}
}

func (m *Memory) EnqueueJob(_ context.Context, p EnqueueParams) (*core.PrintJob, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.byKey[p.IdempotencyKey]; ok {
		return copyJob(m.jobs[id]), false, nil
	}

	job := &core.PrintJob{
		ID:             uuid.NewString(),
		CreatedAt:      m.Now().UTC(),
		CreatedBy:      p.CreatedBy,
		Source:         p.Source,
		OrderID:        p.OrderID,
		PrinterID:      p.PrinterID,
		Payload:        p.Payload,
		Status:         core.JobStatusQueued,
		IdempotencyKey: p.IdempotencyKey,
	}
	m.jobs[job.ID] = job
	m.byKey[p.IdempotencyKey] = job.ID
	return copyJob(job), true, nil
}

func (m *Memory) ClaimNextQueuedJob(_ context.Context) (*core.PrintJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.Now().UTC()
	var eligible []*core.PrintJob
	for _, j := range m.jobs {
		if j.Status != core.JobStatusQueued {
			continue
		}
		if j.NextAttemptAt != nil && j.NextAttemptAt.After(now) {
			continue
		}
		eligible = append(eligible, j)
	}
	if len(eligible) == 0 {
		return nil, nil
	}

	sort.Slice(eligible, func(i, k int) bool {
		a, b := eligible[i], eligible[k]
		aFresh := a.NextAttemptAt == nil
		bFresh := b.NextAttemptAt == nil
		if aFresh != bFresh {
			return aFresh
		}
		if !aFresh && !a.NextAttemptAt.Equal(*b.NextAttemptAt) {
			return a.NextAttemptAt.Before(*b.NextAttemptAt)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})

	job := eligible[0]
	job.Status = core.JobStatusSending
	dispatched := now
	job.DispatchedAt = &dispatched
	return copyJob(job), nil
}

func (m *Memory) MarkPrinted(_ context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok || job.Status != core.JobStatusSending {
		return errNotSending(jobID)
	}
	now := m.Now().UTC()
	job.Status = core.JobStatusPrinted
	job.PrintedAt = &now
	job.LastError = ""
	job.NextAttemptAt = nil
	return nil
}

func (m *Memory) RecordFailure(_ context.Context, job *core.PrintJob, errText string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.jobs[job.ID]
	if !ok || stored.Status != core.JobStatusSending {
		return errNotSending(job.ID)
	}

	attempts := stored.Attempts + 1
	errText = truncateError(errText)
	stored.Attempts = attempts
	stored.LastError = errText

	if m.retry.Exhausted(attempts) {
		stored.Status = core.JobStatusFailed
		stored.NextAttemptAt = nil
	} else {
		next := m.Now().UTC().Add(m.retry.Delay(attempts))
		stored.Status = core.JobStatusQueued
		stored.NextAttemptAt = &next
	}

	*job = *copyJob(stored)
	return nil
}

func (m *Memory) RequeueJob(_ context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok || job.Status != core.JobStatusSending {
		return errNotSending(jobID)
	}
	job.Status = core.JobStatusQueued
	job.DispatchedAt = nil
	return nil
}

func (m *Memory) GetJob(_ context.Context, id string) (*core.PrintJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, core.ErrJobNotFound
	}
	return copyJob(job), nil
}

func (m *Memory) FailedCountSince(_ context.Context, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, j := range m.jobs {
		if j.Status == core.JobStatusFailed && !j.CreatedAt.Before(since.UTC()) {
			count++
		}
	}
	return count, nil
}

func (m *Memory) List(_ context.Context) ([]*core.Printer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	printers := make([]*core.Printer, 0, len(m.printers))
	for _, p := range m.printers {
		printers = append(printers, copyPrinter(p))
	}
	sort.Slice(printers, func(i, k int) bool { return printers[i].Name < printers[k].Name })
	return printers, nil
}

func (m *Memory) Get(_ context.Context, id string) (*core.Printer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.printers[id]
	if !ok {
		return nil, core.ErrPrinterNotFound
	}
	return copyPrinter(p), nil
}

func (m *Memory) Upsert(_ context.Context, p *core.Printer) error {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.Now().UTC()
	if existing, ok := m.printers[p.ID]; ok {
		p.CreatedAt = existing.CreatedAt
	} else if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	m.printers[p.ID] = copyPrinter(p)
	return nil
}

func (m *Memory) Patch(_ context.Context, id string, patch PrinterPatch) (*core.Printer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.printers[id]
	if !ok {
		return nil, core.ErrPrinterNotFound
	}

	if patch.Enabled != nil && !*patch.Enabled && m.defaultID == id {
		return nil, core.ErrDefaultPrinterDisableBlocked
	}

	p := copyPrinter(stored)
	applyPatch(p, patch)
	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.UpdatedAt = m.Now().UTC()
	m.printers[id] = p
	return copyPrinter(p), nil
}

func (m *Memory) DefaultID(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.defaultID, nil
}

func (m *Memory) SetDefault(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.printers[id]
	if !ok {
		return core.ErrPrinterNotFound
	}
	if !p.Enabled {
		return core.ErrDefaultPrinterDisabled
	}
	m.defaultID = id
	return nil
}

func copyJob(j *core.PrintJob) *core.PrintJob {
	c := *j
	return &c
}

func copyPrinter(p *core.Printer) *core.Printer {
	c := *p
	c.AllowedSources = append([]string(nil), p.AllowedSources...)
	return &c
}
