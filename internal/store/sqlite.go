package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/stitchflow/labelrelay/internal/core"
)

// SQLite is the durable JobStore and PrinterRegistry. A single write
// connection keeps SQLite happy; multiple processes sharing the file still
// get claim exclusivity from the conditional status update.
type SQLite struct {
	db    *sql.DB
	retry core.RetryPolicy
	now   func() time.Time
}

func OpenSQLite(path string, retry core.RetryPolicy) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db, retry: retry, now: time.Now}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) EnqueueJob(ctx context.Context, p EnqueueParams) (*core.PrintJob, bool, error) {
	existing, err := s.getJobByKey(ctx, p.IdempotencyKey)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	job := &core.PrintJob{
		ID:             uuid.NewString(),
		CreatedAt:      s.now().UTC(),
		CreatedBy:      p.CreatedBy,
		Source:         p.Source,
		OrderID:        p.OrderID,
		PrinterID:      p.PrinterID,
		Payload:        p.Payload,
		Status:         core.JobStatusQueued,
		IdempotencyKey: p.IdempotencyKey,
	}

	_, err = s.db.ExecContext(ctx, insertJob,
		job.ID, job.CreatedAt, job.CreatedBy, job.Source, job.OrderID,
		job.PrinterID, job.Payload, job.Status, job.IdempotencyKey)
	if err != nil {
		// A concurrent submission with the same key won the insert; hand
		// back its job instead of erroring.
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			winner, rerr := s.getJobByKey(ctx, p.IdempotencyKey)
			if rerr != nil {
				return nil, false, rerr
			}
			if winner != nil {
				return winner, false, nil
			}
		}
		return nil, false, fmt.Errorf("failed to insert job: %w", err)
	}

	return job, true, nil
}

func (s *SQLite) ClaimNextQueuedJob(ctx context.Context) (*core.PrintJob, error) {
	for {
		now := s.now().UTC()
		job, err := s.scanJob(s.db.QueryRowContext(ctx, selectClaimCandidate, now))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil
			}
			return nil, fmt.Errorf("failed to select claim candidate: %w", err)
		}

		res, err := s.db.ExecContext(ctx, claimJob, now, job.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to claim job: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to get affected rows: %w", err)
		}
		if affected == 0 {
			// Another worker took it between select and update; try the
			// next candidate.
			continue
		}

		job.Status = core.JobStatusSending
		job.DispatchedAt = &now
		return job, nil
	}
}

func (s *SQLite) MarkPrinted(ctx context.Context, jobID string) error {
	now := s.now().UTC()
	res, err := s.db.ExecContext(ctx, markJobPrinted, now, jobID)
	if err != nil {
		return fmt.Errorf("failed to mark job printed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return errNotSending(jobID)
	}
	return nil
}

func (s *SQLite) RecordFailure(ctx context.Context, job *core.PrintJob, errText string) error {
	attempts := job.Attempts + 1
	errText = truncateError(errText)

	if s.retry.Exhausted(attempts) {
		res, err := s.db.ExecContext(ctx, failJobTerminal, attempts, errText, job.ID)
		if err != nil {
			return fmt.Errorf("failed to record terminal failure: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errNotSending(job.ID)
		}
		job.Status = core.JobStatusFailed
		job.Attempts = attempts
		job.LastError = errText
		job.NextAttemptAt = nil
		return nil
	}

	next := s.now().UTC().Add(s.retry.Delay(attempts))
	res, err := s.db.ExecContext(ctx, scheduleJobRetry, attempts, errText, next, job.ID)
	if err != nil {
		return fmt.Errorf("failed to schedule retry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errNotSending(job.ID)
	}
	job.Status = core.JobStatusQueued
	job.Attempts = attempts
	job.LastError = errText
	job.NextAttemptAt = &next
	return nil
}

func (s *SQLite) RequeueJob(ctx context.Context, jobID string) error {
	res, err := s.db.ExecContext(ctx, requeueJob, jobID)
	if err != nil {
		return fmt.Errorf("failed to requeue job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errNotSending(jobID)
	}
	return nil
}

func (s *SQLite) GetJob(ctx context.Context, id string) (*core.PrintJob, error) {
	job, err := s.scanJob(s.db.QueryRowContext(ctx, getJobByID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

func (s *SQLite) FailedCountSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, countFailedSince, since.UTC()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count failed jobs: %w", err)
	}
	return count, nil
}

func (s *SQLite) getJobByKey(ctx context.Context, key string) (*core.PrintJob, error) {
	job, err := s.scanJob(s.db.QueryRowContext(ctx, getJobByIdempotencyKey, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up idempotency key: %w", err)
	}
	return job, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLite) scanJob(row rowScanner) (*core.PrintJob, error) {
	job := &core.PrintJob{}
	var dispatchedAt, printedAt, nextAttemptAt sql.NullTime
	err := row.Scan(
		&job.ID, &job.CreatedAt, &job.CreatedBy, &job.Source, &job.OrderID,
		&job.PrinterID, &job.Payload, &job.Status, &job.Attempts, &job.LastError,
		&dispatchedAt, &printedAt, &nextAttemptAt, &job.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if dispatchedAt.Valid {
		job.DispatchedAt = &dispatchedAt.Time
	}
	if printedAt.Valid {
		job.PrintedAt = &printedAt.Time
	}
	if nextAttemptAt.Valid {
		job.NextAttemptAt = &nextAttemptAt.Time
	}
	return job, nil
}

func (s *SQLite) List(ctx context.Context) ([]*core.Printer, error) {
	rows, err := s.db.QueryContext(ctx, listPrinters)
	if err != nil {
		return nil, fmt.Errorf("failed to list printers: %w", err)
	}
	defer rows.Close()

	var printers []*core.Printer
	for rows.Next() {
		p, err := scanPrinter(rows)
		if err != nil {
			return nil, err
		}
		printers = append(printers, p)
	}
	return printers, rows.Err()
}

func (s *SQLite) Get(ctx context.Context, id string) (*core.Printer, error) {
	p, err := scanPrinter(s.db.QueryRowContext(ctx, getPrinterByID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrPrinterNotFound
		}
		return nil, fmt.Errorf("failed to get printer: %w", err)
	}
	return p, nil
}

func (s *SQLite) Upsert(ctx context.Context, p *core.Printer) error {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return err
	}

	sources, err := json.Marshal(p.AllowedSources)
	if err != nil {
		return fmt.Errorf("failed to serialize allowed sources: %w", err)
	}

	now := s.now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, upsertPrinter,
		p.ID, p.Name, p.PublicHost, p.PublicPort, p.Protocol,
		p.Enabled, string(sources), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert printer: %w", err)
	}
	return nil
}

func (s *SQLite) Patch(ctx context.Context, id string, patch PrinterPatch) (*core.Printer, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Enabled != nil && !*patch.Enabled {
		defaultID, err := s.DefaultID(ctx)
		if err != nil {
			return nil, err
		}
		if defaultID == id {
			return nil, core.ErrDefaultPrinterDisableBlocked
		}
	}

	applyPatch(p, patch)
	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}

	sources, err := json.Marshal(p.AllowedSources)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize allowed sources: %w", err)
	}
	p.UpdatedAt = s.now().UTC()

	_, err = s.db.ExecContext(ctx, updatePrinter,
		p.Name, p.PublicHost, p.PublicPort, p.Protocol, p.Enabled,
		string(sources), p.UpdatedAt, p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update printer: %w", err)
	}
	return p, nil
}

func (s *SQLite) DefaultID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, getSetting, defaultPrinterKey).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read default printer setting: %w", err)
	}
	return id, nil
}

func (s *SQLite) SetDefault(ctx context.Context, id string) error {
	p, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !p.Enabled {
		return core.ErrDefaultPrinterDisabled
	}

	_, err = s.db.ExecContext(ctx, setSetting, defaultPrinterKey, id, id)
	if err != nil {
		return fmt.Errorf("failed to set default printer: %w", err)
	}
	return nil
}

func applyPatch(p *core.Printer, patch PrinterPatch) {
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.PublicHost != nil {
		p.PublicHost = *patch.PublicHost
	}
	if patch.PublicPort != nil {
		p.PublicPort = *patch.PublicPort
	}
	if patch.Protocol != nil {
		p.Protocol = *patch.Protocol
	}
	if patch.Enabled != nil {
		p.Enabled = *patch.Enabled
	}
	if patch.AllowedSources != nil {
		p.AllowedSources = *patch.AllowedSources
	}
}

func scanPrinter(row rowScanner) (*core.Printer, error) {
	p := &core.Printer{}
	var sources string
	err := row.Scan(&p.ID, &p.Name, &p.PublicHost, &p.PublicPort, &p.Protocol,
		&p.Enabled, &sources, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if sources != "" {
		if err := json.Unmarshal([]byte(sources), &p.AllowedSources); err != nil {
			return nil, fmt.Errorf("failed to parse allowed sources: %w", err)
		}
	}
	return p, nil
}
