package store

const (
	insertJob = `
		INSERT INTO print_jobs (id, created_at, created_by, source, order_id, printer_id, payload, status, attempts, idempotency_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
	`

	getJobByID = `
		SELECT id, created_at, created_by, source, order_id, printer_id, payload, status, attempts, last_error, dispatched_at, printed_at, next_attempt_at, idempotency_key
		FROM print_jobs WHERE id = ?
	`

	getJobByIdempotencyKey = `
		SELECT id, created_at, created_by, source, order_id, printer_id, payload, status, attempts, last_error, dispatched_at, printed_at, next_attempt_at, idempotency_key
		FROM print_jobs WHERE idempotency_key = ?
	`

	// Fresh jobs (no scheduled retry) come before elapsed retries; ties
	// break on retry time then creation time.
	selectClaimCandidate = `
		SELECT id, created_at, created_by, source, order_id, printer_id, payload, status, attempts, last_error, dispatched_at, printed_at, next_attempt_at, idempotency_key
		FROM print_jobs
		WHERE status = 'queued' AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
		ORDER BY next_attempt_at IS NOT NULL ASC, next_attempt_at ASC, created_at ASC
		LIMIT 1
	`

	// The status guard makes the claim conditional: of two concurrent
	// updates for the same row, exactly one reports an affected row.
	claimJob = `
		UPDATE print_jobs SET status = 'sending', dispatched_at = ?
		WHERE id = ? AND status = 'queued'
	`

	markJobPrinted = `
		UPDATE print_jobs SET status = 'printed', printed_at = ?, last_error = '', next_attempt_at = NULL
		WHERE id = ? AND status = 'sending'
	`

	scheduleJobRetry = `
		UPDATE print_jobs SET status = 'queued', attempts = ?, last_error = ?, next_attempt_at = ?
		WHERE id = ? AND status = 'sending'
	`

	requeueJob = `
		UPDATE print_jobs SET status = 'queued', dispatched_at = NULL
		WHERE id = ? AND status = 'sending'
	`

	failJobTerminal = `
		UPDATE print_jobs SET status = 'failed', attempts = ?, last_error = ?, next_attempt_at = NULL
		WHERE id = ? AND status = 'sending'
	`

	countFailedSince = `
		SELECT COUNT(*) FROM print_jobs WHERE status = 'failed' AND created_at >= ?
	`
)

const (
	upsertPrinter = `
		INSERT INTO printers (id, name, public_host, public_port, protocol, enabled, allowed_sources, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, public_host = excluded.public_host,
			public_port = excluded.public_port, protocol = excluded.protocol,
			enabled = excluded.enabled, allowed_sources = excluded.allowed_sources,
			updated_at = excluded.updated_at
	`

	getPrinterByID = `
		SELECT id, name, public_host, public_port, protocol, enabled, allowed_sources, created_at, updated_at
		FROM printers WHERE id = ?
	`

	listPrinters = `
		SELECT id, name, public_host, public_port, protocol, enabled, allowed_sources, created_at, updated_at
		FROM printers ORDER BY name ASC
	`

	updatePrinter = `
		UPDATE printers SET name = ?, public_host = ?, public_port = ?, protocol = ?, enabled = ?, allowed_sources = ?, updated_at = ?
		WHERE id = ?
	`
)

const (
	getSetting = `SELECT value FROM settings WHERE key = ?`

	setSetting = `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = ?, updated_at = CURRENT_TIMESTAMP
	`
)

const defaultPrinterKey = "default_printer"
