package job

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

type Repository interface {
	Enqueue(ctx context.Context, j *Job, delay time.Duration) error
	Claim(ctx context.Context, limit int, lease time.Duration) ([]Job, error)
	Complete(ctx context.Context, id string, result json.RawMessage) (bool, error)
	Fail(ctx context.Context, id string, msg string, details json.RawMessage, permanent bool) (Outcome, error)
	ReapExpiredLeases(ctx context.Context) (int, error)
	Get(ctx context.Context, id string) (*Job, error)
	ListByDocument(ctx context.Context, documentID string) ([]Job, error)
	RecordTransition(ctx context.Context, fromJobID, toJobID string) error
}

type PostgresRepo struct {
	db      *sql.DB
	backoff Backoff
}

func NewPostgresRepo(db *sql.DB, backoff Backoff) *PostgresRepo {
	return &PostgresRepo{db: db, backoff: backoff}
}

const jobColumns = `id, document_id, type, status, priority, payload, result, error, error_details, retry_count, max_retries, scheduled_at, lease_expires_at, parent_job_id, created_at, updated_at`

// Enqueue inserts a pending job scheduled at now+delay. The partial unique
// index on (document_id, type) for non-terminal rows turns a concurrent
// duplicate into ErrStageActive.
func (r *PostgresRepo) Enqueue(ctx context.Context, j *Job, delay time.Duration) error {
	if j.Payload == nil {
		j.Payload = json.RawMessage(`{}`)
	}
	query := `INSERT INTO jobs (document_id, type, priority, payload, max_retries, scheduled_at, parent_job_id)
		VALUES ($1, $2, $3, $4, $5, NOW() + $6 * INTERVAL '1 second', $7)
		RETURNING id, status, retry_count, scheduled_at, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		j.DocumentID, j.Type, j.Priority, []byte(j.Payload), j.MaxRetries, delay.Seconds(), j.ParentJobID,
	).Scan(&j.ID, &j.Status, &j.RetryCount, &j.ScheduledAt, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrStageActive
		}
		return err
	}
	return nil
}

// Claim atomically moves up to limit eligible jobs to running and returns them.
// SKIP LOCKED keeps concurrent claimers from ever receiving the same row.
func (r *PostgresRepo) Claim(ctx context.Context, limit int, lease time.Duration) ([]Job, error) {
	query := `UPDATE jobs SET status = 'running', lease_expires_at = NOW() + $2 * INTERVAL '1 second', updated_at = NOW()
		WHERE id IN (
			SELECT id FROM jobs
			WHERE status IN ('pending', 'retrying') AND scheduled_at <= NOW()
			ORDER BY priority DESC, created_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + jobColumns
	rows, err := r.db.QueryContext(ctx, query, limit, lease.Seconds())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

// Complete transitions a running job to completed. Returns false when the job
// was not running, so late or duplicate completion signals are no-ops.
func (r *PostgresRepo) Complete(ctx context.Context, id string, result json.RawMessage) (bool, error) {
	query := `UPDATE jobs SET status = 'completed', result = $2, lease_expires_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'running'`
	res, err := r.db.ExecContext(ctx, query, id, []byte(result))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Fail decides retry vs terminal failure inside one transaction. Terminal
// failure propagates to the owning document: status failed, last error kept.
func (r *PostgresRepo) Fail(ctx context.Context, id string, msg string, details json.RawMessage, permanent bool) (Outcome, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback() //nolint:errcheck

	var (
		status     Status
		retryCount int
		maxRetries int
		documentID string
	)
	row := tx.QueryRowContext(ctx,
		`SELECT status, retry_count, max_retries, document_id FROM jobs WHERE id = $1 FOR UPDATE`, id)
	if err := row.Scan(&status, &retryCount, &maxRetries, &documentID); err != nil {
		return "", err
	}
	if status != StatusRunning {
		return "", fmt.Errorf("job %s is %s, not running", id, status)
	}

	if !permanent && retryCount < maxRetries {
		delay := r.backoff.Delay(retryCount)
		_, err = tx.ExecContext(ctx,
			`UPDATE jobs SET status = 'retrying', retry_count = retry_count + 1, error = $2, error_details = $3,
				scheduled_at = NOW() + $4 * INTERVAL '1 second', lease_expires_at = NULL, updated_at = NOW()
			WHERE id = $1`,
			id, msg, []byte(details), delay.Seconds())
		if err != nil {
			return "", err
		}
		if err := tx.Commit(); err != nil {
			return "", err
		}
		return OutcomeRetried, nil
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE jobs SET status = 'failed', error = $2, error_details = $3, lease_expires_at = NULL, updated_at = NOW()
		WHERE id = $1`,
		id, msg, []byte(details))
	if err != nil {
		return "", err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE documents SET status = 'failed', last_error = $2, updated_at = NOW() WHERE id = $1`,
		documentID, msg)
	if err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return OutcomeFailed, nil
}

// ReapExpiredLeases returns abandoned running jobs to the pending pool.
func (r *PostgresRepo) ReapExpiredLeases(ctx context.Context) (int, error) {
	query := `UPDATE jobs SET status = 'pending', lease_expires_at = NULL, updated_at = NOW()
		WHERE status = 'running' AND lease_expires_at < NOW()`
	res, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`
	return scanJob(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepo) ListByDocument(ctx context.Context, documentID string) ([]Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE document_id = $1 ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

func (r *PostgresRepo) RecordTransition(ctx context.Context, fromJobID, toJobID string) error {
	query := `INSERT INTO job_transitions (from_job_id, to_job_id) VALUES ($1, $2)`
	_, err := r.db.ExecContext(ctx, query, fromJobID, toJobID)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*Job, error) {
	j := &Job{}
	var (
		payload, result, details []byte
		lease                    sql.NullTime
		parent                   sql.NullString
	)
	err := row.Scan(&j.ID, &j.DocumentID, &j.Type, &j.Status, &j.Priority, &payload, &result,
		&j.Error, &details, &j.RetryCount, &j.MaxRetries, &j.ScheduledAt, &lease, &parent,
		&j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	j.Payload = json.RawMessage(payload)
	if result != nil {
		j.Result = json.RawMessage(result)
	}
	if details != nil {
		j.ErrorDetails = json.RawMessage(details)
	}
	if lease.Valid {
		t := lease.Time
		j.LeaseExpiresAt = &t
	}
	if parent.Valid {
		s := parent.String
		j.ParentJobID = &s
	}
	return j, nil
}
