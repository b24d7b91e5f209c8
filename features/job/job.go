package job

import (
	"encoding/json"
	"errors"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRetrying  Status = "retrying"
)

// Terminal reports whether a job in this status is immutable.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type Type string

const (
	TypeParse      Type = "parse"
	TypeChunkEmbed Type = "chunk_embed"
)

type Job struct {
	ID             string          `json:"id"`
	DocumentID     string          `json:"document_id"`
	Type           Type            `json:"type"`
	Status         Status          `json:"status"`
	Priority       int             `json:"priority"`
	Payload        json.RawMessage `json:"payload"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          string          `json:"error,omitempty"`
	ErrorDetails   json.RawMessage `json:"error_details,omitempty"`
	RetryCount     int             `json:"retry_count"`
	MaxRetries     int             `json:"max_retries"`
	ScheduledAt    time.Time       `json:"scheduled_at"`
	LeaseExpiresAt *time.Time      `json:"lease_expires_at,omitempty"`
	ParentJobID    *string         `json:"parent_job_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Outcome reports which branch Fail took, for observability.
type Outcome string

const (
	OutcomeRetried Outcome = "retried"
	OutcomeFailed  Outcome = "failed"
)

// ErrStageActive means another non-terminal job already exists for the same
// (document, type) pair.
var ErrStageActive = errors.New("job: stage already active for document")

// permanentError marks a failure that must not consume the retry budget,
// e.g. a payload referencing a deleted document.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so that Fail skips retries and goes straight to terminal
// failure.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err (or anything it wraps) was marked Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// Details renders err as a machine-readable details blob for the failed row.
func Details(err error) json.RawMessage {
	if err == nil {
		return nil
	}
	b, mErr := json.Marshal(map[string]string{"message": err.Error()})
	if mErr != nil {
		return nil
	}
	return b
}
