// Package pipeline chains stage completions into the next stage's job. The
// validation gate here is what keeps a half-finished stage from ever feeding
// the one after it.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"docpipe/features/job"
	"docpipe/internal/config"
)

var (
	ErrNotCompleted     = errors.New("pipeline: prior job is not completed")
	ErrResultIncomplete = errors.New("pipeline: prior job result is missing required data")
)

type JobStore interface {
	Enqueue(ctx context.Context, j *job.Job, delay time.Duration) error
	Get(ctx context.Context, id string) (*job.Job, error)
	RecordTransition(ctx context.Context, fromJobID, toJobID string) error
}

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

// StageEvent is published to the pipeline.events topic on every transition,
// for external observers (dashboards, webhooks) outside this core.
type StageEvent struct {
	DocumentID string `json:"document_id"`
	JobID      string `json:"job_id"`
	Stage      string `json:"stage"`
	Event      string `json:"event"` // enqueued, completed, failed
	Error      string `json:"error,omitempty"`
}

type Config struct {
	Priority   int
	MaxRetries int
}

type Orchestrator struct {
	jobs JobStore
	pub  EventPublisher
	cfg  Config
}

func NewOrchestrator(jobs JobStore, pub EventPublisher, cfg Config) *Orchestrator {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &Orchestrator{jobs: jobs, pub: pub, cfg: cfg}
}

// Start enqueues the first stage for a document.
func (o *Orchestrator) Start(ctx context.Context, documentID string, payload job.ParsePayload) (string, error) {
	j := &job.Job{
		DocumentID: documentID,
		Type:       job.TypeParse,
		Priority:   o.cfg.Priority,
		Payload:    job.EncodePayload(payload),
		MaxRetries: o.cfg.MaxRetries,
	}
	if err := o.jobs.Enqueue(ctx, j, 0); err != nil {
		return "", err
	}
	o.publish(ctx, StageEvent{DocumentID: documentID, JobID: j.ID, Stage: string(job.TypeParse), Event: "enqueued"})
	o.nudge(ctx)
	return j.ID, nil
}

// Advance validates the completed prior stage and enqueues the next one.
// Validation failure creates no job: a parse that "completed" without text
// must never trigger chunking.
func (o *Orchestrator) Advance(ctx context.Context, completedJobID string, next job.Type, payload interface{}, requiredResultKeys []string) (string, error) {
	prior, err := o.jobs.Get(ctx, completedJobID)
	if err != nil {
		return "", fmt.Errorf("load prior job: %w", err)
	}
	if prior.Status != job.StatusCompleted {
		return "", fmt.Errorf("%w: job %s is %s", ErrNotCompleted, prior.ID, prior.Status)
	}
	if err := validateResult(prior.Result, requiredResultKeys); err != nil {
		return "", err
	}

	parentID := prior.ID
	nextJob := &job.Job{
		DocumentID:  prior.DocumentID,
		Type:        next,
		Priority:    prior.Priority,
		Payload:     job.EncodePayload(payload),
		MaxRetries:  o.cfg.MaxRetries,
		ParentJobID: &parentID,
	}
	if err := o.jobs.Enqueue(ctx, nextJob, 0); err != nil {
		return "", err
	}
	if err := o.jobs.RecordTransition(ctx, prior.ID, nextJob.ID); err != nil {
		slog.WarnContext(ctx, "failed to record stage transition", "from", prior.ID, "to", nextJob.ID, "error", err)
	}

	o.publish(ctx, StageEvent{DocumentID: prior.DocumentID, JobID: nextJob.ID, Stage: string(next), Event: "enqueued"})
	o.nudge(ctx)
	slog.InfoContext(ctx, "pipeline advanced", "document_id", prior.DocumentID, "from", prior.ID, "to", nextJob.ID, "stage", next)
	return nextJob.ID, nil
}

// NotifyTerminal publishes a completed/failed event for the document.
func (o *Orchestrator) NotifyTerminal(ctx context.Context, documentID, jobID, stage, event, errMsg string) {
	o.publish(ctx, StageEvent{DocumentID: documentID, JobID: jobID, Stage: stage, Event: event, Error: errMsg})
}

func validateResult(result json.RawMessage, required []string) error {
	if len(required) == 0 {
		return nil
	}
	if len(result) == 0 {
		return fmt.Errorf("%w: result is empty", ErrResultIncomplete)
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(result, &m); err != nil {
		return fmt.Errorf("%w: result is not an object", ErrResultIncomplete)
	}
	for _, key := range required {
		v, ok := m[key]
		if !ok || bytes.Equal(v, []byte("null")) || bytes.Equal(v, []byte(`""`)) {
			return fmt.Errorf("%w: missing %q", ErrResultIncomplete, key)
		}
	}
	return nil
}

func (o *Orchestrator) publish(ctx context.Context, ev StageEvent) {
	if o.pub == nil {
		return
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := o.pub.Publish(config.TopicPipelineEvents, body); err != nil {
		slog.WarnContext(ctx, "failed to publish stage event", "error", err, "document_id", ev.DocumentID)
	}
}

// nudge tells any listening scheduler there is fresh work, so claim latency
// is not bound to the poll interval.
func (o *Orchestrator) nudge(ctx context.Context) {
	if o.pub == nil {
		return
	}
	if err := o.pub.Publish(config.TopicPipelineWake, []byte(`{}`)); err != nil {
		slog.DebugContext(ctx, "failed to publish wake nudge", "error", err)
	}
}
