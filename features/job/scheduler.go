package job

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Handler executes one claimed job. A handler that succeeds must have called
// Complete itself (stage workers complete with typed results before chaining
// the next stage); returning an error routes the job through Fail.
type Handler interface {
	Handle(ctx context.Context, j Job) error
}

type HandlerFunc func(ctx context.Context, j Job) error

func (f HandlerFunc) Handle(ctx context.Context, j Job) error { return f(ctx, j) }

type SchedulerConfig struct {
	PollInterval time.Duration
	ReapInterval time.Duration
	Lease        time.Duration
	BatchSize    int
	Concurrency  int
}

// Scheduler polls the job store for eligible work and dispatches it to
// registered per-type handlers on a bounded pool. The store is the source of
// truth; Wake only shortens the distance to the next poll.
type Scheduler struct {
	repo     Repository
	cfg      SchedulerConfig
	handlers map[Type]Handler
	wake     chan struct{}
	sem      chan struct{}
}

func NewScheduler(repo Repository, cfg SchedulerConfig) *Scheduler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.ReapInterval <= 0 {
		cfg.ReapInterval = 30 * time.Second
	}
	if cfg.Lease <= 0 {
		cfg.Lease = 5 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Scheduler{
		repo:     repo,
		cfg:      cfg,
		handlers: make(map[Type]Handler),
		wake:     make(chan struct{}, 1),
		sem:      make(chan struct{}, cfg.Concurrency),
	}
}

func (s *Scheduler) Register(t Type, h Handler) {
	s.handlers[t] = h
}

// Wake nudges the scheduler to claim immediately instead of waiting for the
// next poll tick. Safe to call from any goroutine; coalesces bursts.
func (s *Scheduler) Wake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) error {
	poll := time.NewTicker(s.cfg.PollInterval)
	defer poll.Stop()
	reap := time.NewTicker(s.cfg.ReapInterval)
	defer reap.Stop()

	slog.Info("scheduler started",
		"poll_interval", s.cfg.PollInterval,
		"lease", s.cfg.Lease,
		"concurrency", s.cfg.Concurrency)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-poll.C:
			s.claimAndDispatch(ctx)
		case <-s.wake:
			s.claimAndDispatch(ctx)
		case <-reap.C:
			n, err := s.repo.ReapExpiredLeases(ctx)
			if err != nil {
				slog.ErrorContext(ctx, "lease reap failed", "error", err)
			} else if n > 0 {
				slog.WarnContext(ctx, "reclaimed abandoned jobs", "count", n)
			}
		}
	}
}

func (s *Scheduler) claimAndDispatch(ctx context.Context) {
	jobs, err := s.repo.Claim(ctx, s.cfg.BatchSize, s.cfg.Lease)
	if err != nil {
		slog.ErrorContext(ctx, "claim failed", "error", err)
		return
	}
	for _, j := range jobs {
		select {
		case s.sem <- struct{}{}:
		case <-ctx.Done():
			return
		}
		go func(j Job) {
			defer func() { <-s.sem }()
			s.execute(ctx, j)
		}(j)
	}
	// A full batch suggests more eligible work is waiting.
	if len(jobs) == s.cfg.BatchSize {
		s.Wake()
	}
}

func (s *Scheduler) execute(ctx context.Context, j Job) {
	h, ok := s.handlers[j.Type]
	if !ok {
		s.fail(ctx, j, fmt.Errorf("no handler registered for job type %q", j.Type), true)
		return
	}

	slog.InfoContext(ctx, "job started", "job_id", j.ID, "type", j.Type, "document_id", j.DocumentID, "attempt", j.RetryCount+1)
	if err := h.Handle(ctx, j); err != nil {
		s.fail(ctx, j, err, IsPermanent(err))
		return
	}
	slog.InfoContext(ctx, "job finished", "job_id", j.ID, "type", j.Type)
}

func (s *Scheduler) fail(ctx context.Context, j Job, cause error, permanent bool) {
	outcome, err := s.repo.Fail(ctx, j.ID, cause.Error(), Details(cause), permanent)
	if err != nil {
		slog.ErrorContext(ctx, "recording job failure failed", "job_id", j.ID, "error", err, "cause", cause)
		return
	}
	slog.WarnContext(ctx, "job failed", "job_id", j.ID, "type", j.Type, "outcome", outcome, "error", cause)
}
