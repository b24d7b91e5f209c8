package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/nsqio/go-nsq"

	"docpipe/features/document"
	"docpipe/features/job"
	"docpipe/internal/blob"
	"docpipe/internal/config"
	"docpipe/internal/middleware"
	"docpipe/internal/pipeline"
	"docpipe/internal/retrieval"
	"docpipe/internal/text"
	"docpipe/internal/worker"
)

// ChunkStore is everything the app needs from the vector store; the Weaviate
// adapter satisfies all three roles.
type ChunkStore interface {
	worker.ChunkStore
	retrieval.VectorStore
	DeleteChunksByDocument(ctx context.Context, documentID string) error
}

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type App struct {
	Handler   http.Handler
	Scheduler *job.Scheduler
	Documents *document.Service
	Retrieval *retrieval.Service

	cfg      *config.Config
	consumer *nsq.Consumer
}

func New(
	cfg *config.Config,
	db *sql.DB,
	chunks ChunkStore,
	pub EventPublisher,
	embedder worker.Embedder,
	parser worker.Parser,
) (*App, error) {
	blobs, err := blob.NewDiskStore(cfg.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("blob store: %w", err)
	}

	// Feature: Job
	backoff := job.Backoff{Base: cfg.BackoffBase, Unit: cfg.BackoffUnit}
	jobRepo := job.NewPostgresRepo(db, backoff)
	orch := pipeline.NewOrchestrator(jobRepo, pub, pipeline.Config{MaxRetries: cfg.JobMaxRetries})

	// Feature: Document
	docRepo := document.NewPostgresRepo(db)
	docService := document.NewService(docRepo, blobs, orch, chunks, jobRepo)
	docHandler := document.NewHandler(docService, cfg.MaxUploadBytes())

	// Retrieval
	queryLogger, err := retrieval.NewFileQueryLogger(cfg.QueryLogPath)
	if err != nil {
		slog.Warn("failed to create query logger, falling back to stdout", "error", err)
		queryLogger = retrieval.NewQueryLogger(os.Stdout)
	}
	retrievalService := retrieval.NewService(chunks, embedder, nil, queryLogger, cfg.RetrievalTimeout, retrieval.Options{
		Threshold: cfg.RetrievalThreshold,
		MaxTokens: cfg.RetrievalMaxTokens,
		Limit:     cfg.RetrievalCandidates,
	})
	queryHandler := newQueryHandler(retrievalService)

	// Workers
	sched := job.NewScheduler(jobRepo, job.SchedulerConfig{
		PollInterval: cfg.SchedulerPollInterval,
		ReapInterval: cfg.SchedulerReapInterval,
		Lease:        cfg.JobLease,
		BatchSize:    cfg.JobBatchSize,
		Concurrency:  cfg.WorkerConcurrency,
	})
	chunker := text.NewChunker(cfg.ChunkMaxTokens, cfg.ChunkOverlap)
	sched.Register(job.TypeParse, worker.NewParseWorker(docRepo, blobs, parser, jobRepo, orch))
	sched.Register(job.TypeChunkEmbed, worker.NewCoordinator(docRepo, chunker, embedder, chunks, jobRepo, orch))

	// Middleware: CORS
	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Owner-ID")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	// Routes
	mux := http.NewServeMux()

	mux.Handle("POST /documents", middleware.CorrelationID(enableCORS(docHandler.Create)))
	mux.Handle("GET /documents", middleware.CorrelationID(enableCORS(docHandler.List)))
	mux.Handle("GET /documents/{id}", middleware.CorrelationID(enableCORS(docHandler.Get)))
	mux.Handle("DELETE /documents/{id}", middleware.CorrelationID(enableCORS(docHandler.Delete)))

	mux.Handle("POST /query", middleware.CorrelationID(enableCORS(queryHandler.Query)))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	return &App{
		Handler:   mux,
		Scheduler: sched,
		Documents: docService,
		Retrieval: retrievalService,
		cfg:       cfg,
	}, nil
}

// ConnectWakeConsumer subscribes the scheduler to wake nudges so fresh jobs
// are claimed without waiting out the poll interval.
func (a *App) ConnectWakeConsumer(lookupd string) error {
	nsqCfg := nsq.NewConfig()
	consumer, err := nsq.NewConsumer(config.TopicPipelineWake, config.ChannelScheduler, nsqCfg)
	if err != nil {
		return err
	}
	consumer.AddHandler(nsq.HandlerFunc(func(m *nsq.Message) error {
		a.Scheduler.Wake()
		return nil
	}))
	if err := consumer.ConnectToNSQLookupd(lookupd); err != nil {
		return err
	}
	a.consumer = consumer
	slog.Info("wake consumer connected", "topic", config.TopicPipelineWake)
	return nil
}

// Run starts the HTTP server and the scheduler and blocks until ctx is done.
func (a *App) Run(ctx context.Context) error {
	go func() {
		if err := a.Scheduler.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("scheduler stopped", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.cfg.ServerPort),
		Handler: a.Handler,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		if a.consumer != nil {
			a.consumer.Stop()
		}
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.cfg.ServerPort)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
