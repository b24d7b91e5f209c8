package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"docpipe/features/job"
	"docpipe/internal/identity"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

var ErrDuplicate = errors.New("document: duplicate content for owner")

type Document struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	ContentHash string    `json:"content_hash"`
	ContentType string    `json:"content_type"`
	BlobPath    string    `json:"-"`
	Status      string    `json:"status"`
	LastError   string    `json:"last_error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Repository interface {
	Save(ctx context.Context, doc *Document) error
	Exists(ctx context.Context, id string) (bool, error)
	Get(ctx context.Context, id string) (*Document, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Document, error)
	UpdateStatus(ctx context.Context, id, status string) error
	SoftDelete(ctx context.Context, id string) error
}

// BlobStore holds raw uploaded bytes between ingest and the parse stage.
type BlobStore interface {
	Write(ctx context.Context, name string, data []byte) (string, error)
	Read(ctx context.Context, path string) ([]byte, error)
}

// PipelineStarter enqueues the first stage for a freshly accepted document.
type PipelineStarter interface {
	Start(ctx context.Context, documentID string, payload job.ParsePayload) (string, error)
}

type ChunkDeleter interface {
	DeleteChunksByDocument(ctx context.Context, documentID string) error
}

// JobLister exposes the per-document job history for status reads.
type JobLister interface {
	ListByDocument(ctx context.Context, documentID string) ([]job.Job, error)
}

type Service struct {
	repo     Repository
	blobs    BlobStore
	pipeline PipelineStarter
	chunks   ChunkDeleter
	jobs     JobLister
}

func NewService(repo Repository, blobs BlobStore, pipeline PipelineStarter, chunks ChunkDeleter, jobs JobLister) *Service {
	return &Service{repo: repo, blobs: blobs, pipeline: pipeline, chunks: chunks, jobs: jobs}
}

// Submit accepts raw bytes for an owner, computes the deterministic document
// id and enqueues the parse stage. Re-submitting identical bytes for the same
// owner resolves to the same id and returns ErrDuplicate with the existing
// document.
func (s *Service) Submit(ctx context.Context, ownerID string, raw []byte, contentType string) (*Document, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("document: empty body")
	}

	hash := identity.ContentHash(raw)
	id, err := identity.DocumentID(ownerID, hash)
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.Exists(ctx, id.String())
	if err != nil {
		return nil, err
	}
	if exists {
		existing, err := s.repo.Get(ctx, id.String())
		if err != nil {
			return nil, err
		}
		return existing, ErrDuplicate
	}

	blobPath, err := s.blobs.Write(ctx, id.String(), raw)
	if err != nil {
		return nil, fmt.Errorf("store blob: %w", err)
	}

	doc := &Document{
		ID:          id.String(),
		OwnerID:     ownerID,
		ContentHash: hash,
		ContentType: contentType,
		BlobPath:    blobPath,
		Status:      StatusPending,
	}
	if err := s.repo.Save(ctx, doc); err != nil {
		// A concurrent submit of the same bytes races the Exists check; the
		// primary key resolves it.
		if errors.Is(err, ErrDuplicate) {
			existing, getErr := s.repo.Get(ctx, id.String())
			if getErr != nil {
				return nil, getErr
			}
			return existing, ErrDuplicate
		}
		return nil, err
	}

	jobID, err := s.pipeline.Start(ctx, doc.ID, job.ParsePayload{
		DocumentID:  doc.ID,
		BlobPath:    blobPath,
		ContentType: contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("start pipeline: %w", err)
	}
	slog.InfoContext(ctx, "document submitted", "document_id", doc.ID, "owner_id", ownerID, "parse_job_id", jobID)

	return doc, nil
}

// PipelineStatus is the read-only view of a document's progress through the
// stages.
type PipelineStatus struct {
	Document *Document `json:"document"`
	Jobs     []job.Job `json:"jobs"`
}

func (s *Service) Status(ctx context.Context, id string) (*PipelineStatus, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	list, err := s.jobs.ListByDocument(ctx, id)
	if err != nil {
		slog.WarnContext(ctx, "failed to list jobs for document", "document_id", id, "error", err)
		list = []job.Job{}
	}
	return &PipelineStatus{Document: doc, Jobs: list}, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Document, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, ownerID string) ([]Document, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

// Delete soft-deactivates the document and removes its chunks from the vector
// store. Job history is retained for audit.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.chunks.DeleteChunksByDocument(ctx, id); err != nil {
		return err
	}
	return s.repo.SoftDelete(ctx, id)
}
