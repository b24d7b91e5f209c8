package worker

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"docpipe/features/document"
	"docpipe/features/job"
)

type Chunk struct {
	ID             uuid.UUID
	DocumentID     string
	OwnerID        string
	Ordinal        int
	Content        string
	Vector         []float32
	Tokens         int
	ChunkerName    string
	ChunkerVersion string
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type ChunkStore interface {
	StoreChunk(ctx context.Context, chunk Chunk) error
	ExistingChunkIDs(ctx context.Context, documentID string) (map[string]bool, error)
}

type Documents interface {
	Get(ctx context.Context, id string) (*document.Document, error)
	UpdateStatus(ctx context.Context, id, status string) error
}

type BlobReader interface {
	Read(ctx context.Context, path string) ([]byte, error)
}

type Parser interface {
	Parse(ctx context.Context, content []byte, contentType string) (string, map[string]string, error)
}

type JobCompleter interface {
	Complete(ctx context.Context, id string, result json.RawMessage) (bool, error)
}

// Advancer chains a completed stage into the next one and reports terminal
// outcomes. Implemented by pipeline.Orchestrator.
type Advancer interface {
	Advance(ctx context.Context, completedJobID string, next job.Type, payload interface{}, requiredResultKeys []string) (string, error)
	NotifyTerminal(ctx context.Context, documentID, jobID, stage, event, errMsg string)
}
