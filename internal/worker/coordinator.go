package worker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"docpipe/features/document"
	"docpipe/features/job"
	"docpipe/internal/identity"
	"docpipe/internal/text"
)

// Coordinator runs the chunk_embed stage: split parsed text into deterministic
// chunks, embed the ones not yet stored, and mark the document completed.
// Chunk ids double as vector store object ids, so a retry after a partial
// failure skips everything the previous attempt already persisted.
type Coordinator struct {
	docs     Documents
	chunker  *text.Chunker
	embedder Embedder
	store    ChunkStore
	jobs     JobCompleter
	pipe     Advancer
}

func NewCoordinator(docs Documents, chunker *text.Chunker, embedder Embedder, store ChunkStore, jobs JobCompleter, pipe Advancer) *Coordinator {
	return &Coordinator{docs: docs, chunker: chunker, embedder: embedder, store: store, jobs: jobs, pipe: pipe}
}

func (c *Coordinator) Handle(ctx context.Context, j job.Job) error {
	payload, err := job.DecodeChunkEmbedPayload(j.Payload)
	if err != nil {
		return job.Permanent(err)
	}

	doc, err := c.docs.Get(ctx, payload.DocumentID)
	if errors.Is(err, sql.ErrNoRows) {
		return job.Permanent(fmt.Errorf("document %s no longer exists", payload.DocumentID))
	}
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}

	docID, err := uuid.Parse(doc.ID)
	if err != nil {
		return job.Permanent(fmt.Errorf("document id %q is not a uuid: %w", doc.ID, err))
	}

	segments := c.chunker.Split(payload.Text)
	if len(segments) == 0 {
		return job.Permanent(fmt.Errorf("no chunks produced for document %s", doc.ID))
	}

	existing, err := c.store.ExistingChunkIDs(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("list stored chunks: %w", err)
	}

	var (
		chunkIDs []string
		embedded int
		skipped  int
	)
	for _, seg := range segments {
		id, err := identity.ChunkID(docID, payload.ChunkerName, payload.ChunkerVersion, seg.Ordinal)
		if err != nil {
			return job.Permanent(fmt.Errorf("chunk id for ordinal %d: %w", seg.Ordinal, err))
		}
		chunkIDs = append(chunkIDs, id.String())

		if existing[id.String()] {
			skipped++
			continue
		}

		vector, err := c.embedder.Embed(ctx, seg.Text)
		if err != nil {
			return fmt.Errorf("embed chunk %d of document %s: %w", seg.Ordinal, doc.ID, err)
		}
		chunk := Chunk{
			ID:             id,
			DocumentID:     doc.ID,
			OwnerID:        doc.OwnerID,
			Ordinal:        seg.Ordinal,
			Content:        seg.Text,
			Vector:         vector,
			Tokens:         seg.Tokens,
			ChunkerName:    payload.ChunkerName,
			ChunkerVersion: payload.ChunkerVersion,
		}
		if err := c.store.StoreChunk(ctx, chunk); err != nil {
			return fmt.Errorf("store chunk %d of document %s: %w", seg.Ordinal, doc.ID, err)
		}
		embedded++
	}

	result := job.ChunkEmbedResult{ChunkIDs: chunkIDs, Embedded: embedded, Skipped: skipped}
	ok, err := c.jobs.Complete(ctx, j.ID, job.EncodePayload(result))
	if err != nil {
		return fmt.Errorf("complete chunk_embed job: %w", err)
	}
	if !ok {
		slog.WarnContext(ctx, "chunk_embed completion ignored, job no longer running", "job_id", j.ID)
		return nil
	}

	if err := c.docs.UpdateStatus(ctx, doc.ID, document.StatusCompleted); err != nil {
		slog.ErrorContext(ctx, "failed to mark document completed", "document_id", doc.ID, "error", err)
	}
	c.pipe.NotifyTerminal(ctx, doc.ID, j.ID, string(job.TypeChunkEmbed), "completed", "")
	slog.InfoContext(ctx, "document indexed", "document_id", doc.ID, "chunks", len(chunkIDs), "embedded", embedded, "skipped", skipped)
	return nil
}
