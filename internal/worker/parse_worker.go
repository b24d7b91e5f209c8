package worker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"docpipe/features/document"
	"docpipe/features/job"
	"docpipe/internal/text"
)

// ParseWorker runs the parse stage: load the stored blob, extract text through
// the parser service, record the result and chain the chunk_embed stage.
type ParseWorker struct {
	docs   Documents
	blobs  BlobReader
	parser Parser
	jobs   JobCompleter
	pipe   Advancer
}

func NewParseWorker(docs Documents, blobs BlobReader, parser Parser, jobs JobCompleter, pipe Advancer) *ParseWorker {
	return &ParseWorker{docs: docs, blobs: blobs, parser: parser, jobs: jobs, pipe: pipe}
}

func (w *ParseWorker) Handle(ctx context.Context, j job.Job) error {
	payload, err := job.DecodeParsePayload(j.Payload)
	if err != nil {
		// Poison pill: a malformed payload never improves with retries.
		return job.Permanent(err)
	}

	doc, err := w.docs.Get(ctx, payload.DocumentID)
	if errors.Is(err, sql.ErrNoRows) {
		return job.Permanent(fmt.Errorf("document %s no longer exists", payload.DocumentID))
	}
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}

	if err := w.docs.UpdateStatus(ctx, doc.ID, document.StatusProcessing); err != nil {
		slog.WarnContext(ctx, "failed to mark document processing", "document_id", doc.ID, "error", err)
	}

	raw, err := w.blobs.Read(ctx, payload.BlobPath)
	if errors.Is(err, fs.ErrNotExist) {
		return job.Permanent(fmt.Errorf("blob %s is gone: %w", payload.BlobPath, err))
	}
	if err != nil {
		return fmt.Errorf("read blob: %w", err)
	}

	parsed, meta, err := w.parser.Parse(ctx, raw, payload.ContentType)
	if err != nil {
		return fmt.Errorf("parse document %s: %w", doc.ID, err)
	}
	if strings.TrimSpace(parsed) == "" {
		return job.Permanent(fmt.Errorf("parser produced no text for document %s", doc.ID))
	}

	result := job.ParseResult{Text: parsed}
	if len(meta) > 0 {
		result.Metadata = make(map[string]interface{}, len(meta))
		for k, v := range meta {
			result.Metadata[k] = v
		}
	}
	ok, err := w.jobs.Complete(ctx, j.ID, job.EncodePayload(result))
	if err != nil {
		return fmt.Errorf("complete parse job: %w", err)
	}
	if !ok {
		// Lease expired and the job was reclaimed; the new holder owns it now.
		slog.WarnContext(ctx, "parse completion ignored, job no longer running", "job_id", j.ID)
		return nil
	}

	next := job.ChunkEmbedPayload{
		DocumentID:     doc.ID,
		Text:           parsed,
		ChunkerName:    text.ChunkerName,
		ChunkerVersion: text.ChunkerVersion,
	}
	if _, err := w.pipe.Advance(ctx, j.ID, job.TypeChunkEmbed, next, job.RequiredResultKeys(job.TypeParse)); err != nil {
		if errors.Is(err, job.ErrStageActive) {
			slog.InfoContext(ctx, "chunk_embed stage already active", "document_id", doc.ID)
			return nil
		}
		// The parse result is durable; a failed chain is logged, not retried
		// against an already-completed job.
		slog.ErrorContext(ctx, "failed to chain chunk_embed stage", "document_id", doc.ID, "job_id", j.ID, "error", err)
		return nil
	}
	slog.InfoContext(ctx, "document parsed", "document_id", doc.ID, "job_id", j.ID, "text_len", len(parsed))
	return nil
}
