// Package retrieval answers scoped semantic queries over stored chunks. Every
// path through here is owner-scoped twice: once in the store query and once
// per candidate before anything is returned.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"
)

type ScoredChunk struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Ordinal    int     `json:"ordinal"`
	Content    string  `json:"content"`
	Tokens     int     `json:"tokens"`
	Score      float32 `json:"score"`
}

// Candidate is a raw hit from the vector store before threshold, budget and
// authorization filtering.
type Candidate struct {
	ChunkID    string
	DocumentID string
	OwnerID    string
	Ordinal    int
	Content    string
	Tokens     int
	Vector     []float32
}

// Options tune a single retrieval. Zero values fall back to the service
// defaults; a negative Threshold explicitly disables threshold filtering.
type Options struct {
	Threshold float32
	MaxTokens int
	Limit     int
}

type VectorStore interface {
	SearchByOwner(ctx context.Context, ownerID string, vector []float32, limit int) ([]Candidate, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Authorizer decides whether an owner may read a document's chunks. The store
// query already filters by owner; this is the second, per-candidate check.
type Authorizer interface {
	Authorized(ctx context.Context, ownerID, documentID string) (bool, error)
}

// AllowOwnerMatch authorizes purely on the candidate's recorded owner.
type AllowOwnerMatch struct{}

func (AllowOwnerMatch) Authorized(ctx context.Context, ownerID, documentID string) (bool, error) {
	return true, nil
}

type Service struct {
	store    VectorStore
	embedder Embedder
	auth     Authorizer
	logger   *QueryLogger
	timeout  time.Duration
	defaults Options
}

func NewService(store VectorStore, embedder Embedder, auth Authorizer, logger *QueryLogger, timeout time.Duration, defaults Options) *Service {
	if auth == nil {
		auth = AllowOwnerMatch{}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if defaults.MaxTokens <= 0 {
		defaults.MaxTokens = 2048
	}
	if defaults.Limit <= 0 {
		defaults.Limit = 50
	}
	return &Service{store: store, embedder: embedder, auth: auth, logger: logger, timeout: timeout, defaults: defaults}
}

// Retrieve returns the highest-scoring chunks for the owner that clear the
// similarity threshold, accumulated in score order until the next chunk would
// exceed the token budget. Nothing clearing the threshold is an empty result,
// not an error.
func (s *Service) Retrieve(ctx context.Context, ownerID string, queryVector []float32, opts Options) ([]ScoredChunk, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("retrieval: owner id is required")
	}
	if len(queryVector) == 0 {
		return nil, fmt.Errorf("retrieval: query vector is empty")
	}
	opts = s.resolve(opts)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	candidates, err := s.store.SearchByOwner(ctx, ownerID, queryVector, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("retrieval: search: %w", err)
	}

	scored := make([]ScoredChunk, 0, len(candidates))
	for _, c := range candidates {
		if c.OwnerID != ownerID {
			// The store query should have excluded this; treat it as a bug,
			// not a result.
			slog.WarnContext(ctx, "dropping cross-owner candidate", "chunk_id", c.ChunkID, "owner_id", c.OwnerID)
			continue
		}
		ok, err := s.auth.Authorized(ctx, ownerID, c.DocumentID)
		if err != nil {
			return nil, fmt.Errorf("retrieval: authorize document %s: %w", c.DocumentID, err)
		}
		if !ok {
			continue
		}
		score := Cosine(queryVector, c.Vector)
		if score < opts.Threshold {
			continue
		}
		scored = append(scored, ScoredChunk{
			ChunkID:    c.ChunkID,
			DocumentID: c.DocumentID,
			Ordinal:    c.Ordinal,
			Content:    c.Content,
			Tokens:     c.Tokens,
			Score:      score,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	results := make([]ScoredChunk, 0, len(scored))
	budget := opts.MaxTokens
	for _, sc := range scored {
		// The budget cuts off at the first chunk that does not fit; lower-scored
		// chunks never leapfrog it.
		if sc.Tokens > budget {
			break
		}
		results = append(results, sc)
		budget -= sc.Tokens
	}
	return results, nil
}

// Query embeds the text and retrieves against the resulting vector.
func (s *Service) Query(ctx context.Context, ownerID, query string, opts Options) ([]ScoredChunk, error) {
	start := time.Now()
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("retrieval: embed query: %w", err)
	}
	results, err := s.Retrieve(ctx, ownerID, vec, opts)
	if err != nil {
		return nil, err
	}
	if s.logger != nil {
		s.logger.Log(QueryLogEntry{
			OwnerID:    ownerID,
			Query:      query,
			NumResults: len(results),
			Duration:   time.Since(start),
		})
	}
	return results, nil
}

func (s *Service) resolve(opts Options) Options {
	switch {
	case opts.Threshold < 0:
		opts.Threshold = 0
	case opts.Threshold == 0:
		opts.Threshold = s.defaults.Threshold
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = s.defaults.MaxTokens
	}
	if opts.Limit <= 0 {
		opts.Limit = s.defaults.Limit
	}
	return opts
}

// Cosine computes cosine similarity. Mismatched or zero-magnitude vectors
// score 0 rather than erroring, so one malformed chunk cannot sink a query.
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
