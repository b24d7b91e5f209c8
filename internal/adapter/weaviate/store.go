package weaviate

import (
	"context"
	"fmt"
	"strings"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"

	"docpipe/internal/retrieval"
	"docpipe/internal/vector"
	"docpipe/internal/worker"
)

type Store struct {
	client *weaviate.Client
}

func NewStore(client *weaviate.Client) *Store {
	return &Store{client: client}
}

// StoreChunk writes a chunk under its deterministic id. A retry that races a
// previous attempt hits the existing object and is treated as success.
func (s *Store) StoreChunk(ctx context.Context, chunk worker.Chunk) error {
	_, err := s.client.Data().Creator().
		WithClassName(vector.ClassDocumentChunk).
		WithID(chunk.ID.String()).
		WithProperties(map[string]interface{}{
			"content":        chunk.Content,
			"ownerId":        chunk.OwnerID,
			"documentId":     chunk.DocumentID,
			"ordinal":        chunk.Ordinal,
			"tokenCount":     chunk.Tokens,
			"chunkerName":    chunk.ChunkerName,
			"chunkerVersion": chunk.ChunkerVersion,
		}).
		WithVector(chunk.Vector).
		Do(ctx)
	if err != nil && strings.Contains(err.Error(), "already exists") {
		return nil
	}
	return err
}

// ExistingChunkIDs lists the object ids already stored for a document, so a
// partial retry can skip work the previous attempt finished.
func (s *Store) ExistingChunkIDs(ctx context.Context, documentID string) (map[string]bool, error) {
	where := filters.Where().
		WithOperator(filters.Equal).
		WithPath([]string{"documentId"}).
		WithValueString(documentID)

	res, err := s.client.GraphQL().Get().
		WithClassName(vector.ClassDocumentChunk).
		WithWhere(where).
		WithLimit(10000).
		WithFields(graphql.Field{Name: "_additional", Fields: []graphql.Field{{Name: "id"}}}).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors)
	}

	ids := make(map[string]bool)
	for _, props := range objects(res.Data) {
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			if id, ok := additional["id"].(string); ok {
				ids[id] = true
			}
		}
	}
	return ids, nil
}

// SearchByOwner runs a nearVector query restricted to one owner's chunks and
// returns raw candidates with their stored vectors.
func (s *Store) SearchByOwner(ctx context.Context, ownerID string, queryVector []float32, limit int) ([]retrieval.Candidate, error) {
	near := s.client.GraphQL().NearVectorArgBuilder().WithVector(queryVector)

	where := filters.Where().
		WithOperator(filters.Equal).
		WithPath([]string{"ownerId"}).
		WithValueString(ownerID)

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "ownerId"},
		{Name: "documentId"},
		{Name: "ordinal"},
		{Name: "tokenCount"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "id"}, {Name: "vector"}}},
	}

	res, err := s.client.GraphQL().Get().
		WithClassName(vector.ClassDocumentChunk).
		WithNearVector(near).
		WithWhere(where).
		WithLimit(limit).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors)
	}

	var candidates []retrieval.Candidate
	for _, props := range objects(res.Data) {
		c := retrieval.Candidate{}
		if content, ok := props["content"].(string); ok {
			c.Content = content
		}
		if owner, ok := props["ownerId"].(string); ok {
			c.OwnerID = owner
		}
		if docID, ok := props["documentId"].(string); ok {
			c.DocumentID = docID
		}
		if ordinal, ok := props["ordinal"].(float64); ok {
			c.Ordinal = int(ordinal)
		}
		if tokens, ok := props["tokenCount"].(float64); ok {
			c.Tokens = int(tokens)
		}
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			if id, ok := additional["id"].(string); ok {
				c.ChunkID = id
			}
			if raw, ok := additional["vector"].([]interface{}); ok {
				vec := make([]float32, 0, len(raw))
				for _, v := range raw {
					if f, ok := v.(float64); ok {
						vec = append(vec, float32(f))
					}
				}
				c.Vector = vec
			}
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// DeleteChunksByDocument removes every stored chunk of a document.
func (s *Store) DeleteChunksByDocument(ctx context.Context, documentID string) error {
	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(vector.ClassDocumentChunk).
		WithOutput("minimal").
		WithWhere(filters.Where().
			WithPath([]string{"documentId"}).
			WithOperator(filters.Equal).
			WithValueString(documentID)).
		Do(ctx)
	return err
}

// objects unwraps the {"Get": {"DocumentChunk": [...]}} GraphQL envelope.
func objects(data map[string]models.JSONObject) []map[string]interface{} {
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	raw, ok := get[vector.ClassDocumentChunk].([]interface{})
	if !ok {
		return nil
	}
	out := make([]map[string]interface{}, 0, len(raw))
	for _, r := range raw {
		if props, ok := r.(map[string]interface{}); ok {
			out = append(out, props)
		}
	}
	return out
}
