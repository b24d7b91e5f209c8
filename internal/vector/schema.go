package vector

import (
	"context"

	"github.com/weaviate/weaviate/entities/models"
)

// SchemaClient is the slice of the Weaviate schema API EnsureSchema operates
// against.
type SchemaClient interface {
	ClassExists(ctx context.Context, className string) (bool, error)
	CreateClass(ctx context.Context, class *models.Class) error
	GetClass(ctx context.Context, className string) (*models.Class, error)
	AddProperty(ctx context.Context, className string, property *models.Property) error
}

// ClassDocumentChunk is the single class holding embedded chunks. Objects are
// written with deterministic ids, so re-ingesting a document overwrites
// instead of duplicating.
const ClassDocumentChunk = "DocumentChunk"

// EnsureSchema creates the chunk class on first boot, or adds any properties
// a newer build introduced to an existing class.
func EnsureSchema(ctx context.Context, client SchemaClient) error {
	exists, err := client.ClassExists(ctx, ClassDocumentChunk)
	if err != nil {
		return err
	}

	properties := []*models.Property{
		{
			Name:     "content",
			DataType: []string{"text"},
		},
		{
			Name:     "ownerId",
			DataType: []string{"string"}, // exact match, scoping filter
		},
		{
			Name:     "documentId",
			DataType: []string{"string"}, // UUID as string (exact match)
		},
		{
			Name:     "ordinal",
			DataType: []string{"int"},
		},
		{
			Name:     "tokenCount",
			DataType: []string{"int"},
		},
		{
			Name:     "chunkerName",
			DataType: []string{"string"},
		},
		{
			Name:     "chunkerVersion",
			DataType: []string{"string"},
		},
	}

	if !exists {
		class := &models.Class{
			Class:       ClassDocumentChunk,
			Description: "An embedded chunk of an ingested document",
			Vectorizer:  "none",
			Properties:  properties,
		}
		return client.CreateClass(ctx, class)
	}

	// Class exists, check for missing properties
	class, err := client.GetClass(ctx, ClassDocumentChunk)
	if err != nil {
		return err
	}

	existingProps := make(map[string]bool)
	for _, p := range class.Properties {
		existingProps[p.Name] = true
	}

	for _, p := range properties {
		if !existingProps[p.Name] {
			if err := client.AddProperty(ctx, ClassDocumentChunk, p); err != nil {
				return err
			}
		}
	}

	return nil
}
