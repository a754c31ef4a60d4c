// Package extraction turns unstructured text into graph primitives: nodes,
// relationships, and free-text generation, against a schema context string
// that steers the underlying language model toward the caller's vocabulary.
package extraction

import (
	"context"

	"github.com/siherrmann/grapher/model"
)

// Extractor pulls structured graph primitives out of unstructured text.
// schemaContext is the serialized attribute/relationship vocabulary the
// caller wants the model to prefer; graphContext, for relationships, is the
// set of nodes already known to exist so the model can anchor edges to them.
type Extractor interface {
	GetNodes(ctx context.Context, text, schemaContext string) ([]model.ExtractedNode, error)
	GetRelationships(ctx context.Context, nodes []model.ExtractedNode, schemaContext, graphContext string) ([]model.ExtractedRelationship, error)
}

// Generator produces free-text and schema-constrained structured completions
// for the retrieval-augmented-generation surface.
type Generator interface {
	Generate(ctx context.Context, prompt, context string) (string, error)
	GenerateStructured(ctx context.Context, schema, prompt, context string) (any, error)
}
