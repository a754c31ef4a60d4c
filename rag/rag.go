// Package rag composes graph-grounded context retrieval with a Generator
// into the user-facing question answering surface.
package rag

import (
	"context"

	"github.com/siherrmann/grapher/extraction"
	"github.com/siherrmann/grapher/helper"
	"github.com/siherrmann/grapher/model"
	"github.com/siherrmann/grapher/retrieval"
)

// Interface is the retrieval-augmented-generation surface: build context,
// answer a question with it, or search the vector index directly.
type Interface struct {
	retriever *retrieval.ContextRetriever
	generator extraction.Generator
}

// New builds a RAG interface over a retriever and generator.
func New(retriever *retrieval.ContextRetriever, generator extraction.Generator) *Interface {
	return &Interface{retriever: retriever, generator: generator}
}

// GetContext returns the formatted graph context a query would be answered
// with, without invoking the generator — used by callers that want to
// inspect or cache grounding context separately from generation.
func (i *Interface) GetContext(ctx context.Context, query, userID string, cfg model.QueryConfig) (string, error) {
	return i.retriever.GetRichContext(ctx, query, userID, cfg)
}

// Query answers a natural-language question, grounded in the user's graph
// neighborhood around the most similar nodes.
func (i *Interface) Query(ctx context.Context, query, userID string, cfg model.QueryConfig) (string, error) {
	contextText, err := i.GetContext(ctx, query, userID, cfg)
	if err != nil {
		return "", err
	}
	answer, err := i.generator.Generate(ctx, query, contextText)
	if err != nil {
		return "", helper.NewError("generate answer", err)
	}
	return answer, nil
}

// QueryVectorOnly answers a question using only the similarity-seeded
// node-name list, without expanding outward via graph traversal — a cheaper
// ablation variant that skips relationship context entirely.
func (i *Interface) QueryVectorOnly(ctx context.Context, query, userID string, cfg model.QueryConfig) (string, error) {
	sub, err := i.retriever.GetSubgraph(ctx, query, userID, model.QueryConfig{TopK: cfg.TopK, MaxHops: 0})
	if err != nil {
		return "", err
	}
	contextText := retrieval.FormatSubgraphsForLLM([]model.Subgraph{sub})
	answer, err := i.generator.Generate(ctx, query, contextText)
	if err != nil {
		return "", helper.NewError("generate vector-only answer", err)
	}
	return answer, nil
}

// Ask answers a question against a caller-supplied dynamic output schema,
// grounded in the user's graph neighborhood, via the generator's
// schema-constrained path rather than free text. An empty outputSchema
// still reaches GenerateStructured, which treats it as no constraint.
func (i *Interface) Ask(ctx context.Context, question, outputSchema, userID string, cfg model.QueryConfig) (any, error) {
	contextText, err := i.retriever.GetRichContext(ctx, question, userID, cfg)
	if err != nil {
		return nil, err
	}
	result, err := i.generator.GenerateStructured(ctx, outputSchema, question, contextText)
	if err != nil {
		return nil, helper.NewError("generate structured ask answer", err)
	}
	return result, nil
}
