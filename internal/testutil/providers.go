package testutil

import (
	"context"
	"strings"

	"github.com/siherrmann/grapher/model"
)

// FakeEmbedder produces deterministic vectors derived from text length and
// byte sum, so equal texts always embed identically and distinct texts
// almost always differ — good enough to exercise similarity ranking in
// tests without pulling in a real model.
type FakeEmbedder struct {
	dimension int
}

// NewFakeEmbedder builds an embedder that returns vectors of the given width.
func NewFakeEmbedder(dimension int) *FakeEmbedder {
	return &FakeEmbedder{dimension: dimension}
}

func (e *FakeEmbedder) Dimension() int { return e.dimension }

func (e *FakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = deterministicVector(t, e.dimension)
	}
	return out, nil
}

func deterministicVector(text string, dimension int) []float32 {
	vec := make([]float32, dimension)
	if dimension == 0 {
		return vec
	}
	seed := 1.0
	for _, r := range text {
		seed = seed*31 + float64(r)
	}
	for i := range vec {
		v := seed*float64(i+1) + float64(len(text))
		vec[i] = float32(int64(v)%997) / 997.0
	}
	return vec
}

// FakeExtractor derives nodes from whitespace-separated capitalized words in
// the input text and links every pair of adjacent extracted nodes, so tests
// get a predictable, non-empty graph shape without an LLM round-trip.
type FakeExtractor struct{}

func NewFakeExtractor() *FakeExtractor { return &FakeExtractor{} }

func (e *FakeExtractor) GetNodes(ctx context.Context, text, schemaContext string) ([]model.ExtractedNode, error) {
	var nodes []model.ExtractedNode
	seen := map[string]bool{}
	for _, word := range strings.Fields(text) {
		word = strings.Trim(word, ".,;:!?()\"'")
		if word == "" || !isCapitalized(word) || seen[word] {
			continue
		}
		seen[word] = true
		nodes = append(nodes, model.ExtractedNode{Name: word, Type: "Entity"})
	}
	return nodes, nil
}

func (e *FakeExtractor) GetRelationships(ctx context.Context, nodes []model.ExtractedNode, schemaContext, graphContext string) ([]model.ExtractedRelationship, error) {
	var rels []model.ExtractedRelationship
	for i := 0; i+1 < len(nodes); i++ {
		rels = append(rels, model.ExtractedRelationship{
			Source:   nodes[i].Name,
			Target:   nodes[i+1].Name,
			Relation: "RELATES_TO",
		})
	}
	return rels, nil
}

func isCapitalized(s string) bool {
	r := []rune(s)
	return len(r) > 0 && r[0] >= 'A' && r[0] <= 'Z'
}

// FakeGenerator echoes its inputs back in a fixed, inspectable shape so test
// assertions can check that context/prompt actually reached the generator.
type FakeGenerator struct{}

func NewFakeGenerator() *FakeGenerator { return &FakeGenerator{} }

func (g *FakeGenerator) Generate(ctx context.Context, prompt, context string) (string, error) {
	return "answer to \"" + prompt + "\" using context: " + context, nil
}

func (g *FakeGenerator) GenerateStructured(ctx context.Context, schema, prompt, context string) (any, error) {
	return map[string]any{"schema": schema, "prompt": prompt, "context": context}, nil
}
