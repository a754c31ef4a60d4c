package retrieval_test

import (
	"context"
	"testing"

	"github.com/siherrmann/grapher/graphops"
	"github.com/siherrmann/grapher/internal/testutil"
	"github.com/siherrmann/grapher/model"
	"github.com/siherrmann/grapher/retrieval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUser = "user-1"

func setup(t *testing.T) (*retrieval.ContextRetriever, *graphops.GraphOps) {
	t.Helper()
	store := testutil.NewFakeStore(8)
	_, err := store.CreateUser(context.Background(), testUser)
	require.NoError(t, err)
	ops := graphops.New(store, store, testutil.NewFakeEmbedder(8))
	return retrieval.NewContextRetriever(ops), ops
}

func TestGetRelevantGraphContextRespectsMaxHops(t *testing.T) {
	retriever, ops := setup(t)
	ctx := context.Background()

	_, err := ops.AddNodes(ctx, []model.ExtractedNode{
		{Name: "A"}, {Name: "B"}, {Name: "C"}, {Name: "D"},
	}, testUser)
	require.NoError(t, err)
	_, err = ops.AddRelationships(ctx, []model.ExtractedRelationship{
		{Source: "A", Target: "B", Relation: "RELATES_TO"},
		{Source: "B", Target: "C", Relation: "RELATES_TO"},
		{Source: "C", Target: "D", Relation: "RELATES_TO"},
	}, testUser)
	require.NoError(t, err)

	ctxText, err := retriever.GetRelevantGraphContext(ctx, []string{"A"}, testUser, 1)
	require.NoError(t, err)
	assert.Contains(t, ctxText, "A -[RELATES_TO]-> B")
	assert.NotContains(t, ctxText, "B -[RELATES_TO]-> C")

	ctxText2, err := retriever.GetRelevantGraphContext(ctx, []string{"A"}, testUser, 2)
	require.NoError(t, err)
	assert.Contains(t, ctxText2, "B -[RELATES_TO]-> C")
}

func TestGetRelevantGraphContextSkipsUnknownSeeds(t *testing.T) {
	retriever, ops := setup(t)
	ctx := context.Background()

	_, err := ops.AddNodes(ctx, []model.ExtractedNode{{Name: "A"}}, testUser)
	require.NoError(t, err)

	ctxText, err := retriever.GetRelevantGraphContext(ctx, []string{"A", "Nonexistent"}, testUser, 1)
	require.NoError(t, err)
	assert.Contains(t, ctxText, "## A")
	assert.NotContains(t, ctxText, "Nonexistent")
}

func TestGetRichContextSeedsFromSimilarity(t *testing.T) {
	retriever, ops := setup(t)
	ctx := context.Background()

	_, err := ops.AddNodes(ctx, []model.ExtractedNode{{Name: "AI"}, {Name: "ML"}}, testUser)
	require.NoError(t, err)
	_, err = ops.AddRelationships(ctx, []model.ExtractedRelationship{
		{Source: "AI", Target: "ML", Relation: "RELATES_TO"},
	}, testUser)
	require.NoError(t, err)

	ctxText, err := retriever.GetRichContext(ctx, "AI", testUser, model.QueryConfig{TopK: 5, MaxHops: 1})
	require.NoError(t, err)
	assert.Contains(t, ctxText, "Query: AI")
}

func TestGetRankedSubgraphsOrdersBySize(t *testing.T) {
	retriever, ops := setup(t)
	ctx := context.Background()

	_, err := ops.AddNodes(ctx, []model.ExtractedNode{
		{Name: "A"}, {Name: "B"}, {Name: "C"},
	}, testUser)
	require.NoError(t, err)
	_, err = ops.AddRelationships(ctx, []model.ExtractedRelationship{
		{Source: "A", Target: "B", Relation: "RELATES_TO"},
	}, testUser)
	require.NoError(t, err)

	subgraphs, err := retriever.GetRankedSubgraphs(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, subgraphs, 2)
	assert.Equal(t, 2, subgraphs[0].Size)
}

func TestFormatSubgraphsForLLMIsDeterministic(t *testing.T) {
	subgraphs := []model.Subgraph{
		{ID: "x", Nodes: []string{"A", "B"}, Size: 2, Edges: []model.Edge{{Source: "A", Target: "B", Relation: "RELATES_TO"}}},
	}
	out := retrieval.FormatSubgraphsForLLM(subgraphs)
	assert.Contains(t, out, "Subgraph 1 (2 nodes)")
	assert.Contains(t, out, "A --[RELATES_TO]--> B")
}
