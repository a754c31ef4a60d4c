package rag_test

import (
	"context"
	"testing"

	"github.com/siherrmann/grapher/graphops"
	"github.com/siherrmann/grapher/internal/testutil"
	"github.com/siherrmann/grapher/model"
	"github.com/siherrmann/grapher/rag"
	"github.com/siherrmann/grapher/retrieval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUser = "user-1"

func TestQueryGroundsAnswerInContext(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewFakeStore(8)
	_, err := store.CreateUser(ctx, testUser)
	require.NoError(t, err)

	ops := graphops.New(store, store, testutil.NewFakeEmbedder(8))
	_, err = ops.AddNodes(ctx, []model.ExtractedNode{{Name: "AI"}, {Name: "ML"}}, testUser)
	require.NoError(t, err)
	_, err = ops.AddRelationships(ctx, []model.ExtractedRelationship{
		{Source: "AI", Target: "ML", Relation: "RELATES_TO"},
	}, testUser)
	require.NoError(t, err)

	r := rag.New(retrieval.NewContextRetriever(ops), testutil.NewFakeGenerator())
	answer, err := r.Query(ctx, "AI", testUser, model.DefaultQueryConfig())
	require.NoError(t, err)
	assert.Contains(t, answer, "AI")
}

func TestAskUsesSchemaConstrainedGeneration(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewFakeStore(8)
	_, err := store.CreateUser(ctx, testUser)
	require.NoError(t, err)

	ops := graphops.New(store, store, testutil.NewFakeEmbedder(8))
	_, err = ops.AddNodes(ctx, []model.ExtractedNode{{Name: "AI"}}, testUser)
	require.NoError(t, err)

	r := rag.New(retrieval.NewContextRetriever(ops), testutil.NewFakeGenerator())
	result, err := r.Ask(ctx, "AI", `{"type":"object"}`, testUser, model.DefaultQueryConfig())
	require.NoError(t, err)

	structured, ok := result.(map[string]any)
	require.True(t, ok, "Ask must return GenerateStructured's result, not a free-text string")
	assert.Equal(t, `{"type":"object"}`, structured["schema"])
	assert.Equal(t, "AI", structured["prompt"])
}
