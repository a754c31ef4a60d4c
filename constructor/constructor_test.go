package constructor_test

import (
	"context"
	"testing"
	"time"

	"github.com/siherrmann/grapher/constructor"
	"github.com/siherrmann/grapher/graphops"
	"github.com/siherrmann/grapher/helper"
	"github.com/siherrmann/grapher/internal/testutil"
	"github.com/siherrmann/grapher/model"
	"github.com/siherrmann/grapher/retrieval"
	"github.com/siherrmann/grapher/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUser = "user-1"

func newConstructor(t *testing.T, reg schema.Registry) (*constructor.Constructor, *testutil.FakeStore) {
	t.Helper()
	store := testutil.NewFakeStore(8)
	_, err := store.CreateUser(context.Background(), testUser)
	require.NoError(t, err)

	ops := graphops.New(store, store, testutil.NewFakeEmbedder(8))
	retriever := retrieval.NewContextRetriever(ops)
	c := constructor.New(ops, retriever, reg, testutil.NewFakeExtractor(), time.Second)
	return c, store
}

type emptyRegistry struct{}

func (emptyRegistry) GetAllSchemas(ctx context.Context, userID string) ([]model.GraphSchema, error) {
	return nil, nil
}
func (emptyRegistry) StoreSchema(ctx context.Context, userID string, s model.GraphSchema) (model.GraphSchema, error) {
	return s, nil
}
func (emptyRegistry) EnsureSeedSchemas(ctx context.Context, userID string) error { return nil }

func TestIngestIsIdempotent(t *testing.T) {
	c, store := newConstructor(t, emptyRegistry{})
	ctx := context.Background()

	_, _, err := c.Ingest(ctx, model.UnstructuredData{Content: "Quantum Computing relates to Cryptography."}, testUser)
	require.NoError(t, err)
	nodesAfterFirst, err := store.GetAllNodes(ctx, testUser)
	require.NoError(t, err)

	_, _, err = c.Ingest(ctx, model.UnstructuredData{Content: "Quantum Computing relates to Cryptography."}, testUser)
	require.NoError(t, err)
	nodesAfterSecond, err := store.GetAllNodes(ctx, testUser)
	require.NoError(t, err)

	assert.Equal(t, len(nodesAfterFirst), len(nodesAfterSecond))
}

func TestIngestRejectsEmptyContent(t *testing.T) {
	c, _ := newConstructor(t, emptyRegistry{})
	_, _, err := c.Ingest(context.Background(), model.UnstructuredData{Content: "   "}, testUser)
	require.Error(t, err)
	assert.True(t, helper.Is(err, helper.EmptyContent))
}

func TestIngestDifferentUsersAreIndependent(t *testing.T) {
	store := testutil.NewFakeStore(8)
	ctx := context.Background()
	_, err := store.CreateUser(ctx, "u1")
	require.NoError(t, err)
	_, err = store.CreateUser(ctx, "u2")
	require.NoError(t, err)

	ops := graphops.New(store, store, testutil.NewFakeEmbedder(8))
	retriever := retrieval.NewContextRetriever(ops)
	c := constructor.New(ops, retriever, emptyRegistry{}, testutil.NewFakeExtractor(), time.Second)

	_, _, err = c.Ingest(ctx, model.UnstructuredData{Content: "I love Dogs, especially Retrievers"}, "u1")
	require.NoError(t, err)
	_, _, err = c.Ingest(ctx, model.UnstructuredData{Content: "I love Cats, especially Siamese"}, "u2")
	require.NoError(t, err)

	u1Nodes, err := store.GetAllNodes(ctx, "u1")
	require.NoError(t, err)
	u2Nodes, err := store.GetAllNodes(ctx, "u2")
	require.NoError(t, err)

	for _, n := range u1Nodes {
		assert.NotEqual(t, "Cats", n.Name)
	}
	for _, n := range u2Nodes {
		assert.NotEqual(t, "Dogs", n.Name)
	}
}
