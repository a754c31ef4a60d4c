package graphstore_test

import (
	"context"
	"log"
	"testing"

	"github.com/siherrmann/grapher/graphstore"
	"github.com/siherrmann/grapher/helper"
	"github.com/siherrmann/grapher/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
)

const testDimension = 8

var dbPort string

func TestMain(m *testing.M) {
	var teardown func(ctx context.Context, opts ...testcontainers.TerminateOption) error
	var err error
	teardown, dbPort, err = helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("error starting postgres container: %v", err)
	}

	m.Run()

	if teardown != nil && teardown(context.Background()) != nil {
		log.Fatalf("error tearing down postgres container: %v", err)
	}
}

// newStore boots a fresh, schema-loaded Store against the shared container
// and wipes every table before handing it to the test, so tests never see
// rows left behind by a previous one sharing the same container.
func newStore(t *testing.T) *graphstore.Store {
	t.Helper()
	helper.SetTestDatabaseConfigEnvs(t, dbPort)
	dbConfig, err := helper.NewDatabaseConfiguration()
	require.NoError(t, err)
	db := helper.NewTestDatabase(dbConfig)

	store := graphstore.NewStore(db, testDimension)
	require.NoError(t, store.Initialize(context.Background()))
	require.NoError(t, store.CleanGraph(context.Background()))

	t.Cleanup(func() { _ = db.Close() })
	return store
}

func TestCreateNodesIsIdempotentAndCarriesProperties(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	created, err := store.CreateUser(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, created)

	nodes, err := store.CreateNodes(ctx, []model.ExtractedNode{
		{Name: "FocusFlow", Type: "PROJECT", Properties: model.Properties{"stage": "beta"}, Perspective: "alice"},
	}, "alice")
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, model.Properties{"stage": "beta"}, nodes[0].Properties)

	// Merging again on the same name updates rather than duplicates.
	again, err := store.CreateNodes(ctx, []model.ExtractedNode{
		{Name: "FocusFlow", Type: "PROJECT", Properties: model.Properties{"stage": "ga"}, Perspective: "alice"},
	}, "alice")
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, model.Properties{"stage": "ga"}, again[0].Properties)

	all, err := store.GetAllNodes(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, all, 1, "merge_node must not duplicate rows for a repeated name")
}

func TestCreateNodesRejectsAbsentUser(t *testing.T) {
	store := newStore(t)
	_, err := store.CreateNodes(context.Background(), []model.ExtractedNode{{Name: "X"}}, "ghost")
	require.Error(t, err)
	assert.True(t, helper.Is(err, helper.UserAbsent))
}

func TestCreateRelationshipsSkipsUnknownEndpoints(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	_, err := store.CreateUser(ctx, "bob")
	require.NoError(t, err)
	_, err = store.CreateNodes(ctx, []model.ExtractedNode{{Name: "Alice"}, {Name: "FocusFlow"}}, "bob")
	require.NoError(t, err)

	edges, err := store.CreateRelationships(ctx, []model.ExtractedRelationship{
		{Source: "Alice", Target: "FocusFlow", Relation: "WORKS_ON"},
		{Source: "Alice", Target: "Nonexistent", Relation: "WORKS_ON"},
	}, "bob")
	require.NoError(t, err)
	require.Len(t, edges, 1, "the relationship naming a node never created must be dropped, not errored")
	assert.Equal(t, "WORKS_ON", edges[0].Relation)
}

func TestDeleteUserCascades(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	_, err := store.CreateUser(ctx, "carol")
	require.NoError(t, err)
	nodes, err := store.CreateNodes(ctx, []model.ExtractedNode{{Name: "Quantum Computing"}}, "carol")
	require.NoError(t, err)
	require.NoError(t, store.AddEmbedding(ctx, nodes[0].Name, make([]float32, testDimension), "carol"))

	require.NoError(t, store.DeleteUser(ctx, "carol"))

	exists, err := store.UserExists(ctx, "carol")
	require.NoError(t, err)
	assert.False(t, exists)

	remaining, err := store.GetAllNodes(ctx, "carol")
	require.NoError(t, err)
	assert.Empty(t, remaining)

	hits, err := store.SearchSimilar(ctx, make([]float32, testDimension), "carol", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchSimilarOrdersByDescendingCosineSimilarity(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	_, err := store.CreateUser(ctx, "dave")
	require.NoError(t, err)
	_, err = store.CreateNodes(ctx, []model.ExtractedNode{{Name: "Close"}, {Name: "Far"}}, "dave")
	require.NoError(t, err)

	query := make([]float32, testDimension)
	query[0] = 1

	closeVec := make([]float32, testDimension)
	closeVec[0] = 0.9
	closeVec[1] = 0.1

	far := make([]float32, testDimension)
	far[len(far)-1] = 1

	require.NoError(t, store.AddEmbedding(ctx, "Close", closeVec, "dave"))
	require.NoError(t, store.AddEmbedding(ctx, "Far", far, "dave"))

	hits, err := store.SearchSimilar(ctx, query, "dave", 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "Close", hits[0].NodeName)
	assert.Equal(t, "Far", hits[1].NodeName)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestPerUserIsolation(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	_, err := store.CreateUser(ctx, "u1")
	require.NoError(t, err)
	_, err = store.CreateUser(ctx, "u2")
	require.NoError(t, err)

	_, err = store.CreateNodes(ctx, []model.ExtractedNode{{Name: "Dogs"}, {Name: "Retrievers"}}, "u1")
	require.NoError(t, err)
	_, err = store.CreateNodes(ctx, []model.ExtractedNode{{Name: "Cats"}}, "u2")
	require.NoError(t, err)

	u2Nodes, err := store.GetAllNodes(ctx, "u2")
	require.NoError(t, err)
	for _, n := range u2Nodes {
		assert.NotContains(t, n.Name, "Dog")
		assert.NotContains(t, n.Name, "Retriever")
	}

	exists, err := store.CheckNodeExists(ctx, "Dogs", "", "u2")
	require.NoError(t, err)
	assert.False(t, exists, "u2 must never see u1's nodes")
}
