// Package graphstore implements the GraphDatabase and VectorStore
// capability sets against a single Postgres+pgvector backend.
package graphstore

import (
	"context"

	"github.com/siherrmann/grapher/model"
)

// GraphDatabase is typed node/edge CRUD plus user lifecycle, scoped by
// user_id at the query level (never by post-filtering a wider read).
type GraphDatabase interface {
	Initialize(ctx context.Context) error
	Close() error

	CreateUser(ctx context.Context, userID string) (created bool, err error)
	UserExists(ctx context.Context, userID string) (bool, error)
	DeleteUser(ctx context.Context, userID string) error

	CreateNodes(ctx context.Context, nodes []model.ExtractedNode, userID string) ([]model.Node, error)
	GetNode(ctx context.Context, name, userID string) (*model.Node, error)
	GetAllNodes(ctx context.Context, userID string) ([]model.Node, error)
	CheckNodeExists(ctx context.Context, name, nodeType, userID string) (bool, error)

	CreateRelationships(ctx context.Context, rels []model.ExtractedRelationship, userID string) ([]model.Edge, error)
	GetNodeRelationships(ctx context.Context, name, userID string) ([]model.DirectedEdge, error)
	GetAllRelationships(ctx context.Context, userID string) ([]model.Edge, error)

	CleanGraph(ctx context.Context) error
}

// VectorStore is a per-user embedding index with cosine kNN.
type VectorStore interface {
	Initialize(ctx context.Context) error
	Close() error

	AddEmbedding(ctx context.Context, nodeName string, vector []float32, userID string) error
	SearchSimilar(ctx context.Context, vector []float32, userID string, k int) ([]model.SimilarityHit, error)
	DropIndex(ctx context.Context) error
}
