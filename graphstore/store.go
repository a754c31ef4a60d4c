package graphstore

import (
	"context"
	"fmt"

	"github.com/siherrmann/grapher/helper"
	loadSql "github.com/siherrmann/grapher/sql"
)

// Store is the concrete Postgres+pgvector backend implementing both
// GraphDatabase and VectorStore over one shared connection pool — the
// connection-sharing optimization the vector store and graph database may
// use when they address the same backend.
type Store struct {
	db        *helper.Database
	dimension int
}

var (
	_ GraphDatabase = (*Store)(nil)
	_ VectorStore   = (*Store)(nil)
)

// NewStore wraps an already-open *helper.Database. Callers are expected to
// have connected (and retried) via helper.Open/helper.NewDatabase before
// constructing a Store; Initialize only installs the schema.
func NewStore(db *helper.Database, dimension int) *Store {
	return &Store{db: db, dimension: dimension}
}

// Initialize loads every SQL function group and ensures the nodes table's
// vector column matches the configured dimension, then ensures the
// similarity index exists. An existing index with the same dimension is
// treated as success; a mismatched dimension is ConflictingSchema.
func (s *Store) Initialize(ctx context.Context) error {
	if err := loadSql.Init(s.db.Instance); err != nil {
		return helper.NewKindError("initialize extensions", helper.ConnectFailed, err)
	}

	if err := loadSql.LoadAllSql(s.db.Instance, s.dimension, false); err != nil {
		return helper.NewKindError("load sql functions", helper.ConnectFailed, err)
	}

	existingDim, err := s.currentEmbeddingDimension(ctx)
	if err != nil {
		return helper.NewError("check embedding dimension", err)
	}
	if existingDim != 0 && existingDim != s.dimension {
		return helper.NewKindError(
			"verify vector dimension", helper.ConflictingSchema,
			fmt.Errorf("nodes.embedding is vector(%d), configured dimension is %d", existingDim, s.dimension),
		)
	}

	if err := s.ensureSimilarityIndex(ctx); err != nil {
		return helper.NewError("ensure similarity index", err)
	}

	s.db.Logger.Info("graph store initialized", "dimension", s.dimension)
	return nil
}

func (s *Store) currentEmbeddingDimension(ctx context.Context) (int, error) {
	var dim int
	err := s.db.Instance.QueryRowContext(ctx, `
		SELECT atttypmod
		FROM pg_attribute
		WHERE attrelid = 'nodes'::regclass AND attname = 'embedding'
	`).Scan(&dim)
	if err != nil {
		// nodes table or column not present yet: nothing to conflict with.
		return 0, nil
	}
	return dim, nil
}

// ensureSimilarityIndex creates an HNSW cosine index on nodes.embedding.
// Postgres reports a pre-existing index of the same name as a no-op
// (IF NOT EXISTS), which this treats as success per the idempotent
// "already exists with equivalent schema" contract.
func (s *Store) ensureSimilarityIndex(ctx context.Context) error {
	_, err := s.db.Instance.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_nodes_embedding
		ON nodes USING hnsw (embedding vector_cosine_ops)
	`)
	return err
}

// Close closes the shared connection pool. Safe to call once from
// whichever of GraphDatabase/VectorStore owns process shutdown.
func (s *Store) Close() error {
	return s.db.Close()
}

// DropIndex drops the similarity index. Tests only.
func (s *Store) DropIndex(ctx context.Context) error {
	_, err := s.db.Instance.ExecContext(ctx, `DROP INDEX IF EXISTS idx_nodes_embedding`)
	return err
}

// CleanGraph wipes every table. Tests only.
func (s *Store) CleanGraph(ctx context.Context) error {
	_, err := s.db.Instance.ExecContext(ctx, `SELECT clean_graph();`)
	return err
}
