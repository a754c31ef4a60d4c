package graphstore

import (
	"context"

	"github.com/pgvector/pgvector-go"
	"github.com/siherrmann/grapher/helper"
	"github.com/siherrmann/grapher/model"
)

func pgvectorParam(vector []float32) pgvector.Vector {
	return pgvector.NewVector(vector)
}

// AddEmbedding upserts the embedding for (userID, nodeName). Fails with
// DimensionMismatch if vector's length does not equal the configured
// dimension, NodeAbsent if no node exists for the pair yet.
func (s *Store) AddEmbedding(ctx context.Context, nodeName string, vector []float32, userID string) error {
	if len(vector) != s.dimension {
		return helper.NewKindError("add embedding", helper.DimensionMismatch, nil)
	}

	updated, err := s.updateNodeEmbedding(ctx, userID, nodeName, vector)
	if err != nil {
		return helper.NewError("update node embedding", err)
	}
	if !updated {
		return helper.NewKindError("add embedding", helper.NodeAbsent, nil)
	}
	return nil
}

// SearchSimilar returns the top-k nodes owned by userID ordered by
// descending cosine similarity. k is clamped to [0, MaxSimilarityK].
func (s *Store) SearchSimilar(ctx context.Context, vector []float32, userID string, k int) ([]model.SimilarityHit, error) {
	if k <= 0 {
		return []model.SimilarityHit{}, nil
	}
	if k > model.MaxSimilarityK {
		k = model.MaxSimilarityK
	}
	if len(vector) != s.dimension {
		return nil, helper.NewKindError("search similar", helper.DimensionMismatch, nil)
	}

	rows, err := s.db.Instance.QueryContext(ctx,
		`SELECT * FROM search_nodes_by_similarity($1, $2, $3)`,
		userID, pgvectorParam(vector), k,
	)
	if err != nil {
		return nil, helper.NewError("search similar", err)
	}
	defer rows.Close()

	out := make([]model.SimilarityHit, 0, k)
	for rows.Next() {
		var hit model.SimilarityHit
		if err := rows.Scan(&hit.NodeName, &hit.Score); err != nil {
			return nil, helper.NewError("scan similarity hit", err)
		}
		out = append(out, hit)
	}
	return out, rows.Err()
}
