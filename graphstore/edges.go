package graphstore

import (
	"context"

	"github.com/siherrmann/grapher/helper"
	"github.com/siherrmann/grapher/model"
)

// CreateRelationships merges each relationship on its 4-tuple identity.
// Relationships whose source or target does not exist for userID are
// silently skipped, per the GraphDatabase contract — this is what keeps
// the graph referentially consistent when an Extractor hallucinates an
// endpoint that was never actually extracted as a node.
func (s *Store) CreateRelationships(ctx context.Context, rels []model.ExtractedRelationship, userID string) ([]model.Edge, error) {
	out := make([]model.Edge, 0, len(rels))
	for _, r := range rels {
		sourceOK, err := s.CheckNodeExists(ctx, r.Source, "", userID)
		if err != nil {
			return nil, err
		}
		targetOK, err := s.CheckNodeExists(ctx, r.Target, "", userID)
		if err != nil {
			return nil, err
		}
		if !sourceOK || !targetOK {
			continue
		}

		var e model.Edge
		row := s.db.Instance.QueryRowContext(ctx,
			`SELECT * FROM merge_edge($1, $2, $3, $4)`,
			userID, r.Source, r.Target, r.Relation,
		)
		if err := row.Scan(&e.UserID, &e.Source, &e.Target, &e.Relation, &e.CreatedAt); err != nil {
			return nil, helper.NewError("merge edge", err)
		}
		out = append(out, e)
	}
	return out, nil
}

// GetNodeRelationships returns every edge touching name, direction-tagged
// relative to name. At least one of Source/Target equals name on every row.
func (s *Store) GetNodeRelationships(ctx context.Context, name, userID string) ([]model.DirectedEdge, error) {
	rows, err := s.db.Instance.QueryContext(ctx, `SELECT * FROM select_node_relationships($1, $2)`, userID, name)
	if err != nil {
		return nil, helper.NewError("select node relationships", err)
	}
	defer rows.Close()

	var out []model.DirectedEdge
	for rows.Next() {
		var de model.DirectedEdge
		if err := rows.Scan(&de.UserID, &de.Source, &de.Target, &de.Relation, &de.CreatedAt, &de.Direction); err != nil {
			return nil, helper.NewError("scan directed edge", err)
		}
		out = append(out, de)
	}
	return out, rows.Err()
}

// GetAllRelationships returns every edge owned by userID.
func (s *Store) GetAllRelationships(ctx context.Context, userID string) ([]model.Edge, error) {
	rows, err := s.db.Instance.QueryContext(ctx, `SELECT * FROM select_all_edges($1)`, userID)
	if err != nil {
		return nil, helper.NewError("select all edges", err)
	}
	defer rows.Close()

	var out []model.Edge
	for rows.Next() {
		var e model.Edge
		if err := rows.Scan(&e.UserID, &e.Source, &e.Target, &e.Relation, &e.CreatedAt); err != nil {
			return nil, helper.NewError("scan edge", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
