package graphstore

import (
	"context"
	"database/sql"

	"github.com/pgvector/pgvector-go"
	"github.com/siherrmann/grapher/helper"
	"github.com/siherrmann/grapher/model"
)

// CreateNodes merges each node on (user_id, name). The whole call is
// rejected with UserAbsent before any write if the user does not exist,
// per the GraphDatabase contract.
func (s *Store) CreateNodes(ctx context.Context, nodes []model.ExtractedNode, userID string) ([]model.Node, error) {
	exists, err := s.UserExists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, helper.NewKindError("create nodes", helper.UserAbsent, nil)
	}

	out := make([]model.Node, 0, len(nodes))
	for _, n := range nodes {
		props := n.Properties
		if props == nil {
			props = model.Properties{}
		}
		propsBytes, err := props.Marshal()
		if err != nil {
			return nil, helper.NewError("marshal properties", err)
		}

		row := s.db.Instance.QueryRowContext(ctx,
			`SELECT * FROM merge_node($1, $2, $3, $4, $5)`,
			userID, n.Name, n.Type, propsBytes, n.Perspective,
		)

		node, err := scanNode(row)
		if err != nil {
			return nil, helper.NewError("merge node", err)
		}
		out = append(out, *node)
	}
	return out, nil
}

// GetNode returns the node owned by userID named name, or nil if absent.
func (s *Store) GetNode(ctx context.Context, name, userID string) (*model.Node, error) {
	row := s.db.Instance.QueryRowContext(ctx, `SELECT * FROM select_node($1, $2)`, userID, name)
	node, err := scanNode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, helper.NewError("select node", err)
	}
	return node, nil
}

// GetAllNodes returns every node owned by userID, ordered by name.
func (s *Store) GetAllNodes(ctx context.Context, userID string) ([]model.Node, error) {
	rows, err := s.db.Instance.QueryContext(ctx, `SELECT * FROM select_all_nodes($1)`, userID)
	if err != nil {
		return nil, helper.NewError("select all nodes", err)
	}
	defer rows.Close()

	var out []model.Node
	for rows.Next() {
		node, err := scanNodeRows(rows)
		if err != nil {
			return nil, helper.NewError("scan node", err)
		}
		out = append(out, *node)
	}
	return out, rows.Err()
}

// CheckNodeExists reports whether a node named name (optionally matching
// nodeType) is owned by userID.
func (s *Store) CheckNodeExists(ctx context.Context, name, nodeType, userID string) (bool, error) {
	var exists bool
	err := s.db.Instance.QueryRowContext(ctx, `SELECT node_exists($1, $2, $3)`, userID, name, nodeType).Scan(&exists)
	if err != nil {
		return false, helper.NewError("check node exists", err)
	}
	return exists, nil
}

// updateNodeEmbedding is used by the vector store when the backends share a
// connection; it reports whether the node existed.
func (s *Store) updateNodeEmbedding(ctx context.Context, userID, name string, vec []float32) (bool, error) {
	v := pgvector.NewVector(vec)
	var updated bool
	err := s.db.Instance.QueryRowContext(ctx,
		`SELECT update_node_embedding($1, $2, $3)`, userID, name, v,
	).Scan(&updated)
	if err != nil {
		return false, err
	}
	return updated, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNode(row rowScanner) (*model.Node, error) {
	return scanNodeRows(row)
}

func scanNodeRows(row rowScanner) (*model.Node, error) {
	var (
		n        model.Node
		props    model.Properties
		embedVec *pgvector.Vector
	)
	err := row.Scan(
		&n.UserID, &n.Name, &n.Type, &props, &n.Perspective,
		&embedVec, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	n.Properties = props
	if embedVec != nil {
		n.Embedding = embedVec.Slice()
	}
	return &n, nil
}
