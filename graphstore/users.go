package graphstore

import (
	"context"
	"database/sql"

	"github.com/siherrmann/grapher/helper"
)

// CreateUser idempotently merges the user root. created reports whether
// this call is the one that inserted the row.
func (s *Store) CreateUser(ctx context.Context, userID string) (bool, error) {
	var (
		id       string
		created  sql.NullString
		inserted bool
	)
	row := s.db.Instance.QueryRowContext(ctx, `SELECT * FROM merge_user($1)`, userID)
	if err := row.Scan(&id, &created, &inserted); err != nil {
		return false, helper.NewError("merge user", err)
	}
	return inserted, nil
}

// UserExists reports whether userID has a root node.
func (s *Store) UserExists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := s.db.Instance.QueryRowContext(ctx, `SELECT user_exists($1)`, userID).Scan(&exists)
	if err != nil {
		return false, helper.NewError("check user exists", err)
	}
	return exists, nil
}

// DeleteUser removes every node, edge, schema and embedding owned by
// userID then the user root, inside delete_user's single transaction.
func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	_, err := s.db.Instance.ExecContext(ctx, `SELECT delete_user($1)`, userID)
	if err != nil {
		return helper.NewError("delete user", err)
	}
	return nil
}
