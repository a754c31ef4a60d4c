// Package schema manages the per-user registry of attribute/relationship
// vocabularies that steer extraction, and serializes them into the prompt
// context format extraction and retrieval consume.
package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/siherrmann/grapher/helper"
	"github.com/siherrmann/grapher/model"
	"golang.org/x/sync/singleflight"
)

// Registry stores and serves GraphSchema definitions for a user.
type Registry interface {
	GetAllSchemas(ctx context.Context, userID string) ([]model.GraphSchema, error)
	StoreSchema(ctx context.Context, userID string, s model.GraphSchema) (model.GraphSchema, error)
	EnsureSeedSchemas(ctx context.Context, userID string) error
}

// SeedSchemas mirrors the baseline vocabulary every new user starts with:
// psychological trait and interest tracking, broad enough to bootstrap
// extraction before the user's own data teaches the system anything more
// specific.
var SeedSchemas = []model.GraphSchema{
	{
		Name:        "Core Psychology",
		Description: "Basic psychological traits and interests schema",
		Attributes: []string{
			"CORE_PSYCHE",
			"STABLE_INTEREST",
			"TEMPORAL_INTEREST",
			"ACTIVE_INTEREST",
		},
		Relationships: []string{
			"PART_OF",
			"RELATES_TO",
			"LEADS_TO",
			"INFLUENCED_BY",
			"SIMILAR_TO",
		},
		IsSeed: true,
	},
}

// PostgresRegistry is the reference Registry, backed by the schemas table.
type PostgresRegistry struct {
	db    *helper.Database
	group singleflight.Group
}

// NewPostgresRegistry builds a Registry over an already-initialized database.
func NewPostgresRegistry(db *helper.Database) *PostgresRegistry {
	return &PostgresRegistry{db: db}
}

func (r *PostgresRegistry) GetAllSchemas(ctx context.Context, userID string) ([]model.GraphSchema, error) {
	rows, err := r.db.Instance.QueryContext(ctx, `SELECT * FROM select_schemas_for_user($1)`, userID)
	if err != nil {
		return nil, helper.NewError("select schemas for user", err)
	}
	defer rows.Close()

	var out []model.GraphSchema
	for rows.Next() {
		s, err := scanSchema(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *PostgresRegistry) StoreSchema(ctx context.Context, userID string, s model.GraphSchema) (model.GraphSchema, error) {
	row := r.db.Instance.QueryRowContext(ctx,
		`SELECT * FROM insert_schema($1, $2, $3, $4, $5, $6)`,
		userID, s.Name, s.Description, pq.Array(s.Attributes), pq.Array(s.Relationships), s.IsSeed,
	)
	stored, err := scanSchema(row)
	if err != nil {
		return model.GraphSchema{}, helper.NewError("store schema", err)
	}
	return stored, nil
}

// EnsureSeedSchemas stores every SeedSchemas entry the user doesn't already
// have, matched by name. It is idempotent: calling it repeatedly for the
// same user never duplicates a schema. Concurrent calls for the same
// userID (e.g. two near-simultaneous user-creation requests) are
// collapsed into a single installation via singleflight, so the second
// caller observes the first's result instead of racing it to insert the
// same seed rows twice.
func (r *PostgresRegistry) EnsureSeedSchemas(ctx context.Context, userID string) error {
	_, err, _ := r.group.Do(userID, func() (any, error) {
		return nil, r.ensureSeedSchemas(ctx, userID)
	})
	return err
}

func (r *PostgresRegistry) ensureSeedSchemas(ctx context.Context, userID string) error {
	existing, err := r.GetAllSchemas(ctx, userID)
	if err != nil {
		return err
	}
	have := make(map[string]bool, len(existing))
	for _, s := range existing {
		have[s.Name] = true
	}

	for _, seed := range SeedSchemas {
		if have[seed.Name] {
			continue
		}
		if _, err := r.StoreSchema(ctx, userID, seed); err != nil {
			return err
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchema(row rowScanner) (model.GraphSchema, error) {
	var (
		s    model.GraphSchema
		id   uuid.UUID
		attr pq.StringArray
		rel  pq.StringArray
	)
	if err := row.Scan(&id, &s.UserID, &s.Name, &s.Description, &attr, &rel, &s.IsSeed, &s.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return model.GraphSchema{}, err
		}
		return model.GraphSchema{}, helper.NewError("scan schema", err)
	}
	s.ID = id
	s.Attributes = []string(attr)
	s.Relationships = []string(rel)
	return s, nil
}

// SerializeContext renders schemas into the deterministic prompt format
// extraction and retrieval both expect:
//
//	## Schema: <name>
//	Description: <desc>
//
//	### Attributes
//	- <attr>
//	...
//
//	### Relationships
//	- <rel>
//	...
//
//	---
func SerializeContext(schemas []model.GraphSchema) string {
	var b strings.Builder
	for _, s := range schemas {
		fmt.Fprintf(&b, "## Schema: %s\n", s.Name)
		fmt.Fprintf(&b, "Description: %s\n\n", s.Description)

		b.WriteString("### Attributes\n")
		for _, a := range s.Attributes {
			fmt.Fprintf(&b, "- %s\n", a)
		}
		b.WriteString("\n### Relationships\n")
		for _, rel := range s.Relationships {
			fmt.Fprintf(&b, "- %s\n", rel)
		}
		b.WriteString("\n---\n")
	}
	return b.String()
}
