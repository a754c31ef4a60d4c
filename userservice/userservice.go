// Package userservice manages the User root entity lifecycle: creation
// (format validation plus seed-schema installation) and cascade deletion.
package userservice

import (
	"context"

	"github.com/siherrmann/grapher/graphstore"
	"github.com/siherrmann/grapher/helper"
	"github.com/siherrmann/grapher/model"
	"github.com/siherrmann/grapher/schema"
)

// Service manages User lifecycle on top of a GraphDatabase.
type Service struct {
	graph    graphstore.GraphDatabase
	registry schema.Registry
}

// New builds a Service.
func New(graph graphstore.GraphDatabase, registry schema.Registry) *Service {
	return &Service{graph: graph, registry: registry}
}

// CreateUser validates the id format, creates the user (a no-op merge if
// the user already exists), and ensures the seed schema set is installed.
// The returned bool reports whether the user was newly created.
func (s *Service) CreateUser(ctx context.Context, userID string) (bool, error) {
	if !model.ValidUserID(userID) {
		return false, helper.NewKindError("create user", helper.InvalidUserId, nil)
	}

	created, err := s.graph.CreateUser(ctx, userID)
	if err != nil {
		return false, helper.NewError("create user", err)
	}

	if err := s.registry.EnsureSeedSchemas(ctx, userID); err != nil {
		return created, helper.NewError("ensure seed schemas", err)
	}
	return created, nil
}

// DeleteUser cascades deletion of every node, edge, embedding, and schema
// owned by userID. An embedding lives in the same row as its node (the
// vector store and graph database share one nodes table here), so the
// node-before-user ordering required to avoid orphaned vectors falls out of
// DeleteUser's own edges-then-nodes-then-schemas-then-users transaction —
// there is no separate vector deletion step to sequence.
func (s *Service) DeleteUser(ctx context.Context, userID string) error {
	if !model.ValidUserID(userID) {
		return helper.NewKindError("delete user", helper.InvalidUserId, nil)
	}

	exists, err := s.graph.UserExists(ctx, userID)
	if err != nil {
		return helper.NewError("check user exists", err)
	}
	if !exists {
		return helper.NewKindError("delete user", helper.UserAbsent, nil)
	}

	if err := s.graph.DeleteUser(ctx, userID); err != nil {
		return helper.NewError("delete user", err)
	}
	return nil
}
