// Package testutil provides in-memory fakes for the storage and model
// provider interfaces, used by package-level unit tests across the
// service so they can exercise real orchestration logic without a live
// Postgres instance or a real embedding/extraction provider.
package testutil

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/siherrmann/grapher/helper"
	"github.com/siherrmann/grapher/model"
)

// FakeStore is an in-memory GraphDatabase + VectorStore, enforcing the
// same user-scoping and merge semantics as the Postgres reference backend.
type FakeStore struct {
	mu        sync.Mutex
	dimension int
	users     map[string]bool
	nodes     map[string]map[string]*model.Node // userID -> name -> node
	edges     map[string]map[string]model.Edge  // userID -> "source|target|relation" -> edge
}

// NewFakeStore builds an empty store accepting embeddings of the given dimension.
func NewFakeStore(dimension int) *FakeStore {
	return &FakeStore{
		dimension: dimension,
		users:     map[string]bool{},
		nodes:     map[string]map[string]*model.Node{},
		edges:     map[string]map[string]model.Edge{},
	}
}

func (s *FakeStore) Initialize(ctx context.Context) error { return nil }
func (s *FakeStore) Close() error                          { return nil }

func (s *FakeStore) CreateUser(ctx context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users[userID] {
		return false, nil
	}
	s.users[userID] = true
	s.nodes[userID] = map[string]*model.Node{}
	s.edges[userID] = map[string]model.Edge{}
	return true, nil
}

func (s *FakeStore) UserExists(ctx context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[userID], nil
}

func (s *FakeStore) DeleteUser(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, userID)
	delete(s.nodes, userID)
	delete(s.edges, userID)
	return nil
}

func (s *FakeStore) CreateNodes(ctx context.Context, nodes []model.ExtractedNode, userID string) ([]model.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.users[userID] {
		return nil, helper.NewKindError("create nodes", helper.UserAbsent, nil)
	}

	out := make([]model.Node, 0, len(nodes))
	for _, n := range nodes {
		props := n.Properties
		if props == nil {
			props = model.Properties{}
		}

		existing, ok := s.nodes[userID][n.Name]
		if ok {
			existing.Type = n.Type
			existing.Perspective = n.Perspective
			existing.Properties = props
			out = append(out, *existing)
			continue
		}
		node := &model.Node{UserID: userID, Name: n.Name, Type: n.Type, Perspective: n.Perspective, Properties: props}
		s.nodes[userID][n.Name] = node
		out = append(out, *node)
	}
	return out, nil
}

func (s *FakeStore) GetNode(ctx context.Context, name, userID string) (*model.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[userID][name]
	if !ok {
		return nil, nil
	}
	cp := *n
	return &cp, nil
}

func (s *FakeStore) GetAllNodes(ctx context.Context, userID string) ([]model.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Node
	for _, n := range s.nodes[userID] {
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *FakeStore) CheckNodeExists(ctx context.Context, name, nodeType, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[userID][name]
	if !ok {
		return false, nil
	}
	if nodeType != "" && n.Type != nodeType {
		return false, nil
	}
	return true, nil
}

func edgeKey(r model.ExtractedRelationship) string { return r.Source + "|" + r.Target + "|" + r.Relation }

func (s *FakeStore) CreateRelationships(ctx context.Context, rels []model.ExtractedRelationship, userID string) ([]model.Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Edge, 0, len(rels))
	for _, r := range rels {
		if _, ok := s.nodes[userID][r.Source]; !ok {
			continue
		}
		if _, ok := s.nodes[userID][r.Target]; !ok {
			continue
		}
		e := model.Edge{UserID: userID, Source: r.Source, Target: r.Target, Relation: r.Relation}
		s.edges[userID][edgeKey(r)] = e
		out = append(out, e)
	}
	return out, nil
}

func (s *FakeStore) GetNodeRelationships(ctx context.Context, name, userID string) ([]model.DirectedEdge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.DirectedEdge
	for _, e := range s.edges[userID] {
		if e.Source == name {
			out = append(out, model.DirectedEdge{Edge: e, Direction: model.DirectionOutgoing})
		} else if e.Target == name {
			out = append(out, model.DirectedEdge{Edge: e, Direction: model.DirectionIncoming})
		}
	}
	return out, nil
}

func (s *FakeStore) GetAllRelationships(ctx context.Context, userID string) ([]model.Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Edge
	for _, e := range s.edges[userID] {
		out = append(out, e)
	}
	return out, nil
}

func (s *FakeStore) CleanGraph(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = map[string]bool{}
	s.nodes = map[string]map[string]*model.Node{}
	s.edges = map[string]map[string]model.Edge{}
	return nil
}

func (s *FakeStore) AddEmbedding(ctx context.Context, nodeName string, vector []float32, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(vector) != s.dimension {
		return helper.NewKindError("add embedding", helper.DimensionMismatch, nil)
	}
	n, ok := s.nodes[userID][nodeName]
	if !ok {
		return helper.NewKindError("add embedding", helper.NodeAbsent, nil)
	}
	n.Embedding = vector
	return nil
}

func (s *FakeStore) SearchSimilar(ctx context.Context, vector []float32, userID string, k int) ([]model.SimilarityHit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k <= 0 {
		return []model.SimilarityHit{}, nil
	}
	if k > model.MaxSimilarityK {
		k = model.MaxSimilarityK
	}

	var hits []model.SimilarityHit
	for _, n := range s.nodes[userID] {
		if len(n.Embedding) == 0 {
			continue
		}
		hits = append(hits, model.SimilarityHit{NodeName: n.Name, Score: cosineSimilarity(vector, n.Embedding)})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (s *FakeStore) DropIndex(ctx context.Context) error { return nil }

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
