// Package graphops composes the GraphDatabase and VectorStore backends into
// a single per-user graph operations facade: node/edge upsert with
// best-effort embedding, similarity search, and connected-component
// community detection.
package graphops

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/siherrmann/grapher/embedding"
	"github.com/siherrmann/grapher/graphstore"
	"github.com/siherrmann/grapher/helper"
	"github.com/siherrmann/grapher/model"
	"golang.org/x/sync/errgroup"
)

// embedFanOutLimit bounds how many AddEmbedding calls AddNodes issues to
// the vector store concurrently per batch.
const embedFanOutLimit = 8

// GraphOps is the storage-facing API every higher-level package (the
// ingestion pipeline, the retriever, user management) is built on. It never
// exposes the split between graph and vector backends to its callers.
type GraphOps struct {
	graph    graphstore.GraphDatabase
	vector   graphstore.VectorStore
	embedder embedding.Embedder
}

// New builds a GraphOps over the given backends. graph and vector may be the
// same concrete value (as graphstore.Store is); they are kept as separate
// interfaces because nothing here requires that to be true.
func New(graph graphstore.GraphDatabase, vector graphstore.VectorStore, embedder embedding.Embedder) *GraphOps {
	return &GraphOps{graph: graph, vector: vector, embedder: embedder}
}

// AddNodes merges each node into the graph, then embeds and stores a vector
// for every node whose name is new or lacks an embedding. A node whose
// embedding fails to compute or store is still returned in the merged set —
// embedding is a best-effort enrichment, not a precondition for the node's
// existence — but its error is collected and returned alongside the result.
func (g *GraphOps) AddNodes(ctx context.Context, nodes []model.ExtractedNode, userID string) ([]model.Node, error) {
	merged, err := g.graph.CreateNodes(ctx, nodes, userID)
	if err != nil {
		return nil, helper.NewError("merge nodes", err)
	}

	var toEmbed []model.Node
	for _, n := range merged {
		if len(n.Embedding) == 0 {
			toEmbed = append(toEmbed, n)
		}
	}
	if len(toEmbed) == 0 {
		return merged, nil
	}

	texts := make([]string, len(toEmbed))
	for i, n := range toEmbed {
		texts[i] = embeddingText(n)
	}
	vectors, err := g.embedder.Embed(ctx, texts)
	if err != nil {
		return merged, helper.NewError("embed nodes", err)
	}

	// AddEmbedding calls are independent per node, so they fan out
	// concurrently (bounded) rather than one at a time; a per-node
	// failure is collected, not fatal to the batch.
	var (
		mu        sync.Mutex
		embedErrs []error
	)
	stored := make([][]float32, len(toEmbed))
	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(embedFanOutLimit)
	for i, n := range toEmbed {
		i, n := i, n
		grp.Go(func() error {
			if err := g.vector.AddEmbedding(gctx, n.Name, vectors[i], userID); err != nil {
				mu.Lock()
				embedErrs = append(embedErrs, fmt.Errorf("%s: %w", n.Name, err))
				mu.Unlock()
				return nil
			}
			stored[i] = vectors[i]
			return nil
		})
	}
	_ = grp.Wait()

	for i, n := range toEmbed {
		if stored[i] == nil {
			continue
		}
		for j := range merged {
			if merged[j].Name == n.Name {
				merged[j].Embedding = stored[i]
			}
		}
	}
	if len(embedErrs) > 0 {
		return merged, helper.NewKindError("embed nodes", helper.EmbedFailed, joinErrors(embedErrs))
	}
	return merged, nil
}

func embeddingText(n model.Node) string {
	if n.Perspective != "" {
		return n.Name + ": " + n.Perspective
	}
	return n.Name
}

func joinErrors(errs []error) error {
	if len(errs) == 1 {
		return errs[0]
	}
	msg := fmt.Sprintf("%d embeddings failed: ", len(errs))
	for i, e := range errs {
		if i > 0 {
			msg += "; "
		}
		msg += e.Error()
	}
	return fmt.Errorf("%s", msg)
}

// AddRelationships merges relationships whose endpoints already exist;
// others are silently dropped by the backend.
func (g *GraphOps) AddRelationships(ctx context.Context, rels []model.ExtractedRelationship, userID string) ([]model.Edge, error) {
	edges, err := g.graph.CreateRelationships(ctx, rels, userID)
	if err != nil {
		return nil, helper.NewError("merge relationships", err)
	}
	return edges, nil
}

// UpdateGraph applies a full extraction result (nodes then relationships) in
// one call, the unit the ingestion pipeline commits per document. An
// EmbedFailed error from AddNodes does not stop the relationships from being
// merged; it is returned after they are.
func (g *GraphOps) UpdateGraph(ctx context.Context, update model.GraphUpdate, userID string) ([]model.Node, []model.Edge, error) {
	nodes, err := g.AddNodes(ctx, update.Nodes, userID)
	if err != nil && !helper.Is(err, helper.EmbedFailed) {
		return nodes, nil, err
	}
	edges, relErr := g.AddRelationships(ctx, update.Relationships, userID)
	if relErr != nil {
		return nodes, edges, relErr
	}
	return nodes, edges, err
}

func (g *GraphOps) GetNodeData(ctx context.Context, name, userID string) (*model.Node, error) {
	return g.graph.GetNode(ctx, name, userID)
}

func (g *GraphOps) GetNodeRelationships(ctx context.Context, name, userID string) ([]model.DirectedEdge, error) {
	return g.graph.GetNodeRelationships(ctx, name, userID)
}

func (g *GraphOps) GetAllNodes(ctx context.Context, userID string) ([]model.Node, error) {
	return g.graph.GetAllNodes(ctx, userID)
}

func (g *GraphOps) GetAllRelationships(ctx context.Context, userID string) ([]model.Edge, error) {
	return g.graph.GetAllRelationships(ctx, userID)
}

// TextSimilaritySearch embeds query and returns the top-k most similar
// nodes owned by userID.
func (g *GraphOps) TextSimilaritySearch(ctx context.Context, query, userID string, k int) (model.SimilaritySearchResult, error) {
	vectors, err := g.embedder.Embed(ctx, []string{query})
	if err != nil {
		return model.SimilaritySearchResult{}, helper.NewError("embed query", err)
	}
	hits, err := g.vector.SearchSimilar(ctx, vectors[0], userID, k)
	if err != nil {
		return model.SimilaritySearchResult{}, helper.NewError("search similar", err)
	}
	return model.SimilaritySearchResult{Query: query, Results: hits}, nil
}

// PerformSimilaritySearch runs a similarity search from an already-computed
// vector, skipping the embedding step (used when the caller already has one,
// e.g. the query-vector HTTP endpoint).
func (g *GraphOps) PerformSimilaritySearch(ctx context.Context, vector []float32, userID string, k int) ([]model.SimilarityHit, error) {
	return g.vector.SearchSimilar(ctx, vector, userID, k)
}

// communityHeadType and communityHeadRelations name the synthetic nodes and
// edges community detection writes back into the graph: one head node per
// component, HAS_SUBHEADER to its top-degree members, BELONGS_TO from every
// member back to the head.
const (
	communityHeadType   = "CommunityHead"
	hasSubheaderRel     = "HAS_SUBHEADER"
	belongsToRel        = "BELONGS_TO"
	communityHeadPrefix = "Community: "
)

// CommunityDetection partitions userID's graph into connected components via
// union-find over the edge list, selects up to three central nodes per
// component by degree, and writes back one community-head node per
// component (named deterministically from its lexicographically smallest
// member, so re-running detection merges into the same head instead of
// duplicating it) linked HAS_SUBHEADER to its central nodes and BELONGS_TO
// from every member. It returns one Subgraph per component ordered by
// descending size and, within ties, by the lexicographically smallest node
// name — so the result is deterministic across calls.
func (g *GraphOps) CommunityDetection(ctx context.Context, userID string) ([]model.Subgraph, error) {
	allNodes, err := g.graph.GetAllNodes(ctx, userID)
	if err != nil {
		return nil, helper.NewError("list nodes", err)
	}
	allEdges, err := g.graph.GetAllRelationships(ctx, userID)
	if err != nil {
		return nil, helper.NewError("list relationships", err)
	}

	// Community-head nodes from a prior run, and the edges touching them, are
	// housekeeping, not subject matter: excluding them keeps component
	// membership, component ids and degree ranking stable across repeated
	// detection runs.
	heads := map[string]bool{}
	nodes := make([]model.Node, 0, len(allNodes))
	for _, n := range allNodes {
		if n.Type == communityHeadType {
			heads[n.Name] = true
			continue
		}
		nodes = append(nodes, n)
	}
	edges := make([]model.Edge, 0, len(allEdges))
	for _, e := range allEdges {
		if !heads[e.Source] && !heads[e.Target] {
			edges = append(edges, e)
		}
	}

	uf := newUnionFind()
	for _, n := range nodes {
		uf.add(n.Name)
	}
	for _, e := range edges {
		uf.union(e.Source, e.Target)
	}

	groups := map[string][]string{}
	for _, n := range nodes {
		root := uf.find(n.Name)
		groups[root] = append(groups[root], n.Name)
	}

	edgesByComponent := map[string][]model.Edge{}
	for _, e := range edges {
		root := uf.find(e.Source)
		edgesByComponent[root] = append(edgesByComponent[root], e)
	}

	degree := map[string]int{}
	for _, e := range edges {
		degree[e.Source]++
		degree[e.Target]++
	}

	var subgraphs []model.Subgraph
	for root, members := range groups {
		sort.Strings(members)
		subgraphs = append(subgraphs, model.Subgraph{
			ID:           root,
			Nodes:        members,
			Edges:        edgesByComponent[root],
			Size:         len(members),
			CentralNodes: centralNodes(members, degree),
		})
	}

	sort.Slice(subgraphs, func(i, j int) bool {
		if subgraphs[i].Size != subgraphs[j].Size {
			return subgraphs[i].Size > subgraphs[j].Size
		}
		return subgraphs[i].Nodes[0] < subgraphs[j].Nodes[0]
	})

	if err := g.writeCommunityHeads(ctx, subgraphs, userID); err != nil {
		return subgraphs, err
	}
	return subgraphs, nil
}

// writeCommunityHeads persists the community-head/subheader structure for
// every multi-node component. Single-node components get no head: a
// community of one has nothing to summarize. The head's name is derived
// from the component's own id (its lexicographically smallest member), so
// re-running detection after new ingests merges into the same head instead
// of creating a duplicate.
func (g *GraphOps) writeCommunityHeads(ctx context.Context, subgraphs []model.Subgraph, userID string) error {
	for _, sg := range subgraphs {
		if sg.Size < 2 {
			continue
		}
		headName := communityHeadPrefix + sg.ID

		if _, err := g.AddNodes(ctx, []model.ExtractedNode{{Name: headName, Type: communityHeadType}}, userID); err != nil {
			return helper.NewError("write community head", err)
		}

		rels := make([]model.ExtractedRelationship, 0, len(sg.CentralNodes)+len(sg.Nodes))
		for _, central := range sg.CentralNodes {
			rels = append(rels, model.ExtractedRelationship{Source: headName, Target: central, Relation: hasSubheaderRel})
		}
		for _, member := range sg.Nodes {
			rels = append(rels, model.ExtractedRelationship{Source: member, Target: headName, Relation: belongsToRel})
		}
		if _, err := g.AddRelationships(ctx, rels, userID); err != nil {
			return helper.NewError("write community structure", err)
		}
	}
	return nil
}

// centralNodes returns the members with the highest degree, capped at 3,
// ties broken lexicographically.
func centralNodes(members []string, degree map[string]int) []string {
	ranked := make([]string, len(members))
	copy(ranked, members)
	sort.Slice(ranked, func(i, j int) bool {
		if degree[ranked[i]] != degree[ranked[j]] {
			return degree[ranked[i]] > degree[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})
	if len(ranked) > 3 {
		ranked = ranked[:3]
	}
	return ranked
}

type unionFind struct {
	parent map[string]string
}

func newUnionFind() *unionFind { return &unionFind{parent: map[string]string{}} }

func (u *unionFind) add(x string) {
	if _, ok := u.parent[x]; !ok {
		u.parent[x] = x
	}
}

func (u *unionFind) find(x string) string {
	u.add(x)
	if u.parent[x] != x {
		u.parent[x] = u.find(u.parent[x])
	}
	return u.parent[x]
}

func (u *unionFind) union(a, b string) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if ra < rb {
		u.parent[rb] = ra
	} else {
		u.parent[ra] = rb
	}
}
