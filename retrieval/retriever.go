// Package retrieval fuses vector similarity search with bounded k-hop graph
// traversal to build the context a RAG answer is grounded on. The BFS is a
// queue-and-visited-set traversal keyed by (user, name)-scoped node identity.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/siherrmann/grapher/graphops"
	"github.com/siherrmann/grapher/helper"
	"github.com/siherrmann/grapher/model"
)

// ContextRetriever builds retrieval context for a user's graph, either from
// a known set of seed node names or from a similarity search over free text.
type ContextRetriever struct {
	ops *graphops.GraphOps
}

// NewContextRetriever builds a retriever over the given storage facade.
func NewContextRetriever(ops *graphops.GraphOps) *ContextRetriever {
	return &ContextRetriever{ops: ops}
}

// hopResult is one node reached during expansion, with its hop distance
// from the nearest seed.
type hopResult struct {
	Name     string
	Distance int
}

// GetRelevantGraphContext performs a bounded BFS from each seed node present
// in userID's graph up to maxHops, returning a deterministic text rendering:
// each edge renders as "A -[R]-> B". Seeds absent from the graph are
// skipped silently — this is the form the ingestion pipeline uses to give a
// relationship extractor the existing neighborhood of concepts just pulled
// out of new text, not a similarity search.
func (r *ContextRetriever) GetRelevantGraphContext(ctx context.Context, nodeNames []string, userID string, maxHops int) (string, error) {
	sub, err := r.expand(ctx, nodeNames, userID, maxHops)
	if err != nil {
		return "", err
	}
	return formatEdgeLines(sub), nil
}

// GetRichContext runs a similarity search for query, expands every hit
// outward up to maxHops via breadth-first search, and renders the result
// with a header naming the query.
func (r *ContextRetriever) GetRichContext(ctx context.Context, query, userID string, cfg model.QueryConfig) (string, error) {
	seeds, err := r.ops.TextSimilaritySearch(ctx, query, userID, cfg.TopK)
	if err != nil {
		return "", helper.NewError("similarity seed search", err)
	}

	seedNames := make([]string, 0, len(seeds.Results))
	for _, hit := range seeds.Results {
		seedNames = append(seedNames, hit.NodeName)
	}

	sub, err := r.expand(ctx, seedNames, userID, cfg.MaxHops)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n\n", query)
	b.WriteString(formatEdgeLines(sub))
	return b.String(), nil
}

// GetSubgraph is the structured (non-rendered) counterpart of
// GetRichContext, returning the raw node/edge set instead of its text form —
// used by RAGInterface.QueryVectorOnly, which only wants the seed names.
func (r *ContextRetriever) GetSubgraph(ctx context.Context, query, userID string, cfg model.QueryConfig) (model.Subgraph, error) {
	seeds, err := r.ops.TextSimilaritySearch(ctx, query, userID, cfg.TopK)
	if err != nil {
		return model.Subgraph{}, helper.NewError("similarity seed search", err)
	}
	seedNames := make([]string, 0, len(seeds.Results))
	for _, hit := range seeds.Results {
		seedNames = append(seedNames, hit.NodeName)
	}
	return r.expand(ctx, seedNames, userID, cfg.MaxHops)
}

func formatEdgeLines(sub model.Subgraph) string {
	var b strings.Builder
	for _, seed := range sub.Nodes {
		fmt.Fprintf(&b, "## %s\n", seed)
	}
	for _, e := range sub.Edges {
		fmt.Fprintf(&b, "%s -[%s]-> %s\n", e.Source, e.Relation, e.Target)
	}
	return b.String()
}

func (r *ContextRetriever) expand(ctx context.Context, seedNames []string, userID string, maxHops int) (model.Subgraph, error) {
	visited := map[string]int{}
	queue := make([]hopResult, 0, len(seedNames))
	for _, name := range seedNames {
		if _, ok := visited[name]; ok {
			continue
		}
		exists, err := r.ops.GetNodeData(ctx, name, userID)
		if err != nil {
			return model.Subgraph{}, helper.NewError("check seed node", err)
		}
		if exists == nil {
			continue
		}
		visited[name] = 0
		queue = append(queue, hopResult{Name: name, Distance: 0})
	}

	edgeSeen := map[string]model.Edge{}
	var order []hopResult

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		order = append(order, current)

		if current.Distance >= maxHops {
			continue
		}

		edges, err := r.ops.GetNodeRelationships(ctx, current.Name, userID)
		if err != nil {
			return model.Subgraph{}, helper.NewError("expand node relationships", err)
		}

		for _, de := range edges {
			key := de.Source + "|" + de.Target + "|" + de.Relation
			edgeSeen[key] = de.Edge

			var neighbor string
			if de.Direction == model.DirectionOutgoing {
				neighbor = de.Target
			} else {
				neighbor = de.Source
			}
			if _, ok := visited[neighbor]; ok {
				continue
			}
			visited[neighbor] = current.Distance + 1
			queue = append(queue, hopResult{Name: neighbor, Distance: current.Distance + 1})
		}
	}

	names := make([]string, 0, len(order))
	for _, o := range order {
		names = append(names, o.Name)
	}
	if len(names) > model.MaxNeighborhoodSize {
		sort.Slice(names, func(i, j int) bool {
			if visited[names[i]] != visited[names[j]] {
				return visited[names[i]] < visited[names[j]]
			}
			return names[i] < names[j]
		})
		names = names[:model.MaxNeighborhoodSize]
	}

	keep := make(map[string]bool, len(names))
	for _, n := range names {
		keep[n] = true
	}

	var edges []model.Edge
	for _, e := range edgeSeen {
		if keep[e.Source] && keep[e.Target] {
			edges = append(edges, e)
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})

	sort.Strings(names)
	return model.Subgraph{Nodes: names, Edges: edges, Size: len(names)}, nil
}

// GetRankedSubgraphs partitions a user's full graph into connected
// components via GraphOps.CommunityDetection and returns them ranked by
// descending size.
func (r *ContextRetriever) GetRankedSubgraphs(ctx context.Context, userID string) ([]model.Subgraph, error) {
	return r.ops.CommunityDetection(ctx, userID)
}

// FormatSubgraphsForLLM renders subgraphs into a deterministic prompt block:
// one paragraph per subgraph naming its member nodes and edges.
func FormatSubgraphsForLLM(subgraphs []model.Subgraph) string {
	var b strings.Builder
	for i, sg := range subgraphs {
		fmt.Fprintf(&b, "Subgraph %d (%d nodes):\n", i+1, sg.Size)
		fmt.Fprintf(&b, "Nodes: %s\n", strings.Join(sg.Nodes, ", "))
		if len(sg.Edges) > 0 {
			b.WriteString("Edges:\n")
			for _, e := range sg.Edges {
				fmt.Fprintf(&b, "- %s --[%s]--> %s\n", e.Source, e.Relation, e.Target)
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}
