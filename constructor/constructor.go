// Package constructor implements the ingestion pipeline: turning raw
// UnstructuredData into a persisted, schema-guided set of nodes and
// relationships within a single user's subgraph.
package constructor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/siherrmann/grapher/extraction"
	"github.com/siherrmann/grapher/graphops"
	"github.com/siherrmann/grapher/helper"
	"github.com/siherrmann/grapher/model"
	"github.com/siherrmann/grapher/retrieval"
	"github.com/siherrmann/grapher/schema"
)

// defaultLockCapacity is the floor the per-user ingestion lock map holds
// before its LRU policy starts reclaiming idle users' slots.
const defaultLockCapacity = 10_000

// defaultLockTimeout bounds how long a call waits to acquire another
// ingestion already in flight for the same user before failing IngestBusy.
const defaultLockTimeout = 60 * time.Second

// defaultRelationshipHops is how far GetRelevantGraphContext expands during
// relationship extraction, giving the extractor the existing neighborhood
// of any node it just pulled out of new text.
const defaultRelationshipHops = 2

// Constructor runs the ingest pipeline: preprocess, extract, resolve
// against the existing graph, and merge.
type Constructor struct {
	ops       *graphops.GraphOps
	retriever *retrieval.ContextRetriever
	registry  schema.Registry
	extractor extraction.Extractor
	locks     *userLocks
	lockWait  time.Duration
}

// New builds a Constructor. lockTimeout, when zero, defaults to 60s.
func New(ops *graphops.GraphOps, retriever *retrieval.ContextRetriever, registry schema.Registry, extractor extraction.Extractor, lockTimeout time.Duration) *Constructor {
	if lockTimeout <= 0 {
		lockTimeout = defaultLockTimeout
	}
	return &Constructor{
		ops:       ops,
		retriever: retriever,
		registry:  registry,
		extractor: extractor,
		locks:     newUserLocks(defaultLockCapacity),
		lockWait:  lockTimeout,
	}
}

// Ingest runs the full pipeline for one document against userID's graph.
// Re-ingesting identical content never increases node or edge counts beyond
// the first run, because every write underneath is a merge.
func (c *Constructor) Ingest(ctx context.Context, data model.UnstructuredData, userID string) ([]model.Node, []model.Edge, error) {
	text, err := preprocess(data)
	if err != nil {
		return nil, nil, err
	}

	schemas, err := c.registry.GetAllSchemas(ctx, userID)
	if err != nil {
		return nil, nil, helper.NewError("load schema context", err)
	}
	schemaContext := schema.SerializeContext(schemas)

	// The per-user lock covers extraction through merge only: preprocessing
	// and loading the (read-only, shared) schema context never touch this
	// user's subgraph, so two ingests for the same user can prepare
	// concurrently and only serialize once they start mutating it.
	lockCtx, cancel := context.WithTimeout(ctx, c.lockWait)
	defer cancel()
	release, err := c.locks.acquire(lockCtx, userID)
	if err != nil {
		return nil, nil, err
	}
	defer release()

	nodes, err := c.extractor.GetNodes(ctx, text, schemaContext)
	if err != nil {
		return nil, nil, helper.NewKindError("extract nodes", helper.ExtractFailed, err)
	}

	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = n.Name
	}
	graphContext, err := c.retriever.GetRelevantGraphContext(ctx, names, userID, defaultRelationshipHops)
	if err != nil {
		return nil, nil, helper.NewError("fetch graph context", err)
	}

	rels, err := c.extractor.GetRelationships(ctx, nodes, schemaContext, graphContext)
	if err != nil {
		return nil, nil, helper.NewKindError("extract relationships", helper.ExtractFailed, err)
	}
	rels = dropRelationshipsOutsideNodes(rels, nodes)

	update := model.GraphUpdate{Nodes: nodes, Relationships: rels}
	mergedNodes, mergedEdges, err := c.ops.UpdateGraph(ctx, update, userID)
	if err != nil {
		return mergedNodes, mergedEdges, helper.NewError("update graph", err)
	}
	return mergedNodes, mergedEdges, nil
}

// preprocess concatenates title, content, and "k: v" metadata lines joined
// by newlines, trims the result, and rejects an empty outcome.
func preprocess(data model.UnstructuredData) (string, error) {
	var lines []string
	if data.Title != "" {
		lines = append(lines, data.Title)
	}
	if data.Content != "" {
		lines = append(lines, data.Content)
	}
	keys := make([]string, 0, len(data.Metadata))
	for k := range data.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s: %s", k, data.Metadata[k]))
	}

	text := strings.TrimSpace(strings.Join(lines, "\n"))
	if text == "" {
		return "", helper.NewKindError("preprocess", helper.EmptyContent, nil)
	}
	return text, nil
}

// dropRelationshipsOutsideNodes enforces the extractor contract: a
// relationship may only reference names present in the node list just
// extracted. Anything else is dropped, not fatal.
func dropRelationshipsOutsideNodes(rels []model.ExtractedRelationship, nodes []model.ExtractedNode) []model.ExtractedRelationship {
	known := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		known[n.Name] = true
	}

	out := make([]model.ExtractedRelationship, 0, len(rels))
	for _, r := range rels {
		if known[r.Source] && known[r.Target] {
			out = append(out, r)
		}
	}
	return out
}
