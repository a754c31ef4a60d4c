package model

// QueryConfig bounds a single retrieval call's similarity search and graph
// expansion. Defaults mirror the configuration surface in §6 of the
// service's external-interfaces contract.
type QueryConfig struct {
	TopK    int
	MaxHops int
}

// DefaultQueryConfig returns the documented defaults: top-5 similarity
// seeds expanded two hops.
func DefaultQueryConfig() QueryConfig {
	return QueryConfig{
		TopK:    5,
		MaxHops: 2,
	}
}

// MaxSimilarityK is the upper bound search_similar enforces on k.
const MaxSimilarityK = 200

// MaxNeighborhoodSize caps the nodes one graph-context expansion keeps,
// counted across all of its seeds together rather than per seed. Past the
// cap, nodes are kept by hop distance, then by name.
const MaxNeighborhoodSize = 512
