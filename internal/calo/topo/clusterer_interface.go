package topo

import "github.com/banshee-data/topocluster/internal/calo/hits"

// Clusterer abstracts the grouping implementation so the pipeline can
// be driven by alternative grouping strategies in tests.
type Clusterer interface {
	// Cluster partitions hits into filtered groups, numbered from 0.
	Cluster(hs []hits.Hit) []HitGroup

	// Params returns the grouping parameters.
	Params() Params
}

// Verify at compile time that *Grouper implements Clusterer.
var _ Clusterer = (*Grouper)(nil)
