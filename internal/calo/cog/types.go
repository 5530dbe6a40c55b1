package cog

import (
	"errors"
	"fmt"

	"github.com/golang/geo/r3"

	"github.com/banshee-data/topocluster/internal/calo/hits"
	"github.com/banshee-data/topocluster/internal/calo/topo"
)

// ErrWeightsMismatch is returned when a proto-cluster's weights do not
// line up with its hits.
var ErrWeightsMismatch = errors.New("proto-cluster weights do not match hits")

// ProtoCluster is a pre-grouped set of hits with a per-hit weight.
type ProtoCluster struct {
	Hits    []hits.Hit
	Weights []float64
}

// NewProtoCluster pairs hits with explicit weights.
func NewProtoCluster(hs []hits.Hit, weights []float64) (ProtoCluster, error) {
	pc := ProtoCluster{Hits: hs, Weights: weights}
	if err := pc.Validate(); err != nil {
		return ProtoCluster{}, err
	}
	return pc, nil
}

// Validate reports ErrWeightsMismatch when Weights and Hits differ in
// length. Literals built without NewProtoCluster should be checked before
// reconstruction.
func (pc ProtoCluster) Validate() error {
	if len(pc.Hits) != len(pc.Weights) {
		return fmt.Errorf("%w: %d hits, %d weights", ErrWeightsMismatch, len(pc.Hits), len(pc.Weights))
	}
	return nil
}

// FromGroup wraps a topological group with unit weights.
func FromGroup(g topo.HitGroup) ProtoCluster {
	w := make([]float64, len(g.Hits))
	for i := range w {
		w[i] = 1.0
	}
	return ProtoCluster{Hits: g.Hits, Weights: w}
}

// Weight returns the weight of hit i. Hits past the end of Weights count
// as 1, which only happens for proto-clusters that fail Validate.
func (pc ProtoCluster) Weight(i int) float64 {
	if i < len(pc.Weights) {
		return pc.Weights[i]
	}
	return 1.0
}

// Cluster is the reconstructed summary of one group of hits.
type Cluster struct {
	NumHits        int       `json:"num_hits"`
	Energy         float64   `json:"energy"`
	EnergyError    float64   `json:"energy_error"`
	Time           float64   `json:"time"`
	TimeError      float64   `json:"time_error"`
	Position       r3.Vector `json:"position"`
	PositionError  r3.Vector `json:"position_error"`
	IntrinsicTheta float64   `json:"intrinsic_theta"`
	IntrinsicPhi   float64   `json:"intrinsic_phi"`
	// [RMS radius, skewness]; empty for fewer than two hits.
	ShapeParameters []float64 `json:"shape_parameters,omitempty"`

	// Degenerate is set when the centroid weights summed to zero and the
	// position was left at the origin.
	Degenerate bool `json:"degenerate,omitempty"`
	// EtaBounded is set when the centroid was pulled back into the hit
	// pseudorapidity envelope.
	EtaBounded bool `json:"eta_bounded,omitempty"`
}

// Eta returns the pseudorapidity of the cluster position.
func (c Cluster) Eta() float64 { return hits.Eta(c.Position) }
