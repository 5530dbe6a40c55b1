package cog

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/topocluster/internal/calo/hits"
	"github.com/banshee-data/topocluster/internal/calo/topo"
	"github.com/banshee-data/topocluster/internal/config"
	"github.com/banshee-data/topocluster/internal/monitoring"
)

// ErrInvalidParams wraps reconstruction parameter validation failures.
var ErrInvalidParams = errors.New("invalid cluster reconstruction parameters")

// Defaults for Params.
const (
	DefaultSamplingFraction = 1.0
	DefaultLogWeightBase    = 3.6
	DefaultEnergyWeight     = "log"
)

// Params configures the Reconstructor.
type Params struct {
	SamplingFraction float64
	LogWeightBase    float64
	EnergyWeight     string // none, linear or log (case-insensitive)
	// Constrain the centroid eta to the eta range of the contributing
	// hits. Avoids edge effects in the endcaps.
	EnableEtaBounds bool
}

// DefaultParams returns the production defaults.
func DefaultParams() Params {
	return Params{
		SamplingFraction: DefaultSamplingFraction,
		LogWeightBase:    DefaultLogWeightBase,
		EnergyWeight:     DefaultEnergyWeight,
	}
}

// ParamsFromConfig builds reconstruction Params from a loaded
// ClusteringConfig.
func ParamsFromConfig(cfg *config.ClusteringConfig) Params {
	return Params{
		SamplingFraction: cfg.GetSamplingFraction(),
		LogWeightBase:    cfg.GetLogWeightBase(),
		EnergyWeight:     cfg.GetEnergyWeight(),
		EnableEtaBounds:  cfg.GetEnableEtaBounds(),
	}
}

// Reconstructor builds Clusters. It holds no per-event state and is safe
// for concurrent use.
type Reconstructor struct {
	params Params
	method WeightMethod
	weight WeightFunc
}

// NewReconstructor validates p and resolves the weighting method.
func NewReconstructor(p Params) (*Reconstructor, error) {
	if !(p.SamplingFraction > 0) {
		return nil, fmt.Errorf("%w: samplingFraction must be positive, got %g", ErrInvalidParams, p.SamplingFraction)
	}
	m, err := ParseWeightMethod(p.EnergyWeight)
	if err != nil {
		return nil, err
	}

	monitoring.Diagf("Cluster reconstruction: weighting=%s logWeightBase=%.3f samplingFraction=%.4f etaBounds=%t",
		m, p.LogWeightBase, p.SamplingFraction, p.EnableEtaBounds)

	return &Reconstructor{params: p, method: m, weight: m.Func()}, nil
}

// Params returns the reconstruction parameters.
func (r *Reconstructor) Params() Params {
	return r.params
}

// Method returns the resolved weighting method.
func (r *Reconstructor) Method() WeightMethod {
	return r.method
}

// ReconstructGroup reconstructs a topological group with unit weights.
func (r *Reconstructor) ReconstructGroup(g topo.HitGroup) Cluster {
	return r.Reconstruct(FromGroup(g))
}

// ReconstructAll reconstructs each proto-cluster in order.
func (r *Reconstructor) ReconstructAll(pcs []ProtoCluster) []Cluster {
	if len(pcs) == 0 {
		return nil
	}
	out := make([]Cluster, len(pcs))
	for i, pc := range pcs {
		cl := r.Reconstruct(pc)
		monitoring.Tracef("%d hits: %.6f GeV, (%.3f, %.3f, %.3f)",
			cl.NumHits, cl.Energy, cl.Position.X, cl.Position.Y, cl.Position.Z)
		out[i] = cl
	}
	return out
}

// Reconstruct builds one Cluster from a proto-cluster. A proto-cluster
// without hits yields a zero Cluster.
func (r *Reconstructor) Reconstruct(pc ProtoCluster) Cluster {
	n := len(pc.Hits)
	cl := Cluster{NumHits: n}
	if n == 0 {
		return cl
	}

	// total energy and the eta envelope of the contributing hits
	energies := make([]float64, n)
	etas := make([]float64, n)
	for i, h := range pc.Hits {
		energies[i] = h.Energy * pc.Weight(i)
		etas[i] = h.Eta()
	}
	totalE := floats.Sum(energies)

	cl.Energy = totalE / r.params.SamplingFraction
	cl.EnergyError = 0
	cl.Time = pc.Hits[0].Time
	cl.TimeError = pc.Hits[0].TimeError

	// centre of gravity
	weights := make([]float64, n)
	for i, e := range energies {
		weights[i] = r.weight(e, totalE, r.params.LogWeightBase, 0)
	}
	tw := floats.Sum(weights)
	if tw == 0 {
		monitoring.Opsf("zero total weights encountered, you may want to adjust your weighting parameter.")
		cl.Degenerate = true
	} else {
		var v r3.Vector
		for i, h := range pc.Hits {
			v = v.Add(h.Position.Mul(weights[i] / tw))
		}
		cl.Position = v
	}
	cl.PositionError = r3.Vector{}

	if r.params.EnableEtaBounds && !cl.Degenerate {
		cl.Position, cl.EtaBounded = boundEta(cl.Position, floats.Min(etas), floats.Max(etas))
	}

	// The position is the best direction estimate for a pure centroid.
	cl.IntrinsicTheta = hits.AnglePolar(cl.Position)
	cl.IntrinsicPhi = hits.AngleAzimuthal(cl.Position)

	if n > 1 {
		var sum float64
		for _, h := range pc.Hits {
			sum += cl.Position.Sub(h.Position).Norm2()
		}
		radius := math.Sqrt(sum / float64(n-1))
		cl.ShapeParameters = []float64{radius, 0} // skewness not yet calculated
	}

	return cl
}

// boundEta re-projects pos onto the violated eta bound, keeping its
// radius and azimuth.
func boundEta(pos r3.Vector, minEta, maxEta float64) (r3.Vector, bool) {
	eta := hits.Eta(pos)
	overflow := eta > maxEta
	underflow := eta < minEta
	if !overflow && !underflow {
		return pos, false
	}

	newEta := minEta
	if overflow {
		newEta = maxEta
	}
	newTheta := hits.EtaToAngle(newEta)
	newR := hits.Magnitude(pos)
	newPhi := hits.AngleAzimuthal(pos)

	direction := "underflow"
	if overflow {
		direction = "overflow"
	}
	monitoring.Tracef("Bound cluster position to contributing hits due to %s", direction)

	return hits.SphericalToVector(newR, newTheta, newPhi), true
}
