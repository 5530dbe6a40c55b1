// Package cog reconstructs cluster observables with the centre of gravity
// method.
//
// A group of hits (or a proto-cluster carrying explicit per-hit weights)
// becomes one Cluster: summed energy corrected by the sampling fraction,
// a weighted centroid, direction angles, and an RMS radius. Logarithmic
// weighting mimics the transverse energy profile of a shower.
// Key types: Params, Reconstructor, ProtoCluster, Cluster, WeightMethod.
//
// Dependency rule: cog may depend on hits and topo, never on pipeline.
package cog
