// Package topo groups calorimeter hits into topological clusters.
//
// Two hits are adjacent when they satisfy a rule chosen by their
// geometric relationship (different sector, same layer, nearby layers).
// Groups are the connected components reachable from seed hits, with a
// separate participation threshold for membership.
//
// The layer-to-layer phi comparison uses raw azimuths in (-pi, pi] with no
// wrap, so hits either side of phi = pi are never joined across layers.
//
// Key types: Params, Grouper, HitGroup.
//
// Dependency rule: topo may depend on hits, never on cog or pipeline.
package topo
