package topo

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/topocluster/internal/calo/hits"
	"github.com/banshee-data/topocluster/internal/monitoring"
)

// HitGroup is a connected set of hits, in traversal order.
type HitGroup struct {
	ID   int
	Hits []hits.Hit
}

// Energy returns the summed deposited energy of the group.
func (g HitGroup) Energy() float64 {
	e := make([]float64, len(g.Hits))
	for i, h := range g.Hits {
		e[i] = h.Energy
	}
	return floats.Sum(e)
}

// Grouper partitions hit collections into topological groups.
// A Grouper is safe for concurrent use: parameters are fixed at
// construction and all traversal state is local to each call.
type Grouper struct {
	params Params
}

// NewGrouper validates p and returns a Grouper.
func NewGrouper(p Params) (*Grouper, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	monitoring.Diagf("Local clustering (same sector and same layer): "+
		"Local [x, y] distance between hits <= [%.4f mm, %.4f mm].",
		p.LocalDistXY[0], p.LocalDistXY[1])
	monitoring.Diagf("Neighbour layers clustering (same sector and layer id within +- %d): "+
		"Global [eta, phi] distance between hits <= [%.4f, %.4f rad].",
		p.NeighbourLayersRange, p.LayerDistEtaPhi[0], p.LayerDistEtaPhi[1])
	monitoring.Diagf("Neighbour sectors clustering (different sector): "+
		"Global distance between hits <= %.4f mm.", p.SectorDist)

	return &Grouper{params: p}, nil
}

// Params returns the grouping parameters.
func (g *Grouper) Params() Params {
	return g.params
}

// IsNeighbor reports whether two hits are adjacent. The rule applied
// depends on their relationship, checked in order:
//
//  1. different sectors: global distance <= SectorDist
//  2. same layer: local |dx| and |dy| within LocalDistXY
//  3. layers within NeighbourLayersRange: |deta| and |dphi| within LayerDistEtaPhi
//  4. otherwise not adjacent
func (g *Grouper) IsNeighbor(a, b hits.Hit) bool {
	p := &g.params

	if a.Sector != b.Sector {
		return a.Position.Distance(b.Position) <= p.SectorDist
	}

	ldiff := a.Layer - b.Layer
	if ldiff < 0 {
		ldiff = -ldiff
	}

	switch {
	case ldiff == 0:
		return math.Abs(a.Local.X-b.Local.X) <= p.LocalDistXY[0] &&
			math.Abs(a.Local.Y-b.Local.Y) <= p.LocalDistXY[1]
	case ldiff <= p.NeighbourLayersRange:
		return math.Abs(a.Eta()-b.Eta()) <= p.LayerDistEtaPhi[0] &&
			math.Abs(a.Phi()-b.Phi()) <= p.LayerDistEtaPhi[1]
	}

	// not in adjacent layers
	return false
}

// Group returns every connected group started from a seed hit, before
// the size and energy filters. Empty groups are not returned.
func (g *Grouper) Group(hs []hits.Hit) []HitGroup {
	if len(hs) == 0 {
		return nil
	}

	visited := make([]bool, len(hs))
	var groups []HitGroup
	for i := range hs {
		// already in a group, or not energetic enough to seed one
		if visited[i] || hs[i].Energy < g.params.MinClusterCenterEdep {
			continue
		}
		members := g.dfsGroup(hs, i, visited)
		if len(members) == 0 {
			continue
		}
		groups = append(groups, HitGroup{ID: len(groups), Hits: members})
	}

	monitoring.Tracef("we have %d groups of hits", len(groups))
	return groups
}

// dfsGroup collects every hit reachable from seed. A hit below the
// participation threshold is marked visited and dropped, and traversal
// does not continue through it.
//
// The frame stack visits hits in exactly the order a recursive
// depth-first search would, without growing the goroutine stack.
func (g *Grouper) dfsGroup(hs []hits.Hit, seed int, visited []bool) []hits.Hit {
	var members []hits.Hit

	visit := func(idx int) bool {
		visited[idx] = true
		if hs[idx].Energy < g.params.MinClusterHitEdep {
			return false
		}
		members = append(members, hs[idx])
		return true
	}

	if !visit(seed) {
		return nil
	}

	type frame struct {
		idx  int // hit whose neighbours are being scanned
		next int // next candidate index to test
	}
	stack := []frame{{idx: seed}}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		descended := false
		for top.next < len(hs) {
			k := top.next
			top.next++
			if visited[k] || !g.IsNeighbor(hs[top.idx], hs[k]) {
				continue
			}
			if visit(k) {
				stack = append(stack, frame{idx: k})
				descended = true
				break
			}
		}
		if !descended {
			stack = stack[:len(stack)-1]
		}
	}

	return members
}

// Cluster groups hits and keeps the groups that pass the minimum hit
// count and minimum energy. Dropped groups are expected noise and are
// not reported as errors. Surviving groups are numbered from 0.
func (g *Grouper) Cluster(hs []hits.Hit) []HitGroup {
	groups := g.Group(hs)
	if len(groups) == 0 {
		return nil
	}

	kept := make([]HitGroup, 0, len(groups))
	for _, grp := range groups {
		if len(grp.Hits) < g.params.MinClusterNhits {
			monitoring.Tracef("drop group %d: %d hits < %d", grp.ID, len(grp.Hits), g.params.MinClusterNhits)
			continue
		}
		if e := grp.Energy(); e < g.params.MinClusterEdep {
			monitoring.Tracef("drop group %d: %.6f GeV < %.6f GeV", grp.ID, e, g.params.MinClusterEdep)
			continue
		}
		grp.ID = len(kept)
		kept = append(kept, grp)
	}
	return kept
}
