package topo

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/topocluster/internal/calo/hits"
)

// openParams accepts every group so tests can look at raw connectivity.
func openParams() Params {
	p := DefaultParams()
	p.MinClusterEdep = 0
	p.MinClusterNhits = 0
	return p
}

func mustGrouper(t *testing.T, p Params) *Grouper {
	t.Helper()
	g, err := NewGrouper(p)
	require.NoError(t, err)
	return g
}

// pixel builds a hit on a flat stave: local (x, y) in mm, global position
// at radius 1000 + 10*layer along +x, sector fixed.
func pixel(id uint64, sector, layer int, x, y, e float64) hits.Hit {
	return hits.Hit{
		CellID:   id,
		Sector:   sector,
		Layer:    layer,
		Local:    r3.Vector{X: x, Y: y},
		Position: r3.Vector{X: 1000 + 10*float64(layer), Y: x, Z: y},
		Energy:   e,
	}
}

func ids(g HitGroup) []uint64 {
	out := make([]uint64, len(g.Hits))
	for i, h := range g.Hits {
		out[i] = h.CellID
	}
	return out
}

func TestNewGrouper_InvalidParams(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"negative layer range", func(p *Params) { p.NeighbourLayersRange = -1 }},
		{"negative local x", func(p *Params) { p.LocalDistXY[0] = -1 }},
		{"negative eta", func(p *Params) { p.LayerDistEtaPhi[0] = -0.1 }},
		{"negative sector dist", func(p *Params) { p.SectorDist = -1 }},
		{"negative min hits", func(p *Params) { p.MinClusterNhits = -2 }},
		{"negative participation threshold", func(p *Params) { p.MinClusterHitEdep = -1 }},
		{"negative seed threshold", func(p *Params) { p.MinClusterCenterEdep = -5 }},
		{"negative group energy", func(p *Params) { p.MinClusterEdep = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			_, err := NewGrouper(p)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidParams))
		})
	}
}

func TestIsNeighbor_DifferentSector(t *testing.T) {
	g := mustGrouper(t, openParams())

	a := hits.Hit{Sector: 0, Layer: 0, Position: r3.Vector{X: 0, Y: 0, Z: 0}}
	b := hits.Hit{Sector: 1, Layer: 7, Position: r3.Vector{X: 6, Y: 8, Z: 0}} // 10 mm apart
	c := hits.Hit{Sector: 1, Layer: 0, Position: r3.Vector{X: 6, Y: 8, Z: 0.1}}

	assert.True(t, g.IsNeighbor(a, b), "distance equal to sectorDist is adjacent")
	assert.False(t, g.IsNeighbor(a, c), "beyond sectorDist")
}

func TestIsNeighbor_SameLayerPerAxisGate(t *testing.T) {
	g := mustGrouper(t, openParams())

	a := pixel(1, 0, 3, 0, 0, 1)
	tests := []struct {
		name string
		b    hits.Hit
		want bool
	}{
		{"identical local", pixel(2, 0, 3, 0, 0, 1), true},
		{"both on the edge", pixel(2, 0, 3, 1, 1, 1), true},
		{"x too far", pixel(2, 0, 3, 1.01, 0, 1), false},
		{"y too far", pixel(2, 0, 3, 0, -1.01, 1), false},
		// Combined radius sqrt(2) > 1 is still adjacent: the gate is per axis.
		{"diagonal", pixel(2, 0, 3, 0.99, 0.99, 1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.IsNeighbor(a, tt.b))
		})
	}
}

func TestIsNeighbor_AdjacentLayersUseEtaPhi(t *testing.T) {
	g := mustGrouper(t, openParams())

	// Same direction from the origin: identical eta and phi.
	a := hits.Hit{Sector: 0, Layer: 0, Local: r3.Vector{X: 50}, Position: r3.Vector{X: 1000, Y: 0, Z: 100}}
	b := hits.Hit{Sector: 0, Layer: 1, Local: r3.Vector{X: -50}, Position: r3.Vector{X: 1010, Y: 0, Z: 101}}
	assert.True(t, g.IsNeighbor(a, b), "local distance is ignored across layers")

	// Rotate b by 0.02 rad in phi.
	far := b
	far.Position = hits.SphericalToVector(b.R(), hits.AnglePolar(b.Position), 0.02)
	assert.False(t, g.IsNeighbor(a, far))
}

// Scenario C: layer gap beyond neighbourLayersRange is never adjacent.
func TestIsNeighbor_LayerGapExceedsRange(t *testing.T) {
	p := openParams()
	p.NeighbourLayersRange = 1
	g := mustGrouper(t, p)

	a := hits.Hit{Sector: 0, Layer: 0, Position: r3.Vector{X: 1000, Z: 10}, Energy: 1}
	b := hits.Hit{Sector: 0, Layer: 2, Position: a.Position, Energy: 1}
	require.Equal(t, a.Eta(), b.Eta())
	require.Equal(t, a.Phi(), b.Phi())

	assert.False(t, g.IsNeighbor(a, b))
	groups := g.Cluster([]hits.Hit{a, b})
	require.Len(t, groups, 2)
	assert.Len(t, groups[0].Hits, 1)
	assert.Len(t, groups[1].Hits, 1)
}

func TestIsNeighbor_Symmetric(t *testing.T) {
	g := mustGrouper(t, openParams())
	hs := randomHits(rand.New(rand.NewSource(7)), 200)
	for i := range hs {
		for j := range hs {
			if g.IsNeighbor(hs[i], hs[j]) != g.IsNeighbor(hs[j], hs[i]) {
				t.Fatalf("IsNeighbor not symmetric for hits %d and %d", i, j)
			}
		}
	}
}

func TestGroup_EmptyInput(t *testing.T) {
	g := mustGrouper(t, openParams())
	assert.Nil(t, g.Group(nil))
	assert.Nil(t, g.Cluster(nil))
}

// Scenario A (grouping half): two coincident pixels form one group.
func TestCluster_TwoCoincidentHits(t *testing.T) {
	g := mustGrouper(t, openParams())
	groups := g.Cluster([]hits.Hit{pixel(1, 0, 0, 0, 0, 1), pixel(2, 0, 0, 0, 0, 1)})
	require.Len(t, groups, 1)
	assert.Equal(t, []uint64{1, 2}, ids(groups[0]))
	assert.Equal(t, 2.0, groups[0].Energy())
}

// Scenario B: a lone hit below both thresholds yields nothing.
func TestCluster_LoneHitBelowThresholds(t *testing.T) {
	p := openParams()
	p.MinClusterHitEdep = 0.1
	p.MinClusterCenterEdep = 0.2
	g := mustGrouper(t, p)

	assert.Empty(t, g.Cluster([]hits.Hit{pixel(1, 0, 0, 0, 0, 0.05)}))
}

func TestGroup_SeedBelowParticipationIsNotEmitted(t *testing.T) {
	p := openParams()
	p.MinClusterHitEdep = 0.5
	p.MinClusterCenterEdep = 0.1
	g := mustGrouper(t, p)

	assert.Empty(t, g.Group([]hits.Hit{pixel(1, 0, 0, 0, 0, 0.3)}))
}

func TestGroup_LowHitDoesNotBridge(t *testing.T) {
	p := openParams()
	p.MinClusterHitEdep = 0.1
	p.MinClusterCenterEdep = 0.5
	g := mustGrouper(t, p)

	// Chain along local x with 1 mm spacing: A - low - C.
	// C is only adjacent to the low hit, which stops the traversal.
	a := pixel(1, 0, 0, 0, 0, 1.0)
	low := pixel(2, 0, 0, 1, 0, 0.01)
	c := pixel(3, 0, 0, 2, 0, 0.3)

	groups := g.Group([]hits.Hit{a, low, c})
	require.Len(t, groups, 1, "C is not a seed and is unreachable through the low hit")
	assert.Equal(t, []uint64{1}, ids(groups[0]))

	// With C energetic enough to seed, it starts its own group.
	c.Energy = 0.6
	groups = g.Group([]hits.Hit{a, low, c})
	require.Len(t, groups, 2)
	assert.Equal(t, []uint64{1}, ids(groups[0]))
	assert.Equal(t, []uint64{3}, ids(groups[1]))
}

func TestGroup_NonSeedHitsJoinThroughChain(t *testing.T) {
	p := openParams()
	p.MinClusterHitEdep = 0.1
	p.MinClusterCenterEdep = 0.5
	g := mustGrouper(t, p)

	hs := []hits.Hit{
		pixel(1, 0, 0, 2, 0, 0.2),
		pixel(2, 0, 0, 1, 0, 0.2),
		pixel(3, 0, 0, 0, 0, 0.9), // only seed
	}
	groups := g.Group(hs)
	require.Len(t, groups, 1)
	assert.Equal(t, []uint64{3, 2, 1}, ids(groups[0]))
}

func TestCluster_PostFilters(t *testing.T) {
	hs := []hits.Hit{
		// group 0: three hits, 0.3 GeV
		pixel(1, 0, 0, 0, 0, 0.1),
		pixel(2, 0, 0, 1, 0, 0.1),
		pixel(3, 0, 0, 2, 0, 0.1),
		// group 1: one hit, 5 GeV
		pixel(4, 0, 0, 50, 50, 5),
	}

	t.Run("min hits", func(t *testing.T) {
		p := openParams()
		p.MinClusterNhits = 2
		groups := mustGrouper(t, p).Cluster(hs)
		require.Len(t, groups, 1)
		assert.Equal(t, []uint64{1, 2, 3}, ids(groups[0]))
		assert.Equal(t, 0, groups[0].ID)
	})

	t.Run("min energy", func(t *testing.T) {
		p := openParams()
		p.MinClusterEdep = 1.0
		groups := mustGrouper(t, p).Cluster(hs)
		require.Len(t, groups, 1)
		assert.Equal(t, []uint64{4}, ids(groups[0]))
		assert.Equal(t, 0, groups[0].ID, "ids are renumbered after filtering")
	})

	t.Run("raw groups unfiltered", func(t *testing.T) {
		p := openParams()
		p.MinClusterNhits = 100
		groups := mustGrouper(t, p).Group(hs)
		assert.Len(t, groups, 2)
	})
}

func TestGroup_PartitionInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 20; trial++ {
		p := openParams()
		p.MinClusterHitEdep = rng.Float64() * 0.3
		p.MinClusterCenterEdep = rng.Float64() * 0.6
		g := mustGrouper(t, p)

		hs := randomHits(rng, 150)
		groups := g.Group(hs)

		byID := make(map[uint64]hits.Hit, len(hs))
		for _, h := range hs {
			byID[h.CellID] = h
		}

		seen := make(map[uint64]bool)
		for _, grp := range groups {
			require.NotEmpty(t, grp.Hits)
			assert.GreaterOrEqual(t, grp.Hits[0].Energy, p.MinClusterCenterEdep, "first hit is the seed")
			for _, h := range grp.Hits {
				_, ok := byID[h.CellID]
				require.True(t, ok, "group hit not from input")
				require.False(t, seen[h.CellID], "hit %d in two groups", h.CellID)
				seen[h.CellID] = true
				assert.GreaterOrEqual(t, h.Energy, p.MinClusterHitEdep, "dropped hit appears in a group")
			}
			assert.True(t, connected(g, grp.Hits), "group is not connected")
		}
	}
}

func TestGroup_MatchesRecursiveTraversal(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for trial := 0; trial < 20; trial++ {
		p := openParams()
		p.MinClusterHitEdep = rng.Float64() * 0.3
		p.MinClusterCenterEdep = rng.Float64() * 0.6
		g := mustGrouper(t, p)
		hs := randomHits(rng, 120)

		want := recursiveGroups(g, hs)
		got := g.Group(hs)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("trial %d: group mismatch (-recursive +stack):\n%s", trial, diff)
		}
	}
}

func TestGroup_Deterministic(t *testing.T) {
	g := mustGrouper(t, openParams())
	hs := randomHits(rand.New(rand.NewSource(11)), 100)
	run1 := g.Group(hs)
	run2 := g.Group(hs)
	if diff := cmp.Diff(run1, run2); diff != "" {
		t.Errorf("non-deterministic grouping:\n%s", diff)
	}
}

// randomHits scatters hits over a small patch of two sectors so that all
// adjacency branches are exercised.
func randomHits(rng *rand.Rand, n int) []hits.Hit {
	hs := make([]hits.Hit, n)
	for i := range hs {
		sector := rng.Intn(2)
		layer := rng.Intn(4)
		lx := float64(rng.Intn(12)) * 0.8
		ly := float64(rng.Intn(12)) * 0.8
		r := 1000 + 10*float64(layer)
		hs[i] = hits.Hit{
			CellID:   uint64(i + 1),
			Sector:   sector,
			Layer:    layer,
			Local:    r3.Vector{X: lx, Y: ly},
			Position: r3.Vector{X: r, Y: lx + float64(sector)*9, Z: ly},
			Energy:   rng.Float64(),
		}
	}
	return hs
}

// connected checks that every hit is reachable from the first one.
func connected(g *Grouper, hs []hits.Hit) bool {
	reached := make([]bool, len(hs))
	reached[0] = true
	queue := []int{0}
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		for j := range hs {
			if !reached[j] && g.IsNeighbor(hs[i], hs[j]) {
				reached[j] = true
				queue = append(queue, j)
			}
		}
	}
	for _, r := range reached {
		if !r {
			return false
		}
	}
	return true
}

// recursiveGroups is a direct recursive depth-first reference.
func recursiveGroups(g *Grouper, hs []hits.Hit) []HitGroup {
	p := g.Params()
	visited := make([]bool, len(hs))
	var dfs func(members []hits.Hit, idx int) []hits.Hit
	dfs = func(members []hits.Hit, idx int) []hits.Hit {
		visited[idx] = true
		if hs[idx].Energy < p.MinClusterHitEdep {
			return members
		}
		members = append(members, hs[idx])
		for k := range hs {
			if visited[k] || !g.IsNeighbor(hs[idx], hs[k]) {
				continue
			}
			members = dfs(members, k)
		}
		return members
	}

	var groups []HitGroup
	for i := range hs {
		if visited[i] || hs[i].Energy < p.MinClusterCenterEdep {
			continue
		}
		if m := dfs(nil, i); len(m) > 0 {
			groups = append(groups, HitGroup{ID: len(groups), Hits: m})
		}
	}
	return groups
}
