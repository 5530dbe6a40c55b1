package hits

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// ErrNoGeometry is returned when a component that needs the geometry
// lookup is constructed without one.
var ErrNoGeometry = errors.New("no geometry service bound")

// Geometry maps a readout cell ID to positions and segmentation indices.
// Implementations must be deterministic and free of side effects.
type Geometry interface {
	Position(cellID uint64) r3.Vector
	LocalPosition(cellID uint64) r3.Vector
	Layer(cellID uint64) int
	Sector(cellID uint64) int
}

// DefaultReadout is the ID spec used by SegmentedGeometry.
const DefaultReadout = "system:8,sector:6,layer:8,x:32:-16,y:-16"

// SegmentedGeometry is a barrel of flat staves ("sectors") arranged around
// the beam axis, each made of Layers pixel planes. Local x runs along the
// stave face (tangential), local y along the beam axis.
type SegmentedGeometry struct {
	Sectors        int     `json:"sectors"`
	Layers         int     `json:"layers"`
	InnerRadius    float64 `json:"inner_radius"`    // mm, front face of layer 0
	LayerThickness float64 `json:"layer_thickness"` // mm
	PixelSize      float64 `json:"pixel_size"`      // mm, square pixels
	PhiOffset      float64 `json:"phi_offset"`      // rad, angle of sector 0

	coder               *BitFieldCoder
	sectorIdx, layerIdx int
	xIdx, yIdx          int
}

// DefaultSegmentedGeometry returns a 12-stave, 20-layer barrel with
// 0.5 mm pixels starting at 1 m radius.
func DefaultSegmentedGeometry() *SegmentedGeometry {
	g, err := NewSegmentedGeometry(SegmentedGeometry{
		Sectors:        12,
		Layers:         20,
		InnerRadius:    1000,
		LayerThickness: 10,
		PixelSize:      0.5,
	})
	if err != nil {
		panic(err)
	}
	return g
}

// NewSegmentedGeometry validates cfg and binds the default readout decoder.
func NewSegmentedGeometry(cfg SegmentedGeometry) (*SegmentedGeometry, error) {
	if cfg.Sectors <= 0 || cfg.Layers <= 0 {
		return nil, fmt.Errorf("segmented geometry needs positive sectors and layers, got %d x %d", cfg.Sectors, cfg.Layers)
	}
	if cfg.InnerRadius <= 0 || cfg.LayerThickness <= 0 || cfg.PixelSize <= 0 {
		return nil, fmt.Errorf("segmented geometry dimensions must be positive")
	}

	coder, err := NewBitFieldCoder(DefaultReadout)
	if err != nil {
		return nil, fmt.Errorf("failed to load ID decoder: %w", err)
	}
	g := cfg
	g.coder = coder
	g.sectorIdx, _ = coder.Index("sector")
	g.layerIdx, _ = coder.Index("layer")
	g.xIdx, _ = coder.Index("x")
	g.yIdx, _ = coder.Index("y")
	return &g, nil
}

// CellID encodes a pixel address in the default readout.
func (g *SegmentedGeometry) CellID(sector, layer, x, y int) (uint64, error) {
	if sector < 0 || sector >= g.Sectors || layer < 0 || layer >= g.Layers {
		return 0, fmt.Errorf("cell (sector=%d, layer=%d) outside geometry", sector, layer)
	}
	return g.coder.Encode(map[string]int64{
		"sector": int64(sector),
		"layer":  int64(layer),
		"x":      int64(x),
		"y":      int64(y),
	})
}

// Sector implements Geometry.
func (g *SegmentedGeometry) Sector(cellID uint64) int {
	return int(g.coder.GetAt(cellID, g.sectorIdx))
}

// Layer implements Geometry.
func (g *SegmentedGeometry) Layer(cellID uint64) int {
	return int(g.coder.GetAt(cellID, g.layerIdx))
}

// LocalPosition implements Geometry. The pixel centre sits at index*PixelSize.
func (g *SegmentedGeometry) LocalPosition(cellID uint64) r3.Vector {
	return r3.Vector{
		X: float64(g.coder.GetAt(cellID, g.xIdx)) * g.PixelSize,
		Y: float64(g.coder.GetAt(cellID, g.yIdx)) * g.PixelSize,
	}
}

// Position implements Geometry.
func (g *SegmentedGeometry) Position(cellID uint64) r3.Vector {
	local := g.LocalPosition(cellID)
	phi := g.PhiOffset + 2*math.Pi*float64(g.Sector(cellID))/float64(g.Sectors)
	r := g.InnerRadius + (float64(g.Layer(cellID))+0.5)*g.LayerThickness
	sin, cos := math.Sincos(phi)
	return r3.Vector{
		X: r*cos - local.X*sin,
		Y: r*sin + local.X*cos,
		Z: local.Y,
	}
}

// Verify at compile time that *SegmentedGeometry implements Geometry.
var _ Geometry = (*SegmentedGeometry)(nil)
