package hits

import (
	"fmt"

	"github.com/banshee-data/topocluster/internal/monitoring"
	"github.com/banshee-data/topocluster/internal/units"
)

// Builder attaches geometry to raw readouts.
type Builder struct {
	geo        Geometry
	lengthUnit float64
}

// NewBuilder binds a geometry service. lengthUnit is the length unit the
// geometry reports in, expressed in internal units (units.MM for a
// geometry that already works in millimetres); zero means units.MM.
func NewBuilder(geo Geometry, lengthUnit float64) (*Builder, error) {
	if geo == nil {
		return nil, fmt.Errorf("hit builder: %w", ErrNoGeometry)
	}
	if lengthUnit < 0 {
		return nil, fmt.Errorf("hit builder: negative length unit %g", lengthUnit)
	}
	if lengthUnit == 0 {
		lengthUnit = units.MM
	}
	return &Builder{geo: geo, lengthUnit: lengthUnit}, nil
}

// Build converts raw readouts to Hits in input order.
func (b *Builder) Build(raw []RawHit) []Hit {
	if len(raw) == 0 {
		return nil
	}
	out := make([]Hit, len(raw))
	for i, rh := range raw {
		out[i] = Hit{
			CellID:    rh.CellID,
			Position:  b.geo.Position(rh.CellID).Mul(b.lengthUnit),
			Local:     b.geo.LocalPosition(rh.CellID).Mul(b.lengthUnit),
			Layer:     b.geo.Layer(rh.CellID),
			Sector:    b.geo.Sector(rh.CellID),
			Energy:    rh.Energy,
			Time:      rh.Time,
			TimeError: rh.TimeError,
		}
	}
	monitoring.Tracef("built %d hits", len(out))
	return out
}
