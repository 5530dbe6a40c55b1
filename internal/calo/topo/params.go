package topo

import (
	"errors"
	"fmt"

	"github.com/banshee-data/topocluster/internal/config"
	"github.com/banshee-data/topocluster/internal/units"
)

// ErrInvalidParams wraps every parameter validation failure.
var ErrInvalidParams = errors.New("invalid topo clustering parameters")

// Default values (internal units: mm, GeV, rad).
const (
	DefaultNeighbourLayersRange = 1
	DefaultLocalDistX           = 1.0 * units.MM
	DefaultLocalDistY           = 1.0 * units.MM
	DefaultLayerDistEta         = 0.01
	DefaultLayerDistPhi         = 0.01 * units.Rad
	DefaultSectorDist           = 1.0 * units.CM
	DefaultMinClusterHitEdep    = 0.0
	DefaultMinClusterCenterEdep = 0.0
	DefaultMinClusterEdep       = 0.5 * units.MeV
	DefaultMinClusterNhits      = 10
)

// Params configures the Grouper.
type Params struct {
	// Maximum layer difference still considered neighbouring.
	NeighbourLayersRange int
	// Maximum local |dx|, |dy| between hits in the same sector and layer.
	LocalDistXY [2]float64
	// Maximum |deta|, |dphi| between hits in neighbouring layers.
	LayerDistEtaPhi [2]float64
	// Maximum global distance between hits in different sectors.
	SectorDist float64

	MinClusterHitEdep    float64 // participation threshold
	MinClusterCenterEdep float64 // seed threshold
	MinClusterEdep       float64 // minimum summed group energy to keep
	MinClusterNhits      int     // minimum hits to keep a group
}

// DefaultParams returns the production defaults.
func DefaultParams() Params {
	return Params{
		NeighbourLayersRange: DefaultNeighbourLayersRange,
		LocalDistXY:          [2]float64{DefaultLocalDistX, DefaultLocalDistY},
		LayerDistEtaPhi:      [2]float64{DefaultLayerDistEta, DefaultLayerDistPhi},
		SectorDist:           DefaultSectorDist,
		MinClusterHitEdep:    DefaultMinClusterHitEdep,
		MinClusterCenterEdep: DefaultMinClusterCenterEdep,
		MinClusterEdep:       DefaultMinClusterEdep,
		MinClusterNhits:      DefaultMinClusterNhits,
	}
}

// ParamsFromConfig builds grouping Params from a loaded ClusteringConfig.
// Fields absent from the file take the in-code defaults.
func ParamsFromConfig(cfg *config.ClusteringConfig) Params {
	return Params{
		NeighbourLayersRange: cfg.GetNeighbourLayersRange(),
		LocalDistXY:          cfg.GetLocalDistXY(),
		LayerDistEtaPhi:      cfg.GetLayerDistEtaPhi(),
		SectorDist:           cfg.GetSectorDistance(),
		MinClusterHitEdep:    cfg.GetMinClusterHitEnergy(),
		MinClusterCenterEdep: cfg.GetMinClusterSeedEnergy(),
		MinClusterEdep:       cfg.GetMinClusterEnergy(),
		MinClusterNhits:      cfg.GetMinClusterHits(),
	}
}

// Validate checks that distances, energy thresholds and counts are
// non-negative.
func (p Params) Validate() error {
	if p.NeighbourLayersRange < 0 {
		return fmt.Errorf("%w: neighbourLayersRange must be non-negative, got %d", ErrInvalidParams, p.NeighbourLayersRange)
	}
	for i, v := range p.LocalDistXY {
		if v < 0 {
			return fmt.Errorf("%w: localDistXY[%d] must be non-negative, got %g", ErrInvalidParams, i, v)
		}
	}
	for i, v := range p.LayerDistEtaPhi {
		if v < 0 {
			return fmt.Errorf("%w: layerDistEtaPhi[%d] must be non-negative, got %g", ErrInvalidParams, i, v)
		}
	}
	if p.SectorDist < 0 {
		return fmt.Errorf("%w: sectorDist must be non-negative, got %g", ErrInvalidParams, p.SectorDist)
	}
	if p.MinClusterHitEdep < 0 {
		return fmt.Errorf("%w: minClusterHitEdep must be non-negative, got %g", ErrInvalidParams, p.MinClusterHitEdep)
	}
	if p.MinClusterCenterEdep < 0 {
		return fmt.Errorf("%w: minClusterCenterEdep must be non-negative, got %g", ErrInvalidParams, p.MinClusterCenterEdep)
	}
	if p.MinClusterEdep < 0 {
		return fmt.Errorf("%w: minClusterEdep must be non-negative, got %g", ErrInvalidParams, p.MinClusterEdep)
	}
	if p.MinClusterNhits < 0 {
		return fmt.Errorf("%w: minClusterNhits must be non-negative, got %d", ErrInvalidParams, p.MinClusterNhits)
	}
	return nil
}
