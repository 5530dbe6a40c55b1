package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/topocluster/internal/units"
)

// DefaultConfigPath is the path to the canonical clustering defaults file.
const DefaultConfigPath = "config/clustering.defaults.json"

// Defaults applied by the Get* accessors (internal units: mm, GeV, rad).
const (
	defaultNeighbourLayersRange = 1
	defaultLocalDist            = 1.0 * units.MM
	defaultLayerDistEta         = 0.01
	defaultLayerDistPhi         = 0.01 * units.Rad
	defaultSectorDistance       = 1.0 * units.CM
	defaultMinClusterHitEnergy  = 0.0 * units.GeV
	defaultMinClusterSeedEnergy = 0.0 * units.GeV
	defaultMinClusterEnergy     = 0.5 * units.MeV
	defaultMinClusterHits       = 10
	defaultSamplingFraction     = 1.0
	defaultLogWeightBase        = 3.6
	defaultEnergyWeight         = "log"
	defaultWorkers              = 0
)

// weightNames mirrors the reconstruction weighting registry; config stays
// a leaf package so the names are repeated here for validation.
var weightNames = []string{"none", "linear", "log"}

// ClusteringConfig is the root configuration for the grouping and
// reconstruction stages. Every field is optional: Get* methods fall back
// to defaults for fields not present in the file.
type ClusteringConfig struct {
	// Grouping
	NeighbourLayersRange *int       `json:"neighbour_layers_range,omitempty" yaml:"neighbour_layers_range,omitempty"`
	LocalDistXY          []Quantity `json:"local_dist_xy,omitempty" yaml:"local_dist_xy,omitempty"`
	LayerDistEtaPhi      []Quantity `json:"layer_dist_eta_phi,omitempty" yaml:"layer_dist_eta_phi,omitempty"`
	SectorDistance       *Quantity  `json:"sector_distance,omitempty" yaml:"sector_distance,omitempty"`
	MinClusterHitEnergy  *Quantity  `json:"min_cluster_hit_energy,omitempty" yaml:"min_cluster_hit_energy,omitempty"`
	MinClusterSeedEnergy *Quantity  `json:"min_cluster_seed_energy,omitempty" yaml:"min_cluster_seed_energy,omitempty"`
	MinClusterEnergy     *Quantity  `json:"min_cluster_energy,omitempty" yaml:"min_cluster_energy,omitempty"`
	MinClusterHits       *int       `json:"min_cluster_hits,omitempty" yaml:"min_cluster_hits,omitempty"`

	// Reconstruction
	SamplingFraction *float64 `json:"sampling_fraction,omitempty" yaml:"sampling_fraction,omitempty"`
	LogWeightBase    *float64 `json:"log_weight_base,omitempty" yaml:"log_weight_base,omitempty"`
	EnergyWeight     *string  `json:"energy_weight,omitempty" yaml:"energy_weight,omitempty"`
	EnableEtaBounds  *bool    `json:"enable_eta_bounds,omitempty" yaml:"enable_eta_bounds,omitempty"`

	// Batch processing
	Workers *int `json:"workers,omitempty" yaml:"workers,omitempty"`

	// Reference geometry used when events carry cell IDs only.
	Geometry *GeometryConfig `json:"geometry,omitempty" yaml:"geometry,omitempty"`
}

// GeometryConfig describes the segmented barrel reference geometry.
type GeometryConfig struct {
	Sectors        int      `json:"sectors" yaml:"sectors"`
	Layers         int      `json:"layers" yaml:"layers"`
	InnerRadius    Quantity `json:"inner_radius" yaml:"inner_radius"`
	LayerThickness Quantity `json:"layer_thickness" yaml:"layer_thickness"`
	PixelSize      Quantity `json:"pixel_size" yaml:"pixel_size"`
	PhiOffset      Quantity `json:"phi_offset,omitempty" yaml:"phi_offset,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64   { return &v }
func ptrQuantity(v float64) *Quantity { q := Quantity(v); return &q }
func ptrBool(v bool) *bool            { return &v }
func ptrString(v string) *string      { return &v }
func ptrInt(v int) *int               { return &v }

// EmptyClusteringConfig returns a ClusteringConfig with all fields unset.
func EmptyClusteringConfig() *ClusteringConfig {
	return &ClusteringConfig{}
}

// LoadClusteringConfig loads a ClusteringConfig from a .json, .yaml or
// .yml file of at most 1MB. Fields omitted from the file keep their
// defaults, so partial configs are safe.
func LoadClusteringConfig(path string) (*ClusteringConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyClusteringConfig()
	if ext == ".json" {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", strings.TrimPrefix(ext, "."), err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath,
// searching the current directory and its parents up to the repo root.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *ClusteringConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,          // from internal/config/
		"../../../" + DefaultConfigPath,       // from internal/calo/topo/
		"../../../../" + DefaultConfigPath,    // from internal/calo/storage/sqlite/
		"../../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadClusteringConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *ClusteringConfig) Validate() error {
	if c.LocalDistXY != nil && len(c.LocalDistXY) != 2 {
		return fmt.Errorf("expected 2 values (x_dist, y_dist) for local_dist_xy, got %d", len(c.LocalDistXY))
	}
	if c.LayerDistEtaPhi != nil && len(c.LayerDistEtaPhi) != 2 {
		return fmt.Errorf("expected 2 values (eta_dist, phi_dist) for layer_dist_eta_phi, got %d", len(c.LayerDistEtaPhi))
	}
	for i, v := range c.LocalDistXY {
		if v < 0 {
			return fmt.Errorf("local_dist_xy[%d] must be non-negative, got %g", i, v)
		}
	}
	for i, v := range c.LayerDistEtaPhi {
		if v < 0 {
			return fmt.Errorf("layer_dist_eta_phi[%d] must be non-negative, got %g", i, v)
		}
	}

	if c.NeighbourLayersRange != nil && *c.NeighbourLayersRange < 0 {
		return fmt.Errorf("neighbour_layers_range must be non-negative, got %d", *c.NeighbourLayersRange)
	}
	if c.SectorDistance != nil && *c.SectorDistance < 0 {
		return fmt.Errorf("sector_distance must be non-negative, got %g", *c.SectorDistance)
	}
	for _, e := range []struct {
		name string
		v    *Quantity
	}{
		{"min_cluster_hit_energy", c.MinClusterHitEnergy},
		{"min_cluster_seed_energy", c.MinClusterSeedEnergy},
		{"min_cluster_energy", c.MinClusterEnergy},
	} {
		if e.v != nil && *e.v < 0 {
			return fmt.Errorf("%s must be non-negative, got %g", e.name, *e.v)
		}
	}
	if c.MinClusterHits != nil && *c.MinClusterHits < 0 {
		return fmt.Errorf("min_cluster_hits must be non-negative, got %d", *c.MinClusterHits)
	}

	if c.SamplingFraction != nil && !(*c.SamplingFraction > 0) {
		return fmt.Errorf("sampling_fraction must be positive, got %g", *c.SamplingFraction)
	}
	if c.EnergyWeight != nil {
		ew := strings.ToLower(strings.TrimSpace(*c.EnergyWeight))
		known := false
		for _, n := range weightNames {
			if n == ew {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("cannot find energy weighting method %q, choose one from [%s]",
				*c.EnergyWeight, strings.Join(weightNames, ", "))
		}
	}

	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}

	if g := c.Geometry; g != nil {
		if g.Sectors <= 0 || g.Layers <= 0 {
			return fmt.Errorf("geometry sectors and layers must be positive, got %d x %d", g.Sectors, g.Layers)
		}
		if g.InnerRadius <= 0 || g.LayerThickness <= 0 || g.PixelSize <= 0 {
			return fmt.Errorf("geometry dimensions must be positive")
		}
	}

	return nil
}

// GetNeighbourLayersRange returns the neighbour_layers_range value or the default.
func (c *ClusteringConfig) GetNeighbourLayersRange() int {
	if c.NeighbourLayersRange == nil {
		return defaultNeighbourLayersRange
	}
	return *c.NeighbourLayersRange
}

// GetLocalDistXY returns the local_dist_xy values (mm) or the default.
func (c *ClusteringConfig) GetLocalDistXY() [2]float64 {
	if len(c.LocalDistXY) != 2 {
		return [2]float64{defaultLocalDist, defaultLocalDist}
	}
	return [2]float64{c.LocalDistXY[0].Float(), c.LocalDistXY[1].Float()}
}

// GetLayerDistEtaPhi returns the layer_dist_eta_phi values or the default.
func (c *ClusteringConfig) GetLayerDistEtaPhi() [2]float64 {
	if len(c.LayerDistEtaPhi) != 2 {
		return [2]float64{defaultLayerDistEta, defaultLayerDistPhi}
	}
	return [2]float64{c.LayerDistEtaPhi[0].Float(), c.LayerDistEtaPhi[1].Float()}
}

// GetSectorDistance returns the sector_distance value (mm) or the default.
func (c *ClusteringConfig) GetSectorDistance() float64 {
	if c.SectorDistance == nil {
		return defaultSectorDistance
	}
	return c.SectorDistance.Float()
}

// GetMinClusterHitEnergy returns the min_cluster_hit_energy value (GeV) or the default.
func (c *ClusteringConfig) GetMinClusterHitEnergy() float64 {
	if c.MinClusterHitEnergy == nil {
		return defaultMinClusterHitEnergy
	}
	return c.MinClusterHitEnergy.Float()
}

// GetMinClusterSeedEnergy returns the min_cluster_seed_energy value (GeV) or the default.
func (c *ClusteringConfig) GetMinClusterSeedEnergy() float64 {
	if c.MinClusterSeedEnergy == nil {
		return defaultMinClusterSeedEnergy
	}
	return c.MinClusterSeedEnergy.Float()
}

// GetMinClusterEnergy returns the min_cluster_energy value (GeV) or the default.
func (c *ClusteringConfig) GetMinClusterEnergy() float64 {
	if c.MinClusterEnergy == nil {
		return defaultMinClusterEnergy
	}
	return c.MinClusterEnergy.Float()
}

// GetMinClusterHits returns the min_cluster_hits value or the default.
func (c *ClusteringConfig) GetMinClusterHits() int {
	if c.MinClusterHits == nil {
		return defaultMinClusterHits
	}
	return *c.MinClusterHits
}

// GetSamplingFraction returns the sampling_fraction value or the default.
func (c *ClusteringConfig) GetSamplingFraction() float64 {
	if c.SamplingFraction == nil {
		return defaultSamplingFraction
	}
	return *c.SamplingFraction
}

// GetLogWeightBase returns the log_weight_base value or the default.
func (c *ClusteringConfig) GetLogWeightBase() float64 {
	if c.LogWeightBase == nil {
		return defaultLogWeightBase
	}
	return *c.LogWeightBase
}

// GetEnergyWeight returns the energy_weight value or the default.
func (c *ClusteringConfig) GetEnergyWeight() string {
	if c.EnergyWeight == nil || *c.EnergyWeight == "" {
		return defaultEnergyWeight
	}
	return *c.EnergyWeight
}

// GetEnableEtaBounds returns the enable_eta_bounds value or the default.
func (c *ClusteringConfig) GetEnableEtaBounds() bool {
	if c.EnableEtaBounds == nil {
		return false
	}
	return *c.EnableEtaBounds
}

// GetWorkers returns the workers value or the default. Zero means one
// worker per CPU.
func (c *ClusteringConfig) GetWorkers() int {
	if c.Workers == nil {
		return defaultWorkers
	}
	return *c.Workers
}
