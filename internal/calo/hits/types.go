package hits

import "github.com/golang/geo/r3"

// Hit is one sensor-cell energy/time/position record.
// Hits are read-only for the duration of a processing pass.
type Hit struct {
	CellID    uint64    // Opaque readout cell identifier
	Position  r3.Vector // Global position (mm)
	Local     r3.Vector // Position in the local layer frame (mm)
	Layer     int       // Layer index within the sector
	Sector    int       // Sector (stave) index
	Energy    float64   // Deposited energy estimate (GeV)
	Time      float64   // Timestamp (ns)
	TimeError float64   // Timestamp uncertainty (ns)
}

// Eta returns the pseudorapidity of the hit position.
func (h Hit) Eta() float64 { return Eta(h.Position) }

// Phi returns the azimuthal angle of the hit position in (-pi, pi].
func (h Hit) Phi() float64 { return AngleAzimuthal(h.Position) }

// R returns the distance of the hit from the origin.
func (h Hit) R() float64 { return Magnitude(h.Position) }

// RawHit is a readout already converted to energy and time, before the
// geometry lookup attaches positions and segmentation indices.
type RawHit struct {
	CellID    uint64  `json:"cell_id"`
	Energy    float64 `json:"energy"`
	Time      float64 `json:"time"`
	TimeError float64 `json:"time_error,omitempty"`
}
