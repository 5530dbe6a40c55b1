// Package hits owns the input layer of the calorimeter data model.
//
// Responsibilities: the Hit record, pseudorapidity and angle helpers,
// the Geometry lookup contract, cell-ID bitfield decoding, and building
// Hits from raw (cellID, energy, time) readouts.
// Key types: Hit, RawHit, Geometry, Builder.
//
// Dependency rule: hits depends on nothing else under internal/calo.
package hits
