// Package units provides shared constants and parsing for detector units.
//
// Internal units are millimetres, GeV, nanoseconds and radians. A value
// expressed as "1.5 cm" is stored internally as 15 (mm).
package units

import (
	"fmt"
	"strconv"
	"strings"
)

// Length units (internal: mm)
const (
	UM = 1e-3
	MM = 1.0
	CM = 10.0
	M  = 1000.0
)

// Energy units (internal: GeV)
const (
	KeV = 1e-6
	MeV = 1e-3
	GeV = 1.0
	TeV = 1e3
)

// Time units (internal: ns)
const (
	PS = 1e-3
	NS = 1.0
	US = 1e3
)

// Angle units (internal: rad)
const (
	MRad = 1e-3
	Rad  = 1.0
)

// unitScale maps unit suffixes to their internal scale factor.
var unitScale = map[string]float64{
	"um":   UM,
	"mm":   MM,
	"cm":   CM,
	"m":    M,
	"kev":  KeV,
	"mev":  MeV,
	"gev":  GeV,
	"tev":  TeV,
	"ps":   PS,
	"ns":   NS,
	"us":   US,
	"mrad": MRad,
	"rad":  Rad,
}

// ValidUnits contains all accepted unit suffixes, in display order.
var ValidUnits = []string{"um", "mm", "cm", "m", "keV", "MeV", "GeV", "TeV", "ps", "ns", "us", "mrad", "rad"}

// IsValid checks if the given unit suffix is known. Matching is case-insensitive.
func IsValid(unit string) bool {
	_, ok := unitScale[strings.ToLower(unit)]
	return ok
}

// ValidUnitsString returns a comma-separated string of valid units for error messages
func ValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// Scale returns the internal scale factor for a unit suffix.
func Scale(unit string) (float64, error) {
	s, ok := unitScale[strings.ToLower(unit)]
	if !ok {
		return 0, fmt.Errorf("unknown unit %q (valid: %s)", unit, ValidUnitsString())
	}
	return s, nil
}

// ParseQuantity parses a number with an optional unit suffix into internal
// units. Accepted forms: "1.5", "1.5mm", "1.5 mm", "1.5*mm".
// A bare number is taken as already being in internal units.
func ParseQuantity(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty quantity")
	}

	split := len(s)
	for i, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			// exponent marker inside the number, e.g. 1e-3
			if (r == 'e' || r == 'E') && i > 0 && i+1 < len(s) && isExponentTail(s[i+1:]) {
				continue
			}
			split = i
			break
		}
	}

	num := strings.TrimRight(strings.TrimSpace(s[:split]), "* ")
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid quantity %q: %w", s, err)
	}

	unit := strings.TrimSpace(s[split:])
	if unit == "" {
		return v, nil
	}
	scale, err := Scale(unit)
	if err != nil {
		return 0, err
	}
	return v * scale, nil
}

func isExponentTail(s string) bool {
	if s == "" {
		return false
	}
	if s[0] == '-' || s[0] == '+' {
		s = s[1:]
	}
	return s != "" && s[0] >= '0' && s[0] <= '9'
}
