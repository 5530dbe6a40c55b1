package config

import (
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/topocluster/internal/units"
)

// Quantity is a scalar in internal units (mm, GeV, ns, rad). In config
// files it may be written as a bare number or as a string with a unit
// suffix, e.g. "1.0 cm" or "0.5 MeV".
type Quantity float64

// Float returns q as a float64.
func (q Quantity) Float() float64 { return float64(q) }

// UnmarshalJSON accepts a JSON number or a unit-suffixed string.
func (q *Quantity) UnmarshalJSON(b []byte) error {
	var s string
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	} else {
		s = string(b)
	}
	v, err := units.ParseQuantity(s)
	if err != nil {
		return err
	}
	*q = Quantity(v)
	return nil
}

// MarshalJSON writes q as a plain number.
func (q Quantity) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(float64(q), 'g', -1, 64)), nil
}

// UnmarshalYAML accepts a YAML scalar number or unit-suffixed string.
func (q *Quantity) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: quantity must be a scalar", node.Line)
	}
	v, err := units.ParseQuantity(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*q = Quantity(v)
	return nil
}
