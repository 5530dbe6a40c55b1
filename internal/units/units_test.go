package units

import (
	"math"
	"testing"
)

func TestIsValid(t *testing.T) {
	tests := []struct {
		name     string
		unit     string
		expected bool
	}{
		{"valid mm", "mm", true},
		{"valid cm", "cm", true},
		{"valid GeV", "GeV", true},
		{"lowercase gev", "gev", true},
		{"valid mrad", "mrad", true},
		{"invalid unit", "furlong", false},
		{"empty unit", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsValid(tt.unit)
			if result != tt.expected {
				t.Errorf("IsValid(%s) = %v, want %v", tt.unit, result, tt.expected)
			}
		})
	}
}

func TestValidUnitsString(t *testing.T) {
	result := ValidUnitsString()
	expected := "um, mm, cm, m, keV, MeV, GeV, TeV, ps, ns, us, mrad, rad"
	if result != expected {
		t.Errorf("ValidUnitsString() = %s, want %s", result, expected)
	}
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected float64
	}{
		{"bare number", "2.5", 2.5},
		{"millimetres", "1.0 mm", 1.0},
		{"centimetres no space", "1cm", 10.0},
		{"metres", "0.5 m", 500.0},
		{"MeV to GeV", "0.5 MeV", 0.0005},
		{"star syntax", "1.0*cm", 10.0},
		{"exponent without unit", "1e-3", 0.001},
		{"exponent with unit", "2e1 mm", 20.0},
		{"milliradians", "10 mrad", 0.01},
		{"negative", "-3 mm", -3.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseQuantity(tt.input)
			if err != nil {
				t.Fatalf("ParseQuantity(%q) error: %v", tt.input, err)
			}
			if math.Abs(got-tt.expected) > 1e-12 {
				t.Errorf("ParseQuantity(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseQuantity_Errors(t *testing.T) {
	for _, input := range []string{"", "mm", "1.0 parsec", "abc"} {
		if _, err := ParseQuantity(input); err == nil {
			t.Errorf("ParseQuantity(%q) expected error", input)
		}
	}
}
