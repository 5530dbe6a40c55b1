package cog

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrUnknownWeightMethod is returned for an unrecognised weighting name.
var ErrUnknownWeightMethod = errors.New("unknown energy weighting method")

// WeightFunc maps a hit energy to a centroid weight. totalE is the summed
// cluster energy, param the method parameter and moduleType is reserved.
type WeightFunc func(e, totalE, param float64, moduleType int) float64

// WeightMethod selects one of the fixed weighting functions.
type WeightMethod int

const (
	WeightNone WeightMethod = iota
	WeightLinear
	WeightLog
)

var weightNames = [...]string{
	WeightNone:   "none",
	WeightLinear: "linear",
	WeightLog:    "log",
}

var weightFuncs = [...]WeightFunc{
	WeightNone:   constWeight,
	WeightLinear: linearWeight,
	WeightLog:    logWeight,
}

func constWeight(_, _, _ float64, _ int) float64 { return 1.0 }

func linearWeight(e, _, _ float64, _ int) float64 { return e }

// logWeight is max(0, base + ln(e/totalE)). Non-finite or NaN arguments
// (zero total energy, non-positive hit energy) fall back to 0.
func logWeight(e, totalE, base float64, _ int) float64 {
	w := base + math.Log(e/totalE)
	if w > 0 {
		return w
	}
	return 0
}

// String returns the configuration name of m.
func (m WeightMethod) String() string {
	if m < 0 || int(m) >= len(weightNames) {
		return fmt.Sprintf("WeightMethod(%d)", int(m))
	}
	return weightNames[m]
}

// Func returns the weighting function for m.
func (m WeightMethod) Func() WeightFunc {
	if m < 0 || int(m) >= len(weightFuncs) {
		return nil
	}
	return weightFuncs[m]
}

// WeightMethodNames returns the accepted names as "none, linear, log".
func WeightMethodNames() string {
	return strings.Join(weightNames[:], ", ")
}

// ParseWeightMethod resolves a weighting name, ignoring case.
func ParseWeightMethod(name string) (WeightMethod, error) {
	ew := strings.ToLower(strings.TrimSpace(name))
	for i, n := range weightNames {
		if n == ew {
			return WeightMethod(i), nil
		}
	}
	return 0, fmt.Errorf("%w %q, choose one from [%s]", ErrUnknownWeightMethod, name, WeightMethodNames())
}
