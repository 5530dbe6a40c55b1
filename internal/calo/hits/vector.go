package hits

import (
	"math"

	"github.com/golang/geo/r3"
)

// Magnitude returns |v|.
func Magnitude(v r3.Vector) float64 {
	return v.Norm()
}

// AnglePolar returns the polar angle theta of v measured from +z, in [0, pi].
func AnglePolar(v r3.Vector) float64 {
	return math.Atan2(math.Hypot(v.X, v.Y), v.Z)
}

// AngleAzimuthal returns the azimuthal angle phi of v in (-pi, pi].
func AngleAzimuthal(v r3.Vector) float64 {
	return math.Atan2(v.Y, v.X)
}

// AngleToEta converts a polar angle to pseudorapidity.
func AngleToEta(theta float64) float64 {
	return -math.Log(math.Tan(0.5 * theta))
}

// EtaToAngle converts pseudorapidity to a polar angle.
func EtaToAngle(eta float64) float64 {
	return 2 * math.Atan(math.Exp(-eta))
}

// Eta returns the pseudorapidity of v. Points on the +z axis give +Inf.
func Eta(v r3.Vector) float64 {
	return AngleToEta(AnglePolar(v))
}

// SphericalToVector builds a Cartesian vector from radius, polar and
// azimuthal angles.
func SphericalToVector(r, theta, phi float64) r3.Vector {
	sinTheta := math.Sin(theta)
	return r3.Vector{
		X: r * sinTheta * math.Cos(phi),
		Y: r * sinTheta * math.Sin(phi),
		Z: r * math.Cos(theta),
	}
}
