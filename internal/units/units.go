// Package units is the single place where angles cross between the degree values stored
// in supporting data tables and the radian values the simulation engine expects.
package units

import "math"

// Degrees is an angle in degrees, as found in bound tables and operator-facing output.
type Degrees float64

// Radians is an angle in radians, as consumed by the engine.
type Radians float64

// Radians converts d to radians.
func (d Degrees) Radians() Radians {
	return Radians(float64(d) * math.Pi / 180)
}

// Degrees converts r to degrees.
func (r Radians) Degrees() Degrees {
	return Degrees(float64(r) * 180 / math.Pi)
}

// Float returns the raw radian value.
func (r Radians) Float() float64 { return float64(r) }

// Rad is shorthand for Degrees(d).Radians().Float().
func Rad(d float64) float64 {
	return Degrees(d).Radians().Float()
}
