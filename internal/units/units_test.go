package units

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDegreesToRadians(t *testing.T) {
	tests := []struct {
		deg  Degrees
		want float64
	}{
		{0, 0},
		{90, math.Pi / 2},
		{-10, -math.Pi / 18},
		{180, math.Pi},
		{15, math.Pi / 12},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, tt.deg.Radians().Float(), 1e-15, "deg=%v", tt.deg)
		assert.InDelta(t, tt.want, Rad(float64(tt.deg)), 1e-15)
	}
}

func TestRoundTrip(t *testing.T) {
	for _, d := range []Degrees{-170, -10, 0, 0.01, 45, 135, 720} {
		assert.InDelta(t, float64(d), float64(d.Radians().Degrees()), 1e-12)
	}
}
