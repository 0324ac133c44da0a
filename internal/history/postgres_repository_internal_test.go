package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLongitudeFilter(t *testing.T) {
	tests := []struct {
		name      string
		lat, lon  float64
		radius    float64
		clause    string
		contained []float64
	}{
		{
			name:      "ordinary box",
			lat:       -23.55,
			lon:       -46.63,
			radius:    5000,
			clause:    "longitude BETWEEN $3 AND $4",
			contained: []float64{-46.63, -46.60},
		},
		{
			name:      "box across the antimeridian",
			lat:       -17.8,
			lon:       179.99,
			radius:    20000,
			clause:    "(longitude >= $3 OR longitude <= $4)",
			contained: []float64{179.95, -179.95},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			box := searchCap(tt.lat, tt.lon, tt.radius).RectBound()
			clause, lo, hi := longitudeFilter(box)
			assert.Equal(t, tt.clause, clause)

			inverted := clause != "longitude BETWEEN $3 AND $4"
			for _, lng := range tt.contained {
				var match bool
				if inverted {
					match = lng >= lo || lng <= hi
				} else {
					match = lng >= lo && lng <= hi
				}
				assert.True(t, match, "longitude %v outside [%v, %v]", lng, lo, hi)
			}
			if inverted {
				assert.Greater(t, lo, hi)
				assert.False(t, 0 >= lo || 0 <= hi, "prime meridian must not match")
			}
		})
	}
}
