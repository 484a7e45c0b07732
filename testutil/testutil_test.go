package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPiecewise(t *testing.T) {
	rng := NewRNG(42)

	data, cps := rng.Piecewise([]Segment{{Len: 100, Mean: 0}, {Len: 150, Mean: 5}, {Len: 50, Mean: -3}}, 3, 0.1)
	assert.Equal(t, []int{100, 250, 300}, cps)
	assert.Equal(t, 300, data.Rows())
	assert.Equal(t, 3, data.Dim())
	assert.InDelta(t, 5.0, data.Slice(100, 250).ColumnMeans()[0], 0.1)
}

func TestRNGReset(t *testing.T) {
	rng := NewRNG(7)
	a, _ := rng.SineSegments([]int{20, 20}, 1, 0.5)

	rng.Reset()
	b, _ := rng.SineSegments([]int{20, 20}, 1, 0.5)

	assert.Equal(t, a.Flat(), b.Flat())
	assert.Equal(t, int64(7), rng.Seed())
}

func TestRamp(t *testing.T) {
	r := Ramp(5)
	assert.Equal(t, []float64{0, 1, 2, 3, 4}, r.Flat())
}
