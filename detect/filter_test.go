package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/chunkcpd/series"
)

// steps builds a univariate series that switches to levels[i] at index i.
func steps(n int, levels map[int]float64) series.Matrix {
	values := make([]float64, n)
	level := 0.0

	for i := range values {
		if v, ok := levels[i]; ok {
			level = v
		}

		values[i] = level
	}

	return series.FromValues(values)
}

func TestAdaptiveMeanFilter(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		assert.Equal(t, []int{}, AdaptiveMeanFilter(series.Matrix{}, nil, 10))
	})

	t.Run("FarApartKept", func(t *testing.T) {
		data := steps(100, nil)
		assert.Equal(t, []int{10, 30, 60}, AdaptiveMeanFilter(data, []int{10, 30, 60}, 20))
	})

	t.Run("RisingMeanKeepsLaterPoint", func(t *testing.T) {
		// Level rises at 50, so the mean of [0:55] exceeds the mean of [0:50].
		data := steps(100, map[int]float64{50: 10})
		assert.Equal(t, []int{55}, AdaptiveMeanFilter(data, []int{50, 55}, 20))
	})

	t.Run("FallingMeanKeepsEarlierPoint", func(t *testing.T) {
		data := steps(100, map[int]float64{0: 10, 50: 0})
		assert.Equal(t, []int{50}, AdaptiveMeanFilter(data, []int{50, 55}, 20))
	})

	t.Run("UsesPointBeforeAsAnchor", func(t *testing.T) {
		// z = 20, the mean of [20:45] is lower than the mean of [20:40].
		data := steps(100, map[int]float64{0: 0, 20: 5, 40: 1})
		assert.Equal(t, []int{20, 40}, AdaptiveMeanFilter(data, []int{20, 40, 45}, 10))
	})

	t.Run("Multivariate", func(t *testing.T) {
		rows := make([][]float64, 60)
		for i := range rows {
			if i < 30 {
				rows[i] = []float64{0, 0}
			} else {
				rows[i] = []float64{4, -2}
			}
		}

		data, err := series.FromRows(rows)
		assert.NoError(t, err)
		assert.Equal(t, []int{33}, AdaptiveMeanFilter(data, []int{30, 33}, 10))
	})
}

func TestAdaptiveMeanFilterIdempotent(t *testing.T) {
	data := steps(400, map[int]float64{0: 1, 50: 3, 90: 0, 200: 7, 210: 2, 300: 5})
	cps := []int{50, 60, 90, 95, 200, 205, 210, 300, 310, 395}

	for _, threshold := range []int{5, 20, 50, 120} {
		once := AdaptiveMeanFilter(data, cps, threshold)
		twice := AdaptiveMeanFilter(data, once, threshold)
		assert.Equal(t, once, twice, "threshold %d", threshold)

		for i := 1; i < len(once); i++ {
			assert.GreaterOrEqual(t, once[i]-once[i-1], threshold)
		}
	}
}

func TestThresholdFilter(t *testing.T) {
	assert.Equal(t, []int{}, ThresholdFilter(nil, 10))
	assert.Equal(t, []int{10, 35, 80}, ThresholdFilter([]int{10, 30, 35, 80}, 20))
	assert.Equal(t, []int{5}, ThresholdFilter([]int{1, 2, 3, 4, 5}, 10))
}
