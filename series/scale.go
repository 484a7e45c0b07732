package series

import "math"

// StandardScale returns a copy of m with every channel shifted to zero mean and
// scaled to unit (population) variance. Constant channels are only centered.
func StandardScale(m Matrix) Matrix {
	out := m.Clone()
	if m.rows == 0 {
		return out
	}

	means := m.ColumnMeans()
	stds := make([]float64, m.dim)

	for i := 0; i < m.rows; i++ {
		for j, v := range m.Row(i) {
			d := v - means[j]
			stds[j] += d * d
		}
	}

	for j := range stds {
		stds[j] = math.Sqrt(stds[j] / float64(m.rows))
		if stds[j] == 0 {
			stds[j] = 1
		}
	}

	for i := 0; i < out.rows; i++ {
		row := out.Row(i)
		for j := range row {
			row[j] = (row[j] - means[j]) / stds[j]
		}
	}

	return out
}

// Autocorrelation returns the lag-1 autocorrelation of channel col.
// It returns 0 for series that are too short or constant.
func (m Matrix) Autocorrelation(col int) float64 {
	if m.rows < 3 || col < 0 || col >= m.dim {
		return 0
	}

	var mean float64
	for i := 0; i < m.rows; i++ {
		mean += m.At(i, col)
	}

	mean /= float64(m.rows)

	var num, den float64

	for i := 0; i < m.rows; i++ {
		d := m.At(i, col) - mean
		den += d * d

		if i > 0 {
			num += d * (m.At(i-1, col) - mean)
		}
	}

	if den == 0 {
		return 0
	}

	return num / den
}
