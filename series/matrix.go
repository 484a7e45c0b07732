// Package series holds multivariate time series as flat row-major float64 matrices.
package series

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrDimensionMismatch is returned when rows of different width are combined.
	ErrDimensionMismatch = errors.New("series: dimension mismatch")

	// ErrInvalidShape is returned when a flat buffer does not divide into rows.
	ErrInvalidShape = errors.New("series: invalid shape")
)

// Matrix is an N x D sample matrix. Rows are time steps, columns are channels.
//
// The zero value is an empty matrix. Slice returns views that share the
// backing array; use Clone for an independent copy.
type Matrix struct {
	data []float64
	rows int
	dim  int
}

// New allocates a zeroed rows x dim matrix.
func New(rows, dim int) Matrix {
	if rows < 0 || dim < 0 {
		panic("series: negative shape")
	}

	return Matrix{data: make([]float64, rows*dim), rows: rows, dim: dim}
}

// FromFlat wraps a row-major buffer without copying.
func FromFlat(data []float64, dim int) (Matrix, error) {
	if dim <= 0 {
		if len(data) == 0 {
			return Matrix{}, nil
		}

		return Matrix{}, fmt.Errorf("%w: dim %d for %d values", ErrInvalidShape, dim, len(data))
	}

	if len(data)%dim != 0 {
		return Matrix{}, fmt.Errorf("%w: %d values not divisible by dim %d", ErrInvalidShape, len(data), dim)
	}

	return Matrix{data: data, rows: len(data) / dim, dim: dim}, nil
}

// FromRows copies a slice of equally sized rows into a matrix.
func FromRows(rows [][]float64) (Matrix, error) {
	if len(rows) == 0 {
		return Matrix{}, nil
	}

	dim := len(rows[0])
	m := New(len(rows), dim)

	for i, r := range rows {
		if len(r) != dim {
			return Matrix{}, fmt.Errorf("%w: row %d has %d values, expected %d", ErrDimensionMismatch, i, len(r), dim)
		}

		copy(m.data[i*dim:], r)
	}

	return m, nil
}

// FromValues builds a univariate matrix. The slice is copied.
func FromValues(values []float64) Matrix {
	m := New(len(values), 1)
	copy(m.data, values)

	return m
}

// Rows returns the number of samples.
func (m Matrix) Rows() int { return m.rows }

// Dim returns the number of channels.
func (m Matrix) Dim() int { return m.dim }

// Empty reports whether the matrix holds no samples.
func (m Matrix) Empty() bool { return m.rows == 0 }

// Row returns a view of row i.
func (m Matrix) Row(i int) []float64 {
	return m.data[i*m.dim : (i+1)*m.dim : (i+1)*m.dim]
}

// At returns the value at row i, column j.
func (m Matrix) At(i, j int) float64 { return m.data[i*m.dim+j] }

// Set stores v at row i, column j.
func (m Matrix) Set(i, j int, v float64) { m.data[i*m.dim+j] = v }

// Flat returns the row-major backing slice.
func (m Matrix) Flat() []float64 { return m.data }

// Bytes returns the payload size in bytes.
func (m Matrix) Bytes() int64 { return int64(len(m.data)) * 8 }

// Slice returns the rows [start, end) as a view sharing memory with m.
func (m Matrix) Slice(start, end int) Matrix {
	if start < 0 || end > m.rows || start > end {
		panic(fmt.Sprintf("series: slice [%d:%d] out of range for %d rows", start, end, m.rows))
	}

	return Matrix{
		data: m.data[start*m.dim : end*m.dim : end*m.dim],
		rows: end - start,
		dim:  m.dim,
	}
}

// Clone returns a deep copy.
func (m Matrix) Clone() Matrix {
	out := Matrix{rows: m.rows, dim: m.dim}
	if m.data != nil {
		out.data = make([]float64, len(m.data))
		copy(out.data, m.data)
	}

	return out
}

// Mean returns the grand mean over all channels of rows [start, end).
// Bounds are clamped to the matrix. An empty window yields NaN.
func (m Matrix) Mean(start, end int) float64 {
	start = max(start, 0)
	end = min(end, m.rows)

	if start >= end || m.dim == 0 {
		return math.NaN()
	}

	var sum float64
	for _, v := range m.data[start*m.dim : end*m.dim] {
		sum += v
	}

	return sum / float64((end-start)*m.dim)
}

// ColumnMeans returns the per-channel mean of the whole matrix.
func (m Matrix) ColumnMeans() []float64 {
	means := make([]float64, m.dim)
	if m.rows == 0 {
		return means
	}

	for i := 0; i < m.rows; i++ {
		for j, v := range m.Row(i) {
			means[j] += v
		}
	}

	for j := range means {
		means[j] /= float64(m.rows)
	}

	return means
}
