// Package rupture implements offline change-point search methods and the
// segment cost functions they minimise.
//
// The estimators follow the usual penalised or fixed-count formulations:
// PELT, exact dynamic programming, binary segmentation, bottom-up merging,
// sliding windows and kernel change-point detection. Every prediction is an
// ascending list of change points terminated by the number of samples.
package rupture

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/hupe1980/chunkcpd/series"
)

var (
	// ErrUnknownModel is returned for a cost model name that has no implementation.
	ErrUnknownModel = errors.New("rupture: unknown model")

	// ErrNotFitted is returned when predicting before Fit.
	ErrNotFitted = errors.New("rupture: estimator not fitted")

	// ErrNotEnoughPoints is returned when the requested segmentation does not
	// fit the series under the minimum segment size.
	ErrNotEnoughPoints = errors.New("rupture: not enough points for the requested segmentation")

	// ErrUnsupportedStopping is returned when an algorithm cannot run with the
	// requested stopping rule.
	ErrUnsupportedStopping = errors.New("rupture: unsupported stopping rule")

	// ErrSignalTooLarge is returned when a kernel cost would need more memory
	// than allowed for its block sums.
	ErrSignalTooLarge = errors.New("rupture: signal too large for kernel cost")
)

// Cost measures how badly a single segment is described by one model.
type Cost interface {
	// Fit precomputes statistics for data.
	Fit(data series.Matrix) error
	// Error returns the cost of segment [start, end).
	Error(start, end int) float64
	// MinSize is the smallest segment the cost is defined on.
	MinSize() int
}

// NewCost returns the cost function for a model name. jump is the candidate
// grid step, used by costs that aggregate on that grid.
func NewCost(model string, jump int) (Cost, error) {
	switch model {
	case "l1":
		return &CostL1{}, nil
	case "l2":
		return &CostL2{}, nil
	case "normal":
		return &CostNormal{}, nil
	case "rbf":
		return &CostRbf{Jump: jump}, nil
	case "linear":
		return &CostLinear{}, nil
	case "cosine":
		return &CostCosine{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, model)
	}
}

// moments holds per-channel prefix sums of values and squared values.
type moments struct {
	dim int
	sum []float64
	sq  []float64
}

func newMoments(data series.Matrix) moments {
	n, d := data.Rows(), data.Dim()
	m := moments{dim: d, sum: make([]float64, (n+1)*d), sq: make([]float64, (n+1)*d)}

	for i := 0; i < n; i++ {
		row := data.Row(i)
		for j, v := range row {
			m.sum[(i+1)*d+j] = m.sum[i*d+j] + v
			m.sq[(i+1)*d+j] = m.sq[i*d+j] + v*v
		}
	}

	return m
}

// scatter returns the sum of squared deviations of channel j over [start, end).
func (m moments) scatter(start, end, j int) float64 {
	s := m.sum[end*m.dim+j] - m.sum[start*m.dim+j]
	q := m.sq[end*m.dim+j] - m.sq[start*m.dim+j]

	return q - s*s/float64(end-start)
}

// CostL2 is the squared deviation from the segment mean (piecewise constant
// mean shifts).
type CostL2 struct {
	m moments
}

func (c *CostL2) Fit(data series.Matrix) error {
	c.m = newMoments(data)
	return nil
}

func (c *CostL2) Error(start, end int) float64 {
	if end <= start {
		return 0
	}

	var total float64
	for j := 0; j < c.m.dim; j++ {
		total += c.m.scatter(start, end, j)
	}

	return total
}

func (c *CostL2) MinSize() int { return 1 }

// CostL1 is the absolute deviation from the segment median. It is robust to
// outliers and evaluated directly on every call.
type CostL1 struct {
	data series.Matrix
}

func (c *CostL1) Fit(data series.Matrix) error {
	c.data = data
	return nil
}

func (c *CostL1) Error(start, end int) float64 {
	if end <= start {
		return 0
	}

	col := make([]float64, end-start)

	var total float64

	for j := 0; j < c.data.Dim(); j++ {
		for i := start; i < end; i++ {
			col[i-start] = c.data.At(i, j)
		}

		slices.Sort(col)
		med := median(col)

		for _, v := range col {
			total += math.Abs(v - med)
		}
	}

	return total
}

func (c *CostL1) MinSize() int { return 2 }

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}

	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// CostNormal is the negative Gaussian log-likelihood with a diagonal
// covariance, so changes in mean and in variance are both detected.
type CostNormal struct {
	m moments
}

const varianceFloor = 1e-8

func (c *CostNormal) Fit(data series.Matrix) error {
	c.m = newMoments(data)
	return nil
}

func (c *CostNormal) Error(start, end int) float64 {
	n := end - start
	if n <= 0 {
		return 0
	}

	var total float64
	for j := 0; j < c.m.dim; j++ {
		v := c.m.scatter(start, end, j) / float64(n)
		total += float64(n) * math.Log(max(v, 0)+varianceFloor)
	}

	return total
}

func (c *CostNormal) MinSize() int { return 2 }
