package rupture

import (
	"fmt"
	"math"
	"slices"

	"github.com/hupe1980/chunkcpd/series"
)

// CostLinear is the kernel cost of the linear kernel k(x, y) = <x, y>. It
// equals the l2 cost and is computed from prefix sums.
type CostLinear struct {
	CostL2
}

// CostCosine is the kernel cost of the cosine similarity kernel. Rows are
// normalised to unit length; zero rows stay zero.
type CostCosine struct {
	CostL2
}

func (c *CostCosine) Fit(data series.Matrix) error {
	normed := data.Clone()

	for i := 0; i < normed.Rows(); i++ {
		row := normed.Row(i)

		var norm float64
		for _, v := range row {
			norm += v * v
		}

		if norm == 0 {
			continue
		}

		norm = math.Sqrt(norm)
		for j := range row {
			row[j] /= norm
		}
	}

	return c.CostL2.Fit(normed)
}

// MaxKernelBlocks bounds the number of block sums CostRbf keeps in memory.
const MaxKernelBlocks = 1 << 24

// medianSample bounds the rows used by the bandwidth heuristic.
const medianSample = 1000

// CostRbf is the kernel cost of the Gaussian kernel
// k(x, y) = exp(-gamma * |x - y|^2).
//
// Kernel sums are aggregated over blocks of Jump samples, which makes
// segments with both ends on the Jump grid O(1) to evaluate. Other segments
// are evaluated directly.
type CostRbf struct {
	// Gamma is the kernel bandwidth. Zero selects the inverse median of the
	// pairwise squared distances.
	Gamma float64
	// Jump is the block size. Zero means 1.
	Jump int

	data   series.Matrix
	gamma  float64
	blocks int
	prefix []float64
}

func (c *CostRbf) Fit(data series.Matrix) error {
	c.data = data
	c.gamma = c.Gamma

	if c.gamma <= 0 {
		c.gamma = bandwidth(data)
	}

	jump := max(c.Jump, 1)
	n := data.Rows()
	m := (n + jump - 1) / jump

	if (m+1)*(m+1) > MaxKernelBlocks {
		return fmt.Errorf("%w: %d samples with block size %d", ErrSignalTooLarge, n, jump)
	}

	c.Jump = jump
	c.blocks = m

	sums := make([]float64, m*m)

	for i := 0; i < n; i++ {
		bi := i / jump
		xi := data.Row(i)

		sums[bi*m+bi]++ // k(x, x) = 1

		for j := 0; j < i; j++ {
			bj := j / jump
			v := c.kernel(xi, data.Row(j))
			sums[bi*m+bj] += v
			sums[bj*m+bi] += v
		}
	}

	// 2D prefix sums over blocks: prefix[a][b] = sum of blocks [0,a) x [0,b).
	w := m + 1
	c.prefix = make([]float64, w*w)

	for a := 1; a <= m; a++ {
		for b := 1; b <= m; b++ {
			c.prefix[a*w+b] = sums[(a-1)*m+(b-1)] + c.prefix[(a-1)*w+b] + c.prefix[a*w+b-1] - c.prefix[(a-1)*w+b-1]
		}
	}

	return nil
}

func (c *CostRbf) Error(start, end int) float64 {
	n := end - start
	if n <= 0 {
		return 0
	}

	a, okA := c.block(start)
	b, okB := c.block(end)

	var total float64

	if okA && okB {
		w := c.blocks + 1
		total = c.prefix[b*w+b] - c.prefix[a*w+b] - c.prefix[b*w+a] + c.prefix[a*w+a]
	} else {
		for i := start; i < end; i++ {
			xi := c.data.Row(i)
			total++

			for j := start; j < i; j++ {
				total += 2 * c.kernel(xi, c.data.Row(j))
			}
		}
	}

	return float64(n) - total/float64(n)
}

func (c *CostRbf) MinSize() int { return 1 }

// block maps a position on the grid to its block index.
func (c *CostRbf) block(pos int) (int, bool) {
	if pos == c.data.Rows() {
		return c.blocks, true
	}

	if pos%c.Jump != 0 {
		return 0, false
	}

	return pos / c.Jump, true
}

func (c *CostRbf) kernel(x, y []float64) float64 {
	var d float64
	for k := range x {
		diff := x[k] - y[k]
		d += diff * diff
	}

	return math.Exp(-c.gamma * d)
}

// bandwidth returns the inverse median pairwise squared distance of an
// evenly strided sample of rows, or 1 when that median is zero.
func bandwidth(data series.Matrix) float64 {
	n := data.Rows()
	stride := max(n/medianSample, 1)

	var rows [][]float64
	for i := 0; i < n; i += stride {
		rows = append(rows, data.Row(i))
	}

	dists := make([]float64, 0, len(rows)*(len(rows)-1)/2)

	for i := range rows {
		for j := 0; j < i; j++ {
			var d float64
			for k := range rows[i] {
				diff := rows[i][k] - rows[j][k]
				d += diff * diff
			}

			dists = append(dists, d)
		}
	}

	if len(dists) == 0 {
		return 1
	}

	slices.Sort(dists)

	med := median(dists)
	if med == 0 {
		return 1
	}

	return 1 / med
}
