package testutil

import (
	"math"
	"math/rand"
	"sync"

	"github.com/hupe1980/chunkcpd/series"
)

// Segment is one stationary piece of a synthetic series.
type Segment struct {
	Len  int
	Mean float64
}

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// FillGaussian fills dst with values drawn from N(mean, sigma^2).
func (r *RNG) FillGaussian(dst []float64, mean, sigma float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = mean + sigma*r.rand.NormFloat64()
	}
}

// Piecewise returns a dim-channel series made of constant-mean segments with
// Gaussian noise, and the segment ends (the last one is the series length).
// Channel c of segment s has mean s.Mean*(1+c/dim), so every channel shifts
// at the same positions.
func (r *RNG) Piecewise(segments []Segment, dim int, noise float64) (series.Matrix, []int) {
	total := 0
	for _, s := range segments {
		total += s.Len
	}

	m := series.New(total, dim)
	cps := make([]int, 0, len(segments))

	r.mu.Lock()
	defer r.mu.Unlock()

	row := 0
	for _, s := range segments {
		for i := 0; i < s.Len; i++ {
			for c := 0; c < dim; c++ {
				mean := s.Mean * (1 + float64(c)/float64(dim))
				m.Set(row, c, mean+noise*r.rand.NormFloat64())
			}
			row++
		}
		cps = append(cps, row)
	}

	return m, cps
}

// SineSegments returns a univariate sine wave whose level jumps by shift at
// every segment boundary, and the segment ends.
func (r *RNG) SineSegments(lengths []int, shift, noise float64) (series.Matrix, []int) {
	total := 0
	for _, l := range lengths {
		total += l
	}

	values := make([]float64, total)
	cps := make([]int, 0, len(lengths))

	r.mu.Lock()
	defer r.mu.Unlock()

	i := 0
	for s, l := range lengths {
		level := shift * float64(s%2)
		for j := 0; j < l; j++ {
			values[i] = level + 0.2*math.Sin(float64(i)/5) + noise*r.rand.NormFloat64()
			i++
		}
		cps = append(cps, i)
	}

	return series.FromValues(values), cps
}

// Ramp returns the univariate series 0, 1, ..., n-1.
func Ramp(n int) series.Matrix {
	values := make([]float64, n)
	for i := range values {
		values[i] = float64(i)
	}

	return series.FromValues(values)
}
