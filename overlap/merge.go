package overlap

import (
	"errors"
	"fmt"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/chunkcpd/chunk"
	"github.com/hupe1980/chunkcpd/internal/conv"
)

var (
	// ErrMissingSentinel is returned for a processed chunk without change points.
	// Every detector output ends with the chunk length.
	ErrMissingSentinel = errors.New("overlap: change points lack trailing sentinel")

	// ErrInvalidPosition is returned when a reprojected position does not fit
	// the global index space.
	ErrInvalidPosition = errors.New("overlap: invalid global position")
)

// LayoutError reports a chunk whose change points cannot be merged.
type LayoutError struct {
	ChunkID int
	Err     error
}

func (e *LayoutError) Error() string {
	return fmt.Sprintf("chunk %d: %v", e.ChunkID, e.Err)
}

func (e *LayoutError) Unwrap() error { return e.Err }

// Merge sorts chunks by id and projects their local change points into the
// global index space. The result is ascending and free of duplicates; the
// per-chunk sentinels are not part of it.
//
// Merge does not modify chunks and does not depend on the order of the input
// slice.
func Merge(chunks []*chunk.Chunk, overlap int) ([]int, error) {
	return NewMerger(overlap).Merge(chunks)
}

// Seed returns the positions of the first chunk and the increment for the
// chunk that follows. Positions of the first chunk are already global.
func Seed(local []int, increment int) ([]int, int, error) {
	if len(local) == 0 {
		return nil, increment, ErrMissingSentinel
	}

	last := len(local) - 1

	return slices.Clone(local[:last]), increment + local[last], nil
}

// Reproject maps the local change points of a non-first chunk into global
// coordinates. It returns all reprojected positions except the sentinel and
// the reprojected sentinel, which is the increment for the next chunk.
func Reproject(local []int, increment, overlap int) ([]int, int, error) {
	if len(local) == 0 {
		return nil, increment, ErrMissingSentinel
	}

	shift := increment - 2*overlap
	out := make([]int, 0, len(local)-1)

	for _, v := range local[:len(local)-1] {
		out = append(out, v+shift)
	}

	return out, local[len(local)-1] + shift, nil
}

// Merger accumulates chunk results one at a time. Chunks passed to Add must
// arrive in ascending id order.
//
// The increment carries over between runs until Reset is called.
type Merger struct {
	overlap   int
	increment int
	seeded    bool
	set       *roaring.Bitmap
}

// NewMerger returns an empty merger.
func NewMerger(overlap int) *Merger {
	return &Merger{overlap: overlap, set: roaring.New()}
}

// Add merges the change points of the next chunk.
func (m *Merger) Add(c *chunk.Chunk) error {
	var (
		positions []int
		next      int
		err       error
	)

	if !m.seeded {
		positions, next, err = Seed(c.ChangePoints(), m.increment)
	} else {
		positions, next, err = Reproject(c.ChangePoints(), m.increment, m.overlap)
	}

	if err != nil {
		return &LayoutError{ChunkID: c.ID(), Err: err}
	}

	for _, p := range positions {
		v, err := conv.IntToUint32(p)
		if err != nil {
			return &LayoutError{ChunkID: c.ID(), Err: fmt.Errorf("%w: %w", ErrInvalidPosition, err)}
		}

		m.set.Add(v)
	}

	m.increment = next
	m.seeded = true

	return nil
}

// Merge starts a new run over chunks, ordered by id, and returns the
// merged positions. Only the positions are cleared; the increment left by a
// previous run is kept unless Reset was called.
func (m *Merger) Merge(chunks []*chunk.Chunk) ([]int, error) {
	sorted := slices.Clone(chunks)
	chunk.SortByID(sorted)

	m.set.Clear()
	m.seeded = false

	for _, c := range sorted {
		if err := m.Add(c); err != nil {
			return nil, err
		}
	}

	return m.Positions()
}

// Positions returns the accumulated global change points in ascending order.
func (m *Merger) Positions() ([]int, error) {
	return conv.Uint32sToInts(m.set.ToArray())
}

// Increment returns the current accumulator: the global end of the last
// added chunk.
func (m *Merger) Increment() int { return m.increment }

// Len returns the number of distinct positions collected so far.
func (m *Merger) Len() int { return int(m.set.GetCardinality()) }

// Reset clears the accumulated positions and zeroes the increment.
func (m *Merger) Reset() {
	m.increment = 0
	m.seeded = false
	m.set.Clear()
}
