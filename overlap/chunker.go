// Package overlap splits a dataset into overlapping chunks and merges the
// per-chunk change points back into global coordinates.
//
// Every chunk shares an overlap region with its neighbours so that change
// points close to a chunk border are seen with context on both sides. Merging
// relies on the layout produced by Split: chunk i+1 starts exactly two overlap
// regions before chunk i ends.
package overlap

import (
	"errors"
	"fmt"

	"github.com/hupe1980/chunkcpd/chunk"
	"github.com/hupe1980/chunkcpd/series"
)

var (
	// ErrInvalidConfig is returned for chunk sizes that leave no room
	// between the two overlap regions.
	ErrInvalidConfig = errors.New("overlap: invalid configuration")

	// ErrEmptyDataset is returned when splitting a dataset without samples.
	ErrEmptyDataset = errors.New("overlap: empty dataset")
)

// Layout describes the most recent split.
type Layout struct {
	N          int
	SubsetSize int
	Overlap    int
	Spans      []chunk.Span
}

// Chunker cuts datasets into overlapping chunks.
type Chunker struct {
	chunkSize  int
	overlap    int
	subsetSize int
	layout     Layout
}

// New returns a chunker for chunks of chunkSize samples that overlap their
// neighbours by overlap samples on each side.
func New(chunkSize, overlap int) (*Chunker, error) {
	if overlap < 0 {
		return nil, fmt.Errorf("%w: negative overlap %d", ErrInvalidConfig, overlap)
	}

	subset := chunkSize - 2*overlap
	if subset <= 0 {
		return nil, fmt.Errorf("%w: chunk size %d leaves no samples between overlaps of %d", ErrInvalidConfig, chunkSize, overlap)
	}

	return &Chunker{chunkSize: chunkSize, overlap: overlap, subsetSize: subset}, nil
}

// ChunkSize returns the configured chunk size.
func (c *Chunker) ChunkSize() int { return c.chunkSize }

// Overlap returns the configured overlap region.
func (c *Chunker) Overlap() int { return c.overlap }

// SubsetSize returns the chunk size without both overlap regions.
func (c *Chunker) SubsetSize() int { return c.subsetSize }

// Layout returns the spans of the last Split call.
func (c *Chunker) Layout() Layout { return c.layout }

// Split cuts ds into chunks with consecutive ids starting at startID. Chunk
// data are views of ds.
func (c *Chunker) Split(ds series.Matrix, startID int) ([]*chunk.Chunk, error) {
	spans, err := Spans(ds.Rows(), c.chunkSize, c.overlap)
	if err != nil {
		return nil, err
	}

	c.layout = Layout{N: ds.Rows(), SubsetSize: c.subsetSize, Overlap: c.overlap, Spans: spans}

	chunks := make([]*chunk.Chunk, 0, len(spans))
	for i, s := range spans {
		chunks = append(chunks, chunk.New(startID+i, s, ds.Slice(s.Start, s.End)))
	}

	return chunks, nil
}

// Merge combines processed chunks using the chunker's overlap.
func (c *Chunker) Merge(chunks []*chunk.Chunk) ([]int, error) {
	return Merge(chunks, c.overlap)
}

// Split is a convenience wrapper around New and Chunker.Split.
func Split(ds series.Matrix, chunkSize, overlap, startID int) ([]*chunk.Chunk, error) {
	c, err := New(chunkSize, overlap)
	if err != nil {
		return nil, err
	}

	return c.Split(ds, startID)
}

// Spans computes the chunk ranges for a dataset of n samples.
//
// The first chunk only carries an overlap on its right side, interior chunks
// on both sides. When the walk reaches the end of the data the terminal chunk
// grows by one more overlap if the data does not divide evenly, and a tail
// chunk picks up any remainder the walk did not reach.
func Spans(n, chunkSize, overlap int) ([]chunk.Span, error) {
	if n <= 0 {
		return nil, ErrEmptyDataset
	}

	if overlap < 0 || chunkSize-2*overlap <= 0 {
		return nil, fmt.Errorf("%w: chunk size %d, overlap %d", ErrInvalidConfig, chunkSize, overlap)
	}

	subset := chunkSize - 2*overlap
	numChunks := n / subset
	rest := n % subset

	spans := make([]chunk.Span, 0, numChunks+1)
	start := 0
	terminal := false

	for i := 0; i < numChunks; i++ {
		end := start + subset
		if i == 0 {
			end += overlap
		}

		if i > 0 {
			start -= overlap
		}

		if i < numChunks-1 {
			end += overlap
		}

		if end >= n {
			if rest != 0 {
				end += overlap
			}

			spans = append(spans, clamp(start, end, n))
			terminal = true

			break
		}

		spans = append(spans, clamp(start, end, n))
		start = end - overlap
	}

	if rest > 0 && !terminal {
		spans = append(spans, clamp(start-overlap, n, n))
	}

	return spans, nil
}

func clamp(start, end, n int) chunk.Span {
	return chunk.Span{Start: max(start, 0), End: min(end, n)}
}
