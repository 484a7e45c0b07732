// Package chunk defines the unit of parallel work: a contiguous slice of a
// dataset identified by an integer id.
//
// A chunk carries sample data until it has been processed. Afterwards its
// payload is replaced by the local change points, terminated by the chunk
// length, while the id stays the same.
package chunk

import (
	"errors"
	"fmt"
	"slices"

	"github.com/hupe1980/chunkcpd/series"
)

// ErrEmptyPayload is returned when an empty chunk is handed to a detector.
var ErrEmptyPayload = errors.New("chunk: empty payload")

// Span is a half-open range [Start, End) of global sample indices.
type Span struct {
	Start int
	End   int
}

// Len returns the number of samples covered by the span.
func (s Span) Len() int { return s.End - s.Start }

func (s Span) String() string { return fmt.Sprintf("[%d, %d)", s.Start, s.End) }

// Chunk is a single overlapping window of a dataset.
type Chunk struct {
	id           int
	span         Span
	data         series.Matrix
	changePoints []int
	processed    bool
}

// New creates an unprocessed chunk holding data for the given span.
func New(id int, span Span, data series.Matrix) *Chunk {
	return &Chunk{id: id, span: span, data: data}
}

// ID returns the chunk id.
func (c *Chunk) ID() int { return c.id }

// Span returns the global range covered by the chunk.
func (c *Chunk) Span() Span { return c.span }

// Data returns the sample payload. It is empty once the chunk was processed.
func (c *Chunk) Data() series.Matrix { return c.data }

// SetData replaces the sample payload.
func (c *Chunk) SetData(data series.Matrix) {
	c.data = data
	c.changePoints = nil
	c.processed = false
}

// Len returns the number of samples the chunk was built from.
func (c *Chunk) Len() int {
	if c.processed {
		return c.span.Len()
	}

	return c.data.Rows()
}

// Processed reports whether the payload holds change points.
func (c *Chunk) Processed() bool { return c.processed }

// ChangePoints returns the local change points including the trailing sentinel.
func (c *Chunk) ChangePoints() []int { return c.changePoints }

// SetChangePoints drops the sample payload and stores local change points.
func (c *Chunk) SetChangePoints(cps []int) {
	c.changePoints = slices.Clone(cps)
	c.data = series.Matrix{}
	c.processed = true
}

// Validate checks that the chunk can be handed to a detector.
func (c *Chunk) Validate() error {
	if c.data.Empty() {
		return fmt.Errorf("%w: chunk %d", ErrEmptyPayload, c.id)
	}

	return nil
}

// SortByID orders chunks by ascending id in place.
func SortByID(chunks []*Chunk) {
	slices.SortFunc(chunks, func(a, b *Chunk) int { return a.id - b.id })
}
