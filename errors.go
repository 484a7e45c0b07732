package chunkcpd

import (
	"errors"
	"fmt"

	"github.com/hupe1980/chunkcpd/detect"
	"github.com/hupe1980/chunkcpd/overlap"
	"github.com/hupe1980/chunkcpd/schedule"
)

var (
	// ErrInvalidConfig is returned for an unusable segmenter, chunker,
	// scheduler or detector configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnsupportedPenalty is returned for an unknown penalty kind.
	ErrUnsupportedPenalty = errors.New("unsupported penalty")

	// ErrEmptyDataset is returned when segmenting a dataset without samples.
	ErrEmptyDataset = errors.New("empty dataset")

	// ErrInvalidLayout is returned when chunk results cannot be merged back
	// into global coordinates.
	ErrInvalidLayout = errors.New("invalid chunk layout")
)

// ErrChunkFailed indicates that detection failed on one chunk.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrChunkFailed struct {
	ChunkID int
	cause   error
}

func (e *ErrChunkFailed) Error() string {
	return fmt.Sprintf("chunk %d failed: %v", e.ChunkID, e.cause)
}

func (e *ErrChunkFailed) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Configuration normalization.
	if errors.Is(err, overlap.ErrInvalidConfig) ||
		errors.Is(err, schedule.ErrInvalidConfig) ||
		errors.Is(err, detect.ErrInvalidConfig) {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if errors.Is(err, detect.ErrUnsupportedPenalty) {
		return fmt.Errorf("%w: %w", ErrUnsupportedPenalty, err)
	}

	if errors.Is(err, overlap.ErrEmptyDataset) || errors.Is(err, detect.ErrEmptyData) {
		return fmt.Errorf("%w: %w", ErrEmptyDataset, err)
	}

	var le *overlap.LayoutError
	if errors.As(err, &le) {
		return fmt.Errorf("%w: %w", ErrInvalidLayout, err)
	}

	var ce *schedule.ChunkError
	if errors.As(err, &ce) {
		return &ErrChunkFailed{ChunkID: ce.ChunkID, cause: err}
	}

	return err
}
