package detect

import "errors"

var (
	// ErrInvalidConfig is returned for a detector configuration that cannot run.
	ErrInvalidConfig = errors.New("detect: invalid configuration")

	// ErrUnsupportedPenalty is returned for an unknown penalty kind.
	ErrUnsupportedPenalty = errors.New("detect: unsupported penalty")

	// ErrEmptyData is returned when running a detector on no samples.
	ErrEmptyData = errors.New("detect: empty data")

	// ErrInvalidOutput is returned when an estimator result is not an
	// ascending sequence ending with the series length.
	ErrInvalidOutput = errors.New("detect: invalid estimator output")
)
