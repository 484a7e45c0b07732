package chunkcpd

import (
	"log/slog"

	"github.com/hupe1980/chunkcpd/resource"
)

const (
	// DefaultChunkSize is the number of samples per chunk.
	DefaultChunkSize = 40000

	// DefaultOverlap is the number of samples shared with each neighbour.
	DefaultOverlap = 300
)

type options struct {
	chunkSize        int
	overlap          int
	startID          int
	workers          int
	minDistance      int
	scale            bool
	controller       *resource.Controller
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures a Segmenter.
type Option func(*options)

// WithChunkSize sets the number of samples per chunk, overlap regions
// included. It must exceed twice the overlap.
func WithChunkSize(n int) Option {
	return func(o *options) {
		o.chunkSize = n
	}
}

// WithOverlap sets the number of samples a chunk shares with each neighbour.
func WithOverlap(n int) Option {
	return func(o *options) {
		o.overlap = n
	}
}

// WithStartID sets the id of the first chunk.
func WithStartID(id int) Option {
	return func(o *options) {
		o.startID = id
	}
}

// WithWorkers sets the number of parallel detector runs.
//
// Values <= 0 select half the available CPUs. More workers than CPUs is a
// configuration error.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithMinDistance enables the adaptive mean filter on the merged result.
// Change points closer than n samples to their predecessor are collapsed.
// Zero disables filtering.
func WithMinDistance(n int) Option {
	return func(o *options) {
		o.minDistance = n
	}
}

// WithStandardScaling centers every channel and scales it to unit variance
// before chunking.
func WithStandardScaling() Option {
	return func(o *options) {
		o.scale = true
	}
}

// WithController shares detector slots and payload memory limits with other
// segmenters.
//
// Example:
//
//	rc := resource.NewController(resource.Config{MaxDetectors: 4, MemoryLimitBytes: 1 << 30})
//	seg, _ := chunkcpd.New(d, chunkcpd.WithController(rc))
func WithController(rc *resource.Controller) Option {
	return func(o *options) {
		o.controller = rc
	}
}

// WithMetricsCollector configures a metrics collector for monitoring runs.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &chunkcpd.BasicMetricsCollector{}
//	seg, _ := chunkcpd.New(d, chunkcpd.WithMetricsCollector(metrics))
//	// ... segment ...
//	stats := metrics.GetStats()
//	fmt.Printf("Chunks: %d, Avg latency: %dns\n", stats.ChunkCount, stats.ChunkAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for runs.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := chunkcpd.NewJSONLogger(slog.LevelInfo)
//	seg, _ := chunkcpd.New(d, chunkcpd.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		chunkSize:        DefaultChunkSize,
		overlap:          DefaultOverlap,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	return o
}
