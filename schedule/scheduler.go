// Package schedule runs a detector over many chunks with bounded parallelism.
//
// A Scheduler owns a queue of chunks and a detector. On construction it
// spreads the detector's change-point budget over the chunks; Run then feeds
// the chunks to a fixed pool of workers that pull from a shared queue until it
// is empty. Each processed chunk is pushed onto a results channel as soon as
// it is done, so results arrive in completion order.
//
// The per-chunk count is original/len(chunks) + 2 in integer arithmetic. A
// penalized detector therefore sees a truncated estimate: 5 change points over
// 3 chunks give 3 per chunk, not 3.67, and a correspondingly smaller penalty.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/chunkcpd/chunk"
	"github.com/hupe1980/chunkcpd/detect"
	"github.com/hupe1980/chunkcpd/resource"
	"github.com/hupe1980/chunkcpd/series"
)

var (
	// ErrInvalidConfig is returned for an unusable scheduler configuration.
	ErrInvalidConfig = errors.New("schedule: invalid configuration")

	// ErrNoChunks is returned when scheduling an empty chunk list.
	ErrNoChunks = errors.New("schedule: no chunks")
)

// ChunkError reports the chunk a detector run failed on.
type ChunkError struct {
	ChunkID int
	Err     error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk %d: %v", e.ChunkID, e.Err)
}

func (e *ChunkError) Unwrap() error { return e.Err }

// ChunkEvent describes one finished detector run.
type ChunkEvent struct {
	ChunkID      int
	Samples      int
	ChangePoints int
	Duration     time.Duration
	Err          error
}

// DefaultWorkers returns half the available CPUs, at least one.
func DefaultWorkers() int {
	return max(runtime.NumCPU()/2, 1)
}

// Option configures a Scheduler.
type Option func(*options)

type options struct {
	workers    int
	logger     *slog.Logger
	controller *resource.Controller
	observer   func(ChunkEvent)
}

// WithWorkers sets the pool size. Values <= 0 select DefaultWorkers.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithController shares detector slots and payload memory with other runs.
func WithController(c *resource.Controller) Option {
	return func(o *options) { o.controller = c }
}

// WithObserver registers a callback invoked after every detector run. It is
// called from worker goroutines.
func WithObserver(fn func(ChunkEvent)) Option {
	return func(o *options) { o.observer = fn }
}

// Scheduler processes chunks in parallel.
type Scheduler struct {
	pending  []*chunk.Chunk
	results  []*chunk.Chunk
	detector *detect.Detector
	original int
	opts     options
}

// New creates a scheduler for chunks. The detector's change-point count is
// rebalanced to original/len(chunks)+2 immediately and restored when Run
// returns.
func New(chunks []*chunk.Chunk, d *detect.Detector, optFns ...Option) (*Scheduler, error) {
	opts := options{logger: slog.New(slog.DiscardHandler)}
	for _, fn := range optFns {
		fn(&opts)
	}

	if d == nil {
		return nil, fmt.Errorf("%w: detector is required", ErrInvalidConfig)
	}

	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}

	cpus := runtime.NumCPU()
	if opts.workers <= 0 {
		opts.workers = DefaultWorkers()
	}

	if opts.workers > cpus {
		return nil, fmt.Errorf("%w: %d workers exceed %d available CPUs", ErrInvalidConfig, opts.workers, cpus)
	}

	s := &Scheduler{
		pending:  chunks,
		detector: d,
		original: d.ChangePointCount(),
		opts:     opts,
	}

	perChunk := s.original/len(chunks) + 2
	d.SetChangePointCount(perChunk)

	opts.logger.Debug("rebalanced change points",
		"original", s.original,
		"per_chunk", perChunk,
		"chunks", len(chunks),
		"workers", opts.workers,
	)

	return s, nil
}

// Workers returns the pool size.
func (s *Scheduler) Workers() int { return s.opts.workers }

// OriginalCount returns the detector's change-point count before rebalancing.
func (s *Scheduler) OriginalCount() int { return s.original }

// Results returns processed chunks in completion order.
func (s *Scheduler) Results() []*chunk.Chunk { return s.results }

type job struct {
	chunk    *chunk.Chunk
	data     series.Matrix
	detector detect.Detector
}

type outcome struct {
	chunk *chunk.Chunk
	cps   []int
}

// Run processes every pending chunk. The first failure cancels the remaining
// work; no results are kept in that case.
func (s *Scheduler) Run(ctx context.Context) error {
	defer s.detector.SetChangePointCount(s.original)

	for _, c := range s.pending {
		if err := c.Validate(); err != nil {
			return &ChunkError{ChunkID: c.ID(), Err: err}
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	jobs := make(chan job)
	results := make(chan outcome, len(s.pending))

	g.Go(func() error {
		defer close(jobs)

		for _, c := range s.pending {
			j := job{chunk: c, data: c.Data().Clone(), detector: *s.detector}

			select {
			case jobs <- j:
			case <-gctx.Done():
				return gctx.Err()
			}
		}

		return nil
	})

	for w := 0; w < s.opts.workers; w++ {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return gctx.Err()
				case j, ok := <-jobs:
					if !ok {
						return nil
					}

					cps, err := s.process(gctx, j)
					if err != nil {
						return &ChunkError{ChunkID: j.chunk.ID(), Err: err}
					}

					results <- outcome{chunk: j.chunk, cps: cps}
				}
			}
		})
	}

	if err := g.Wait(); err != nil {
		s.opts.logger.Error("chunk processing failed", "error", err)
		return err
	}

	close(results)

	processed := make([]*chunk.Chunk, 0, len(s.pending))
	for o := range results {
		o.chunk.SetChangePoints(o.cps)
		processed = append(processed, o.chunk)
	}

	s.results = processed
	s.pending = nil

	return nil
}

func (s *Scheduler) process(ctx context.Context, j job) ([]int, error) {
	rc := s.opts.controller
	bytes := j.data.Bytes()

	if err := rc.AcquireMemory(bytes); err != nil {
		return nil, err
	}
	defer rc.ReleaseMemory(bytes)

	if err := rc.AcquireDetector(ctx); err != nil {
		return nil, err
	}
	defer rc.ReleaseDetector()

	s.opts.logger.Debug("processing chunk", "chunk_id", j.chunk.ID(), "samples", j.data.Rows())

	start := time.Now()
	cps, err := j.detector.Run(ctx, j.data)
	elapsed := time.Since(start)

	if s.opts.observer != nil {
		s.opts.observer(ChunkEvent{
			ChunkID:      j.chunk.ID(),
			Samples:      j.data.Rows(),
			ChangePoints: max(len(cps)-1, 0),
			Duration:     elapsed,
			Err:          err,
		})
	}

	if err != nil {
		return nil, err
	}

	s.opts.logger.Info("chunk processed",
		"chunk_id", j.chunk.ID(),
		"change_points", len(cps)-1,
		"duration", elapsed,
	)

	return cps, nil
}
