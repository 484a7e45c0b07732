package chunkcpd

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/hupe1980/chunkcpd/dataset"
	"github.com/hupe1980/chunkcpd/detect"
	"github.com/hupe1980/chunkcpd/overlap"
	"github.com/hupe1980/chunkcpd/schedule"
	"github.com/hupe1980/chunkcpd/series"
)

// Result is the outcome of one segmentation.
type Result struct {
	// ChangePoints are ascending, distinct positions in the index space of
	// the segmented dataset.
	ChangePoints []int

	// Samples is the length of the segmented dataset.
	Samples int

	// Chunks is the number of chunks the dataset was split into.
	Chunks int

	// Duration is the wall time of the whole pipeline.
	Duration time.Duration
}

// Labels assigns a segment number to each of n samples. Samples before the
// first change point belong to segment 1; every change point opens the next
// segment.
func (r *Result) Labels(n int) []int {
	return dataset.Label(n, r.ChangePoints)
}

// Segmenter runs the chunk, detect and merge pipeline.
//
// A Segmenter is safe for concurrent use; each Segment call works on its own
// copy of the detector.
type Segmenter struct {
	detector detect.Detector
	opts     options
}

// New returns a segmenter driving d.
func New(d *detect.Detector, optFns ...Option) (*Segmenter, error) {
	if d == nil {
		return nil, fmt.Errorf("%w: detector is required", ErrInvalidConfig)
	}

	opts := applyOptions(optFns)

	if _, err := overlap.New(opts.chunkSize, opts.overlap); err != nil {
		return nil, translateError(err)
	}

	if opts.workers > runtime.NumCPU() {
		return nil, fmt.Errorf("%w: %d workers exceed %d available CPUs", ErrInvalidConfig, opts.workers, runtime.NumCPU())
	}

	if opts.minDistance < 0 {
		return nil, fmt.Errorf("%w: negative minimum distance %d", ErrInvalidConfig, opts.minDistance)
	}

	return &Segmenter{detector: *d, opts: opts}, nil
}

// Detector returns a copy of the configured detector.
func (s *Segmenter) Detector() detect.Detector { return s.detector }

// Segment detects the change points of ds.
func (s *Segmenter) Segment(ctx context.Context, ds series.Matrix) (*Result, error) {
	start := time.Now()

	res, err := s.segment(ctx, ds)
	res.Duration = time.Since(start)

	err = translateError(err)

	s.opts.metricsCollector.RecordSegment(ds.Rows(), len(res.ChangePoints), res.Duration, err)
	s.opts.logger.LogSegment(ctx, ds.Rows(), len(res.ChangePoints), res.Duration, err)

	if err != nil {
		return nil, err
	}

	return res, nil
}

func (s *Segmenter) segment(ctx context.Context, ds series.Matrix) (*Result, error) {
	res := &Result{Samples: ds.Rows()}

	if ds.Empty() {
		return res, overlap.ErrEmptyDataset
	}

	if s.opts.scale {
		ds = series.StandardScale(ds)
	}

	chunker, err := overlap.New(s.opts.chunkSize, s.opts.overlap)
	if err != nil {
		return res, err
	}

	chunks, err := chunker.Split(ds, s.opts.startID)
	if err != nil {
		return res, err
	}

	res.Chunks = len(chunks)
	s.opts.logger.LogSplit(ctx, ds.Rows(), len(chunks), s.opts.overlap)

	det := s.detector
	mc := s.opts.metricsCollector

	sched, err := schedule.New(chunks, &det,
		schedule.WithWorkers(s.opts.workers),
		schedule.WithLogger(s.opts.logger.Logger),
		schedule.WithController(s.opts.controller),
		schedule.WithObserver(func(ev schedule.ChunkEvent) {
			mc.RecordChunk(ev.ChunkID, ev.Samples, ev.ChangePoints, ev.Duration, ev.Err)
		}),
	)
	if err != nil {
		return res, err
	}

	if err := sched.Run(ctx); err != nil {
		return res, err
	}

	mergeStart := time.Now()
	cps, err := chunker.Merge(sched.Results())
	s.opts.logger.LogMerge(ctx, len(chunks), len(cps), err)

	if err != nil {
		return res, err
	}

	mc.RecordMerge(len(chunks), len(cps), time.Since(mergeStart))

	if s.opts.minDistance > 0 {
		before := len(cps)
		cps = detect.AdaptiveMeanFilter(ds, cps, s.opts.minDistance)
		s.opts.logger.LogFilter(ctx, before, len(cps), s.opts.minDistance)
	}

	res.ChangePoints = cps

	return res, nil
}
