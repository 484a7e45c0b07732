package chunkcpd

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like
// Prometheus; package prom ships one.
type MetricsCollector interface {
	// RecordChunk is called after each detector run on a chunk.
	// changePoints excludes the trailing sentinel, err is nil if successful.
	RecordChunk(chunkID, samples, changePoints int, duration time.Duration, err error)

	// RecordMerge is called after the chunk results were projected into
	// global coordinates.
	RecordMerge(chunks, positions int, duration time.Duration)

	// RecordSegment is called after each Segment call.
	RecordSegment(samples, changePoints int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordChunk(int, int, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordMerge(int, int, time.Duration)             {}
func (NoopMetricsCollector) RecordSegment(int, int, time.Duration, error)    {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	ChunkCount        atomic.Int64
	ChunkErrors       atomic.Int64
	ChunkSamples      atomic.Int64
	ChunkChangePoints atomic.Int64
	ChunkTotalNanos   atomic.Int64
	MergeCount        atomic.Int64
	MergePositions    atomic.Int64
	SegmentCount      atomic.Int64
	SegmentErrors     atomic.Int64
	SegmentSamples    atomic.Int64
	SegmentTotalNanos atomic.Int64
}

// RecordChunk implements MetricsCollector.
func (b *BasicMetricsCollector) RecordChunk(_, samples, changePoints int, duration time.Duration, err error) {
	b.ChunkCount.Add(1)
	b.ChunkTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ChunkErrors.Add(1)
		return
	}
	b.ChunkSamples.Add(int64(samples))
	b.ChunkChangePoints.Add(int64(changePoints))
}

// RecordMerge implements MetricsCollector.
func (b *BasicMetricsCollector) RecordMerge(_, positions int, _ time.Duration) {
	b.MergeCount.Add(1)
	b.MergePositions.Add(int64(positions))
}

// RecordSegment implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSegment(samples, _ int, duration time.Duration, err error) {
	b.SegmentCount.Add(1)
	b.SegmentTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SegmentErrors.Add(1)
		return
	}
	b.SegmentSamples.Add(int64(samples))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		ChunkCount:        b.ChunkCount.Load(),
		ChunkErrors:       b.ChunkErrors.Load(),
		ChunkSamples:      b.ChunkSamples.Load(),
		ChunkChangePoints: b.ChunkChangePoints.Load(),
		ChunkAvgNanos:     avg(b.ChunkTotalNanos.Load(), b.ChunkCount.Load()),
		MergeCount:        b.MergeCount.Load(),
		MergePositions:    b.MergePositions.Load(),
		SegmentCount:      b.SegmentCount.Load(),
		SegmentErrors:     b.SegmentErrors.Load(),
		SegmentSamples:    b.SegmentSamples.Load(),
		SegmentAvgNanos:   avg(b.SegmentTotalNanos.Load(), b.SegmentCount.Load()),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	ChunkCount        int64
	ChunkErrors       int64
	ChunkSamples      int64
	ChunkChangePoints int64
	ChunkAvgNanos     int64
	MergeCount        int64
	MergePositions    int64
	SegmentCount      int64
	SegmentErrors     int64
	SegmentSamples    int64
	SegmentAvgNanos   int64
}
