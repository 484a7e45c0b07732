package chunkcpd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/chunkcpd/detect"
	"github.com/hupe1980/chunkcpd/rupture"
	"github.com/hupe1980/chunkcpd/series"
	"github.com/hupe1980/chunkcpd/testutil"
)

func peltDetector(t *testing.T) *detect.Detector {
	t.Helper()

	d, err := detect.New(detect.Config{
		Algorithm:    detect.Pelt{Params: detect.Params{MinSize: 10, Jump: 5}},
		Model:        "l2",
		ChangePoints: 2,
		Penalty:      "bic",
		Backend:      rupture.Backend{},
	})
	require.NoError(t, err)

	return d
}

func twoShifts() (series.Matrix, []int) {
	return testutil.NewRNG(7).Piecewise([]testutil.Segment{
		{Len: 300, Mean: 0},
		{Len: 350, Mean: 4},
		{Len: 350, Mean: -2},
	}, 3, 0.1)
}

func TestSegment(t *testing.T) {
	data, _ := twoShifts()
	metrics := &BasicMetricsCollector{}

	seg, err := New(peltDetector(t),
		WithChunkSize(400),
		WithOverlap(50),
		WithWorkers(1),
		WithMetricsCollector(metrics),
	)
	require.NoError(t, err)

	res, err := seg.Segment(context.Background(), data)
	require.NoError(t, err)

	assert.Equal(t, []int{300, 650}, res.ChangePoints)
	assert.Equal(t, 4, res.Chunks)
	assert.Equal(t, 1000, res.Samples)
	assert.Positive(t, res.Duration)

	stats := metrics.GetStats()
	assert.Equal(t, int64(4), stats.ChunkCount)
	assert.Equal(t, int64(0), stats.ChunkErrors)
	assert.Equal(t, int64(400+400+350+150), stats.ChunkSamples)
	assert.Equal(t, int64(1), stats.MergeCount)
	assert.Equal(t, int64(2), stats.MergePositions)
	assert.Equal(t, int64(1), stats.SegmentCount)
	assert.Equal(t, int64(1000), stats.SegmentSamples)

	// A second run starts from a fresh merge accumulator.
	again, err := seg.Segment(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, res.ChangePoints, again.ChangePoints)

	// The caller's detector keeps its configured count.
	assert.Equal(t, 2, seg.Detector().ChangePointCount())
}

func TestSegmentSingleChunk(t *testing.T) {
	data, want := twoShifts()

	seg, err := New(peltDetector(t), WithChunkSize(5000), WithOverlap(50), WithWorkers(1))
	require.NoError(t, err)

	res, err := seg.Segment(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Chunks)
	assert.Equal(t, want[:len(want)-1], res.ChangePoints)
}

func TestSegmentScaling(t *testing.T) {
	data, _ := twoShifts()
	orig := data.Clone()

	seg, err := New(peltDetector(t), WithChunkSize(400), WithOverlap(50), WithWorkers(1), WithStandardScaling())
	require.NoError(t, err)

	res, err := seg.Segment(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, []int{300, 650}, res.ChangePoints)
	assert.Equal(t, orig.Flat(), data.Flat(), "input must not be scaled in place")
}

func TestSegmentMinDistance(t *testing.T) {
	data, _ := testutil.NewRNG(8).Piecewise([]testutil.Segment{
		{Len: 200, Mean: 0},
		{Len: 20, Mean: 6},
		{Len: 180, Mean: 1},
	}, 1, 0.05)

	d := peltDetector(t)

	raw, err := New(d, WithChunkSize(1000), WithOverlap(10), WithWorkers(1))
	require.NoError(t, err)

	res, err := raw.Segment(context.Background(), data)
	require.NoError(t, err)
	require.Equal(t, []int{200, 220}, res.ChangePoints)

	filtered, err := New(d, WithChunkSize(1000), WithOverlap(10), WithWorkers(1), WithMinDistance(50))
	require.NoError(t, err)

	res, err = filtered.Segment(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, []int{220}, res.ChangePoints, "the later point wins on the higher mean")
}

type failingEstimator struct{}

func (failingEstimator) Fit(context.Context, series.Matrix) error { return nil }

func (failingEstimator) PredictCount(context.Context, int) ([]int, error) {
	return nil, errors.New("boom")
}

func (failingEstimator) PredictPenalty(context.Context, float64) ([]int, error) {
	return nil, errors.New("boom")
}

func TestSegmentChunkFailure(t *testing.T) {
	d, err := detect.New(detect.Config{
		Algorithm:    detect.BinSeg{},
		Model:        "l2",
		ChangePoints: 3,
		Backend: detect.BackendFunc(func(detect.Algorithm, detect.Model) (detect.Estimator, error) {
			return failingEstimator{}, nil
		}),
	})
	require.NoError(t, err)

	metrics := &BasicMetricsCollector{}

	seg, err := New(d, WithChunkSize(100), WithOverlap(10), WithWorkers(1), WithMetricsCollector(metrics))
	require.NoError(t, err)

	_, err = seg.Segment(context.Background(), testutil.Ramp(250))
	require.Error(t, err)

	var cf *ErrChunkFailed
	require.ErrorAs(t, err, &cf)
	assert.Equal(t, 0, cf.ChunkID)

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.SegmentErrors)
	assert.GreaterOrEqual(t, stats.ChunkErrors, int64(1))
}

func TestSegmentErrors(t *testing.T) {
	d := peltDetector(t)

	_, err := New(nil)
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(d, WithChunkSize(100), WithOverlap(50))
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(d, WithMinDistance(-1))
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(d, WithWorkers(1<<20))
	require.ErrorIs(t, err, ErrInvalidConfig)

	seg, err := New(d, WithWorkers(1))
	require.NoError(t, err)

	_, err = seg.Segment(context.Background(), series.New(0, 2))
	require.ErrorIs(t, err, ErrEmptyDataset)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	data, _ := twoShifts()
	_, err = seg.Segment(ctx, data)
	require.ErrorIs(t, err, context.Canceled)
}

func TestLabels(t *testing.T) {
	res := &Result{ChangePoints: []int{2, 5}}
	assert.Equal(t, []int{1, 1, 2, 2, 2, 3, 3}, res.Labels(7))

	empty := &Result{}
	assert.Equal(t, []int{1, 1, 1}, empty.Labels(3))

	beyond := &Result{ChangePoints: []int{2, 9}}
	assert.Equal(t, []int{1, 1, 2, 2}, beyond.Labels(4))
}

func TestTranslateError(t *testing.T) {
	assert.NoError(t, translateError(nil))

	err := translateError(detect.ErrUnsupportedPenalty)
	assert.ErrorIs(t, err, ErrUnsupportedPenalty)
	assert.ErrorIs(t, err, detect.ErrUnsupportedPenalty)

	other := errors.New("other")
	assert.Equal(t, other, translateError(other))
}
