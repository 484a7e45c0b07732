package rupture

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/chunkcpd/detect"
	"github.com/hupe1980/chunkcpd/series"
	"github.com/hupe1980/chunkcpd/testutil"
)

var threeSegments = []testutil.Segment{{Len: 100, Mean: 0}, {Len: 150, Mean: 5}, {Len: 50, Mean: -3}}

func fit(t *testing.T, alg detect.Algorithm, model detect.Model, data series.Matrix) detect.Estimator {
	t.Helper()

	est, err := Backend{}.NewEstimator(alg, model)
	require.NoError(t, err)
	require.NoError(t, est.Fit(context.Background(), data))

	return est
}

func TestFixedCount(t *testing.T) {
	data, want := testutil.NewRNG(1).Piecewise(threeSegments, 3, 0.1)
	params := detect.Params{MinSize: 10, Jump: 5}

	cases := []struct {
		name  string
		alg   detect.Algorithm
		model detect.Model
	}{
		{"Dynp/l2", detect.Dynp{Params: params}, "l2"},
		{"Dynp/l1", detect.Dynp{Params: params}, "l1"},
		{"Dynp/normal", detect.Dynp{Params: params}, "normal"},
		{"BinSeg/l2", detect.BinSeg{Params: params}, "l2"},
		{"BottomUp/l2", detect.BottomUp{Params: params}, "l2"},
		{"Window/l2", detect.Window{Params: params, Width: 40}, "l2"},
		{"KernelCPD/rbf", detect.KernelCPD{Params: params}, "rbf"},
		{"KernelCPD/linear", detect.KernelCPD{Params: params}, "linear"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			est := fit(t, tc.alg, tc.model, data)

			got, err := est.PredictCount(context.Background(), 2)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestPenalized(t *testing.T) {
	data, want := testutil.NewRNG(2).Piecewise(threeSegments, 3, 0.1)
	params := detect.Params{MinSize: 10, Jump: 5}

	bic, err := detect.Penalty(detect.BIC, data.Rows(), 2, 2)
	require.NoError(t, err)

	cases := []struct {
		name  string
		alg   detect.Algorithm
		model detect.Model
		pen   float64
	}{
		{"Pelt/l2", detect.Pelt{Params: params}, "l2", bic},
		{"Pelt/normal", detect.Pelt{Params: params}, "normal", 100},
		{"BinSeg/l2", detect.BinSeg{Params: params}, "l2", bic},
		{"BottomUp/l2", detect.BottomUp{Params: params}, "l2", bic},
		{"Window/l2", detect.Window{Params: params, Width: 40}, "l2", bic},
		{"KernelCPD/rbf", detect.KernelCPD{Params: params}, "rbf", 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			est := fit(t, tc.alg, tc.model, data)

			got, err := est.PredictPenalty(context.Background(), tc.pen)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestSentinelAlwaysPresent(t *testing.T) {
	rng := testutil.NewRNG(3)
	params := detect.Params{MinSize: 3, Jump: 2}

	algs := []detect.Algorithm{
		detect.BinSeg{Params: params},
		detect.BottomUp{Params: params},
		detect.Window{Params: params, Width: 10},
		detect.KernelCPD{Params: params},
	}

	for _, n := range []int{1, 2, 5, 17, 64} {
		data, _ := rng.Piecewise([]testutil.Segment{{Len: n, Mean: 1}}, 2, 1)

		for _, alg := range algs {
			model := detect.Model("l2")
			if _, ok := alg.(detect.KernelCPD); ok {
				model = "rbf"
			}

			est := fit(t, alg, model, data)

			got, err := est.PredictPenalty(context.Background(), 0.5)
			require.NoError(t, err, "%s n=%d", alg.Name(), n)
			require.NotEmpty(t, got)
			assert.Equal(t, n, got[len(got)-1], "%s n=%d", alg.Name(), n)

			for i := 1; i < len(got); i++ {
				assert.Less(t, got[i-1], got[i])
			}
		}
	}
}

func TestPeltShortSeries(t *testing.T) {
	data := series.FromValues([]float64{1, 2, 3})
	est := fit(t, detect.Pelt{Params: detect.Params{MinSize: 10, Jump: 5}}, "l2", data)

	got, err := est.PredictPenalty(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, got)
}

func TestDynpNotEnoughPoints(t *testing.T) {
	data, _ := testutil.NewRNG(4).Piecewise([]testutil.Segment{{Len: 40, Mean: 0}}, 1, 1)
	est := fit(t, detect.Dynp{Params: detect.Params{MinSize: 20, Jump: 5}}, "l2", data)

	_, err := est.PredictCount(context.Background(), 3)
	require.ErrorIs(t, err, ErrNotEnoughPoints)
}

func TestUnsupportedStopping(t *testing.T) {
	data := series.FromValues(make([]float64, 50))

	pelt := fit(t, detect.Pelt{}, "l2", data)
	_, err := pelt.PredictCount(context.Background(), 2)
	require.ErrorIs(t, err, ErrUnsupportedStopping)

	dp := fit(t, detect.Dynp{}, "l2", data)
	_, err = dp.PredictPenalty(context.Background(), 2)
	require.ErrorIs(t, err, ErrUnsupportedStopping)
}

func TestNewEstimatorErrors(t *testing.T) {
	_, err := Backend{}.NewEstimator(detect.Pelt{}, "ar")
	require.ErrorIs(t, err, ErrUnknownModel)

	_, err = Backend{}.NewEstimator(detect.KernelCPD{}, "l2")
	require.ErrorIs(t, err, ErrUnknownModel)

	est, err := Backend{}.NewEstimator(detect.BinSeg{}, "l2")
	require.NoError(t, err)

	_, err = est.PredictCount(context.Background(), 1)
	require.ErrorIs(t, err, ErrNotFitted)
}

func TestCancelledPrediction(t *testing.T) {
	data, _ := testutil.NewRNG(5).Piecewise(threeSegments, 1, 0.1)
	est := fit(t, detect.Pelt{Params: detect.Params{MinSize: 2, Jump: 1}}, "l2", data)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := est.PredictPenalty(ctx, 10)
	require.ErrorIs(t, err, context.Canceled)
}

func TestDetectorScenario(t *testing.T) {
	data, want := testutil.NewRNG(6).SineSegments([]int{100, 150, 50}, 2.0, 0.05)
	require.Equal(t, []int{100, 250, 300}, want)

	d, err := detect.New(detect.Config{
		Algorithm:    detect.Dynp{Params: detect.Params{MinSize: 20, Jump: 5}},
		Model:        "l2",
		ChangePoints: 2,
		Backend:      Backend{},
	})
	require.NoError(t, err)

	got, err := d.Run(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, []int{100, 250, 300}, got)
}
