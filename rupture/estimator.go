package rupture

import (
	"context"
	"fmt"

	"github.com/hupe1980/chunkcpd/detect"
	"github.com/hupe1980/chunkcpd/series"
)

var kernels = map[detect.Model]bool{"linear": true, "rbf": true, "cosine": true}

// Backend creates estimators for every algorithm in package detect.
type Backend struct {
	// Gamma fixes the rbf bandwidth. Zero selects the median heuristic.
	Gamma float64
}

var _ detect.Backend = Backend{}

// NewEstimator returns an unfitted estimator. KernelCPD only accepts the
// kernel models linear, rbf and cosine.
func (b Backend) NewEstimator(alg detect.Algorithm, model detect.Model) (detect.Estimator, error) {
	if alg == nil {
		return nil, fmt.Errorf("%w: nil algorithm", detect.ErrInvalidConfig)
	}

	if _, ok := alg.(detect.KernelCPD); ok && !kernels[model] {
		return nil, fmt.Errorf("%w: %q is not a kernel", ErrUnknownModel, model)
	}

	params := alg.Parameters()

	cost, err := NewCost(string(model), params.Jump)
	if err != nil {
		return nil, err
	}

	if rbf, ok := cost.(*CostRbf); ok {
		rbf.Gamma = b.Gamma
	}

	return &Estimator{alg: alg, params: params, cost: cost}, nil
}

// Estimator runs one algorithm with one cost function.
type Estimator struct {
	alg    detect.Algorithm
	params detect.Params
	cost   Cost
	n      int
	fitted bool
}

// Fit precomputes the cost statistics for data.
func (e *Estimator) Fit(ctx context.Context, data series.Matrix) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := e.cost.Fit(data); err != nil {
		return err
	}

	e.n = data.Rows()
	e.fitted = true

	return nil
}

func (e *Estimator) minSize() int {
	return max(e.params.MinSize, e.cost.MinSize())
}

// PredictCount returns exactly n change points where the algorithm can place
// them, followed by the number of samples.
func (e *Estimator) PredictCount(ctx context.Context, n int) ([]int, error) {
	if !e.fitted {
		return nil, ErrNotFitted
	}

	if n < 0 {
		return nil, fmt.Errorf("%w: negative change-point count %d", detect.ErrInvalidConfig, n)
	}

	minSize, jump := e.minSize(), e.params.Jump

	switch a := e.alg.(type) {
	case detect.Dynp, detect.KernelCPD:
		return dynp(ctx, e.cost, e.n, minSize, jump, n)
	case detect.BinSeg:
		return binseg(ctx, e.cost, e.n, minSize, jump, n, 0)
	case detect.BottomUp:
		return bottomUp(ctx, e.cost, e.n, minSize, jump, n, 0)
	case detect.Window:
		return window(ctx, e.cost, e.n, minSize, jump, a.WindowWidth(), n, 0)
	default:
		return nil, fmt.Errorf("%w: %s with a fixed count", ErrUnsupportedStopping, e.alg.Name())
	}
}

// PredictPenalty returns the change points minimising the cost plus pen per
// change point, followed by the number of samples.
func (e *Estimator) PredictPenalty(ctx context.Context, pen float64) ([]int, error) {
	if !e.fitted {
		return nil, ErrNotFitted
	}

	minSize, jump := e.minSize(), e.params.Jump

	switch a := e.alg.(type) {
	case detect.Pelt, detect.KernelCPD:
		return pelt(ctx, e.cost, e.n, minSize, jump, pen)
	case detect.BinSeg:
		return binseg(ctx, e.cost, e.n, minSize, jump, -1, pen)
	case detect.BottomUp:
		return bottomUp(ctx, e.cost, e.n, minSize, jump, -1, pen)
	case detect.Window:
		return window(ctx, e.cost, e.n, minSize, jump, a.WindowWidth(), -1, pen)
	default:
		return nil, fmt.Errorf("%w: %s with a penalty", ErrUnsupportedStopping, e.alg.Name())
	}
}
