// Package detect defines the change-point detector used on every chunk.
//
// A Detector binds an Algorithm, an opaque cost Model and a Stopping rule. The
// statistics themselves are supplied by a Backend, which keeps this package
// free of any estimator code. A Detector is a plain value: copying it yields
// an independent detector that can run on another goroutine.
package detect

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hupe1980/chunkcpd/series"
)

// Model names the cost function. Its interpretation is left to the Backend.
type Model string

// Estimator searches one series for change points. An estimator is fitted
// once and predicted once.
type Estimator interface {
	Fit(ctx context.Context, data series.Matrix) error
	PredictCount(ctx context.Context, n int) ([]int, error)
	PredictPenalty(ctx context.Context, pen float64) ([]int, error)
}

// Backend creates estimators for an algorithm and model.
type Backend interface {
	NewEstimator(alg Algorithm, model Model) (Estimator, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(alg Algorithm, model Model) (Estimator, error)

// NewEstimator calls f.
func (f BackendFunc) NewEstimator(alg Algorithm, model Model) (Estimator, error) {
	return f(alg, model)
}

// DefaultModelParams is the number of parameters per segment assumed by a
// penalty when none are configured.
const DefaultModelParams = 2

// Config describes a detector the way configuration files do.
//
// Exactly one stopping rule must result: either Penalty is set, and
// ChangePoints is the estimated count feeding it, or ChangePoints alone is the
// fixed number of change points. Stopping, when non-nil, takes precedence over
// the flat fields.
type Config struct {
	Algorithm    Algorithm
	Model        Model
	ChangePoints int
	Penalty      string
	ModelParams  int
	Stopping     Stopping

	// Whiten inflates penalties by the mean lag-1 autocorrelation of the data.
	Whiten bool

	Backend Backend
	Logger  *slog.Logger
}

// Detector runs change-point detection on a single series.
type Detector struct {
	algorithm Algorithm
	model     Model
	stopping  Stopping
	whiten    bool
	backend   Backend
	logger    *slog.Logger
}

// New validates cfg and resolves its stopping rule.
func New(cfg Config) (*Detector, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if cfg.Algorithm == nil {
		return nil, fmt.Errorf("%w: algorithm is required", ErrInvalidConfig)
	}

	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model is required", ErrInvalidConfig)
	}

	if cfg.Backend == nil {
		return nil, fmt.Errorf("%w: backend is required", ErrInvalidConfig)
	}

	stopping, err := resolveStopping(cfg, logger)
	if err != nil {
		return nil, err
	}

	if !supports(cfg.Algorithm, stopping) {
		return nil, fmt.Errorf("%w: %s does not support %T stopping", ErrInvalidConfig, cfg.Algorithm.Name(), stopping)
	}

	if _, err := cfg.Backend.NewEstimator(cfg.Algorithm, cfg.Model); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return &Detector{
		algorithm: cfg.Algorithm,
		model:     cfg.Model,
		stopping:  stopping,
		whiten:    cfg.Whiten,
		backend:   cfg.Backend,
		logger:    logger,
	}, nil
}

func resolveStopping(cfg Config, logger *slog.Logger) (Stopping, error) {
	if cfg.Stopping != nil {
		switch s := cfg.Stopping.(type) {
		case FixedCount:
			if s.N < 0 {
				return nil, fmt.Errorf("%w: negative change-point count %d", ErrInvalidConfig, s.N)
			}

			return s, nil
		case Penalized:
			if s.ModelParams <= 0 {
				s.ModelParams = DefaultModelParams
			}

			if _, err := Penalty(s.Kind, 2, 0, 0); err != nil {
				return nil, err
			}

			return s, nil
		default:
			return nil, fmt.Errorf("%w: unknown stopping rule %T", ErrInvalidConfig, cfg.Stopping)
		}
	}

	if strings.TrimSpace(cfg.Penalty) != "" {
		kind, err := ParsePenaltyKind(cfg.Penalty)
		if err != nil {
			return nil, err
		}

		if cfg.ChangePoints <= 0 {
			return nil, fmt.Errorf("%w: penalty %s needs an estimated change-point count", ErrInvalidConfig, kind)
		}

		params := cfg.ModelParams
		if params <= 0 {
			params = DefaultModelParams
		}

		return Penalized{Kind: kind, EstimatedCount: cfg.ChangePoints, ModelParams: params}, nil
	}

	if cfg.ChangePoints <= 0 {
		return nil, fmt.Errorf("%w: neither a penalty nor a change-point count is configured", ErrInvalidConfig)
	}

	if cfg.ModelParams <= 0 {
		logger.Warn("penalty is not defined, so model parameters are ignored", "change_points", cfg.ChangePoints)
	}

	return FixedCount{N: cfg.ChangePoints}, nil
}

// Algorithm returns the configured algorithm.
func (d Detector) Algorithm() Algorithm { return d.algorithm }

// Model returns the configured cost model.
func (d Detector) Model() Model { return d.model }

// Stopping returns the resolved stopping rule.
func (d Detector) Stopping() Stopping { return d.stopping }

// ChangePointCount returns the fixed count or the estimated count feeding the
// penalty.
func (d Detector) ChangePointCount() int { return d.stopping.Count() }

// SetChangePointCount replaces the count used by the stopping rule.
func (d *Detector) SetChangePointCount(n int) {
	d.stopping = d.stopping.withCount(n)
}

// Penalty returns the penalty applied to a series of length t, or false for
// fixed-count detectors.
func (d Detector) Penalty(t int) (float64, bool, error) {
	s, ok := d.stopping.(Penalized)
	if !ok {
		return 0, false, nil
	}

	pen, err := s.Value(t)

	return pen, true, err
}

// Run fits a fresh estimator to data and returns ascending local change
// points. The last element is always data.Rows().
func (d Detector) Run(ctx context.Context, data series.Matrix) ([]int, error) {
	if data.Empty() {
		return nil, ErrEmptyData
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	est, err := d.backend.NewEstimator(d.algorithm, d.model)
	if err != nil {
		return nil, err
	}

	if err := est.Fit(ctx, data); err != nil {
		return nil, fmt.Errorf("fit %s/%s: %w", d.algorithm.Name(), d.model, err)
	}

	var cps []int

	switch s := d.stopping.(type) {
	case FixedCount:
		cps, err = est.PredictCount(ctx, s.N)
	case Penalized:
		var pen float64

		pen, err = s.Value(data.Rows())
		if err != nil {
			return nil, err
		}

		if d.whiten {
			pen = WhitenPenalty(pen, meanAutocorrelation(data))
		}

		d.logger.Debug("predicting with penalty", "penalty", pen, "kind", s.Kind.String(), "samples", data.Rows())
		cps, err = est.PredictPenalty(ctx, pen)
	}

	if err != nil {
		return nil, fmt.Errorf("predict %s/%s: %w", d.algorithm.Name(), d.model, err)
	}

	if err := validateOutput(cps, data.Rows()); err != nil {
		return nil, err
	}

	return cps, nil
}

func (d Detector) String() string {
	return fmt.Sprintf("%s(model=%s, stopping=%+v)", d.algorithm.Name(), d.model, d.stopping)
}

func validateOutput(cps []int, n int) error {
	if len(cps) == 0 || cps[len(cps)-1] != n {
		return fmt.Errorf("%w: missing sentinel %d in %v", ErrInvalidOutput, n, cps)
	}

	prev := 0
	for _, c := range cps {
		if c <= prev {
			return fmt.Errorf("%w: %v is not strictly increasing", ErrInvalidOutput, cps)
		}

		prev = c
	}

	return nil
}

func meanAutocorrelation(data series.Matrix) float64 {
	if data.Dim() == 0 {
		return 0
	}

	var sum float64
	for j := 0; j < data.Dim(); j++ {
		sum += data.Autocorrelation(j)
	}

	return sum / float64(data.Dim())
}
