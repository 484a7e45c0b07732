package detect

import (
	"fmt"
	"strings"
)

// Algorithm is one of the supported search methods. The set is closed:
// Pelt, KernelCPD, Dynp, BinSeg, BottomUp and Window.
type Algorithm interface {
	// Name returns the canonical algorithm name.
	Name() string
	// Parameters returns the shared construction parameters with defaults applied.
	Parameters() Params

	isAlgorithm()
}

// Params are the construction parameters shared by all algorithms.
type Params struct {
	// MinSize is the minimum number of samples between two change points.
	MinSize int
	// Jump restricts candidate change points to multiples of Jump.
	Jump int
}

func (p Params) withDefaults() Params {
	if p.MinSize <= 0 {
		p.MinSize = 2
	}

	if p.Jump <= 0 {
		p.Jump = 5
	}

	return p
}

// Pelt is the pruned exact linear time search. It needs a penalty.
type Pelt struct{ Params }

// KernelCPD is a kernel change-point search. It supports both stopping rules.
type KernelCPD struct{ Params }

// Dynp is exact dynamic programming. It needs a fixed change-point count.
type Dynp struct{ Params }

// BinSeg is greedy binary segmentation.
type BinSeg struct{ Params }

// BottomUp merges an initial fine partition greedily.
type BottomUp struct{ Params }

// Window slides two adjacent windows and picks discrepancy peaks.
type Window struct {
	Params
	// Width is the total width of both windows.
	Width int
}

func (Pelt) Name() string      { return "Pelt" }
func (KernelCPD) Name() string { return "KernelCPD" }
func (Dynp) Name() string      { return "Dynp" }
func (BinSeg) Name() string    { return "Binseg" }
func (BottomUp) Name() string  { return "BottomUp" }
func (Window) Name() string    { return "Window" }

func (a Pelt) Parameters() Params      { return a.Params.withDefaults() }
func (a KernelCPD) Parameters() Params { return a.Params.withDefaults() }
func (a Dynp) Parameters() Params      { return a.Params.withDefaults() }
func (a BinSeg) Parameters() Params    { return a.Params.withDefaults() }
func (a BottomUp) Parameters() Params  { return a.Params.withDefaults() }
func (a Window) Parameters() Params    { return a.Params.withDefaults() }

func (Pelt) isAlgorithm()      {}
func (KernelCPD) isAlgorithm() {}
func (Dynp) isAlgorithm()      {}
func (BinSeg) isAlgorithm()    {}
func (BottomUp) isAlgorithm()  {}
func (Window) isAlgorithm()    {}

// WindowWidth returns the configured width or the default of 100 samples.
func (a Window) WindowWidth() int {
	if a.Width <= 0 {
		return 100
	}

	return a.Width
}

// ParseAlgorithm maps a configuration name to an algorithm. Matching ignores
// case. width is only used by Window.
func ParseAlgorithm(name string, params Params, width int) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "pelt":
		return Pelt{params}, nil
	case "kernelcpd", "kernel":
		return KernelCPD{params}, nil
	case "dynp":
		return Dynp{params}, nil
	case "binseg":
		return BinSeg{params}, nil
	case "bottomup":
		return BottomUp{params}, nil
	case "window":
		return Window{Params: params, Width: width}, nil
	default:
		return nil, fmt.Errorf("%w: unknown algorithm %q", ErrInvalidConfig, name)
	}
}

// supports reports whether alg can run with the given stopping rule.
func supports(alg Algorithm, s Stopping) bool {
	switch alg.(type) {
	case Pelt:
		_, ok := s.(Penalized)
		return ok
	case Dynp:
		_, ok := s.(FixedCount)
		return ok
	default:
		return true
	}
}
