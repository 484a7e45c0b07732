package detect

// Stopping decides when an algorithm stops adding change points. It is
// either FixedCount or Penalized.
type Stopping interface {
	// Count returns the target or estimated number of change points.
	Count() int

	withCount(n int) Stopping
}

// FixedCount asks for exactly N change points.
type FixedCount struct {
	N int
}

// Penalized stops when an additional change point no longer pays for the
// penalty derived from Kind, EstimatedCount and ModelParams.
type Penalized struct {
	Kind           PenaltyKind
	EstimatedCount int
	ModelParams    int
}

// Count returns N.
func (s FixedCount) Count() int { return s.N }

// Count returns the estimated number of change points.
func (s Penalized) Count() int { return s.EstimatedCount }

func (s FixedCount) withCount(n int) Stopping {
	s.N = n
	return s
}

func (s Penalized) withCount(n int) Stopping {
	s.EstimatedCount = n
	return s
}

// Value returns the penalty for a series of length t.
func (s Penalized) Value(t int) (float64, error) {
	return Penalty(s.Kind, t, s.EstimatedCount, s.ModelParams)
}
