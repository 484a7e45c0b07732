package detect

import (
	"fmt"
	"math"
	"strings"
)

// PenaltyKind selects an information criterion.
type PenaltyKind int

const (
	// SIC is the Schwarz information criterion.
	SIC PenaltyKind = iota + 1
	// BIC is the Bayesian information criterion, identical to SIC.
	BIC
	// AIC is the Akaike information criterion.
	AIC
	// HannanQuinn is the Hannan-Quinn information criterion.
	HannanQuinn
)

func (k PenaltyKind) String() string {
	switch k {
	case SIC:
		return "SIC"
	case BIC:
		return "BIC"
	case AIC:
		return "AIC"
	case HannanQuinn:
		return "Hannan Quinn"
	default:
		return fmt.Sprintf("PenaltyKind(%d)", int(k))
	}
}

// ParsePenaltyKind maps a configuration name to a penalty kind. Matching
// ignores case; "hannan quinn", "hannan-quinn" and "hq" are accepted.
func ParsePenaltyKind(name string) (PenaltyKind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sic":
		return SIC, nil
	case "bic":
		return BIC, nil
	case "aic":
		return AIC, nil
	case "hannan quinn", "hannan-quinn", "hannanquinn", "hq":
		return HannanQuinn, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedPenalty, name)
	}
}

// Penalty returns the penalty for a series of length t, an estimated number
// of change points k and p parameters per segment model.
func Penalty(kind PenaltyKind, t, k, p int) (float64, error) {
	if t <= 1 {
		return 0, fmt.Errorf("%w: series length %d too short for a penalty", ErrInvalidConfig, t)
	}

	pk := float64(p * k)

	switch kind {
	case SIC, BIC:
		return pk * math.Log(float64(t)), nil
	case AIC:
		return 2 * pk, nil
	case HannanQuinn:
		return 2 * pk * math.Log(math.Log(float64(t))), nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedPenalty, kind)
	}
}

// WhitenPenalty inflates pen for a series with lag-1 autocorrelation ac.
// Strongly autocorrelated noise otherwise produces spurious change points.
func WhitenPenalty(pen, ac float64) float64 {
	return pen * (1 + math.Abs(ac))
}
