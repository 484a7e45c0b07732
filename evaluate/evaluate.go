// Package evaluate scores detected change points against ground truth.
//
// All functions take ascending change points of a series with n samples. A
// trailing n, as produced by detectors, is accepted and ignored.
package evaluate

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/chunkcpd/internal/conv"
)

// ErrInvalidPoints is returned for change points that are not strictly
// ascending inside (0, n).
var ErrInvalidPoints = errors.New("evaluate: invalid change points")

// Summary holds every quality metric of one prediction.
type Summary struct {
	AnnotationError int     `json:"annotation_error"`
	Hausdorff       int     `json:"hausdorff"`
	Precision       float64 `json:"precision"`
	Recall          float64 `json:"recall"`
	F1              float64 `json:"f1"`
	RandIndex       float64 `json:"rand_index"`
	NMI             float64 `json:"nmi"`
	Margin          float64 `json:"margin"`
}

// Compute scores pred against truth. Precision and recall accept a predicted
// point within margin samples of a true one.
func Compute(truth, pred []int, n int, margin float64) (Summary, error) {
	t, err := normalize(truth, n)
	if err != nil {
		return Summary{}, fmt.Errorf("truth: %w", err)
	}

	p, err := normalize(pred, n)
	if err != nil {
		return Summary{}, fmt.Errorf("prediction: %w", err)
	}

	precision, recall := precisionRecall(t, p, margin)

	return Summary{
		AnnotationError: AnnotationError(t, p),
		Hausdorff:       hausdorff(t, p, n),
		Precision:       precision,
		Recall:          recall,
		F1:              F1(precision, recall),
		RandIndex:       randIndex(t, p, n),
		NMI:             nmi(t, p, n),
		Margin:          margin,
	}, nil
}

// Margin converts a share of the recording duration into samples.
func Margin(samples int, duration time.Duration, share float64) float64 {
	secs := duration.Seconds()
	if secs <= 0 {
		return 0
	}

	return float64(samples) / secs * share
}

// AnnotationError is the difference in the number of change points. Both
// slices must either carry the trailing sentinel or omit it.
func AnnotationError(truth, pred []int) int {
	return abs(len(truth) - len(pred))
}

// Hausdorff returns the largest distance from a change point of either set to
// the closest point of the other set. It is 0 when both sets are empty and n
// when only one is.
func Hausdorff(truth, pred []int, n int) (int, error) {
	t, p, err := normalizeBoth(truth, pred, n)
	if err != nil {
		return 0, err
	}

	return hausdorff(t, p, n), nil
}

func hausdorff(a, b []int, n int) int {
	switch {
	case len(a) == 0 && len(b) == 0:
		return 0
	case len(a) == 0 || len(b) == 0:
		return n
	}

	return max(directed(a, b), directed(b, a))
}

func directed(from, to []int) int {
	worst := 0

	for _, x := range from {
		best := math.MaxInt
		for _, y := range to {
			best = min(best, abs(x-y))
		}

		worst = max(worst, best)
	}

	return worst
}

// PrecisionRecall counts a true change point as found when a predicted point
// lies in [t-margin, t+margin). Every predicted point confirms at most one
// true point.
func PrecisionRecall(truth, pred []int, n int, margin float64) (precision, recall float64, err error) {
	t, p, err := normalizeBoth(truth, pred, n)
	if err != nil {
		return 0, 0, err
	}

	precision, recall = precisionRecall(t, p, margin)

	return precision, recall, nil
}

func precisionRecall(truth, pred []int, margin float64) (float64, float64) {
	if len(pred) == 0 {
		return 0, 0
	}

	used := roaring.New()
	found := roaring.New()

	for _, t := range truth {
		for _, p := range pred {
			fp := float64(p)
			if fp < float64(t)-margin || fp >= float64(t)+margin {
				continue
			}

			// Positions were validated to lie inside (0, n).
			pv, _ := conv.IntToUint32(p)
			if used.Contains(pv) {
				continue
			}

			used.Add(pv)

			tv, _ := conv.IntToUint32(t)
			found.Add(tv)
		}
	}

	tp := float64(found.GetCardinality())
	precision := tp / float64(len(pred))

	recall := 0.0
	if len(truth) > 0 {
		recall = tp / float64(len(truth))
	}

	return precision, recall
}

// F1 is the harmonic mean of precision and recall.
func F1(precision, recall float64) float64 {
	if precision == 0 && recall == 0 {
		return 0
	}

	return 2 * precision * recall / (precision + recall)
}

// RandIndex is the share of sample pairs on which both segmentations agree:
// both in the same segment or both in different segments.
func RandIndex(truth, pred []int, n int) (float64, error) {
	t, p, err := normalizeBoth(truth, pred, n)
	if err != nil {
		return 0, err
	}

	return randIndex(t, p, n), nil
}

func randIndex(a, b []int, n int) float64 {
	if n < 2 {
		return 1
	}

	ct := contingency(a, b, n)

	var sumCells, sumRows, sumCols float64

	for _, row := range ct.cells {
		for _, c := range row {
			sumCells += pairs(c)
		}
	}

	for _, r := range ct.rows {
		sumRows += pairs(r)
	}

	for _, c := range ct.cols {
		sumCols += pairs(c)
	}

	total := pairs(n)

	return (total + 2*sumCells - sumRows - sumCols) / total
}

// NMI is the normalized mutual information of the two segment labelings,
// normalized by the arithmetic mean of their entropies.
func NMI(truth, pred []int, n int) (float64, error) {
	t, p, err := normalizeBoth(truth, pred, n)
	if err != nil {
		return 0, err
	}

	return nmi(t, p, n), nil
}

func nmi(a, b []int, n int) float64 {
	if n == 0 || (len(a) == 0 && len(b) == 0) {
		return 1
	}

	ct := contingency(a, b, n)
	total := float64(n)

	mi := 0.0

	for i, row := range ct.cells {
		for j, c := range row {
			if c == 0 {
				continue
			}

			pij := float64(c) / total
			mi += pij * math.Log(pij*total*total/(float64(ct.rows[i])*float64(ct.cols[j])))
		}
	}

	if mi <= 0 {
		return 0
	}

	norm := (entropy(ct.rows, total) + entropy(ct.cols, total)) / 2

	return mi / max(norm, math.SmallestNonzeroFloat64)
}

func entropy(counts []int, total float64) float64 {
	h := 0.0

	for _, c := range counts {
		if c == 0 {
			continue
		}

		p := float64(c) / total
		h -= p * math.Log(p)
	}

	return h
}

type table struct {
	cells [][]int
	rows  []int
	cols  []int
}

// contingency counts the samples shared by every pair of segments.
func contingency(a, b []int, n int) table {
	sa := bounds(a, n)
	sb := bounds(b, n)

	t := table{
		cells: make([][]int, len(sa)-1),
		rows:  make([]int, len(sa)-1),
		cols:  make([]int, len(sb)-1),
	}

	for j := range t.cols {
		t.cols[j] = sb[j+1] - sb[j]
	}

	for i := range t.cells {
		t.rows[i] = sa[i+1] - sa[i]
		t.cells[i] = make([]int, len(sb)-1)

		for j := range t.cols {
			lo := max(sa[i], sb[j])
			hi := min(sa[i+1], sb[j+1])

			if hi > lo {
				t.cells[i][j] = hi - lo
			}
		}
	}

	return t
}

func bounds(cps []int, n int) []int {
	out := make([]int, 0, len(cps)+2)
	out = append(out, 0)
	out = append(out, cps...)

	return append(out, n)
}

func pairs(k int) float64 {
	return float64(k) * float64(k-1) / 2
}

func normalizeBoth(truth, pred []int, n int) ([]int, []int, error) {
	t, err := normalize(truth, n)
	if err != nil {
		return nil, nil, fmt.Errorf("truth: %w", err)
	}

	p, err := normalize(pred, n)
	if err != nil {
		return nil, nil, fmt.Errorf("prediction: %w", err)
	}

	return t, p, nil
}

func normalize(cps []int, n int) ([]int, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative length %d", ErrInvalidPoints, n)
	}

	cps = trimEnd(cps, n)

	prev := 0
	for _, cp := range cps {
		if cp <= prev || cp >= n {
			return nil, fmt.Errorf("%w: %d outside (%d, %d)", ErrInvalidPoints, cp, prev, n)
		}

		prev = cp
	}

	return cps, nil
}

func trimEnd(cps []int, n int) []int {
	if len(cps) > 0 && cps[len(cps)-1] == n {
		return cps[:len(cps)-1]
	}

	return cps
}

func abs(x int) int {
	if x < 0 {
		return -x
	}

	return x
}
