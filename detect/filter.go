package detect

import "github.com/hupe1980/chunkcpd/series"

// AdaptiveMeanFilter collapses ascending change points that are closer than
// threshold samples.
//
// The first point is always kept. A point p2 closer than threshold to the last
// kept point p1 competes with it: with z the kept point before p1 (or 0), p2
// replaces p1 if the mean of data[z:p2] is larger than the mean of data[z:p1];
// otherwise p2 is dropped. Means are taken over all channels.
func AdaptiveMeanFilter(data series.Matrix, cps []int, threshold int) []int {
	if len(cps) == 0 {
		return []int{}
	}

	out := make([]int, 1, len(cps))
	out[0] = cps[0]

	for _, p2 := range cps[1:] {
		last := len(out) - 1
		p1 := out[last]

		if p2-p1 >= threshold {
			out = append(out, p2)
			continue
		}

		z := 0
		if last > 0 {
			z = out[last-1]
		}

		if data.Mean(z, p2) > data.Mean(z, p1) {
			out[last] = p2
		}
	}

	return out
}

// ThresholdFilter collapses ascending change points closer than threshold.
// A point too close to the last kept one replaces it.
func ThresholdFilter(cps []int, threshold int) []int {
	if len(cps) == 0 {
		return []int{}
	}

	out := make([]int, 1, len(cps))
	out[0] = cps[0]

	for _, cp := range cps[1:] {
		last := len(out) - 1
		if cp-out[last] >= threshold {
			out = append(out, cp)
		} else {
			out[last] = cp
		}
	}

	return out
}
