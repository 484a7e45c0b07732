package rupture

import (
	"context"
	"math"
	"slices"
)

// checkEvery is how often long loops poll their context.
const checkEvery = 64

// pelt minimises the penalised total cost over segmentations whose change
// points lie on multiples of jump and whose segments are at least minSize
// long. Candidates that can no longer be optimal are pruned.
func pelt(ctx context.Context, cost Cost, n, minSize, jump int, pen float64) ([]int, error) {
	best := map[int]float64{0: 0}
	prev := map[int]int{}

	ends := make([]int, 0, n/jump+1)
	for k := 0; k < n; k += jump {
		if k >= minSize {
			ends = append(ends, k)
		}
	}

	ends = append(ends, n)

	var admissible []int

	for step, end := range ends {
		if step%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		candidate := ((end - minSize) / jump) * jump
		if len(admissible) == 0 || admissible[len(admissible)-1] != candidate {
			admissible = append(admissible, candidate)
		}

		losses := make([]float64, len(admissible))
		bestLoss, bestStart := math.Inf(1), -1

		for i, start := range admissible {
			f, ok := best[start]
			if !ok {
				losses[i] = math.Inf(1)
				continue
			}

			losses[i] = f + cost.Error(start, end) + pen
			if losses[i] < bestLoss {
				bestLoss, bestStart = losses[i], start
			}
		}

		if bestStart < 0 {
			continue
		}

		best[end] = bestLoss
		prev[end] = bestStart

		kept := admissible[:0]
		for i, start := range admissible {
			if losses[i] <= bestLoss+pen {
				kept = append(kept, start)
			}
		}

		admissible = kept
	}

	return backtrack(prev, n), nil
}

// backtrack follows predecessor links from n to 0 and returns the ascending
// segment ends.
func backtrack(prev map[int]int, n int) []int {
	bkps := []int{n}

	for cur := n; ; {
		p, ok := prev[cur]
		if !ok || p == 0 {
			break
		}

		bkps = append(bkps, p)
		cur = p
	}

	slices.Reverse(bkps)

	return bkps
}
