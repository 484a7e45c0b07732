package rupture

import (
	"context"
	"slices"
)

type peak struct {
	pos   int
	score float64
}

// window scores every grid point t by the cost reduction of splitting the
// window [t-half, t+half) at t and keeps the strongest local maxima: the k
// best (k >= 0) or all scoring above pen (k < 0).
func window(ctx context.Context, cost Cost, n, minSize, jump, width, k int, pen float64) ([]int, error) {
	half := max((width/2/jump)*jump, jump, minSize)

	var (
		positions []int
		scores    []float64
	)

	for t := half; t+half <= n; t += jump {
		if len(positions)%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		gain := cost.Error(t-half, t+half) - cost.Error(t-half, t) - cost.Error(t, t+half)
		positions = append(positions, t)
		scores = append(scores, gain)
	}

	order := max(max(width, minSize)/(2*jump), 1)

	var peaks []peak

	for i, s := range scores {
		isPeak := true

		for j := max(i-order, 0); j <= min(i+order, len(scores)-1); j++ {
			if j != i && scores[j] >= s {
				isPeak = false
				break
			}
		}

		if isPeak {
			peaks = append(peaks, peak{pos: positions[i], score: s})
		}
	}

	slices.SortStableFunc(peaks, func(a, b peak) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		default:
			return 0
		}
	})

	var bkps []int

	for _, p := range peaks {
		if k >= 0 && len(bkps) >= k {
			break
		}

		if k < 0 && p.score <= pen {
			break
		}

		bkps = append(bkps, p.pos)
	}

	slices.Sort(bkps)

	return append(bkps, n), nil
}
