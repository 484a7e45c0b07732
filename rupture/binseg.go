package rupture

import (
	"context"
	"math"
	"slices"
)

type split struct {
	bkp  int
	gain float64
}

// binseg splits the segment with the largest cost reduction until k change
// points are found (k >= 0) or no split gains more than pen (k < 0).
func binseg(ctx context.Context, cost Cost, n, minSize, jump, k int, pen float64) ([]int, error) {
	bkps := []int{n}
	cache := map[[2]int]split{}

	best := func(start, end int) split {
		key := [2]int{start, end}
		if s, ok := cache[key]; ok {
			return s
		}

		s := split{bkp: -1, gain: math.Inf(-1)}
		total := cost.Error(start, end)

		first := ((start + minSize + jump - 1) / jump) * jump
		for b := first; b <= end-minSize; b += jump {
			gain := total - cost.Error(start, b) - cost.Error(b, end)
			if gain > s.gain {
				s = split{bkp: b, gain: gain}
			}
		}

		cache[key] = s

		return s
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if k >= 0 && len(bkps)-1 >= k {
			break
		}

		chosen := split{bkp: -1, gain: math.Inf(-1)}
		start := 0

		for _, end := range bkps {
			if s := best(start, end); s.bkp >= 0 && s.gain > chosen.gain {
				chosen = s
			}

			start = end
		}

		if chosen.bkp < 0 {
			break
		}

		if k < 0 && chosen.gain <= pen {
			break
		}

		bkps = append(bkps, chosen.bkp)
		slices.Sort(bkps)
	}

	return bkps, nil
}
