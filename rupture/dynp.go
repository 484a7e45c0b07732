package rupture

import (
	"context"
	"fmt"
	"math"
)

// grid returns the candidate boundaries 0, jump, 2*jump, ..., n.
func grid(n, jump int) []int {
	pts := make([]int, 0, n/jump+2)
	for k := 0; k < n; k += jump {
		pts = append(pts, k)
	}

	return append(pts, n)
}

// dynp returns the exact best segmentation into k+1 segments with
// boundaries on the jump grid.
func dynp(ctx context.Context, cost Cost, n, minSize, jump, k int) ([]int, error) {
	if k == 0 {
		return []int{n}, nil
	}

	pts := grid(n, jump)
	m := len(pts)

	// Segment costs between grid points, Inf when too short.
	seg := make([]float64, m*m)

	for i := 0; i < m; i++ {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		for j := 0; j < m; j++ {
			if j <= i || pts[j]-pts[i] < minSize {
				seg[i*m+j] = math.Inf(1)
				continue
			}

			seg[i*m+j] = cost.Error(pts[i], pts[j])
		}
	}

	segments := k + 1
	prev := make([][]int, segments+1)
	cur := make([]float64, m)

	for j := range cur {
		cur[j] = seg[j]
	}

	for s := 2; s <= segments; s++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		next := make([]float64, m)
		prev[s] = make([]int, m)

		for j := 0; j < m; j++ {
			next[j] = math.Inf(1)
			prev[s][j] = -1

			for i := 1; i < j; i++ {
				if math.IsInf(cur[i], 1) {
					continue
				}

				v := cur[i] + seg[i*m+j]
				if v < next[j] {
					next[j] = v
					prev[s][j] = i
				}
			}
		}

		cur = next
	}

	if math.IsInf(cur[m-1], 1) {
		return nil, fmt.Errorf("%w: %d change points in %d samples with minimum segment %d", ErrNotEnoughPoints, k, n, minSize)
	}

	bkps := make([]int, segments)
	j := m - 1

	for s := segments; s >= 1; s-- {
		bkps[s-1] = pts[j]
		if s > 1 {
			j = prev[s][j]
		}
	}

	return bkps, nil
}
