package rupture

import (
	"container/heap"
	"context"
)

type leaf struct {
	start, end int
	cost       float64
	alive      bool
	prev, next *leaf
}

type mergeCandidate struct {
	gain        float64
	left, right *leaf
}

type mergeHeap []mergeCandidate

func (h mergeHeap) Len() int           { return len(h) }
func (h mergeHeap) Less(i, j int) bool { return h[i].gain < h[j].gain }
func (h mergeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x any)        { *h = append(*h, x.(mergeCandidate)) }

func (h *mergeHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]

	return x
}

// finePartition halves the longest segment on the grid point closest to its
// middle until no segment can be split any more.
func finePartition(n, minSize, jump int) [][2]int {
	var out [][2]int

	var grow func(start, end int)
	grow = func(start, end int) {
		mid := (start + end) / 2
		b := -1

		first := ((start + minSize + jump - 1) / jump) * jump
		for c := first; c <= end-minSize; c += jump {
			if b < 0 || abs(c-mid) < abs(b-mid) {
				b = c
			}
		}

		if b < 0 {
			out = append(out, [2]int{start, end})
			return
		}

		grow(start, b)
		grow(b, end)
	}

	grow(0, n)

	return out
}

// bottomUp starts from a fine partition and repeatedly merges the adjacent
// pair whose merge increases the cost least, until k change points remain
// (k >= 0) or every merge would cost at least pen (k < 0).
func bottomUp(ctx context.Context, cost Cost, n, minSize, jump, k int, pen float64) ([]int, error) {
	parts := finePartition(n, minSize, jump)

	var head, tail *leaf

	for _, p := range parts {
		l := &leaf{start: p[0], end: p[1], cost: cost.Error(p[0], p[1]), alive: true, prev: tail}
		if tail != nil {
			tail.next = l
		} else {
			head = l
		}

		tail = l
	}

	h := &mergeHeap{}
	push := func(left, right *leaf) {
		if left == nil || right == nil {
			return
		}

		gain := cost.Error(left.start, right.end) - left.cost - right.cost
		heap.Push(h, mergeCandidate{gain: gain, left: left, right: right})
	}

	for l := head; l != nil && l.next != nil; l = l.next {
		push(l, l.next)
	}

	leaves := len(parts)

	for step := 0; h.Len() > 0; step++ {
		if step%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		c := heap.Pop(h).(mergeCandidate)
		if !c.left.alive || !c.right.alive {
			continue
		}

		if k >= 0 && leaves <= k+1 {
			break
		}

		if k < 0 && c.gain >= pen {
			break
		}

		merged := &leaf{
			start: c.left.start,
			end:   c.right.end,
			cost:  c.gain + c.left.cost + c.right.cost,
			alive: true,
			prev:  c.left.prev,
			next:  c.right.next,
		}

		c.left.alive = false
		c.right.alive = false

		if merged.prev != nil {
			merged.prev.next = merged
		} else {
			head = merged
		}

		if merged.next != nil {
			merged.next.prev = merged
		}

		leaves--

		push(merged.prev, merged)
		push(merged, merged.next)
	}

	bkps := make([]int, 0, leaves)
	for l := head; l != nil; l = l.next {
		bkps = append(bkps, l.end)
	}

	return bkps, nil
}

func abs(x int) int {
	if x < 0 {
		return -x
	}

	return x
}
