package overlap

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/chunkcpd/chunk"
	"github.com/hupe1980/chunkcpd/series"
)

func processed(id int, cps ...int) *chunk.Chunk {
	c := chunk.New(id, chunk.Span{}, series.Matrix{})
	c.SetChangePoints(cps)

	return c
}

func TestMergeTwoChunks(t *testing.T) {
	a := processed(0, 50, 120)
	b := processed(1, 30, 80)

	got, err := Merge([]*chunk.Chunk{a, b}, 20)
	require.NoError(t, err)
	assert.Equal(t, []int{50, 110}, got)
}

func TestMergeSingleChunk(t *testing.T) {
	got, err := Merge([]*chunk.Chunk{processed(0, 100, 250, 300)}, 50)
	require.NoError(t, err)
	assert.Equal(t, []int{100, 250}, got)
}

func TestMergeEmpty(t *testing.T) {
	got, err := Merge(nil, 50)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMergeSentinelOnly(t *testing.T) {
	got, err := Merge([]*chunk.Chunk{processed(0, 400), processed(1, 400), processed(2, 200)}, 50)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMergeMissingSentinel(t *testing.T) {
	_, err := Merge([]*chunk.Chunk{processed(0, 100, 400), processed(1)}, 50)
	require.ErrorIs(t, err, ErrMissingSentinel)

	var le *LayoutError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, 1, le.ChunkID)
}

func TestMergeInvalidPosition(t *testing.T) {
	// A change point inside the leading overlap of a chunk that follows a
	// tiny first chunk maps to a negative global position.
	_, err := Merge([]*chunk.Chunk{processed(0, 10), processed(1, 5, 50)}, 20)
	require.ErrorIs(t, err, ErrInvalidPosition)
}

func TestMergeGlobalCoordinates(t *testing.T) {
	// Layout for n=1000, chunk 400, overlap 50: [0,400) [300,700) [600,950) [850,1000).
	// Local points are chosen so their global positions are known.
	chunks := []*chunk.Chunk{
		processed(0, 120, 400),
		processed(1, 30, 250, 400), // 330, 550
		processed(2, 100, 350),     // 700
		processed(3, 50, 100, 150), // 900, 950
	}

	got, err := Merge(chunks, 50)
	require.NoError(t, err)
	assert.Equal(t, []int{120, 330, 550, 700, 900, 950}, got)
}

func TestMergeDeduplicatesOverlap(t *testing.T) {
	// 330 is seen by chunk 0 (local 330) and chunk 1 (local 30).
	chunks := []*chunk.Chunk{
		processed(0, 330, 400),
		processed(1, 30, 400),
	}

	got, err := Merge(chunks, 50)
	require.NoError(t, err)
	assert.Equal(t, []int{330}, got)
}

func TestMergePermutationInvariance(t *testing.T) {
	chunks := []*chunk.Chunk{
		processed(0, 120, 400),
		processed(1, 30, 250, 400),
		processed(2, 100, 350),
		processed(3, 50, 100, 150),
	}

	want, err := Merge(chunks, 50)
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(1, 2))
	for range 10 {
		shuffled := slices.Clone(chunks)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		got, err := Merge(shuffled, 50)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.True(t, slices.IsSorted(got))
	}
}

func TestMergerIncrement(t *testing.T) {
	chunks := []*chunk.Chunk{processed(0, 50, 120), processed(1, 30, 80)}

	m := NewMerger(20)

	first, err := m.Merge(chunks)
	require.NoError(t, err)
	assert.Equal(t, []int{50, 110}, first)
	assert.Equal(t, 160, m.Increment())

	t.Run("WithoutReset", func(t *testing.T) {
		second, err := m.Merge(chunks)
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})

	t.Run("WithReset", func(t *testing.T) {
		m.Reset()
		assert.Equal(t, 0, m.Increment())

		third, err := m.Merge(chunks)
		require.NoError(t, err)
		assert.Equal(t, first, third)
	})
}

func TestMergerAdd(t *testing.T) {
	m := NewMerger(20)
	require.NoError(t, m.Add(processed(0, 50, 120)))
	assert.Equal(t, 120, m.Increment())
	assert.Equal(t, 1, m.Len())

	require.NoError(t, m.Add(processed(1, 30, 80)))
	assert.Equal(t, 160, m.Increment())

	got, err := m.Positions()
	require.NoError(t, err)
	assert.Equal(t, []int{50, 110}, got)
}

func TestSeedAndReproject(t *testing.T) {
	positions, inc, err := Seed([]int{50, 120}, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{50}, positions)
	assert.Equal(t, 120, inc)

	positions, inc, err = Reproject([]int{30, 80}, inc, 20)
	require.NoError(t, err)
	assert.Equal(t, []int{110}, positions)
	assert.Equal(t, 160, inc)

	_, _, err = Reproject(nil, inc, 20)
	require.ErrorIs(t, err, ErrMissingSentinel)
}

func TestSplitMergeRoundTrip(t *testing.T) {
	c, err := New(400, 50)
	require.NoError(t, err)

	chunks, err := c.Split(ramp(1000), 0)
	require.NoError(t, err)

	// Report the global position 500 from the chunk that contains it.
	for _, ch := range chunks {
		span := ch.Span()
		cps := []int{}

		if span.Start <= 500 && 500 < span.End {
			cps = append(cps, 500-span.Start)
		}

		ch.SetChangePoints(append(cps, span.Len()))
	}

	got, err := c.Merge(chunks)
	require.NoError(t, err)
	assert.Equal(t, []int{500}, got)
}
