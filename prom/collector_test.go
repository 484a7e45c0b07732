package prom

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gather returns the value of every counter and gauge keyed by name and
// label values, plus histogram sample counts.
func gather(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)

	out := make(map[string]float64)

	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			for _, lp := range m.GetLabel() {
				key += "|" + lp.GetValue()
			}

			switch {
			case m.GetCounter() != nil:
				out[key] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				out[key] = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				out[key] = float64(m.GetHistogram().GetSampleCount())
			}
		}
	}

	return out
}

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()

	c, err := NewCollector(reg, "")
	require.NoError(t, err)

	c.RecordChunk(0, 400, 1, time.Millisecond, nil)
	c.RecordChunk(1, 400, 2, time.Millisecond, nil)
	c.RecordChunk(2, 350, 0, time.Millisecond, errors.New("boom"))
	c.RecordMerge(3, 2, time.Microsecond)
	c.RecordSegment(1000, 2, 5*time.Millisecond, nil)

	got := gather(t, reg)

	assert.Equal(t, 2.0, got["chunkcpd_operation_latency_seconds|chunk|success"])
	assert.Equal(t, 1.0, got["chunkcpd_operation_latency_seconds|chunk|error"])
	assert.Equal(t, 1.0, got["chunkcpd_operation_latency_seconds|merge|success"])
	assert.Equal(t, 1150.0, got["chunkcpd_samples_total|chunk"])
	assert.Equal(t, 1000.0, got["chunkcpd_samples_total|segment"])
	assert.Equal(t, 3.0, got["chunkcpd_change_points_total|chunk"])
	assert.Equal(t, 2.0, got["chunkcpd_change_points_total|segment"])
	assert.Equal(t, 1.0, got["chunkcpd_chunk_errors_total"])
	assert.Equal(t, 3.0, got["chunkcpd_merged_chunks_total"])
	assert.Equal(t, 2.0, got["chunkcpd_last_merge_positions"])
}

func TestCollectorNamespaceAndDuplicates(t *testing.T) {
	reg := prometheus.NewRegistry()

	c, err := NewCollector(reg, "drilling")
	require.NoError(t, err)

	c.RecordSegment(10, 0, time.Millisecond, errors.New("boom"))

	got := gather(t, reg)
	assert.Equal(t, 1.0, got["drilling_operation_latency_seconds|segment|error"])
	_, ok := got["drilling_change_points_total|segment"]
	assert.False(t, ok)

	_, err = NewCollector(reg, "drilling")
	require.Error(t, err)
}
