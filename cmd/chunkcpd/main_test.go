package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/chunkcpd/blobstore"
	minioblob "github.com/hupe1980/chunkcpd/blobstore/minio"
	"github.com/hupe1980/chunkcpd/dataset"
	"github.com/hupe1980/chunkcpd/testutil"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer

	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)

	err := cmd.Execute()

	return out.String(), err
}

// writeRecording writes a three channel recording with shifts at 300 and 650
// and a ground-truth label column.
func writeRecording(t *testing.T) string {
	t.Helper()

	data, _ := testutil.NewRNG(7).Piecewise([]testutil.Segment{
		{Len: 300, Mean: 0},
		{Len: 350, Mean: 4},
		{Len: 350, Mean: -2},
	}, 3, 0.1)

	labels := dataset.Label(data.Rows(), []int{300, 650})

	var sb strings.Builder
	sb.WriteString("a,b,c,Segment Number\n")

	for i := 0; i < data.Rows(); i++ {
		for _, v := range data.Row(i) {
			sb.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
			sb.WriteByte(',')
		}

		sb.WriteString(strconv.Itoa(labels[i]))
		sb.WriteByte('\n')
	}

	path := filepath.Join(t.TempDir(), "recording.csv")
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o600))

	return path
}

var detectorArgs = []string{
	"--algorithm", "pelt",
	"--model", "l2",
	"--penalty", "BIC",
	"--estimated-cps", "2",
	"--min-size", "10",
	"--jump", "5",
	"--chunk-size", "400",
	"--overlap", "50",
	"--workers", "1",
}

func TestSegmentCommand(t *testing.T) {
	input := writeRecording(t)
	dir := t.TempDir()
	store := filepath.Join(dir, "archive")
	output := filepath.Join(dir, "segmented.csv")
	metrics := filepath.Join(dir, "metrics.prom")

	args := append([]string{"segment", input,
		"--truth-column", "Segment Number",
		"--output", output,
		"--segment-column", "Detected",
		"--archive", store,
		"--compression", "lz4",
		"--metrics-out", metrics,
	}, detectorArgs...)

	out, err := execute(t, args...)
	require.NoError(t, err)

	assert.Contains(t, out, "change points: [300 650]")
	assert.Contains(t, out, "chunks:        4")
	assert.Contains(t, out, "precision:     1.000")
	assert.Contains(t, out, "run:")

	frame, err := dataset.Load(output, dataset.WithColumns("Detected"))
	require.NoError(t, err)

	labels, err := frame.IntColumn("Detected")
	require.NoError(t, err)
	assert.Equal(t, []int{300, 650}, dataset.Boundaries(labels))

	text, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(text), "chunkcpd_samples_total")

	ids, err := execute(t, "runs", "list", "--archive", store)
	require.NoError(t, err)

	id := strings.TrimSpace(ids)
	require.NotEmpty(t, id)
	assert.NotContains(t, id, "\n")

	shown, err := execute(t, "runs", "show", id, "--archive", store)
	require.NoError(t, err)
	assert.Contains(t, shown, "run:           "+id)
	assert.Contains(t, shown, "f1:            1.000")

	scored, err := execute(t, "evaluate", "--run", id, "--archive", store, "--truth", "300,600")
	require.NoError(t, err)
	assert.Contains(t, scored, `"hausdorff":50`)

	shown, err = execute(t, "runs", "show", id, "--archive", store)
	require.NoError(t, err)
	assert.Contains(t, shown, "hausdorff:     50")

	_, err = execute(t, "runs", "delete", id, "--archive", store)
	require.NoError(t, err)

	ids, err = execute(t, "runs", "list", "--archive", store)
	require.NoError(t, err)
	assert.Empty(t, strings.TrimSpace(ids))
}

func TestSegmentCommandWithConfig(t *testing.T) {
	input := writeRecording(t)
	cfg := filepath.Join(t.TempDir(), "segmentation.yaml")

	doc := `
segmentations:
  - name: other
    model: l1
    algorithm: binseg
    estimated_cps: 1
  - name: shifts
    estimated_cps: 2
    model: l2
    penalty_term: BIC
    algorithm: PELT
    min_segment_size: 10
    jump_points: 5
    chunk_size: 400
    overlap_region: 50
    workers: 1
`
	require.NoError(t, os.WriteFile(cfg, []byte(doc), 0o600))

	out, err := execute(t, "segment", input, "--config", cfg, "--name", "shifts",
		"--columns", "a,b,c", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"change_points":[300,650]`)
	assert.NotContains(t, out, `"labels"`)

	_, err = execute(t, "segment", input, "--config", cfg, "--name", "missing")
	require.Error(t, err)
}

func TestSegmentCommandErrors(t *testing.T) {
	input := writeRecording(t)

	_, err := execute(t, "segment", input, "--penalty", "MDL")
	require.Error(t, err)

	_, err = execute(t, "segment", input, "--chunk-size", "100", "--overlap", "50")
	require.Error(t, err)

	_, err = execute(t, "segment", filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)

	_, err = execute(t, "segment", input, "--log-level", "loud")
	require.Error(t, err)
}

func TestPenaltyCommand(t *testing.T) {
	out, err := execute(t, "penalty", "--kind", "bic", "-n", "1000", "-k", "2", "-p", "2")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "BIC: 27.631"), out)

	out, err = execute(t, "penalty", "--kind", "AIC", "-n", "1000", "-k", "3")
	require.NoError(t, err)
	assert.Equal(t, "AIC: 12\n", out)

	_, err = execute(t, "penalty", "--kind", "MDL", "-n", "1000")
	require.Error(t, err)

	_, err = execute(t, "penalty")
	require.Error(t, err)
}

func TestEvaluateCommand(t *testing.T) {
	out, err := execute(t, "evaluate", "--truth", "100,200,300", "--pred", "102,250", "-n", "300", "--margin", "5")
	require.NoError(t, err)
	assert.Contains(t, out, `"precision":0.5`)
	assert.Contains(t, out, `"annotation_error":0`)

	_, err = execute(t, "evaluate", "--truth", "100,x", "--pred", "1", "-n", "300")
	require.Error(t, err)

	_, err = execute(t, "evaluate", "--truth", "100", "--pred", "400", "-n", "300")
	require.Error(t, err)

	_, err = execute(t, "evaluate", "--truth", "100", "--run", "abc")
	require.Error(t, err)
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := openStore(ctx, dir)
	require.NoError(t, err)
	assert.IsType(t, &blobstore.LocalStore{}, s)

	s, err = openStore(ctx, "file://"+dir)
	require.NoError(t, err)
	assert.IsType(t, &blobstore.LocalStore{}, s)

	s, err = openStore(ctx, "minio://localhost:9000/results/runs")
	require.NoError(t, err)
	assert.IsType(t, &minioblob.Store{}, s)

	for _, bad := range []string{"ftp://host/x", "s3:///prefix", "minio://localhost:9000"} {
		_, err := openStore(ctx, bad)
		require.Error(t, err, bad)
	}
}

func TestParseInts(t *testing.T) {
	got, err := parseInts(" 1, 2,3 ")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, got)

	got, err = parseInts("")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = parseInts("1,,2")
	require.Error(t, err)
}
