package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/hupe1980/chunkcpd"
	"github.com/hupe1980/chunkcpd/archive"
	"github.com/hupe1980/chunkcpd/codec"
	"github.com/hupe1980/chunkcpd/config"
	"github.com/hupe1980/chunkcpd/dataset"
	"github.com/hupe1980/chunkcpd/evaluate"
	"github.com/hupe1980/chunkcpd/prom"
	"github.com/hupe1980/chunkcpd/resource"
	"github.com/hupe1980/chunkcpd/rupture"
)

// DefaultMargin is the precision/recall margin in samples when neither a
// margin nor timestamps are available.
const DefaultMargin = 10

type segmentFlags struct {
	configPath string
	name       string

	algorithm    string
	model        string
	penalty      string
	estimatedCPs int
	modelParams  int
	minSize      int
	jump         int
	window       int
	chunkSize    int
	overlap      int
	minDistance  int
	workers      int
	scale        bool

	timeColumn  string
	columns     []string
	output      string
	segmentCol  string
	truthColumn string
	margin      float64
	marginShare float64

	archive     string
	compression string
	metricsOut  string
	jsonOut     bool
}

func newSegmentCmd(g *globalFlags) *cobra.Command {
	f := &segmentFlags{}

	cmd := &cobra.Command{
		Use:   "segment [csv file]",
		Short: "Detect the change points of a recording",
		Long: `Detect the change points of a CSV recording.

The detector is taken from --config (the entry named by --name, or the first
one) or from the detector flags.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSegment(cmd, g, f, args[0])
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.configPath, "config", "c", "", "YAML configuration file")
	fl.StringVar(&f.name, "name", "", "segmentation entry of the configuration file")

	fl.StringVar(&f.algorithm, "algorithm", "pelt", "search method (pelt, kernelcpd, dynp, binseg, bottomup, window)")
	fl.StringVar(&f.model, "model", "l2", "cost model (l1, l2, normal, rbf, linear, cosine)")
	fl.StringVar(&f.penalty, "penalty", "BIC", "penalty term (SIC, BIC, AIC, Hannan Quinn); empty for a fixed count")
	fl.IntVar(&f.estimatedCPs, "estimated-cps", 1, "estimated number of change points")
	fl.IntVar(&f.modelParams, "model-params", 0, "parameters per segment model")
	fl.IntVar(&f.minSize, "min-size", 0, "minimum segment size")
	fl.IntVar(&f.jump, "jump", 0, "candidate grid step")
	fl.IntVar(&f.window, "window", 0, "window width of the window method")
	fl.IntVar(&f.chunkSize, "chunk-size", chunkcpd.DefaultChunkSize, "samples per chunk")
	fl.IntVar(&f.overlap, "overlap", chunkcpd.DefaultOverlap, "samples shared with each neighbouring chunk")
	fl.IntVar(&f.minDistance, "min-distance", 0, "collapse change points closer than this; 0 disables")
	fl.IntVar(&f.workers, "workers", 0, "parallel detector runs; 0 selects half the CPUs")
	fl.BoolVar(&f.scale, "scale", false, "standardize every channel first")

	fl.StringVar(&f.timeColumn, "time-column", "", "timestamp column to sort by")
	fl.StringSliceVar(&f.columns, "columns", nil, "numeric channels; default all but the time and truth columns")
	fl.StringVarP(&f.output, "output", "o", "", "write the labelled recording to this CSV file")
	fl.StringVar(&f.segmentCol, "segment-column", dataset.DefaultSegmentColumn, "name of the label column")
	fl.StringVar(&f.truthColumn, "truth-column", "", "ground-truth label column to score against")
	fl.Float64Var(&f.margin, "margin", 0, "precision/recall margin in samples")
	fl.Float64Var(&f.marginShare, "margin-share", 1, "margin as a share of the samples per second, used with timestamps")

	fl.StringVar(&f.archive, "archive", "", "archive the run (directory, s3:// or minio:// location)")
	fl.StringVar(&f.compression, "compression", "", "archive compression (none, lz4, zstd)")
	fl.StringVar(&f.metricsOut, "metrics-out", "", "write Prometheus metrics of the run to this file")
	fl.BoolVar(&f.jsonOut, "json", false, "print the run as JSON")

	return cmd
}

// settings collects everything a run needs apart from the data.
type settings struct {
	seg       config.Config
	archive   config.Archive
	resources config.Resources
}

func (f *segmentFlags) settings(cmd *cobra.Command) (*settings, error) {
	if f.configPath != "" {
		file, err := config.Load(f.configPath)
		if err != nil {
			return nil, err
		}

		seg := file.Segmentations[0]
		if f.name != "" {
			var ok bool
			if seg, ok = file.Get(f.name); !ok {
				return nil, fmt.Errorf("no segmentation %q in %s", f.name, f.configPath)
			}
		}

		s := &settings{seg: seg, archive: file.Archive, resources: file.Resources}
		f.overrideArchive(cmd, s)

		return s, nil
	}

	overlap := f.overlap
	seg := config.Config{
		Name:            "cli",
		EstimatedCPs:    f.estimatedCPs,
		Model:           f.model,
		ModelParameters: f.modelParams,
		PenaltyTerm:     f.penalty,
		Algorithm:       f.algorithm,
		MinSegmentSize:  f.minSize,
		JumpPoints:      f.jump,
		Window:          f.window,
		ChunkSize:       f.chunkSize,
		OverlapRegion:   &overlap,
		MinCPDistance:   f.minDistance,
		FilterCloseCPs:  f.minDistance > 0,
		Workers:         f.workers,
		StandardScale:   f.scale,
	}

	file := &config.File{Segmentations: []config.Config{seg}}
	if err := file.Validate(); err != nil {
		return nil, err
	}

	s := &settings{seg: seg}
	f.overrideArchive(cmd, s)

	return s, nil
}

func (f *segmentFlags) overrideArchive(cmd *cobra.Command, s *settings) {
	if cmd.Flags().Changed("archive") {
		s.archive.Dir = f.archive
	}

	if cmd.Flags().Changed("compression") {
		s.archive.Compression = f.compression
	}
}

func (f *segmentFlags) readOptions() []dataset.Option {
	var opts []dataset.Option

	if f.timeColumn != "" {
		opts = append(opts, dataset.WithTimeColumn(f.timeColumn))
	}

	if len(f.columns) > 0 {
		opts = append(opts, dataset.WithColumns(f.columns...))
	}

	if f.truthColumn != "" {
		opts = append(opts, dataset.WithExcludedColumns(f.truthColumn))
	}

	return opts
}

func runSegment(cmd *cobra.Command, g *globalFlags, f *segmentFlags, path string) error {
	ctx := cmd.Context()

	logger, err := g.logger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	s, err := f.settings(cmd)
	if err != nil {
		return err
	}

	frame, err := dataset.Load(path, f.readOptions()...)
	if err != nil {
		return err
	}

	det, err := s.seg.Detector(rupture.Backend{}, logger.Logger)
	if err != nil {
		return err
	}

	rc := newController(s.resources)

	reg := prometheus.NewRegistry()

	collector, err := prom.NewCollector(reg, "")
	if err != nil {
		return err
	}

	opts := append(s.seg.Options(),
		chunkcpd.WithLogger(logger.WithDetector(det.String())),
		chunkcpd.WithMetricsCollector(collector),
		chunkcpd.WithController(rc),
	)

	seg, err := chunkcpd.New(det, opts...)
	if err != nil {
		return err
	}

	res, err := seg.Segment(ctx, frame.Data)
	if err != nil {
		return err
	}

	labels := res.Labels(frame.Rows())

	rec := &archive.Record{
		Source:       path,
		Detector:     det.String(),
		Samples:      res.Samples,
		Chunks:       res.Chunks,
		Duration:     res.Duration,
		ChangePoints: res.ChangePoints,
		Labels:       labels,
	}

	if f.truthColumn != "" {
		summary, err := f.score(path, frame, res)
		if err != nil {
			return err
		}

		rec.Metrics = summary
	}

	if f.output != "" {
		if err := frame.Save(f.output, labels, f.segmentCol); err != nil {
			return err
		}
	}

	if s.archive.Dir != "" {
		if _, err := saveRun(ctx, s.archive, rc, logger, rec); err != nil {
			return err
		}
	}

	if f.metricsOut != "" {
		if err := writeMetrics(reg, f.metricsOut); err != nil {
			return err
		}
	}

	return printRecord(cmd.OutOrStdout(), rec, f.jsonOut)
}

// score compares the run with the ground-truth label column.
func (f *segmentFlags) score(path string, frame *dataset.Frame, res *chunkcpd.Result) (*evaluate.Summary, error) {
	opts := []dataset.Option{dataset.WithColumns(f.truthColumn)}
	if f.timeColumn != "" {
		opts = append(opts, dataset.WithTimeColumn(f.timeColumn))
	}

	truthFrame, err := dataset.Load(path, opts...)
	if err != nil {
		return nil, err
	}

	labels, err := truthFrame.IntColumn(f.truthColumn)
	if err != nil {
		return nil, err
	}

	margin := f.margin
	if margin <= 0 && len(frame.Times) > 1 {
		span := frame.Times[len(frame.Times)-1].Sub(frame.Times[0])
		margin = evaluate.Margin(frame.Rows(), span, f.marginShare)
	}

	if margin <= 0 {
		margin = DefaultMargin
	}

	summary, err := evaluate.Compute(dataset.Boundaries(labels), res.ChangePoints, res.Samples, margin)
	if err != nil {
		return nil, err
	}

	return &summary, nil
}

func newController(r config.Resources) *resource.Controller {
	if r == (config.Resources{}) {
		return nil
	}

	return resource.NewController(resource.Config{
		MaxDetectors:       r.MaxDetectors,
		MemoryLimitBytes:   r.MemoryLimitBytes,
		IOLimitBytesPerSec: r.IOLimitBytesPerSec,
	})
}

func openArchive(ctx context.Context, cfg config.Archive, rc *resource.Controller, logger *chunkcpd.Logger) (*archive.Archive, error) {
	if cfg.Dir == "" {
		return nil, errors.New("no archive location given")
	}

	store, err := openStore(ctx, cfg.Dir)
	if err != nil {
		return nil, err
	}

	opts := []archive.Option{
		archive.WithController(rc),
		archive.WithLogger(logger.Logger),
	}

	if cfg.Compression != "" {
		comp, err := archive.ParseCompression(cfg.Compression)
		if err != nil {
			return nil, err
		}

		opts = append(opts, archive.WithCompression(comp))
	}

	if cfg.Codec != "" {
		c, err := codec.Lookup(cfg.Codec)
		if err != nil {
			return nil, err
		}

		opts = append(opts, archive.WithCodec(c))
	}

	return archive.New(store, opts...), nil
}

func saveRun(ctx context.Context, cfg config.Archive, rc *resource.Controller, logger *chunkcpd.Logger, rec *archive.Record) (string, error) {
	arc, err := openArchive(ctx, cfg, rc, logger)
	if err != nil {
		return "", err
	}

	return arc.Save(ctx, rec)
}

func writeMetrics(reg *prometheus.Registry, path string) error {
	families, err := reg.Gather()
	if err != nil {
		return err
	}

	out, err := os.Create(path)
	if err != nil {
		return err
	}

	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(out, mf); err != nil {
			_ = out.Close()
			return err
		}
	}

	return out.Close()
}

func printRecord(w io.Writer, rec *archive.Record, asJSON bool) error {
	if asJSON {
		view := *rec
		view.Labels = nil

		data, err := codec.Default.Marshal(view)
		if err != nil {
			return err
		}

		_, err = fmt.Fprintln(w, string(data))

		return err
	}

	if rec.ID != "" {
		fmt.Fprintf(w, "run:           %s\n", rec.ID)
	}

	fmt.Fprintf(w, "detector:      %s\n", rec.Detector)
	fmt.Fprintf(w, "samples:       %d\n", rec.Samples)
	fmt.Fprintf(w, "chunks:        %d\n", rec.Chunks)
	fmt.Fprintf(w, "duration:      %s\n", rec.Duration.Round(time.Microsecond))
	fmt.Fprintf(w, "change points: %v\n", rec.ChangePoints)

	if m := rec.Metrics; m != nil {
		fmt.Fprintf(w, "precision:     %.3f\n", m.Precision)
		fmt.Fprintf(w, "recall:        %.3f\n", m.Recall)
		fmt.Fprintf(w, "f1:            %.3f\n", m.F1)
		fmt.Fprintf(w, "hausdorff:     %d\n", m.Hausdorff)
		fmt.Fprintf(w, "rand index:    %.3f\n", m.RandIndex)
		fmt.Fprintf(w, "nmi:           %.3f\n", m.NMI)
	}

	return nil
}
