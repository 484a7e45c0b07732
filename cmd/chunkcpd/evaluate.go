package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/chunkcpd/codec"
	"github.com/hupe1980/chunkcpd/config"
	"github.com/hupe1980/chunkcpd/evaluate"
)

type evaluateFlags struct {
	truth   string
	pred    string
	samples int
	margin  float64
	run     string
	archive string
}

func newEvaluateCmd(g *globalFlags) *cobra.Command {
	f := &evaluateFlags{}

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score change points against ground truth",
		Long: `Score predicted change points against ground truth.

The prediction is either given with --pred and --samples or read from an
archived run with --run and --archive. Scores of an archived run are stored
with the run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEvaluate(cmd, g, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.truth, "truth", "", "comma separated ground-truth change points")
	fl.StringVar(&f.pred, "pred", "", "comma separated predicted change points")
	fl.IntVarP(&f.samples, "samples", "n", 0, "series length")
	fl.Float64Var(&f.margin, "margin", DefaultMargin, "precision/recall margin in samples")
	fl.StringVar(&f.run, "run", "", "archived run id")
	fl.StringVar(&f.archive, "archive", "", "archive location of --run")

	_ = cmd.MarkFlagRequired("truth")
	cmd.MarkFlagsRequiredTogether("run", "archive")
	cmd.MarkFlagsMutuallyExclusive("run", "pred")

	return cmd
}

func runEvaluate(cmd *cobra.Command, g *globalFlags, f *evaluateFlags) error {
	ctx := cmd.Context()

	truth, err := parseInts(f.truth)
	if err != nil {
		return err
	}

	if f.run == "" {
		pred, err := parseInts(f.pred)
		if err != nil {
			return err
		}

		summary, err := evaluate.Compute(truth, pred, f.samples, f.margin)
		if err != nil {
			return err
		}

		return printJSON(cmd, summary)
	}

	logger, err := g.logger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	arc, err := openArchive(ctx, config.Archive{Dir: f.archive}, nil, logger)
	if err != nil {
		return err
	}

	rec, err := arc.Load(ctx, f.run)
	if err != nil {
		return err
	}

	summary, err := evaluate.Compute(truth, rec.ChangePoints, rec.Samples, f.margin)
	if err != nil {
		return err
	}

	rec.Metrics = &summary
	if _, err := arc.Save(ctx, rec); err != nil {
		return err
	}

	return printJSON(cmd, summary)
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := codec.Default.Marshal(v)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))

	return err
}
