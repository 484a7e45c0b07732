package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/chunkcpd/detect"
)

func newPenaltyCmd() *cobra.Command {
	var (
		kind        string
		samples     int
		estimated   int
		modelParams int
	)

	cmd := &cobra.Command{
		Use:   "penalty",
		Short: "Print the penalty value of an information criterion",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			k, err := detect.ParsePenaltyKind(kind)
			if err != nil {
				return err
			}

			v, err := detect.Penalty(k, samples, estimated, modelParams)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %g\n", k, v)

			return err
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "BIC", "penalty term (SIC, BIC, AIC, Hannan Quinn)")
	cmd.Flags().IntVarP(&samples, "samples", "n", 0, "series length")
	cmd.Flags().IntVarP(&estimated, "estimated-cps", "k", 1, "estimated number of change points")
	cmd.Flags().IntVarP(&modelParams, "model-params", "p", detect.DefaultModelParams, "parameters per segment model")

	_ = cmd.MarkFlagRequired("samples")

	return cmd
}
