package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/chunkcpd/config"
)

func newRunsCmd(g *globalFlags) *cobra.Command {
	var location string

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect archived runs",
	}

	cmd.PersistentFlags().StringVar(&location, "archive", "results", "archive location")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List archived run ids",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				logger, err := g.logger(cmd.ErrOrStderr())
				if err != nil {
					return err
				}

				arc, err := openArchive(cmd.Context(), config.Archive{Dir: location}, nil, logger)
				if err != nil {
					return err
				}

				ids, err := arc.List(cmd.Context())
				if err != nil {
					return err
				}

				for _, id := range ids {
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}

				return nil
			},
		},
		&cobra.Command{
			Use:   "show [id]",
			Short: "Print an archived run",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				logger, err := g.logger(cmd.ErrOrStderr())
				if err != nil {
					return err
				}

				arc, err := openArchive(cmd.Context(), config.Archive{Dir: location}, nil, logger)
				if err != nil {
					return err
				}

				rec, err := arc.Load(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				return printRecord(cmd.OutOrStdout(), rec, false)
			},
		},
		&cobra.Command{
			Use:   "delete [id]",
			Short: "Delete an archived run",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				logger, err := g.logger(cmd.ErrOrStderr())
				if err != nil {
					return err
				}

				arc, err := openArchive(cmd.Context(), config.Archive{Dir: location}, nil, logger)
				if err != nil {
					return err
				}

				return arc.Delete(cmd.Context(), args[0])
			},
		},
	)

	return cmd
}
