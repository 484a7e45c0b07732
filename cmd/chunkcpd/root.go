package main

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/chunkcpd"
)

type globalFlags struct {
	logLevel  string
	logFormat string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "chunkcpd",
		Short: "Segment long sensor recordings by parallel change-point detection",
		Long: `chunkcpd splits a recording into overlapping chunks, detects change
points in every chunk in parallel and merges them into one segmentation.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&g.logFormat, "log-format", "text", "log format (text, json)")

	root.AddCommand(
		newSegmentCmd(g),
		newPenaltyCmd(),
		newEvaluateCmd(g),
		newRunsCmd(g),
	)

	return root
}

// logger builds the logger selected by the global flags on the command's
// error stream.
func (g *globalFlags) logger(w io.Writer) (*chunkcpd.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(g.logLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", g.logLevel)
	}

	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(g.logFormat) {
	case "text":
		return chunkcpd.NewLogger(slog.NewTextHandler(w, opts)), nil
	case "json":
		return chunkcpd.NewLogger(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", g.logFormat)
	}
}

// parseInts parses a comma separated list of integers.
func parseInts(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	fields := strings.Split(s, ",")
	out := make([]int, 0, len(fields))

	for _, f := range fields {
		v, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, fmt.Errorf("invalid position %q", f)
		}

		out = append(out, v)
	}

	return out, nil
}
