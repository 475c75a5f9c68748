package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/eunmann/geodata-harvester/pkg/membudget"
	"github.com/eunmann/geodata-harvester/pkg/temporal"
	"github.com/eunmann/geodata-harvester/pkg/timeseries"
)

type aggregateFlags struct {
	mode       string
	period     string
	stats      []string
	prefix     string
	from       string
	to         string
	buffer     int
	workers    int
	keepNoData bool
	band       int
	mask       string
	memory     string
}

func newAggregateCmd() *cobra.Command {
	f := &aggregateFlags{}
	cmd := &cobra.Command{
		Use:   "aggregate [flags] FILE...",
		Short: "Reduce raster files over time into per-period statistics",
		Long: `aggregate stacks the given files and writes one raster per statistic and
period bin to <prefix>_<stat>_<label>.nc.

Modes:
  bands      files hold consecutive dated bands (long_name labels)
  snapshots  one file per date, dated by the _YYYY-MM-DD filename suffix
  composite  pool every band of every file, one raster per statistic
  channels   reduce each band position across files separately`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, paths []string) error {
			return runAggregate(cmd, f, paths)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.mode, "mode", "bands", "bands, snapshots, composite or channels")
	fl.StringVar(&f.period, "period", "yearly", "yearly, monthly or a step count")
	fl.StringSliceVar(&f.stats, "stats", []string{"median"}, "statistics: mean, median, sum, perc95, perc5, max, min")
	fl.StringVar(&f.prefix, "prefix", "", "output path prefix (required)")
	fl.StringVar(&f.from, "from", "", "drop steps before this date (YYYY-MM-DD)")
	fl.StringVar(&f.to, "to", "", "drop steps after this date (YYYY-MM-DD)")
	fl.IntVar(&f.buffer, "buffer", 0, "keep only the first N steps of each bin")
	fl.IntVar(&f.workers, "workers", 1, "bins reduced concurrently")
	fl.BoolVar(&f.keepNoData, "keep-nodata", false, "reduce nodata sentinels as ordinary values")
	fl.IntVar(&f.band, "band", 0, "snapshot band to use, 1-based")
	fl.StringVar(&f.mask, "mask-band", "", "snapshot band whose non-zero pixels are masked")
	fl.StringVar(&f.memory, "memory-limit", "", "cap memory of concurrent bins, e.g. 2GiB")
	return cmd
}

func runAggregate(cmd *cobra.Command, f *aggregateFlags, paths []string) error {
	if f.prefix == "" {
		return errors.New("--prefix is required")
	}
	opts := temporal.Options{Buffer: f.buffer, FillNaN: !f.keepNoData, Workers: f.workers}
	if f.memory != "" {
		n, err := membudget.ParseSize(f.memory)
		if err != nil {
			return fmt.Errorf("--memory-limit: %w", err)
		}
		opts.Budget = membudget.New(n, membudget.SourceConfig)
	}
	ctx := cmd.Context()

	var (
		results []temporal.Result
		err     error
	)
	switch f.mode {
	case "composite":
		results, err = temporal.Composite(ctx, paths, f.stats, f.prefix, opts)
	case "channels":
		results, err = temporal.CompositeBands(ctx, paths, f.stats, f.prefix, opts)
	case "bands", "snapshots":
		results, err = aggregateStack(cmd, f, paths, opts)
	default:
		return fmt.Errorf("unknown mode %q", f.mode)
	}
	if err != nil {
		return err
	}
	for _, r := range results {
		fmt.Fprintln(cmd.OutOrStdout(), r.Path)
	}
	return nil
}

func aggregateStack(cmd *cobra.Command, f *aggregateFlags, paths []string, opts temporal.Options) ([]temporal.Result, error) {
	period, err := temporal.ParsePeriod(f.period)
	if err != nil {
		return nil, err
	}
	from, err := parseFlagDate("--from", f.from)
	if err != nil {
		return nil, err
	}
	to, err := parseFlagDate("--to", f.to)
	if err != nil {
		return nil, err
	}

	var stack *timeseries.Stack
	if f.mode == "snapshots" {
		stack, err = timeseries.FromSnapshots(paths, nil, timeseries.SnapshotOptions{Band: f.band, MaskBand: f.mask})
	} else {
		stack, err = timeseries.FromSequentialBands(paths, timeseries.BandOptions{})
	}
	if err != nil {
		return nil, err
	}
	return temporal.Aggregate(cmd.Context(), stack.Crop(from, to), period, f.stats, f.prefix, opts)
}

func parseFlagDate(name, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(timeseries.LabelLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s %q: want YYYY-MM-DD", name, s)
	}
	return t, nil
}
