// Package cli implements the command-line interface for geoharvest.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/eunmann/geodata-harvester/pkg/logging"
)

type rootFlags struct {
	config string
	debug  bool
	human  bool
}

// Run executes the CLI with the given arguments.
func Run(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:   "geoharvest",
		Short: "Harvest, aggregate and sample geospatial rasters",
		Long: `geoharvest fetches raster layers from local directories or S3, reduces
time series into per-period statistics, records every output in a CSV ledger
and samples all recorded rasters at a set of query points.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			logging.Init(flags.debug, flags.human)
		},
	}
	root.PersistentFlags().StringVar(&flags.config, "config", "", "settings file (YAML)")
	root.PersistentFlags().BoolVar(&flags.debug, "debug", false, "enable debug logging")
	root.PersistentFlags().BoolVar(&flags.human, "human", false, "human-readable console logs")

	root.AddCommand(
		newHarvestCmd(flags),
		newAggregateCmd(),
		newSampleCmd(),
		newLedgerCmd(),
	)
	return root
}
