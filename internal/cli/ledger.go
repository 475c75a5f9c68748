package cli

import (
	"encoding/csv"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eunmann/geodata-harvester/pkg/ledger"
)

func newLedgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect and update a download ledger",
	}
	cmd.AddCommand(newLedgerShowCmd(), newLedgerAddCmd())
	return cmd
}

func newLedgerShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show LEDGER",
		Short: "Print the rows of a ledger as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			led, err := ledger.Open(args[0])
			if err != nil {
				return err
			}
			w := csv.NewWriter(cmd.OutOrStdout())
			if err := w.Write(ledger.Header); err != nil {
				return err
			}
			for _, e := range led.Entries() {
				if err := w.Write(e.Record()); err != nil {
					return err
				}
			}
			w.Flush()
			return w.Error()
		},
	}
}

type ledgerAddFlags struct {
	layers  []string
	dataset string
	titles  []string
	aggs    []string
	status  []string
	force   bool
}

func newLedgerAddCmd() *cobra.Command {
	f := &ledgerAddFlags{}
	cmd := &cobra.Command{
		Use:   "add [flags] LEDGER FILE...",
		Short: "Record output files in a ledger, creating it if needed",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			led, err := ledger.OpenOrNew(args[0])
			if err != nil {
				return err
			}
			files := args[1:]
			layers := f.layers
			if len(layers) == 1 && len(files) > 1 {
				for len(layers) < len(files) {
					layers = append(layers, f.layers[0])
				}
			}
			err = led.Update(ledger.Batch{
				Filenames:  files,
				Layernames: layers,
				Dataset:    f.dataset,
				Titles:     f.titles,
				AggLabels:  f.aggs,
				Status:     f.status,
			}, f.force)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rows\n", led.Path(), led.Len())
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringSliceVar(&f.layers, "layer", nil, "layer name per file, or one for all (required)")
	fl.StringVar(&f.dataset, "dataset", "", "dataset name")
	fl.StringSliceVar(&f.titles, "title", nil, "layer title per file")
	fl.StringSliceVar(&f.aggs, "agg", nil, "aggregation label per file, or one for all")
	fl.StringSliceVar(&f.status, "status", nil, "status per file, or one for all")
	fl.BoolVar(&f.force, "force", false, "replace rows of files already recorded")
	_ = cmd.MarkFlagRequired("layer")
	return cmd
}
