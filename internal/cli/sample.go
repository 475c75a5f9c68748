package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eunmann/geodata-harvester/pkg/ledger"
	"github.com/eunmann/geodata-harvester/pkg/points"
	"github.com/eunmann/geodata-harvester/pkg/sampler"
)

type sampleFlags struct {
	points     string
	lon, lat   string
	ledger     string
	titles     []string
	method     string
	tolerance  float64
	duplicates string
	workers    int
	outDir     string
	base       string
}

func newSampleCmd() *cobra.Command {
	f := &sampleFlags{}
	cmd := &cobra.Command{
		Use:   "sample [flags] [RASTER...]",
		Short: "Sample rasters at query points and write csv, parquet and gpkg tables",
		Long: `sample reads every band of the given rasters (or of every raster recorded in
--ledger) at each query point and writes <out>/<name>.csv, .parquet and .gpkg.`,
		RunE: func(cmd *cobra.Command, rasters []string) error {
			return runSample(cmd, f, rasters)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.points, "points", "", "query points, csv or parquet (required)")
	fl.StringVar(&f.lon, "lon", points.DefaultLonColumn, "longitude column")
	fl.StringVar(&f.lat, "lat", points.DefaultLatColumn, "latitude column")
	fl.StringVar(&f.ledger, "ledger", "", "sample every raster recorded in this ledger")
	fl.StringSliceVar(&f.titles, "titles", nil, "column names for index sampling, one per raster")
	fl.StringVar(&f.method, "method", "nearest", "index, nearest, forward or backward")
	fl.Float64Var(&f.tolerance, "tolerance", 0, "maximum coordinate distance of a match, 0 for none")
	fl.StringVar(&f.duplicates, "duplicates", "suffix", "duplicate column policy: suffix, keep_first or error")
	fl.IntVar(&f.workers, "workers", 4, "rasters read concurrently")
	fl.StringVar(&f.outDir, "out", ".", "output directory")
	fl.StringVar(&f.base, "name", "results", "output file name without extension")
	return cmd
}

func runSample(cmd *cobra.Command, f *sampleFlags, rasters []string) error {
	if f.points == "" {
		return errors.New("--points is required")
	}
	method, err := sampler.ParseMethod(f.method)
	if err != nil {
		return err
	}
	dup, err := sampler.ParseDuplicatePolicy(f.duplicates)
	if err != nil {
		return err
	}

	titles := f.titles
	if f.ledger != "" {
		led, err := ledger.Open(f.ledger)
		if err != nil {
			return err
		}
		rasters = append(rasters, led.Paths()...)
		if len(titles) == 0 {
			titles = led.Titles()
		}
	}
	if len(rasters) == 0 {
		return errors.New("no rasters: pass files or --ledger")
	}

	pts, err := points.Load(f.points, points.Columns{Lon: f.lon, Lat: f.lat})
	if err != nil {
		return err
	}
	opts := sampler.Options{Method: method, Tolerance: f.tolerance, Duplicates: dup, Workers: f.workers}
	tbl, err := sampler.Sample(cmd.Context(), pts, rasters, titles, opts)
	if err != nil {
		return err
	}
	paths, err := sampler.WriteAll(f.outDir, f.base, tbl)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Fprintln(cmd.OutOrStdout(), p)
	}
	return nil
}
