package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eunmann/geodata-harvester/internal/config"
	"github.com/eunmann/geodata-harvester/pkg/harvest"
	"github.com/eunmann/geodata-harvester/pkg/humanfmt"
	"github.com/eunmann/geodata-harvester/pkg/logging"
	"github.com/eunmann/geodata-harvester/pkg/points"
	"github.com/eunmann/geodata-harvester/pkg/s3source"
)

func newHarvestCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "harvest",
		Short: "Run the full pipeline described by the settings file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(flags.config)
			if err != nil {
				return err
			}
			if cfg.Log.Debug || cfg.Log.Human {
				logging.Init(flags.debug || cfg.Log.Debug, flags.human || cfg.Log.Human)
			}
			return runHarvest(cmd, cfg)
		},
	}
}

func runHarvest(cmd *cobra.Command, cfg *config.Config) error {
	ctx := cmd.Context()

	var pts []points.Point
	if cfg.InFile != "" {
		var err error
		if pts, err = points.Load(cfg.InFile, cfg.PointColumns()); err != nil {
			return err
		}
	}
	hc, err := cfg.Harvest(pts)
	if err != nil {
		return err
	}
	sources, err := buildSources(ctx, cfg)
	if err != nil {
		return err
	}
	h, err := harvest.New(hc, sources)
	if err != nil {
		return err
	}
	report, err := h.Run(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s: %d sources, %d ledger rows (%s) in %s\n",
		report.RunID, len(report.Sources), report.LedgerRows, report.LedgerPath, humanfmt.Duration(report.Elapsed))
	fmt.Fprintf(out, "  bbox %s at %s", humanfmt.BBox(report.BBox), humanfmt.Resolution(hc.Resolution))
	if report.PeriodDays > 0 {
		fmt.Fprintf(out, ", %d-day periods", report.PeriodDays)
	}
	fmt.Fprintln(out)
	for _, s := range report.Sources {
		status := "ok"
		if !s.OK() {
			status = fmt.Sprintf("failed at %s: %v", s.Stage, s.Err)
		}
		fmt.Fprintf(out, "  %-12s files=%-4d outputs=%-4d %-8s %s\n",
			s.Source, s.Files, len(s.Outputs), humanfmt.Duration(s.Elapsed), status)
	}
	if report.SampleRows > 0 {
		fmt.Fprintf(out, "  sampled %s points x %d columns\n", humanfmt.Count(int64(report.SampleRows)), report.SampleColumns)
	}
	for _, p := range report.SamplePaths {
		fmt.Fprintf(out, "  wrote %s\n", p)
	}
	return report.Err()
}

func buildSources(ctx context.Context, cfg *config.Config) ([]harvest.Source, error) {
	sources := make([]harvest.Source, 0, len(cfg.Sources))
	clients := make(map[string]*s3source.Client)
	for _, sc := range cfg.Sources {
		switch sc.Kind {
		case config.KindS3:
			client, ok := clients[sc.Region]
			if !ok {
				var err error
				if client, err = s3source.NewClient(ctx, sc.Region); err != nil {
					return nil, err
				}
				clients[sc.Region] = client
			}
			src, err := s3source.New(client, s3source.Config{
				Name:        sc.Name,
				Bucket:      sc.Bucket,
				Prefix:      sc.Prefix,
				Layers:      sc.LayerSpecs(),
				Concurrency: sc.Concurrency,
				UseManifest: sc.Manifest,
			})
			if err != nil {
				return nil, fmt.Errorf("source %s: %w", sc.Name, err)
			}
			sources = append(sources, src)
		default:
			sources = append(sources, &harvest.LocalSource{SourceName: sc.Name, Dir: sc.Dir, Layers: sc.LayerSpecs()})
		}
	}
	return sources, nil
}
