// Package temporal reduces raster time series over calendar or positional
// bins and writes one raster per (statistic, bin).
package temporal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/eunmann/geodata-harvester/internal/logctx"
	"github.com/eunmann/geodata-harvester/pkg/logging"
	"github.com/eunmann/geodata-harvester/pkg/membudget"
	"github.com/eunmann/geodata-harvester/pkg/nodata"
	"github.com/eunmann/geodata-harvester/pkg/raster"
	"github.com/eunmann/geodata-harvester/pkg/timeseries"
)

// Extension is appended to every output path.
const Extension = ".nc"

// Options tunes Aggregate.
type Options struct {
	// Buffer keeps only the first Buffer steps of each bin. Zero keeps all.
	Buffer int
	// FillNaN replaces nodata sentinels with NaN before reducing.
	FillNaN bool
	// Workers bounds the number of bins reduced concurrently.
	Workers int
	// Budget, when set, also bounds concurrent bins by the memory their
	// output planes hold.
	Budget *membudget.Budget
}

// DefaultOptions returns options with nodata filling enabled and bins
// reduced one at a time.
func DefaultOptions() Options {
	return Options{FillNaN: true, Workers: 1}
}

// Result is one written output.
type Result struct {
	Path      string
	Statistic Statistic
	// Label is the bin label, empty for composites.
	Label string
	// Start is the time of the bin's first step, zero for composites.
	Start time.Time
}

// OutputPath returns the path of the output for one statistic and bin label.
func OutputPath(prefix string, stat Statistic, label string) string {
	if label == "" {
		return prefix + "_" + string(stat) + Extension
	}
	return prefix + "_" + string(stat) + "_" + label + Extension
}

// Aggregate bins the stack by period, reduces every bin with every statistic
// and writes one single-band raster per (statistic, bin). Results are ordered
// statistic-major then bin-minor.
//
// All arguments are validated before anything is written. Outputs are not
// written transactionally: on failure, files already written stay in place.
func Aggregate(ctx context.Context, s *timeseries.Stack, p Period, statNames []string, prefix string, opts Options) ([]Result, error) {
	stats, err := ParseStatistics(statNames)
	if err != nil {
		return nil, err
	}
	if s == nil || s.Len() == 0 {
		return nil, ErrEmptyStack
	}
	if opts.Buffer < 0 {
		return nil, fmt.Errorf("%w: buffer %d", ErrInvalidPeriod, opts.Buffer)
	}
	bins, err := Bins(s, p)
	if err != nil {
		return nil, err
	}
	labels := make([]string, len(bins))
	for i, b := range bins {
		labels[i] = b.Label
	}
	if err := checkOutputs(prefix, stats, labels); err != nil {
		return nil, err
	}

	if opts.FillNaN {
		g, _ := nodata.Resolve(s.Grid)
		s = &timeseries.Stack{Grid: g, Times: s.Times}
	}

	log := logctx.FromContext(ctx).With().Str("phase", "aggregate").Str("period", p.String()).Logger()
	start := time.Now()

	// reduced planes plus their output copies
	binBytes := membudget.PlaneBytes(s.Width, s.Height, 2*len(stats))
	written := make([][]Result, len(bins))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(max(opts.Workers, 1))
	for i, bin := range bins {
		eg.Go(func() error {
			if opts.Budget != nil {
				if !opts.Budget.TryReserve(binBytes) {
					log.Debug().Str("bin", bin.Label).Uint64("bytes", binBytes).Msg("waiting for memory budget")
					if err := opts.Budget.Reserve(ctx, binBytes); err != nil {
						return fmt.Errorf("bin %s: %w", bin.Label, err)
					}
				}
				defer opts.Budget.Release(binBytes)
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			steps := bin.Steps
			if opts.Buffer > 0 && len(steps) > opts.Buffer {
				steps = steps[:opts.Buffer]
			}
			bands := make([][]float64, len(steps))
			for j, step := range steps {
				bands[j] = s.Bands[step]
			}
			planes := reduceBands(bands, s.Width*s.Height, stats)

			results := make([]Result, len(stats))
			for k, stat := range stats {
				path := OutputPath(prefix, stat, bin.Label)
				if err := writeOutput(log, path, outputGrid(s.Grid, planes[k], stat, bin.Label, opts.FillNaN)); err != nil {
					return err
				}
				results[k] = Result{Path: path, Statistic: stat, Label: bin.Label, Start: bin.Start}
			}
			written[i] = results
			log.Debug().Str("bin", bin.Label).Int("steps", len(steps)).Msg("bin reduced")
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	out := make([]Result, 0, len(bins)*len(stats))
	for k := range stats {
		for i := range bins {
			out = append(out, written[i][k])
		}
	}
	logging.PhaseComplete(log, "aggregate", time.Since(start)).
		Int("bins", len(bins)).
		Strs("statistics", names(stats)).
		Int("outputs", len(out)).
		Log("temporal aggregation complete")
	return out, nil
}

// Composite pools every band of every file and writes one raster per
// statistic to <prefix>_<stat>.nc.
func Composite(ctx context.Context, paths []string, statNames []string, prefix string, opts Options) ([]Result, error) {
	stats, err := ParseStatistics(statNames)
	if err != nil {
		return nil, err
	}
	grids, err := readAll(ctx, paths, opts.FillNaN)
	if err != nil {
		return nil, err
	}
	var bands [][]float64
	for _, g := range grids {
		bands = append(bands, g.Bands...)
	}
	ref := grids[0]
	planes := reduceBands(bands, ref.Width*ref.Height, stats)

	log := logctx.FromContext(ctx).With().Str("phase", "composite").Logger()
	out := make([]Result, len(stats))
	for k, stat := range stats {
		path := OutputPath(prefix, stat, "")
		if err := writeOutput(log, path, outputGrid(ref, planes[k], stat, "", opts.FillNaN)); err != nil {
			return nil, err
		}
		out[k] = Result{Path: path, Statistic: stat}
	}
	return out, nil
}

// CompositeBands reduces each band position across all files separately and
// writes <prefix>_<stat>_channel_<label>.nc per statistic and band. Every
// file must have the same bands.
func CompositeBands(ctx context.Context, paths []string, statNames []string, prefix string, opts Options) ([]Result, error) {
	stats, err := ParseStatistics(statNames)
	if err != nil {
		return nil, err
	}
	grids, err := readAll(ctx, paths, opts.FillNaN)
	if err != nil {
		return nil, err
	}
	ref := grids[0]
	for i, g := range grids[1:] {
		if g.NumBands() != ref.NumBands() {
			return nil, fmt.Errorf("%s: %w: %d bands, want %d", paths[i+1], ErrBandMismatch, g.NumBands(), ref.NumBands())
		}
	}

	labels := make([]string, ref.NumBands())
	for b, label := range ref.BandLabels() {
		labels[b] = "channel_" + sanitizeLabel(label)
	}
	if err := checkOutputs(prefix, stats, labels); err != nil {
		return nil, err
	}
	planesByBand := make([][][]float64, ref.NumBands())
	for b := range planesByBand {
		bands := make([][]float64, len(grids))
		for i, g := range grids {
			bands[i] = g.Bands[b]
		}
		planesByBand[b] = reduceBands(bands, ref.Width*ref.Height, stats)
	}

	log := logctx.FromContext(ctx).With().Str("phase", "composite").Logger()
	out := make([]Result, 0, len(stats)*len(labels))
	for k, stat := range stats {
		for b, label := range labels {
			path := OutputPath(prefix, stat, label)
			if err := writeOutput(log, path, outputGrid(ref, planesByBand[b][k], stat, label, opts.FillNaN)); err != nil {
				return nil, err
			}
			out = append(out, Result{Path: path, Statistic: stat, Label: label})
		}
	}
	return out, nil
}

func writeOutput(log zerolog.Logger, path string, g *raster.Grid) error {
	start := time.Now()
	if err := raster.Write(path, g); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	logging.FileCreated(log, "aggregate", time.Since(start)).
		Str("path", path).
		Int("bands", g.NumBands()).
		LogDebug("raster written")
	return nil
}

// checkOutputs rejects a call whose outputs would overwrite each other.
func checkOutputs(prefix string, stats []Statistic, labels []string) error {
	seen := make(map[string]bool, len(stats)*len(labels))
	for _, stat := range stats {
		for _, label := range labels {
			path := OutputPath(prefix, stat, label)
			if seen[path] {
				return fmt.Errorf("%w: %s", ErrDuplicateOutput, path)
			}
			seen[path] = true
		}
	}
	return nil
}

func readAll(ctx context.Context, paths []string, fillNaN bool) ([]*raster.Grid, error) {
	if len(paths) == 0 {
		return nil, ErrEmptyStack
	}
	grids := make([]*raster.Grid, len(paths))
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		g, err := raster.Read(path)
		if err != nil {
			return nil, err
		}
		if i > 0 && !g.SameGeometry(grids[0]) {
			return nil, fmt.Errorf("%s: %w: geometry differs from %s", path, ErrBandMismatch, paths[0])
		}
		if fillNaN {
			g, _ = nodata.Resolve(g)
		}
		grids[i] = g
	}
	return grids, nil
}

// outputGrid wraps one reduced plane with the reference georeference. When
// nodata was resolved the sentinel attributes are dropped: missing pixels are
// NaN from then on.
func outputGrid(ref *raster.Grid, plane []float64, stat Statistic, label string, resolved bool) *raster.Grid {
	g := ref.SingleBand(plane, label)
	for k, v := range ref.Attrs {
		if k == raster.LabelAttribute || (resolved && isNodataAttr(k)) {
			continue
		}
		g.Attrs[k] = v
	}
	g.Attrs["statistic"] = string(stat)
	return g
}

func isNodataAttr(name string) bool {
	for _, c := range nodata.Candidates {
		if strings.EqualFold(name, c) {
			return true
		}
	}
	return false
}

func sanitizeLabel(label string) string {
	return strings.NewReplacer("/", "-", " ", "_").Replace(label)
}
