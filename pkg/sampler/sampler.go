// Package sampler extracts raster values at query points into a table and
// writes the table as CSV, Parquet or GeoPackage.
package sampler

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eunmann/geodata-harvester/internal/logctx"
	"github.com/eunmann/geodata-harvester/pkg/logging"
	"github.com/eunmann/geodata-harvester/pkg/points"
	"github.com/eunmann/geodata-harvester/pkg/raster"
)

// column is one sampled band before duplicate resolution.
type column struct {
	name   string
	raster string
	values []float64
}

// Sample dispatches to SampleIndex or SampleNearest according to opts.Method.
// titles are only used by the index method.
func Sample(ctx context.Context, pts []points.Point, rasters, titles []string, opts Options) (*Table, error) {
	if opts.Method == Index {
		return SampleIndex(ctx, pts, rasters, titles, opts)
	}
	return SampleNearest(ctx, pts, rasters, opts)
}

// SampleIndex reads band 1 of every raster at the pixel computed directly
// from the affine transform:
//
//	col = int((lon - c) / a)
//	row = int((lat - f) / e)
//
// Points outside the grid get the value 0. A column is named by the matching
// title when titles pairs with rasters, else by the raster's stem.
func SampleIndex(ctx context.Context, pts []points.Point, rasters, titles []string, opts Options) (*Table, error) {
	names := make([]string, len(rasters))
	for i, path := range rasters {
		names[i] = raster.Stem(path)
		if len(titles) == len(rasters) && titles[i] != "" {
			names[i] = titles[i]
		}
	}
	return sampleAll(ctx, pts, rasters, opts, func(path string, i int) ([]column, error) {
		g, err := raster.Read(path)
		if err != nil {
			return nil, err
		}
		values := make([]float64, len(pts))
		t := g.Transform
		for k, p := range pts {
			col := int((p.Lon - t.C) / t.A)
			row := int((p.Lat - t.F) / t.E)
			if col < 0 || row < 0 || col >= g.Width || row >= g.Height {
				continue
			}
			values[k] = g.At(0, row, col)
		}
		return []column{{name: names[i], raster: path, values: values}}, nil
	})
}

// SampleNearest samples every band of every raster by matching each query
// coordinate against the raster's x and y coordinate axes. Columns are named
// <stem>_<label>, with the label taken from the band labels when present and
// the band coordinate otherwise.
func SampleNearest(ctx context.Context, pts []points.Point, rasters []string, opts Options) (*Table, error) {
	return sampleAll(ctx, pts, rasters, opts, func(path string, _ int) ([]column, error) {
		g, err := raster.Read(path)
		if err != nil {
			return nil, err
		}
		rows := make([]int, len(pts))
		cols := make([]int, len(pts))
		hit := make([]bool, len(pts))
		for k, p := range pts {
			c, okX := axisIndex(g.X, p.Lon, opts.Method, opts.Tolerance)
			r, okY := axisIndex(g.Y, p.Lat, opts.Method, opts.Tolerance)
			rows[k], cols[k], hit[k] = r, c, okX && okY
		}

		stem := raster.Stem(path)
		labels := g.BandLabels()
		out := make([]column, g.NumBands())
		for b := range out {
			values := make([]float64, len(pts))
			for k := range pts {
				if !hit[k] {
					values[k] = math.NaN()
					continue
				}
				values[k] = g.At(b, rows[k], cols[k])
			}
			out[b] = column{name: stem + "_" + labels[b], raster: path, values: values}
		}
		return out, nil
	})
}

func sampleAll(ctx context.Context, pts []points.Point, rasters []string, opts Options,
	sampleOne func(path string, i int) ([]column, error)) (*Table, error) {
	if len(rasters) == 0 {
		return nil, ErrNoRasters
	}
	log := logctx.FromContext(ctx).With().
		Str("phase", "sample").
		Str("method", opts.Method.String()).
		Str("duplicates", opts.Duplicates.String()).
		Logger()
	start := time.Now()
	progress := logging.NewProgressTracker("sample", int64(len(rasters)))

	perRaster := make([][]column, len(rasters))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(max(opts.Workers, 1))
	for i, path := range rasters {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rasterStart := time.Now()
			cols, err := sampleOne(path, i)
			if err != nil {
				progress.RecordFailure()
				return fmt.Errorf("sample %s: %w", filepath.Base(path), err)
			}
			progress.RecordCompletion(time.Since(rasterStart))
			perRaster[i] = cols
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	t := newTable(pts)
	// coordinate columns lead every table
	seen := map[string]int{LonColumn: 1, LatColumn: 1}
	for _, cols := range perRaster {
		for _, c := range cols {
			name, keep, err := resolveName(c, seen, opts.Duplicates)
			if err != nil {
				return nil, err
			}
			if !keep {
				log.Warn().Str("column", c.name).Str("raster", filepath.Base(c.raster)).
					Msg("duplicate column dropped")
				continue
			}
			t.add(name, c.values)
		}
	}

	logging.PhaseComplete(log, "sample", time.Since(start)).
		Int("points", t.NumRows()).
		Int("columns", len(t.Columns)).
		ProgressFromTracker(progress).
		Log("sampling complete")
	return t, nil
}

// resolveName applies policy to a column whose name is already taken by an
// earlier value column. A value column that only collides with a coordinate
// column is always suffixed.
func resolveName(c column, seen map[string]int, policy DuplicatePolicy) (string, bool, error) {
	n, dup := seen[c.name]
	if !dup {
		seen[c.name] = 1
		return c.name, true, nil
	}
	coordinateOnly := (c.name == LonColumn || c.name == LatColumn) && n == 1
	if !coordinateOnly {
		switch policy {
		case DuplicateKeepFirst:
			return "", false, nil
		case DuplicateError:
			return "", false, &DuplicateColumnError{Column: c.name, Raster: c.raster}
		}
	}
	for {
		n++
		name := c.name + "_" + strconv.Itoa(n)
		if _, taken := seen[name]; !taken {
			seen[c.name] = n
			seen[name] = 1
			return name, true, nil
		}
	}
}
