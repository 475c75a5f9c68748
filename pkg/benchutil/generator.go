// Package benchutil generates synthetic rasters and query points for
// benchmarks and tests.
package benchutil

import (
	"math"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/eunmann/geodata-harvester/pkg/points"
	"github.com/eunmann/geodata-harvester/pkg/raster"
	"github.com/eunmann/geodata-harvester/pkg/timeseries"
)

// SeriesConfig configures a synthetic daily time series.
type SeriesConfig struct {
	Width  int
	Height int
	Steps  int
	Start  time.Time
	// NaNFraction of pixels are missing.
	NaNFraction float64
	// Origin is the top-left corner; pixels are PixelSize degrees wide.
	OriginLon float64
	OriginLat float64
	PixelSize float64
	Seed      int64
}

// DefaultSeries returns a size x size grid of steps daily bands starting
// 2020-01-01 over south-eastern Australia.
func DefaultSeries(size, steps int) SeriesConfig {
	return SeriesConfig{
		Width:       size,
		Height:      size,
		Steps:       steps,
		Start:       time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		NaNFraction: 0.05,
		OriginLon:   140,
		OriginLat:   -30,
		PixelSize:   0.01,
		Seed:        BenchmarkSeed,
	}
}

// Transform returns the affine transform of the configured grid.
func (c SeriesConfig) Transform() raster.Affine {
	return raster.Affine{A: c.PixelSize, C: c.OriginLon, E: -c.PixelSize, F: c.OriginLat}
}

// BBox returns the grid extent as (minx, miny, maxx, maxy).
func (c SeriesConfig) BBox() [4]float64 {
	return [4]float64{
		c.OriginLon, c.OriginLat - float64(c.Height)*c.PixelSize,
		c.OriginLon + float64(c.Width)*c.PixelSize, c.OriginLat,
	}
}

// Grid builds the series as one multi-band grid with a daily value cycle
// plus noise. Band labels are the step dates.
func Grid(c SeriesConfig) *raster.Grid {
	rng := rand.New(rand.NewSource(c.Seed))
	g := raster.New(c.Width, c.Height, c.Steps, c.Transform(), "EPSG:4326")
	g.Labels = make([]string, c.Steps)
	for b := range g.Bands {
		g.Labels[b] = c.Start.AddDate(0, 0, b).Format(timeseries.LabelLayout)
		season := 10 * math.Sin(2*math.Pi*float64(b)/365)
		for p := range g.Bands[b] {
			if rng.Float64() < c.NaNFraction {
				g.Bands[b][p] = math.NaN()
				continue
			}
			g.Bands[b][p] = 20 + season + rng.NormFloat64()
		}
	}
	return g
}

// Stack returns the series as a time stack.
func Stack(c SeriesConfig) *timeseries.Stack {
	g := Grid(c)
	times := make([]time.Time, c.Steps)
	for i := range times {
		times[i] = c.Start.AddDate(0, 0, i)
	}
	return timeseries.NewStack(g, times)
}

// WriteSeries writes the series to dir/name.nc and returns the path.
func WriteSeries(tb testing.TB, dir, name string, c SeriesConfig) string {
	tb.Helper()
	path := filepath.Join(dir, name+".nc")
	if err := raster.Write(path, Grid(c)); err != nil {
		tb.Fatalf("write series: %v", err)
	}
	return path
}

// Points returns n uniformly scattered points inside bbox.
func Points(n int, bbox [4]float64, seed int64) []points.Point {
	rng := rand.New(rand.NewSource(seed))
	out := make([]points.Point, n)
	for i := range out {
		out[i] = points.Point{
			Lon: bbox[0] + rng.Float64()*(bbox[2]-bbox[0]),
			Lat: bbox[1] + rng.Float64()*(bbox[3]-bbox[1]),
		}
	}
	return out
}
