// Package timeseries assembles per-date raster files into a single stack with
// an explicit time axis.
package timeseries

import (
	"time"

	"github.com/eunmann/geodata-harvester/pkg/raster"
)

// TimeDim is the band dimension name of every stack.
const TimeDim = "time"

// LabelLayout is the date format used for the labels of stack bands.
const LabelLayout = "2006-01-02"

// Stack is a raster whose bands are time steps. Times has one entry per band
// and need not be increasing.
type Stack struct {
	*raster.Grid
	Times []time.Time
}

// NewStack wraps g with the given times, rewriting its band axis so the band
// coordinates are Unix days and the labels are dates.
func NewStack(g *raster.Grid, times []time.Time) *Stack {
	g.BandDim = TimeDim
	g.BandCoords = make([]float64, len(times))
	g.Labels = make([]string, len(times))
	for i, t := range times {
		g.BandCoords[i] = float64(t.Unix()) / 86400
		g.Labels[i] = t.Format(LabelLayout)
	}
	return &Stack{Grid: g, Times: times}
}

// Len returns the number of time steps.
func (s *Stack) Len() int {
	return len(s.Times)
}

// Crop returns the steps whose time lies within [start, end]. Either bound
// may be the zero time to leave that side open.
func (s *Stack) Crop(start, end time.Time) *Stack {
	var keep []int
	for i, t := range s.Times {
		if !start.IsZero() && t.Before(start) {
			continue
		}
		if !end.IsZero() && t.After(end) {
			continue
		}
		keep = append(keep, i)
	}
	return s.Select(keep)
}

// Select returns a stack holding the given steps, in the given order. Pixel
// data is shared with s.
func (s *Stack) Select(steps []int) *Stack {
	g := *s.Grid
	g.Bands = make([][]float64, len(steps))
	times := make([]time.Time, len(steps))
	for i, step := range steps {
		g.Bands[i] = s.Bands[step]
		times[i] = s.Times[step]
	}
	return NewStack(&g, times)
}
