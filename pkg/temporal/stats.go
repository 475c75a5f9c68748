package temporal

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
)

// Statistic names a per-pixel reduction over time.
type Statistic string

const (
	Mean   Statistic = "mean"
	Median Statistic = "median"
	Sum    Statistic = "sum"
	Perc95 Statistic = "perc95"
	Perc5  Statistic = "perc5"
	Max    Statistic = "max"
	Min    Statistic = "min"
)

// Supported lists every statistic in canonical order.
var Supported = []Statistic{Mean, Median, Sum, Perc95, Perc5, Max, Min}

// ParseStatistics validates names and converts them, preserving order.
// Unknown or repeated names and an empty list are rejected.
func ParseStatistics(in []string) ([]Statistic, error) {
	if len(in) == 0 {
		return nil, &StatisticError{Reason: "no statistic requested"}
	}
	out := make([]Statistic, 0, len(in))
	for _, name := range in {
		s := Statistic(name)
		if !slices.Contains(Supported, s) {
			return nil, &StatisticError{Name: name, Reason: "unknown"}
		}
		if slices.Contains(out, s) {
			return nil, &StatisticError{Name: name, Reason: "requested twice"}
		}
		out = append(out, s)
	}
	return out, nil
}

func names(stats []Statistic) []string {
	out := make([]string, len(stats))
	for i, s := range stats {
		out[i] = string(s)
	}
	return out
}

// reducer computes statistics over the valid (non-NaN) samples of one pixel.
// It keeps a scratch buffer so a worker allocates once per bin.
type reducer struct {
	vals   []float64
	sorted bool
}

func (r *reducer) reset() {
	r.vals = r.vals[:0]
	r.sorted = false
}

func (r *reducer) add(v float64) {
	if !math.IsNaN(v) {
		r.vals = append(r.vals, v)
	}
}

func (r *reducer) compute(s Statistic) float64 {
	if len(r.vals) == 0 {
		if s == Sum {
			return 0
		}
		return math.NaN()
	}
	switch s {
	case Mean:
		return floats.Sum(r.vals) / float64(len(r.vals))
	case Sum:
		return floats.Sum(r.vals)
	case Max:
		return floats.Max(r.vals)
	case Min:
		return floats.Min(r.vals)
	case Median:
		return r.percentile(0.5)
	case Perc95:
		return r.percentile(0.95)
	case Perc5:
		return r.percentile(0.05)
	}
	return math.NaN()
}

// percentile interpolates linearly between the closest ranks, matching
// numpy's default method.
func (r *reducer) percentile(q float64) float64 {
	if !r.sorted {
		slices.Sort(r.vals)
		r.sorted = true
	}
	return percentileSorted(r.vals, q)
}

func percentileSorted(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// reduceBands applies every statistic pixel-wise over the given bands and
// returns one output plane per statistic.
func reduceBands(bands [][]float64, plane int, stats []Statistic) [][]float64 {
	out := make([][]float64, len(stats))
	for i := range out {
		out[i] = make([]float64, plane)
	}
	r := &reducer{vals: make([]float64, 0, len(bands))}
	for p := 0; p < plane; p++ {
		r.reset()
		for _, band := range bands {
			r.add(band[p])
		}
		for i, s := range stats {
			out[i][p] = r.compute(s)
		}
	}
	return out
}
