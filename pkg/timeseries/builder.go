package timeseries

import (
	"fmt"
	"maps"
	"math"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/eunmann/geodata-harvester/pkg/logging"
	"github.com/eunmann/geodata-harvester/pkg/raster"
)

// Defaults for BandOptions.
const (
	DefaultChannelName   = raster.DefaultBandDim
	DefaultAttributeName = raster.LabelAttribute
)

// SuffixLayout is the date format of snapshot filename suffixes.
const SuffixLayout = "2006-01-02"

// labelLayouts are tried in order when parsing band date labels.
var labelLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"20060102",
	"2006-01",
}

// BandOptions configures FromSequentialBands.
type BandOptions struct {
	// ChannelName is the band dimension holding the time steps.
	ChannelName string
	// AttributeName holds one date label per band.
	AttributeName string
}

func (o BandOptions) withDefaults() BandOptions {
	if o.ChannelName == "" {
		o.ChannelName = DefaultChannelName
	}
	if o.AttributeName == "" {
		o.AttributeName = DefaultAttributeName
	}
	return o
}

// SnapshotOptions configures FromSnapshots.
type SnapshotOptions struct {
	// Band selects the data band of multi-band snapshots, 1-based.
	Band int
	// BandLabel selects the data band by label when Band is zero.
	BandLabel string
	// MaskBand names a band (label or 1-based index) whose non-zero pixels
	// are set to NaN in the selected band.
	MaskBand string
}

// FromSequentialBands stacks multi-band rasters whose bands are consecutive
// time steps. Every file must carry the band dimension opts.ChannelName and
// the label attribute opts.AttributeName with one date per band.
func FromSequentialBands(paths []string, opts BandOptions) (*Stack, error) {
	if len(paths) == 0 {
		return nil, ErrNoFiles
	}
	opts = opts.withDefaults()
	log := logging.WithPhase("timeseries")

	var (
		first  *raster.Grid
		bands  [][]float64
		times  []time.Time
		steps  []float64
		offset float64
	)
	for _, path := range paths {
		g, err := raster.Read(path)
		if err != nil {
			return nil, err
		}
		if g.BandDim != opts.ChannelName {
			available := []string{"y", "x"}
			if g.BandDim != "" {
				available = append([]string{g.BandDim}, available...)
			}
			return nil, &AttributeError{Path: path, Kind: "dimension", Name: opts.ChannelName, Available: available}
		}
		labels, ok := g.AttrStrings(opts.AttributeName)
		if !ok {
			return nil, &AttributeError{Path: path, Kind: "attribute", Name: opts.AttributeName, Available: attrNames(g)}
		}
		if len(labels) != g.NumBands() {
			return nil, fmt.Errorf("%s: %w: %d labels in %q for %d bands",
				path, ErrMissingAttribute, len(labels), opts.AttributeName, g.NumBands())
		}
		if first == nil {
			first = g
		} else if err := checkGeometry(path, first, g); err != nil {
			return nil, err
		}

		for i, label := range labels {
			t, err := parseLabel(label)
			if err != nil {
				return nil, &DateSuffixError{Path: path, Value: label}
			}
			times = append(times, t)
			steps = append(steps, g.BandCoords[i]+offset)
		}
		bands = append(bands, g.Bands...)
		offset = steps[len(steps)-1]

		log.Debug().Str("file", filepath.Base(path)).Int("bands", g.NumBands()).Msg("stacked file")
	}

	out := *first
	out.Bands = bands
	out.Attrs = make(map[string]any, len(first.Attrs))
	for k, v := range first.Attrs {
		if k != opts.AttributeName {
			out.Attrs[k] = v
		}
	}
	s := NewStack(&out, times)
	log.Debug().Int("files", len(paths)).Int("steps", s.Len()).
		Float64("last_index", steps[len(steps)-1]).Msg("built stack from sequential bands")
	return s, nil
}

// FromSnapshots stacks one raster per timestamp. When times is nil every
// file's date is parsed from its name with DateFromFilename.
func FromSnapshots(paths []string, times []time.Time, opts SnapshotOptions) (*Stack, error) {
	if len(paths) == 0 {
		return nil, ErrNoFiles
	}
	if times != nil && len(times) != len(paths) {
		return nil, fmt.Errorf("%w: %d times for %d paths", ErrTimesLength, len(times), len(paths))
	}
	stamps := make([]time.Time, len(paths))
	for i, path := range paths {
		if times != nil {
			stamps[i] = times[i]
			continue
		}
		t, err := DateFromFilename(path)
		if err != nil {
			return nil, err
		}
		stamps[i] = t
	}

	var first *raster.Grid
	bands := make([][]float64, len(paths))
	for i, path := range paths {
		g, err := raster.Read(path)
		if err != nil {
			return nil, err
		}
		if first == nil {
			first = g
		} else if err := checkGeometry(path, first, g); err != nil {
			return nil, err
		}
		band, err := selectBand(path, g, opts)
		if err != nil {
			return nil, err
		}
		bands[i] = band
	}

	out := *first
	out.Bands = bands
	out.Attrs = make(map[string]any, len(first.Attrs))
	for k, v := range first.Attrs {
		if k != raster.LabelAttribute {
			out.Attrs[k] = v
		}
	}
	log := logging.WithPhase("timeseries")
	log.Debug().Int("files", len(paths)).Msg("built stack from snapshots")
	return NewStack(&out, stamps), nil
}

// DateFromFilename parses the date after the final "_" of the file's stem, or
// the whole stem when it has no "_".
func DateFromFilename(path string) (time.Time, error) {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	suffix := stem
	if i := strings.LastIndex(stem, "_"); i >= 0 {
		suffix = stem[i+1:]
	}
	t, err := time.Parse(SuffixLayout, suffix)
	if err != nil {
		return time.Time{}, &DateSuffixError{Path: path, Value: suffix}
	}
	return t, nil
}

func selectBand(path string, g *raster.Grid, opts SnapshotOptions) ([]float64, error) {
	idx := 0
	switch {
	case opts.Band > 0:
		if opts.Band > g.NumBands() {
			return nil, fmt.Errorf("%s: %w: band %d of %d", path, ErrBandSelection, opts.Band, g.NumBands())
		}
		idx = opts.Band - 1
	case opts.BandLabel != "":
		idx = g.BandIndex(opts.BandLabel)
		if idx < 0 {
			return nil, fmt.Errorf("%s: %w: no band labelled %q", path, ErrBandSelection, opts.BandLabel)
		}
	case g.NumBands() > 1:
		return nil, fmt.Errorf("%s: %w: %d bands and no selector", path, ErrBandSelection, g.NumBands())
	}

	band := g.Bands[idx]
	if opts.MaskBand == "" {
		return band, nil
	}
	m, err := resolveBand(g, opts.MaskBand)
	if err != nil {
		return nil, fmt.Errorf("%s: mask: %w", path, err)
	}
	masked := make([]float64, len(band))
	copy(masked, band)
	nan := math.NaN()
	for i, v := range g.Bands[m] {
		if v != 0 {
			masked[i] = nan
		}
	}
	return masked, nil
}

func resolveBand(g *raster.Grid, ref string) (int, error) {
	if i := g.BandIndex(ref); i >= 0 {
		return i, nil
	}
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= g.NumBands() {
		return n - 1, nil
	}
	return 0, fmt.Errorf("%w: no band %q", ErrBandSelection, ref)
}

func checkGeometry(path string, want, got *raster.Grid) error {
	switch {
	case want.Width != got.Width || want.Height != got.Height:
		return &ShapeMismatchError{
			Path:     path,
			Property: "shape",
			Want:     fmt.Sprintf("%dx%d", want.Height, want.Width),
			Got:      fmt.Sprintf("%dx%d", got.Height, got.Width),
		}
	case want.CRS != got.CRS:
		return &ShapeMismatchError{Path: path, Property: "crs", Want: want.CRS, Got: got.CRS}
	case want.Transform != got.Transform:
		return &ShapeMismatchError{
			Path:     path,
			Property: "transform",
			Want:     fmt.Sprint(want.Transform.Coefficients()),
			Got:      fmt.Sprint(got.Transform.Coefficients()),
		}
	}
	return nil
}

func parseLabel(label string) (time.Time, error) {
	label = strings.TrimSpace(label)
	var err error
	for _, layout := range labelLayouts {
		var t time.Time
		if t, err = time.Parse(layout, label); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}

func attrNames(g *raster.Grid) []string {
	return slices.Sorted(maps.Keys(g.Attrs))
}
