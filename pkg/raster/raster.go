// Package raster holds the in-memory representation of a georeferenced pixel
// grid and reads and writes it as netCDF-3 files.
//
// A Grid stores one or more bands of Height x Width pixels. Bands are kept
// band-major and each band is row-major, so pixel (band b, row r, col c) lives
// at Bands[b][r*Width+c]. The band axis carries a coordinate dimension name
// ("band", "time", ...) and one coordinate value per band.
package raster

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	// DefaultVariable is the name of the data variable written by Write and
	// preferred by Read.
	DefaultVariable = "band_data"
	// DefaultBandDim is the band coordinate dimension used when none is set.
	DefaultBandDim = "band"
	// LabelAttribute holds the per-band descriptive labels.
	LabelAttribute = "long_name"
	// LabelSeparator joins per-band labels inside LabelAttribute.
	LabelSeparator = ";"
)

// Affine maps pixel indices to geographic coordinates:
//
//	x = A*col + B*row + C
//	y = D*col + E*row + F
//
// The coefficient order matches rasterio's Affine(a, b, c, d, e, f).
type Affine struct {
	A, B, C float64
	D, E, F float64
}

// Coefficients returns the six coefficients in a, b, c, d, e, f order.
func (t Affine) Coefficients() []float64 {
	return []float64{t.A, t.B, t.C, t.D, t.E, t.F}
}

// AffineFromCoefficients builds an Affine from six a..f coefficients.
func AffineFromCoefficients(c []float64) (Affine, error) {
	if len(c) != 6 {
		return Affine{}, fmt.Errorf("affine transform needs 6 coefficients, got %d", len(c))
	}
	return Affine{A: c[0], B: c[1], C: c[2], D: c[3], E: c[4], F: c[5]}, nil
}

// IsZero reports whether no transform has been set.
func (t Affine) IsZero() bool {
	return t == Affine{}
}

// PixelCenter returns the geographic coordinates of the centre of (row, col).
func (t Affine) PixelCenter(row, col int) (x, y float64) {
	fc, fr := float64(col)+0.5, float64(row)+0.5
	return t.A*fc + t.B*fr + t.C, t.D*fc + t.E*fr + t.F
}

// Grid is a georeferenced raster with one or more bands.
//
// Grids are treated as immutable once read: every operation in this module
// that changes pixels returns a new Grid.
type Grid struct {
	Width  int
	Height int
	// Bands holds Width*Height pixels per band, row-major.
	Bands [][]float64

	// BandDim is the name of the band coordinate dimension, empty when the
	// source file had only (y, x) dimensions.
	BandDim string
	// BandCoords has one coordinate value per band.
	BandCoords []float64
	// Labels has one descriptive label per band, or is empty.
	Labels []string

	// X and Y are pixel-centre coordinates along each axis.
	X []float64
	Y []float64

	CRS       string
	Transform Affine

	// NoData is the declared missing-value sentinel, nil when absent.
	NoData *float64

	// Attrs merges the file's global attributes with the data variable's
	// attributes. Values are either string or []float64.
	Attrs map[string]any
}

// New allocates a zero-filled grid with the given shape. Band coordinates are
// 1..bands and X/Y are derived from transform.
func New(width, height, bands int, transform Affine, crs string) *Grid {
	g := &Grid{
		Width:      width,
		Height:     height,
		Bands:      make([][]float64, bands),
		BandDim:    DefaultBandDim,
		BandCoords: make([]float64, bands),
		CRS:        crs,
		Transform:  transform,
		Attrs:      make(map[string]any),
	}
	for b := range g.Bands {
		g.Bands[b] = make([]float64, width*height)
		g.BandCoords[b] = float64(b + 1)
	}
	g.X, g.Y = axesFromTransform(transform, width, height)
	return g
}

func axesFromTransform(t Affine, width, height int) (xs, ys []float64) {
	xs = make([]float64, width)
	for c := range xs {
		xs[c], _ = t.PixelCenter(0, c)
	}
	ys = make([]float64, height)
	for r := range ys {
		_, ys[r] = t.PixelCenter(r, 0)
	}
	return xs, ys
}

// NumBands returns the number of bands.
func (g *Grid) NumBands() int {
	return len(g.Bands)
}

// At returns the pixel value at (band, row, col).
func (g *Grid) At(band, row, col int) float64 {
	return g.Bands[band][row*g.Width+col]
}

// Set stores v at (band, row, col).
func (g *Grid) Set(band, row, col int, v float64) {
	g.Bands[band][row*g.Width+col] = v
}

// SameGeometry reports whether o has the same shape, CRS and transform as g.
// Band counts are not compared.
func (g *Grid) SameGeometry(o *Grid) bool {
	return g.Width == o.Width && g.Height == o.Height &&
		g.CRS == o.CRS && g.Transform == o.Transform
}

// Attr returns the attribute value stored under name.
func (g *Grid) Attr(name string) (any, bool) {
	v, ok := g.Attrs[name]
	return v, ok
}

// AttrStrings returns a string attribute split into per-band labels.
func (g *Grid) AttrStrings(name string) ([]string, bool) {
	v, ok := g.Attrs[name]
	if !ok {
		return nil, false
	}
	s, ok := v.(string)
	if !ok {
		return nil, false
	}
	return SplitLabels(s), true
}

// BandLabels returns the descriptive label of every band. When the label
// count does not match the band count the band coordinate values are used.
func (g *Grid) BandLabels() []string {
	if len(g.Labels) == g.NumBands() && len(g.Labels) > 0 {
		return g.Labels
	}
	out := make([]string, g.NumBands())
	for b := range out {
		out[b] = formatCoord(g.BandCoords[b])
	}
	return out
}

// BandIndex resolves a band by label. It returns -1 when no band matches.
func (g *Grid) BandIndex(label string) int {
	for i, l := range g.Labels {
		if l == label {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of g.
func (g *Grid) Clone() *Grid {
	c := *g
	c.Bands = make([][]float64, len(g.Bands))
	for b, band := range g.Bands {
		c.Bands[b] = append([]float64(nil), band...)
	}
	c.BandCoords = append([]float64(nil), g.BandCoords...)
	c.Labels = append([]string(nil), g.Labels...)
	c.X = append([]float64(nil), g.X...)
	c.Y = append([]float64(nil), g.Y...)
	if g.NoData != nil {
		v := *g.NoData
		c.NoData = &v
	}
	c.Attrs = make(map[string]any, len(g.Attrs))
	for k, v := range g.Attrs {
		if f, ok := v.([]float64); ok {
			v = append([]float64(nil), f...)
		}
		c.Attrs[k] = v
	}
	return &c
}

// SingleBand returns a new one-band grid sharing g's georeference with data
// as its only band.
func (g *Grid) SingleBand(data []float64, label string) *Grid {
	out := &Grid{
		Width:      g.Width,
		Height:     g.Height,
		Bands:      [][]float64{data},
		BandDim:    DefaultBandDim,
		BandCoords: []float64{1},
		X:          append([]float64(nil), g.X...),
		Y:          append([]float64(nil), g.Y...),
		CRS:        g.CRS,
		Transform:  g.Transform,
		Attrs:      make(map[string]any),
	}
	if label != "" {
		out.Labels = []string{label}
	}
	return out
}

// Stem returns the file name up to its first dot.
func Stem(path string) string {
	base := filepath.Base(path)
	if i := strings.Index(base, "."); i >= 0 {
		return base[:i]
	}
	return base
}

// SplitLabels splits a joined label attribute.
func SplitLabels(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, LabelSeparator)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// JoinLabels joins per-band labels for storage in LabelAttribute.
func JoinLabels(labels []string) string {
	return strings.Join(labels, LabelSeparator)
}

func formatCoord(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
