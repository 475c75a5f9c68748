package raster

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/ctessum/cdf"
	"github.com/eunmann/geodata-harvester/pkg/fileutil"
)

// Global attribute names carrying the georeference.
const (
	attrCRS       = "crs"
	attrTransform = "transform"
)

var (
	xDimNames = []string{"x", "lon", "longitude"}
	yDimNames = []string{"y", "lat", "latitude"}
)

// Read loads a raster from a netCDF-3 file.
//
// The data variable is DefaultVariable when present, otherwise the first
// variable whose trailing dimensions are (y, x). A leading third dimension is
// the band coordinate dimension.
func Read(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open raster %s: %w", path, err)
	}
	defer f.Close()

	nc, err := cdf.Open(f)
	if err != nil {
		return nil, fmt.Errorf("read netcdf header %s: %w", path, err)
	}
	h := nc.Header

	varName, err := findDataVariable(h)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	dims := h.Dimensions(varName)
	lengths := h.Lengths(varName)

	// BandDim stays empty for (y, x) variables: the file has no band axis.
	g := &Grid{Attrs: make(map[string]any)}
	nb := 1
	if len(dims) == 3 {
		g.BandDim = dims[0]
		nb = lengths[0]
	}
	g.Height = lengths[len(lengths)-2]
	g.Width = lengths[len(lengths)-1]
	if nb <= 0 || g.Height <= 0 || g.Width <= 0 {
		return nil, fmt.Errorf("%s: %w: bands=%d height=%d width=%d", path, ErrInvalidShape, nb, g.Height, g.Width)
	}

	data, err := readVariable(nc, varName)
	if err != nil {
		return nil, fmt.Errorf("read %s from %s: %w", varName, path, err)
	}
	plane := g.Width * g.Height
	if len(data) != nb*plane {
		return nil, fmt.Errorf("%s: %w: %s has %d values, want %d", path, ErrInvalidShape, varName, len(data), nb*plane)
	}
	g.Bands = make([][]float64, nb)
	for b := range g.Bands {
		g.Bands[b] = data[b*plane : (b+1)*plane]
	}

	g.BandCoords = make([]float64, nb)
	for b := range g.BandCoords {
		g.BandCoords[b] = float64(b + 1)
	}
	if len(dims) == 3 && hasVariable(h, g.BandDim) {
		if coords, err := readVariable(nc, g.BandDim); err == nil && len(coords) == nb {
			g.BandCoords = coords
		}
	}

	for _, a := range h.Attributes("") {
		if v, ok := attrValue(h.GetAttribute("", a)); ok {
			g.Attrs[a] = v
		}
	}
	for _, a := range h.Attributes(varName) {
		if v, ok := attrValue(h.GetAttribute(varName, a)); ok {
			g.Attrs[a] = v
		}
	}

	if crs, ok := g.Attrs[attrCRS].(string); ok {
		g.CRS = crs
	}
	delete(g.Attrs, attrCRS)

	xName, yName := dims[len(dims)-1], dims[len(dims)-2]
	if hasVariable(h, xName) {
		if xs, err := readVariable(nc, xName); err == nil && len(xs) == g.Width {
			g.X = xs
		}
	}
	if hasVariable(h, yName) {
		if ys, err := readVariable(nc, yName); err == nil && len(ys) == g.Height {
			g.Y = ys
		}
	}

	if coeffs, ok := g.Attrs[attrTransform].([]float64); ok {
		t, err := AffineFromCoefficients(coeffs)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		g.Transform = t
	} else if len(g.X) == g.Width && len(g.Y) == g.Height {
		g.Transform = affineFromAxes(g.X, g.Y)
	}
	delete(g.Attrs, attrTransform)

	if len(g.X) != g.Width || len(g.Y) != g.Height {
		g.X, g.Y = axesFromTransform(g.Transform, g.Width, g.Height)
	}

	for _, name := range []string{"_FillValue", "nodata"} {
		if v, ok := g.Attrs[name].([]float64); ok && len(v) > 0 {
			nd := v[0]
			g.NoData = &nd
			break
		}
	}

	if labels, ok := g.AttrStrings(LabelAttribute); ok && len(labels) == nb {
		g.Labels = labels
	}

	return g, nil
}

// Write stores g as a netCDF-3 file. The file is written to a temporary
// name in the destination directory and renamed into place.
func Write(path string, g *Grid) error {
	if g.NumBands() == 0 || g.Width <= 0 || g.Height <= 0 {
		return fmt.Errorf("write %s: %w: bands=%d height=%d width=%d", path, ErrInvalidShape, g.NumBands(), g.Height, g.Width)
	}
	return fileutil.WriteTmpThenMove(filepath.Dir(path), path, func(tmpPath string) error {
		return writeFile(tmpPath, g)
	})
}

func writeFile(path string, g *Grid) error {
	bandDim := g.BandDim
	if bandDim == "" || bandDim == "x" || bandDim == "y" {
		bandDim = DefaultBandDim
	}
	nb := g.NumBands()

	h := cdf.NewHeader([]string{bandDim, "y", "x"}, []int{nb, g.Height, g.Width})
	h.AddVariable("x", []string{"x"}, []float64{0})
	h.AddVariable("y", []string{"y"}, []float64{0})
	h.AddVariable(bandDim, []string{bandDim}, []float64{0})
	h.AddVariable(DefaultVariable, []string{bandDim, "y", "x"}, []float32{0})

	h.AddAttribute("", "Conventions", "CF-1.6")
	if g.CRS != "" {
		h.AddAttribute("", attrCRS, g.CRS)
	}
	h.AddAttribute("", attrTransform, g.Transform.Coefficients())

	attrs := make(map[string]any, len(g.Attrs)+2)
	for k, v := range g.Attrs {
		attrs[k] = v
	}
	if len(g.Labels) > 0 {
		attrs[LabelAttribute] = JoinLabels(g.Labels)
	}
	if _, ok := attrs["_FillValue"]; !ok && g.NoData != nil {
		attrs["_FillValue"] = []float64{*g.NoData}
	}
	delete(attrs, attrCRS)
	delete(attrs, attrTransform)
	delete(attrs, "Conventions")

	names := make([]string, 0, len(attrs))
	for k := range attrs {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, name := range names {
		switch v := attrs[name].(type) {
		case string:
			if v != "" {
				h.AddAttribute(DefaultVariable, name, v)
			}
		case float64:
			h.AddAttribute(DefaultVariable, name, attrForData(name, []float64{v}))
		case []float64:
			if len(v) > 0 {
				h.AddAttribute(DefaultVariable, name, attrForData(name, v))
			}
		}
	}
	h.Define()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create netcdf file: %w", err)
	}
	nc, err := cdf.Create(f, h)
	if err != nil {
		f.Close()
		return fmt.Errorf("write netcdf header: %w", err)
	}

	xs, ys := g.X, g.Y
	if len(xs) != g.Width || len(ys) != g.Height {
		xs, ys = axesFromTransform(g.Transform, g.Width, g.Height)
	}
	coords := g.BandCoords
	if len(coords) != nb {
		coords = make([]float64, nb)
		for b := range coords {
			coords[b] = float64(b + 1)
		}
	}

	data := make([]float32, 0, nb*g.Width*g.Height)
	for _, band := range g.Bands {
		for _, v := range band {
			data = append(data, float32(v))
		}
	}

	writes := []struct {
		name   string
		values any
	}{
		{"x", xs},
		{"y", ys},
		{bandDim, coords},
		{DefaultVariable, data},
	}
	for _, w := range writes {
		if err := writeVariable(nc, w.name, w.values); err != nil {
			f.Close()
			return fmt.Errorf("write variable %s: %w", w.name, err)
		}
	}
	if err := cdf.UpdateNumRecs(f); err != nil {
		f.Close()
		return fmt.Errorf("update record count: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close netcdf file: %w", err)
	}
	return nil
}

// attrForData converts fill-value style attributes to the data variable's
// float32 type, so sentinels compare equal to the stored pixels.
func attrForData(name string, v []float64) any {
	switch strings.ToLower(name) {
	case "_fillvalue", "missing_value", "nodata", "nodatavalue", "valid_min", "valid_max":
		out := make([]float32, len(v))
		for i, x := range v {
			out[i] = float32(x)
		}
		return out
	}
	return v
}

func writeVariable(nc *cdf.File, name string, values any) error {
	end := nc.Header.Lengths(name)
	start := make([]int, len(end))
	_, err := nc.Writer(name, start, end).Write(values)
	return err
}

func readVariable(nc *cdf.File, name string) ([]float64, error) {
	n := 1
	for _, l := range nc.Header.Lengths(name) {
		n *= l
	}
	r := nc.Reader(name, nil, nil)
	buf := r.Zero(n)
	got, err := r.Read(buf)
	if err != nil && !(errors.Is(err, io.EOF) && got == n) {
		return nil, err
	}
	out, ok := toFloat64s(buf)
	if !ok {
		return nil, fmt.Errorf("%w: variable %s has type %T", ErrUnsupportedType, name, buf)
	}
	return out, nil
}

func findDataVariable(h *cdf.Header) (string, error) {
	vars := h.Variables()
	if slices.Contains(vars, DefaultVariable) && isGridded(h.Dimensions(DefaultVariable)) {
		return DefaultVariable, nil
	}
	for _, v := range vars {
		if isGridded(h.Dimensions(v)) {
			return v, nil
		}
	}
	return "", ErrNoDataVariable
}

func isGridded(dims []string) bool {
	if len(dims) != 2 && len(dims) != 3 {
		return false
	}
	return slices.Contains(yDimNames, dims[len(dims)-2]) && slices.Contains(xDimNames, dims[len(dims)-1])
}

func hasVariable(h *cdf.Header, name string) bool {
	return slices.Contains(h.Variables(), name)
}

func affineFromAxes(xs, ys []float64) Affine {
	a, e := 1.0, -1.0
	if len(xs) > 1 {
		a = xs[1] - xs[0]
	}
	if len(ys) > 1 {
		e = ys[1] - ys[0]
	}
	return Affine{A: a, C: xs[0] - a/2, E: e, F: ys[0] - e/2}
}

func attrValue(v any) (any, bool) {
	if s, ok := v.(string); ok {
		return s, true
	}
	return toFloat64s(v)
}

func toFloat64s(v any) ([]float64, bool) {
	switch s := v.(type) {
	case []float64:
		return append([]float64(nil), s...), true
	case []float32:
		return convert(s), true
	case []int32:
		return convert(s), true
	case []int16:
		return convert(s), true
	case []int8:
		return convert(s), true
	case []uint8:
		return convert(s), true
	case float64:
		return []float64{s}, true
	}
	return nil, false
}

func convert[T float32 | int32 | int16 | int8 | uint8](in []T) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}
