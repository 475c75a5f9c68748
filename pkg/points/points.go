// Package points loads query locations from CSV or Parquet tables.
package points

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ctessum/geom"
)

// Default coordinate column names.
const (
	DefaultLonColumn = "Longitude"
	DefaultLatColumn = "Latitude"
)

// BBoxPadding is the margin in degrees added around loaded points.
const BBoxPadding = 0.05

// Point is a query location in geographic coordinates.
type Point struct {
	Lon float64
	Lat float64
}

// Columns names the coordinate columns of a point table.
type Columns struct {
	Lon string
	Lat string
}

func (c Columns) withDefaults() Columns {
	if c.Lon == "" {
		c.Lon = DefaultLonColumn
	}
	if c.Lat == "" {
		c.Lat = DefaultLatColumn
	}
	return c
}

// Reader streams points from a table.
type Reader interface {
	// Next returns the next point, or io.EOF when all rows have been read.
	Next() (Point, error)
	// Close releases resources associated with the reader.
	Close() error
}

// Open returns a Reader for path chosen by its extension: .csv, .csv.gz or
// .parquet.
func Open(path string, cols Columns) (Reader, error) {
	cols = cols.withDefaults()
	name := strings.ToLower(filepath.Base(path))
	switch {
	case strings.HasSuffix(name, ".csv"), strings.HasSuffix(name, ".csv.gz"), strings.HasSuffix(name, ".txt"):
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open points: %w", err)
		}
		return NewCSVReaderFromStream(f, name, cols)
	case strings.HasSuffix(name, ".parquet"):
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open points: %w", err)
		}
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("stat points: %w", err)
		}
		r, err := newParquetReader(f, info.Size(), cols)
		if err != nil {
			f.Close()
			return nil, err
		}
		r.closer = f
		return r, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
}

// Load reads every point of the table at path.
func Load(path string, cols Columns) ([]Point, error) {
	r, err := Open(path, cols)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var out []Point
	for {
		p, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoPoints)
	}
	return out, nil
}

// Bounds returns the bounding box of pts grown by pad on every side.
func Bounds(pts []Point, pad float64) (*geom.Bounds, error) {
	if len(pts) == 0 {
		return nil, ErrNoPoints
	}
	b := &geom.Bounds{
		Min: geom.Point{X: pts[0].Lon, Y: pts[0].Lat},
		Max: geom.Point{X: pts[0].Lon, Y: pts[0].Lat},
	}
	for _, p := range pts[1:] {
		b.Min.X = min(b.Min.X, p.Lon)
		b.Min.Y = min(b.Min.Y, p.Lat)
		b.Max.X = max(b.Max.X, p.Lon)
		b.Max.Y = max(b.Max.Y, p.Lat)
	}
	b.Min.X -= pad
	b.Min.Y -= pad
	b.Max.X += pad
	b.Max.Y += pad
	return b, nil
}

// BBox converts b to [minx, miny, maxx, maxy].
func BBox(b *geom.Bounds) [4]float64 {
	return [4]float64{b.Min.X, b.Min.Y, b.Max.X, b.Max.Y}
}
