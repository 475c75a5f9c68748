package points

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/parquet-go/parquet-go"
)

// parquetReader streams points from a Parquet file one row group at a time.
type parquetReader struct {
	file   *parquet.File
	lonCol int
	latCol int
	closer io.Closer

	rowGroups    []parquet.RowGroup
	currentRGIdx int
	currentRows  parquet.Rows
	rowBuf       []parquet.Row
	bufIdx       int
	bufLen       int
}

// NewParquetReader opens a Parquet point table from an io.ReaderAt.
// Coordinate columns are located by name among the top-level fields.
func NewParquetReader(r io.ReaderAt, size int64, cols Columns) (Reader, error) {
	return newParquetReader(r, size, cols)
}

func newParquetReader(r io.ReaderAt, size int64, cols Columns) (*parquetReader, error) {
	file, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("open parquet file: %w", err)
	}
	cols = cols.withDefaults()

	lonCol, latCol := -1, -1
	for i, field := range file.Schema().Fields() {
		switch field.Name() {
		case cols.Lon:
			lonCol = i
		case cols.Lat:
			latCol = i
		}
	}
	if lonCol < 0 {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, cols.Lon)
	}
	if latCol < 0 {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, cols.Lat)
	}

	return &parquetReader{
		file:         file,
		lonCol:       lonCol,
		latCol:       latCol,
		rowGroups:    file.RowGroups(),
		currentRGIdx: -1,
		rowBuf:       make([]parquet.Row, 1024),
	}, nil
}

// Next returns the next point. Rows with a null coordinate are skipped.
func (r *parquetReader) Next() (Point, error) {
	for {
		if r.bufIdx < r.bufLen {
			row := r.rowBuf[r.bufIdx]
			r.bufIdx++
			p, ok, err := r.rowToPoint(row)
			if err != nil {
				return Point{}, err
			}
			if !ok {
				continue
			}
			return p, nil
		}

		if r.currentRows != nil {
			n, err := r.currentRows.ReadRows(r.rowBuf)
			if n > 0 {
				r.bufIdx = 0
				r.bufLen = n
				continue
			}
			if err != nil && !errors.Is(err, io.EOF) {
				return Point{}, fmt.Errorf("read parquet rows: %w", err)
			}
			r.currentRows.Close()
			r.currentRows = nil
		}

		r.currentRGIdx++
		if r.currentRGIdx >= len(r.rowGroups) {
			return Point{}, io.EOF
		}
		r.currentRows = r.rowGroups[r.currentRGIdx].Rows()
	}
}

func (r *parquetReader) rowToPoint(row parquet.Row) (Point, bool, error) {
	var (
		p              Point
		hasLon, hasLat bool
	)
	for _, val := range row {
		col := val.Column()
		if col != r.lonCol && col != r.latCol {
			continue
		}
		if val.IsNull() {
			return Point{}, false, nil
		}
		f, err := valueFloat(val)
		if err != nil {
			return Point{}, false, err
		}
		if col == r.lonCol {
			p.Lon, hasLon = f, true
		} else {
			p.Lat, hasLat = f, true
		}
	}
	return p, hasLon && hasLat, nil
}

func valueFloat(v parquet.Value) (float64, error) {
	switch v.Kind() {
	case parquet.Double:
		return v.Double(), nil
	case parquet.Float:
		return float64(v.Float()), nil
	case parquet.Int32:
		return float64(v.Int32()), nil
	case parquet.Int64:
		return float64(v.Int64()), nil
	case parquet.ByteArray:
		f, err := strconv.ParseFloat(v.String(), 64)
		if err != nil {
			return 0, fmt.Errorf("coordinate %q: %w", v.String(), err)
		}
		return f, nil
	}
	return 0, fmt.Errorf("unsupported coordinate type %s", v.Kind())
}

// Close releases resources.
func (r *parquetReader) Close() error {
	if r.currentRows != nil {
		r.currentRows.Close()
	}
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
