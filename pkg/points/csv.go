package points

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// csvReader reads points from a CSV table with a header row.
type csvReader struct {
	csvReader *csv.Reader
	lonCol    int
	latCol    int
	line      int
	closers   []io.Closer
}

// NewCSVReader reads points from uncompressed CSV data. The first row is the
// header and must contain both coordinate columns.
func NewCSVReader(r io.Reader, cols Columns) (Reader, error) {
	return newCSVReader(r, cols.withDefaults(), nil)
}

// NewCSVReaderFromStream is NewCSVReader with gzip decompression when name
// ends in ".gz". The stream is closed by Close.
func NewCSVReaderFromStream(r io.ReadCloser, name string, cols Columns) (Reader, error) {
	var reader io.Reader = r
	closers := []io.Closer{r}

	if strings.HasSuffix(strings.ToLower(name), ".gz") {
		gzr, err := gzip.NewReader(r)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		closers = append(closers, gzr)
		reader = gzr
	}

	cr, err := newCSVReader(reader, cols.withDefaults(), closers)
	if err != nil {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i].Close()
		}
		return nil, err
	}
	return cr, nil
}

func newCSVReader(r io.Reader, cols Columns, closers []io.Closer) (*csvReader, error) {
	csvr := csv.NewReader(r)
	csvr.ReuseRecord = true
	csvr.FieldsPerRecord = -1
	csvr.TrimLeadingSpace = true

	header, err := csvr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoPoints
		}
		return nil, fmt.Errorf("read CSV header: %w", err)
	}
	lonCol, latCol := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")) {
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

	return &csvReader{
		csvReader: csvr,
		lonCol:    lonCol,
		latCol:    latCol,
		line:      1,
		closers:   closers,
	}, nil
}

// Next returns the next point. Rows with missing or empty coordinates are
// skipped; non-numeric coordinates are an error.
func (r *csvReader) Next() (Point, error) {
	for {
		fields, err := r.csvReader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return Point{}, io.EOF
			}
			return Point{}, fmt.Errorf("read CSV row: %w", err)
		}
		r.line++

		if len(fields) <= r.lonCol || len(fields) <= r.latCol {
			continue
		}
		lonStr := strings.TrimSpace(fields[r.lonCol])
		latStr := strings.TrimSpace(fields[r.latCol])
		if lonStr == "" || latStr == "" {
			continue
		}

		lon, err := strconv.ParseFloat(lonStr, 64)
		if err != nil {
			return Point{}, fmt.Errorf("line %d: longitude %q: %w", r.line, lonStr, err)
		}
		lat, err := strconv.ParseFloat(latStr, 64)
		if err != nil {
			return Point{}, fmt.Errorf("line %d: latitude %q: %w", r.line, latStr, err)
		}
		return Point{Lon: lon, Lat: lat}, nil
	}
}

// Close releases resources.
func (r *csvReader) Close() error {
	var firstErr error
	// gzip reader before underlying stream
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
