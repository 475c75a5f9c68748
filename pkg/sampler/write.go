package sampler

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/eunmann/geodata-harvester/pkg/fileutil"
	"github.com/eunmann/geodata-harvester/pkg/logging"
)

// WriteAll writes t as <dir>/<base>.csv, .parquet and .gpkg and returns the
// written paths.
func WriteAll(dir, base string, t *Table) ([]string, error) {
	writers := []struct {
		ext   string
		write func(string, *Table) error
	}{
		{".csv", WriteCSV},
		{".parquet", WriteParquet},
		{".gpkg", WriteGeoPackage},
	}
	log := logging.WithPhase("sample")
	paths := make([]string, 0, len(writers))
	for _, w := range writers {
		path := filepath.Join(dir, base+w.ext)
		start := time.Now()
		if err := w.write(path, t); err != nil {
			return paths, err
		}
		logging.FileCreated(log, "sample", time.Since(start)).
			Str("path", path).
			Int("rows", t.NumRows()).
			Int("columns", t.NumCols()).
			Log("sample table written")
		paths = append(paths, path)
	}
	return paths, nil
}

// WriteCSV writes t with a header row. NaN values are written as empty
// fields.
func WriteCSV(path string, t *Table) error {
	return fileutil.WriteTmpThenMove(filepath.Dir(path), path, func(tmpPath string) error {
		f, err := os.Create(tmpPath)
		if err != nil {
			return fmt.Errorf("create csv: %w", err)
		}
		bw := bufio.NewWriter(f)
		w := csv.NewWriter(bw)
		if err := w.Write(t.Header()); err != nil {
			f.Close()
			return fmt.Errorf("write csv header: %w", err)
		}
		record := make([]string, t.NumCols())
		for i := range t.NumRows() {
			for j, v := range t.Row(i) {
				record[j] = formatValue(v)
			}
			if err := w.Write(record); err != nil {
				f.Close()
				return fmt.Errorf("write csv row %d: %w", i, err)
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return fmt.Errorf("flush csv: %w", err)
		}
		if err := bw.Flush(); err != nil {
			f.Close()
			return fmt.Errorf("flush csv: %w", err)
		}
		return f.Close()
	})
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteParquet writes t with one required DOUBLE column per table column.
// Parquet group schemas order their fields by name, so readers should look
// columns up by name.
func WriteParquet(path string, t *Table) error {
	group := parquet.Group{}
	for _, name := range t.Header() {
		group[name] = parquet.Leaf(parquet.DoubleType)
	}
	schema := parquet.NewSchema("results", group)

	// leaf index of every header column
	header := t.Header()
	leaf := make([]int, len(header))
	for i, name := range header {
		leaf[i] = -1
		for j, f := range schema.Fields() {
			if f.Name() == name {
				leaf[i] = j
				break
			}
		}
	}

	return fileutil.WriteTmpThenMove(filepath.Dir(path), path, func(tmpPath string) error {
		f, err := os.Create(tmpPath)
		if err != nil {
			return fmt.Errorf("create parquet: %w", err)
		}
		w := parquet.NewWriter(f, schema)
		rows := make([]parquet.Row, 0, t.NumRows())
		for i := range t.NumRows() {
			values := t.Row(i)
			row := make(parquet.Row, len(values))
			for j, v := range values {
				row[leaf[j]] = parquet.ValueOf(v).Level(0, 0, leaf[j])
			}
			rows = append(rows, row)
		}
		if _, err := w.WriteRows(rows); err != nil {
			f.Close()
			return fmt.Errorf("write parquet rows: %w", err)
		}
		if err := w.Close(); err != nil {
			f.Close()
			return fmt.Errorf("close parquet writer: %w", err)
		}
		return f.Close()
	})
}
