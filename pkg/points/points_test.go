package points

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/parquet-go/parquet-go"
)

func TestCSVReader(t *testing.T) {
	data := "id,Longitude,Latitude\n1,149.1,-35.2\n2,150.5,-33.9\n3,,\n"
	r, err := NewCSVReader(bytes.NewReader([]byte(data)), Columns{})
	if err != nil {
		t.Fatalf("NewCSVReader failed: %v", err)
	}
	defer r.Close()

	want := []Point{{Lon: 149.1, Lat: -35.2}, {Lon: 150.5, Lat: -33.9}}
	for i, w := range want {
		p, err := r.Next()
		if err != nil {
			t.Fatalf("Next(%d) failed: %v", i, err)
		}
		if p != w {
			t.Errorf("Next(%d) = %+v, want %+v", i, p, w)
		}
	}
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("expected EOF, got %v", err)
	}
}

func TestCSVReaderCustomColumns(t *testing.T) {
	data := "x,y\n10,20\n"
	r, err := NewCSVReader(bytes.NewReader([]byte(data)), Columns{Lon: "x", Lat: "y"})
	if err != nil {
		t.Fatal(err)
	}
	p, err := r.Next()
	if err != nil || p.Lon != 10 || p.Lat != 20 {
		t.Errorf("Next() = %+v, %v", p, err)
	}
}

func TestCSVReaderMissingColumn(t *testing.T) {
	data := "lng,Latitude\n1,2\n"
	_, err := NewCSVReader(bytes.NewReader([]byte(data)), Columns{})
	if !errors.Is(err, ErrMissingColumn) {
		t.Errorf("error = %v, want ErrMissingColumn", err)
	}
}

func TestCSVReaderBadValue(t *testing.T) {
	data := "Longitude,Latitude\nabc,2\n"
	r, err := NewCSVReader(bytes.NewReader([]byte(data)), Columns{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Next(); err == nil {
		t.Error("expected parse error")
	}
}

func TestCSVReaderFromStreamGzip(t *testing.T) {
	var buf bytes.Buffer
	gzw := gzip.NewWriter(&buf)
	_, _ = gzw.Write([]byte("Longitude,Latitude\n1.5,2.5\n"))
	gzw.Close()

	r, err := NewCSVReaderFromStream(io.NopCloser(&buf), "points.csv.gz", Columns{})
	if err != nil {
		t.Fatalf("NewCSVReaderFromStream failed: %v", err)
	}
	defer r.Close()
	p, err := r.Next()
	if err != nil || p.Lon != 1.5 || p.Lat != 2.5 {
		t.Errorf("Next() = %+v, %v", p, err)
	}
}

type pointRecord struct {
	Name string  `parquet:"name"`
	Lon  float64 `parquet:"Longitude"`
	Lat  float32 `parquet:"Latitude"`
}

func TestLoadParquet(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "points.parquet")
	rows := []pointRecord{
		{Name: "a", Lon: 149.25, Lat: -35.5},
		{Name: "b", Lon: 150, Lat: -34},
	}
	if err := parquet.WriteFile(path, rows); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	pts, err := Load(path, Columns{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(pts) != 2 {
		t.Fatalf("got %d points, want 2", len(pts))
	}
	if pts[0] != (Point{Lon: 149.25, Lat: -35.5}) || pts[1] != (Point{Lon: 150, Lat: -34}) {
		t.Errorf("points = %+v", pts)
	}
}

func TestLoadCSVFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "points.csv")
	if err := os.WriteFile(path, []byte("Longitude,Latitude\n1,2\n3,4\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	pts, err := Load(path, Columns{})
	if err != nil {
		t.Fatal(err)
	}
	if len(pts) != 2 || pts[1] != (Point{Lon: 3, Lat: 4}) {
		t.Errorf("points = %+v", pts)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.csv")
	if err := os.WriteFile(empty, []byte("Longitude,Latitude\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(empty, Columns{}); !errors.Is(err, ErrNoPoints) {
		t.Errorf("empty: error = %v, want ErrNoPoints", err)
	}
	if _, err := Load(filepath.Join(dir, "points.xlsx"), Columns{}); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("xlsx: error = %v, want ErrUnsupportedFormat", err)
	}
	if _, err := Load(filepath.Join(dir, "missing.csv"), Columns{}); err == nil {
		t.Error("missing file: expected error")
	}
}

func TestBounds(t *testing.T) {
	pts := []Point{{Lon: 149, Lat: -35}, {Lon: 151, Lat: -33}, {Lon: 150, Lat: -36}}
	b, err := Bounds(pts, BBoxPadding)
	if err != nil {
		t.Fatal(err)
	}
	got := BBox(b)
	want := [4]float64{148.95, -36.05, 151.05, -32.95}
	for i := range want {
		if d := got[i] - want[i]; d > 1e-9 || d < -1e-9 {
			t.Errorf("BBox()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if _, err := Bounds(nil, 0); !errors.Is(err, ErrNoPoints) {
		t.Errorf("error = %v, want ErrNoPoints", err)
	}
}
