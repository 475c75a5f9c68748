package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/eunmann/geodata-harvester/pkg/ledger"
	"github.com/eunmann/geodata-harvester/pkg/raster"
)

// execute runs the command tree with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeGrid(t *testing.T, path string, values []float64, labels []string) {
	t.Helper()
	g := raster.New(3, 2, len(values), raster.Affine{A: 0.5, C: 140, E: -0.5, F: -30}, "EPSG:4326")
	for b, v := range values {
		for i := range g.Bands[b] {
			g.Bands[b][i] = v
		}
	}
	g.Labels = labels
	if err := raster.Write(path, g); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
}

func TestRunUnknownCommand(t *testing.T) {
	err := Run([]string{"unknown"})
	if err == nil {
		t.Fatal("expected error with unknown command")
	}
	if !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("expected 'unknown command' error, got: %v", err)
	}
}

func TestAggregateMissingPrefix(t *testing.T) {
	_, err := execute(t, "aggregate", "a.nc")
	if err == nil || !strings.Contains(err.Error(), "--prefix") {
		t.Errorf("expected '--prefix' error, got: %v", err)
	}
}

func TestAggregateRequiresFiles(t *testing.T) {
	if _, err := execute(t, "aggregate", "--prefix", "out"); err == nil {
		t.Error("expected error without files")
	}
}

func TestSampleMissingPoints(t *testing.T) {
	_, err := execute(t, "sample", "a.nc")
	if err == nil || !strings.Contains(err.Error(), "--points") {
		t.Errorf("expected '--points' error, got: %v", err)
	}
}

func TestSampleUnknownMethod(t *testing.T) {
	_, err := execute(t, "sample", "--points", "p.csv", "--method", "bilinear", "a.nc")
	if err == nil || !strings.Contains(err.Error(), "bilinear") {
		t.Errorf("expected unknown method error, got: %v", err)
	}
}

func TestAggregateAndSample(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "rain.nc")
	writeGrid(t, src, []float64{1, 2, 3, 4}, []string{"2020-01-01", "2020-01-02", "2021-01-01", "2021-01-02"})

	out, err := execute(t, "aggregate", "--prefix", filepath.Join(dir, "rain"), "--stats", "sum,max", src)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	written := strings.Fields(out)
	want := []string{"rain_sum_2020.nc", "rain_sum_2021.nc", "rain_max_2020.nc", "rain_max_2021.nc"}
	if len(written) != len(want) {
		t.Fatalf("aggregate wrote %v, want %v", written, want)
	}
	for i, w := range want {
		if filepath.Base(written[i]) != w {
			t.Errorf("output %d = %s, want %s", i, filepath.Base(written[i]), w)
		}
	}

	pts := filepath.Join(dir, "points.csv")
	if err := os.WriteFile(pts, []byte("Longitude,Latitude\n140.6,-30.4\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err = execute(t, "sample", "--points", pts, "--out", dir, "--method", "index",
		"--titles", "s20,s21", written[0], written[1])
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "results.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "Longitude,Latitude,s20,s21\n140.6,-30.4,3,7\n") {
		t.Errorf("results.csv = %q", data)
	}
	if !strings.Contains(out, "results.gpkg") {
		t.Errorf("sample output = %q", out)
	}
}

func TestLedgerAddAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "download_log.csv")
	if _, err := execute(t, "ledger", "add", "--layer", "dem", "--dataset", "SRTM", path, "/data/a.nc", "/data/b.nc"); err != nil {
		t.Fatalf("ledger add: %v", err)
	}
	if _, err := execute(t, "ledger", "add", "--layer", "dem", path, "/data/a.nc"); err == nil {
		t.Error("re-adding without --force should fail")
	}
	if _, err := execute(t, "ledger", "add", "--layer", "dem", "--force", "--status", "redone", path, "/data/a.nc"); err != nil {
		t.Fatalf("ledger add --force: %v", err)
	}

	out, err := execute(t, "ledger", "show", path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("ledger show = %q, want header and 2 rows", out)
	}
	if lines[0] != strings.Join(ledger.Header, ",") {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "dem,None,,dem_None,/data/a.nc,redone" {
		t.Errorf("replaced row = %q", lines[1])
	}
}

func TestHarvestCommand(t *testing.T) {
	data := t.TempDir()
	out := t.TempDir()
	writeGrid(t, filepath.Join(data, "dem.nc"), []float64{120}, nil)
	pts := filepath.Join(data, "points.csv")
	if err := os.WriteFile(pts, []byte("Longitude,Latitude\n140.6,-30.4\n141.1,-30.9\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	settings := filepath.Join(data, "settings.yaml")
	body := fmt.Sprintf(`
outpath: %s
infile: %s
sampling:
  method: index
sources:
  - name: SRTM
    dir: %s
    layers:
      - name: dem
`, out, pts, data)
	if err := os.WriteFile(settings, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	stdout, err := execute(t, "--config", settings, "harvest")
	if err != nil {
		t.Fatalf("harvest: %v\n%s", err, stdout)
	}
	if !strings.Contains(stdout, "1 ledger rows") {
		t.Errorf("harvest output = %q", stdout)
	}
	csvData, err := os.ReadFile(filepath.Join(out, "results.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(csvData), "Longitude,Latitude,dem\n") {
		t.Errorf("results.csv = %q", csvData)
	}
}
