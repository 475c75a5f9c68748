package temporal

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/eunmann/geodata-harvester/pkg/membudget"
	"github.com/eunmann/geodata-harvester/pkg/raster"
	"github.com/eunmann/geodata-harvester/pkg/timeseries"
)

var testTransform = raster.Affine{A: 1, C: 100, E: -1, F: -10}

// makeStack builds a 2x2 stack with one step per date; every pixel of step i
// holds values[i].
func makeStack(t *testing.T, dates []string, values []float64) *timeseries.Stack {
	t.Helper()
	g := raster.New(2, 2, len(dates), testTransform, "EPSG:4326")
	times := make([]time.Time, len(dates))
	for i, d := range dates {
		ts, err := time.Parse("2006-01-02", d)
		if err != nil {
			t.Fatal(err)
		}
		times[i] = ts
		for p := range g.Bands[i] {
			g.Bands[i][p] = values[i]
		}
	}
	return timeseries.NewStack(g, times)
}

func readValue(t *testing.T, path string) float64 {
	t.Helper()
	g, err := raster.Read(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	if g.NumBands() != 1 {
		t.Fatalf("%s has %d bands, want 1", path, g.NumBands())
	}
	return g.At(0, 0, 0)
}

func dailyDates(start string, n int) []string {
	t0, _ := time.Parse("2006-01-02", start)
	out := make([]string, n)
	for i := range out {
		out[i] = t0.AddDate(0, 0, i).Format("2006-01-02")
	}
	return out
}

func TestAggregateYearly(t *testing.T) {
	dir := t.TempDir()
	s := makeStack(t,
		[]string{"2017-03-01", "2017-09-01", "2018-01-01", "2018-06-01", "2018-12-01", "2019-05-05"},
		[]float64{1, 3, 10, 20, 30, 7})
	prefix := filepath.Join(dir, "rain")

	results, err := Aggregate(context.Background(), s, Yearly, []string{"mean"}, prefix, DefaultOptions())
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3 (one per year)", len(results))
	}
	want := map[string]float64{"2017": 2, "2018": 20, "2019": 7}
	for i, label := range []string{"2017", "2018", "2019"} {
		r := results[i]
		if r.Label != label || r.Statistic != Mean {
			t.Errorf("results[%d] = %+v, want label %s", i, r, label)
		}
		if r.Path != prefix+"_mean_"+label+".nc" {
			t.Errorf("Path = %s", r.Path)
		}
		if got := readValue(t, r.Path); got != want[label] {
			t.Errorf("%s mean = %v, want %v", label, got, want[label])
		}
	}
}

func TestAggregateMonthlyMergesYears(t *testing.T) {
	dir := t.TempDir()
	s := makeStack(t,
		[]string{"2020-02-10", "2020-01-05", "2021-01-20", "2021-02-01"},
		[]float64{4, 1, 5, 6})

	results, err := Aggregate(context.Background(), s, Monthly, []string{"sum"}, filepath.Join(dir, "m"), DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Label != "01" || results[1].Label != "02" {
		t.Errorf("labels = %s, %s; want 01, 02", results[0].Label, results[1].Label)
	}
	if got := readValue(t, results[0].Path); got != 6 {
		t.Errorf("January sum = %v, want 6", got)
	}
	if got := readValue(t, results[1].Path); got != 10 {
		t.Errorf("February sum = %v, want 10", got)
	}
}

func TestAggregateChunkDropsRemainder(t *testing.T) {
	dir := t.TempDir()
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 100}
	s := makeStack(t, dailyDates("2020-01-01", 10), values)

	bins, err := Bins(s, Chunk(3))
	if err != nil {
		t.Fatal(err)
	}
	if len(bins) != 3 {
		t.Fatalf("got %d bins, want 3", len(bins))
	}
	for i, b := range bins {
		if len(b.Steps) != 3 {
			t.Errorf("bin %d has %d steps", i, len(b.Steps))
		}
		for _, step := range b.Steps {
			if step == 9 {
				t.Errorf("bin %d contains the trailing step", i)
			}
		}
	}

	results, err := Aggregate(context.Background(), s, Chunk(3), []string{"max"}, filepath.Join(dir, "c"), DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	wantLabels := []string{"2020-01-01", "2020-01-04", "2020-01-07"}
	wantMax := []float64{3, 6, 9}
	for i, r := range results {
		if r.Label != wantLabels[i] {
			t.Errorf("results[%d].Label = %s, want %s", i, r.Label, wantLabels[i])
		}
		if got := readValue(t, r.Path); got != wantMax[i] {
			t.Errorf("results[%d] max = %v, want %v", i, got, wantMax[i])
		}
	}
}

func TestAggregateUnsupportedStatisticWritesNothing(t *testing.T) {
	dir := t.TempDir()
	s := makeStack(t, []string{"2020-01-01", "2020-06-01"}, []float64{1, 2})

	tests := []struct {
		name  string
		stats []string
	}{
		{name: "unknown", stats: []string{"mean", "geomean"}},
		{name: "duplicate", stats: []string{"sum", "sum"}},
		{name: "empty", stats: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Aggregate(context.Background(), s, Yearly, tt.stats, filepath.Join(dir, "x"), DefaultOptions())
			var statErr *StatisticError
			if !errors.As(err, &statErr) {
				t.Fatalf("error = %v, want *StatisticError", err)
			}
			if !errors.Is(err, ErrUnsupportedStatistic) {
				t.Error("error should wrap ErrUnsupportedStatistic")
			}
		})
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("%d files written, want none", len(entries))
	}
}

func TestAggregateInvalidArguments(t *testing.T) {
	dir := t.TempDir()
	s := makeStack(t, []string{"2020-01-01"}, []float64{1})
	empty := makeStack(t, nil, nil)

	if _, err := Aggregate(context.Background(), s, Chunk(0), []string{"mean"}, filepath.Join(dir, "a"), DefaultOptions()); !errors.Is(err, ErrInvalidPeriod) {
		t.Errorf("chunk 0: error = %v, want ErrInvalidPeriod", err)
	}
	opts := DefaultOptions()
	opts.Buffer = -1
	if _, err := Aggregate(context.Background(), s, Yearly, []string{"mean"}, filepath.Join(dir, "b"), opts); !errors.Is(err, ErrInvalidPeriod) {
		t.Errorf("negative buffer: error = %v, want ErrInvalidPeriod", err)
	}
	if _, err := Aggregate(context.Background(), empty, Yearly, []string{"mean"}, filepath.Join(dir, "c"), DefaultOptions()); !errors.Is(err, ErrEmptyStack) {
		t.Errorf("empty stack: error = %v, want ErrEmptyStack", err)
	}
}

func TestAggregateBuffer(t *testing.T) {
	dir := t.TempDir()
	s := makeStack(t, dailyDates("2020-03-01", 5), []float64{1, 2, 3, 4, 5})
	opts := DefaultOptions()
	opts.Buffer = 2

	results, err := Aggregate(context.Background(), s, Yearly, []string{"sum"}, filepath.Join(dir, "b"), opts)
	if err != nil {
		t.Fatal(err)
	}
	if got := readValue(t, results[0].Path); got != 3 {
		t.Errorf("buffered sum = %v, want 3", got)
	}
}

func TestAggregateStatisticMajorOrder(t *testing.T) {
	dir := t.TempDir()
	s := makeStack(t, []string{"2020-01-01", "2021-01-01"}, []float64{1, 2})
	opts := DefaultOptions()
	opts.Workers = 4

	results, err := Aggregate(context.Background(), s, Yearly, []string{"min", "max"}, filepath.Join(dir, "o"), opts)
	if err != nil {
		t.Fatal(err)
	}
	want := []struct {
		stat  Statistic
		label string
	}{{Min, "2020"}, {Min, "2021"}, {Max, "2020"}, {Max, "2021"}}
	if len(results) != len(want) {
		t.Fatalf("got %d results", len(results))
	}
	for i, w := range want {
		if results[i].Statistic != w.stat || results[i].Label != w.label {
			t.Errorf("results[%d] = %+v, want %s/%s", i, results[i], w.stat, w.label)
		}
	}
}

func TestAggregateFillsNodata(t *testing.T) {
	dir := t.TempDir()
	s := makeStack(t, []string{"2020-01-01", "2020-02-01", "2020-03-01"}, []float64{2, -9999, 4})
	s.Attrs["_FillValue"] = []float64{-9999}

	results, err := Aggregate(context.Background(), s, Yearly, []string{"mean", "sum"}, filepath.Join(dir, "n"), DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if got := readValue(t, results[0].Path); got != 3 {
		t.Errorf("mean = %v, want 3", got)
	}
	if got := readValue(t, results[1].Path); got != 6 {
		t.Errorf("sum = %v, want 6", got)
	}
	if s.At(1, 0, 0) != -9999 {
		t.Error("Aggregate modified the input stack")
	}
}

func TestAggregateAllNaNPixel(t *testing.T) {
	dir := t.TempDir()
	nan := math.NaN()
	s := makeStack(t, []string{"2020-01-01", "2020-02-01"}, []float64{nan, nan})

	results, err := Aggregate(context.Background(), s, Yearly, []string{"mean", "sum"}, filepath.Join(dir, "z"), DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if got := readValue(t, results[0].Path); !math.IsNaN(got) {
		t.Errorf("mean of all-NaN = %v, want NaN", got)
	}
	if got := readValue(t, results[1].Path); got != 0 {
		t.Errorf("sum of all-NaN = %v, want 0", got)
	}
}

func TestAggregateMemoryBudget(t *testing.T) {
	s := makeStack(t, dailyDates("2020-01-01", 8), []float64{1, 2, 3, 4, 5, 6, 7, 8})
	// one bin of two statistics on a 2x2 grid
	perBin := membudget.PlaneBytes(2, 2, 4)

	opts := Options{FillNaN: true, Workers: 4, Budget: membudget.New(perBin, membudget.SourceConfig)}
	results, err := Aggregate(context.Background(), s, Chunk(2), []string{"min", "max"}, filepath.Join(t.TempDir(), "b"), opts)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if len(results) != 8 {
		t.Errorf("got %d results, want 8", len(results))
	}
	if opts.Budget.InUse() != 0 {
		t.Errorf("budget still holds %d bytes", opts.Budget.InUse())
	}

	opts.Budget = membudget.New(perBin-1, membudget.SourceConfig)
	_, err = Aggregate(context.Background(), s, Chunk(2), []string{"min", "max"}, filepath.Join(t.TempDir(), "b"), opts)
	if !errors.Is(err, membudget.ErrTooLarge) {
		t.Errorf("Aggregate() error = %v, want ErrTooLarge", err)
	}
}

func TestAggregateCanceled(t *testing.T) {
	dir := t.TempDir()
	s := makeStack(t, []string{"2020-01-01"}, []float64{1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Aggregate(ctx, s, Yearly, []string{"mean"}, filepath.Join(dir, "x"), DefaultOptions()); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestComposite(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for i, vals := range [][]float64{{1, 2}, {3, 4}} {
		g := raster.New(2, 2, len(vals), testTransform, "EPSG:4326")
		g.Labels = []string{"red", "nir"}
		for b, v := range vals {
			for p := range g.Bands[b] {
				g.Bands[b][p] = v
			}
		}
		p := filepath.Join(dir, "scene"+string(rune('a'+i))+".nc")
		if err := raster.Write(p, g); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, p)
	}

	results, err := Composite(context.Background(), paths, []string{"mean", "max"}, filepath.Join(dir, "all"), DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Path != filepath.Join(dir, "all_mean.nc") {
		t.Errorf("Path = %s", results[0].Path)
	}
	if got := readValue(t, results[0].Path); got != 2.5 {
		t.Errorf("pooled mean = %v, want 2.5", got)
	}
	if got := readValue(t, results[1].Path); got != 4 {
		t.Errorf("pooled max = %v, want 4", got)
	}

	perBand, err := CompositeBands(context.Background(), paths, []string{"mean"}, filepath.Join(dir, "ch"), DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(perBand) != 2 {
		t.Fatalf("got %d results, want 2", len(perBand))
	}
	if perBand[1].Path != filepath.Join(dir, "ch_mean_channel_nir.nc") {
		t.Errorf("Path = %s", perBand[1].Path)
	}
	if got := readValue(t, perBand[0].Path); got != 2 {
		t.Errorf("red mean = %v, want 2", got)
	}
	if got := readValue(t, perBand[1].Path); got != 3 {
		t.Errorf("nir mean = %v, want 3", got)
	}
}

func timedStack(times []time.Time, values []float64) *timeseries.Stack {
	g := raster.New(2, 2, len(times), testTransform, "EPSG:4326")
	for i, v := range values {
		for p := range g.Bands[i] {
			g.Bands[i][p] = v
		}
	}
	return timeseries.NewStack(g, times)
}

func TestAggregateSubDailyChunks(t *testing.T) {
	t0 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	times := []time.Time{t0, t0.Add(6 * time.Hour), t0.Add(12 * time.Hour), t0.Add(18 * time.Hour)}
	s := timedStack(times, []float64{1, 2, 3, 4})
	opts := DefaultOptions()
	opts.Workers = 2

	results, err := Aggregate(context.Background(), s, Chunk(2), []string{"mean"}, filepath.Join(t.TempDir(), "c"), opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Path == results[1].Path {
		t.Fatalf("chunks share output path %s", results[0].Path)
	}
	wantLabels := []string{"2020-01-01T000000", "2020-01-01T120000"}
	wantMean := []float64{1.5, 3.5}
	for i, r := range results {
		if r.Label != wantLabels[i] {
			t.Errorf("results[%d].Label = %s, want %s", i, r.Label, wantLabels[i])
		}
		if !r.Start.Equal(times[2*i]) {
			t.Errorf("results[%d].Start = %v, want %v", i, r.Start, times[2*i])
		}
		if got := readValue(t, r.Path); got != wantMean[i] {
			t.Errorf("results[%d] mean = %v, want %v", i, got, wantMean[i])
		}
	}
}

func TestBinsRepeatedTimestamps(t *testing.T) {
	t0 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	s := timedStack([]time.Time{t0, t0, t0, t0}, []float64{1, 2, 3, 4})

	bins, err := Bins(s, Chunk(2))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"2020-01-01-1", "2020-01-01-2"}
	if len(bins) != len(want) {
		t.Fatalf("got %d bins, want %d", len(bins), len(want))
	}
	for i, b := range bins {
		if b.Label != want[i] {
			t.Errorf("bins[%d].Label = %s, want %s", i, b.Label, want[i])
		}
	}
}

func TestCompositeBandsDuplicateOutputs(t *testing.T) {
	dir := t.TempDir()
	g := raster.New(2, 2, 2, testTransform, "EPSG:4326")
	g.Labels = []string{"a/b", "a-b"}
	path := filepath.Join(dir, "scene.nc")
	if err := raster.Write(path, g); err != nil {
		t.Fatal(err)
	}

	_, err := CompositeBands(context.Background(), []string{path}, []string{"mean"}, filepath.Join(dir, "ch"), DefaultOptions())
	if !errors.Is(err, ErrDuplicateOutput) {
		t.Fatalf("error = %v, want ErrDuplicateOutput", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "ch_mean_channel_a-b.nc")); !os.IsNotExist(err) {
		t.Error("no output should be written when paths collide")
	}
}
