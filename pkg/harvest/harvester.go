// Package harvest runs the end-to-end pipeline: fetch raster layers from
// every source, aggregate temporal layers, record outputs in the ledger and
// sample every recorded raster at the query points.
package harvest

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/eunmann/geodata-harvester/internal/logctx"
	"github.com/eunmann/geodata-harvester/pkg/fileutil"
	"github.com/eunmann/geodata-harvester/pkg/ledger"
	"github.com/eunmann/geodata-harvester/pkg/logging"
	"github.com/eunmann/geodata-harvester/pkg/membudget"
	"github.com/eunmann/geodata-harvester/pkg/metrics"
	"github.com/eunmann/geodata-harvester/pkg/points"
	"github.com/eunmann/geodata-harvester/pkg/raster"
	"github.com/eunmann/geodata-harvester/pkg/sampler"
	"github.com/eunmann/geodata-harvester/pkg/temporal"
	"github.com/eunmann/geodata-harvester/pkg/timeseries"
)

// Defaults used by the orchestrator.
const (
	DefaultStatistic  = "median"
	DefaultLedgerName = "download_log"
	ResultsBase       = "results"
	StatusDownloaded  = "downloaded"
)

// Config configures a Harvester.
type Config struct {
	OutDir string
	Points []points.Point
	// BBox is derived from Points with points.BBoxPadding when nil.
	BBox          *[4]float64
	Resolution    float64
	DateMin       time.Time
	DateMax       time.Time
	TimeIntervals int
	LedgerName    string
	// Overwrite replaces ledger rows of outputs produced again.
	Overwrite   bool
	Sampling    sampler.Options
	Aggregation temporal.Options
	// MetricsFile, when set, receives the run metrics in textfile format.
	MetricsFile string
}

// PeriodDays is the aggregation chunk size: the date range in whole days
// divided by TimeIntervals. Zero disables temporal aggregation.
func (c Config) PeriodDays() int {
	if c.TimeIntervals <= 0 || c.DateMin.IsZero() || c.DateMax.IsZero() {
		return 0
	}
	days := int(c.DateMax.Sub(c.DateMin).Hours() / 24)
	return days / c.TimeIntervals
}

// Harvester runs the pipeline over a fixed set of sources.
type Harvester struct {
	cfg     Config
	sources []Source
	metrics *metrics.Collector
}

// New validates cfg and returns a Harvester.
func New(cfg Config, sources []Source) (*Harvester, error) {
	if len(sources) == 0 {
		return nil, ErrNoSources
	}
	if cfg.BBox == nil && len(cfg.Points) == 0 {
		return nil, ErrNoExtent
	}
	if cfg.LedgerName == "" {
		cfg.LedgerName = DefaultLedgerName
	}
	if cfg.Aggregation.Budget == nil {
		cfg.Aggregation.Budget = membudget.FromSystemRAM(membudget.DefaultFraction)
	}
	return &Harvester{cfg: cfg, sources: sources, metrics: metrics.NewCollector()}, nil
}

// Metrics returns the collector filled by Run.
func (h *Harvester) Metrics() *metrics.Collector {
	return h.metrics
}

// Run executes the pipeline. Source failures are isolated and returned in
// the report; the error is non-nil only when the run could not continue at
// all (ledger unreadable, sampling or result writing failed).
func (h *Harvester) Run(ctx context.Context) (*Report, error) {
	ctx, runID := logctx.WithRun(ctx, logging.WithPhase("harvest"))
	log := logctx.FromContext(ctx)
	start := time.Now()

	report := &Report{RunID: runID, PeriodDays: h.cfg.PeriodDays()}
	if h.cfg.BBox != nil {
		report.BBox = *h.cfg.BBox
	} else {
		b, err := points.Bounds(h.cfg.Points, points.BBoxPadding)
		if err != nil {
			return report, err
		}
		report.BBox = points.BBox(b)
	}
	log.Info().
		Floats64("bbox", report.BBox[:]).
		Int("period_days", report.PeriodDays).
		Int("sources", len(h.sources)).
		Msg("harvest started")

	// leftovers of an interrupted run
	if err := fileutil.CleanupTmpFiles(h.cfg.OutDir); err != nil {
		log.Warn().Err(err).Str("dir", h.cfg.OutDir).Msg("tmp cleanup failed")
	}

	led, err := ledger.OpenOrNew(ledger.PathFor(h.cfg.OutDir, h.cfg.LedgerName))
	if err != nil {
		return report, err
	}
	report.LedgerPath = led.Path()

	req := Request{
		OutDir:     h.cfg.OutDir,
		BBox:       report.BBox,
		Resolution: h.cfg.Resolution,
		DateMin:    h.cfg.DateMin,
		DateMax:    h.cfg.DateMax,
	}
	for _, src := range h.sources {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		sr := h.runSource(ctx, src, req, report.PeriodDays, led)
		report.Sources = append(report.Sources, sr)
		status := "ok"
		if !sr.OK() {
			status = string(sr.Stage) + "_failed"
		}
		h.metrics.SourcesTotal.WithLabelValues(src.Name(), status).Inc()
	}
	if led.Len() == 0 {
		if err := led.Save(); err != nil {
			return report, err
		}
	}
	report.LedgerRows = led.Len()
	h.metrics.LedgerRows.Set(float64(led.Len()))

	if len(h.cfg.Points) > 0 && led.Len() > 0 {
		if err := h.sample(ctx, led, report); err != nil {
			return report, err
		}
	}

	report.Elapsed = time.Since(start)
	h.metrics.Finish(time.Now(), len(report.Failed()) == 0)
	if h.cfg.MetricsFile != "" {
		if err := h.metrics.WriteTextfile(h.cfg.MetricsFile); err != nil {
			log.Warn().Err(err).Msg("metrics not written")
		}
	}
	logging.PhaseComplete(log, "harvest", report.Elapsed).
		Int("sources", len(report.Sources)).
		Int("failed", len(report.Failed())).
		Int("ledger_rows", report.LedgerRows).
		Int("sample_rows", report.SampleRows).
		Log("harvest complete")
	return report, nil
}

func (h *Harvester) runSource(ctx context.Context, src Source, req Request, periodDays int, led *ledger.Ledger) SourceReport {
	ctx = logctx.WithStr(ctx, "source", src.Name())
	log := logctx.FromContext(ctx)
	start := time.Now()
	sr := SourceReport{Source: src.Name(), Stage: StageFetch}

	layers, err := src.Fetch(ctx, req)
	h.metrics.ObserveStage(string(StageFetch), time.Since(start))
	if err != nil {
		sr.Err = err
		sr.Elapsed = time.Since(start)
		log.Error().Err(err).Msg("fetch failed")
		return sr
	}

	sr.Stage = StageAggregate
	aggStart := time.Now()
	batch := ledger.Batch{Dataset: src.Name(), Status: []string{StatusDownloaded}}
	for _, layer := range layers {
		sr.Files += len(layer.Files)
		h.metrics.FilesFetched.WithLabelValues(src.Name()).Add(float64(len(layer.Files)))

		if periodDays > 0 && layer.Spec.Temporal != TemporalNone {
			results, err := h.aggregateLayer(logctx.WithStr(ctx, "layer", layer.Spec.Name), src.Name(), layer, periodDays)
			if err != nil {
				sr.Err = fmt.Errorf("layer %s: %w", layer.Spec.Name, err)
				sr.Elapsed = time.Since(start)
				log.Error().Err(sr.Err).Msg("aggregation failed")
				return sr
			}
			for _, r := range results {
				batch.Filenames = append(batch.Filenames, r.Path)
				batch.Layernames = append(batch.Layernames, layer.Spec.Name)
				batch.AggLabels = append(batch.AggLabels, string(r.Statistic))
				batch.Titles = append(batch.Titles, chunkTitle(src.Name(), layer.Spec.Name, r, periodDays))
			}
			continue
		}
		for _, f := range layer.Files {
			batch.Filenames = append(batch.Filenames, f)
			batch.Layernames = append(batch.Layernames, layer.Spec.Name)
			batch.AggLabels = append(batch.AggLabels, ledger.DefaultAggLabel)
			batch.Titles = append(batch.Titles, raster.Stem(f))
		}
	}
	h.metrics.ObserveStage(string(StageAggregate), time.Since(aggStart))

	sr.Stage = StageLedger
	if len(batch.Filenames) > 0 {
		if err := led.Update(batch, h.cfg.Overwrite); err != nil {
			sr.Err = err
			sr.Elapsed = time.Since(start)
			log.Error().Err(err).Msg("ledger update failed")
			return sr
		}
	}
	sr.Stage = StageDone
	sr.Outputs = batch.Filenames
	sr.Elapsed = time.Since(start)
	h.metrics.OutputsWritten.WithLabelValues(src.Name()).Add(float64(len(batch.Filenames)))

	logging.SourceComplete(log, "harvest", sr.Elapsed).
		Str("source", src.Name()).
		Int("layers", len(layers)).
		Int("files", sr.Files).
		Int("outputs", len(sr.Outputs)).
		Log("source complete")
	return sr
}

func (h *Harvester) aggregateLayer(ctx context.Context, source string, layer Layer, periodDays int) ([]temporal.Result, error) {
	var (
		stack *timeseries.Stack
		err   error
	)
	switch layer.Spec.Temporal {
	case TemporalSnapshots:
		stack, err = timeseries.FromSnapshots(layer.Files, nil, layer.Spec.Snapshot)
	default:
		stack, err = timeseries.FromSequentialBands(layer.Files, timeseries.BandOptions{})
	}
	if err != nil {
		return nil, err
	}
	stack = stack.Crop(h.cfg.DateMin, h.cfg.DateMax)

	stats := layer.Spec.Stats
	if len(stats) == 0 {
		stats = []string{DefaultStatistic}
	}
	prefix := filepath.Join(h.cfg.OutDir, source+"_"+layer.Spec.Name)
	return temporal.Aggregate(ctx, stack, temporal.Chunk(periodDays), stats, prefix, h.cfg.Aggregation)
}

// chunkTitle names an aggregated output <source>_<layer>_<stat>_<start>-to-<end>
// where end is start plus one period.
func chunkTitle(source, layer string, r temporal.Result, periodDays int) string {
	if r.Start.IsZero() {
		return fmt.Sprintf("%s_%s_%s_%s", source, layer, r.Statistic, r.Label)
	}
	from := r.Start.Format(timeseries.LabelLayout)
	if r.Label != from {
		// sub-daily chunks carry a disambiguated label
		from = r.Label
	}
	end := r.Start.AddDate(0, 0, periodDays)
	return fmt.Sprintf("%s_%s_%s_%s-to-%s", source, layer, r.Statistic, from, end.Format(timeseries.LabelLayout))
}

func (h *Harvester) sample(ctx context.Context, led *ledger.Ledger, report *Report) error {
	start := time.Now()
	tbl, err := sampler.Sample(ctx, h.cfg.Points, led.Paths(), led.Titles(), h.cfg.Sampling)
	if err != nil {
		return fmt.Errorf("sample rasters: %w", err)
	}
	paths, err := sampler.WriteAll(h.cfg.OutDir, ResultsBase, tbl)
	report.SamplePaths = paths
	if err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	report.SampleRows = tbl.NumRows()
	report.SampleColumns = len(tbl.Columns)
	h.metrics.SampleRows.Set(float64(tbl.NumRows()))
	h.metrics.SampleColumns.Set(float64(len(tbl.Columns)))
	h.metrics.ObserveStage("sample", time.Since(start))
	return nil
}
