// Package metrics collects per-run harvest metrics in a private Prometheus
// registry and writes them in the node-exporter textfile format.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name.
const Namespace = "geoharvest"

// Collector holds the metrics of one harvest run.
type Collector struct {
	registry *prometheus.Registry

	SourcesTotal      *prometheus.CounterVec
	FilesFetched      *prometheus.CounterVec
	OutputsWritten    *prometheus.CounterVec
	LedgerRows        prometheus.Gauge
	SampleRows        prometheus.Gauge
	SampleColumns     prometheus.Gauge
	StageDuration     *prometheus.HistogramVec
	LastRunTimestamp  prometheus.Gauge
	LastRunSuccessful prometheus.Gauge
}

// NewCollector registers every metric on a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Collector{
		registry: reg,
		SourcesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "sources_total",
				Help:      "Data sources processed by outcome",
			},
			[]string{"source", "status"},
		),
		FilesFetched: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "files_fetched_total",
				Help:      "Raster files returned by each source",
			},
			[]string{"source"},
		),
		OutputsWritten: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "outputs_recorded_total",
				Help:      "Output rasters recorded in the ledger",
			},
			[]string{"source"},
		),
		LedgerRows: f.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "ledger_rows",
			Help:      "Rows in the download ledger after the run",
		}),
		SampleRows: f.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "sample_rows",
			Help:      "Query points in the sample table",
		}),
		SampleColumns: f.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "sample_columns",
			Help:      "Value columns in the sample table",
		}),
		StageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "stage_duration_seconds",
				Help:      "Duration of pipeline stages in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900, 3600},
			},
			[]string{"stage"},
		),
		LastRunTimestamp: f.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
		LastRunSuccessful: f.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_run_success",
			Help:      "1 when every source of the last run succeeded",
		}),
	}
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveStage records how long a stage took.
func (c *Collector) ObserveStage(stage string, d time.Duration) {
	c.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// Finish stamps the run completion time and outcome.
func (c *Collector) Finish(at time.Time, ok bool) {
	c.LastRunTimestamp.Set(float64(at.Unix()))
	if ok {
		c.LastRunSuccessful.Set(1)
	} else {
		c.LastRunSuccessful.Set(0)
	}
}

// WriteTextfile writes every metric to path for the node-exporter textfile
// collector. The file is replaced atomically.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
