// Package config loads and validates harvest settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/eunmann/geodata-harvester/pkg/harvest"
	"github.com/eunmann/geodata-harvester/pkg/logging"
	"github.com/eunmann/geodata-harvester/pkg/membudget"
	"github.com/eunmann/geodata-harvester/pkg/points"
	"github.com/eunmann/geodata-harvester/pkg/sampler"
	"github.com/eunmann/geodata-harvester/pkg/temporal"
	"github.com/eunmann/geodata-harvester/pkg/timeseries"
)

// EnvPrefix prefixes every environment override, e.g. GEOHARVEST_OUTPATH.
const EnvPrefix = "GEOHARVEST"

// DateLayout is the format of date_min and date_max.
const DateLayout = "2006-01-02"

// Source kinds.
const (
	KindLocal = "local"
	KindS3    = "s3"
)

// Config is the settings file.
type Config struct {
	OutPath       string         `mapstructure:"outpath" validate:"required"`
	InFile        string         `mapstructure:"infile"`
	ColnameLng    string         `mapstructure:"colname_lng" validate:"required"`
	ColnameLat    string         `mapstructure:"colname_lat" validate:"required"`
	TargetBBox    []float64      `mapstructure:"target_bbox" validate:"omitempty,len=4"`
	TargetRes     float64        `mapstructure:"target_res" validate:"gt=0"`
	DateMin       string         `mapstructure:"date_min"`
	DateMax       string         `mapstructure:"date_max"`
	TimeIntervals int            `mapstructure:"time_intervals" validate:"gte=0"`
	LedgerName    string         `mapstructure:"ledger_name" validate:"required"`
	Overwrite     bool           `mapstructure:"overwrite"`
	Sampling      SamplingConfig `mapstructure:"sampling"`
	Aggregation   AggConfig      `mapstructure:"aggregation"`
	Sources       []SourceConfig `mapstructure:"sources" validate:"required,min=1,dive"`
	Log           LogConfig      `mapstructure:"log"`
	Metrics       MetricsConfig  `mapstructure:"metrics"`
}

// SamplingConfig configures point sampling.
type SamplingConfig struct {
	Method           string  `mapstructure:"method" validate:"oneof=index nearest forward backward ffill pad bfill backfill"`
	DuplicateColumns string  `mapstructure:"duplicate_columns" validate:"oneof=suffix keep_first error"`
	Tolerance        float64 `mapstructure:"tolerance" validate:"gte=0"`
	Workers          int     `mapstructure:"workers" validate:"gte=1"`
}

// AggConfig configures temporal aggregation.
type AggConfig struct {
	Workers int  `mapstructure:"workers" validate:"gte=1"`
	FillNaN bool `mapstructure:"fill_nan"`
	Buffer  int  `mapstructure:"buffer" validate:"gte=0"`

	// MemoryLimit caps memory held by concurrent bins, e.g. "2GiB". Empty
	// uses half of system RAM.
	MemoryLimit string `mapstructure:"memory_limit"`
}

// SourceConfig configures one data source.
type SourceConfig struct {
	Name        string        `mapstructure:"name" validate:"required"`
	Kind        string        `mapstructure:"kind" validate:"oneof=local s3"`
	Dir         string        `mapstructure:"dir"`
	Bucket      string        `mapstructure:"bucket"`
	Prefix      string        `mapstructure:"prefix"`
	Region      string        `mapstructure:"region"`
	Manifest    bool          `mapstructure:"manifest"`
	Concurrency int           `mapstructure:"concurrency" validate:"gte=0"`
	Layers      []LayerConfig `mapstructure:"layers" validate:"required,min=1,dive"`
}

// LayerConfig configures one layer of a source.
type LayerConfig struct {
	Name      string   `mapstructure:"name" validate:"required"`
	Temporal  string   `mapstructure:"temporal" validate:"omitempty,oneof=bands snapshots none"`
	Stats     []string `mapstructure:"stats" validate:"dive,oneof=mean median sum perc95 perc5 max min"`
	Band      int      `mapstructure:"band" validate:"gte=0"`
	BandLabel string   `mapstructure:"band_label"`
	MaskBand  string   `mapstructure:"mask_band"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Debug bool `mapstructure:"debug"`
	Human bool `mapstructure:"human"`
}

// MetricsConfig configures the metrics textfile.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

var validate = validator.New()

// Load reads path (YAML), applies GEOHARVEST_* environment overrides and
// defaults, then validates. A .env file in the working directory is loaded
// first when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.L().Warn().Err(err).Msg("failed to load .env")
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else if envPath := os.Getenv(EnvPrefix + "_CONFIG"); envPath != "" {
		v.SetConfigFile(envPath)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("settings")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	for i := range cfg.Sources {
		if cfg.Sources[i].Kind == "" {
			cfg.Sources[i].Kind = KindLocal
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("outpath", "out")
	v.SetDefault("colname_lng", points.DefaultLonColumn)
	v.SetDefault("colname_lat", points.DefaultLatColumn)
	v.SetDefault("target_res", 1.0)
	v.SetDefault("time_intervals", 0)
	v.SetDefault("ledger_name", harvest.DefaultLedgerName)
	v.SetDefault("overwrite", true)
	v.SetDefault("sampling.method", "nearest")
	v.SetDefault("sampling.duplicate_columns", "suffix")
	v.SetDefault("sampling.tolerance", 0.0)
	v.SetDefault("sampling.workers", 4)
	v.SetDefault("aggregation.workers", 1)
	v.SetDefault("aggregation.fill_nan", true)
	v.SetDefault("aggregation.buffer", 0)
	v.SetDefault("aggregation.memory_limit", "")
	v.SetDefault("log.debug", false)
	v.SetDefault("log.human", false)
	v.SetDefault("metrics.textfile", "")
}

// Validate runs the struct-tag rules and the cross-field checks.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.InFile == "" && len(c.TargetBBox) == 0 {
		return errors.New("either infile or target_bbox is required")
	}
	if c.Aggregation.MemoryLimit != "" {
		if _, err := membudget.ParseSize(c.Aggregation.MemoryLimit); err != nil {
			return fmt.Errorf("aggregation.memory_limit: %w", err)
		}
	}
	if len(c.TargetBBox) == 4 && (c.TargetBBox[0] >= c.TargetBBox[2] || c.TargetBBox[1] >= c.TargetBBox[3]) {
		return fmt.Errorf("target_bbox %v: min must be below max", c.TargetBBox)
	}
	dmin, dmax, err := c.Dates()
	if err != nil {
		return err
	}
	if !dmin.IsZero() && !dmax.IsZero() && !dmax.After(dmin) {
		return fmt.Errorf("date_max %s must be after date_min %s", c.DateMax, c.DateMin)
	}
	if c.TimeIntervals > 0 && (dmin.IsZero() || dmax.IsZero()) {
		return errors.New("time_intervals requires date_min and date_max")
	}

	seen := make(map[string]bool, len(c.Sources))
	for i, s := range c.Sources {
		if seen[s.Name] {
			return fmt.Errorf("sources[%d]: duplicate name %q", i, s.Name)
		}
		seen[s.Name] = true
		switch s.Kind {
		case KindLocal:
			if s.Dir == "" {
				return fmt.Errorf("sources[%d]: dir is required for local sources", i)
			}
		case KindS3:
			if s.Bucket == "" {
				return fmt.Errorf("sources[%d]: bucket is required for s3 sources", i)
			}
		}
	}
	return nil
}

// Dates parses date_min and date_max; an empty value is the zero time.
func (c *Config) Dates() (dmin, dmax time.Time, err error) {
	if dmin, err = parseDate("date_min", c.DateMin); err != nil {
		return
	}
	dmax, err = parseDate("date_max", c.DateMax)
	return
}

func parseDate(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s %q: want YYYY-MM-DD", field, s)
	}
	return t, nil
}

// SamplerOptions converts the sampling section.
func (c *Config) SamplerOptions() (sampler.Options, error) {
	m, err := sampler.ParseMethod(c.Sampling.Method)
	if err != nil {
		return sampler.Options{}, err
	}
	d, err := sampler.ParseDuplicatePolicy(c.Sampling.DuplicateColumns)
	if err != nil {
		return sampler.Options{}, err
	}
	return sampler.Options{Method: m, Tolerance: c.Sampling.Tolerance, Duplicates: d, Workers: c.Sampling.Workers}, nil
}

// AggregationOptions converts the aggregation section.
func (c *Config) AggregationOptions() (temporal.Options, error) {
	opts := temporal.Options{Buffer: c.Aggregation.Buffer, FillNaN: c.Aggregation.FillNaN, Workers: c.Aggregation.Workers}
	if c.Aggregation.MemoryLimit != "" {
		n, err := membudget.ParseSize(c.Aggregation.MemoryLimit)
		if err != nil {
			return opts, fmt.Errorf("aggregation.memory_limit: %w", err)
		}
		opts.Budget = membudget.New(n, membudget.SourceConfig)
	}
	return opts, nil
}

// PointColumns returns the coordinate column names of infile.
func (c *Config) PointColumns() points.Columns {
	return points.Columns{Lon: c.ColnameLng, Lat: c.ColnameLat}
}

// LayerSpecs converts the layers of one source.
func (s SourceConfig) LayerSpecs() []harvest.LayerSpec {
	out := make([]harvest.LayerSpec, len(s.Layers))
	for i, l := range s.Layers {
		temporalKind := harvest.Temporal(l.Temporal)
		if temporalKind == "" {
			temporalKind = harvest.TemporalNone
		}
		out[i] = harvest.LayerSpec{
			Name:     l.Name,
			Temporal: temporalKind,
			Stats:    l.Stats,
			Snapshot: timeseries.SnapshotOptions{Band: l.Band, BandLabel: l.BandLabel, MaskBand: l.MaskBand},
		}
	}
	return out
}

// Harvest builds the orchestrator config; pts may be nil.
func (c *Config) Harvest(pts []points.Point) (harvest.Config, error) {
	dmin, dmax, err := c.Dates()
	if err != nil {
		return harvest.Config{}, err
	}
	opts, err := c.SamplerOptions()
	if err != nil {
		return harvest.Config{}, err
	}
	agg, err := c.AggregationOptions()
	if err != nil {
		return harvest.Config{}, err
	}
	hc := harvest.Config{
		OutDir:        c.OutPath,
		Points:        pts,
		Resolution:    c.TargetRes,
		DateMin:       dmin,
		DateMax:       dmax,
		TimeIntervals: c.TimeIntervals,
		LedgerName:    c.LedgerName,
		Overwrite:     c.Overwrite,
		Sampling:      opts,
		Aggregation:   agg,
		MetricsFile:   c.Metrics.Textfile,
	}
	if len(c.TargetBBox) == 4 {
		hc.BBox = &[4]float64{c.TargetBBox[0], c.TargetBBox[1], c.TargetBBox[2], c.TargetBBox[3]}
	}
	return hc, nil
}
