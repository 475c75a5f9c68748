package harvest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/eunmann/geodata-harvester/pkg/timeseries"
)

// Temporal says how a layer's files relate to time.
type Temporal string

const (
	// TemporalBands files hold consecutive time steps as bands labelled
	// with dates.
	TemporalBands Temporal = "bands"
	// TemporalSnapshots files hold one time step each, dated by filename.
	TemporalSnapshots Temporal = "snapshots"
	// TemporalNone files are static layers recorded as they are.
	TemporalNone Temporal = "none"
)

// LayerSpec configures one layer of a source.
type LayerSpec struct {
	Name     string
	Temporal Temporal
	// Stats are the temporal statistics to compute; median when empty.
	Stats []string
	// Snapshot selects the band and mask of multi-band snapshot files.
	Snapshot timeseries.SnapshotOptions
}

// Request carries the harvest extent passed to every source.
type Request struct {
	OutDir     string
	BBox       [4]float64
	Resolution float64
	DateMin    time.Time
	DateMax    time.Time
}

// Layer is the set of raster files a source produced for one layer.
type Layer struct {
	Spec  LayerSpec
	Files []string
}

// Source produces raster files for its configured layers.
type Source interface {
	Name() string
	Fetch(ctx context.Context, req Request) ([]Layer, error)
}

// LocalSource serves layers from raster files already on disk. Files of a
// layer are the .nc files in Dir whose name starts with the layer name.
type LocalSource struct {
	SourceName string
	Dir        string
	Layers     []LayerSpec
}

// Name implements Source.
func (s *LocalSource) Name() string {
	return s.SourceName
}

// Fetch implements Source. Snapshot files dated outside the request's date
// range are skipped.
func (s *LocalSource) Fetch(ctx context.Context, req Request) ([]Layer, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.Dir, err)
	}

	layers := make([]Layer, 0, len(s.Layers))
	for _, spec := range s.Layers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var files []string
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || !strings.HasPrefix(name, spec.Name) || !strings.EqualFold(filepath.Ext(name), ".nc") {
				continue
			}
			path := filepath.Join(s.Dir, name)
			if spec.Temporal == TemporalSnapshots && !InRange(path, req.DateMin, req.DateMax) {
				continue
			}
			files = append(files, path)
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("%w: layer %s in %s", ErrNoLayerFiles, spec.Name, s.Dir)
		}
		slices.Sort(files)
		layers = append(layers, Layer{Spec: spec, Files: files})
	}
	return layers, nil
}

// InRange reports whether the date in path's filename lies within
// [from, to]. Files without a parseable date are kept; a zero bound is open.
func InRange(path string, from, to time.Time) bool {
	t, err := timeseries.DateFromFilename(path)
	if err != nil {
		return true
	}
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && t.After(to) {
		return false
	}
	return true
}
