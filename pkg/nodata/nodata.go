// Package nodata normalizes missing-value sentinels to NaN before any
// statistic is computed over a raster.
package nodata

import (
	"math"
	"strconv"
	"strings"

	"github.com/eunmann/geodata-harvester/pkg/logging"
	"github.com/eunmann/geodata-harvester/pkg/raster"
)

// Candidates are the metadata attributes that may carry the missing-value
// sentinel, in priority order.
var Candidates = []string{"_FillValue", "missing_value", "nodata", "nodatavalue"}

// Resolution reports what Resolve found.
type Resolution struct {
	// Found is false when no candidate attribute was present.
	Found bool
	// Attribute is the attribute key as stored on the grid.
	Attribute string
	// Value is the sentinel that was replaced.
	Value float64
	// Masked counts pixels replaced with NaN.
	Masked int
}

// Lookup finds the sentinel attribute on g without modifying it. Candidates
// are first matched exactly, in order, then case-insensitively.
func Lookup(g *raster.Grid) (Resolution, bool) {
	for _, name := range Candidates {
		if v, ok := g.Attrs[name]; ok {
			if f, ok := sentinel(v); ok {
				return Resolution{Found: true, Attribute: name, Value: f}, true
			}
		}
	}
	for _, name := range Candidates {
		for key, v := range g.Attrs {
			if !strings.EqualFold(key, name) {
				continue
			}
			if f, ok := sentinel(v); ok {
				return Resolution{Found: true, Attribute: key, Value: f}, true
			}
		}
	}
	return Resolution{}, false
}

// Resolve returns a copy of g in which every pixel equal to the sentinel is
// NaN. When no sentinel attribute is found a warning is logged and g is
// returned unchanged; genuine missing pixels then flow into any statistic.
func Resolve(g *raster.Grid) (*raster.Grid, Resolution) {
	log := logging.WithPhase("nodata")
	res, ok := Lookup(g)
	if !ok {
		log.Warn().
			Strs("candidates", Candidates).
			Msg("no nodata attribute found, statistics will include raw pixel values")
		return g, Resolution{}
	}
	if math.IsNaN(res.Value) {
		return g, res
	}

	// pixels are stored as float32 on disk while the attribute may be a double
	narrow := float32(res.Value)
	out := g.Clone()
	for _, band := range out.Bands {
		for i, v := range band {
			if v == res.Value || float32(v) == narrow {
				band[i] = math.NaN()
				res.Masked++
			}
		}
	}
	log.Debug().
		Str("attribute", res.Attribute).
		Float64("value", res.Value).
		Int("masked", res.Masked).
		Msg("replaced nodata pixels")
	return out, res
}

func sentinel(v any) (float64, bool) {
	switch s := v.(type) {
	case []float64:
		if len(s) == 0 {
			return 0, false
		}
		return s[0], true
	case float64:
		return s, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			log := logging.WithPhase("nodata")
			log.Warn().Str("value", s).Msg("nodata attribute is not numeric")
			return 0, false
		}
		return f, true
	}
	return 0, false
}
