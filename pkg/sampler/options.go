package sampler

import (
	"fmt"
	"strings"
)

// Method selects how a query coordinate is matched to a pixel.
type Method int

const (
	// Index computes the pixel from the affine transform and reads band 1.
	Index Method = iota
	// Nearest picks the closest pixel centre on each axis.
	Nearest
	// Forward picks the largest pixel coordinate not above the query.
	Forward
	// Backward picks the smallest pixel coordinate not below the query.
	Backward
)

var methodNames = map[Method]string{
	Index:    "index",
	Nearest:  "nearest",
	Forward:  "forward",
	Backward: "backward",
}

func (m Method) String() string {
	if s, ok := methodNames[m]; ok {
		return s
	}
	return fmt.Sprintf("method(%d)", int(m))
}

// ParseMethod accepts index, nearest, forward (ffill, pad) and backward
// (bfill, backfill).
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "index":
		return Index, nil
	case "nearest":
		return Nearest, nil
	case "forward", "ffill", "pad":
		return Forward, nil
	case "backward", "bfill", "backfill":
		return Backward, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMethod, s)
}

// DuplicatePolicy decides what happens when two sampled bands produce the
// same column name.
type DuplicatePolicy int

const (
	// DuplicateSuffix renames later columns to name_2, name_3, ...
	DuplicateSuffix DuplicatePolicy = iota
	// DuplicateKeepFirst drops later columns and logs a warning.
	DuplicateKeepFirst
	// DuplicateError fails with a *DuplicateColumnError.
	DuplicateError
)

func (d DuplicatePolicy) String() string {
	switch d {
	case DuplicateSuffix:
		return "suffix"
	case DuplicateKeepFirst:
		return "keep_first"
	case DuplicateError:
		return "error"
	}
	return fmt.Sprintf("duplicates(%d)", int(d))
}

// ParseDuplicatePolicy accepts suffix, keep_first and error.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "suffix":
		return DuplicateSuffix, nil
	case "keep_first", "keep-first", "drop":
		return DuplicateKeepFirst, nil
	case "error":
		return DuplicateError, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
}

// Options configures sampling.
type Options struct {
	Method Method
	// Tolerance, when positive, rejects matches farther than this distance
	// on either axis; the value becomes NaN.
	Tolerance  float64
	Duplicates DuplicatePolicy
	// Workers bounds the number of rasters read concurrently.
	Workers int
}

// DefaultOptions returns nearest-pixel sampling with suffixed duplicates.
func DefaultOptions() Options {
	return Options{Method: Nearest, Duplicates: DuplicateSuffix, Workers: 4}
}
