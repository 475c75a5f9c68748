package timeseries

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingAttribute indicates a raster lacks the time dimension or the
	// date label attribute.
	ErrMissingAttribute = errors.New("missing time attribute")
	// ErrBadDate indicates a label or filename suffix that is not a date.
	ErrBadDate = errors.New("unparseable date")
	// ErrShapeMismatch indicates rasters that cannot share one time axis.
	ErrShapeMismatch = errors.New("raster geometry mismatch")
	// ErrNoFiles indicates an empty input list.
	ErrNoFiles = errors.New("no raster files")
	// ErrTimesLength indicates explicit times that do not pair with the files.
	ErrTimesLength = errors.New("times and paths differ in length")
	// ErrBandSelection indicates a multi-band snapshot without a usable band
	// selector.
	ErrBandSelection = errors.New("cannot select snapshot band")
)

// AttributeError names the dimension or attribute that a raster file lacks.
type AttributeError struct {
	Path string
	// Kind is "dimension" or "attribute".
	Kind      string
	Name      string
	Available []string
}

func (e *AttributeError) Error() string {
	return fmt.Sprintf("%s: %s %q not found (available: %s)",
		e.Path, e.Kind, e.Name, strings.Join(e.Available, ", "))
}

func (e *AttributeError) Unwrap() error { return ErrMissingAttribute }

// DateSuffixError reports a date that could not be parsed from a band label
// or a filename suffix.
type DateSuffixError struct {
	Path  string
	Value string
}

func (e *DateSuffixError) Error() string {
	return fmt.Sprintf("%s: %q is not a date", e.Path, e.Value)
}

func (e *DateSuffixError) Unwrap() error { return ErrBadDate }

// ShapeMismatchError reports a raster whose geometry differs from the first
// raster of the series.
type ShapeMismatchError struct {
	Path     string
	Want     string
	Got      string
	Property string
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("%s: %s %s does not match %s", e.Path, e.Property, e.Got, e.Want)
}

func (e *ShapeMismatchError) Unwrap() error { return ErrShapeMismatch }
