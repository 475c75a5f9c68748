package points

import "errors"

var (
	// ErrMissingColumn indicates the input lacks a coordinate column.
	ErrMissingColumn = errors.New("coordinate column not found")
	// ErrUnsupportedFormat indicates an input extension with no reader.
	ErrUnsupportedFormat = errors.New("unsupported point file format")
	// ErrNoPoints indicates an input without any usable point.
	ErrNoPoints = errors.New("no points")
)
