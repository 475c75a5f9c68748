package sampler

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateColumn indicates two sampled bands mapping to one column
	// name under DuplicateError.
	ErrDuplicateColumn = errors.New("duplicate sample column")
	// ErrNoRasters indicates an empty raster list.
	ErrNoRasters = errors.New("no rasters to sample")
	// ErrUnknownMethod indicates an unrecognised sampling method name.
	ErrUnknownMethod = errors.New("unknown sampling method")
	// ErrUnknownPolicy indicates an unrecognised duplicate-column policy name.
	ErrUnknownPolicy = errors.New("unknown duplicate column policy")
)

// DuplicateColumnError names the colliding column and the raster that
// produced the second occurrence.
type DuplicateColumnError struct {
	Column string
	Raster string
}

func (e *DuplicateColumnError) Error() string {
	return fmt.Sprintf("column %q from %s already exists", e.Column, e.Raster)
}

func (e *DuplicateColumnError) Unwrap() error { return ErrDuplicateColumn }
