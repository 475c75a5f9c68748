package raster

import "errors"

var (
	// ErrNoDataVariable indicates the file has no (y, x) gridded variable.
	ErrNoDataVariable = errors.New("no gridded data variable")
	// ErrInvalidShape indicates a zero or inconsistent grid shape.
	ErrInvalidShape = errors.New("invalid raster shape")
	// ErrUnsupportedType indicates a netCDF variable type that cannot be
	// converted to float64.
	ErrUnsupportedType = errors.New("unsupported variable type")
)
