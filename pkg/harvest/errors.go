package harvest

import "errors"

var (
	// ErrNoLayerFiles indicates a layer for which a source found no files.
	ErrNoLayerFiles = errors.New("no files for layer")
	// ErrNoSources indicates a harvester without sources.
	ErrNoSources = errors.New("no data sources configured")
	// ErrNoExtent indicates neither a bounding box nor points to derive one.
	ErrNoExtent = errors.New("no bounding box and no points")
)
