package s3source

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
)

// ManifestName is the catalog object looked up under a source prefix.
const ManifestName = "manifest.json"

// Manifest is an optional catalog stored next to a dataset's rasters. When
// present it replaces listing the bucket: only the files it names are
// fetched.
type Manifest struct {
	Dataset string `json:"dataset"`
	// Bucket overrides the source bucket; a plain name or an S3 ARN.
	Bucket  string         `json:"bucket"`
	Created string         `json:"creationTimestamp"`
	Files   []ManifestFile `json:"files"`
}

// ManifestFile is one raster object of the catalog.
type ManifestFile struct {
	Key   string `json:"key"`
	Layer string `json:"layer"`
	Size  int64  `json:"size"`
}

// ParseManifest decodes and validates a catalog manifest.
func ParseManifest(r io.Reader) (*Manifest, error) {
	var m Manifest
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("validate manifest: %w", err)
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	if len(m.Files) == 0 {
		return errors.New("manifest has no files")
	}
	for i, f := range m.Files {
		if f.Key == "" || f.Layer == "" {
			return fmt.Errorf("manifest file %d: key and layer are required", i)
		}
	}
	return nil
}

// BucketName returns the manifest's bucket, or fallback when it names none.
func (m *Manifest) BucketName(fallback string) (string, error) {
	if m.Bucket == "" {
		return fallback, nil
	}
	return ParseBucketIdentifier(m.Bucket)
}

// Keys returns the sorted object keys listed for layer.
func (m *Manifest) Keys(layer string) []string {
	var keys []string
	for _, f := range m.Files {
		if f.Layer == layer {
			keys = append(keys, f.Key)
		}
	}
	slices.Sort(keys)
	return keys
}
