// Package s3source fetches raster layers from an S3 bucket. Layers are the
// .nc objects under <prefix>/<layer>, or the files a manifest.json under the
// prefix assigns to each layer.
package s3source

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eunmann/geodata-harvester/internal/logctx"
	"github.com/eunmann/geodata-harvester/pkg/fileutil"
	"github.com/eunmann/geodata-harvester/pkg/harvest"
	"github.com/eunmann/geodata-harvester/pkg/humanfmt"
	"github.com/eunmann/geodata-harvester/pkg/logging"
)

// DefaultConcurrency bounds parallel object downloads.
const DefaultConcurrency = 4

// Config configures a Source.
type Config struct {
	Name   string
	Bucket string
	Prefix string
	Layers []harvest.LayerSpec
	// DownloadDir defaults to <OutDir>/<Name> of the request.
	DownloadDir string
	Concurrency int
	// UseManifest reads <Prefix>/manifest.json instead of listing keys.
	UseManifest bool
}

// Source implements harvest.Source over an S3 bucket.
type Source struct {
	cfg   Config
	store objectStore
}

// New returns a Source backed by client.
func New(client *Client, cfg Config) (*Source, error) {
	return newSource(client, cfg)
}

func newSource(store objectStore, cfg Config) (*Source, error) {
	bucket, err := ParseBucketIdentifier(cfg.Bucket)
	if err != nil {
		return nil, err
	}
	cfg.Bucket = bucket
	if cfg.Name == "" {
		return nil, errors.New("s3 source name is required")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	return &Source{cfg: cfg, store: store}, nil
}

// Name implements harvest.Source.
func (s *Source) Name() string {
	return s.cfg.Name
}

// Fetch implements harvest.Source. Objects land under the download
// directory at their key relative to the prefix. Objects already downloaded
// (non-empty local file at that path) are not fetched again.
func (s *Source) Fetch(ctx context.Context, req harvest.Request) ([]harvest.Layer, error) {
	log := logctx.FromContext(ctx)
	start := time.Now()

	dir := s.cfg.DownloadDir
	if dir == "" {
		dir = filepath.Join(req.OutDir, s.cfg.Name)
	}

	bucket, keysFor, err := s.catalog(ctx)
	if err != nil {
		return nil, err
	}

	type job struct{ key, dest string }
	var jobs []job
	layers := make([]harvest.Layer, len(s.cfg.Layers))
	for i, spec := range s.cfg.Layers {
		keys, err := keysFor(spec.Name)
		if err != nil {
			return nil, err
		}
		keys = slices.DeleteFunc(keys, func(k string) bool {
			return !strings.EqualFold(path.Ext(k), ".nc") ||
				(spec.Temporal == harvest.TemporalSnapshots && !harvest.InRange(k, req.DateMin, req.DateMax))
		})
		if len(keys) == 0 {
			return nil, fmt.Errorf("%w: layer %s in s3://%s/%s", harvest.ErrNoLayerFiles, spec.Name, bucket, s.cfg.Prefix)
		}
		slices.Sort(keys)

		files := make([]string, len(keys))
		for j, key := range keys {
			rel, err := localPath(s.cfg.Prefix, key)
			if err != nil {
				return nil, err
			}
			files[j] = filepath.Join(dir, rel)
			jobs = append(jobs, job{key: key, dest: files[j]})
		}
		layers[i] = harvest.Layer{Spec: spec, Files: files}
	}

	var downloaded, skipped, received atomic.Int64
	progress := logging.NewProgressTracker("fetch", int64(len(jobs)))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, j := range jobs {
		g.Go(func() error {
			if fileutil.IsNonEmpty(j.dest) {
				skipped.Add(1)
				progress.RecordCompletion(0)
				return nil
			}
			objStart := time.Now()
			n, err := s.store.Download(ctx, bucket, j.key, j.dest)
			if err != nil {
				progress.RecordFailure()
				return err
			}
			elapsed := time.Since(objStart)
			progress.RecordCompletion(elapsed)
			downloaded.Add(1)
			received.Add(n)
			logging.FileCreated(log, "fetch", elapsed).
				Str("key", j.key).
				Str("path", j.dest).
				Str("size", humanfmt.Bytes(n)).
				ProgressFromTracker(progress).
				LogDebug("object downloaded")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("download layers: %w", err)
	}

	elapsed := time.Since(start)
	logging.PhaseComplete(log, "fetch", elapsed).
		Str("bucket", bucket).
		Str("bytes", humanfmt.Bytes(received.Load())).
		Str("throughput", humanfmt.Throughput(received.Load(), elapsed)).
		Int("downloaded", int(downloaded.Load())).
		Int("skipped", int(skipped.Load())).
		ProgressFromTracker(progress).
		Log("s3 fetch complete")
	return layers, nil
}

// localPath maps key to a slash-free relative path: the part after prefix,
// or the whole key when it lies outside prefix.
func localPath(prefix, key string) (string, error) {
	rel := key
	if p := strings.Trim(prefix, "/"); p != "" && strings.HasPrefix(key, p+"/") {
		rel = strings.TrimPrefix(key, p+"/")
	}
	rel = path.Clean("/" + rel)[1:]
	if rel == "" || rel == "." {
		return "", fmt.Errorf("object key %q has no file name", key)
	}
	return filepath.FromSlash(rel), nil
}

// catalog returns the bucket to read from and a function listing the keys of
// one layer.
func (s *Source) catalog(ctx context.Context) (string, func(string) ([]string, error), error) {
	if !s.cfg.UseManifest {
		return s.cfg.Bucket, func(layer string) ([]string, error) {
			return s.store.List(ctx, s.cfg.Bucket, path.Join(s.cfg.Prefix, layer))
		}, nil
	}

	key := path.Join(s.cfg.Prefix, ManifestName)
	r, err := s.store.Open(ctx, s.cfg.Bucket, key)
	if err != nil {
		return "", nil, fmt.Errorf("fetch manifest: %w", err)
	}
	defer r.Close()
	m, err := ParseManifest(r)
	if err != nil {
		return "", nil, fmt.Errorf("s3://%s/%s: %w", s.cfg.Bucket, key, err)
	}
	bucket, err := m.BucketName(s.cfg.Bucket)
	if err != nil {
		return "", nil, err
	}
	return bucket, func(layer string) ([]string, error) {
		return m.Keys(layer), nil
	}, nil
}
