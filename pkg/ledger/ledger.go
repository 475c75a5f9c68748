// Package ledger records every output file the pipeline produces in a CSV
// table keyed by output path. The table is rewritten atomically on every
// update.
package ledger

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/eunmann/geodata-harvester/pkg/fileutil"
	"github.com/eunmann/geodata-harvester/pkg/logging"
)

// Header is the fixed column layout of a ledger file.
var Header = []string{"layername", "agfunction", "dataset", "layertitle", "filename_out", "loginfo"}

// Batch defaults.
const (
	DefaultAggLabel = "None"
	DefaultStatus   = "processed"
)

// Extension is appended to ledger names without one.
const Extension = ".csv"

// Entry is one ledger row.
type Entry struct {
	LayerName   string
	AgFunction  string
	Dataset     string
	LayerTitle  string
	FilenameOut string
	LogInfo     string
}

// Record returns the row in Header order.
func (e Entry) Record() []string {
	return []string{e.LayerName, e.AgFunction, e.Dataset, e.LayerTitle, e.FilenameOut, e.LogInfo}
}

// Batch describes outputs to record. Filenames and Layernames are parallel;
// the other slices are defaulted by Update.
type Batch struct {
	Filenames  []string
	Layernames []string
	Dataset    string
	// Titles defaults to <layername>_<agfunction> per row.
	Titles []string
	// AggLabels defaults to "None"; a single value applies to every row.
	AggLabels []string
	// Status defaults to "processed"; a single value applies to every row.
	Status []string
}

// Ledger is the in-memory table backed by a CSV file. It is safe for use by
// multiple goroutines; updates are serialized.
type Ledger struct {
	mu      sync.Mutex
	path    string
	entries []Entry
	index   map[string]int
}

// PathFor returns the ledger file path for a ledger name inside dir.
func PathFor(dir, name string) string {
	if filepath.Ext(name) == "" {
		name += Extension
	}
	return filepath.Join(dir, name)
}

// New returns an empty ledger that will be written to path.
func New(path string) *Ledger {
	return &Ledger{path: path, index: make(map[string]int)}
}

// Open loads an existing ledger file. Its header must equal Header.
func Open(path string) (*Ledger, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReader(f))
	r.FieldsPerRecord = len(Header)
	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: %w: empty file", path, ErrSchema)
		}
		return nil, fmt.Errorf("read ledger header: %w", err)
	}
	if !slices.Equal(header, Header) {
		return nil, fmt.Errorf("%s: %w: header %s", path, ErrSchema, strings.Join(header, ","))
	}

	l := New(path)
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read ledger row: %w", err)
		}
		e := Entry{rec[0], rec[1], rec[2], rec[3], rec[4], rec[5]}
		if _, dup := l.index[e.FilenameOut]; dup {
			log := logging.WithPhase("ledger")
			log.Warn().Str("path", e.FilenameOut).Msg("duplicate ledger row ignored")
			continue
		}
		l.index[e.FilenameOut] = len(l.entries)
		l.entries = append(l.entries, e)
	}
	return l, nil
}

// OpenOrNew opens the ledger at path, or returns an empty one when the file
// does not exist yet.
func OpenOrNew(path string) (*Ledger, error) {
	if !fileutil.Exists(path) {
		return New(path), nil
	}
	return Open(path)
}

// Update records a batch. All validation happens before the table changes:
// on error neither the ledger nor its file is modified. An existing path is
// an *ExistsError unless force is set, in which case its row is replaced in
// place. New paths are appended. The file is rewritten atomically.
func (l *Ledger) Update(b Batch, force bool) error {
	entries, err := b.entries()
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !force {
		for _, e := range entries {
			if _, ok := l.index[e.FilenameOut]; ok {
				return &ExistsError{Path: e.FilenameOut}
			}
		}
	}

	next := slices.Clone(l.entries)
	index := make(map[string]int, len(l.index)+len(entries))
	for k, v := range l.index {
		index[k] = v
	}
	replaced := 0
	for _, e := range entries {
		if i, ok := index[e.FilenameOut]; ok {
			next[i] = e
			replaced++
			continue
		}
		index[e.FilenameOut] = len(next)
		next = append(next, e)
	}

	if err := write(l.path, next); err != nil {
		return err
	}
	l.entries, l.index = next, index

	log := logging.WithPhase("ledger")
	log.Debug().
		Str("path", l.path).
		Int("added", len(entries)-replaced).
		Int("replaced", replaced).
		Int("rows", len(next)).
		Msg("ledger updated")
	return nil
}

// Save writes the ledger file even when it has no rows.
func (l *Ledger) Save() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return write(l.path, l.entries)
}

// Path returns the ledger file path.
func (l *Ledger) Path() string {
	return l.path
}

// Entries returns a copy of every row in file order.
func (l *Ledger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.entries)
}

// Len returns the number of rows.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Lookup returns the row recorded for path.
func (l *Ledger) Lookup(path string) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i, ok := l.index[path]
	if !ok {
		return Entry{}, false
	}
	return l.entries[i], true
}

// Paths returns every recorded output path in file order.
func (l *Ledger) Paths() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.FilenameOut
	}
	return out
}

// Titles returns every layer title in file order.
func (l *Ledger) Titles() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.LayerTitle
	}
	return out
}

func (b Batch) entries() ([]Entry, error) {
	n := len(b.Filenames)
	if n == 0 {
		return nil, ErrEmptyBatch
	}
	if len(b.Layernames) != n {
		return nil, &LengthMismatchError{Field: "layernames", Got: len(b.Layernames), Want: n}
	}
	aggs, err := broadcast("agg_labels", b.AggLabels, DefaultAggLabel, n)
	if err != nil {
		return nil, err
	}
	status, err := broadcast("status", b.Status, DefaultStatus, n)
	if err != nil {
		return nil, err
	}
	titles := b.Titles
	if len(titles) == 0 {
		titles = make([]string, n)
		for i := range titles {
			titles[i] = b.Layernames[i] + "_" + aggs[i]
		}
	}
	if len(titles) != n {
		return nil, &LengthMismatchError{Field: "titles", Got: len(titles), Want: n}
	}

	seen := make(map[string]struct{}, n)
	out := make([]Entry, n)
	for i, path := range b.Filenames {
		if _, dup := seen[path]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateInBatch, path)
		}
		seen[path] = struct{}{}
		out[i] = Entry{
			LayerName:   b.Layernames[i],
			AgFunction:  aggs[i],
			Dataset:     b.Dataset,
			LayerTitle:  titles[i],
			FilenameOut: path,
			LogInfo:     status[i],
		}
	}
	return out, nil
}

func broadcast(field string, values []string, def string, n int) ([]string, error) {
	switch len(values) {
	case 0:
		values = []string{def}
		fallthrough
	case 1:
		out := make([]string, n)
		for i := range out {
			out[i] = values[0]
		}
		return out, nil
	case n:
		return values, nil
	}
	return nil, &LengthMismatchError{Field: field, Got: len(values), Want: n}
}

func write(path string, entries []Entry) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Header); err != nil {
		return err
	}
	for _, e := range entries {
		if err := w.Write(e.Record()); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	if err := fileutil.WriteFileAtomic(path, buf.Bytes()); err != nil {
		return fmt.Errorf("write ledger %s: %w", path, err)
	}
	return nil
}
