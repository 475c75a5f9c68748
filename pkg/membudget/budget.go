// Package membudget bounds the memory held by concurrent raster reductions.
//
// Callers reserve the bytes a unit of work will hold before starting it and
// release them when done; Reserve blocks while the budget is exhausted.
package membudget

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/eunmann/geodata-harvester/pkg/humanfmt"
)

// DefaultFraction of system RAM used by FromSystemRAM.
const DefaultFraction = 0.5

// ErrTooLarge indicates a reservation larger than the whole budget.
var ErrTooLarge = errors.New("reservation exceeds total budget")

// Source records how the budget total was chosen.
type Source string

const (
	SourceSystem  Source = "system"
	SourceDefault Source = "default"
	SourceConfig  Source = "config"
)

// Budget is safe for concurrent use.
type Budget struct {
	total  uint64
	source Source

	mu    sync.Mutex
	inUse uint64
	// wake is closed and replaced on every release.
	wake chan struct{}
}

// New returns a budget of total bytes.
func New(total uint64, source Source) *Budget {
	return &Budget{total: total, source: source, wake: make(chan struct{})}
}

// FromSystemRAM returns a budget of fraction of the detected RAM, or of
// DefaultMemoryBytes when detection fails.
func FromSystemRAM(fraction float64) *Budget {
	if fraction <= 0 || fraction > 1 {
		fraction = DefaultFraction
	}
	mem, ok := totalSystemMemory()
	if !ok || mem == 0 {
		return New(uint64(float64(DefaultMemoryBytes)*fraction), SourceDefault)
	}
	return New(uint64(float64(mem)*fraction), SourceSystem)
}

// Total returns the budget size in bytes.
func (b *Budget) Total() uint64 {
	return b.total
}

// Source returns how the total was chosen.
func (b *Budget) Source() Source {
	return b.source
}

// InUse returns the reserved bytes.
func (b *Budget) InUse() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inUse
}

// TryReserve reserves n bytes if they are available now.
func (b *Budget) TryReserve(n uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.inUse+n > b.total {
		return false
	}
	b.inUse += n
	return true
}

// Reserve blocks until n bytes are available or ctx is done.
func (b *Budget) Reserve(ctx context.Context, n uint64) error {
	if n > b.total {
		return fmt.Errorf("%w: %s of %s", ErrTooLarge, humanfmt.Bytes(int64(n)), humanfmt.Bytes(int64(b.total)))
	}
	for {
		b.mu.Lock()
		if b.inUse+n <= b.total {
			b.inUse += n
			b.mu.Unlock()
			return nil
		}
		wake := b.wake
		b.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Release returns n reserved bytes and wakes blocked reservations.
func (b *Budget) Release(n uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inUse -= min(n, b.inUse)
	close(b.wake)
	b.wake = make(chan struct{})
}

// PlaneBytes is the memory of planes float64 rasters of width x height.
func PlaneBytes(width, height, planes int) uint64 {
	return uint64(width) * uint64(height) * uint64(planes) * 8
}

var sizeUnits = []struct {
	suffix string
	mult   float64
}{
	{"KiB", 1 << 10}, {"MiB", 1 << 20}, {"GiB", 1 << 30}, {"TiB", 1 << 40},
	{"KB", 1e3}, {"MB", 1e6}, {"GB", 1e9}, {"TB", 1e12},
	{"K", 1 << 10}, {"M", 1 << 20}, {"G", 1 << 30}, {"T", 1 << 40},
	{"B", 1},
}

// ParseSize parses sizes such as "512MiB", "2GB" or "1048576".
func ParseSize(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty size string")
	}
	mult := 1.0
	num := s
	for _, u := range sizeUnits {
		if strings.HasSuffix(s, u.suffix) {
			num, mult = strings.TrimSpace(strings.TrimSuffix(s, u.suffix)), u.mult
			break
		}
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return uint64(v * mult), nil
}
