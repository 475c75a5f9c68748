package temporal

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/eunmann/geodata-harvester/pkg/timeseries"
)

// PeriodKind selects how time steps are grouped into bins.
type PeriodKind int

const (
	KindYearly PeriodKind = iota
	KindMonthly
	KindChunk
)

// Period is a binning rule. Steps is only used by KindChunk.
type Period struct {
	Kind  PeriodKind
	Steps int
}

var (
	// Yearly groups steps by calendar year.
	Yearly = Period{Kind: KindYearly}
	// Monthly groups steps by calendar month, merging the same month of
	// different years.
	Monthly = Period{Kind: KindMonthly}
)

// Chunk groups steps into contiguous runs of n sequence positions. A trailing
// run shorter than n is dropped. Chunks are labelled with the date of their
// first step; when two chunks start on the same date the time of day is added,
// and when that still collides the chunk number is.
func Chunk(n int) Period {
	return Period{Kind: KindChunk, Steps: n}
}

// ParsePeriod accepts "yearly", "monthly" or a positive step count.
func ParsePeriod(s string) (Period, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "yearly":
		return Yearly, nil
	case "monthly":
		return Monthly, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	p := Chunk(n)
	return p, p.validate()
}

func (p Period) String() string {
	switch p.Kind {
	case KindYearly:
		return "yearly"
	case KindMonthly:
		return "monthly"
	}
	return fmt.Sprintf("chunk(%d)", p.Steps)
}

func (p Period) validate() error {
	if p.Kind == KindChunk && p.Steps <= 0 {
		return fmt.Errorf("%w: chunk size %d", ErrInvalidPeriod, p.Steps)
	}
	if p.Kind < KindYearly || p.Kind > KindChunk {
		return fmt.Errorf("%w: kind %d", ErrInvalidPeriod, p.Kind)
	}
	return nil
}

// Bin is a group of stack positions reduced into one output grid per
// statistic.
type Bin struct {
	Label string
	Steps []int
	// Start is the time of the first step.
	Start time.Time
}

// Layouts of chunk labels, in the order they are tried.
const (
	ChunkLabelLayout     = timeseries.LabelLayout
	ChunkTimeLabelLayout = "2006-01-02T150405"
)

// Bins groups the steps of s according to p. Calendar bins are ordered by
// ascending key; chunk bins follow sequence order.
func Bins(s *timeseries.Stack, p Period) ([]Bin, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if p.Kind == KindChunk {
		var bins []Bin
		for start := 0; start+p.Steps <= s.Len(); start += p.Steps {
			steps := make([]int, p.Steps)
			for i := range steps {
				steps[i] = start + i
			}
			bins = append(bins, Bin{
				Label: s.Times[start].Format(ChunkLabelLayout),
				Steps: steps,
				Start: s.Times[start],
			})
		}
		uniqueChunkLabels(bins)
		return bins, nil
	}

	groups := make(map[int][]int)
	for i, t := range s.Times {
		key := t.Year()
		if p.Kind == KindMonthly {
			key = int(t.Month())
		}
		groups[key] = append(groups[key], i)
	}
	keys := make([]int, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	bins := make([]Bin, len(keys))
	for i, k := range keys {
		label := strconv.Itoa(k)
		if p.Kind == KindMonthly {
			label = fmt.Sprintf("%02d", k)
		}
		bins[i] = Bin{Label: label, Steps: groups[k], Start: s.Times[groups[k][0]]}
	}
	return bins, nil
}

func uniqueChunkLabels(bins []Bin) {
	if distinctLabels(bins) {
		return
	}
	for i := range bins {
		bins[i].Label = bins[i].Start.Format(ChunkTimeLabelLayout)
	}
	if distinctLabels(bins) {
		return
	}
	for i := range bins {
		bins[i].Label = fmt.Sprintf("%s-%d", bins[i].Start.Format(ChunkLabelLayout), i+1)
	}
}

func distinctLabels(bins []Bin) bool {
	seen := make(map[string]bool, len(bins))
	for _, b := range bins {
		if seen[b.Label] {
			return false
		}
		seen[b.Label] = true
	}
	return true
}
