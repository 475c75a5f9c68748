package harvest

import (
	"errors"
	"fmt"
	"time"
)

// Stage names the pipeline step at which a source stopped.
type Stage string

const (
	StageFetch     Stage = "fetch"
	StageAggregate Stage = "aggregate"
	StageLedger    Stage = "ledger"
	StageDone      Stage = "done"
)

// SourceReport is the outcome of one source.
type SourceReport struct {
	Source  string
	Stage   Stage
	Err     error
	Files   int
	Outputs []string
	Elapsed time.Duration
}

// OK reports whether the source completed.
func (r SourceReport) OK() bool {
	return r.Err == nil
}

// Report summarizes a harvest run. A run can partially succeed: failed
// sources are listed with the stage they failed at while the others are
// recorded and sampled.
type Report struct {
	RunID         string
	PeriodDays    int
	BBox          [4]float64
	Sources       []SourceReport
	LedgerPath    string
	LedgerRows    int
	SamplePaths   []string
	SampleRows    int
	SampleColumns int
	Elapsed       time.Duration
}

// Failed returns the reports of sources that did not complete.
func (r *Report) Failed() []SourceReport {
	var out []SourceReport
	for _, s := range r.Sources {
		if !s.OK() {
			out = append(out, s)
		}
	}
	return out
}

// Err joins the errors of every failed source, or returns nil.
func (r *Report) Err() error {
	var errs []error
	for _, s := range r.Failed() {
		errs = append(errs, fmt.Errorf("source %s (%s): %w", s.Source, s.Stage, s.Err))
	}
	return errors.Join(errs...)
}
