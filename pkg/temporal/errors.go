package temporal

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedStatistic indicates a statistic name outside Supported.
	ErrUnsupportedStatistic = errors.New("unsupported statistic")
	// ErrInvalidPeriod indicates a non-positive chunk size or buffer.
	ErrInvalidPeriod = errors.New("invalid aggregation period")
	// ErrEmptyStack indicates a stack without time steps.
	ErrEmptyStack = errors.New("empty time series")
	// ErrBandMismatch indicates composite inputs with differing band counts
	// or geometry.
	ErrBandMismatch = errors.New("composite inputs differ")
	// ErrDuplicateOutput indicates two outputs of one call mapping to the
	// same path.
	ErrDuplicateOutput = errors.New("duplicate output path")
)

// StatisticError reports a statistic list that cannot be computed.
type StatisticError struct {
	Name   string
	Reason string
}

func (e *StatisticError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("statistics: %s", e.Reason)
	}
	return fmt.Sprintf("statistic %q: %s (supported: %s)", e.Name, e.Reason, strings.Join(names(Supported), ", "))
}

func (e *StatisticError) Unwrap() error { return ErrUnsupportedStatistic }
