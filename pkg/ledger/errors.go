package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrExists indicates a batch path that is already recorded.
	ErrExists = errors.New("output already recorded")
	// ErrLengthMismatch indicates batch fields of differing lengths.
	ErrLengthMismatch = errors.New("batch length mismatch")
	// ErrDuplicateInBatch indicates a path listed twice in one batch.
	ErrDuplicateInBatch = errors.New("duplicate path in batch")
	// ErrEmptyBatch indicates a batch without filenames.
	ErrEmptyBatch = errors.New("empty batch")
	// ErrSchema indicates a ledger file whose header is not the ledger schema.
	ErrSchema = errors.New("ledger schema mismatch")
)

// LengthMismatchError names the batch field whose length differs from the
// number of filenames.
type LengthMismatchError struct {
	Field string
	Got   int
	Want  int
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("batch field %s has %d values, want %d", e.Field, e.Got, e.Want)
}

func (e *LengthMismatchError) Unwrap() error { return ErrLengthMismatch }

// ExistsError reports a path already in the ledger when force is off.
type ExistsError struct {
	Path string
}

func (e *ExistsError) Error() string {
	return fmt.Sprintf("%s already recorded; use force to replace it", e.Path)
}

func (e *ExistsError) Unwrap() error { return ErrExists }
