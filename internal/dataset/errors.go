package dataset

import (
	"errors"
	"fmt"
	"strings"
)

// Error taxonomy shared by every pipeline stage. Callers match with errors.Is.
var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrMalformedInput    = errors.New("malformed input")
	ErrColumnNotFound    = errors.New("column not found")
	ErrKeyColumnMissing  = errors.New("key column missing")
	ErrKeyKindMismatch   = errors.New("key column kinds differ")
	ErrInvalidJoinSpec   = errors.New("invalid join spec")
	ErrInvalidRuleSet    = errors.New("invalid rule set")
	ErrNotNumeric        = errors.New("value is not numeric")
	ErrSheetNotFound     = errors.New("worksheet not found")
)

// ColumnNotFoundError lists every required column absent from a dataset.
type ColumnNotFoundError struct {
	Dataset string
	Columns []string
}

func (e *ColumnNotFoundError) Error() string {
	quoted := make([]string, len(e.Columns))
	for i, c := range e.Columns {
		quoted[i] = fmt.Sprintf("%q", c)
	}
	if e.Dataset == "" {
		return fmt.Sprintf("column not found: %s", strings.Join(quoted, ", "))
	}
	return fmt.Sprintf("column not found in %s: %s", e.Dataset, strings.Join(quoted, ", "))
}

func (e *ColumnNotFoundError) Is(target error) bool { return target == ErrColumnNotFound }

// KeyColumnMissingError names the join input lacking a key column.
type KeyColumnMissingError struct {
	Dataset string
	Column  string
}

func (e *KeyColumnMissingError) Error() string {
	name := e.Dataset
	if name == "" {
		name = "dataset"
	}
	return fmt.Sprintf("key column %q missing from %s", e.Column, name)
}

func (e *KeyColumnMissingError) Is(target error) bool { return target == ErrKeyColumnMissing }

// NormalizeError reports a cell that could not be converted to the declared kind.
type NormalizeError struct {
	Dataset string
	Column  string
	Row     int
	Value   string
	Kind    string
}

func (e *NormalizeError) Error() string {
	return fmt.Sprintf("malformed input: %s column %q row %d: cannot read %q as %s",
		nonEmpty(e.Dataset, "dataset"), e.Column, e.Row+1, e.Value, e.Kind)
}

func (e *NormalizeError) Is(target error) bool { return target == ErrMalformedInput }

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
