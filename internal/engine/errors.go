package engine

import (
	"fmt"
	"strings"
)

// DataLoadError means the dataset could not be read: absent, unreadable, or
// a malformed header or cell.
type DataLoadError struct {
	Location string
	Err      error
}

func (e *DataLoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Location, e.Err)
}

func (e *DataLoadError) Unwrap() error { return e.Err }

// SchemaError means a year column header is not an integer.
type SchemaError struct {
	Column string
	Err    error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("year column %q: %v", e.Column, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// LookupError lists selected identifiers that the dataset does not contain.
type LookupError struct {
	Identifiers []string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("unknown identifiers: %s", strings.Join(e.Identifiers, ", "))
}
