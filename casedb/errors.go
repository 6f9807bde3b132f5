package casedb

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSuchRecord is returned for an ordinal the store never issued
	ErrNoSuchRecord = errors.New("no such record")

	// ErrUnsupportedField marks lookups on fields the store does not index
	ErrUnsupportedField = errors.New("unsupported lookup field")

	// ErrInconsistent marks a known key whose record cannot be retrieved
	ErrInconsistent = errors.New("case store inconsistency")
)

// UnsupportedFieldError reports an IDsForValue call on a field outside the indexed set
type UnsupportedFieldError struct {
	Field string
}

// Error implements the error interface
func (e *UnsupportedFieldError) Error() string {
	return fmt.Sprintf("%s: %q (supported: %s, %s, %s)", ErrUnsupportedField, e.Field,
		FieldCaseID, FieldCaseType, FieldCaseStatus)
}

// Unwrap allows errors.Is(err, ErrUnsupportedField)
func (e *UnsupportedFieldError) Unwrap() error {
	return ErrUnsupportedField
}

// ConsistencyError reports an ordinal whose key is known but whose record could not be fetched
type ConsistencyError struct {
	Ordinal int
	Key     string
	Err     error
}

// Error implements the error interface
func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("could not find a case for case id [%s] (ordinal %d)", e.Key, e.Ordinal)
}

// Unwrap returns both the sentinel and the fetch failure
func (e *ConsistencyError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInconsistent}
	}
	return []error{ErrInconsistent, e.Err}
}

// IsFatal reports whether err signals a broken store invariant rather than bad input
func IsFatal(err error) bool {
	return errors.Is(err, ErrInconsistent) || errors.Is(err, ErrUnsupportedField)
}
