package casedb

import (
	"github.com/arthur-debert/casedb/types"
)

// Field names accepted by IDsForValue
const (
	FieldCaseID     = "case-id"
	FieldCaseType   = "case-type"
	FieldCaseStatus = "case-status"
)

type lookupKey struct {
	field string
	value string
}

var fieldGetters = map[string]func(*types.Case) string{
	FieldCaseID:     func(c *types.Case) string { return c.ID },
	FieldCaseType:   func(c *types.Case) string { return c.TypeID },
	FieldCaseStatus: func(c *types.Case) string { return c.Status() },
}

// IsIndexedField reports whether IDsForValue accepts field
func IsIndexedField(field string) bool {
	_, ok := fieldGetters[field]
	return ok
}

// IDsForValue returns, in ordinal order, the ordinals of the cases whose field equals value.
//
// The first call for a (field, value) pair scans the loaded records and the
// result is cached for the rest of the store's life. Later changes to the
// record set are not reflected in cached results.
func (s *Store) IDsForValue(field, value string) ([]int, error) {
	if !IsIndexedField(field) {
		return nil, &UnsupportedFieldError{Field: field}
	}
	get := fieldGetters[field]

	s.logger.Debug("case index lookup", "field", field, "value", value)

	k := lookupKey{field: field, value: value}
	ids, cached := s.lookups[k]
	if !cached {
		ids = make([]int, 0)
		for ordinal, key := range s.keys {
			c, loaded := s.records[key]
			if !loaded {
				continue
			}
			if get(c) == value {
				ids = append(ids, ordinal)
			}
		}
		s.lookups[k] = ids
	}

	out := make([]int, len(ids))
	copy(out, ids)
	return out, nil
}
