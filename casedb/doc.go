// Package casedb provides an indexed, read-only view over the cases of one
// domain, loaded from the remote case API.
//
//	Overview
//
// Expression evaluators address records by small integer ordinals, while the
// case API addresses them by natural key (case_id). A Store bridges the two:
// it bulk-loads every case matching a set of criteria, assigns ordinals, and
// answers the lookups an evaluator needs without exposing the network.
//
//	Ordinals
//
// Ordinals are assigned once, when the store is opened, by sorting the loaded
// natural keys. For the lifetime of a store each ordinal maps to exactly one
// key; the key -> ordinal map is derived from the ordinal -> key slice and is
// never updated independently. Ordinals are not stable across stores.
//
//	Lookups
//
// IDsForValue answers equality lookups on three fields:
//
//   - case-id:     the natural key
//   - case-type:   the case type tag
//   - case-status: "open" or "closed"
//
// Any other field is a programming error and returns UnsupportedFieldError.
//
// Each (field, value) result is computed once by scanning the loaded records
// and memoised for the rest of the store's life. The cache is never
// invalidated: a case re-fetched by Read, or a record mutated after the
// lookup ran, does not change a cached result. A store is a point-in-time
// snapshot plus lazy completion of individual records, not a live view.
//
//	Lazy completion
//
// Read resolves an ordinal to its key and returns the loaded record. If the
// record is missing it is fetched once by key; if the API no longer returns
// it the store reports a ConsistencyError, which is distinct from the
// ErrNoSuchRecord returned for an ordinal that was never issued.
//
//	Concurrency
//
// A Store is not safe for concurrent use. Lazy completion and lookup
// memoisation perform unsynchronised read-then-write sequences. Open one store
// per request instead of sharing an instance.
package casedb
