package casedb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/arthur-debert/casedb/casedb/remote"
	"github.com/arthur-debert/casedb/types"
)

// Fetcher loads cases for a store. *remote.Querier implements it.
type Fetcher interface {
	FetchAll(ctx context.Context, criteria map[string]string) ([]*types.Case, error)
	FetchByKey(ctx context.Context, key string) (*types.Case, error)
}

// Store is an indexed snapshot of the cases matching a set of criteria
type Store struct {
	fetcher Fetcher
	logger  *slog.Logger

	records  map[string]*types.Case // Authoritative record set; grows through lazy completion
	keys     []string               // ordinal -> natural key, fixed at Open
	ordinals map[string]int         // natural key -> ordinal, derived from keys
	lookups  map[lookupKey][]int    // Memoised IDsForValue results, never invalidated
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the store logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Open bulk-loads the cases matching criteria and assigns ordinals
func Open(ctx context.Context, f Fetcher, criteria map[string]string, opts ...Option) (*Store, error) {
	s := &Store{
		fetcher: f,
		logger:  slog.Default(),
		records: make(map[string]*types.Case),
		lookups: make(map[lookupKey][]int),
	}
	for _, opt := range opts {
		opt(s)
	}

	cases, err := f.FetchAll(ctx, criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to load cases: %w", err)
	}
	for _, c := range cases {
		s.put(c)
	}

	s.keys = make([]string, 0, len(s.records))
	for key := range s.records {
		s.keys = append(s.keys, key)
	}
	sort.Strings(s.keys)

	s.ordinals = make(map[string]int, len(s.keys))
	for ordinal, key := range s.keys {
		s.ordinals[key] = ordinal
	}

	s.logger.Debug("case store opened", "cases", len(s.keys), "criteria", criteria)
	return s, nil
}

func (s *Store) put(c *types.Case) {
	s.records[c.ID] = c
}

// Read returns the case for an ordinal.
//
// An ordinal that was never issued yields ErrNoSuchRecord. A known ordinal
// whose record is missing is fetched once by key; if the fetch finds
// nothing the result is a ConsistencyError.
func (s *Store) Read(ctx context.Context, ordinal int) (*types.Case, error) {
	key, ok := s.Key(ordinal)
	if !ok {
		return nil, fmt.Errorf("%w: ordinal %d", ErrNoSuchRecord, ordinal)
	}

	s.logger.Debug("read case", "case_id", key, "ordinal", ordinal)
	if c, ok := s.records[key]; ok {
		return c, nil
	}

	c, err := s.fetcher.FetchByKey(ctx, key)
	if err != nil {
		if errors.Is(err, remote.ErrCaseNotFound) {
			return nil, &ConsistencyError{Ordinal: ordinal, Key: key, Err: err}
		}
		return nil, fmt.Errorf("failed to fetch case %s: %w", key, err)
	}
	s.records[key] = c
	return c, nil
}

// Key returns the natural key for an ordinal
func (s *Store) Key(ordinal int) (string, bool) {
	if ordinal < 0 || ordinal >= len(s.keys) {
		return "", false
	}
	return s.keys[ordinal], true
}

// Ordinal returns the ordinal for a natural key
func (s *Store) Ordinal(key string) (int, bool) {
	ordinal, ok := s.ordinals[key]
	return ordinal, ok
}

// NumRecords returns the number of cases currently known to the store
func (s *Store) NumRecords() int {
	return len(s.records)
}

// Iterate returns an iterator over a snapshot of the issued ordinals
func (s *Store) Iterate() *Iterator {
	ids := make([]int, len(s.keys))
	for i := range ids {
		ids[i] = i
	}
	return &Iterator{ids: ids}
}

// Iterator walks a fixed set of ordinals once. It is not restartable.
type Iterator struct {
	ids []int
	pos int
}

// HasMore reports whether NextID will return another ordinal
func (it *Iterator) HasMore() bool {
	return it.pos < len(it.ids)
}

// NextID returns the next ordinal. It returns -1 once the iterator is exhausted.
func (it *Iterator) NextID() int {
	if !it.HasMore() {
		return -1
	}
	id := it.ids[it.pos]
	it.pos++
	return id
}
