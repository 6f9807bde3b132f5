package xpath

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// memStorage is a Storage over a slice of elements that records how it was used
type memStorage struct {
	records     []*Element
	lookups     []string
	reads       int
	iterations  int
	unsupported bool
}

func (m *memStorage) Read(ordinal int) (Node, error) {
	m.reads++
	if ordinal < 0 || ordinal >= len(m.records) {
		return nil, fmt.Errorf("no record %d", ordinal)
	}
	return m.records[ordinal], nil
}

func (m *memStorage) IDsForValue(field, value string) ([]int, error) {
	m.lookups = append(m.lookups, field+"="+value)
	if m.unsupported {
		return nil, errors.New("unsupported field")
	}
	var ids []int
	for i, r := range m.records {
		if r.Attrs[field] == value {
			ids = append(ids, i)
		}
	}
	return ids, nil
}

func (m *memStorage) NumRecords() int { return len(m.records) }

func (m *memStorage) Iterate() Iterator {
	m.iterations++
	return &sliceIterator{n: len(m.records)}
}

type sliceIterator struct {
	i, n int
}

func (it *sliceIterator) HasMore() bool { return it.i < it.n }
func (it *sliceIterator) NextID() int   { it.i++; return it.i - 1 }

func caseElement(id, typ, status, name string) *Element {
	return NewElement("case", "").
		SetAttr("case_id", id).
		SetAttr("case_type", typ).
		SetAttr("status", status).
		Append(NewElement("case_name", name))
}

func newFixture() (*Evaluator, *memStorage) {
	store := &memStorage{records: []*Element{
		caseElement("c1", "t", "open", "Alice"),
		caseElement("c2", "t", "closed", "Bob"),
		caseElement("c3", "x", "open", "Carol"),
	}}
	store.records[0].Append(NewElement("visits", "3"))
	store.records[2].Append(NewElement("visits", "12"))

	session := NewElement("session", "").Append(
		NewElement("data", "").Append(NewElement("case_type", "t")),
		NewElement("context", "").Append(NewElement("username", "u")),
	)

	ev := New(Instances{
		"casedb": StorageInstance("casedb", "case", store, map[string]string{
			"case_id":   "case_id",
			"case_type": "case_type",
			"status":    "status",
		}),
		"session": StaticInstance(session),
	})
	return ev, store
}

const joinCases = "join(',', instance('casedb')/casedb/case%s/@case_id)"

func TestJoinWithIndexedPredicate(t *testing.T) {
	ev, store := newFixture()

	got, err := ev.EvaluateString(fmt.Sprintf(joinCases, "[@case_type='t']"))
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	if got != "c1,c2" {
		t.Errorf("expected c1,c2, got %q", got)
	}
	if diff := cmp.Diff([]string{"case_type=t"}, store.lookups); diff != "" {
		t.Errorf("lookups mismatch (-want +got):\n%s", diff)
	}
	if store.iterations != 0 {
		t.Errorf("indexed predicate should not iterate, got %d iterations", store.iterations)
	}
}

func TestJoinWithReversedIndexedPredicate(t *testing.T) {
	ev, store := newFixture()
	got, err := ev.EvaluateString(fmt.Sprintf(joinCases, "['open'=@status]"))
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	if got != "c1,c3" {
		t.Errorf("expected c1,c3, got %q", got)
	}
	if len(store.lookups) != 1 {
		t.Errorf("expected one lookup, got %v", store.lookups)
	}
}

func TestJoinWithScanPredicate(t *testing.T) {
	ev, store := newFixture()
	got, err := ev.EvaluateString(fmt.Sprintf(joinCases, "[case_name='Bob']"))
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	if got != "c2" {
		t.Errorf("expected c2, got %q", got)
	}
	if store.iterations != 1 || store.reads != 3 {
		t.Errorf("expected one full scan, got %d iterations and %d reads", store.iterations, store.reads)
	}
	if len(store.lookups) != 0 {
		t.Errorf("expected no index lookups, got %v", store.lookups)
	}
}

func TestCountUsesNumRecords(t *testing.T) {
	ev, store := newFixture()
	got, err := ev.EvaluateString("count(instance('casedb')/casedb/case)")
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	if got != "3" {
		t.Errorf("expected 3, got %q", got)
	}
	if store.iterations != 0 || store.reads != 0 {
		t.Errorf("expected no scan, got %d iterations and %d reads", store.iterations, store.reads)
	}

	// A predicate on the counted step still reads the records
	if _, err := ev.EvaluateString("count(instance('casedb')/casedb/case[visits > 1])"); err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	if store.iterations != 1 || store.reads != 3 {
		t.Errorf("expected one full scan, got %d iterations and %d reads", store.iterations, store.reads)
	}
}

func TestJoinNoMatches(t *testing.T) {
	ev, _ := newFixture()
	got, err := ev.EvaluateString(fmt.Sprintf(joinCases, "[@case_type='none']"))
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	if got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

func TestExpressions(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"all cases", fmt.Sprintf(joinCases, ""), "c1,c2,c3"},
		{"and", fmt.Sprintf(joinCases, "[@case_type='t' and @status='open']"), "c1"},
		{"or", fmt.Sprintf(joinCases, "[@case_type='x' or case_name='Bob']"), "c2,c3"},
		{"not equal", fmt.Sprintf(joinCases, "[@case_type!='t']"), "c3"},
		{"chained predicates", fmt.Sprintf(joinCases, "[@case_type='t'][@status='closed']"), "c2"},
		{"numeric compare", fmt.Sprintf(joinCases, "[visits > 5]"), "c3"},
		{"numeric equality", fmt.Sprintf(joinCases, "[visits = 3]"), "c1"},
		{"missing child", fmt.Sprintf(joinCases, "[not(visits)]"), "c2"},
		{"position", fmt.Sprintf(joinCases, "[2]"), "c2"},
		{"last", fmt.Sprintf(joinCases, "[position() = last()]"), "c3"},
		{"session variable", fmt.Sprintf(joinCases, "[@case_type = instance('session')/session/data/case_type]"), "c1,c2"},
		{"contains", fmt.Sprintf(joinCases, "[contains(case_name, 'o')]"), "c2,c3"},
		{"starts-with", fmt.Sprintf(joinCases, "[starts-with(case_name, 'A')]"), "c1"},
		{"selected", fmt.Sprintf(joinCases, "[selected('c1 c3', @case_id)]"), "c1,c3"},
		{"count", "count(instance('casedb')/casedb/case)", "3"},
		{"count filtered", "count(instance('casedb')/casedb/case[@status='open'])", "2"},
		{"concat", "concat('a', 1, true())", "a1true"},
		{"string of number", "string(1.50)", "1.5"},
		{"negation", "-2", "-2"},
		{"boolean compare", "1 = true()", "true"},
		{"string-length", "string-length('héllo')", "5"},
		{"normalize-space", "normalize-space('  a   b ')", "a b"},
		{"coalesce", "coalesce('', 'fallback')", "fallback"},
		{"username", "instance('session')/session/context/username", "u"},
		{"wildcard", "join(' ', instance('session')/session/*)", "t u"},
		{"attribute wildcard", "count(instance('casedb')/casedb/case[1]/@*)", "3"},
		{"parenthesised", "(1 < 2) and not(2 <= 1)", "true"},
		{"name of storage root", "name(instance('casedb')/casedb)", "casedb"},
		{"name of first child", "name(instance('session')/session/*)", "data"},
		{"name of attribute", "name(instance('casedb')/casedb/case[1]/@status)", "status"},
		{"name of empty set", "name(instance('casedb')/casedb/nothing)", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, _ := newFixture()
			got, err := ev.EvaluateString(tt.query)
			if err != nil {
				t.Fatalf("evaluation of %q failed: %v", tt.query, err)
			}
			if got != tt.want {
				t.Errorf("%q = %q, want %q", tt.query, got, tt.want)
			}
		})
	}
}

func TestSelect(t *testing.T) {
	ev, _ := newFixture()
	got, err := ev.Select("instance('casedb')/casedb/case[@case_type='t']/case_name")
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if diff := cmp.Diff([]string{"Alice", "Bob"}, got); diff != "" {
		t.Errorf("selection mismatch (-want +got):\n%s", diff)
	}

	if _, err := ev.Select("'not nodes'"); err == nil {
		t.Error("expected error selecting from a string")
	}
}

func TestEvaluateBool(t *testing.T) {
	ev, _ := newFixture()
	ok, err := ev.EvaluateBool("instance('casedb')/casedb/case[@case_id='c2']")
	if err != nil {
		t.Fatalf("EvaluateBool failed: %v", err)
	}
	if !ok {
		t.Error("expected c2 to exist")
	}
}

func TestSyntaxErrors(t *testing.T) {
	for _, query := range []string{
		"instance('casedb')/casedb/case[@case_type='t'",
		"instance('casedb')//case",
		"instance('casedb')/casedb/case/..",
		"'unterminated",
		"1 + 2",
		"instance('casedb')/",
		"concat('a',)",
	} {
		ev, _ := newFixture()
		_, err := ev.EvaluateString(query)
		var serr *SyntaxError
		if !errors.As(err, &serr) {
			t.Errorf("%q: expected SyntaxError, got %v", query, err)
		}
	}
}

func TestEvaluationErrors(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"unbound instance", "instance('nope')/x"},
		{"unknown function", "frobnicate()"},
		{"arity", "contains('a')"},
		{"absolute path", "/casedb/case"},
		{"count of string", "count('a')"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, _ := newFixture()
			if _, err := ev.EvaluateString(tt.query); err == nil {
				t.Errorf("expected error for %q", tt.query)
			}
		})
	}
}

func TestStorageErrorsPropagate(t *testing.T) {
	ev, store := newFixture()
	store.unsupported = true
	_, err := ev.EvaluateString(fmt.Sprintf(joinCases, "[@case_type='t']"))
	if err == nil || err.Error() != "unsupported field" {
		t.Errorf("expected storage error, got %v", err)
	}
}
