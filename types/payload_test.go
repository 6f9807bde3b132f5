package types

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func decodePayload(t *testing.T, raw string) Payload {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var p Payload
	if err := dec.Decode(&p); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	return p
}

func TestCaseFromPayloadMinimal(t *testing.T) {
	p := decodePayload(t, `{
		"case_id": "c1",
		"properties": {"case_type": "t", "case_name": "n", "date_opened": null},
		"closed": false,
		"user_id": null,
		"indices": {}
	}`)

	c, err := CaseFromPayload(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := &Case{
		ID:         "c1",
		TypeID:     "t",
		Name:       "n",
		Properties: map[string]string{},
		Indices:    map[string]Index{},
	}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("case mismatch (-want +got):\n%s", diff)
	}
	if c.Status() != StatusOpen {
		t.Errorf("expected open status, got %s", c.Status())
	}
}

func TestCaseFromPayloadProperties(t *testing.T) {
	p := decodePayload(t, `{
		"case_id": "c2",
		"properties": {
			"case_type": "pregnancy",
			"case_name": "Alice",
			"date_opened": "2011-03-04T05:06:07Z",
			"foo": "bar",
			"edd": null,
			"visits": 3,
			"ratio": 0.5,
			"high_risk": true
		},
		"closed": true,
		"user_id": "u-1",
		"indices": {
			"parent": {"case_type": "household", "case_id": "h1"}
		}
	}`)

	c, err := CaseFromPayload(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	opened := time.Date(2011, 3, 4, 5, 6, 7, 0, time.UTC)
	want := &Case{
		ID:         "c2",
		TypeID:     "pregnancy",
		Name:       "Alice",
		Closed:     true,
		DateOpened: &opened,
		UserID:     "u-1",
		Properties: map[string]string{
			"foo":       "bar",
			"visits":    "3",
			"ratio":     "0.5",
			"high_risk": "true",
		},
		Indices: map[string]Index{
			"parent": {CaseType: "household", CaseID: "h1"},
		},
	}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("case mismatch (-want +got):\n%s", diff)
	}

	if _, ok := c.Property("edd"); ok {
		t.Error("null property must not be set")
	}
	for _, excluded := range []string{PropCaseName, PropCaseType, PropDateOpened} {
		if _, ok := c.Property(excluded); ok {
			t.Errorf("%s must not be copied into properties", excluded)
		}
	}
}

func TestCaseFromPayloadSingleProperty(t *testing.T) {
	p := decodePayload(t, `{
		"case_id": "c3",
		"properties": {"case_type": "t", "case_name": "n", "date_opened": "2012-01-01T00:00:00", "foo": "bar"},
		"closed": false,
		"indices": {}
	}`)

	c, err := CaseFromPayload(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(map[string]string{"foo": "bar"}, c.Properties); diff != "" {
		t.Errorf("properties mismatch (-want +got):\n%s", diff)
	}
}

func TestCaseFromPayloadMissingFields(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		field string
	}{
		{"no case_id", `{"properties": {"case_type": "t", "case_name": "n"}, "closed": false}`, "case_id"},
		{"no case_type", `{"case_id": "c", "properties": {"case_name": "n"}, "closed": false}`, "properties.case_type"},
		{"null case_name", `{"case_id": "c", "properties": {"case_type": "t", "case_name": null}, "closed": false}`, "properties.case_name"},
		{"no closed", `{"case_id": "c", "properties": {"case_type": "t", "case_name": "n"}}`, "closed"},
		{"bad date", `{"case_id": "c", "properties": {"case_type": "t", "case_name": "n", "date_opened": "yesterday"}, "closed": false}`, "date_opened"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CaseFromPayload(decodePayload(t, tt.raw))
			var perr *PayloadError
			if !errors.As(err, &perr) {
				t.Fatalf("expected PayloadError, got %v", err)
			}
			if perr.Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, perr.Field)
			}
		})
	}
}

func TestParseDateOpened(t *testing.T) {
	want := time.Date(2010, 12, 31, 23, 59, 58, 0, time.UTC)
	for _, in := range []string{
		"2010-12-31T23:59:58",
		"2010-12-31T23:59:58Z",
		"2010-12-31T23:59:58+02:00",
		"2010-12-31T23:59:58-0500",
	} {
		got, err := ParseDateOpened(in)
		if err != nil {
			t.Errorf("ParseDateOpened(%q) failed: %v", in, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("ParseDateOpened(%q) = %v, want %v", in, got, want)
		}
	}

	for _, in := range []string{
		"2010-12-31",
		"2010-12-31T23:59:58.123456Z",
		"2010-12-31T23:59:58.5",
		"2010-12-31T23:59:58 ",
		"2010-12-31T23:59",
	} {
		if _, err := ParseDateOpened(in); err == nil {
			t.Errorf("ParseDateOpened(%q) accepted a value outside the wire format", in)
		}
	}
}

func TestCaseHelpers(t *testing.T) {
	c := NewCase("c1", "t", "n")
	c.SetProperty("b", "2")
	c.SetProperty("a", "1")
	c.SetIndex("parent", "household", "h1")
	c.SetIndex("mother", "person", "p1")

	if diff := cmp.Diff([]string{"a", "b"}, c.PropertyNames()); diff != "" {
		t.Errorf("property names mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"mother", "parent"}, c.IndexNames()); diff != "" {
		t.Errorf("index names mismatch (-want +got):\n%s", diff)
	}

	c.Closed = true
	if c.Status() != StatusClosed {
		t.Errorf("expected closed status, got %s", c.Status())
	}
}
