package testutil

import (
	"context"
	"net/http"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/arthur-debert/casedb/casedb/remote"
	"github.com/arthur-debert/casedb/types"
)

func caseIDs(cases []*types.Case) []string {
	ids := make([]string, len(cases))
	for i, c := range cases {
		ids[i] = c.ID
	}
	return ids
}

func TestCaseAPIServesSamples(t *testing.T) {
	api := NewCaseAPI(t, SamplePayloads()...)
	q, err := remote.NewQuerier(remote.NewHTTPSource(api.URLTemplate()), "demo", remote.Auth{Type: remote.AuthCookie, Key: "k"})
	if err != nil {
		t.Fatalf("NewQuerier failed: %v", err)
	}

	cases, err := q.FetchAll(context.Background(), map[string]string{"case_type": "t"})
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if diff := cmp.Diff([]string{"c2", "c1"}, caseIDs(cases)); diff != "" {
		t.Errorf("cases mismatch (-want +got):\n%s", diff)
	}

	want := []APIRequest{{Domain: "demo", Query: map[string]string{"case_type": "t"}, Session: "k"}}
	if diff := cmp.Diff(want, api.Requests()); diff != "" {
		t.Errorf("requests mismatch (-want +got):\n%s", diff)
	}
}

func TestCaseAPIEnvelopeAndFailure(t *testing.T) {
	api := NewCaseAPI(t, SamplePayloads()...)
	api.UseEnvelope()
	q, err := remote.NewQuerier(remote.NewHTTPSource(api.URLTemplate()), "demo", remote.Auth{})
	if err != nil {
		t.Fatalf("NewQuerier failed: %v", err)
	}

	c, err := q.FetchByKey(context.Background(), "c3")
	if err != nil {
		t.Fatalf("FetchByKey failed: %v", err)
	}
	if !c.Closed || c.Indices["parent"].CaseID != "c1" {
		t.Errorf("unexpected case: %+v", c)
	}

	api.FailWith(http.StatusForbidden)
	if _, err := q.FetchAll(context.Background(), nil); err == nil {
		t.Error("expected failure")
	}
}

func TestWriteFixture(t *testing.T) {
	path := WriteFixture(t, SamplePayloads())
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("fixture not written: %v", err)
	}

	q, err := remote.NewQuerier(remote.NewFileSource(path, nil), "demo", remote.Auth{})
	if err != nil {
		t.Fatalf("NewQuerier failed: %v", err)
	}
	cases, err := q.FetchAll(context.Background(), map[string]string{"village": "north"})
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if diff := cmp.Diff([]string{"c2", "c3"}, caseIDs(cases)); diff != "" {
		t.Errorf("cases mismatch (-want +got):\n%s", diff)
	}
}
