package filter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/arthur-debert/casedb/casedb/remote"
	"github.com/arthur-debert/casedb/testutil"
)

func newTestPipeline(t *testing.T) (*Pipeline, *testutil.CaseAPI) {
	t.Helper()
	api := testutil.NewCaseAPI(t, testutil.SamplePayloads()...)
	return NewPipeline(remote.NewHTTPSource(api.URLTemplate())), api
}

var testSession = Session{Domain: "d", Username: "u", UserID: "1"}

func TestQuery(t *testing.T) {
	got := Query("[@case_type='t']")
	want := "join(',', instance('casedb')/casedb/case[@case_type='t']/@case_id)"
	if got != want {
		t.Errorf("Query() = %q, want %q", got, want)
	}
}

func TestLookupFields(t *testing.T) {
	if diff := cmp.Diff(indexedAttributes, lookupFields()); diff != "" {
		t.Errorf("every indexed attribute should be a store lookup field (-want +got):\n%s", diff)
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name     string
		fragment string
		want     []string
	}{
		{"by type", "[@case_type='t']", []string{"c1", "c2"}},
		{"all", "", []string{"c1", "c2", "c3"}},
		{"no match", "[@case_type='none']", []string{}},
		{"closed", "[@status='closed']", []string{"c3"}},
		{"owner", "[@owner_id='2']", []string{"c3"}},
		{"property", "[village='north']", []string{"c2", "c3"}},
		{"numeric property", "[visits > 1]", []string{"c1"}},
		{"name", "[case_name='Alice']", []string{"c1"}},
		{"date opened", "[date_opened='2024-03-01']", []string{"c2"}},
		{"index", "[index/parent='c1']", []string{"c3"}},
		{"index type", "[index/parent/@case_type='t']", []string{"c3"}},
		{"combined", "[@case_type='t'][village='north']", []string{"c2"}},
		{"session data", "[@case_type=instance('session')/session/data/case_type]", []string{"c1", "c2"}},
		{"session context", "[@owner_id=instance('commcaresession')/session/context/userid]", []string{"c1", "c2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestPipeline(t)
			session := testSession
			session.Extra = map[string]string{"case_type": "t"}

			got, err := p.Evaluate(context.Background(), tt.fragment, session, remote.Auth{})
			if err != nil {
				t.Fatalf("Evaluate(%q) failed: %v", tt.fragment, err)
			}
			if got == nil {
				t.Fatal("expected a non-nil slice")
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Evaluate(%q) mismatch (-want +got):\n%s", tt.fragment, diff)
			}
		})
	}
}

func TestEvaluateRequestsOnceWithSession(t *testing.T) {
	p, api := newTestPipeline(t)
	session := testSession
	session.AdditionalFilters = map[string]string{"village": "north"}

	got, err := p.Evaluate(context.Background(), "", session, remote.Auth{Type: remote.AuthDjangoSession, Key: "secret"})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if diff := cmp.Diff([]string{"c2", "c3"}, got); diff != "" {
		t.Errorf("cases mismatch (-want +got):\n%s", diff)
	}

	want := []testutil.APIRequest{{
		Domain:  "d",
		Query:   map[string]string{"village": "north"},
		Session: "secret",
	}}
	if diff := cmp.Diff(want, api.Requests()); diff != "" {
		t.Errorf("API requests mismatch (-want +got):\n%s", diff)
	}
}

func TestEvaluateUnsupportedAuthMakesNoRequest(t *testing.T) {
	for _, auth := range []remote.Auth{
		{Type: remote.AuthPassword, Key: "x"},
		{Type: remote.AuthOAuth, Key: "x"},
	} {
		p, api := newTestPipeline(t)
		_, err := p.Evaluate(context.Background(), "[@case_type='t']", testSession, auth)
		if err == nil {
			t.Errorf("%s: expected error", auth.Type)
		}
		if n := len(api.Requests()); n != 0 {
			t.Errorf("%s: expected no API requests, got %d", auth.Type, n)
		}
	}
}

func TestEvaluateErrors(t *testing.T) {
	t.Run("fixture instance", func(t *testing.T) {
		p, _ := newTestPipeline(t)
		_, err := p.Evaluate(context.Background(), "[@case_type=instance('fixture:items')/items/item]", testSession, remote.Auth{})
		if err == nil || !strings.Contains(err.Error(), "fixture instances are not supported") {
			t.Errorf("expected fixture error, got %v", err)
		}
	})

	t.Run("syntax", func(t *testing.T) {
		p, api := newTestPipeline(t)
		_, err := p.Evaluate(context.Background(), "[@case_type='t'", testSession, remote.Auth{})
		if err == nil {
			t.Fatal("expected syntax error")
		}
		if n := len(api.Requests()); n != 0 {
			t.Errorf("expected no API requests for an unparseable filter, got %d", n)
		}
	})

	t.Run("api failure", func(t *testing.T) {
		p, api := newTestPipeline(t)
		api.FailWith(http.StatusInternalServerError)
		_, err := p.Evaluate(context.Background(), "", testSession, remote.Auth{})
		var serr *remote.StatusError
		if !errors.As(err, &serr) {
			t.Fatalf("expected StatusError, got %v", err)
		}
		if serr.StatusCode != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", serr.StatusCode)
		}
	})
}

func TestOpenStore(t *testing.T) {
	p, _ := newTestPipeline(t)
	store, err := p.OpenStore(context.Background(), testSession, remote.Auth{})
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	if store.NumRecords() != 3 {
		t.Errorf("expected 3 cases, got %d", store.NumRecords())
	}
	if key, _ := store.Key(0); key != "c1" {
		t.Errorf("expected c1 at ordinal 0, got %q", key)
	}
}

func decodeRequest(t *testing.T, body string) Request {
	t.Helper()
	var req Request
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("failed to decode request: %v", err)
	}
	return req
}

func encodeResponse(t *testing.T, resp Response) string {
	t.Helper()
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("failed to encode response: %v", err)
	}
	return string(data)
}

func TestHandleRequest(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "matches",
			body: `{"action": "touchcare-filter-cases", "filter_expr": "[@case_type='t']",
				"session_data": {"domain": "d", "username": "u", "user_id": "1"}}`,
			want: `{"cases":["c1","c2"]}`,
		},
		{
			name: "no matches",
			body: `{"action": "touchcare-filter-cases", "filter_expr": "[@case_type='none']",
				"session_data": {"domain": "d", "username": "u", "user_id": "1"}}`,
			want: `{"cases":[]}`,
		},
		{
			name: "unrecognized action",
			body: `{"action": "bogus", "filter_expr": "[@case_type='t']"}`,
			want: `{"error":"unrecognized action"}`,
		},
		{
			name: "action checked before validation",
			body: `{"action": "bogus"}`,
			want: `{"error":"unrecognized action"}`,
		},
		{
			name: "missing filter",
			body: `{"action": "touchcare-filter-cases", "session_data": {"domain": "d", "username": "u"}}`,
			want: `{"error":"invalid request: filter_expr is required"}`,
		},
		{
			name: "unknown auth type",
			body: `{"action": "touchcare-filter-cases", "filter_expr": "", "hq_auth": {"type": "kerberos"},
				"session_data": {"domain": "d", "username": "u"}}`,
			want: `{"error":"invalid request: hq_auth.type must be one of [none cookie django-session oauth http], got \"kerberos\""}`,
		},
		{
			name: "missing session",
			body: `{"action": "touchcare-filter-cases", "filter_expr": "[@case_type='t']"}`,
			want: `{"error":"invalid request: session_data.domain is required; session_data.username is required"}`,
		},
		{
			name: "missing username",
			body: `{"action": "touchcare-filter-cases", "filter_expr": "[@case_type='t']",
				"session_data": {"domain": "d", "user_id": "1"}}`,
			want: `{"error":"invalid request: session_data.username is required"}`,
		},
		{
			name: "password auth",
			body: `{"action": "touchcare-filter-cases", "filter_expr": "", "hq_auth": {"type": "http", "key": "x"},
				"session_data": {"domain": "d", "username": "u"}}`,
			want: `{"error":"password-based API auth not supported"}`,
		},
		{
			name: "additional filters",
			body: `{"action": "touchcare-filter-cases", "filter_expr": "",
				"session_data": {"domain": "d", "username": "u", "additional_filters": {"village": "south"}}}`,
			want: `{"cases":["c1"]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestPipeline(t)
			resp := p.HandleRequest(context.Background(), decodeRequest(t, tt.body))
			if got := encodeResponse(t, resp); got != tt.want {
				t.Errorf("response = %s, want %s", got, tt.want)
			}
			if resp.RequestID == "" {
				t.Error("expected a request id")
			}
			if resp.Fatal {
				t.Error("expected a non-fatal response")
			}
		})
	}
}

func TestInvalidSessionMakesNoRequest(t *testing.T) {
	p, api := newTestPipeline(t)
	resp := p.HandleRequest(context.Background(), decodeRequest(t,
		`{"action": "touchcare-filter-cases", "filter_expr": "[@case_type='t']"}`))

	var verr *ValidationError
	if resp.Error == "" || resp.Cases != nil {
		t.Fatalf("expected an error response, got %+v", resp)
	}
	if err := NewRequest("", Session{}, nil).Validate(); !errors.As(err, &verr) {
		t.Errorf("expected a ValidationError for an empty session, got %v", err)
	}
	if n := len(api.Requests()); n != 0 {
		t.Errorf("expected no API requests, got %d", n)
	}
}

func TestUnrecognizedActionMakesNoRequest(t *testing.T) {
	p, api := newTestPipeline(t)
	p.HandleRequest(context.Background(), Request{Action: "bogus"})
	if n := len(api.Requests()); n != 0 {
		t.Errorf("expected no API requests, got %d", n)
	}
}

func TestSessionJSON(t *testing.T) {
	var s Session
	data := `{"domain": "d", "username": "u", "user_id": 7, "device_id": "dev",
		"case_id": "c1", "flag": true, "empty": null, "additional_filters": {"owner_id": "1", "count": 2}}`
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	want := Session{
		Domain:            "d",
		Username:          "u",
		UserID:            "7",
		DeviceID:          "dev",
		AdditionalFilters: map[string]string{"owner_id": "1", "count": "2"},
		Extra:             map[string]string{"case_id": "c1", "flag": "true", "empty": ""},
	}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("session mismatch (-want +got):\n%s", diff)
	}

	out, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var again Session
	if err := json.Unmarshal(out, &again); err != nil {
		t.Fatalf("Unmarshal of %s failed: %v", out, err)
	}
	if again.Domain != "d" || again.AdditionalFilters["count"] != "2" {
		t.Errorf("session did not survive encoding: %+v", again)
	}
}

func TestSessionInstance(t *testing.T) {
	s := Session{
		Domain:     "d",
		Username:   "u",
		UserID:     "1",
		DeviceID:   "dev",
		AppVersion: "2.0",
		Extra:      map[string]string{"case_id": "c9"},
	}
	root := s.instanceRoot()

	var got []string
	for _, section := range root.Children() {
		for _, v := range section.Children() {
			got = append(got, section.Name()+"/"+v.Name()+"="+v.Text())
		}
	}
	want := []string{
		"data/case_id=c9",
		"data/domain=d",
		"context/deviceid=dev",
		"context/appversion=2.0",
		"context/username=u",
		"context/userid=1",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("session instance mismatch (-want +got):\n%s", diff)
	}
}
