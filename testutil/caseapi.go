// Package testutil provides a fake case API and payload builders for tests
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/arthur-debert/casedb/casedb/remote"
	"github.com/arthur-debert/casedb/types"
)

// CasePath is the endpoint path template served by CaseAPI
const CasePath = "/a/" + remote.DomainPlaceholder + "/api/v0.5/case/"

// PayloadBuilder assembles a case payload
type PayloadBuilder struct {
	p types.Payload
}

// NewPayload starts an open, unowned payload with the required fields set
func NewPayload(id, caseType, name string) *PayloadBuilder {
	closed := false
	return &PayloadBuilder{p: types.Payload{
		CaseID: &id,
		Closed: &closed,
		Properties: map[string]any{
			types.PropCaseType: caseType,
			types.PropCaseName: name,
		},
		Indices: map[string]types.PayloadIndex{},
	}}
}

// Closed marks the case closed
func (b *PayloadBuilder) Closed() *PayloadBuilder {
	closed := true
	b.p.Closed = &closed
	return b
}

// Owner sets user_id
func (b *PayloadBuilder) Owner(userID string) *PayloadBuilder {
	b.p.UserID = &userID
	return b
}

// Prop sets a property. A nil value is sent as null.
func (b *PayloadBuilder) Prop(name string, value any) *PayloadBuilder {
	b.p.Properties[name] = value
	return b
}

// Opened sets date_opened in wire format
func (b *PayloadBuilder) Opened(date string) *PayloadBuilder {
	b.p.Properties[types.PropDateOpened] = date
	return b
}

// Index adds an index relation
func (b *PayloadBuilder) Index(relation, caseType, caseID string) *PayloadBuilder {
	b.p.Indices[relation] = types.PayloadIndex{CaseType: caseType, CaseID: caseID}
	return b
}

// Build returns the payload
func (b *PayloadBuilder) Build() types.Payload {
	return b.p
}

// SamplePayloads is a small case set: two cases of type "t" and one of type "x"
func SamplePayloads() []types.Payload {
	return []types.Payload{
		NewPayload("c2", "t", "Bob").Owner("1").Prop("village", "north").Opened("2024-03-01T09:30:00Z").Build(),
		NewPayload("c1", "t", "Alice").Owner("1").Prop("village", "south").Prop("visits", 3).Build(),
		NewPayload("c3", "x", "Carol").Owner("2").Closed().Prop("village", "north").Index("parent", "t", "c1").Build(),
	}
}

// APIRequest records a request served by CaseAPI
type APIRequest struct {
	Domain  string
	Query   map[string]string
	Session string // sessionid cookie, empty when absent
}

// CaseAPI is an in-process case API serving a fixed payload set for every domain
type CaseAPI struct {
	Server *httptest.Server

	mu       sync.Mutex
	payloads []types.Payload
	requests []APIRequest
	status   int
	envelope bool
}

// NewCaseAPI starts a fake case API that is closed when the test ends
func NewCaseAPI(t testing.TB, payloads ...types.Payload) *CaseAPI {
	t.Helper()

	api := &CaseAPI{payloads: payloads}
	api.Server = httptest.NewServer(http.HandlerFunc(api.serve))
	t.Cleanup(api.Server.Close)
	return api
}

// URLTemplate is the endpoint template to configure an HTTPSource with
func (a *CaseAPI) URLTemplate() string {
	return a.Server.URL + CasePath
}

// FailWith makes every request answer with status
func (a *CaseAPI) FailWith(status int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status = status
}

// UseEnvelope wraps responses in {"objects": [...]}
func (a *CaseAPI) UseEnvelope() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.envelope = true
}

// Requests returns the requests served so far
func (a *CaseAPI) Requests() []APIRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]APIRequest, len(a.requests))
	copy(out, a.requests)
	return out
}

func (a *CaseAPI) serve(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()

	domain, ok := domainFromPath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	req := APIRequest{Domain: domain, Query: make(map[string]string)}
	for k, v := range r.URL.Query() {
		req.Query[k] = v[0]
	}
	if c, err := r.Cookie(remote.SessionCookieName); err == nil {
		req.Session = c.Value
	}
	a.requests = append(a.requests, req)

	if a.status != 0 {
		http.Error(w, http.StatusText(a.status), a.status)
		return
	}

	matched := make([]types.Payload, 0, len(a.payloads))
	for _, p := range a.payloads {
		if remote.MatchesCriteria(p, req.Query) {
			matched = append(matched, p)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	var body any = matched
	if a.envelope {
		body = map[string]any{"objects": matched}
	}
	_ = json.NewEncoder(w).Encode(body)
}

func domainFromPath(path string) (string, bool) {
	rest, ok := strings.CutPrefix(path, "/a/")
	if !ok {
		return "", false
	}
	domain, tail, ok := strings.Cut(rest, "/")
	if !ok || tail != "api/v0.5/case/" {
		return "", false
	}
	return domain, true
}

// WriteFixture writes payloads as a YAML fixture file and returns its path
func WriteFixture(t testing.TB, payloads []types.Payload) string {
	t.Helper()

	data, err := yaml.Marshal(payloads)
	if err != nil {
		t.Fatalf("failed to encode fixture: %v", err)
	}
	path := filepath.Join(t.TempDir(), "cases.yaml")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	return path
}
