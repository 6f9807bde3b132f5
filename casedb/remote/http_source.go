package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/arthur-debert/casedb/types"
)

// DefaultTimeout bounds a single case API round trip
const DefaultTimeout = 30 * time.Second

const maxErrorBody = 512

// HTTPSource reads cases from the remote case API
type HTTPSource struct {
	urlTemplate string
	client      *http.Client
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// HTTPOption configures an HTTPSource
type HTTPOption func(*HTTPSource)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPSource) {
		s.client = c
	}
}

// WithTimeout sets the per-request timeout. A client passed to WithHTTPClient
// is copied, not modified.
func WithTimeout(d time.Duration) HTTPOption {
	return func(s *HTTPSource) {
		c := *s.client
		c.Timeout = d
		s.client = &c
	}
}

// WithRateLimit limits outbound requests to rps per second with the given burst.
// A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) HTTPOption {
	return func(s *HTTPSource) {
		if rps <= 0 {
			s.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the logger that records outbound queries
func WithLogger(l *slog.Logger) HTTPOption {
	return func(s *HTTPSource) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewHTTPSource creates a source for the case collection endpoint.
// urlTemplate may contain DomainPlaceholder.
func NewHTTPSource(urlTemplate string, opts ...HTTPOption) *HTTPSource {
	s := &HTTPSource{
		urlTemplate: urlTemplate,
		client:      &http.Client{Timeout: DefaultTimeout},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements Source
func (s *HTTPSource) Name() string { return "http" }

// URL returns the request URL for a domain and criteria
func (s *HTTPSource) URL(domain string, criteria map[string]string) string {
	u := ExpandURL(s.urlTemplate, domain)
	if len(criteria) == 0 {
		return u
	}
	values := url.Values{}
	for k, v := range criteria {
		values.Set(k, v)
	}
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + values.Encode()
}

// Fetch implements Source
func (s *HTTPSource) Fetch(ctx context.Context, r Request) ([]types.Payload, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait failed: %w", err)
		}
	}

	u := s.URL(r.Domain, r.Criteria)
	s.logger.Debug("querying case API", "url", u)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build case API request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if r.Decorate != nil {
		r.Decorate(req)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("case API request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read case API response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return nil, &StatusError{URL: u, StatusCode: resp.StatusCode, Body: snippet}
	}

	payloads, err := decodePayloads(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode case API response from %s: %w", u, err)
	}
	return payloads, nil
}

// decodePayloads accepts either a bare JSON array or a paged envelope with an "objects" array
func decodePayloads(body []byte) ([]types.Payload, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty response body")
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	switch trimmed[0] {
	case '[':
		var payloads []types.Payload
		if err := dec.Decode(&payloads); err != nil {
			return nil, err
		}
		return payloads, nil
	case '{':
		var envelope struct {
			Objects *[]types.Payload `json:"objects"`
		}
		if err := dec.Decode(&envelope); err != nil {
			return nil, err
		}
		if envelope.Objects == nil {
			return nil, fmt.Errorf("response object has no \"objects\" array")
		}
		return *envelope.Objects, nil
	default:
		return nil, fmt.Errorf("unexpected response starting with %q", trimmed[0])
	}
}
