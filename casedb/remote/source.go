package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/arthur-debert/casedb/types"
)

// DomainPlaceholder is replaced by the caller's domain in endpoint URL templates
const DomainPlaceholder = "{{DOMAIN}}"

// ErrCaseNotFound is returned by FetchByKey when the API has no case with the key
var ErrCaseNotFound = errors.New("case not found")

// Request is a single read against a case source
type Request struct {
	Domain   string
	Criteria map[string]string // Equality criteria, sent as query parameters
	Decorate Decorator         // Never nil when issued by a Querier
}

// Source reads raw case payloads
type Source interface {
	Fetch(ctx context.Context, req Request) ([]types.Payload, error)
	Name() string
}

// StatusError reports a non-2xx response from the case API
type StatusError struct {
	URL        string
	StatusCode int
	Body       string // Truncated response body
}

// Error implements the error interface
func (e *StatusError) Error() string {
	msg := fmt.Sprintf("case API request to %s failed with status %d", e.URL, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// ExpandURL substitutes the domain into an endpoint URL template.
// A template without the placeholder is returned unchanged.
func ExpandURL(template, domain string) string {
	return strings.ReplaceAll(template, DomainPlaceholder, domain)
}
