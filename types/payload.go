package types

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Wire names of the properties that map onto dedicated Case fields
const (
	PropCaseType   = "case_type"
	PropCaseName   = "case_name"
	PropDateOpened = "date_opened"
)

// DateOpenedLayout is the wire format of date_opened once any zone designator is removed
const DateOpenedLayout = "2006-01-02T15:04:05"

var zoneSuffix = regexp.MustCompile(`(Z|[+-]\d{2}(:?\d{2})?)$`)

// Payload is a single case as returned by the case API
type Payload struct {
	CaseID     *string                 `json:"case_id" yaml:"case_id"`
	Closed     *bool                   `json:"closed" yaml:"closed"`
	UserID     *string                 `json:"user_id" yaml:"user_id"`
	Properties map[string]any          `json:"properties" yaml:"properties"`
	Indices    map[string]PayloadIndex `json:"indices" yaml:"indices"`
}

// PayloadIndex is a single entry of a payload's indices object
type PayloadIndex struct {
	CaseType string `json:"case_type" yaml:"case_type"`
	CaseID   string `json:"case_id" yaml:"case_id"`
}

// PayloadError reports a case payload that cannot be turned into a Case
type PayloadError struct {
	CaseID string // Empty when the payload has no case_id
	Field  string
	Reason string
	Err    error
}

// Error implements the error interface
func (e *PayloadError) Error() string {
	msg := fmt.Sprintf("malformed case payload: %s %s", e.Field, e.Reason)
	if e.CaseID != "" {
		msg = fmt.Sprintf("malformed case payload %q: %s %s", e.CaseID, e.Field, e.Reason)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap allows error unwrapping
func (e *PayloadError) Unwrap() error {
	return e.Err
}

// CaseFromPayload builds a Case from its wire representation.
//
// case_id, closed and the case_type and case_name properties are required.
// Properties whose value is null are skipped so that an unset property and a
// null one look the same to callers.
func CaseFromPayload(p Payload) (*Case, error) {
	if p.CaseID == nil {
		return nil, &PayloadError{Field: "case_id", Reason: "is missing"}
	}
	id := *p.CaseID

	typeID, err := requiredString(id, p.Properties, PropCaseType)
	if err != nil {
		return nil, err
	}
	name, err := requiredString(id, p.Properties, PropCaseName)
	if err != nil {
		return nil, err
	}
	if p.Closed == nil {
		return nil, &PayloadError{CaseID: id, Field: "closed", Reason: "is missing"}
	}

	c := NewCase(id, typeID, name)
	c.Closed = *p.Closed

	if raw := p.Properties[PropDateOpened]; raw != nil {
		opened, err := parseDateOpened(raw)
		if err != nil {
			return nil, &PayloadError{CaseID: id, Field: PropDateOpened, Reason: "is not a valid timestamp", Err: err}
		}
		c.DateOpened = opened
	}

	if p.UserID != nil {
		c.UserID = *p.UserID
	}

	for k, v := range p.Properties {
		if v == nil {
			continue
		}
		switch k {
		case PropCaseName, PropCaseType, PropDateOpened:
			continue
		}
		s, err := scalarString(v)
		if err != nil {
			return nil, &PayloadError{CaseID: id, Field: "properties." + k, Reason: "cannot be rendered", Err: err}
		}
		c.SetProperty(k, s)
	}

	for k, idx := range p.Indices {
		c.SetIndex(k, idx.CaseType, idx.CaseID)
	}

	return c, nil
}

// CasesFromPayloads converts every payload, failing on the first malformed one
func CasesFromPayloads(payloads []Payload) ([]*Case, error) {
	cases := make([]*Case, 0, len(payloads))
	for _, p := range payloads {
		c, err := CaseFromPayload(p)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	return cases, nil
}

// ParseDateOpened parses a date_opened wire value, ignoring a trailing zone
// designator. Anything else after the seconds, fractions included, is rejected.
func ParseDateOpened(s string) (time.Time, error) {
	if len(s) > len(DateOpenedLayout) {
		s = zoneSuffix.ReplaceAllString(s, "")
	}
	if len(s) != len(DateOpenedLayout) {
		return time.Time{}, fmt.Errorf("date %q does not match %s", s, DateOpenedLayout)
	}
	return time.Parse(DateOpenedLayout, s)
}

func parseDateOpened(raw any) (*time.Time, error) {
	var t time.Time
	switch v := raw.(type) {
	case string:
		// An empty string is treated like null
		if v == "" {
			return nil, nil
		}
		parsed, err := ParseDateOpened(v)
		if err != nil {
			return nil, err
		}
		t = parsed
	case time.Time:
		t = v.UTC().Truncate(time.Second)
	default:
		return nil, fmt.Errorf("unexpected %T", raw)
	}
	return &t, nil
}

func requiredString(id string, props map[string]any, key string) (string, error) {
	raw, ok := props[key]
	if !ok || raw == nil {
		return "", &PayloadError{CaseID: id, Field: "properties." + key, Reason: "is missing"}
	}
	s, ok := raw.(string)
	if !ok {
		return "", &PayloadError{CaseID: id, Field: "properties." + key, Reason: fmt.Sprintf("must be a string, got %T", raw)}
	}
	return s, nil
}

// scalarString renders a decoded property value as a string.
// Values decoded from JSON with UseNumber arrive as json.Number; values
// decoded from YAML arrive as native Go numbers.
func scalarString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case json.Number:
		return val.String(), nil
	case bool:
		return strconv.FormatBool(val), nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case uint64:
		return strconv.FormatUint(val, 10), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case time.Time:
		return val.UTC().Format(DateOpenedLayout), nil
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}
