package filter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/arthur-debert/casedb/casedb"
	"github.com/arthur-debert/casedb/casedb/remote"
)

// ActionFilterCases is the only action a filter request may carry
const ActionFilterCases = "touchcare-filter-cases"

// ErrUnrecognizedAction is reported for any other action
var ErrUnrecognizedAction = errors.New("unrecognized action")

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
}

// Request is a filter request as sent by form players
type Request struct {
	Action     string       `json:"action"`
	FilterExpr *string      `json:"filter_expr" validate:"required"` // Predicate fragment; may be empty but not absent
	HQAuth     *remote.Auth `json:"hq_auth,omitempty"`
	Session    Session      `json:"session_data"`
}

// NewRequest builds a filter-cases request
func NewRequest(fragment string, session Session, auth *remote.Auth) Request {
	return Request{
		Action:     ActionFilterCases,
		FilterExpr: &fragment,
		HQAuth:     auth,
		Session:    session,
	}
}

// Validate checks the request fields
func (r Request) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Request.")
		switch fe.Tag() {
		case "required":
			problems = append(problems, field+" is required")
		case "oneof":
			problems = append(problems, fmt.Sprintf("%s must be one of [%s], got %q", field, fe.Param(), fe.Value()))
		default:
			problems = append(problems, fmt.Sprintf("%s failed %s validation", field, fe.Tag()))
		}
	}
	return &ValidationError{Problems: problems}
}

// ValidationError reports a malformed request
type ValidationError struct {
	Problems []string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return "invalid request: " + strings.Join(e.Problems, "; ")
}

// Response is the result of a filter request: either Cases or Error is set
type Response struct {
	Cases []string `json:"cases"`
	Error string   `json:"error,omitempty"`

	Fatal     bool   `json:"-"` // Error comes from a broken store invariant
	RequestID string `json:"-"`
}

// MarshalJSON writes {"cases": [...]} or {"error": "..."}
func (r Response) MarshalJSON() ([]byte, error) {
	if r.Error != "" {
		return json.Marshal(struct {
			Error string `json:"error"`
		}{r.Error})
	}
	cases := r.Cases
	if cases == nil {
		cases = []string{}
	}
	return json.Marshal(struct {
		Cases []string `json:"cases"`
	}{cases})
}

// HandleRequest dispatches a filter request. Every failure is reported in
// the response; consistency and unsupported-field failures are also marked Fatal.
func (p *Pipeline) HandleRequest(ctx context.Context, req Request) Response {
	resp := Response{RequestID: uuid.NewString()}
	logger := p.logger.With("request_id", resp.RequestID)

	if req.Action != ActionFilterCases {
		logger.Warn("unrecognized action", "action", req.Action)
		evaluations.WithLabelValues(resultUnrecognized).Inc()
		resp.Error = ErrUnrecognizedAction.Error()
		return resp
	}

	ctx, span := tracer.Start(ctx, "filter.HandleRequest",
		trace.WithAttributes(
			attribute.String("casedb.request_id", resp.RequestID),
			attribute.String("casedb.domain", req.Session.Domain),
		),
	)
	defer span.End()

	if err := req.Validate(); err != nil {
		logger.Info("invalid filter request", "error", err)
		evaluations.WithLabelValues(resultInvalid).Inc()
		span.SetStatus(codes.Error, err.Error())
		resp.Error = err.Error()
		return resp
	}

	var auth remote.Auth
	if req.HQAuth != nil {
		auth = *req.HQAuth
	}

	cases, err := p.evaluate(ctx, logger, *req.FilterExpr, req.Session, auth)
	if err != nil {
		resp.Error = err.Error()
		resp.Fatal = casedb.IsFatal(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if resp.Fatal {
			logger.Error("filter evaluation failed", "error", err, "filter_expr", *req.FilterExpr)
			evaluations.WithLabelValues(resultFatal).Inc()
		} else {
			logger.Info("filter evaluation failed", "error", err, "filter_expr", *req.FilterExpr)
			evaluations.WithLabelValues(resultError).Inc()
		}
		return resp
	}

	logger.Info("filter evaluated", "cases", len(cases), "domain", req.Session.Domain)
	evaluations.WithLabelValues(resultSuccess).Inc()
	matchedCases.Observe(float64(len(cases)))
	span.SetAttributes(attribute.Int("casedb.cases", len(cases)))
	resp.Cases = cases
	return resp
}
