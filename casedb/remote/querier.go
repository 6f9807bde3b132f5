package remote

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/arthur-debert/casedb/types"
)

// CaseIDCriterion is the query parameter selecting a single case by natural key
const CaseIDCriterion = "case_id"

// Querier issues authenticated reads for one domain.
// It holds no state beyond the resolved auth decorator.
type Querier struct {
	source   Source
	domain   string
	decorate Decorator
}

// NewQuerier resolves auth and binds a source to a domain.
// Unsupported auth schemes fail here, before any request is made.
func NewQuerier(source Source, domain string, auth Auth) (*Querier, error) {
	decorate, err := ResolveAuth(auth)
	if err != nil {
		return nil, err
	}
	return &Querier{
		source:   source,
		domain:   domain,
		decorate: decorate,
	}, nil
}

// Domain returns the domain the querier reads from
func (q *Querier) Domain() string { return q.domain }

// FetchAll reads every case matching the equality criteria
func (q *Querier) FetchAll(ctx context.Context, criteria map[string]string) ([]*types.Case, error) {
	ctx, span := tracer.Start(ctx, "remote.FetchAll",
		trace.WithAttributes(
			attribute.String("casedb.domain", q.domain),
			attribute.String("casedb.source", q.source.Name()),
			attribute.Int("casedb.criteria", len(criteria)),
		),
	)
	defer span.End()

	start := time.Now()
	cases, err := q.fetchAll(ctx, criteria)
	fetchDuration.WithLabelValues(q.source.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		fetchTotal.WithLabelValues(q.source.Name(), "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	fetchTotal.WithLabelValues(q.source.Name(), "success").Inc()
	fetchedCases.WithLabelValues(q.source.Name()).Add(float64(len(cases)))
	span.SetAttributes(attribute.Int("casedb.cases", len(cases)))
	return cases, nil
}

func (q *Querier) fetchAll(ctx context.Context, criteria map[string]string) ([]*types.Case, error) {
	payloads, err := q.source.Fetch(ctx, Request{
		Domain:   q.domain,
		Criteria: criteria,
		Decorate: q.decorate,
	})
	if err != nil {
		return nil, err
	}
	return types.CasesFromPayloads(payloads)
}

// FetchByKey reads a single case by natural key.
// It returns ErrCaseNotFound when the source has no such case.
func (q *Querier) FetchByKey(ctx context.Context, key string) (*types.Case, error) {
	cases, err := q.FetchAll(ctx, map[string]string{CaseIDCriterion: key})
	if err != nil {
		return nil, err
	}
	if len(cases) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrCaseNotFound, key)
	}
	return cases[0], nil
}
