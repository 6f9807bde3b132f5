package filter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/arthur-debert/casedb/casedb"
	"github.com/arthur-debert/casedb/casedb/remote"
	"github.com/arthur-debert/casedb/internal/xpath"
)

// Instance names a filter expression may reference
const (
	InstanceCaseDB          = "casedb"
	InstanceSession         = "session"
	InstanceCommCareSession = "commcaresession"
	fixturePrefix           = "fixture"
)

// Query wraps a case predicate fragment into the expression that yields the
// comma-joined ids of the matching cases
func Query(fragment string) string {
	return fmt.Sprintf("join(',', instance('casedb')/casedb/case%s/@case_id)", fragment)
}

// Pipeline evaluates filter expressions against a freshly loaded case store
type Pipeline struct {
	source remote.Source
	logger *slog.Logger
}

// PipelineOption configures a Pipeline
type PipelineOption func(*Pipeline)

// WithLogger sets the pipeline logger
func WithLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPipeline creates a pipeline reading cases from source
func NewPipeline(source remote.Source, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		source: source,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Evaluate returns the ids of the cases selected by fragment, in store order.
//
// Auth is resolved before anything is fetched. The case store is opened the
// first time the expression references instance('casedb') and is discarded
// when Evaluate returns. No match yields an empty, non-nil slice.
func (p *Pipeline) Evaluate(ctx context.Context, fragment string, session Session, auth remote.Auth) ([]string, error) {
	return p.evaluate(ctx, p.logger, fragment, session, auth)
}

func (p *Pipeline) evaluate(ctx context.Context, logger *slog.Logger, fragment string, session Session, auth remote.Auth) ([]string, error) {
	querier, err := remote.NewQuerier(p.source, session.Domain, auth)
	if err != nil {
		return nil, err
	}

	r := &resolver{
		ctx:     ctx,
		querier: querier,
		session: session,
		logger:  logger,
	}

	query := Query(fragment)
	logger.Debug("evaluating filter", "query", query, "domain", session.Domain, "username", session.Username)

	joined, err := xpath.New(r).EvaluateString(query)
	if err != nil {
		return nil, err
	}
	return splitIDs(joined), nil
}

// OpenStore loads the cases selected by the session's additional filters
func (p *Pipeline) OpenStore(ctx context.Context, session Session, auth remote.Auth) (*casedb.Store, error) {
	querier, err := remote.NewQuerier(p.source, session.Domain, auth)
	if err != nil {
		return nil, err
	}
	return casedb.Open(ctx, querier, session.AdditionalFilters, casedb.WithLogger(p.logger))
}

func splitIDs(joined string) []string {
	ids := make([]string, 0)
	for _, id := range strings.Split(joined, ",") {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// resolver binds instance names for one evaluation
type resolver struct {
	ctx     context.Context
	querier *remote.Querier
	session Session
	logger  *slog.Logger

	store *casedb.Store
}

func (r *resolver) Instance(name string) (xpath.Instance, error) {
	switch {
	case name == InstanceCaseDB:
		if r.store == nil {
			logger := r.logger.With("domain", r.querier.Domain())
			store, err := casedb.Open(r.ctx, r.querier, r.session.AdditionalFilters, casedb.WithLogger(logger))
			if err != nil {
				return xpath.Instance{}, err
			}
			r.store = store
		}
		return caseInstance(r.ctx, r.store), nil
	case name == InstanceSession, name == InstanceCommCareSession:
		return xpath.StaticInstance(r.session.instanceRoot()), nil
	case strings.HasPrefix(name, fixturePrefix):
		return xpath.Instance{}, fmt.Errorf("fixture instances are not supported: %s", name)
	default:
		return xpath.Instance{}, fmt.Errorf("instance %q is not bound", name)
	}
}
