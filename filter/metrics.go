package filter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("casedb.filter")

// Evaluation results
const (
	resultSuccess      = "success"
	resultError        = "error"
	resultFatal        = "fatal"
	resultInvalid      = "invalid"
	resultUnrecognized = "unrecognized"
)

var (
	// evaluations counts handled filter requests
	// Labels: result ("success", "error", "fatal", "invalid", "unrecognized")
	evaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "casedb_filter_evaluations_total",
		Help: "Total filter requests by result",
	}, []string{"result"})

	matchedCases = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "casedb_filter_matched_cases",
		Help:    "Number of cases matched per successful filter evaluation",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	})
)
