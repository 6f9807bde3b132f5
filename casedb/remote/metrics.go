package remote

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("casedb.remote")

var (
	// fetchTotal counts case source reads
	// Labels: source ("http", "file"), result ("success", "error")
	fetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "casedb_remote_fetch_total",
		Help: "Total case source reads by source and result",
	}, []string{"source", "result"})

	fetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "casedb_remote_fetch_duration_seconds",
		Help:    "Case source read duration",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"source"})

	fetchedCases = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "casedb_remote_fetched_cases_total",
		Help: "Total cases decoded from case source reads",
	}, []string{"source"})
)
