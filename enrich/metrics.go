package enrich

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fallbackRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "silo_enrichment_fallback_retries_total",
		Help: "Analysis calls retried on the fallback model.",
	})

	defaultAnalysisTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "silo_enrichment_defaults_total",
		Help: "Analysis calls that gave up and returned the default result.",
	})
)
