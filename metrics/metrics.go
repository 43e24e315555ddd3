package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Chat pipeline Prometheus metrics.
var (
	AnswersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mwanga",
			Name:      "answers_total",
			Help:      "Total number of answers by the stage that produced them",
		},
		[]string{"provenance"},
	)

	GroundedRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mwanga",
			Name:      "grounded_rejections_total",
			Help:      "Grounded candidates rejected by the relevance gate",
		},
	)

	GenerationErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mwanga",
			Name:      "generation_errors_total",
			Help:      "Failed generation calls by resolver stage",
		},
		[]string{"stage"},
	)

	GenerationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mwanga",
			Name:      "generation_duration_seconds",
			Help:      "Generation service call duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"provider"},
	)

	IngestionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mwanga",
			Name:      "ingestions_total",
			Help:      "Document ingestions by format and result",
		},
		[]string{"format", "result"}, // "ok" / "failed"
	)
)

var registerOnce sync.Once

// Register registers all metrics with the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			AnswersTotal,
			GroundedRejectionsTotal,
			GenerationErrorsTotal,
			GenerationDuration,
			IngestionsTotal,
		)
	})
}
