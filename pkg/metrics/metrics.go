package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// AnalysesTotal counts finished analyses by input kind and result kind.
	AnalysesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cropdoc",
		Subsystem: "workflow",
		Name:      "analyses_total",
		Help:      "Total number of finished analyses, labeled by input kind and result kind.",
	}, []string{"input", "result"})

	// AnalysisDurationSeconds is the round-trip time to the diagnosis service.
	AnalysisDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cropdoc",
		Subsystem: "workflow",
		Name:      "analysis_duration_seconds",
		Help:      "Time from submitting an analysis to having a classified result.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60, 120},
	}, []string{"input"})

	// InFlight is the number of analyses currently waiting on the service.
	InFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cropdoc",
		Subsystem: "workflow",
		Name:      "in_flight",
		Help:      "Analyses currently waiting on the diagnosis service.",
	})

	// ReplacedTotal counts analyses cancelled because a newer one started.
	ReplacedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cropdoc",
		Subsystem: "workflow",
		Name:      "replaced_total",
		Help:      "Analyses cancelled because a newer analysis started on the same session.",
	})

	// ValidationRejectedTotal counts submissions blocked before the network.
	ValidationRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cropdoc",
		Subsystem: "input",
		Name:      "validation_rejected_total",
		Help:      "Submissions rejected by client-side validation, labeled by field.",
	}, []string{"field"})
)

// Register registers the collectors with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			AnalysesTotal,
			AnalysisDurationSeconds,
			InFlight,
			ReplacedTotal,
			ValidationRejectedTotal,
		)
	})
}
