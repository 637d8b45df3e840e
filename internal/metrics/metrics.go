package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	epochsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rescor_epochs_total",
			Help: "Total number of input epochs by kind (data, metadata, out_of_order).",
		},
		[]string{"kind"},
	)

	referenceResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rescor_reference_resolutions_total",
			Help: "Reference position resolutions by mode and result.",
		},
		[]string{"mode", "result"},
	)

	biasResetsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rescor_bias_resets_total",
			Help: "Bias resets (first value or limit exceeded) per derived type.",
		},
		[]string{"type"},
	)

	satellitesExcludedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rescor_satellites_excluded_total",
			Help: "Satellite records dropped from the output, by reason.",
		},
		[]string{"reason"},
	)

	derivedValuesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rescor_derived_values_total",
			Help: "Derived values computed, per type.",
		},
		[]string{"type"},
	)

	epochDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rescor_epoch_duration_seconds",
			Help:    "Time spent processing one data epoch.",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
	)
)

func init() {
	prometheus.MustRegister(epochsTotal)
	prometheus.MustRegister(referenceResolutionsTotal)
	prometheus.MustRegister(biasResetsTotal)
	prometheus.MustRegister(satellitesExcludedTotal)
	prometheus.MustRegister(derivedValuesTotal)
	prometheus.MustRegister(epochDurationSeconds)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordEpoch counts one input epoch of the given kind.
func RecordEpoch(kind string) {
	epochsTotal.WithLabelValues(kind).Inc()
}

// RecordEpochDuration observes the processing time of a data epoch.
func RecordEpochDuration(d time.Duration) {
	epochDurationSeconds.Observe(d.Seconds())
}

// RecordResolution counts a reference position attempt.
func RecordResolution(mode string, resolved bool) {
	result := "resolved"
	if !resolved {
		result = "unresolved"
	}
	referenceResolutionsTotal.WithLabelValues(mode, result).Inc()
}

// RecordBiasReset counts a bias reset for a derived type.
func RecordBiasReset(code string) {
	biasResetsTotal.WithLabelValues(code).Inc()
}

// RecordExcluded counts a dropped satellite record.
func RecordExcluded(reason string) {
	satellitesExcludedTotal.WithLabelValues(reason).Inc()
}

// RecordDerived counts a computed derived value.
func RecordDerived(code string) {
	derivedValuesTotal.WithLabelValues(code).Inc()
}
