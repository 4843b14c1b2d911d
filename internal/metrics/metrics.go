package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"probe-go/internal/probe"
)

// Failure kinds used as the "kind" label.
const (
	KindDegenerate = "degenerate_input"
	KindInvalid    = "invalid_parameter"
	KindNoData     = "no_dataset"
	KindOther      = "other"
)

// Metrics holds the estimation counters on a private registry so several
// servers (and tests) can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	estimatesTotal   prometheus.Counter
	failuresTotal    *prometheus.CounterVec
	datasetsLoaded   *prometheus.CounterVec
	estimateDuration prometheus.Histogram
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		estimatesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "probe_estimates_total",
			Help: "Estimates computed successfully",
		}),
		failuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "probe_estimate_failures_total",
			Help: "Estimation requests rejected, by kind",
		}, []string{"kind"}),
		datasetsLoaded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "probe_datasets_loaded_total",
			Help: "Historical datasets loaded, by source",
		}, []string{"source"}),
		estimateDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "probe_estimate_duration_seconds",
			Help:    "Time spent fitting and computing the interval",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
		}),
	}
}

// ObserveEstimate records the outcome of one estimation.
func (m *Metrics) ObserveEstimate(start time.Time, err error) {
	m.estimateDuration.Observe(time.Since(start).Seconds())
	if err == nil {
		m.estimatesTotal.Inc()
		return
	}
	m.failuresTotal.WithLabelValues(Kind(err)).Inc()
}

// ObserveFailure records a rejected request that never reached the estimator.
func (m *Metrics) ObserveFailure(kind string) {
	m.failuresTotal.WithLabelValues(kind).Inc()
}

// ObserveLoad records a successfully loaded dataset.
func (m *Metrics) ObserveLoad(source string) {
	m.datasetsLoaded.WithLabelValues(source).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Kind classifies an estimation error.
func Kind(err error) string {
	switch {
	case errors.Is(err, probe.ErrDegenerateInput):
		return KindDegenerate
	case errors.Is(err, probe.ErrInvalidParameter):
		return KindInvalid
	default:
		return KindOther
	}
}
