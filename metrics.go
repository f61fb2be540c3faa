package resource

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Load results used as the "result" label.
const (
	resultSuccess = "success"
	resultFailure = "failure"
)

// metrics holds the Prometheus collectors of one Manager.
type metrics struct {
	loadsTotal   *prometheus.CounterVec
	loadDuration prometheus.Histogram
	resources    prometheus.Gauge
	unloadsTotal prometheus.Counter
}

// newMetrics creates the collectors. A nil registerer leaves them unregistered.
func newMetrics(namespace string, reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)

	return &metrics{
		loadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resource",
			Name:      "loads_total",
			Help:      "Total number of resource loads by result",
		}, []string{"result"}),

		loadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "resource",
			Name:      "load_duration_seconds",
			Help:      "Time spent in resource loaders",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),

		resources: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "resource",
			Name:      "resources",
			Help:      "Number of resource identities tracked by the manager",
		}),

		unloadsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resource",
			Name:      "unloads_total",
			Help:      "Total number of resource unloads",
		}),
	}
}

func (m *metrics) observeLoad(d time.Duration, err error) {
	m.loadDuration.Observe(d.Seconds())
	if err != nil {
		m.loadsTotal.WithLabelValues(resultFailure).Inc()
		return
	}
	m.loadsTotal.WithLabelValues(resultSuccess).Inc()
}
