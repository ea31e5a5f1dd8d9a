package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all prometheus metrics
type Metrics struct {
	StoreCalls        *prometheus.CounterVec
	StoreCallDuration *prometheus.HistogramVec
	ErrorsCount       *prometheus.CounterVec
	EventsPublished   prometheus.Counter
	EventsDropped     *prometheus.CounterVec
	Subscribers       prometheus.Gauge
	MutationsApplied  *prometheus.CounterVec
}

// NewMetrics creates new prometheus metrics on the given registerer
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		StoreCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_calls_total",
			Help:      "The total number of stored procedure calls",
		}, []string{"procedure", "outcome"}),
		StoreCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_call_duration_seconds",
			Help:      "Time taken by stored procedure calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"procedure"}),
		ErrorsCount: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "The total number of errors",
		}, []string{"kind"}),
		EventsPublished: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flight_updates_published_total",
			Help:      "The total number of flight updates accepted for broadcast",
		}),
		EventsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flight_updates_dropped_total",
			Help:      "The total number of flight updates dropped before delivery",
		}, []string{"stage"}),
		Subscribers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscribers",
			Help:      "Currently connected flight update subscribers",
		}),
		MutationsApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_applied_total",
			Help:      "The total number of simulated flight mutations",
		}, []string{"kind"}),
	}
}

// NewNopMetrics returns metrics registered on a throwaway registry
func NewNopMetrics() *Metrics {
	return NewMetrics("flightboard", prometheus.NewRegistry())
}
