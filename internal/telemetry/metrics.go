package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nerrad567/gray-logic-access/internal/access"
	"github.com/nerrad567/gray-logic-access/internal/actuator"
)

const metricsNamespace = "graylogic_access"

// authLatencyBuckets span a LAN round trip up to the 5s request timeout.
var authLatencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// SnapshotSource is satisfied by *access.Cycle.
type SnapshotSource interface {
	Snapshot() access.Snapshot
}

// DropCounter is satisfied by *access.Dispatcher.
type DropCounter interface {
	Dropped() uint64
}

// Metrics exports access outcomes as Prometheus metrics. It implements
// access.Observer. Every metric carries a constant door label; none carries
// a token.
type Metrics struct {
	reg    prometheus.Registerer
	labels prometheus.Labels

	decisions      *prometheus.CounterVec
	authLatency    *prometheus.HistogramVec
	unlocks        prometheus.Counter
	actuatorFaults prometheus.Counter
}

// NewMetrics registers the outcome metrics for doorID on reg.
func NewMetrics(reg prometheus.Registerer, doorID string) *Metrics {
	labels := prometheus.Labels{"door": doorID}
	factory := promauto.With(reg)

	return &Metrics{
		reg:    reg,
		labels: labels,
		decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "decisions_total",
			Help:        "Access decisions by outcome and reason.",
			ConstLabels: labels,
		}, []string{"decision", "reason"}),
		authLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   metricsNamespace,
			Name:        "authorization_duration_seconds",
			Help:        "Latency of authorization queries.",
			Buckets:     authLatencyBuckets,
			ConstLabels: labels,
		}, []string{"decision"}),
		unlocks: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "unlocks_total",
			Help:        "Times the strike was released.",
			ConstLabels: labels,
		}),
		actuatorFaults: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "actuator_faults_total",
			Help:        "Strike faults reported while handling a permitted card.",
			ConstLabels: labels,
		}),
	}
}

// Observe implements access.Observer.
func (m *Metrics) Observe(_ context.Context, o access.Outcome) error {
	decision := o.Decision.String()
	m.decisions.WithLabelValues(decision, o.Reason).Inc()
	if o.Latency > 0 {
		m.authLatency.WithLabelValues(decision).Observe(o.Latency.Seconds())
	}
	if o.Unlocked {
		m.unlocks.Inc()
	}
	if o.ActuatorErr != nil {
		m.actuatorFaults.Inc()
	}
	return nil
}

// WatchCycle exports counters kept by the cycle itself, including passes
// that never reach observers (empty polls and reader errors).
func (m *Metrics) WatchCycle(src SnapshotSource) {
	factory := promauto.With(m.reg)

	factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace:   metricsNamespace,
		Name:        "polls_total",
		Help:        "Reader polls performed.",
		ConstLabels: m.labels,
	}, func() float64 { return float64(src.Snapshot().Stats.Polls) })

	factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace:   metricsNamespace,
		Name:        "reader_errors_total",
		Help:        "Reader polls that failed.",
		ConstLabels: m.labels,
	}, func() float64 { return float64(src.Snapshot().Stats.ReaderErrors) })

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   metricsNamespace,
		Name:        "strike_unlocked",
		Help:        "1 while the strike is released.",
		ConstLabels: m.labels,
	}, func() float64 {
		if src.Snapshot().Strike == actuator.Unlocked {
			return 1
		}
		return 0
	})

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   metricsNamespace,
		Name:        "uptime_seconds",
		Help:        "Seconds since the access cycle started.",
		ConstLabels: m.labels,
	}, func() float64 { return src.Snapshot().Uptime.Seconds() })
}

// WatchDispatcher exports how many outcomes were dropped because the
// observer queue was full.
func (m *Metrics) WatchDispatcher(d DropCounter) {
	promauto.With(m.reg).NewCounterFunc(prometheus.CounterOpts{
		Namespace:   metricsNamespace,
		Name:        "observer_dropped_total",
		Help:        "Outcomes dropped because the observer queue was full.",
		ConstLabels: m.labels,
	}, func() float64 { return float64(d.Dropped()) })
}
