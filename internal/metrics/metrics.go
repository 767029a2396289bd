// Package metrics holds the Prometheus collectors of the price checker.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "flight_checker"

// Metrics is safe to use through a nil pointer; every recorder is then a
// no-op.
type Metrics struct {
	CyclesTotal          *prometheus.CounterVec
	CycleDurationSeconds prometheus.Histogram
	ChecksTotal          *prometheus.CounterVec
	NotificationsTotal   *prometheus.CounterVec
	SweeperRemovedTotal  *prometheus.CounterVec
	PoolInFlight         *prometheus.GaugeVec
	ActiveMonitors       prometheus.Gauge
	FetchRetriesTotal    prometheus.Counter
}

// New registers every collector on reg, or on the default registerer when
// reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		CyclesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "cycles_total",
			Help:      "Check cycles by result (completed, skipped, failed).",
		}, []string{"result"}),

		CycleDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of a check cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 13), // 0.5s to ~34min
		}),

		ChecksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "monitor_checks_total",
			Help:      "Per-monitor check results by outcome or failure reason.",
		}, []string{"outcome"}),

		NotificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifier",
			Name:      "notifications_total",
			Help:      "Price drop notifications by result (sent, failed, suppressed).",
		}, []string{"result"}),

		SweeperRemovedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweeper",
			Name:      "removed_total",
			Help:      "Records expired or deleted by the retention sweeper.",
		}, []string{"kind"}),

		PoolInFlight: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "workerpool",
			Name:      "in_flight",
			Help:      "Work functions currently executing per pool.",
		}, []string{"pool"}),

		ActiveMonitors: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "active_monitors",
			Help:      "Active monitors in the last cycle snapshot.",
		}),

		FetchRetriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetcher",
			Name:      "retries_total",
			Help:      "Price source requests that were retried.",
		}),
	}
}

func (m *Metrics) Cycle(result string, took time.Duration) {
	if m == nil {
		return
	}
	m.CyclesTotal.WithLabelValues(result).Inc()
	if took > 0 {
		m.CycleDurationSeconds.Observe(took.Seconds())
	}
}

func (m *Metrics) Check(outcome string) {
	if m == nil {
		return
	}
	m.ChecksTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Notification(result string) {
	if m == nil {
		return
	}
	m.NotificationsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) Removed(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SweeperRemovedTotal.WithLabelValues(kind).Add(float64(n))
}

// PoolOccupancy matches workerpool.Pool.OnOccupancy.
func (m *Metrics) PoolOccupancy(pool string, inFlight int64) {
	if m == nil {
		return
	}
	m.PoolInFlight.WithLabelValues(pool).Set(float64(inFlight))
}

func (m *Metrics) SetActiveMonitors(n int) {
	if m == nil {
		return
	}
	m.ActiveMonitors.Set(float64(n))
}

func (m *Metrics) FetchRetry() {
	if m == nil {
		return
	}
	m.FetchRetriesTotal.Inc()
}
