package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// EngineMetrics exposes counters for the entitlement hot paths and the reset
// sweep. Registered once on the default registry and served via /metrics.
type EngineMetrics struct {
	incrementsTotal    *prometheus.CounterVec
	limitExceededTotal *prometheus.CounterVec
	sweepRunsTotal     prometheus.Counter
	sweepErrorsTotal   prometheus.Counter
	sweepResetsTotal   prometheus.Counter
	sweepDuration      prometheus.Histogram
}

var (
	engineOnce sync.Once
	engine     *EngineMetrics
)

// Engine returns the process-wide entitlement metrics.
func Engine() *EngineMetrics {
	engineOnce.Do(func() {
		engine = &EngineMetrics{
			incrementsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "entitlement_consumption_increments_total",
				Help: "Consumption increments applied, by period granularity.",
			}, []string{"period"}),
			limitExceededTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "entitlement_limit_exceeded_total",
				Help: "Increments that pushed a ledger record over its limit.",
			}, []string{"period"}),
			sweepRunsTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "entitlement_reset_sweep_runs_total",
				Help: "Reset sweep executions.",
			}),
			sweepErrorsTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "entitlement_reset_sweep_errors_total",
				Help: "Reset sweep executions that returned an error.",
			}),
			sweepResetsTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "entitlement_reset_sweep_resets_total",
				Help: "Ledger records reset by the sweep.",
			}),
			sweepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "entitlement_reset_sweep_duration_seconds",
				Help:    "Wall time of one reset sweep pass.",
				Buckets: prometheus.DefBuckets,
			}),
		}
	})
	return engine
}

func (m *EngineMetrics) IncIncrement(period string) {
	m.incrementsTotal.WithLabelValues(period).Inc()
}

func (m *EngineMetrics) IncLimitExceeded(period string) {
	m.limitExceededTotal.WithLabelValues(period).Inc()
}

func (m *EngineMetrics) IncSweepRun() { m.sweepRunsTotal.Inc() }

func (m *EngineMetrics) IncSweepError() { m.sweepErrorsTotal.Inc() }

func (m *EngineMetrics) AddSweepResets(n int) { m.sweepResetsTotal.Add(float64(n)) }

func (m *EngineMetrics) ObserveSweepDuration(d time.Duration) {
	m.sweepDuration.Observe(d.Seconds())
}
