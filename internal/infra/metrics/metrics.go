package metrics

import (
	"net/http"

	"github.com/NasaVasa/cryptoalerts/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the scheduler's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	Cycles           *prometheus.CounterVec
	CycleDuration    prometheus.Histogram
	AlertsEvaluated  prometheus.Counter
	AlertsFired      prometheus.Counter
	AlertsSkipped    prometheus.Counter
	AlertsInvalid    prometheus.Counter
	FireContended    prometheus.Counter
	DispatchFailures prometheus.Counter
	Leader           prometheus.Gauge
}

func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Evaluation cycles by outcome.",
		}, []string{"outcome"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of completed evaluation cycles.",
			Buckets:   prometheus.DefBuckets,
		}),
		AlertsEvaluated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_evaluated_total",
			Help:      "Alerts evaluated against a fresh price.",
		}),
		AlertsFired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_fired_total",
			Help:      "Alerts fired and recorded.",
		}),
		AlertsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_skipped_total",
			Help:      "Alerts skipped because their symbol could not be priced.",
		}),
		AlertsInvalid: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_invalid_total",
			Help:      "Alerts failed closed because of an unknown rule or malformed threshold.",
		}),
		FireContended: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fire_contended_total",
			Help:      "Matches dropped because the alert was no longer eligible under the row lock.",
		}),
		DispatchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_failures_total",
			Help:      "Fired alerts whose notification could not be delivered. These alerts stay marked as fired.",
		}),
		Leader: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduler_leader",
			Help:      "1 while this instance holds the scheduler lease.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Cycles,
		m.CycleDuration,
		m.AlertsEvaluated,
		m.AlertsFired,
		m.AlertsSkipped,
		m.AlertsInvalid,
		m.FireContended,
		m.DispatchFailures,
		m.Leader,
	)
	return m
}

// ObserveCycle records a finished cycle. Work done before an aborted cycle failed is still counted.
func (m *Metrics) ObserveCycle(report domain.CycleReport, err error) {
	m.AlertsEvaluated.Add(float64(report.Evaluated))
	m.AlertsFired.Add(float64(report.Fired))
	m.AlertsSkipped.Add(float64(report.Skipped))
	m.AlertsInvalid.Add(float64(report.Invalid))
	m.FireContended.Add(float64(report.Contended))
	m.DispatchFailures.Add(float64(report.DispatchFailed))
	if err != nil {
		m.Cycles.WithLabelValues("error").Inc()
		return
	}
	m.Cycles.WithLabelValues("ok").Inc()
	m.CycleDuration.Observe(report.Duration.Seconds())
}

func (m *Metrics) SetLeader(leader bool) {
	if leader {
		m.Leader.Set(1)
		return
	}
	m.Leader.Set(0)
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
