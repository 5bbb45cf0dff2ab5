package metrics

import "github.com/prometheus/client_golang/prometheus"

// EngineMetrics exposes counters/histograms for CRM payload builds.
type EngineMetrics struct {
	buildsTotal      *prometheus.CounterVec
	buildDuration    *prometheus.HistogramVec
	samplesDiscarded *prometheus.CounterVec
}

func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	m := &EngineMetrics{
		buildsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicops",
			Subsystem: "crm",
			Name:      "payload_builds_total",
			Help:      "Total CRM metrics payload builds",
		}, []string{"granularity"}),
		buildDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinicops",
			Subsystem: "crm",
			Name:      "payload_build_duration_seconds",
			Help:      "Latency of CRM metrics payload builds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"granularity"}),
		samplesDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicops",
			Subsystem: "crm",
			Name:      "samples_discarded_total",
			Help:      "Data points excluded from KPI samples, by reason",
		}, []string{"reason"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.buildsTotal, m.buildDuration, m.samplesDiscarded)
	return m
}

func (m *EngineMetrics) ObserveBuild(granularity string, seconds float64) {
	if m == nil {
		return
	}
	m.buildsTotal.WithLabelValues(granularity).Inc()
	m.buildDuration.WithLabelValues(granularity).Observe(seconds)
}

func (m *EngineMetrics) AddDiscardedSamples(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.samplesDiscarded.WithLabelValues(reason).Add(float64(n))
}
