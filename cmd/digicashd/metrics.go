// metrics.go - Metrics collection for the e-cash protocol
package main

import (
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"digicash/internal/ecash"
)

// MetricsCollector records protocol events on a private registry
type MetricsCollector struct {
	registry   *prometheus.Registry
	issued     prometheus.Counter
	accepted   *prometheus.CounterVec
	rejected   *prometheus.CounterVec
	verdicts   *prometheus.CounterVec
	acceptTime prometheus.Histogram
}

var _ ecash.Observer = (*MetricsCollector)(nil)

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector() *MetricsCollector {
	mc := &MetricsCollector{
		registry: prometheus.NewRegistry(),
		issued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "digicash",
			Name:      "coins_issued_total",
			Help:      "Blind signatures issued by the bank.",
		}),
		accepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "digicash",
			Name:      "coins_accepted_total",
			Help:      "Coins accepted by a merchant.",
		}, []string{"merchant"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "digicash",
			Name:      "coins_rejected_total",
			Help:      "Coins rejected by a merchant, by culprit.",
		}, []string{"merchant", "culprit"}),
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "digicash",
			Name:      "verdicts_total",
			Help:      "Fraud detector verdicts reached on deposit.",
		}, []string{"kind"}),
		acceptTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "digicash",
			Name:      "acceptance_duration_seconds",
			Help:      "Time spent verifying a coin and collecting its shares.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
	}
	mc.registry.MustRegister(mc.issued, mc.accepted, mc.rejected, mc.verdicts, mc.acceptTime)
	return mc
}

func (mc *MetricsCollector) CoinIssued() { mc.issued.Inc() }

func (mc *MetricsCollector) CoinAccepted(merchant string, took time.Duration) {
	mc.accepted.WithLabelValues(merchant).Inc()
	mc.acceptTime.Observe(took.Seconds())
}

func (mc *MetricsCollector) CoinRejected(merchant string, culprit ecash.Party) {
	mc.rejected.WithLabelValues(merchant, string(culprit)).Inc()
}

func (mc *MetricsCollector) VerdictReached(kind ecash.VerdictKind) {
	mc.verdicts.WithLabelValues(kind.String()).Inc()
}

// Registry exposes the underlying registry
func (mc *MetricsCollector) Registry() *prometheus.Registry { return mc.registry }

// GetMetricsSummary flattens the registry into name{labels} -> value. Histograms
// report their sample count.
func (mc *MetricsCollector) GetMetricsSummary() (map[string]float64, error) {
	families, err := mc.registry.Gather()
	if err != nil {
		return nil, err
	}
	summary := make(map[string]float64)
	for _, f := range families {
		for _, m := range f.GetMetric() {
			key := f.GetName() + labelSuffix(m.GetLabel())
			switch f.GetType() {
			case dto.MetricType_COUNTER:
				summary[key] = m.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				summary[key] = m.GetGauge().GetValue()
			case dto.MetricType_HISTOGRAM:
				summary[key+"_count"] = float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return summary, nil
}

func labelSuffix(labels []*dto.LabelPair) string {
	if len(labels) == 0 {
		return ""
	}
	parts := make([]string, 0, len(labels))
	for _, l := range labels {
		parts = append(parts, l.GetName()+"="+l.GetValue())
	}
	sort.Strings(parts)
	return "{" + strings.Join(parts, ",") + "}"
}
