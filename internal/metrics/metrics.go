// Package metrics exposes refresh metrics in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"propertyfees/internal/core"
)

const (
	metricPrefix = "propertyfees_"

	statusSuccess = "success"
	statusError   = "error"
)

// Metrics bundles refresh metrics.
type Metrics struct {
	RefreshTotal    *prometheus.CounterVec
	RefreshDuration prometheus.Histogram
	FallbackTotal   *prometheus.CounterVec
	Totals          *prometheus.GaugeVec
	LastSuccess     prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New constructs metrics and registers them on reg. A nil reg gets a fresh
// registry so tests and multiple instances never collide.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		RefreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "refresh_total",
				Help: "Total snapshot refreshes by status",
			},
			[]string{"status"},
		),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    metricPrefix + "refresh_duration_seconds",
			Help:    "Snapshot refresh duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		FallbackTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "category_fallback_total",
				Help: "Categories substituted with defaults by category",
			},
			[]string{"category"},
		),
		Totals: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "total_yuan",
				Help: "Latest snapshot totals in yuan",
			},
			[]string{"total"},
		),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "last_success_timestamp_seconds",
			Help: "Unix time of the last successful refresh",
		}),
		gatherer: reg,
	}
	reg.MustRegister(
		m.RefreshTotal,
		m.RefreshDuration,
		m.FallbackTotal,
		m.Totals,
		m.LastSuccess,
	)
	return m
}

// ObserveRefresh records one refresh outcome.
func (m *Metrics) ObserveRefresh(snap *core.Snapshot, d time.Duration, err error) {
	m.RefreshDuration.Observe(d.Seconds())
	if err != nil || snap == nil {
		m.RefreshTotal.WithLabelValues(statusError).Inc()
		return
	}
	m.RefreshTotal.WithLabelValues(statusSuccess).Inc()
	for _, c := range snap.Fallbacks {
		m.FallbackTotal.WithLabelValues(string(c)).Inc()
	}
	m.Totals.WithLabelValues("prepaid_total").Set(snap.Total.PrepaidTotal.InexactFloat64())
	m.Totals.WithLabelValues("paid_public_total").Set(snap.Total.PaidPublicTotal.InexactFloat64())
	m.Totals.WithLabelValues("pending_total").Set(snap.Total.PendingTotal.InexactFloat64())
	m.LastSuccess.Set(float64(snap.LastUpdate.Unix()))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
