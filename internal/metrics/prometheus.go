package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monitor_cycles_total",
			Help: "Total number of scan cycles by outcome",
		},
		[]string{"status"},
	)

	CycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "monitor_cycle_duration_seconds",
			Help:    "Duration of full scan cycles",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	FetchFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "monitor_tenant_fetch_failures_total",
			Help: "Total number of failed per-tenant endpoint count fetches",
		},
	)

	SinkErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monitor_sink_errors_total",
			Help: "Total number of export sink write failures per sink",
		},
		[]string{"sink"},
	)
)

// Init registers metrics with Prometheus
func Init() {
	prometheus.MustRegister(CyclesTotal)
	prometheus.MustRegister(CycleDuration)
	prometheus.MustRegister(FetchFailures)
	prometheus.MustRegister(SinkErrors)
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
