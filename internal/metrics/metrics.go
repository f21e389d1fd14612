// Package metrics holds the prometheus collectors shared by the HTTP layer
// and the analysis pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry dipakai /metrics, bukan default registry global
	Registry = prometheus.NewRegistry()

	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pyq",
		Name:      "http_requests_total",
		Help:      "HTTP requests by route, method and status code.",
	}, []string{"route", "method", "status"})

	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pyq",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	HTTPInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "pyq",
		Name:      "http_requests_in_flight",
		Help:      "Requests currently being served.",
	})

	PipelineRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pyq",
		Name:      "pipeline_runs_total",
		Help:      "Finished analysis runs by outcome.",
	}, []string{"outcome"})

	PipelineFiles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pyq",
		Name:      "pipeline_files_total",
		Help:      "Processed files by outcome (ok, skipped, error).",
	}, []string{"outcome"})

	StageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pyq",
		Name:      "pipeline_stage_duration_seconds",
		Help:      "Time spent per pipeline stage.",
		Buckets:   []float64{.05, .1, .5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"stage"})

	ClassifierFallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pyq",
		Name:      "classifier_fallbacks_total",
		Help:      "Times the local classifier replaced the primary one, by reason.",
	}, []string{"reason"})

	ProxyRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pyq",
		Name:      "proxy_requests_total",
		Help:      "Proxy fetches by intent and outcome.",
	}, []string{"intent", "outcome"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		HTTPRequests, HTTPDuration, HTTPInFlight,
		PipelineRuns, PipelineFiles, StageDuration,
		ClassifierFallbacks, ProxyRequests,
	)
}
