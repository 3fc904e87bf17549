package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// telemetry holds the server's Prometheus instruments on a private registry
// so tests can build servers without duplicate-registration panics.
type telemetry struct {
	registry       *prometheus.Registry
	aggregations   prometheus.Counter
	sourceFailures *prometheus.CounterVec
	activeStreams  prometheus.Gauge
	streamOutcomes *prometheus.CounterVec
}

func newTelemetry() *telemetry {
	t := &telemetry{
		registry: prometheus.NewRegistry(),
		aggregations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "teamtempo_aggregations_total",
			Help: "Completed metric aggregation runs.",
		}),
		sourceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "teamtempo_source_failures_total",
			Help: "Source fetch failures recorded during aggregation.",
		}, []string{"source"}),
		activeStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "teamtempo_sse_streams_active",
			Help: "Currently open SSE metric streams.",
		}),
		streamOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "teamtempo_sse_streams_total",
			Help: "Finished SSE metric streams by terminal outcome.",
		}, []string{"outcome"}),
	}

	t.registry.MustRegister(
		collectors.NewGoCollector(),
		t.aggregations,
		t.sourceFailures,
		t.activeStreams,
		t.streamOutcomes,
	)
	return t
}

// Handler serves the registry in Prometheus exposition format
func (t *telemetry) Handler() http.Handler {
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}
