package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the failover service.
type Metrics struct {
	registry            *prometheus.Registry
	requestsTotal       prometheus.Counter
	errorsTotal         prometheus.Counter
	redirectsTotal      prometheus.Counter
	notFoundTotal       prometheus.Counter
	playlistServedTotal prometheus.Counter
	probesTotal         *prometheus.CounterVec
	probeDuration       prometheus.Histogram
	reloadsTotal        *prometheus.CounterVec
	ingestedFilesTotal  *prometheus.CounterVec
	channels            prometheus.Gauge
}

// New creates and registers Prometheus metrics for the service.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "failover_requests_total",
			Help: "Total number of HTTP requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "failover_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
		redirectsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "failover_redirects_total",
			Help: "Total number of channel requests redirected to a live candidate",
		}),
		notFoundTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "failover_channel_not_found_total",
			Help: "Total number of channel requests with no live candidate or unknown channel",
		}),
		playlistServedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "failover_playlist_served_total",
			Help: "Total number of playlist downloads",
		}),
		probesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "failover_probes_total",
			Help: "Liveness probes by result (alive, dead, timeout)",
		}, []string{"result"}),
		probeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "failover_probe_duration_seconds",
			Help:    "Wall time of liveness probes",
			Buckets: []float64{0.5, 1, 2, 5, 10, 15, 30},
		}),
		reloadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "failover_reloads_total",
			Help: "Mapping reloads that changed state or failed",
		}, []string{"outcome"}),
		ingestedFilesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "failover_ingested_files_total",
			Help: "Inbox playlist files processed by outcome (ok, failed)",
		}, []string{"outcome"}),
		channels: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "failover_channels",
			Help: "Number of channels in the served mapping",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.redirectsTotal,
		m.notFoundTotal,
		m.playlistServedTotal,
		m.probesTotal,
		m.probeDuration,
		m.reloadsTotal,
		m.ingestedFilesTotal,
		m.channels,
	)

	return m
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// IncRedirects increments the successful redirect counter.
func (m *Metrics) IncRedirects() {
	m.redirectsTotal.Inc()
}

// IncNotFound increments the channel-not-found counter.
func (m *Metrics) IncNotFound() {
	m.notFoundTotal.Inc()
}

// IncPlaylistServed increments the playlist download counter.
func (m *Metrics) IncPlaylistServed() {
	m.playlistServedTotal.Inc()
}

// ObserveProbe records one probe outcome and how long it took.
func (m *Metrics) ObserveProbe(result string, d time.Duration) {
	m.probesTotal.WithLabelValues(result).Inc()
	m.probeDuration.Observe(d.Seconds())
}

// IncReloads counts a reload with the given outcome ("changed" or "error").
func (m *Metrics) IncReloads(outcome string) {
	m.reloadsTotal.WithLabelValues(outcome).Inc()
}

// IncIngested counts an inbox file with the given outcome ("ok" or "failed").
func (m *Metrics) IncIngested(outcome string) {
	m.ingestedFilesTotal.WithLabelValues(outcome).Inc()
}

// SetChannels sets the channel gauge.
func (m *Metrics) SetChannels(n int) {
	m.channels.Set(float64(n))
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
