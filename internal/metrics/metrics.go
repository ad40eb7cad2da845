// Package metrics collects Prometheus request and domain metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "metromate"

// Collector owns the HTTP and domain metrics registered against one registry.
type Collector struct {
	requestsTotal      *prometheus.CounterVec
	requestErrors      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	sessionsCreated    prometheus.Counter
	tripsStarted       *prometheus.CounterVec
	messagesSent       prometheus.Counter
	wavesSent          prometheus.Counter
	connectionRequests *prometheus.CounterVec
}

// NewCollector builds the collector and registers every metric with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		requestErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_request_errors_total",
			Help:      "Total number of HTTP requests answered with a 4xx or 5xx status.",
		}, []string{"method", "path", "status", "error_type"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Sessions created through the identity exchange.",
		}),
		tripsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trips_started_total",
			Help:      "Trips started, by metro line.",
		}, []string{"line"}),
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Direct messages sent.",
		}),
		wavesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "waves_sent_total",
			Help:      "Waves sent.",
		}),
		connectionRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connection_requests_total",
			Help:      "Connection requests, by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		c.requestsTotal,
		c.requestErrors,
		c.requestDuration,
		c.sessionsCreated,
		c.tripsStarted,
		c.messagesSent,
		c.wavesSent,
		c.connectionRequests,
	)
	return c
}

// Middleware records rate, errors and duration for every request.
func (c *Collector) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		status := ctx.Writer.Status()
		statusLabel := strconv.Itoa(status)
		path := ctx.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := ctx.Request.Method

		c.requestsTotal.WithLabelValues(method, path, statusLabel).Inc()
		switch {
		case status >= http.StatusInternalServerError:
			c.requestErrors.WithLabelValues(method, path, statusLabel, "server").Inc()
		case status >= http.StatusBadRequest:
			c.requestErrors.WithLabelValues(method, path, statusLabel, "client").Inc()
		}
		c.requestDuration.WithLabelValues(method, path, statusLabel).Observe(time.Since(start).Seconds())
	}
}

// RecordSessionCreated counts a successful login.
func (c *Collector) RecordSessionCreated() {
	c.sessionsCreated.Inc()
}

// RecordTripStarted counts a started trip on line.
func (c *Collector) RecordTripStarted(line string) {
	c.tripsStarted.WithLabelValues(line).Inc()
}

// RecordMessageSent counts a sent message.
func (c *Collector) RecordMessageSent() {
	c.messagesSent.Inc()
}

// RecordWaveSent counts a sent wave.
func (c *Collector) RecordWaveSent() {
	c.wavesSent.Inc()
}

// RecordConnectionRequest counts a connection request; created is false for duplicates.
func (c *Collector) RecordConnectionRequest(created bool) {
	outcome := "created"
	if !created {
		outcome = "duplicate"
	}
	c.connectionRequests.WithLabelValues(outcome).Inc()
}

// Handler serves the Prometheus exposition format for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
