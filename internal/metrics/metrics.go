package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the service's Prometheus metrics on a private registry
type Collector struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	transitionsTotal    *prometheus.CounterVec
	notificationsTotal  *prometheus.CounterVec
	smsTotal            *prometheus.CounterVec
	authAttemptsTotal   *prometheus.CounterVec
}

// NewCollector creates and registers all metrics
func NewCollector(serviceName string) *Collector {
	constLabels := prometheus.Labels{"service": serviceName}

	c := &Collector{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "http_requests_total",
				Help:        "Total number of HTTP requests",
				ConstLabels: constLabels,
			},
			[]string{"method", "endpoint", "status_code"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "http_request_duration_seconds",
				Help:        "Duration of HTTP requests in seconds",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: constLabels,
			},
			[]string{"method", "endpoint"},
		),
		transitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "encounter_transitions_total",
				Help:        "Total number of appointment and prescription state transitions",
				ConstLabels: constLabels,
			},
			[]string{"entity", "to"},
		),
		notificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "notifications_total",
				Help:        "Total number of notification events emitted",
				ConstLabels: constLabels,
			},
			[]string{"event"},
		),
		smsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "sms_messages_total",
				Help:        "Total number of SMS send attempts",
				ConstLabels: constLabels,
			},
			[]string{"status"},
		),
		authAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "auth_attempts_total",
				Help:        "Total number of login attempts",
				ConstLabels: constLabels,
			},
			[]string{"status"},
		),
	}

	c.registry.MustRegister(
		c.httpRequestsTotal,
		c.httpRequestDuration,
		c.transitionsTotal,
		c.notificationsTotal,
		c.smsTotal,
		c.authAttemptsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry exposes the registry for tests and custom collectors
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordHTTPRequest records one served request
func (c *Collector) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	c.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordTransition records an entity reaching a new status
func (c *Collector) RecordTransition(entity, to string) {
	c.transitionsTotal.WithLabelValues(entity, to).Inc()
}

func (c *Collector) RecordNotification(event string) {
	c.notificationsTotal.WithLabelValues(event).Inc()
}

func (c *Collector) RecordSMS(success bool) {
	status := "sent"
	if !success {
		status = "failed"
	}
	c.smsTotal.WithLabelValues(status).Inc()
}

func (c *Collector) RecordAuthAttempt(success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	c.authAttemptsTotal.WithLabelValues(status).Inc()
}

// Middleware records request count and latency per route template
func (c *Collector) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		endpoint := ctx.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		c.RecordHTTPRequest(ctx.Request.Method, endpoint, ctx.Writer.Status(), time.Since(start))
	}
}

// Handler serves the registry in the Prometheus text format
func (c *Collector) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}
