package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RegistryEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "messenger_registry_entries",
		Help: "Presence registry entries, including stale ones not yet evicted",
	})
	StaleEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "messenger_stale_evictions_total",
		Help: "Stale sessions evicted by a later registration for the same nickname",
	})
	MessagesDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "messenger_messages_delivered_total",
		Help: "Messages pushed to a live session",
	})
	MessagesReplayed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "messenger_messages_replayed_total",
		Help: "History messages replayed to newly registered sessions",
	})
	SendFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "messenger_send_failures_total",
		Help: "Failed send calls by reason",
	}, []string{"reason"})
	WsStreams = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "messenger_ws_streams",
		Help: "Current number of open inbound websocket streams",
	})
	HttpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
	HttpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

func init() {
	prometheus.MustRegister(RegistryEntries, StaleEvictions, MessagesDelivered, MessagesReplayed,
		SendFailures, WsStreams, HttpRequestsTotal, HttpRequestDuration)
}

// GinMiddleware 统计基础请求指标，供 Prometheus 拉取。
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		labels := prometheus.Labels{"method": c.Request.Method, "path": path, "status": status}
		HttpRequestsTotal.With(labels).Inc()
		HttpRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	}
}
