// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector holds every Prometheus vector the relay records against.
type Collector struct {
	// HTTP 指标: the relay's own listener, not the origin.
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Body pipeline 指标
	bodyChunksReceived *prometheus.CounterVec
	bodyBytesReceived  *prometheus.CounterVec
	bodyChunksEmitted  *prometheus.CounterVec
	bodyBytesEmitted   *prometheus.CounterVec
	bodyQueueDepth     *prometheus.GaugeVec
	bodyTerminations   *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests served by the relay listener",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Body pipeline 指标
	c.bodyChunksReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "body_chunks_received_total",
			Help:      "Total chunks received from the origin, per origin",
		},
		[]string{"origin"},
	)

	c.bodyBytesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "body_bytes_received_total",
			Help:      "Total bytes received from the origin, per origin",
		},
		[]string{"origin"},
	)

	c.bodyChunksEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "body_chunks_emitted_total",
			Help:      "Total chunks emitted to downstream subscribers, per origin",
		},
		[]string{"origin"},
	)

	c.bodyBytesEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "body_bytes_emitted_total",
			Help:      "Total bytes emitted to downstream subscribers, per origin",
		},
		[]string{"origin"},
	)

	c.bodyQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "body_queue_depth_chunks",
			Help:      "Chunks currently buffered awaiting a subscriber or demand",
		},
		[]string{"origin"},
	)

	c.bodyTerminations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "body_terminations_total",
			Help:      "Total producers reaching a terminal state, by outcome",
		},
		[]string{"origin", "outcome"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// =============================================================================
// 🌊 Body pipeline 指标记录
// =============================================================================

// RecordChunkReceived records one chunk arriving from the origin.
func (c *Collector) RecordChunkReceived(origin string, bytes int) {
	c.bodyChunksReceived.WithLabelValues(origin).Inc()
	c.bodyBytesReceived.WithLabelValues(origin).Add(float64(bytes))
}

// RecordChunkEmitted records one chunk delivered to a subscriber.
func (c *Collector) RecordChunkEmitted(origin string, bytes int) {
	c.bodyChunksEmitted.WithLabelValues(origin).Inc()
	c.bodyBytesEmitted.WithLabelValues(origin).Add(float64(bytes))
}

// SetQueueDepth records the producer's current queue depth in chunks.
func (c *Collector) SetQueueDepth(origin string, depth int64) {
	c.bodyQueueDepth.WithLabelValues(origin).Set(float64(depth))
}

// RecordTermination records a producer reaching COMPLETED or TERMINATED.
// outcome is expected to be "completed" or "terminated".
func (c *Collector) RecordTermination(origin, outcome string) {
	c.bodyTerminations.WithLabelValues(origin, outcome).Inc()
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
