// Package metrics 定義帳本服務的 Prometheus 指標，註冊於私有 Registry。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ledger"

// 帳本操作結果標籤。
const (
	OutcomeOK        = "ok"
	OutcomeRejected  = "rejected"
	OutcomeViolation = "violation"
	OutcomeConflict  = "conflict"
	OutcomeError     = "error"
)

// Metrics 保存單一伺服器實例的所有 collector。
type Metrics struct {
	Registry *prometheus.Registry

	operations  *prometheus.CounterVec
	transferred prometheus.Counter
	events      prometheus.Counter
	httpReqs    *prometheus.CounterVec
	httpLatency *prometheus.HistogramVec
}

// New 建立並註冊所有指標。
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Ledger state transitions by operation and outcome.",
		}, []string{"operation", "outcome"}),
		transferred: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transferred_units_total",
			Help:      "Units moved by committed transfers.",
		}),
		events: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Events appended to the event log.",
		}),
		httpReqs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "path", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"method", "path"}),
	}
	m.Registry.MustRegister(
		m.operations, m.transferred, m.events, m.httpReqs, m.httpLatency,
		collectors.NewGoCollector(),
	)
	return m
}

// Operation 記錄一次狀態轉移結果。
func (m *Metrics) Operation(op, outcome string) {
	m.operations.WithLabelValues(op, outcome).Inc()
}

// Transferred 累計已提交轉帳的金額。
func (m *Metrics) Transferred(amount uint64) {
	m.transferred.Add(float64(amount))
}

// Events 累計附加到日誌的事件數。
func (m *Metrics) Events(n int) {
	m.events.Add(float64(n))
}

// HTTPRequest 記錄一次 HTTP 請求。
func (m *Metrics) HTTPRequest(method, path, status string, d time.Duration) {
	m.httpReqs.WithLabelValues(method, path, status).Inc()
	m.httpLatency.WithLabelValues(method, path).Observe(d.Seconds())
}

// Handler 回傳 /metrics 端點。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
