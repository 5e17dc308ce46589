package adapter

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 记录请求结果、在途数量与连接状态。
type Metrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	pending  prometheus.Gauge
	state    prometheus.Gauge
	ignored  *prometheus.CounterVec
	drained  prometheus.Counter
}

// NewMetrics 在注册器中注册适配器指标。
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wallet_adapter",
			Name:      "requests_total",
			Help:      "Wallet requests by method and outcome",
		}, []string{"method", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "wallet_adapter",
			Name:      "request_latency_ms",
			Help:      "Round trip latency of wallet requests in milliseconds",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 30000, 120000},
		}, []string{"method"}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wallet_adapter",
			Name:      "pending_requests",
			Help:      "Requests awaiting a wallet response",
		}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wallet_adapter",
			Name:      "connection_state",
			Help:      "0=disconnected 1=connecting 2=connected",
		}),
		ignored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wallet_adapter",
			Name:      "ignored_messages_total",
			Help:      "Inbound messages dropped before reaching the state machine",
		}, []string{"reason"}),
		drained: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wallet_adapter",
			Name:      "drained_requests_total",
			Help:      "Pending requests rejected by a disconnect",
		}),
	}
	reg.MustRegister(m.requests, m.latency, m.pending, m.state, m.ignored, m.drained)
	return m
}

func (m *Metrics) observeRequest(method, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, outcome).Inc()
	m.latency.WithLabelValues(method).Observe(float64(d.Microseconds()) / 1000)
}

func (m *Metrics) setPending(n int) {
	if m == nil {
		return
	}
	m.pending.Set(float64(n))
}

func (m *Metrics) setState(s State) {
	if m == nil {
		return
	}
	m.state.Set(float64(s))
}

func (m *Metrics) incIgnored(reason string) {
	if m == nil {
		return
	}
	m.ignored.WithLabelValues(reason).Inc()
}

func (m *Metrics) addDrained(n int) {
	if m == nil || n == 0 {
		return
	}
	m.drained.Add(float64(n))
}
