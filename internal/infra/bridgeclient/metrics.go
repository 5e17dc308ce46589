package bridgeclient

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 暴露 open_windows / frames_total / open_latency_ms / popup_blocked_total。
type Metrics struct {
	openWindows  prometheus.Gauge
	frames       *prometheus.CounterVec
	openLatency  prometheus.Histogram
	popupBlocked *prometheus.CounterVec
}

// NewMetrics 在注册器中注册桥接指标。
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		openWindows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wallet_adapter",
			Subsystem: "bridge",
			Name:      "open_windows",
			Help:      "Number of bridged wallet windows currently open",
		}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wallet_adapter",
			Subsystem: "bridge",
			Name:      "frames_total",
			Help:      "Bridge frames sent and received",
		}, []string{"direction"}),
		openLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "wallet_adapter",
			Subsystem: "bridge",
			Name:      "open_latency_ms",
			Help:      "Time to dial the bridge and open a window stream in milliseconds",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 200, 500, 1000, 2000},
		}),
		popupBlocked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wallet_adapter",
			Subsystem: "bridge",
			Name:      "popup_blocked_total",
			Help:      "Window opens refused by the bridge host",
		}, []string{"reason"}),
	}
	reg.MustRegister(m.openWindows, m.frames, m.openLatency, m.popupBlocked)
	return m
}

func (m *Metrics) setOpen(n int) {
	m.openWindows.Set(float64(n))
}

func (m *Metrics) incFrame(direction string) {
	m.frames.WithLabelValues(direction).Inc()
}

func (m *Metrics) observeOpen(d time.Duration) {
	m.openLatency.Observe(d.Seconds() * 1000)
}

func (m *Metrics) incBlocked(reason string) {
	m.popupBlocked.WithLabelValues(reason).Inc()
}
