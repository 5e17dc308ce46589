package ledger

import "github.com/prometheus/client_golang/prometheus"

// Metrics 记录 blockhash 缓存与交易确认的关键指标。
type Metrics struct {
	blockhashLookups  *prometheus.CounterVec
	blockhashFailures prometheus.Counter
	submitTotal       *prometheus.CounterVec
	confirmPolls      prometheus.Counter
	confirmOutcomes   *prometheus.CounterVec
}

// NewMetrics 构造 Metrics，reg 为空则注册到默认注册器。
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		blockhashLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_blockhash_lookups_total",
			Help: "Recent blockhash lookups by cache result",
		}, []string{"result"}),
		blockhashFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_blockhash_refresh_fail_total",
			Help: "Failed recent blockhash refreshes",
		}),
		submitTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_submit_total",
			Help: "Submitted transactions by outcome",
		}, []string{"outcome"}),
		confirmPolls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_confirm_polls_total",
			Help: "Signature status polls issued while confirming",
		}),
		confirmOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_confirm_outcomes_total",
			Help: "Confirmation results by outcome",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.blockhashLookups, m.blockhashFailures, m.submitTotal, m.confirmPolls, m.confirmOutcomes)
	return m
}

func (m *Metrics) incLookup(result string) {
	if m == nil {
		return
	}
	m.blockhashLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) incRefreshFailure() {
	if m == nil {
		return
	}
	m.blockhashFailures.Inc()
}

func (m *Metrics) incSubmit(outcome string) {
	if m == nil {
		return
	}
	m.submitTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) incPoll() {
	if m == nil {
		return
	}
	m.confirmPolls.Inc()
}

func (m *Metrics) incConfirm(outcome string) {
	if m == nil {
		return
	}
	m.confirmOutcomes.WithLabelValues(outcome).Inc()
}
