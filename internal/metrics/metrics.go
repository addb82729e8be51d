package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "miniswap"

// Metrics holds the collectors for actions, reads and quotes. A nil *Metrics
// records nothing.
type Metrics struct {
	Transitions    *prometheus.CounterVec
	Outcomes       *prometheus.CounterVec
	ActionDuration *prometheus.HistogramVec
	Quotes         *prometheus.CounterVec
	ReserveReads   *prometheus.CounterVec
	HeadBlock      prometheus.Gauge
}

// New creates the collectors and registers them with reg when it is not nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "action_transitions_total",
			Help:      "State transitions of pending actions.",
		}, []string{"intent", "state"}),
		Outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "action_outcomes_total",
			Help:      "Terminal outcomes of pending actions by error kind.",
		}, []string{"intent", "state", "kind"}),
		ActionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "action_duration_seconds",
			Help:      "Time from submission of a form to its terminal state.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"intent", "state"}),
		Quotes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_total",
			Help:      "Published quotes by status.",
		}, []string{"status"}),
		ReserveReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reserve_reads_total",
			Help:      "Reserve reads by result.",
		}, []string{"result"}),
		HeadBlock: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "head_block",
			Help:      "Latest block the reserve snapshot was refreshed at.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Transitions, m.Outcomes, m.ActionDuration, m.Quotes, m.ReserveReads, m.HeadBlock)
	}
	return m
}

func (m *Metrics) ObserveTransition(intent string, state string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(intent, state).Inc()
}

func (m *Metrics) ObserveOutcome(intent string, state string, kind string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "none"
	}
	m.Outcomes.WithLabelValues(intent, state, kind).Inc()
	m.ActionDuration.WithLabelValues(intent, state).Observe(elapsed.Seconds())
}

// ObserveQuote counts a published quote by its status name.
func (m *Metrics) ObserveQuote(status string) {
	if m == nil {
		return
	}
	m.Quotes.WithLabelValues(status).Inc()
}

// ObserveReserveRead counts a reserve read.
func (m *Metrics) ObserveReserveRead(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ReserveReads.WithLabelValues(result).Inc()
}

// ObserveHead records the block of the latest reserve refresh.
func (m *Metrics) ObserveHead(block uint64) {
	if m == nil {
		return
	}
	m.HeadBlock.Set(float64(block))
}
