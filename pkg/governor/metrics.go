package governor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks admission-control outcomes.
//
// Metrics:
//   - creditguard_admission_decisions_total: Admission decisions by tier and outcome
//   - creditguard_admission_denials_total: Denials by tier and reason code
//   - creditguard_usage_recorded_tokens_total: Tokens committed to the ledger by tier and model
//   - creditguard_usage_recorded_cost_usd_total: USD cost committed to the ledger by tier and model
//   - creditguard_breaker_trips_total: Circuit breaker trips by tier and trigger
//   - creditguard_breaker_active: Whether the breaker is currently open
type Metrics struct {
	decisions     *prometheus.CounterVec
	denials       *prometheus.CounterVec
	tokens        *prometheus.CounterVec
	cost          *prometheus.CounterVec
	breakerTrips  *prometheus.CounterVec
	breakerActive *prometheus.GaugeVec
}

// NewMetrics creates governor metrics registered on the given registerer.
// Pass prometheus.DefaultRegisterer in production; tests that construct
// multiple governors should pass a fresh prometheus.NewRegistry per test
// or leave the governor's metrics nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		decisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "creditguard_admission_decisions_total",
				Help: "Total admission decisions by tier and outcome",
			},
			[]string{"tier", "outcome"},
		),
		denials: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "creditguard_admission_denials_total",
				Help: "Total admission denials by tier and reason code",
			},
			[]string{"tier", "reason"},
		),
		tokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "creditguard_usage_recorded_tokens_total",
				Help: "Total tokens committed to the usage ledger",
			},
			[]string{"tier", "model"},
		),
		cost: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "creditguard_usage_recorded_cost_usd_total",
				Help: "Total estimated USD cost committed to the usage ledger",
			},
			[]string{"tier", "model"},
		),
		breakerTrips: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "creditguard_breaker_trips_total",
				Help: "Total circuit breaker trips by trigger",
			},
			[]string{"tier", "trigger"},
		),
		breakerActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "creditguard_breaker_active",
				Help: "Whether the circuit breaker is currently open (1) or closed (0)",
			},
			[]string{"tier"},
		),
	}
}

func (m *Metrics) recordDecision(tier string, allowed bool, reason string) {
	if m == nil {
		return
	}
	outcome := "allowed"
	if !allowed {
		outcome = "denied"
		m.denials.WithLabelValues(tier, reason).Inc()
	}
	m.decisions.WithLabelValues(tier, outcome).Inc()
}

func (m *Metrics) recordUsage(tier, model string, tokens int64, cost float64) {
	if m == nil {
		return
	}
	m.tokens.WithLabelValues(tier, model).Add(float64(tokens))
	m.cost.WithLabelValues(tier, model).Add(cost)
}

func (m *Metrics) recordTrip(tier, trigger string) {
	if m == nil {
		return
	}
	m.breakerTrips.WithLabelValues(tier, trigger).Inc()
}

func (m *Metrics) setBreakerActive(tier string, active bool) {
	if m == nil {
		return
	}
	v := 0.0
	if active {
		v = 1.0
	}
	m.breakerActive.WithLabelValues(tier).Set(v)
}
