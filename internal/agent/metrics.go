package agent

import (
	"errors"
	"time"

	"github.com/Luigik28/rizzo-trading-agent/internal/ai"
	"github.com/Luigik28/rizzo-trading-agent/internal/pkg/circuit"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 周期与提供方调用的 Prometheus 指标；同时实现 ai.Observer。
type Metrics struct {
	cycles        *prometheus.CounterVec
	stageFailures *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	attempts      *prometheus.CounterVec
	attemptTime   *prometheus.HistogramVec
	decisions     *prometheus.CounterVec
	breakerState  *prometheus.GaugeVec
}

// NewMetrics 在 reg 上注册指标；reg 为 nil 时使用默认注册表。
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		cycles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rizzo_cycles_total",
				Help: "Total number of decision cycles by result",
			},
			[]string{"result"},
		),
		stageFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rizzo_stage_failures_total",
				Help: "Cycle failures by stage and error kind",
			},
			[]string{"stage", "kind"},
		),
		cycleDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rizzo_cycle_duration_seconds",
				Help:    "Duration of decision cycles in seconds",
				Buckets: []float64{1, 2.5, 5, 10, 20, 30, 60, 120, 300},
			},
		),
		attempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rizzo_provider_attempts_total",
				Help: "Model provider attempts by outcome",
			},
			[]string{"provider", "outcome"},
		),
		attemptTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rizzo_provider_request_duration_seconds",
				Help:    "Duration of model provider requests in seconds",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
			},
			[]string{"provider"},
		),
		decisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rizzo_decisions_total",
				Help: "Validated decisions by operation and symbol",
			},
			[]string{"operation", "symbol"},
		),
		breakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rizzo_provider_breaker_state",
				Help: "Circuit breaker state per provider (0=closed, 1=open, 2=half-open)",
			},
			[]string{"provider"},
		),
	}
}

func (m *Metrics) ObserveAttempt(providerID string, outcome ai.Outcome, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(providerID, string(outcome)).Inc()
	if elapsed > 0 {
		m.attemptTime.WithLabelValues(providerID).Observe(elapsed.Seconds())
	}
}

func (m *Metrics) ObserveBreaker(providerID string, state circuit.State) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(providerID).Set(float64(state))
}

func (m *Metrics) observeCycle(err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.cycleDuration.Observe(elapsed.Seconds())
	if err == nil {
		m.cycles.WithLabelValues("success").Inc()
		return
	}
	m.cycles.WithLabelValues("failure").Inc()
	var se *StageError
	if errors.As(err, &se) {
		m.stageFailures.WithLabelValues(string(se.Stage), se.Kind()).Inc()
	}
}

func (m *Metrics) observeDecision(operation, symbol string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(operation, symbol).Inc()
}

var (
	_ ai.Observer        = (*Metrics)(nil)
	_ ai.BreakerObserver = (*Metrics)(nil)
)
