package agent

import (
	"testing"
	"time"

	"github.com/Luigik28/rizzo-trading-agent/internal/ai"
	"github.com/Luigik28/rizzo-trading-agent/internal/pkg/circuit"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_ProviderBreakerAndAttempts(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveBreaker("openai", circuit.StateOpen)
	m.ObserveBreaker("chat", circuit.StateClosed)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.breakerState.WithLabelValues("openai")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.breakerState.WithLabelValues("chat")))

	m.ObserveBreaker("openai", circuit.StateHalfOpen)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.breakerState.WithLabelValues("openai")))

	m.ObserveAttempt("chat", ai.OutcomeSuccess, time.Second)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.attempts.WithLabelValues("chat", "success")))

	var nilMetrics *Metrics
	nilMetrics.ObserveBreaker("openai", circuit.StateOpen)
}
