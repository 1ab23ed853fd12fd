package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreaker_Lifecycle(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker("openai", 2, time.Minute)
	cb.nowFn = func() time.Time { return now }

	assert.True(t, cb.Allow())
	cb.RecordFailure()
	assert.Equal(t, StateClosed, cb.State())
	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())

	now = now.Add(2 * time.Minute)
	assert.True(t, cb.Allow())
	assert.Equal(t, StateHalfOpen, cb.State())

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())

	now = now.Add(2 * time.Minute)
	assert.True(t, cb.Allow())
	cb.RecordSuccess()
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_Disabled(t *testing.T) {
	cb := NewCircuitBreaker("off", 0, time.Minute)
	for i := 0; i < 5; i++ {
		cb.RecordFailure()
	}
	assert.True(t, cb.Allow())
	assert.Equal(t, StateClosed, cb.State())

	var nilBreaker *CircuitBreaker
	assert.True(t, nilBreaker.Allow())
	nilBreaker.RecordFailure()
}

func TestCircuitBreaker_StateChangeHandler(t *testing.T) {
	cb := NewCircuitBreaker("chat", 1, time.Minute)
	changes := make(chan [2]State, 4)
	cb.SetStateChangeHandler(func(name string, from, to State) {
		assert.Equal(t, "chat", name)
		changes <- [2]State{from, to}
	})

	cb.RecordFailure()
	select {
	case got := <-changes:
		assert.Equal(t, [2]State{StateClosed, StateOpen}, got)
	case <-time.After(time.Second):
		t.Fatal("state change handler not called")
	}
}
