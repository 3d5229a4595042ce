package httpx

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
)

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	breaker := NewCircuitBreaker("api", 30*time.Second, 2)
	wrapper, _ := breaker.(*circuitBreakerWrapper) //nolint:errcheck

	for i := 0; i < 2; i++ {
		err := breaker.Execute(func() error { return errors.New("connection refused") })
		assert.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, wrapper.breaker.State())

	called := false
	err := breaker.Execute(func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.False(t, called, "open breaker must not reach the upstream")
}

func TestCircuitBreaker_ErrorWrapping(t *testing.T) {
	breaker := NewCircuitBreaker("frontend", 30*time.Second, 3)
	original := errors.New("original error")

	err := breaker.Execute(func() error { return original })

	assert.ErrorIs(t, err, original)
	assert.Contains(t, err.Error(), "breaker (frontend)")
}

func TestCircuitBreaker_Recovers(t *testing.T) {
	breaker := NewCircuitBreaker("recovery", 50*time.Millisecond, 1)

	assert.Error(t, breaker.Execute(func() error { return errors.New("trigger") }))
	time.Sleep(100 * time.Millisecond)
	assert.NoError(t, breaker.Execute(func() error { return nil }))
}

func TestBreakerSet_Execute(t *testing.T) {
	set := NewBreakerSet([]string{"api"}, 30*time.Second, 1)

	assert.Error(t, set.Execute("api", func() error { return errors.New("down") }))
	err := set.Execute("api", func() error { return nil })
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)

	// upstreams without a breaker run directly
	assert.NoError(t, set.Execute("frontend", func() error { return nil }))

	var nilSet *BreakerSet
	assert.NoError(t, nilSet.Execute("api", func() error { return nil }))
}
