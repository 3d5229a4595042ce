package httpx

import (
	"fmt"
	"time"

	"github.com/sony/gobreaker"
)

type CircuitBreaker interface {
	Execute(fn func() error) error
}

type circuitBreakerWrapper struct {
	breaker *gobreaker.CircuitBreaker
}

func NewCircuitBreaker(name string, timeout time.Duration, maxFailures uint32) CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
	}
	return &circuitBreakerWrapper{
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

func (g *circuitBreakerWrapper) Execute(fn func() error) error {
	_, err := g.breaker.Execute(func() (interface{}, error) {
		err := fn()
		if err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("breaker (%s): %w", g.breaker.Name(), err)
	}
	return nil
}

// BreakerSet holds one breaker per upstream. It is built once and only read
// afterwards.
type BreakerSet struct {
	breakers map[string]CircuitBreaker
}

func NewBreakerSet(upstreams []string, timeout time.Duration, maxFailures uint32) *BreakerSet {
	set := &BreakerSet{breakers: make(map[string]CircuitBreaker, len(upstreams))}
	for _, name := range upstreams {
		set.breakers[name] = NewCircuitBreaker(name, timeout, maxFailures)
	}
	return set
}

// Execute runs fn through the upstream's breaker, or directly when there is none.
func (s *BreakerSet) Execute(upstream string, fn func() error) error {
	if s == nil {
		return fn()
	}
	b, ok := s.breakers[upstream]
	if !ok {
		return fn()
	}
	return b.Execute(fn)
}
