package bridgeclient

import (
	"sync"
	"time"
)

type breakerState string

const (
	stateHealthy breakerState = "healthy"
	stateBlocked breakerState = "blocked"
)

// circuitBreaker 在连续拨号失败后拒绝打开新窗口，相当于浏览器的弹窗拦截。
// 冷却期过后放行一次试探。
type circuitBreaker struct {
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu         sync.Mutex
	state      breakerState
	failures   int
	lastChange time.Time
}

func newCircuitBreaker(threshold int, cooldown time.Duration, now func() time.Time) *circuitBreaker {
	if threshold <= 0 {
		threshold = 1
	}
	if now == nil {
		now = time.Now
	}
	return &circuitBreaker{
		threshold:  threshold,
		cooldown:   cooldown,
		now:        now,
		state:      stateHealthy,
		lastChange: now(),
	}
}

func (cb *circuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == stateHealthy {
		return true
	}
	if cb.now().Sub(cb.lastChange) >= cb.cooldown {
		// 半开：放行，失败一次即重新阻断。
		cb.failures = cb.threshold - 1
		return true
	}
	return false
}

func (cb *circuitBreaker) Success() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	if cb.state != stateHealthy {
		cb.state = stateHealthy
		cb.lastChange = cb.now()
	}
}

func (cb *circuitBreaker) Failure() (tripped bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures++
	if cb.failures >= cb.threshold {
		wasHealthy := cb.state == stateHealthy
		cb.state = stateBlocked
		cb.lastChange = cb.now()
		return wasHealthy
	}
	return false
}

func (cb *circuitBreaker) State() breakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
