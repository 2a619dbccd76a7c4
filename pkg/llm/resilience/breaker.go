// Package resilience 为嵌入与对话后端提供重试和熔断。
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kart-io/logger"
)

// CircuitBreakerConfig 熔断器配置。
type CircuitBreakerConfig struct {
	// MaxFailures 连续失败次数阈值
	MaxFailures int
	// Timeout 打开后等待多久放行探测
	Timeout time.Duration
	// HalfOpenMaxCalls 半开时放行的探测数，全部成功才关闭
	HalfOpenMaxCalls int
}

func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{MaxFailures: 5, Timeout: 30 * time.Second, HalfOpenMaxCalls: 1}
}

// State 熔断器状态，数值用于指标。
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

var stateNames = [...]string{StateClosed: "closed", StateOpen: "open", StateHalfOpen: "half-open"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// ErrCircuitBreakerOpen 后端被熔断，调用未发出。
var ErrCircuitBreakerOpen = errors.New("circuit breaker is open")

// BreakerStats 熔断器快照，出现在 /embeddings/stats。
type BreakerStats struct {
	Name            string    `json:"name"`
	State           string    `json:"state"`
	Failures        int       `json:"failures"`
	LastFailureTime time.Time `json:"last_failure_time,omitempty"`
}

// CircuitBreaker 按连续失败计数的熔断器。
type CircuitBreaker struct {
	name   string
	config *CircuitBreakerConfig
	now    func() time.Time

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
	// 半开期间已放行与已成功的探测数
	trials, trialOK int
}

func NewCircuitBreaker(name string, config *CircuitBreakerConfig) *CircuitBreaker {
	if config == nil {
		config = DefaultCircuitBreakerConfig()
	}
	return &CircuitBreaker{name: name, config: config, now: time.Now}
}

// Execute 经熔断器调用 fn。调用方取消不计为失败。
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn()
	cb.record(err)
	return err
}

// transition 切换状态并清理半开计数，调用方持有锁。
func (cb *CircuitBreaker) transition(to State) {
	if cb.state == to {
		return
	}
	logger.Infow("circuit breaker state changed", "breaker", cb.name, "from", cb.state.String(), "to", to.String(), "failures", cb.failures)
	cb.state = to
	cb.trials, cb.trialOK = 0, 0
	if to == StateClosed {
		cb.failures = 0
	}
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if cb.now().Sub(cb.lastFailure) < cb.config.Timeout {
			return ErrCircuitBreakerOpen
		}
		cb.transition(StateHalfOpen)
	}
	if cb.state == StateHalfOpen {
		if cb.trials >= cb.config.HalfOpenMaxCalls {
			return ErrCircuitBreakerOpen
		}
		cb.trials++
	}
	return nil
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch {
	case errors.Is(err, context.Canceled):
		// 归还探测名额
		if cb.state == StateHalfOpen && cb.trials > 0 {
			cb.trials--
		}
	case err != nil:
		cb.failures++
		cb.lastFailure = cb.now()
		if cb.state == StateHalfOpen || cb.failures >= cb.config.MaxFailures {
			cb.transition(StateOpen)
		}
	case cb.state == StateHalfOpen:
		cb.trialOK++
		if cb.trialOK >= cb.config.HalfOpenMaxCalls {
			cb.transition(StateClosed)
		}
	default:
		cb.failures = 0
	}
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Stats() BreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return BreakerStats{Name: cb.name, State: cb.state.String(), Failures: cb.failures, LastFailureTime: cb.lastFailure}
}

// Reset 强制关闭。
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transition(StateClosed)
	cb.failures = 0
}
