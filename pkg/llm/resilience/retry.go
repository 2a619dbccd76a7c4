package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/kart-io/logger"
)

// RetryConfig 重试配置。
type RetryConfig struct {
	// MaxAttempts 总尝试次数，含首次
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// Jitter 随机抖动比例，0 表示固定间隔
	Jitter float64
	// Retryable 为 nil 时使用 IsRetryableError
	Retryable func(error) bool
}

func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.2,
	}
}

func (c *RetryConfig) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.InitialDelay
	b.RandomizationFactor = c.Jitter
	b.Multiplier = c.Multiplier
	if b.Multiplier < 1 {
		b.Multiplier = 1
	}
	if c.MaxDelay > 0 {
		b.MaxInterval = c.MaxDelay
	}
	return b
}

// RetryWithBackoff 以指数退避重试 fn，不可重试的错误立即返回，
// 等待期间 ctx 取消则返回 ctx 的错误。
func RetryWithBackoff(ctx context.Context, config *RetryConfig, fn func() error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}
	retryable := config.Retryable
	if retryable == nil {
		retryable = IsRetryableError
	}
	attempts := max(config.MaxAttempts, 1)

	_, err := backoff.Retry[struct{}](ctx, func() (struct{}, error) {
		if err := fn(); err != nil {
			if !retryable(err) {
				return struct{}{}, backoff.Permanent(err)
			}
			return struct{}{}, err
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(config.backOff()),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Debugw("retrying llm call", "delay", next, "error", err.Error())
		}),
	)
	if err == nil || ctx.Err() != nil || !retryable(err) {
		return err
	}
	return fmt.Errorf("max retry attempts (%d) reached: %w", attempts, err)
}

// RetryWithCircuitBreaker 每次尝试都经过熔断器。
func RetryWithCircuitBreaker(ctx context.Context, retryConfig *RetryConfig, cb *CircuitBreaker, fn func() error) error {
	return RetryWithBackoff(ctx, retryConfig, func() error {
		return cb.Execute(fn)
	})
}
