package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	xerrors "omni-agent/internal/errors"
)

// Config 重试配置
type Config struct {
	Enabled         bool
	MaxRetries      int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	ExponentialBase float64
	// ShouldRetry 为 nil 时所有错误都会重试
	ShouldRetry func(err error) bool
}

// DefaultConfig 默认重试配置（指数退避）
func DefaultConfig() *Config {
	return &Config{
		Enabled:         true,
		MaxRetries:      3,
		InitialDelay:    time.Second,
		MaxDelay:        60 * time.Second,
		ExponentialBase: 2.0,
	}
}

// Fixed 固定间隔重试，attempts 为总尝试次数（含首次）
func Fixed(attempts int, delay time.Duration) *Config {
	if attempts < 1 {
		attempts = 1
	}
	return &Config{
		Enabled:         true,
		MaxRetries:      attempts - 1,
		InitialDelay:    delay,
		MaxDelay:        delay,
		ExponentialBase: 1.0,
	}
}

// Attempts 返回总尝试次数
func (c *Config) Attempts() int {
	if c == nil || !c.Enabled {
		return 1
	}
	return c.MaxRetries + 1
}

// ExhaustedError 重试耗尽错误
type ExhaustedError struct {
	LastError error
	Attempts  int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry failed after %d attempts: %v", e.Attempts, e.LastError)
}

// Unwrap 先暴露 RETRIES_EXHAUSTED，使 CodeOf 优先取到耗尽错误码
func (e *ExhaustedError) Unwrap() []error {
	return []error{xerrors.New(xerrors.CodeRetriesExhausted, e.Error()), e.LastError}
}

// OnRetryFunc 重试回调函数类型
type OnRetryFunc func(err error, attempt int)

// CalculateDelay 计算第 attempt 次失败后的等待时间
func (c *Config) CalculateDelay(attempt int) time.Duration {
	base := c.ExponentialBase
	if base <= 0 {
		base = 1
	}
	delay := float64(c.InitialDelay) * math.Pow(base, float64(attempt))
	if c.MaxDelay > 0 && delay > float64(c.MaxDelay) {
		delay = float64(c.MaxDelay)
	}
	return time.Duration(delay)
}

// Do 执行带重试的函数
func Do[T any](ctx context.Context, cfg *Config, fn func() (T, error), onRetry OnRetryFunc) (T, error) {
	var zero T
	var lastErr error

	if cfg == nil {
		cfg = DefaultConfig()
	}

	if !cfg.Enabled {
		return fn()
	}

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}

		lastErr = err

		// context 取消不重试
		if errors.Is(err, context.Canceled) {
			return zero, err
		}
		if cfg.ShouldRetry != nil && !cfg.ShouldRetry(err) {
			return zero, err
		}

		if attempt >= cfg.MaxRetries {
			return zero, &ExhaustedError{LastError: lastErr, Attempts: attempt + 1}
		}

		delay := cfg.CalculateDelay(attempt)

		if onRetry != nil {
			onRetry(err, attempt+1)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	return zero, lastErr
}
