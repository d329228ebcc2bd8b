package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Common rate limiter errors.
var (
	ErrRateLimited = errors.New("rate limit exceeded")
)

// RateLimiterConfig configures a rate limiter.
type RateLimiterConfig struct {
	// Name identifies this rate limiter for metrics/logging.
	Name string `yaml:"name" mapstructure:"name"`
	// Rate is the number of cost units replenished per second.
	Rate float64 `yaml:"rate" mapstructure:"rate"`
	// Burst is the bucket capacity. A single admission can never cost more.
	Burst int `yaml:"burst" mapstructure:"burst"`
	// DefaultCost is charged by Wait and Allow. Defaults to 1.
	DefaultCost int `yaml:"default_cost" mapstructure:"default_cost"`
	// OnLimit is called when an admission has to wait for tokens.
	OnLimit func(name string, wait time.Duration) `yaml:"-" mapstructure:"-"`
}

// DefaultRateLimiterConfig returns sensible defaults.
func DefaultRateLimiterConfig(name string) RateLimiterConfig {
	return RateLimiterConfig{
		Name:        name,
		Rate:        10.0, // 10 units per second
		Burst:       20,   // Allow bursts up to 20
		DefaultCost: 1,
	}
}

// RateLimiter is a token bucket admission gate where each request is
// charged a cost. It is safe for concurrent use.
type RateLimiter struct {
	config  RateLimiterConfig
	limiter *rate.Limiter
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.Rate <= 0 {
		config.Rate = 10.0
	}
	if config.Burst <= 0 {
		config.Burst = max(int(config.Rate), 1)
	}
	if config.DefaultCost <= 0 {
		config.DefaultCost = 1
	}

	return &RateLimiter{
		config:  config,
		limiter: rate.NewLimiter(rate.Limit(config.Rate), config.Burst),
	}
}

// Allow checks if a request of the default cost is allowed without blocking.
func (rl *RateLimiter) Allow() bool {
	return rl.AllowN(rl.config.DefaultCost)
}

// AllowN checks if a request costing n is allowed without blocking.
func (rl *RateLimiter) AllowN(n int) bool {
	if rl.limiter.AllowN(time.Now(), n) {
		return true
	}
	if rl.config.OnLimit != nil {
		rl.config.OnLimit(rl.config.Name, 0)
	}
	return false
}

// Wait blocks until a request of the default cost is admitted or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	return rl.WaitN(ctx, rl.config.DefaultCost)
}

// WaitN blocks until a request costing n is admitted or ctx is done.
// A cost larger than the burst can never be admitted and fails immediately.
func (rl *RateLimiter) WaitN(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}
	if n > rl.config.Burst {
		return fmt.Errorf("%w: cost %d exceeds burst %d of limiter %q", ErrRateLimited, n, rl.config.Burst, rl.config.Name)
	}

	r := rl.limiter.ReserveN(time.Now(), n)
	if !r.OK() {
		return fmt.Errorf("%w: limiter %q cannot admit cost %d", ErrRateLimited, rl.config.Name, n)
	}

	delay := r.Delay()
	if delay <= 0 {
		return nil
	}
	if rl.config.OnLimit != nil {
		rl.config.OnLimit(rl.config.Name, delay)
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ExecuteWait blocks until the default cost is admitted, then runs fn.
func (rl *RateLimiter) ExecuteWait(ctx context.Context, fn func() error) error {
	if err := rl.Wait(ctx); err != nil {
		return err
	}
	return fn()
}

// Tokens returns the current number of available tokens.
func (rl *RateLimiter) Tokens() float64 {
	return rl.limiter.Tokens()
}

// Rate returns the replenish rate in cost units per second.
func (rl *RateLimiter) Rate() float64 {
	return rl.config.Rate
}

// Burst returns the burst size.
func (rl *RateLimiter) Burst() int {
	return rl.config.Burst
}

// DefaultCost returns the cost charged by Wait and Allow.
func (rl *RateLimiter) DefaultCost() int {
	return rl.config.DefaultCost
}

// Name returns the limiter name.
func (rl *RateLimiter) Name() string {
	return rl.config.Name
}
