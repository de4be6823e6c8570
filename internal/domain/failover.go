package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/davidbz/polyglot/internal/observability"
)

// FailoverConfig bounds the retry loop.
type FailoverConfig struct {
	Cooldown      time.Duration `env:"FAILOVER_COOLDOWN"       envDefault:"24h"`
	RetryInterval time.Duration `env:"FAILOVER_RETRY_INTERVAL" envDefault:"2s"`
	MaxAttempts   int           `env:"FAILOVER_MAX_ATTEMPTS"   envDefault:"10"`
}

// DefaultFailoverConfig returns the production defaults.
func DefaultFailoverConfig() FailoverConfig {
	return FailoverConfig{
		Cooldown:      24 * time.Hour,
		RetryInterval: 2 * time.Second,
		MaxAttempts:   10,
	}
}

// Backoff decides how long to wait before the next attempt.
type Backoff interface {
	Next(attempt int) time.Duration
}

// FixedBackoff waits the same interval before every attempt.
type FixedBackoff struct {
	Interval time.Duration
}

// Next returns the fixed interval.
func (b FixedBackoff) Next(int) time.Duration {
	return b.Interval
}

// Sleeper blocks for a duration or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// TimerSleeper sleeps on a real timer.
type TimerSleeper struct{}

// Sleep waits for d or returns ctx.Err() if ctx ends first.
func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// LoopResult is the terminal state of one failover run.
type LoopResult struct {
	Status   Status
	Result   *LLMCallResult
	Err      error
	Provider *Provider
	Model    string
	Attempts int
}

// FailoverController drives an executor until it succeeds, hits a fatal
// error, runs out of providers or exhausts its attempts.
type FailoverController struct {
	maxAttempts int
	backoff     Backoff
	sleeper     Sleeper
	publisher   EventPublisher
	metrics     *observability.Metrics
}

// ControllerOption customizes a FailoverController.
type ControllerOption func(*FailoverController)

// WithBackoff overrides the fixed retry interval.
func WithBackoff(b Backoff) ControllerOption {
	return func(c *FailoverController) { c.backoff = b }
}

// WithSleeper overrides the real timer.
func WithSleeper(s Sleeper) ControllerOption {
	return func(c *FailoverController) { c.sleeper = s }
}

// NewFailoverController creates a controller from cfg.
func NewFailoverController(
	cfg FailoverConfig,
	publisher EventPublisher,
	metrics *observability.Metrics,
	opts ...ControllerOption,
) *FailoverController {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	c := &FailoverController{
		maxAttempts: maxAttempts,
		backoff:     FixedBackoff{Interval: cfg.RetryInterval},
		sleeper:     TimerSleeper{},
		publisher:   publisher,
		metrics:     metrics,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run selects a provider and calls it, switching providers on rate limits.
// The returned result always carries a terminal status.
func (c *FailoverController) Run(ctx context.Context, exec *CallExecutor, params CallParams) *LoopResult {
	logger := observability.FromContext(ctx)
	res := &LoopResult{Status: StatusStarted}

	if err := exec.SelectProvider(ctx); err != nil {
		return c.fail(ctx, res, err)
	}

	for {
		res.Attempts++
		res.Provider = exec.Provider()
		res.Model = exec.Model()

		result, err := exec.Call(ctx, params)

		switch ClassifyError(err) {
		case KindNone:
			res.Status = StatusCompleted
			res.Result = result
			return res

		case KindRateLimited:
			if res.Attempts >= c.maxAttempts {
				return c.fail(ctx, res, fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, res.Attempts, err))
			}

			c.onRetry(ctx, res, err)

			if selErr := exec.SelectProvider(ctx); selErr != nil {
				return c.fail(ctx, res, selErr)
			}

			wait := c.backoff.Next(res.Attempts)
			logger.Info("retrying with another provider",
				observability.String("next_provider", exec.Provider().Name),
				observability.String("next_model", exec.Model()),
				observability.Duration("wait", wait),
				observability.Int("attempt", res.Attempts))

			if sleepErr := c.sleeper.Sleep(ctx, wait); sleepErr != nil {
				return c.fail(ctx, res, fmt.Errorf("retry wait interrupted: %w", sleepErr))
			}

		default:
			return c.fail(ctx, res, err)
		}
	}
}

func (c *FailoverController) onRetry(ctx context.Context, res *LoopResult, err error) {
	providerName := ""
	if res.Provider != nil {
		providerName = res.Provider.Name
	}

	c.metrics.IncFailover(providerName)

	if c.publisher != nil {
		c.publisher.Publish(ctx, "provider.rate_limited", map[string]interface{}{
			"provider": providerName,
			"model":    res.Model,
			"attempt":  res.Attempts,
			"error":    err.Error(),
		})
	}
}

func (c *FailoverController) fail(ctx context.Context, res *LoopResult, err error) *LoopResult {
	res.Status = StatusFailed
	res.Err = err

	observability.FromContext(ctx).Error("translation loop failed",
		observability.Error(err),
		observability.String("kind", ClassifyError(err).String()),
		observability.Int("attempts", res.Attempts))

	return res
}
