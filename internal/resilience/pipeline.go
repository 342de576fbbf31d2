package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/relaypoint/message-relay/internal/domain"
)

// Operation is one logical network call. Implementations must honor ctx
// cancellation and return errors classified as *domain.SendError where the
// failure kind is known; anything else is treated as a network failure.
type Operation[T any] func(ctx context.Context) (T, error)

// Attempt is the ephemeral record of a single attempt within one Execute
// call, passed to the OnAttempt hook for logging and metrics.
type Attempt struct {
	Number  int
	Delay   time.Duration
	Elapsed time.Duration
	Err     error
}

// PipelineConfig configures the per-attempt timeout and the retry stage.
type PipelineConfig struct {
	// AttemptTimeout bounds each individual attempt, not the whole sequence.
	AttemptTimeout time.Duration
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// Backoff computes the delay before each retry.
	Backoff Strategy
	// OnAttempt, if set, is invoked after every attempt.
	OnAttempt func(Attempt)
}

// Pipeline executes an operation under three composed policies, innermost to
// outermost: per-attempt timeout, retry with backoff, circuit breaker. The
// breaker sees retries as part of one logical call: its window records one
// outcome per Execute invocation, and when it is open no attempts are issued.
type Pipeline[T any] struct {
	attemptTimeout time.Duration
	maxRetries     int
	backoff        Strategy
	onAttempt      func(Attempt)
	breaker        *Breaker
}

// NewPipeline creates a pipeline bound to one shared breaker instance.
func NewPipeline[T any](cfg PipelineConfig, breaker *Breaker) *Pipeline[T] {
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 10 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Backoff == nil {
		cfg.Backoff = Exponential{BaseDelay: 500 * time.Millisecond, JitterCeiling: 250 * time.Millisecond}
	}

	return &Pipeline[T]{
		attemptTimeout: cfg.AttemptTimeout,
		maxRetries:     cfg.MaxRetries,
		backoff:        cfg.Backoff,
		onAttempt:      cfg.OnAttempt,
		breaker:        breaker,
	}
}

// Execute runs op under the composed policies. It returns the operation's
// value, or a *domain.SendError carrying the failure kind: circuit_open when
// rejected without an attempt, timeout/network/provider_transient after
// retries are exhausted, or provider_permanent immediately. Caller
// cancellation aborts attempts and backoff waits and surfaces ctx.Err().
func (p *Pipeline[T]) Execute(ctx context.Context, op Operation[T]) (T, error) {
	var zero T

	permit, err := p.breaker.Acquire()
	if err != nil {
		return zero, domain.NewSendError(domain.FailureCircuitOpen, 0, "", err)
	}

	var lastErr *domain.SendError
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		var delay time.Duration
		if attempt > 0 {
			delay = p.backoff.NextDelay(attempt)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				permit.Abandon()
				return zero, ctx.Err()
			case <-timer.C:
			}
		}

		start := time.Now()
		value, err := p.runAttempt(ctx, op)
		p.reportAttempt(Attempt{
			Number:  attempt + 1,
			Delay:   delay,
			Elapsed: time.Since(start),
			Err:     err,
		})

		if err == nil {
			permit.Success()
			return value, nil
		}

		// Caller-initiated cancellation is not a provider-health signal.
		if ctx.Err() != nil {
			permit.Abandon()
			return zero, ctx.Err()
		}

		sendErr := classify(err)
		if !sendErr.Retryable() {
			p.settle(permit, sendErr)
			return zero, sendErr
		}
		lastErr = sendErr
	}

	p.settle(permit, lastErr)
	return zero, lastErr
}

// runAttempt bounds one attempt with the per-attempt timeout. An attempt cut
// short by that timeout, rather than by the caller, is a retryable timeout.
func (p *Pipeline[T]) runAttempt(ctx context.Context, op Operation[T]) (T, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, p.attemptTimeout)
	defer cancel()

	value, err := op(attemptCtx)
	if err != nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return value, domain.NewSendError(domain.FailureTimeout, 0, "", err)
	}
	return value, err
}

// settle records the final outcome of the logical call against the breaker.
func (p *Pipeline[T]) settle(permit *Permit, sendErr *domain.SendError) {
	if sendErr.CountsTowardBreaker() {
		permit.Failure()
	} else {
		permit.Excluded()
	}
}

func (p *Pipeline[T]) reportAttempt(a Attempt) {
	if p.onAttempt != nil {
		p.onAttempt(a)
	}
}

func classify(err error) *domain.SendError {
	var sendErr *domain.SendError
	if errors.As(err, &sendErr) {
		return sendErr
	}
	return domain.NewSendError(domain.FailureNetwork, 0, "", err)
}
