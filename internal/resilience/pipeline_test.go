package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaypoint/message-relay/internal/domain"
)

func newTestPipeline(cfg PipelineConfig, b *Breaker) *Pipeline[string] {
	if cfg.Backoff == nil {
		cfg.Backoff = Fixed{Delay: time.Millisecond}
	}
	return NewPipeline[string](cfg, b)
}

func TestPipeline_Success(t *testing.T) {
	b := NewBreaker(Settings{})
	p := newTestPipeline(PipelineConfig{MaxRetries: 2}, b)

	calls := 0
	value, err := p.Execute(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		return "SM123", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "SM123", value)
	assert.Equal(t, 1, calls)

	stats := b.Snapshot()
	assert.Equal(t, 1, stats.Outcomes)
	assert.Equal(t, 0, stats.Failures)
}

func TestPipeline_RetriesTransientThenSucceeds(t *testing.T) {
	b := NewBreaker(Settings{})
	p := newTestPipeline(PipelineConfig{MaxRetries: 3}, b)

	calls := 0
	value, err := p.Execute(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", domain.NewSendError(domain.FailureTransient, 503, "unavailable", nil)
		}
		return "SM123", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "SM123", value)
	assert.Equal(t, 3, calls)

	// The whole sequence is one logical call and one recorded success.
	stats := b.Snapshot()
	assert.Equal(t, 1, stats.Outcomes)
	assert.Equal(t, 0, stats.Failures)
}

func TestPipeline_ExhaustsRetries(t *testing.T) {
	b := NewBreaker(Settings{})
	p := newTestPipeline(PipelineConfig{MaxRetries: 2}, b)

	calls := 0
	_, err := p.Execute(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		return "", domain.NewSendError(domain.FailureTransient, 503, "unavailable", nil)
	})

	// Initial attempt plus two retries.
	assert.Equal(t, 3, calls)

	var sendErr *domain.SendError
	require.ErrorAs(t, err, &sendErr)
	assert.Equal(t, domain.FailureTransient, sendErr.Kind)
	assert.Equal(t, 503, sendErr.StatusCode)

	// One failure recorded for the logical call, not one per attempt.
	stats := b.Snapshot()
	assert.Equal(t, 1, stats.Outcomes)
	assert.Equal(t, 1, stats.Failures)
}

func TestPipeline_PermanentFailureNotRetried(t *testing.T) {
	b := NewBreaker(Settings{})
	p := newTestPipeline(PipelineConfig{MaxRetries: 3}, b)

	calls := 0
	_, err := p.Execute(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		return "", domain.NewSendError(domain.FailurePermanent, 400, "invalid To", nil)
	})

	assert.Equal(t, 1, calls)

	var sendErr *domain.SendError
	require.ErrorAs(t, err, &sendErr)
	assert.Equal(t, domain.FailurePermanent, sendErr.Kind)

	// 4xx is excluded from breaker accounting.
	assert.Equal(t, 0, b.Snapshot().Outcomes)
}

func TestPipeline_ThrottledRetriedButExcluded(t *testing.T) {
	b := NewBreaker(Settings{})
	p := newTestPipeline(PipelineConfig{MaxRetries: 1}, b)

	calls := 0
	_, err := p.Execute(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		return "", domain.NewSendError(domain.FailureTransient, 429, "too many requests", nil)
	})

	// 429 is retryable but not a provider-health failure.
	assert.Equal(t, 2, calls)
	require.Error(t, err)
	assert.Equal(t, 0, b.Snapshot().Outcomes)
}

func TestPipeline_AttemptTimeout(t *testing.T) {
	b := NewBreaker(Settings{})
	p := newTestPipeline(PipelineConfig{AttemptTimeout: 20 * time.Millisecond, MaxRetries: 1}, b)

	calls := 0
	_, err := p.Execute(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		<-ctx.Done()
		return "", ctx.Err()
	})

	assert.Equal(t, 2, calls)

	var sendErr *domain.SendError
	require.ErrorAs(t, err, &sendErr)
	assert.Equal(t, domain.FailureTimeout, sendErr.Kind)
	assert.Equal(t, 1, b.Snapshot().Failures)
}

func TestPipeline_UnclassifiedErrorTreatedAsNetwork(t *testing.T) {
	b := NewBreaker(Settings{})
	p := newTestPipeline(PipelineConfig{MaxRetries: 0}, b)

	_, err := p.Execute(context.Background(), func(ctx context.Context) (string, error) {
		return "", errors.New("connection refused")
	})

	var sendErr *domain.SendError
	require.ErrorAs(t, err, &sendErr)
	assert.Equal(t, domain.FailureNetwork, sendErr.Kind)
	assert.Equal(t, 1, b.Snapshot().Failures)
}

func TestPipeline_OpenBreakerRejectsWithoutAttempt(t *testing.T) {
	b := NewBreaker(Settings{MinimumThroughput: 2})
	p := newTestPipeline(PipelineConfig{MaxRetries: 2}, b)

	for i := 0; i < 2; i++ {
		_, err := p.Execute(context.Background(), func(ctx context.Context) (string, error) {
			return "", domain.NewSendError(domain.FailureTransient, 503, "", nil)
		})
		require.Error(t, err)
	}
	require.Equal(t, StateOpen, b.CurrentState())

	calls := 0
	_, err := p.Execute(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		return "SM123", nil
	})

	assert.Equal(t, 0, calls)

	var sendErr *domain.SendError
	require.ErrorAs(t, err, &sendErr)
	assert.Equal(t, domain.FailureCircuitOpen, sendErr.Kind)
	assert.ErrorIs(t, err, domain.ErrCircuitOpen)
}

func TestPipeline_CallerCancellationDuringBackoff(t *testing.T) {
	b := NewBreaker(Settings{})
	p := newTestPipeline(PipelineConfig{
		MaxRetries: 3,
		Backoff:    Fixed{Delay: time.Minute},
	}, b)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := p.Execute(ctx, func(ctx context.Context) (string, error) {
		calls++
		return "", domain.NewSendError(domain.FailureTransient, 503, "", nil)
	})

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, context.Canceled)

	// Cancellation is not a provider-health signal.
	assert.Equal(t, 0, b.Snapshot().Outcomes)
}

func TestPipeline_CallerCancellationDuringAttempt(t *testing.T) {
	b := NewBreaker(Settings{})
	p := newTestPipeline(PipelineConfig{AttemptTimeout: time.Minute, MaxRetries: 3}, b)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	calls := 0
	_, err := p.Execute(ctx, func(ctx context.Context) (string, error) {
		calls++
		<-ctx.Done()
		return "", ctx.Err()
	})

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, b.Snapshot().Outcomes)
}

func TestPipeline_OnAttemptHook(t *testing.T) {
	b := NewBreaker(Settings{})

	var attempts []Attempt
	p := newTestPipeline(PipelineConfig{
		MaxRetries: 2,
		Backoff:    Fixed{Delay: time.Millisecond},
		OnAttempt: func(a Attempt) {
			attempts = append(attempts, a)
		},
	}, b)

	calls := 0
	_, err := p.Execute(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		if calls < 2 {
			return "", domain.NewSendError(domain.FailureTransient, 503, "", nil)
		}
		return "SM123", nil
	})
	require.NoError(t, err)

	require.Len(t, attempts, 2)
	assert.Equal(t, 1, attempts[0].Number)
	assert.Error(t, attempts[0].Err)
	assert.Equal(t, time.Duration(0), attempts[0].Delay)
	assert.Equal(t, 2, attempts[1].Number)
	assert.NoError(t, attempts[1].Err)
	assert.Equal(t, time.Millisecond, attempts[1].Delay)
}
