package chat

import (
	"context"
	"log/slog"
	"time"

	"textrefine/internal/models"
)

const (
	DefaultMaxRetries     = 2
	DefaultRetryBaseDelay = 300 * time.Millisecond
)

// Retrier wraps a Completer with bounded retries for transient HTTP failures.
// The delay before retry n is BaseDelay*n.
type Retrier struct {
	next       Completer
	maxRetries int
	baseDelay  time.Duration
	logger     *slog.Logger

	// sleep waits for d or until ctx is done; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetrier wraps next. Negative maxRetries disables retries; a zero baseDelay
// selects DefaultRetryBaseDelay.
func NewRetrier(next Completer, maxRetries int, baseDelay time.Duration, logger *slog.Logger) *Retrier {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = DefaultRetryBaseDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrier{
		next:       next,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		logger:     logger,
		sleep:      sleepContext,
	}
}

// Complete implements Completer. At most maxRetries+1 calls reach next.
func (r *Retrier) Complete(ctx context.Context, cfg models.ChatConfig, messages []models.ChatMessage, opts models.RequestOptions) (models.ChatCompletionResult, error) {
	for attempt := 1; ; attempt++ {
		result, err := r.next.Complete(ctx, cfg, messages, opts)
		if err == nil {
			return result, nil
		}
		if IsCanceled(err) {
			return models.ChatCompletionResult{}, err
		}
		if !IsRetryable(err) || attempt > r.maxRetries {
			return models.ChatCompletionResult{}, err
		}

		delay := r.baseDelay * time.Duration(attempt)
		r.logger.Warn("transient chat failure, retrying",
			"attempt", attempt,
			"delay_ms", delay.Milliseconds(),
			"error", err,
		)
		if err := r.sleep(ctx, delay); err != nil {
			return models.ChatCompletionResult{}, canceledError(err)
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
