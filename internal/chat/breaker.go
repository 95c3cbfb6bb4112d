package chat

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"textrefine/internal/config"
	"textrefine/internal/models"
)

const (
	defaultCBMaxFailures uint32        = 5
	defaultCBTimeout     time.Duration = 30 * time.Second
)

// Breaker fails fast once an endpoint keeps returning transient failures.
// Each endpoint gets its own circuit, so one failing profile does not block
// the others. Only retryable HTTP statuses and network errors count against
// a circuit; cancellations and permanent statuses pass through as successes.
type Breaker struct {
	name   string
	next   Completer
	cfg    config.CircuitBreakerConfig
	logger *slog.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[models.ChatCompletionResult]
}

// NewBreaker wraps next with per-endpoint circuit breakers named after name.
func NewBreaker(name string, next Completer, cfg config.CircuitBreakerConfig, logger *slog.Logger) *Breaker {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = defaultCBMaxFailures
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultCBTimeout
	}
	return &Breaker{
		name:     name,
		next:     next,
		cfg:      cfg,
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker[models.ChatCompletionResult]),
	}
}

// Complete implements Completer.
func (b *Breaker) Complete(ctx context.Context, cfg models.ChatConfig, messages []models.ChatMessage, opts models.RequestOptions) (models.ChatCompletionResult, error) {
	result, err := b.circuit(cfg.Endpoint).Execute(func() (models.ChatCompletionResult, error) {
		return b.next.Complete(ctx, cfg, messages, opts)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return models.ChatCompletionResult{}, &Error{
			Kind:    KindUnavailable,
			Message: "endpoint temporarily unavailable: " + err.Error(),
			Err:     err,
		}
	}
	return result, err
}

// State reports the breaker state for endpoint. Endpoints that were never
// called report "closed".
func (b *Breaker) State(endpoint string) string {
	return b.circuit(endpoint).State().String()
}

func (b *Breaker) circuit(endpoint string) *gobreaker.CircuitBreaker[models.ChatCompletionResult] {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cb, ok := b.breakers[endpoint]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker[models.ChatCompletionResult](b.settings(endpoint))
	b.breakers[endpoint] = cb
	return cb
}

// settings builds the gobreaker settings for one endpoint. A zero Interval is
// passed through, so failure counts never clear while the circuit is closed.
func (b *Breaker) settings(endpoint string) gobreaker.Settings {
	maxFailures := b.cfg.MaxFailures
	return gobreaker.Settings{
		Name:        "chat:" + b.name + ":" + endpoint,
		MaxRequests: 1,
		Interval:    b.cfg.Interval,
		Timeout:     b.cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			return !IsRetryable(err) && KindOf(err) != KindNetwork
		},
	}
}
