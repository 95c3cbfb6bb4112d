package refiner

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"textrefine/internal/agent"
	"textrefine/internal/chat"
	"textrefine/internal/config"
	"textrefine/internal/models"
	"textrefine/internal/tracing"
)

const (
	refineTemperature    = 0.7
	translateTemperature = 0.3
	translateMaxTokens   = 2000
)

// Options tunes the retry and continuation layers.
type Options struct {
	MaxRetries            int
	RetryBaseDelay        time.Duration
	MaxContinuationRounds int
	TranslateLanguage     string
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		MaxRetries:            chat.DefaultMaxRetries,
		RetryBaseDelay:        chat.DefaultRetryBaseDelay,
		MaxContinuationRounds: chat.DefaultMaxContinuationRounds,
		TranslateLanguage:     config.DefaultLanguage,
	}
}

// OptionsFromConfig extracts Options from the chat section of a loaded config.
func OptionsFromConfig(cfg config.ChatConfig) Options {
	opts := DefaultOptions()
	if cfg.MaxRetries != nil {
		opts.MaxRetries = *cfg.MaxRetries
	}
	if cfg.RetryBaseDelay > 0 {
		opts.RetryBaseDelay = cfg.RetryBaseDelay
	}
	if cfg.MaxContinuationRounds != nil {
		opts.MaxContinuationRounds = *cfg.MaxContinuationRounds
	}
	if cfg.TranslateLanguage != "" {
		opts.TranslateLanguage = cfg.TranslateLanguage
	}
	return opts
}

// Service turns one user action into one complete model answer. It holds no
// per-call state, so concurrent calls are independent.
type Service struct {
	continuer *chat.Continuer
	language  string
	logger    *slog.Logger
}

// New composes retry and continuation around completer, which performs the
// single HTTP call (typically a *chat.Transport, optionally behind a *chat.Breaker).
func New(completer chat.Completer, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.TranslateLanguage == "" {
		opts.TranslateLanguage = config.DefaultLanguage
	}
	retrier := chat.NewRetrier(completer, opts.MaxRetries, opts.RetryBaseDelay, logger)
	return &Service{
		continuer: chat.NewContinuer(retrier, opts.MaxContinuationRounds, logger),
		language:  opts.TranslateLanguage,
		logger:    logger,
	}
}

// Refine sends the conversation with its system and user envelopes and
// returns the raw completion text. A malformed stream is retried once
// without streaming.
func (s *Service) Refine(ctx context.Context, cfg models.ChatConfig, messages []models.ChatMessage) (raw string, err error) {
	callID := uuid.NewString()
	ctx, span := tracing.StartSpan(ctx, "refiner.refine",
		tracing.String("call.id", callID),
		tracing.String("llm.model", cfg.Model),
		tracing.Int("chat.messages", len(messages)),
	)
	defer func() { tracing.End(span, err) }()

	if err := chat.CheckConfig(cfg); err != nil {
		return "", err
	}

	request := agent.BuildRefineMessages(cfg.SystemPrompt, messages)
	return s.run(ctx, callID, cfg, request, refinePlan(), agent.ContinuationMessage())
}

// RefineResponse is Refine followed by normalization into an AgentResponse.
func (s *Service) RefineResponse(ctx context.Context, cfg models.ChatConfig, messages []models.ChatMessage) (models.AgentResponse, error) {
	raw, err := s.Refine(ctx, cfg, messages)
	if err != nil {
		return models.AgentResponse{}, err
	}
	return agent.Normalize(raw), nil
}

// Translate returns the translation of text into the configured language as plain text.
func (s *Service) Translate(ctx context.Context, cfg models.ChatConfig, text string) (translated string, err error) {
	callID := uuid.NewString()
	ctx, span := tracing.StartSpan(ctx, "refiner.translate",
		tracing.String("call.id", callID),
		tracing.String("llm.model", cfg.Model),
		tracing.String("translate.language", s.language),
	)
	defer func() { tracing.End(span, err) }()

	if err := chat.CheckConfig(cfg); err != nil {
		return "", err
	}

	request := agent.BuildTranslateMessages(s.language, text)
	return s.run(ctx, callID, cfg, request, translatePlan(), agent.TranslateContinuationMessage())
}

func (s *Service) run(ctx context.Context, callID string, cfg models.ChatConfig, messages []models.ChatMessage, plan fallbackPlan, continuation models.ChatMessage) (string, error) {
	started := time.Now()
	out, err := s.continuer.Run(ctx, cfg, messages, plan.primary, continuation)
	if err != nil && plan.secondary != nil && ShouldFallback(err) {
		s.logger.Warn("streaming response unusable, retrying without streaming",
			"call_id", callID,
			"error", err,
		)
		out, err = s.continuer.Run(ctx, cfg, messages, *plan.secondary, continuation)
	}
	if err != nil {
		if chat.IsCanceled(err) {
			s.logger.Info("chat call canceled", "call_id", callID)
		} else {
			s.logger.Error("chat call failed",
				"call_id", callID,
				"kind", chat.KindOf(err).String(),
				"error", err,
			)
		}
		return "", err
	}

	s.logger.Debug("chat call completed",
		"call_id", callID,
		"model", cfg.Model,
		"latency_ms", time.Since(started).Milliseconds(),
		"content_length", len(out),
	)
	return out, nil
}
