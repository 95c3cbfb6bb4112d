package chat

import (
	"context"
	"log/slog"
	"strings"

	"textrefine/internal/models"
)

const DefaultMaxContinuationRounds = 3

// Continuer stitches truncated completions into one logical answer by asking
// the model to continue while it reports finish reason "length".
type Continuer struct {
	next      Completer
	maxRounds int
	logger    *slog.Logger
}

// NewContinuer wraps next. A negative maxRounds disables continuation.
func NewContinuer(next Completer, maxRounds int, logger *slog.Logger) *Continuer {
	if maxRounds < 0 {
		maxRounds = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Continuer{next: next, maxRounds: maxRounds, logger: logger}
}

// Run calls next until the output is complete or the round budget is spent.
// Between rounds the partial output and continuation are appended to the
// conversation. Exhausting the budget returns the text gathered so far.
func (c *Continuer) Run(ctx context.Context, cfg models.ChatConfig, messages []models.ChatMessage, opts models.RequestOptions, continuation models.ChatMessage) (string, error) {
	conversation := make([]models.ChatMessage, len(messages), len(messages)+2*c.maxRounds)
	copy(conversation, messages)

	var output strings.Builder
	for round := 0; round <= c.maxRounds; round++ {
		result, err := c.next.Complete(ctx, cfg, conversation, opts)
		if err != nil {
			return "", err
		}
		output.WriteString(result.Content)

		if !result.Truncated() {
			return strings.TrimSpace(output.String()), nil
		}

		c.logger.Debug("completion truncated, requesting continuation",
			"round", round+1,
			"max_rounds", c.maxRounds,
		)
		conversation = append(conversation,
			models.ChatMessage{Role: models.RoleAssistant, Content: result.Content},
			continuation,
		)
	}

	c.logger.Warn("continuation rounds exhausted, returning partial output",
		"max_rounds", c.maxRounds,
	)
	return strings.TrimSpace(output.String()), nil
}
