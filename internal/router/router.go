package router

import (
	"context"
	"fmt"

	"textrefine/internal/agent"
	"textrefine/internal/models"
	"textrefine/internal/provider"
)

// Refiner is the orchestration surface the router dispatches to.
type Refiner interface {
	RefineResponse(ctx context.Context, cfg models.ChatConfig, messages []models.ChatMessage) (models.AgentResponse, error)
	Translate(ctx context.Context, cfg models.ChatConfig, text string) (string, error)
}

// RefineResult pairs the agent reply with its caller-facing decision.
type RefineResult struct {
	Response models.AgentResponse
	Decision agent.Decision
}

// Router resolves a profile and dispatches the request to the refiner.
type Router struct {
	registry *provider.Registry
	refiner  Refiner
}

// New constructs a router backed by the provided registry and refiner.
func New(registry *provider.Registry, refiner Refiner) *Router {
	return &Router{
		registry: registry,
		refiner:  refiner,
	}
}

// Refine runs one refine round for messages. The baseline for the no-change
// decision is current when set, otherwise the first user message.
func (r *Router) Refine(ctx context.Context, profile string, messages []models.ChatMessage, current string) (RefineResult, error) {
	cfg, err := r.registry.Lookup(profile)
	if err != nil {
		return RefineResult{}, err
	}

	resp, err := r.refiner.RefineResponse(ctx, cfg, cloneMessages(messages))
	if err != nil {
		return RefineResult{}, fmt.Errorf("refine: %w", err)
	}

	baseline := current
	if baseline == "" {
		baseline = FirstUserMessage(messages)
	}
	return RefineResult{Response: resp, Decision: agent.Decide(resp, baseline)}, nil
}

// Translate translates text with the named profile.
func (r *Router) Translate(ctx context.Context, profile, text string) (string, error) {
	cfg, err := r.registry.Lookup(profile)
	if err != nil {
		return "", err
	}

	translated, err := r.refiner.Translate(ctx, cfg, text)
	if err != nil {
		return "", fmt.Errorf("translate: %w", err)
	}
	return translated, nil
}

// Profiles lists the profile names requests may select.
func (r *Router) Profiles() []string {
	return r.registry.Names()
}

// FirstUserMessage returns the content of the first user turn, or "".
func FirstUserMessage(messages []models.ChatMessage) string {
	for _, msg := range messages {
		if msg.Role == models.RoleUser {
			return msg.Content
		}
	}
	return ""
}

func cloneMessages(messages []models.ChatMessage) []models.ChatMessage {
	if len(messages) == 0 {
		return nil
	}
	out := make([]models.ChatMessage, len(messages))
	copy(out, messages)
	return out
}
