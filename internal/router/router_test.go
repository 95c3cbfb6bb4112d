package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textrefine/internal/agent"
	"textrefine/internal/models"
	"textrefine/internal/provider"
)

type stubRefiner struct {
	resp      models.AgentResponse
	err       error
	gotCfg    models.ChatConfig
	gotText   string
	gotRefine []models.ChatMessage
}

func (s *stubRefiner) RefineResponse(_ context.Context, cfg models.ChatConfig, messages []models.ChatMessage) (models.AgentResponse, error) {
	s.gotCfg = cfg
	s.gotRefine = messages
	return s.resp, s.err
}

func (s *stubRefiner) Translate(_ context.Context, cfg models.ChatConfig, text string) (string, error) {
	s.gotCfg = cfg
	s.gotText = text
	if s.err != nil {
		return "", s.err
	}
	return "translated:" + text, nil
}

func newTestRouter(t *testing.T, refiner Refiner) *Router {
	t.Helper()
	registry := provider.NewRegistry("default")
	require.NoError(t, registry.Register("default", models.ChatConfig{Model: "base"}))
	require.NoError(t, registry.Register("fast", models.ChatConfig{Model: "fast"}))
	return New(registry, refiner)
}

func TestRefineUsesFirstUserMessageAsBaseline(t *testing.T) {
	stub := &stubRefiner{resp: models.AgentResponse{OptimizedText: "hello"}}
	rt := newTestRouter(t, stub)

	messages := []models.ChatMessage{
		{Role: models.RoleUser, Content: "hello"},
		{Role: models.RoleAssistant, Content: "analysis"},
		{Role: models.RoleUser, Content: "again"},
	}
	result, err := rt.Refine(context.Background(), "", messages, "")
	require.NoError(t, err)

	assert.Equal(t, "base", stub.gotCfg.Model)
	assert.Equal(t, agent.StageNoChange, result.Decision.Stage)
	assert.Equal(t, messages, stub.gotRefine)
}

func TestRefinePrefersCurrentText(t *testing.T) {
	stub := &stubRefiner{resp: models.AgentResponse{OptimizedText: "hello"}}
	rt := newTestRouter(t, stub)

	result, err := rt.Refine(context.Background(), "fast", []models.ChatMessage{{Role: models.RoleUser, Content: "hello"}}, "Hello there.")
	require.NoError(t, err)
	assert.Equal(t, "fast", stub.gotCfg.Model)
	assert.Equal(t, agent.StageConfirming, result.Decision.Stage)
}

func TestRefineUnknownProfile(t *testing.T) {
	rt := newTestRouter(t, &stubRefiner{})
	_, err := rt.Refine(context.Background(), "nope", nil, "")
	assert.ErrorIs(t, err, provider.ErrUnknownProfile)
}

func TestRefineWrapsErrors(t *testing.T) {
	cause := errors.New("upstream")
	rt := newTestRouter(t, &stubRefiner{err: cause})

	_, err := rt.Refine(context.Background(), "", []models.ChatMessage{{Role: models.RoleUser, Content: "x"}}, "")
	assert.ErrorIs(t, err, cause)
	assert.EqualError(t, err, "refine: upstream")
}

func TestTranslate(t *testing.T) {
	stub := &stubRefiner{}
	rt := newTestRouter(t, stub)

	out, err := rt.Translate(context.Background(), "fast", "hola")
	require.NoError(t, err)
	assert.Equal(t, "translated:hola", out)
	assert.Equal(t, "fast", stub.gotCfg.Model)
}

func TestProfiles(t *testing.T) {
	rt := newTestRouter(t, &stubRefiner{})
	assert.Equal(t, []string{"default", "fast"}, rt.Profiles())
}

func TestFirstUserMessage(t *testing.T) {
	assert.Equal(t, "", FirstUserMessage(nil))
	assert.Equal(t, "b", FirstUserMessage([]models.ChatMessage{
		{Role: models.RoleSystem, Content: "a"},
		{Role: models.RoleUser, Content: "b"},
	}))
}
