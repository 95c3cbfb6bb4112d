package api

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textrefine/internal/agent"
	"textrefine/internal/models"
	"textrefine/internal/router"
)

func TestRefineRequestDecode(t *testing.T) {
	var req RefineRequest
	err := json.Unmarshal([]byte(`{"profile":" work ","messages":[{"role":"user","content":"hi"}],"current":"Hi."}`), &req)
	require.NoError(t, err)
	assert.Equal(t, "work", req.Profile)
	assert.Equal(t, "Hi.", req.Current)
	assert.Equal(t, []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}}, req.Messages)
}

func TestRefineRequestValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"no messages", `{"messages":[]}`, errEmptyMessages},
		{"bad role", `{"messages":[{"role":"tool","content":"x"}]}`, errInvalidRole},
		{"no user turn", `{"messages":[{"role":"assistant","content":"x"}]}`, errNoUserMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req RefineRequest
			assert.ErrorIs(t, json.Unmarshal([]byte(tt.body), &req), tt.want)
		})
	}
}

func TestTranslateRequest(t *testing.T) {
	var req TranslateRequest
	require.NoError(t, json.Unmarshal([]byte(`{"text":"hola"}`), &req))
	assert.Equal(t, "hola", req.Text)

	assert.ErrorIs(t, json.Unmarshal([]byte(`{"text":"  "}`), &req), errEmptyText)
}

func TestFromRefineResultAlwaysHasOptions(t *testing.T) {
	resp := FromRefineResult(router.RefineResult{
		Response: models.AgentResponse{OptimizedText: "x"},
		Decision: agent.Decision{Stage: agent.StageConfirming, Text: "x"},
	})

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"agent": {"analysis":"","optimized_text":"x","options":[],"need_more_info":false,"no_change":false,"no_change_reason":""},
		"decision": {"stage":"confirming","text":"x"}
	}`, string(data))
}
