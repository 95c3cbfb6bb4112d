package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"textrefine/internal/agent"
	"textrefine/internal/models"
	"textrefine/internal/router"
)

var (
	errEmptyMessages = errors.New("at least one message is required")
	errNoUserMessage = errors.New("at least one user message is required")
	errEmptyText     = errors.New("text must not be empty")
	errInvalidRole   = errors.New("invalid role")
)

var allowedRoles = map[models.Role]struct{}{
	models.RoleSystem:    {},
	models.RoleUser:      {},
	models.RoleAssistant: {},
}

// RefineRequest is the payload of POST /v1/refine.
type RefineRequest struct {
	Profile  string
	Messages []models.ChatMessage
	// Current is the text under edit from a previous round, if any.
	Current string
}

// UnmarshalJSON implements custom parsing to enforce validation.
func (r *RefineRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		Profile  string               `json:"profile"`
		Messages []models.ChatMessage `json:"messages"`
		Current  string               `json:"current"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode refine request: %w", err)
	}

	r.Profile = strings.TrimSpace(raw.Profile)
	r.Messages = raw.Messages
	r.Current = raw.Current
	return r.validate()
}

func (r *RefineRequest) validate() error {
	if len(r.Messages) == 0 {
		return errEmptyMessages
	}
	hasUser := false
	for i, msg := range r.Messages {
		if _, ok := allowedRoles[msg.Role]; !ok {
			return fmt.Errorf("messages[%d]: %w %q", i, errInvalidRole, msg.Role)
		}
		if msg.Role == models.RoleUser {
			hasUser = true
		}
	}
	if !hasUser {
		return errNoUserMessage
	}
	return nil
}

// RefineResponse is the body returned by POST /v1/refine.
type RefineResponse struct {
	Agent    models.AgentResponse `json:"agent"`
	Decision agent.Decision       `json:"decision"`
}

// FromRefineResult converts a router result into the wire shape.
func FromRefineResult(result router.RefineResult) RefineResponse {
	resp := result.Response
	if resp.Options == nil {
		resp.Options = []models.AgentOption{}
	}
	return RefineResponse{Agent: resp, Decision: result.Decision}
}

// TranslateRequest is the payload of POST /v1/translate.
type TranslateRequest struct {
	Profile string
	Text    string
}

// UnmarshalJSON implements custom parsing to enforce validation.
func (r *TranslateRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		Profile string `json:"profile"`
		Text    string `json:"text"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode translate request: %w", err)
	}

	r.Profile = strings.TrimSpace(raw.Profile)
	r.Text = raw.Text
	if strings.TrimSpace(r.Text) == "" {
		return errEmptyText
	}
	return nil
}

// TranslateResponse is the body returned by POST /v1/translate.
type TranslateResponse struct {
	Translation string `json:"translation"`
}
