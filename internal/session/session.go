package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"textrefine/internal/agent"
	"textrefine/internal/models"
	"textrefine/internal/router"
)

var (
	// ErrEmptyInput is returned when Submit receives blank text.
	ErrEmptyInput = errors.New("input text is empty")
	// ErrCustomDirection is returned by Choose for the "other" option; the
	// caller should collect a direction and call Direct.
	ErrCustomDirection = errors.New("option requires a custom direction")
	// ErrNothingToTranslate is returned by Confirm before any text exists.
	ErrNothingToTranslate = errors.New("no text to translate")
)

const (
	refinePromptTemplate = "Please refine the text in this direction: %s\n\nOriginal text: %s"
	selectedPrefix       = "Selected: "
	noChangePrefix       = "No edits made: "
)

// DefaultNoChangeReason explains a no-change decision when the model gave no reason.
const DefaultNoChangeReason = "The original text is already clear enough and needs no further changes."

// Engine performs the model calls for a session; *router.Router satisfies it.
type Engine interface {
	Refine(ctx context.Context, profile string, messages []models.ChatMessage, current string) (router.RefineResult, error)
	Translate(ctx context.Context, profile, text string) (string, error)
}

// Stage is where the conversation currently stands.
type Stage string

const (
	StageInput      Stage = "input"
	StageRefining   Stage = "refining"
	StageConfirming Stage = "confirming"
	StageResult     Stage = "result"
)

// Outcome reports what one session step produced.
type Outcome struct {
	Stage Stage
	// Response is the agent reply for refine steps.
	Response models.AgentResponse
	// Decision is the interpretation of Response for refine steps.
	Decision agent.Decision
	// Translation is set once the session reaches StageResult.
	Translation string
}

// Session holds one refine-then-translate conversation. Methods are safe for
// concurrent use, but steps are serialized. A failed or canceled step leaves
// the session exactly as it was.
type Session struct {
	engine  Engine
	profile string

	mu          sync.Mutex
	messages    []models.ChatMessage
	optimized   string
	options     []models.AgentOption
	stage       Stage
	translation string
}

// New starts an empty session that sends every call through profile.
func New(engine Engine, profile string) *Session {
	return &Session{
		engine:  engine,
		profile: profile,
		stage:   StageInput,
	}
}

// Submit sends text as the next user turn.
func (s *Session) Submit(ctx context.Context, text string) (Outcome, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Outcome{}, ErrEmptyInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refine(ctx, nil, text)
}

// Choose refines the current text in the direction of option. The choice is
// recorded as a system turn ahead of the refine prompt.
func (s *Session) Choose(ctx context.Context, option models.AgentOption) (Outcome, error) {
	if option.IsOther() {
		return Outcome{}, ErrCustomDirection
	}
	label := strings.TrimSpace(option.Label)
	if label == "" {
		return Outcome{}, ErrEmptyInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	selected := models.ChatMessage{Role: models.RoleSystem, Content: selectedPrefix + label}
	return s.refine(ctx, []models.ChatMessage{selected}, fmt.Sprintf(refinePromptTemplate, label, s.sourceText()))
}

// Direct refines the current text in a caller-supplied direction.
func (s *Session) Direct(ctx context.Context, direction string) (Outcome, error) {
	direction = strings.TrimSpace(direction)
	if direction == "" {
		return Outcome{}, ErrEmptyInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refine(ctx, nil, fmt.Sprintf(refinePromptTemplate, direction, s.sourceText()))
}

// Confirm translates the current text and finishes the session.
func (s *Session) Confirm(ctx context.Context) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	source := s.sourceText()
	if source == "" {
		return Outcome{}, ErrNothingToTranslate
	}

	translated, err := s.engine.Translate(ctx, s.profile, source)
	if err != nil {
		return Outcome{}, err
	}

	s.stage = StageResult
	s.translation = translated
	s.options = nil
	return Outcome{Stage: StageResult, Translation: translated}, nil
}

// Text is the text currently under edit: the latest optimized text, or the
// first user turn when the model has not produced one yet.
func (s *Session) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sourceText()
}

// Options lists the directions offered by the last refine reply.
func (s *Session) Options() []models.AgentOption {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.AgentOption(nil), s.options...)
}

func (s *Session) refine(ctx context.Context, preamble []models.ChatMessage, content string) (Outcome, error) {
	next := append(append([]models.ChatMessage(nil), s.messages...), preamble...)
	next = append(next, models.ChatMessage{Role: models.RoleUser, Content: content})

	result, err := s.engine.Refine(ctx, s.profile, next, s.optimized)
	if err != nil {
		return Outcome{}, err
	}

	resp := result.Response
	if resp.Analysis != "" {
		next = append(next, models.ChatMessage{Role: models.RoleAssistant, Content: resp.Analysis})
	}

	outcome := Outcome{Response: resp, Decision: result.Decision}
	switch result.Decision.Stage {
	case agent.StageNoChange:
		translated, err := s.engine.Translate(ctx, s.profile, result.Decision.Text)
		if err != nil {
			return Outcome{}, err
		}
		reason := result.Decision.Reason
		if reason == "" {
			reason = DefaultNoChangeReason
		}
		s.messages = append(next, models.ChatMessage{Role: models.RoleAssistant, Content: noChangePrefix + reason})
		s.optimized = result.Decision.Text
		s.options = nil
		s.stage = StageResult
		s.translation = translated
		outcome.Stage = StageResult
		outcome.Translation = translated
		return outcome, nil
	case agent.StageRefining:
		outcome.Stage = StageRefining
	default:
		outcome.Stage = StageConfirming
	}

	s.messages = next
	if resp.OptimizedText != "" {
		s.optimized = resp.OptimizedText
	}
	s.options = append([]models.AgentOption(nil), resp.Options...)
	s.stage = outcome.Stage
	s.translation = ""
	return outcome, nil
}

func (s *Session) sourceText() string {
	if s.optimized != "" {
		return s.optimized
	}
	return router.FirstUserMessage(s.messages)
}
