package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"textrefine/internal/models"
)

const (
	TaskOptimizeText   = "optimize_text"
	TaskContinueOutput = "continue_output"
)

const (
	noChangeRule = "If the text needs no changes, explain why in no_change_reason, keep optimized_text identical to the original, and set need_more_info to false."

	continueInstruction = "Continue the previous output and return only the part not yet written. Do not repeat anything already output."

	translateContinueInstruction = "Continue the previous translation and return only the part not yet finished. Do not repeat anything."
)

type outputContract struct {
	Format         string   `json:"format"`
	RequiredFields []string `json:"required_fields"`
	OptionalFields []string `json:"optional_fields"`
}

type systemEnvelope struct {
	PromptType     string         `json:"prompt_type"`
	CoreGuidelines string         `json:"core_guidelines"`
	OutputContract outputContract `json:"output_contract"`
	NoChangeRule   string         `json:"no_change_rule"`
}

type userEnvelope struct {
	Task           string `json:"task"`
	TextToOptimize string `json:"text_to_optimize"`
}

type continuationEnvelope struct {
	Task        string `json:"task"`
	Instruction string `json:"instruction"`
}

// SystemEnvelope wraps the caller's guidelines into the instruction document
// that describes the JSON reply contract.
func SystemEnvelope(systemPrompt string) string {
	return encode(systemEnvelope{
		PromptType:     "text_polish_core_instructions",
		CoreGuidelines: systemPrompt,
		OutputContract: outputContract{
			Format:         "json",
			RequiredFields: []string{"analysis", "optimized_text", "options", "need_more_info"},
			OptionalFields: []string{"no_change_reason"},
		},
		NoChangeRule: noChangeRule,
	})
}

// UserEnvelope marks content as the payload to optimize rather than as instructions.
func UserEnvelope(content string) string {
	return encode(userEnvelope{Task: TaskOptimizeText, TextToOptimize: content})
}

// ContinuationMessage is the user turn that asks for the rest of a truncated reply.
func ContinuationMessage() models.ChatMessage {
	return models.ChatMessage{
		Role:    models.RoleUser,
		Content: encode(continuationEnvelope{Task: TaskContinueOutput, Instruction: continueInstruction}),
	}
}

// BuildRefineMessages prepends the system envelope and wraps every user turn.
// Assistant and system turns pass through untouched. The input is not modified.
func BuildRefineMessages(systemPrompt string, messages []models.ChatMessage) []models.ChatMessage {
	out := make([]models.ChatMessage, 0, len(messages)+1)
	out = append(out, models.ChatMessage{Role: models.RoleSystem, Content: SystemEnvelope(systemPrompt)})
	for _, msg := range messages {
		if msg.Role == models.RoleUser {
			msg.Content = UserEnvelope(msg.Content)
		}
		out = append(out, msg)
	}
	return out
}

// BuildTranslateMessages returns the single translation-only instruction for text.
func BuildTranslateMessages(language, text string) []models.ChatMessage {
	return []models.ChatMessage{{
		Role: models.RoleUser,
		Content: fmt.Sprintf("Translate the following text into %s. Return only the translation, without any explanation or notes:\n\n%s",
			language, text),
	}}
}

// TranslateContinuationMessage asks for the rest of a truncated translation.
func TranslateContinuationMessage() models.ChatMessage {
	return models.ChatMessage{Role: models.RoleUser, Content: translateContinueInstruction}
}

// encode renders v as indented JSON, leaving <, > and & unescaped so the
// payload reaches the model verbatim.
func encode(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		// Envelopes hold only strings and string slices.
		panic(fmt.Sprintf("encode envelope: %v", err))
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
