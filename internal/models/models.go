package models

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Defaults applied to a request when the caller leaves a field unset.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 2000
)

// OtherOptionID is the reserved option id asking the user for a custom direction.
const OtherOptionID = "other"

// ChatConfig holds the per-call settings for a chat-completions endpoint.
type ChatConfig struct {
	Endpoint     string
	APIKey       string
	Model        string
	SystemPrompt string
}

// ChatMessage is a single turn of a conversation.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// RequestOptions tunes one chat-completions request.
type RequestOptions struct {
	Stream      bool
	Temperature float64
	MaxTokens   int
}

// WithDefaults returns a copy with zero fields replaced by the package defaults.
func (o RequestOptions) WithDefaults() RequestOptions {
	if o.Temperature == 0 {
		o.Temperature = DefaultTemperature
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	return o
}

// ChatCompletionResult is the outcome of one HTTP call. An empty FinishReason
// means the provider did not report one.
type ChatCompletionResult struct {
	Content      string
	FinishReason string
}

// Truncated reports whether the provider cut the output at its token limit.
func (r ChatCompletionResult) Truncated() bool {
	return r.FinishReason == "length"
}

// AgentOption is a refinement direction proposed by the model.
type AgentOption struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// IsOther reports whether the option asks the user to type a custom direction.
func (o AgentOption) IsOther() bool {
	return o.ID == OtherOptionID
}

// AgentResponse is the structured decision parsed from a model reply.
type AgentResponse struct {
	Analysis       string        `json:"analysis"`
	OptimizedText  string        `json:"optimized_text"`
	Options        []AgentOption `json:"options"`
	NeedMoreInfo   bool          `json:"need_more_info"`
	NoChange       bool          `json:"no_change"`
	NoChangeReason string        `json:"no_change_reason"`
}
