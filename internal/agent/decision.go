package agent

import (
	"strings"

	"textrefine/internal/models"
)

// Stage is the next step a caller should take after a refine reply.
type Stage string

const (
	// StageRefining means the agent needs more input; show the options.
	StageRefining Stage = "refining"
	// StageConfirming means an optimized text is ready for the user to accept.
	StageConfirming Stage = "confirming"
	// StageNoChange means the text needs no edits and can go straight to translation.
	StageNoChange Stage = "no_change"
)

// Decision is the caller-facing interpretation of an AgentResponse.
type Decision struct {
	Stage Stage `json:"stage"`
	// Text is the text to carry forward: the optimized text when present,
	// otherwise the baseline.
	Text string `json:"text"`
	// Reason explains a no-change decision; it may be empty.
	Reason string `json:"reason,omitempty"`
}

// Decide classifies resp against baseline, the text currently under edit.
// A reply whose optimized text equals the baseline also counts as no change.
func Decide(resp models.AgentResponse, baseline string) Decision {
	optimized := strings.TrimSpace(resp.OptimizedText)
	text := optimized
	if text == "" {
		text = baseline
	}

	noChange := !resp.NeedMoreInfo && baseline != "" &&
		(resp.NoChange || resp.NoChangeReason != "" || optimized == strings.TrimSpace(baseline))

	switch {
	case noChange:
		return Decision{Stage: StageNoChange, Text: text, Reason: resp.NoChangeReason}
	case resp.NeedMoreInfo:
		return Decision{Stage: StageRefining, Text: text}
	default:
		return Decision{Stage: StageConfirming, Text: text}
	}
}
