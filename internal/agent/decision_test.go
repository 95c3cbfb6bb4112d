package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"textrefine/internal/models"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name     string
		resp     models.AgentResponse
		baseline string
		want     Decision
	}{
		{
			name:     "needs more info",
			resp:     models.AgentResponse{NeedMoreInfo: true, OptimizedText: "draft"},
			baseline: "orig",
			want:     Decision{Stage: StageRefining, Text: "draft"},
		},
		{
			name:     "needs more info without text keeps baseline",
			resp:     models.AgentResponse{NeedMoreInfo: true},
			baseline: "orig",
			want:     Decision{Stage: StageRefining, Text: "orig"},
		},
		{
			name:     "changed text",
			resp:     models.AgentResponse{OptimizedText: " Better. "},
			baseline: "worse",
			want:     Decision{Stage: StageConfirming, Text: "Better."},
		},
		{
			name:     "explicit no change",
			resp:     models.AgentResponse{OptimizedText: "Fine.", NoChange: true},
			baseline: "fine",
			want:     Decision{Stage: StageNoChange, Text: "Fine."},
		},
		{
			name:     "reason implies no change",
			resp:     models.AgentResponse{OptimizedText: "Other.", NoChangeReason: "clear"},
			baseline: "orig",
			want:     Decision{Stage: StageNoChange, Text: "Other.", Reason: "clear"},
		},
		{
			name:     "identical text counts as no change",
			resp:     models.AgentResponse{OptimizedText: "Same text."},
			baseline: "  Same text.\n",
			want:     Decision{Stage: StageNoChange, Text: "Same text."},
		},
		{
			name:     "no baseline never short circuits",
			resp:     models.AgentResponse{OptimizedText: "x", NoChange: true},
			baseline: "",
			want:     Decision{Stage: StageConfirming, Text: "x"},
		},
		{
			name:     "need more info overrides no change",
			resp:     models.AgentResponse{NeedMoreInfo: true, NoChange: true},
			baseline: "orig",
			want:     Decision{Stage: StageRefining, Text: "orig"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.resp, tt.baseline))
		})
	}
}
