package agent

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"textrefine/internal/models"
)

var (
	fencedBlock = regexp.MustCompile("(?i)^```(?:json)?\\s*([\\s\\S]*?)\\s*```$")
	jsonObject  = regexp.MustCompile(`\{[\s\S]*\}`)
)

// Normalize parses a raw model reply into a fully populated AgentResponse.
// Replies without a decodable JSON object are treated as the final text.
func Normalize(content string) models.AgentResponse {
	if resp, ok := parseStructured(content); ok {
		return resp
	}
	return models.AgentResponse{
		OptimizedText: content,
		Options:       []models.AgentOption{},
	}
}

func parseStructured(content string) (models.AgentResponse, bool) {
	body := strings.TrimSpace(content)
	if m := fencedBlock.FindStringSubmatch(body); m != nil {
		body = m[1]
	}

	literal := jsonObject.FindString(body)
	if literal == "" {
		return models.AgentResponse{}, false
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(literal), &fields); err != nil {
		return models.AgentResponse{}, false
	}

	analysis, _ := stringValue(fields["analysis"])
	optimized, _ := stringValue(fields["optimized_text"])
	reason, _ := stringValue(fields["no_change_reason"])
	reason = strings.TrimSpace(reason)

	needMoreInfo, ok := boolValue(fields["need_more_info"])
	if !ok {
		needMoreInfo = strings.TrimSpace(optimized) == ""
	}
	noChange, ok := boolValue(fields["no_change"])
	if !ok {
		noChange = reason != ""
	}

	return models.AgentResponse{
		Analysis:       analysis,
		OptimizedText:  optimized,
		Options:        optionsValue(fields["options"]),
		NeedMoreInfo:   needMoreInfo,
		NoChange:       noChange,
		NoChangeReason: reason,
	}, true
}

// stringValue accepts only JSON string literals; null and other types report false.
func stringValue(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var s string
	if json.Unmarshal(raw, &s) != nil {
		return "", false
	}
	return s, true
}

// boolValue accepts only the literals true and false.
func boolValue(raw json.RawMessage) (bool, bool) {
	switch string(bytes.TrimSpace(raw)) {
	case "true":
		return true, true
	case "false":
		return false, true
	default:
		return false, false
	}
}

// optionsValue keeps the object entries of a JSON array and drops the rest.
// Numeric ids are rendered as strings.
func optionsValue(raw json.RawMessage) []models.AgentOption {
	options := []models.AgentOption{}

	var items []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil {
		return options
	}

	for _, item := range items {
		var fields map[string]json.RawMessage
		if json.Unmarshal(item, &fields) != nil || fields == nil {
			continue
		}
		options = append(options, models.AgentOption{
			ID:          scalarValue(fields["id"]),
			Label:       scalarValue(fields["label"]),
			Description: scalarValue(fields["description"]),
		})
	}
	return options
}

func scalarValue(raw json.RawMessage) string {
	if s, ok := stringValue(raw); ok {
		return s
	}
	var n json.Number
	if len(raw) > 0 && json.Unmarshal(raw, &n) == nil {
		if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
			return strconv.FormatInt(i, 10)
		}
		return n.String()
	}
	return ""
}
