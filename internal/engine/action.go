package engine

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Action is one element of the discriminated union produced by the upstream
// language model. Besides the type tag, payload fields may appear at the top
// level (legacy aliases) or under a nested "data" object, so all keys are
// retained for the field extractor to probe.
type Action struct {
	Type   string
	Fields map[string]any
}

// UnmarshalJSON keeps every payload key alongside the type tag.
func (a *Action) UnmarshalJSON(b []byte) error {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	if t, ok := m["type"].(string); ok {
		a.Type = t
	}
	a.Fields = m
	return nil
}

// MarshalJSON writes the retained field map back out.
func (a Action) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(a.Fields)+1)
	for k, v := range a.Fields {
		m[k] = v
	}
	m["type"] = a.Type
	return json.Marshal(m)
}

// Data returns the nested data object, or nil if absent.
func (a Action) Data() map[string]any {
	d, _ := a.Fields["data"].(map[string]any)
	return d
}

// ActionResult reports the outcome of a single dispatched action.
type ActionResult struct {
	Success bool   `json:"success"`
	Type    string `json:"type"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// BatchResult aggregates the per-action results of one batch.
type BatchResult struct {
	Results   []ActionResult `json:"results"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
}

// assistantPayload is the JSON envelope the language model is instructed
// to produce.
type assistantPayload struct {
	Response string   `json:"response"`
	Actions  []Action `json:"actions"`
}

// ParseActions extracts the {response, actions} envelope from raw model
// output. Models wrap JSON in code fences or prose often enough that the
// parser scans for the outermost object instead of requiring clean JSON.
func ParseActions(content string) (string, []Action, error) {
	trimmed := strings.TrimSpace(content)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var payload assistantPayload
	if err := json.Unmarshal([]byte(trimmed), &payload); err == nil {
		return payload.Response, payload.Actions, nil
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		// No JSON at all: treat the whole reply as a plain response.
		return content, nil, nil
	}
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &payload); err != nil {
		return "", nil, fmt.Errorf("parse assistant payload: %w", err)
	}
	return payload.Response, payload.Actions, nil
}
