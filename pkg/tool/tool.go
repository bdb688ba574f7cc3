package tool

import (
	"encoding/json"

	"github.com/alpkeskin/gotoon"
	"github.com/hopper-project/core/pkg/tool/builtin"
)

var useCompactEncoding = true

// SetResultEncoding toggles whether tool outputs are serialized with the
// compact TOON encoding (easier for an LLM to re-read in context) or plain
// JSON.
func SetResultEncoding(compact bool) {
	useCompactEncoding = compact
}

// Tool represents a tool that can be called by the LLM
type Tool interface {
	Name() string
	Description() string
	Parameters() builtin.ParameterSchema
	Execute(params map[string]any) (*builtin.Result, error)
}

// ToOpenAIFunction converts a tool to OpenAI function calling format
func ToOpenAIFunction(t Tool) map[string]any {
	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        t.Name(),
			"description": t.Description(),
			"parameters":  t.Parameters(),
		},
	}
}

// ToJSON converts a result to its wire encoding — TOON by default, falling
// back to plain JSON when compact encoding is disabled or the result
// doesn't encode cleanly as TOON (e.g. deeply irregular nested maps).
func ToJSON(r *builtin.Result) (string, error) {
	if !useCompactEncoding {
		data, err := json.Marshal(r)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	encoded, err := gotoon.Encode(r)
	if err != nil {
		data, jsonErr := json.Marshal(r)
		if jsonErr != nil {
			return "", err
		}
		return string(data), nil
	}
	return encoded, nil
}

// FromJSON parses a result from JSON
func FromJSON(jsonStr string) (*builtin.Result, error) {
	var result builtin.Result
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return nil, err
	}
	return &result, nil
}
