package llm

import (
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
)

// cleanJSON strips markdown code fences and any prose around the outermost
// JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

// classificationKeys must be present and non-null in stage-1 output. A zero
// sub-score is a real answer; a missing one is not.
var classificationKeys = []string{"score_fit", "score_pain", "score_data_quality"}

// decode parses raw model output into T and validates it. Keys listed in
// required must be present with a non-null value. Any failure is a
// ModelOutputError carrying the raw text.
func decode[T any](v *validator.Validate, stage, raw string, required ...string) (*T, error) {
	cleaned := cleanJSON(raw)
	if cleaned == "" || !strings.HasPrefix(cleaned, "{") {
		return nil, &ModelOutputError{Stage: stage, Raw: raw, Err: eris.New("no JSON object in response")}
	}

	var out T
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return nil, &ModelOutputError{Stage: stage, Raw: raw, Err: eris.Wrap(err, "decode JSON")}
	}
	if err := v.Struct(out); err != nil {
		return nil, &ModelOutputError{Stage: stage, Raw: raw, Err: eris.Wrap(err, "schema validation")}
	}
	if len(required) > 0 {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal([]byte(cleaned), &fields); err != nil {
			return nil, &ModelOutputError{Stage: stage, Raw: raw, Err: eris.Wrap(err, "decode JSON")}
		}
		for _, k := range required {
			if val, ok := fields[k]; !ok || string(val) == "null" {
				return nil, &ModelOutputError{Stage: stage, Raw: raw, Err: eris.Errorf("schema validation: missing required field %q", k)}
			}
		}
	}
	return &out, nil
}
