package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/seismiq/quakeagent/internal/ports"
)

// NewValidator creates the validator shared by all stages for completion
// response schemas.
func NewValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

// completeJSON sends a prompt to the completion service and decodes the
// response into out, which must be a pointer to a struct with validate
// tags. The response is treated as untrusted: JSON is extracted from
// whatever wrapping the model produced, unmarshaled, and then validated
// against the struct tags. Any mismatch is an error, never a trusted
// shape.
func completeJSON(
	ctx context.Context,
	client ports.CompletionClient,
	v *validator.Validate,
	prompt string,
	options map[string]any,
	out any,
) error {
	// Callers may share one options map across concurrent calls, so the
	// response_format insertion goes into a copy, never the caller's map.
	merged := make(map[string]any, len(options)+1)
	for k, v := range options {
		merged[k] = v
	}
	if _, ok := merged["response_format"]; !ok {
		merged["response_format"] = "json"
	}

	response, err := client.Complete(ctx, prompt, merged)
	if err != nil {
		return fmt.Errorf("completion call failed: %w", err)
	}

	jsonStr := extractJSON(response)
	if jsonStr == "" {
		return fmt.Errorf("no valid JSON found in completion response (response length: %d chars)", len(response))
	}

	if err := json.Unmarshal([]byte(jsonStr), out); err != nil {
		return fmt.Errorf("failed to parse completion JSON (length: %d chars): %w", len(jsonStr), err)
	}

	if err := v.Struct(out); err != nil {
		return fmt.Errorf("completion response failed schema validation: %w", err)
	}

	return nil
}

// extractJSON pulls a JSON object out of a response that may wrap it in
// markdown code fences or surrounding prose. Returns an empty string when
// no balanced object is found.
func extractJSON(response string) string {
	response = strings.TrimSpace(response)

	if idx := strings.Index(response, "```json"); idx != -1 {
		start := idx + len("```json")
		if end := strings.Index(response[start:], "```"); end != -1 {
			return strings.TrimSpace(response[start : start+end])
		}
	}

	if idx := strings.Index(response, "```"); idx != -1 {
		start := idx + 3
		// Skip a language identifier on the fence line.
		if nl := strings.Index(response[start:], "\n"); nl != -1 {
			start += nl + 1
		}
		if end := strings.Index(response[start:], "```"); end != -1 {
			candidate := strings.TrimSpace(response[start : start+end])
			if strings.HasPrefix(candidate, "{") {
				return candidate
			}
		}
	}

	start := strings.Index(response, "{")
	if start == -1 {
		return ""
	}

	// Walk to the matching closing brace, ignoring braces inside strings.
	braceCount := 0
	inString := false
	escapeNext := false
	for i := start; i < len(response); i++ {
		c := response[i]
		if escapeNext {
			escapeNext = false
			continue
		}
		switch {
		case c == '\\':
			escapeNext = true
		case c == '"':
			inString = !inString
		case !inString && c == '{':
			braceCount++
		case !inString && c == '}':
			braceCount--
			if braceCount == 0 {
				return response[start : i+1]
			}
		}
	}

	return ""
}
