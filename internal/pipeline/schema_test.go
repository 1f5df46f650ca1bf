package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
	}{
		{
			name:     "bare object",
			response: `{"action": "answer_question"}`,
			want:     `{"action": "answer_question"}`,
		},
		{
			name:     "json code fence",
			response: "Here you go:\n```json\n{\"a\": 1}\n```\nDone.",
			want:     `{"a": 1}`,
		},
		{
			name:     "generic fence with language id",
			response: "```javascript\n{\"a\": 1}\n```",
			want:     `{"a": 1}`,
		},
		{
			name:     "object embedded in prose",
			response: `Sure! The result is {"a": {"b": 2}} as requested.`,
			want:     `{"a": {"b": 2}}`,
		},
		{
			name:     "braces inside strings ignored",
			response: `{"text": "a } inside", "n": 1}`,
			want:     `{"text": "a } inside", "n": 1}`,
		},
		{
			name:     "no object at all",
			response: "I cannot answer that.",
			want:     "",
		},
		{
			name:     "unbalanced object",
			response: `{"a": 1`,
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractJSON(tt.response))
		})
	}
}

func TestCompleteJSON(t *testing.T) {
	type payload struct {
		Name  string `json:"name" validate:"required"`
		Score int    `json:"score" validate:"gte=0,lte=100"`
	}

	t.Run("decodes and validates", func(t *testing.T) {
		llm := &scriptedLLM{rules: []scriptRule{
			{match: "PROMPT", response: "```json\n{\"name\": \"ok\", \"score\": 88}\n```"},
		}}

		var out payload
		err := completeJSON(context.Background(), llm, newTestValidator(), "PROMPT", nil, &out)
		require.NoError(t, err)
		assert.Equal(t, "ok", out.Name)
		assert.Equal(t, 88, out.Score)
	})

	t.Run("schema violation is an error", func(t *testing.T) {
		llm := &scriptedLLM{rules: []scriptRule{
			{match: "PROMPT", response: `{"score": 88}`},
		}}

		var out payload
		err := completeJSON(context.Background(), llm, newTestValidator(), "PROMPT", nil, &out)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "schema validation")
	})

	t.Run("missing JSON is an error", func(t *testing.T) {
		llm := &scriptedLLM{rules: []scriptRule{
			{match: "PROMPT", response: "no structured output here"},
		}}

		var out payload
		err := completeJSON(context.Background(), llm, newTestValidator(), "PROMPT", nil, &out)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no valid JSON")
	})

	t.Run("requests JSON response format by default", func(t *testing.T) {
		var seen map[string]any
		llm := &optionCapturingLLM{response: `{"name": "ok", "score": 1}`, capture: func(opts map[string]any) { seen = opts }}

		var out payload
		err := completeJSON(context.Background(), llm, newTestValidator(), "PROMPT", map[string]any{"temperature": 0.2}, &out)
		require.NoError(t, err)
		assert.Equal(t, "json", seen["response_format"])
		assert.Equal(t, 0.2, seen["temperature"])
	})

	t.Run("never writes to the caller's options map", func(t *testing.T) {
		// Callers share one options map across concurrent completion calls;
		// the response_format insertion must land in a copy.
		var seen map[string]any
		llm := &optionCapturingLLM{response: `{"name": "ok", "score": 1}`, capture: func(opts map[string]any) { seen = opts }}

		opts := map[string]any{"temperature": 0.2}
		var out payload
		err := completeJSON(context.Background(), llm, newTestValidator(), "PROMPT", opts, &out)
		require.NoError(t, err)

		assert.NotContains(t, opts, "response_format")
		assert.Equal(t, "json", seen["response_format"])
	})
}

type optionCapturingLLM struct {
	response string
	capture  func(map[string]any)
}

func (o *optionCapturingLLM) Complete(_ context.Context, _ string, options map[string]any) (string, error) {
	o.capture(options)
	return o.response, nil
}

func (o *optionCapturingLLM) GetModel() string { return "capture" }
