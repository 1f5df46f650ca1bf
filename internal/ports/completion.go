package ports

import "context"

// CompletionClient is the boundary to the external completion service.
// Implementations handle provider-specific authentication, request
// formatting, and response parsing; callers treat the service as a black
// box that turns a prompt into text.
type CompletionClient interface {
	// Complete sends a completion request and returns the generated text.
	//
	// The options map allows per-call tuning without changing the
	// interface. Common options:
	//   - "temperature": float64 (0.0-2.0)
	//   - "max_tokens": int
	//   - "response_format": "json" to request strict JSON output
	Complete(ctx context.Context, prompt string, options map[string]any) (string, error)

	// GetModel returns the model identifier used by this client, for
	// logging and diagnostics.
	GetModel() string
}
