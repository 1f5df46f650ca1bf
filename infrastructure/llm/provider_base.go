package llm

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultMaxTokens is used when the caller does not set max_tokens.
	DefaultMaxTokens = 2048

	// DefaultTimeout bounds provider HTTP clients when none is configured.
	DefaultTimeout = 60 * time.Second

	// MinPenalty and MaxPenalty bound frequency and presence penalties.
	MinPenalty = -2.0
	MaxPenalty = 2.0

	// ResponseFormatJSON asks the provider for a JSON object response,
	// natively where supported and via instruction otherwise.
	ResponseFormatJSON = "json"
)

// BaseProvider provides common, thread-safe functionality for all
// providers, primarily model-name management.
type BaseProvider struct {
	mu    sync.RWMutex
	model string
}

// GetModel returns the currently configured model name. Safe for
// concurrent use.
func (b *BaseProvider) GetModel() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.model
}

// SetModel updates the model name. Safe for concurrent use.
func (b *BaseProvider) SetModel(model string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.model = model
}

// RequestOptions is the standardized set of request parameters shared
// across providers.
type RequestOptions struct {
	// MaxTokens caps the number of generated tokens.
	MaxTokens int

	// Model overrides the provider's configured model for this request.
	Model string

	// Temperature controls output randomness; nil uses the provider
	// default.
	Temperature *float64

	// TopP enables nucleus sampling; nil uses the provider default.
	TopP *float64

	// System carries instructions separate from the user prompt.
	System string

	// ResponseFormat requests a structured response shape, currently
	// only ResponseFormatJSON.
	ResponseFormat string

	// Extra holds provider-specific options not covered above.
	Extra map[string]any
}

// ParseRequestOptions extracts standardized request parameters from a
// map, falling back to defaults for missing or invalid entries.
// Unrecognized keys are collected into Extra.
func ParseRequestOptions(opts map[string]any, defaultModel string) RequestOptions {
	options := RequestOptions{
		MaxTokens:      extractOptionalInt(opts, "max_tokens", DefaultMaxTokens, isPositiveInt),
		Model:          extractOptionalString(opts, "model", defaultModel, isNonEmptyString),
		System:         extractOptionalString(opts, "system", "", nil),
		ResponseFormat: extractOptionalString(opts, "response_format", "", nil),
		Extra:          make(map[string]any),
	}

	if temp := extractOptionalFloat64(opts, "temperature", -1, isValidTemperature); temp != -1 {
		options.Temperature = &temp
	}

	if topP := extractOptionalFloat64(opts, "top_p", -1, isValidTopP); topP != -1 {
		options.TopP = &topP
	}

	for k, v := range opts {
		switch k {
		case "max_tokens", "model", "system", "response_format", "temperature", "top_p":
		// Standard options, already processed.
		default:
			options.Extra[k] = v
		}
	}

	return options
}

// WantsJSON reports whether the caller requested a JSON object response.
func (o RequestOptions) WantsJSON() bool {
	return o.ResponseFormat == ResponseFormatJSON
}

// extractOptionalInt reads an integer option, accepting int and float64
// (JSON-decoded numbers), rejecting values the validator refuses.
func extractOptionalInt(opts map[string]any, key string, fallback int, valid func(int) bool) int {
	raw, ok := opts[key]
	if !ok {
		return fallback
	}
	var v int
	switch n := raw.(type) {
	case int:
		v = n
	case int64:
		v = int(n)
	case float64:
		v = int(n)
	default:
		return fallback
	}
	if valid != nil && !valid(v) {
		return fallback
	}
	return v
}

func extractOptionalString(opts map[string]any, key, fallback string, valid func(string) bool) string {
	raw, ok := opts[key]
	if !ok {
		return fallback
	}
	s, ok := raw.(string)
	if !ok {
		return fallback
	}
	if valid != nil && !valid(s) {
		return fallback
	}
	return s
}

func extractOptionalFloat64(opts map[string]any, key string, fallback float64, valid func(float64) bool) float64 {
	raw, ok := opts[key]
	if !ok {
		return fallback
	}
	var v float64
	switch n := raw.(type) {
	case float64:
		v = n
	case float32:
		v = float64(n)
	case int:
		v = float64(n)
	default:
		return fallback
	}
	if valid != nil && !valid(v) {
		return fallback
	}
	return v
}

func isPositiveInt(v int) bool { return v > 0 }

func isNonEmptyString(s string) bool { return strings.TrimSpace(s) != "" }

func isValidTemperature(v float64) bool { return v >= 0 && v <= 2 }

func isValidTopP(v float64) bool { return v >= 0 && v <= 1 }

// clampFloat64 bounds v to [min, max].
func clampFloat64(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// safeFloat32 converts a numeric option value to float32, reporting
// whether the conversion is valid.
func safeFloat32(raw any) (float32, bool) {
	switch n := raw.(type) {
	case float32:
		return n, true
	case float64:
		return float32(n), true
	case int:
		return float32(n), true
	default:
		return 0, false
	}
}

// validateBaseURL checks that an endpoint override is an absolute
// http(s) URL.
func validateBaseURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("base URL must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("base URL %q has no host", raw)
	}
	return strings.TrimRight(raw, "/"), nil
}

// validateTimeout replaces non-positive timeouts with the default.
func validateTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultTimeout
	}
	return d
}

// TokenCounter estimates token counts when a provider does not report
// usage.
type TokenCounter struct {
	// CharactersPerToken is the average characters per token, an
	// approximation tuned for English text.
	CharactersPerToken float64
}

// NewTokenCounter creates a counter with the default ratio.
func NewTokenCounter() *TokenCounter {
	return &TokenCounter{CharactersPerToken: 4.0}
}

// EstimateTokens calculates an estimated token count for text.
func (tc *TokenCounter) EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return int(float64(len(text)) / tc.CharactersPerToken)
}

// GetTokenCount returns the actual count when positive, otherwise an
// estimate from the text.
func (tc *TokenCounter) GetTokenCount(actualCount int, text string) int {
	if actualCount > 0 {
		return actualCount
	}
	return tc.EstimateTokens(text)
}

// jsonInstruction is appended to prompts for providers without a native
// JSON response mode.
const jsonInstruction = "\n\nRespond with only a valid JSON object. No markdown fences, no prose outside the JSON."
