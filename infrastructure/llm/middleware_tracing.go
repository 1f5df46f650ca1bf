package llm

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracingLLM wraps each request in an OpenTelemetry span carrying the
// model, prompt length, and token usage.
type tracingLLM struct {
	next   CoreLLM
	tracer trace.Tracer
}

// TracingMiddleware creates middleware that records a span per request.
func TracingMiddleware() Middleware {
	tracer := otel.Tracer("quakeagent/llm")
	return func(next CoreLLM) CoreLLM {
		return &tracingLLM{next: next, tracer: tracer}
	}
}

// DoRequest executes the request inside a span, recording token usage
// on success and the error on failure.
func (t *tracingLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	ctx, span := t.tracer.Start(ctx, "llm.request",
		trace.WithAttributes(
			attribute.String("llm.model", t.next.GetModel()),
			attribute.Int("llm.prompt_length", len(prompt)),
		))
	defer span.End()

	response, tokensIn, tokensOut, err := t.next.DoRequest(ctx, prompt, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return response, tokensIn, tokensOut, err
	}

	span.SetAttributes(
		attribute.Int("llm.tokens_in", tokensIn),
		attribute.Int("llm.tokens_out", tokensOut),
	)
	return response, tokensIn, tokensOut, nil
}

func (t *tracingLLM) GetModel() string  { return t.next.GetModel() }
func (t *tracingLLM) SetModel(m string) { t.next.SetModel(m) }
