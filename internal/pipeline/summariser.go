package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/seismiq/quakeagent/internal/domain"
	"github.com/seismiq/quakeagent/internal/ports"
)

const summariserPromptTemplate = `You are a Summariser for a grounded earthquake information system.

You will produce two fields and nothing else.

---

FIELD 1: title
A short, interesting, specific title for this result. Base it on the user query and what the
evidence actually shows. Examples:
  "5 Major Earthquakes Near Tokyo in 2024"
  "No M4.5+ Events Detected Near London (2016-2026)"
  "M7.5 Noto Peninsula Earthquake, January 2024"

---

FIELD 2: answer_summary
Write in markdown. Directly answer the user's question, then enrich the answer with key facts
drawn exclusively from the evidence block. Rules:

- Use only numbers, magnitudes, places, and counts that appear in the evidence block.
  Do not invent or estimate anything.
- Where relevant, reference individual events using their event ID (e.g. us6000m0yg).
- If the evidence shows failure (empty result, count = 0, error), say so explicitly and explain
  the filters that were applied so the user understands why, then suggest what they could change.
- Keep prose flowing and readable; bullet points or bold text only where they genuinely help.
- Search the assumptions. Mention any assumptions that could have impacted the answer and
  suggest how the query could be changed, referencing the user's query directly.

Respond with a JSON object: {"title": "...", "answer_summary": "..."}

---

ASSUMPTIONS applied during query normalisation (for your context only):
%s

USER QUERY:
%s

%s`

// summariserOutput is the model-composed part of the envelope; everything
// else is set deterministically.
type summariserOutput struct {
	Title         string `json:"title" validate:"required"`
	AnswerSummary string `json:"answer_summary" validate:"required"`
}

// Summariser composes the grounded answer envelope from the parsed
// catalog result.
type Summariser struct {
	llm         ports.CompletionClient
	validate    *validator.Validate
	logger      zerolog.Logger
	temperature float64
	newID       func() string
}

// NewSummariser creates the answer composition stage.
func NewSummariser(llm ports.CompletionClient, validate *validator.Validate, logger zerolog.Logger, temperature float64, newID func() string) *Summariser {
	if newID == nil {
		newID = uuid.NewString
	}
	return &Summariser{llm: llm, validate: validate, logger: logger, temperature: temperature, newID: newID}
}

func (s *Summariser) Name() string { return "summariser" }

// Run builds the enriched response. When no parsed result exists (a
// failed catalog call upstream) it returns an empty patch so the run can
// reach the terminal state without crashing.
func (s *Summariser) Run(ctx context.Context, state *domain.ConversationState) (domain.Patch, error) {
	if state.ParsedResult == nil {
		return domain.Patch{}, nil
	}

	assumptionsText := "  (none)"
	if len(state.Assumptions) > 0 {
		var b strings.Builder
		for _, a := range state.Assumptions {
			fmt.Fprintf(&b, "  - %s\n", a)
		}
		assumptionsText = strings.TrimRight(b.String(), "\n")
	}

	evidence := formatEvidenceBlock(state.ParsedResult, state.RetrievedAtUTC, state.APICallURL)
	prompt := fmt.Sprintf(summariserPromptTemplate, assumptionsText, state.UserQuery, evidence)

	consumedFeedback := state.EvalFeedback != ""
	if consumedFeedback {
		prompt += "\n\nEVALUATOR FEEDBACK: your previous response failed these checks. " +
			"Address each issue in this response:\n" + state.EvalFeedback
	}

	var out summariserOutput
	err := completeJSON(ctx, s.llm, s.validate, prompt, map[string]any{
		"temperature": s.temperature,
	}, &out)
	if err != nil {
		return domain.Patch{}, domain.NewStageError(s.Name(), err)
	}

	callLog := domain.APICallLog{
		URL:            state.APICallURL,
		RetrievedAtUTC: state.RetrievedAtUTC,
		Kind:           state.ParsedResult.Kind,
		TotalAvailable: state.ParsedResult.TotalAvailable,
		Returned:       state.ParsedResult.Returned,
		Count:          state.ParsedResult.Count,
	}

	enriched := domain.EnrichedResponse{
		RequestID:    s.newID(),
		Title:        out.Title,
		ParsedIntent: state.UserQuery,
		Assumptions:  append([]string{}, state.Assumptions...),
		APICalls:     []domain.APICallLog{callLog},
		AnswerText:   out.AnswerSummary,
	}

	s.logger.Debug().
		Str("request_id", enriched.RequestID).
		Str("title", enriched.Title).
		Msg("composed enriched response")

	patch := domain.Patch{
		EnrichedResponse: &enriched,
		Messages: []domain.Message{{
			Role:    domain.RoleAssistant,
			Content: fmt.Sprintf("## %s\n\n%s", enriched.Title, enriched.AnswerText),
		}},
	}
	if consumedFeedback {
		patch.EvalFeedback = domain.Ptr("")
	}
	return patch, nil
}
