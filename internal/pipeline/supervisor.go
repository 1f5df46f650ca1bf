package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/seismiq/quakeagent/internal/domain"
	"github.com/seismiq/quakeagent/internal/ports"
)

const supervisorPrompt = `You are a helpful earthquake information assistant.

Analyse the user's message and classify it into one of three actions:

  "normalise_query"
      The user wants to search for earthquake data: a list, count, ranked results,
      or details about a specific event.
      Examples: "earthquakes near Tokyo last year", "how many M5+ events in 2024?",
                "show me the biggest earthquakes this month", "details for event us6000m0xl"

  "show_glossary"
      The user explicitly asks to see the full parameter list or glossary.
      Only use this for direct requests to see the reference, NOT for general capability questions.
      Examples: "show me all parameters", "list all filters", "show the glossary",
                "what are all the search options?", "explain maxradiuskm"

  "answer_question"
      Everything else, including:
        - Capability questions ("what can you search?", "can I filter by location?")
        - Query-building help ("how do I search near Tokyo?", "what magnitude should I use?")
        - General earthquake knowledge or follow-up questions on previous results
        - Off-topic requests

Respond with a JSON object of this exact shape:
{
  "action": "normalise_query" | "show_glossary" | "answer_question",
  "user_query": "<the user's data request verbatim when action is normalise_query, else empty>",
  "glossary_topic": "<a single parameter name when the user asks about one specific parameter, else empty>",
  "response": "<your reply to show the user>"
}

Response guidance:
  - "normalise_query": a brief acknowledgement, e.g. "Searching for earthquakes..."
  - "show_glossary": "Here is the full list of search parameters:" (the glossary is appended automatically;
    when glossary_topic is set, only that parameter's reference is appended)
  - "answer_question": answer directly. For capability questions give a conversational answer
    covering location, time, magnitude, count, specific-event, and impact searches with 2-3
    example queries, and end with: "Say 'show me all parameters' if you'd like the full filter reference."
    For off-topic requests, politely explain you specialise in earthquake information.`

// supervisorDecision is the structured classification returned by the
// completion service.
type supervisorDecision struct {
	Action        string `json:"action" validate:"required,oneof=normalise_query show_glossary answer_question"`
	UserQuery     string `json:"user_query"`
	GlossaryTopic string `json:"glossary_topic"`
	Response      string `json:"response" validate:"required"`
}

// Supervisor classifies the user's turn and produces the direct reply for
// turns that never reach the query pipeline.
type Supervisor struct {
	llm         ports.CompletionClient
	validate    *validator.Validate
	logger      zerolog.Logger
	temperature float64
}

// NewSupervisor creates the intent classification stage.
func NewSupervisor(llm ports.CompletionClient, validate *validator.Validate, logger zerolog.Logger, temperature float64) *Supervisor {
	return &Supervisor{llm: llm, validate: validate, logger: logger, temperature: temperature}
}

func (s *Supervisor) Name() string { return "supervisor" }

// Run classifies intent. For glossary requests the rendered reference is
// appended to the reply; a recognized topic narrows it to one parameter.
func (s *Supervisor) Run(ctx context.Context, state *domain.ConversationState) (domain.Patch, error) {
	prompt := supervisorPrompt + "\n\nCONVERSATION:\n" + renderMessages(state.Messages)

	var decision supervisorDecision
	err := completeJSON(ctx, s.llm, s.validate, prompt, map[string]any{
		"temperature": s.temperature,
	}, &decision)
	if err != nil {
		return domain.Patch{}, domain.NewStageError(s.Name(), err)
	}

	responseText := decision.Response
	if decision.Action == string(domain.ActionShowGlossary) {
		if entry := LookupGlossaryEntry(decision.GlossaryTopic); entry != nil {
			responseText += "\n\n" + FormatEntryForUser(entry)
		} else {
			responseText += "\n\n" + FormatGlossaryForUser()
		}
	}

	s.logger.Debug().
		Str("action", decision.Action).
		Str("user_query", decision.UserQuery).
		Msg("supervisor classified turn")

	return domain.Patch{
		Action:    domain.Ptr(domain.Action(decision.Action)),
		UserQuery: domain.Ptr(decision.UserQuery),
		Messages:  []domain.Message{{Role: domain.RoleAssistant, Content: responseText}},
	}, nil
}

// renderMessages flattens the conversation log for prompt inclusion.
func renderMessages(messages []domain.Message) string {
	var b strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	return b.String()
}
