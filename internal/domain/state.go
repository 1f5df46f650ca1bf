// Package domain contains the pure data models shared by every pipeline
// stage: the conversation record, the catalog query model, normalized
// catalog results, and the evaluation gate's output types.
package domain

// Action is the supervisor's intent classification for a user turn.
type Action string

const (
	// ActionNormaliseQuery marks a turn that asks for earthquake data and
	// must flow through the full query pipeline.
	ActionNormaliseQuery Action = "normalise_query"

	// ActionAnswerQuestion marks a turn the supervisor answers directly.
	ActionAnswerQuestion Action = "answer_question"

	// ActionShowGlossary marks an explicit request for the parameter
	// reference.
	ActionShowGlossary Action = "show_glossary"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn in the conversation log.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ConversationState is the single mutable record threaded through every
// pipeline stage. The orchestrator owns it for the duration of one run;
// stages read it and contribute Patches, never mutating it directly.
type ConversationState struct {
	// Messages is the append-only conversation log.
	Messages []Message `json:"messages"`

	// Action is the supervisor's classification of the current turn.
	Action Action `json:"action,omitempty"`

	// UserQuery is the verbatim data request extracted by the supervisor.
	UserQuery string `json:"user_query,omitempty"`

	// QueryType is the catalog endpoint selected by the normaliser.
	QueryType QueryType `json:"query_type,omitempty"`

	// NormalisedQuery holds only the user-specified query fields (nil
	// pointer fields were not specified). It is the reproducibility anchor:
	// every stage that needs a full model rebuilds it from here plus the
	// defaults, so retries always re-expand to the same validated query.
	NormalisedQuery *QueryModel `json:"normalised_query,omitempty"`

	// Assumptions records every inference and silently-applied default,
	// in application order. Accumulated across normaliser retries.
	Assumptions []string `json:"assumptions,omitempty"`

	// ParsedResult, RetrievedAtUTC, and APICallURL are the provenance of
	// the most recent catalog call.
	ParsedResult   *APIResult `json:"parsed_result,omitempty"`
	RetrievedAtUTC string     `json:"retrieved_at_utc,omitempty"`
	APICallURL     string     `json:"api_call_url,omitempty"`

	// EnrichedResponse is the latest answer envelope from the summariser.
	EnrichedResponse *EnrichedResponse `json:"enriched_response,omitempty"`

	// EvaluationResult is the latest gate decision.
	EvaluationResult *EvaluationResult `json:"evaluation_result,omitempty"`

	// EvalLoopCount counts evaluator passes. Strictly increasing; the
	// evaluator force-passes on the third pass.
	EvalLoopCount int `json:"eval_loop_count"`

	// EvalFeedback is corrective text for the stage the evaluator retries.
	// The consuming stage clears it so it cannot leak into a later,
	// unrelated pass.
	EvalFeedback string `json:"eval_feedback,omitempty"`
}

// NewConversationState creates a fresh per-run record seeded with the
// user's message.
func NewConversationState(userMessage string) *ConversationState {
	return &ConversationState{
		Messages: []Message{{Role: RoleUser, Content: userMessage}},
	}
}

// Patch is a stage's contribution to the shared record. A zero Patch is a
// safe no-op, which is how a stage with nothing to say (missing upstream
// artifact, failed catalog call already reported) passes control along
// without crashing downstream stages.
//
// Merge strategies are per field: Messages append, Assumptions append with
// exact-duplicate collapse (so a normaliser retry accumulates new
// inferences without re-reporting unchanged defaults), and every other
// field overwrites when its pointer is non-nil. EvalFeedback distinguishes
// "leave alone" (nil) from "clear" (pointer to empty string).
type Patch struct {
	Messages    []Message
	Assumptions []string

	Action           *Action
	UserQuery        *string
	QueryType        *QueryType
	NormalisedQuery  *QueryModel
	ParsedResult     *APIResult
	RetrievedAtUTC   *string
	APICallURL       *string
	EnrichedResponse *EnrichedResponse
	EvaluationResult *EvaluationResult
	EvalLoopCount    *int
	EvalFeedback     *string
}

// Apply merges a stage's patch into the record using the per-field
// strategies documented on Patch. Only the orchestrator calls this,
// between stage invocations.
func (s *ConversationState) Apply(p Patch) {
	s.Messages = append(s.Messages, p.Messages...)

	if len(p.Assumptions) > 0 {
		seen := make(map[string]struct{}, len(s.Assumptions))
		for _, a := range s.Assumptions {
			seen[a] = struct{}{}
		}
		for _, a := range p.Assumptions {
			if _, dup := seen[a]; dup {
				continue
			}
			seen[a] = struct{}{}
			s.Assumptions = append(s.Assumptions, a)
		}
	}

	if p.Action != nil {
		s.Action = *p.Action
	}
	if p.UserQuery != nil {
		s.UserQuery = *p.UserQuery
	}
	if p.QueryType != nil {
		s.QueryType = *p.QueryType
	}
	if p.NormalisedQuery != nil {
		s.NormalisedQuery = p.NormalisedQuery
	}
	if p.ParsedResult != nil {
		s.ParsedResult = p.ParsedResult
	}
	if p.RetrievedAtUTC != nil {
		s.RetrievedAtUTC = *p.RetrievedAtUTC
	}
	if p.APICallURL != nil {
		s.APICallURL = *p.APICallURL
	}
	if p.EnrichedResponse != nil {
		s.EnrichedResponse = p.EnrichedResponse
	}
	if p.EvaluationResult != nil {
		s.EvaluationResult = p.EvaluationResult
	}
	if p.EvalLoopCount != nil {
		s.EvalLoopCount = *p.EvalLoopCount
	}
	if p.EvalFeedback != nil {
		s.EvalFeedback = *p.EvalFeedback
	}
}

// Ptr returns a pointer to v. Convenience for building Patches.
func Ptr[T any](v T) *T { return &v }
