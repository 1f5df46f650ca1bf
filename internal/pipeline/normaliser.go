package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/seismiq/quakeagent/internal/domain"
	"github.com/seismiq/quakeagent/internal/ports"
)

const normaliserPromptTemplate = `You are a Query Normaliser for a USGS earthquake search agent.
Today's date is %s.

Your job is to extract search parameters from the user's query and map them
directly to query fields. Only set fields the user explicitly stated or that
you can confidently infer. Leave everything else as null; defaults will be
applied afterwards.

%s

---

MAPPING RULES

1. TIME
   - Compute actual ISO8601 dates from relative phrases using today = %s.
   - "last week" -> starttime = 7 days ago, endtime = today
   - "yesterday" -> starttime = yesterday, endtime = yesterday
   - "in January 2024" -> starttime = 2024-01-01, endtime = 2024-01-31
   - If the user gives only a start ("since January") set starttime and leave endtime null.

2. GEOGRAPHY  (read carefully, violations cause API failures)
   Choose EXACTLY ONE geometry type and set ONLY those fields:

   CIRCLE  (for cities, landmarks, or user-specified coordinates)
     Set: latitude, longitude
     Leave null: minlatitude, maxlatitude, minlongitude, maxlongitude
     Example: "near Tokyo" -> latitude=35.68, longitude=139.69 (maxradiuskm added later)

   BOUNDING BOX  (for countries, regions, multi-city areas)
     Set: minlatitude, maxlatitude, minlongitude, maxlongitude
     Leave null: latitude, longitude, maxradiuskm
     Example: "near Turkey" -> minlatitude=36.0, maxlatitude=42.1, minlongitude=26.0, maxlongitude=45.0

   RULE: NEVER set both circle fields (latitude/longitude) and box fields simultaneously.
         Setting both causes the API to return their intersection, which is always empty.

3. MAGNITUDE
   - Vague phrases require an assumption; record it in the assumptions list:
     "big"         -> assume minmagnitude=6   (record assumption)
     "major"       -> assume minmagnitude=7   (record assumption)
     "significant" -> assume minmagnitude=5   (record assumption)
     "strong"      -> assume minmagnitude=6   (record assumption)

4. QUERY TYPE
   - "how many", "count", "number of"  ->  query_type="/count"
   - All other data requests           ->  query_type="/query"

5. LIMIT / ORDERING
   - "top N" or "N biggest" -> limit=N, orderby="magnitude"
   - "most recent N"        -> limit=N, orderby="time"
   - "N earthquakes"        -> limit=N

6. ASSUMPTIONS
   - Record every inference you had to make that was not stated explicitly.
   - Format: "<original phrase> -> <field>=<value>"
   - Examples:
     "User said 'big earthquakes' -> assumed minmagnitude=6.0"
     "User said 'near Tokyo' -> mapped to latitude=35.68, longitude=139.69"
     "User said 'Japan' -> mapped to bounding box lat 30-46, lon 130-146"

Respond with a JSON object containing only the fields you extracted plus an
"assumptions" array of strings. Use the exact field names from the reference.`

// normalisedQuery is the structured extraction returned by the completion
// service: the sparse user-specified fields plus the inferences made.
type normalisedQuery struct {
	domain.QueryModel
	Assumptions []string `json:"assumptions"`
}

// Normaliser extracts query fields from the user's request. It stores only
// what the user specified; expansion to the full defaulted model happens
// in the executor, from the same stored fields, so retries are
// reproducible.
type Normaliser struct {
	llm         ports.CompletionClient
	validate    *validator.Validate
	defaults    domain.Defaults
	logger      zerolog.Logger
	temperature float64
	now         func() time.Time
}

// NewNormaliser creates the query extraction stage.
func NewNormaliser(
	llm ports.CompletionClient,
	validate *validator.Validate,
	defaults domain.Defaults,
	logger zerolog.Logger,
	temperature float64,
	now func() time.Time,
) *Normaliser {
	if now == nil {
		now = time.Now
	}
	return &Normaliser{llm: llm, validate: validate, defaults: defaults, logger: logger, temperature: temperature, now: now}
}

func (n *Normaliser) Name() string { return "normaliser" }

// Run maps the user query to typed query fields, derives the assumption
// list, and records everything in the patch. Evaluator feedback, when
// present, is embedded in the prompt and then cleared so a later
// summariser retry does not inherit it.
func (n *Normaliser) Run(ctx context.Context, state *domain.ConversationState) (domain.Patch, error) {
	today := n.now().UTC().Format("2006-01-02")
	prompt := fmt.Sprintf(normaliserPromptTemplate, today, FormatGlossaryForLLM(), today)

	if state.EvalFeedback != "" {
		prompt += "\n\nEVALUATOR FEEDBACK: your previous normalisation was rejected. " +
			"Correct the specific issues described below before producing new output:\n" +
			state.EvalFeedback
	}
	prompt += "\n\nUSER QUERY:\n" + state.UserQuery

	var extracted normalisedQuery
	err := completeJSON(ctx, n.llm, n.validate, prompt, map[string]any{
		"temperature": n.temperature,
	}, &extracted)
	if err != nil {
		return domain.Patch{}, domain.NewStageError(n.Name(), err)
	}

	userFields := extracted.QueryModel
	userFields.ResolveGeometryConflict()

	queryType := userFields.QueryType
	if queryType == "" {
		queryType = domain.QueryTypeQuery
	}
	// query_type is routing, not a user field; the stored sparse model
	// carries only searchable parameters.
	userFields.QueryType = ""

	// Dry-run the expansion so the radius assumption is reported now. The
	// executor repeats the identical expansion when it builds the final
	// model.
	_, radiusAssumption := n.defaults.ExpandQuery(userFields, queryType, n.now())

	assumptions := append([]string{}, extracted.Assumptions...)
	assumptions = append(assumptions, n.defaults.DeriveDefaultAssumptions(userFields.ProvidedFields(), n.now())...)
	if radiusAssumption != "" {
		assumptions = append(assumptions, radiusAssumption)
	}

	summary := []string{fmt.Sprintf("type=%s", queryType)}
	if provided := userFields.ProvidedFields(); len(provided) > 0 {
		summary = append(summary, fmt.Sprintf("fields=%v", provided))
	}
	if len(assumptions) > 0 {
		summary = append(summary, fmt.Sprintf("assumptions=%v", assumptions))
	}

	n.logger.Debug().
		Str("query_type", string(queryType)).
		Strs("fields", userFields.ProvidedFields()).
		Int("assumptions", len(assumptions)).
		Msg("normalised user query")

	return domain.Patch{
		QueryType:       domain.Ptr(queryType),
		NormalisedQuery: &userFields,
		Assumptions:     assumptions,
		EvalFeedback:    domain.Ptr(""),
		Messages: []domain.Message{{
			Role:    domain.RoleAssistant,
			Content: "Normalised: " + strings.Join(summary, " | "),
		}},
	}, nil
}
