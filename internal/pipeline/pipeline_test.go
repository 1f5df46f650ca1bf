package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seismiq/quakeagent/internal/domain"
	"github.com/seismiq/quakeagent/internal/ports"
)

var testNow = time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func newTestValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

// scriptRule maps a prompt substring to a canned completion response.
// Rules are scanned in order; a once rule is consumed on first match, so
// retry rounds can script different responses for the same stage.
type scriptRule struct {
	match    string
	response string
	once     bool
}

// scriptedLLM is a CompletionClient driven by an ordered rule list. The
// evaluator calls it from concurrent goroutines, hence the mutex.
type scriptedLLM struct {
	mu    sync.Mutex
	rules []scriptRule
}

func (s *scriptedLLM) Complete(_ context.Context, prompt string, _ map[string]any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.rules {
		if strings.Contains(prompt, r.match) {
			if r.once {
				s.rules = append(s.rules[:i], s.rules[i+1:]...)
			}
			return r.response, nil
		}
	}
	return "", fmt.Errorf("no scripted response matches prompt (len=%d)", len(prompt))
}

func (s *scriptedLLM) GetModel() string { return "scripted" }

// stubCatalog serves canned bodies per query type without any network.
type stubCatalog struct {
	bodies  map[domain.QueryType][]byte
	err     error
	fetches []string
}

func (c *stubCatalog) RequestURL(queryType domain.QueryType, params url.Values) string {
	return "https://earthquake.usgs.gov/fdsnws/event/1" + string(queryType) + "?" + params.Encode()
}

func (c *stubCatalog) Fetch(_ context.Context, queryType domain.QueryType, params url.Values) ([]byte, error) {
	c.fetches = append(c.fetches, c.RequestURL(queryType, params))
	if c.err != nil {
		return nil, c.err
	}
	return c.bodies[queryType], nil
}

var _ ports.CatalogSource = (*stubCatalog)(nil)

func newTestOrchestrator(llm ports.CompletionClient, catalog ports.CatalogSource) *Orchestrator {
	cfg := DefaultConfig()
	v := newTestValidator()
	logger := zerolog.Nop()

	return NewOrchestrator(
		NewSupervisor(llm, v, logger, cfg.Temperature),
		NewNormaliser(llm, v, cfg.Defaults, logger, cfg.Temperature, fixedNow),
		NewExecutor(catalog, cfg.Defaults, logger, fixedNow),
		NewSummariser(llm, v, logger, cfg.Temperature, func() string { return "req-test" }),
		NewEvaluator(llm, v, cfg.Evaluation, logger, cfg.Temperature),
		cfg,
		logger,
		nil,
	)
}

const tokyoCollectionBody = `{
	"type": "FeatureCollection",
	"metadata": {"generated": 1756468800000, "count": 1},
	"features": [{
		"type": "Feature",
		"id": "us7000abcd",
		"properties": {
			"mag": 5.4, "magType": "mb", "place": "32 km E of Tokyo, Japan",
			"time": 1755000000000, "status": "reviewed", "type": "earthquake",
			"sig": 449, "tsunami": 0,
			"url": "https://earthquake.usgs.gov/earthquakes/eventpage/us7000abcd",
			"title": "M 5.4 - 32 km E of Tokyo, Japan"
		},
		"geometry": {"type": "Point", "coordinates": [139.9, 35.7, 40.1]}
	}]
}`

func TestOrchestratorCountQuery(t *testing.T) {
	llm := &scriptedLLM{rules: []scriptRule{
		{
			match: "classify it into",
			response: `{"action":"normalise_query",
				"user_query":"how many earthquakes of magnitude 6 or greater hit Turkey in 2023?",
				"glossary_topic":"","response":"Searching for earthquakes..."}`,
		},
		{
			match: "Query Normaliser",
			response: `{"query_type":"/count",
				"minlatitude":36.0,"maxlatitude":42.1,"minlongitude":26.0,"maxlongitude":45.0,
				"starttime":"2023-01-01","endtime":"2023-12-31","minmagnitude":6,
				"assumptions":["User said 'Turkey' -> mapped to bounding box lat 36-42.1, lon 26-45"]}`,
		},
		{
			match: "FIELD 1: title",
			response: `{"title":"3 Major Earthquakes in Turkey in 2023",
				"answer_summary":"The catalogue records 3 earthquakes of magnitude 6 or greater in Turkey during 2023."}`,
		},
		{
			match:    "INTENT ALIGNMENT",
			response: `{"intent_aligned":true,"intent_detail":"URL uses /count with the Turkey bounding box and minmagnitude=6."}`,
		},
		{
			match:    "CLAIMS VERIFICATION",
			response: `{"claims_verified":true,"claims_detail":"The count of 3 matches the evidence."}`,
		},
	}}
	catalog := &stubCatalog{bodies: map[domain.QueryType][]byte{
		domain.QueryTypeCount: []byte(`{"count": 3, "maxAllowed": 20000}`),
	}}

	state := domain.NewConversationState("how many earthquakes of magnitude 6 or greater hit Turkey in 2023?")
	err := newTestOrchestrator(llm, catalog).Run(context.Background(), state)
	require.NoError(t, err)

	assert.Equal(t, domain.QueryTypeCount, state.QueryType)
	assert.Contains(t, state.APICallURL, "/count?")
	assert.Contains(t, state.APICallURL, "minmagnitude=6")
	assert.NotContains(t, state.APICallURL, "latitude=35", "bounding box must not carry circle fields")

	require.NotNil(t, state.ParsedResult)
	assert.Equal(t, domain.ResultCount, state.ParsedResult.Kind)
	require.NotNil(t, state.ParsedResult.Count)
	assert.Equal(t, 3, *state.ParsedResult.Count)

	require.NotNil(t, state.EvaluationResult)
	assert.True(t, state.EvaluationResult.Passed)
	assert.Equal(t, 100, state.EvaluationResult.ConfidenceScore)
	assert.Equal(t, 1, state.EvalLoopCount)

	last := state.Messages[len(state.Messages)-1]
	assert.Equal(t, "Evaluation: 100/100 - passed", last.Content)
}

func TestOrchestratorCircleQueryAppliesRadiusDefault(t *testing.T) {
	llm := &scriptedLLM{rules: []scriptRule{
		{
			match: "classify it into",
			response: `{"action":"normalise_query","user_query":"earthquakes near Tokyo last month",
				"glossary_topic":"","response":"Searching..."}`,
		},
		{
			match: "Query Normaliser",
			response: `{"latitude":35.68,"longitude":139.69,
				"starttime":"2026-07-29","endtime":"2026-08-29",
				"assumptions":["User said 'near Tokyo' -> mapped to latitude=35.68, longitude=139.69"]}`,
		},
		{
			match: "FIELD 1: title",
			response: `{"title":"One M5.4 Event Near Tokyo Last Month",
				"answer_summary":"One earthquake matched: event us7000abcd, a M5.4 32 km east of Tokyo."}`,
		},
		{
			match:    "INTENT ALIGNMENT",
			response: `{"intent_aligned":true,"intent_detail":"Circle search around Tokyo with a recent time window."}`,
		},
		{
			match:    "CLAIMS VERIFICATION",
			response: `{"claims_verified":true,"claims_detail":"The single M5.4 event is in the evidence."}`,
		},
	}}
	catalog := &stubCatalog{bodies: map[domain.QueryType][]byte{
		domain.QueryTypeQuery: []byte(tokyoCollectionBody),
	}}

	state := domain.NewConversationState("earthquakes near Tokyo last month")
	err := newTestOrchestrator(llm, catalog).Run(context.Background(), state)
	require.NoError(t, err)

	assert.Contains(t, state.APICallURL, "maxradiuskm=100")

	foundRadiusAssumption := false
	for _, a := range state.Assumptions {
		if strings.Contains(a, "applied default radius of 100 km") {
			foundRadiusAssumption = true
		}
	}
	assert.True(t, foundRadiusAssumption, "radius default must be disclosed, got %v", state.Assumptions)

	require.NotNil(t, state.EvaluationResult)
	assert.True(t, state.EvaluationResult.Passed)
	for _, c := range state.EvaluationResult.RubricChecks {
		if c.Name == "event_ids_referenced" {
			assert.True(t, c.Passed, "answer references us7000abcd")
		}
	}
}

func TestOrchestratorIntentRetryReroutesToNormaliser(t *testing.T) {
	llm := &scriptedLLM{rules: []scriptRule{
		{
			match: "classify it into",
			response: `{"action":"normalise_query","user_query":"how many earthquakes near Tokyo last month?",
				"glossary_topic":"","response":"Searching..."}`,
		},
		// Second normaliser round sees the evaluator feedback and corrects
		// the query type. This rule must precede the generic one.
		{
			match: "EVALUATOR FEEDBACK",
			response: `{"query_type":"/count","latitude":35.68,"longitude":139.69,
				"starttime":"2026-07-29","endtime":"2026-08-29",
				"assumptions":["User said 'near Tokyo' -> mapped to latitude=35.68, longitude=139.69"]}`,
		},
		// First round wrongly maps a count question to /query.
		{
			match: "Query Normaliser",
			response: `{"latitude":35.68,"longitude":139.69,
				"starttime":"2026-07-29","endtime":"2026-08-29",
				"assumptions":["User said 'near Tokyo' -> mapped to latitude=35.68, longitude=139.69"]}`,
		},
		{
			match: "FIELD 1: title",
			once:  true,
			response: `{"title":"Earthquakes Near Tokyo",
				"answer_summary":"Some earthquakes happened near Tokyo recently."}`,
		},
		{
			match: "FIELD 1: title",
			response: `{"title":"12 Earthquakes Near Tokyo Last Month",
				"answer_summary":"The catalogue counts 12 earthquakes near Tokyo in the last month."}`,
		},
		{
			match:    "INTENT ALIGNMENT",
			once:     true,
			response: `{"intent_aligned":false,"intent_detail":"User asked for a count but the URL uses /query."}`,
		},
		{
			match:    "INTENT ALIGNMENT",
			response: `{"intent_aligned":true,"intent_detail":"URL now uses /count as requested."}`,
		},
		{
			match:    "CLAIMS VERIFICATION",
			once:     true,
			response: `{"claims_verified":false,"claims_detail":"The answer makes no verifiable numeric claim."}`,
		},
		{
			match:    "CLAIMS VERIFICATION",
			response: `{"claims_verified":true,"claims_detail":"The count of 12 matches the evidence."}`,
		},
	}}
	catalog := &stubCatalog{bodies: map[domain.QueryType][]byte{
		domain.QueryTypeQuery: []byte(tokyoCollectionBody),
		domain.QueryTypeCount: []byte(`{"count": 12}`),
	}}

	state := domain.NewConversationState("how many earthquakes near Tokyo last month?")
	err := newTestOrchestrator(llm, catalog).Run(context.Background(), state)
	require.NoError(t, err)

	assert.Equal(t, 2, state.EvalLoopCount)
	assert.Equal(t, domain.QueryTypeCount, state.QueryType)
	assert.Contains(t, state.APICallURL, "/count?")

	require.NotNil(t, state.EvaluationResult)
	assert.True(t, state.EvaluationResult.Passed)
	assert.Equal(t, "", state.EvalFeedback, "feedback is consumed by the retried stage")

	require.Len(t, catalog.fetches, 2)
	assert.Contains(t, catalog.fetches[0], "/query?")
	assert.Contains(t, catalog.fetches[1], "/count?")
}

func TestOrchestratorForcePassesOnThirdEvaluation(t *testing.T) {
	llm := &scriptedLLM{rules: []scriptRule{
		{
			match: "classify it into",
			response: `{"action":"normalise_query","user_query":"how many earthquakes near Tokyo?",
				"glossary_topic":"","response":"Searching..."}`,
		},
		{
			match: "Query Normaliser",
			response: `{"latitude":35.68,"longitude":139.69,
				"assumptions":["User said 'near Tokyo' -> mapped to latitude=35.68, longitude=139.69"]}`,
		},
		{
			match: "FIELD 1: title",
			response: `{"title":"Earthquakes Near Tokyo",
				"answer_summary":"Some earthquakes happened."}`,
		},
		// The judges never approve, so only the pass ceiling terminates.
		{
			match:    "INTENT ALIGNMENT",
			response: `{"intent_aligned":false,"intent_detail":"User asked for a count but the URL uses /query."}`,
		},
		{
			match:    "CLAIMS VERIFICATION",
			response: `{"claims_verified":false,"claims_detail":"No verifiable claims."}`,
		},
	}}
	catalog := &stubCatalog{bodies: map[domain.QueryType][]byte{
		domain.QueryTypeQuery: []byte(tokyoCollectionBody),
	}}

	state := domain.NewConversationState("how many earthquakes near Tokyo?")
	err := newTestOrchestrator(llm, catalog).Run(context.Background(), state)
	require.NoError(t, err)

	assert.Equal(t, 3, state.EvalLoopCount)
	require.NotNil(t, state.EvaluationResult)
	assert.True(t, state.EvaluationResult.Passed, "third evaluation force-passes")
	assert.Less(t, state.EvaluationResult.ConfidenceScore, 70)
}

func TestOrchestratorNonDataTurnTerminatesAfterSupervisor(t *testing.T) {
	llm := &scriptedLLM{rules: []scriptRule{
		{
			match: "classify it into",
			response: `{"action":"answer_question","user_query":"","glossary_topic":"",
				"response":"I specialise in earthquake information. You can ask me about recent events, counts, or impacts."}`,
		},
	}}
	catalog := &stubCatalog{}

	state := domain.NewConversationState("what's the weather like?")
	err := newTestOrchestrator(llm, catalog).Run(context.Background(), state)
	require.NoError(t, err)

	assert.Equal(t, domain.ActionAnswerQuestion, state.Action)
	assert.Nil(t, state.ParsedResult)
	assert.Empty(t, catalog.fetches)
	assert.Equal(t, 0, state.EvalLoopCount)
}

func TestOrchestratorStageErrorBecomesTerminalMessage(t *testing.T) {
	// No scripted rules: the supervisor's completion call fails.
	llm := &scriptedLLM{}
	state := domain.NewConversationState("earthquakes near Tokyo")

	err := newTestOrchestrator(llm, &stubCatalog{}).Run(context.Background(), state)
	require.NoError(t, err, "stage errors surface as messages, not run errors")

	last := state.Messages[len(state.Messages)-1]
	assert.Contains(t, last.Content, "The supervisor step failed")
}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		name    string
		current stageState
		state   *domain.ConversationState
		want    stageState
	}{
		{
			name:    "supervisor routes data request to normaliser",
			current: stateSupervisor,
			state:   &domain.ConversationState{Action: domain.ActionNormaliseQuery},
			want:    stateNormaliser,
		},
		{
			name:    "supervisor routes direct answer to terminal",
			current: stateSupervisor,
			state:   &domain.ConversationState{Action: domain.ActionAnswerQuestion},
			want:    stateTerminal,
		},
		{
			name:    "normaliser always advances to executor",
			current: stateNormaliser,
			state:   &domain.ConversationState{},
			want:    stateExecutor,
		},
		{
			name:    "executor always advances to summariser",
			current: stateExecutor,
			state:   &domain.ConversationState{},
			want:    stateSummariser,
		},
		{
			name:    "summariser always advances to evaluator",
			current: stateSummariser,
			state:   &domain.ConversationState{},
			want:    stateEvaluator,
		},
		{
			name:    "evaluator with no result terminates",
			current: stateEvaluator,
			state:   &domain.ConversationState{},
			want:    stateTerminal,
		},
		{
			name:    "passed evaluation terminates",
			current: stateEvaluator,
			state: &domain.ConversationState{
				EvaluationResult: &domain.EvaluationResult{Passed: true},
			},
			want: stateTerminal,
		},
		{
			name:    "intent failure re-enters normaliser",
			current: stateEvaluator,
			state: &domain.ConversationState{
				EvaluationResult: &domain.EvaluationResult{RetryTarget: domain.RetryNormaliser},
			},
			want: stateNormaliser,
		},
		{
			name:    "content failure re-enters summariser",
			current: stateEvaluator,
			state: &domain.ConversationState{
				EvaluationResult: &domain.EvaluationResult{RetryTarget: domain.RetrySummariser},
			},
			want: stateSummariser,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, transition(tt.current, tt.state))
		})
	}
}
