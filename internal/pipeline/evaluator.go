package pipeline

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/seismiq/quakeagent/internal/domain"
	"github.com/seismiq/quakeagent/internal/ports"
)

const intentJudgePromptTemplate = `You are a quality evaluator for a grounded earthquake information agent.

Assess one check: INTENT ALIGNMENT.
Does the API URL actually search for what the user asked?
Compare the user query against the URL parameters and flag mismatches such as:
  - Wrong geography (user said "Japan" but URL uses a single lat/lon point)
  - Wrong query type (user said "how many" but URL uses /query instead of /count)
  - Wrong time range (user said "last year" but URL covers only one month)
  - Wrong magnitude threshold (user said "big earthquakes" but no minmagnitude is set)

Respond with a JSON object:
{"intent_aligned": true|false, "intent_detail": "<one sentence: why the URL is or is not aligned>"}

USER QUERY: %s

API URL USED: %s`

const claimsJudgePromptTemplate = `You are a quality evaluator for a grounded earthquake information agent.

Assess one check: CLAIMS VERIFICATION.
Are the numerical claims in the answer supported by the evidence?
  - Count claims: if the answer says "X earthquakes were found", verify against the totals
  - Magnitude claims: if the answer says "strongest was M7.2", verify against the event list
  - Absence claims: if the answer says "no events found", verify the result is actually empty

Respond with a JSON object:
{"claims_verified": true|false, "claims_detail": "<one sentence: what was verified, or which claim is wrong>"}

EVIDENCE SUMMARY:
%s

ANSWER TEXT:
%s`

type intentAssessment struct {
	IntentAligned *bool  `json:"intent_aligned" validate:"required"`
	IntentDetail  string `json:"intent_detail" validate:"required"`
}

type claimsAssessment struct {
	ClaimsVerified *bool  `json:"claims_verified" validate:"required"`
	ClaimsDetail   string `json:"claims_detail" validate:"required"`
}

// maxJudgedAnswerLen bounds how much answer text each judge sees.
const maxJudgedAnswerLen = 2000

// Evaluator is the quality gate that runs after every summariser pass.
// Deterministic rubric checks verify structural completeness; two
// concurrently judged checks assess intent alignment and claim accuracy.
// The confidence score is the fraction of passed checks; below the
// threshold the gate routes back to the normaliser (intent problems) or
// the summariser (content problems) until the pass budget runs out, at
// which point the result is force-passed.
type Evaluator struct {
	llm         ports.CompletionClient
	validate    *validator.Validate
	cfg         EvaluationConfig
	logger      zerolog.Logger
	temperature float64
}

// NewEvaluator creates the quality gate stage.
func NewEvaluator(llm ports.CompletionClient, validate *validator.Validate, cfg EvaluationConfig, logger zerolog.Logger, temperature float64) *Evaluator {
	return &Evaluator{llm: llm, validate: validate, cfg: cfg, logger: logger, temperature: temperature}
}

func (e *Evaluator) Name() string { return "evaluator" }

// Run scores the enriched response and decides whether to terminate or
// retry. The pass counter always advances, even when there is nothing to
// judge, so the retry bound holds across degenerate runs.
func (e *Evaluator) Run(ctx context.Context, state *domain.ConversationState) (domain.Patch, error) {
	loopCount := state.EvalLoopCount + 1

	if state.EnrichedResponse == nil || state.ParsedResult == nil {
		return domain.Patch{
			EvalLoopCount: domain.Ptr(loopCount),
			Messages: []domain.Message{{
				Role:    domain.RoleAssistant,
				Content: "Evaluation skipped - no enriched response to judge.",
			}},
		}, nil
	}

	checks := e.deterministicChecks(state)
	checks = append(checks, e.judgedChecks(ctx, state)...)

	passedCount := 0
	for _, c := range checks {
		if c.Passed {
			passedCount++
		}
	}
	score := int(math.Round(float64(passedCount) / float64(len(checks)) * 100))
	passed := score >= e.cfg.PassThreshold || loopCount >= e.cfg.MaxEvalPasses

	result := domain.EvaluationResult{
		ConfidenceScore: score,
		Passed:          passed,
		RubricChecks:    checks,
	}

	var feedback string
	if !passed {
		result.RetryTarget, result.RetryReason, feedback = e.routeRetry(checks, state.APICallURL)
	}

	status := fmt.Sprintf("Evaluation: %d/100 - passed", score)
	if !passed {
		status = fmt.Sprintf("Evaluation: %d/100 - retrying via %s", score, result.RetryTarget)
	}

	e.logger.Info().
		Int("score", score).
		Bool("passed", passed).
		Int("pass", loopCount).
		Str("retry_target", string(result.RetryTarget)).
		Msg("evaluation complete")

	patch := domain.Patch{
		EvaluationResult: &result,
		EvalLoopCount:    domain.Ptr(loopCount),
		Messages:         []domain.Message{{Role: domain.RoleAssistant, Content: status}},
	}
	if feedback != "" {
		patch.EvalFeedback = domain.Ptr(feedback)
	}
	return patch, nil
}

// deterministicChecks verifies the envelope's structural completeness.
// The first three always run; the rest are conditional on what the run
// actually produced.
func (e *Evaluator) deterministicChecks(state *domain.ConversationState) []domain.RubricCheck {
	enriched := state.EnrichedResponse
	parsed := state.ParsedResult

	var checks []domain.RubricCheck

	titleDetail := "title is empty"
	if enriched.Title != "" {
		titleDetail = truncate(enriched.Title, 80)
	}
	checks = append(checks, domain.RubricCheck{
		Name:   "title_present",
		Passed: strings.TrimSpace(enriched.Title) != "",
		Detail: titleDetail,
	})

	var apiLog *domain.APICallLog
	if len(enriched.APICalls) > 0 {
		apiLog = &enriched.APICalls[0]
	}

	tsDetail := "no api_calls recorded"
	if apiLog != nil {
		tsDetail = apiLog.RetrievedAtUTC
	}
	checks = append(checks, domain.RubricCheck{
		Name:   "retrieval_timestamp_present",
		Passed: apiLog != nil && apiLog.RetrievedAtUTC != "",
		Detail: tsDetail,
	})

	urlDetail := "missing"
	if apiLog != nil && apiLog.URL != "" {
		urlDetail = truncate(apiLog.URL, 80)
	}
	checks = append(checks, domain.RubricCheck{
		Name:   "api_url_present",
		Passed: apiLog != nil && apiLog.URL != "",
		Detail: urlDetail,
	})

	if len(state.Assumptions) > 0 {
		detail := "assumptions were applied but not stored in enriched response"
		if len(enriched.Assumptions) > 0 {
			detail = fmt.Sprintf("%d assumption(s) recorded", len(enriched.Assumptions))
		}
		checks = append(checks, domain.RubricCheck{
			Name:   "assumptions_disclosed",
			Passed: len(enriched.Assumptions) > 0,
			Detail: detail,
		})
	}

	if (parsed.Kind == domain.ResultCollection || parsed.Kind == domain.ResultSingleEvent) && len(parsed.Events) > 0 {
		idFound := false
		for _, ev := range parsed.Events {
			if ev.ID != "" && strings.Contains(enriched.AnswerText, ev.ID) {
				idFound = true
				break
			}
		}
		detail := "no event IDs from evidence found in answer text"
		if idFound {
			detail = "at least one event ID present in answer"
		}
		checks = append(checks, domain.RubricCheck{
			Name:   "event_ids_referenced",
			Passed: idFound,
			Detail: detail,
		})
	}

	if parsed.Kind == domain.ResultCount && parsed.Count != nil {
		countStr := fmt.Sprintf("%d", *parsed.Count)
		found := strings.Contains(enriched.AnswerText, countStr)
		verdict := "NOT found"
		if found {
			verdict = "found"
		}
		checks = append(checks, domain.RubricCheck{
			Name:   "count_value_in_answer",
			Passed: found,
			Detail: fmt.Sprintf("count=%s %s in answer", countStr, verdict),
		})
	}

	if parsed.Kind == domain.ResultEmpty {
		long := len(strings.TrimSpace(enriched.AnswerText)) > e.cfg.MinEmptyExplanationLen
		detail := "answer too brief for an empty result"
		if long {
			detail = "answer contains sufficient explanation"
		}
		checks = append(checks, domain.RubricCheck{
			Name:   "failure_explained",
			Passed: long,
			Detail: detail,
		})
	}

	return checks
}

// judgedChecks runs the two externally judged checks concurrently. A
// failed judge call degrades its own check to a failure with the error as
// detail rather than failing the whole evaluation.
func (e *Evaluator) judgedChecks(ctx context.Context, state *domain.ConversationState) []domain.RubricCheck {
	evidence := formatEvidenceSummary(state.ParsedResult)
	answer := truncate(state.EnrichedResponse.AnswerText, maxJudgedAnswerLen)
	options := map[string]any{"temperature": e.temperature}

	intent := domain.RubricCheck{Name: "intent_aligned"}
	claims := domain.RubricCheck{Name: "claims_verified"}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var a intentAssessment
		prompt := fmt.Sprintf(intentJudgePromptTemplate, state.UserQuery, state.APICallURL)
		if err := completeJSON(gctx, e.llm, e.validate, prompt, options, &a); err != nil {
			intent.Detail = "judge call failed: " + err.Error()
			return nil
		}
		intent.Passed = *a.IntentAligned
		intent.Detail = a.IntentDetail
		return nil
	})
	g.Go(func() error {
		var a claimsAssessment
		prompt := fmt.Sprintf(claimsJudgePromptTemplate, evidence, answer)
		if err := completeJSON(gctx, e.llm, e.validate, prompt, options, &a); err != nil {
			claims.Detail = "judge call failed: " + err.Error()
			return nil
		}
		claims.Passed = *a.ClaimsVerified
		claims.Detail = a.ClaimsDetail
		return nil
	})
	_ = g.Wait()

	return []domain.RubricCheck{intent, claims}
}

// routeRetry picks the stage to re-enter and builds its corrective
// feedback. An intent misalignment re-runs the whole query pipeline from
// the normaliser; anything else re-composes the answer.
func (e *Evaluator) routeRetry(checks []domain.RubricCheck, apiCallURL string) (domain.RetryTarget, string, string) {
	for _, c := range checks {
		if c.Name == "intent_aligned" && !c.Passed {
			reason := "Intent misaligned: " + c.Detail
			feedback := fmt.Sprintf(
				"Your previous normalisation produced this API URL:\n  %s\n\n"+
					"The evaluator rejected it for the following reason:\n  %s\n\n"+
					"Re-examine the user query carefully and correct your field mapping. "+
					"Pay particular attention to: query_type (/query vs /count), "+
					"geography location & type, time range, and magnitude threshold.",
				apiCallURL, c.Detail)
			return domain.RetryNormaliser, reason, feedback
		}
	}

	var parts []string
	for _, c := range checks {
		if !c.Passed {
			parts = append(parts, fmt.Sprintf("%s: %s", c.Name, c.Detail))
		}
	}
	reason := "Failed checks: " + strings.Join(parts, "; ")
	return domain.RetrySummariser, reason, reason
}

// truncate shortens s to at most n bytes without splitting a multibyte
// rune, so details and judge prompts stay valid UTF-8.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
