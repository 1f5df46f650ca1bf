package domain

// RubricCheck is the result of a single evaluator rubric check.
type RubricCheck struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// RetryTarget names the stage a failed evaluation re-enters.
type RetryTarget string

const (
	// RetryNone means the gate passed and the run terminates.
	RetryNone RetryTarget = ""

	// RetryNormaliser re-enters query extraction, used when the constructed
	// query does not match the user's intent.
	RetryNormaliser RetryTarget = "normaliser"

	// RetrySummariser re-composes the answer from the existing result.
	RetrySummariser RetryTarget = "summariser"
)

// EvaluationResult is the quality gate's output for one pass.
type EvaluationResult struct {
	// ConfidenceScore is 0 to 100, the rounded fraction of checks passed.
	ConfidenceScore int `json:"confidence_score"`

	// Passed is true when the score clears the threshold or the retry
	// budget is exhausted.
	Passed bool `json:"passed"`

	// RubricChecks holds one entry per check performed, in execution order.
	RubricChecks []RubricCheck `json:"rubric_checks"`

	RetryTarget RetryTarget `json:"retry_target"`

	// RetryReason is the human-readable explanation when a retry is needed.
	RetryReason string `json:"retry_reason,omitempty"`
}

// FailedChecks returns the checks that did not pass, in order.
func (r EvaluationResult) FailedChecks() []RubricCheck {
	var failed []RubricCheck
	for _, c := range r.RubricChecks {
		if !c.Passed {
			failed = append(failed, c)
		}
	}
	return failed
}
