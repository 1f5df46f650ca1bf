package pipeline

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/seismiq/quakeagent/internal/domain"
)

// numPrinter renders grouped totals ("12,345") in collection evidence.
// Count-mode values are deliberately left ungrouped: the evaluator checks
// that the literal count appears in the answer text, and a formatted
// rendering would break that exact match.
var numPrinter = message.NewPrinter(language.English)

// msToISO converts a Unix millisecond timestamp to an ISO8601 UTC string.
func msToISO(ms *int64) string {
	if ms == nil {
		return "unknown"
	}
	return time.UnixMilli(*ms).UTC().Format("2006-01-02T15:04:05Z")
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

// formatEvidenceBlock renders the parsed result as the structured evidence
// block for the summariser prompt. The model must use only the facts in
// this block; event IDs, URLs, and timestamps are included so the answer
// can reference them directly.
func formatEvidenceBlock(result *domain.APIResult, retrievedAtUTC, apiCallURL string) string {
	lines := []string{
		"=== API EVIDENCE BLOCK ===",
		fmt.Sprintf("Retrieved at: %s (UTC)", retrievedAtUTC),
		fmt.Sprintf("API URL: %s", apiCallURL),
		"Source: USGS preferred event data",
		fmt.Sprintf("Result type: %s", result.Kind),
	}

	switch result.Kind {
	case domain.ResultCount:
		lines = append(lines, fmt.Sprintf("Count: %d", intOrZero(result.Count)))

	case domain.ResultEmpty:
		lines = append(lines,
			"No events matched the query.",
			fmt.Sprintf("Total available: %d", intOrZero(result.TotalAvailable)))

	case domain.ResultCollection, domain.ResultSingleEvent:
		lines = append(lines,
			numPrinter.Sprintf("Total matching in catalogue: %d", intOrZero(result.TotalAvailable)),
			fmt.Sprintf("Events returned in this response: %d", intOrZero(result.Returned)),
			"")
		for i, ev := range result.Events {
			lines = append(lines, formatEventEvidence(i+1, ev)...)
			lines = append(lines, "")
		}
	}

	lines = append(lines, "=== END EVIDENCE BLOCK ===")
	return strings.Join(lines, "\n")
}

func formatEventEvidence(ordinal int, ev domain.QuakeEvent) []string {
	mag := "unknown"
	if ev.Magnitude != nil {
		mag = strings.TrimSpace(fmt.Sprintf("%v %s", *ev.Magnitude, ev.MagType))
	}
	place := ev.Place
	if place == "" {
		place = "unknown"
	}
	status := ev.Status
	if status == "" {
		status = "unknown"
	}

	lines := []string{
		fmt.Sprintf("--- Event %d ---", ordinal),
		fmt.Sprintf("  ID:         %s", ev.ID),
		fmt.Sprintf("  Magnitude:  %s", mag),
		fmt.Sprintf("  Place:      %s", place),
		fmt.Sprintf("  Time (UTC): %s", msToISO(ev.TimeMS)),
	}
	if ev.DepthKM != nil {
		lines = append(lines, fmt.Sprintf("  Depth:      %v km", *ev.DepthKM))
	}
	if ev.Latitude != nil && ev.Longitude != nil {
		lines = append(lines, fmt.Sprintf("  Location:   lat=%v, lon=%v", *ev.Latitude, *ev.Longitude))
	}
	lines = append(lines, fmt.Sprintf("  Status:     %s", status))
	if ev.Alert != "" {
		lines = append(lines, fmt.Sprintf("  Alert:      %s (PAGER)", ev.Alert))
	}
	if ev.Tsunami {
		lines = append(lines, "  Tsunami:    YES")
	}
	if ev.Significance != nil {
		lines = append(lines, fmt.Sprintf("  Significance: %d", *ev.Significance))
	}
	if ev.Felt != nil {
		lines = append(lines, fmt.Sprintf("  Felt reports: %d", *ev.Felt))
	}
	if ev.CDI != nil {
		lines = append(lines, fmt.Sprintf("  Max CDI:    %v", *ev.CDI))
	}
	if ev.MMI != nil {
		lines = append(lines, fmt.Sprintf("  Max MMI:    %v", *ev.MMI))
	}
	if ev.URL != "" {
		lines = append(lines, fmt.Sprintf("  URL:        %s", ev.URL))
	}
	return lines
}

// maxEvidenceEvents caps how many events the evaluator sees; enough to
// verify claims without flooding the judge prompt.
const maxEvidenceEvents = 15

// formatEvidenceSummary renders a compact view of the parsed result for
// the evaluator's judge prompts.
func formatEvidenceSummary(result *domain.APIResult) string {
	switch result.Kind {
	case domain.ResultEmpty:
		return fmt.Sprintf("Empty result, no events matched (total_available=%d)", intOrZero(result.TotalAvailable))
	case domain.ResultCount:
		return fmt.Sprintf("Count result: %d", intOrZero(result.Count))
	}

	lines := []string{
		fmt.Sprintf("Result type: %s", result.Kind),
		numPrinter.Sprintf("Total matching in catalogue: %d", intOrZero(result.TotalAvailable)),
		fmt.Sprintf("Events returned: %d", intOrZero(result.Returned)),
	}
	for i, ev := range result.Events {
		if i >= maxEvidenceEvents {
			break
		}
		mag := "unknown"
		if ev.Magnitude != nil {
			mag = fmt.Sprintf("%v", *ev.Magnitude)
		}
		place := ev.Place
		if place == "" {
			place = "unknown"
		}
		lines = append(lines, fmt.Sprintf("  ID=%s  M%s  %s", ev.ID, mag, place))
	}
	return strings.Join(lines, "\n")
}
