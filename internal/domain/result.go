package domain

// ResultKind discriminates the normalized catalog response shapes.
type ResultKind string

const (
	// ResultCollection is a /query response with one or more events.
	ResultCollection ResultKind = "collection"

	// ResultSingleEvent is a /query?eventid=... response, which carries a
	// single feature with a different top-level shape.
	ResultSingleEvent ResultKind = "single_event"

	// ResultCount is a /count response carrying an integer.
	ResultCount ResultKind = "count"

	// ResultEmpty is a /query response with zero results, a no-content
	// status, or any unrecognized payload shape.
	ResultEmpty ResultKind = "empty"
)

// QuakeEvent is a single earthquake event normalized from a catalog
// GeoJSON feature. Fields are selected for downstream utility; low-value
// seismological fields (nst, gap, dmin, rms, net, code) are excluded.
type QuakeEvent struct {
	ID        string   `json:"id"`
	Magnitude *float64 `json:"magnitude,omitempty"`
	MagType   string   `json:"mag_type,omitempty"`
	Place     string   `json:"place,omitempty"`

	// TimeMS is the event time as a Unix timestamp in milliseconds.
	TimeMS *int64 `json:"time_ms,omitempty"`

	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	DepthKM   *float64 `json:"depth_km,omitempty"`

	// Status is "reviewed" or "automatic".
	Status    string `json:"status,omitempty"`
	EventType string `json:"event_type,omitempty"`

	// Significance is the catalog's composite score (0 to 2000+).
	Significance *int `json:"significance,omitempty"`

	Tsunami bool `json:"tsunami,omitempty"`

	// Alert is the PAGER level: green, yellow, orange, or red.
	Alert string `json:"alert,omitempty"`

	// Felt is the count of public "I felt it" reports.
	Felt *int `json:"felt,omitempty"`

	// CDI is the max community decimal intensity.
	CDI *float64 `json:"cdi,omitempty"`

	// MMI is the max ShakeMap intensity.
	MMI *float64 `json:"mmi,omitempty"`

	URL   string `json:"url,omitempty"`
	Title string `json:"title,omitempty"`
}

// APIResult is the normalized, tagged representation of a catalog
// response. It resolves the structural differences between the four
// response shapes into one consistent type; downstream stages work from
// this rather than the raw payload.
type APIResult struct {
	Kind ResultKind `json:"result_type"`

	// Count is populated for ResultCount.
	Count *int `json:"count,omitempty"`

	// TotalAvailable is the catalog's declared total for /query responses.
	TotalAvailable *int `json:"total_available,omitempty"`

	// Returned is the number of events actually in this response.
	Returned *int `json:"returned,omitempty"`

	Events []QuakeEvent `json:"events,omitempty"`

	// QueryURL and GeneratedMS are provenance from the response metadata.
	QueryURL    string `json:"query_url,omitempty"`
	GeneratedMS *int64 `json:"generated_ms,omitempty"`
}

// APICallLog is the operational record for a single catalog call.
type APICallLog struct {
	// URL is the full request URL with query string as sent.
	URL string `json:"url"`

	// RetrievedAtUTC is the ISO8601 UTC timestamp of the call.
	RetrievedAtUTC string `json:"retrieved_at_utc"`

	Kind           ResultKind `json:"result_type"`
	TotalAvailable *int       `json:"total_available,omitempty"`
	Returned       *int       `json:"returned,omitempty"`
	Count          *int       `json:"count,omitempty"`
}

// EnrichedResponse is the canonical output envelope produced by the
// summariser. The completion service composes only Title and AnswerText;
// everything else is set deterministically from the run's record.
type EnrichedResponse struct {
	// RequestID uniquely identifies this run.
	RequestID string `json:"request_id"`

	Title string `json:"title"`

	// ParsedIntent echoes the user's data request verbatim.
	ParsedIntent string `json:"parsed_intent"`

	// Assumptions lists every inference and default applied.
	Assumptions []string `json:"assumptions"`

	// APICalls records one entry per catalog call made.
	APICalls []APICallLog `json:"api_calls"`

	// AnswerText is the grounded markdown answer shown to the user.
	AnswerText string `json:"answer_text"`
}
