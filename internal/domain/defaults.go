package domain

import (
	"fmt"
	"slices"
	"time"
)

// Unconditional and conditional query defaults.
const (
	// DefaultTimespanDays is the lookback window when no date range is given.
	DefaultTimespanDays = 30

	// DefaultRadiusKM is applied when a location is named without a radius.
	// 100 km covers a city and its surrounding region.
	DefaultRadiusKM = 100.0

	// DefaultMinMagnitude keeps global (no geography) queries to a sane
	// size. 4.5 is regionally felt and meaningful globally.
	DefaultMinMagnitude = 4.5

	// DefaultEventType filters out blasts, collapses, and other
	// non-earthquake seismic events.
	DefaultEventType = "earthquake"

	// DefaultLimit is a safe page size, well under the catalog's 20,000
	// hard cap.
	DefaultLimit = 100
)

// Defaults is the configurable defaulting policy. Every stage that expands
// normalised fields into a final query must use the same instance, so
// re-derivation at execution time exactly matches the one performed during
// extraction.
type Defaults struct {
	TimespanDays int     `yaml:"timespan_days" validate:"gte=1"`
	RadiusKM     float64 `yaml:"radius_km" validate:"gt=0"`
	MinMagnitude float64 `yaml:"min_magnitude" validate:"gte=0,lte=10"`
	EventType    string  `yaml:"event_type" validate:"required"`
	Limit        int     `yaml:"limit" validate:"gte=1,lte=20000"`
}

// StandardDefaults returns the stock defaulting policy.
func StandardDefaults() Defaults {
	return Defaults{
		TimespanDays: DefaultTimespanDays,
		RadiusKM:     DefaultRadiusKM,
		MinMagnitude: DefaultMinMagnitude,
		EventType:    DefaultEventType,
		Limit:        DefaultLimit,
	}
}

const dateLayout = "2006-01-02"

func (d Defaults) windowStart(now time.Time) string {
	return now.UTC().AddDate(0, 0, -d.TimespanDays).Format(dateLayout)
}

func (d Defaults) windowEnd(now time.Time) string {
	return now.UTC().Format(dateLayout)
}

// BuildBaseline creates a QueryModel pre-filled with every unconditional
// default: the trailing time window ending now, the magnitude floor, the
// event type filter, and the result cap. User fields are merged over it
// with MergeQuery, then ApplyRadiusDefault handles the one conditional
// default.
func (d Defaults) BuildBaseline(now time.Time) QueryModel {
	return QueryModel{
		QueryType:    QueryTypeQuery,
		StartTime:    Ptr(d.windowStart(now)),
		EndTime:      Ptr(d.windowEnd(now)),
		EventType:    Ptr(d.EventType),
		MinMagnitude: Ptr(d.MinMagnitude),
		Limit:        Ptr(d.Limit),
	}
}

// ApplyRadiusDefault sets the default radius when latitude and longitude
// are set without one, returning the updated model and an assumption
// string describing the inference. When no change is needed the model is
// returned as-is with an empty string, so calling it twice yields the same
// model and only one assumption in total.
func (d Defaults) ApplyRadiusDefault(model QueryModel) (QueryModel, string) {
	if model.Latitude == nil || model.Longitude == nil || model.MaxRadiusKM != nil {
		return model, ""
	}
	updated := model
	updated.MaxRadiusKM = Ptr(d.RadiusKM)
	assumption := fmt.Sprintf(
		"No radius given for location (lat=%v, lon=%v), applied default radius of %v km",
		*model.Latitude, *model.Longitude, d.RadiusKM)
	return updated, assumption
}

// DeriveDefaultAssumptions returns one assumption string for every default
// that will silently apply because the user did not set that field. Purely
// a function of which field names are present; values are never inspected.
//
// The catalog's minimum viable parameter guidance motivates each entry:
// without a time window the last N days are returned (often surprising),
// without a magnitude floor a global query floods, without an event type
// non-earthquake events leak in, and the result cap applies silently.
func (d Defaults) DeriveDefaultAssumptions(userFields []string, now time.Time) []string {
	has := func(name string) bool { return slices.Contains(userFields, name) }

	var assumptions []string

	hasStart, hasEnd := has("starttime"), has("endtime")
	switch {
	case !hasStart && !hasEnd:
		assumptions = append(assumptions, fmt.Sprintf(
			"No time window specified, defaulted to last %d days (starttime=%s, endtime=%s)",
			d.TimespanDays, d.windowStart(now), d.windowEnd(now)))
	case !hasStart:
		assumptions = append(assumptions, fmt.Sprintf(
			"No start date specified, defaulted starttime=%s (%d days before today)",
			d.windowStart(now), d.TimespanDays))
	case !hasEnd:
		assumptions = append(assumptions, fmt.Sprintf(
			"No end date specified, defaulted endtime=%s (today)", d.windowEnd(now)))
	}

	if !has("minmagnitude") && !has("maxmagnitude") {
		assumptions = append(assumptions, fmt.Sprintf(
			"No magnitude filter specified, defaulted to minmagnitude=%v "+
				"(recommended floor; without it a global query returns ~500 events/day)",
			d.MinMagnitude))
	}

	if !has("eventtype") {
		assumptions = append(assumptions, fmt.Sprintf(
			"No event type specified, defaulted to eventtype=%q "+
				"(excludes explosions, blasts, and other non-earthquake seismic events)",
			d.EventType))
	}

	if !has("limit") {
		assumptions = append(assumptions, fmt.Sprintf(
			"No result limit specified, defaulted to limit=%d", d.Limit))
	}

	return assumptions
}

// ExpandQuery is the single expansion path from user-specified fields to a
// fully defaulted model: baseline, user overlay, query type, geometry
// resolution, then the conditional radius default. Both the normaliser and
// the executor call this so retries always re-expand to the same query.
func (d Defaults) ExpandQuery(userFields QueryModel, queryType QueryType, now time.Time) (QueryModel, string) {
	model := MergeQuery(d.BuildBaseline(now), userFields)
	if queryType != "" {
		model.QueryType = queryType
	}
	model.ResolveGeometryConflict()
	return d.ApplyRadiusDefault(model)
}
