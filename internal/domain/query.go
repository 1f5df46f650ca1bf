package domain

import (
	"encoding/json"
	"net/url"
	"sort"
	"strconv"
)

// QueryType selects the catalog endpoint: fetch event records or just
// count them.
type QueryType string

const (
	QueryTypeQuery QueryType = "/query"
	QueryTypeCount QueryType = "/count"
)

// QueryModel is a typed representation of a USGS FDSN event query.
//
// Every filter field is a pointer; nil means "not specified". The json
// tags double as the wire parameter names, so marshaling a model with
// omitempty yields exactly the flat parameter map the catalog expects
// (minus the internal query_type discriminator).
//
// Three valid patterns, checked by ValidateQuery:
//   - global:   starttime + endtime + minmagnitude
//   - regional: starttime + endtime + circle or bounding box
//   - event:    eventid alone
type QueryModel struct {
	// QueryType is internal routing, never exported as a parameter.
	QueryType QueryType `json:"query_type,omitempty" validate:"omitempty,oneof=/query /count"`

	// EventID looks up one specific event; all other filters optional.
	EventID *string `json:"eventid,omitempty"`

	// Time window, ISO8601 UTC (YYYY-MM-DD or YYYY-MM-DDTHH:MM:SS).
	StartTime    *string `json:"starttime,omitempty"`
	EndTime      *string `json:"endtime,omitempty"`
	UpdatedAfter *string `json:"updatedafter,omitempty"`

	// Circle geometry. All three must be set together.
	Latitude    *float64 `json:"latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Longitude   *float64 `json:"longitude,omitempty" validate:"omitempty,gte=-360,lte=360"`
	MaxRadiusKM *float64 `json:"maxradiuskm,omitempty" validate:"omitempty,gt=0"`

	// Bounding box geometry. All four must be set together.
	MinLatitude  *float64 `json:"minlatitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	MaxLatitude  *float64 `json:"maxlatitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	MinLongitude *float64 `json:"minlongitude,omitempty" validate:"omitempty,gte=-360,lte=360"`
	MaxLongitude *float64 `json:"maxlongitude,omitempty" validate:"omitempty,gte=-360,lte=360"`

	// Magnitude bounds.
	MinMagnitude *float64 `json:"minmagnitude,omitempty"`
	MaxMagnitude *float64 `json:"maxmagnitude,omitempty"`

	// Depth bounds in km.
	MinDepth *float64 `json:"mindepth,omitempty" validate:"omitempty,gte=-100,lte=1000"`
	MaxDepth *float64 `json:"maxdepth,omitempty" validate:"omitempty,gte=-100,lte=1000"`

	// Classification filters.
	EventType    *string `json:"eventtype,omitempty"`
	ReviewStatus *string `json:"reviewstatus,omitempty" validate:"omitempty,oneof=automatic reviewed"`
	AlertLevel   *string `json:"alertlevel,omitempty" validate:"omitempty,oneof=green yellow orange red"`
	ProductType  *string `json:"producttype,omitempty"`

	// Impact filters.
	MinFelt *int `json:"minfelt,omitempty" validate:"omitempty,gte=0"`
	MinSig  *int `json:"minsig,omitempty" validate:"omitempty,gte=0"`

	// Output control.
	OrderBy *string `json:"orderby,omitempty" validate:"omitempty,oneof=time time-asc magnitude magnitude-asc"`
	Limit   *int    `json:"limit,omitempty" validate:"omitempty,gte=1,lte=20000"`
}

// hasCirclePoint reports whether any circle center coordinate is set.
func (m *QueryModel) hasCirclePoint() bool {
	return m.Latitude != nil || m.Longitude != nil
}

// hasFullBox reports whether all four bounding box corners are set.
func (m *QueryModel) hasFullBox() bool {
	return m.MinLatitude != nil && m.MaxLatitude != nil &&
		m.MinLongitude != nil && m.MaxLongitude != nil
}

// hasAnyBox reports whether any bounding box corner is set.
func (m *QueryModel) hasAnyBox() bool {
	return m.MinLatitude != nil || m.MaxLatitude != nil ||
		m.MinLongitude != nil || m.MaxLongitude != nil
}

// ResolveGeometryConflict enforces the circle/box exclusivity invariant.
// When the normaliser sets both, the more complete group wins: a full
// bounding box beats a circle (country and region queries), and a circle
// beats a partial box (city queries with stray corner fields). Idempotent;
// must run before validation and before export.
func (m *QueryModel) ResolveGeometryConflict() {
	switch {
	case m.hasFullBox() && m.hasCirclePoint():
		m.Latitude, m.Longitude, m.MaxRadiusKM = nil, nil, nil
	case m.hasCirclePoint() && m.hasAnyBox() && !m.hasFullBox():
		m.MinLatitude, m.MaxLatitude, m.MinLongitude, m.MaxLongitude = nil, nil, nil, nil
	}
}

// paramMap flattens the model into the set fields keyed by wire name,
// excluding the internal query_type discriminator. Marshaling through the
// json tags keeps the field list in one place.
func (m QueryModel) paramMap() map[string]any {
	b, err := json.Marshal(m)
	if err != nil {
		return map[string]any{}
	}
	raw := make(map[string]any)
	if err := json.Unmarshal(b, &raw); err != nil {
		return map[string]any{}
	}
	delete(raw, "query_type")
	return raw
}

// ProvidedFields returns the wire names of every set field, sorted, for
// diagnostics and for the defaults engine's key-presence checks.
func (m QueryModel) ProvidedFields() []string {
	params := m.paramMap()
	fields := make([]string, 0, len(params))
	for k := range params {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}

// ToAPIParams produces the flat URL parameter set for the catalog call:
// every set field except query_type, with the geojson output marker
// always appended.
func (m QueryModel) ToAPIParams() url.Values {
	params := url.Values{}
	for k, v := range m.paramMap() {
		params.Set(k, formatParamValue(v))
	}
	params.Set("format", "geojson")
	return params
}

// formatParamValue renders a JSON-decoded field value as a URL parameter.
// Whole-number floats drop their fraction so limit=100 never becomes
// limit=100.0 on the wire.
func formatParamValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		b, _ := json.Marshal(val)
		return string(b)
	}
}

// MergeQuery overlays every set field of overlay onto base and returns the
// result. Unset overlay fields leave base untouched. This is how user
// specified fields land on top of the defaulted baseline, identically in
// every stage that rebuilds the final model.
func MergeQuery(base, overlay QueryModel) QueryModel {
	// Round-trip base through JSON for a deep copy. A plain struct copy
	// would share pointer targets with base, and decoding the overlay into
	// it would write through them.
	var merged QueryModel
	if b, err := json.Marshal(base); err == nil {
		_ = json.Unmarshal(b, &merged)
	}
	// Decoding a sparse object only touches the keys present in it.
	if b, err := json.Marshal(overlay); err == nil {
		_ = json.Unmarshal(b, &merged)
	}
	return merged
}
