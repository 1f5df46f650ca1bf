package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate holds the shared validator instance for struct-tag checks.
// A single instance caches struct metadata across calls.
var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidationResult reports whether a query is logically consistent, with
// every violation accumulated into one human-readable message.
type ValidationResult struct {
	Valid bool `json:"valid"`

	// Provided lists the populated field names regardless of validity,
	// for diagnostics. Excludes query_type and limit.
	Provided []string `json:"provided"`

	// Message is empty when valid, otherwise the full bullet list of
	// violations plus the provided-field inventory.
	Message string `json:"message,omitempty"`
}

func (r ValidationResult) String() string { return r.Message }

// ValidateQuery checks the model for logical consistency.
//
// Checks, in order:
//  1. Time ordering        - starttime must not be after endtime
//  2. Magnitude ordering   - minmagnitude must be <= maxmagnitude
//  3. Depth ordering       - mindepth must be <= maxdepth
//  4. Circle completeness  - if any circle field is set, all three are needed
//  5. Box completeness     - if any box field is set, all four are needed
//  6. Geometry exclusivity - circle and box must not both be fully set
//  7. Range tags           - field-level bounds declared on QueryModel
//
// Every violated check is accumulated; the result never stops at the first
// failure, so one retry can fix everything at once.
func ValidateQuery(model QueryModel) ValidationResult {
	provided := providedForDiagnostics(model)
	var errs []string

	if model.StartTime != nil && model.EndTime != nil && *model.StartTime > *model.EndTime {
		errs = append(errs, fmt.Sprintf(
			"starttime (%s) must be before endtime (%s).", *model.StartTime, *model.EndTime))
	}

	if model.MinMagnitude != nil && model.MaxMagnitude != nil && *model.MinMagnitude > *model.MaxMagnitude {
		errs = append(errs, fmt.Sprintf(
			"minmagnitude (%v) must be <= maxmagnitude (%v).", *model.MinMagnitude, *model.MaxMagnitude))
	}

	if model.MinDepth != nil && model.MaxDepth != nil && *model.MinDepth > *model.MaxDepth {
		errs = append(errs, fmt.Sprintf(
			"mindepth (%v) must be <= maxdepth (%v).", *model.MinDepth, *model.MaxDepth))
	}

	circleSet, circleMissing := groupPresence(map[string]bool{
		"latitude":    model.Latitude != nil,
		"longitude":   model.Longitude != nil,
		"maxradiuskm": model.MaxRadiusKM != nil,
	})
	if len(circleSet) > 0 && len(circleMissing) > 0 {
		errs = append(errs, fmt.Sprintf(
			"Incomplete circle geometry. Have: %v. Also need: %v.", circleSet, circleMissing))
	}

	boxSet, boxMissing := groupPresence(map[string]bool{
		"minlatitude":  model.MinLatitude != nil,
		"maxlatitude":  model.MaxLatitude != nil,
		"minlongitude": model.MinLongitude != nil,
		"maxlongitude": model.MaxLongitude != nil,
	})
	if len(boxSet) > 0 && len(boxMissing) > 0 {
		errs = append(errs, fmt.Sprintf(
			"Incomplete bounding box. Have: %v. Also need: %v.", boxSet, boxMissing))
	}

	if len(circleMissing) == 0 && len(circleSet) == 3 && len(boxMissing) == 0 && len(boxSet) == 4 {
		errs = append(errs,
			"Both circle geometry and bounding box are fully set. "+
				"Use one or the other; the catalog returns their intersection, which is likely empty.")
	}

	if err := validate.Struct(model); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				errs = append(errs, fmt.Sprintf(
					"%s (%v) violates constraint %s=%s.",
					strings.ToLower(fe.Field()), fe.Value(), fe.Tag(), fe.Param()))
			}
		} else {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		var b strings.Builder
		b.WriteString("Invalid query:")
		for _, e := range errs {
			b.WriteString("\n  - ")
			b.WriteString(e)
		}
		fmt.Fprintf(&b, "\nFields currently set: %v", provided)
		return ValidationResult{Valid: false, Provided: provided, Message: b.String()}
	}

	return ValidationResult{Valid: true, Provided: provided}
}

// providedForDiagnostics is ProvidedFields minus limit, matching what the
// diagnostic message reports as user-meaningful.
func providedForDiagnostics(model QueryModel) []string {
	fields := model.ProvidedFields()
	out := fields[:0:0]
	for _, f := range fields {
		if f == "limit" {
			continue
		}
		out = append(out, f)
	}
	return out
}

// groupPresence splits a field-presence map into sorted set and missing
// name lists.
func groupPresence(fields map[string]bool) (set, missing []string) {
	for name, present := range fields {
		if present {
			set = append(set, name)
		} else {
			missing = append(missing, name)
		}
	}
	sort.Strings(set)
	sort.Strings(missing)
	return set, missing
}
