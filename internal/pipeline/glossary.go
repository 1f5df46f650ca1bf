package pipeline

import (
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
)

// foldCaser provides Unicode case folding for glossary topic matching.
var foldCaser = cases.Fold()

// GlossaryEntry documents one query field for users and for prompts.
type GlossaryEntry struct {
	Field          string
	Category       string
	Type           string
	Description    string
	Default        string
	Format         string
	ExamplePhrases []string
}

// Glossary is the full query field reference, grouped by category. Order
// matters: rendering walks the slice and emits a category header whenever
// it changes.
var Glossary = []GlossaryEntry{
	{
		Field:       "query_type",
		Category:    "Query type",
		Type:        `"/query" or "/count"`,
		Description: "Whether to fetch event records or just count them.",
		Default:     "/query",
		Format:      `"/query" or "/count"`,
		ExamplePhrases: []string{
			"how many earthquakes -> /count",
			"show me / list / find earthquakes -> /query",
		},
	},
	{
		Field:       "eventid",
		Category:    "Identity",
		Type:        "string",
		Description: "Look up one specific event by its USGS ID. No other filters needed.",
		Format:      "e.g. us6000m0xl",
		ExamplePhrases: []string{
			"tell me about earthquake us6000m0xl",
			"details for event id us6000m0xl",
		},
	},
	{
		Field:       "starttime",
		Category:    "Time",
		Type:        "ISO8601 date string",
		Description: "Start of the time window to search.",
		Default:     fmt.Sprintf("today minus %d days", 30),
		Format:      "YYYY-MM-DD or YYYY-MM-DDTHH:MM:SS",
		ExamplePhrases: []string{
			"since January 2024",
			"from 2024-01-01",
			"in the last week -> compute starttime = today - 7 days",
			"yesterday -> compute starttime = yesterday's date",
		},
	},
	{
		Field:       "endtime",
		Category:    "Time",
		Type:        "ISO8601 date string",
		Description: "End of the time window to search.",
		Default:     "today",
		Format:      "YYYY-MM-DD or YYYY-MM-DDTHH:MM:SS",
		ExamplePhrases: []string{
			"up to March 2024",
			"before 2024-03-01",
			"last week -> compute endtime = today",
		},
	},
	{
		Field:       "updatedafter",
		Category:    "Time",
		Type:        "ISO8601 datetime string",
		Description: "Return only events that were updated after this timestamp. Use for incremental sync jobs, not typical user queries.",
		Format:      "YYYY-MM-DDTHH:MM:SS",
		ExamplePhrases: []string{
			"events revised since 2025-01-01",
		},
	},
	{
		Field:       "latitude",
		Category:    "Geography, circle",
		Type:        "float (-90 to 90)",
		Description: "Centre latitude for a circular area search. Must be combined with longitude and maxradiuskm.",
		Format:      "decimal degrees, e.g. 35.68",
		ExamplePhrases: []string{
			"near Tokyo -> latitude=35.68, longitude=139.69",
			"near Los Angeles -> latitude=34.05, longitude=-118.24",
		},
	},
	{
		Field:          "longitude",
		Category:       "Geography, circle",
		Type:           "float (-360 to 360)",
		Description:    "Centre longitude for a circular area search.",
		Format:         "decimal degrees, e.g. 139.69 or -118.24",
		ExamplePhrases: []string{"see latitude examples"},
	},
	{
		Field:       "maxradiuskm",
		Category:    "Geography, circle",
		Type:        "float (> 0)",
		Description: "Radius of the circle in kilometres.",
		Default:     "100 km (~62 miles), applied automatically when lat/lon are set without a radius",
		Format:      "kilometres, e.g. 100",
		ExamplePhrases: []string{
			"within 200 km of Tokyo",
			"within 50 miles of Los Angeles -> convert to km (x 1.609)",
		},
	},
	{
		Field:       "minlatitude / maxlatitude / minlongitude / maxlongitude",
		Category:    "Geography, bounding box",
		Type:        "float",
		Description: "Rectangular bounding box. All four must be set together.",
		Format:      "decimal degrees",
		ExamplePhrases: []string{
			"earthquakes in Japan -> minlat=30, maxlat=46, minlon=130, maxlon=146",
			"earthquakes in California -> minlat=32, maxlat=42, minlon=-124, maxlon=-114",
			"earthquakes in Turkey -> minlat=36, maxlat=42, minlon=26, maxlon=45",
		},
	},
	{
		Field:       "minmagnitude",
		Category:    "Magnitude",
		Type:        "float",
		Description: "Minimum magnitude. The recommended global floor is 4.5.",
		Default:     "4.5",
		Format:      "e.g. 4.5",
		ExamplePhrases: []string{
			"magnitude 5 or greater -> minmagnitude=5",
			"M6+ -> minmagnitude=6",
			"big earthquakes -> assume minmagnitude=6",
			"major earthquakes -> assume minmagnitude=7",
			"significant earthquakes -> assume minmagnitude=5",
		},
	},
	{
		Field:       "maxmagnitude",
		Category:    "Magnitude",
		Type:        "float",
		Description: "Maximum magnitude cap.",
		Format:      "e.g. 6.0",
		ExamplePhrases: []string{
			"smaller than M5 -> maxmagnitude=5",
			"between M4 and M6 -> minmagnitude=4, maxmagnitude=6",
		},
	},
	{
		Field:       "mindepth",
		Category:    "Depth",
		Type:        "float (-100 to 1000 km)",
		Description: "Minimum depth in kilometres below the surface.",
		Format:      "kilometres",
		ExamplePhrases: []string{
			"deep earthquakes -> mindepth=300",
			"deeper than 100 km -> mindepth=100",
		},
	},
	{
		Field:       "maxdepth",
		Category:    "Depth",
		Type:        "float (-100 to 1000 km)",
		Description: "Maximum depth in kilometres.",
		Format:      "kilometres",
		ExamplePhrases: []string{
			"shallow earthquakes -> maxdepth=30",
			"near-surface earthquakes -> maxdepth=10",
		},
	},
	{
		Field:       "eventtype",
		Category:    "Event classification",
		Type:        "string",
		Description: "Filter by event type. Omit to include everything; use 'earthquake' to exclude blasts, collapses, etc.",
		Default:     "earthquake",
		Format:      "e.g. earthquake, explosion, quarry blast",
		ExamplePhrases: []string{
			"explosions -> eventtype=explosion",
			"only earthquakes -> eventtype=earthquake (default)",
		},
	},
	{
		Field:       "reviewstatus",
		Category:    "Event classification",
		Type:        `"reviewed" | "automatic"`,
		Description: "'reviewed' = human-checked, higher quality. 'automatic' = machine-detected, more recent but less accurate. Omit entirely to return all events.",
		Format:      "reviewed / automatic (omit for all)",
		ExamplePhrases: []string{
			"confirmed earthquakes -> reviewstatus=reviewed",
			"latest detections -> reviewstatus=automatic",
		},
	},
	{
		Field:       "alertlevel",
		Category:    "Event classification",
		Type:        `"green" | "yellow" | "orange" | "red"`,
		Description: "PAGER impact alert level. Red = highest casualty/damage risk.",
		Format:      "green / yellow / orange / red",
		ExamplePhrases: []string{
			"deadly earthquakes -> alertlevel=red",
			"high impact earthquakes -> alertlevel=orange or red",
		},
	},
	{
		Field:       "producttype",
		Category:    "Event classification",
		Type:        "string",
		Description: "Filter to events where USGS has produced a specific analysis product.",
		Format:      "e.g. shakemap, moment-tensor, losspager, dyfi, finite-fault",
		ExamplePhrases: []string{
			"earthquakes with ShakeMaps -> producttype=shakemap",
			"earthquakes with loss estimates -> producttype=losspager",
		},
	},
	{
		Field:       "minfelt",
		Category:    "Impact",
		Type:        "int (>= 0)",
		Description: "Minimum number of public 'I felt it' reports (DYFI). Good proxy for widely felt events.",
		Format:      "integer, e.g. 100",
		ExamplePhrases: []string{
			"widely felt earthquakes -> minfelt=100",
			"earthquakes felt by many people -> minfelt=100",
		},
	},
	{
		Field:       "minsig",
		Category:    "Impact",
		Type:        "int (>= 0)",
		Description: "Minimum USGS significance score (0-2000+). Composite of magnitude, felt reports, and impact. 500+ = significant event, 1000+ = major.",
		Format:      "integer, e.g. 500",
		ExamplePhrases: []string{
			"most significant earthquakes -> minsig=1000",
			"notable earthquakes -> minsig=500",
		},
	},
	{
		Field:       "orderby",
		Category:    "Output",
		Type:        `"time" | "time-asc" | "magnitude" | "magnitude-asc"`,
		Description: "Sort order of results.",
		Default:     "time (newest first)",
		Format:      "time / time-asc / magnitude / magnitude-asc",
		ExamplePhrases: []string{
			"biggest earthquakes first -> orderby=magnitude",
			"oldest first -> orderby=time-asc",
			"most recent first -> orderby=time (default)",
		},
	},
	{
		Field:       "limit",
		Category:    "Output",
		Type:        "int (1-20000)",
		Description: "Maximum number of results to return.",
		Default:     "100",
		Format:      "integer",
		ExamplePhrases: []string{
			"top 10 -> limit=10, orderby=magnitude",
			"show me 50 -> limit=50",
		},
	},
}

// FormatGlossaryForUser renders a human-readable, grouped glossary for
// display to the user.
func FormatGlossaryForUser() string {
	lines := []string{"**Earthquake Query Glossary**", ""}
	currentCategory := ""

	for _, e := range Glossary {
		if e.Category != currentCategory {
			lines = append(lines, fmt.Sprintf("**%s**", e.Category))
			currentCategory = e.Category
		}
		lines = append(lines, fmt.Sprintf("  `%s`  (%s)", e.Field, e.Type))
		lines = append(lines, fmt.Sprintf("    %s", e.Description))
		if e.Default != "" {
			lines = append(lines, fmt.Sprintf("    Default: %s", e.Default))
		}
		lines = append(lines, fmt.Sprintf("    Format: %s", e.Format))
		if len(e.ExamplePhrases) > 0 {
			lines = append(lines, "    Examples:")
			for _, p := range e.ExamplePhrases {
				lines = append(lines, fmt.Sprintf("      - %s", p))
			}
		}
		lines = append(lines, "")
	}

	return strings.Join(lines, "\n")
}

// FormatGlossaryForLLM renders a compact reference string for prompt
// inclusion, denser than the user rendering but with enough detail for
// accurate field mapping.
func FormatGlossaryForLLM() string {
	lines := []string{"QUERY FIELD REFERENCE:"}
	currentCategory := ""

	for _, e := range Glossary {
		if e.Category != currentCategory {
			lines = append(lines, fmt.Sprintf("\n[%s]", e.Category))
			currentCategory = e.Category
		}
		defaultStr := ""
		if e.Default != "" {
			defaultStr = fmt.Sprintf("  default=%s", e.Default)
		}
		lines = append(lines, fmt.Sprintf("  %s (%s)%s", e.Field, e.Type, defaultStr))
		lines = append(lines, fmt.Sprintf("    -> %s", e.Description))
		lines = append(lines, fmt.Sprintf("    format: %s", e.Format))
		for _, p := range e.ExamplePhrases {
			lines = append(lines, fmt.Sprintf("    e.g. %q", p))
		}
	}

	return strings.Join(lines, "\n")
}

// lookupThreshold is the minimum similarity for a fuzzy glossary match.
const lookupThreshold = 0.6

// LookupGlossaryEntry finds the glossary entry whose field name best
// matches topic, tolerating typos and partial names ("maxradius" finds
// maxradiuskm). Returns nil when nothing clears the similarity threshold.
func LookupGlossaryEntry(topic string) *GlossaryEntry {
	topic = foldCaser.String(strings.TrimSpace(topic))
	if topic == "" {
		return nil
	}

	var best *GlossaryEntry
	bestScore := 0.0

	for i := range Glossary {
		entry := &Glossary[i]
		// Compound entries like the bounding box group match any member.
		for _, name := range strings.Split(entry.Field, " / ") {
			folded := foldCaser.String(name)
			score := similarity(topic, folded)
			if strings.Contains(folded, topic) && score < 0.9 {
				// A substring hit outranks near-miss edit distance.
				score = 0.9
			}
			if score > bestScore {
				bestScore = score
				best = entry
			}
		}
	}

	if bestScore < lookupThreshold {
		return nil
	}
	return best
}

// similarity normalizes Levenshtein edit distance into a 0..1 score,
// where 1.0 means identical strings.
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	maxLen := max(len([]rune(a)), len([]rune(b)))
	if maxLen == 0 {
		return 1.0
	}
	distance := levenshtein.ComputeDistance(a, b)
	s := 1.0 - float64(distance)/float64(maxLen)
	if s < 0 {
		return 0
	}
	return s
}

// FormatEntryForUser renders a single glossary entry, used when the user
// asks about one specific parameter.
func FormatEntryForUser(e *GlossaryEntry) string {
	lines := []string{
		fmt.Sprintf("`%s`  (%s)", e.Field, e.Type),
		fmt.Sprintf("  %s", e.Description),
	}
	if e.Default != "" {
		lines = append(lines, fmt.Sprintf("  Default: %s", e.Default))
	}
	lines = append(lines, fmt.Sprintf("  Format: %s", e.Format))
	if len(e.ExamplePhrases) > 0 {
		lines = append(lines, "  Examples:")
		for _, p := range e.ExamplePhrases {
			lines = append(lines, fmt.Sprintf("    - %s", p))
		}
	}
	return strings.Join(lines, "\n")
}
