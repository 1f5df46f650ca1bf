package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateQueryAccumulatesAllViolations(t *testing.T) {
	// Inverted time range, inverted magnitudes, and an incomplete box at
	// once. All three must be reported, not just the first.
	m := QueryModel{
		StartTime:    Ptr("2026-08-29"),
		EndTime:      Ptr("2026-01-01"),
		MinMagnitude: Ptr(7.0),
		MaxMagnitude: Ptr(5.0),
		MinLatitude:  Ptr(30.0),
		MaxLatitude:  Ptr(46.0),
	}

	res := ValidateQuery(m)

	require.False(t, res.Valid)
	assert.Contains(t, res.Message, "starttime (2026-08-29) must be before endtime (2026-01-01)")
	assert.Contains(t, res.Message, "minmagnitude (7) must be <= maxmagnitude (5)")
	assert.Contains(t, res.Message, "Incomplete bounding box")
	assert.Contains(t, res.Message, "Fields currently set:")
}

func TestValidateQuery(t *testing.T) {
	tests := []struct {
		name      string
		model     QueryModel
		wantValid bool
		wantIn    string
	}{
		{
			name: "valid global query",
			model: QueryModel{
				StartTime:    Ptr("2026-01-01"),
				EndTime:      Ptr("2026-08-29"),
				MinMagnitude: Ptr(4.5),
			},
			wantValid: true,
		},
		{
			name: "valid circle query",
			model: QueryModel{
				StartTime: Ptr("2026-08-22"),
				EndTime:   Ptr("2026-08-29"),
				Latitude:  Ptr(35.68), Longitude: Ptr(139.69), MaxRadiusKM: Ptr(100.0),
			},
			wantValid: true,
		},
		{
			name:      "valid event lookup",
			model:     QueryModel{EventID: Ptr("us6000m0xl")},
			wantValid: true,
		},
		{
			name: "incomplete circle",
			model: QueryModel{
				Latitude: Ptr(35.68), Longitude: Ptr(139.69),
			},
			wantValid: false,
			wantIn:    "Incomplete circle geometry",
		},
		{
			name: "inverted depth range",
			model: QueryModel{
				MinDepth: Ptr(300.0), MaxDepth: Ptr(30.0),
			},
			wantValid: false,
			wantIn:    "mindepth (300) must be <= maxdepth (30)",
		},
		{
			name: "circle and box both fully set",
			model: QueryModel{
				Latitude: Ptr(35.68), Longitude: Ptr(139.69), MaxRadiusKM: Ptr(100.0),
				MinLatitude: Ptr(30.0), MaxLatitude: Ptr(46.0),
				MinLongitude: Ptr(130.0), MaxLongitude: Ptr(146.0),
			},
			wantValid: false,
			wantIn:    "Both circle geometry and bounding box are fully set",
		},
		{
			name: "latitude out of range",
			model: QueryModel{
				Latitude: Ptr(95.0), Longitude: Ptr(139.69), MaxRadiusKM: Ptr(100.0),
			},
			wantValid: false,
			wantIn:    "latitude",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ValidateQuery(tt.model)
			assert.Equal(t, tt.wantValid, res.Valid)
			if tt.wantIn != "" {
				assert.Contains(t, res.Message, tt.wantIn)
			}
			if tt.wantValid {
				assert.Empty(t, res.Message)
			}
		})
	}
}

func TestValidateQueryProvidedExcludesLimit(t *testing.T) {
	m := QueryModel{
		MinMagnitude: Ptr(6.0),
		Limit:        Ptr(10),
	}

	res := ValidateQuery(m)

	require.True(t, res.Valid)
	assert.Equal(t, []string{"minmagnitude"}, res.Provided)
}
