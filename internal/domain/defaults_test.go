package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

func TestBuildBaseline(t *testing.T) {
	m := StandardDefaults().BuildBaseline(testNow)

	require.NotNil(t, m.StartTime)
	assert.Equal(t, "2026-07-30", *m.StartTime)
	require.NotNil(t, m.EndTime)
	assert.Equal(t, "2026-08-29", *m.EndTime)
	require.NotNil(t, m.EventType)
	assert.Equal(t, "earthquake", *m.EventType)
	require.NotNil(t, m.MinMagnitude)
	assert.Equal(t, 4.5, *m.MinMagnitude)
	require.NotNil(t, m.Limit)
	assert.Equal(t, 100, *m.Limit)
	assert.Nil(t, m.Latitude, "baseline carries no geometry")
}

func TestApplyRadiusDefaultIdempotent(t *testing.T) {
	d := StandardDefaults()
	m := QueryModel{Latitude: Ptr(35.68), Longitude: Ptr(139.69)}

	first, assumption := d.ApplyRadiusDefault(m)
	require.NotNil(t, first.MaxRadiusKM)
	assert.Equal(t, 100.0, *first.MaxRadiusKM)
	assert.Contains(t, assumption, "applied default radius of 100 km")

	// Second application changes nothing and yields no assumption.
	second, again := d.ApplyRadiusDefault(first)
	assert.Equal(t, first, second)
	assert.Empty(t, again)
}

func TestApplyRadiusDefaultNoOp(t *testing.T) {
	d := StandardDefaults()

	tests := []struct {
		name  string
		model QueryModel
	}{
		{"no geometry", QueryModel{MinMagnitude: Ptr(6.0)}},
		{"radius already set", QueryModel{Latitude: Ptr(1.0), Longitude: Ptr(2.0), MaxRadiusKM: Ptr(50.0)}},
		{"latitude only", QueryModel{Latitude: Ptr(1.0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, assumption := d.ApplyRadiusDefault(tt.model)
			assert.Equal(t, tt.model, got)
			assert.Empty(t, assumption)
		})
	}
}

func TestDeriveDefaultAssumptions(t *testing.T) {
	d := StandardDefaults()

	tests := []struct {
		name       string
		userFields []string
		wantCount  int
		wantIn     []string
	}{
		{
			name:       "nothing specified",
			userFields: nil,
			wantCount:  4,
			wantIn: []string{
				"No time window specified",
				"No magnitude filter specified",
				"No event type specified",
				"No result limit specified",
			},
		},
		{
			name:       "explicit magnitude suppresses its assumption",
			userFields: []string{"minmagnitude", "minlatitude", "maxlatitude", "minlongitude", "maxlongitude", "starttime", "endtime"},
			wantCount:  2,
			wantIn:     []string{"No event type specified", "No result limit specified"},
		},
		{
			name:       "start only defaults the end",
			userFields: []string{"starttime", "minmagnitude", "eventtype", "limit"},
			wantCount:  1,
			wantIn:     []string{"No end date specified, defaulted endtime=2026-08-29 (today)"},
		},
		{
			name:       "end only defaults the start",
			userFields: []string{"endtime", "minmagnitude", "eventtype", "limit"},
			wantCount:  1,
			wantIn:     []string{"No start date specified, defaulted starttime=2026-07-30"},
		},
		{
			name:       "everything specified",
			userFields: []string{"starttime", "endtime", "maxmagnitude", "eventtype", "limit"},
			wantCount:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.DeriveDefaultAssumptions(tt.userFields, testNow)
			assert.Len(t, got, tt.wantCount)
			joined := ""
			for _, a := range got {
				joined += a + "\n"
			}
			for _, want := range tt.wantIn {
				assert.Contains(t, joined, want)
			}
		})
	}
}

func TestExpandQueryDeterministic(t *testing.T) {
	d := StandardDefaults()
	user := QueryModel{Latitude: Ptr(35.68), Longitude: Ptr(139.69)}

	first, a1 := d.ExpandQuery(user, QueryTypeQuery, testNow)
	second, a2 := d.ExpandQuery(user, QueryTypeQuery, testNow)

	assert.Equal(t, first, second, "same user fields must re-expand to the same model")
	assert.Equal(t, a1, a2)
	require.NotNil(t, first.MaxRadiusKM)
	assert.Equal(t, 100.0, *first.MaxRadiusKM)
	assert.Equal(t, QueryTypeQuery, first.QueryType)
	assert.True(t, ValidateQuery(first).Valid)
}

func TestExpandQueryGeometryResolution(t *testing.T) {
	d := StandardDefaults()
	// A full box plus stray circle fields: the box must win and the
	// expanded model must validate.
	user := QueryModel{
		Latitude: Ptr(39.0), Longitude: Ptr(35.0),
		MinLatitude: Ptr(36.0), MaxLatitude: Ptr(42.1),
		MinLongitude: Ptr(26.0), MaxLongitude: Ptr(45.0),
		MinMagnitude: Ptr(6.0),
	}

	m, assumption := d.ExpandQuery(user, QueryTypeCount, testNow)

	assert.Nil(t, m.Latitude)
	assert.Nil(t, m.MaxRadiusKM)
	require.NotNil(t, m.MinLatitude)
	assert.Empty(t, assumption, "no radius default once the circle is dropped")
	assert.Equal(t, QueryTypeCount, m.QueryType)
	assert.True(t, ValidateQuery(m).Valid)
}
