package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupGlossaryEntry(t *testing.T) {
	tests := []struct {
		name      string
		topic     string
		wantField string
	}{
		{"exact match", "maxradiuskm", "maxradiuskm"},
		{"case folded", "MaxRadiusKM", "maxradiuskm"},
		{"partial name", "maxradius", "maxradiuskm"},
		{"typo tolerated", "minmagnitud", "minmagnitude"},
		{"compound entry member", "minlatitude", "minlatitude / maxlatitude / minlongitude / maxlongitude"},
		{"surrounding whitespace", "  orderby  ", "orderby"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := LookupGlossaryEntry(tt.topic)
			require.NotNil(t, entry)
			assert.Equal(t, tt.wantField, entry.Field)
		})
	}

	t.Run("unrelated topic returns nil", func(t *testing.T) {
		assert.Nil(t, LookupGlossaryEntry("weather forecast"))
	})

	t.Run("empty topic returns nil", func(t *testing.T) {
		assert.Nil(t, LookupGlossaryEntry(""))
		assert.Nil(t, LookupGlossaryEntry("   "))
	})
}

func TestGlossaryRendering(t *testing.T) {
	t.Run("user rendering groups by category", func(t *testing.T) {
		out := FormatGlossaryForUser()
		assert.Contains(t, out, "**Earthquake Query Glossary**")
		assert.Contains(t, out, "**Geography, circle**")
		assert.Contains(t, out, "`maxradiuskm`")
		assert.Contains(t, out, "Default: 100 km")
	})

	t.Run("prompt rendering covers every field", func(t *testing.T) {
		out := FormatGlossaryForLLM()
		assert.Contains(t, out, "QUERY FIELD REFERENCE:")
		for _, e := range Glossary {
			assert.Contains(t, out, e.Field)
		}
	})

	t.Run("single entry rendering", func(t *testing.T) {
		entry := LookupGlossaryEntry("minsig")
		require.NotNil(t, entry)
		out := FormatEntryForUser(entry)
		assert.Contains(t, out, "`minsig`")
		assert.Contains(t, out, "significance score")
	})
}
