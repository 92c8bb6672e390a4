package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assetid-workers/internal/models"
)

func newTestNormalizer(t *testing.T) *Normalizer {
	n, err := New(DefaultRules())
	require.NoError(t, err)
	return n
}

func TestNormalize(t *testing.T) {
	n := newTestNormalizer(t)

	tests := []struct {
		name  string
		raw   string
		level models.Level
		want  string
	}{
		{"single word truncated", "North", models.LevelSpace, "NORT"},
		{"case and whitespace", "  north ", models.LevelSpace, "NORT"},
		{"initials", "Ground Floor", models.LevelLocation, "GF"},
		{"numeric word kept", "Level 10", models.LevelLocation, "L10"},
		{"punctuation splits words", "North-West", models.LevelSpace, "NW"},
		{"diacritics folded", "Café", models.LevelSpace, "CAFE"},
		{"short code kept", "B1", models.LevelLocation, "B1"},
		{"initials truncated", "a b c d e f", models.LevelSubspace, "ABCD"},
		{"digits only", "101", models.LevelSubspace, "101"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, warn := n.Normalize(tt.raw, tt.level)
			assert.Nil(t, warn)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_EmptyUsesPlaceholder(t *testing.T) {
	n := newTestNormalizer(t)

	for _, raw := range []string{"", "   ", "--", "\t"} {
		code, warn := n.Normalize(raw, models.LevelLocation)
		assert.Equal(t, "UNK", code)
		require.NotNil(t, warn)
		assert.Equal(t, WarnPlaceholder, warn.Code)
	}

	code, warn := n.Normalize("", models.LevelEquipment)
	assert.Equal(t, "EQP", code)
	assert.NotNil(t, warn)
}

func TestNormalize_Idempotent(t *testing.T) {
	n := newTestNormalizer(t)

	inputs := []string{"North", "Ground Floor", "Level 10", "", "Air Handling Unit 3", "Café du Parc", "x", "B-1"}
	for _, level := range models.Levels {
		for _, raw := range inputs {
			once, _ := n.Normalize(raw, level)
			twice, _ := n.Normalize(once, level)
			assert.Equal(t, once, twice, "level=%s raw=%q", level, raw)
		}
	}
}

func TestNormalize_ShortMaxLengthKeepsPlaceholderIdempotent(t *testing.T) {
	rules := DefaultRules()
	rules.MaxLengths[models.LevelLocation] = 2
	n, err := New(rules)
	require.NoError(t, err)

	code, _ := n.Normalize("", models.LevelLocation)
	assert.Equal(t, "UN", code)
	again, warn := n.Normalize(code, models.LevelLocation)
	assert.Equal(t, code, again)
	assert.Nil(t, warn)
}

func TestNew_RejectsNonPositiveLength(t *testing.T) {
	rules := DefaultRules()
	rules.MaxLengths[models.LevelSpace] = 0
	_, err := New(rules)
	assert.Error(t, err)
}

func TestCanonical(t *testing.T) {
	assert.Equal(t, "NORTH", Canonical("North"))
	assert.Equal(t, Canonical("North"), Canonical(" north "))
	assert.Equal(t, "NORTH WING", Canonical("north_wing"))
	assert.NotEqual(t, Canonical("North"), Canonical("South"))
	assert.Equal(t, "", Canonical(" .. "))
	assert.Equal(t, "NORTHWING", Compact("North Wing"))
}

func TestCanonical_NonLatinText(t *testing.T) {
	assert.Equal(t, "КУХНЯ", Canonical("  кухня "))
	assert.Equal(t, Canonical("Кухня"), Canonical("КУХНЯ"))
	assert.NotEqual(t, Canonical("Ресепшн"), Canonical("Кухня"))
	assert.NotEqual(t, Canonical("会议室"), Canonical("办公室"))
	assert.Equal(t, "A КУХНЯ", Canonical("A  Кухня"))
	assert.Equal(t, "", Compact("Кухня"))
}

func TestNormalize_NonLatinUsesPlaceholder(t *testing.T) {
	n := newTestNormalizer(t)

	code, warn := n.Normalize("Кухня", models.LevelSubspace)
	assert.Equal(t, "UNK", code)
	require.NotNil(t, warn)
	assert.Equal(t, WarnPlaceholder, warn.Code)
	assert.Contains(t, warn.Message, "Кухня")
}
