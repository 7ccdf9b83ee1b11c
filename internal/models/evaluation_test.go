package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseGradingStyle(t *testing.T) {
	cases := map[string]GradingStyle{
		"strict":   StyleStrict,
		"Balanced": StyleBalanced,
		" LENIENT": StyleLenient,
		"":         StyleBalanced,
	}
	for input, expected := range cases {
		style, err := ParseGradingStyle(input)
		require.NoError(t, err, input)
		require.Equal(t, expected, style)
	}

	_, err := ParseGradingStyle("harsh")
	require.Error(t, err)
}

func TestRubricScoreTotalAndClamp(t *testing.T) {
	score := RubricScore{
		ContentAccuracy:    5,
		Completeness:       2,
		LanguageClarity:    -1,
		DepthUnderstanding: 2,
		StructureCoherence: 0.5,
	}.Clamp()

	require.Equal(t, 3.0, score.ContentAccuracy)
	require.Equal(t, 0.0, score.LanguageClarity)
	require.Equal(t, 7.5, score.Total())
	require.LessOrEqual(t, score.Total(), RubricMaxTotal)
}

func TestExcerptTruncatesLongText(t *testing.T) {
	short := "fits easily"
	require.Equal(t, short, Excerpt(short))

	long := strings.Repeat("a", ExcerptLimit+50)
	excerpt := Excerpt(long)
	require.Equal(t, ExcerptLimit+1, len([]rune(excerpt)))
	require.True(t, strings.HasSuffix(excerpt, "…"))
}
