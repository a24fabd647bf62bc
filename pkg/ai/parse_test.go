package ai

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRubricStructuredResponse(t *testing.T) {
	parsed := ParseRubric(`{"feedback":"Good","score":7}`)

	require.Equal(t, ParseStructured, parsed.Kind)
	require.Equal(t, "Good", parsed.Feedback)
	require.Equal(t, 7, parsed.Score)
}

func TestParseRubricRoundTrip(t *testing.T) {
	for score := 0; score <= 10; score++ {
		original := RubricResponse{Feedback: "Balanced argument with \"quotes\"\nand lines", Score: score}
		payload, err := json.Marshal(original)
		require.NoError(t, err)

		parsed := ParseRubric(string(payload))
		require.Equal(t, ParseStructured, parsed.Kind)
		require.Equal(t, original.Feedback, parsed.Feedback)
		require.Equal(t, original.Score, parsed.Score)
	}
}

func TestParseRubricFallsBackOnNonJSON(t *testing.T) {
	parsed := ParseRubric("not json")

	require.Equal(t, ParseFallback, parsed.Kind)
	require.Equal(t, "not json", parsed.Feedback)
	require.Equal(t, FallbackScore, parsed.Score)
}

func TestParseRubricBoundaries(t *testing.T) {
	cases := []struct {
		name     string
		raw      string
		kind     ParseKind
		expected int
	}{
		{name: "zero", raw: `{"feedback":"weak","score":0}`, kind: ParseStructured, expected: 0},
		{name: "ten", raw: `{"feedback":"superb","score":10}`, kind: ParseStructured, expected: 10},
		{name: "whole_float", raw: `{"feedback":"ok","score":6.0}`, kind: ParseStructured, expected: 6},
		{name: "eleven", raw: `{"feedback":"too high","score":11}`, kind: ParseFallback, expected: FallbackScore},
		{name: "negative", raw: `{"feedback":"too low","score":-1}`, kind: ParseFallback, expected: FallbackScore},
		{name: "fractional", raw: `{"feedback":"half","score":6.5}`, kind: ParseFallback, expected: FallbackScore},
		{name: "string_score", raw: `{"feedback":"quoted","score":"7"}`, kind: ParseFallback, expected: FallbackScore},
		{name: "missing_score", raw: `{"feedback":"no score"}`, kind: ParseFallback, expected: FallbackScore},
		{name: "missing_feedback", raw: `{"score":4}`, kind: ParseFallback, expected: FallbackScore},
		{name: "empty_feedback", raw: `{"feedback":"","score":9}`, kind: ParseFallback, expected: FallbackScore},
		{name: "blank_feedback", raw: `{"feedback":" \n ","score":9}`, kind: ParseFallback, expected: FallbackScore},
		{name: "extra_key", raw: `{"feedback":"x","score":4,"verdict":"pass"}`, kind: ParseFallback, expected: FallbackScore},
		{name: "array", raw: `[1,2,3]`, kind: ParseFallback, expected: FallbackScore},
		{name: "empty", raw: ``, kind: ParseFallback, expected: FallbackScore},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			parsed := ParseRubric(tc.raw)
			require.Equal(t, tc.kind, parsed.Kind)
			require.Equal(t, tc.expected, parsed.Score)
			if tc.kind == ParseFallback {
				require.Equal(t, tc.raw, parsed.Feedback)
			}
		})
	}
}

func TestParseRubricStripsCodeFence(t *testing.T) {
	raw := "```json\n{\"feedback\":\"Fenced\",\"score\":8}\n```"

	parsed := ParseRubric(raw)

	require.Equal(t, ParseStructured, parsed.Kind)
	require.Equal(t, "Fenced", parsed.Feedback)
	require.Equal(t, 8, parsed.Score)
}

func TestParseKindString(t *testing.T) {
	require.Equal(t, "structured", ParseStructured.String())
	require.Equal(t, "fallback", ParseFallback.String())
}
