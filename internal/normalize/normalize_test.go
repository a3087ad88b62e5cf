package normalize_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"medassist/internal/normalize"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "json fence", raw: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "bare fence", raw: "```\n[1,2]\n```", want: `[1,2]`},
		{name: "no fence", raw: "  {\"a\":1}  ", want: `{"a":1}`},
		{name: "prose around fence", raw: "Here is the answer ```json\n{\"interactions\":[]}\n``` thanks", want: `{"interactions":[]}`},
		{name: "inline json tag", raw: "```json{\"a\":1}```", want: `{"a":1}`},
		{name: "unterminated fence", raw: "```json\n{\"a\":1}", want: `{"a":1}`},
		{name: "uppercase tag", raw: "```JSON\n{}\n```", want: `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, normalize.StripFences(tt.raw))
		})
	}
}

func TestNormalizeFencedObject(t *testing.T) {
	got, err := normalize.Normalize("```json\n{\"a\":1}\n```", normalize.KindSymptom)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"a": float64(1)}, got)
}

func TestNormalizeProseWrappedFence(t *testing.T) {
	got, err := normalize.Normalize("Here is the answer ```json\n{\"interactions\":[]}\n``` ", normalize.KindMedication)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"interactions": []any{}}, got)
}

func TestNormalizeFallsBackToOutermostObject(t *testing.T) {
	got, err := normalize.Normalize(`Sure! {"guidelines":["take with food"]} Hope this helps.`, normalize.KindMedication)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"guidelines": []any{"take with food"}}, got)
}

func TestNormalizeInvalidKeepsRaw(t *testing.T) {
	_, err := normalize.Normalize("not json at all", normalize.KindMedication)
	require.Error(t, err)

	var perr *normalize.ParseError
	require.True(t, errors.As(err, &perr))
	require.Equal(t, normalize.KindMedication, perr.Kind)
	require.Equal(t, "not json at all", perr.Raw)
	require.Contains(t, perr.Error(), "Failed to parse medication analysis")
}

func TestNormalizeEmpty(t *testing.T) {
	_, err := normalize.Normalize("   ", normalize.KindDocument)

	var perr *normalize.ParseError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, normalize.KindDocument, perr.Kind)
}

func TestDecodeIntoStruct(t *testing.T) {
	var out struct {
		PossibleConditions []string `json:"possible_conditions"`
		EmergencySigns     []string `json:"emergency_signs"`
	}
	raw := "```json\n{\"possible_conditions\":[\"flu\"],\"emergency_signs\":[\"chest pain\"]}\n```"

	require.NoError(t, normalize.Decode(raw, normalize.KindSymptom, &out))
	require.Equal(t, []string{"flu"}, out.PossibleConditions)
	require.Equal(t, []string{"chest pain"}, out.EmergencySigns)
}

func TestKindMessages(t *testing.T) {
	require.Equal(t, "Failed to parse medical analysis", normalize.KindSymptom.Message())
	require.Equal(t, "Failed to parse document analysis", normalize.KindDocument.Message())
	require.Equal(t, "Failed to parse model response", normalize.Kind("other").Message())
}

func TestDecodeKeepsFenceInsideStringValue(t *testing.T) {
	var out struct {
		Summary    string `json:"summary"`
		KeyClauses []any  `json:"key_clauses"`
	}
	raw := "  {\"summary\":\"Run ```dose calc``` daily\",\"key_clauses\":[],\"risks\":[]}\n"

	require.NoError(t, normalize.Decode(raw, normalize.KindDocument, &out))
	require.Equal(t, "Run ```dose calc``` daily", out.Summary)
	require.Empty(t, out.KeyClauses)
}
