package extractor_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"medassist/internal/extractor"
)

func TestExtractVitalsScenario(t *testing.T) {
	table, err := extractor.NewTable([]extractor.Category{
		{Name: "vitals", Keywords: []string{"temperature", "heart rate"}},
	})
	require.NoError(t, err)

	got := table.Extract("Temperature 98.6°F, Heart Rate: 72 bpm")
	want := extractor.Result{
		"vitals": {"temperature": "98.6°F", "heart rate": "72 bpm"},
	}
	require.Equal(t, want, got)
}

func TestExtractDefaultTable(t *testing.T) {
	table := extractor.MustDefault()

	text := `Patient report
Blood Pressure: 120/80 mmHg
Respiratory rate 16
Hemoglobin: 13.5
Glucose 95 mg/dL
WBC: 7.2
CT scan 2 views`

	got := table.Extract(text)

	require.Equal(t, map[string]string{
		"blood pressure":   "120/80 mmHg",
		"respiratory rate": "16",
	}, got["vitals"])
	require.Equal(t, map[string]string{
		"hemoglobin": "13.5",
		"glucose":    "95 mg/dL",
		"wbc":        "7.2",
	}, got["blood_tests"])
	require.Equal(t, map[string]string{"ct scan": "2"}, got["imaging"])
	require.Equal(t, 6, got.Count())
}

func TestExtractNoKeywordsYieldsEmptyResult(t *testing.T) {
	got := extractor.MustDefault().Extract("The patient feels fine and has no complaints.")
	require.Empty(t, got)
}

func TestExtractOmitsCategoriesWithoutMatches(t *testing.T) {
	got := extractor.MustDefault().Extract("Platelets: 250")
	require.Len(t, got, 1)
	require.Contains(t, got, "blood_tests")
	require.NotContains(t, got, "vitals")
	require.NotContains(t, got, "imaging")
}

func TestExtractKeywordWithoutNumberDoesNotMatch(t *testing.T) {
	got := extractor.MustDefault().Extract("Temperature normal, glucose pending")
	require.Empty(t, got)
}

func TestExtractRepeatedKeywordLastMatchWins(t *testing.T) {
	table := extractor.MustDefault()
	text := "Heart rate 88 bpm on admission. Heart rate 72 bpm at discharge."

	got := table.Extract(text)
	require.Equal(t, "72 bpm", got["vitals"]["heart rate"])

	all := table.ExtractAll(text)
	require.Len(t, all, 2)
	require.Equal(t, "88 bpm", all[0].Value)
	require.Equal(t, "72 bpm", all[1].Value)
	require.Less(t, all[0].Offset, all[1].Offset)
}

func TestExtractKeywordIsCaseInsensitiveAndLowerCased(t *testing.T) {
	got := extractor.MustDefault().Extract("TEMPERATURE: 37.2°C")
	require.Equal(t, extractor.Result{"vitals": {"temperature": "37.2°C"}}, got)
}

func TestExtractQuotesKeywordMetacharacters(t *testing.T) {
	table, err := extractor.NewTable([]extractor.Category{
		{Name: "labs", Keywords: []string{"a1c (hba1c)", "x-ray"}},
	})
	require.NoError(t, err)

	got := table.Extract("A1C (HbA1c): 6.1 and X-ray 2")
	require.Equal(t, extractor.Result{"labs": {"a1c (hba1c)": "6.1", "x-ray": "2"}}, got)
}

func TestNewTableValidation(t *testing.T) {
	tests := []struct {
		name string
		cats []extractor.Category
	}{
		{name: "empty table", cats: nil},
		{name: "blank name", cats: []extractor.Category{{Name: " ", Keywords: []string{"a"}}}},
		{name: "no keywords", cats: []extractor.Category{{Name: "a", Keywords: []string{" "}}}},
		{name: "duplicate", cats: []extractor.Category{
			{Name: "a", Keywords: []string{"x"}},
			{Name: "a", Keywords: []string{"y"}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := extractor.NewTable(tt.cats)
			require.Error(t, err)
		})
	}
}

func TestCategoriesReturnsCopy(t *testing.T) {
	table := extractor.MustDefault()
	cats := table.Categories()
	cats[0].Keywords[0] = "mutated"

	require.Equal(t, "temperature", table.Categories()[0].Keywords[0])
	require.Equal(t, "vitals", cats[0].Name)
}
