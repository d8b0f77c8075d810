package deckai

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venturelens/ir-deck-meter/internal/scoring"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    map[string]interface{}
		wantErr bool
	}{
		{
			name:  "plain object",
			input: `{"a": 1}`,
			want:  map[string]interface{}{"a": 1.0},
		},
		{
			name:  "prose around the object",
			input: "Here is the assessment:\n{\"a\": 1}\nHope this helps!",
			want:  map[string]interface{}{"a": 1.0},
		},
		{
			name:  "markdown fence",
			input: "```json\n{\"a\": 1}\n```",
			want:  map[string]interface{}{"a": 1.0},
		},
		{
			name:  "braces inside strings",
			input: `noise {"a": "curly } brace", "b": {"c": 2}} trailing`,
			want:  map[string]interface{}{"a": "curly } brace", "b": map[string]interface{}{"c": 2.0}},
		},
		{
			name:  "escaped quote in string",
			input: `{"a": "quote \" and } brace"}`,
			want:  map[string]interface{}{"a": `quote " and } brace`},
		},
		{name: "empty", input: "   ", wantErr: true},
		{name: "no object", input: "sorry, I cannot do that", wantErr: true},
		{name: "unclosed object", input: `{"a": 1`, wantErr: true},
		{name: "malformed object", input: `text {"a": } text`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got map[string]interface{}
			err := ExtractJSONObject(tt.input, &got)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyEvidenceCap(t *testing.T) {
	tests := []struct {
		name  string
		raw   float64
		level string
		want  float64
	}{
		{"claims only cap", 4.5, "L0", 2.5},
		{"internal evidence cap", 4.5, "L1", 3.0},
		{"external evidence cap", 4.5, "L2", 4.0},
		{"verified full range", 4.5, "L3", 4.5},
		{"below cap untouched", 2.0, "L3", 2.0},
		{"unknown level treated as L0", 5.0, "LX", 2.5},
		{"zero raised to one", 0, "L3", 1.0},
		{"above five clamped", 9, "L3", 5.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, applyEvidenceCap(tt.raw, tt.level))
		})
	}
}

func samplePayload(t *testing.T, bm string) *llmPayload {
	t.Helper()

	scores := map[string]llmCriterion{}
	for _, c := range scoring.Criteria {
		scores[string(c)] = llmCriterion{EvidenceLevel: "L3", RawScore: json.Number("4.0"), Confidence: 0.8}
	}
	scores[string(scoring.Market)] = llmCriterion{EvidenceLevel: "L0", RawScore: json.Number("4.0")}

	p := &llmPayload{Scores: scores}
	p.BMRevenueMechanism.Primary = bm
	p.Archetype.Primary = "traction_software"
	return p
}

func TestPostprocess(t *testing.T) {
	out := postprocess(samplePayload(t, "subscription"), "gemini-2.0-flash")

	require.Len(t, out.Scores, len(scoring.Criteria))
	assert.False(t, out.BMUnknown)
	assert.Equal(t, "subscription", out.BusinessModel)
	assert.Equal(t, 4.0, out.Scores[scoring.Team].Final)
	// Market claimed 4.0 on L0 evidence, capped at 2.5.
	assert.Equal(t, 2.5, out.Scores[scoring.Market].Final)

	finals := out.Final1To5()
	assert.Equal(t, 2.5, finals[scoring.Market])
	assert.Equal(t, 4.0, finals[scoring.FinancialPlan])
}

func TestPostprocessUnknownBusinessModel(t *testing.T) {
	out := postprocess(samplePayload(t, "unknown_not_disclosed"), "gemini-2.0-flash")

	assert.True(t, out.BMUnknown)
	assert.Equal(t, 3.0, out.Scores[scoring.BusinessModel].Final)
	assert.Equal(t, 3.0, out.Scores[scoring.FinancialPlan].Final)
	// Other criteria keep their verified scores.
	assert.Equal(t, 4.0, out.Scores[scoring.Team].Final)
}

func TestPostprocessMissingCriterionDefaults(t *testing.T) {
	p := samplePayload(t, "subscription")
	delete(p.Scores, string(scoring.RiskManagement))
	p.Scores[string(scoring.GrowthStrategy)] = llmCriterion{EvidenceLevel: "L2", RawScore: json.Number("not-a-number")}

	out := postprocess(p, "gemini-2.0-flash")

	// Absent entries and unparseable raw scores fall back to the floor.
	assert.Equal(t, 1.0, out.Scores[scoring.RiskManagement].Final)
	assert.Equal(t, 1.0, out.Scores[scoring.GrowthStrategy].Final)
}

func TestBuildPromptContainsAllCriteria(t *testing.T) {
	prompt := buildPrompt(DeckRequest{CompanyName: "Acme", Stage: "series_a", DeckText: "We build robots."})

	for _, c := range scoring.Criteria {
		assert.Contains(t, prompt, string(c))
	}
	assert.Contains(t, prompt, "We build robots.")
	assert.Contains(t, prompt, "unknown_not_disclosed")
}
