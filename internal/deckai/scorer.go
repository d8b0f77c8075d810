package deckai

import (
	"context"
	"encoding/json"
	"math"
	"strings"

	"github.com/venturelens/ir-deck-meter/internal/scoring"
)

// DeckRequest carries the deck text and context the scorer needs.
type DeckRequest struct {
	CompanyName string
	Stage       string
	DeckText    string
}

// CriterionScore is the per-criterion output of the model after
// post-processing.
type CriterionScore struct {
	Raw           float64 `json:"raw_score"`
	Final         float64 `json:"final_score"`
	EvidenceLevel string  `json:"evidence_level"`
	Confidence    float64 `json:"confidence"`
}

// DeckScores is the post-processed model assessment of a deck.
type DeckScores struct {
	Scores        map[scoring.Criterion]CriterionScore `json:"scores"`
	BusinessModel string                               `json:"business_model"`
	Archetype     string                               `json:"archetype"`
	BMUnknown     bool                                 `json:"bm_unknown"`
	ModelName     string                               `json:"model_name"`
}

// Final1To5 returns the capped scores keyed by criterion, ready for
// the weight engine.
func (d *DeckScores) Final1To5() map[scoring.Criterion]float64 {
	out := make(map[scoring.Criterion]float64, len(d.Scores))
	for c, s := range d.Scores {
		out[c] = s.Final
	}
	return out
}

// ScoreSource produces criterion scores from raw deck text.
type ScoreSource interface {
	ScoreDeck(ctx context.Context, req DeckRequest) (*DeckScores, error)
}

// evidenceCap limits how high a score can go on thin evidence: claims
// alone cap at 2.5, independent verification allows the full range.
var evidenceCap = map[string]float64{
	"L0": 2.5,
	"L1": 3.0,
	"L2": 4.0,
	"L3": 5.0,
}

const (
	bmUnknownLabel = "unknown_not_disclosed"
	bmUnknownCap   = 3.0
)

func clampScore1To5(x float64) float64 {
	if math.IsNaN(x) {
		return 1
	}
	return math.Max(1, math.Min(5, x))
}

func applyEvidenceCap(raw float64, level string) float64 {
	limit, ok := evidenceCap[strings.TrimSpace(level)]
	if !ok {
		limit = evidenceCap["L0"]
	}
	return math.Min(clampScore1To5(raw), limit)
}

// llmPayload mirrors the JSON schema the model is instructed to emit.
type llmPayload struct {
	Archetype struct {
		Primary string `json:"primary"`
	} `json:"archetype"`
	BMRevenueMechanism struct {
		Primary string `json:"primary"`
	} `json:"bm_revenue_mechanism"`
	Scores map[string]llmCriterion `json:"scores"`
}

type llmCriterion struct {
	EvidenceLevel string      `json:"evidence_level"`
	RawScore      json.Number `json:"raw_score"`
	Confidence    float64     `json:"confidence"`
}

// postprocess applies evidence caps, forbids zero scores, and caps
// business model and financial plan at 3.0 when the model could not
// identify a revenue mechanism.
func postprocess(payload *llmPayload, modelName string) *DeckScores {
	bm := strings.TrimSpace(payload.BMRevenueMechanism.Primary)
	bmUnknown := bm == "" || bm == bmUnknownLabel

	out := &DeckScores{
		Scores:        make(map[scoring.Criterion]CriterionScore, len(scoring.Criteria)),
		BusinessModel: bm,
		Archetype:     strings.TrimSpace(payload.Archetype.Primary),
		BMUnknown:     bmUnknown,
		ModelName:     modelName,
	}

	for _, c := range scoring.Criteria {
		item := payload.Scores[string(c)]

		raw := 1.0
		if f, err := item.RawScore.Float64(); err == nil && item.RawScore != "" {
			raw = f
		}

		final := applyEvidenceCap(raw, item.EvidenceLevel)
		if bmUnknown && (c == scoring.BusinessModel || c == scoring.FinancialPlan) {
			final = math.Min(final, bmUnknownCap)
		}

		out.Scores[c] = CriterionScore{
			Raw:           raw,
			Final:         math.Round(final*100) / 100,
			EvidenceLevel: strings.TrimSpace(item.EvidenceLevel),
			Confidence:    item.Confidence,
		}
	}

	return out
}
