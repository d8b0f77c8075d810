package types

import "github.com/venturelens/ir-deck-meter/internal/scoring"

// EvaluateRequest is the request body for the evaluate endpoint. Scores is
// the only required field; everything else refines the weighting context.
type EvaluateRequest struct {
	Scores        map[scoring.Criterion]float64 `json:"scores" binding:"required"`
	Stage         string                        `json:"stage"`
	Industry      string                        `json:"industry"`
	BusinessModel string                        `json:"business_model"`

	OverrideWeights  scoring.Weights     `json:"override_weights"`
	ExtraMultipliers scoring.Multipliers `json:"extra_multipliers"`
	SkipGates        bool                `json:"skip_gates"`

	// DefaultStageToSeed treats an empty or unrecognized stage as seed
	// instead of failing the request.
	DefaultStageToSeed bool `json:"default_stage_to_seed"`

	// DeckName keys the evaluation in history; evaluations without a
	// name are not persisted.
	DeckName    string `json:"deck_name"`
	CompanyName string `json:"company_name"`
}

// WeightsRequest is the request body for the weights endpoint: same
// context resolution as evaluate, without scores or gates.
type WeightsRequest struct {
	Stage         string `json:"stage" binding:"required"`
	Industry      string `json:"industry"`
	BusinessModel string `json:"business_model"`

	OverrideWeights  scoring.Weights     `json:"override_weights"`
	ExtraMultipliers scoring.Multipliers `json:"extra_multipliers"`
}

// WeightsResponse carries the resolved normalized weight vector.
type WeightsResponse struct {
	Stage         scoring.Stage   `json:"stage"`
	Industry      string          `json:"industry,omitempty"`
	BusinessModel string          `json:"business_model,omitempty"`
	Weights       scoring.Weights `json:"weights"`
}

// StageInfo describes one canonical stage for the stages listing.
type StageInfo struct {
	ID   scoring.Stage `json:"id"`
	Rank int           `json:"rank"`
}

// ScoreDeckRequest asks the AI scorer to read raw deck text and produce
// per-criterion scores, optionally evaluating them in the same call.
type ScoreDeckRequest struct {
	DeckText      string `json:"deck_text" binding:"required"`
	Stage         string `json:"stage"`
	Industry      string `json:"industry"`
	BusinessModel string `json:"business_model"`
	DeckName      string `json:"deck_name"`
	CompanyName   string `json:"company_name"`
}
