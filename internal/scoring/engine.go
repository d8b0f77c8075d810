package scoring

import (
	"math"
	"sync/atomic"
)

// Engine computes context-sensitive weights and gated overall scores for
// IR deck evaluations. It is a pure function of its inputs and the rule
// tables it was constructed with; Evaluate is safe for concurrent use.
type Engine struct {
	cfg atomic.Pointer[Config]
}

// NewEngine builds an engine from cfg, or from the built-in defaults when
// cfg is nil. The config is validated once here and treated as immutable
// afterwards.
func NewEngine(cfg *Config) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{}
	e.cfg.Store(cfg)
	return e, nil
}

// Reload atomically swaps in a new config so in-flight evaluations never
// observe a partially updated rule set.
func (e *Engine) Reload(cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.cfg.Store(cfg)
	return nil
}

// Config returns the current rule tables. Callers must not mutate them.
func (e *Engine) Config() *Config {
	return e.cfg.Load()
}

// EvaluationInput carries everything one Evaluate call needs. Stage is
// free text and is canonicalized; Industry and BusinessModel are optional
// labels (unrecognized values pass through as identity multipliers).
type EvaluationInput struct {
	Scores        map[Criterion]float64
	Stage         string
	Industry      string
	BusinessModel string

	// OverrideWeights replaces individual stage base weights before
	// normalization (manual tuning).
	OverrideWeights Weights
	// ExtraMultipliers is an ad-hoc multiplier map applied after the
	// industry and business-model stages (experimentation).
	ExtraMultipliers Multipliers
	// SkipGates returns the pre-gate score as the gated score with an
	// empty trail.
	SkipGates bool
}

// EvaluationResult is the engine's output for one call. Weights always
// sum to 100; the gated score is never above the raw score.
type EvaluationResult struct {
	Stage         Stage   `json:"stage"`
	Industry      string  `json:"industry,omitempty"`
	BusinessModel string  `json:"business_model,omitempty"`
	Weights       Weights `json:"weights"`

	Raw1To5   float64 `json:"overall_1_to_5_raw"`
	Gated1To5 float64 `json:"overall_1_to_5_after_gates"`
	Raw100    float64 `json:"overall_100_raw"`
	Gated100  float64 `json:"overall_100_after_gates"`

	Gates []GateRecord `json:"gates_applied"`
}

// normalizeWeights clamps negative entries to zero and rescales the
// vector to sum exactly 100 over the fixed criterion set. A non-positive
// total degrades to a uniform 100/9 vector rather than failing: "no
// information" weighting beats erroring the whole evaluation.
func normalizeWeights(raw Weights) Weights {
	cleaned := make(Weights, len(Criteria))
	total := 0.0
	for _, c := range Criteria {
		v := raw[c]
		if v < 0 {
			v = 0
		}
		cleaned[c] = v
		total += v
	}
	if total <= 0 {
		eq := 100.0 / float64(len(Criteria))
		for _, c := range Criteria {
			cleaned[c] = eq
		}
		return cleaned
	}
	for _, c := range Criteria {
		cleaned[c] = cleaned[c] / total * 100.0
	}
	return cleaned
}

// applyMultipliers multiplies the running vector per criterion. Criteria
// absent from the multiplier map keep an implicit factor of 1; unknown
// criterion keys in the map are ignored.
func applyMultipliers(vec Weights, mult Multipliers) Weights {
	if len(mult) == 0 {
		return vec
	}
	out := make(Weights, len(vec))
	for c, v := range vec {
		out[c] = v
	}
	for c, m := range mult {
		if _, ok := out[c]; ok {
			out[c] *= m
		}
	}
	return out
}

// ComputeWeights resolves the final normalized weight vector (sum 100)
// for a context: stage base weights, optional per-entry overrides, then
// industry, business-model and extra multipliers applied in that fixed
// order to the running vector, then normalization. Unrecognized industry
// or business-model labels are identity, not errors.
func (e *Engine) ComputeWeights(stage string, industry, businessModel string, overrides Weights, extra Multipliers) (Stage, Weights, error) {
	return computeWeights(e.cfg.Load(), stage, industry, businessModel, overrides, extra)
}

// computeWeights is ComputeWeights against an explicit config snapshot,
// so one Evaluate call resolves weights and gates from the same tables
// even while Reload swaps the pointer underneath it.
func computeWeights(cfg *Config, stage string, industry, businessModel string, overrides Weights, extra Multipliers) (Stage, Weights, error) {
	st, err := CanonicalStage(stage)
	if err != nil {
		return "", nil, err
	}

	base, ok := cfg.StageWeights[st]
	if !ok {
		return "", nil, &MissingStageConfigError{Stage: st}
	}

	raw := make(Weights, len(Criteria))
	for _, c := range Criteria {
		raw[c] = base[c]
	}
	for c, v := range overrides {
		if IsCriterion(c) {
			raw[c] = v
		}
	}

	if industry != "" {
		raw = applyMultipliers(raw, cfg.IndustryMultipliers[industry])
	}
	if businessModel != "" {
		raw = applyMultipliers(raw, cfg.BusinessModelMultipliers[businessModel])
	}
	raw = applyMultipliers(raw, extra)

	return st, normalizeWeights(raw), nil
}

// Score computes the weighted average of per-criterion scores on the 1-5
// scale. Missing entries count as 0: an unevaluated section is itself
// informative and pulls the average down. A zero total weight returns 0
// (unreachable with normalized weights, kept defensive).
func (e *Engine) Score(scores map[Criterion]float64, weights Weights) float64 {
	totalW := 0.0
	weighted := 0.0
	for _, c := range Criteria {
		w := weights[c]
		totalW += w
		weighted += scores[c] * w
	}
	if totalW <= 0 {
		return 0
	}
	return weighted / totalW
}

// ApplyGates runs the ordered gate list against an overall 1-5 score and
// returns the gated 1-5 score plus the audit trail.
func (e *Engine) ApplyGates(stage string, industry, businessModel string, scores map[Criterion]float64, overall1To5 float64) (float64, []GateRecord, error) {
	cfg := e.cfg.Load()

	st, err := CanonicalStage(stage)
	if err != nil {
		return 0, nil, err
	}

	overall100 := overall1To5 / 5.0 * 100.0
	after100, trail := applyGates(cfg.Gates, st, industry, businessModel, scores, overall100)
	return after100 / 100.0 * 5.0, trail, nil
}

// Evaluate runs the whole pipeline: canonicalize, resolve base weights,
// compose multipliers, normalize, score, gate. It is side-effect free;
// the only expected failure for well-formed input is an unknown stage.
func (e *Engine) Evaluate(in EvaluationInput) (*EvaluationResult, error) {
	// One snapshot for the whole call: weights and gate trail must come
	// from the same rule set regardless of concurrent reloads.
	cfg := e.cfg.Load()

	st, weights, err := computeWeights(cfg, in.Stage, in.Industry, in.BusinessModel, in.OverrideWeights, in.ExtraMultipliers)
	if err != nil {
		return nil, err
	}

	overall := e.Score(in.Scores, weights)

	gated := overall
	var trail []GateRecord
	if !in.SkipGates {
		overall100 := overall / 5.0 * 100.0
		after100, t := applyGates(cfg.Gates, st, in.Industry, in.BusinessModel, in.Scores, overall100)
		gated = after100 / 100.0 * 5.0
		trail = t
	}
	if trail == nil {
		trail = []GateRecord{}
	}

	return &EvaluationResult{
		Stage:         st,
		Industry:      in.Industry,
		BusinessModel: in.BusinessModel,
		Weights:       weights,
		Raw1To5:       round4(overall),
		Gated1To5:     round4(gated),
		Raw100:        round2(overall / 5.0 * 100.0),
		Gated100:      round2(gated / 5.0 * 100.0),
		Gates:         trail,
	}, nil
}

func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
