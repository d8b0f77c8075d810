package scoring

import (
	"errors"
	"fmt"
)

// ActionKind discriminates the gate action variants.
type ActionKind string

const (
	// ActionCapOverall caps the running 0-100 score at Value.
	ActionCapOverall ActionKind = "cap_overall"
	// ActionPenalty subtracts Value from the running 0-100 score,
	// clamped at zero.
	ActionPenalty ActionKind = "penalty"
)

// GateAction is the tagged action a triggered gate applies to the running
// 0-100 score. Exactly one kind per rule.
type GateAction struct {
	Kind  ActionKind `json:"kind"`
	Value float64    `json:"value"`
}

// apply folds the action into the running 0-100 score. Caps only lower,
// penalties clamp at zero; a gate can never raise the score.
func (a GateAction) apply(score float64) float64 {
	switch a.Kind {
	case ActionCapOverall:
		if score > a.Value {
			return a.Value
		}
		return score
	case ActionPenalty:
		s := score - a.Value
		if s < 0 {
			return 0
		}
		return s
	}
	return score
}

func (a GateAction) String() string {
	return fmt.Sprintf("%s(%g)", a.Kind, a.Value)
}

// GateWhen is the applicability predicate of a gate. All present
// conditions must hold; absent conditions are vacuously true.
type GateWhen struct {
	StageMin        *Stage   `json:"stage_min,omitempty"`
	IndustryIn      []string `json:"industry_in,omitempty"`
	BusinessModelIn []string `json:"business_model_in,omitempty"`
}

// GateCondition is the trigger test against one criterion's raw 1-5
// score: fires when the score is below LessThan or at/above AtLeast.
type GateCondition struct {
	Criterion Criterion `json:"criterion"`
	LessThan  *float64  `json:"lt,omitempty"`
	AtLeast   *float64  `json:"gte,omitempty"`
}

// GateRule caps or penalizes the overall score when a criterion scores
// too low (or too high) in a given stage/industry/business-model context.
// Rules are evaluated in table order and compose through the running
// score, so order matters and must be preserved as configured.
type GateRule struct {
	Name      string        `json:"name"`
	When      GateWhen      `json:"when"`
	Condition GateCondition `json:"condition"`
	Action    GateAction    `json:"action"`
	Note      string        `json:"note,omitempty"`
}

func (r GateRule) validate() error {
	if r.Name == "" {
		return errors.New("gate has no name")
	}
	if r.Condition.LessThan == nil && r.Condition.AtLeast == nil {
		return errors.New("gate condition has neither lt nor gte")
	}
	switch r.Action.Kind {
	case ActionCapOverall, ActionPenalty:
	default:
		return fmt.Errorf("unknown gate action kind %q", r.Action.Kind)
	}
	if r.Action.Value < 0 {
		return fmt.Errorf("gate action value must be non-negative, got %v", r.Action.Value)
	}
	if r.When.StageMin != nil && r.When.StageMin.Rank() < 0 {
		return fmt.Errorf("unknown stage_min %q", *r.When.StageMin)
	}
	return nil
}

// applies evaluates the applicability predicate against the resolved
// context. Membership tests fail when the corresponding label is absent.
func (r GateRule) applies(stage Stage, industry, businessModel string) bool {
	if r.When.StageMin != nil && !stage.AtLeast(*r.When.StageMin) {
		return false
	}
	if len(r.When.IndustryIn) > 0 && !contains(r.When.IndustryIn, industry) {
		return false
	}
	if len(r.When.BusinessModelIn) > 0 && !contains(r.When.BusinessModelIn, businessModel) {
		return false
	}
	return true
}

// triggered evaluates the trigger condition against the criterion's raw
// 1-5 score.
func (r GateRule) triggered(score float64) bool {
	if r.Condition.LessThan != nil && score < *r.Condition.LessThan {
		return true
	}
	if r.Condition.AtLeast != nil && score >= *r.Condition.AtLeast {
		return true
	}
	return false
}

func contains(xs []string, x string) bool {
	if x == "" {
		return false
	}
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

// GateRecord is one audit entry in the gate trail. A record is appended
// whenever a rule's condition fires, even when the action did not change
// the numeric score, so the trail stays explainable.
type GateRecord struct {
	Gate           string     `json:"gate"`
	Criterion      Criterion  `json:"criterion"`
	CriterionScore float64    `json:"criterion_score"`
	Before100      float64    `json:"before_100"`
	After100       float64    `json:"after_100"`
	Action         GateAction `json:"action"`
	Note           string     `json:"note,omitempty"`
}

// applyGates folds the ordered gate list over the 0-100 score. Each
// triggered rule's action applies to the running score, not the original,
// so rules compose sequentially. Rules targeting unknown criteria are
// skipped (configuration typo, surfaced by Config.Warnings).
func applyGates(gates []GateRule, stage Stage, industry, businessModel string, scores map[Criterion]float64, overall100 float64) (float64, []GateRecord) {
	trail := make([]GateRecord, 0, len(gates))

	for _, rule := range gates {
		if !rule.applies(stage, industry, businessModel) {
			continue
		}
		if !IsCriterion(rule.Condition.Criterion) {
			continue
		}

		val := scores[rule.Condition.Criterion]
		if !rule.triggered(val) {
			continue
		}

		before := overall100
		overall100 = rule.Action.apply(overall100)

		trail = append(trail, GateRecord{
			Gate:           rule.Name,
			Criterion:      rule.Condition.Criterion,
			CriterionScore: val,
			Before100:      before,
			After100:       overall100,
			Action:         rule.Action,
			Note:           rule.Note,
		})
	}

	return overall100, trail
}
