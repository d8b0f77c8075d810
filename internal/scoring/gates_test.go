package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateActionApply(t *testing.T) {
	tests := []struct {
		name   string
		action GateAction
		score  float64
		want   float64
	}{
		{"cap lowers a high score", GateAction{Kind: ActionCapOverall, Value: 65}, 90, 65},
		{"cap leaves a lower score alone", GateAction{Kind: ActionCapOverall, Value: 65}, 50, 50},
		{"cap at the boundary", GateAction{Kind: ActionCapOverall, Value: 65}, 65, 65},
		{"penalty subtracts", GateAction{Kind: ActionPenalty, Value: 8}, 70, 62},
		{"penalty clamps at zero", GateAction{Kind: ActionPenalty, Value: 8}, 5, 0},
		{"zero penalty is a no-op", GateAction{Kind: ActionPenalty, Value: 0}, 42, 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.action.apply(tt.score))
		})
	}
}

func TestGateRuleApplies(t *testing.T) {
	rule := GateRule{
		Name: "test",
		When: GateWhen{
			StageMin:   stagePtr(StageSeriesA),
			IndustryIn: []string{"b2b_saas", "fintech_regulated"},
		},
		Condition: GateCondition{Criterion: FinancialPlan, LessThan: floatPtr(3)},
		Action:    GateAction{Kind: ActionPenalty, Value: 8},
	}

	tests := []struct {
		name     string
		stage    Stage
		industry string
		want     bool
	}{
		{"stage and industry match", StageSeriesB, "b2b_saas", true},
		{"stage at the minimum", StageSeriesA, "fintech_regulated", true},
		{"stage below minimum", StagePreA, "b2b_saas", false},
		{"industry not in list", StageSeriesB, "d2c_commerce", false},
		{"absent industry fails membership", StageSeriesB, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rule.applies(tt.stage, tt.industry, ""))
		})
	}
}

func TestGateRuleAppliesNoPredicates(t *testing.T) {
	rule := GateRule{
		Name:      "unconditional",
		Condition: GateCondition{Criterion: Team, LessThan: floatPtr(2)},
		Action:    GateAction{Kind: ActionPenalty, Value: 5},
	}
	assert.True(t, rule.applies(StageSeed, "", ""))
	assert.True(t, rule.applies(StageIPO, "anything", "anything"))
}

func TestGateRuleTriggered(t *testing.T) {
	lt := GateRule{Condition: GateCondition{Criterion: Team, LessThan: floatPtr(2.5)}}
	assert.True(t, lt.triggered(2.4))
	assert.False(t, lt.triggered(2.5), "lt is strict")

	gte := GateRule{Condition: GateCondition{Criterion: Team, AtLeast: floatPtr(4.0)}}
	assert.True(t, gte.triggered(4.0), "gte is inclusive")
	assert.False(t, gte.triggered(3.9))
}

func TestApplyGatesOrderingAndTrail(t *testing.T) {
	gates := []GateRule{
		{
			Name:      "cap_first",
			Condition: GateCondition{Criterion: RiskManagement, LessThan: floatPtr(3)},
			Action:    GateAction{Kind: ActionCapOverall, Value: 70},
		},
		{
			Name:      "penalty_second",
			Condition: GateCondition{Criterion: FinancialPlan, LessThan: floatPtr(3)},
			Action:    GateAction{Kind: ActionPenalty, Value: 10},
		},
	}
	scores := map[Criterion]float64{RiskManagement: 2, FinancialPlan: 2}

	// Both fire: 85 -> cap 70 -> minus 10 = 60.
	after, trail := applyGates(gates, StageSeed, "", "", scores, 85)
	require.Len(t, trail, 2)
	assert.Equal(t, 60.0, after)
	assert.Equal(t, "cap_first", trail[0].Gate)
	assert.Equal(t, 85.0, trail[0].Before100)
	assert.Equal(t, 70.0, trail[0].After100)
	assert.Equal(t, "penalty_second", trail[1].Gate)
	assert.Equal(t, 70.0, trail[1].Before100)
	assert.Equal(t, 60.0, trail[1].After100)
}

func TestApplyGatesRecordsNumericNoOps(t *testing.T) {
	gates := []GateRule{{
		Name:      "cap_noop",
		Condition: GateCondition{Criterion: Team, LessThan: floatPtr(3)},
		Action:    GateAction{Kind: ActionCapOverall, Value: 65},
	}}

	// The condition fires but the score is already under the cap; the
	// trail still records the event.
	after, trail := applyGates(gates, StageSeed, "", "", map[Criterion]float64{Team: 1}, 40)
	assert.Equal(t, 40.0, after)
	require.Len(t, trail, 1)
	assert.Equal(t, 40.0, trail[0].Before100)
	assert.Equal(t, 40.0, trail[0].After100)
}

func TestApplyGatesSkipsUnknownCriterion(t *testing.T) {
	gates := []GateRule{{
		Name:      "typo_gate",
		Condition: GateCondition{Criterion: Criterion("teamwork"), LessThan: floatPtr(5)},
		Action:    GateAction{Kind: ActionPenalty, Value: 50},
	}}

	after, trail := applyGates(gates, StageSeed, "", "", nil, 80)
	assert.Equal(t, 80.0, after)
	assert.Empty(t, trail)
}

func TestApplyGatesMonotone(t *testing.T) {
	cfg := DefaultConfig()
	scores := map[Criterion]float64{
		RiskManagement: 1, FinancialPlan: 1, GrowthStrategy: 1,
	}

	for _, start := range []float64{0, 10, 50, 65, 90, 100} {
		after, _ := applyGates(cfg.Gates, StageSeriesB, "b2b_saas", "", scores, start)
		assert.LessOrEqual(t, after, start)
		assert.GreaterOrEqual(t, after, 0.0)
	}
}
