package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Empty(t, cfg.Warnings())

	for _, st := range StageOrder {
		row, ok := cfg.StageWeights[st]
		require.True(t, ok, "stage %q has no weight row", st)
		assert.Len(t, row, len(Criteria))
	}
	assert.Len(t, cfg.Gates, 3)
}

func TestConfigValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			"missing stage row",
			func(c *Config) { delete(c.StageWeights, StageSeriesC) },
		},
		{
			"unknown criterion in weights",
			func(c *Config) { c.StageWeights[StageSeed][Criterion("vibes")] = 10 },
		},
		{
			"negative weight",
			func(c *Config) { c.StageWeights[StageSeed][Team] = -1 },
		},
		{
			"unknown stage key",
			func(c *Config) { c.StageWeights[Stage("series_z")] = c.StageWeights[StageSeed] },
		},
		{
			"non-positive multiplier",
			func(c *Config) { c.IndustryMultipliers["b2b_saas"][FinancialPlan] = 0 },
		},
		{
			"gate without condition",
			func(c *Config) { c.Gates[0].Condition = GateCondition{Criterion: Team} },
		},
		{
			"gate with unknown action",
			func(c *Config) { c.Gates[0].Action.Kind = ActionKind("boost") },
		},
		{
			"gate with negative action value",
			func(c *Config) { c.Gates[0].Action.Value = -5 },
		},
		{
			"gate with unknown stage_min",
			func(c *Config) { c.Gates[0].When.StageMin = stagePtr(Stage("series_z")) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfigWarnings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Gates = append(cfg.Gates, GateRule{
		Name:      "typo_gate",
		Condition: GateCondition{Criterion: Criterion("risk_managment"), LessThan: floatPtr(2)},
		Action:    GateAction{Kind: ActionPenalty, Value: 5},
	})
	cfg.IndustryMultipliers["b2b_saas"][Criterion("finacial_plan")] = 1.1

	require.NoError(t, cfg.Validate())
	warns := cfg.Warnings()
	assert.Len(t, warns, 2)
}
