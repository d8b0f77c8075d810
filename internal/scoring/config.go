package scoring

import (
	"fmt"
)

// Config holds the immutable rule tables the engine evaluates against:
// per-stage base weights, industry and business-model multipliers, and the
// ordered gate list. A Config is never mutated after construction; hot
// reload swaps a whole new Config atomically.
type Config struct {
	StageWeights             map[Stage]Weights
	IndustryMultipliers      map[string]Multipliers
	BusinessModelMultipliers map[string]Multipliers
	Gates                    []GateRule
}

// DefaultConfig returns the built-in rule tables.
func DefaultConfig() *Config {
	return &Config{
		StageWeights:             defaultStageWeights(),
		IndustryMultipliers:      defaultIndustryMultipliers(),
		BusinessModelMultipliers: defaultBusinessModelMultipliers(),
		Gates:                    defaultGates(),
	}
}

// Validate checks the config for fatal problems: a missing weight row for
// any canonical stage, weight entries for unknown criteria, non-positive
// multipliers, and malformed gates (no condition, no action, unknown
// stage_min). Recoverable oddities are reported by Warnings instead.
func (c *Config) Validate() error {
	for _, st := range StageOrder {
		row, ok := c.StageWeights[st]
		if !ok {
			return &MissingStageConfigError{Stage: st}
		}
		for crit, w := range row {
			if !IsCriterion(crit) {
				return fmt.Errorf("stage %q weights: unknown criterion %q", st, crit)
			}
			if w < 0 {
				return fmt.Errorf("stage %q weights: negative weight %v for %q", st, w, crit)
			}
		}
	}
	for st := range c.StageWeights {
		if st.Rank() < 0 {
			return fmt.Errorf("stage weights: unknown stage %q", st)
		}
	}
	for key, m := range c.IndustryMultipliers {
		if err := validateMultipliers("industry", key, m); err != nil {
			return err
		}
	}
	for key, m := range c.BusinessModelMultipliers {
		if err := validateMultipliers("business model", key, m); err != nil {
			return err
		}
	}
	for i, g := range c.Gates {
		if err := g.validate(); err != nil {
			return fmt.Errorf("gate %d (%s): %w", i, g.Name, err)
		}
	}
	return nil
}

func validateMultipliers(kind, key string, m Multipliers) error {
	for crit, v := range m {
		// Unknown criterion keys are ignored at evaluation time, so they
		// are a warning, not an error. Non-positive factors are fatal.
		if v <= 0 && IsCriterion(crit) {
			return fmt.Errorf("%s %q: multiplier for %q must be positive, got %v", kind, key, crit, v)
		}
	}
	return nil
}

// Warnings lists likely configuration typos that do not stop evaluation:
// gates targeting unknown criteria (skipped at runtime) and multiplier
// entries for unknown criteria (ignored at runtime). The embedding
// application should log these at startup.
func (c *Config) Warnings() []string {
	var warns []string
	for _, g := range c.Gates {
		if !IsCriterion(g.Condition.Criterion) {
			warns = append(warns, fmt.Sprintf("gate %q targets unknown criterion %q and will never fire", g.Name, g.Condition.Criterion))
		}
	}
	for key, m := range c.IndustryMultipliers {
		for crit := range m {
			if !IsCriterion(crit) {
				warns = append(warns, fmt.Sprintf("industry %q multiplier for unknown criterion %q is ignored", key, crit))
			}
		}
	}
	for key, m := range c.BusinessModelMultipliers {
		for crit := range m {
			if !IsCriterion(crit) {
				warns = append(warns, fmt.Sprintf("business model %q multiplier for unknown criterion %q is ignored", key, crit))
			}
		}
	}
	return warns
}

func defaultStageWeights() map[Stage]Weights {
	return map[Stage]Weights{
		StageSeed: {
			ProblemDefinition: 12, SolutionProduct: 16, Market: 16,
			BusinessModel: 10, CompetitiveAdvantage: 8, GrowthStrategy: 10,
			Team: 18, FinancialPlan: 5, RiskManagement: 5,
		},
		StagePreA: {
			ProblemDefinition: 10, SolutionProduct: 15, Market: 15,
			BusinessModel: 12, CompetitiveAdvantage: 8, GrowthStrategy: 14,
			Team: 14, FinancialPlan: 6, RiskManagement: 6,
		},
		StageSeriesA: {
			ProblemDefinition: 8, SolutionProduct: 14, Market: 14,
			BusinessModel: 14, CompetitiveAdvantage: 10, GrowthStrategy: 16,
			Team: 12, FinancialPlan: 6, RiskManagement: 6,
		},
		StageSeriesB: {
			ProblemDefinition: 6, SolutionProduct: 10, Market: 12,
			BusinessModel: 16, CompetitiveAdvantage: 12, GrowthStrategy: 18,
			Team: 10, FinancialPlan: 10, RiskManagement: 6,
		},
		StageSeriesC: {
			ProblemDefinition: 4, SolutionProduct: 8, Market: 12,
			BusinessModel: 18, CompetitiveAdvantage: 14, GrowthStrategy: 16,
			Team: 8, FinancialPlan: 12, RiskManagement: 8,
		},
		StagePreIPO: {
			ProblemDefinition: 3, SolutionProduct: 6, Market: 10,
			BusinessModel: 18, CompetitiveAdvantage: 15, GrowthStrategy: 12,
			Team: 8, FinancialPlan: 18, RiskManagement: 10,
		},
		StageIPO: {
			ProblemDefinition: 2, SolutionProduct: 5, Market: 10,
			BusinessModel: 16, CompetitiveAdvantage: 15, GrowthStrategy: 10,
			Team: 7, FinancialPlan: 22, RiskManagement: 13,
		},
	}
}

func defaultIndustryMultipliers() map[string]Multipliers {
	return map[string]Multipliers{
		// Bio/healthcare: clinical evidence, regulatory risk, team, IP.
		"bio_healthcare": {
			SolutionProduct:      1.25,
			CompetitiveAdvantage: 1.10,
			Team:                 1.10,
			RiskManagement:       1.15,
			FinancialPlan:        0.90,
			GrowthStrategy:       0.90,
		},
		// Deeptech: TRL/commercialization, certification risk, capex.
		"deeptech": {
			SolutionProduct:      1.15,
			CompetitiveAdvantage: 1.10,
			FinancialPlan:        1.10,
			RiskManagement:       1.10,
			GrowthStrategy:       1.05,
			ProblemDefinition:    0.95,
		},
		// Manufacturing/materials: process moat, cost structure, supply chain.
		"manufacturing_sobu": {
			CompetitiveAdvantage: 1.15,
			FinancialPlan:        1.15,
			GrowthStrategy:       1.10,
			RiskManagement:       1.10,
			SolutionProduct:      1.05,
			Team:                 0.95,
		},
		// Platform/marketplace: liquidity, take rate, network effects.
		"platform_marketplace": {
			GrowthStrategy:       1.25,
			BusinessModel:        1.15,
			CompetitiveAdvantage: 1.15,
			SolutionProduct:      0.95,
			FinancialPlan:        0.90,
		},
		// B2B SaaS: sales channels, unit economics, recurring billing.
		"b2b_saas": {
			GrowthStrategy:  1.15,
			FinancialPlan:   1.15,
			BusinessModel:   1.10,
			SolutionProduct: 1.05,
			RiskManagement:  0.95,
		},
		// D2C/commerce: margins, inventory/logistics, CAC/LTV.
		"d2c_commerce": {
			FinancialPlan:        1.20,
			BusinessModel:        1.15,
			GrowthStrategy:       1.10,
			SolutionProduct:      1.00,
			CompetitiveAdvantage: 1.05,
			RiskManagement:       0.95,
		},
		// Fintech/regulated: regulation and security risk, compliance team.
		"fintech_regulated": {
			RiskManagement:  1.25,
			Team:            1.10,
			BusinessModel:   1.10,
			SolutionProduct: 1.00,
			FinancialPlan:   1.05,
			GrowthStrategy:  0.95,
		},
	}
}

func defaultBusinessModelMultipliers() map[string]Multipliers {
	return map[string]Multipliers{
		// Subscription SaaS: retention/NRR/CAC payback.
		"subscription_saas": {
			FinancialPlan:  1.10,
			GrowthStrategy: 1.10,
			BusinessModel:  1.05,
		},
		// Usage-based: billing structure, variable cost.
		"usage_based": {
			BusinessModel:  1.10,
			FinancialPlan:  1.10,
			GrowthStrategy: 1.05,
		},
		// Transaction marketplace: liquidity growth, fraud/trust risk.
		"transaction_marketplace": {
			GrowthStrategy: 1.15,
			BusinessModel:  1.10,
			RiskManagement: 1.10,
		},
		// Enterprise sales: sales execution.
		"enterprise_sales": {
			GrowthStrategy: 1.10,
			Team:           1.05,
			FinancialPlan:  1.05,
		},
	}
}

func defaultGates() []GateRule {
	return []GateRule{
		{
			Name: "regulated_risk_floor",
			When: GateWhen{
				IndustryIn: []string{"fintech_regulated", "bio_healthcare"},
				StageMin:   stagePtr(StagePreA),
			},
			Condition: GateCondition{Criterion: RiskManagement, LessThan: floatPtr(2.5)},
			Action:    GateAction{Kind: ActionCapOverall, Value: 65},
			Note:      "A weak risk score in a regulated or clinical business undermines the investment thesis itself.",
		},
		{
			Name: "saas_finance_bar_series_b_plus",
			When: GateWhen{
				IndustryIn: []string{"b2b_saas"},
				StageMin:   stagePtr(StageSeriesB),
			},
			Condition: GateCondition{Criterion: FinancialPlan, LessThan: floatPtr(3.0)},
			Action:    GateAction{Kind: ActionPenalty, Value: 8},
			Note:      "From Series B onward the bar for NRR, CAC payback and efficiency metrics rises sharply.",
		},
		{
			Name: "marketplace_liquidity_bar",
			When: GateWhen{
				IndustryIn: []string{"platform_marketplace"},
				StageMin:   stagePtr(StageSeriesA),
			},
			Condition: GateCondition{Criterion: GrowthStrategy, LessThan: floatPtr(3.0)},
			Action:    GateAction{Kind: ActionPenalty, Value: 6},
			Note:      "Marketplaces live or die on a growth strategy that builds liquidity and network effects.",
		},
	}
}

func stagePtr(s Stage) *Stage     { return &s }
func floatPtr(f float64) *float64 { return &f }
