package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/venturelens/ir-deck-meter/internal/scoring"
)

// File mirrors the on-disk YAML layout of the rule tables. Every section
// is optional: a present section replaces the corresponding built-in
// table wholesale, an absent one keeps the defaults. Partial merging
// inside a section is deliberately not supported, so a config file always
// reads as the complete table it configures.
type File struct {
	StageWeights             map[string]map[string]float64 `yaml:"stage_weights"`
	IndustryMultipliers      map[string]map[string]float64 `yaml:"industry_multipliers"`
	BusinessModelMultipliers map[string]map[string]float64 `yaml:"business_model_multipliers"`
	Gates                    []GateFile                    `yaml:"gates"`
}

// GateFile is the YAML form of one gate rule.
type GateFile struct {
	Name string `yaml:"name"`
	When struct {
		StageMin        string   `yaml:"stage_min"`
		IndustryIn      []string `yaml:"industry_in"`
		BusinessModelIn []string `yaml:"business_model_in"`
	} `yaml:"when"`
	Condition struct {
		Criterion string   `yaml:"criterion"`
		LessThan  *float64 `yaml:"lt"`
		AtLeast   *float64 `yaml:"gte"`
	} `yaml:"condition"`
	Action struct {
		CapOverall *float64 `yaml:"cap_overall"`
		Penalty    *float64 `yaml:"penalty"`
	} `yaml:"action"`
	Note string `yaml:"note"`
}

// Load reads a YAML rule file and merges it over the built-in defaults.
// An empty path returns the defaults unchanged. The merged config is
// validated before it is returned, so a bad file can never reach the
// engine.
func Load(path string) (*scoring.Config, error) {
	cfg := scoring.DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rule file %s: %w", path, err)
	}

	if err := f.mergeInto(cfg); err != nil {
		return nil, fmt.Errorf("rule file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("rule file %s: %w", path, err)
	}
	return cfg, nil
}

func (f *File) mergeInto(cfg *scoring.Config) error {
	if f.StageWeights != nil {
		table := make(map[scoring.Stage]scoring.Weights, len(f.StageWeights))
		for stage, row := range f.StageWeights {
			st, err := scoring.CanonicalStage(stage)
			if err != nil {
				return fmt.Errorf("stage_weights: %w", err)
			}
			table[st] = toCriterionMap(row)
		}
		cfg.StageWeights = table
	}
	if f.IndustryMultipliers != nil {
		cfg.IndustryMultipliers = toMultiplierTable(f.IndustryMultipliers)
	}
	if f.BusinessModelMultipliers != nil {
		cfg.BusinessModelMultipliers = toMultiplierTable(f.BusinessModelMultipliers)
	}
	if f.Gates != nil {
		gates := make([]scoring.GateRule, 0, len(f.Gates))
		for i, g := range f.Gates {
			rule, err := g.toRule()
			if err != nil {
				return fmt.Errorf("gates[%d]: %w", i, err)
			}
			gates = append(gates, rule)
		}
		cfg.Gates = gates
	}
	return nil
}

func (g GateFile) toRule() (scoring.GateRule, error) {
	rule := scoring.GateRule{
		Name: g.Name,
		Note: g.Note,
		Condition: scoring.GateCondition{
			Criterion: scoring.Criterion(g.Condition.Criterion),
			LessThan:  g.Condition.LessThan,
			AtLeast:   g.Condition.AtLeast,
		},
	}

	rule.When.IndustryIn = g.When.IndustryIn
	rule.When.BusinessModelIn = g.When.BusinessModelIn
	if g.When.StageMin != "" {
		st, err := scoring.CanonicalStage(g.When.StageMin)
		if err != nil {
			return rule, fmt.Errorf("when.stage_min: %w", err)
		}
		rule.When.StageMin = &st
	}

	switch {
	case g.Action.CapOverall != nil && g.Action.Penalty != nil:
		return rule, fmt.Errorf("gate %q has both cap_overall and penalty", g.Name)
	case g.Action.CapOverall != nil:
		rule.Action = scoring.GateAction{Kind: scoring.ActionCapOverall, Value: *g.Action.CapOverall}
	case g.Action.Penalty != nil:
		rule.Action = scoring.GateAction{Kind: scoring.ActionPenalty, Value: *g.Action.Penalty}
	default:
		return rule, fmt.Errorf("gate %q has no action", g.Name)
	}

	return rule, nil
}

func toCriterionMap(row map[string]float64) map[scoring.Criterion]float64 {
	out := make(map[scoring.Criterion]float64, len(row))
	for k, v := range row {
		out[scoring.Criterion(k)] = v
	}
	return out
}

func toMultiplierTable(in map[string]map[string]float64) map[string]scoring.Multipliers {
	out := make(map[string]scoring.Multipliers, len(in))
	for key, row := range in {
		out[key] = toCriterionMap(row)
	}
	return out
}
