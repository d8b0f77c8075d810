package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venturelens/ir-deck-meter/internal/scoring"
)

func sampleInput() Input {
	return Input{
		DeckName:    "acme-2026-q1",
		CompanyName: "Acme Robotics",
		Scores: map[scoring.Criterion]float64{
			scoring.Team:          4.0,
			scoring.Market:        3.5,
			scoring.FinancialPlan: 2.5,
		},
		Result: &scoring.EvaluationResult{
			Stage:         scoring.StageSeriesB,
			Industry:      "b2b_saas",
			BusinessModel: "subscription_saas",
			Weights: scoring.Weights{
				scoring.Team:          40,
				scoring.Market:        35,
				scoring.FinancialPlan: 25,
			},
			Raw1To5:   3.45,
			Gated1To5: 3.05,
			Raw100:    69,
			Gated100:  61,
			Gates: []scoring.GateRecord{{
				Gate:           "saas_finance_bar_series_b_plus",
				Criterion:      scoring.FinancialPlan,
				CriterionScore: 2.5,
				Before100:      69,
				After100:       61,
				Action:         scoring.GateAction{Kind: scoring.ActionPenalty, Value: 8},
			}},
		},
		GeneratedAt: time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC),
	}
}

func TestBuildMarkdown(t *testing.T) {
	md := BuildMarkdown(sampleInput())

	assert.Contains(t, md, "# Acme Robotics — 61/100")
	assert.Contains(t, md, "- Stage: series_b")
	assert.Contains(t, md, "| Team | 4.00 | 40.00 |")
	assert.Contains(t, md, "saas_finance_bar_series_b_plus")
	assert.Contains(t, md, "penalty 8")
	assert.Contains(t, md, "**3.05 / 5** (61.00 / 100)")

	// Heaviest criterion appears first in the breakdown.
	teamIdx := strings.Index(md, "| Team |")
	marketIdx := strings.Index(md, "| Market |")
	require.Greater(t, teamIdx, 0)
	assert.Less(t, teamIdx, marketIdx)
}

func TestBuildMarkdownNoGates(t *testing.T) {
	in := sampleInput()
	in.Result.Gates = nil
	md := BuildMarkdown(in)
	assert.Contains(t, md, "No gates applied.")
}

func TestBuildMarkdownFallsBackToDeckName(t *testing.T) {
	in := sampleInput()
	in.CompanyName = ""
	assert.Contains(t, BuildMarkdown(in), "# acme-2026-q1 — 61/100")
}

func TestRenderHTML(t *testing.T) {
	html, err := RenderHTML(sampleInput(), "")
	require.NoError(t, err)

	assert.Contains(t, html, "<!doctype html>")
	assert.Contains(t, html, "<table>")
	assert.Contains(t, html, "Acme Robotics")
	assert.NotContains(t, html, "|---")
	assert.NotContains(t, html, "nonce=")
}

func TestRenderHTMLWithNonce(t *testing.T) {
	html, err := RenderHTML(sampleInput(), "abc123")
	require.NoError(t, err)
	assert.Contains(t, html, `<style nonce="abc123">`)
}
