package report

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/venturelens/ir-deck-meter/internal/scoring"
)

// Input bundles everything a report needs.
type Input struct {
	DeckName    string
	CompanyName string
	Scores      map[scoring.Criterion]float64
	Result      *scoring.EvaluationResult
	GeneratedAt time.Time
}

var criterionLabels = map[scoring.Criterion]string{
	scoring.ProblemDefinition:    "Problem Definition",
	scoring.SolutionProduct:      "Solution & Product",
	scoring.Market:               "Market",
	scoring.BusinessModel:        "Business Model",
	scoring.CompetitiveAdvantage: "Competitive Advantage",
	scoring.GrowthStrategy:       "Growth Strategy",
	scoring.Team:                 "Team",
	scoring.FinancialPlan:        "Financial Plan",
	scoring.RiskManagement:       "Risk Management",
}

// BuildMarkdown renders the evaluation as a GFM document: header,
// score breakdown table, gate trail, and totals.
func BuildMarkdown(in Input) string {
	var b strings.Builder
	res := in.Result

	title := in.CompanyName
	if title == "" {
		title = in.DeckName
	}
	if title == "" {
		title = "IR Deck Evaluation"
	}

	fmt.Fprintf(&b, "# %s — %.0f/100\n\n", title, res.Gated100)

	if in.DeckName != "" {
		fmt.Fprintf(&b, "- Deck: %s\n", in.DeckName)
	}
	fmt.Fprintf(&b, "- Stage: %s\n", res.Stage)
	if res.Industry != "" {
		fmt.Fprintf(&b, "- Industry: %s\n", res.Industry)
	}
	if res.BusinessModel != "" {
		fmt.Fprintf(&b, "- Business model: %s\n", res.BusinessModel)
	}
	if !in.GeneratedAt.IsZero() {
		fmt.Fprintf(&b, "- Generated: %s\n", in.GeneratedAt.Format(time.RFC3339))
	}
	b.WriteString("\n")

	b.WriteString("## Score Breakdown\n\n")
	b.WriteString("| Criterion | Score (1-5) | Weight |\n")
	b.WriteString("|---|---:|---:|\n")
	for _, c := range sortedByWeight(res.Weights) {
		fmt.Fprintf(&b, "| %s | %.2f | %.2f |\n", criterionLabels[c], in.Scores[c], res.Weights[c])
	}
	b.WriteString("\n")

	b.WriteString("## Gate Review\n\n")
	if len(res.Gates) == 0 {
		b.WriteString("No gates applied.\n\n")
	} else {
		b.WriteString("| Gate | Criterion | Score | Action | Before | After |\n")
		b.WriteString("|---|---|---:|---|---:|---:|\n")
		for _, g := range res.Gates {
			fmt.Fprintf(&b, "| %s | %s | %.2f | %s %.0f | %.2f | %.2f |\n",
				g.Gate, criterionLabels[g.Criterion], g.CriterionScore,
				actionLabel(g.Action.Kind), g.Action.Value, g.Before100, g.After100)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Totals\n\n")
	fmt.Fprintf(&b, "- Weighted score: **%.2f / 5** (%.2f / 100)\n", res.Raw1To5, res.Raw100)
	fmt.Fprintf(&b, "- After gates: **%.2f / 5** (%.2f / 100)\n", res.Gated1To5, res.Gated100)

	return b.String()
}

// RenderHTML converts the markdown report into a standalone HTML page.
// styleNonce, when set, is attached to the inline style block so the
// page renders under a nonce-based CSP.
func RenderHTML(in Input, styleNonce string) (string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))

	var body bytes.Buffer
	if err := md.Convert([]byte(BuildMarkdown(in)), &body); err != nil {
		return "", fmt.Errorf("markdown convert: %w", err)
	}

	styleAttr := ""
	if styleNonce != "" {
		styleAttr = fmt.Sprintf(" nonce=%q", styleNonce)
	}

	return "<!doctype html><html><head><meta charset='utf-8'><title>IR Deck Evaluation</title>" +
		"<style" + styleAttr + ">body{font-family:sans-serif;max-width:860px;margin:2rem auto;padding:0 1rem;color:#1f2937}" +
		"table{border-collapse:collapse;width:100%}" +
		"th,td{border:1px solid #d1d5db;padding:0.4rem 0.6rem;text-align:left}" +
		"th{background:#f3f4f6}</style></head><body>" +
		body.String() + "</body></html>", nil
}

func actionLabel(kind scoring.ActionKind) string {
	switch kind {
	case scoring.ActionCapOverall:
		return "cap at"
	case scoring.ActionPenalty:
		return "penalty"
	}
	return string(kind)
}

// sortedByWeight lists criteria heaviest first, ties broken by the
// canonical criterion order.
func sortedByWeight(w scoring.Weights) []scoring.Criterion {
	out := make([]scoring.Criterion, len(scoring.Criteria))
	copy(out, scoring.Criteria)
	rank := make(map[scoring.Criterion]int, len(out))
	for i, c := range out {
		rank[c] = i
	}
	sort.SliceStable(out, func(i, j int) bool {
		if w[out[i]] != w[out[j]] {
			return w[out[i]] > w[out[j]]
		}
		return rank[out[i]] < rank[out[j]]
	})
	return out
}
