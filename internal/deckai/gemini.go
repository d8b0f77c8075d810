package deckai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/venturelens/ir-deck-meter/internal/monitoring"
	"github.com/venturelens/ir-deck-meter/internal/resilience"
	"github.com/venturelens/ir-deck-meter/internal/scoring"
)

const DefaultModel = "gemini-2.0-flash"

// GeminiScorer scores decks with the Gemini API behind a retry policy
// and a circuit breaker.
type GeminiScorer struct {
	client  *genai.Client
	model   string
	breaker *resilience.CircuitBreaker
	logger  *monitoring.Logger
	metrics *monitoring.Metrics
}

// NewGeminiScorer creates a scorer bound to the given API key and model.
func NewGeminiScorer(ctx context.Context, apiKey, model string, logger *monitoring.Logger, metrics *monitoring.Metrics) (*GeminiScorer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	breaker := resilience.GetCircuitBreaker("gemini", resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  60 * time.Second,
		SuccessThreshold: 2,
		OnStateChange: func(from, to resilience.CircuitBreakerState) {
			if metrics == nil {
				return
			}
			switch to {
			case resilience.StateOpen:
				metrics.IncrementCircuitBreakerOpen()
			case resilience.StateClosed:
				metrics.IncrementCircuitBreakerClose()
			}
		},
	})

	return &GeminiScorer{
		client:  client,
		model:   model,
		breaker: breaker,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// ScoreDeck sends the deck text to the model and post-processes the
// response into capped criterion scores.
func (g *GeminiScorer) ScoreDeck(ctx context.Context, req DeckRequest) (*DeckScores, error) {
	prompt := buildPrompt(req)
	start := time.Now()

	var text string
	err := resilience.RetryWithPolicy(ctx, resilience.SlowRetryPolicy, func() error {
		return g.breaker.Call(func() error {
			if g.metrics != nil {
				g.metrics.IncrementGeminiCalls()
				g.metrics.RecordExternalAPIRequest("gemini", false)
			}

			resp, err := g.client.Models.GenerateContent(ctx, g.model, []*genai.Content{
				{
					Role:  genai.RoleUser,
					Parts: []*genai.Part{genai.NewPartFromText(prompt)},
				},
			}, &genai.GenerateContentConfig{
				Temperature: genai.Ptr(float32(0.2)),
			})
			if err != nil {
				return fmt.Errorf("Gemini request failed: %w", err)
			}

			text = resp.Text()
			if strings.TrimSpace(text) == "" {
				return fmt.Errorf("Gemini returned an empty response")
			}

			if g.metrics != nil {
				g.metrics.RecordExternalAPIRequest("gemini", true)
			}
			return nil
		})
	})

	if g.logger != nil {
		g.logger.ExternalAPILogger("gemini", "score_deck", time.Since(start), err == nil)
	}
	if err != nil {
		return nil, err
	}

	var payload llmPayload
	if err := ExtractJSONObject(text, &payload); err != nil {
		return nil, fmt.Errorf("unusable model response: %w", err)
	}

	return postprocess(&payload, g.model), nil
}

// buildPrompt assembles the fixed scoring instruction. The schema keys
// match llmPayload; scoring rules mirror the post-processing caps.
func buildPrompt(req DeckRequest) string {
	var b strings.Builder

	b.WriteString("[ROLE]\n")
	b.WriteString("You are a conservative venture analyst. Using ONLY the IR deck text below, ")
	b.WriteString("classify the archetype and revenue mechanism and score the nine criteria. ")
	b.WriteString("Do not infer facts absent from the deck; mark them as missing instead. ")
	b.WriteString("Never award 0: raw_score stays within 1 to 5. Evidence caps are applied downstream, ")
	b.WriteString("so report raw_score and evidence_level accurately.\n\n")

	b.WriteString("[INPUT]\n")
	fmt.Fprintf(&b, "- company_name: %s\n", req.CompanyName)
	fmt.Fprintf(&b, "- stage: %s\n\n", req.Stage)

	b.WriteString("[CRITERIA]\n")
	for _, c := range scoring.Criteria {
		fmt.Fprintf(&b, "- %s\n", c)
	}

	b.WriteString("\n[EVIDENCE LEVELS]\n")
	b.WriteString("- L0: claims only\n")
	b.WriteString("- L1: internal evidence (summaries, scope)\n")
	b.WriteString("- L2: external evidence (LOI, PoC, certifications, patents)\n")
	b.WriteString("- L3: independent verification (commercial contracts, audited figures, approvals)\n\n")

	b.WriteString("Respond with JSON ONLY, no text before or after. Schema (fixed keys):\n")
	b.WriteString("{\n")
	b.WriteString(` "archetype": {"primary": "...", "confidence": 0.0},` + "\n")
	b.WriteString(` "bm_revenue_mechanism": {"primary": "...", "confidence": 0.0},` + "\n")
	b.WriteString(` "scores": {"problem_definition": {"evidence_level": "L0", "raw_score": 3.0, "confidence": 0.5}, ...all nine criteria}` + "\n")
	b.WriteString("}\n")
	b.WriteString(`Use "unknown_not_disclosed" when the revenue mechanism is not stated.` + "\n\n")

	b.WriteString("[IR_TEXT]\n")
	b.WriteString(req.DeckText)

	return b.String()
}
