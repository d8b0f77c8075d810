package database

import (
	"time"

	"github.com/google/uuid"
)

// Evaluation is one persisted deck evaluation. The scores, weights and
// gate trail are stored as JSON text so the row reproduces the full API
// response without re-running the engine against possibly changed rules.
type Evaluation struct {
	ID            string `json:"id" db:"id"`
	DeckName      string `json:"deck_name" db:"deck_name"`
	CompanyName   string `json:"company_name,omitempty" db:"company_name"`
	Stage         string `json:"stage" db:"stage"`
	Industry      string `json:"industry,omitempty" db:"industry"`
	BusinessModel string `json:"business_model,omitempty" db:"business_model"`

	ScoresJSON  string `json:"-" db:"scores"`
	WeightsJSON string `json:"-" db:"weights"`
	GatesJSON   string `json:"-" db:"gates"`

	Raw100    float64 `json:"overall_100_raw" db:"overall_100_raw"`
	Gated100  float64 `json:"overall_100_after_gates" db:"overall_100_after_gates"`
	Raw1To5   float64 `json:"overall_1_to_5_raw" db:"overall_1_to_5_raw"`
	Gated1To5 float64 `json:"overall_1_to_5_after_gates" db:"overall_1_to_5_after_gates"`

	// ModelName records which model produced the scores when the AI
	// scorer was used; empty for manually supplied scores.
	ModelName string `json:"model_name,omitempty" db:"model_name"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NewEvaluation creates an evaluation row with a generated ID
func NewEvaluation(deckName string) *Evaluation {
	now := time.Now()
	return &Evaluation{
		ID:        uuid.New().String(),
		DeckName:  deckName,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
