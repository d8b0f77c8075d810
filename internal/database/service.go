package database

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/venturelens/ir-deck-meter/internal/scoring"
)

// HistoryService persists and replays evaluation results
type HistoryService struct {
	repo *Repository
}

// NewHistoryService creates a new history service
func NewHistoryService(repo *Repository) *HistoryService {
	return &HistoryService{repo: repo}
}

// Record stores an evaluation result under the deck name. An existing row
// for the same deck is overwritten; CreatedAt is preserved from the
// earlier row so the first-seen time survives re-evaluations.
func (s *HistoryService) Record(deckName, companyName, modelName string, scores map[scoring.Criterion]float64, res *scoring.EvaluationResult) (*Evaluation, error) {
	if deckName == "" {
		return nil, fmt.Errorf("deck name is required to record history")
	}

	scoresJSON, err := json.Marshal(scores)
	if err != nil {
		return nil, fmt.Errorf("failed to encode scores: %w", err)
	}
	weightsJSON, err := json.Marshal(res.Weights)
	if err != nil {
		return nil, fmt.Errorf("failed to encode weights: %w", err)
	}
	gatesJSON, err := json.Marshal(res.Gates)
	if err != nil {
		return nil, fmt.Errorf("failed to encode gate trail: %w", err)
	}

	e := NewEvaluation(deckName)
	if existing, err := s.repo.GetByDeckName(deckName); err == nil {
		e.ID = existing.ID
		e.CreatedAt = existing.CreatedAt
	}

	e.CompanyName = companyName
	e.Stage = string(res.Stage)
	e.Industry = res.Industry
	e.BusinessModel = res.BusinessModel
	e.ScoresJSON = string(scoresJSON)
	e.WeightsJSON = string(weightsJSON)
	e.GatesJSON = string(gatesJSON)
	e.Raw100 = res.Raw100
	e.Gated100 = res.Gated100
	e.Raw1To5 = res.Raw1To5
	e.Gated1To5 = res.Gated1To5
	e.ModelName = modelName
	e.UpdatedAt = time.Now()

	if err := s.repo.UpsertEvaluation(e); err != nil {
		return nil, err
	}

	return e, nil
}

// HistoryEntry is the API-facing form of a stored evaluation with the
// JSON columns decoded back into structures.
type HistoryEntry struct {
	*Evaluation
	Scores  map[scoring.Criterion]float64 `json:"scores"`
	Weights scoring.Weights               `json:"weights"`
	Gates   []scoring.GateRecord          `json:"gates_applied"`
}

// Result rebuilds the evaluation result the entry was recorded from.
func (h *HistoryEntry) Result() *scoring.EvaluationResult {
	return &scoring.EvaluationResult{
		Stage:         scoring.Stage(h.Stage),
		Industry:      h.Industry,
		BusinessModel: h.BusinessModel,
		Weights:       h.Weights,
		Raw1To5:       h.Raw1To5,
		Gated1To5:     h.Gated1To5,
		Raw100:        h.Raw100,
		Gated100:      h.Gated100,
		Gates:         h.Gates,
	}
}

// Get returns the decoded evaluation for a deck
func (s *HistoryService) Get(deckName string) (*HistoryEntry, error) {
	e, err := s.repo.GetByDeckName(deckName)
	if err != nil {
		return nil, err
	}
	return decodeEntry(e)
}

// List returns the most recently updated evaluations, decoded
func (s *HistoryService) List(limit int) ([]*HistoryEntry, error) {
	evals, err := s.repo.ListRecent(limit)
	if err != nil {
		return nil, err
	}

	entries := make([]*HistoryEntry, 0, len(evals))
	for _, e := range evals {
		entry, err := decodeEntry(e)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Delete removes a deck's stored evaluation
func (s *HistoryService) Delete(deckName string) error {
	return s.repo.DeleteByDeckName(deckName)
}

func decodeEntry(e *Evaluation) (*HistoryEntry, error) {
	entry := &HistoryEntry{Evaluation: e}

	if err := json.Unmarshal([]byte(e.ScoresJSON), &entry.Scores); err != nil {
		return nil, fmt.Errorf("corrupt scores for deck %q: %w", e.DeckName, err)
	}
	if err := json.Unmarshal([]byte(e.WeightsJSON), &entry.Weights); err != nil {
		return nil, fmt.Errorf("corrupt weights for deck %q: %w", e.DeckName, err)
	}
	if err := json.Unmarshal([]byte(e.GatesJSON), &entry.Gates); err != nil {
		return nil, fmt.Errorf("corrupt gate trail for deck %q: %w", e.DeckName, err)
	}

	return entry, nil
}
