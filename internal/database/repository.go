package database

import (
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a deck has no stored evaluation.
var ErrNotFound = errors.New("evaluation not found")

// Repository handles database operations
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// UpsertEvaluation inserts or replaces the evaluation for a deck name
func (r *Repository) UpsertEvaluation(e *Evaluation) error {
	stmt, err := r.db.GetPreparedStatement("upsert_evaluation")
	if err != nil {
		return err
	}

	_, err = stmt.Exec(
		e.ID, e.DeckName, e.CompanyName, e.Stage, e.Industry, e.BusinessModel,
		e.ScoresJSON, e.WeightsJSON, e.GatesJSON,
		e.Raw100, e.Gated100, e.Raw1To5, e.Gated1To5,
		e.ModelName, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert evaluation: %w", err)
	}

	return nil
}

// GetByDeckName returns the stored evaluation for a deck
func (r *Repository) GetByDeckName(deckName string) (*Evaluation, error) {
	stmt, err := r.db.GetPreparedStatement("get_evaluation_by_deck")
	if err != nil {
		return nil, err
	}

	var e Evaluation
	err = stmt.QueryRow(deckName).Scan(
		&e.ID, &e.DeckName, &e.CompanyName, &e.Stage, &e.Industry, &e.BusinessModel,
		&e.ScoresJSON, &e.WeightsJSON, &e.GatesJSON,
		&e.Raw100, &e.Gated100, &e.Raw1To5, &e.Gated1To5,
		&e.ModelName, &e.CreatedAt, &e.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query evaluation: %w", err)
	}

	return &e, nil
}

// ListRecent returns the most recently updated evaluations
func (r *Repository) ListRecent(limit int) ([]*Evaluation, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	stmt, err := r.db.GetPreparedStatement("list_recent_evaluations")
	if err != nil {
		return nil, err
	}

	rows, err := stmt.Query(limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list evaluations: %w", err)
	}
	defer rows.Close()

	var evals []*Evaluation
	for rows.Next() {
		var e Evaluation
		if err := rows.Scan(
			&e.ID, &e.DeckName, &e.CompanyName, &e.Stage, &e.Industry, &e.BusinessModel,
			&e.ScoresJSON, &e.WeightsJSON, &e.GatesJSON,
			&e.Raw100, &e.Gated100, &e.Raw1To5, &e.Gated1To5,
			&e.ModelName, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan evaluation: %w", err)
		}
		evals = append(evals, &e)
	}

	return evals, rows.Err()
}

// DeleteByDeckName removes a deck's stored evaluation
func (r *Repository) DeleteByDeckName(deckName string) error {
	stmt, err := r.db.GetPreparedStatement("delete_evaluation_by_deck")
	if err != nil {
		return err
	}

	res, err := stmt.Exec(deckName)
	if err != nil {
		return fmt.Errorf("failed to delete evaluation: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}
