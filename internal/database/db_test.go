package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venturelens/ir-deck-meter/internal/scoring"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleResult() *scoring.EvaluationResult {
	return &scoring.EvaluationResult{
		Stage:         scoring.StageSeriesB,
		Industry:      "b2b_saas",
		BusinessModel: "subscription_saas",
		Weights:       scoring.Weights{scoring.Team: 50, scoring.Market: 50},
		Raw1To5:       3.8,
		Gated1To5:     3.4,
		Raw100:        76,
		Gated100:      68,
		Gates: []scoring.GateRecord{{
			Gate:           "saas_finance_bar_series_b_plus",
			Criterion:      scoring.FinancialPlan,
			CriterionScore: 2.5,
			Before100:      76,
			After100:       68,
			Action:         scoring.GateAction{Kind: scoring.ActionPenalty, Value: 8},
		}},
	}
}

func TestHistoryRecordAndGet(t *testing.T) {
	svc := NewHistoryService(NewRepository(newTestDB(t)))

	scores := map[scoring.Criterion]float64{scoring.Team: 4, scoring.FinancialPlan: 2.5}
	rec, err := svc.Record("acme-2026-q1", "Acme Robotics", "", scores, sampleResult())
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)

	entry, err := svc.Get("acme-2026-q1")
	require.NoError(t, err)
	assert.Equal(t, "Acme Robotics", entry.CompanyName)
	assert.Equal(t, "series_b", entry.Stage)
	assert.Equal(t, 68.0, entry.Gated100)
	assert.Equal(t, 4.0, entry.Scores[scoring.Team])
	require.Len(t, entry.Gates, 1)
	assert.Equal(t, "saas_finance_bar_series_b_plus", entry.Gates[0].Gate)
}

func TestHistoryUpsertKeepsCreatedAt(t *testing.T) {
	svc := NewHistoryService(NewRepository(newTestDB(t)))
	scores := map[scoring.Criterion]float64{scoring.Team: 3}

	first, err := svc.Record("acme", "", "", scores, sampleResult())
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	res := sampleResult()
	res.Gated100 = 70
	second, err := svc.Record("acme", "Acme", "gemini-2.0-flash", scores, res)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt.Unix(), second.CreatedAt.Unix())
	assert.True(t, second.UpdatedAt.After(first.CreatedAt))

	entry, err := svc.Get("acme")
	require.NoError(t, err)
	assert.Equal(t, 70.0, entry.Gated100)
	assert.Equal(t, "gemini-2.0-flash", entry.ModelName)
}

func TestHistoryRecordRequiresDeckName(t *testing.T) {
	svc := NewHistoryService(NewRepository(newTestDB(t)))
	_, err := svc.Record("", "", "", nil, sampleResult())
	assert.Error(t, err)
}

func TestHistoryListOrdersByUpdate(t *testing.T) {
	svc := NewHistoryService(NewRepository(newTestDB(t)))
	scores := map[scoring.Criterion]float64{scoring.Team: 3}

	for _, name := range []string{"alpha", "beta", "gamma"} {
		_, err := svc.Record(name, "", "", scores, sampleResult())
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}

	entries, err := svc.List(2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "gamma", entries[0].DeckName)
	assert.Equal(t, "beta", entries[1].DeckName)
}

func TestHistoryGetMissing(t *testing.T) {
	svc := NewHistoryService(NewRepository(newTestDB(t)))
	_, err := svc.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHistoryDelete(t *testing.T) {
	svc := NewHistoryService(NewRepository(newTestDB(t)))
	scores := map[scoring.Criterion]float64{scoring.Team: 3}

	_, err := svc.Record("doomed", "", "", scores, sampleResult())
	require.NoError(t, err)

	require.NoError(t, svc.Delete("doomed"))
	assert.ErrorIs(t, svc.Delete("doomed"), ErrNotFound)
}
