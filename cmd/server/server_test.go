package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venturelens/ir-deck-meter/internal/cache"
	"github.com/venturelens/ir-deck-meter/internal/database"
	"github.com/venturelens/ir-deck-meter/internal/deckai"
	"github.com/venturelens/ir-deck-meter/internal/monitoring"
	"github.com/venturelens/ir-deck-meter/internal/ratelimit"
	"github.com/venturelens/ir-deck-meter/internal/scoring"
	"github.com/venturelens/ir-deck-meter/internal/security"
)

type fakeScorer struct {
	scores map[scoring.Criterion]deckai.CriterionScore
	bm     string
	err    error
}

func (f *fakeScorer) ScoreDeck(ctx context.Context, req deckai.DeckRequest) (*deckai.DeckScores, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &deckai.DeckScores{
		Scores:        f.scores,
		BusinessModel: f.bm,
		ModelName:     "fake-model",
	}, nil
}

func newTestRouter(t *testing.T, scorer deckai.ScoreSource) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine, err := scoring.NewEngine(nil)
	require.NoError(t, err)

	db, err := database.NewDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	redisClient, _ := ratelimit.NewRedisClient("", "", 0)
	metrics := monitoring.NewMetrics()

	secCfg := security.DefaultSecurityConfig()
	secCfg.AdminJWTSecret = "test-secret"

	return newRouter(serverDeps{
		engine:   engine,
		history:  database.NewHistoryService(database.NewRepository(db)),
		scorer:   scorer,
		limiter:  ratelimit.NewRateLimiter(redisClient, ratelimit.DefaultConfig(), metrics),
		cache:    cache.NewCache(time.Minute),
		security: security.NewSecurityMiddleware(secCfg),
		metrics:  metrics,
		logger:   monitoring.NewLogger(),
	})
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func evaluateBody(stage string) map[string]interface{} {
	return map[string]interface{}{
		"stage": stage,
		"scores": map[string]float64{
			"problem_definition":    4,
			"solution_product":      4,
			"market":                3.5,
			"business_model":        3,
			"competitive_advantage": 3,
			"growth_strategy":       3.5,
			"team":                  4.5,
			"financial_plan":        3,
			"risk_management":       3,
		},
	}
}

func TestEvaluateEndpoint(t *testing.T) {
	r := newTestRouter(t, nil)

	w := doJSON(t, r, http.MethodPost, "/evaluate", evaluateBody("seed"))
	require.Equal(t, http.StatusOK, w.Code)

	var res map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "seed", res["stage"])
	assert.Contains(t, res, "overall_100_after_gates")
	assert.Contains(t, res, "gates_applied")
}

func TestEvaluateUnknownStage(t *testing.T) {
	r := newTestRouter(t, nil)

	w := doJSON(t, r, http.MethodPost, "/evaluate", evaluateBody("series_z"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// The lenient flag falls back to seed instead of failing.
	body := evaluateBody("series_z")
	body["default_stage_to_seed"] = true
	w = doJSON(t, r, http.MethodPost, "/evaluate", body)
	require.Equal(t, http.StatusOK, w.Code)

	var res map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "seed", res["stage"])
}

func TestEvaluateKoreanStageAlias(t *testing.T) {
	r := newTestRouter(t, nil)

	w := doJSON(t, r, http.MethodPost, "/evaluate", evaluateBody("시리즈B"))
	require.Equal(t, http.StatusOK, w.Code)

	var res map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "series_b", res["stage"])
}

func TestEvaluateMissingScores(t *testing.T) {
	r := newTestRouter(t, nil)
	w := doJSON(t, r, http.MethodPost, "/evaluate", map[string]interface{}{"stage": "seed"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWeightsEndpoint(t *testing.T) {
	r := newTestRouter(t, nil)

	w := doJSON(t, r, http.MethodPost, "/weights", map[string]interface{}{
		"stage":    "series_b",
		"industry": "b2b_saas",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var res struct {
		Stage   string             `json:"stage"`
		Weights map[string]float64 `json:"weights"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "series_b", res.Stage)
	require.Len(t, res.Weights, 9)

	sum := 0.0
	for _, v := range res.Weights {
		sum += v
	}
	assert.InDelta(t, 100.0, sum, 0.05)
}

func TestStagesAndCriteriaEndpoints(t *testing.T) {
	r := newTestRouter(t, nil)

	w := doJSON(t, r, http.MethodGet, "/stages", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pre_ipo")

	w = doJSON(t, r, http.MethodGet, "/criteria", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "risk_management")
}

func TestScoreDeckUnconfigured(t *testing.T) {
	r := newTestRouter(t, nil)
	w := doJSON(t, r, http.MethodPost, "/score-deck", map[string]interface{}{"deck_text": "We build robots."})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestScoreDeckWithFakeScorer(t *testing.T) {
	scores := make(map[scoring.Criterion]deckai.CriterionScore)
	for _, c := range scoring.Criteria {
		scores[c] = deckai.CriterionScore{Raw: 4, Final: 4, EvidenceLevel: "L3"}
	}
	r := newTestRouter(t, &fakeScorer{scores: scores, bm: "subscription"})

	w := doJSON(t, r, http.MethodPost, "/score-deck", map[string]interface{}{
		"deck_text": "We build warehouse robots with signed contracts.",
		"deck_name": "acme-robots",
		"stage":     "series_a",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var res struct {
		Evaluation struct {
			Stage    string  `json:"stage"`
			Gated100 float64 `json:"overall_100_after_gates"`
		} `json:"evaluation"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "series_a", res.Evaluation.Stage)
	assert.Greater(t, res.Evaluation.Gated100, 0.0)

	// The scored deck lands in history under its deck name.
	w = doJSON(t, r, http.MethodGet, "/history/acme-robots", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "fake-model")
}

func TestHistoryRoundTrip(t *testing.T) {
	r := newTestRouter(t, nil)

	body := evaluateBody("series_b")
	body["deck_name"] = "acme-2026"
	body["company_name"] = "Acme"
	w := doJSON(t, r, http.MethodPost, "/evaluate", body)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "acme-2026")

	w = doJSON(t, r, http.MethodGet, "/history/acme-2026", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Acme")

	w = doJSON(t, r, http.MethodGet, "/history/acme-2026/report", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "Acme")

	w = doJSON(t, r, http.MethodGet, "/history/acme-2026/report?format=md", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "## Score Breakdown")

	w = doJSON(t, r, http.MethodDelete, "/history/acme-2026", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/history/acme-2026", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEvaluateNamedDeckRefreshesHistory(t *testing.T) {
	r := newTestRouter(t, nil)

	body := evaluateBody("seed")
	body["deck_name"] = "repeat-deck"

	require.Equal(t, http.StatusOK, doJSON(t, r, http.MethodPost, "/evaluate", body).Code)

	var first struct {
		UpdatedAt time.Time `json:"updated_at"`
	}
	w := doJSON(t, r, http.MethodGet, "/history/repeat-deck", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))

	time.Sleep(10 * time.Millisecond)

	// An identical named-deck body must reach the handler again rather
	// than a cached response, so the stored evaluation stays current.
	require.Equal(t, http.StatusOK, doJSON(t, r, http.MethodPost, "/evaluate", body).Code)

	var second struct {
		UpdatedAt time.Time `json:"updated_at"`
	}
	w = doJSON(t, r, http.MethodGet, "/history/repeat-deck", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))

	assert.True(t, second.UpdatedAt.After(first.UpdatedAt),
		"repeated evaluation must refresh updated_at")
}

func TestHistoryGetMissing(t *testing.T) {
	r := newTestRouter(t, nil)
	w := doJSON(t, r, http.MethodGet, "/history/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminReload(t *testing.T) {
	r := newTestRouter(t, nil)

	w := doJSON(t, r, http.MethodPost, "/admin/config/reload", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	sm := security.NewSecurityMiddleware(security.SecurityConfig{AdminJWTSecret: "test-secret"})
	token, err := sm.GenerateAdminToken("ops", time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/admin/config/reload", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "reloaded")
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	r := newTestRouter(t, nil)

	w := doJSON(t, r, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	_ = doJSON(t, r, http.MethodPost, "/evaluate", evaluateBody("seed"))

	w = doJSON(t, r, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "evaluations")

	w = doJSON(t, r, http.MethodGet, "/cache/stats", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/ratelimit/status", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSplitCSV(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitCSV("a, b"))
	assert.Equal(t, []string{"http://x"}, splitCSV("http://x,"))
	assert.Nil(t, splitCSV(""))
}

func TestLoadEngineConfigDefaults(t *testing.T) {
	cfg, err := loadEngineConfig("")
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
}
