package main

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/venturelens/ir-deck-meter/internal/cache"
	"github.com/venturelens/ir-deck-meter/internal/database"
	"github.com/venturelens/ir-deck-meter/internal/deckai"
	apperrors "github.com/venturelens/ir-deck-meter/internal/errors"
	"github.com/venturelens/ir-deck-meter/internal/monitoring"
	"github.com/venturelens/ir-deck-meter/internal/ratelimit"
	"github.com/venturelens/ir-deck-meter/internal/report"
	"github.com/venturelens/ir-deck-meter/internal/resilience"
	"github.com/venturelens/ir-deck-meter/internal/scoring"
	"github.com/venturelens/ir-deck-meter/internal/security"
	"github.com/venturelens/ir-deck-meter/internal/types"
)

type serverDeps struct {
	engine    *scoring.Engine
	history   *database.HistoryService
	scorer    deckai.ScoreSource
	limiter   *ratelimit.RateLimiter
	cache     *cache.Cache
	security  *security.SecurityMiddleware
	metrics   *monitoring.Metrics
	logger    *monitoring.Logger
	rulesPath string
}

// newRouter builds the full middleware chain and route table.
func newRouter(d serverDeps) *gin.Engine {
	r := gin.New()

	r.Use(monitoring.MonitoringMiddleware(d.metrics, d.logger))
	r.Use(monitoring.SecurityMonitoringMiddleware(d.logger))
	r.Use(apperrors.ErrorHandler())
	r.Use(apperrors.RecoveryHandler())
	r.Use(security.SecurityHeadersMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     d.security.Config().AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(d.security.RequestTimeout)
	r.Use(d.security.ValidateContentType)
	r.Use(d.limiter.IPRateLimitMiddleware())

	// Response cache for the pure computation endpoints. Cleared on rule
	// reload so stale scores never survive a config change.
	r.Use(d.cache.Middleware(d.metrics))

	r.POST("/evaluate", d.handleEvaluate)
	r.POST("/weights", d.handleWeights)

	// AI deck scoring gets a tighter per-endpoint budget on top of the
	// global IP limit.
	r.POST("/score-deck", d.limiter.EndpointRateLimitMiddleware("score-deck", 5), d.handleScoreDeck)

	r.GET("/stages", func(c *gin.Context) {
		stages := make([]types.StageInfo, len(scoring.StageOrder))
		for i, s := range scoring.StageOrder {
			stages[i] = types.StageInfo{ID: s, Rank: s.Rank()}
		}
		c.JSON(http.StatusOK, gin.H{"stages": stages})
	})

	r.GET("/criteria", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"criteria": scoring.Criteria})
	})

	r.GET("/history", d.handleHistoryList)
	r.GET("/history/:name", d.handleHistoryGet)
	r.GET("/history/:name/report", security.CSPMiddleware(), d.handleHistoryReport)
	r.DELETE("/history/:name", d.handleHistoryDelete)

	r.POST("/admin/config/reload", d.security.AdminAuth(), d.handleConfigReload)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":           "ok",
			"timestamp":        time.Now().Format(time.RFC3339),
			"version":          "1.0.0",
			"deck_scoring":     d.scorer != nil,
			"circuit_breakers": resilience.GetCircuitBreakerStats(),
		})
	})

	r.GET("/metrics", func(c *gin.Context) {
		c.JSON(http.StatusOK, d.metrics.GetStats())
	})

	r.GET("/cache/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, d.cache.Stats())
	})

	r.GET("/ratelimit/status", d.limiter.HandleRateLimitStatus())

	// Swagger documentation routes
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

func (d serverDeps) handleEvaluate(c *gin.Context) {
	var req types.EvaluateRequest
	if err := c.BindJSON(&req); err != nil {
		abortWithError(c, apperrors.ToAppError(err))
		return
	}

	stage := req.Stage
	if req.DefaultStageToSeed {
		if _, err := scoring.CanonicalStage(stage); err != nil {
			stage = string(scoring.StageSeed)
		}
	}

	if req.DeckName != "" {
		if err := d.security.ValidateDeckName(req.DeckName); err != nil {
			abortWithError(c, apperrors.NewValidationError(err.Error()))
			return
		}
	}

	start := time.Now()
	res, err := d.engine.Evaluate(scoring.EvaluationInput{
		Scores:           req.Scores,
		Stage:            stage,
		Industry:         req.Industry,
		BusinessModel:    req.BusinessModel,
		OverrideWeights:  req.OverrideWeights,
		ExtraMultipliers: req.ExtraMultipliers,
		SkipGates:        req.SkipGates,
	})
	if err != nil {
		abortWithError(c, apperrors.ToAppError(err))
		return
	}

	d.recordEvaluation(res, time.Since(start))

	if req.DeckName != "" {
		if _, err := d.history.Record(req.DeckName, req.CompanyName, "", req.Scores, res); err != nil {
			slog.Error("Failed to record evaluation history", "error", err, "deck", req.DeckName)
		}
	}

	c.JSON(http.StatusOK, res)
}

func (d serverDeps) handleWeights(c *gin.Context) {
	var req types.WeightsRequest
	if err := c.BindJSON(&req); err != nil {
		abortWithError(c, apperrors.ToAppError(err))
		return
	}

	stage, weights, err := d.engine.ComputeWeights(req.Stage, req.Industry, req.BusinessModel, req.OverrideWeights, req.ExtraMultipliers)
	if err != nil {
		abortWithError(c, apperrors.ToAppError(err))
		return
	}

	c.JSON(http.StatusOK, types.WeightsResponse{
		Stage:         stage,
		Industry:      req.Industry,
		BusinessModel: req.BusinessModel,
		Weights:       weights,
	})
}

func (d serverDeps) handleScoreDeck(c *gin.Context) {
	if d.scorer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "deck scoring is not configured"})
		return
	}

	var req types.ScoreDeckRequest
	if err := c.BindJSON(&req); err != nil {
		abortWithError(c, apperrors.ToAppError(err))
		return
	}

	if err := d.security.ValidateDeckText(req.DeckText); err != nil {
		abortWithError(c, apperrors.NewValidationError(err.Error()))
		return
	}
	if req.DeckName != "" {
		if err := d.security.ValidateDeckName(req.DeckName); err != nil {
			abortWithError(c, apperrors.NewValidationError(err.Error()))
			return
		}
	}

	// Deck text rarely states the round explicitly, so an unknown stage
	// falls back to seed here instead of failing the upload.
	stage := req.Stage
	if _, err := scoring.CanonicalStage(stage); err != nil {
		stage = string(scoring.StageSeed)
	}

	deckScores, err := d.scorer.ScoreDeck(c.Request.Context(), deckai.DeckRequest{
		CompanyName: d.security.SanitizeText(req.CompanyName),
		Stage:       stage,
		DeckText:    req.DeckText,
	})
	if err != nil {
		abortWithError(c, apperrors.ToAppError(err))
		return
	}

	businessModel := req.BusinessModel
	if businessModel == "" {
		businessModel = deckScores.BusinessModel
	}

	scores := deckScores.Final1To5()
	start := time.Now()
	res, err := d.engine.Evaluate(scoring.EvaluationInput{
		Scores:        scores,
		Stage:         stage,
		Industry:      req.Industry,
		BusinessModel: businessModel,
	})
	if err != nil {
		abortWithError(c, apperrors.ToAppError(err))
		return
	}

	d.recordEvaluation(res, time.Since(start))

	if req.DeckName != "" {
		if _, err := d.history.Record(req.DeckName, req.CompanyName, deckScores.ModelName, scores, res); err != nil {
			slog.Error("Failed to record evaluation history", "error", err, "deck", req.DeckName)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"deck_scores": deckScores,
		"evaluation":  res,
	})
}

func (d serverDeps) handleHistoryList(c *gin.Context) {
	limit := 20
	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			limit = l
		}
	}

	entries, err := d.history.List(limit)
	if err != nil {
		abortWithError(c, apperrors.ToAppError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"evaluations": entries, "count": len(entries)})
}

func (d serverDeps) handleHistoryGet(c *gin.Context) {
	entry, err := d.history.Get(c.Param("name"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "evaluation not found"})
			return
		}
		abortWithError(c, apperrors.ToAppError(err))
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (d serverDeps) handleHistoryReport(c *gin.Context) {
	entry, err := d.history.Get(c.Param("name"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "evaluation not found"})
			return
		}
		abortWithError(c, apperrors.ToAppError(err))
		return
	}

	in := report.Input{
		DeckName:    entry.DeckName,
		CompanyName: entry.CompanyName,
		Scores:      entry.Scores,
		Result:      entry.Result(),
		GeneratedAt: time.Now(),
	}

	if c.Query("format") == "md" {
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(report.BuildMarkdown(in)))
		return
	}

	html, err := report.RenderHTML(in, security.GetNonce(c))
	if err != nil {
		abortWithError(c, apperrors.ToAppError(err))
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

func (d serverDeps) handleHistoryDelete(c *gin.Context) {
	if err := d.history.Delete(c.Param("name")); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "evaluation not found"})
			return
		}
		abortWithError(c, apperrors.ToAppError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("name")})
}

// handleConfigReload swaps the whole rule set atomically; in-flight
// requests finish on the old tables.
func (d serverDeps) handleConfigReload(c *gin.Context) {
	cfg, err := loadEngineConfig(d.rulesPath)
	if err != nil {
		abortWithError(c, apperrors.NewConfigurationError("failed to load scoring rules", err))
		return
	}
	if err := d.engine.Reload(cfg); err != nil {
		abortWithError(c, apperrors.ToAppError(err))
		return
	}

	d.cache.Clear()
	d.logger.SystemLogger("config_reload", "scoring rules reloaded, response cache cleared")

	c.JSON(http.StatusOK, gin.H{
		"status":   "reloaded",
		"warnings": cfg.Warnings(),
	})
}

func (d serverDeps) recordEvaluation(res *scoring.EvaluationResult, duration time.Duration) {
	d.metrics.IncrementEvaluation()
	for _, g := range res.Gates {
		d.metrics.RecordGateTrigger(g.Gate)
		d.logger.GateLogger(g.Gate, string(g.Criterion), g.CriterionScore, g.Before100, g.After100)
	}
	d.logger.EvaluationLogger(string(res.Stage), res.Industry, res.BusinessModel, res.Raw100, res.Gated100, len(res.Gates), duration, false)
}

func abortWithError(c *gin.Context, appErr *apperrors.AppError) {
	apperrors.LogError(c, appErr)
	c.JSON(appErr.HTTPStatus, appErr)
	c.Abort()
}
