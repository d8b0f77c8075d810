package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/venturelens/ir-deck-meter/internal/cache"
	engineconfig "github.com/venturelens/ir-deck-meter/internal/config"
	"github.com/venturelens/ir-deck-meter/internal/database"
	"github.com/venturelens/ir-deck-meter/internal/deckai"
	apperrors "github.com/venturelens/ir-deck-meter/internal/errors"
	"github.com/venturelens/ir-deck-meter/internal/monitoring"
	"github.com/venturelens/ir-deck-meter/internal/ratelimit"
	"github.com/venturelens/ir-deck-meter/internal/scoring"
	"github.com/venturelens/ir-deck-meter/internal/security"
)

func main() {
	// Structured logging setup
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Configuration from environment with defaults
	dataDir := getEnvOrDefault("DATA_DIR", "./data")
	rulesPath := os.Getenv("RULES_PATH")
	port := getEnvOrDefault("PORT", "8080")
	adminSecret := os.Getenv("ADMIN_JWT_SECRET")
	geminiKey := os.Getenv("GEMINI_API_KEY")
	geminiModel := getEnvOrDefault("GEMINI_MODEL", deckai.DefaultModel)
	redisAddr := os.Getenv("REDIS_ADDR")
	redisPassword := os.Getenv("REDIS_PASSWORD")
	redisDB, _ := strconv.Atoi(getEnvOrDefault("REDIS_DB", "0"))

	// Load the scoring rules: built-in defaults, optionally merged with
	// an external YAML rule file.
	engineCfg, err := loadEngineConfig(rulesPath)
	if err != nil {
		slog.Error("Failed to load scoring rules", "error", err, "path", rulesPath)
		os.Exit(1)
	}
	for _, w := range engineCfg.Warnings() {
		slog.Warn("Scoring rule warning", "warning", w)
	}

	engine, err := scoring.NewEngine(engineCfg)
	if err != nil {
		slog.Error("Failed to initialize scoring engine", "error", err)
		os.Exit(1)
	}

	// Evaluation history store
	db, err := database.NewDB(dataDir)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer apperrors.SafeClose(db, "database")

	// Monitoring
	appMetrics := monitoring.NewMetrics()
	appLogger := monitoring.NewLogger()

	// AI deck scorer is optional; without a key /score-deck answers 503.
	var deckScorer deckai.ScoreSource
	if geminiKey != "" {
		scorer, err := deckai.NewGeminiScorer(context.Background(), geminiKey, geminiModel, appLogger, appMetrics)
		if err != nil {
			slog.Error("Failed to initialize Gemini scorer", "error", err)
			os.Exit(1)
		}
		deckScorer = scorer
	} else {
		slog.Warn("GEMINI_API_KEY not set, deck text scoring disabled")
	}

	// Rate limiting: redis-backed when configured, in-memory otherwise
	redisClient, err := ratelimit.NewRedisClient(redisAddr, redisPassword, redisDB)
	if err != nil {
		slog.Warn("Redis unavailable, rate limiting falls back to in-memory", "error", err)
	}
	limiter := ratelimit.NewRateLimiter(redisClient, ratelimit.DefaultConfig(), appMetrics)

	// Security middleware setup
	securityConfig := security.DefaultSecurityConfig()
	securityConfig.AdminJWTSecret = adminSecret
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		securityConfig.AllowedOrigins = splitCSV(origins)
	}

	r := newRouter(serverDeps{
		engine:    engine,
		history:   database.NewHistoryService(database.NewRepository(db)),
		scorer:    deckScorer,
		limiter:   limiter,
		cache:     cache.NewCache(15 * time.Minute),
		security:  security.NewSecurityMiddleware(securityConfig),
		metrics:   appMetrics,
		logger:    appLogger,
		rulesPath: rulesPath,
	})

	_ = r.SetTrustedProxies(securityConfig.TrustedProxies)

	r.GET("/pools/database", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"pool":  "database",
			"stats": db.GetPoolStats(),
		})
	})

	// Performance profiling endpoints (development only)
	if os.Getenv("ENABLE_PROFILING") == "true" {
		slog.Info("Enabling performance profiling endpoints")
		r.GET("/debug/pprof/*filepath", gin.WrapF(pprof.Index))
		r.GET("/debug/pprof/cmdline", gin.WrapF(pprof.Cmdline))
		r.GET("/debug/pprof/profile", gin.WrapF(pprof.Profile))
		r.GET("/debug/pprof/symbol", gin.WrapF(pprof.Symbol))
		r.GET("/debug/pprof/trace", gin.WrapF(pprof.Trace))
	}

	// Start server with graceful shutdown
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	go func() {
		slog.Info("Starting server", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if redisClient != nil {
		apperrors.SafeClose(redisClient, "redis")
	}

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server exited")
}

// loadEngineConfig returns built-in rules when no rule file is
// configured, the merged document otherwise.
func loadEngineConfig(path string) (*scoring.Config, error) {
	if path == "" {
		return scoring.DefaultConfig(), nil
	}
	return engineconfig.Load(path)
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
