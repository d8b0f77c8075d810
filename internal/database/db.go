package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB represents the database connection with pooling
type DB struct {
	*sql.DB
	pool     *ConnectionPool
	prepared map[string]*sql.Stmt
	mutex    sync.RWMutex
}

// ConnectionPool manages database connection pooling
type ConnectionPool struct {
	db           *sql.DB
	maxOpenConns int
	maxIdleConns int
	maxLifetime  time.Duration
}

// NewConnectionPool creates a new database connection pool
func NewConnectionPool(db *sql.DB, maxOpen, maxIdle int, maxLifetime time.Duration) *ConnectionPool {
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)

	return &ConnectionPool{
		db:           db,
		maxOpenConns: maxOpen,
		maxIdleConns: maxIdle,
		maxLifetime:  maxLifetime,
	}
}

// GetStats returns connection pool statistics
func (cp *ConnectionPool) GetStats() map[string]interface{} {
	stats := cp.db.Stats()

	return map[string]interface{}{
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"max_open_connections": cp.maxOpenConns,
		"max_idle_connections": cp.maxIdleConns,
		"max_lifetime_seconds": cp.maxLifetime.Seconds(),
		"wait_count":           stats.WaitCount,
		"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
		"max_idle_closed":      stats.MaxIdleClosed,
		"max_lifetime_closed":  stats.MaxLifetimeClosed,
	}
}

// NewDB creates a new database connection with optimized pooling
func NewDB(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "ir_deck_meter.db")

	connStr := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pool := NewConnectionPool(db, 25, 5, 5*time.Minute)

	database := &DB{
		DB:       db,
		pool:     pool,
		prepared: make(map[string]*sql.Stmt),
	}

	if err := database.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := database.initPreparedStatements(); err != nil {
		return nil, fmt.Errorf("failed to initialize prepared statements: %w", err)
	}

	slog.Info("Database initialized with connection pooling",
		"max_open_conns", pool.maxOpenConns,
		"max_idle_conns", pool.maxIdleConns,
		"max_lifetime", pool.maxLifetime)

	return database, nil
}

// migrate creates the necessary tables
func (db *DB) migrate() error {
	queries := []string{
		// One row per deck, keyed by deck name; re-evaluating the same
		// deck overwrites the previous row.
		`CREATE TABLE IF NOT EXISTS evaluations (
			id TEXT PRIMARY KEY,
			deck_name TEXT NOT NULL UNIQUE,
			company_name TEXT,
			stage TEXT NOT NULL,
			industry TEXT,
			business_model TEXT,
			scores TEXT NOT NULL,        -- JSON map of criterion scores
			weights TEXT NOT NULL,       -- JSON normalized weight vector
			gates TEXT NOT NULL,         -- JSON gate audit trail
			overall_100_raw REAL NOT NULL,
			overall_100_after_gates REAL NOT NULL,
			overall_1_to_5_raw REAL NOT NULL,
			overall_1_to_5_after_gates REAL NOT NULL,
			model_name TEXT,             -- set when scores came from the AI scorer
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_evaluations_created ON evaluations(created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_evaluations_stage ON evaluations(stage)`,
		`CREATE INDEX IF NOT EXISTS idx_evaluations_score ON evaluations(overall_100_after_gates DESC)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	return nil
}

// initPreparedStatements initializes frequently used prepared statements
func (db *DB) initPreparedStatements() error {
	statements := map[string]string{
		"upsert_evaluation": `INSERT INTO evaluations (
			id, deck_name, company_name, stage, industry, business_model,
			scores, weights, gates,
			overall_100_raw, overall_100_after_gates,
			overall_1_to_5_raw, overall_1_to_5_after_gates,
			model_name, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(deck_name) DO UPDATE SET
			company_name = excluded.company_name,
			stage = excluded.stage,
			industry = excluded.industry,
			business_model = excluded.business_model,
			scores = excluded.scores,
			weights = excluded.weights,
			gates = excluded.gates,
			overall_100_raw = excluded.overall_100_raw,
			overall_100_after_gates = excluded.overall_100_after_gates,
			overall_1_to_5_raw = excluded.overall_1_to_5_raw,
			overall_1_to_5_after_gates = excluded.overall_1_to_5_after_gates,
			model_name = excluded.model_name,
			updated_at = excluded.updated_at`,

		"get_evaluation_by_deck": `SELECT id, deck_name, company_name, stage, industry, business_model,
			scores, weights, gates,
			overall_100_raw, overall_100_after_gates,
			overall_1_to_5_raw, overall_1_to_5_after_gates,
			model_name, created_at, updated_at
			FROM evaluations WHERE deck_name = ?`,

		"list_recent_evaluations": `SELECT id, deck_name, company_name, stage, industry, business_model,
			scores, weights, gates,
			overall_100_raw, overall_100_after_gates,
			overall_1_to_5_raw, overall_1_to_5_after_gates,
			model_name, created_at, updated_at
			FROM evaluations ORDER BY updated_at DESC LIMIT ?`,

		"delete_evaluation_by_deck": `DELETE FROM evaluations WHERE deck_name = ?`,
	}

	db.mutex.Lock()
	defer db.mutex.Unlock()

	for name, query := range statements {
		stmt, err := db.Prepare(query)
		if err != nil {
			return fmt.Errorf("failed to prepare statement %s: %w", name, err)
		}
		db.prepared[name] = stmt

		slog.Debug("Prepared statement initialized", "name", name)
	}

	return nil
}

// GetPreparedStatement retrieves a prepared statement
func (db *DB) GetPreparedStatement(name string) (*sql.Stmt, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	stmt, exists := db.prepared[name]
	if !exists {
		return nil, fmt.Errorf("prepared statement %s not found", name)
	}

	return stmt, nil
}

// GetPoolStats returns database connection pool statistics
func (db *DB) GetPoolStats() map[string]interface{} {
	return db.pool.GetStats()
}

// Close closes the database connection and prepared statements
func (db *DB) Close() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	for name, stmt := range db.prepared {
		if err := stmt.Close(); err != nil {
			slog.Warn("Failed to close prepared statement", "name", name, "error", err)
		}
	}

	db.prepared = make(map[string]*sql.Stmt)

	return db.DB.Close()
}
