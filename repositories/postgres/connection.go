package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/upb/hms-audit/config"
	"go.uber.org/zap"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database connection pool
func NewDB(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	dsn := cfg.DSN()

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("connection", cfg.LogString()))

	return Wrap(db, logger), nil
}

// Wrap adopts an already opened pool
func Wrap(db *sql.DB, logger *zap.Logger) *DB {
	return &DB{
		DB:     db,
		logger: logger,
	}
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

// Stats returns database connection pool statistics
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}

// Schema creates the tracked tables, the audit log and the notification
// table. Every statement is idempotent.
const Schema = `
	CREATE TABLE IF NOT EXISTS patient (
		id VARCHAR(64) PRIMARY KEY,
		name VARCHAR(120) NOT NULL,
		disease VARCHAR(120) NOT NULL DEFAULT '',
		sex VARCHAR(16) NOT NULL DEFAULT '',
		admit_status VARCHAR(32) NOT NULL DEFAULT '',
		age INTEGER NOT NULL CHECK (age >= 0)
	);

	CREATE TABLE IF NOT EXISTS doctor (
		id VARCHAR(64) PRIMARY KEY,
		name VARCHAR(120) NOT NULL,
		specialist VARCHAR(120) NOT NULL DEFAULT '',
		work_time VARCHAR(64) NOT NULL DEFAULT '',
		qualification VARCHAR(120) NOT NULL DEFAULT '',
		room INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS staff (
		id VARCHAR(64) PRIMARY KEY,
		name VARCHAR(120) NOT NULL,
		designation VARCHAR(120) NOT NULL DEFAULT '',
		sex VARCHAR(16) NOT NULL DEFAULT '',
		salary INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS medical (
		id VARCHAR(64) PRIMARY KEY,
		name VARCHAR(120) NOT NULL UNIQUE,
		manufacturer VARCHAR(120) NOT NULL DEFAULT '',
		expiry_date DATE NOT NULL,
		cost INTEGER NOT NULL DEFAULT 0,
		count INTEGER NOT NULL CHECK (count >= 0)
	);

	CREATE TABLE IF NOT EXISTS facility (
		id VARCHAR(64) PRIMARY KEY,
		name VARCHAR(120) NOT NULL UNIQUE,
		description VARCHAR(500) NOT NULL DEFAULT '',
		status VARCHAR(32) NOT NULL DEFAULT '',
		capacity INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS lab (
		id VARCHAR(64) PRIMARY KEY,
		name VARCHAR(120) NOT NULL UNIQUE,
		status VARCHAR(32) NOT NULL DEFAULT '',
		result VARCHAR(500)
	);

	-- JSON rather than JSONB keeps snapshot keys in column order
	CREATE TABLE IF NOT EXISTS audit_log (
		id BIGSERIAL PRIMARY KEY,
		ts TIMESTAMPTZ(3) NOT NULL,
		table_name VARCHAR(64) NOT NULL,
		action VARCHAR(6) NOT NULL CHECK (action IN ('INSERT', 'UPDATE', 'DELETE')),
		entity_id VARCHAR(64),
		old_values JSON,
		new_values JSON
	);

	CREATE INDEX IF NOT EXISTS idx_audit_log_table ON audit_log(table_name);
	CREATE INDEX IF NOT EXISTS idx_audit_log_table_entity ON audit_log(table_name, entity_id);

	CREATE TABLE IF NOT EXISTS notification (
		id BIGSERIAL PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		severity VARCHAR(4) NOT NULL CHECK (severity IN ('INFO', 'WARN')),
		title VARCHAR(200) NOT NULL,
		detail VARCHAR(500),
		seen BOOLEAN NOT NULL DEFAULT false
	);

	CREATE INDEX IF NOT EXISTS idx_notification_unseen ON notification(seen, created_at, id);
`

// InitSchema initializes the database schema
func (db *DB) InitSchema(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	db.logger.Info("database schema initialized")
	return nil
}
