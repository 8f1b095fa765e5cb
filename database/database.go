package database

import (
	"database/sql"
	"fmt"
	"time"

	"transaction-audit-engine/config"

	"github.com/apex/log"
	_ "github.com/go-sql-driver/mysql"
)

// Database represents the database connection
type Database struct {
	db *sql.DB
}

// NewDatabase creates a new database connection
func NewDatabase(cfg *config.Config) (*Database, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection with exponential backoff retry
	waitInterval := 1 * time.Second
	for attempt := 1; ; attempt++ {
		err := db.Ping()
		if err == nil {
			break
		}
		if attempt >= 6 {
			db.Close()
			return nil, fmt.Errorf("database unreachable after %d attempts: %w", attempt, err)
		}
		log.WithError(err).Warnf("Database connection failed, retrying in %v", waitInterval)
		time.Sleep(waitInterval)
		waitInterval *= 2 // Exponential backoff: 1s, 2s, 4s, 8s, ...
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Database{db: db}, nil
}

// NewDatabaseFromConn wraps an existing connection; used by tests.
func NewDatabaseFromConn(db *sql.DB) *Database {
	return &Database{db: db}
}

// GetDB returns the underlying sql.DB
func (d *Database) GetDB() *sql.DB {
	return d.db
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}

// CreateAuditTables creates the engine's tables if they don't exist.
func (d *Database) CreateAuditTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS transactions (
			id VARCHAR(64) NOT NULL PRIMARY KEY,
			organization_id VARCHAR(64) NOT NULL,
			channel ENUM('manual', 'qr', 'device') NOT NULL DEFAULT 'manual',
			retired BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			audited_at TIMESTAMP NULL DEFAULT NULL,
			INDEX idx_transactions_organization (organization_id),
			INDEX idx_transactions_audited_at (audited_at)
		)`,
		`CREATE TABLE IF NOT EXISTS transaction_records (
			id VARCHAR(64) NOT NULL PRIMARY KEY,
			transaction_id VARCHAR(64) NOT NULL,
			material_id INT NOT NULL,
			claimed_category INT NOT NULL,
			image_refs TEXT,
			INDEX idx_records_transaction (transaction_id)
		)`,
		`CREATE TABLE IF NOT EXISTS audit_notes (
			transaction_id VARCHAR(64) NOT NULL PRIMARY KEY,
			version INT NOT NULL,
			note MEDIUMTEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS org_rule_sets (
			organization_id VARCHAR(64) NOT NULL PRIMARY KEY,
			rule_set VARCHAR(64) NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		)`,
	}

	for _, query := range queries {
		if _, err := d.db.Exec(query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}
