package database

import (
	"database/sql"
	"os"
	"receiptgen/config"

	"go.uber.org/zap"
)

// InitDatabase initializes the SQLite database
func InitDatabase(cfg *config.Config, logger *zap.Logger) (*sql.DB, error) {
	// Ensure data directory exists
	if err := os.MkdirAll(cfg.DBPath, 0755); err != nil {
		return nil, err
	}

	// Open database connection
	db, err := sql.Open("sqlite3", cfg.GetDatabasePath()+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Database initialized successfully",
		zap.String("path", cfg.GetDatabasePath()),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.MaxIdleConns),
	)

	return db, nil
}

// CreateTables creates the user_emails, receipt_records and access_grants tables
func CreateTables(db *sql.DB, logger *zap.Logger) error {
	userEmailsTable := `
		CREATE TABLE IF NOT EXISTS user_emails (
			user_id INTEGER PRIMARY KEY,
			email TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`

	// Receipt field map is stored as a JSON object per user
	receiptRecordsTable := `
		CREATE TABLE IF NOT EXISTS receipt_records (
			user_id INTEGER PRIMARY KEY,
			fields TEXT NOT NULL DEFAULT '{}',
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`

	accessGrantsTable := `
		CREATE TABLE IF NOT EXISTS access_grants (
			user_id INTEGER PRIMARY KEY,
			granted_by INTEGER NOT NULL,
			expires_at DATETIME NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`

	tables := []struct {
		name  string
		query string
	}{
		{"user_emails", userEmailsTable},
		{"receipt_records", receiptRecordsTable},
		{"access_grants", accessGrantsTable},
	}

	for _, table := range tables {
		if _, err := db.Exec(table.query); err != nil {
			logger.Error("Failed to create table",
				zap.String("table", table.name),
				zap.Error(err))
			return err
		}
	}

	logger.Info("Database tables created successfully")
	return nil
}
