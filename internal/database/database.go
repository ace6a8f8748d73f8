package database

import (
	_ "embed"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"rentloop/internal/config"
)

//go:embed schema.sql
var schema string

// Connect opens the Postgres connection and applies the schema.
// The schema is idempotent (CREATE TABLE IF NOT EXISTS), which keeps the
// uniqueness constraints the credential store depends on in place before
// the HTTP surface accepts requests.
func Connect(cfg *config.Config) (*sqlx.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return db, nil
}
