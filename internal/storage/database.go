package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"momentify/internal/credentials"
	"momentify/internal/models"
)

// DB wraps the sqlite connection holding durable client state.
type DB struct {
	*sql.DB
}

// InitDB opens (and creates if needed) the database at dbPath.
func InitDB(dbPath string) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// The CLI is a single process; a small pool is plenty.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{db}, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS credentials (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		access_token TEXT NOT NULL,
		refresh_token TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// Load returns the stored token pair.
func (db *DB) Load() (models.AuthTokens, error) {
	var tokens models.AuthTokens
	err := db.QueryRow(`SELECT access_token, refresh_token FROM credentials WHERE id = 1`).
		Scan(&tokens.AccessToken, &tokens.RefreshToken)
	if errors.Is(err, sql.ErrNoRows) {
		return models.AuthTokens{}, credentials.ErrNoCredentials
	}
	if err != nil {
		return models.AuthTokens{}, fmt.Errorf("load credentials: %w", err)
	}
	return tokens, nil
}

// Save replaces the stored token pair.
func (db *DB) Save(tokens models.AuthTokens) error {
	query := `INSERT OR REPLACE INTO credentials (id, access_token, refresh_token, updated_at)
	          VALUES (1, ?, ?, ?)`
	if _, err := db.Exec(query, tokens.AccessToken, tokens.RefreshToken, time.Now().UTC()); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	return nil
}

// Clear removes the stored token pair.
func (db *DB) Clear() error {
	if _, err := db.Exec(`DELETE FROM credentials`); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}

var _ credentials.Store = (*DB)(nil)
