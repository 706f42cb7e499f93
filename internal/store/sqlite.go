// Package store provides storage backends for the bakery bot.
//
// This file implements an SQLite-backed quote store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/saboresdadori/bakerybot/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists quotes in an SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// AddQuote inserts a new quote request.
func (s *SQLiteStore) AddQuote(number, message string, hasImage bool) (models.Quote, error) {
	now := s.now()
	quote := models.Quote{
		ID:        now.UnixMilli(),
		Number:    number,
		Message:   message,
		Timestamp: now,
		Status:    models.QuoteStatusNew,
		HasImage:  hasImage,
	}
	if err := quote.Validate(); err != nil {
		slog.Error("SQLiteStore.AddQuote validation failed", "error", err, "number", number)
		return models.Quote{}, err
	}

	_, err := s.db.Exec(
		`INSERT INTO quotes (id, numero, mensagem, timestamp, status, tem_imagem) VALUES (?, ?, ?, ?, ?, ?)`,
		quote.ID, quote.Number, quote.Message, quote.Timestamp, quote.Status, quote.HasImage,
	)
	if err != nil {
		slog.Error("SQLiteStore.AddQuote failed", "error", err, "number", number)
		return models.Quote{}, fmt.Errorf("failed to insert quote for %s: %w", number, err)
	}
	slog.Info("SQLiteStore.AddQuote succeeded", "id", quote.ID, "number", number)
	return quote, nil
}

// ListQuotes returns quotes in insertion order, optionally filtered by status.
func (s *SQLiteStore) ListQuotes(status models.QuoteStatus) ([]models.Quote, error) {
	query := `SELECT id, numero, mensagem, timestamp, status, tem_imagem, updated_at FROM quotes`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("SQLiteStore.ListQuotes query failed", "error", err)
		return nil, fmt.Errorf("failed to query quotes: %w", err)
	}
	defer rows.Close()

	var quotes []models.Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			slog.Error("SQLiteStore.ListQuotes scan failed", "error", err)
			return nil, err
		}
		quotes = append(quotes, q)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore.ListQuotes rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate quote rows: %w", err)
	}
	slog.Debug("SQLiteStore.ListQuotes succeeded", "count", len(quotes))
	return quotes, nil
}

// UpdateQuoteStatus changes the status of a quote and stamps updated_at.
func (s *SQLiteStore) UpdateQuoteStatus(id int64, status models.QuoteStatus) error {
	if !models.IsValidQuoteStatus(status) {
		return models.ErrInvalidQuoteStatus
	}

	res, err := s.db.Exec(`UPDATE quotes SET status = ?, updated_at = ? WHERE id = ?`, status, s.now(), id)
	if err != nil {
		slog.Error("SQLiteStore.UpdateQuoteStatus failed", "error", err, "id", id)
		return fmt.Errorf("failed to update quote %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		slog.Warn("SQLiteStore.UpdateQuoteStatus quote not found", "id", id)
		return ErrQuoteNotFound
	}
	slog.Info("SQLiteStore.UpdateQuoteStatus succeeded", "id", id, "status", status)
	return nil
}

// Stats aggregates quote counts by status.
func (s *SQLiteStore) Stats() (models.QuoteStats, error) {
	quotes, err := s.ListQuotes("")
	if err != nil {
		return models.QuoteStats{}, err
	}
	return aggregateStats(quotes), nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
